package mq

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Action int

const (
	ActionCreate Action = iota
	ActionUpdate
	ActionDelete
	ActionSplitPaid
	ActionCnt
)

var actionNames = [ActionCnt]string{
	ActionCreate:    "create",
	ActionUpdate:    "update",
	ActionDelete:    "delete",
	ActionSplitPaid: "split_paid",
}

func (a Action) String() string {
	if a < 0 || a >= ActionCnt {
		return fmt.Sprintf("action(%d)", int(a))
	}
	return actionNames[a]
}

func ParseAction(s string) (Action, error) {
	for i, name := range actionNames {
		if name == s {
			return Action(i), nil
		}
	}
	return 0, fmt.Errorf("unknown action %q", s)
}

func (a Action) MarshalText() ([]byte, error) {
	if a < 0 || a >= ActionCnt {
		return nil, fmt.Errorf("unknown action %d", int(a))
	}
	return []byte(a.String()), nil
}

func (a *Action) UnmarshalText(text []byte) error {
	parsed, err := ParseAction(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// ExpenseMessage notifies trip members that an expense changed.
type ExpenseMessage struct {
	TripID    uuid.UUID `json:"tripId"`
	ExpenseID uuid.UUID `json:"expenseId"`
	Action    Action    `json:"action"`
	Actor     string    `json:"actor"`
	Title     string    `json:"title"`
	Amount    float64   `json:"amount"`
	// Changes holds the changed field paths of an update, or the user whose
	// split was paid.
	Changes []string  `json:"changes,omitempty"`
	At      time.Time `json:"at"`
}

func (m ExpenseMessage) GetTopic() uuid.UUID {
	return m.TripID
}
