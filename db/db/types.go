package db

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleAdmin  Role = "Admin"
	RoleEditor Role = "Editor"
	RoleViewer Role = "Viewer"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleEditor, RoleViewer:
		return true
	}
	return false
}

type Category string

const (
	CategoryTravel        Category = "travel"
	CategoryFood          Category = "food"
	CategoryAccommodation Category = "accommodation"
	CategoryOthers        Category = "others"
)

// Categories lists every category in display order.
var Categories = []Category{CategoryTravel, CategoryFood, CategoryAccommodation, CategoryOthers}

func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

const DefaultCurrency = "INR"

type Member struct {
	UserID   string
	Role     Role
	JoinedAt time.Time
}

type Budget struct {
	Total    float64
	Currency string
}

type Trip struct {
	ID        uuid.UUID
	Name      string
	CreatedBy string
	Members   []Member
	Budget    Budget
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Member returns the membership of userID, if any.
func (t *Trip) Member(userID string) (Member, bool) {
	for _, m := range t.Members {
		if m.UserID == userID {
			return m, true
		}
	}
	return Member{}, false
}

func (t *Trip) IsAdmin(userID string) bool {
	m, ok := t.Member(userID)
	return ok && m.Role == RoleAdmin
}

type Split struct {
	UserID     string
	Percentage float64
	Amount     float64
	Paid       bool
	PaidAt     *time.Time
}

type Expense struct {
	ID           uuid.UUID
	TripID       uuid.UUID
	Title        string
	Description  string
	Notes        string
	Amount       float64
	Currency     string
	Category     Category
	PaidBy       string
	CreatedBy    string
	ExpenseDate  time.Time
	BillImageRef string
	Splits       []Split
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Split returns the index of userID's split, or -1.
func (e *Expense) Split(userID string) int {
	for i, s := range e.Splits {
		if s.UserID == userID {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy so callers can't alias stored splits.
func (e Expense) Clone() Expense {
	splits := make([]Split, len(e.Splits))
	for i, s := range e.Splits {
		if s.PaidAt != nil {
			at := *s.PaidAt
			s.PaidAt = &at
		}
		splits[i] = s
	}
	e.Splits = splits
	return e
}

func (t Trip) Clone() Trip {
	t.Members = append([]Member(nil), t.Members...)
	return t
}

type PaymentSettings struct {
	UserID      string
	UPIID       string
	QRCodeRef   string
	PhoneNumber string
	BankName    string
	IsActive    bool
	UpdatedAt   time.Time
}

type UserProfile struct {
	ID        string
	FirstName string
	LastName  string
	Email     string
	ImageURL  string
	UpdatedAt time.Time
}

// DisplayName falls back to the email when no name is known.
func (p *UserProfile) DisplayName() string {
	switch {
	case p.FirstName != "" && p.LastName != "":
		return p.FirstName + " " + p.LastName
	case p.FirstName != "":
		return p.FirstName
	case p.LastName != "":
		return p.LastName
	}
	return p.Email
}
