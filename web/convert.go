package web

import (
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"tripvault/balance"
	"tripvault/db/db"
	"tripvault/ledger"
	"tripvault/mq/mq"
)

const filesPath = "/api/files/"

func fileURL(ref string) string {
	if ref == "" {
		return ""
	}
	return filesPath + ref
}

func nameOf(names map[string]string, userID string) string {
	if name := names[userID]; name != "" {
		return name
	}
	return balance.UnknownUser
}

func toTripResponse(t *db.Trip, names map[string]string) tripResponse {
	resp := tripResponse{
		ID:        t.ID.String(),
		Name:      t.Name,
		CreatedBy: t.CreatedBy,
		Members:   make([]memberResponse, len(t.Members)),
		Budget:    budgetResponse{Total: t.Budget.Total, Currency: t.Budget.Currency},
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
	for i, m := range t.Members {
		resp.Members[i] = memberResponse{
			UserID:   m.UserID,
			UserName: nameOf(names, m.UserID),
			Role:     string(m.Role),
			JoinedAt: m.JoinedAt,
		}
	}
	return resp
}

func toExpenseResponse(e *db.Expense, names map[string]string) expenseResponse {
	resp := expenseResponse{
		ID:          e.ID.String(),
		TripID:      e.TripID.String(),
		Title:       e.Title,
		Description: e.Description,
		Notes:       e.Notes,
		Amount:      e.Amount,
		Currency:    e.Currency,
		Category:    string(e.Category),
		PaidBy:      e.PaidBy,
		PaidByName:  nameOf(names, e.PaidBy),
		CreatedBy:   e.CreatedBy,
		ExpenseDate: e.ExpenseDate,
		BillImage:   fileURL(e.BillImageRef),
		Splits:      make([]splitResponse, len(e.Splits)),
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
	}
	for i, s := range e.Splits {
		resp.Splits[i] = splitResponse{
			UserID:     s.UserID,
			UserName:   nameOf(names, s.UserID),
			Percentage: s.Percentage,
			Amount:     s.Amount,
			IsPaid:     s.Paid,
			PaidAt:     s.PaidAt,
		}
	}
	return resp
}

func toStatisticsResponse(s balance.Statistics) statisticsResponse {
	resp := statisticsResponse{
		Budget:            s.Budget,
		Currency:          s.Currency,
		TotalExpenses:     s.TotalExpenses,
		RemainingBudget:   s.RemainingBudget,
		BudgetPercentage:  s.BudgetPercentage,
		CategoryBreakdown: make(map[string]categoryResponse, len(s.CategoryBreakdown)),
	}
	for category, stat := range s.CategoryBreakdown {
		resp.CategoryBreakdown[string(category)] = categoryResponse{
			Total:      stat.Total,
			Count:      stat.Count,
			Percentage: stat.Percentage,
		}
	}
	return resp
}

func toPaymentSettingsResponse(p *db.PaymentSettings) *paymentSettingsResponse {
	if p == nil {
		return nil
	}
	resp := &paymentSettingsResponse{
		UserID:      p.UserID,
		UPIID:       p.UPIID,
		QRCode:      fileURL(p.QRCodeRef),
		PhoneNumber: p.PhoneNumber,
		BankName:    p.BankName,
		IsActive:    p.IsActive,
	}
	if !p.UpdatedAt.IsZero() {
		at := p.UpdatedAt
		resp.UpdatedAt = &at
	}
	return resp
}

func toBalanceResponse(s balance.Summary) balanceResponse {
	resp := balanceResponse{
		UserPaid:     s.UserPaid,
		UserOwes:     s.UserOwes,
		Balance:      s.Balance,
		BalancesWith: make([]counterpartResponse, len(s.BalancesWith)),
	}
	for i, c := range s.BalancesWith {
		resp.BalancesWith[i] = counterpartResponse{
			UserID:          c.UserID,
			UserName:        c.UserName,
			Amount:          c.Amount,
			IsPaid:          c.IsPaid,
			PaymentSettings: toPaymentSettingsResponse(c.PaymentSettings),
		}
	}
	return resp
}

func toTransferResponses(transfers []balance.Transfer, names map[string]string) []transferResponse {
	resp := make([]transferResponse, len(transfers))
	for i, t := range transfers {
		resp[i] = transferResponse{
			From:     t.From,
			FromName: nameOf(names, t.From),
			To:       t.To,
			ToName:   nameOf(names, t.To),
			Amount:   t.Amount,
		}
	}
	return resp
}

// expenseMQ2Event skips messages that do not reference an expense.
func expenseMQ2Event(msg mq.ExpenseMessage) (eventResponse, bool, error) {
	if msg.ExpenseID == uuid.Nil {
		return eventResponse{}, true, nil
	}
	return eventResponse{
		Action:    msg.Action.String(),
		TripID:    msg.TripID.String(),
		ExpenseID: msg.ExpenseID.String(),
		Actor:     msg.Actor,
		Title:     msg.Title,
		Amount:    msg.Amount,
		Changes:   msg.Changes,
		At:        msg.At,
	}, false, nil
}

func toSplitInputs(splits []splitRequest) []ledger.SplitInput {
	if splits == nil {
		return nil
	}
	out := make([]ledger.SplitInput, len(splits))
	for i, s := range splits {
		out[i] = ledger.SplitInput{UserID: s.UserID, Percentage: s.Percentage}
	}
	return out
}

// parseExpenseDate accepts RFC 3339, a plain date, or JavaScript
// Date.now() milliseconds. An empty string yields nil.
func parseExpenseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	if unixMilli, err := strconv.ParseInt(s, 10, 64); err == nil {
		t := time.UnixMilli(unixMilli)
		return &t, nil
	}
	for _, layout := range []string{time.RFC3339Nano, time.DateOnly} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("unsupported date %q", s)
}
