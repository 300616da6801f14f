package web

import (
	"time"
)

type memberRequest struct {
	UserID string `json:"userId" binding:"required"`
	Role   string `json:"role"`
}

type budgetRequest struct {
	Total    float64 `json:"total"`
	Currency string  `json:"currency"`
}

type createTripRequest struct {
	Name    string          `json:"name" binding:"required"`
	Members []memberRequest `json:"members" binding:"dive"`
	Budget  *budgetRequest  `json:"budget"`
}

type splitRequest struct {
	UserID     string  `json:"userId"`
	Percentage float64 `json:"percentage"`
}

// Multipart bodies carry splits as a JSON encoded form field.
type createExpenseRequest struct {
	Title       string         `json:"title" form:"title"`
	Description string         `json:"description" form:"description"`
	Notes       string         `json:"notes" form:"notes"`
	Amount      float64        `json:"amount" form:"amount"`
	Currency    string         `json:"currency" form:"currency"`
	Category    string         `json:"category" form:"category"`
	PaidBy      string         `json:"paidBy" form:"paidBy"`
	ExpenseDate string         `json:"expenseDate" form:"expenseDate"`
	Splits      []splitRequest `json:"splits" form:"-"`
}

type updateExpenseRequest struct {
	Title           *string        `json:"title" form:"title"`
	Description     *string        `json:"description" form:"description"`
	Notes           *string        `json:"notes" form:"notes"`
	Amount          *float64       `json:"amount" form:"amount"`
	Currency        *string        `json:"currency" form:"currency"`
	Category        *string        `json:"category" form:"category"`
	PaidBy          *string        `json:"paidBy" form:"paidBy"`
	ExpenseDate     *string        `json:"expenseDate" form:"expenseDate"`
	Splits          []splitRequest `json:"splits" form:"-"`
	RemoveBillImage bool           `json:"removeBillImage" form:"removeBillImage"`
}

type paymentSettingsRequest struct {
	UPIID        *string `json:"upiId" form:"upiId"`
	PhoneNumber  *string `json:"phoneNumber" form:"phoneNumber"`
	BankName     *string `json:"bankName" form:"bankName"`
	IsActive     *bool   `json:"isActive" form:"isActive"`
	RemoveQRCode bool    `json:"removeQrCode" form:"removeQrCode"`
}

type errorResponse struct {
	Success bool     `json:"success"`
	Message string   `json:"message"`
	Field   string   `json:"field,omitempty"`
	Total   *float64 `json:"total,omitempty"`
}

type memberResponse struct {
	UserID   string    `json:"userId"`
	UserName string    `json:"userName"`
	Role     string    `json:"role"`
	JoinedAt time.Time `json:"joinedAt"`
}

type budgetResponse struct {
	Total    float64 `json:"total"`
	Currency string  `json:"currency"`
}

type tripResponse struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	CreatedBy string           `json:"createdBy"`
	Members   []memberResponse `json:"members"`
	Budget    budgetResponse   `json:"budget"`
	CreatedAt time.Time        `json:"createdAt"`
	UpdatedAt time.Time        `json:"updatedAt"`
}

type splitResponse struct {
	UserID     string     `json:"userId"`
	UserName   string     `json:"userName"`
	Percentage float64    `json:"percentage"`
	Amount     float64    `json:"amount"`
	IsPaid     bool       `json:"isPaid"`
	PaidAt     *time.Time `json:"paidAt,omitempty"`
}

type expenseResponse struct {
	ID          string          `json:"id"`
	TripID      string          `json:"tripId"`
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	Notes       string          `json:"notes,omitempty"`
	Amount      float64         `json:"amount"`
	Currency    string          `json:"currency"`
	Category    string          `json:"category"`
	PaidBy      string          `json:"paidBy"`
	PaidByName  string          `json:"paidByName"`
	CreatedBy   string          `json:"createdBy"`
	ExpenseDate time.Time       `json:"expenseDate"`
	BillImage   string          `json:"billImage,omitempty"`
	Splits      []splitResponse `json:"splits"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

type categoryResponse struct {
	Total      float64 `json:"total"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

type statisticsResponse struct {
	Budget            float64                     `json:"budget"`
	Currency          string                      `json:"currency"`
	TotalExpenses     float64                     `json:"totalExpenses"`
	RemainingBudget   float64                     `json:"remainingBudget"`
	BudgetPercentage  float64                     `json:"budgetPercentage"`
	CategoryBreakdown map[string]categoryResponse `json:"categoryBreakdown"`
}

type paymentSettingsResponse struct {
	UserID      string     `json:"userId"`
	UPIID       string     `json:"upiId,omitempty"`
	QRCode      string     `json:"qrCode,omitempty"`
	PhoneNumber string     `json:"phoneNumber,omitempty"`
	BankName    string     `json:"bankName,omitempty"`
	IsActive    bool       `json:"isActive"`
	UpdatedAt   *time.Time `json:"updatedAt,omitempty"`
}

type counterpartResponse struct {
	UserID          string                   `json:"userId"`
	UserName        string                   `json:"userName"`
	Amount          float64                  `json:"amount"`
	IsPaid          bool                     `json:"isPaid"`
	PaymentSettings *paymentSettingsResponse `json:"paymentSettings,omitempty"`
}

type balanceResponse struct {
	UserPaid     float64               `json:"userPaid"`
	UserOwes     float64               `json:"userOwes"`
	Balance      float64               `json:"balance"`
	BalancesWith []counterpartResponse `json:"balancesWith"`
}

type transferResponse struct {
	From     string  `json:"from"`
	FromName string  `json:"fromName"`
	To       string  `json:"to"`
	ToName   string  `json:"toName"`
	Amount   float64 `json:"amount"`
}

type eventResponse struct {
	Action    string    `json:"action"`
	TripID    string    `json:"tripId"`
	ExpenseID string    `json:"expenseId"`
	Actor     string    `json:"actor"`
	Title     string    `json:"title"`
	Amount    float64   `json:"amount"`
	Changes   []string  `json:"changes,omitempty"`
	At        time.Time `json:"at"`
}
