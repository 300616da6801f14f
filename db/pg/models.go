package pg

import (
	"time"

	"github.com/google/uuid"
)

type TripModel struct {
	ID             uuid.UUID         `gorm:"type:uuid;primaryKey"`
	Name           string            `gorm:"size:255;not null"`
	CreatedBy      string            `gorm:"size:255;not null"`
	BudgetTotal    float64           `gorm:"type:numeric(12,2);not null;default:0"`
	BudgetCurrency string            `gorm:"size:3;not null;default:INR"`
	Members        []TripMemberModel `gorm:"foreignKey:TripID"`
	// meta data
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName returns the table name for TripModel.
func (TripModel) TableName() string {
	return "trips"
}

type TripMemberModel struct {
	TripID   uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID   string    `gorm:"size:255;primaryKey"`
	Role     string    `gorm:"size:16;not null"`
	JoinedAt time.Time `gorm:"not null"`
}

func (TripMemberModel) TableName() string {
	return "trip_members"
}

type ExpenseModel struct {
	ID           uuid.UUID           `gorm:"type:uuid;primaryKey"`
	TripID       uuid.UUID           `gorm:"type:uuid;not null;index"`
	Title        string              `gorm:"size:200;not null"`
	Description  string              `gorm:"type:text"`
	Notes        string              `gorm:"type:text"`
	Amount       float64             `gorm:"type:numeric(12,2);not null"`
	Currency     string              `gorm:"size:3;not null"`
	Category     string              `gorm:"size:32;not null"`
	PaidBy       string              `gorm:"size:255;not null"`
	CreatedBy    string              `gorm:"size:255;not null"`
	ExpenseDate  time.Time           `gorm:"not null"`
	BillImageRef string              `gorm:"size:512"`
	Splits       []ExpenseSplitModel `gorm:"foreignKey:ExpenseID"`
	// meta data
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName returns the table name for ExpenseModel.
func (ExpenseModel) TableName() string {
	return "expenses"
}

// ExpenseSplitModel keeps the split order of the document in Position.
type ExpenseSplitModel struct {
	ExpenseID  uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID     string    `gorm:"size:255;primaryKey"`
	Position   int       `gorm:"not null"`
	Percentage float64   `gorm:"type:numeric(9,4);not null"`
	Amount     float64   `gorm:"type:numeric(12,2);not null"`
	Paid       bool      `gorm:"not null"`
	PaidAt     *time.Time
}

func (ExpenseSplitModel) TableName() string {
	return "expense_splits"
}

type UserProfileModel struct {
	ID        string `gorm:"size:255;primaryKey"`
	FirstName string `gorm:"size:255"`
	LastName  string `gorm:"size:255"`
	Email     string `gorm:"size:255"`
	ImageURL  string `gorm:"size:512"`
	UpdatedAt time.Time
}

func (UserProfileModel) TableName() string {
	return "user_profiles"
}

type PaymentSettingsModel struct {
	UserID      string `gorm:"size:255;primaryKey"`
	UPIID       string `gorm:"column:upi_id;size:255"`
	QRCodeRef   string `gorm:"column:qr_code_ref;size:512"`
	PhoneNumber string `gorm:"size:32"`
	BankName    string `gorm:"size:255"`
	IsActive    bool   `gorm:"not null"`
	UpdatedAt   time.Time
}

func (PaymentSettingsModel) TableName() string {
	return "payment_settings"
}
