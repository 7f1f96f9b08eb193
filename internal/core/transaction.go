package core

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	Income  TransactionType = "INCOME"
	Expense TransactionType = "EXPENSE"
)

type (
	// TransactionType is the closed income/expense enumeration. Values
	// arriving off the wire are not type-checked, so code consuming
	// transactions must tolerate unknown types.
	TransactionType string

	// Date is a calendar date, serialized as "2006-01-02".
	Date struct {
		time.Time
	}

	// Transaction is a single recorded income or expense event. The server
	// assigns ID and CreatedAt; both are immutable after creation.
	Transaction struct {
		ID        int64           `json:"id"`
		Title     string          `json:"title"`
		Amount    Amount          `json:"amount"`
		Type      TransactionType `json:"type"`
		Category  string          `json:"category"`
		Date      Date            `json:"date"`
		CreatedAt time.Time       `json:"timestamp"`
	}

	// Draft is user-entered transaction data pending submission. Amount is
	// kept as the raw input string until validation.
	Draft struct {
		Title    string          `json:"title"`
		Amount   string          `json:"amount"`
		Type     TransactionType `json:"type"`
		Category string          `json:"category"`
		Date     Date            `json:"date"`
	}
)

var (
	ErrEmptyTitle      = errors.New("empty title")
	ErrTitleTooLong    = errors.New("title too long (max 255 characters)")
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrInvalidType     = errors.New("invalid transaction type")
	ErrInvalidCategory = errors.New("category does not belong to type")
	ErrMissingDate     = errors.New("missing date")
)

var categorySets = map[TransactionType][]string{
	Income:  {"Salary", "Investment", "Gift", "Other Income"},
	Expense: {"Groceries", "Rent", "Utilities", "Transport", "Entertainment", "Debt", "Other Expense"},
}

// IsValid reports whether t is one of the known transaction types.
func (t TransactionType) IsValid() bool {
	return t == Income || t == Expense
}

// Categories returns the closed category set for a transaction type. The
// returned slice is a copy; callers may reorder it freely.
func Categories(t TransactionType) []string {
	set, ok := categorySets[t]
	if !ok {
		return nil
	}
	return append([]string(nil), set...)
}

// ValidCategory reports whether category belongs to the set for t.
func ValidCategory(t TransactionType, category string) bool {
	for _, c := range categorySets[t] {
		if c == category {
			return true
		}
	}
	return false
}

// NewDate creates a Date from year, month, day at midnight UTC.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// Today returns the current calendar date in UTC.
func Today() Date {
	now := time.Now().UTC()
	return NewDate(now.Year(), int(now.Month()), now.Day())
}

// ParseDate parses an ISO 8601 calendar date ("2006-01-02").
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return Date{}, err
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	return d.Format("2006-01-02")
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "null" || s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Validate checks the draft against the client-side rules: required fields
// present, amount a positive decimal, category drawn from the type's set.
// Failures here are terminal at the form layer and never reach the network.
func (d Draft) Validate() error {
	title := strings.TrimSpace(d.Title)
	if title == "" {
		return ErrEmptyTitle
	}
	if utf8.RuneCountInString(title) > 255 {
		return ErrTitleTooLong
	}
	amt, err := ParseAmount(d.Amount)
	if err != nil || !amt.Positive() {
		return ErrInvalidAmount
	}
	if !d.Type.IsValid() {
		return ErrInvalidType
	}
	if !ValidCategory(d.Type, d.Category) {
		return ErrInvalidCategory
	}
	if d.Date.IsZero() {
		return ErrMissingDate
	}
	return nil
}
