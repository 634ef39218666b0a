package core

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	ScopePersonal Scope = "personal"
	ScopeJoint    Scope = "joint"
)

// DateLayout is the wire and storage format of Expense.Date.
const DateLayout = "2006-01-02"

// MaxCategoryLength is counted in characters, not bytes.
const MaxCategoryLength = 100

// MonthLayout is the format of month keys such as "2024-05".
const MonthLayout = "2006-01"

type (
	// Scope tells whether an expense belongs to one person or to the shared pool.
	Scope string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// Expense is a single spending record as held by the record store.
	// Date is kept verbatim; bucketing always goes through ParseDate.
	Expense struct {
		ID       string
		Name     string
		Category string
		Date     string
		Amount   Money
		Scope    Scope
	}
)

var (
	ErrInvalidDate    = errors.New("invalid date")
	ErrInvalidAmount  = errors.New("invalid amount")
	ErrInvalidScope   = errors.New("invalid scope")
	ErrEmptyName      = errors.New("empty name")
	ErrEmptyCategory  = errors.New("empty category")
	ErrCategoryLength = errors.New("category too long (max 100 characters)")
)

// Normalize maps the legacy empty scope to joint.
func (s Scope) Normalize() Scope {
	if strings.TrimSpace(string(s)) == "" {
		return ScopeJoint
	}
	return Scope(strings.ToLower(strings.TrimSpace(string(s))))
}

func (s Scope) Valid() bool {
	switch s {
	case ScopePersonal, ScopeJoint:
		return true
	default:
		return false
	}
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day in t's own location.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// ParseDate parses a YYYY-MM-DD string. Surrounding whitespace is ignored.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

// String renders the date as YYYY-MM-DD.
func (d Date) String() string {
	return d.Format(DateLayout)
}

// MonthKey renders the date's month as YYYY-MM.
func (d Date) MonthKey() string {
	return d.Format(MonthLayout)
}

// AddDays returns the date n calendar days later (earlier for negative n).
func (d Date) AddDays(n int) Date {
	return Date{Time: d.Time.AddDate(0, 0, n)}
}

// SameDay reports whether both dates fall on the same calendar day.
func (d Date) SameDay(o Date) bool {
	y1, m1, d1 := d.Date()
	y2, m2, d2 := o.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	return nil
}

// ParseMonthKey parses a YYYY-MM key into year and month.
func ParseMonthKey(key string) (year, month int, err error) {
	t, err := time.Parse(MonthLayout, strings.TrimSpace(key))
	if err != nil {
		return 0, 0, ErrInvalidDate
	}
	return t.Year(), int(t.Month()), nil
}

// Day parses the expense date. ok is false for malformed stored values.
func (e Expense) Day() (Date, bool) {
	d, err := ParseDate(e.Date)
	if err != nil {
		return Date{}, false
	}
	return d, true
}

// Validate runs the required-field checks applied before persisting.
func (e Expense) Validate() error {
	if strings.TrimSpace(e.Name) == "" {
		return ErrEmptyName
	}
	if strings.TrimSpace(e.Category) == "" {
		return ErrEmptyCategory
	}
	if utf8.RuneCountInString(e.Category) > MaxCategoryLength {
		return ErrCategoryLength
	}
	if _, err := ParseDate(e.Date); err != nil {
		return err
	}
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if !e.Scope.Valid() {
		return ErrInvalidScope
	}
	return nil
}
