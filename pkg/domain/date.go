package domain

import (
	"strings"
	"time"

	dErrors "compliancehub/pkg/domain-errors"
)

const dateLayout = "2006-01-02"

// Date is a calendar day (expiry dates). It renders as YYYY-MM-DD.
type Date struct {
	t time.Time
}

// ParseDate accepts YYYY-MM-DD or an RFC 3339 timestamp; a timestamp is
// reduced to its UTC calendar day.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, dErrors.New(dErrors.CodeInvalidInput, "date is required")
	}
	if t, err := time.Parse(dateLayout, s); err == nil {
		return Date{t: t}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return DateOf(t), nil
	}
	return Date{}, dErrors.New(dErrors.CodeInvalidInput, "date must be YYYY-MM-DD or RFC 3339")
}

// DateOf truncates t to its UTC calendar day.
func DateOf(t time.Time) Date {
	y, m, d := t.UTC().Date()
	return Date{t: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

func (d Date) IsZero() bool      { return d.t.IsZero() }
func (d Date) Time() time.Time   { return d.t }
func (d Date) String() string    { return d.t.Format(dateLayout) }
func (d Date) Equal(o Date) bool { return d.t.Equal(o.t) }

func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Date) UnmarshalText(b []byte) error {
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
