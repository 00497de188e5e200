package valueobjects

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DiaryDateLayout is the rendered form of a diary date
const DiaryDateLayout = "2006.01.02"

var ErrInvalidDiaryDate = errors.New("diary date must be formatted as YYYY.MM.DD")

// DiaryDate is a calendar date used as the logical key of a diary entry.
// It carries no time of day and no zone. The rendered form is zero padded so
// that string comparison orders dates chronologically.
type DiaryDate struct {
	t time.Time
}

// NewDiaryDate builds a date from its calendar parts, normalising overflow
// the same way time.Date does.
func NewDiaryDate(year int, month time.Month, day int) DiaryDate {
	return DiaryDate{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DiaryDateFromTime takes the calendar date of t in its own location
func DiaryDateFromTime(t time.Time) DiaryDate {
	return NewDiaryDate(t.Year(), t.Month(), t.Day())
}

// ParseDiaryDate accepts YYYY.MM.DD and the ISO YYYY-MM-DD form
func ParseDiaryDate(s string) (DiaryDate, error) {
	s = strings.TrimSpace(s)
	if len(s) != len(DiaryDateLayout) {
		return DiaryDate{}, fmt.Errorf("%w: %q", ErrInvalidDiaryDate, s)
	}
	if s[4] == '-' && s[7] == '-' {
		s = strings.ReplaceAll(s, "-", ".")
	}
	t, err := time.Parse(DiaryDateLayout, s)
	if err != nil {
		return DiaryDate{}, fmt.Errorf("%w: %q", ErrInvalidDiaryDate, s)
	}
	return DiaryDate{t: t}, nil
}

// MustParseDiaryDate panics on malformed input. Intended for tests and constants.
func MustParseDiaryDate(s string) DiaryDate {
	d, err := ParseDiaryDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func (d DiaryDate) String() string {
	if d.IsZero() {
		return ""
	}
	return d.t.Format(DiaryDateLayout)
}

func (d DiaryDate) IsZero() bool                { return d.t.IsZero() }
func (d DiaryDate) Year() int                   { return d.t.Year() }
func (d DiaryDate) Month() time.Month           { return d.t.Month() }
func (d DiaryDate) Day() int                    { return d.t.Day() }
func (d DiaryDate) Weekday() time.Weekday       { return d.t.Weekday() }
func (d DiaryDate) Time() time.Time             { return d.t }
func (d DiaryDate) Equals(other DiaryDate) bool { return d.t.Equal(other.t) }
func (d DiaryDate) Before(other DiaryDate) bool { return d.t.Before(other.t) }
func (d DiaryDate) After(other DiaryDate) bool  { return d.t.After(other.t) }

// AddDays returns the date n days later (earlier for negative n)
func (d DiaryDate) AddDays(n int) DiaryDate {
	return DiaryDate{t: d.t.AddDate(0, 0, n)}
}

// WeekRange returns the first and last day of the seven day calendar week
// containing d, where weeks begin on weekStart.
func (d DiaryDate) WeekRange(weekStart time.Weekday) (DiaryDate, DiaryDate) {
	offset := (int(d.Weekday()) - int(weekStart) + 7) % 7
	first := d.AddDays(-offset)
	return first, first.AddDays(6)
}

// MonthRange returns the first day of the given month and the first day of
// the following month, for half-open range queries.
func MonthRange(year int, month time.Month) (DiaryDate, DiaryDate, error) {
	if month < time.January || month > time.December {
		return DiaryDate{}, DiaryDate{}, fmt.Errorf("month %d out of range", month)
	}
	if year < 1 || year > 9999 {
		return DiaryDate{}, DiaryDate{}, fmt.Errorf("year %d out of range", year)
	}
	first := NewDiaryDate(year, month, 1)
	return first, NewDiaryDate(year, month+1, 1), nil
}

// MarshalJSON renders the date as a string, or null for the zero date
func (d DiaryDate) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler
func (d *DiaryDate) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*d = DiaryDate{}
		return nil
	}
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return errors.New("diary date must be a string")
	}
	parsed, err := ParseDiaryDate(string(data[1 : len(data)-1]))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// ParseWeekStart maps a configured week start name to a weekday
func ParseWeekStart(name string) (time.Weekday, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "sunday", "sun":
		return time.Sunday, nil
	case "monday", "mon":
		return time.Monday, nil
	default:
		return time.Sunday, fmt.Errorf("unsupported week start %q", name)
	}
}
