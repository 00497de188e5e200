package valueobjects

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Score is an optional integer emotion score. The zero value is absent.
type Score struct {
	value int
	valid bool
}

// NewScore returns a present score
func NewScore(v int) Score {
	return Score{value: v, valid: true}
}

// NoScore returns the absent marker
func NoScore() Score {
	return Score{}
}

// ScoreFromPtr converts a nullable int into a Score
func ScoreFromPtr(v *int) Score {
	if v == nil {
		return NoScore()
	}
	return NewScore(*v)
}

// Value returns the score and whether it is present
func (s Score) Value() (int, bool) {
	return s.value, s.valid
}

func (s Score) IsPresent() bool {
	return s.valid
}

func (s Score) String() string {
	if !s.valid {
		return "-"
	}
	return strconv.Itoa(s.value)
}

// MarshalJSON renders an absent score as null
func (s Score) MarshalJSON() ([]byte, error) {
	if !s.valid {
		return []byte("null"), nil
	}
	return []byte(strconv.Itoa(s.value)), nil
}

// UnmarshalJSON accepts null, numbers, and numeric strings. Fractional
// values round to the nearest integer; an empty string is absent.
func (s *Score) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*s = NoScore()
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var raw string
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		raw = strings.TrimSpace(raw)
		if raw == "" {
			*s = NoScore()
			return nil
		}
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("score %q is not a number", raw)
		}
		*s = NewScore(int(math.Round(f)))
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*s = NewScore(int(math.Round(f)))
	return nil
}

// WeeklyScoreVector holds one score slot per weekday, indexed by
// time.Weekday so Sunday is always slot 0.
type WeeklyScoreVector [7]Score

// Set places a score in the slot for the date's weekday. A later Set for
// the same weekday replaces the earlier one.
func (v *WeeklyScoreVector) Set(date DiaryDate, score Score) {
	v[date.Weekday()] = score
}

// At returns the slot for a weekday
func (v WeeklyScoreVector) At(day time.Weekday) Score {
	return v[day]
}

// PresentCount reports how many slots hold a score
func (v WeeklyScoreVector) PresentCount() int {
	n := 0
	for _, s := range v {
		if s.valid {
			n++
		}
	}
	return n
}
