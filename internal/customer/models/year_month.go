package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	dErrors "customerhub/pkg/domain-errors"
)

// YearMonth is a card expiration month. The zero value means "absent".
type YearMonth struct {
	Year  int
	Month time.Month
}

// NewYearMonth validates month 1..12 and a four digit year.
func NewYearMonth(year int, month time.Month) (YearMonth, error) {
	if month < time.January || month > time.December {
		return YearMonth{}, validationErr(ErrInvalidFormat, "expiration month must be between 1 and 12")
	}
	if year < 2000 || year > 9999 {
		return YearMonth{}, validationErr(ErrInvalidFormat, "expiration year must be between 2000 and 9999")
	}
	return YearMonth{Year: year, Month: month}, nil
}

// ParseYearMonth accepts "YYYY-MM" or the card-face form "MM/YY".
func ParseYearMonth(s string) (YearMonth, error) {
	s = strings.TrimSpace(s)
	var yStr, mStr string
	switch {
	case len(s) == 7 && s[4] == '-':
		yStr, mStr = s[:4], s[5:]
	case len(s) == 5 && s[2] == '/':
		mStr, yStr = s[:2], "20"+s[3:]
	default:
		return YearMonth{}, validationErr(ErrInvalidFormat, "expiration must be YYYY-MM or MM/YY")
	}
	if !isDigits(yStr) || !isDigits(mStr) {
		return YearMonth{}, validationErr(ErrInvalidFormat, "expiration must be YYYY-MM or MM/YY")
	}
	y, _ := strconv.Atoi(yStr)
	m, _ := strconv.Atoi(mStr)
	return NewYearMonth(y, time.Month(m))
}

// YearMonthOf returns the calendar month containing t (in t's location).
func YearMonthOf(t time.Time) YearMonth {
	return YearMonth{Year: t.Year(), Month: t.Month()}
}

func (ym YearMonth) IsZero() bool { return ym.Year == 0 && ym.Month == 0 }

func (ym YearMonth) index() int { return ym.Year*12 + int(ym.Month) - 1 }

func (ym YearMonth) Before(other YearMonth) bool { return ym.index() < other.index() }

func (ym YearMonth) After(other YearMonth) bool { return ym.index() > other.index() }

// MonthsUntil returns the signed number of months from ym to other.
func (ym YearMonth) MonthsUntil(other YearMonth) int { return other.index() - ym.index() }

func (ym YearMonth) String() string {
	if ym.IsZero() {
		return ""
	}
	return fmt.Sprintf("%04d-%02d", ym.Year, int(ym.Month))
}

func (ym YearMonth) MarshalJSON() ([]byte, error) {
	return json.Marshal(ym.String())
}

func (ym *YearMonth) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInvalidInput, "expiration must be a string")
	}
	parsed, err := ParseYearMonth(s)
	if err != nil {
		return err
	}
	*ym = parsed
	return nil
}
