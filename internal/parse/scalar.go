// Package parse converts raw spreadsheet and API cells into numbers and dates.
// None of these functions fail: unusable input degrades to 0 or "".
package parse

import (
	"math"
	"strconv"
	"strings"
	"time"
)

const (
	// days between the spreadsheet epoch (1899-12-30) and 1970-01-01
	serialEpochOffset = 25569
	secondsPerDay     = 86400
	dateLayout        = "2006-01-02"
)

var dateLayouts = []string{
	dateLayout,
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006/01/02",
	"2006/1/2",
	"2006.01.02",
	"2006. 1. 2",
	"2006. 1. 2.",
	"01/02/2006",
	"1/2/2006",
	"20060102",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
}

// ParseNumber accepts numbers directly or strings such as " 157,047 " and
// "$1,234.50". Empty, "-" and unparsable input yield 0.
func ParseNumber(raw any) float64 {
	if f, ok := asFloat(raw); ok {
		return finite(f)
	}
	s, ok := raw.(string)
	if !ok {
		return 0
	}
	s = strings.TrimSpace(s)
	if s == "" || s == "-" {
		return 0
	}
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimPrefix(s, "$")
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return finite(f)
}

// ParsePercentage treats numbers as fractions already and strings as percent
// values: "12.5%" and "12.5" both become 0.125.
func ParsePercentage(raw any) float64 {
	if f, ok := asFloat(raw); ok {
		return finite(f)
	}
	s, ok := raw.(string)
	if !ok {
		return 0
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSpace(strings.TrimSuffix(s, "%"))
	if s == "" || s == "-" {
		return 0
	}
	return ParseNumber(s) / 100
}

// ParseRatio reads a plain multiplier ("1.5") or a percentage ("150%").
func ParseRatio(raw any) float64 {
	if s, ok := raw.(string); ok && strings.HasSuffix(strings.TrimSpace(s), "%") {
		return ParsePercentage(s)
	}
	return ParseNumber(raw)
}

// ParseInt is ParseNumber truncated toward zero. Values outside the int64
// range read as 0.
func ParseInt(raw any) int64 {
	f := ParseNumber(raw)
	if f >= math.MaxInt64 || f < math.MinInt64 {
		return 0
	}
	return int64(f)
}

// NormalizeDate returns YYYY-MM-DD for a time value, a spreadsheet serial day
// number or a date string, and "" when nothing usable is found.
func NormalizeDate(raw any) string {
	switch v := raw.(type) {
	case nil:
		return ""
	case time.Time:
		if v.IsZero() {
			return ""
		}
		return v.Format(dateLayout)
	case *time.Time:
		if v == nil || v.IsZero() {
			return ""
		}
		return v.Format(dateLayout)
	case string:
		return normalizeDateString(v)
	}
	if f, ok := asFloat(raw); ok {
		return fromSerial(f)
	}
	return ""
}

// SerialToTime converts a spreadsheet serial day number to a UTC time.
func SerialToTime(serial float64) time.Time {
	secs := (serial - serialEpochOffset) * secondsPerDay
	return time.Unix(int64(math.Round(secs)), 0).UTC()
}

func fromSerial(f float64) string {
	if math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 {
		return ""
	}
	return SerialToTime(f).Format(dateLayout)
}

func normalizeDateString(s string) string {
	s = strings.TrimSpace(s)
	if s == "" || s == "-" {
		return ""
	}
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		if strings.Contains(layout, "Z07") {
			t = t.UTC()
		}
		return t.Format(dateLayout)
	}
	return ""
}

func asFloat(raw any) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	case interface{ Float64() (float64, error) }: // json.Number
		f, err := v.Float64()
		return f, err == nil
	}
	return 0, false
}

func finite(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}
