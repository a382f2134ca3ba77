package parse

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseNumber(t *testing.T) {
	tests := []struct {
		name string
		raw  any
		want float64
	}{
		{"thousands separator", "1,234.5", 1234.5},
		{"padded", "  157,047 ", 157047},
		{"dash", "-", 0},
		{"empty", "", 0},
		{"garbage", "n/a", 0},
		{"currency", "$2,500", 2500},
		{"negative", "-12.5", -12.5},
		{"float", 42.25, 42.25},
		{"int", 7, 7},
		{"json number", json.Number("3.5"), 3.5},
		{"nil", nil, 0},
		{"bool", true, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseNumber(tt.raw))
		})
	}
}

func TestParseInt(t *testing.T) {
	tests := []struct {
		name string
		raw  any
		want int64
	}{
		{"count", "157,047", 157047},
		{"truncates", "12.9", 12},
		{"negative", "-3.5", -3},
		{"huge", "1e30", 0},
		{"huge negative", "-1e30", 0},
		{"float beyond int64", 9.3e18, 0},
		{"garbage", "n/a", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseInt(tt.raw))
		})
	}
}

func TestParsePercentage(t *testing.T) {
	assert.Equal(t, 0.125, ParsePercentage("12.5%"))
	assert.Equal(t, 0.125, ParsePercentage(" 12.5 % "))
	assert.Equal(t, 0.3, ParsePercentage(0.3))
	assert.InDelta(t, 0.05, ParsePercentage("5"), 1e-12)
	assert.Equal(t, 0.0, ParsePercentage("-"))
	assert.Equal(t, 0.0, ParsePercentage(""))
	assert.Equal(t, 0.0, ParsePercentage("abc%"))
}

func TestParseRatio(t *testing.T) {
	assert.Equal(t, 1.5, ParseRatio("1.5"))
	assert.Equal(t, 1.5, ParseRatio("150%"))
	assert.Equal(t, 2.0, ParseRatio(2.0))
}

func TestNormalizeDate(t *testing.T) {
	tests := []struct {
		name string
		raw  any
		want string
	}{
		{"serial", 45000.0, "2023-03-15"},
		{"serial int", 45292, "2024-01-01"},
		{"serial with time fraction", 45292.75, "2024-01-01"},
		{"iso", "2024-01-05", "2024-01-05"},
		{"iso padded", " 2024-01-05 ", "2024-01-05"},
		{"rfc3339 utc", "2024-01-05T10:00:00.000Z", "2024-01-05"},
		{"rfc3339 offset", "2024-01-05T01:00:00+09:00", "2024-01-04"},
		{"slashes", "2024/1/5", "2024-01-05"},
		{"dotted", "2024. 1. 5.", "2024-01-05"},
		{"us", "01/05/2024", "2024-01-05"},
		{"compact", "20240105", "2024-01-05"},
		{"long", "Jan 5, 2024", "2024-01-05"},
		{"time value", time.Date(2024, 2, 29, 23, 0, 0, 0, time.UTC), "2024-02-29"},
		{"garbage", "yesterday", ""},
		{"empty", "", ""},
		{"zero serial", 0, ""},
		{"nil", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeDate(tt.raw))
		})
	}
}

func TestSerialEpoch(t *testing.T) {
	// 25569 is 1970-01-01 in the 1899-12-30 based serial scheme
	assert.Equal(t, time.Unix(0, 0).UTC(), SerialToTime(25569))
	assert.Equal(t, "1899-12-31", SerialToTime(1).Format("2006-01-02"))
}
