package format

import (
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAge(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		created time.Time
		want    string
	}{
		{"seconds", now.Add(-59 * time.Second), "59s"},
		{"one minute", now.Add(-60 * time.Second), "1m"},
		{"ninety minutes", now.Add(-90 * time.Minute), "1h"},
		{"just under a day", now.Add(-23*time.Hour - 59*time.Minute), "23h"},
		{"two days", now.Add(-48 * time.Hour), "2d"},
		{"future clamps to zero", now.Add(5 * time.Second), "0s"},
		{"missing", time.Time{}, NA},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Age(tt.created, now))
		})
	}
}

func TestMagnitude(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"2500000", "$2.5M"},
		{"950", "$950"},
		{"0", "$0"},
		{"", NA},
		{"abc", NA},
		{"NaN", NA},
		{"1234", "$1.2K"},
		{"3400000000", "$3.4B"},
		{"999.4", "$999"},
		{"-1500", "-$1.5K"},
		{"999.6", "$1.0K"},
		{"999960", "$1.0M"},
		{"999960000", "$1.0B"},
		{"-999960", "-$1.0M"},
		{"2500000000000", "$2500.0B"},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, Magnitude(tt.raw))
		})
	}
}

func TestMagnitudeFloatNonFinite(t *testing.T) {
	assert.Equal(t, NA, MagnitudeFloat(math.NaN()))
	assert.Equal(t, NA, MagnitudeFloat(math.Inf(1)))
}

func TestSupply(t *testing.T) {
	fixed := map[int]string{
		0: "10", 3: "1K", 4: "10K", 5: "100K", 6: "1M", 7: "10M", 8: "100M", 9: "1B",
	}
	for decimals, want := range fixed {
		d := decimals
		assert.Equal(t, want, Supply(&d), "decimals=%d", d)
	}

	for _, d := range []int{1, 2, 10, 18} {
		d := d
		assert.Equal(t, fmt.Sprintf("10^%d", d), Supply(&d))
	}

	assert.Equal(t, NA, Supply(nil))
}

func TestPrice(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"1.23456789", "$1.234567"},
		{"42", "$42.000000"},
		{"0.05", "$0.050000"},
		{"0.001234567", "$0.001234"},
		{"0.0001234567", "$0.0₃123"},
		{"0.0000123", "$0.0₄123"},
		{"0.00000000000012", "$0.0₁₂12"},
		{"0.000100", "$0.0₃1"},
		{"0", "$0"},
		{"", NA},
		{"-1", NA},
		{"junk", NA},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, Price(tt.raw))
		})
	}
}

func TestPercent(t *testing.T) {
	assert.Equal(t, "-12.5%", Percent("-12.5"))
	assert.Equal(t, "3%", Percent("3"))
	assert.Equal(t, NA, Percent(""))
	assert.Equal(t, NA, Percent("n/a"))
}
