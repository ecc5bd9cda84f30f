// Package format renders raw listing fields into display strings.
package format

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// NA is rendered for absent or unparseable inputs.
const NA = "N/A"

// Age renders the time elapsed since created using its single largest whole unit.
func Age(created, now time.Time) string {
	if created.IsZero() {
		return NA
	}
	secs := int64(now.Sub(created) / time.Second)
	if secs < 0 {
		secs = 0
	}
	if secs < 60 {
		return fmt.Sprintf("%ds", secs)
	}
	mins := secs / 60
	if mins < 60 {
		return fmt.Sprintf("%dm", mins)
	}
	hours := mins / 60
	if hours < 24 {
		return fmt.Sprintf("%dh", hours)
	}
	return fmt.Sprintf("%dd", hours/24)
}

// Magnitude parses a raw USD amount and renders it with a B/M/K suffix.
func Magnitude(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return NA
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return NA
	}
	return MagnitudeFloat(v)
}

var magnitudes = []struct {
	scale  float64
	suffix string
}{
	{1e3, "K"},
	{1e6, "M"},
	{1e9, "B"},
}

// MagnitudeFloat renders v with one decimal above 1e3 and as whole dollars below.
// The suffix is chosen after rounding, so 999,960 is $1.0M rather than $1000.0K.
func MagnitudeFloat(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return NA
	}
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	if whole := math.Round(v); whole < 1e3 {
		return fmt.Sprintf("%s$%.0f", sign, whole)
	}
	last := len(magnitudes) - 1
	for i, m := range magnitudes {
		scaled := math.Round(v/m.scale*10) / 10
		if scaled < 1e3 || i == last {
			return fmt.Sprintf("%s$%.1f%s", sign, scaled, m.suffix)
		}
	}
	return NA
}

var supplyClasses = map[int]string{
	0: "10",
	3: "1K",
	4: "10K",
	5: "100K",
	6: "1M",
	7: "10M",
	8: "100M",
	9: "1B",
}

// Supply maps token decimals to the supply class shown in the listing.
func Supply(decimals *int) string {
	if decimals == nil {
		return NA
	}
	if class, ok := supplyClasses[*decimals]; ok {
		return class
	}
	return fmt.Sprintf("10^%d", *decimals)
}

// Percent renders an upstream percentage string with a trailing %.
func Percent(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return NA
	}
	if _, err := strconv.ParseFloat(raw, 64); err != nil {
		return NA
	}
	return raw + "%"
}
