package session

import (
	"fmt"
	"math"
	"strings"
	"time"
)

const nothingDetected = "nothing detected"

// Share is one label's part of a session.
type Share struct {
	Label    string        `json:"label"`
	Duration time.Duration `json:"duration"`
	Percent  float64       `json:"percent"`
}

// Summary holds the non-neutral shares in order of first appearance.
type Summary struct {
	Shares []Share       `json:"shares"`
	Total  time.Duration `json:"total"`
}

// Summarize sums each label's time across intervals, skipping neutral, and
// rounds each share to one decimal place.
func Summarize(log []Interval, neutral string) Summary {
	var sum Summary
	index := make(map[string]int)

	for _, iv := range log {
		if strings.EqualFold(iv.Label, neutral) {
			continue
		}
		d := iv.Duration()
		if d <= 0 {
			continue
		}

		i, ok := index[iv.Label]
		if !ok {
			i = len(sum.Shares)
			index[iv.Label] = i
			sum.Shares = append(sum.Shares, Share{Label: iv.Label})
		}
		sum.Shares[i].Duration += d
		sum.Total += d
	}

	if sum.Total == 0 {
		return Summary{}
	}

	for i := range sum.Shares {
		pct := float64(sum.Shares[i].Duration) / float64(sum.Total) * 100
		sum.Shares[i].Percent = math.Round(pct*10) / 10
	}
	return sum
}

func (s Summary) Empty() bool {
	return len(s.Shares) == 0
}

// Percentages formats every share with one decimal, e.g. "50.0".
func (s Summary) Percentages() map[string]string {
	out := make(map[string]string, len(s.Shares))
	for _, sh := range s.Shares {
		out[sh.Label] = fmt.Sprintf("%.1f", sh.Percent)
	}
	return out
}

func (s Summary) String() string {
	if s.Empty() {
		return nothingDetected
	}

	parts := make([]string, len(s.Shares))
	for i, sh := range s.Shares {
		parts[i] = fmt.Sprintf("%s: %.1f%%", sh.Label, sh.Percent)
	}
	return strings.Join(parts, ", ")
}
