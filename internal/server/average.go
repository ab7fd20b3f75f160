package server

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// NotApplicable is what clients display when a revealed round contains no
// numeric votes.
const NotApplicable = "N/A"

// AggregateResult is the outcome of averaging a round's votes. The zero
// value is the not-applicable sentinel.
type AggregateResult struct {
	value      float64
	applicable bool
}

func (a AggregateResult) Applicable() bool {
	return a.applicable
}

// String renders the average with exactly two fraction digits, or the
// not-applicable sentinel.
func (a AggregateResult) String() string {
	if !a.applicable {
		return NotApplicable
	}
	return strconv.FormatFloat(a.value, 'f', 2, 64)
}

func (a AggregateResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// Average computes the arithmetic mean of the votes that parse as finite
// decimal numbers, rounded half-up to two decimal places. Tokens like "∞"
// or "?" still count as cast votes but are excluded from the numeric set.
// If no vote is numeric the result is the not-applicable sentinel, never
// zero. The result does not depend on map iteration order.
func Average(votes map[string]string) AggregateResult {
	var sum float64
	var count int
	for _, raw := range votes {
		v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil || math.IsInf(v, 0) || math.IsNaN(v) {
			continue
		}
		sum += v
		count++
	}

	if count == 0 {
		return AggregateResult{}
	}

	mean := sum / float64(count)
	return AggregateResult{
		value:      math.Round(mean*100) / 100,
		applicable: true,
	}
}
