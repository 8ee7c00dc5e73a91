package history

import (
	"fishda-monitor/internal/models"
)

// Summary holds the statistics for one parameter. No rounding is applied.
type Summary struct {
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Avg   float64 `json:"avg"`
	Count int     `json:"count"`
}

// Statistics maps each parameter with at least one present value to its summary
type Statistics map[models.Parameter]Summary

// Aggregate computes per-parameter min, max and mean over present values.
// Parameters with no present values are omitted.
func Aggregate(readings []models.Reading) Statistics {
	stats := make(Statistics)
	sums := make(map[models.Parameter]float64)

	for _, r := range readings {
		for _, p := range models.Parameters {
			v := r.Value(p)
			if v == nil {
				continue
			}

			s, seen := stats[p]
			if !seen {
				s = Summary{Min: *v, Max: *v}
			}
			if *v < s.Min {
				s.Min = *v
			}
			if *v > s.Max {
				s.Max = *v
			}
			s.Count++
			sums[p] += *v
			stats[p] = s
		}
	}

	for p, s := range stats {
		s.Avg = sums[p] / float64(s.Count)
		stats[p] = s
	}

	return stats
}
