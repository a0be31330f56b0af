package airdata

import "sort"

// Summarize computes per-parameter statistics over a set of measurements:
// count, min, max, arithmetic mean, the unit of the first measurement seen
// for the parameter, and the most recent measurement time. The result is
// sorted by parameter name so responses are stable.
func Summarize(measurements []Measurement) []Summary {
	if len(measurements) == 0 {
		return []Summary{}
	}

	byParam := make(map[string]*Summary)
	sums := make(map[string]float64)

	for _, m := range measurements {
		s, ok := byParam[m.Parameter]
		if !ok {
			s = &Summary{
				Parameter:   m.Parameter,
				Min:         m.Value,
				Max:         m.Value,
				Unit:        m.Unit,
				LastUpdated: m.MeasuredAt,
			}
			byParam[m.Parameter] = s
		}

		if m.Value < s.Min {
			s.Min = m.Value
		}
		if m.Value > s.Max {
			s.Max = m.Value
		}
		if m.MeasuredAt.After(s.LastUpdated) {
			s.LastUpdated = m.MeasuredAt
		}
		s.Count++
		sums[m.Parameter] += m.Value
	}

	out := make([]Summary, 0, len(byParam))
	for param, s := range byParam {
		s.Avg = sums[param] / float64(s.Count)
		out = append(out, *s)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Parameter < out[j].Parameter })
	return out
}
