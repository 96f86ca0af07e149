package forecast

import (
	"math"

	"github.com/AngelCh415/adforecast/internal/models"
	"github.com/AngelCh415/adforecast/internal/redistribute"
)

// AggregateWeekly sums clicks and conversions over the same 7-day buckets
// the redistributor uses. Missing clicks count as zero.
func AggregateWeekly(recs []models.DailyRecord) []models.WeeklyTotal {
	out := make([]models.WeeklyTotal, 0, len(recs)/redistribute.DaysPerBucket+1)
	for _, b := range redistribute.Buckets(len(recs)) {
		w := models.WeeklyTotal{Start: recs[b[0]].Date, Days: b[1] - b[0]}
		for _, r := range recs[b[0]:b[1]] {
			if !math.IsNaN(r.Clicks) {
				w.Clicks += r.Clicks
			}
			w.Conversions += float64(r.Conversions)
		}
		out = append(out, w)
	}
	return out
}

// fullWeeks drops a trailing partial bucket and returns clicks and conversions.
func fullWeeks(weeks []models.WeeklyTotal) (x, y []float64) {
	for _, w := range weeks {
		if w.Days != redistribute.DaysPerBucket {
			continue
		}
		x = append(x, w.Clicks)
		y = append(y, w.Conversions)
	}
	return x, y
}

// Interpolate returns a copy of xs with NaN runs filled linearly between
// their neighbours; leading and trailing runs take the nearest value.
func Interpolate(xs []float64) []float64 {
	out := append([]float64(nil), xs...)
	prev := -1
	for i := 0; i <= len(out); i++ {
		if i < len(out) && math.IsNaN(out[i]) {
			continue
		}
		if gap := i - prev - 1; gap > 0 {
			for j := prev + 1; j < i; j++ {
				switch {
				case prev < 0 && i >= len(out):
					out[j] = 0
				case prev < 0:
					out[j] = out[i]
				case i >= len(out):
					out[j] = out[prev]
				default:
					frac := float64(j-prev) / float64(i-prev)
					out[j] = out[prev] + frac*(out[i]-out[prev])
				}
			}
		}
		prev = i
	}
	return out
}
