package analysis

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/sartorproj/goarima/stats"
	"github.com/sartorproj/goarima/timeseries"
	"gonum.org/v1/gonum/stat"
)

// Decomposition methods.
const (
	MethodSTL       = "stl"
	MethodClassical = "classical"
)

// Decomposition is an additive split of a series into trend, seasonal and
// residual parts. For the classical method Trend and Resid are NaN where the
// centred average is undefined.
type Decomposition struct {
	Method   string    `json:"method" yaml:"method"`
	Period   int       `json:"period" yaml:"period"`
	Trend    []float64 `json:"trend" yaml:"trend"`
	Seasonal []float64 `json:"seasonal" yaml:"seasonal"`
	Resid    []float64 `json:"resid" yaml:"resid"`
	// Index holds one seasonal offset per position in the cycle.
	Index    []float64 `json:"index" yaml:"index"`
	Strength float64   `json:"strength" yaml:"strength"`
}

// Decompose runs a classical additive decomposition: centred moving-average
// trend, per-position mean of the detrended series and the remainder.
func Decompose(xs []float64, period int) (Decomposition, error) {
	return DecomposeWith(MethodClassical, xs, period)
}

// DecomposeWith decomposes xs with the named method ("stl" or "classical",
// empty means stl). STL smooths the trend with loess-style weights and two
// robustness passes.
func DecomposeWith(method string, xs []float64, period int) (Decomposition, error) {
	if period < 2 || len(xs) < 2*period {
		return Decomposition{}, fmt.Errorf("analysis: decomposition needs 2 full periods of %d, got %d values", period, len(xs))
	}
	ts := &timeseries.Series{Values: xs}

	switch m := strings.ToLower(method); m {
	case "", MethodSTL:
		res := stats.STL(ts, period, 2)
		if res == nil {
			return Decomposition{}, fmt.Errorf("analysis: stl failed for %d values", len(xs))
		}
		return newDecomposition(MethodSTL, period, res.Trend.Values, res.Seasonal.Values, res.Residual.Values), nil
	case MethodClassical:
		res := stats.Decompose(ts, period, "additive")
		if res == nil {
			return Decomposition{}, fmt.Errorf("analysis: decomposition failed for %d values", len(xs))
		}
		return newDecomposition(MethodClassical, period, res.Trend.Values, res.Seasonal.Values, res.Residual.Values), nil
	default:
		return Decomposition{}, fmt.Errorf("analysis: unknown decomposition method %q", method)
	}
}

// newDecomposition derives the seasonal index and the seasonal strength
// max(0, 1 - Var(resid)/Var(seasonal+resid)).
func newDecomposition(method string, period int, trend, seasonal, resid []float64) Decomposition {
	d := Decomposition{
		Method:   method,
		Period:   period,
		Trend:    trend,
		Seasonal: seasonal,
		Resid:    resid,
		Index:    append([]float64(nil), seasonal[:period]...),
	}
	var r, sr []float64
	for i, v := range resid {
		if !math.IsNaN(v) {
			r = append(r, v)
			sr = append(sr, v+seasonal[i])
		}
	}
	if len(r) > 1 {
		if v := stat.Variance(sr, nil); v > 0 {
			d.Strength = math.Max(0, 1-stat.Variance(r, nil)/v)
		}
	}
	return d
}

// MarshalJSON writes the undefined ends of Trend and Resid as null.
func (d Decomposition) MarshalJSON() ([]byte, error) {
	type plain Decomposition
	return json.Marshal(struct {
		plain
		Trend []*float64 `json:"trend"`
		Resid []*float64 `json:"resid"`
	}{plain(d), nullable(d.Trend), nullable(d.Resid)})
}

// WeekdayIndex labels a period-7 index by weekday, given the first date of
// the decomposed series.
func (d Decomposition) WeekdayIndex(start time.Time) map[string]float64 {
	if d.Period != 7 {
		return nil
	}
	out := make(map[string]float64, 7)
	for k, v := range d.Index {
		out[start.AddDate(0, 0, k).Weekday().String()] = v
	}
	return out
}
