// Package redistribute spreads weekly conversion predictions back onto the
// days of each week, weighted by each day's share of the week's clicks.
package redistribute

import (
	"errors"
	"fmt"
	"math"
)

// DaysPerBucket is the bucket width. Buckets start at index 0 and the last
// one may be shorter.
const DaysPerBucket = 7

// Model maps a weekly click total to a predicted weekly conversion count.
// The prediction may be negative or fractional.
type Model interface {
	Predict(weeklyClicks float64) (float64, error)
}

// PredictorFunc adapts a plain function to Model.
type PredictorFunc func(weeklyClicks float64) (float64, error)

func (f PredictorFunc) Predict(x float64) (float64, error) { return f(x) }

type MissingPolicy int

const (
	// MissingAsZero counts a missing (NaN) day as zero clicks.
	MissingAsZero MissingPolicy = iota
	// MissingReject fails the call with ErrInputShape.
	MissingReject
)

type ZeroBucketPolicy int

const (
	// ZeroFill outputs zero for every day of a bucket with no clicks.
	ZeroFill ZeroBucketPolicy = iota
	// EvenSplit divides the clamped prediction evenly over the bucket's days.
	EvenSplit
	// Reject fails the call with ErrDegenerateBucket.
	Reject
)

type Options struct {
	Missing    MissingPolicy
	ZeroBucket ZeroBucketPolicy
}

var (
	ErrInputShape       = errors.New("redistribute: invalid daily clicks")
	ErrDegenerateBucket = errors.New("redistribute: bucket has zero clicks")
)

// ModelInvocationError wraps a failure returned by the weekly model.
type ModelInvocationError struct {
	Bucket int
	Total  float64
	Err    error
}

func (e *ModelInvocationError) Error() string {
	return fmt.Sprintf("redistribute: model failed on bucket %d (clicks=%g): %v", e.Bucket, e.Total, e.Err)
}

func (e *ModelInvocationError) Unwrap() error { return e.Err }

// Redistribute calls m once per 7-day bucket of dailyClicks and splits the
// zero-clamped prediction across the bucket's days in proportion to clicks.
// The result has the same length as dailyClicks.
func Redistribute(m Model, dailyClicks []float64, opts Options) ([]float64, error) {
	if m == nil {
		return nil, errors.New("redistribute: nil model")
	}
	if err := validate(dailyClicks, opts.Missing); err != nil {
		return nil, err
	}

	out := make([]float64, len(dailyClicks))
	for b, start := 0, 0; start < len(dailyClicks); b, start = b+1, start+DaysPerBucket {
		end := min(start+DaysPerBucket, len(dailyClicks))
		days := dailyClicks[start:end]
		total := BucketTotal(days)

		predicted, err := m.Predict(total)
		if err != nil {
			return nil, &ModelInvocationError{Bucket: b, Total: total, Err: err}
		}
		if math.IsNaN(predicted) || math.IsInf(predicted, 0) {
			return nil, &ModelInvocationError{Bucket: b, Total: total, Err: fmt.Errorf("prediction is %g", predicted)}
		}
		predicted = math.Max(predicted, 0)

		if total == 0 {
			switch opts.ZeroBucket {
			case Reject:
				return nil, fmt.Errorf("%w: bucket %d starting at day %d", ErrDegenerateBucket, b, start)
			case EvenSplit:
				share := predicted / float64(len(days))
				for i := range days {
					out[start+i] = share
				}
			}
			// ZeroFill leaves the zero values from make.
			continue
		}
		for i, c := range days {
			if math.IsNaN(c) {
				continue
			}
			out[start+i] = predicted * (c / total)
		}
	}
	return out, nil
}

// BucketTotal sums a bucket ignoring missing (NaN) days.
func BucketTotal(days []float64) float64 {
	var s float64
	for _, c := range days {
		if !math.IsNaN(c) {
			s += c
		}
	}
	return s
}

// Buckets returns the [start,end) index pairs of the 7-day buckets for n days.
func Buckets(n int) [][2]int {
	out := make([][2]int, 0, (n+DaysPerBucket-1)/DaysPerBucket)
	for start := 0; start < n; start += DaysPerBucket {
		out = append(out, [2]int{start, min(start+DaysPerBucket, n)})
	}
	return out
}

func validate(clicks []float64, p MissingPolicy) error {
	if len(clicks) == 0 {
		return fmt.Errorf("%w: empty sequence", ErrInputShape)
	}
	for i, c := range clicks {
		switch {
		case math.IsNaN(c):
			if p == MissingReject {
				return fmt.Errorf("%w: missing value at day %d", ErrInputShape, i)
			}
		case math.IsInf(c, 0):
			return fmt.Errorf("%w: non-finite value at day %d", ErrInputShape, i)
		case c < 0:
			return fmt.Errorf("%w: negative value %g at day %d", ErrInputShape, c, i)
		}
	}
	return nil
}

// ParseMissingPolicy maps a config string to a MissingPolicy.
func ParseMissingPolicy(s string) (MissingPolicy, error) {
	switch s {
	case "", "zero":
		return MissingAsZero, nil
	case "reject":
		return MissingReject, nil
	}
	return 0, fmt.Errorf("unknown missing policy %q", s)
}

// ParseZeroBucketPolicy maps a config string to a ZeroBucketPolicy.
func ParseZeroBucketPolicy(s string) (ZeroBucketPolicy, error) {
	switch s {
	case "", "zero":
		return ZeroFill, nil
	case "even":
		return EvenSplit, nil
	case "reject":
		return Reject, nil
	}
	return 0, fmt.Errorf("unknown zero bucket policy %q", s)
}
