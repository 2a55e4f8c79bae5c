// Package stats provides pure score statistics helpers: mean and sample
// standard deviation, percentile interpolation, grade-distribution
// bucketing and competition ranking. Functions here never touch storage,
// which keeps them trivially unit testable.
package stats

import (
	"fmt"
	"math"
	"sort"
)

// relTolerance matches scores that differ only by floating point noise.
const relTolerance = 1e-9

// Summary holds the mean and sample standard deviation of a sequence.
type Summary struct {
	Mean  float64 `json:"mean"`
	Stdev float64 `json:"stdev"`
}

// Distribution counts scores per percentage bucket of the maximum score.
type Distribution struct {
	Top       int `json:"top"`       // >= 95%
	Excellent int `json:"excellent"` // [85%, 95%)
	Good      int `json:"good"`      // [70%, 85%)
	Pass      int `json:"pass"`      // [60%, 70%)
	Fail      int `json:"fail"`      // < 60%
}

// Total returns the number of bucketed values.
func (d Distribution) Total() int {
	return d.Top + d.Excellent + d.Good + d.Pass + d.Fail
}

// Ranked pairs an input value with its competition rank.
type Ranked struct {
	Value float64
	Rank  int
}

// MeanStdev computes the mean and sample standard deviation (n-1
// denominator). Empty input yields {0, 0}; a single value yields a zero
// stdev since no sample variance is definable.
func MeanStdev(values []float64) Summary {
	if len(values) == 0 {
		return Summary{}
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))
	if len(values) < 2 {
		return Summary{Mean: mean}
	}
	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}
	return Summary{Mean: mean, Stdev: math.Sqrt(sq / float64(len(values)-1))}
}

// Distribute buckets scores by their percentage of maxScore. A nil-ish max
// (<= 0) conservatively counts every value into the lowest bucket so the
// totals still add up without dividing by zero.
func Distribute(values []float64, maxScore float64) Distribution {
	var d Distribution
	if maxScore <= 0 {
		d.Fail = len(values)
		return d
	}
	for _, v := range values {
		switch pct := v / maxScore; {
		case pct >= 0.95:
			d.Top++
		case pct >= 0.85:
			d.Excellent++
		case pct >= 0.70:
			d.Good++
		case pct >= 0.60:
			d.Pass++
		default:
			d.Fail++
		}
	}
	return d
}

// Percentiles computes the requested percentiles using linear interpolation
// between the closest ranks. Empty input returns 0 for every requested
// percentile. A percentile outside [0, 100] is an error.
func Percentiles(values []float64, percentiles []float64) (map[float64]float64, error) {
	for _, p := range percentiles {
		if p < 0 || p > 100 {
			return nil, fmt.Errorf("percentile %v out of range [0, 100]", p)
		}
	}
	result := make(map[float64]float64, len(percentiles))
	if len(values) == 0 {
		for _, p := range percentiles {
			result[p] = 0
		}
		return result, nil
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	n := len(sorted)
	for _, p := range percentiles {
		k := float64(n-1) * p / 100
		f := math.Floor(k)
		c := math.Ceil(k)
		if f == c {
			result[p] = sorted[int(k)]
			continue
		}
		result[p] = sorted[int(f)]*(c-k) + sorted[int(c)]*(k-f)
	}
	return result, nil
}

// CompetitionRank assigns standard competition ranks over values, preserving
// input order in the output: tied values share a rank and the rank after a
// tied group jumps by the group size, e.g. 95,95,90 -> 1,1,3. Ties are
// compared with a relative tolerance to avoid floating point false
// negatives.
func CompetitionRank(values []float64) []Ranked {
	n := len(values)
	out := make([]Ranked, n)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return values[idx[a]] > values[idx[b]]
	})
	rank := 1
	for pos, i := range idx {
		if pos > 0 && !Close(values[i], values[idx[pos-1]]) {
			rank = pos + 1
		}
		out[i] = Ranked{Value: values[i], Rank: rank}
	}
	return out
}

// Close reports whether two scores are equal within the relative tolerance.
func Close(a, b float64) bool {
	if a == b {
		return true
	}
	return math.Abs(a-b) <= relTolerance*math.Max(math.Abs(a), math.Abs(b))
}
