package analysis

import (
	"math"
	"sort"

	"github.com/KaramelBytes/dataloom-cli/internal/dataset"
)

// Info is the shape metadata of a frame, independent of cell types.
type Info struct {
	RowCount    int      `json:"rowCount"`
	ColumnCount int      `json:"columnCount"`
	ColumnNames []string `json:"columnNames"`
}

// ColumnStats mirrors the usual describe() output over one numeric column.
type ColumnStats struct {
	Count  float64 `json:"count"`
	Mean   float64 `json:"mean"`
	Std    float64 `json:"std"`
	Min    float64 `json:"min"`
	Q1     float64 `json:"25%"`
	Median float64 `json:"50%"`
	Q3     float64 `json:"75%"`
	Max    float64 `json:"max"`
}

// DatasetInfo computes row count, column count and column names.
func DatasetInfo(f *dataset.Frame) Info {
	return Info{
		RowCount:    f.Rows,
		ColumnCount: len(f.Cols),
		ColumnNames: f.ColumnNames(),
	}
}

// Describe computes descriptive statistics for every numeric column with at
// least one value. Std is the sample deviation and 0 when fewer than two
// values exist, keeping the result JSON-safe.
func Describe(f *dataset.Frame) map[string]ColumnStats {
	out := make(map[string]ColumnStats)
	for _, c := range f.NumericColumns() {
		vals := c.Values()
		if len(vals) == 0 {
			continue
		}
		out[c.Name] = describeValues(vals)
	}
	return out
}

func describeValues(vals []float64) ColumnStats {
	var n int
	var mean, m2 float64
	mn, mx := vals[0], vals[0]
	for _, x := range vals {
		n++
		if x < mn {
			mn = x
		}
		if x > mx {
			mx = x
		}
		delta := x - mean
		mean += delta / float64(n)
		m2 += delta * (x - mean)
	}
	std := 0.0
	if n > 1 {
		std = math.Sqrt(m2 / float64(n-1))
	}
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)
	return ColumnStats{
		Count:  float64(n),
		Mean:   mean,
		Std:    std,
		Min:    mn,
		Q1:     quantile(sorted, 0.25),
		Median: quantile(sorted, 0.5),
		Q3:     quantile(sorted, 0.75),
		Max:    mx,
	}
}

// quantile interpolates linearly between closest ranks of a sorted slice.
func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	w := pos - float64(lo)
	return sorted[lo]*(1-w) + sorted[hi]*w
}
