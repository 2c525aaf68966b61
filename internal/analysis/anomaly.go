package analysis

import (
	"sort"

	"github.com/KaramelBytes/dataloom-cli/internal/dataset"
)

// Anomalies counts IQR outliers per numeric column: values outside
// [Q1 - 1.5*IQR, Q3 + 1.5*IQR]. Zero-variance and all-missing columns
// yield 0; non-numeric columns do not appear.
func Anomalies(f *dataset.Frame) map[string]int {
	out := make(map[string]int)
	for _, c := range f.NumericColumns() {
		vals := c.Values()
		if len(vals) == 0 {
			out[c.Name] = 0
			continue
		}
		sorted := append([]float64(nil), vals...)
		sort.Float64s(sorted)
		q1 := quantile(sorted, 0.25)
		q3 := quantile(sorted, 0.75)
		iqr := q3 - q1
		lo := q1 - 1.5*iqr
		hi := q3 + 1.5*iqr
		count := 0
		for _, x := range vals {
			if x < lo || x > hi {
				count++
			}
		}
		out[c.Name] = count
	}
	return out
}
