package analysis

import (
	"math"

	"github.com/KaramelBytes/dataloom-cli/internal/dataset"
)

// CorrMatrix is a symmetric Pearson correlation matrix over the numeric
// columns, in frame order.
type CorrMatrix struct {
	Columns []string    `json:"columns"`
	Values  [][]float64 `json:"values"`
}

type pairAcc struct {
	n, sumX, sumY, sumXX, sumYY, sumXY float64
}

// Correlation computes pairwise-complete Pearson coefficients: each pair
// uses only the rows where both cells are present. Coefficients are clamped
// to [-1, 1]; pairs with fewer than two shared rows or zero variance get 0.
// The diagonal is always 1.
func Correlation(f *dataset.Frame) *CorrMatrix {
	cols := f.NumericColumns()
	n := len(cols)
	names := make([]string, n)
	for i, c := range cols {
		names[i] = c.Name
	}
	accs := make([]pairAcc, n*n)
	for r := 0; r < f.Rows; r++ {
		for a := 0; a < n; a++ {
			if cols[a].Missing[r] {
				continue
			}
			x := cols[a].Nums[r]
			for b := a + 1; b < n; b++ {
				if cols[b].Missing[r] {
					continue
				}
				y := cols[b].Nums[r]
				pa := &accs[a*n+b]
				pa.n++
				pa.sumX += x
				pa.sumY += y
				pa.sumXX += x * x
				pa.sumYY += y * y
				pa.sumXY += x * y
			}
		}
	}
	vals := make([][]float64, n)
	for i := range vals {
		vals[i] = make([]float64, n)
		vals[i][i] = 1
	}
	for a := 0; a < n; a++ {
		for b := a + 1; b < n; b++ {
			pa := &accs[a*n+b]
			var r float64
			if pa.n >= 2 {
				denom := math.Sqrt((pa.n*pa.sumXX - pa.sumX*pa.sumX) * (pa.n*pa.sumYY - pa.sumY*pa.sumY))
				if denom != 0 {
					r = (pa.n*pa.sumXY - pa.sumX*pa.sumY) / denom
				}
				if r > 1 {
					r = 1
				} else if r < -1 {
					r = -1
				}
				if math.IsNaN(r) || math.IsInf(r, 0) {
					r = 0
				}
			}
			vals[a][b] = r
			vals[b][a] = r
		}
	}
	return &CorrMatrix{Columns: names, Values: vals}
}
