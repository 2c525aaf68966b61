package dataset

import "time"

// Kind is the semantic type of a column, decided once at load time.
// Later stages dispatch on it instead of re-inspecting cell values.
type Kind int

const (
	KindNumeric Kind = iota
	KindText
	KindTemporal
)

func (k Kind) String() string {
	switch k {
	case KindNumeric:
		return "numeric"
	case KindTemporal:
		return "temporal"
	default:
		return "text"
	}
}

// Column holds one named column with typed cell storage. Exactly one of
// Nums, Strs, Times is populated, matching Kind; Missing marks empty cells
// row by row.
type Column struct {
	Name    string
	Kind    Kind
	Missing []bool
	Nums    []float64
	Strs    []string
	Times   []time.Time
}

// MissingCount returns the number of missing cells.
func (c *Column) MissingCount() int {
	n := 0
	for _, m := range c.Missing {
		if m {
			n++
		}
	}
	return n
}

// Values returns the non-missing numeric values in row order.
// It returns nil for non-numeric columns.
func (c *Column) Values() []float64 {
	if c.Kind != KindNumeric {
		return nil
	}
	out := make([]float64, 0, len(c.Nums))
	for i, m := range c.Missing {
		if m {
			continue
		}
		out = append(out, c.Nums[i])
	}
	return out
}

// Frame is the in-memory table produced by Load. A Frame is never modified
// after Load returns; every pipeline stage reads it only.
type Frame struct {
	Cols []Column
	Rows int
}

// NumericColumns returns pointers to the numeric columns in frame order.
func (f *Frame) NumericColumns() []*Column {
	var out []*Column
	for i := range f.Cols {
		if f.Cols[i].Kind == KindNumeric {
			out = append(out, &f.Cols[i])
		}
	}
	return out
}

// ColumnNames returns all column names in frame order.
func (f *Frame) ColumnNames() []string {
	names := make([]string, len(f.Cols))
	for i := range f.Cols {
		names[i] = f.Cols[i].Name
	}
	return names
}
