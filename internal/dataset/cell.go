package dataset

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// rawKind tags a cell before column kinds are decided.
type rawKind int

const (
	rawString rawKind = iota // untyped token, candidate for numeric/temporal parsing
	rawNumber                // pre-typed number (JSON)
	rawText                  // forced text (JSON bool, nested value)
)

type rawCell struct {
	missing bool
	kind    rawKind
	num     float64
	str     string
}

type rawColumn struct {
	name  string
	cells []rawCell
}

// isMissingToken reports whether a trimmed cell token stands for a missing value.
func isMissingToken(s string) bool {
	switch strings.ToLower(s) {
	case "", "na", "nan", "null", "n/a", "-":
		return true
	}
	return false
}

// buildFrame decides each column's kind and materializes typed storage.
// A column is numeric only if every non-missing cell parses as a number,
// temporal only if every non-missing cell parses as a time; anything mixed
// falls back to text. All-missing columns count as numeric so their stats
// surface as an empty series rather than vanishing.
func buildFrame(cols []rawColumn, rows int) *Frame {
	f := &Frame{Rows: rows, Cols: make([]Column, len(cols))}
	for i := range cols {
		f.Cols[i] = buildColumn(&cols[i])
	}
	return f
}

func buildColumn(rc *rawColumn) Column {
	n := len(rc.cells)
	// A zero-row column carries no evidence of a type and stays text.
	numeric, temporal := n > 0, n > 0
	nums := make([]float64, n)
	times := make([]time.Time, n)
	for i := range rc.cells {
		c := &rc.cells[i]
		if c.missing {
			continue
		}
		switch c.kind {
		case rawNumber:
			nums[i] = c.num
			temporal = false
		case rawString:
			if numeric {
				if x, ok := parseNumeric(c.str); ok {
					nums[i] = x
				} else {
					numeric = false
				}
			}
			if temporal {
				if t, ok := parseTimeMaybe(c.str); ok {
					times[i] = t
				} else {
					temporal = false
				}
			}
		default:
			numeric = false
			temporal = false
		}
		if !numeric && !temporal {
			break
		}
	}

	col := Column{Name: rc.name, Missing: make([]bool, n)}
	for i := range rc.cells {
		col.Missing[i] = rc.cells[i].missing
	}
	switch {
	case numeric:
		col.Kind = KindNumeric
		col.Nums = nums
	case temporal:
		col.Kind = KindTemporal
		col.Times = times
	default:
		col.Kind = KindText
		strs := make([]string, n)
		for i := range rc.cells {
			c := &rc.cells[i]
			if c.missing {
				continue
			}
			if c.kind == rawNumber {
				strs[i] = strconv.FormatFloat(c.num, 'g', -1, 64)
			} else {
				strs[i] = c.str
			}
		}
		col.Strs = strs
	}
	return col
}

func parseTimeMaybe(s string) (time.Time, bool) {
	layouts := []string{
		time.RFC3339, "2006-01-02", "2006/01/02", "02/01/2006", "01/02/2006",
		"2006-01-02 15:04", "2006-01-02 15:04:05", "1/2/2006 15:04", "1/2/2006 15:04:05",
	}
	for _, l := range layouts {
		if t, err := time.Parse(l, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// parseNumeric parses locale-tolerant numeric tokens: thousands separators,
// decimal comma when it is the last separator, percent suffixes, NBSP grouping.
func parseNumeric(s string) (float64, bool) {
	raw := strings.TrimSpace(s)
	if strings.Contains(raw, "%") {
		raw = strings.ReplaceAll(raw, "%", "")
	}
	// Normalize spaces
	raw = strings.ReplaceAll(raw, "\u00A0", " ")
	raw = strings.TrimSpace(raw)
	// Decide decimal separator
	var dec rune
	cpos := strings.LastIndex(raw, ",")
	dpos := strings.LastIndex(raw, ".")
	if cpos >= 0 && dpos >= 0 {
		if cpos > dpos {
			dec = ','
		} else {
			dec = '.'
		}
	} else if cpos >= 0 {
		dec = ','
	} else {
		dec = '.'
	}
	// Remove grouping separators (common: ',', '.', space) that differ from decimal
	for _, sep := range []rune{',', '.', ' '} {
		if sep != dec {
			raw = strings.ReplaceAll(raw, string(sep), "")
		}
	}
	// Replace decimal with '.'
	if dec != '.' {
		raw = strings.ReplaceAll(raw, string(dec), ".")
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
