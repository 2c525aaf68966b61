package analysis

import (
	"math/cmplx"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/KaramelBytes/dataloom-cli/internal/dataset"
)

// Validation is the data-quality report computed before any statistics.
type Validation struct {
	MissingValues     map[string]int `json:"missingValues"`
	DuplicateRows     int            `json:"duplicateRows"`
	SuspiciousDate    []string       `json:"suspiciousDate"`
	SuspectedCyclical []string       `json:"suspectedCyclical"`
}

// cyclicalAmplitudeThreshold is the one-sided FFT amplitude (2/N scaled)
// above which a numeric column is flagged as suspected cyclical. Heuristic
// only; no significance test behind it.
const cyclicalAmplitudeThreshold = 0.8

// dateNameRe matches whole-word date vocabulary in lowercased column names.
var dateNameRe = regexp.MustCompile(`\b(date|published|issued|on|created|timestamp|time|day|month|hour)\b`)

// Validate scans the frame for missing cells, duplicate rows, date-named
// columns that did not load as temporal, and cyclical numeric signals.
// Pure computation: the frame is read only.
func Validate(f *dataset.Frame) Validation {
	v := Validation{
		MissingValues:     make(map[string]int, len(f.Cols)),
		SuspiciousDate:    make([]string, 0),
		SuspectedCyclical: make([]string, 0),
	}
	for i := range f.Cols {
		c := &f.Cols[i]
		v.MissingValues[c.Name] = c.MissingCount()
		if dateNameRe.MatchString(strings.ToLower(c.Name)) && c.Kind != dataset.KindTemporal {
			v.SuspiciousDate = append(v.SuspiciousDate, c.Name)
		}
	}
	v.DuplicateRows = duplicateRows(f)
	for _, c := range f.NumericColumns() {
		if isCyclical(c.Values()) {
			v.SuspectedCyclical = append(v.SuspectedCyclical, c.Name)
		}
	}
	return v
}

// duplicateRows counts rows identical to an earlier row. Missing cells
// compare equal to each other; everything else compares by typed value.
func duplicateRows(f *dataset.Frame) int {
	if f.Rows == 0 {
		return 0
	}
	seen := make(map[string]struct{}, f.Rows)
	var b strings.Builder
	dups := 0
	for i := 0; i < f.Rows; i++ {
		b.Reset()
		for j := range f.Cols {
			c := &f.Cols[j]
			b.WriteByte(0x1f)
			if c.Missing[i] {
				b.WriteByte(0x00)
				continue
			}
			switch c.Kind {
			case dataset.KindNumeric:
				b.WriteString(strconv.FormatFloat(c.Nums[i], 'g', -1, 64))
			case dataset.KindTemporal:
				b.WriteString(c.Times[i].Format(time.RFC3339Nano))
			default:
				s := c.Strs[i]
				b.WriteString(strconv.Itoa(len(s)))
				b.WriteByte(':')
				b.WriteString(s)
			}
		}
		key := b.String()
		if _, ok := seen[key]; ok {
			dups++
			continue
		}
		seen[key] = struct{}{}
	}
	return dups
}

// isCyclical applies a real-input FFT over the non-missing values at unit
// sample spacing and checks the one-sided amplitude spectrum, DC term
// included, against the threshold.
func isCyclical(vals []float64) bool {
	n := len(vals)
	if n < 2 {
		return false
	}
	fft := fourier.NewFFT(n)
	coeffs := fft.Coefficients(nil, vals)
	half := n / 2
	for k := 0; k < half; k++ {
		amp := 2.0 / float64(n) * cmplx.Abs(coeffs[k])
		if amp > cyclicalAmplitudeThreshold {
			return true
		}
	}
	return false
}
