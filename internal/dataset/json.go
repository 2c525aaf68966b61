package dataset

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"unicode"
)

type jsonReader struct{}

func (jsonReader) CanRead(path string) bool {
	return extOf(path) == ".json"
}

// Read accepts two layouts: an array of record objects, or an object of
// equal-length column arrays. Column order is appearance order in the
// document, which encoding/json maps lose, so both paths walk tokens.
func (jsonReader) Read(path string) (*Frame, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	trimmed := bytes.TrimLeftFunc(data, unicode.IsSpace)
	if len(trimmed) == 0 {
		return nil, errors.New("empty file")
	}
	switch trimmed[0] {
	case '[':
		return readRecords(data)
	case '{':
		return readColumns(data)
	default:
		return nil, errors.New("top-level value must be an array of objects or an object of arrays")
	}
}

func readRecords(data []byte) (*Frame, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := expectDelim(dec, '['); err != nil {
		return nil, err
	}
	var cols []*rawColumn
	index := map[string]int{}
	rows := 0
	for dec.More() {
		if err := expectDelim(dec, '{'); err != nil {
			return nil, fmt.Errorf("record %d: %w", rows, err)
		}
		seen := map[string]bool{}
		for dec.More() {
			tok, err := dec.Token()
			if err != nil {
				return nil, err
			}
			key, ok := tok.(string)
			if !ok {
				return nil, fmt.Errorf("record %d: non-string key", rows)
			}
			var v any
			if err := dec.Decode(&v); err != nil {
				return nil, fmt.Errorf("record %d, field %q: %w", rows, key, err)
			}
			cell, err := jsonCell(v)
			if err != nil {
				return nil, fmt.Errorf("record %d, field %q: %w", rows, key, err)
			}
			j, known := index[key]
			if !known {
				j = len(cols)
				index[key] = j
				c := &rawColumn{name: key}
				for r := 0; r < rows; r++ {
					c.cells = append(c.cells, rawCell{missing: true})
				}
				cols = append(cols, c)
			}
			if seen[key] {
				// duplicate key inside one object: last value wins
				cols[j].cells[len(cols[j].cells)-1] = cell
				continue
			}
			cols[j].cells = append(cols[j].cells, cell)
			seen[key] = true
		}
		if err := expectDelim(dec, '}'); err != nil {
			return nil, err
		}
		for _, c := range cols {
			if !seen[c.name] {
				c.cells = append(c.cells, rawCell{missing: true})
			}
		}
		rows++
	}
	if err := expectDelim(dec, ']'); err != nil {
		return nil, err
	}
	out := make([]rawColumn, len(cols))
	for i, c := range cols {
		out[i] = *c
	}
	return buildFrame(out, rows), nil
}

func readColumns(data []byte) (*Frame, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := expectDelim(dec, '{'); err != nil {
		return nil, err
	}
	var cols []rawColumn
	rows := -1
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, errors.New("non-string key")
		}
		var arr []any
		if err := dec.Decode(&arr); err != nil {
			return nil, fmt.Errorf("column %q: expected an array of values: %w", key, err)
		}
		if rows == -1 {
			rows = len(arr)
		} else if len(arr) != rows {
			return nil, fmt.Errorf("column %q has %d values, want %d", key, len(arr), rows)
		}
		c := rawColumn{name: key, cells: make([]rawCell, 0, len(arr))}
		for i, v := range arr {
			cell, err := jsonCell(v)
			if err != nil {
				return nil, fmt.Errorf("column %q, index %d: %w", key, i, err)
			}
			c.cells = append(c.cells, cell)
		}
		cols = append(cols, c)
	}
	if err := expectDelim(dec, '}'); err != nil {
		return nil, err
	}
	if rows == -1 {
		rows = 0
	}
	return buildFrame(cols, rows), nil
}

// jsonCell maps a decoded JSON value onto the raw cell model: null is
// missing, numbers stay numeric, strings go through the shared token
// typing, and bools or nested values become text.
func jsonCell(v any) (rawCell, error) {
	switch x := v.(type) {
	case nil:
		return rawCell{missing: true}, nil
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			// out-of-range literal: keep the token as text
			return rawCell{kind: rawText, str: x.String()}, nil
		}
		return rawCell{kind: rawNumber, num: f}, nil
	case string:
		s := strings.TrimSpace(x)
		if isMissingToken(s) {
			return rawCell{missing: true}, nil
		}
		return rawCell{kind: rawString, str: s}, nil
	case bool:
		return rawCell{kind: rawText, str: strconv.FormatBool(x)}, nil
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return rawCell{}, err
		}
		return rawCell{kind: rawText, str: string(b)}, nil
	}
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("unexpected token %v, want %v", tok, want)
	}
	return nil
}
