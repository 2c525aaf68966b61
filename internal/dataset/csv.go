package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

type csvReader struct{}

func (csvReader) CanRead(path string) bool {
	return extOf(path) == ".csv"
}

func (csvReader) Read(path string) (*Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("empty file: missing header row")
	}
	if err != nil {
		return nil, err
	}
	names := dedupeNames(header)
	cols := make([]rawColumn, len(names))
	for i, name := range names {
		cols[i].name = name
	}
	rows := 0
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		for j := range cols {
			v := strings.TrimSpace(rec[j])
			if isMissingToken(v) {
				cols[j].cells = append(cols[j].cells, rawCell{missing: true})
				continue
			}
			cols[j].cells = append(cols[j].cells, rawCell{kind: rawString, str: v})
		}
		rows++
	}
	return buildFrame(cols, rows), nil
}

// dedupeNames disambiguates repeated header names as name, name.1, name.2...
func dedupeNames(header []string) []string {
	names := make([]string, len(header))
	taken := map[string]bool{}
	for i, h := range header {
		name := strings.TrimSpace(h)
		if taken[name] {
			for n := 1; ; n++ {
				cand := fmt.Sprintf("%s.%d", name, n)
				if !taken[cand] {
					name = cand
					break
				}
			}
		}
		taken[name] = true
		names[i] = name
	}
	return names
}

func extOf(path string) string {
	return strings.ToLower(filepath.Ext(path))
}
