package dataset

import (
	"fmt"
)

// Reader loads one file format into a Frame.
type Reader interface {
	// CanRead reports whether this reader handles the given path.
	CanRead(path string) bool
	// Read parses the file into a frame.
	Read(path string) (*Frame, error)
}

// UnsupportedFormatError is returned for any extension other than .csv or
// .json, before the file is opened.
type UnsupportedFormatError struct {
	Path string
	Ext  string
}

func (e *UnsupportedFormatError) Error() string {
	return "unsupported file format: use CSV or JSON"
}

// LoadError wraps a read or parse failure for a supported format.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

var readers []Reader

// RegisterReader adds a reader to the registry. First match wins.
func RegisterReader(r Reader) {
	readers = append(readers, r)
}

func init() {
	RegisterReader(csvReader{})
	RegisterReader(jsonReader{})
}

// Load parses the file at path into a Frame, dispatching on extension.
// It is the sole ingestion point: every later stage consumes the shape
// decided here.
func Load(path string) (*Frame, error) {
	for _, r := range readers {
		if !r.CanRead(path) {
			continue
		}
		f, err := r.Read(path)
		if err != nil {
			return nil, &LoadError{Path: path, Err: err}
		}
		return f, nil
	}
	return nil, &UnsupportedFormatError{Path: path, Ext: extOf(path)}
}
