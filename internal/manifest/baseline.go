package manifest

import (
	"io"
	"os"
	"strings"
)

// ReadBaseline parses "<test-path>,<unused>,<OUTCOME>" records into
// (test-path, outcome) pairs. Whitespace around fields is dropped.
func ReadBaseline(r io.Reader, name string) ([]Pair, error) {
	var pairs []Pair
	err := readLines(r, func(n int, line string) error {
		fields := strings.Split(line, ",")
		if len(fields) != 3 {
			return &ParseError{File: name, Line: n, Text: line, Msg: "expected 3 comma-separated fields"}
		}
		pairs = append(pairs, Pair{
			Key:   strings.TrimSpace(fields[0]),
			Value: strings.TrimSpace(fields[2]),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return pairs, nil
}

// ReadBaselineFile opens path and parses it with ReadBaseline.
func ReadBaselineFile(path string) ([]Pair, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadBaseline(f, path)
}
