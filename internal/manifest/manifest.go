// Package manifest reads and writes the line-oriented files exchanged between
// pipeline stages. None of the formats quote or escape: paths must not contain
// the field separator.
//
//	port manifest:    <original-test-path> <ported-artifact-path>
//	general manifest: <original-test-path>
//	outcome manifest: <ported-artifact-path> <OUTCOME>
//	baseline:         <test-path>,<unused>,<OUTCOME>
package manifest

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Pair is one two-column record.
type Pair struct {
	Key   string
	Value string
}

// ParseError locates a malformed line.
type ParseError struct {
	File string
	Line int
	Text string
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s:%d: %s: %q", e.File, e.Line, e.Msg, e.Text)
}

// readLines calls fn for each non-blank line with its 1-based number.
func readLines(r io.Reader, fn func(n int, line string) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	n := 0
	for sc.Scan() {
		n++
		line := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		if err := fn(n, line); err != nil {
			return err
		}
	}
	return sc.Err()
}

// ReadPairs parses whitespace-separated two-column records.
func ReadPairs(r io.Reader, name string) ([]Pair, error) {
	var pairs []Pair
	err := readLines(r, func(n int, line string) error {
		fields := strings.Fields(line)
		if len(fields) != 2 {
			return &ParseError{File: name, Line: n, Text: line, Msg: "expected 2 fields"}
		}
		pairs = append(pairs, Pair{Key: fields[0], Value: fields[1]})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return pairs, nil
}

// WritePairs writes two-column records separated by a single space.
func WritePairs(w io.Writer, pairs []Pair) error {
	bw := bufio.NewWriter(w)
	for _, p := range pairs {
		if _, err := fmt.Fprintf(bw, "%s %s\n", p.Key, p.Value); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// ReadList parses one-column records.
func ReadList(r io.Reader) ([]string, error) {
	var items []string
	err := readLines(r, func(_ int, line string) error {
		items = append(items, strings.TrimSpace(line))
		return nil
	})
	return items, err
}

// WriteList writes one item per line.
func WriteList(w io.Writer, items []string) error {
	bw := bufio.NewWriter(w)
	for _, it := range items {
		if _, err := fmt.Fprintln(bw, it); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// ReadPairsFile opens path and parses it with ReadPairs.
func ReadPairsFile(path string) ([]Pair, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadPairs(f, path)
}

// WriteFile creates (or truncates) path, creating parent directories, and
// hands the file to write.
func WriteFile(path string, write func(io.Writer) error) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory for %s: %w", path, err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}
