// Package corpus discovers OpenCL test cases on disk.
//
// Discovery runs in two phases: Enumerate lists candidate files in walk order,
// then Index derives each test's identity and rejects collisions. A collision
// would make two tests write the same ported artifact, so it aborts the run.
// A source with no test directory of its own is stray: it is reported and
// left out.
package corpus

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// SourceExt is the extension of an original-format test.
const SourceExt = ".cl"

// ErrDuplicateTest is returned when two source files map to one identity.
var ErrDuplicateTest = errors.New("duplicate test identity")

// ErrNoTestDir is returned by Identify for a source directly under the root.
var ErrNoTestDir = errors.New("test source outside a test directory")

// DuplicateError carries both colliding paths.
type DuplicateError struct {
	ID     string
	First  string
	Second string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("%s %q: %s and %s", ErrDuplicateTest, e.ID, e.First, e.Second)
}

func (e *DuplicateError) Unwrap() error { return ErrDuplicateTest }

// Test is one discovered test case.
type Test struct {
	// ID is the slash-separated directory of the test relative to the corpus
	// root, e.g. "barrier/divergence".
	ID string
	// Name is the last segment of ID; ported artifacts are named after it.
	Name string
	// Path is the source file path as found by the walk (root joined).
	Path string
}

// Enumerate walks root and returns every test source in lexical walk order.
// Hidden directories are skipped.
func Enumerate(root string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) == SourceExt {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk corpus %s: %w", root, err)
	}
	return paths, nil
}

// Identify derives the identity of a source file under root.
func Identify(root, path string) (Test, error) {
	rel, err := filepath.Rel(root, filepath.Dir(path))
	if err != nil {
		return Test{}, fmt.Errorf("failed to relativize %s: %w", path, err)
	}
	rel = filepath.ToSlash(rel)
	if rel == "." || rel == ".." || strings.HasPrefix(rel, "../") {
		return Test{}, fmt.Errorf("%w: %s is not in a subdirectory of %s", ErrNoTestDir, path, root)
	}
	return Test{
		ID:   rel,
		Name: filepath.Base(filepath.Dir(path)),
		Path: path,
	}, nil
}

// Index derives identities for paths and fails fast on the first collision.
// Stray sources are returned separately. Both slices keep the input order.
func Index(root string, paths []string) (tests []Test, stray []string, err error) {
	seen := make(map[string]string, len(paths))
	tests = make([]Test, 0, len(paths))
	for _, p := range paths {
		t, err := Identify(root, p)
		if errors.Is(err, ErrNoTestDir) {
			stray = append(stray, p)
			continue
		}
		if err != nil {
			return nil, nil, err
		}
		if prev, dup := seen[t.ID]; dup {
			return nil, nil, &DuplicateError{ID: t.ID, First: prev, Second: p}
		}
		seen[t.ID] = p
		tests = append(tests, t)
	}
	return tests, stray, nil
}

// Discover runs both phases.
func Discover(root string) (tests []Test, stray []string, err error) {
	if info, err := os.Stat(root); err != nil {
		return nil, nil, fmt.Errorf("corpus root: %w", err)
	} else if !info.IsDir() {
		return nil, nil, fmt.Errorf("corpus root %s is not a directory", root)
	}
	paths, err := Enumerate(root)
	if err != nil {
		return nil, nil, err
	}
	return Index(root, paths)
}
