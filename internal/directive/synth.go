package directive

import (
	"errors"
	"fmt"
	"strings"
)

// ErrPorting marks a test whose directives cannot be mapped onto a target
// configuration. Such tests are discarded, never retried.
var ErrPorting = errors.New("porting error")

// InputInitializer is the placeholder value bound to every runtime-array
// variable. It is not derived from the test's data.
const InputInitializer = "{{0, 0, 0, 0, 0, 0, 0, 0, 0}}"

// Grid is the thread grid written into the "; @Config:" line.
type Grid struct {
	X, Y, Z int
}

var (
	// SingleGroupGrid is used when the test launches exactly one work group.
	SingleGroupGrid = Grid{3, 1, 1}
	// MultiGroupGrid is used when the test launches more than one work group.
	MultiGroupGrid = Grid{3, 1, 3}
)

// String renders the grid in directive syntax.
func (g Grid) String() string {
	return fmt.Sprintf("%d, %d, %d", g.X, g.Y, g.Z)
}

// Set is the synthesized directive block for one test.
type Set struct {
	Inputs []string
	Grid   Grid
}

// Lines returns the directive lines, inputs first, without trailing newlines.
func (s Set) Lines() []string {
	lines := make([]string, 0, len(s.Inputs)+1)
	for _, id := range s.Inputs {
		lines = append(lines, fmt.Sprintf("; @Input: %s = %s", id, InputInitializer))
	}
	lines = append(lines, "; @Config: "+s.Grid.String())
	return lines
}

// Render returns the block ready to be prepended to a disassembly.
func (s Set) Render() string {
	var sb strings.Builder
	for _, l := range s.Lines() {
		sb.WriteString(l)
		sb.WriteByte('\n')
	}
	return sb.String()
}

// GridFor derives the target grid from a parsed header.
//
// --num_groups takes precedence: one group maps to SingleGroupGrid, anything
// else to MultiGroupGrid. Otherwise --global_size is compared with
// --local_size. Every other combination is a porting error.
func GridFor(h Header) (Grid, error) {
	if groups, ok := h.Get(KeyNumGroups); ok {
		if groups == "1" {
			return SingleGroupGrid, nil
		}
		return MultiGroupGrid, nil
	}

	local, hasLocal := h.Get(KeyLocalSize)
	if global, ok := h.Get(KeyGlobalSize); ok {
		if !hasLocal {
			return Grid{}, fmt.Errorf("%w: %s given without %s", ErrPorting, KeyGlobalSize, KeyLocalSize)
		}
		if global == local {
			return SingleGroupGrid, nil
		}
		return MultiGroupGrid, nil
	}

	if !hasLocal {
		return Grid{}, fmt.Errorf("%w: missing %s", ErrPorting, KeyLocalSize)
	}
	if !h.Has(KeyGroupSize) {
		return Grid{}, fmt.Errorf("%w: a test needs %s and one of %s or %s",
			ErrPorting, KeyLocalSize, KeyGlobalSize, KeyNumGroups)
	}
	// --group_size alone carries no group count.
	return Grid{}, fmt.Errorf("%w: %s cannot be mapped onto a grid", ErrPorting, KeyGroupSize)
}

// Synthesize builds the directive set for a test from its header and the
// runtime-array variables reported by the structural analyzer.
func Synthesize(h Header, variables []string) (Set, error) {
	grid, err := GridFor(h)
	if err != nil {
		return Set{}, err
	}
	inputs := make([]string, len(variables))
	copy(inputs, variables)
	return Set{Inputs: inputs, Grid: grid}, nil
}
