// Package spirv inspects spirv-dis text output to find the variables that back
// runtime-sized arrays.
package spirv

import (
	"strings"
)

// OpTypeRuntimeArray is the opcode declaring an array without a fixed length.
const OpTypeRuntimeArray = "OpTypeRuntimeArray"

// Instruction is one "<result-id> = <operands>" line of a disassembly.
type Instruction struct {
	Result   string
	Operands string
}

// Opcode returns the first operand token, e.g. "OpTypeStruct".
func (in Instruction) Opcode() string {
	fields := strings.Fields(in.Operands)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// References reports whether id appears as a whole operand token.
func (in Instruction) References(id string) bool {
	for _, f := range strings.Fields(in.Operands) {
		if f == id {
			return true
		}
	}
	return false
}

// Module is the ordered list of result-producing instructions of a
// disassembly. Order is declaration order and drives every lookup below.
type Module struct {
	Instructions []Instruction
}

// Parse splits each line on its first '=' and keeps those that have one.
// A result id declared twice keeps its first position and takes the latest
// operand text.
func Parse(text string) *Module {
	m := &Module{}
	index := make(map[string]int)
	for _, line := range strings.Split(text, "\n") {
		lhs, rhs, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		in := Instruction{
			Result:   strings.TrimSpace(lhs),
			Operands: strings.TrimSpace(rhs),
		}
		if i, seen := index[in.Result]; seen {
			m.Instructions[i] = in
			continue
		}
		index[in.Result] = len(m.Instructions)
		m.Instructions = append(m.Instructions, in)
	}
	return m
}

func (m *Module) first(match func(Instruction) bool) (string, bool) {
	for _, in := range m.Instructions {
		if match(in) {
			return in.Result, true
		}
	}
	return "", false
}

func (m *Module) firstReferencing(id string) (string, bool) {
	return m.first(func(in Instruction) bool { return in.References(id) })
}

// Chain records each hop from the runtime array to its backing variables.
type Chain struct {
	RuntimeArray string
	Struct       string
	Pointer      string
	Variables    []string
}

// RuntimeArrayChain follows runtime array -> enclosing struct -> pointer type
// -> variables, taking the first declaration at each hop. It returns false
// when any hop is missing.
//
// Only the first runtime array in the module is followed.
func (m *Module) RuntimeArrayChain() (Chain, bool) {
	var c Chain
	var ok bool

	c.RuntimeArray, ok = m.first(func(in Instruction) bool { return in.Opcode() == OpTypeRuntimeArray })
	if !ok {
		return Chain{}, false
	}
	if c.Struct, ok = m.firstReferencing(c.RuntimeArray); !ok {
		return Chain{}, false
	}
	if c.Pointer, ok = m.firstReferencing(c.Struct); !ok {
		return Chain{}, false
	}
	for _, in := range m.Instructions {
		if in.References(c.Pointer) {
			c.Variables = append(c.Variables, in.Result)
		}
	}
	return c, true
}

// RuntimeArrayVariables returns the variables backing the first runtime array,
// or nil when the module declares none.
func RuntimeArrayVariables(text string) []string {
	c, ok := Parse(text).RuntimeArrayChain()
	if !ok {
		return nil
	}
	return c.Variables
}
