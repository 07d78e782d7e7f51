// Package directive translates GPUVerify-style test header directives into the
// annotation block understood by the SPIR-V verifier.
//
// An OpenCL test carries its launch configuration on its second line:
//
//	//pass
//	//--local_size=64 --num_groups=4 --no-inline
//
// Parse extracts the key=value tokens from that line; Synthesize combines them
// with the runtime-array variables found in the disassembly and renders
// "; @Input:" and "; @Config:" lines.
package directive

import (
	"strings"
)

// HeaderLineIndex is the zero-based line holding the directive tokens.
const HeaderLineIndex = 1

// Well-known directive keys.
const (
	KeyLocalSize  = "--local_size"
	KeyGlobalSize = "--global_size"
	KeyNumGroups  = "--num_groups"
	KeyGroupSize  = "--group_size"
)

// Entry is a single parsed key=value directive.
type Entry struct {
	Key   string
	Value string
}

// Header is the parsed header line of a test.
// Entries keeps the textual order; Tokens is the raw whitespace-split token
// list, which is also the verifier's parameter list.
type Header struct {
	Tokens  []string
	Entries []Entry
}

// Get returns the raw value for key and whether it was present.
// When a key is repeated the last occurrence wins.
func (h Header) Get(key string) (string, bool) {
	for i := len(h.Entries) - 1; i >= 0; i-- {
		if h.Entries[i].Key == key {
			return h.Entries[i].Value, true
		}
	}
	return "", false
}

// Has reports whether key appears in the header.
func (h Header) Has(key string) bool {
	_, ok := h.Get(key)
	return ok
}

// ParseLine parses a single comment line of space-separated key=value tokens.
// Tokens without '=' are kept in Tokens but produce no entry.
func ParseLine(line string) Header {
	line = strings.TrimSpace(line)
	line = strings.Trim(line, "/")

	h := Header{}
	for _, tok := range strings.Fields(line) {
		h.Tokens = append(h.Tokens, tok)
		key, value, ok := strings.Cut(tok, "=")
		if !ok {
			continue
		}
		h.Entries = append(h.Entries, Entry{Key: key, Value: value})
	}
	return h
}

// ParseSource extracts and parses the header line of a test source.
// Sources shorter than two lines yield an empty header.
func ParseSource(source string) Header {
	lines := strings.SplitN(source, "\n", HeaderLineIndex+2)
	if len(lines) <= HeaderLineIndex {
		return Header{}
	}
	return ParseLine(strings.TrimRight(lines[HeaderLineIndex], "\r"))
}
