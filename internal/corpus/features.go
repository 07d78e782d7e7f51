package corpus

import "strings"

// unsupportedTokens mark sources the target verifier cannot handle.
var unsupportedTokens = []string{"float"}

// specificTokens mark GPUVerify-only annotations (__assert, __invariant,
// __requires, __assume and their variants).
var specificTokens = []string{"assert", "invariant", "requires", "assume"}

// Features is the result of scanning a source for constructs of interest.
type Features struct {
	// Supported is false when the source uses a floating-point type.
	Supported bool
	// General is true when the source uses no verifier-specific annotation.
	General bool
}

// Scan classifies source text. Matching is plain substring search, so
// comments and identifiers count too.
func Scan(source string) Features {
	return Features{
		Supported: !containsAny(source, unsupportedTokens),
		General:   !containsAny(source, specificTokens),
	}
}

func containsAny(s string, tokens []string) bool {
	for _, tok := range tokens {
		if strings.Contains(s, tok) {
			return true
		}
	}
	return false
}
