package regression

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"kernelport/internal/manifest"
	"kernelport/internal/verify"
)

// UnsupportedTokens mark artifacts the downstream consumer cannot parse yet.
// Their expectation lines are written commented out.
var UnsupportedTokens = []string{"|"}

// ExportOptions configures Export.
type ExportOptions struct {
	// Prefix is stripped from artifact paths.
	Prefix string
	// SafetyOnly limits output to PASS expectations.
	SafetyOnly bool
	// ReadFile loads an artifact; nil means os.ReadFile.
	ReadFile func(path string) ([]byte, error)
}

// ExportStats counts what Export wrote.
type ExportStats struct {
	Written   int
	Commented int
	Omitted   int
}

// Export writes one `{"<path>", 1, <OUTCOME>},` line per PASS or RACE entry,
// in input order. RACE is written as FAIL and ABORT is omitted.
func Export(w io.Writer, outcomes []manifest.Pair, opts ExportOptions) (ExportStats, error) {
	var stats ExportStats
	read := opts.ReadFile
	if read == nil {
		read = os.ReadFile
	}

	bw := bufio.NewWriter(w)
	for _, p := range outcomes {
		o, err := verify.ParseOutcome(p.Value)
		if err != nil {
			return stats, err
		}
		if o == verify.Abort || o == verify.Fail || (opts.SafetyOnly && o != verify.Pass) {
			stats.Omitted++
			continue
		}

		body, err := read(p.Key)
		if err != nil {
			return stats, fmt.Errorf("failed to read artifact %s: %w", p.Key, err)
		}
		line := fmt.Sprintf("{\"%s\", 1, %s},\n", StripPrefix(p.Key, opts.Prefix), o.Normalize())
		if !supported(string(body)) {
			line = "// " + line
			stats.Commented++
		}
		if _, err := bw.WriteString(line); err != nil {
			return stats, err
		}
		stats.Written++
	}
	return stats, bw.Flush()
}

func supported(body string) bool {
	for _, tok := range UnsupportedTokens {
		if strings.Contains(body, tok) {
			return false
		}
	}
	return true
}
