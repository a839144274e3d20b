package output

import (
	"fmt"
	"strings"
)

// Summary is the content of the fallback report.
type Summary struct {
	Locations       []string
	Records         int
	Decrypted       int
	Unique          int
	TransformErrors int
	EnrichErrors    int
	SourceErrors    int
}

// Render returns the plain-text report. Output is deterministic for a given Summary.
func (s Summary) Render() []byte {
	var b strings.Builder
	b.WriteString("sealsweep report\n")
	b.WriteString("================\n\n")
	b.WriteString("Records were found but no profile could be produced.\n\n")
	fmt.Fprintf(&b, "records found:     %d\n", s.Records)
	fmt.Fprintf(&b, "opened:            %d\n", s.Decrypted)
	fmt.Fprintf(&b, "unique values:     %d\n", s.Unique)
	fmt.Fprintf(&b, "source errors:     %d\n", s.SourceErrors)
	fmt.Fprintf(&b, "transform errors:  %d\n", s.TransformErrors)
	fmt.Fprintf(&b, "lookup errors:     %d\n", s.EnrichErrors)
	b.WriteString("\nlocations searched:\n")
	if len(s.Locations) == 0 {
		b.WriteString("  (none)\n")
	}
	for _, l := range s.Locations {
		fmt.Fprintf(&b, "  - %s\n", l)
	}
	return []byte(b.String())
}
