package splicer

import (
	"errors"
	"fmt"
	"strings"
)

var ErrMarkerNotFound = errors.New("marker not found")

// MarkerNotFoundError names the marker that could not be located.
type MarkerNotFoundError struct {
	Role   string // "start" or "end"
	Marker string
}

func (e *MarkerNotFoundError) Error() string {
	return fmt.Sprintf("%s marker not found: %q", e.Role, e.Marker)
}

func (e *MarkerNotFoundError) Is(target error) bool {
	return target == ErrMarkerNotFound
}

const accessorSnippet = `// ========== DATA LOADING ==========
async function loadJSON(key) {
    return DATA[key] || null;
}
`

type BlockOptions struct {
	StartMarker string
	Comment     string
}

// BuildBlock returns the text that replaces the marked region: the start
// marker, the comment, the declaration and the accessor, ending with a blank
// line so the end marker keeps its own line.
func BuildBlock(opts BlockOptions, declaration string) string {
	var sb strings.Builder
	sb.WriteString(opts.StartMarker)
	sb.WriteString("\n")
	if opts.Comment != "" {
		sb.WriteString(opts.Comment)
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
	sb.WriteString(declaration)
	sb.WriteString("\n\n")
	sb.WriteString(accessorSnippet)
	sb.WriteString("\n")
	return sb.String()
}

// Splice replaces everything from the start marker up to (not including)
// the first end marker after it. Text outside that range is returned
// unchanged.
func Splice(doc, start, end, block string) (string, error) {
	startIdx := strings.Index(doc, start)
	if startIdx == -1 {
		return "", &MarkerNotFoundError{Role: "start", Marker: start}
	}
	rel := strings.Index(doc[startIdx+len(start):], end)
	if rel == -1 {
		return "", &MarkerNotFoundError{Role: "end", Marker: end}
	}
	endIdx := startIdx + len(start) + rel
	return doc[:startIdx] + block + doc[endIdx:], nil
}
