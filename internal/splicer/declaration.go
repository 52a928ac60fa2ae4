package splicer

import (
	"fmt"
	"strings"
)

const (
	declarationOpen  = "const DATA = {\n"
	declarationClose = "\n};"
	entryIndent      = "    "
	entrySeparator   = ",\n    \n"
)

// Entry is one dataset to embed. Raw must be a single JSON document.
type Entry struct {
	ID  string
	Raw []byte
}

// RenderDeclaration builds the `const DATA = {...};` table, one compact
// entry per dataset, in the given order.
func RenderDeclaration(entries []Entry) (string, error) {
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		compact, err := Compact(e.Raw)
		if err != nil {
			return "", fmt.Errorf("failed to serialize %s: %w", e.ID, err)
		}
		lines = append(lines, entryIndent+e.ID+": "+string(compact))
	}
	return declarationOpen + strings.Join(lines, entrySeparator) + declarationClose, nil
}
