// Package jscheck verifies that a spliced script still parses as JavaScript.
package jscheck

import (
	"context"
	"errors"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
)

var (
	ErrSyntax               = errors.New("spliced script has syntax errors")
	ErrDuplicateDeclaration = errors.New("embedded table is declared more than once")
)

// Program-level const/let/var declarations and their names.
const declarationQuery = `
	(program (lexical_declaration (variable_declarator name: (identifier) @name)))
	(program (variable_declaration (variable_declarator name: (identifier) @name)))
`

// Report summarizes one parsed document.
type Report struct {
	HasError     bool
	ErrorLine    int
	Declarations map[string]int
}

// Checker parses JavaScript with tree-sitter.
type Checker struct {
	// Name of the embedded table that must be declared exactly once.
	TableName string
}

func NewChecker() *Checker {
	return &Checker{TableName: "DATA"}
}

// Analyze parses src and collects its top-level declarations.
func (c *Checker) Analyze(ctx context.Context, src []byte) (*Report, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(javascript.GetLanguage())
	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("failed to parse script: %w", err)
	}
	defer tree.Close()

	root := tree.RootNode()
	report := &Report{
		HasError:     root.HasError(),
		Declarations: make(map[string]int),
	}
	if report.HasError {
		report.ErrorLine = firstErrorLine(root)
	}

	query, err := sitter.NewQuery([]byte(declarationQuery), javascript.GetLanguage())
	if err != nil {
		return nil, fmt.Errorf("failed to create query: %w", err)
	}
	defer query.Close()

	qc := sitter.NewQueryCursor()
	defer qc.Close()
	qc.Exec(query, root)

	for {
		m, ok := qc.NextMatch()
		if !ok {
			break
		}
		for _, capture := range m.Captures {
			report.Declarations[capture.Node.Content(src)]++
		}
	}

	return report, nil
}

// Check compares the document before and after splicing. Syntax errors that
// already existed before the splice are tolerated; new ones are not.
func (c *Checker) Check(ctx context.Context, before, after []byte) error {
	prev, err := c.Analyze(ctx, before)
	if err != nil {
		return err
	}
	next, err := c.Analyze(ctx, after)
	if err != nil {
		return err
	}

	if next.HasError && !prev.HasError {
		return fmt.Errorf("%w (first error near line %d)", ErrSyntax, next.ErrorLine)
	}
	if n := next.Declarations[c.TableName]; n > 1 {
		return fmt.Errorf("%w: %s declared %d times", ErrDuplicateDeclaration, c.TableName, n)
	}
	return nil
}

// firstErrorLine returns the 1-based line of the first ERROR or MISSING node.
func firstErrorLine(n *sitter.Node) int {
	if n.Type() == "ERROR" || n.IsMissing() {
		return int(n.StartPoint().Row) + 1
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		if child == nil || !child.HasError() && !child.IsMissing() {
			continue
		}
		if line := firstErrorLine(child); line > 0 {
			return line
		}
	}
	return 0
}
