package splicer

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/natefinch/atomic"
)

// Validator inspects the document before and after splicing. Returning an
// error aborts the rewrite before anything is written.
type Validator func(ctx context.Context, before, after []byte) error

type RewriteOptions struct {
	StartMarker string
	EndMarker   string
	DryRun      bool
	Validators  []Validator
}

type RewriteResult struct {
	Path    string
	Before  string
	After   string
	Changed bool
	Written bool
}

// Rewrite splices block into the file at path. The file is only replaced
// after both markers are found and every validator passes, and only when
// the content actually changes. The replacement is atomic.
func Rewrite(ctx context.Context, path, block string, opts RewriteOptions) (*RewriteResult, error) {
	if strings.Contains(strings.TrimPrefix(block, opts.StartMarker), opts.EndMarker) {
		return nil, fmt.Errorf("generated block contains the end marker %q", opts.EndMarker)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read target %s: %w", path, err)
	}
	before := string(content)

	after, err := Splice(before, opts.StartMarker, opts.EndMarker, block)
	if err != nil {
		return nil, err
	}

	for _, validate := range opts.Validators {
		if err := validate(ctx, content, []byte(after)); err != nil {
			return nil, err
		}
	}

	res := &RewriteResult{
		Path:    path,
		Before:  before,
		After:   after,
		Changed: after != before,
	}
	if !res.Changed || opts.DryRun {
		return res, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := atomic.WriteFile(path, strings.NewReader(after)); err != nil {
		return nil, fmt.Errorf("failed to write target %s: %w", path, err)
	}
	res.Written = true
	return res, nil
}
