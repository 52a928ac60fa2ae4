package loader

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"unicode/utf8"
)

type Kind int

const (
	Loaded Kind = iota
	Missing
	Invalid
)

func (k Kind) String() string {
	switch k {
	case Loaded:
		return "loaded"
	case Missing:
		return "missing"
	case Invalid:
		return "invalid"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseError reports a data file that exists but cannot be used.
type ParseError struct {
	ID   string
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse JSON from %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Outcome is the result of loading a single registry entry.
type Outcome struct {
	Dataset Dataset
	Path    string
	Kind    Kind
	Raw     []byte
	Value   any
	Err     error
}

// Entry is a successfully loaded dataset.
type Entry struct {
	ID    string
	Path  string
	Raw   []byte
	Value any
}

type Result struct {
	Outcomes []Outcome
}

// Loaded returns the loaded datasets in registry order.
func (r *Result) Loaded() []Entry {
	var out []Entry
	for _, o := range r.Outcomes {
		if o.Kind != Loaded {
			continue
		}
		out = append(out, Entry{ID: o.Dataset.ID, Path: o.Path, Raw: o.Raw, Value: o.Value})
	}
	return out
}

// Missing returns the resolved paths of datasets whose files do not exist.
func (r *Result) Missing() []string {
	var out []string
	for _, o := range r.Outcomes {
		if o.Kind == Missing {
			out = append(out, o.Path)
		}
	}
	return out
}

func (r *Result) Len() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Kind == Loaded {
			n++
		}
	}
	return n
}

// Err returns the fatal errors of the run, or nil when no file was invalid.
func (r *Result) Err() error {
	var errs []error
	for _, o := range r.Outcomes {
		if o.Kind == Invalid {
			errs = append(errs, o.Err)
		}
	}
	if len(errs) == 1 {
		return errs[0]
	}
	return errors.Join(errs...)
}

type options struct {
	schemaDir string
}

type Option func(*options)

// WithSchemaDir validates each dataset against <dir>/<id>.schema.json when
// that file exists.
func WithSchemaDir(dir string) Option {
	return func(o *options) { o.schemaDir = dir }
}

// Load reads every dataset of reg from dir. Missing files produce Missing
// outcomes; unreadable or malformed files produce Invalid outcomes. Load
// itself only fails when ctx is cancelled.
func Load(ctx context.Context, dir string, reg Registry, opts ...Option) (*Result, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	res := &Result{Outcomes: make([]Outcome, 0, len(reg))}
	for _, ds := range reg {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res.Outcomes = append(res.Outcomes, loadOne(dir, ds, o))
	}
	return res, nil
}

func loadOne(dir string, ds Dataset, o options) Outcome {
	path := ds.Path
	if !filepath.IsAbs(path) {
		path = filepath.Join(dir, path)
	}
	out := Outcome{Dataset: ds, Path: path}

	content, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		out.Kind = Missing
		return out
	}
	if err != nil {
		out.Kind = Invalid
		out.Err = &ParseError{ID: ds.ID, Path: path, Err: err}
		return out
	}

	value, err := Decode(content)
	if err != nil {
		out.Kind = Invalid
		out.Err = &ParseError{ID: ds.ID, Path: path, Err: err}
		return out
	}

	if o.schemaDir != "" {
		if err := validateAgainstSchema(o.schemaDir, ds.ID, value); err != nil {
			out.Kind = Invalid
			out.Err = &ParseError{ID: ds.ID, Path: path, Err: err}
			return out
		}
	}

	out.Kind = Loaded
	out.Raw = content
	out.Value = value
	return out
}

// Decode parses a single JSON document into a generic value. Numbers are
// kept as json.Number so no precision is lost.
func Decode(content []byte) (any, error) {
	if !utf8.Valid(content) {
		return nil, errors.New("invalid UTF-8")
	}
	dec := json.NewDecoder(bytes.NewReader(content))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty document")
		}
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("unexpected data after top-level value")
	}
	return v, nil
}
