package loader

import (
	"errors"
	"fmt"
	"regexp"
)

var identPattern = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)

// Dataset maps a short identifier to a JSON file relative to the data directory.
type Dataset struct {
	ID   string
	Path string
}

// Registry is the ordered set of datasets for one build run.
type Registry []Dataset

// DefaultRegistry returns the site's standard datasets.
func DefaultRegistry() Registry {
	return Registry{
		{ID: "about", Path: "about.json"},
		{ID: "experience", Path: "experience.json"},
		{ID: "projects", Path: "projects.json"},
		{ID: "skills", Path: "skills.json"},
		{ID: "education", Path: "education.json"},
	}
}

// Validate checks that every identifier can be emitted as a bare object key
// and appears only once.
func (r Registry) Validate() error {
	if len(r) == 0 {
		return errors.New("dataset registry is empty")
	}
	seen := make(map[string]bool, len(r))
	for _, ds := range r {
		if !identPattern.MatchString(ds.ID) {
			return fmt.Errorf("invalid dataset id %q: must be a JavaScript identifier", ds.ID)
		}
		if seen[ds.ID] {
			return fmt.Errorf("duplicate dataset id: %s", ds.ID)
		}
		seen[ds.ID] = true
		if ds.Path == "" {
			return fmt.Errorf("dataset %s has no path", ds.ID)
		}
	}
	return nil
}

// IDs returns the identifiers in registry order.
func (r Registry) IDs() []string {
	ids := make([]string, 0, len(r))
	for _, ds := range r {
		ids = append(ids, ds.ID)
	}
	return ids
}
