package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"siteembed/internal/config"
	"siteembed/internal/git"
	"siteembed/internal/jscheck"
	"siteembed/internal/loader"
	"siteembed/internal/splicer"
)

// ErrNoData aborts a run in which not a single dataset could be loaded.
var ErrNoData = errors.New("no data loaded")

type Options struct {
	// DryRun performs every step except writing the target.
	DryRun bool
	// GitHints prints how many lines of the target differ from HEAD.
	GitHints bool
	// Since lists the datasets whose files changed relative to this git ref.
	Since string
}

type Result struct {
	Loaded       []string
	Missing      []string
	Changed      bool
	Written      bool
	ChangedLines int
	// ChangedData holds the IDs of datasets changed since Options.Since.
	ChangedData []string
}

// Builder runs load → render → splice → check → write for one config.
type Builder struct {
	cfg      *config.Config
	out      io.Writer
	checker  *jscheck.Checker
	report   *BuildReport
	diffFile func(ctx context.Context, path string) (*git.ChangedFile, error)

	// changedFiles lists files changed below a directory since a ref.
	changedFiles func(ctx context.Context, dir, baseRef string, paths ...string) ([]git.ChangedFile, error)
}

func NewBuilder(cfg *config.Config, out io.Writer) *Builder {
	if out == nil {
		out = os.Stdout
	}
	return &Builder{
		cfg:          cfg,
		out:          out,
		checker:      jscheck.NewChecker(),
		diffFile:     git.DiffFile,
		changedFiles: git.GetChangedFiles,
	}
}

// Report returns the report of the last run, or nil before the first run.
func (b *Builder) Report() *BuildReport {
	return b.report
}

func (b *Builder) printf(format string, args ...any) {
	fmt.Fprintf(b.out, format, args...)
}

func (b *Builder) Run(ctx context.Context, opts Options) (*Result, error) {
	if err := b.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	target := b.cfg.Target.Path
	targetName := filepath.Base(target)
	mode := "build"
	if opts.DryRun {
		mode = "check"
	}
	b.report = NewBuildReport(mode, target)

	if opts.DryRun {
		b.printf("🔍 Checking %s against latest JSON data...\n", targetName)
	} else {
		b.printf("🔨 Building %s with latest JSON data...\n", targetName)
	}

	// 1. Load
	loaded, res, err := b.loadStage(ctx)
	if err != nil {
		return res, err
	}

	if opts.Since != "" {
		res.ChangedData = b.changedStage(ctx, opts.Since)
	}

	// 2. Render
	decl, err := b.renderStage(loaded)
	if err != nil {
		return res, err
	}

	// 3. Splice, check and write
	block := splicer.BuildBlock(splicer.BlockOptions{
		StartMarker: b.cfg.Target.StartMarker,
		Comment:     b.cfg.Target.Comment,
	}, decl)

	stage := b.report.BeginStage("splice")
	var validators []splicer.Validator
	if b.cfg.ValidateJavaScript() {
		validators = append(validators, b.checker.Check)
	}
	rw, err := splicer.Rewrite(ctx, target, block, splicer.RewriteOptions{
		StartMarker: b.cfg.Target.StartMarker,
		EndMarker:   b.cfg.Target.EndMarker,
		DryRun:      opts.DryRun,
		Validators:  validators,
	})
	if err != nil {
		b.report.EndStage(stage, nil, nil, err)
		var merr *splicer.MarkerNotFoundError
		if errors.As(err, &merr) {
			b.report.AddSignal("marker_not_found", "splice", "critical", merr.Error())
			b.printf("Error: Could not find the %s marker in %s!\n", merr.Role, targetName)
		}
		b.printf("❌ Failed to update %s\n", targetName)
		return res, err
	}
	res.Changed = rw.Changed
	res.Written = rw.Written
	b.report.Changed = rw.Changed
	b.report.Written = rw.Written
	b.report.EndStage(stage, map[string]float64{
		"bytes_before": float64(len(rw.Before)),
		"bytes_after":  float64(len(rw.After)),
	}, nil, nil)

	if opts.DryRun {
		if rw.Changed {
			b.printf("⚠️  %s is out of date. Run the build to refresh it.\n", targetName)
		} else {
			b.printf("✅ %s is up to date.\n", targetName)
		}
		return res, nil
	}

	if !rw.Changed {
		b.printf("✅ %s already up to date.\n", targetName)
		return res, nil
	}

	b.printf("✅ %s updated successfully!\n", targetName)
	if opts.GitHints {
		if change, err := b.diffFile(ctx, target); err == nil && change != nil {
			res.ChangedLines = len(change.ChangedLines)
			b.printf("📊 %d lines of %s differ from HEAD.\n", res.ChangedLines, targetName)
		}
	}
	b.printf("\nNext steps:\n")
	b.printf("  1. Test locally: python3 -m http.server 8080\n")
	b.printf("  2. Commit: git add %s && git commit -m 'Update data'\n", targetName)
	b.printf("  3. Deploy: git push origin main\n")
	return res, nil
}

func (b *Builder) loadStage(ctx context.Context) ([]loader.Entry, *Result, error) {
	stage := b.report.BeginStage("load")
	res := &Result{}

	var loadOpts []loader.Option
	if b.cfg.Data.SchemaDir != "" {
		loadOpts = append(loadOpts, loader.WithSchemaDir(b.cfg.Data.SchemaDir))
	}
	lr, err := loader.Load(ctx, b.cfg.Data.Dir, b.cfg.Registry(), loadOpts...)
	if err != nil {
		b.report.EndStage(stage, nil, nil, err)
		return nil, res, err
	}

	for _, o := range lr.Outcomes {
		metric := DatasetMetric{ID: o.Dataset.ID, Path: o.Path, Status: o.Kind.String()}
		switch o.Kind {
		case loader.Loaded:
			metric.SourceBytes = len(o.Raw)
		case loader.Missing:
			b.printf("⚠️  Warning: %s not found\n", o.Path)
			b.report.AddSignal("dataset_missing", "load", "warning", o.Path+" not found")
		case loader.Invalid:
			metric.Error = o.Err.Error()
			b.report.AddSignal("dataset_invalid", "load", "critical", o.Err.Error())
		}
		b.report.AddDataset(metric)
	}

	loaded := lr.Loaded()
	for _, e := range loaded {
		res.Loaded = append(res.Loaded, e.ID)
	}
	res.Missing = lr.Missing()
	counters := map[string]float64{
		"loaded":  float64(len(loaded)),
		"missing": float64(len(res.Missing)),
	}

	if err := lr.Err(); err != nil {
		b.report.EndStage(stage, counters, nil, err)
		b.printf("❌ %v\n", err)
		return nil, res, err
	}
	if len(loaded) == 0 {
		b.report.EndStage(stage, counters, nil, ErrNoData)
		b.report.AddSignal("no_data", "load", "critical", "no dataset could be loaded")
		b.printf("❌ No data loaded. Check your JSON files.\n")
		return nil, res, ErrNoData
	}

	b.report.EndStage(stage, counters, nil, nil)
	b.printf("✓ Loaded %d data files\n", len(loaded))
	return loaded, res, nil
}

func (b *Builder) renderStage(loaded []loader.Entry) (string, error) {
	stage := b.report.BeginStage("render")
	entries := make([]splicer.Entry, 0, len(loaded))
	for _, e := range loaded {
		entries = append(entries, splicer.Entry{ID: e.ID, Raw: e.Raw})
	}

	decl, err := splicer.RenderDeclaration(entries)
	if err != nil {
		b.report.EndStage(stage, nil, nil, err)
		b.printf("❌ %v\n", err)
		return "", err
	}
	for _, e := range entries {
		if compact, err := splicer.Compact(e.Raw); err == nil {
			b.report.SetCompactBytes(e.ID, len(compact))
		}
	}
	b.report.EndStage(stage, map[string]float64{"declaration_bytes": float64(len(decl))}, nil, nil)
	return decl, nil
}

// changedStage reports which registered datasets differ from ref. Git
// failures are advisory and never abort the run.
func (b *Builder) changedStage(ctx context.Context, ref string) []string {
	stage := b.report.BeginStage("changes")
	dataDir := b.cfg.Data.Dir

	changes, err := b.changedFiles(ctx, dataDir, ref)
	if err != nil {
		b.report.EndStage(stage, nil, []string{err.Error()}, nil)
		b.report.AddSignal("git_unavailable", "changes", "warning", err.Error())
		b.printf("⚠️  Could not list data changes since %s: %v\n", ref, err)
		return nil
	}

	changed := make(map[string]bool, len(changes))
	for _, c := range changes {
		changed[filepath.Clean(filepath.FromSlash(c.Path))] = true
	}

	var ids []string
	for _, ds := range b.cfg.Registry() {
		rel := ds.Path
		if filepath.IsAbs(rel) {
			r, err := filepath.Rel(dataDir, rel)
			if err != nil {
				continue
			}
			rel = r
		}
		if changed[filepath.Clean(rel)] {
			ids = append(ids, ds.ID)
		}
	}

	b.report.EndStage(stage, map[string]float64{"changed": float64(len(ids))}, nil, nil)
	if len(ids) == 0 {
		b.printf("📝 No data files changed since %s\n", ref)
	} else {
		b.printf("📝 Changed since %s: %s\n", ref, strings.Join(ids, ", "))
	}
	return ids
}
