package pipeline

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

type ReportSignal struct {
	Code     string `json:"code"`
	Stage    string `json:"stage"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

type StageMetric struct {
	Name       string             `json:"name"`
	Status     string             `json:"status"`
	StartedAt  string             `json:"started_at"`
	FinishedAt string             `json:"finished_at"`
	DurationMS int64              `json:"duration_ms"`
	Counters   map[string]float64 `json:"counters,omitempty"`
	Notes      []string           `json:"notes,omitempty"`
	Error      string             `json:"error,omitempty"`
}

type DatasetMetric struct {
	ID           string `json:"id"`
	Path         string `json:"path"`
	Status       string `json:"status"`
	SourceBytes  int    `json:"source_bytes,omitempty"`
	CompactBytes int    `json:"compact_bytes,omitempty"`
	Error        string `json:"error,omitempty"`
}

type ReportSummary struct {
	StageCount        int            `json:"stage_count"`
	DatasetCount      int            `json:"dataset_count"`
	LoadedDatasets    int            `json:"loaded_datasets"`
	FailedStages      int            `json:"failed_stages"`
	SignalsBySeverity map[string]int `json:"signals_by_severity"`
}

type BuildReport struct {
	Version     string          `json:"version"`
	Mode        string          `json:"mode"`
	GeneratedAt string          `json:"generated_at"`
	Target      string          `json:"target"`
	Changed     bool            `json:"changed"`
	Written     bool            `json:"written"`
	Stages      []StageMetric   `json:"stages"`
	Datasets    []DatasetMetric `json:"datasets,omitempty"`
	Signals     []ReportSignal  `json:"signals,omitempty"`
	Summary     ReportSummary   `json:"summary"`
}

type StageHandle struct {
	name    string
	started time.Time
}

func NewBuildReport(mode, target string) *BuildReport {
	return &BuildReport{
		Version:     "v1",
		Mode:        mode,
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		Target:      target,
		Stages:      []StageMetric{},
		Datasets:    []DatasetMetric{},
		Signals:     []ReportSignal{},
	}
}

func (r *BuildReport) BeginStage(name string) StageHandle {
	return StageHandle{name: strings.TrimSpace(name), started: time.Now().UTC()}
}

func (r *BuildReport) EndStage(h StageHandle, counters map[string]float64, notes []string, err error) {
	if r == nil || h.name == "" {
		return
	}
	finished := time.Now().UTC()
	m := StageMetric{
		Name:       h.name,
		Status:     "ok",
		StartedAt:  h.started.Format(time.RFC3339Nano),
		FinishedAt: finished.Format(time.RFC3339Nano),
		DurationMS: finished.Sub(h.started).Milliseconds(),
		Counters:   cleanCounters(counters),
		Notes:      cleanNotes(notes),
	}
	if err != nil {
		m.Status = "error"
		m.Error = err.Error()
	}
	r.Stages = append(r.Stages, m)
}

func (r *BuildReport) AddSignal(code, stage, severity, message string) {
	if r == nil {
		return
	}
	s := ReportSignal{
		Code:     strings.TrimSpace(code),
		Stage:    strings.TrimSpace(stage),
		Severity: strings.ToLower(strings.TrimSpace(severity)),
		Message:  strings.TrimSpace(message),
	}
	if s.Code == "" || s.Stage == "" || s.Severity == "" || s.Message == "" {
		return
	}
	r.Signals = append(r.Signals, s)
}

func (r *BuildReport) AddDataset(m DatasetMetric) {
	if r == nil || strings.TrimSpace(m.ID) == "" {
		return
	}
	r.Datasets = append(r.Datasets, m)
}

// SetCompactBytes records the serialized size of an already added dataset.
func (r *BuildReport) SetCompactBytes(id string, n int) {
	if r == nil {
		return
	}
	for i := range r.Datasets {
		if r.Datasets[i].ID == id {
			r.Datasets[i].CompactBytes = n
			return
		}
	}
}

func (r *BuildReport) Finalize() {
	if r == nil {
		return
	}
	r.GeneratedAt = time.Now().UTC().Format(time.RFC3339)
	severityCount := map[string]int{
		"critical": 0,
		"warning":  0,
		"info":     0,
	}
	sort.SliceStable(r.Signals, func(i, j int) bool {
		pi := signalPriority(r.Signals[i].Severity)
		pj := signalPriority(r.Signals[j].Severity)
		if pi == pj {
			return r.Signals[i].Stage < r.Signals[j].Stage
		}
		return pi > pj
	})
	for _, s := range r.Signals {
		severityCount[s.Severity]++
	}

	failed := 0
	for _, st := range r.Stages {
		if st.Status != "ok" {
			failed++
		}
	}

	loaded := 0
	for _, ds := range r.Datasets {
		if ds.Status == "loaded" {
			loaded++
		}
	}

	r.Summary = ReportSummary{
		StageCount:        len(r.Stages),
		DatasetCount:      len(r.Datasets),
		LoadedDatasets:    loaded,
		FailedStages:      failed,
		SignalsBySeverity: severityCount,
	}
}

func (r *BuildReport) Save(path string) error {
	if r == nil {
		return nil
	}
	r.Finalize()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0644)
}

func cleanCounters(raw map[string]float64) map[string]float64 {
	if len(raw) == 0 {
		return nil
	}
	out := make(map[string]float64, len(raw))
	for k, v := range raw {
		key := strings.TrimSpace(k)
		if key == "" {
			continue
		}
		out[key] = v
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func cleanNotes(raw []string) []string {
	if len(raw) == 0 {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, n := range raw {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		out = append(out, n)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func signalPriority(severity string) int {
	switch severity {
	case "critical":
		return 3
	case "warning":
		return 2
	default:
		return 1
	}
}
