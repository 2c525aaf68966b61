// Package pipeline wires the EDA stages into a fixed sequence: validation,
// shape metadata, descriptive statistics, visualizations, anomaly detection,
// narrative and final report assembly. One State value is threaded through
// the stages in order; stages never run concurrently within an invocation.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/KaramelBytes/dataloom-cli/internal/analysis"
	"github.com/KaramelBytes/dataloom-cli/internal/dataset"
	"github.com/KaramelBytes/dataloom-cli/internal/narrate"
	"github.com/KaramelBytes/dataloom-cli/internal/viz"
)

// Error codes surfaced to callers.
const (
	CodeUnsupportedFormat = "unsupported_format"
	CodeLoadFailed        = "load_failed"
	CodeStageFailed       = "stage_failed"
	CodeExternalService   = "external_service"
)

// Error is the JSON-safe error shape returned to callers. It wraps the
// underlying error so typed inspection via errors.As still works.
type Error struct {
	Code    string `json:"error_code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *Error) Error() string { return e.Code + ": " + e.Message }

func (e *Error) Unwrap() error { return e.Err }

// Report is the externally visible result. Key casing is part of the format.
type Report struct {
	Validation     analysis.Validation             `json:"Validation"`
	SummaryInfo    analysis.Info                   `json:"Summary_info"`
	Summary        map[string]analysis.ColumnStats `json:"Summary"`
	Anomalies      map[string]int                  `json:"Anomalies"`
	Narrative      string                          `json:"Narrative"`
	Visualizations map[string]string               `json:"Visualizations"`
}

// State is the single value threaded through the stages. The frame is
// immutable after load; each stage fills in only its own fields.
type State struct {
	Path  string
	RunID string
	Frame *dataset.Frame

	Validation analysis.Validation
	Info       analysis.Info
	Summary    map[string]analysis.ColumnStats
	Corr       *analysis.CorrMatrix
	Plots      map[string]string
	Anomalies  map[string]int
	Narrative  string
	Warnings   []string

	Report *Report
}

// Stage is one named step of the pipeline.
type Stage struct {
	Name string
	Run  func(ctx context.Context, st *State) error
}

// Stage trace statuses.
const (
	StatusDone   = "done"
	StatusFailed = "failed"
)

// StageStatus records one stage's outcome for the run trace.
type StageStatus struct {
	Name       string `json:"name"`
	Status     string `json:"status"`
	DurationMS int64  `json:"duration_ms"`
	Err        string `json:"error,omitempty"`
}

// Result bundles the report with run metadata.
type Result struct {
	RunID    string
	Report   *Report
	Stages   []StageStatus
	Warnings []string
	Duration time.Duration
}

// Options configures a Pipeline.
type Options struct {
	// StaticDir is the root directory for plot output; plots for a run are
	// written under StaticDir/<run id>/ so concurrent runs cannot collide.
	StaticDir string
	// Narrator generates the narrative. Nil disables generation and a
	// placeholder narrative is used instead.
	Narrator *narrate.Narrator
	Logger   *slog.Logger
}

type Pipeline struct {
	staticDir string
	narrator  *narrate.Narrator
	logger    *slog.Logger
}

func New(opts Options) *Pipeline {
	if opts.StaticDir == "" {
		opts.StaticDir = "static"
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Pipeline{
		staticDir: opts.StaticDir,
		narrator:  opts.Narrator,
		logger:    opts.Logger,
	}
}

func (p *Pipeline) stages() []Stage {
	return []Stage{
		{Name: "validate_data", Run: p.validateData},
		{Name: "summary_info", Run: p.summaryInfo},
		{Name: "generate_summary", Run: p.generateSummary},
		{Name: "create_visualizations", Run: p.createVisualizations},
		{Name: "generate_anomalies", Run: p.generateAnomalies},
		{Name: "generate_narrative", Run: p.generateNarrative},
		{Name: "generate_report", Run: p.generateReport},
	}
}

// Run loads the dataset at path and executes every stage in order.
// Load failures are reported before any stage executes; a stage failure
// aborts the run. Cancellation is checked between stages.
func (p *Pipeline) Run(ctx context.Context, path string) (*Result, error) {
	start := time.Now()
	runID := uuid.NewString()
	logger := p.logger.With("run_id", runID, "dataset", path)

	f, err := dataset.Load(path)
	if err != nil {
		var unsupported *dataset.UnsupportedFormatError
		if errors.As(err, &unsupported) {
			return nil, &Error{Code: CodeUnsupportedFormat, Message: err.Error(), Err: err}
		}
		return nil, &Error{Code: CodeLoadFailed, Message: err.Error(), Err: err}
	}
	logger.Debug("dataset loaded", "rows", f.Rows, "columns", len(f.Cols))

	st := &State{Path: path, RunID: runID, Frame: f}
	stages := p.stages()
	trace := make([]StageStatus, 0, len(stages))
	for _, stage := range stages {
		if err := ctx.Err(); err != nil {
			return nil, &Error{Code: CodeStageFailed, Message: fmt.Sprintf("%s: %v", stage.Name, err), Err: err}
		}
		stageStart := time.Now()
		logger.Debug("stage started", "stage", stage.Name)
		err := stage.Run(ctx, st)
		status := StageStatus{
			Name:       stage.Name,
			Status:     StatusDone,
			DurationMS: time.Since(stageStart).Milliseconds(),
		}
		if err != nil {
			status.Status = StatusFailed
			status.Err = err.Error()
			logger.Error("stage failed", "stage", stage.Name, "error", err)
			return nil, &Error{Code: CodeStageFailed, Message: fmt.Sprintf("%s: %v", stage.Name, err), Err: err}
		}
		trace = append(trace, status)
		logger.Debug("stage finished", "stage", stage.Name, "duration_ms", status.DurationMS)
	}

	res := &Result{
		RunID:    runID,
		Report:   st.Report,
		Stages:   trace,
		Warnings: st.Warnings,
		Duration: time.Since(start),
	}
	logger.Info("pipeline finished",
		"duration_ms", res.Duration.Milliseconds(),
		"warnings", len(res.Warnings))
	return res, nil
}

func (p *Pipeline) validateData(_ context.Context, st *State) error {
	st.Validation = analysis.Validate(st.Frame)
	return nil
}

func (p *Pipeline) summaryInfo(_ context.Context, st *State) error {
	st.Info = analysis.DatasetInfo(st.Frame)
	return nil
}

func (p *Pipeline) generateSummary(_ context.Context, st *State) error {
	st.Summary = analysis.Describe(st.Frame)
	return nil
}

func (p *Pipeline) createVisualizations(_ context.Context, st *State) error {
	st.Corr = analysis.Correlation(st.Frame)
	r := viz.New(p.staticDir, st.RunID, p.logger)
	plots, warnings, err := r.Render(st.Frame, st.Corr)
	if err != nil {
		return err
	}
	st.Plots = plots
	st.Warnings = append(st.Warnings, warnings...)
	return nil
}

func (p *Pipeline) generateAnomalies(_ context.Context, st *State) error {
	st.Anomalies = analysis.Anomalies(st.Frame)
	return nil
}

func (p *Pipeline) generateNarrative(ctx context.Context, st *State) error {
	if p.narrator == nil {
		st.Narrative = "Narrative generation disabled."
		return nil
	}
	st.Narrative = p.narrator.Narrate(ctx, narrate.Input{
		Validation: st.Validation,
		Info:       st.Info,
		Summary:    st.Summary,
		Anomalies:  st.Anomalies,
	})
	return nil
}

func (p *Pipeline) generateReport(_ context.Context, st *State) error {
	st.Report = assembleReport(st)
	return nil
}

// assembleReport is pure aggregation of prior stage output.
func assembleReport(st *State) *Report {
	return &Report{
		Validation:     st.Validation,
		SummaryInfo:    st.Info,
		Summary:        st.Summary,
		Anomalies:      st.Anomalies,
		Narrative:      st.Narrative,
		Visualizations: st.Plots,
	}
}
