// Package analysis runs the containerized differential analysis over files
// tracked in a project.
package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cinderlab/cinder/internal/config"
	"github.com/cinderlab/cinder/internal/domain/project"
	"github.com/spf13/afero"
)

const (
	CategoryUnprocessed = project.Category("unprocessed")
	CategoryAnnotation  = project.Category("sample_annotation")
	CategoryComparison  = project.Category("comparison_matrix")
	CategoryOutput      = project.Category("differential_analysis")

	containerRoot = "/data"
)

var ErrInvalidParams = errors.New("invalid analysis parameters")

// Params selects the inputs and tuning of one analysis run. File names are
// relative to their category folder.
type Params struct {
	Unprocessed       string
	Annotation        string
	Comparison        string
	Output            string
	IndexColumns      []string
	ColumnNAThreshold float64
	RowNAThreshold    float64
	Imputation        string
	Normalization     string
	Aggregation       string
	AggregationColumn string
}

// DefaultParams returns the tuning used when a run does not override it.
func DefaultParams() Params {
	return Params{
		ColumnNAThreshold: 0.7,
		RowNAThreshold:    0.7,
		Imputation:        "knn",
		Normalization:     "quantiles.robust",
		Aggregation:       "MsCoreUtils::robustSummary",
	}
}

// Validate checks the parameters against the project's tracked files.
func (p Params) Validate(snap *project.Snapshot) error {
	inputs := []struct {
		flag     string
		category project.Category
		name     string
	}{
		{"unprocessed", CategoryUnprocessed, p.Unprocessed},
		{"annotation", CategoryAnnotation, p.Annotation},
		{"comparison", CategoryComparison, p.Comparison},
	}
	for _, in := range inputs {
		if in.name == "" {
			return fmt.Errorf("%w: %s file is required", ErrInvalidParams, in.flag)
		}
		if !tracked(snap, in.category, in.name) {
			return fmt.Errorf("%w: %s/%s is not tracked in the project", ErrInvalidParams, in.category, in.name)
		}
	}
	if p.Output == "" || strings.ContainsAny(p.Output, `/\`) {
		return fmt.Errorf("%w: output must be a plain file name", ErrInvalidParams)
	}
	if len(p.IndexColumns) == 0 {
		return fmt.Errorf("%w: at least one index column is required", ErrInvalidParams)
	}
	if p.ColumnNAThreshold < 0 || p.ColumnNAThreshold > 1 {
		return fmt.Errorf("%w: column NA threshold %v outside [0,1]", ErrInvalidParams, p.ColumnNAThreshold)
	}
	if p.RowNAThreshold < 0 || p.RowNAThreshold > 1 {
		return fmt.Errorf("%w: row NA threshold %v outside [0,1]", ErrInvalidParams, p.RowNAThreshold)
	}
	return nil
}

func tracked(snap *project.Snapshot, cat project.Category, name string) bool {
	segments := strings.Split(path.Clean(filepath.ToSlash(name)), "/")
	want := project.Location{Category: cat, Path: path.Join(segments[:len(segments)-1]...), Filename: segments[len(segments)-1]}
	for _, rec := range snap.Files[cat] {
		if rec.Loc() == want {
			return true
		}
	}
	return false
}

// Args returns the analysis arguments with paths as seen inside the container.
func (p Params) Args() []string {
	args := []string{
		"-u", path.Join(containerRoot, string(CategoryUnprocessed), filepath.ToSlash(p.Unprocessed)),
		"-a", path.Join(containerRoot, string(CategoryAnnotation), filepath.ToSlash(p.Annotation)),
		"-c", path.Join(containerRoot, string(CategoryComparison), filepath.ToSlash(p.Comparison)),
		"-o", path.Join(containerRoot, string(CategoryOutput), p.Output),
		"-x", strings.Join(p.IndexColumns, ","),
		"-f", strconv.FormatFloat(p.ColumnNAThreshold, 'f', -1, 64),
		"-r", strconv.FormatFloat(p.RowNAThreshold, 'f', -1, 64),
		"-i", p.Imputation,
		"-n", p.Normalization,
	}
	if p.AggregationColumn != "" {
		args = append(args, "-g", p.Aggregation, "-t", p.AggregationColumn)
	}
	return args
}

// Runner executes an external command.
type Runner interface {
	Run(ctx context.Context, name string, args []string, stdout, stderr io.Writer) error
}

// ExecRunner runs commands as child processes.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args []string, stdout, stderr io.Writer) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	return cmd.Run()
}

// Result describes a finished run.
type Result struct {
	Command    []string
	OutputFile string
	RecordFile string
}

// Analyzer runs the analysis container against a project's data folder.
type Analyzer struct {
	fs     afero.Fs
	runner Runner
	image  string
	docker string
	logger *slog.Logger
}

// New creates an analyzer. A nil runner runs the container through os/exec.
func New(cfg config.AnalysisConfig, fs afero.Fs, runner Runner, logger *slog.Logger) *Analyzer {
	if runner == nil {
		runner = ExecRunner{}
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	image, docker := cfg.Image, cfg.Docker
	if image == "" {
		image = config.Default().Analysis.Image
	}
	if docker == "" {
		docker = "docker"
	}
	return &Analyzer{fs: fs, runner: runner, image: image, docker: docker, logger: logger}
}

// Command returns the full container invocation for p.
func (a *Analyzer) Command(snap *project.Snapshot, p Params) []string {
	cmd := []string{a.docker, "run", "--rm", "-v", snap.DataPath + ":" + containerRoot, a.image}
	return append(cmd, p.Args()...)
}

// Run validates p, runs the container and records the analysis arguments in
// "<output>.json" under the output category.
func (a *Analyzer) Run(ctx context.Context, snap *project.Snapshot, p Params) (*Result, error) {
	if err := p.Validate(snap); err != nil {
		return nil, err
	}
	outDir := filepath.Join(snap.DataPath, string(CategoryOutput))
	if err := a.fs.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output folder: %w", err)
	}

	cmd := a.Command(snap, p)
	a.logger.Info("starting differential analysis", "image", a.image, "output", p.Output)

	var stderr bytes.Buffer
	if err := a.runner.Run(ctx, cmd[0], cmd[1:], io.Discard, &stderr); err != nil {
		msg := strings.TrimSpace(stderr.String())
		a.logger.Error("differential analysis failed", "error", err, "stderr", msg)
		if msg != "" {
			return nil, fmt.Errorf("run analysis: %w: %s", err, msg)
		}
		return nil, fmt.Errorf("run analysis: %w", err)
	}

	record, err := json.MarshalIndent(p.Args(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode analysis record: %w", err)
	}
	recordFile := filepath.Join(outDir, p.Output+".json")
	if err := afero.WriteFile(a.fs, recordFile, record, 0o644); err != nil {
		return nil, fmt.Errorf("write analysis record: %w", err)
	}

	return &Result{
		Command:    cmd,
		OutputFile: filepath.Join(outDir, p.Output),
		RecordFile: recordFile,
	}, nil
}
