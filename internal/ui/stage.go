// Package ui provides terminal progress/status display for cmd/georag's
// ingest and build commands: a TTY-aware renderer selection, lipgloss
// styling, and a throughput sparkline, adapted from the teacher's indexing
// UI to the Index Builder's own stage names (spec §4.7).
package ui

import (
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
)

// Stage mirrors the Index Builder's finite-state stages (spec §4.7) for
// progress display purposes. It intentionally excludes Failed, which is
// reported via ErrorEvent instead of as a progress stage.
type Stage int

const (
	StageIdle Stage = iota
	StageNormalizing
	StageValidating
	StageChunking
	StageEmbedding
	StageFinalizing
	StageReady
)

// String returns the human-readable stage name.
func (s Stage) String() string {
	switch s {
	case StageIdle:
		return "Idle"
	case StageNormalizing:
		return "Normalizing"
	case StageValidating:
		return "Validating"
	case StageChunking:
		return "Chunking"
	case StageEmbedding:
		return "Embedding"
	case StageFinalizing:
		return "Finalizing"
	case StageReady:
		return "Ready"
	default:
		return "Unknown"
	}
}

// Icon returns the short stage label for plain text output.
func (s Stage) Icon() string {
	switch s {
	case StageIdle:
		return "IDLE"
	case StageNormalizing:
		return "NORM"
	case StageValidating:
		return "VALID"
	case StageChunking:
		return "CHUNK"
	case StageEmbedding:
		return "EMBED"
	case StageFinalizing:
		return "FINAL"
	case StageReady:
		return "READY"
	default:
		return "???"
	}
}

// ProgressEvent represents a progress update within a stage.
type ProgressEvent struct {
	Stage       Stage
	Current     int
	Total       int
	CurrentFile string
	Message     string
}

// ErrorEvent represents a per-dataset error or warning encountered during
// a build (spec §4.7: Lenient validity downgrades repairable defects to
// warnings, counted not fatal).
type ErrorEvent struct {
	File   string
	Err    error
	IsWarn bool
}

// StageTimings tracks duration for each build stage.
type StageTimings struct {
	Normalize  time.Duration
	Validate   time.Duration
	Chunk      time.Duration
	Embed      time.Duration
	Finalize   time.Duration
}

// EmbedderInfo summarizes the embedder backend in use.
type EmbedderInfo struct {
	Provider   string
	Model      string
	Dimensions int
}

// CompletionStats summarizes a finished build for the final render.
type CompletionStats struct {
	Datasets int
	Chunks   int
	Duration time.Duration
	Errors   int
	Warnings int
	Stages   StageTimings
	Embedder EmbedderInfo
}

// Renderer is the progress display interface. PlainRenderer and
// StyledRenderer are its two implementations, chosen by NewRenderer.
type Renderer interface {
	UpdateProgress(event ProgressEvent)
	AddError(event ErrorEvent)
	Complete(stats CompletionStats)
}

// Config configures a Renderer.
type Config struct {
	Output  io.Writer
	NoColor bool
}

// NewRenderer selects StyledRenderer for an interactive TTY and
// PlainRenderer otherwise (CI logs, pipes, redirected output) — builds run
// non-interactively in both cases, so there is no spinner/TUI mode, just a
// choice of how much the terminal is worth dressing up.
func NewRenderer(cfg Config) Renderer {
	if cfg.NoColor || DetectNoColor(cfg.Output) {
		return NewPlainRenderer(cfg)
	}
	return NewStyledRenderer(cfg)
}

// IsTTY checks if output is a terminal.
func IsTTY(w io.Writer) bool {
	if w == nil {
		return false
	}
	if f, ok := w.(*os.File); ok {
		return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return false
}

// DetectNoColor checks if NO_COLOR is set, or output isn't a TTY.
func DetectNoColor(w io.Writer) bool {
	if _, exists := os.LookupEnv("NO_COLOR"); exists {
		return true
	}
	return !IsTTY(w)
}
