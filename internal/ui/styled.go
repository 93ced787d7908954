package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// StyledRenderer renders build progress with lipgloss styling, a
// throughput sparkline, and the ProgressTracker's speed/ETA estimate, for
// interactive TTY sessions (spec's CLI is scaffolding, but a terminal still
// deserves the teacher's asitop-inspired treatment over a raw log stream).
type StyledRenderer struct {
	mu      sync.Mutex
	out     io.Writer
	styles  Styles
	stage   Stage
	spark   *Sparkline
	errors  int
	warns   int
	tracker *ProgressTracker
}

// NewStyledRenderer creates a styled renderer writing to cfg.Output.
func NewStyledRenderer(cfg Config) *StyledRenderer {
	return &StyledRenderer{
		out:     cfg.Output,
		styles:  GetStyles(cfg.NoColor),
		spark:   NewSparkline(40),
		tracker: NewProgressTracker(),
	}
}

func (r *StyledRenderer) UpdateProgress(event ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if event.Stage != r.stage {
		r.tracker.SetStage(event.Stage, event.Total)
		r.stage = event.Stage
	}
	if event.Total > 0 {
		r.tracker.Update(event.Current, event.CurrentFile)
		r.spark.Add(float64(event.Current))
	}

	label := r.styles.Stage.Render(fmt.Sprintf("[%s]", event.Stage))
	msg := event.Message
	if msg == "" {
		msg = event.CurrentFile
	}
	if event.Total > 0 {
		stats := r.tracker.Stats()
		detail := fmt.Sprintf("%d/%d", event.Current, event.Total)
		if stats.Speed.Current > 0 {
			detail += fmt.Sprintf(" (%.1f/s, eta %s)", stats.Speed.Current, stats.ETA.Round(time.Second))
		}
		fmt.Fprintf(r.out, "%s %s %s\n", label, r.styles.Active.Render(msg), detail)
	} else if msg != "" {
		fmt.Fprintf(r.out, "%s %s\n", label, msg)
	}
}

func (r *StyledRenderer) AddError(event ErrorEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.tracker.AddError(event)

	style := r.styles.Error
	prefix := "error"
	if event.IsWarn {
		style = r.styles.Warning
		prefix = "warn"
		r.warns++
	} else {
		r.errors++
	}

	line := fmt.Sprintf("%s: %v", prefix, event.Err)
	if event.File != "" {
		line = fmt.Sprintf("%s: %s: %v", prefix, event.File, event.Err)
	}
	fmt.Fprintln(r.out, style.Render(line))
}

// Complete renders a bordered summary panel, feeding stats.Stages into the
// sparkline so the panel shows relative stage cost at a glance (spec §4.7's
// stage list, not per-chunk throughput, since the Builder reports timings
// only at stage granularity).
func (r *StyledRenderer) Complete(stats CompletionStats) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, d := range []float64{
		stats.Stages.Normalize.Seconds(),
		stats.Stages.Validate.Seconds(),
		stats.Stages.Chunk.Seconds(),
		stats.Stages.Embed.Seconds(),
		stats.Stages.Finalize.Seconds(),
	} {
		r.spark.Add(d)
	}

	errorCount, warnCount := stats.Errors, stats.Warnings
	if errorCount == 0 && warnCount == 0 {
		errorCount, warnCount = r.errors, r.warns
	}

	var body strings.Builder
	fmt.Fprintf(&body, "%s\n", r.styles.Header.Render("build complete"))
	fmt.Fprintf(&body, "%s %d datasets, %d chunks in %s\n",
		r.styles.Label.Render("summary:"), stats.Datasets, stats.Chunks, stats.Duration.Round(0))
	if errorCount > 0 || warnCount > 0 {
		fmt.Fprintf(&body, "%s %d errors, %d warnings\n", r.styles.Warning.Render("issues:"), errorCount, warnCount)
	}
	if stats.Embedder.Model != "" {
		fmt.Fprintf(&body, "%s %s (%s, %d dims)\n",
			r.styles.Label.Render("embedder:"), stats.Embedder.Model, stats.Embedder.Provider, stats.Embedder.Dimensions)
	}
	fmt.Fprintf(&body, "%s %s", r.styles.Label.Render("stage cost:"), r.styles.Sparkline.Render(r.spark.Render()))

	fmt.Fprintln(r.out, r.styles.Panel.Render(body.String()))
}
