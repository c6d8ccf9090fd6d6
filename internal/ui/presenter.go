package ui

import (
	"errors"
	"fmt"
	"io"

	"github.com/bamsammich/rat/internal/engine"
	"github.com/bamsammich/rat/internal/stats"
)

// Config configures a Presenter.
type Config struct {
	// Program prefixes every diagnostic line.
	Program   string
	ErrWriter io.Writer
	Stats     *stats.Collector
	// IsTTY selects the human summary format; otherwise the summary is the
	// key=value form of stats.Snapshot.
	IsTTY bool
	// ShowStats enables the end-of-run summary.
	ShowStats bool
}

// Presenter consumes engine events and writes diagnostics to the error
// stream as each failure arrives.
type Presenter struct {
	cfg    Config
	failed int
}

// NewPresenter creates a presenter for cfg.
func NewPresenter(cfg Config) *Presenter {
	if cfg.Program == "" {
		cfg.Program = "rat"
	}
	return &Presenter{cfg: cfg}
}

// Run consumes events until the channel closes. Blocks until done.
func (p *Presenter) Run(events <-chan Event) error {
	for ev := range events {
		if ev.Type != InputFailed {
			continue
		}
		p.failed++
		if _, err := fmt.Fprintln(p.cfg.ErrWriter, Diagnostic(p.cfg.Program, ev.Name, ev.Error)); err != nil {
			// Keep draining so the engine never blocks on a dead stderr.
			for range events {
			}
			return err
		}
	}
	return nil
}

// Failed returns the number of diagnostics printed.
func (p *Presenter) Failed() int { return p.failed }

// Summary returns the final summary line, or "" when stats are off.
func (p *Presenter) Summary() string {
	if !p.cfg.ShowStats || p.cfg.Stats == nil {
		return ""
	}
	snap := p.cfg.Stats.Snapshot()
	if p.cfg.IsTTY {
		return CompletionSummary(snap)
	}
	return snap.String()
}

// Diagnostic formats one failed input as "<program>: <name>: <cause>".
// Operation and path decorations are stripped from err; a failed write
// is called out since it ends the run.
func Diagnostic(program, name string, err error) string {
	if err == nil {
		return fmt.Sprintf("%s: %s: failed", program, name)
	}
	cause := engine.Cause(err)
	var we *engine.WriteError
	if errors.As(err, &we) {
		return fmt.Sprintf("%s: %s: write error: %v", program, name, cause)
	}
	return fmt.Sprintf("%s: %s: %v", program, name, cause)
}
