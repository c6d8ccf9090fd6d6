package engine

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/bamsammich/rat/internal/event"
	"github.com/bamsammich/rat/internal/stats"
)

// Config describes one concatenation run.
type Config struct {
	Inputs []InputSpec
	// Stdin backs every standard-input spec. It is borrowed, never closed.
	Stdin *os.File
	// Output is the single shared destination, opened by the caller.
	Output  *StreamHandle
	Options Options
	// Events, when set, receives one InputStarted and one terminal event per
	// processed input, as they happen. The engine never closes it.
	Events chan<- event.Event
	Stats  *stats.Collector
}

// Result is the outcome of a run.
type Result struct {
	Outcomes []Outcome
	Stats    stats.Snapshot
	// Err is the first per-input error, or the error that stopped the run
	// (a write failure or cancellation).
	Err error
	// Aborted is set when inputs were left unprocessed.
	Aborted bool
}

// Failed reports whether any input failed or the run was cut short.
func (r Result) Failed() bool {
	return r.Err != nil
}

// Run processes the inputs strictly in order, one at a time, writing each to
// cfg.Output. A failure to open, self-copy, or read one input is reported
// and the next input proceeds. A write failure leaves the shared output
// unusable, so the remaining inputs are never opened.
func Run(ctx context.Context, cfg Config) Result {
	collector := cfg.Stats
	if collector == nil {
		collector = stats.NewCollector()
	}

	var res Result
	for i, spec := range cfg.Inputs {
		if err := ctx.Err(); err != nil {
			res.Aborted = true
			if res.Err == nil {
				res.Err = err
			}
			break
		}

		emit(cfg.Events, event.Event{Type: event.InputStarted, Name: spec.Name(), Index: i})
		out := runOne(ctx, spec, cfg)
		res.Outcomes = append(res.Outcomes, out)
		record(collector, out)
		emit(cfg.Events, outcomeEvent(i, out))

		if out.Err == nil {
			continue
		}
		if res.Err == nil {
			res.Err = out.Err
		}
		if IsFatal(out.Err) {
			slog.Debug("output unusable, stopping", "input", spec.Name(), "remaining", len(cfg.Inputs)-i-1)
			res.Aborted = i < len(cfg.Inputs)-1
			res.Err = out.Err
			break
		}
	}

	res.Stats = collector.Snapshot()
	return res
}

// runOne owns the input handle for the duration of one transfer and closes
// it on every path.
func runOne(ctx context.Context, spec InputSpec, cfg Config) Outcome {
	in, err := OpenInput(spec, cfg.Stdin)
	if err != nil {
		return Outcome{Input: spec, States: []State{Opening, Failed}, Err: err}
	}
	defer func() {
		if cerr := in.Close(); cerr != nil {
			slog.Debug("close input", "input", spec.Name(), "error", cerr)
		}
	}()

	slog.Debug("transfer",
		"input", spec.Name(),
		"in_kind", in.Stat.Kind,
		"out_kind", cfg.Output.Stat.Kind,
		"size", in.Stat.Size,
	)

	out := Transfer(ctx, in, cfg.Output, cfg.Options)
	out.Input = spec
	out.States = append([]State{Opening}, out.States...)
	return out
}

func record(c *stats.Collector, out Outcome) {
	if out.BulkBytes > 0 {
		c.AddBytes(out.BulkBytes, true)
	}
	if buffered := out.Bytes - out.BulkBytes; buffered > 0 {
		c.AddBytes(buffered, false)
	}
	switch out.State() {
	case Completed:
		c.AddInputsCompleted(1)
	case Skipped:
		c.AddInputsSkipped(1)
	default:
		c.AddInputsFailed(1)
	}
}

func outcomeEvent(i int, out Outcome) event.Event {
	ev := event.Event{
		Name:  out.Input.Name(),
		Index: i,
		Size:  out.Bytes,
		Error: out.Err,
	}
	if out.Bytes > 0 {
		ev.Method = out.Method.String()
	}
	switch out.State() {
	case Completed:
		ev.Type = event.InputCompleted
	case Skipped:
		ev.Type = event.InputSkipped
	default:
		ev.Type = event.InputFailed
	}
	return ev
}

func emit(events chan<- event.Event, ev event.Event) {
	if events == nil {
		return
	}
	ev.Timestamp = time.Now()
	events <- ev
}
