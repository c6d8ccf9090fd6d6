package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/bamsammich/rat/internal/config"
	"github.com/bamsammich/rat/internal/engine"
	"github.com/bamsammich/rat/internal/event"
	"github.com/bamsammich/rat/internal/stats"
	"github.com/bamsammich/rat/internal/ui"
)

var version = "dev"

const program = "rat"

// maxBufferSize caps --buffer-size; the buffer is allocated in full.
const maxBufferSize = 1 << 30

func main() {
	os.Exit(run(os.Args[1:], stdio{in: os.Stdin, out: os.Stdout, err: os.Stderr}))
}

// stdio is the process's standard streams. Classification needs real
// descriptors, so these are files rather than readers and writers.
type stdio struct {
	in, out, err *os.File
}

// dirPolicyFlag is a pflag.Value restricting --dir-policy to known policies.
type dirPolicyFlag struct {
	policy *engine.DirPolicy
}

func (f dirPolicyFlag) String() string {
	if f.policy != nil && *f.policy == engine.DirSkip {
		return "skip"
	}
	return "error"
}

func (dirPolicyFlag) Type() string { return "policy" }

func (f dirPolicyFlag) Set(val string) error {
	switch val {
	case "error":
		*f.policy = engine.DirError
	case "skip":
		*f.policy = engine.DirSkip
	default:
		return fmt.Errorf("%q is not one of error, skip", val)
	}
	return nil
}

var _ pflag.Value = dirPolicyFlag{}

type options struct {
	output        string
	appendOutput  bool
	dirPolicy     engine.DirPolicy
	noBulk        bool
	bufferSizeStr string
	bwLimitStr    string
	showStats     bool
	verbose       bool
	logFile       string
	showVersion   bool
}

func run(args []string, s stdio) int {
	rootCmd := newRootCmd(s)
	rootCmd.SetArgs(args)
	rootCmd.SetOut(s.out)
	rootCmd.SetErr(s.err)

	if err := rootCmd.Execute(); err != nil {
		var exitErr *exitError
		if errors.As(err, &exitErr) {
			return exitErr.code
		}
		fmt.Fprintf(s.err, "%s: %v\n", program, err)
		return 2
	}
	return 0
}

func newRootCmd(s stdio) *cobra.Command {
	var opts options

	rootCmd := &cobra.Command{
		Use:   "rat [flags] [FILE]...",
		Short: "Concatenate files to standard output, using kernel copies where possible",
		Long: `Concatenate FILE(s) to standard output, in order.

With no FILE, or when FILE is -, read standard input. Regular files are
copied with copy_file_range(2) or sendfile(2) where the kernel supports it;
everything else goes through a buffered read/write loop. Output is
byte-identical either way.`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.showVersion {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", program, version)
				return nil
			}
			return runCat(cmd, args, s, &opts)
		},
	}

	rootCmd.Flags().BoolVar(&opts.showVersion, "version", false, "print version and exit")
	rootCmd.Flags().
		StringVarP(&opts.output, "output", "o", "", "write to FILE instead of standard output (truncates)")
	rootCmd.Flags().
		BoolVarP(&opts.appendOutput, "append", "a", false, "with --output, append instead of truncating")
	rootCmd.Flags().
		Var(dirPolicyFlag{policy: &opts.dirPolicy}, "dir-policy", "directory inputs: error or skip")
	rootCmd.Flags().BoolVar(&opts.noBulk, "no-bulk", false, "disable copy_file_range/sendfile")
	rootCmd.Flags().
		StringVar(&opts.bufferSizeStr, "buffer-size", "", "read/write buffer size for non-pipe streams (e.g. 256K)")
	rootCmd.Flags().
		StringVar(&opts.bwLimitStr, "bwlimit", "", "bandwidth limit in bytes/sec (e.g. 10M)")
	rootCmd.Flags().BoolVar(&opts.showStats, "stats", false, "print a summary to standard error when done")
	rootCmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "verbose (debug) logging")
	rootCmd.Flags().StringVar(&opts.logFile, "log", "", "write structured JSON log to FILE")

	// FILE operands must not collide with generated subcommands; only the
	// hidden gen-docs and help remain, and "--" or ./help reaches a file.
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.AddCommand(newDocsCmd())

	return rootCmd
}

//nolint:gocyclo,revive // cyclomatic,cognitive-complexity: CLI entry point wires flags, config, logging and the run
func runCat(cmd *cobra.Command, args []string, s stdio, opts *options) error {
	if opts.appendOutput && opts.output == "" {
		return errors.New("--append requires --output")
	}

	// Load optional config file.
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(s.err, "%s: %v\n", program, err)
	}
	applyConfigDefaults(cmd, cfg.Defaults, opts)

	var bufferSize int
	if opts.bufferSizeStr != "" {
		n, err := config.ParseSize(opts.bufferSizeStr)
		if err != nil {
			return fmt.Errorf("invalid --buffer-size: %w", err)
		}
		if n <= 0 || n > maxBufferSize {
			return fmt.Errorf("invalid --buffer-size: %s out of range", opts.bufferSizeStr)
		}
		bufferSize = int(n)
	}

	var bwLimit int64
	if opts.bwLimitStr != "" {
		bwLimit, err = config.ParseSize(opts.bwLimitStr)
		if err != nil {
			return fmt.Errorf("invalid --bwlimit: %w", err)
		}
	}

	// Configure logging.
	logLevel := slog.LevelWarn
	if opts.verbose {
		logLevel = slog.LevelDebug
	}
	var logHandler slog.Handler = slog.NewTextHandler(s.err, &slog.HandlerOptions{
		Level: logLevel,
	})
	if opts.logFile != "" {
		lf, lfErr := os.Create(opts.logFile)
		if lfErr != nil {
			return fmt.Errorf("open log file: %w", lfErr)
		}
		defer lf.Close()
		jsonHandler := slog.NewJSONHandler(lf, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})
		logHandler = ui.NewMultiHandler(logHandler, jsonHandler)
	}
	slog.SetDefault(slog.New(logHandler))

	out, err := openOutput(opts, s.out)
	if err != nil {
		return err
	}

	engineOpts := engine.Options{
		NoBulk:     opts.noBulk,
		BufferSize: bufferSize,
		DirPolicy:  opts.dirPolicy,
	}
	if bwLimit > 0 {
		engineOpts.Limiter = engine.NewBWLimiter(bwLimit)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	// A blocked read is only interrupted by a second signal, so restore the
	// default disposition once the first one has cancelled the run.
	context.AfterFunc(ctx, stop)

	collector := stats.NewCollector()
	events := make(chan event.Event, 256)

	// When --log is set, tee events through a logging goroutine that writes
	// structured records before forwarding to the presenter.
	presenterEvents := (<-chan event.Event)(events)
	if opts.logFile != "" {
		presenterEvents = teeEvents(events)
	}

	presenter := ui.NewPresenter(ui.Config{
		Program:   program,
		ErrWriter: s.err,
		Stats:     collector,
		IsTTY:     ui.IsTTY(s.err.Fd()),
		ShowStats: opts.showStats,
	})
	presenterDone := make(chan error, 1)
	go func() {
		presenterDone <- presenter.Run(presenterEvents)
	}()

	inputs := engine.ParseInputs(args)
	slog.Debug("starting",
		"inputs", len(inputs),
		"output", out.Name,
		"output_kind", out.Stat.Kind,
		"bulk", !engineOpts.NoBulk,
		"buffer_size", engineOpts.BufferSize,
		"bwlimit", bwLimit,
	)

	result := engine.Run(ctx, engine.Config{
		Inputs:  inputs,
		Stdin:   s.in,
		Output:  out,
		Options: engineOpts,
		Events:  events,
		Stats:   collector,
	})
	close(events)
	if perr := <-presenterDone; perr != nil {
		slog.Debug("presenter", "error", perr)
	}

	// Delayed write errors (NFS, quota) surface at close.
	failed := result.Failed()
	if cerr := out.Close(); cerr != nil {
		fmt.Fprintln(s.err, ui.Diagnostic(program, out.Name, &engine.WriteError{Name: out.Name, Err: cerr}))
		failed = true
	}

	if summary := presenter.Summary(); summary != "" {
		fmt.Fprintln(s.err, summary)
	}

	if interrupted(ctx, result) {
		fmt.Fprintf(s.err, "%s: interrupted\n", program)
	}
	if failed {
		slog.Debug("run failed", "error", result.Err, "aborted", result.Aborted)
		return &exitError{code: 1}
	}
	return nil
}

// interrupted reports whether a signal cut the run short, including a
// cancellation that landed while the last input was being copied.
func interrupted(ctx context.Context, result engine.Result) bool {
	if ctx.Err() != nil {
		return true
	}
	for _, out := range result.Outcomes {
		if errors.Is(out.Err, context.Canceled) {
			return true
		}
	}
	return errors.Is(result.Err, context.Canceled)
}

// openOutput returns the shared output handle: standard output (borrowed)
// or the --output file (owned, closed by the caller).
func openOutput(opts *options, stdout *os.File) (*engine.StreamHandle, error) {
	if opts.output == "" {
		return engine.NewHandle(stdout, "standard output"), nil
	}
	flag := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if opts.appendOutput {
		flag = os.O_WRONLY | os.O_CREATE | os.O_APPEND
	}
	f, err := os.OpenFile(opts.output, flag, 0o666)
	if err != nil {
		return nil, fmt.Errorf("open output: %w", err)
	}
	return engine.OwnHandle(f, opts.output), nil
}

func teeEvents(events <-chan event.Event) <-chan event.Event {
	teed := make(chan event.Event, 256)
	go func() {
		for ev := range events {
			attrs := []slog.Attr{
				slog.String("type", ev.Type.String()),
				slog.String("name", ev.Name),
				slog.Int("index", ev.Index),
				slog.Int64("size", ev.Size),
			}
			if ev.Method != "" {
				attrs = append(attrs, slog.String("method", ev.Method))
			}
			if ev.Error != nil {
				attrs = append(attrs, slog.String("error", ev.Error.Error()))
			}
			slog.LogAttrs(context.Background(), slog.LevelInfo, "rat.event", attrs...)
			teed <- ev
		}
		close(teed)
	}()
	return teed
}

// applyConfigDefaults applies config file defaults for flags not explicitly
// set on the CLI. Values were validated when the file was loaded.
func applyConfigDefaults(cmd *cobra.Command, defaults config.DefaultsConfig, opts *options) {
	if !cmd.Flags().Changed("dir-policy") && defaults.DirPolicy != nil {
		_ = dirPolicyFlag{policy: &opts.dirPolicy}.Set(*defaults.DirPolicy) //nolint:errcheck // validated by config.Load
	}
	if !cmd.Flags().Changed("no-bulk") && defaults.Bulk != nil {
		opts.noBulk = !*defaults.Bulk
	}
	if !cmd.Flags().Changed("buffer-size") && defaults.BufferSize != nil {
		opts.bufferSizeStr = *defaults.BufferSize
	}
	if !cmd.Flags().Changed("bwlimit") && defaults.BWLimit != nil {
		opts.bwLimitStr = *defaults.BWLimit
	}
	if !cmd.Flags().Changed("stats") && defaults.Stats != nil {
		opts.showStats = *defaults.Stats
	}
}

type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit code %d", e.code)
}
