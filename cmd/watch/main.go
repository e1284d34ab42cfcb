package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/ZanzyTHEbar/approachability-meter/internal/config"
	"github.com/ZanzyTHEbar/approachability-meter/internal/detector"
	"github.com/ZanzyTHEbar/approachability-meter/internal/monitoring"
	"github.com/ZanzyTHEbar/approachability-meter/internal/poller"
	"github.com/ZanzyTHEbar/approachability-meter/internal/view"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

type options struct {
	frames     string
	classifier string
	interval   time.Duration
	timeout    time.Duration
	once       bool
	logLevel   string
}

func main() {
	// flags may supply what the environment lacks, so validation waits for RunE
	cfg, err := config.LoadEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if err := newRootCmd(cfg).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(cfg *config.Config) *cobra.Command {
	opts := options{}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Score the approachability of frames from a directory",
		Long: "watch sends the images in a directory to the emotion classification service, " +
			"one per interval, and prints the detected emotions, score and tips for each.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.check(); err != nil {
				return err
			}

			cfg.FrameDir = opts.frames
			cfg.ClassifierURL = opts.classifier
			cfg.PollInterval = opts.interval
			cfg.ClassifierTimeout = opts.timeout
			if err := cfg.Validate(); err != nil {
				return err
			}

			return run(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.frames, "frames", cfg.FrameDir, "directory of .jpg/.png frames (FRAME_DIR)")
	flags.StringVar(&opts.classifier, "classifier", cfg.ClassifierURL, "classification service base URL (CLASSIFIER_URL)")
	flags.DurationVar(&opts.interval, "interval", cfg.PollInterval, "time between frames (POLL_INTERVAL)")
	flags.DurationVar(&opts.timeout, "timeout", cfg.ClassifierTimeout, "classifier request timeout (CLASSIFIER_TIMEOUT)")
	flags.BoolVar(&opts.once, "once", false, "exit after the first classified frame")
	flags.StringVar(&opts.logLevel, "log-level", "warn", "log level written to stderr")

	return cmd
}

func (o options) check() error {
	if o.frames == "" {
		return errors.New("--frames is required")
	}
	if o.classifier == "" {
		return errors.New("--classifier is required")
	}
	return nil
}

func run(ctx context.Context, out, errOut io.Writer, opts options) error {
	if err := opts.check(); err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	logger := monitoring.NewLoggerWithWriter(errOut, opts.logLevel, "text")
	metrics := monitoring.NewMetrics(prometheus.NewRegistry())

	client := detector.New(detector.Config{
		BaseURL: opts.classifier,
		Timeout: opts.timeout,
	}, logger, metrics)

	printer := newPrinter(out, opts.once)

	p := poller.New(poller.Config{
		Interval:   opts.interval,
		Source:     poller.NewDirFrameSource(opts.frames),
		Classifier: client,
		Observer:   printer,
		Logger:     logger,
		Metrics:    metrics,
	})

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := p.Start(ctx); err != nil {
		return err
	}
	done := p.Done()

	select {
	case <-done:
	case <-printer.first:
		p.Stop()
	case <-ctx.Done():
		p.Stop()
	}
	<-done

	if last := printer.last(); last.State == view.StateError {
		return fmt.Errorf("detection stopped: %s", last.Error)
	}
	return printer.err()
}

// printer renders every published view. With once set, first is closed as
// soon as a classified or terminal view arrives.
type printer struct {
	w    io.Writer
	once bool

	mu        sync.Mutex
	latest    view.View
	writeErr  error
	first     chan struct{}
	firstOnce sync.Once
}

func newPrinter(w io.Writer, once bool) *printer {
	return &printer{w: w, once: once, first: make(chan struct{})}
}

func (p *printer) Publish(v view.View) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.latest = v

	if v.State == view.StateActive && v.Emotions == nil {
		p.write(fmt.Fprintln(p.w, "Detection started"))
		return
	}

	if err := view.RenderText(p.w, v); err != nil && p.writeErr == nil {
		p.writeErr = err
	}
	p.write(fmt.Fprintln(p.w))

	if p.once {
		p.firstOnce.Do(func() { close(p.first) })
	}
}

func (p *printer) write(_ int, err error) {
	if err != nil && p.writeErr == nil {
		p.writeErr = err
	}
}

func (p *printer) last() view.View {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.latest
}

func (p *printer) err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.writeErr
}
