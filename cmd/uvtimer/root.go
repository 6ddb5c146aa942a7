package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/sledgeh/uvw"
)

type options struct {
	timeout  time.Duration
	repeat   time.Duration
	count    int
	logLevel string
}

// newRootCommand builds the uvtimer command, logging to w.
func newRootCommand(w io.Writer) *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:   "uvtimer",
		Short: "Run a timer on an event loop, logging each time it fires.",
		Long: `Run a timer on an event loop, logging each time it fires. ` +
			`The timer first fires after --timeout, then every --repeat, ` +
			`until it has fired --count times (zero meaning no limit), ` +
			`or the process is interrupted.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			err := run(cmd.Context(), opts, w)
			if err != nil {
				_, _ = fmt.Fprintln(w, "uvtimer:", err)
			}
			return err
		},
	}
	flags := cmd.Flags()
	flags.DurationVar(&opts.timeout, "timeout", 100*time.Millisecond, "delay before the first firing")
	flags.DurationVar(&opts.repeat, "repeat", 0, "interval between firings, zero to fire once")
	flags.IntVar(&opts.count, "count", 1, "stop after this many firings, zero for no limit")
	flags.StringVar(&opts.logLevel, "log-level", logiface.LevelInformational.String(), "minimum log level, e.g. debug, info, warning")
	return cmd
}

func run(ctx context.Context, opts options, w io.Writer) error {
	if opts.timeout < 0 || opts.repeat < 0 {
		return errors.New("durations must not be negative")
	}
	if opts.count < 0 {
		return errors.New("count must not be negative")
	}
	level, err := parseLevel(opts.logLevel)
	if err != nil {
		return err
	}

	logger := stumpy.L.New(
		stumpy.L.WithStumpy(stumpy.WithWriter(w)),
		stumpy.L.WithLevel(level),
	).Logger()

	return uvw.Scoped(ctx, func(loop *uvw.Loop) error {
		timer := uvw.NewTimer(loop)
		if !timer.Valid() {
			return errors.New("failed to initialize timer")
		}

		var (
			fired   int
			failure error
		)
		uvw.On(timer, func(_ uvw.TimerEvent, t *uvw.Timer) {
			fired++
			logger.Info().
				Int(`fired`, fired).
				Int64(`now_ms`, loop.Now().Milliseconds()).
				Log(`timer fired`)
			if t.Repeat() == 0 || fired == opts.count {
				t.Close()
			}
		})
		uvw.On(timer, func(ev uvw.ErrorEvent, t *uvw.Timer) {
			failure = multierr.Append(failure, ev)
			t.Close()
		})
		uvw.Once(timer, func(uvw.CloseEvent, *uvw.Timer) {
			logger.Info().
				Int(`fired`, fired).
				Log(`timer closed`)
		})

		logger.Info().
			Str(`loop`, loop.ID().String()).
			Int64(`timeout_ms`, opts.timeout.Milliseconds()).
			Int64(`repeat_ms`, opts.repeat.Milliseconds()).
			Int(`count`, opts.count).
			Log(`starting timer`)
		timer.Start(opts.timeout, opts.repeat)

		err := loop.Run(ctx, uvw.RunDefault)
		if errors.Is(err, context.Canceled) {
			logger.Notice().Log(`interrupted`)
			err = nil
		}
		return multierr.Append(err, failure)
	}, uvw.WithLogger(logger))
}

func parseLevel(s string) (logiface.Level, error) {
	for level := logiface.LevelEmergency; level <= logiface.LevelTrace; level++ {
		if level.String() == s {
			return level, nil
		}
	}
	return logiface.LevelDisabled, fmt.Errorf("unknown log level %q", s)
}
