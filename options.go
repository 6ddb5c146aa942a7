package uvw

import (
	"github.com/benbjohnson/clock"
	"github.com/joeycumines/logiface"
	"github.com/prometheus/client_golang/prometheus"
)

// loopOptions is the resolved configuration of a new Loop.
type loopOptions struct {
	logger     *logiface.Logger[logiface.Event]
	clock      clock.Clock
	registerer prometheus.Registerer
}

// LoopOption configures [NewLoop] and [Scoped].
type LoopOption interface {
	applyLoop(*loopOptions) error
}

type loopOptionFunc func(*loopOptions) error

func (f loopOptionFunc) applyLoop(opts *loopOptions) error { return f(opts) }

// WithLogger configures structured logging for the loop, and every handle
// created against it. A nil logger (the default) disables logging.
func WithLogger(logger *logiface.Logger[logiface.Event]) LoopOption {
	return loopOptionFunc(func(opts *loopOptions) error {
		opts.logger = logger
		return nil
	})
}

// WithClock sets the clock the loop reads time from. Defaults to the real
// clock. A [clock.Mock] makes timers deterministic.
func WithClock(clk clock.Clock) LoopOption {
	return loopOptionFunc(func(opts *loopOptions) error {
		opts.clock = clk
		return nil
	})
}

// WithMetrics registers the loop's metrics with reg, labelled with the
// loop's ID. They are unregistered when the loop is closed.
func WithMetrics(reg prometheus.Registerer) LoopOption {
	return loopOptionFunc(func(opts *loopOptions) error {
		if reg == nil {
			return errNilRegisterer
		}
		opts.registerer = reg
		return nil
	})
}

// newLoopOptions applies opts in order, ignoring nil entries.
func newLoopOptions(opts []LoopOption) (*loopOptions, error) {
	cfg := &loopOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyLoop(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
