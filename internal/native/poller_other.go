//go:build !(linux || darwin || freebsd || netbsd || openbsd)

package native

import (
	"time"
)

// poller is the portable fallback: a single-slot channel stands in for the
// self-pipe.
type poller struct {
	ch chan struct{}
}

func newPoller() (*poller, error) {
	return &poller{ch: make(chan struct{}, 1)}, nil
}

func (p *poller) wake() {
	select {
	case p.ch <- struct{}{}:
	default:
	}
}

func (p *poller) wait(timeout int) error {
	switch {
	case timeout == 0:
		select {
		case <-p.ch:
		default:
		}
	case timeout < 0:
		<-p.ch
	default:
		t := time.NewTimer(time.Duration(timeout) * time.Millisecond)
		defer t.Stop()
		select {
		case <-p.ch:
		case <-t.C:
		}
	}
	return nil
}

func (p *poller) close() error { return nil }
