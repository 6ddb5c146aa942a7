//go:build linux || darwin || freebsd || netbsd || openbsd

package native

import (
	"errors"

	"go.uber.org/multierr"
	"golang.org/x/sys/unix"
)

// poller blocks the loop until woken via a self-pipe, or until a timeout.
type poller struct {
	readFd  int
	writeFd int
	buf     [64]byte
}

func newPoller() (*poller, error) {
	fds := make([]int, 2)
	if err := unix.Pipe(fds); err != nil {
		return nil, err
	}
	for _, fd := range fds {
		unix.CloseOnExec(fd)
		if err := unix.SetNonblock(fd, true); err != nil {
			return nil, multierr.Combine(err, unix.Close(fds[0]), unix.Close(fds[1]))
		}
	}
	return &poller{readFd: fds[0], writeFd: fds[1]}, nil
}

// wake makes a pending or future wait return. A full pipe already
// guarantees that, so EAGAIN is ignored.
func (p *poller) wake() {
	var b = [1]byte{1}
	_, _ = unix.Write(p.writeFd, b[:])
}

// wait blocks for up to timeout milliseconds, or indefinitely if timeout is
// negative, returning early if woken.
func (p *poller) wait(timeout int) error {
	fds := []unix.PollFd{{Fd: int32(p.readFd), Events: unix.POLLIN}}
	for {
		n, err := unix.Poll(fds, timeout)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return err
		}
		if n > 0 {
			p.drain()
		}
		return nil
	}
}

func (p *poller) drain() {
	for {
		n, err := unix.Read(p.readFd, p.buf[:])
		if n <= 0 || err != nil {
			return
		}
	}
}

func (p *poller) close() error {
	return multierr.Append(unix.Close(p.readFd), unix.Close(p.writeFd))
}
