package process

import (
	"errors"
	"io"
	"os"
	"os/exec"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"
)

// relay forwards one child's events to the sink in the order produced,
// deregisters the child once its exit event has been delivered and then
// hands the completed run to the observers.
func (s *Supervisor) relay(h *Handle, stdout, stderr io.ReadCloser) {
	defer s.relays.Done()

	events := make(chan Event, s.cfg.EventBuffer)
	go s.collect(h, stdout, stderr, events)

	var last Event
	for ev := range events {
		s.sink.Notify(ev)
		last = ev
	}

	removed := s.registry.RemoveHandle(h.info.PID, h)
	s.logger.Info("process exited",
		"pid", h.info.PID,
		"code", last.CodeString(),
		"signal", last.SignalString(),
		"deregistered", removed,
	)

	run := Run{
		Info:        h.info,
		ExitedAt:    time.Now(),
		Code:        last.Code,
		Signal:      last.Signal,
		Killed:      h.Killed(),
		StdoutBytes: h.stdoutBytes.Load(),
		StderrBytes: h.stderrBytes.Load(),
	}
	for _, o := range s.observers {
		o.ProcessExited(run)
	}
}

// collect drains both pipes, reaps the child and emits the exit event last.
// It owns events and closes it when done.
func (s *Supervisor) collect(h *Handle, stdout, stderr io.Reader, events chan<- Event) {
	defer close(events)

	// Pipes must be fully read before Wait closes them.
	var g errgroup.Group
	g.Go(func() error {
		return pump(h.info.PID, KindStdout, stdout, &h.stdoutBytes, events)
	})
	g.Go(func() error {
		return pump(h.info.PID, KindStderr, stderr, &h.stderrBytes, events)
	})
	if err := g.Wait(); err != nil {
		s.logger.Debug("output stream error", "pid", h.info.PID, "error", err)
	}

	waitErr := h.cmd.Wait()
	close(h.exited)

	exit := Event{PID: h.info.PID, Kind: KindExit}
	var exitErr *exec.ExitError
	switch {
	case waitErr == nil:
		exit.Code, exit.Signal = exitStatus(h.cmd.ProcessState)
	case errors.As(waitErr, &exitErr):
		exit.Code, exit.Signal = exitStatus(exitErr.ProcessState)
	default:
		// The OS reported an error rather than a status; surface it as
		// stderr and leave code/signal unreported.
		events <- Event{PID: h.info.PID, Kind: KindStderr, Data: []byte(waitErr.Error())}
	}
	events <- exit
}

// pump sends every chunk read from r as an event of the given kind. A UTF-8
// sequence split across reads is held back and sent with the next chunk, so
// each event is whole text. Read errors other than EOF are forwarded as
// stderr text.
func pump(pid ID, kind Kind, r io.Reader, counter *atomic.Int64, events chan<- Event) error {
	buf := make([]byte, outputBufferSize)
	var carry []byte
	flush := func() {
		if len(carry) > 0 {
			events <- Event{PID: pid, Kind: kind, Data: carry}
			carry = nil
		}
	}

	for {
		n, err := r.Read(buf)
		if n > 0 {
			counter.Add(int64(n))
			data := make([]byte, 0, len(carry)+n)
			data = append(append(data, carry...), buf[:n]...)
			keep := incompleteTail(data)
			carry = append([]byte(nil), data[len(data)-keep:]...)
			if data = data[:len(data)-keep]; len(data) > 0 {
				events <- Event{PID: pid, Kind: kind, Data: data}
			}
		}
		if err != nil {
			flush()
			if errors.Is(err, io.EOF) || errors.Is(err, os.ErrClosed) {
				return nil
			}
			events <- Event{PID: pid, Kind: KindStderr, Data: []byte(err.Error())}
			return err
		}
	}
}

// incompleteTail returns how many trailing bytes of b start a UTF-8 sequence
// that is not yet complete.
func incompleteTail(b []byte) int {
	for i := 1; i < utf8.UTFMax && i <= len(b); i++ {
		if utf8.RuneStart(b[len(b)-i]) {
			if utf8.FullRune(b[len(b)-i:]) {
				return 0
			}
			return i
		}
	}
	return 0
}
