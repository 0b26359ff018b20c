package qspi

import (
	"errors"
	"log/slog"
	"time"
)

// MatchMode selects how a polled status is compared.
type MatchMode uint8

const (
	// MatchAnd matches when every masked bit equals the same bit of Match.
	MatchAnd MatchMode = iota
	// MatchOr matches when any masked bit equals the same bit of Match.
	MatchOr
)

// Poll describes a status register wait. Status bytes are packed little
// endian: the first byte received is bits 7:0.
type Poll struct {
	Mask        uint32
	Match       uint32
	Mode        MatchMode
	Interval    time.Duration
	StatusBytes int

	// AutoStop asks an AutoPoller to end the polling sequence on the first
	// match. The software loop always stops on a match.
	AutoStop bool
}

// Matches reports whether status satisfies the poll.
func (p *Poll) Matches(status []byte) bool {
	var v uint32
	for i, b := range status[:min(len(status), 4)] {
		v |= uint32(b) << (8 * i)
	}
	diff := (v ^ p.Match) & p.Mask
	if p.Mode == MatchOr {
		return diff != p.Mask
	}
	return diff == 0
}

func (f *Flash) readyPoll() Poll {
	return Poll{
		Mask:        statusBusy,
		Match:       0,
		Mode:        MatchAnd,
		Interval:    f.cfg.PollInterval,
		StatusBytes: 1,
		AutoStop:    true,
	}
}

func (f *Flash) writeEnablePoll() Poll {
	return Poll{
		Mask:        statusWriteLatch,
		Match:       statusWriteLatch,
		Mode:        MatchAnd,
		Interval:    f.cfg.PollInterval,
		StatusBytes: 1,
		AutoStop:    true,
	}
}

// poll samples status register 1 until it satisfies p or timeout elapses.
// The status is sampled at least once.
func (f *Flash) poll(op string, p *Poll, timeout time.Duration) error {
	cmd := registerRead(CmdReadStatusRegister1, p.StatusBytes)

	if ap, ok := f.t.(AutoPoller); ok {
		f.trace("autopoll", slog.String("op", op), slog.Duration("timeout", timeout))
		err := ap.AutoPoll(&cmd, p, timeout)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, ErrTimeout):
			return &TimeoutError{Op: op, Timeout: timeout}
		}
		return &TransportError{Op: "autopoll", Instruction: cmd.Instruction, Err: err}
	}

	status := make([]byte, p.StatusBytes)
	deadline := f.clock.Now().Add(timeout)
	for {
		if err := f.receive(&cmd, status); err != nil {
			return err
		}
		if p.Matches(status) {
			return nil
		}
		if !f.clock.Now().Before(deadline) {
			return &TimeoutError{Op: op, Timeout: timeout, Status: status[0]}
		}
		f.clock.Sleep(p.Interval)
	}
}

// waitReady waits for the BUSY bit to clear.
func (f *Flash) waitReady(timeout time.Duration) error {
	p := f.readyPoll()
	return f.poll("ready", &p, timeout)
}

// writeEnable sets the write enable latch and waits until the device reports
// it. The device clears the latch after every program, erase or register
// write, so it precedes each of them.
func (f *Flash) writeEnable() error {
	cmd := instruction(CmdWriteEnable)
	if err := f.exec(&cmd); err != nil {
		return err
	}
	p := f.writeEnablePoll()
	return f.poll("write enable", &p, f.cfg.Timeouts.Default)
}
