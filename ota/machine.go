package ota

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/moffa90/go-mw4ota/protocol"
	"github.com/moffa90/go-mw4ota/transport"
)

// State is a control protocol session state.
type State int

const (
	StateIdle State = iota
	StateAwaitingStartAck
	StateTransferring
	StateAwaitingEndAck
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateAwaitingStartAck:
		return "AwaitingStartAck"
	case StateTransferring:
		return "Transferring"
	case StateAwaitingEndAck:
		return "AwaitingEndAck"
	case StateCompleted:
		return "Completed"
	case StateFailed:
		return "Failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// event is one control notification.
type event struct {
	code      protocol.ControlCode
	malformed bool
}

// eventBuffer is how many control notifications may wait for the driver.
const eventBuffer = 16

var (
	// errWaitTimeout marks an await that hit its bound.
	errWaitTimeout = errors.New("timed out waiting for control notification")

	// errOverflow marks a session that dropped a notification.
	errOverflow = errors.New("control notification dropped")
)

// session is one OTA attempt against one link. It is driven by a single
// goroutine; notifications are handed over through events one at a time.
type session struct {
	id   string
	link transport.Session
	cfg  *Config
	u    *Updater

	state  State
	events chan event
	done   chan struct{}

	deliverMu    sync.Mutex
	closeOnce    sync.Once
	overflowOnce sync.Once
	overflowed   chan struct{}
	sub          transport.Subscription

	// acks counts chunk ACKs seen in eager mode
	acks int

	start time.Time
	xfer  transfer
}

func newSession(u *Updater, id string, link transport.Session, image []byte) *session {
	return &session{
		id:     id,
		link:   link,
		cfg:    &u.config,
		u:      u,
		state:  StateIdle,
		events:     make(chan event, eventBuffer),
		done:       make(chan struct{}),
		overflowed: make(chan struct{}),
		start:  time.Now(),
		xfer:   newTransfer(image),
	}
}

// onNotify is the transport notification handler. The mutex keeps
// overlapping deliveries from reordering. It never blocks the transport:
// when the driver has fallen eventBuffer notifications behind, the value is
// dropped and the session fails with ReasonNotificationOverflow.
func (s *session) onNotify(value []byte) {
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()

	select {
	case <-s.done:
		return
	default:
	}

	ev := event{}
	code, err := protocol.ParseControl(value)
	if err != nil {
		ev.malformed = true
		if len(value) > 0 {
			ev.code = protocol.ControlCode(value[0])
		}
	} else {
		ev.code = code
	}

	select {
	case s.events <- ev:
	default:
		s.overflowOnce.Do(func() {
			s.u.logError("control notification dropped", "session", s.id, "code", ev.code.String())
			close(s.overflowed)
		})
	}
}

// run drives the session from Idle to a terminal state.
func (s *session) run(ctx context.Context) error {
	defer s.finish()

	// Idle: subscribe before START so the acknowledgment cannot be missed.
	sub, err := s.link.Subscribe(ctx, protocol.EndpointControl, s.onNotify)
	if err != nil {
		return s.fail(ctx, ReasonSubscribeFailed, err)
	}
	s.sub = sub

	if err := s.writeControl(ctx, protocol.ControlStart); err != nil {
		return s.fail(ctx, ReasonControlWriteFailed, err)
	}
	s.transition(StateAwaitingStartAck)

	ev, err := s.await(ctx, s.cfg.AckTimeout)
	if err != nil {
		return s.failWait(ctx, ReasonNoStartAck, "start", err)
	}
	if ev.malformed || ev.code != protocol.ControlACK {
		return s.fail(ctx, ReasonStartRejected, rejection("start", ev, ReasonStartRejected))
	}

	if err := s.writeControl(ctx, protocol.ControlNOP); err != nil {
		return s.fail(ctx, ReasonControlWriteFailed, err)
	}
	s.transition(StateTransferring)

	if reason, err := s.sendImage(ctx); err != nil {
		return s.fail(ctx, reason, err)
	}

	// Chunk acknowledgments must not be read as the END answer.
	if reason, err := s.settleChunkAcks(ctx); err != nil {
		return s.fail(ctx, reason, err)
	}

	if err := s.writeControl(ctx, protocol.ControlEnd); err != nil {
		return s.fail(ctx, ReasonControlWriteFailed, err)
	}
	s.transition(StateAwaitingEndAck)
	s.report(PhaseFinalizing)

	if err := s.awaitEnd(ctx); err != nil {
		return err
	}

	s.transition(StateCompleted)
	s.report(PhaseComplete)
	return nil
}

// awaitEnd waits for the device to confirm END. Codes other than
// ACK/NOP/NACK/ERR do not decide the outcome.
func (s *session) awaitEnd(ctx context.Context) error {
	deadline := time.Now().Add(s.cfg.EndTimeout)
	for {
		ev, err := s.await(ctx, time.Until(deadline))
		if err != nil {
			return s.failWait(ctx, ReasonNoEndConfirmation, "end", err)
		}
		switch {
		case ev.malformed:
			s.u.logDebug("ignoring malformed control value", "session", s.id, "state", s.state.String())
		case ev.code == protocol.ControlACK || ev.code == protocol.ControlNOP:
			return nil
		case ev.code == protocol.ControlNACK || ev.code == protocol.ControlErr:
			return s.fail(ctx, ReasonEndRejected, rejection("end", ev, ReasonEndRejected))
		default:
			s.u.logDebug("ignoring control code", "session", s.id, "state", s.state.String(), "code", ev.code.String())
		}
	}
}

// await blocks for the next control notification, at most timeout.
func (s *session) await(ctx context.Context, timeout time.Duration) (event, error) {
	if timeout <= 0 {
		return event{}, errWaitTimeout
	}
	t := time.NewTimer(timeout)
	defer t.Stop()

	select {
	case ev := <-s.events:
		s.u.logDebug("control notification", "session", s.id, "state", s.state.String(), "code", ev.code.String())
		return ev, nil
	case <-s.overflowed:
		return event{}, errOverflow
	case <-t.C:
		return event{}, errWaitTimeout
	case <-ctx.Done():
		return event{}, ctx.Err()
	}
}

// poll returns a pending notification without blocking.
func (s *session) poll() (event, bool) {
	select {
	case ev := <-s.events:
		s.u.logDebug("control notification", "session", s.id, "state", s.state.String(), "code", ev.code.String())
		return ev, true
	default:
		return event{}, false
	}
}

// writeControl emits a control code and waits for the write response.
func (s *session) writeControl(ctx context.Context, code protocol.ControlCode) error {
	wctx, cancel := context.WithTimeout(ctx, s.cfg.WriteTimeout)
	defer cancel()

	s.u.logDebug("control write", "session", s.id, "code", code.String())
	return s.link.WriteValueConfirmed(wctx, protocol.EndpointControl, protocol.EncodeControl(code))
}

func (s *session) transition(to State) {
	s.u.logDebug("state transition", "session", s.id, "from", s.state.String(), "to", to.String())
	s.state = to
}

// fail moves the session to Failed. Cancellation of ctx overrides reason.
func (s *session) fail(ctx context.Context, reason string, err error) error {
	if ctx.Err() != nil {
		reason = ReasonCancelled
		if err == nil {
			err = ctx.Err()
		}
	}

	ue := &UpdateError{
		State:   s.state,
		Reason:  reason,
		Offset:  s.xfer.offset,
		Total:   s.xfer.total(),
		Percent: s.xfer.percent,
		Err:     err,
	}
	s.transition(StateFailed)
	s.u.logError("update failed",
		"session", s.id,
		"state", ue.State.String(),
		"reason", reason,
		"offset", ue.Offset,
		"total", ue.Total,
		"error", err,
	)
	return ue
}

// failWait converts an await error into a failure.
func (s *session) failWait(ctx context.Context, reason, op string, err error) error {
	reason, err = waitError(op, reason, err)
	return s.fail(ctx, reason, err)
}

// waitError maps an await error to a failure reason. A timeout becomes a
// ProtocolError for op carrying timeoutReason.
func waitError(op, timeoutReason string, err error) (string, error) {
	switch {
	case errors.Is(err, errWaitTimeout):
		return timeoutReason, &protocol.ProtocolError{Operation: op, Reason: timeoutReason}
	case errors.Is(err, errOverflow):
		return ReasonNotificationOverflow, &protocol.ProtocolError{Operation: op, Reason: ReasonNotificationOverflow}
	default:
		return ReasonCancelled, err
	}
}

// finish unsubscribes and releases any blocked notification handler.
// Control codes arriving after this point are dropped.
func (s *session) finish() {
	s.closeOnce.Do(func() {
		close(s.done)
		if s.sub != nil {
			if err := s.sub.Unsubscribe(); err != nil {
				s.u.logDebug("unsubscribe failed", "session", s.id, "error", err)
			}
		}
	})
}

func (s *session) report(phase string) {
	s.u.reportProgress(Progress{
		Phase:       phase,
		Percent:     s.xfer.percent,
		Offset:      s.xfer.offset,
		Total:       s.xfer.total(),
		Chunk:       s.xfer.chunks,
		ElapsedTime: time.Since(s.start),
	})
}

func rejection(op string, ev event, reason string) error {
	if ev.malformed {
		return &protocol.ProtocolError{Operation: op, Reason: reason + ": malformed control value"}
	}
	return &protocol.ProtocolError{Operation: op, Code: ev.code, HasCode: true, Reason: reason}
}
