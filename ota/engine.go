package ota

import (
	"context"
	"errors"
	"math"
	"time"

	"golang.org/x/time/rate"

	"github.com/moffa90/go-mw4ota/protocol"
)

// transfer is the chunking state of one image.
// Invariant: 0 <= offset <= len(image).
type transfer struct {
	image   []byte
	offset  int
	chunks  int
	percent int
}

func newTransfer(image []byte) transfer {
	return transfer{image: image}
}

func (t *transfer) total() int { return len(t.image) }

func (t *transfer) remaining() int { return len(t.image) - t.offset }

// next returns the slice to write next, at most max bytes.
func (t *transfer) next(max int) []byte {
	sz := t.remaining()
	if sz > max {
		sz = max
	}
	return t.image[t.offset : t.offset+sz]
}

// advance records n confirmed bytes.
func (t *transfer) advance(n int) {
	t.offset += n
	t.chunks++
	if p := percentOf(t.offset, len(t.image)); p > t.percent {
		t.percent = p
	}
}

// percentOf returns round(100 * offset / total); an empty image is 100% done.
func percentOf(offset, total int) int {
	if total == 0 {
		return 100
	}
	return int(math.Round(100 * float64(offset) / float64(total)))
}

// sendImage writes the image to the data endpoint in chunks.
// On failure it returns the reason and the underlying error.
func (s *session) sendImage(ctx context.Context) (string, error) {
	if s.xfer.total() == 0 {
		s.xfer.percent = 100
		s.report(PhaseTransferring)
		return "", nil
	}

	var limiter *rate.Limiter
	if s.cfg.WriteInterval > 0 {
		limiter = rate.NewLimiter(rate.Every(s.cfg.WriteInterval), 1)
	}

	for s.xfer.remaining() > 0 {
		if err := ctx.Err(); err != nil {
			return ReasonCancelled, err
		}

		if reason, err := s.drainEvents(); err != nil {
			return reason, err
		}

		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return ReasonCancelled, err
			}
		}

		chunk := s.xfer.next(s.cfg.ChunkSize)
		if err := s.writeChunk(ctx, chunk); err != nil {
			return ReasonTransferFailed, err
		}

		if s.cfg.ChunkAck {
			if reason, err := s.awaitChunkAck(ctx); err != nil {
				return reason, err
			}
		}

		s.xfer.advance(len(chunk))
		s.report(PhaseTransferring)
	}

	s.u.logDebug("image sent", "session", s.id, "bytes", s.xfer.offset, "chunks", s.xfer.chunks)
	return "", nil
}

// writeChunk writes one chunk and waits for the write response.
func (s *session) writeChunk(ctx context.Context, chunk []byte) error {
	wctx, cancel := context.WithTimeout(ctx, s.cfg.WriteTimeout)
	defer cancel()
	return s.link.WriteValueConfirmed(wctx, protocol.EndpointData, chunk)
}

// awaitChunkAck waits for the device to acknowledge the chunk just written.
func (s *session) awaitChunkAck(ctx context.Context) (string, error) {
	deadline := time.Now().Add(s.cfg.AckTimeout)
	for {
		ev, err := s.await(ctx, time.Until(deadline))
		if err != nil {
			return waitError("chunk ack", ReasonNoChunkAck, err)
		}
		switch {
		case aborts(ev):
			return ReasonChunkRejected, rejection("chunk ack", ev, ReasonChunkRejected)
		case ev.code == protocol.ControlACK:
			return "", nil
		}
	}
}

// drainEvents handles every notification already queued while chunks are in
// flight. ACKs are counted so they cannot be taken for the END answer.
func (s *session) drainEvents() (string, error) {
	for {
		ev, ok := s.poll()
		if !ok {
			break
		}
		if err := s.observe(ev); err != nil {
			return ReasonDeviceAborted, err
		}
	}
	select {
	case <-s.overflowed:
		return waitError("transfer", ReasonDeviceAborted, errOverflow)
	default:
		return "", nil
	}
}

// observe handles one notification received in eager mode.
func (s *session) observe(ev event) error {
	switch {
	case aborts(ev):
		return rejection("transfer", ev, ReasonDeviceAborted)
	case ev.code == protocol.ControlACK:
		s.acks++
	default:
		s.u.logDebug("ignoring control code", "session", s.id, "state", s.state.String(), "code", ev.code.String())
	}
	return nil
}

// settleChunkAcks runs after the last chunk in eager mode, before END.
// A device that acknowledges chunks may still have ACKs in flight; they are
// awaited here so the first ACK after END is the END answer. A device that
// has acknowledged nothing yet gets SettleTimeout to show that it does.
func (s *session) settleChunkAcks(ctx context.Context) (string, error) {
	if s.cfg.ChunkAck || s.xfer.chunks == 0 {
		return "", nil
	}
	if reason, err := s.drainEvents(); err != nil {
		return reason, err
	}

	if s.acks == 0 {
		deadline := time.Now().Add(s.cfg.SettleTimeout)
		for s.acks == 0 {
			ev, err := s.await(ctx, time.Until(deadline))
			if errors.Is(err, errWaitTimeout) {
				return "", nil
			}
			if err != nil {
				return waitError("transfer", ReasonDeviceAborted, err)
			}
			if err := s.observe(ev); err != nil {
				return ReasonDeviceAborted, err
			}
		}
	}

	for s.acks < s.xfer.chunks {
		ev, err := s.await(ctx, s.cfg.AckTimeout)
		if err != nil {
			return waitError("chunk ack", ReasonNoChunkAck, err)
		}
		if err := s.observe(ev); err != nil {
			return ReasonDeviceAborted, err
		}
	}
	s.u.logDebug("chunk acknowledgments settled", "session", s.id, "acks", s.acks)
	return "", nil
}

// aborts reports whether a notification received mid-transfer ends the session.
func aborts(ev event) bool {
	return ev.malformed || ev.code == protocol.ControlNACK || ev.code == protocol.ControlErr
}
