package vecwire

import (
	"time"

	"github.com/pkg/errors"
)

// SendBytes appends data to the tail of the outbound queue and
// opportunistically drains the queue to the Conn without blocking. It
// returns promptly whether or not the queue was fully drained; the
// remainder, if any, stays queued for a later drain (the next SendBytes
// call, or the write-if-queued step of Service).
//
// A nil/empty data enqueues nothing but still attempts to drain whatever
// is already queued — useful for retrying a previously short write.
func (e *Endpoint) SendBytes(data []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.checkOpenLocked(); err != nil {
		return err
	}

	if len(data) > 0 {
		e.outq = append(e.outq, data)
		e.outSize += len(data)
	}

	e.drainLocked()
	return e.checkOpenLocked()
}

// OutBufferSize returns the total queued outbound byte count: the
// back-pressure signal callers use to throttle upstream production.
func (e *Endpoint) OutBufferSize() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.outSize
}

// drainLocked pops chunks from the head of the outbound queue and writes
// as many bytes as the Conn accepts within a write deadline one
// millisecond ahead (a deadline already in the past would make every Write
// fail before sending anything). On a short write the remainder is put
// back at the head, preserving order, and the drain stops. Must be called
// with mu held; never waits on the network longer than that deadline.
func (e *Endpoint) drainLocked() {
	if e.fatalErr != nil || len(e.outq) == 0 {
		return
	}

	if err := e.conn.SetWriteDeadline(time.Now().Add(time.Millisecond)); err != nil {
		e.failLocked(errors.Wrap(ErrConnectionLost, err.Error()))
		return
	}

	for len(e.outq) > 0 {
		chunk := e.outq[0]
		n, err := e.conn.Write(chunk)
		if n > 0 {
			e.outSize -= n
			if n == len(chunk) {
				e.outq = e.outq[1:]
			} else {
				e.outq[0] = chunk[n:]
			}
		}
		if err != nil {
			if isWouldBlock(err) {
				return
			}
			e.failLocked(errors.Wrap(ErrConnectionLost, err.Error()))
			return
		}
		if n < len(chunk) {
			// Only part of the chunk (or nothing) accepted and no error:
			// treat as would-block rather than spin.
			return
		}
	}
}
