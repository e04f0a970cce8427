package vecwire

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// Mode governs the correlation-table bookkeeping and delivery semantics of
// an outbound vector message.
type Mode int

const (
	// ModeBlock registers an awaited entry and expects the caller to
	// retrieve the reply via Service(ctx, vector, true).
	ModeBlock Mode = iota
	// ModeAsync registers an awaited entry retrieved by polling
	// Service(ctx, vector, false) (or Service(ctx, vector, true) to block).
	ModeAsync
	// ModeCallback registers a callback invoked when the reply arrives;
	// there is no retrieval path.
	ModeCallback
	// ModeDiscard registers nothing; any reply is dropped.
	ModeDiscard
)

// Callback is invoked when a reply arrives for a vector sent under
// ModeCallback. It runs synchronously inside whichever goroutine's
// Service call happens to be driving the dispatcher at the time (see
// Service doc) and must be short: it must not call back into Service or
// any blocking Endpoint method on the same Endpoint, which would deadlock.
type Callback func(vector, rvector uint64, payload []byte)

// entryState is the per-vector pending-entry state described in §3/§4.6.
type entryState int

const (
	stateAwaitedEmpty entryState = iota
	stateAwaitedReady
)

// pendingEntry is the correlation-table record for one outstanding
// outbound vector. Expressing it as a single tagged record (rather than
// two parallel maps, one for stored replies and one for callbacks)
// eliminates the race where a reply arrives between two separate
// lookups (see DESIGN.md).
type pendingEntry struct {
	isCallback bool

	// Valid when isCallback is false.
	state entryState
	msg   VectorMessage

	// Valid when isCallback is true.
	cb Callback
}

// SendVector sends payload as an L3 vector message, optionally tagging it
// as a reply to rvector (zero means "not a reply"), and returns the
// vector assigned to it. This is the Discard-mode primitive: no
// correlation-table entry is created, so any reply is dropped by Service.
func (e *Endpoint) SendVector(payload []byte, rvector uint64) (uint64, error) {
	return e.sendVectorInternal(payload, rvector, nil)
}

// SendVectorWithMode sends payload as an L3 vector message under mode,
// performing the mode's correlation-table bookkeeping before the frame is
// committed to the wire (§4.5's critical ordering rule: otherwise a fast
// peer could have its reply dispatched before the entry exists, and it
// would be misclassified as discard).
func (e *Endpoint) SendVectorWithMode(payload []byte, rvector uint64, mode Mode, cb Callback) (uint64, error) {
	switch mode {
	case ModeBlock, ModeAsync:
		return e.sendVectorInternal(payload, rvector, func(vector uint64) {
			e.table[vector] = &pendingEntry{state: stateAwaitedEmpty}
		})
	case ModeCallback:
		if cb == nil {
			e.trace().Error(e.id.String(), "SendVectorWithMode", ErrCallbackRequired)
			return 0, ErrCallbackRequired
		}
		return e.sendVectorInternal(payload, rvector, func(vector uint64) {
			e.table[vector] = &pendingEntry{isCallback: true, cb: cb}
		})
	case ModeDiscard:
		return e.sendVectorInternal(payload, rvector, nil)
	default:
		e.trace().Error(e.id.String(), "SendVectorWithMode", ErrUnknownMode)
		return 0, ErrUnknownMode
	}
}

// sendVectorInternal performs the atomic "read counter, register
// correlation entry, bump counter, emit frame" sequence under vmu, so no
// other sender observes the same vector or has its frame enqueued out of
// order. register, if non-nil, runs under mu strictly before the frame is
// handed to SendBytes.
func (e *Endpoint) sendVectorInternal(payload []byte, rvector uint64, register func(vector uint64)) (uint64, error) {
	e.vmu.Lock()
	defer e.vmu.Unlock()

	vector := e.nextVector

	e.mu.Lock()
	if err := e.checkOpenLocked(); err != nil {
		e.mu.Unlock()
		return 0, err
	}
	if register != nil {
		register(vector)
	}
	e.mu.Unlock()

	e.nextVector = vector + 1

	frame := encodeVectorPayload(vector, rvector, payload)
	if err := e.SendMessage(frame); err != nil {
		return vector, err
	}
	e.trace().VectorSent(e.id.String(), vector, rvector, len(payload))
	return vector, nil
}

// Service performs one readiness cycle (or, if block is true, loops until
// a match for awaitVector is produced or the connection is lost) as
// described in §4.5. awaitVector == 0 services the connection generically
// without waiting for any particular reply.
//
// Before touching the socket, Service checks whether awaitVector's
// correlation entry is already AwaitedReady — the common case when
// another caller's cycle already delivered it — and returns immediately
// without re-entering the socket.
//
// ctx governs cancellation of a blocking wait: if ctx is cancelled before
// a match arrives, Service returns ctx.Err() without removing the pending
// entry, so a later call can still collect the reply (mirroring a
// deadline expiry per §5).
func (e *Endpoint) Service(ctx context.Context, awaitVector uint64, block bool) (VectorMessage, bool, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	for {
		e.mu.Lock()
		if err := e.checkOpenLocked(); err != nil {
			e.mu.Unlock()
			return VectorMessage{}, false, err
		}

		if awaitVector != 0 {
			if entry, found := e.table[awaitVector]; found && !entry.isCallback && entry.state == stateAwaitedReady {
				vm := entry.msg
				delete(e.table, awaitVector)
				e.mu.Unlock()
				return vm, true, nil
			}
		}

		select {
		case <-ctx.Done():
			e.mu.Unlock()
			return VectorMessage{}, false, ctx.Err()
		default:
		}

		if e.driving {
			// Another goroutine already owns the socket. A non-blocking
			// caller never waits for it — that would turn a poll into a
			// stall — it simply reports "not matched yet". A blocking
			// caller parks on cond, which wakes on every completed cycle
			// (or Close), and loops back to re-check the table.
			if !block {
				e.mu.Unlock()
				return VectorMessage{}, false, nil
			}
			e.cond.Wait()
			e.mu.Unlock()
			continue
		}

		e.driving = true
		e.mu.Unlock()

		matched, matchedVM, err := e.driveOneCycle(ctx, awaitVector, block)

		e.mu.Lock()
		e.driving = false
		e.cond.Broadcast()
		e.mu.Unlock()

		if err != nil {
			return VectorMessage{}, false, err
		}
		if matched {
			return matchedVM, true, nil
		}
		if !block {
			return VectorMessage{}, false, nil
		}
		select {
		case <-ctx.Done():
			return VectorMessage{}, false, ctx.Err()
		default:
		}
	}
}

// driveOneCycle performs the actual readiness wait, read, opportunistic
// write-drain, and dispatch of every newly complete vector message. The
// caller must already hold the exclusive "driving" slot and must not be
// holding mu. It returns matched == true only if one of the dispatched
// messages had rvector == awaitVector (awaitVector == 0 never matches).
func (e *Endpoint) driveOneCycle(ctx context.Context, awaitVector uint64, block bool) (matched bool, vm VectorMessage, err error) {
	// Non-blocking probe: a deadline one millisecond ahead. A deadline
	// already in the past would fail Read before it reads anything.
	readDeadline := time.Now().Add(time.Millisecond)
	if block {
		readDeadline = time.Time{} // no deadline: wait as long as it takes

		if done := ctx.Done(); done != nil {
			cancelled := make(chan struct{})
			defer close(cancelled)
			go func() {
				select {
				case <-done:
					_ = e.conn.SetReadDeadline(time.Now())
				case <-cancelled:
				}
			}()
		}
	}

	if serr := e.conn.SetReadDeadline(readDeadline); serr != nil {
		e.mu.Lock()
		e.failLocked(wrapConnErr(serr))
		err = e.fatalErr
		e.mu.Unlock()
		return false, VectorMessage{}, err
	}

	buf := make([]byte, e.cfg.ReadBufferSize)
	n, rerr := e.conn.Read(buf)

	e.mu.Lock()
	defer e.mu.Unlock()

	if n > 0 {
		e.asm.Feed(buf[:n])
	}

	if rerr != nil {
		switch {
		case isWouldBlock(rerr):
			// benign: no data this cycle, fall through to write-drain/dispatch
		case isEOF(rerr) || n == 0:
			e.failLocked(endOfStreamErr(e.asm.Pending()))
			return false, VectorMessage{}, e.fatalErr
		default:
			e.failLocked(wrapConnErr(rerr))
			return false, VectorMessage{}, e.fatalErr
		}
	} else if n == 0 {
		// A zero-length read with no error signals the peer closed the
		// stream (§7: "stream read returned 0").
		e.failLocked(endOfStreamErr(e.asm.Pending()))
		return false, VectorMessage{}, e.fatalErr
	}

	e.drainLocked()
	if e.fatalErr != nil {
		return false, VectorMessage{}, e.fatalErr
	}

	tr := e.traceFor(ctx)
	for {
		popped, ok, perr := e.tryPopVectorLocked(tr)
		if perr != nil {
			return false, VectorMessage{}, perr
		}
		if !ok {
			break
		}
		if claimed, out := e.dispatchLocked(popped, awaitVector, tr); claimed {
			matched = true
			vm = out
		}
	}

	return matched, vm, nil
}

// endOfStreamErr classifies a zero-length read/EOF against whatever the
// assembler still has pending (§7). A clean boundary (nothing pending)
// and a stream closed mid-frame both leave the Endpoint unusable, but the
// latter is distinguishable in the wrapped error text for diagnosis.
func endOfStreamErr(pending bool) error {
	if pending {
		return errors.Wrap(ErrConnectionLost, "stream closed mid-frame")
	}
	return ErrConnectionLost
}

// dispatchLocked applies the §4.5 classification to one received vector
// message: absent entry discards it; a Callback entry fires and is
// removed; an Awaited entry matching the driving caller's own awaitVector
// is claimed directly and removed; any other Awaited entry is stored as
// AwaitedReady for a different caller's fast-path retrieval. Must be
// called with mu held; callbacks run here, synchronously, under mu
// released per the documented contract — see Callback's doc comment. tr is
// the cycle's resolved trace (see Service/traceFor).
func (e *Endpoint) dispatchLocked(vm VectorMessage, awaitVector uint64, tr *Trace) (claimed bool, out VectorMessage) {
	entry, found := e.table[vm.RVector]
	if !found {
		tr.VectorDispatched(e.id.String(), vm.Vector, vm.RVector, "discard")
		return false, VectorMessage{}
	}

	if entry.isCallback {
		delete(e.table, vm.RVector)
		cb := entry.cb
		tr.VectorDispatched(e.id.String(), vm.Vector, vm.RVector, "callback")
		e.mu.Unlock()
		cb(vm.Vector, vm.RVector, vm.Payload)
		e.mu.Lock()
		return false, VectorMessage{}
	}

	if awaitVector != 0 && vm.RVector == awaitVector {
		delete(e.table, vm.RVector)
		tr.VectorDispatched(e.id.String(), vm.Vector, vm.RVector, "await")
		return true, vm
	}

	entry.state = stateAwaitedReady
	entry.msg = vm
	tr.VectorDispatched(e.id.String(), vm.Vector, vm.RVector, "stored")
	e.cond.Broadcast()
	return false, VectorMessage{}
}
