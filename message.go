package vecwire

import "github.com/pkg/errors"

// Feed appends bytes a caller read from the Conn by some means of its own
// into the receive assembler. This is the escape hatch for pure L2/L3
// users who manage their own read loop instead of calling Service: reads
// are otherwise centralized in Service, and a caller using Feed is
// responsible for never reading the same Conn concurrently with a
// Service call.
func (e *Endpoint) Feed(data []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.checkOpenLocked(); err != nil {
		return err
	}
	e.asm.Feed(data)
	return nil
}

// SendMessage encodes payload as one L2 frame (u32be length prefix) and
// enqueues it via SendBytes.
func (e *Endpoint) SendMessage(payload []byte) error {
	if err := e.SendBytes(encodeFrame(payload)); err != nil {
		return err
	}
	e.trace().FrameSent(e.id.String(), len(payload))
	return nil
}

// TryPopMessage returns at most one complete L2 frame already buffered in
// the receive assembler, without touching the Conn. ok is false if no
// complete frame is available yet.
func (e *Endpoint) TryPopMessage() (msg []byte, ok bool, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err = e.checkOpenLocked(); err != nil {
		return nil, false, err
	}
	frame, popped, perr := e.asm.TryPop()
	if perr != nil {
		e.failLocked(wrapProtocolViolation(perr))
		return nil, false, e.fatalErr
	}
	if popped {
		e.trace().FrameReceived(e.id.String(), len(frame))
	}
	return frame, popped, nil
}

// DrainMessages returns every complete L2 frame currently buffered.
func (e *Endpoint) DrainMessages() ([][]byte, error) {
	var out [][]byte
	for {
		msg, ok, err := e.TryPopMessage()
		if err != nil {
			return out, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, msg)
	}
}

// TryPopVector returns at most one complete L3 vector message already
// buffered in the receive assembler, without touching the Conn or the
// correlation table — a raw primitive distinct from Service (L4), which
// additionally applies mode-based dispatch.
func (e *Endpoint) TryPopVector() (vm VectorMessage, ok bool, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tryPopVectorLocked(e.trace())
}

// tryPopVectorLocked must be called with mu held. tr is the trace to fire
// FrameReceived on; callers driving an already-resolved per-call trace
// (Service/driveOneCycle) pass it through instead of re-resolving e.trace().
func (e *Endpoint) tryPopVectorLocked(tr *Trace) (vm VectorMessage, ok bool, err error) {
	if err = e.checkOpenLocked(); err != nil {
		return VectorMessage{}, false, err
	}
	frame, popped, perr := e.asm.TryPop()
	if perr != nil {
		e.failLocked(wrapProtocolViolation(perr))
		return VectorMessage{}, false, e.fatalErr
	}
	if !popped {
		return VectorMessage{}, false, nil
	}
	tr.FrameReceived(e.id.String(), len(frame))
	v, rv, payload, decOK := decodeVectorPayload(frame)
	if !decOK {
		e.failLocked(errors.Wrap(ErrConnectionLost, ErrShortVectorFrame.Error()))
		return VectorMessage{}, false, e.fatalErr
	}
	return VectorMessage{Vector: v, RVector: rv, Payload: payload}, true, nil
}

// DrainVectors returns every complete L3 vector message currently
// buffered.
func (e *Endpoint) DrainVectors() ([]VectorMessage, error) {
	var out []VectorMessage
	for {
		vm, ok, err := e.TryPopVector()
		if err != nil {
			return out, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, vm)
	}
}
