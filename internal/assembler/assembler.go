// Package assembler implements the L2 receive-side framing state machine:
// accumulate bytes, emit zero or more complete u32be-length-prefixed frames
// per feed. It has no notion of sockets, vectors, or dispatch — those live
// in the parent vecwire package, which drives an Assembler purely with byte
// slices read from a Conn.
package assembler

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// ErrTooLong is returned by TryPop when a frame's declared length exceeds
// the configured MaxFrame. The caller is expected to treat this the same
// as a connection-lost condition (see vecwire's error taxonomy).
var ErrTooLong = errors.New("assembler: frame length exceeds configured maximum")

const headerSize = 4

// Assembler accumulates inbound bytes and cuts complete frames off the
// front as soon as they are fully buffered. An Assembler returned by New
// starts in the header-pending state.
type Assembler struct {
	maxFrame uint32 // 0 means no cap beyond the u32 wire maximum

	buf []byte
	off int // read cursor into buf

	frameLen int64 // -1 while header-pending; >=0 once the length prefix is known
}

// New returns an Assembler that rejects any frame whose declared length
// exceeds maxFrame. maxFrame == 0 means no cap is enforced beyond what a
// u32be length can express.
func New(maxFrame uint32) *Assembler {
	return &Assembler{maxFrame: maxFrame, frameLen: -1}
}

// Feed appends newly read bytes to the accumulator. A nil/empty data is a
// no-op, so callers can use Feed(nil) purely to drive TryPop against
// already-buffered bytes.
func (a *Assembler) Feed(data []byte) {
	if len(data) == 0 {
		return
	}
	a.buf = append(a.buf, data...)
}

// TryPop attempts to cut one complete frame off the front of the
// accumulator. It returns ok == false when not enough bytes are buffered
// yet (not an error: call again after the next Feed). Calling TryPop in a
// loop until ok == false drains every frame currently available.
func (a *Assembler) TryPop() (frame []byte, ok bool, err error) {
	if a.frameLen < 0 {
		if a.available() < headerSize {
			a.compact()
			return nil, false, nil
		}
		n := binary.BigEndian.Uint32(a.buf[a.off : a.off+headerSize])
		a.off += headerSize
		if a.maxFrame != 0 && n > a.maxFrame {
			return nil, false, errors.Wrapf(ErrTooLong, "declared length %d, max %d", n, a.maxFrame)
		}
		a.frameLen = int64(n)
	}

	if int64(a.available()) < a.frameLen {
		a.compact()
		return nil, false, nil
	}

	start := a.off
	end := a.off + int(a.frameLen)
	frame = make([]byte, a.frameLen)
	copy(frame, a.buf[start:end])
	a.off = end
	a.frameLen = -1
	a.compact()
	return frame, true, nil
}

// Pending reports whether the accumulator holds bytes that have not yet
// formed a complete frame: a partial length header, or a parsed length
// awaiting more payload. Callers use this on end-of-stream to distinguish
// a clean boundary from a protocol violation (truncated frame).
func (a *Assembler) Pending() bool {
	return a.frameLen >= 0 || a.available() > 0
}

func (a *Assembler) available() int { return len(a.buf) - a.off }

// compact reclaims the consumed prefix of buf once it is large enough to
// matter, so a long-lived connection doesn't pin an ever-growing backing
// array merely because headers keep getting sliced off the front.
func (a *Assembler) compact() {
	if a.off == 0 {
		return
	}
	if a.off == len(a.buf) {
		a.buf = a.buf[:0]
		a.off = 0
		return
	}
	if a.off > 4096 || a.off*2 > len(a.buf) {
		n := copy(a.buf, a.buf[a.off:])
		a.buf = a.buf[:n]
		a.off = 0
	}
}
