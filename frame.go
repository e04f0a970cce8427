package vecwire

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/mark3982/vecwire/internal/assembler"
)

const frameHeaderSize = 4

// encodeFrame produces the L2 wire form of payload: a u32be length prefix
// followed by the payload bytes. Emission onto the wire is made atomic
// with respect to other senders by enqueuing the header and payload as a
// single chunk via SendBytes.
func encodeFrame(payload []byte) []byte {
	buf := make([]byte, frameHeaderSize+len(payload))
	binary.BigEndian.PutUint32(buf[:frameHeaderSize], uint32(len(payload)))
	copy(buf[frameHeaderSize:], payload)
	return buf
}

// wrapProtocolViolation maps an assembler-level framing error onto the
// endpoint's connection-lost taxonomy (§7: protocol violations are
// surfaced as connection-lost).
func wrapProtocolViolation(err error) error {
	if errors.Is(err, assembler.ErrTooLong) {
		return errors.Wrap(ErrConnectionLost, ErrFrameTooLong.Error()+": "+err.Error())
	}
	return errors.Wrap(ErrConnectionLost, err.Error())
}
