package vecwire

import (
	"io"
	"net"
	"os"

	"github.com/pkg/errors"
)

// Error taxonomy. A single connection-lost condition subsumes protocol
// violations (§7 of the design record): once raised, the Endpoint is
// unusable and every subsequent call returns the same latched error.
var (
	// ErrConnectionLost is returned (possibly wrapped) by any operation
	// that discovers the stream has failed: a zero-length read, a broken
	// write, or a protocol violation.
	ErrConnectionLost = errors.New("vecwire: connection lost")

	// ErrFrameTooLong means an inbound frame declared a length exceeding
	// the endpoint's configured MaxFrameSize. Wrapped around ErrConnectionLost.
	ErrFrameTooLong = errors.New("vecwire: frame exceeds configured limit")

	// ErrShortVectorFrame means an L2 frame was shorter than the 16-byte
	// vector header. Wrapped around ErrConnectionLost.
	ErrShortVectorFrame = errors.New("vecwire: frame shorter than vector header")

	// ErrCallbackRequired is a misuse error: SendVectorWithMode was called
	// with ModeCallback and a nil callback.
	ErrCallbackRequired = errors.New("vecwire: Callback mode requires a non-nil callback")

	// ErrUnknownMode is a misuse error: SendVectorWithMode was called with
	// an unrecognised Mode value.
	ErrUnknownMode = errors.New("vecwire: unknown send mode")

	// ErrClosed is a misuse error: an operation was attempted on an
	// Endpoint after Close.
	ErrClosed = errors.New("vecwire: endpoint is closed")
)

// isWouldBlock classifies a Conn I/O error as the benign "no further
// progress without waiting" signal (§7: benign-would-block), as opposed
// to a fatal connection-lost condition.
func isWouldBlock(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return ne.Timeout()
	}
	return false
}

// isEOF reports whether err represents a clean stream close.
func isEOF(err error) bool {
	return errors.Is(err, io.EOF)
}

// wrapConnErr wraps a non-benign Conn I/O error as ErrConnectionLost.
func wrapConnErr(err error) error {
	return errors.Wrap(ErrConnectionLost, err.Error())
}
