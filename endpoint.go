// Package vecwire implements a layered point-to-point messaging endpoint
// over a reliable byte stream: non-blocking buffered I/O (L1),
// length-prefixed framing (L2), correlation of messages by a pair of
// 64-bit "vectors" (L3), and a request/response dispatch surface
// supporting blocking waits, polled async retrieval, fire-and-forget
// callbacks, and discard (L4).
//
// The wire format is bit-exact and symmetric: the same Endpoint type is
// used by either side of a connection.
//
//	L2 frame   : u32be length N | N bytes payload
//	L3 payload : u64be vector   | u64be rvector | user bytes
package vecwire

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/mark3982/vecwire/internal/assembler"
)

// Endpoint wraps one Conn with the full L1-L4 stack described in the
// package doc. It is safe for concurrent use by multiple goroutines: all
// of its state is guarded either by vmu (vector allocation) or mu
// (everything else), acquired in that fixed order, and no blocking
// network call is ever made while either is held.
type Endpoint struct {
	id   uuid.UUID
	conn Conn
	cfg  *Config

	// vmu guards nextVector and serializes "bump counter, enqueue frame"
	// as the single atomic unit L3 requires. Always acquired before mu,
	// never the reverse.
	vmu        sync.Mutex
	nextVector uint64

	// mu guards everything else: the receive assembler, the outbound
	// queue, the correlation table, and the driving flag. cond is built on
	// mu so waiters parked for a specific vector wake on every dispatch
	// cycle without re-entering the socket themselves.
	mu      sync.Mutex
	cond    *sync.Cond
	driving bool

	asm *assembler.Assembler

	outq    [][]byte
	outSize int

	table map[uint64]*pendingEntry

	closed   bool
	fatalErr error
}

// New returns an Endpoint built around conn. A nil cfg uses DefaultConfig.
func New(conn Conn, cfg *Config) *Endpoint {
	resolved := resolveConfig(cfg)
	e := &Endpoint{
		id:    uuid.New(),
		conn:  conn,
		cfg:   resolved,
		asm:   assembler.New(resolved.MaxFrameSize),
		table: make(map[uint64]*pendingEntry),
		// Vector 0 is never issued: a zero rvector means "not a reply".
		nextVector: 1,
	}
	e.cond = sync.NewCond(&e.mu)
	return e
}

// ID returns the identifier assigned to this Endpoint for trace/log
// correlation. It has no protocol meaning.
func (e *Endpoint) ID() uuid.UUID { return e.id }

func (e *Endpoint) trace() *Trace {
	if e.cfg.Trace != nil {
		return e.cfg.Trace
	}
	return NoOpTrace
}

// traceFor resolves the trace that should observe one ctx-bearing call: a
// trace attached to ctx via WithTrace takes precedence (mirroring
// netconf/client's ContextClientTrace wiring), falling back to the
// Endpoint's configured trace otherwise. Resolved once per readiness cycle
// in driveOneCycle and carried through its dispatchLocked/tryPopVectorLocked
// calls, not re-resolved per low-level hook.
func (e *Endpoint) traceFor(ctx context.Context) *Trace {
	if ctx != nil {
		if _, ok := ctx.Value(traceContextKey{}).(*Trace); ok {
			return ContextTrace(ctx)
		}
	}
	return e.trace()
}

// Close releases the Endpoint's resources. Subsequent calls to any
// error-returning method return ErrClosed, or the connection-lost error if
// one was already latched before Close. It does not close the underlying
// Conn: ownership of
// the transport's lifecycle belongs to whoever constructed it (the
// acceptor/dialer, out of scope for this package).
func (e *Endpoint) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	e.failLocked(ErrClosed)
	e.cond.Broadcast()
	return nil
}

// failLocked latches a fatal error so every subsequent operation fails
// fast without touching the Conn again. Must be called with mu held.
func (e *Endpoint) failLocked(err error) {
	if e.fatalErr == nil {
		e.fatalErr = err
		if errors.Is(err, ErrConnectionLost) {
			e.trace().ConnectionLost(e.id.String(), err)
		}
	}
}

// checkOpenLocked returns the latched fatal error, if any. Must be called
// with mu held.
func (e *Endpoint) checkOpenLocked() error {
	if e.fatalErr != nil {
		return e.fatalErr
	}
	return nil
}
