package vecwire

import (
	"context"
	"log"

	"github.com/imdario/mergo"
)

// unique type to prevent context key collisions.
type traceContextKey struct{}

// Trace defines a set of optional hooks an Endpoint invokes at defined
// extension points. It is the sole sanctioned way for an external
// collaborator to observe endpoint activity (logging, metrics) without the
// endpoint owning a logging policy, mirroring netconf/client's ClientTrace.
type Trace struct {
	// FrameSent is called after a complete L2 frame has been handed to the
	// outbound queue.
	FrameSent func(id string, length int)

	// FrameReceived is called for each complete L2 frame cut from the
	// inbound assembler.
	FrameReceived func(id string, length int)

	// VectorSent is called after SendVector/SendVectorWithMode assigns a
	// vector and enqueues its frame.
	VectorSent func(id string, vector, rvector uint64, length int)

	// VectorDispatched is called for each inbound vector message, with the
	// disposition it was given: "await", "stored", "callback", or "discard".
	VectorDispatched func(id string, vector, rvector uint64, disposition string)

	// ConnectionLost is called the moment the endpoint latches the
	// connection-lost condition.
	ConnectionLost func(id string, err error)

	// Error is called when SendVectorWithMode rejects a call as misuse (a
	// nil callback under ModeCallback, or an unknown Mode).
	Error func(id string, context string, err error)
}

// ContextTrace returns the Trace associated with ctx, if any, merged over
// NoOpTrace so unset hooks are always safe to call. If ctx carries no
// Trace, NoOpTrace is returned.
func ContextTrace(ctx context.Context) *Trace {
	trace, _ := ctx.Value(traceContextKey{}).(*Trace)
	if trace == nil {
		return NoOpTrace
	}
	merged := *trace
	_ = mergo.Merge(&merged, NoOpTrace)
	return &merged
}

// WithTrace returns a new context derived from ctx that carries trace.
func WithTrace(ctx context.Context, trace *Trace) context.Context {
	return context.WithValue(ctx, traceContextKey{}, trace)
}

// NoOpTrace is a Trace whose hooks all do nothing; it is the default.
var NoOpTrace = &Trace{
	FrameSent:        func(id string, length int) {},
	FrameReceived:    func(id string, length int) {},
	VectorSent:       func(id string, vector, rvector uint64, length int) {},
	VectorDispatched: func(id string, vector, rvector uint64, disposition string) {},
	ConnectionLost:   func(id string, err error) {},
	Error:            func(id string, context string, err error) {},
}

// DefaultLoggingTrace logs only the events an operator typically cares
// about by default: connection loss and misuse errors.
var DefaultLoggingTrace = &Trace{
	ConnectionLost: func(id string, err error) {
		log.Printf("vecwire endpoint:%s connection-lost err:%v\n", id, err)
	},
	Error: func(id string, context string, err error) {
		log.Printf("vecwire endpoint:%s error context:%s err:%v\n", id, context, err)
	},
}

// DiagnosticLoggingTrace logs every extension point; intended for
// debugging a single session, not production use.
var DiagnosticLoggingTrace = &Trace{
	FrameSent: func(id string, length int) {
		log.Printf("vecwire endpoint:%s frame-sent len:%d\n", id, length)
	},
	FrameReceived: func(id string, length int) {
		log.Printf("vecwire endpoint:%s frame-received len:%d\n", id, length)
	},
	VectorSent: func(id string, vector, rvector uint64, length int) {
		log.Printf("vecwire endpoint:%s vector-sent v:%d rv:%d len:%d\n", id, vector, rvector, length)
	},
	VectorDispatched: func(id string, vector, rvector uint64, disposition string) {
		log.Printf("vecwire endpoint:%s vector-dispatched v:%d rv:%d disposition:%s\n", id, vector, rvector, disposition)
	},
	ConnectionLost: DefaultLoggingTrace.ConnectionLost,
	Error:          DefaultLoggingTrace.Error,
}
