package vecwire

import "github.com/imdario/mergo"

// Config defines properties that configure Endpoint behaviour.
type Config struct {
	// MaxFrameSize caps the declared length of an inbound L2 frame. A
	// frame declaring a longer length is a protocol violation, surfaced as
	// connection-lost. Zero means no cap beyond the u32be wire maximum.
	MaxFrameSize uint32

	// ReadBufferSize is the size of the chunk read from Conn per readiness
	// cycle in Service.
	ReadBufferSize int

	// Trace defines the hooks the Endpoint invokes; nil fields behave as
	// NoOpTrace.
	Trace *Trace
}

// DefaultConfig is merged into any caller-supplied Config to fill zero
// fields, the same way netconf/client.NewRPCSessionWithConfig resolves its
// Config against netconf/client.DefaultConfig.
var DefaultConfig = &Config{
	MaxFrameSize:   1 << 20, // 1 MiB
	ReadBufferSize: 32 * 1024,
	Trace:          NoOpTrace,
}

// resolveConfig returns a copy of cfg (or DefaultConfig if cfg is nil)
// with zero fields filled in from DefaultConfig.
func resolveConfig(cfg *Config) *Config {
	var resolved Config
	if cfg != nil {
		resolved = *cfg
	}
	if resolved.Trace != nil {
		// Copy before merge, mirroring ContextTrace: mergo recurses into a
		// non-nil pointer field and would otherwise fill the caller's own
		// Trace in place.
		traceCopy := *resolved.Trace
		resolved.Trace = &traceCopy
	}
	_ = mergo.Merge(&resolved, *DefaultConfig)
	if resolved.Trace == nil {
		resolved.Trace = NoOpTrace
	}
	return &resolved
}
