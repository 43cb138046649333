// Package observability provides hooks for metrics, tracing, and logging.
//
// This package enables optional instrumentation without adding hard dependencies
// on specific observability backends. Consumers can register hooks at startup
// to receive events about command streaming, job lifecycle, and cache
// operations.
//
// # Architecture
//
// The package uses a simple hooks pattern:
//   - Define hook interfaces for different event categories
//   - Provide no-op default implementations
//   - Allow registration of custom implementations at startup
//
// This approach:
//   - Avoids import cycles (hooks are registered by main, not by libraries)
//   - Keeps the core library dependency-free from observability frameworks
//   - Allows different backends (OpenTelemetry, Prometheus, DataDog, etc.)
//
// # Usage
//
// Register hooks at application startup:
//
//	func main() {
//	    observability.SetStreamHooks(&myStreamHooks{})
//	    observability.SetJobHooks(&myJobHooks{})
//	    // ... run application
//	}
//
// Libraries call hooks to emit events:
//
//	observability.Stream().OnDispatch(ctx, seq, opcode)
//	// ... await firmware confirmation ...
//	observability.Stream().OnAck(ctx, seq, latency)
package observability

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// Stream Hooks
// =============================================================================

// StreamHooks receives events from the firmware command stream.
type StreamHooks interface {
	// Dispatch events
	OnDispatch(ctx context.Context, seq uint32, opcode string)
	OnAck(ctx context.Context, seq uint32, latency time.Duration)

	// Recovery events
	OnRetransmit(ctx context.Context, seq uint32)
	OnDegraded(ctx context.Context, lastAcked int64)
	OnReconnect(ctx context.Context, attempt int, err error)
}

// =============================================================================
// Job Hooks
// =============================================================================

// JobHooks receives events from the job controller.
type JobHooks interface {
	// OnJobStart records a job entering the streaming phase.
	OnJobStart(ctx context.Context, jobID, method string, total int)

	// OnJobEnd records a job reaching a terminal state.
	OnJobEnd(ctx context.Context, jobID, outcome string, acked int, duration time.Duration)
}

// =============================================================================
// Cache Hooks
// =============================================================================

// CacheHooks receives events from cache operations.
type CacheHooks interface {
	// OnCacheHit records a cache hit.
	OnCacheHit(ctx context.Context, keyType string)

	// OnCacheMiss records a cache miss.
	OnCacheMiss(ctx context.Context, keyType string)

	// OnCacheSet records a cache write.
	OnCacheSet(ctx context.Context, keyType string, size int)
}

// =============================================================================
// No-op Implementations
// =============================================================================

// NoopStreamHooks is a no-op implementation of StreamHooks.
type NoopStreamHooks struct{}

func (NoopStreamHooks) OnDispatch(context.Context, uint32, string)      {}
func (NoopStreamHooks) OnAck(context.Context, uint32, time.Duration)    {}
func (NoopStreamHooks) OnRetransmit(context.Context, uint32)            {}
func (NoopStreamHooks) OnDegraded(context.Context, int64)               {}
func (NoopStreamHooks) OnReconnect(context.Context, int, error)         {}

// NoopJobHooks is a no-op implementation of JobHooks.
type NoopJobHooks struct{}

func (NoopJobHooks) OnJobStart(context.Context, string, string, int)            {}
func (NoopJobHooks) OnJobEnd(context.Context, string, string, int, time.Duration) {}

// NoopCacheHooks is a no-op implementation of CacheHooks.
type NoopCacheHooks struct{}

func (NoopCacheHooks) OnCacheHit(context.Context, string)      {}
func (NoopCacheHooks) OnCacheMiss(context.Context, string)     {}
func (NoopCacheHooks) OnCacheSet(context.Context, string, int) {}

// =============================================================================
// Global Hook Registry
// =============================================================================

var (
	streamHooks StreamHooks = NoopStreamHooks{}
	jobHooks    JobHooks    = NoopJobHooks{}
	cacheHooks  CacheHooks  = NoopCacheHooks{}
	hooksMu     sync.RWMutex
)

// SetStreamHooks registers custom stream hooks.
// This should be called once at application startup before any streaming.
func SetStreamHooks(h StreamHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		streamHooks = h
	}
}

// SetJobHooks registers custom job hooks.
// This should be called once at application startup before any jobs run.
func SetJobHooks(h JobHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		jobHooks = h
	}
}

// SetCacheHooks registers custom cache hooks.
// This should be called once at application startup before any cache operations.
func SetCacheHooks(h CacheHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		cacheHooks = h
	}
}

// Stream returns the registered stream hooks.
func Stream() StreamHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return streamHooks
}

// Job returns the registered job hooks.
func Job() JobHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return jobHooks
}

// Cache returns the registered cache hooks.
func Cache() CacheHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return cacheHooks
}

// Reset restores all hooks to their no-op defaults.
// This is primarily useful for testing.
func Reset() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	streamHooks = NoopStreamHooks{}
	jobHooks = NoopJobHooks{}
	cacheHooks = NoopCacheHooks{}
}
