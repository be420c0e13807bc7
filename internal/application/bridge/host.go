package bridge

import "sync"

// Event is one webhook invocation's input
type Event interface {
	// RawData returns the deal envelope as JSON
	RawData() []byte
}

// HostContext receives the outcome of one invocation
type HostContext interface {
	CloseWithSuccess()
	CloseWithFailure(message string)
}

// RawEvent is an Event backed by a byte slice
type RawEvent []byte

// RawData implements Event
func (e RawEvent) RawData() []byte {
	return e
}

// OnceContext forwards only the first outcome to the wrapped host
type OnceContext struct {
	host   HostContext
	mu     sync.Mutex
	closed bool
}

// NewOnceContext wraps host
func NewOnceContext(host HostContext) *OnceContext {
	if once, ok := host.(*OnceContext); ok {
		return once
	}
	return &OnceContext{host: host}
}

// CloseWithSuccess implements HostContext
func (o *OnceContext) CloseWithSuccess() {
	if o.claim() {
		o.host.CloseWithSuccess()
	}
}

// CloseWithFailure implements HostContext
func (o *OnceContext) CloseWithFailure(message string) {
	if o.claim() {
		o.host.CloseWithFailure(message)
	}
}

// Closed reports whether an outcome has been signalled
func (o *OnceContext) Closed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closed
}

func (o *OnceContext) claim() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return false
	}
	o.closed = true
	return true
}
