// Package session wraps streaming cognitive providers (ASR, TTS, NLU) in
// per-connection session handlers.
//
// A handler owns one provider session. Events are delivered through a typed
// callback on the handler's own goroutine; once a handler is disposed its
// late events are dropped.
package session
