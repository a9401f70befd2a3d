package telegram

import (
	"context"
	"errors"
	"sync"
)

// AuthState is the authorization state of the platform session.
type AuthState string

const (
	AuthUnknown AuthState = "unknown"
	AuthPending AuthState = "authorizing"
	AuthReady   AuthState = "ready"
	AuthFailed  AuthState = "failed"
	AuthClosed  AuthState = "closed"
)

// ErrAuthorizationStopped is returned by queries after Stop.
var ErrAuthorizationStopped = errors.New("authorization tracker stopped")

// Authorization owns the authorization state in a single goroutine. Other
// goroutines change it with Set and read it with State or wait on Ready.
type Authorization struct {
	set     chan AuthState
	query   chan chan AuthState
	ready   chan struct{}
	stop    chan struct{}
	stopped sync.Once
}

// NewAuthorization starts the state owner goroutine.
func NewAuthorization() *Authorization {
	a := &Authorization{
		set:   make(chan AuthState),
		query: make(chan chan AuthState),
		ready: make(chan struct{}),
		stop:  make(chan struct{}),
	}
	go a.loop()
	return a
}

func (a *Authorization) loop() {
	state := AuthUnknown
	readyClosed := false
	for {
		select {
		case s := <-a.set:
			state = s
			if s == AuthReady && !readyClosed {
				close(a.ready)
				readyClosed = true
			}
		case reply := <-a.query:
			reply <- state
		case <-a.stop:
			return
		}
	}
}

// Set records a new state. It is a no-op once the tracker is stopped.
func (a *Authorization) Set(s AuthState) {
	select {
	case a.set <- s:
	case <-a.stop:
	}
}

// State returns the current state.
func (a *Authorization) State(ctx context.Context) (AuthState, error) {
	select {
	case <-a.stop:
		return AuthClosed, ErrAuthorizationStopped
	default:
	}
	reply := make(chan AuthState, 1)
	select {
	case a.query <- reply:
	case <-a.stop:
		return AuthClosed, ErrAuthorizationStopped
	case <-ctx.Done():
		return AuthUnknown, ctx.Err()
	}
	return <-reply, nil
}

// Ready is closed the first time the session becomes authorized.
func (a *Authorization) Ready() <-chan struct{} {
	return a.ready
}

// Stop terminates the owner goroutine.
func (a *Authorization) Stop() {
	a.stopped.Do(func() { close(a.stop) })
}
