package usecase

import (
	"context"
	"sync"
)

// MicrophoneLease grants the microphone to one recognizer owner at a time.
// Shared dictation and quick capture both acquire it before opening a
// recognition session.
type MicrophoneLease struct {
	mu     sync.Mutex
	holder string
}

func NewMicrophoneLease() *MicrophoneLease {
	return &MicrophoneLease{}
}

// Acquire takes the lease for owner. Re-acquiring by the current holder
// succeeds.
func (l *MicrophoneLease) Acquire(owner string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.holder != "" && l.holder != owner {
		return false
	}
	l.holder = owner
	return true
}

// Release gives the lease back if owner holds it.
func (l *MicrophoneLease) Release(owner string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.holder == owner {
		l.holder = ""
	}
}

// Holder returns the current owner, or "" when free.
func (l *MicrophoneLease) Holder() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.holder
}

// awaitTeardown blocks until the session shutdown tracked by *teardown has
// finished. It is called and returns with mu held.
func awaitTeardown(ctx context.Context, mu *sync.Mutex, teardown *chan struct{}) error {
	for *teardown != nil {
		done := *teardown
		mu.Unlock()
		select {
		case <-done:
			mu.Lock()
		case <-ctx.Done():
			mu.Lock()
			return ctx.Err()
		}
	}
	return nil
}
