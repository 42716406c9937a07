package kurir

import (
	"errors"
	"sync"
)

// Cancel is the reason a request was cancelled.
type Cancel struct {
	Message string
}

func (c *Cancel) Error() string {
	if c == nil || c.Message == "" {
		return "request cancelled"
	}
	return c.Message
}

// Canceler triggers a CancelToken. Only the first call has any effect.
type Canceler func(message string)

// CancelToken is a one-shot cancellation signal. It starts pending and
// moves to cancelled at most once, keeping the first reason.
type CancelToken struct {
	once   sync.Once
	done   chan struct{}
	mu     sync.RWMutex
	reason *Cancel
}

// NewCancelToken creates a token and hands its Canceler to executor.
func NewCancelToken(executor func(cancel Canceler)) *CancelToken {
	t := &CancelToken{done: make(chan struct{})}
	if executor != nil {
		executor(t.cancel)
	}
	return t
}

// CancelSource pairs a token with its trigger.
type CancelSource struct {
	Token  *CancelToken
	Cancel Canceler
}

// NewCancelSource creates a token together with its Canceler.
func NewCancelSource() CancelSource {
	var cancel Canceler
	token := NewCancelToken(func(c Canceler) {
		cancel = c
	})
	return CancelSource{Token: token, Cancel: cancel}
}

func (t *CancelToken) cancel(message string) {
	t.once.Do(func() {
		t.mu.Lock()
		t.reason = &Cancel{Message: message}
		t.mu.Unlock()
		close(t.done)
	})
}

// Done returns a channel closed when the token is cancelled.
func (t *CancelToken) Done() <-chan struct{} {
	return t.done
}

// Reason returns the cancellation reason, or nil while pending.
func (t *CancelToken) Reason() *Cancel {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.reason
}

// Requested reports whether the token has been cancelled.
func (t *CancelToken) Requested() bool {
	return t.Reason() != nil
}

// Err returns the stored reason if the token was already cancelled, so a
// request can be refused before it is dispatched.
func (t *CancelToken) Err() error {
	if t == nil {
		return nil
	}
	if reason := t.Reason(); reason != nil {
		return reason
	}
	return nil
}

// IsCancel reports whether err was caused by a cancelled token or a
// cancelled caller context.
func IsCancel(err error) bool {
	var c *Cancel
	return errors.As(err, &c) || errors.Is(err, ErrCancelled)
}
