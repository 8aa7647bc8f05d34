package execshell

import (
	"context"
	"sync"
)

// CancellationToken is a one-shot cancellation signal with a single observer.
type CancellationToken struct {
	mutex              sync.Mutex
	cancelled          bool
	done               chan struct{}
	observer           func()
	observerRegistered bool
}

// NewCancellationToken constructs an untriggered token.
func NewCancellationToken() *CancellationToken {
	return &CancellationToken{done: make(chan struct{})}
}

// NewCancellationTokenFromContext returns a token cancelled when parentContext is done.
// The returned stop function releases the link without cancelling the token.
func NewCancellationTokenFromContext(parentContext context.Context) (*CancellationToken, func() bool) {
	token := NewCancellationToken()
	if parentContext == nil {
		return token, func() bool { return false }
	}
	stop := context.AfterFunc(parentContext, token.Cancel)
	return token, stop
}

// Cancel requests cancellation. Only the first call has an effect.
func (token *CancellationToken) Cancel() {
	token.mutex.Lock()
	if token.cancelled {
		token.mutex.Unlock()
		return
	}
	token.cancelled = true
	close(token.done)
	observer := token.observer
	token.mutex.Unlock()

	if observer != nil {
		observer()
	}
}

// OnCancel registers the single observer. It runs synchronously on the goroutine
// calling Cancel, or immediately when the token is already cancelled.
func (token *CancellationToken) OnCancel(observer func()) error {
	if observer == nil {
		return nil
	}

	token.mutex.Lock()
	if token.observerRegistered {
		token.mutex.Unlock()
		return ErrCancellationObserverRegistered
	}
	token.observerRegistered = true
	if token.cancelled {
		token.mutex.Unlock()
		observer()
		return nil
	}
	token.observer = observer
	token.mutex.Unlock()
	return nil
}

// Done returns a channel closed once cancellation is requested.
func (token *CancellationToken) Done() <-chan struct{} {
	return token.done
}

// IsCancelled reports whether cancellation was requested.
func (token *CancellationToken) IsCancelled() bool {
	token.mutex.Lock()
	defer token.mutex.Unlock()
	return token.cancelled
}
