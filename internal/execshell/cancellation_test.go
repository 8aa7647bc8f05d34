package execshell_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/temirov/cellrun/internal/execshell"
)

func TestCancellationTokenInvokesObserverOnce(testInstance *testing.T) {
	token := execshell.NewCancellationToken()
	var invocationCount atomic.Int32
	require.NoError(testInstance, token.OnCancel(func() { invocationCount.Add(1) }))
	require.False(testInstance, token.IsCancelled())

	var waitGroup sync.WaitGroup
	for range 8 {
		waitGroup.Add(1)
		go func() {
			defer waitGroup.Done()
			token.Cancel()
		}()
	}
	waitGroup.Wait()

	require.True(testInstance, token.IsCancelled())
	require.Equal(testInstance, int32(1), invocationCount.Load())
	select {
	case <-token.Done():
	default:
		testInstance.Fatal("done channel not closed")
	}
}

func TestCancellationTokenRejectsSecondObserver(testInstance *testing.T) {
	token := execshell.NewCancellationToken()
	require.NoError(testInstance, token.OnCancel(func() {}))
	require.ErrorIs(testInstance, token.OnCancel(func() {}), execshell.ErrCancellationObserverRegistered)
}

func TestCancellationTokenRunsLateObserverImmediately(testInstance *testing.T) {
	token := execshell.NewCancellationToken()
	token.Cancel()

	invoked := false
	require.NoError(testInstance, token.OnCancel(func() { invoked = true }))
	require.True(testInstance, invoked)
}

func TestCancellationTokenFollowsContext(testInstance *testing.T) {
	parentContext, cancelParent := context.WithCancel(context.Background())
	token, stop := execshell.NewCancellationTokenFromContext(parentContext)
	defer stop()

	require.False(testInstance, token.IsCancelled())
	cancelParent()
	require.Eventually(testInstance, token.IsCancelled, time.Second, time.Millisecond)
}

func TestCancellationTokenStopReleasesContext(testInstance *testing.T) {
	parentContext, cancelParent := context.WithCancel(context.Background())
	token, stop := execshell.NewCancellationTokenFromContext(parentContext)

	require.True(testInstance, stop())
	cancelParent()
	require.Never(testInstance, token.IsCancelled, 50*time.Millisecond, 5*time.Millisecond)
}
