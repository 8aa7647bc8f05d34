package execshell

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

const (
	closeInputFailedMessageConstant  = "unable to close process input"
	hangUpFailedMessageConstant      = "hang-up signal failed"
	killFailedMessageConstant        = "kill signal failed"
	cancellationFiredMessageConstant = "cancellation requested; detached output streams"
	logFieldProcessIDConstant        = "pid"
)

// cancellationController detaches the streams of one run and escalates termination.
// outputGuard orders chunk handling against fire: a chunk is either fully
// aggregated and rendered before fire returns, or dropped.
type cancellationController struct {
	logger      *zap.Logger
	handle      ProcessHandle
	state       *atomic.Int32
	detached    chan struct{}
	outputGuard sync.Mutex
}

func newCancellationController(logger *zap.Logger, handle ProcessHandle, state *atomic.Int32, detached chan struct{}) *cancellationController {
	return &cancellationController{logger: logger, handle: handle, state: state, detached: detached}
}

// fire is the cancellation callback. Only the call that moves the run from
// running to cancelled acts; detachment completes before fire returns.
func (controller *cancellationController) fire() {
	if !controller.state.CompareAndSwap(int32(ExecutionStateRunning), int32(ExecutionStateCancelled)) {
		return
	}

	controller.outputGuard.Lock()
	close(controller.detached)
	controller.outputGuard.Unlock()
	processID := controller.handle.ProcessID()
	controller.logger.Debug(cancellationFiredMessageConstant, zap.Int(logFieldProcessIDConstant, processID))

	if closeError := controller.handle.CloseInput(); closeError != nil {
		controller.logger.Debug(closeInputFailedMessageConstant, zap.Int(logFieldProcessIDConstant, processID), zap.Error(closeError))
	}
	if hangUpError := controller.handle.HangUp(); hangUpError != nil {
		controller.logger.Debug(hangUpFailedMessageConstant, zap.Int(logFieldProcessIDConstant, processID), zap.Error(hangUpError))
	}
}

func (controller *cancellationController) detachedChannel() <-chan struct{} {
	return controller.detached
}

// admit runs handleChunk only while the run is still running.
func (controller *cancellationController) admit(handleChunk func()) {
	controller.outputGuard.Lock()
	defer controller.outputGuard.Unlock()
	if controller.state.Load() != int32(ExecutionStateRunning) {
		return
	}
	handleChunk()
}

// escalate gives the process gracePeriod to exit after the hang-up, kills it
// otherwise, and returns once the process has been reaped.
func (controller *cancellationController) escalate(exited <-chan ProcessExit, gracePeriod time.Duration) ProcessExit {
	if gracePeriod > 0 {
		graceTimer := time.NewTimer(gracePeriod)
		defer graceTimer.Stop()
		select {
		case processExit := <-exited:
			return processExit
		case <-graceTimer.C:
		}
	} else {
		select {
		case processExit := <-exited:
			return processExit
		default:
		}
	}

	if killError := controller.handle.Kill(); killError != nil {
		controller.logger.Debug(killFailedMessageConstant, zap.Int(logFieldProcessIDConstant, controller.handle.ProcessID()), zap.Error(killError))
	}
	return <-exited
}
