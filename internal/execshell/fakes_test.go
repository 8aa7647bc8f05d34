package execshell_test

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/temirov/cellrun/internal/execshell"
)

const testFakeProcessIdentifierConstant = 4242

type fakeProcessHandle struct {
	mutex           sync.Mutex
	specification   execshell.ProcessSpecification
	spawned         chan struct{}
	exitSignal      chan execshell.ProcessExit
	exitOnce        sync.Once
	exitOnHangUp    bool
	hangUpCount     atomic.Int32
	killCount       atomic.Int32
	closeInputCount atomic.Int32
}

func newFakeProcessHandle() *fakeProcessHandle {
	return &fakeProcessHandle{
		spawned:    make(chan struct{}),
		exitSignal: make(chan execshell.ProcessExit, 1),
	}
}

func (handle *fakeProcessHandle) ProcessID() int {
	return testFakeProcessIdentifierConstant
}

func (handle *fakeProcessHandle) CloseInput() error {
	handle.closeInputCount.Add(1)
	return nil
}

func (handle *fakeProcessHandle) HangUp() error {
	handle.hangUpCount.Add(1)
	if handle.exitOnHangUp {
		handle.exit(execshell.ProcessExit{ExitCode: -1, Signaled: true})
	}
	return nil
}

func (handle *fakeProcessHandle) Kill() error {
	handle.killCount.Add(1)
	handle.exit(execshell.ProcessExit{ExitCode: -1, Signaled: true})
	return nil
}

func (handle *fakeProcessHandle) Wait() execshell.ProcessExit {
	return <-handle.exitSignal
}

func (handle *fakeProcessHandle) exit(processExit execshell.ProcessExit) {
	handle.exitOnce.Do(func() {
		handle.exitSignal <- processExit
	})
}

func (handle *fakeProcessHandle) emit(stream execshell.OutputStream, text string) {
	handle.mutex.Lock()
	specification := handle.specification
	handle.mutex.Unlock()

	if stream == execshell.OutputStreamStandardError {
		_, _ = specification.StandardError.Write([]byte(text))
		return
	}
	_, _ = specification.StandardOutput.Write([]byte(text))
}

type fakeProcessSpawner struct {
	handle         *fakeProcessHandle
	spawnError     error
	mutex          sync.Mutex
	specifications []execshell.ProcessSpecification
}

func (spawner *fakeProcessSpawner) Spawn(_ context.Context, specification execshell.ProcessSpecification) (execshell.ProcessHandle, error) {
	spawner.mutex.Lock()
	spawner.specifications = append(spawner.specifications, specification)
	spawner.mutex.Unlock()

	if spawner.spawnError != nil {
		return nil, spawner.spawnError
	}

	spawner.handle.mutex.Lock()
	spawner.handle.specification = specification
	spawner.handle.mutex.Unlock()
	close(spawner.handle.spawned)
	return spawner.handle, nil
}

func (spawner *fakeProcessSpawner) recordedCommands() []string {
	spawner.mutex.Lock()
	defer spawner.mutex.Unlock()
	commands := make([]string, 0, len(spawner.specifications))
	for _, specification := range spawner.specifications {
		commands = append(commands, specification.Command)
	}
	return commands
}

type recordingSink struct {
	mutex   sync.Mutex
	renders [][]execshell.RenderableItem
}

func (sink *recordingSink) Replace(items []execshell.RenderableItem) error {
	sink.mutex.Lock()
	defer sink.mutex.Unlock()
	duplicatedItems := make([]execshell.RenderableItem, 0, len(items))
	for _, item := range items {
		duplicatedItems = append(duplicatedItems, execshell.RenderableItem{Mime: item.Mime, Data: append([]byte(nil), item.Data...)})
	}
	sink.renders = append(sink.renders, duplicatedItems)
	return nil
}

func (sink *recordingSink) renderCount() int {
	sink.mutex.Lock()
	defer sink.mutex.Unlock()
	return len(sink.renders)
}

func (sink *recordingSink) lastItem() (execshell.RenderableItem, bool) {
	sink.mutex.Lock()
	defer sink.mutex.Unlock()
	if len(sink.renders) == 0 || len(sink.renders[len(sink.renders)-1]) == 0 {
		return execshell.RenderableItem{}, false
	}
	lastRender := sink.renders[len(sink.renders)-1]
	return lastRender[len(lastRender)-1], true
}

func (sink *recordingSink) allRenders() [][]execshell.RenderableItem {
	sink.mutex.Lock()
	defer sink.mutex.Unlock()
	return append([][]execshell.RenderableItem(nil), sink.renders...)
}

// blockingSink holds every Replace call until release is closed.
type blockingSink struct {
	entered     chan struct{}
	release     chan struct{}
	renderTotal atomic.Int32
}

func newBlockingSink() *blockingSink {
	return &blockingSink{entered: make(chan struct{}, 1), release: make(chan struct{})}
}

func (sink *blockingSink) Replace(_ []execshell.RenderableItem) error {
	sink.renderTotal.Add(1)
	select {
	case sink.entered <- struct{}{}:
	default:
	}
	<-sink.release
	return nil
}

type recordingObserver struct {
	mutex        sync.Mutex
	startedPIDs  []int
	outcomes     []execshell.ExecutionOutcome
	spawnFailure []error
}

func (observer *recordingObserver) ExecutionStarted(_ execshell.ExecutionRequest, processID int) {
	observer.mutex.Lock()
	defer observer.mutex.Unlock()
	observer.startedPIDs = append(observer.startedPIDs, processID)
}

func (observer *recordingObserver) ExecutionCompleted(_ execshell.ExecutionRequest, outcome execshell.ExecutionOutcome) {
	observer.mutex.Lock()
	defer observer.mutex.Unlock()
	observer.outcomes = append(observer.outcomes, outcome)
}

func (observer *recordingObserver) ExecutionSpawnFailed(_ execshell.ExecutionRequest, failure error) {
	observer.mutex.Lock()
	defer observer.mutex.Unlock()
	observer.spawnFailure = append(observer.spawnFailure, failure)
}
