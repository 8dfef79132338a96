package bridge

// Scheduler decouples the handler's worker loop from how it actually gets a
// goroutine to run on. The source spins the worker off a process-wide
// thread pool; Post reframes that as an injected dependency so production
// wiring can use a real goroutine while tests run the loop synchronously.
type Scheduler interface {
	Post(task func())
}

// GoScheduler runs every posted task on its own goroutine.
type GoScheduler struct{}

// Post implements Scheduler by spawning a goroutine.
func (GoScheduler) Post(task func()) {
	go task()
}

// SyncScheduler runs posted tasks inline, on the calling goroutine. Tests use
// it to make the worker loop's single iteration deterministic and callable
// step by step instead of racing a background goroutine.
type SyncScheduler struct{}

// Post implements Scheduler by running task on the calling goroutine.
func (SyncScheduler) Post(task func()) {
	task()
}

var (
	_ Scheduler = GoScheduler{}
	_ Scheduler = SyncScheduler{}
)
