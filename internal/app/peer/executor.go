package peer

import "sync"

// executor runs ops one at a time, in submission order, on its own goroutine.
// The queue is unbounded so the submitter never blocks on a slow transport.
type executor struct {
	mu      sync.Mutex
	ops     []func()
	stopped bool

	wake chan struct{}
	done chan struct{}
}

func newExecutor() *executor {
	e := &executor{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	go e.loop()
	return e
}

func (e *executor) run(op func()) bool {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return false
	}
	e.ops = append(e.ops, op)
	e.mu.Unlock()

	select {
	case e.wake <- struct{}{}:
	default:
	}
	return true
}

func (e *executor) next() func() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped || len(e.ops) == 0 {
		return nil
	}
	op := e.ops[0]
	e.ops[0] = nil
	e.ops = e.ops[1:]
	return op
}

func (e *executor) loop() {
	for {
		select {
		case <-e.done:
			return
		case <-e.wake:
		}
		for op := e.next(); op != nil; op = e.next() {
			op()
		}
	}
}

// stop drops queued ops. An op already running finishes on its own.
func (e *executor) stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped {
		return
	}
	e.stopped = true
	e.ops = nil
	close(e.done)
}
