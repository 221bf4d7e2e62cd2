package platform

import (
	"sync"
)

// Looper is a background execution context with a single worker goroutine.
// Tasks run in the order they were posted. Platform services deliver
// callbacks through the looper passed at registration.
type Looper struct {
	name      string
	taskQueue chan func()
	mu        sync.RWMutex
	quit      bool
	waitGroup sync.WaitGroup
}

// NewLooper starts a looper with the given queue depth.
func NewLooper(name string, depth int) *Looper {
	if depth < 1 {
		depth = 1
	}
	l := &Looper{
		name:      name,
		taskQueue: make(chan func(), depth),
	}

	l.waitGroup.Add(1)
	go l.loop()

	return l
}

// Name returns the name given at construction.
func (l *Looper) Name() string {
	return l.name
}

// loop runs tasks until the queue is closed.
func (l *Looper) loop() {
	defer l.waitGroup.Done()
	for task := range l.taskQueue {
		task()
	}
}

// Post queues task for execution. It returns false once the looper has quit.
func (l *Looper) Post(task func()) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.quit {
		return false
	}
	l.taskQueue <- task
	return true
}

// Quit stops accepting tasks, drains the queue and waits for the worker.
// It must not be called from a task running on the same looper.
func (l *Looper) Quit() {
	l.mu.Lock()
	if l.quit {
		l.mu.Unlock()
		return
	}
	l.quit = true
	close(l.taskQueue)
	l.mu.Unlock()

	l.waitGroup.Wait()
}
