// timer/timer.go
package timer

import (
	"container/heap"
	"sync"
	"time"

	"github.com/duckuru/spellin-bee/logger"
)

type task struct {
	id       int64
	execute  time.Time
	interval time.Duration
	callback func()
	index    int
}

type taskQueue []*task

func (q taskQueue) Len() int { return len(q) }

func (q taskQueue) Less(i, j int) bool {
	return q[i].execute.Before(q[j].execute)
}

func (q taskQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *taskQueue) Push(x interface{}) {
	n := len(*q)
	t := x.(*task)
	t.index = n
	*q = append(*q, t)
}

func (q *taskQueue) Pop() interface{} {
	old := *q
	n := len(old)
	t := old[n-1]
	t.index = -1
	*q = old[0 : n-1]
	return t
}

// Manager schedules one-shot and repeating tasks on a shared heap. Room
// countdowns must keep ticking for every other room even when one
// callback misbehaves, so callbacks run on their own goroutine behind a
// panic guard.
type Manager struct {
	queue   taskQueue
	mutex   sync.Mutex
	nextID  int64
	stopped chan struct{}
}

func NewManager() *Manager {
	m := &Manager{
		queue:   make(taskQueue, 0),
		nextID:  1,
		stopped: make(chan struct{}),
	}
	heap.Init(&m.queue)
	go m.process()
	return m
}

// After schedules a one-shot task.
func (m *Manager) After(delay time.Duration, callback func()) int64 {
	return m.add(delay, 0, callback)
}

// Every schedules a repeating task with the first run one interval away.
func (m *Manager) Every(interval time.Duration, callback func()) int64 {
	return m.add(interval, interval, callback)
}

func (m *Manager) add(delay, interval time.Duration, callback func()) int64 {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	t := &task{
		id:       m.nextID,
		execute:  time.Now().Add(delay),
		interval: interval,
		callback: callback,
	}
	m.nextID++

	heap.Push(&m.queue, t)
	return t.id
}

// Cancel removes a pending task. Canceling an unknown or already-fired
// one-shot id is a no-op.
func (m *Manager) Cancel(id int64) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	for i, t := range m.queue {
		if t.id == id {
			heap.Remove(&m.queue, i)
			break
		}
	}
}

// Remaining reports the time until a pending task fires. The second
// return is false when the task is not pending, which for one-shots
// also covers "already fired".
func (m *Manager) Remaining(id int64) (time.Duration, bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	for _, t := range m.queue {
		if t.id == id {
			d := time.Until(t.execute)
			if d < 0 {
				d = 0
			}
			return d, true
		}
	}
	return 0, false
}

// Stop halts the scheduling loop. Pending tasks never fire afterwards.
func (m *Manager) Stop() {
	close(m.stopped)
}

func (m *Manager) process() {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopped:
			return
		case <-ticker.C:
			m.runDue(time.Now())
		}
	}
}

func (m *Manager) runDue(now time.Time) {
	m.mutex.Lock()
	var due []*task
	for m.queue.Len() > 0 {
		t := m.queue[0]
		if t.execute.After(now) {
			break
		}

		heap.Pop(&m.queue)
		due = append(due, t)

		if t.interval > 0 {
			t.execute = now.Add(t.interval)
			heap.Push(&m.queue, t)
		}
	}
	m.mutex.Unlock()

	for _, t := range due {
		go runGuarded(t.callback)
	}
}

func runGuarded(callback func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Log.Errorf("timer callback panicked: %v", r)
		}
	}()
	callback()
}
