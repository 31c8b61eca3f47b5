package rules

import (
	"context"

	"github.com/dooshek/decibender/internal/audio"
	"github.com/dooshek/decibender/internal/logger"
)

// Task is one reaction routine. It must return promptly once ctx is done.
type Task func(ctx context.Context)

type request struct {
	name string
	task Task
}

type activeTask struct {
	name   string
	cancel context.CancelFunc
	done   chan struct{}
}

// Slot owns the single active reaction. Replace never blocks the caller;
// the slot goroutine cancels the running task, waits for it to unwind and
// only then starts the next one.
type Slot struct {
	requests *audio.Queue[request]
}

func NewSlot() *Slot {
	return &Slot{requests: audio.NewQueue[request](8)}
}

// Replace schedules task to take over the slot.
func (s *Slot) Replace(name string, task Task) error {
	return s.requests.Send(request{name: name, task: task})
}

// Close stops accepting tasks; Run tears down the active one and returns.
func (s *Slot) Close() {
	s.requests.Close()
}

// Run is the slot's goroutine. It returns when ctx is done or the slot is
// closed, after the active task has finished.
func (s *Slot) Run(ctx context.Context) {
	var current *activeTask
	defer func() {
		if current != nil {
			current.stop()
		}
	}()

	for {
		req, err := s.requests.Recv(ctx)
		if err != nil {
			return
		}

		if current != nil {
			current.stop()
			logger.Debugf("Reaction %s torn down", current.name)
		}
		current = start(ctx, req)
	}
}

func start(parent context.Context, req request) *activeTask {
	ctx, cancel := context.WithCancel(parent)
	t := &activeTask{
		name:   req.name,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	logger.Debugf("Reaction %s started", req.name)
	go func() {
		defer close(t.done)
		defer cancel()
		req.task(ctx)
	}()
	return t
}

func (t *activeTask) stop() {
	t.cancel()
	<-t.done
}
