package server

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeScheduler struct {
	started, stopped bool
	log              *[]string
}

func (s *fakeScheduler) Start() { s.started = true }

func (s *fakeScheduler) Stop(context.Context) error {
	s.stopped = true
	*s.log = append(*s.log, "scheduler")
	return nil
}

func TestRunStopsInOrder(t *testing.T) {
	var order []string
	sched := &fakeScheduler{log: &order}
	closeErr := errors.New("already closed")

	app := New(nil, nil,
		WithScheduler(sched),
		WithCloser("redis", func() error { order = append(order, "redis"); return nil }),
		WithCloser("sqlite", func() error { order = append(order, "sqlite"); return closeErr }),
		WithShutdownTimeout(time.Second),
	)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := app.Run(ctx)

	if !errors.Is(err, closeErr) {
		t.Fatalf("Run err = %v, want close error", err)
	}
	if !sched.started || !sched.stopped {
		t.Fatalf("scheduler started=%v stopped=%v", sched.started, sched.stopped)
	}
	want := []string{"scheduler", "sqlite", "redis"}
	if len(order) != len(want) {
		t.Fatalf("order = %v", order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestNilCloserIgnored(t *testing.T) {
	app := New(nil, nil, WithCloser("none", nil))
	if len(app.closers) != 0 {
		t.Fatalf("closers = %d", len(app.closers))
	}
}
