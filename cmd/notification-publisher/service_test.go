package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kiranahq/kirana-backend/pkg/logger"
)

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

type scriptedProcessor struct {
	calls  int
	script []func() (int, int, error)
	cancel context.CancelFunc
}

func (p *scriptedProcessor) ProcessBatch(context.Context) (int, int, error) {
	if p.calls >= len(p.script) {
		p.cancel()
		return 0, 0, nil
	}
	step := p.script[p.calls]
	p.calls++
	return step()
}

func testService(t *testing.T, db pinger, proc batchProcessor) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Logger:       logger.New(logger.Options{ServiceName: "publisher-test"}),
		DB:           db,
		Publisher:    proc,
		PollInterval: time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func TestRunStopsWhenDatabaseIsDown(t *testing.T) {
	svc := testService(t, stubPinger{err: errors.New("connection refused")}, &scriptedProcessor{})
	if err := svc.Run(context.Background()); err == nil {
		t.Fatal("expected ping error to abort the loop")
	}
}

func TestRunDrainsUntilCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	proc := &scriptedProcessor{
		cancel: cancel,
		script: []func() (int, int, error){
			func() (int, int, error) { return 2, 0, nil },
			func() (int, int, error) { return 0, 1, nil },
			func() (int, int, error) { return 0, 0, errors.New("whatsapp 500") },
		},
	}
	svc := testService(t, stubPinger{}, proc)

	err := svc.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if proc.calls != 3 {
		t.Fatalf("expected 3 scripted batches, got %d", proc.calls)
	}
}

func TestNextBackoffDoublesAndCaps(t *testing.T) {
	floor := time.Second
	got := nextBackoff(time.Second, floor)
	if got != 2*time.Second {
		t.Fatalf("expected 2s, got %v", got)
	}
	if got := nextBackoff(maxBackoff, floor); got != maxBackoff {
		t.Fatalf("expected backoff capped at %v, got %v", maxBackoff, got)
	}
}
