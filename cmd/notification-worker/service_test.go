package main

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/angelmondragon/dumpsterpool-backend/pkg/logger"
)

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

type stubRunner struct{ calls int }

func (s *stubRunner) Run(context.Context) error {
	s.calls++
	return context.Canceled
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "worker-test", Output: io.Discard})
}

func TestServiceRunStopsOnFailedPing(t *testing.T) {
	consumer := &stubRunner{}
	svc, err := NewService(ServiceParams{
		Logger:   testLogger(),
		DB:       stubPinger{},
		Redis:    stubPinger{err: errors.New("refused")},
		PubSub:   stubPinger{},
		Consumer: consumer,
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if err := svc.Run(context.Background()); err == nil {
		t.Fatalf("expected readiness error")
	}
	if consumer.calls != 0 {
		t.Fatalf("consumer should not start when a dependency is down")
	}
}

func TestServiceRunDrivesConsumer(t *testing.T) {
	consumer := &stubRunner{}
	svc, err := NewService(ServiceParams{
		Logger:   testLogger(),
		DB:       stubPinger{},
		Redis:    stubPinger{},
		PubSub:   stubPinger{},
		Consumer: consumer,
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if err := svc.Run(context.Background()); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected canceled, got %v", err)
	}
	if consumer.calls != 1 {
		t.Fatalf("expected consumer run once, got %d", consumer.calls)
	}
}

func TestNewServiceRequiresConsumer(t *testing.T) {
	if _, err := NewService(ServiceParams{Logger: testLogger(), DB: stubPinger{}, Redis: stubPinger{}, PubSub: stubPinger{}}); err == nil {
		t.Fatalf("expected error without consumer")
	}
}
