package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestRegisterValidation(t *testing.T) {
	s := New()

	tests := []struct {
		name string
		job  *Job
	}{
		{"missing id", &Job{Interval: time.Second, Handler: func(ctx context.Context) error { return nil }}},
		{"missing handler", &Job{ID: "a", Interval: time.Second}},
		{"zero interval", &Job{ID: "a", Handler: func(ctx context.Context) error { return nil }}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := s.Register(tt.job); err == nil {
				t.Error("Register() must fail")
			}
		})
	}
}

func TestIntervalJobRuns(t *testing.T) {
	s := New()
	var runs atomic.Int64

	err := s.Register(&Job{
		ID:       "tick",
		Interval: 10 * time.Millisecond,
		Handler: func(ctx context.Context) error {
			runs.Add(1)
			return nil
		},
	})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if err := s.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer s.Stop()

	deadline := time.After(2 * time.Second)
	for runs.Load() < 2 {
		select {
		case <-deadline:
			t.Fatalf("job ran %d times, want at least 2", runs.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestStopHaltsJobs(t *testing.T) {
	s := New()
	var runs atomic.Int64

	s.Register(&Job{
		ID:       "tick",
		Interval: 5 * time.Millisecond,
		Handler: func(ctx context.Context) error {
			runs.Add(1)
			return nil
		},
	})
	s.Start()

	time.Sleep(30 * time.Millisecond)
	s.Stop()

	after := runs.Load()
	time.Sleep(30 * time.Millisecond)
	if runs.Load() != after {
		t.Error("job kept running after Stop")
	}
}

func TestRunNow(t *testing.T) {
	s := New()
	ran := make(chan struct{}, 1)

	s.Register(&Job{
		ID:       "sync",
		Interval: time.Hour,
		Handler: func(ctx context.Context) error {
			ran <- struct{}{}
			return nil
		},
	})
	s.Start()
	defer s.Stop()

	if err := s.RunNow("sync"); err != nil {
		t.Fatalf("RunNow() error = %v", err)
	}
	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("RunNow did not execute the job")
	}

	if err := s.RunNow("missing"); err == nil {
		t.Error("RunNow() must fail for unknown job")
	}
}

func TestStopWaitsForRunNow(t *testing.T) {
	s := New()
	entered := make(chan struct{})
	var finished atomic.Bool

	s.Register(&Job{
		ID:       "slow",
		Interval: time.Hour,
		Handler: func(ctx context.Context) error {
			close(entered)
			time.Sleep(50 * time.Millisecond)
			finished.Store(true)
			return nil
		},
	})
	s.Start()

	if err := s.RunNow("slow"); err != nil {
		t.Fatalf("RunNow() error = %v", err)
	}
	<-entered

	s.Stop()
	if !finished.Load() {
		t.Error("Stop returned before the on-demand run finished")
	}
}

func TestJobErrorTracking(t *testing.T) {
	s := New()
	done := make(chan struct{}, 1)

	s.Register(&Job{
		ID:       "flaky",
		Interval: time.Hour,
		Handler: func(ctx context.Context) error {
			defer func() { done <- struct{}{} }()
			return errors.New("boom")
		},
	})
	s.Start()
	defer s.Stop()

	s.RunNow("flaky")
	<-done

	// The handler signals before execute records the result
	var job Job
	deadline := time.After(time.Second)
	for {
		job = s.Jobs()[0]
		if job.ErrorCount > 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("error never recorded")
		case <-time.After(5 * time.Millisecond):
		}
	}

	if job.LastError != "boom" {
		t.Errorf("LastError = %q, want boom", job.LastError)
	}
	if job.RunCount < 1 {
		t.Errorf("RunCount = %d, want at least 1", job.RunCount)
	}
}
