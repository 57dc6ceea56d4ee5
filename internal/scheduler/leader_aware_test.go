/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type fakeElector struct {
	leader atomic.Bool
	ch     chan bool
}

func (f *fakeElector) Start(context.Context) error { return nil }
func (f *fakeElector) Stop() error                  { return nil }
func (f *fakeElector) IsLeader() bool               { return f.leader.Load() }
func (f *fakeElector) LeaderCh() <-chan bool        { return f.ch }

func (f *fakeElector) set(v bool) {
	f.leader.Store(v)
	f.ch <- v
}

type countingRunner struct {
	starts atomic.Int32
}

func (r *countingRunner) Run(ctx context.Context) error {
	r.starts.Add(1)
	<-ctx.Done()
	return ctx.Err()
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestLeaderAwareSchedulerFollowsLeadership(t *testing.T) {
	elector := &fakeElector{ch: make(chan bool)}
	runner := &countingRunner{}
	las := NewLeaderAware(runner, elector, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := las.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	if las.Running() {
		t.Fatal("follower must not run the batch loop")
	}

	elector.set(true)
	waitFor(t, las.Running)
	waitFor(t, func() bool { return runner.starts.Load() == 1 })

	elector.set(false)
	waitFor(t, func() bool { return !las.Running() })

	elector.set(true)
	waitFor(t, func() bool { return runner.starts.Load() == 2 })

	if err := las.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if las.Running() {
		t.Fatal("expected loop stopped after Stop")
	}
}
