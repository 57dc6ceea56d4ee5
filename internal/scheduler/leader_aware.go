/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package scheduler

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"
)

// Elector reports leadership and its transitions.
type Elector interface {
	Start(ctx context.Context) error
	Stop() error
	IsLeader() bool
	LeaderCh() <-chan bool
}

// Runner is a loop that runs until its context ends.
type Runner interface {
	Run(ctx context.Context) error
}

// LeaderAwareScheduler runs the batch loop only while this instance leads.
type LeaderAwareScheduler struct {
	scheduler Runner
	election  Elector
	logger    zerolog.Logger

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	stopped chan struct{}
}

// NewLeaderAware creates a leader-aware scheduler wrapper.
func NewLeaderAware(scheduler Runner, election Elector, logger zerolog.Logger) *LeaderAwareScheduler {
	return &LeaderAwareScheduler{
		scheduler: scheduler,
		election:  election,
		logger:    logger.With().Str("component", "leader_aware_scheduler").Logger(),
	}
}

// Start campaigns for leadership and follows its transitions.
func (las *LeaderAwareScheduler) Start(ctx context.Context) error {
	las.mu.Lock()
	las.ctx = ctx
	las.mu.Unlock()

	las.logger.Info().Msg("starting leader-aware scheduler")
	if err := las.election.Start(ctx); err != nil {
		return err
	}

	go las.monitorLeadership(ctx)
	return nil
}

// Stop halts the loop and gives up leadership.
func (las *LeaderAwareScheduler) Stop() error {
	las.logger.Info().Msg("stopping leader-aware scheduler")
	las.stopScheduler()
	return las.election.Stop()
}

// IsLeader returns whether this instance is the leader.
func (las *LeaderAwareScheduler) IsLeader() bool {
	return las.election.IsLeader()
}

// Running reports whether the batch loop is active on this instance.
func (las *LeaderAwareScheduler) Running() bool {
	las.mu.Lock()
	defer las.mu.Unlock()
	return las.cancel != nil
}

func (las *LeaderAwareScheduler) monitorLeadership(ctx context.Context) {
	if las.election.IsLeader() {
		las.startScheduler()
	}

	leaderCh := las.election.LeaderCh()
	for {
		select {
		case <-ctx.Done():
			las.stopScheduler()
			return
		case isLeader := <-leaderCh:
			if isLeader {
				las.logger.Info().Msg("became leader, starting batch loop")
				las.startScheduler()
			} else {
				las.logger.Warn().Msg("lost leadership, stopping batch loop")
				las.stopScheduler()
			}
		}
	}
}

func (las *LeaderAwareScheduler) startScheduler() {
	las.mu.Lock()
	defer las.mu.Unlock()
	if las.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(las.ctx)
	stopped := make(chan struct{})
	las.cancel = cancel
	las.stopped = stopped

	go func() {
		defer close(stopped)
		if err := las.scheduler.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			las.logger.Error().Err(err).Msg("batch loop error")
		}
	}()
}

func (las *LeaderAwareScheduler) stopScheduler() {
	las.mu.Lock()
	cancel, stopped := las.cancel, las.stopped
	las.cancel, las.stopped = nil, nil
	las.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-stopped
}
