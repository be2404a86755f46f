// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package socialproof rotates the active social-proof notifications shown on
// the storefront and pushes each change to live subscribers.
package socialproof

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mohinranait/koholi/services/storefront/datatypes"
	"github.com/mohinranait/koholi/services/storefront/observability"
)

// DefaultInterval is how long each notification stays on screen.
const DefaultInterval = 10 * time.Second

// subscriberBuffer is the per-subscriber channel capacity. A subscriber that
// falls further behind misses rotations.
const subscriberBuffer = 4

// Lister loads notifications. store.SocialProofs satisfies it.
type Lister interface {
	List(ctx context.Context, f datatypes.SocialProofFilter) ([]datatypes.SocialProof, error)
}

// Config controls the rotation loop.
type Config struct {
	Interval time.Duration
}

// DefaultConfig returns a Config with a 10 second interval.
func DefaultConfig() Config {
	return Config{Interval: DefaultInterval}
}

// Rotator cycles through active notifications on a fixed interval. The
// active set is reloaded on every tick so admin edits show up without a
// restart.
type Rotator struct {
	source  Lister
	config  Config
	logger  *slog.Logger
	metrics *observability.Metrics

	mu      sync.Mutex
	running bool
	done    chan struct{}
	cursor  int
	current *datatypes.SocialProof

	subMu  sync.Mutex
	subs   map[int]chan datatypes.SocialProof
	nextID int
}

// NewRotator creates a stopped rotator. metrics may be nil.
func NewRotator(source Lister, config Config, logger *slog.Logger, metrics *observability.Metrics) *Rotator {
	if config.Interval <= 0 {
		config.Interval = DefaultInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Rotator{
		source:  source,
		config:  config,
		logger:  logger,
		metrics: metrics,
		done:    make(chan struct{}),
		subs:    make(map[int]chan datatypes.SocialProof),
	}
}

// Start launches the rotation loop. The first rotation happens immediately.
func (r *Rotator) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return fmt.Errorf("rotator is already running")
	}
	r.running = true
	r.done = make(chan struct{})
	done := r.done
	r.mu.Unlock()

	r.logger.Info("social proof rotator starting", "interval", r.config.Interval.String())
	go r.runLoop(ctx, done)
	return nil
}

// Stop ends the rotation loop. It is safe to call more than once.
func (r *Rotator) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.running {
		return
	}
	close(r.done)
	r.running = false
}

// Current returns the notification being shown, or false when none are
// active.
func (r *Rotator) Current() (datatypes.SocialProof, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == nil {
		return datatypes.SocialProof{}, false
	}
	return *r.current, true
}

// Subscribe registers for rotation events. The returned func unsubscribes
// and closes the channel.
func (r *Rotator) Subscribe() (<-chan datatypes.SocialProof, func()) {
	ch := make(chan datatypes.SocialProof, subscriberBuffer)

	r.subMu.Lock()
	id := r.nextID
	r.nextID++
	r.subs[id] = ch
	r.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			r.subMu.Lock()
			delete(r.subs, id)
			r.subMu.Unlock()
			close(ch)
		})
	}
}

// Subscribers returns the number of live subscribers.
func (r *Rotator) Subscribers() int {
	r.subMu.Lock()
	defer r.subMu.Unlock()
	return len(r.subs)
}

// Rotate advances to the next active notification and publishes it. It
// returns false when there is nothing active.
func (r *Rotator) Rotate(ctx context.Context) (datatypes.SocialProof, bool, error) {
	active, err := r.source.List(ctx, datatypes.SocialProofFilter{Status: string(datatypes.StatusActive)})
	if err != nil {
		return datatypes.SocialProof{}, false, fmt.Errorf("load active social proof: %w", err)
	}

	r.mu.Lock()
	if len(active) == 0 {
		r.current = nil
		r.cursor = 0
		r.mu.Unlock()
		return datatypes.SocialProof{}, false, nil
	}
	idx := r.cursor % len(active)
	next := active[idx]
	r.current = &next
	r.cursor = idx + 1
	r.mu.Unlock()

	r.metrics.RecordRotation()
	r.publish(next)
	return next, true, nil
}

func (r *Rotator) publish(sp datatypes.SocialProof) {
	r.subMu.Lock()
	defer r.subMu.Unlock()
	for id, ch := range r.subs {
		select {
		case ch <- sp:
		default:
			r.logger.Debug("social proof subscriber lagging", "subscriber", id)
		}
	}
}

func (r *Rotator) runLoop(ctx context.Context, done <-chan struct{}) {
	ticker := time.NewTicker(r.config.Interval)
	defer ticker.Stop()

	r.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("social proof rotator stopped (context cancelled)")
			r.mu.Lock()
			r.running = false
			r.mu.Unlock()
			return
		case <-done:
			r.logger.Info("social proof rotator stopped (stop requested)")
			return
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

func (r *Rotator) tick(ctx context.Context) {
	sp, ok, err := r.Rotate(ctx)
	switch {
	case err != nil:
		r.logger.Error("social proof rotation failed", "error", err)
	case ok:
		r.logger.Debug("social proof rotated", "id", sp.ID.Hex(), "title", sp.Title)
	}
}
