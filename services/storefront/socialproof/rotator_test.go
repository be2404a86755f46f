// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package socialproof

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mohinranait/koholi/services/storefront/datatypes"
	"github.com/mohinranait/koholi/services/storefront/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeLister returns a mutable slice of notifications filtered by status.
type fakeLister struct {
	mu    sync.Mutex
	items []datatypes.SocialProof
	err   error
}

func (f *fakeLister) List(_ context.Context, filter datatypes.SocialProofFilter) ([]datatypes.SocialProof, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := make([]datatypes.SocialProof, 0, len(f.items))
	for _, sp := range f.items {
		if filter.Status == "" || string(sp.Status) == filter.Status {
			out = append(out, sp)
		}
	}
	return out, nil
}

func (f *fakeLister) set(items ...datatypes.SocialProof) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items = items
}

func proof(title string, status datatypes.Status) datatypes.SocialProof {
	return datatypes.SocialProof{ID: datatypes.NewID(), Title: title, Status: status}
}

// =============================================================================
// Rotation
// =============================================================================

func TestRotate_CyclesActive(t *testing.T) {
	src := &fakeLister{}
	src.set(
		proof("a", datatypes.StatusActive),
		proof("hidden", datatypes.StatusInactive),
		proof("b", datatypes.StatusActive),
	)
	r := NewRotator(src, DefaultConfig(), nil, nil)

	var titles []string
	for i := 0; i < 5; i++ {
		sp, ok, err := r.Rotate(context.Background())
		require.NoError(t, err)
		require.True(t, ok)
		titles = append(titles, sp.Title)
	}
	assert.Equal(t, []string{"a", "b", "a", "b", "a"}, titles)

	cur, ok := r.Current()
	require.True(t, ok)
	assert.Equal(t, "a", cur.Title)
}

func TestRotate_ActiveSetShrinks(t *testing.T) {
	src := &fakeLister{}
	src.set(proof("a", datatypes.StatusActive), proof("b", datatypes.StatusActive), proof("c", datatypes.StatusActive))
	r := NewRotator(src, DefaultConfig(), nil, nil)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, _, err := r.Rotate(ctx)
		require.NoError(t, err)
	}
	// Cursor is 2; with one item left it wraps to index 0.
	src.set(proof("only", datatypes.StatusActive))
	sp, ok, err := r.Rotate(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "only", sp.Title)
}

func TestRotate_NoneActive(t *testing.T) {
	src := &fakeLister{}
	src.set(proof("a", datatypes.StatusActive))
	r := NewRotator(src, DefaultConfig(), nil, nil)

	_, ok, err := r.Rotate(context.Background())
	require.NoError(t, err)
	require.True(t, ok)

	src.set(proof("a", datatypes.StatusInactive))
	_, ok, err = r.Rotate(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok = r.Current()
	assert.False(t, ok)
}

func TestRotate_SourceError(t *testing.T) {
	src := &fakeLister{err: errors.New("store unavailable")}
	r := NewRotator(src, DefaultConfig(), nil, nil)

	_, _, err := r.Rotate(context.Background())
	assert.Error(t, err)
}

func TestRotate_RecordsMetric(t *testing.T) {
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	src := &fakeLister{}
	src.set(proof("a", datatypes.StatusActive))
	r := NewRotator(src, DefaultConfig(), nil, metrics)

	for i := 0; i < 3; i++ {
		_, _, err := r.Rotate(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.SocialProofRotationsTotal))
}

// =============================================================================
// Subscribers
// =============================================================================

func TestSubscribe_ReceivesRotations(t *testing.T) {
	src := &fakeLister{}
	src.set(proof("a", datatypes.StatusActive))
	r := NewRotator(src, DefaultConfig(), nil, nil)

	ch, unsubscribe := r.Subscribe()
	assert.Equal(t, 1, r.Subscribers())

	_, _, err := r.Rotate(context.Background())
	require.NoError(t, err)

	select {
	case sp := <-ch:
		assert.Equal(t, "a", sp.Title)
	case <-time.After(time.Second):
		t.Fatal("no rotation delivered")
	}

	unsubscribe()
	unsubscribe()
	assert.Equal(t, 0, r.Subscribers())
	_, open := <-ch
	assert.False(t, open)
}

func TestSubscribe_SlowSubscriberDoesNotBlock(t *testing.T) {
	src := &fakeLister{}
	src.set(proof("a", datatypes.StatusActive))
	r := NewRotator(src, DefaultConfig(), nil, nil)

	_, unsubscribe := r.Subscribe()
	defer unsubscribe()

	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer*3; i++ {
			_, _, _ = r.Rotate(context.Background())
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("rotation blocked on a full subscriber")
	}
}

// =============================================================================
// Lifecycle
// =============================================================================

func TestStartStop(t *testing.T) {
	src := &fakeLister{}
	src.set(proof("a", datatypes.StatusActive), proof("b", datatypes.StatusActive))
	r := NewRotator(src, Config{Interval: 10 * time.Millisecond}, nil, nil)

	ch, unsubscribe := r.Subscribe()
	defer unsubscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, r.Start(ctx))
	assert.Error(t, r.Start(ctx))

	seen := map[string]bool{}
	deadline := time.After(2 * time.Second)
	for len(seen) < 2 {
		select {
		case sp := <-ch:
			seen[sp.Title] = true
		case <-deadline:
			t.Fatalf("saw only %v", seen)
		}
	}

	r.Stop()
	r.Stop()
	require.NoError(t, r.Start(ctx))
	r.Stop()
}

func TestStart_StopsOnContextCancel(t *testing.T) {
	src := &fakeLister{}
	r := NewRotator(src, Config{Interval: 5 * time.Millisecond}, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, r.Start(ctx))
	cancel()

	assert.Eventually(t, func() bool {
		r.mu.Lock()
		defer r.mu.Unlock()
		return !r.running
	}, time.Second, 5*time.Millisecond)
}

func TestNewRotator_DefaultsInterval(t *testing.T) {
	r := NewRotator(&fakeLister{}, Config{}, nil, nil)
	assert.Equal(t, DefaultInterval, r.config.Interval)
}
