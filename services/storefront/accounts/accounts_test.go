// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package accounts

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/mohinranait/koholi/services/storefront/datatypes"
	"github.com/mohinranait/koholi/services/storefront/observability"
	"github.com/mohinranait/koholi/services/storefront/session"
	"github.com/mohinranait/koholi/services/storefront/store"
	"github.com/mohinranait/koholi/services/storefront/store/badgerstore"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (*Service, *badgerstore.Store, *session.Manager, *observability.Metrics) {
	t.Helper()
	st, err := badgerstore.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	mgr, err := session.NewManager(session.Config{Secret: []byte(strings.Repeat("k", 32))}, st.Sessions())
	require.NoError(t, err)

	metrics := observability.NewMetrics(prometheus.NewRegistry())
	return NewService(st.Users(), mgr, metrics, nil), st, mgr, metrics
}

func TestEnsureCustomer_CreatesOnce(t *testing.T) {
	svc, st, _, _ := newTestService(t)
	ctx := context.Background()

	u, created, err := svc.EnsureCustomer(ctx, "01712345678")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, datatypes.DefaultUserName, u.Name)
	assert.Equal(t, datatypes.DefaultUserAddress, u.Address)
	assert.Equal(t, datatypes.RoleUser, u.Role)

	again, created, err := svc.EnsureCustomer(ctx, "01712345678")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, u.ID, again.ID)

	n, err := st.Users().Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

// racingUsers reports not-found on the first lookup and a duplicate on
// create, as when two requests register the same phone at once.
type racingUsers struct {
	store.Users
	existing *datatypes.User
	lookups  int
}

func (r *racingUsers) GetByPhone(context.Context, string) (*datatypes.User, error) {
	r.lookups++
	if r.lookups == 1 {
		return nil, store.ErrNotFound
	}
	return r.existing, nil
}

func (r *racingUsers) Create(context.Context, *datatypes.User) error {
	return store.ErrDuplicate
}

func TestEnsureCustomer_DuplicateRace(t *testing.T) {
	existing := datatypes.NewPhoneUser("01712345678")
	existing.ID = datatypes.NewID()
	svc := NewService(&racingUsers{existing: existing}, nil, nil, nil)

	u, created, err := svc.EnsureCustomer(context.Background(), "01712345678")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, existing.ID, u.ID)
}

func TestLogin_IssuesToken(t *testing.T) {
	svc, st, mgr, metrics := newTestService(t)
	ctx := context.Background()
	fixed := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	res, err := svc.Login(ctx, datatypes.LoginRequest{Phone: "01712345678"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
	assert.Equal(t, "01712345678", res.User.Phone)
	assert.Equal(t, datatypes.RoleUser, res.User.Role)

	info, err := mgr.Validate(ctx, res.Token)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, info.UserID)

	stored, err := st.Users().GetByPhone(ctx, "01712345678")
	require.NoError(t, err)
	require.NotNil(t, stored.LastLogin)
	assert.True(t, stored.LastLogin.Equal(fixed))

	_, err = svc.Login(ctx, datatypes.LoginRequest{Phone: "01712345678"})
	require.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.LoginsTotal.WithLabelValues("created")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.LoginsTotal.WithLabelValues("success")))
}

func TestLogin_InactiveUser(t *testing.T) {
	svc, st, _, _ := newTestService(t)
	ctx := context.Background()

	u := datatypes.NewPhoneUser("01812345678")
	u.Status = datatypes.StatusInactive
	require.NoError(t, st.Users().Create(ctx, u))

	_, err := svc.Login(ctx, datatypes.LoginRequest{Phone: "01812345678"})
	assert.ErrorIs(t, err, ErrInactive)
}

type failingIssuer struct{}

func (failingIssuer) Issue(*datatypes.User) (string, time.Time, error) {
	return "", time.Time{}, errors.New("signing failed")
}

func TestLogin_IssuerError(t *testing.T) {
	st, err := badgerstore.OpenInMemory()
	require.NoError(t, err)
	defer st.Close()

	svc := NewService(st.Users(), failingIssuer{}, nil, nil)
	_, err = svc.Login(context.Background(), datatypes.LoginRequest{Phone: "01712345678"})
	assert.Error(t, err)
}

func TestMe(t *testing.T) {
	svc, st, _, _ := newTestService(t)
	ctx := context.Background()

	res, err := svc.Login(ctx, datatypes.LoginRequest{Phone: "01712345678"})
	require.NoError(t, err)

	u, err := svc.Me(ctx, res.User.ID)
	require.NoError(t, err)
	assert.Equal(t, "01712345678", u.Phone)

	_, err = svc.Me(ctx, "not-an-id")
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = svc.Me(ctx, datatypes.NewID().Hex())
	assert.ErrorIs(t, err, store.ErrNotFound)

	u.Status = datatypes.StatusInactive
	require.NoError(t, st.Users().Update(ctx, u))
	_, err = svc.Me(ctx, res.User.ID)
	assert.ErrorIs(t, err, ErrInactive)
}

func TestCurrentRole(t *testing.T) {
	svc, st, _, _ := newTestService(t)
	ctx := context.Background()

	res, err := svc.Login(ctx, datatypes.LoginRequest{Phone: "01712345678"})
	require.NoError(t, err)

	role, active, err := svc.CurrentRole(ctx, res.User.ID)
	require.NoError(t, err)
	assert.True(t, active)
	assert.Equal(t, datatypes.RoleUser, role)

	u, err := st.Users().GetByPhone(ctx, "01712345678")
	require.NoError(t, err)
	u.Role = datatypes.RoleAdmin
	require.NoError(t, st.Users().Update(ctx, u))
	role, _, err = svc.CurrentRole(ctx, res.User.ID)
	require.NoError(t, err)
	assert.Equal(t, datatypes.RoleAdmin, role)

	u.Status = datatypes.StatusInactive
	require.NoError(t, st.Users().Update(ctx, u))
	_, active, err = svc.CurrentRole(ctx, res.User.ID)
	require.NoError(t, err)
	assert.False(t, active)

	_, active, err = svc.CurrentRole(ctx, datatypes.NewID().Hex())
	require.NoError(t, err)
	assert.False(t, active)
}
