package tenant

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestMemoryCache(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()
	defer func() {
		require.NoError(t, c.Close())
	}()

	t.Run("set and get", func(t *testing.T) {
		c.Set(ctx, "k", []byte("v"), time.Minute)
		got, ok := c.Get(ctx, "k")
		require.True(t, ok)
		require.Equal(t, []byte("v"), got)
	})

	t.Run("expired entries are dropped on read", func(t *testing.T) {
		c.Set(ctx, "short", []byte("v"), time.Nanosecond)
		time.Sleep(time.Millisecond)
		_, ok := c.Get(ctx, "short")
		require.False(t, ok)
	})

	t.Run("zero ttl stores nothing", func(t *testing.T) {
		c.Set(ctx, "never", []byte("v"), 0)
		_, ok := c.Get(ctx, "never")
		require.False(t, ok)
	})

	t.Run("delete", func(t *testing.T) {
		c.Set(ctx, "gone", []byte("v"), time.Minute)
		c.Delete(ctx, "gone")
		_, ok := c.Get(ctx, "gone")
		require.False(t, ok)
	})

	t.Run("increment", func(t *testing.T) {
		n, err := c.Increment(ctx, "hits:stanford")
		require.NoError(t, err)
		require.EqualValues(t, 1, n)
		n, err = c.Increment(ctx, "hits:stanford")
		require.NoError(t, err)
		require.EqualValues(t, 2, n)
	})

	t.Run("close is idempotent", func(t *testing.T) {
		extra := NewMemoryCache()
		require.NoError(t, extra.Close())
		require.NoError(t, extra.Close())
	})
}

func TestCachedDirectory(t *testing.T) {
	ctx := context.Background()

	t.Run("positive lookups are memoized", func(t *testing.T) {
		want := activeTenant("stanford")
		inner := &fakeDirectory{findFn: func(context.Context, string, IdentifierKind) (*Tenant, error) {
			return want, nil
		}}
		cache := NewMemoryCache()
		defer cache.Close()

		d := NewCachedDirectory(inner, cache, time.Minute)

		got, err := d.FindByIdentifier(ctx, "stanford", IdentifierSubdomain)
		require.NoError(t, err)
		require.Equal(t, want.ID, got.ID)

		got, err = d.FindByIdentifier(ctx, "stanford", IdentifierSubdomain)
		require.NoError(t, err)
		require.Equal(t, want.ID, got.ID)
		require.Equal(t, 1, inner.calls)
	})

	t.Run("misses are not cached", func(t *testing.T) {
		inner := &fakeDirectory{findFn: func(context.Context, string, IdentifierKind) (*Tenant, error) {
			return nil, ErrNotFound
		}}
		cache := NewMemoryCache()
		defer cache.Close()

		d := NewCachedDirectory(inner, cache, time.Minute)

		_, err := d.FindByIdentifier(ctx, "ghost", IdentifierSlug)
		require.ErrorIs(t, err, ErrNotFound)
		_, err = d.FindByIdentifier(ctx, "ghost", IdentifierSlug)
		require.ErrorIs(t, err, ErrNotFound)
		require.Equal(t, 2, inner.calls)
	})

	t.Run("keys are scoped by identifier kind", func(t *testing.T) {
		inner := &fakeDirectory{findFn: func(_ context.Context, identifier string, kind IdentifierKind) (*Tenant, error) {
			ten := activeTenant("stanford")
			ten.Name = string(kind)
			return ten, nil
		}}
		cache := NewMemoryCache()
		defer cache.Close()

		d := NewCachedDirectory(inner, cache, time.Minute)

		bySub, err := d.FindByIdentifier(ctx, "stanford", IdentifierSubdomain)
		require.NoError(t, err)
		bySlug, err := d.FindByIdentifier(ctx, "stanford", IdentifierSlug)
		require.NoError(t, err)
		require.NotEqual(t, bySub.Name, bySlug.Name)
		require.Equal(t, 2, inner.calls)
	})

	t.Run("invalidate evicts all identifier keys", func(t *testing.T) {
		want := activeTenant("stanford")
		want.CustomDomain = "alumni.stanford.edu"
		inner := &fakeDirectory{findFn: func(context.Context, string, IdentifierKind) (*Tenant, error) {
			return want, nil
		}}
		cache := NewMemoryCache()
		defer cache.Close()

		d := NewCachedDirectory(inner, cache, time.Minute)

		_, err := d.FindByIdentifier(ctx, "stanford", IdentifierSubdomain)
		require.NoError(t, err)
		_, err = d.FindByIdentifier(ctx, "alumni.stanford.edu", IdentifierDomain)
		require.NoError(t, err)
		require.Equal(t, 2, inner.calls)

		d.Invalidate(ctx, want)

		_, err = d.FindByIdentifier(ctx, "stanford", IdentifierSubdomain)
		require.NoError(t, err)
		require.Equal(t, 3, inner.calls)
	})
}

func TestCachedMemberships(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	tenantID := uuid.New()

	inner := &fakeMemberships{}
	inner.grant(userID, tenantID, MembershipActive, "members.read")

	cache := NewMemoryCache()
	defer cache.Close()

	m := NewCachedMemberships(inner, cache, time.Minute)

	got, err := m.FindMembership(ctx, userID, tenantID)
	require.NoError(t, err)
	require.Equal(t, MembershipActive, got.Status)

	_, err = m.FindMembership(ctx, userID, tenantID)
	require.NoError(t, err)
	require.Equal(t, 1, inner.calls)

	m.Invalidate(ctx, userID, tenantID)

	_, err = m.FindMembership(ctx, userID, tenantID)
	require.NoError(t, err)
	require.Equal(t, 2, inner.calls)
}
