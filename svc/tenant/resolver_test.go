package tenant_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poskit/poskit/pkg/environment"
	"github.com/poskit/poskit/svc/tenant"
)

func request(host string) *http.Request {
	req := httptest.NewRequest("GET", "http://"+host+"/orders", nil)
	req.Host = host
	return req
}

func TestResolveSubdomain(t *testing.T) {
	t.Parallel()

	t.Run("resolves by subdomain slug", func(t *testing.T) {
		t.Parallel()

		acme := activeTenant("acme")
		resolver := tenant.NewResolver(newFakeRegistry(acme))

		got, strategy, err := resolver.Resolve(context.Background(), request("acme.posapp.com"))
		require.NoError(t, err)
		assert.Equal(t, "subdomain", strategy)
		assert.Equal(t, acme.ID, got.ID)
	})

	t.Run("ignores port in host", func(t *testing.T) {
		t.Parallel()

		acme := activeTenant("acme")
		resolver := tenant.NewResolver(newFakeRegistry(acme))

		got, _, err := resolver.Resolve(context.Background(), request("acme.posapp.com:8080"))
		require.NoError(t, err)
		assert.Equal(t, acme.ID, got.ID)
	})

	t.Run("resolves custom domain by full host", func(t *testing.T) {
		t.Parallel()

		shop := activeTenant("shop")
		shop.Domain = "pos.shopexample.com"
		resolver := tenant.NewResolver(newFakeRegistry(shop))

		got, strategy, err := resolver.Resolve(context.Background(), request("pos.shopexample.com"))
		require.NoError(t, err)
		assert.Equal(t, "subdomain", strategy)
		assert.Equal(t, shop.ID, got.ID)
	})

	t.Run("resolves two-label custom domain", func(t *testing.T) {
		t.Parallel()

		shop := activeTenant("shop")
		shop.Domain = "shopexample.com"
		resolver := tenant.NewResolver(newFakeRegistry(shop))

		got, _, err := resolver.Resolve(context.Background(), request("shopexample.com"))
		require.NoError(t, err)
		assert.Equal(t, shop.ID, got.ID)
	})

	t.Run("subdomain wins over a header naming another tenant", func(t *testing.T) {
		t.Parallel()

		acme := activeTenant("acme")
		beta := activeTenant("beta")
		resolver := tenant.NewResolver(newFakeRegistry(acme, beta))

		req := request("acme.posapp.com")
		req.Header.Set(tenant.HeaderTenantID, beta.ID.String())

		got, strategy, err := resolver.Resolve(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, "subdomain", strategy)
		assert.Equal(t, acme.ID, got.ID)
	})

	t.Run("reserved subdomain falls through to header", func(t *testing.T) {
		t.Parallel()

		www := activeTenant("www")
		acme := activeTenant("acme")
		resolver := tenant.NewResolver(newFakeRegistry(www, acme))

		req := request("www.posapp.com")
		req.Header.Set(tenant.HeaderTenantID, acme.ID.String())

		got, strategy, err := resolver.Resolve(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, "header", strategy)
		assert.Equal(t, acme.ID, got.ID)
	})

	t.Run("unknown subdomain candidate is final", func(t *testing.T) {
		t.Parallel()

		acme := activeTenant("acme")
		resolver := tenant.NewResolver(newFakeRegistry(acme))

		// The header would match, but the subdomain already produced a
		// candidate key so its miss terminates the chain.
		req := request("ghost.posapp.com")
		req.Header.Set(tenant.HeaderTenantID, acme.ID.String())

		_, _, err := resolver.Resolve(context.Background(), req)
		assert.ErrorIs(t, err, tenant.ErrTenantNotFound)
	})

	t.Run("two-label host miss falls through to header", func(t *testing.T) {
		t.Parallel()

		acme := activeTenant("acme")
		resolver := tenant.NewResolver(newFakeRegistry(acme))

		req := request("posapp.com")
		req.Header.Set(tenant.HeaderTenantID, acme.ID.String())

		got, strategy, err := resolver.Resolve(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, "header", strategy)
		assert.Equal(t, acme.ID, got.ID)
	})
}

func TestResolveHeader(t *testing.T) {
	t.Parallel()

	t.Run("resolves by tenant id header", func(t *testing.T) {
		t.Parallel()

		acme := activeTenant("acme")
		resolver := tenant.NewResolver(newFakeRegistry(acme))

		req := request("localhost")
		req.Header.Set(tenant.HeaderTenantID, acme.ID.String())

		got, strategy, err := resolver.Resolve(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, "header", strategy)
		assert.Equal(t, acme.ID, got.ID)
	})

	t.Run("malformed header id is a final miss", func(t *testing.T) {
		t.Parallel()

		acme := activeTenant("acme")
		resolver := tenant.NewResolver(newFakeRegistry(acme))

		req := request("localhost")
		req.Header.Set(tenant.HeaderTenantID, "not-a-uuid")

		_, _, err := resolver.Resolve(context.Background(), req)
		assert.ErrorIs(t, err, tenant.ErrTenantNotFound)
	})

	t.Run("unknown id header", func(t *testing.T) {
		t.Parallel()

		resolver := tenant.NewResolver(newFakeRegistry())

		req := request("localhost")
		req.Header.Set(tenant.HeaderTenantID, uuid.NewString())

		_, _, err := resolver.Resolve(context.Background(), req)
		assert.ErrorIs(t, err, tenant.ErrTenantNotFound)
	})
}

func TestResolveQuery(t *testing.T) {
	t.Parallel()

	t.Run("resolves by query param in development", func(t *testing.T) {
		t.Parallel()

		acme := activeTenant("acme")
		resolver := tenant.NewResolver(newFakeRegistry(acme))

		req := httptest.NewRequest("GET", "http://localhost/orders?tenant=acme", nil)
		req.Host = "localhost"
		ctx := environment.WithContext(context.Background(), environment.Development)

		got, strategy, err := resolver.Resolve(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, "query", strategy)
		assert.Equal(t, acme.ID, got.ID)
	})

	t.Run("query param disabled outside development", func(t *testing.T) {
		t.Parallel()

		acme := activeTenant("acme")
		resolver := tenant.NewResolver(newFakeRegistry(acme))

		req := httptest.NewRequest("GET", "http://localhost/orders?tenant=acme", nil)
		req.Host = "localhost"
		ctx := environment.WithContext(context.Background(), environment.Production)

		_, _, err := resolver.Resolve(ctx, req)
		assert.ErrorIs(t, err, tenant.ErrTenantNotFound)
	})

	t.Run("query param disabled when environment unknown", func(t *testing.T) {
		t.Parallel()

		acme := activeTenant("acme")
		resolver := tenant.NewResolver(newFakeRegistry(acme))

		req := httptest.NewRequest("GET", "http://localhost/orders?tenant=acme", nil)
		req.Host = "localhost"

		_, _, err := resolver.Resolve(context.Background(), req)
		assert.ErrorIs(t, err, tenant.ErrTenantNotFound)
	})
}

func TestResolveNoStrategy(t *testing.T) {
	t.Parallel()

	resolver := tenant.NewResolver(newFakeRegistry(activeTenant("acme")))

	_, strategy, err := resolver.Resolve(context.Background(), request("localhost"))
	assert.ErrorIs(t, err, tenant.ErrTenantNotFound)
	assert.Empty(t, strategy)
}

func TestResolverCache(t *testing.T) {
	t.Parallel()

	t.Run("second resolution served from cache", func(t *testing.T) {
		t.Parallel()

		acme := activeTenant("acme")
		registry := newFakeRegistry(acme)
		resolver := tenant.NewResolver(registry,
			tenant.WithCache(tenant.NewInMemoryCache(), time.Minute))

		got, _, err := resolver.Resolve(context.Background(), request("acme.posapp.com"))
		require.NoError(t, err)

		// Mutate the registry record; a cached resolution won't see it.
		registry.tenants[acme.ID].Name = "renamed"

		got, _, err = resolver.Resolve(context.Background(), request("acme.posapp.com"))
		require.NoError(t, err)
		assert.Equal(t, "acme", got.Name)
	})

	t.Run("negative results are not cached", func(t *testing.T) {
		t.Parallel()

		registry := newFakeRegistry()
		resolver := tenant.NewResolver(registry,
			tenant.WithCache(tenant.NewInMemoryCache(), time.Minute))

		_, _, err := resolver.Resolve(context.Background(), request("acme.posapp.com"))
		require.ErrorIs(t, err, tenant.ErrTenantNotFound)

		// Create the tenant after the miss; resolution must pick it up.
		acme := activeTenant("acme")
		require.NoError(t, registry.Create(context.Background(), acme))

		got, _, err := resolver.Resolve(context.Background(), request("acme.posapp.com"))
		require.NoError(t, err)
		assert.Equal(t, acme.ID, got.ID)
	})
}
