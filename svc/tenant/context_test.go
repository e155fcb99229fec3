package tenant_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poskit/poskit/svc/tenant"
)

func TestTenantContext(t *testing.T) {
	t.Parallel()

	t.Run("round trip", func(t *testing.T) {
		t.Parallel()

		acme := activeTenant("acme")
		ctx := tenant.WithTenant(context.Background(), acme)

		got, ok := tenant.FromContext(ctx)
		require.True(t, ok)
		assert.Equal(t, acme.ID, got.ID)

		id, ok := tenant.IDFromContext(ctx)
		require.True(t, ok)
		assert.Equal(t, acme.ID, id)
	})

	t.Run("empty context", func(t *testing.T) {
		t.Parallel()

		_, ok := tenant.FromContext(context.Background())
		assert.False(t, ok)

		_, ok = tenant.IDFromContext(context.Background())
		assert.False(t, ok)
	})

	t.Run("must panics without tenant", func(t *testing.T) {
		t.Parallel()

		assert.Panics(t, func() {
			tenant.MustFromContext(context.Background())
		})
	})

	t.Run("conn round trip", func(t *testing.T) {
		t.Parallel()

		conn := &tenant.Conn{Tenant: activeTenant("acme")}
		ctx := tenant.WithConn(context.Background(), conn)

		got, ok := tenant.ConnFromContext(ctx)
		require.True(t, ok)
		assert.Same(t, conn, got)
	})

	t.Run("logger extractor emits tenant id", func(t *testing.T) {
		t.Parallel()

		acme := activeTenant("acme")
		ctx := tenant.WithTenant(context.Background(), acme)

		attr, ok := tenant.LoggerExtractor()(ctx)
		require.True(t, ok)
		assert.Equal(t, "tenant_id", attr.Key)

		_, ok = tenant.LoggerExtractor()(context.Background())
		assert.False(t, ok)
	})
}
