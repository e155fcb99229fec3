package environment_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/poskit/poskit/pkg/environment"
)

func TestContext(t *testing.T) {
	t.Parallel()

	t.Run("round trip", func(t *testing.T) {
		t.Parallel()

		ctx := environment.WithContext(context.Background(), environment.Production)
		assert.Equal(t, environment.Production, environment.FromContext(ctx))
	})

	t.Run("empty context", func(t *testing.T) {
		t.Parallel()

		assert.Empty(t, environment.FromContext(context.Background()))
	})
}

func TestChecks(t *testing.T) {
	t.Parallel()

	dev := environment.WithContext(context.Background(), environment.Development)
	prod := environment.WithContext(context.Background(), environment.Production)
	staging := environment.WithContext(context.Background(), environment.Staging)
	unknown := context.Background()

	assert.True(t, environment.IsDevelopment(dev))
	assert.True(t, environment.IsProduction(prod))
	assert.True(t, environment.IsStaging(staging))

	t.Run("short aliases", func(t *testing.T) {
		t.Parallel()

		assert.True(t, environment.IsDevelopment(environment.WithContext(context.Background(), "dev")))
		assert.True(t, environment.IsProduction(environment.WithContext(context.Background(), "prod")))
	})

	t.Run("production-like treats everything but development as production", func(t *testing.T) {
		t.Parallel()

		assert.False(t, environment.IsProductionLike(dev))
		assert.True(t, environment.IsProductionLike(prod))
		assert.True(t, environment.IsProductionLike(staging))
		assert.True(t, environment.IsProductionLike(unknown))
	})
}
