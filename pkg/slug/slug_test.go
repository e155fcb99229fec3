package slug_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/poskit/poskit/pkg/slug"
)

func TestMake(t *testing.T) {
	t.Parallel()

	t.Run("basic", func(t *testing.T) {
		t.Parallel()

		assert.Equal(t, "test-company", slug.Make("Test Company"))
		assert.Equal(t, "acme", slug.Make("Acme"))
	})

	t.Run("collapses special characters", func(t *testing.T) {
		t.Parallel()

		assert.Equal(t, "joe-s-cafe", slug.Make("Joe's Cafe"))
		assert.Equal(t, "a-b-c", slug.Make("a   b---c"))
	})

	t.Run("folds diacritics", func(t *testing.T) {
		t.Parallel()

		assert.Equal(t, "cafe-munoz", slug.Make("Café Muñoz"))
	})

	t.Run("trims separators at both ends", func(t *testing.T) {
		t.Parallel()

		assert.Equal(t, "acme", slug.Make("  Acme!  "))
	})

	t.Run("empty input", func(t *testing.T) {
		t.Parallel()

		assert.Empty(t, slug.Make(""))
		assert.Empty(t, slug.Make("!!!"))
	})

	t.Run("max length", func(t *testing.T) {
		t.Parallel()

		assert.Equal(t, "test", slug.Make("Test Company", slug.MaxLength(4)))
	})

	t.Run("custom separator", func(t *testing.T) {
		t.Parallel()

		assert.Equal(t, "test_company", slug.Make("Test Company", slug.Separator("_")))
	})
}
