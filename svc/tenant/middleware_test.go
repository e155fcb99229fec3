package tenant_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/jackc/puddle/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poskit/poskit/svc/tenant"
)

func middlewareHandler(t *testing.T, registry tenant.Registry, next http.Handler) http.Handler {
	t.Helper()

	resolver := tenant.NewResolver(registry)
	router := tenant.NewConnRouter(testRouterConfig(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(router.Close)

	return tenant.Middleware(resolver, router, slog.New(slog.NewTextHandler(io.Discard, nil)))(next)
}

func TestMiddleware(t *testing.T) {
	t.Parallel()

	t.Run("unknown tenant gets fixed 404 body", func(t *testing.T) {
		t.Parallel()

		h := middlewareHandler(t, newFakeRegistry(), http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			t.Fatal("handler must not run")
		}))

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, request("ghost.posapp.com"))

		assert.Equal(t, http.StatusNotFound, rec.Code)

		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "Tenant not found.", body["message"])
		assert.Equal(t, "invalid_tenant", body["error"])
		assert.NotContains(t, body, "status")
	})

	t.Run("inactive tenant gets fixed 403 body with status", func(t *testing.T) {
		t.Parallel()

		suspended := activeTenant("acme")
		suspended.Status = tenant.StatusSuspended

		h := middlewareHandler(t, newFakeRegistry(suspended), http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			t.Fatal("handler must not run")
		}))

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, request("acme.posapp.com"))

		assert.Equal(t, http.StatusForbidden, rec.Code)

		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "Tenant account is not active.", body["message"])
		assert.Equal(t, "tenant_inactive", body["error"])
		assert.Equal(t, "suspended", body["status"])
	})

	t.Run("pending tenant is rejected too", func(t *testing.T) {
		t.Parallel()

		pending := activeTenant("acme")
		pending.Status = tenant.StatusPending

		h := middlewareHandler(t, newFakeRegistry(pending), http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			t.Fatal("handler must not run")
		}))

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, request("acme.posapp.com"))
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("active tenant reaches handler with context attached", func(t *testing.T) {
		t.Parallel()

		acme := activeTenant("acme")

		resolver := tenant.NewResolver(newFakeRegistry(acme))
		router := tenant.NewConnRouter(testRouterConfig(), slog.New(slog.NewTextHandler(io.Discard, nil)))
		t.Cleanup(router.Close)

		handled := false
		h := tenant.Middleware(resolver, router, slog.New(slog.NewTextHandler(io.Discard, nil)))(
			http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				handled = true

				got, ok := tenant.FromContext(r.Context())
				require.True(t, ok)
				assert.Equal(t, acme.ID, got.ID)

				conn, ok := tenant.ConnFromContext(r.Context())
				require.True(t, ok)
				assert.NotNil(t, conn.Pool)

				// request path never drives the router slot
				assert.Nil(t, router.Current())
				w.WriteHeader(http.StatusNoContent)
			}))

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, request("acme.posapp.com"))

		assert.True(t, handled)
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})

	t.Run("pool reference released when handler panics", func(t *testing.T) {
		t.Parallel()

		acme := activeTenant("acme")

		resolver := tenant.NewResolver(newFakeRegistry(acme))
		router := tenant.NewConnRouter(testRouterConfig(), slog.New(slog.NewTextHandler(io.Discard, nil)))
		t.Cleanup(router.Close)

		var seen *tenant.Conn
		h := tenant.Middleware(resolver, router, slog.New(slog.NewTextHandler(io.Discard, nil)))(
			http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
				seen, _ = tenant.ConnFromContext(r.Context())
				panic("handler exploded")
			}))

		assert.Panics(t, func() {
			h.ServeHTTP(httptest.NewRecorder(), request("acme.posapp.com"))
		})

		// the request's reference is gone, so the next checkout opens fresh
		require.NotNil(t, seen)
		fresh, err := router.Acquire(context.Background(), acme)
		require.NoError(t, err)
		assert.NotSame(t, seen.Pool, fresh.Pool)
		router.Release(fresh)
	})

	t.Run("finished request does not tear down a concurrent one", func(t *testing.T) {
		t.Parallel()

		acme := activeTenant("acme")
		beta := activeTenant("beta")

		resolver := tenant.NewResolver(newFakeRegistry(acme, beta))
		router := tenant.NewConnRouter(testRouterConfig(), slog.New(slog.NewTextHandler(io.Discard, nil)))
		t.Cleanup(router.Close)

		betaEntered := make(chan struct{})
		acmeDone := make(chan struct{})

		h := tenant.Middleware(resolver, router, slog.New(slog.NewTextHandler(io.Discard, nil)))(
			http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				tn, ok := tenant.FromContext(r.Context())
				if !assert.True(t, ok) {
					return
				}
				if tn.Slug != "beta" {
					w.WriteHeader(http.StatusNoContent)
					return
				}

				conn, ok := tenant.ConnFromContext(r.Context())
				if !assert.True(t, ok) {
					return
				}

				close(betaEntered)
				<-acmeDone

				// acme's teardown must not have closed beta's pool: a new
				// checkout still joins it
				again, err := router.Acquire(r.Context(), tn)
				if assert.NoError(t, err) {
					assert.Same(t, conn.Pool, again.Pool)
					router.Release(again)
				}

				ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
				defer cancel()
				if pc, err := conn.Pool.Acquire(ctx); err == nil {
					pc.Release()
				} else {
					assert.NotErrorIs(t, err, puddle.ErrClosedPool)
				}

				w.WriteHeader(http.StatusNoContent)
			}))

		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.ServeHTTP(httptest.NewRecorder(), request("beta.posapp.com"))
		}()

		<-betaEntered
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, request("acme.posapp.com"))
		assert.Equal(t, http.StatusNoContent, rec.Code)
		close(acmeDone)

		wg.Wait()
	})
}
