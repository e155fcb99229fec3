package tenant

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/poskit/poskit/pkg/environment"
	"github.com/poskit/poskit/pkg/metrics"
)

// HeaderTenantID is the explicit tenant id resolution header.
const HeaderTenantID = "X-Tenant-ID"

// QueryParam is the development-only slug resolution query parameter.
const QueryParam = "tenant"

// reservedSubdomains are first labels that never resolve to a tenant, even
// when a tenant with that slug exists.
var reservedSubdomains = map[string]struct{}{
	"www":   {},
	"api":   {},
	"admin": {},
	"app":   {},
}

// Resolver derives a tenant from an inbound request using an ordered strategy
// chain: subdomain, X-Tenant-ID header, then (outside production-like
// environments) the ?tenant= query parameter.
//
// The chain advances only when a strategy finds no candidate key. Once a
// strategy produces a candidate, its registry lookup is final: a miss ends
// resolution with ErrTenantNotFound rather than falling through. The one
// deliberate exception is a bare 2-label host, whose full-host domain check
// counts as "no candidate" on miss — every request carries a host, and the
// platform's own apex domain must not block header resolution.
type Resolver struct {
	registry Registry
	cache    Cache
	cacheTTL time.Duration
}

// ResolverOption configures the resolver.
type ResolverOption func(*Resolver)

// WithCache enables lookup caching for resolved tenants.
func WithCache(cache Cache, ttl time.Duration) ResolverOption {
	return func(r *Resolver) {
		r.cache = cache
		r.cacheTTL = ttl
	}
}

// NewResolver creates a resolver over the given registry.
func NewResolver(registry Registry, opts ...ResolverOption) *Resolver {
	r := &Resolver{registry: registry}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve produces the tenant for the request, along with the name of the
// strategy that produced it ("subdomain", "header", "query"). Returns
// ErrTenantNotFound when no strategy yields a usable tenant.
func (r *Resolver) Resolve(ctx context.Context, req *http.Request) (*Tenant, string, error) {
	if t, err := r.resolveSubdomain(ctx, req); !errors.Is(err, ErrNoCandidate) {
		return t, "subdomain", err
	}

	if t, err := r.resolveHeader(ctx, req); !errors.Is(err, ErrNoCandidate) {
		return t, "header", err
	}

	if !environment.IsProductionLike(ctx) {
		if t, err := r.resolveQuery(ctx, req); !errors.Is(err, ErrNoCandidate) {
			return t, "query", err
		}
	}

	return nil, "", ErrTenantNotFound
}

// resolveSubdomain resolves from the request host. A host with three or more
// labels yields its first label as a candidate slug (unless reserved) and is
// matched against slug or full-host custom domain. A 2-label host is matched
// solely by domain equality.
func (r *Resolver) resolveSubdomain(ctx context.Context, req *http.Request) (*Tenant, error) {
	host := req.Host
	if idx := strings.LastIndex(host, ":"); idx != -1 {
		host = host[:idx]
	}

	labels := strings.Split(host, ".")
	if len(labels) >= 3 {
		sub := labels[0]
		if _, reserved := reservedSubdomains[sub]; reserved {
			return nil, ErrNoCandidate
		}

		return r.lookup(ctx, "host:"+host, func(ctx context.Context) (*Tenant, error) {
			return r.registry.FindBySlugOrDomain(ctx, sub, host)
		})
	}

	if len(labels) == 2 {
		t, err := r.lookup(ctx, "host:"+host, func(ctx context.Context) (*Tenant, error) {
			return r.registry.GetByDomain(ctx, host)
		})
		if errors.Is(err, ErrTenantNotFound) {
			// apex domain miss is not a candidate, let the header try
			return nil, ErrNoCandidate
		}
		return t, err
	}

	return nil, ErrNoCandidate
}

func (r *Resolver) resolveHeader(ctx context.Context, req *http.Request) (*Tenant, error) {
	raw := req.Header.Get(HeaderTenantID)
	if raw == "" {
		return nil, ErrNoCandidate
	}

	id, err := uuid.Parse(raw)
	if err != nil {
		// a malformed id is still a candidate, it just can't match anything
		return nil, ErrTenantNotFound
	}

	return r.lookup(ctx, "id:"+id.String(), func(ctx context.Context) (*Tenant, error) {
		return r.registry.GetByID(ctx, id)
	})
}

func (r *Resolver) resolveQuery(ctx context.Context, req *http.Request) (*Tenant, error) {
	slug := req.URL.Query().Get(QueryParam)
	if slug == "" {
		return nil, ErrNoCandidate
	}

	return r.lookup(ctx, "slug:"+slug, func(ctx context.Context) (*Tenant, error) {
		return r.registry.GetBySlug(ctx, slug)
	})
}

// lookup consults the cache before the registry. Only successful lookups are
// cached; negative results always re-query so a freshly created tenant is
// resolvable immediately.
func (r *Resolver) lookup(ctx context.Context, key string, fetch func(context.Context) (*Tenant, error)) (*Tenant, error) {
	if r.cache != nil {
		if t, ok := r.cache.Get(ctx, key); ok {
			metrics.CacheHits.WithLabelValues("hit").Inc()
			return t, nil
		}
		metrics.CacheHits.WithLabelValues("miss").Inc()
	}

	t, err := fetch(ctx)
	if err != nil {
		return nil, err
	}

	if r.cache != nil {
		r.cache.Set(ctx, key, t, r.cacheTTL)
	}
	return t, nil
}
