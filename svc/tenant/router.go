package tenant

import (
	"context"
	"log/slog"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/poskit/poskit/pkg/metrics"
	"github.com/poskit/poskit/pkg/pg"
)

// Conn is a tenant connection descriptor: the resolved tenant and the pool
// pointing at its isolated database. The middleware attaches it to the
// request context, and downstream collaborators execute queries through it
// directly instead of going back to shared router state.
type Conn struct {
	Tenant *Tenant
	Pool   *pgxpool.Pool
}

// ConnRouter maintains the per-tenant connection pools and an active-tenant
// slot.
//
// Pools are derived from the base connection template by overriding only the
// database name, and are established lazily: checkout returns immediately,
// the physical connection is paid for on first query.
//
// Request handling checks pools out through Acquire/Release. Each holder
// keeps its own reference and a pool closes only when the last reference
// drops, so one request's teardown never invalidates a descriptor held by a
// concurrently running request.
//
// The Activate/Current/Deactivate slot serves serialized administrative and
// CLI flows that want an ambient current tenant. The slot holds exactly one
// reference, released by Deactivate or by the next Activate.
type ConnRouter struct {
	base pg.Config
	log  *slog.Logger

	mu      sync.Mutex
	current *Conn
	pools   map[string]*poolEntry // keyed by database name
}

type poolEntry struct {
	pool *pgxpool.Pool
	refs int
}

// NewConnRouter creates a router deriving tenant connections from the base
// template config.
func NewConnRouter(base pg.Config, log *slog.Logger) *ConnRouter {
	return &ConnRouter{
		base:  base,
		log:   log,
		pools: make(map[string]*poolEntry),
	}
}

// Acquire checks out a connection descriptor for the tenant, creating a lazy
// pool on first checkout of its database. Every Acquire must be paired with
// a Release. The slot is not touched.
func (r *ConnRouter) Acquire(ctx context.Context, t *Tenant) (*Conn, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, err := r.acquireLocked(t)
	if err != nil {
		return nil, err
	}

	r.log.DebugContext(ctx, "tenant connection acquired",
		slog.String("tenant_id", t.ID.String()), slog.String("database", t.Database))

	return conn, nil
}

// Release returns the descriptor's pool reference. The pool closes once the
// last reference is gone; a later checkout of the same database establishes
// a fresh pool.
func (r *ConnRouter) Release(conn *Conn) {
	if conn == nil || conn.Tenant == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.releaseLocked(conn.Tenant.Database)
}

// Activate records the tenant as current and returns its connection
// descriptor. The previously active tenant's slot reference, if any, is
// released.
func (r *ConnRouter) Activate(ctx context.Context, t *Tenant) (*Conn, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, err := r.acquireLocked(t)
	if err != nil {
		return nil, err
	}

	if r.current != nil {
		r.releaseLocked(r.current.Tenant.Database)
	}
	r.current = conn

	r.log.DebugContext(ctx, "tenant activated",
		slog.String("tenant_id", t.ID.String()), slog.String("database", t.Database))

	return conn, nil
}

// Current returns the active tenant, or nil when none is active.
func (r *ConnRouter) Current() *Tenant {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.current == nil {
		return nil
	}
	return r.current.Tenant
}

// Deactivate clears the slot and releases its pool reference.
func (r *ConnRouter) Deactivate() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.current == nil {
		return
	}

	r.releaseLocked(r.current.Tenant.Database)
	r.current = nil
}

// RunWithTenant executes fn with the given tenant active, then restores
// whatever was active before — including "nothing" — on every exit path,
// error or not. Nested calls behave as a stack. fn's descriptor carries its
// own pool reference, so a nested activation cannot pull the pool out from
// under an enclosing call.
func (r *ConnRouter) RunWithTenant(ctx context.Context, t *Tenant, fn func(ctx context.Context, conn *Conn) error) error {
	conn, err := r.Acquire(ctx, t)
	if err != nil {
		return err
	}
	defer r.Release(conn)

	prev := r.Current()
	if _, err := r.Activate(ctx, t); err != nil {
		return err
	}

	defer func() {
		if prev != nil {
			if _, err := r.Activate(ctx, prev); err != nil {
				r.log.ErrorContext(ctx, "failed to restore previous tenant",
					slog.String("tenant_id", prev.ID.String()), slog.Any("error", err))
			}
			return
		}
		r.Deactivate()
	}()

	ctx = WithConn(WithTenant(ctx, t), conn)
	return fn(ctx, conn)
}

// Close discards every pool regardless of outstanding references and clears
// the slot. Call on shutdown only.
func (r *ConnRouter) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for db, entry := range r.pools {
		entry.pool.Close()
		delete(r.pools, db)
		metrics.ActivePools.Dec()
	}
	r.current = nil
}

// acquireLocked hands out a reference to the open pool for the tenant's
// database, creating a lazy one when absent. Caller holds r.mu.
func (r *ConnRouter) acquireLocked(t *Tenant) (*Conn, error) {
	entry, ok := r.pools[t.Database]
	if !ok {
		cfg, err := r.base.WithDatabase(t.Database)
		if err != nil {
			return nil, err
		}

		pool, err := pg.Lazy(cfg)
		if err != nil {
			return nil, err
		}

		entry = &poolEntry{pool: pool}
		r.pools[t.Database] = entry
		metrics.ActivePools.Inc()
	}

	entry.refs++
	return &Conn{Tenant: t, Pool: entry.pool}, nil
}

// releaseLocked drops one reference, closing the pool when none remain.
// Caller holds r.mu.
func (r *ConnRouter) releaseLocked(db string) {
	entry, ok := r.pools[db]
	if !ok {
		return
	}

	entry.refs--
	if entry.refs > 0 {
		return
	}

	entry.pool.Close()
	delete(r.pools, db)
	metrics.ActivePools.Dec()
}
