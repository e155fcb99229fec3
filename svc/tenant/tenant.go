package tenant

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status governs whether a tenant may serve traffic. Only active tenants do;
// a transition to any status is always allowed, there is no state machine
// beyond that rule.
type Status string

const (
	StatusPending   Status = "pending"
	StatusActive    Status = "active"
	StatusInactive  Status = "inactive"
	StatusSuspended Status = "suspended"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusActive, StatusInactive, StatusSuspended:
		return true
	}
	return false
}

// Plan is informational; nothing in this core enforces plan limits.
type Plan string

const (
	PlanFree         Plan = "free"
	PlanBasic        Plan = "basic"
	PlanProfessional Plan = "professional"
	PlanEnterprise   Plan = "enterprise"
)

// Valid reports whether p is one of the known plans.
func (p Plan) Valid() bool {
	switch p {
	case PlanFree, PlanBasic, PlanProfessional, PlanEnterprise:
		return true
	}
	return false
}

// Tenant is the central registry record describing a customer organization
// and its isolated physical database.
//
// Database is deliberately excluded from JSON: the physical database name
// must never appear in any external representation, so hiding happens at
// serialization time rather than at individual call sites.
type Tenant struct {
	ID          uuid.UUID      `json:"id"`
	Name        string         `json:"name"`
	Slug        string         `json:"slug"`
	Domain      string         `json:"domain,omitempty"`
	Database    string         `json:"-"`
	Email       string         `json:"email"`
	Status      Status         `json:"status"`
	Plan        Plan           `json:"plan"`
	Settings    map[string]any `json:"settings,omitempty"`
	TrialEndsAt *time.Time     `json:"trial_ends_at,omitempty"`
	ActivatedAt *time.Time     `json:"activated_at,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   *time.Time     `json:"-"`
}

// IsActive reports whether the tenant may serve requests.
func (t *Tenant) IsActive() bool {
	return t.Status == StatusActive
}

// IsOnTrial reports whether the tenant's trial period is still running.
func (t *Tenant) IsOnTrial() bool {
	return t.TrialEndsAt != nil && t.TrialEndsAt.After(time.Now())
}

// HasTrialExpired reports whether the tenant had a trial that has ended.
func (t *Tenant) HasTrialExpired() bool {
	return t.TrialEndsAt != nil && t.TrialEndsAt.Before(time.Now())
}

// GetSetting returns the setting at the dotted path key, or def when any
// segment of the path is absent.
//
//	t.GetSetting("receipt.footer", "") // settings["receipt"]["footer"]
func (t *Tenant) GetSetting(key string, def any) any {
	node := any(t.Settings)
	for _, part := range strings.Split(key, ".") {
		m, ok := node.(map[string]any)
		if !ok {
			return def
		}
		node, ok = m[part]
		if !ok {
			return def
		}
	}
	return node
}

// SetSetting stores value at the dotted path key, creating intermediate maps
// as needed. Non-map intermediate values are overwritten. The change is
// in-memory only; persist it through the registry.
func (t *Tenant) SetSetting(key string, value any) {
	if t.Settings == nil {
		t.Settings = make(map[string]any)
	}

	node := t.Settings
	parts := strings.Split(key, ".")
	for _, part := range parts[:len(parts)-1] {
		next, ok := node[part].(map[string]any)
		if !ok {
			next = make(map[string]any)
			node[part] = next
		}
		node = next
	}
	node[parts[len(parts)-1]] = value
}

// DefaultSettings returns the settings applied to a tenant created without
// an explicit settings map.
func DefaultSettings() map[string]any {
	return map[string]any{
		"timezone":        "UTC",
		"currency":        "USD",
		"currency_symbol": "$",
		"date_format":     "Y-m-d",
		"time_format":     "H:i:s",
		"tax_rate":        0,
		"invoice_prefix":  "INV-",
	}
}
