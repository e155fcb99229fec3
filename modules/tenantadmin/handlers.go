package tenantadmin

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/poskit/poskit/core"
	"github.com/poskit/poskit/svc/tenant"
)

// CreateTenantRequest is the POST / body.
type CreateTenantRequest struct {
	Name     string         `json:"name"`
	Email    string         `json:"email"`
	Domain   string         `json:"domain"`
	Plan     string         `json:"plan"`
	Settings map[string]any `json:"settings"`
}

// UpdateTenantRequest is the PATCH /{id} body. Nil fields are left untouched.
type UpdateTenantRequest struct {
	Name     *string        `json:"name"`
	Email    *string        `json:"email"`
	Domain   *string        `json:"domain"`
	Plan     *string        `json:"plan"`
	Settings map[string]any `json:"settings"`
}

// ListResponse is the paginated GET / body.
type ListResponse struct {
	Data []*tenant.Tenant `json:"data"`
	Meta ListMeta         `json:"meta"`
}

type ListMeta struct {
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
	Count   int `json:"count"`
}

func (s *Service) create(w http.ResponseWriter, r *http.Request) {
	var req CreateTenantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.JSONError(w, errors.Join(core.ErrBadRequest, err))
		return
	}

	t, err := s.lifecycle.CreateTenant(r.Context(), tenant.CreateParams{
		Name:     req.Name,
		Email:    req.Email,
		Domain:   req.Domain,
		Plan:     tenant.Plan(req.Plan),
		Settings: req.Settings,
	})
	if err != nil {
		s.log.ErrorContext(r.Context(), "tenant creation failed",
			slog.String("name", req.Name), slog.Any("error", err))
		core.JSONError(w, err)
		return
	}

	core.JSON(w, http.StatusCreated, t)
}

func (s *Service) list(w http.ResponseWriter, r *http.Request) {
	f := tenant.Filter{
		Status:  tenant.Status(r.URL.Query().Get("status")),
		Plan:    tenant.Plan(r.URL.Query().Get("plan")),
		Page:    queryInt(r, "page", 1),
		PerPage: queryInt(r, "per_page", tenant.DefaultPerPage),
	}

	tenants, err := s.registry.List(r.Context(), f)
	if err != nil {
		core.JSONError(w, err)
		return
	}

	core.JSON(w, http.StatusOK, ListResponse{
		Data: tenants,
		Meta: ListMeta{Page: f.Page, PerPage: f.PerPage, Count: len(tenants)},
	})
}

func (s *Service) get(w http.ResponseWriter, r *http.Request) {
	t, ok := s.fetch(w, r)
	if !ok {
		return
	}
	core.JSON(w, http.StatusOK, t)
}

func (s *Service) update(w http.ResponseWriter, r *http.Request) {
	t, ok := s.fetch(w, r)
	if !ok {
		return
	}

	var req UpdateTenantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.JSONError(w, errors.Join(core.ErrBadRequest, err))
		return
	}

	if req.Name != nil {
		t.Name = *req.Name
	}
	if req.Email != nil {
		t.Email = *req.Email
	}
	if req.Domain != nil {
		t.Domain = *req.Domain
	}
	if req.Plan != nil {
		plan := tenant.Plan(*req.Plan)
		if !plan.Valid() {
			valErr := core.NewValidationError()
			valErr.Add("plan", "The selected plan is invalid.")
			core.JSONError(w, valErr)
			return
		}
		t.Plan = plan
	}
	if req.Settings != nil {
		for key, value := range req.Settings {
			t.SetSetting(key, value)
		}
	}

	// A settings-only patch goes through the narrower write so concurrent
	// status or plan changes are not clobbered.
	if req.Name == nil && req.Email == nil && req.Domain == nil && req.Plan == nil && req.Settings != nil {
		if err := s.registry.UpdateSettings(r.Context(), t.ID, t.Settings); err != nil {
			core.JSONError(w, err)
			return
		}
		core.JSON(w, http.StatusOK, t)
		return
	}

	if err := s.registry.Update(r.Context(), t); err != nil {
		core.JSONError(w, err)
		return
	}

	core.JSON(w, http.StatusOK, t)
}

// delete soft-deletes the registry row and drops the physical database. A
// failed drop is reported in the body but never blocks removing the record.
func (s *Service) delete(w http.ResponseWriter, r *http.Request) {
	t, ok := s.fetch(w, r)
	if !ok {
		return
	}

	dropped := s.lifecycle.Deprovision(r.Context(), t)

	if err := s.registry.SoftDelete(r.Context(), t.ID); err != nil {
		core.JSONError(w, err)
		return
	}

	core.JSON(w, http.StatusOK, map[string]any{
		"message":          "Tenant deleted.",
		"database_dropped": dropped,
	})
}

func (s *Service) activate(w http.ResponseWriter, r *http.Request) {
	s.setStatus(w, r, tenant.StatusActive)
}

func (s *Service) suspend(w http.ResponseWriter, r *http.Request) {
	s.setStatus(w, r, tenant.StatusSuspended)
}

func (s *Service) setStatus(w http.ResponseWriter, r *http.Request, status tenant.Status) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		core.JSONError(w, errors.Join(core.ErrNotFound, err))
		return
	}

	t, err := s.registry.SetStatus(r.Context(), id, status)
	if err != nil {
		if errors.Is(err, tenant.ErrTenantNotFound) {
			core.JSONError(w, errors.Join(core.ErrNotFound, err))
			return
		}
		core.JSONError(w, err)
		return
	}

	core.JSON(w, http.StatusOK, t)
}

// fetch loads the tenant addressed by the {id} URL parameter, writing the
// error response itself when the id is malformed or unknown.
func (s *Service) fetch(w http.ResponseWriter, r *http.Request) (*tenant.Tenant, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		core.JSONError(w, errors.Join(core.ErrNotFound, err))
		return nil, false
	}

	t, err := s.registry.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, tenant.ErrTenantNotFound) {
			core.JSONError(w, errors.Join(core.ErrNotFound, err))
			return nil, false
		}
		core.JSONError(w, err)
		return nil, false
	}
	return t, true
}

func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return def
	}
	return n
}
