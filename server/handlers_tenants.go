package server

import (
	"net/http"
	"strconv"
)

const defaultTenantPageSize = 50

// TenantsListHandler returns a page of the tenant registry from the admin
// database. Offset and limit come from query parameters; limit is capped at
// the default page size.
func (s *Server) TenantsListHandler(w http.ResponseWriter, r *http.Request) {
	offset, ok := queryInt(r, "offset", 0)
	if !ok {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "offset must be a non-negative integer")
		return
	}
	limit, ok := queryInt(r, "limit", defaultTenantPageSize)
	if !ok || limit == 0 {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "limit must be a positive integer")
		return
	}
	if limit > defaultTenantPageSize {
		limit = defaultTenantPageSize
	}

	admin, err := s.registry.Admin(r.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("TenantsListHandler admin handle")
		writeDomainError(w, err)
		return
	}

	list, err := admin.Tenants.List(r.Context(), offset, limit)
	if err != nil {
		s.log.Error().Err(err).Msg("TenantsListHandler list")
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, list)
}

// queryInt parses a non-negative integer query parameter, falling back to
// def when absent.
func queryInt(r *http.Request, name string, def int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, false
	}
	return v, true
}
