package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-docs/pkg/models"
)

// Path parameter names.
const (
	paramID       = "id"
	paramTaskID   = "taskId"
	paramActionID = "actionId"
	paramLinkID   = "linkId"
)

// ParseID extracts and validates the {id} path parameter. label names the
// entity in the error message, e.g. "role" gives "Invalid role ID format".
// Returns uuid.Nil and false after writing an error response.
func ParseID(w http.ResponseWriter, r *http.Request, label string, logger *zap.Logger) (uuid.UUID, bool) {
	return parseUUID(w, r, paramID, label, logger)
}

// parseUUID is the internal helper that does the actual parsing work.
func parseUUID(w http.ResponseWriter, r *http.Request, pathParam, label string, logger *zap.Logger) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue(pathParam))
	if err != nil {
		respondError(w, logger, http.StatusBadRequest, "invalid_"+label+"_id", "Invalid "+label+" ID format")
		return uuid.Nil, false
	}
	return id, true
}

// ParseListOptions reads limit, offset, orderBy and orderDirection from the
// query string. Sort fields are checked by the service; only malformed
// numbers are rejected here.
func ParseListOptions(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (models.ListOptions, bool) {
	q := r.URL.Query()
	opts := models.ListOptions{
		OrderBy:        q.Get("orderBy"),
		OrderDirection: q.Get("orderDirection"),
	}

	for _, p := range []struct {
		name string
		dst  *int
	}{
		{"limit", &opts.Limit},
		{"offset", &opts.Offset},
	} {
		raw := q.Get(p.name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			respondError(w, logger, http.StatusBadRequest, "invalid_request", p.name+" must be an integer")
			return models.ListOptions{}, false
		}
		*p.dst = n
	}

	return opts, true
}

// decodeBody decodes the JSON request body into dst.
// Returns false after writing an error response.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any, logger *zap.Logger) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, logger, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return false
	}
	return true
}
