package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultPage     = 1
	defaultPageSize = 50
)

// ParsePageParams extracts page/pagesize query parameters with the listing
// defaults. Returns false after writing an error response when either value
// is not a positive integer.
func ParsePageParams(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (page, size int, ok bool) {
	page, ok = parsePositiveInt(w, r, "page", defaultPage, logger)
	if !ok {
		return 0, 0, false
	}
	size, ok = parsePositiveInt(w, r, "pagesize", defaultPageSize, logger)
	if !ok {
		return 0, 0, false
	}
	return page, size, true
}

// ParseMappingID extracts the mapping id from the request path. It accepts
// either a bare UUID or a full mapping URI whose final segment is the UUID.
// Returns uuid.Nil and false after writing an error response on bad input.
func ParseMappingID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	raw := r.PathValue("mapping")
	if i := strings.LastIndex(raw, "/"); i >= 0 {
		raw = raw[i+1:]
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_mapping_id", "Invalid mapping ID format"); err != nil {
			logger.Error("Failed to write error response", zap.Error(err))
		}
		return uuid.Nil, false
	}
	return id, true
}

func parsePositiveInt(w http.ResponseWriter, r *http.Request, param string, def int, logger *zap.Logger) (int, bool) {
	raw := r.URL.Query().Get(param)
	if raw == "" {
		return def, true
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 1 {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_"+param,
			"Parameter `"+param+"` must be a positive integer"); err != nil {
			logger.Error("Failed to write error response", zap.Error(err))
		}
		return 0, false
	}
	return value, true
}
