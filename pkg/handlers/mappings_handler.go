package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/DalavanCloud/ontologies-api/pkg/apperrors"
	"github.com/DalavanCloud/ontologies-api/pkg/config"
	"github.com/DalavanCloud/ontologies-api/pkg/models"
	"github.com/DalavanCloud/ontologies-api/pkg/services"
)

// ============================================================================
// Request/Response Types
// ============================================================================

// CreateMappingRequest for POST /mappings.
type CreateMappingRequest struct {
	Classes []struct {
		Class    string `json:"class"`
		Ontology string `json:"ontology"`
	} `json:"classes"`
	Relation   string  `json:"relation"`
	Creator    string  `json:"creator"`
	Source     *string `json:"source,omitempty"`
	SourceName *string `json:"source_name,omitempty"`
	Comment    *string `json:"comment,omitempty"`
}

// MappingResponse wraps a mapping with its REST identifier.
type MappingResponse struct {
	ID string `json:"@id"`
	*models.Mapping
}

// ============================================================================
// Handler
// ============================================================================

// MappingsHandler handles all mapping HTTP requests.
type MappingsHandler struct {
	mappings services.MappingService
	queries  services.MappingQueryService
	cfg      *config.Config
	logger   *zap.Logger
}

// NewMappingsHandler creates a new mappings handler.
func NewMappingsHandler(
	mappings services.MappingService,
	queries services.MappingQueryService,
	cfg *config.Config,
	logger *zap.Logger,
) *MappingsHandler {
	return &MappingsHandler{
		mappings: mappings,
		queries:  queries,
		cfg:      cfg,
		logger:   logger.Named("mappings-handler"),
	}
}

// RegisterRoutes registers the mapping routes on the given mux.
func (h *MappingsHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /ontologies/{ontology}/classes/{cls}/mappings", h.ListForClass)
	mux.HandleFunc("GET /ontologies/{ontology}/mappings", h.ListForOntology)

	mux.HandleFunc("GET /mappings", h.ListBetweenOntologies)
	mux.HandleFunc("GET /mappings/recent", h.Recent)
	mux.HandleFunc("POST /mappings", h.Create)
	mux.HandleFunc("DELETE /mappings/{mapping}", h.Delete)

	mux.HandleFunc("GET /mappings/statistics/ontologies", h.Statistics)
	mux.HandleFunc("GET /mappings/statistics/ontologies/{ontology}", h.StatisticsForOntology)
	mux.HandleFunc("GET /mappings/statistics/ontologies/{ontology}/popular_classes", h.PopularClasses)
	mux.HandleFunc("GET /mappings/statistics/ontologies/{ontology}/users", h.TopUsers)
}

// ListForClass handles GET /ontologies/{ontology}/classes/{cls}/mappings.
// Class-scoped listings are always returned as a single unpaged page.
func (h *MappingsHandler) ListForClass(w http.ResponseWriter, r *http.Request) {
	ontology := r.PathValue("ontology")
	classURI := r.PathValue("cls")

	page, err := h.queries.ForOntology(r.Context(), ontology,
		models.UnpagedSentinel, models.UnpagedSentinel, classURI)
	if err != nil {
		h.writeQueryError(w, err)
		return
	}

	h.writePage(w, page)
}

// ListForOntology handles GET /ontologies/{ontology}/mappings.
func (h *MappingsHandler) ListForOntology(w http.ResponseWriter, r *http.Request) {
	ontology := r.PathValue("ontology")
	pageNum, size, ok := ParsePageParams(w, r, h.logger)
	if !ok {
		return
	}

	page, err := h.queries.ForOntology(r.Context(), ontology, pageNum, size, "")
	if err != nil {
		h.writeQueryError(w, err)
		return
	}

	h.writePage(w, page)
}

// ListBetweenOntologies handles GET /mappings?ontologies=ONT1,ONT2.
func (h *MappingsHandler) ListBetweenOntologies(w http.ResponseWriter, r *http.Request) {
	ontologies := splitNonEmpty(r.URL.Query().Get("ontologies"))
	if len(ontologies) != 2 {
		h.writeError(w, http.StatusBadRequest, "invalid_ontologies",
			"The /mappings endpoint only supports filtering on two ontologies using `?ontologies=ONT1,ONT2`")
		return
	}

	pageNum, size, ok := ParsePageParams(w, r, h.logger)
	if !ok {
		return
	}

	page, err := h.queries.BetweenOntologies(r.Context(), ontologies[0], ontologies[1], pageNum, size)
	if err != nil {
		h.writeQueryError(w, err)
		return
	}

	h.writePage(w, page)
}

// Recent handles GET /mappings/recent?size=N.
func (h *MappingsHandler) Recent(w http.ResponseWriter, r *http.Request) {
	size := h.cfg.Mappings.RecentDefaultSize
	if raw := r.URL.Query().Get("size"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			h.writeError(w, http.StatusBadRequest, "invalid_size",
				"Parameter `size` must be a positive integer")
			return
		}
		size = parsed
	}
	if size > h.cfg.Mappings.RecentMaxSize {
		h.writeError(w, http.StatusUnprocessableEntity, "size_limit_exceeded",
			fmt.Sprintf("Recent mappings only processes calls under %d", h.cfg.Mappings.RecentMaxSize))
		return
	}

	mappings, err := h.queries.Recent(r.Context(), size)
	if err != nil {
		h.writeQueryError(w, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, h.toResponses(mappings)); err != nil {
		h.logger.Error("Failed to encode recent mappings", zap.Error(err))
	}
}

// Create handles POST /mappings. All resolution failures abort the request
// with 400 and no partial writes.
func (h *MappingsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateMappingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_body", "Request body is not valid JSON")
		return
	}

	if len(req.Classes) == 0 {
		h.writeError(w, http.StatusBadRequest, "missing_classes", "Input does not contain classes")
		return
	}
	if len(req.Classes) != 2 {
		h.writeError(w, http.StatusBadRequest, "invalid_classes", "Input must contain exactly 2 classes")
		return
	}
	if req.Relation == "" {
		h.writeError(w, http.StatusBadRequest, "missing_relation", "Input does not contain mapping relation")
		return
	}
	if req.Creator == "" {
		h.writeError(w, http.StatusBadRequest, "missing_creator", "Input does not contain user creator ID")
		return
	}

	input := services.CreateMappingInput{
		Relation: req.Relation,
		Creator:  req.Creator,
		Options: services.ProcessOptions{
			Source:     req.Source,
			SourceName: req.SourceName,
			Comment:    req.Comment,
		},
	}
	for _, cls := range req.Classes {
		input.Classes = append(input.Classes, services.ClassInput{
			ClassURI: cls.Class,
			Ontology: cls.Ontology,
		})
	}

	mapping, err := h.mappings.CreateRESTMapping(r.Context(), input)
	if err != nil {
		// Resolution failures surface as 400 on the creation path.
		if errors.Is(err, apperrors.ErrNotFound) || errors.Is(err, apperrors.ErrInvalidInput) {
			h.writeError(w, http.StatusBadRequest, "invalid_mapping", err.Error())
			return
		}
		h.logger.Error("Failed to create mapping", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "internal_error", "Failed to create mapping")
		return
	}

	if err := WriteJSON(w, http.StatusCreated, h.toResponse(mapping)); err != nil {
		h.logger.Error("Failed to encode created mapping", zap.Error(err))
	}
}

// Delete handles DELETE /mappings/{mapping}. Responds 204 whether the
// mapping was fully deleted or only weakened; 400 when nothing was eligible.
func (h *MappingsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseMappingID(w, r, h.logger)
	if !ok {
		return
	}

	_, err := h.mappings.Delete(r.Context(), id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNoUserProcess) {
			h.writeError(w, http.StatusBadRequest, "deletion_rejected",
				"This mapping only contains automatic processes. Nothing has been deleted")
			return
		}
		if errors.Is(err, apperrors.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "mapping_not_found",
				fmt.Sprintf("Mapping with id `%s` not found", id))
			return
		}
		h.logger.Error("Failed to delete mapping", zap.String("mapping_id", id.String()), zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "internal_error", "Failed to delete mapping")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Statistics handles GET /mappings/statistics/ontologies.
func (h *MappingsHandler) Statistics(w http.ResponseWriter, r *http.Request) {
	counts, err := h.queries.CountsPerOntology(r.Context())
	if err != nil {
		h.logger.Error("Failed to compute mapping statistics", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "internal_error", "Failed to compute statistics")
		return
	}

	h.setStatisticsCacheHeader(w)
	if err := WriteJSON(w, http.StatusOK, counts); err != nil {
		h.logger.Error("Failed to encode statistics", zap.Error(err))
	}
}

// StatisticsForOntology handles GET /mappings/statistics/ontologies/{ontology}.
func (h *MappingsHandler) StatisticsForOntology(w http.ResponseWriter, r *http.Request) {
	ontology := r.PathValue("ontology")

	count, err := h.queries.CountForOntology(r.Context(), ontology)
	if err != nil {
		h.writeQueryError(w, err)
		return
	}

	h.setStatisticsCacheHeader(w)
	if err := WriteJSON(w, http.StatusOK, map[string]int{ontology: count}); err != nil {
		h.logger.Error("Failed to encode statistics", zap.Error(err))
	}
}

// PopularClasses handles GET /mappings/statistics/ontologies/{ontology}/popular_classes.
// Reserved extension point with no defined behavior yet.
func (h *MappingsHandler) PopularClasses(w http.ResponseWriter, r *http.Request) {
	h.writeError(w, http.StatusNotImplemented, "not_implemented",
		"Popular classes statistics are not implemented")
}

// TopUsers handles GET /mappings/statistics/ontologies/{ontology}/users.
// Reserved extension point with no defined behavior yet.
func (h *MappingsHandler) TopUsers(w http.ResponseWriter, r *http.Request) {
	h.writeError(w, http.StatusNotImplemented, "not_implemented",
		"Per-ontology user statistics are not implemented")
}

// ============================================================================
// Helpers
// ============================================================================

func (h *MappingsHandler) toResponse(m *models.Mapping) MappingResponse {
	return MappingResponse{
		ID:      fmt.Sprintf("%s/mappings/%s", h.cfg.BaseURL, m.ID),
		Mapping: m,
	}
}

func (h *MappingsHandler) toResponses(mappings []*models.Mapping) []MappingResponse {
	responses := make([]MappingResponse, 0, len(mappings))
	for _, m := range mappings {
		responses = append(responses, h.toResponse(m))
	}
	return responses
}

func (h *MappingsHandler) writePage(w http.ResponseWriter, page *models.Page[*models.Mapping]) {
	response := models.Page[MappingResponse]{
		Page:       page.Page,
		PageCount:  page.PageCount,
		TotalCount: page.TotalCount,
		Collection: h.toResponses(page.Collection),
	}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to encode mapping page", zap.Error(err))
	}
}

// writeQueryError maps read-side service errors: missing
// ontology/submission/class surface as 404 on listing endpoints.
func (h *MappingsHandler) writeQueryError(w http.ResponseWriter, err error) {
	if errors.Is(err, apperrors.ErrNotFound) {
		h.writeError(w, http.StatusNotFound, "not_found", err.Error())
		return
	}
	h.logger.Error("Mapping query failed", zap.Error(err))
	h.writeError(w, http.StatusInternalServerError, "internal_error", "Mapping query failed")
}

func (h *MappingsHandler) writeError(w http.ResponseWriter, statusCode int, errorCode, message string) {
	if err := ErrorResponse(w, statusCode, errorCode, message); err != nil {
		h.logger.Error("Failed to write error response", zap.Error(err))
	}
}

func (h *MappingsHandler) setStatisticsCacheHeader(w http.ResponseWriter) {
	w.Header().Set("Cache-Control",
		fmt.Sprintf("public, max-age=%d", h.cfg.Mappings.StatsCacheTTLSeconds))
}

func splitNonEmpty(value string) []string {
	var parts []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
