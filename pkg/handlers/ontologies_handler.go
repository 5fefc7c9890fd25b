package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/DalavanCloud/ontologies-api/pkg/middleware"
	"github.com/DalavanCloud/ontologies-api/pkg/services"
)

// OntologiesHandler serves ontology listings, scoped to a slice when the
// request carries one.
type OntologiesHandler struct {
	ontologies services.OntologyService
	logger     *zap.Logger
}

// NewOntologiesHandler creates a new ontologies handler.
func NewOntologiesHandler(ontologies services.OntologyService, logger *zap.Logger) *OntologiesHandler {
	return &OntologiesHandler{
		ontologies: ontologies,
		logger:     logger.Named("ontologies-handler"),
	}
}

// RegisterRoutes registers the ontology listing route on the given mux.
func (h *OntologiesHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /ontologies", h.List)
}

// List handles GET /ontologies.
func (h *OntologiesHandler) List(w http.ResponseWriter, r *http.Request) {
	slice := middleware.SliceFrom(r.Context())

	ontologies, err := h.ontologies.List(r.Context(), slice)
	if err != nil {
		h.logger.Error("Failed to list ontologies", zap.String("slice", slice), zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "internal_error", "Failed to list ontologies"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if err := WriteJSON(w, http.StatusOK, ontologies); err != nil {
		h.logger.Error("Failed to encode ontologies", zap.Error(err))
	}
}
