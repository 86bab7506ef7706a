package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	apierrors "github.com/parcelworks/siteline/internal/errors"
	"github.com/parcelworks/siteline/internal/providers"
)

// AddressHandler exposes address autocomplete backed by the resolution
// provider.
type AddressHandler struct {
	resolver providers.AddressResolver
}

// NewAddressHandler creates a new AddressHandler instance.
func NewAddressHandler(resolver providers.AddressResolver) *AddressHandler {
	return &AddressHandler{resolver: resolver}
}

// Autocomplete handles GET /api/v1/addresses/autocomplete.
func (h *AddressHandler) Autocomplete(c *gin.Context) {
	query := c.Query("q")
	if len(query) < 3 {
		apierrors.BadRequest(c, "Query must be at least 3 characters", nil)
		return
	}

	suggestions, err := h.resolver.Autocomplete(c.Request.Context(), query)
	if err != nil {
		apierrors.InternalServerError(c, "Address autocomplete failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"suggestions": suggestions})
}
