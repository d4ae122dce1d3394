// README: Fare estimate handler.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"triply/internal/modules/fare"
	"triply/internal/types"
)

type FareHandler struct {
	fares *fare.Service
}

func NewFareHandler(svc *fare.Service) *FareHandler {
	return &FareHandler{fares: svc}
}

type estimateReq struct {
	Route *types.RouteSummary `json:"route"`
}

// Estimate quotes the display price for every vehicle class at once, so the
// client can render the whole selection list from one call.
func (h *FareHandler) Estimate(c *gin.Context) {
	var req estimateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}

	quotes := make(map[fare.Class]int, len(fare.Classes))
	for _, class := range fare.Classes {
		raw, err := h.fares.Estimate(class, req.Route)
		if err != nil {
			if errors.Is(err, fare.ErrUnknownClass) {
				continue
			}
			writeError(c, http.StatusInternalServerError, "internal error")
			return
		}
		quotes[class] = fare.DisplayEstimate(raw)
	}
	writeJSON(c, http.StatusOK, gin.H{"estimates": quotes})
}
