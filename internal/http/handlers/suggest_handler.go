// README: Destination suggestion handler.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"triply/internal/http/middleware"
	"triply/internal/modules/place"
	"triply/internal/modules/suggest"
	"triply/internal/modules/trip"
)

// suggestHistoryLimit bounds how much trip history feeds the ranker.
const suggestHistoryLimit = 10

type SuggestHandler struct {
	ranker *suggest.Ranker
	trips  *trip.Service
	places *place.Service
}

func NewSuggestHandler(ranker *suggest.Ranker, trips *trip.Service, places *place.Service) *SuggestHandler {
	return &SuggestHandler{ranker: ranker, trips: trips, places: places}
}

// List returns ranked destination suggestions. Suggestions are best-effort:
// every failure path degrades to an empty list, never an error.
func (h *SuggestHandler) List(c *gin.Context) {
	rider, ok := middleware.CallerRider(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, "not authenticated")
		return
	}
	ctx := c.Request.Context()

	history, err := h.trips.RecentCompleted(ctx, rider, suggestHistoryLimit)
	if err != nil {
		history = nil
	}
	saved, err := h.places.List(ctx, rider)
	if err != nil {
		saved = nil
	}

	suggestions := h.ranker.Rank(ctx, history, saved, time.Now())
	if suggestions == nil {
		suggestions = []suggest.Suggestion{}
	}
	writeJSON(c, http.StatusOK, gin.H{"suggestions": suggestions})
}
