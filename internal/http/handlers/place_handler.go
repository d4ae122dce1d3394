// README: Saved place handlers.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"triply/internal/http/middleware"
	"triply/internal/modules/place"
	"triply/internal/types"
)

type PlaceHandler struct {
	places *place.Service
}

func NewPlaceHandler(svc *place.Service) *PlaceHandler {
	return &PlaceHandler{places: svc}
}

type addPlaceReq struct {
	Name     string         `json:"name"`
	Address  string         `json:"address"`
	Location types.GeoPoint `json:"location"`
	Category place.Category `json:"category"`
}

type placeView struct {
	ID       types.ID       `json:"id"`
	Name     string         `json:"name"`
	Address  string         `json:"address"`
	Location types.GeoPoint `json:"location"`
	Category place.Category `json:"category"`
	Icon     string         `json:"icon"`
}

func viewOf(p *place.SavedPlace) placeView {
	return placeView{
		ID:       p.ID,
		Name:     p.Name,
		Address:  p.Address,
		Location: p.Location,
		Category: p.Category,
		Icon:     place.CategoryIcons[p.Category],
	}
}

func (h *PlaceHandler) Add(c *gin.Context) {
	rider, ok := middleware.CallerRider(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, "not authenticated")
		return
	}
	var req addPlaceReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	p, err := h.places.Add(c.Request.Context(), place.AddCommand{
		OwnerID:  rider,
		Name:     req.Name,
		Address:  req.Address,
		Location: req.Location,
		Category: req.Category,
	})
	if err != nil {
		writePlaceError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, viewOf(p))
}

func (h *PlaceHandler) List(c *gin.Context) {
	rider, ok := middleware.CallerRider(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, "not authenticated")
		return
	}
	list, err := h.places.List(c.Request.Context(), rider)
	if err != nil {
		writePlaceError(c, err)
		return
	}
	views := make([]placeView, 0, len(list))
	for _, p := range list {
		views = append(views, viewOf(p))
	}
	writeJSON(c, http.StatusOK, gin.H{"places": views})
}

func (h *PlaceHandler) Delete(c *gin.Context) {
	rider, ok := middleware.CallerRider(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, "not authenticated")
		return
	}
	if err := h.places.Remove(c.Request.Context(), types.ID(c.Param("id")), rider); err != nil {
		writePlaceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
