// README: Geocoding and routing handlers.
package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"triply/internal/geocode"
	"triply/internal/types"
)

type LocationHandler struct {
	resolver *geocode.Resolver
	routes   geocode.RouteProvider
}

func NewLocationHandler(resolver *geocode.Resolver, routes geocode.RouteProvider) *LocationHandler {
	return &LocationHandler{resolver: resolver, routes: routes}
}

func (h *LocationHandler) Search(c *gin.Context) {
	query := c.Query("q")
	results := h.resolver.Search(c.Request.Context(), query)
	if results == nil {
		results = []types.GeoPoint{}
	}
	writeJSON(c, http.StatusOK, gin.H{"results": results})
}

func (h *LocationHandler) Reverse(c *gin.Context) {
	lat, err1 := strconv.ParseFloat(c.Query("lat"), 64)
	lng, err2 := strconv.ParseFloat(c.Query("lng"), 64)
	if err1 != nil || err2 != nil {
		writeError(c, http.StatusBadRequest, "invalid coordinates")
		return
	}
	p := types.GeoPoint{Lat: lat, Lng: lng}
	if !p.Valid() {
		writeError(c, http.StatusBadRequest, "invalid coordinates")
		return
	}
	p.Address = h.resolver.ReverseGeocode(c.Request.Context(), lat, lng)
	writeJSON(c, http.StatusOK, p)
}

type routeReq struct {
	Origin      types.GeoPoint `json:"origin"`
	Destination types.GeoPoint `json:"destination"`
}

func (h *LocationHandler) Route(c *gin.Context) {
	var req routeReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	if !req.Origin.Valid() || !req.Destination.Valid() {
		writeError(c, http.StatusBadRequest, "invalid coordinates")
		return
	}
	rs, err := h.routes.Route(c.Request.Context(), req.Origin, req.Destination)
	if err != nil {
		if errors.Is(err, geocode.ErrNoRoute) {
			writeError(c, http.StatusNotFound, err.Error())
			return
		}
		writeError(c, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(c, http.StatusOK, rs)
}
