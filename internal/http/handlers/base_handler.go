// README: Base handler utilities (JSON helpers, error mapping).
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"triply/internal/modules/place"
	"triply/internal/modules/trip"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, msg string) {
	writeJSON(c, status, errorResponse{Error: msg})
}

func writeTripError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, trip.ErrIncompleteTrip):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, trip.ErrNotFound):
		writeError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, trip.ErrForbidden):
		writeError(c, http.StatusForbidden, err.Error())
	case errors.Is(err, trip.ErrTripInFlight),
		errors.Is(err, trip.ErrActiveTrip),
		errors.Is(err, trip.ErrInvalidState),
		errors.Is(err, trip.ErrConflict):
		writeError(c, http.StatusConflict, err.Error())
	default:
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}

func writePlaceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, place.ErrInvalidPlace):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, place.ErrNotFound):
		writeError(c, http.StatusNotFound, err.Error())
	default:
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}
