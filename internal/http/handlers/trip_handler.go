// README: Trip handlers: confirm, cancel, advance, active-trip streaming.
package handlers

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"triply/internal/http/middleware"
	"triply/internal/modules/fare"
	"triply/internal/modules/trip"
	"triply/internal/types"
)

type TripHandler struct {
	trips *trip.Service
	sync  *trip.Sync
	fares *fare.Service
}

func NewTripHandler(trips *trip.Service, sync *trip.Sync, fares *fare.Service) *TripHandler {
	return &TripHandler{trips: trips, sync: sync, fares: fares}
}

type confirmTripReq struct {
	Pickup       types.GeoPoint      `json:"pickup"`
	Dropoff      types.GeoPoint      `json:"dropoff"`
	VehicleClass fare.Class          `json:"vehicle_class"`
	Route        *types.RouteSummary `json:"route"`
}

func (h *TripHandler) Confirm(c *gin.Context) {
	rider, ok := middleware.CallerRider(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, "not authenticated")
		return
	}
	var req confirmTripReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	raw, err := h.fares.Estimate(req.VehicleClass, req.Route)
	if err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}
	t, err := h.trips.Confirm(c.Request.Context(), trip.ConfirmCommand{
		RiderID:  rider,
		Pickup:   req.Pickup,
		Dropoff:  req.Dropoff,
		Class:    req.VehicleClass,
		Route:    req.Route,
		RawPrice: raw,
	})
	if err != nil {
		writeTripError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, t)
}

func (h *TripHandler) Get(c *gin.Context) {
	rider, ok := middleware.CallerRider(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, "not authenticated")
		return
	}
	t, err := h.trips.Get(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeTripError(c, err)
		return
	}
	if t.RiderID != rider {
		writeTripError(c, trip.ErrForbidden)
		return
	}
	writeJSON(c, http.StatusOK, t)
}

// Active returns the rider's current non-terminal trip. A missing trip is
// not an error: the body is {"trip": null}.
func (h *TripHandler) Active(c *gin.Context) {
	rider, ok := middleware.CallerRider(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, "not authenticated")
		return
	}
	t, err := h.trips.Active(c.Request.Context(), rider)
	if err != nil {
		writeTripError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"trip": t})
}

func (h *TripHandler) List(c *gin.Context) {
	rider, ok := middleware.CallerRider(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, "not authenticated")
		return
	}
	if limitStr := c.Query("completed_limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 1 {
			writeError(c, http.StatusBadRequest, "invalid completed_limit")
			return
		}
		trips, err := h.trips.RecentCompleted(c.Request.Context(), rider, limit)
		if err != nil {
			writeTripError(c, err)
			return
		}
		writeJSON(c, http.StatusOK, gin.H{"trips": trips})
		return
	}
	trips, err := h.trips.ListByRider(c.Request.Context(), rider)
	if err != nil {
		writeTripError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"trips": trips})
}

type cancelTripReq struct {
	Reason string `json:"reason"`
}

func (h *TripHandler) Cancel(c *gin.Context) {
	rider, ok := middleware.CallerRider(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, "not authenticated")
		return
	}
	var req cancelTripReq
	// Body is optional; cancelling without a reason is fine.
	_ = c.ShouldBindJSON(&req)
	err := h.trips.Cancel(c.Request.Context(), trip.CancelCommand{
		TripID:  types.ID(c.Param("id")),
		RiderID: rider,
		Reason:  req.Reason,
	})
	if err != nil {
		writeTripError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"status": trip.StatusCancelled})
}

type advanceTripReq struct {
	To         trip.Status      `json:"to"`
	Driver     *trip.DriverInfo `json:"driver,omitempty"`
	FinalPrice *float64         `json:"final_price,omitempty"`
}

// Advance applies a dispatch-side status move. It exists for the dispatch
// integration and operational tooling, not the rider client.
func (h *TripHandler) Advance(c *gin.Context) {
	var req advanceTripReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	err := h.trips.Advance(c.Request.Context(), trip.AdvanceCommand{
		TripID:     types.ID(c.Param("id")),
		To:         req.To,
		Driver:     req.Driver,
		FinalPrice: req.FinalPrice,
	})
	if err != nil {
		writeTripError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"status": req.To})
}

// Stream pushes the rider's active-trip state over server-sent events. Each
// event carries the full authoritative trip, or null once no trip is active.
// Intermediate states may be skipped under load; the last write wins.
func (h *TripHandler) Stream(c *gin.Context) {
	rider, ok := middleware.CallerRider(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, "not authenticated")
		return
	}

	ctx := c.Request.Context()
	updates := make(chan *trip.Trip, 1)
	sub := h.sync.Subscribe(ctx, rider, func(t *trip.Trip) {
		// Coalesce: drop the undelivered state in favour of the newest.
		select {
		case updates <- t:
		default:
			select {
			case <-updates:
			default:
			}
			select {
			case updates <- t:
			default:
			}
		}
	})
	defer sub.Cancel()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	c.Stream(func(w io.Writer) bool {
		select {
		case t := <-updates:
			c.SSEvent("trip", gin.H{"trip": t})
			return true
		case <-ctx.Done():
			return false
		}
	})
}
