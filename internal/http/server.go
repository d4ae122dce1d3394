// README: API gateway; registers HTTP routes and delegates to module services.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"triply/internal/geocode"
	"triply/internal/http/handlers"
	"triply/internal/http/middleware"
	"triply/internal/infra"
	"triply/internal/modules/fare"
	"triply/internal/modules/place"
	"triply/internal/modules/suggest"
	"triply/internal/modules/trip"
)

type ServerDeps struct {
	Trips    *trip.Service
	Sync     *trip.Sync
	Fares    *fare.Service
	Places   *place.Service
	Suggest  *suggest.Ranker
	Resolver *geocode.Resolver
	Routes   geocode.RouteProvider
	Verifier infra.TokenVerifier
	Log      *logrus.Logger
}

func NewRouter(deps ServerDeps) http.Handler {
	if deps.Log == nil {
		deps.Log = logrus.New()
	}

	r := gin.New()
	r.Use(middleware.Recovery(deps.Log), middleware.Logging(deps.Log))

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	api := r.Group("/api", middleware.Auth(deps.Verifier))

	locationHandler := handlers.NewLocationHandler(deps.Resolver, deps.Routes)
	api.GET("/geocode/search", locationHandler.Search)
	api.GET("/geocode/reverse", locationHandler.Reverse)
	api.POST("/routes", locationHandler.Route)

	fareHandler := handlers.NewFareHandler(deps.Fares)
	api.POST("/fares/estimate", fareHandler.Estimate)

	tripHandler := handlers.NewTripHandler(deps.Trips, deps.Sync, deps.Fares)
	api.POST("/trips", tripHandler.Confirm)
	api.GET("/trips/active", tripHandler.Active)
	api.GET("/trips/active/stream", tripHandler.Stream)
	api.GET("/trips", tripHandler.List)
	api.GET("/trips/:id", tripHandler.Get)
	api.POST("/trips/:id/cancel", tripHandler.Cancel)
	api.POST("/trips/:id/advance", middleware.RequireDispatch(), tripHandler.Advance)

	placeHandler := handlers.NewPlaceHandler(deps.Places)
	api.POST("/places", placeHandler.Add)
	api.GET("/places", placeHandler.List)
	api.DELETE("/places/:id", placeHandler.Delete)

	suggestHandler := handlers.NewSuggestHandler(deps.Suggest, deps.Trips, deps.Places)
	api.GET("/suggestions", suggestHandler.List)

	return r
}
