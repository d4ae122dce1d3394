// README: Entry point; loads config, wires services, starts the HTTP server.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"googlemaps.github.io/maps"

	"triply/internal/config"
	"triply/internal/geocode"
	httptransport "triply/internal/http"
	"triply/internal/infra"
	"triply/internal/modules/fare"
	"triply/internal/modules/place"
	"triply/internal/modules/suggest"
	"triply/internal/modules/trip"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Firebase.ProjectID == "" {
		log.Fatal("TRIPLY_FIREBASE_PROJECT_ID is required")
	}
	verifier, err := infra.NewFirebaseVerifier(ctx, cfg.Firebase.ProjectID, cfg.Firebase.CredentialsFile)
	if err != nil {
		log.WithError(err).Fatal("firebase init")
	}

	dbPool, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		log.WithError(err).Fatal("postgres init")
	}
	defer dbPool.Close()

	redisClient := infra.NewRedis(cfg.Redis.Addr)
	defer redisClient.Close()

	mapsClient, err := maps.NewClient(maps.WithAPIKey(cfg.Maps.APIKey))
	if err != nil {
		log.WithError(err).Fatal("maps init")
	}

	fareStore := fare.NewStore(dbPool)
	fareTable, err := fareStore.LoadTable(ctx)
	if err != nil {
		log.WithError(err).Warn("fare table load failed, using defaults")
		fareTable = fare.DefaultTable()
	}
	fareSvc := fare.NewService(fareTable)

	bus := trip.NewRedisBus(redisClient, log)
	tripStore := trip.NewStore(dbPool)
	tripSvc := trip.NewService(tripStore, bus, log)
	tripSync := trip.NewSync(tripStore, bus, log)

	placeSvc := place.NewService(place.NewStore(dbPool))

	var generator suggest.Generator
	if cfg.AI.GeminiKey != "" {
		gemini, err := suggest.NewGeminiGenerator(ctx, cfg.AI.GeminiKey)
		if err != nil {
			log.WithError(err).Warn("gemini init failed, suggestions disabled")
		} else {
			defer gemini.Close()
			generator = gemini
		}
	}
	ranker := suggest.NewRanker(generator, log)

	resolver := geocode.NewResolver(mapsClient, nil, cfg.Location.AcquireTimeout, log)
	routes := geocode.NewGoogleRoutes(mapsClient)

	handler := httptransport.NewRouter(httptransport.ServerDeps{
		Trips:    tripSvc,
		Sync:     tripSync,
		Fares:    fareSvc,
		Places:   placeSvc,
		Suggest:  ranker,
		Resolver: resolver,
		Routes:   routes,
		Verifier: verifier,
		Log:      log,
	})

	server := &http.Server{Addr: cfg.HTTP.Addr, Handler: handler}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	log.WithField("addr", cfg.HTTP.Addr).Info("listening")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal(err)
	}
}
