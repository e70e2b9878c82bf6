package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/linesmerrill/donation-checkin-api/api/handlers"
	"github.com/linesmerrill/donation-checkin-api/config"
)

func main() {
	a := handlers.App{}
	a.Config = *config.New()

	// initialize database and router
	if err := a.Initialize(); err != nil {
		log.Fatal(err)
	}

	co := cors.New(cors.Options{
		AllowedOrigins:   a.Config.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%v", a.Config.Port),
		Handler:           co.Handler(a.Router),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		zap.S().Infow("donation-checkin-api is up and running",
			"port", a.Config.Port,
			"url", a.Config.BaseURL,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	zap.S().Info("shutting down donation-checkin-api")
	if err := srv.Shutdown(ctx); err != nil {
		zap.S().Warnw("graceful shutdown failed", "error", err)
	}
	a.Close(ctx)
	_ = zap.L().Sync()
}
