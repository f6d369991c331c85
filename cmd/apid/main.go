package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vaultbox/emts/internal/apid"
	"github.com/vaultbox/emts/internal/config"
	"github.com/vaultbox/emts/internal/telemetry"
	"github.com/vaultbox/emts/store"
)

func main() {
	if err := telemetry.Init(config.SentryDSN(), config.Environment()); err != nil {
		log.Fatalf("apid: telemetry init: %v", err)
	}
	defer telemetry.Flush(2 * time.Second)

	fieldKey, err := config.FieldKey()
	if err != nil {
		log.Fatalf("apid: %v", err)
	}

	mailstore, err := store.Open(config.MailstorePath(), fieldKey, config.MaxSizeBytes())
	if err != nil {
		log.Fatalf("apid: opening mailstore: %v", err)
	}
	defer mailstore.Close()

	router := apid.NewRouter(mailstore, []byte(config.APIBearerSecret()), config.APICORSOrigins())

	srv := &http.Server{
		Addr:              config.APIListenAddr(),
		Handler:           router,
		ReadTimeout:       config.APIReadTimeout(),
		ReadHeaderTimeout: config.APIReadHeaderTimeout(),
		WriteTimeout:      config.APIWriteTimeout(),
		IdleTimeout:       config.APIIdleTimeout(),
	}

	go func() {
		log.Printf("apid: listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("apid: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
}
