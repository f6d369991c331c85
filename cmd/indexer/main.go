package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vaultbox/emts/internal/config"
	"github.com/vaultbox/emts/internal/manager"
	"github.com/vaultbox/emts/internal/pipeline"
	"github.com/vaultbox/emts/internal/telemetry"
	"github.com/vaultbox/emts/store"
	"github.com/vaultbox/emts/store/queue"
)

func main() {
	if err := telemetry.Init(config.SentryDSN(), config.Environment()); err != nil {
		log.Fatalf("indexer: telemetry init: %v", err)
	}
	defer telemetry.Flush(2 * time.Second)

	fieldKey, err := config.FieldKey()
	if err != nil {
		log.Fatalf("indexer: %v", err)
	}

	mailstore, err := store.Open(config.MailstorePath(), fieldKey, config.MaxSizeBytes())
	if err != nil {
		log.Fatalf("indexer: opening mailstore: %v", err)
	}
	defer mailstore.Close()

	hq, err := queue.Open(config.QueueEndpoint(), config.QueueName())
	if err != nil {
		log.Fatalf("indexer: opening hand-off queue: %v", err)
	}
	defer hq.Close()

	mgr := manager.NewWorkManager()
	defer mgr.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		cancel()
	}()

	worker := pipeline.NewPooledWorker(hq, mailstore, mgr.SubmitIndexer)
	worker.Run(ctx)
}
