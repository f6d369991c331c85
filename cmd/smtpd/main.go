package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vaultbox/emts/internal/config"
	"github.com/vaultbox/emts/internal/manager"
	"github.com/vaultbox/emts/internal/pipeline"
	smtpserver "github.com/vaultbox/emts/internal/smtp"
	"github.com/vaultbox/emts/internal/telemetry"
	"github.com/vaultbox/emts/store/pubsub"
	"github.com/vaultbox/emts/store/queue"
)

func main() {
	if err := telemetry.Init(config.SentryDSN(), config.Environment()); err != nil {
		log.Fatalf("smtpd: telemetry init: %v", err)
	}
	defer telemetry.Flush(2 * time.Second)

	hq, err := queue.Open(config.QueueEndpoint(), config.QueueName())
	if err != nil {
		log.Fatalf("smtpd: opening hand-off queue: %v", err)
	}
	defer hq.Close()

	registry := pubsub.NewRegistry()
	ingestor := pipeline.NewIngestor(hq, registry, config.NotifyPrefix())

	mgr := manager.NewWorkManager()
	defer mgr.Close()

	backend := smtpserver.NewBackend(ingestor, mgr, config.SMTPMaxRecipients(), config.SMTPMaxMessageBytes())
	server := smtpserver.NewServer(backend, config.SMTPListenAddr(), config.SMTPDomain(), config.SMTPMaxMessageBytes(), config.SMTPMaxRecipients())

	if err := server.Start(); err != nil {
		log.Fatalf("smtpd: %v", err)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	server.Stop()
}
