// Command sync-trigger publishes one sync request to the broker and exits.
// It is meant for cron jobs and manual runs against a nettracker instance
// that consumes the request queue.
package main

import (
	"context"
	"flag"
	"os"
	"time"

	"nettracker/internal/amqp"
	"nettracker/internal/cli"
	"nettracker/internal/log"
)

func main() {
	source := flag.String("source", "cli", "value recorded as the request source")
	timeout := flag.Duration("timeout", 10*time.Second, "publish timeout")
	flag.Parse()

	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg).WithComponent(log.ComponentAMQP)

	if !cfg.AMQPEnabled() {
		logger.Error("AMQP_URL is not set", log.FieldErrorType, log.ErrorTypeConfiguration)
		os.Exit(1)
	}

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, cfg.AMQPEventsRoutingKey)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err,
			log.FieldErrorType, log.ErrorTypeNetwork)
		os.Exit(1)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	msg := amqp.NewSyncRequestMessage(*source)
	if err := client.PublishSyncRequest(ctx, msg); err != nil {
		logger.Error("Failed to publish sync request", log.FieldError, err,
			log.FieldRequestID, msg.RequestID)
		client.Close()
		os.Exit(1)
	}

	logger.Info("Sync request published", log.FieldRequestID, msg.RequestID, "queue", cfg.AMQPQueue)
}
