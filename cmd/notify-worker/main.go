package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/julpar/coope-buffet/configs"
	"github.com/julpar/coope-buffet/internal/adapter/queue"
	"github.com/julpar/coope-buffet/internal/logging"
	"github.com/julpar/coope-buffet/internal/usecase"
	amqp "github.com/rabbitmq/amqp091-go"
)

// notify-worker tails order.status.changed and surfaces each transition for
// the counter displays. Today that means structured log lines; the handler is
// where a printer or push integration would plug in.
func main() {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "dev"
	}

	cfg, err := configs.Load("configs", env)
	if err != nil {
		log.Fatal(err)
	}

	logging.Init("notify-worker", cfg.App.LogFile)
	logger := logging.New("notify")

	conn, err := amqp.Dial(cfg.Rabbit.URL)
	if err != nil {
		log.Fatal(err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		log.Fatal(err)
	}
	defer ch.Close()

	if err := queue.DeclareTopology(ch); err != nil {
		log.Fatal(err)
	}

	router := queue.NewRouter(ch, queue.WithPrefetch(20))
	router.Register(queue.StatusQueueName, queue.JSONHandler[usecase.StatusChangedMsg]{
		HandleFunc: func(ctx context.Context, msg usecase.StatusChangedMsg) error {
			logger.Info("order status changed",
				"order_id", msg.OrderID,
				"short_code", msg.ShortCode,
				"status", msg.Status,
				"channel", msg.Channel,
				"total", msg.Total,
				"at", msg.At,
			)
			return nil
		},
	})

	if err := router.Start(); err != nil {
		log.Fatal(err)
	}
	logger.Info("notify worker consuming", "queue", queue.StatusQueueName)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Info("shutting down")
}
