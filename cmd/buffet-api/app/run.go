package app

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/julpar/coope-buffet/configs"
	httpadapter "github.com/julpar/coope-buffet/internal/adapter/http"
	"github.com/julpar/coope-buffet/internal/adapter/http/middleware"
	"github.com/julpar/coope-buffet/internal/adapter/kafka"
	"github.com/julpar/coope-buffet/internal/adapter/payment"
	"github.com/julpar/coope-buffet/internal/adapter/queue"
	"github.com/julpar/coope-buffet/internal/adapter/store"
	"github.com/julpar/coope-buffet/internal/logging"
	"github.com/julpar/coope-buffet/internal/usecase"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
)

type App struct {
	Router *gin.Engine
}

func InitWithConfig(cfg configs.Config) (*App, func(), error) {
	logging.Init(cfg.App.Name, cfg.App.LogFile)
	log := logging.New("app")

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, nil, fmt.Errorf("redis ping: %w", err)
	}

	orderStore := store.NewRedisOrderStore(rdb)
	menuStore := store.NewRedisMenuStore(rdb)
	guard := store.NewRedisTransitionGuard(rdb, cfg.Transition.LeaseTTL)

	var (
		events      usecase.EventPublisher
		closeRabbit func()
	)
	if cfg.Rabbit.Enabled {
		conn, err := amqp.Dial(cfg.Rabbit.URL)
		if err != nil {
			return nil, nil, fmt.Errorf("rabbitmq dial: %w", err)
		}
		ch, err := conn.Channel()
		if err != nil {
			_ = conn.Close()
			return nil, nil, fmt.Errorf("rabbitmq channel: %w", err)
		}
		producer, err := queue.NewRabbitProducer(ch)
		if err != nil {
			_ = ch.Close()
			_ = conn.Close()
			return nil, nil, err
		}
		events = producer
		closeRabbit = func() {
			_ = ch.Close()
			_ = conn.Close()
		}
		log.Info("rabbitmq producer ready")
	}

	orders := usecase.NewOrders(orderStore, menuStore, menuStore, guard, events)
	menu := usecase.NewMenu(menuStore)

	var stopKafka func()
	if cfg.Kafka.Enabled {
		var err error
		stopKafka, err = startPaymentConsumer(cfg, orders)
		if err != nil {
			return nil, nil, err
		}
		log.Info("kafka payment consumer started", "topic", cfg.Kafka.Topic)
	}

	provider := payment.NewClient(cfg.Payments.APIBase, cfg.Payments.AccessToken)

	oh := httpadapter.NewOrderHandler(orders)
	sh := httpadapter.NewStaffHandler(orders)
	mh := httpadapter.NewMenuHandler(menu)
	ph := httpadapter.NewPaymentHandler(orders, provider, cfg)
	th := httpadapter.NewTokenHandler(cfg)
	authz := middleware.NewAuthz(cfg)
	router := httpadapter.NewRouter(oh, sh, mh, ph, th, authz)

	cleanup := func() {
		if stopKafka != nil {
			stopKafka()
		}
		if closeRabbit != nil {
			closeRabbit()
		}
		_ = rdb.Close()
	}

	return &App{Router: router}, cleanup, nil
}

func startPaymentConsumer(cfg configs.Config, orders *usecase.Orders) (func(), error) {
	grp, err := kafka.NewGroup(cfg.Kafka.Brokers, cfg.Kafka.GroupID)
	if err != nil {
		return nil, fmt.Errorf("kafka group: %w", err)
	}

	h := kafka.NewPaymentApprovedHandler(orders)
	consumer := kafka.NewConsumer(grp, []string{cfg.Kafka.Topic}, h.Handle)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		if err := consumer.Start(ctx); err != nil && ctx.Err() == nil {
			logging.New("kafka").Error("payment consumer stopped", "err", err)
		}
	}()

	return func() {
		cancel()
		_ = grp.Close()
	}, nil
}
