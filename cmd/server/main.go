package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/twmb/franz-go/pkg/kgo"
	"golang.org/x/sync/errgroup"

	"fakturo/internal/invoicing/eligibility"
	invmetrics "fakturo/internal/invoicing/metrics"
	"fakturo/internal/invoicing/notify"
	"fakturo/internal/invoicing/sequence"
	"fakturo/internal/invoicing/service"
	buyerstore "fakturo/internal/invoicing/store/buyer"
	invoicestore "fakturo/internal/invoicing/store/invoice"
	paymentstore "fakturo/internal/invoicing/store/payment"
	"fakturo/internal/platform/config"
	"fakturo/internal/platform/httpserver"
	"fakturo/internal/platform/kafka"
	"fakturo/internal/platform/logger"
	"fakturo/internal/platform/postgres"
	platformredis "fakturo/internal/platform/redis"
	httptransport "fakturo/internal/transport/http"
	vatmetrics "fakturo/internal/vat/metrics"
	"fakturo/internal/vat/resolver"
	consultationstore "fakturo/internal/vat/store/consultation"
	vatratestore "fakturo/internal/vat/store/vatrate"
	"fakturo/internal/vat/validator"
	"fakturo/internal/vat/vies"
	"fakturo/internal/worker"
	"fakturo/pkg/platform/lock"
)

// main wires the dependency graph and runs the HTTP server plus the trigger
// worker until shutdown. Business logic lives in the internal packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Open(ctx, cfg.Postgres)
	if err != nil {
		log.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	var locker lock.Locker
	if redisClient != nil {
		defer redisClient.Close()
		locker = lock.NewRedisLocker(redisClient.Client, lock.WithAcquireWait(cfg.Invoicing.LockWait))
	} else {
		// Single-process deployments can run without Redis.
		log.Warn("redis not configured, using in-process locking")
		locker = lock.NewInMemory(cfg.Invoicing.LockWait)
	}

	invMetrics := invmetrics.New()
	vatMetrics := vatmetrics.New()

	payments := paymentstore.NewPostgres(db)
	buyers := buyerstore.NewPostgres(db)
	invoices := invoicestore.NewPostgres(db)
	numbers := sequence.NewPostgres(db)
	consultations := consultationstore.NewPostgres(db)
	vatRates := vatratestore.NewPostgres(db)

	viesClient := vies.NewHTTPClient(cfg.Vies)
	vatValidator := validator.New(viesClient, consultations,
		validator.WithRequesterVatID(cfg.Vies.RequesterVatID),
		validator.WithOfflineThreshold(cfg.Vies.OfflineThreshold),
		validator.WithLogger(log),
		validator.WithMetrics(vatMetrics),
	)
	vatResolver := resolver.New(vatValidator, vatRates, cfg.Supplier.Country, log, vatMetrics)

	sequencer := sequence.NewSequencer(numbers, log)
	rules := eligibility.New(cfg.Invoicing, log)

	notifiers := notify.Fanout{notify.NewHub()}

	var producer *kgo.Client
	var consumer *kgo.Client
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err = kafka.NewClient(cfg.Kafka)
		if err != nil {
			log.Error("failed to create kafka producer", "error", err)
			os.Exit(1)
		}
		defer producer.Close()
		if err := kafka.EnsureTopics(ctx, producer, cfg.Kafka.TriggerTopic, cfg.Kafka.EventTopic); err != nil {
			log.Error("failed to ensure kafka topics", "error", err)
			os.Exit(1)
		}
		notifiers = append(notifiers, notify.NewKafka(producer, cfg.Kafka.EventTopic))

		consumer, err = kafka.NewClient(cfg.Kafka,
			kgo.ConsumerGroup(cfg.Kafka.ConsumerGroup),
			kgo.ConsumeTopics(cfg.Kafka.TriggerTopic),
			kgo.DisableAutoCommit(),
		)
		if err != nil {
			log.Error("failed to create kafka consumer", "error", err)
			os.Exit(1)
		}
		defer consumer.Close()
	}

	generator := service.NewService(
		payments, buyers, invoices, numbers,
		sequencer, rules, locker,
		cfg.Supplier, cfg.Invoicing,
		service.WithNotifier(notifiers),
		service.WithTx(service.NewSQLTx(db)),
		service.WithLogger(log),
		service.WithMetrics(invMetrics),
	)

	handler := httptransport.NewHandler(
		generator, invoices, buyers,
		vatValidator, vatResolver,
		cfg.HTTP.AdminJWTKey, log,
	)
	srv := httpserver.New(cfg.HTTP, handler.Router())

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("starting http server", "addr", cfg.HTTP.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownGrace)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if consumer != nil {
		triggerWorker := worker.NewTriggerWorker(consumer, generator, log)
		g.Go(func() error {
			log.Info("starting trigger worker",
				"topic", cfg.Kafka.TriggerTopic,
				"group", cfg.Kafka.ConsumerGroup,
			)
			if err := triggerWorker.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		log.Error("server exited with error", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}
