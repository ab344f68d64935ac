package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	bdpay "github.com/goliatone/go-bdpay"
	"github.com/goliatone/go-bdpay/adapters/gojob"
	"github.com/goliatone/go-bdpay/adapters/gologger"
	"github.com/goliatone/go-bdpay/adapters/prommetrics"
	"github.com/goliatone/go-bdpay/adapters/zaplog"
	"github.com/goliatone/go-bdpay/core"
	"github.com/goliatone/go-bdpay/events"
	"github.com/goliatone/go-bdpay/inbound"
	"github.com/goliatone/go-bdpay/ledger"
	"github.com/goliatone/go-bdpay/webhooks"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/twmb/franz-go/plugin/kprom"
)

const shutdownTimeout = 10 * time.Second

func serveCmd() *cobra.Command {
	var (
		addr    string
		maxBody int64
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the payment and disbursement callback endpoints",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logger, err := zaplog.New(zaplog.FromConfig(cfg.Logging))
			if err != nil {
				return err
			}
			defer func() { _ = logger.Close() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, logger, addr, maxBody)
		},
	}
	cmd.Flags().StringVarP(&addr, "addr", "a", ":8080", "Listen address")
	cmd.Flags().Int64Var(&maxBody, "max-body", inbound.DefaultMaxBodyBytes, "Largest accepted callback body in bytes")
	return cmd
}

func serve(ctx context.Context, cfg core.Config, logger *zaplog.Logger, addr string, maxBody int64) error {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recorder := prommetrics.New(registry)

	client, err := bdpay.NewClient(cfg,
		bdpay.WithLoggerProvider(logger),
		bdpay.WithMetricsRecorder(recorder),
	)
	if err != nil {
		return err
	}

	st, err := openStores(ctx, cfg, gologger.Component(logger, "store"))
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	ledgerOpts := []ledger.Option{ledger.WithLogger(gologger.Component(logger, "ledger"))}
	var kafkaMetrics *kprom.Metrics
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaMetrics = kprom.NewMetrics("bdpay")
		kafkaClient, err := events.NewKafkaClient(events.KafkaConfig{
			Brokers:  cfg.Kafka.Brokers,
			Topic:    cfg.Kafka.Topic,
			ClientID: "bdpay-" + cfg.EnvironmentName(),
		}, kafkaMetrics)
		if err != nil {
			return err
		}
		defer kafkaClient.Close()
		publisher, err := events.NewKafkaPublisher(kafkaClient,
			events.WithTopic(cfg.Kafka.Topic),
			events.WithLogger(gologger.Component(logger, "events")),
		)
		if err != nil {
			return err
		}
		ledgerOpts = append(ledgerOpts, ledger.WithObservers(publisher))
	}

	facade, err := bdpay.NewFacade(client, st.Transactions,
		bdpay.WithLedgerOptions(ledgerOpts...),
		bdpay.WithReconcilerOptions(
			webhooks.WithLogger(gologger.Component(logger, "webhooks")),
			webhooks.WithMetricsRecorder(recorder),
		),
	)
	if err != nil {
		return err
	}

	verifier := inbound.NewSignatureVerifier(
		inbound.SignatureCheckerFunc(client.VerifySignature),
		cfg.Webhook.VerifySignature,
		inbound.WithVerifierLogger(gologger.Component(logger, "inbound")),
	)
	dispatcher := inbound.NewDispatcher(verifier, st.Claims)
	dispatcher.DeadLetters = st.DeadLetters
	handlers := facade.InboundHandlers()
	if cfg.Webhook.Async {
		jobs := gojob.NewMemoryQueue(0)
		jobs.DeadLetters = st.DeadLetters
		defer func() { _ = jobs.Close() }()
		handlers = facade.AsyncInboundHandlers(gojob.NewEnqueuerAdapter(jobs))

		runner := webhooks.NewJobRunner(gojob.NewDequeuerAdapter(jobs, gojob.DefaultRetryPolicy()), facade.Reconciler())
		runner.Logger = gologger.Component(logger, "jobs")
		runnerCtx, stopRunner := context.WithCancel(ctx)
		runnerDone := make(chan struct{})
		go func() {
			defer close(runnerDone)
			if err := runner.Run(runnerCtx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("reconcile job runner stopped", "error", err)
			}
		}()
		defer func() {
			stopRunner()
			<-runnerDone
		}()
	}
	for _, handler := range handlers {
		if err := dispatcher.Register(handler); err != nil {
			return err
		}
	}

	router := inbound.NewRouter(dispatcher,
		inbound.WithRouterLogger(gologger.Component(logger, "http")),
		inbound.WithMaxBodyBytes(maxBody),
	)
	router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	if kafkaMetrics != nil {
		router.Handle("/metrics/kafka", kafkaMetrics.Handler())
	}
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	server := &http.Server{
		Addr:              addr,
		Handler:           middleware.RequestID(middleware.Recoverer(router)),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("bdpay callback server listening",
			"addr", addr,
			"environment", cfg.EnvironmentName(),
			"store", normalizeDriver(cfg.Store.Driver),
			"verify_signature", cfg.Webhook.VerifySignature,
			"async", cfg.Webhook.Async,
			"dedup_redeliveries", cfg.Webhook.DedupRedeliveries,
		)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("bdpay callback server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
