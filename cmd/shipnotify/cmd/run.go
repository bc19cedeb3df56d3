package cmd

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/austindbirch/ship_notify/internal/baselinker"
	"github.com/austindbirch/ship_notify/internal/config"
	"github.com/austindbirch/ship_notify/internal/health"
	"github.com/austindbirch/ship_notify/internal/ledger"
	"github.com/austindbirch/ship_notify/internal/logging"
	"github.com/austindbirch/ship_notify/internal/metrics"
	"github.com/austindbirch/ship_notify/internal/notify"
	"github.com/austindbirch/ship_notify/internal/pipeline"
	"github.com/austindbirch/ship_notify/internal/publish"
	"github.com/austindbirch/ship_notify/internal/tracing"
)

// runCmd performs one notification batch and exits.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one notification batch",
	Long: `Run polls the order API once, notifies customers of newly shipped
personal orders and records them in the processed-order ledger.
The process exits after every fetched order has been attempted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBatch(cmd.Context())
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

// applyOverrides folds explicit flag / config-file values into the
// env-derived config. Env alone never loses to a flag default.
func applyOverrides(cfg *config.Config) {
	if rootCmd.PersistentFlags().Changed("dry-run") || viper.IsSet("dry-run") {
		cfg.DryRun = dryRun
	}
	if rootCmd.PersistentFlags().Changed("since-hours") || viper.IsSet("since-hours") {
		cfg.BaseLinker.LookbackHours = sinceHours
	}
	if rootCmd.PersistentFlags().Changed("workers") || viper.IsSet("workers") {
		cfg.Workers = workers
	}
	if ledgerPath != "" {
		cfg.Ledger.Path = ledgerPath
		cfg.Ledger.DSN = "" // explicit file path wins over a configured DSN
	}
}

func runBatch(ctx context.Context) error {
	cfg := config.FromEnv()
	applyOverrides(&cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := logging.New(cfg.AppName + "-run")
	runID := uuid.NewString()

	shutdown, err := tracing.InitTracing(ctx, cfg.AppName)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer shutdown()

	// Ledger first: without it nothing else may run.
	var (
		led  ledger.Ledger
		pool *pgxpool.Pool
	)
	if cfg.Ledger.DSN != "" {
		pg, err := ledger.OpenPostgres(ctx, cfg.Ledger.DSN)
		if err != nil {
			return err
		}
		led = pg
		pool = pg.Pool()
	} else {
		fl, err := ledger.OpenFile(cfg.Ledger.Path)
		if err != nil {
			return err
		}
		led = fl
	}
	defer led.Close()

	// Prom metrics, optionally served while the batch runs
	reg := prometheus.NewRegistry()
	metrics.MustRegister(reg)
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		mux.HandleFunc("/healthz", health.HTTPHandler(pool))
		srv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux}
		go func() {
			logger.Plain().WithField("addr", srv.Addr).Info("metrics server starting")
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Plain().WithError(err).Error("metrics server failed")
			}
		}()
		defer func() { _ = srv.Shutdown(context.Background()) }()
	}

	gw := baselinker.New(cfg.BaseLinker.BaseURL, cfg.BaseLinker.Token, cfg.HTTPTimeout)

	pub, err := publish.NewDrivePublisher(ctx, cfg.Drive.CredentialsFile, cfg.Drive.FolderID, cfg.InvoiceDir)
	if err != nil {
		return err
	}

	notifier := notify.NewTwilio(
		cfg.Twilio.AccountSID,
		cfg.Twilio.AuthToken,
		cfg.Twilio.From,
		cfg.Twilio.OperatorPhone,
		cfg.DryRun,
	)
	// The destination override must be loud and auditable.
	if cfg.DryRun {
		logger.Plain().WithRun(runID).
			WithField("operator_phone", cfg.Twilio.OperatorPhone).
			Warn("DRY-RUN MODE: all notifications go to the operator phone")
	} else {
		logger.Plain().WithRun(runID).Info("live mode: notifications go to customers")
	}

	since := time.Now().Add(-time.Duration(cfg.BaseLinker.LookbackHours) * time.Hour).Unix()
	logger.Plain().WithRun(runID).WithFields(map[string]any{
		"since":   since,
		"workers": cfg.Workers,
	}).Info("batch starting")

	p := pipeline.New(pipeline.Params{
		Gateway:         gw,
		Ledger:          led,
		Publisher:       pub,
		Notifier:        notifier,
		Logger:          logger,
		DeliveredStatus: cfg.BaseLinker.DeliveredStatusID,
		Workers:         cfg.Workers,
		RunID:           runID,
	})

	summary, runErr := p.Run(ctx, since)

	for _, r := range summary.Results {
		fmt.Printf("order %d: %s", r.OrderID, r.Outcome)
		if r.Err != nil {
			fmt.Printf(" (%v)", r.Err)
		}
		fmt.Println()
	}
	fmt.Printf("fetched=%d processed=%d notify_failed=%d no_invoice=%d skipped=%d failed=%d in %s\n",
		summary.Fetched,
		summary.Count(pipeline.OutcomeProcessed),
		summary.Count(pipeline.OutcomeNotifyFailed),
		summary.Count(pipeline.OutcomeNoInvoice),
		summary.Count(pipeline.OutcomeSkippedSource)+
			summary.Count(pipeline.OutcomeSkippedStatus)+
			summary.Count(pipeline.OutcomeSkippedProcessed),
		summary.Count(pipeline.OutcomeFailed),
		summary.Duration.Round(time.Millisecond),
	)

	if runErr != nil {
		logger.Plain().WithRun(runID).WithError(runErr).Error("batch aborted")
		return runErr
	}
	logger.Plain().WithRun(runID).Info("batch complete")
	return nil
}
