package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/yourneighborhoodchef/skuwatch/internal/channel"
	"github.com/yourneighborhoodchef/skuwatch/internal/client"
	"github.com/yourneighborhoodchef/skuwatch/internal/config"
	"github.com/yourneighborhoodchef/skuwatch/internal/headers"
	"github.com/yourneighborhoodchef/skuwatch/internal/logging"
	"github.com/yourneighborhoodchef/skuwatch/internal/model"
	"github.com/yourneighborhoodchef/skuwatch/internal/monitor"
	"github.com/yourneighborhoodchef/skuwatch/internal/notify"
	"github.com/yourneighborhoodchef/skuwatch/internal/ratelimit"
	"github.com/yourneighborhoodchef/skuwatch/internal/telemetry"
)

const headerProfiles = 500

// app holds the collaborators shared by the monitor and the test alert.
type app struct {
	cfg        *config.Config
	log        *slog.Logger
	logOut     *logging.AsyncWriter
	telemetry  *telemetry.Provider
	metrics    *telemetry.Metrics
	snapshots  *monitor.SnapshotStore
	dispatcher *notify.Dispatcher
}

func newApp(ctx context.Context, cfg *config.Config, out io.Writer) (*app, error) {
	const op = "cli.newApp"

	logOut := logging.NewAsyncWriter(os.Stderr, 1000)
	log := logging.Setup(cfg.Log.Level, cfg.Log.Format, logOut)

	tp, err := telemetry.Setup(ctx, telemetry.Config{
		Exporter:     cfg.Metrics.Exporter,
		OTLPEndpoint: cfg.Metrics.OTLPEndpoint,
		ServiceName:  cfg.Metrics.ServiceName,
	})
	if err != nil {
		_ = logOut.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	metrics, err := telemetry.NewMetrics(tp.Meter())
	if err != nil {
		_ = tp.Shutdown(ctx)
		_ = logOut.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	webhooks, err := client.CreateClient(client.Options{
		TimeoutSeconds:  int(cfg.Notifications.DispatchTimeout / time.Second),
		FollowRedirects: true,
	}, "")
	if err != nil {
		_ = tp.Shutdown(ctx)
		_ = logOut.Close()
		return nil, fmt.Errorf("%s: webhook client: %w", op, err)
	}

	a := &app{
		cfg:       cfg,
		log:       log,
		logOut:    logOut,
		telemetry: tp,
		metrics:   metrics,
		snapshots: monitor.NewSnapshotStore(),
	}

	channels := channel.Build(cfg.Notifications, channel.Deps{
		HTTP: webhooks,
		Log:  log,
		Out:  out,
		Status: func() notify.StatusReport {
			return a.snapshots.Load().Report(time.Now())
		},
	})
	a.dispatcher = notify.NewDispatcher(channels,
		notify.WithLogger(log),
		notify.WithRecorder(metrics),
		notify.WithSendTimeout(cfg.Notifications.DispatchTimeout),
		notify.WithDrainTimeout(cfg.Notifications.DrainTimeout),
	)
	return a, nil
}

func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.telemetry.Shutdown(ctx); err != nil {
		a.log.Warn("metrics shutdown failed", "error", err)
	}
	if n := a.logOut.Dropped(); n > 0 {
		fmt.Fprintf(os.Stderr, "%d log lines dropped\n", n)
	}
	_ = a.logOut.Close()
}

func newVendor(cfg *config.Config, log *slog.Logger, observer client.Observer) (*client.Vendor, error) {
	headers.InitProfilePool(headerProfiles)

	rc, err := client.NewRotatingClient(client.Options{
		TimeoutSeconds: int(cfg.Vendor.Timeout / time.Second),
		Proxies:        cfg.Vendor.Proxies,
	})
	if err != nil {
		return nil, err
	}
	if len(cfg.Vendor.Proxies) > 0 {
		log.Info("using proxies", "count", len(cfg.Vendor.Proxies))
	}

	opts := []client.VendorOption{client.WithLogger(log)}
	if observer != nil {
		opts = append(opts, client.WithObserver(observer))
	}
	return client.NewVendor(client.VendorConfig{
		InventoryURL: cfg.Vendor.InventoryURL,
		CatalogURL:   cfg.Vendor.CatalogURL,
		StoreURL:     cfg.Vendor.StoreURL,
		Locale:       cfg.Locale.Locale,
		Manufacturer: cfg.Vendor.Manufacturer,
		PageLimit:    cfg.Vendor.PageLimit,
		MaxPages:     cfg.Vendor.MaxPages,
	}, rc, opts...), nil
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
}

func runMonitor(parent context.Context, cfg *config.Config) error {
	ctx, stop := signalContext(parent)
	defer stop()

	a, err := newApp(ctx, cfg, os.Stdout)
	if err != nil {
		return err
	}
	defer a.close()
	log := a.log

	vendor, err := newVendor(cfg, log, a.metrics)
	if err != nil {
		return fmt.Errorf("cli.runMonitor: vendor client: %w", err)
	}

	resolver, err := monitor.NewResolver(cfg.ProductSpecs(), vendor, a.dispatcher, cfg.Poll.SKURefreshInterval, log)
	if err != nil {
		return err
	}

	pollCfg := monitor.PollerConfig{
		Cooldown:      cfg.Poll.Cooldown,
		StatusEnabled: cfg.StatusUpdates.Enabled,
	}
	if cfg.StatusUpdates.Enabled {
		if pollCfg.StatusSchedule, err = cfg.StatusSchedule(); err != nil {
			return err
		}
	}
	spacer := ratelimit.NewLimiter(cfg.Vendor.RequestSpacing)
	poller := monitor.NewPoller(pollCfg, vendor, a.dispatcher, spacer, log,
		monitor.WithTransitionRecorder(a.metrics))

	scheduler := monitor.NewScheduler(monitor.SchedulerConfig{
		CheckInterval: cfg.Poll.CheckInterval,
		FallbackSleep: cfg.Poll.FallbackSleep,
		DrainTimeout:  cfg.Notifications.DrainTimeout,
		Startup: notify.StartupInfo{
			Products:       cfg.EnabledProducts(),
			Country:        cfg.Locale.Country,
			CheckInterval:  cfg.Poll.CheckInterval,
			Cooldown:       cfg.Poll.Cooldown,
			SKURefresh:     cfg.Poll.SKURefreshInterval,
			BrowserEnabled: cfg.Notifications.Browser.Enabled,
		},
	}, resolver, poller, a.dispatcher, a.snapshots, log)

	if cfg.Metrics.Exporter == config.ExporterPrometheus || cfg.Metrics.Address != "" {
		addr := cfg.Metrics.Address
		if addr == "" {
			addr = ":9090"
		}
		srv := telemetry.NewServer(addr, telemetry.NewRouter(a.snapshots, a.telemetry.MetricsHandler()), log)
		if err := srv.Start(); err != nil {
			return fmt.Errorf("cli.runMonitor: status server: %w", err)
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(sctx)
		}()
	}

	log.Info("starting stock monitor",
		"products", len(cfg.EnabledProducts()),
		"locale", cfg.Locale.Locale,
		"check_interval", cfg.Poll.CheckInterval,
		"request_spacing", spacer.Interval(),
	)

	runErr := scheduler.Run(ctx)
	granted, waited := spacer.Stats()
	log.Info("vendor request spacing", "requests", granted, "held_back", waited)

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	return nil
}

// runTestAlert sends one synthetic in-stock alert through every channel.
func runTestAlert(parent context.Context, cfg *config.Config, out io.Writer) error {
	ctx, stop := signalContext(parent)
	defer stop()

	a, err := newApp(ctx, cfg, out)
	if err != nil {
		return err
	}
	defer a.close()

	active := a.dispatcher.InitializeAll(ctx)
	if len(active) == 0 {
		a.dispatcher.ShutdownAll(context.WithoutCancel(ctx))
		return errors.New("no notification channel could be initialized")
	}

	product := "Test Product"
	if names := cfg.EnabledProducts(); len(names) > 0 {
		product = names[0]
	}
	alert := notify.NewAlert(product, model.StockObservation{
		SKU:        "TEST-SKU",
		IsActive:   true,
		Price:      cfg.Locale.Currency + "0.00",
		ProductURL: cfg.Vendor.StoreURL,
	}, time.Now())

	a.dispatcher.DispatchStockAlert(ctx, alert)
	a.dispatcher.ShutdownAll(context.WithoutCancel(ctx))

	fmt.Fprintf(out, "Test alert sent to: %v\n", active)
	return nil
}
