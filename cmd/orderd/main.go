package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"order-systemv1/config"
	"order-systemv1/internal/api"
	"order-systemv1/internal/broker"
	"order-systemv1/internal/bus"
	"order-systemv1/internal/dispatch"
	"order-systemv1/internal/feed"
	"order-systemv1/internal/markethours"
	"order-systemv1/internal/metrics"
	"order-systemv1/internal/model"
	"order-systemv1/internal/notification"
	"order-systemv1/internal/order"
	"order-systemv1/internal/reconcile"
	"order-systemv1/internal/ringbuf"
	"order-systemv1/internal/service"
	redisstore "order-systemv1/internal/store/redis"
	sqlitestore "order-systemv1/internal/store/sqlite"
	"order-systemv1/internal/stream"
	"order-systemv1/internal/trailing"
	"order-systemv1/internal/validate"
	"order-systemv1/pkg/dhanconnect"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	log.Println("[orderd] starting...")

	// ---- Load config from env ----
	cfg := config.Load()

	// ---- Setup metrics & health ----
	prom := metrics.NewMetrics()
	health := metrics.NewHealthStatus()
	metricsSrv := metrics.NewServer(cfg.MetricsAddr, health)
	metricsSrv.Start()

	// ---- Setup context for graceful shutdown ----
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// ---- Event journal (SQLite, off hot path) ----
	os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755)
	journal, err := sqlitestore.New(sqlitestore.Config{DBPath: cfg.SQLitePath})
	if err != nil {
		log.Fatalf("[orderd] sqlite init failed: %v", err)
	}
	defer journal.Close()
	journal.OnCommit = func(n int, d time.Duration) {
		prom.JournalCommitDur.Observe(d.Seconds())
	}
	go journal.Run(ctx)
	health.SetSQLiteOK(true)
	log.Println("[orderd] event journal ready")

	// ---- Snapshot cache (Redis, optional) ----
	var cache *redisstore.Cache
	cache, err = redisstore.New(redisstore.Config{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		log.Printf("[orderd] WARNING: redis init failed: %v (continuing without snapshot cache)", err)
		cache = nil
	} else {
		defer cache.Close()
		log.Println("[orderd] snapshot cache ready")
	}

	// ---- Periodic liveness checks ----
	if cache != nil {
		health.StartLivenessChecker(ctx, cache.Client(), journal.DB(), 10*time.Second)
	} else {
		health.StartLivenessChecker(ctx, nil, journal.DB(), 10*time.Second)
	}

	// ---- Broker session ----
	dc := dhanconnect.New(dhanconnect.Config{
		ClientID:    cfg.DhanClientID,
		AccessToken: cfg.DhanAccessToken,
		TOTPSecret:  cfg.DhanTOTPSecret,
		RootURL:     cfg.DhanRootURL,
	})
	if cfg.DhanAccessToken == "" {
		if cfg.DhanTOTPSecret == "" {
			log.Fatal("[orderd] either DHAN_ACCESS_TOKEN or DHAN_TOTP_SECRET must be set")
		}
		loginCtx, loginCancel := context.WithTimeout(ctx, 15*time.Second)
		if err := dc.GenerateSession(loginCtx); err != nil {
			loginCancel()
			log.Fatalf("[orderd] login failed: %v", err)
		}
		loginCancel()
		log.Println("[orderd] session generated")
	}
	gw := metrics.InstrumentGateway(broker.New(dc), prom)

	// ---- Core: dispatcher, trailing engine, service ----
	disp := dispatch.New(cfg.DispatchShards, 1024)
	go disp.Run(ctx)

	trail := trailing.New(trailing.Policy(cfg.TrailPolicy))

	var (
		journalDep model.JournalWriter = journal
		cacheDep   model.SnapshotCache
	)
	if cache != nil {
		cacheDep = cache
	}
	svc := service.New(service.Deps{
		Validator:  validate.New(),
		Gateway:    gw,
		Book:       order.NewBook(),
		Dispatcher: disp,
		Trail:      trail,
		Journal:    journalDep,
		Cache:      cacheDep,
	}, cfg.GatewayTimeout)

	// ---- Event bus: stream hub, notifications, metrics ----
	fanout := bus.New(1024)
	fanout.OnDrop = func(subscriberIdx int) {
		prom.FanoutDropsTotal.WithLabelValues(strconv.Itoa(subscriberIdx)).Inc()
	}

	hub := stream.NewHub(256)
	go hub.Run(ctx, fanout.Subscribe())

	notifiers := []notification.Notifier{notification.NewLogNotifier()}
	if cfg.WebhookURL != "" {
		notifiers = append(notifiers, notification.NewWebhookNotifier(cfg.WebhookURL))
	}
	if cfg.TelegramBotToken != "" && cfg.TelegramChatID != "" {
		notifiers = append(notifiers, notification.NewTelegramNotifier(cfg.TelegramBotToken, cfg.TelegramChatID))
	}
	watcher := notification.NewWatcher(notifiers...)
	go watcher.Run(ctx, fanout.Subscribe())

	observer := metrics.NewObserver(prom)
	go observer.Run(ctx, fanout.Subscribe())

	go fanout.Run(ctx, svc.Events())

	// ---- Gauges ----
	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				prom.DispatchDepth.Set(float64(disp.Depth()))
				prom.TrackedTrails.Set(float64(trail.Tracked()))
				prom.WSClients.Set(float64(hub.ClientCount()))
				if markethours.IsMarketOpen(time.Now()) {
					prom.MarketState.Set(1)
				} else {
					prom.MarketState.Set(0)
				}
				if cache != nil {
					prom.RedisCircuitBreakerState.Set(float64(cache.BreakerState()))
				}
				health.SetOrdersTracked(len(svc.Orders()))
			}
		}
	}()

	// ---- Reconcile: warm start, then periodic passes ----
	rec := reconcile.New(gw, svc, reconcile.Config{Interval: cfg.ReconcileInterval})
	rec.OnRestore = func(n int) {
		prom.ReconcileRestores.Add(float64(n))
	}
	if cache != nil {
		rec.WarmStart(ctx, cache)
	}
	go rec.Run(ctx)

	// ---- Broker push feed ----
	updates := make(chan model.LegUpdate, 1024)
	ticks := make(chan model.Tick, 4096)

	feedClient := feed.New(feed.Config{
		URL:         cfg.FeedURL,
		ClientID:    cfg.DhanClientID,
		AccessToken: dc.AccessToken(), // generated token when TOTP login was used
	})
	feedClient.OnReconnect = func() {
		prom.FeedReconnects.Inc()
		health.SetFeedConnected(true)
	}
	go feedClient.Run(ctx, updates, ticks)
	health.SetFeedConnected(true)

	// Leg updates feed the aggregates directly.
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case u, ok := <-updates:
				if !ok {
					return
				}
				health.SetLastUpdateTime(time.Now())
				if err := svc.HandleLegUpdate(u); err != nil {
					log.Printf("[orderd] leg update dropped: %v", err)
				}
			}
		}
	}()

	// Ticks cross into the trailing path through an SPSC ring: the feed
	// reader pushes, the tick pump pops. Overflow is safe (next tick
	// supersedes) and surfaces as a counter.
	ring := ringbuf.New(4096)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case t, ok := <-ticks:
				if !ok {
					return
				}
				ring.Push(t)
			}
		}
	}()
	go func() {
		var lastOverflow uint64
		for {
			t, ok := ring.Pop()
			if !ok {
				select {
				case <-ctx.Done():
					return
				case <-time.After(time.Millisecond):
				}
				continue
			}
			svc.HandleTick(t)
			if of := ring.Overflow(); of > lastOverflow {
				prom.DroppedTicks.Add(float64(of - lastOverflow))
				lastOverflow = of
			}
		}
	}()

	// ---- HTTP API ----
	apiSrv := api.NewServer(svc, hub, journal)
	httpSrv := &http.Server{
		Addr:    cfg.APIAddr,
		Handler: apiSrv.Router(),
	}
	go func() {
		log.Printf("[orderd] api listening on %s", cfg.APIAddr)
		if err := httpSrv.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatalf("[orderd] api server error: %v", err)
		}
	}()

	log.Printf("[orderd] ready — api=%s metrics=%s shards=%d trail=%s",
		cfg.APIAddr, cfg.MetricsAddr, cfg.DispatchShards, cfg.TrailPolicy)
	log.Printf("[orderd] %s", markethours.StatusString(time.Now()))

	// ---- Wait for shutdown signal ----
	<-sigCh
	log.Println("[orderd] shutdown signal received, cleaning up...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	httpSrv.Shutdown(shutdownCtx)
	metricsSrv.Stop(shutdownCtx)

	// journal.Run drains its queue on cancel; give it a moment to flush.
	time.Sleep(300 * time.Millisecond)

	log.Println("[orderd] shutdown complete.")
}
