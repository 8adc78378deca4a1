package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jwalitptl/attend-api/config"
	"github.com/jwalitptl/attend-api/internal/classifier"
	"github.com/jwalitptl/attend-api/internal/dispatch"
	"github.com/jwalitptl/attend-api/internal/feed"
	"github.com/jwalitptl/attend-api/internal/handler"
	activityHandler "github.com/jwalitptl/attend-api/internal/handler/activity"
	deviceHandler "github.com/jwalitptl/attend-api/internal/handler/device"
	groupHandler "github.com/jwalitptl/attend-api/internal/handler/group"
	settingsHandler "github.com/jwalitptl/attend-api/internal/handler/settings"
	templateHandler "github.com/jwalitptl/attend-api/internal/handler/template"
	userHandler "github.com/jwalitptl/attend-api/internal/handler/user"
	"github.com/jwalitptl/attend-api/internal/middleware"
	"github.com/jwalitptl/attend-api/internal/model"
	"github.com/jwalitptl/attend-api/internal/notifier"
	"github.com/jwalitptl/attend-api/internal/pipeline"
	"github.com/jwalitptl/attend-api/internal/poller"
	"github.com/jwalitptl/attend-api/internal/provider"
	"github.com/jwalitptl/attend-api/internal/provider/email"
	"github.com/jwalitptl/attend-api/internal/provider/whatsapp"
	"github.com/jwalitptl/attend-api/internal/provider/zkteco"
	"github.com/jwalitptl/attend-api/internal/registry"
	"github.com/jwalitptl/attend-api/internal/router"
	"github.com/jwalitptl/attend-api/internal/store"
	"github.com/jwalitptl/attend-api/pkg/logger"
	"github.com/jwalitptl/attend-api/pkg/messaging"
	redisbroker "github.com/jwalitptl/attend-api/pkg/messaging/redis"
	"github.com/jwalitptl/attend-api/pkg/metrics"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger(&logger.Config{
		Level:  logger.ParseLevel(cfg.Log.Level),
		Pretty: cfg.Log.Pretty,
	})
	m := metrics.NewMetrics("attend")

	var broker messaging.Broker
	if cfg.Redis.URL != "" {
		broker, err = redisbroker.NewRedisBroker(redisbroker.Config{URL: cfg.Redis.URL}, log.Zerolog())
		if err != nil {
			log.Fatal(err, "failed to connect to redis")
		}
		defer broker.Close()
	}

	fd := feed.New(broker, log)

	// Stores and registry.
	reg := registry.New()
	groups := store.NewGroupStore()
	users := store.NewUserStore()
	templates := store.NewTemplateStore()
	jobs := store.NewJobStore()
	settings := store.NewSettingsStore(cfg.ToSettings())

	reg.OnStateChange(func(dev model.Device, from, to model.ConnectionState) {
		m.StateTransitions.WithLabelValues(string(from), string(to)).Inc()
		fd.DeviceStateChanged(dev, from, to)
	})

	// Delivery backend: WhatsApp gateway when configured, email as a
	// fallback channel, dry-run logging otherwise.
	var sender dispatch.Sender
	switch {
	case cfg.WhatsApp.Enabled:
		sender = whatsapp.NewClient(whatsapp.Config{
			APIURL: cfg.WhatsApp.APIURL,
			APIKey: cfg.WhatsApp.APIKey,
		}, log)
	case cfg.Email.Enabled:
		sender = email.NewClient(email.Config{
			Host:     cfg.Email.Host,
			Port:     cfg.Email.Port,
			Username: cfg.Email.Username,
			Password: cfg.Email.Password,
			From:     cfg.Email.From,
		}, log)
	default:
		sender = provider.NewLogSender(log)
	}

	dispatcher := dispatch.New(cfg.Dispatch.ToDispatcherConfig(), sender, jobs, settings, func(job *model.DispatchJob) {
		groupName := job.GroupID
		if g, err := groups.Get(job.GroupID); err == nil {
			groupName = g.Name
		}
		fd.JobOutcome(job, groupName)
		if job.Outcome == model.JobDelivered {
			groups.MarkMessaged(job.GroupID, time.Now())
		}
	}, log, m)

	routerCfg, err := cfg.Notifications.ToRouterConfig()
	if err != nil {
		log.Fatal(err, "invalid notification configuration")
	}
	notifyRouter := notifier.NewRouter(routerCfg, groups, templates, jobs, settings, dispatcher, users, reg, fd, log, m)

	cls := classifier.New(users, cfg.Notifications.Grace(), log, m)
	pipe := pipeline.New(cls, notifyRouter, reg, fd, log, m)

	deviceIO := zkteco.NewClient(zkteco.Config{}, log)
	devicePoller := poller.New(cfg.Sync.ToPollerConfig(), reg, deviceIO, pipe, log, m)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Sync.AutoSync {
		go devicePoller.Start(ctx)
	} else {
		log.Info("auto sync disabled, poller not started")
	}
	go dispatcher.Start(ctx)
	go notifyRouter.RunSummaryLoop(ctx)

	// HTTP surface.
	h := handler.NewHandler()
	r := router.NewRouter(h, router.Config{
		RateLimitEnabled: cfg.RateLimit.Enabled,
		RPS:              cfg.RateLimit.RequestsPerSecond,
		Burst:            cfg.RateLimit.Burst,
		CORSConfig:       middleware.DefaultCORSConfig(),
		MetricsPrefix:    "attend_http",
	},
		deviceHandler.NewHandler(reg, devicePoller),
		groupHandler.NewHandler(groups, notifyRouter),
		userHandler.NewHandler(users),
		settingsHandler.NewHandler(settings),
		templateHandler.NewHandler(templates),
		activityHandler.NewHandler(fd),
	)
	r.Setup()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info("starting server", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal(err, "server failed")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(err, "graceful shutdown failed")
	}
}
