package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/earthring/scenecast/internal/api"
	"github.com/earthring/scenecast/internal/chunkstore"
	"github.com/earthring/scenecast/internal/config"
	"github.com/earthring/scenecast/internal/logging"
	"github.com/earthring/scenecast/internal/notify"
	"github.com/earthring/scenecast/internal/performance"
	"github.com/earthring/scenecast/internal/publisher"
	"github.com/earthring/scenecast/internal/streaming"
)

const shutdownTimeout = 10 * time.Second

// main starts the scenecast data plane: the chunk store, the HTTP routes
// serving it, the subscriber hub and the push notifier.
func main() {
	if err := run(); err != nil {
		log.WithError(err).Fatal("scenecast server stopped")
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "load config")
	}
	logCloser, err := logging.Setup(cfg.Logging)
	if err != nil {
		return errors.Wrap(err, "configure logging")
	}
	defer logCloser.Close()

	store, err := newStore(cfg.Cache)
	if err != nil {
		return err
	}
	hub := streaming.NewHub()

	var metrics *performance.Metrics
	if cfg.Metrics.Enabled {
		metrics = performance.NewMetrics()
		if err := metrics.RegisterGauge("chunks_stored", "Chunks currently held by the store.", func() float64 {
			return float64(store.Len())
		}); err != nil {
			return err
		}
		if err := metrics.RegisterGauge("subscribers", "Connected websocket subscribers.", func() float64 {
			return float64(hub.Count())
		}); err != nil {
			return err
		}
	}

	if !cfg.Notify.NotifyEnabled() {
		log.Info("NOTIFY_ADDRESS not set, push notifications disabled")
	}
	transport := notify.NewZMQTransport(cfg.Notify.DialRetry, cfg.Notify.Timeout)
	notifier := notify.NewNotifier(transport, cfg.Notify.Timeout)
	defer notifier.Close()

	pub, err := publisher.New(publisher.Options{
		Store:         store,
		Notifier:      notifier,
		Hub:           hub,
		Metrics:       metrics,
		SelfAddress:   cfg.Network.AdvertiseAddress,
		NotifyAddress: cfg.Notify.Address,
	})
	if err != nil {
		return err
	}

	server := api.NewServer(cfg.Server, api.NewRouter(api.Dependencies{
		Config:  cfg,
		Store:   store,
		Hub:     hub,
		Metrics: metrics,
	}))
	if err := server.Start(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		hub.Run(ctx)
		return nil
	})

	g.Go(func() error {
		select {
		case err, ok := <-server.Errors():
			if ok {
				return err
			}
			return nil
		case <-ctx.Done():
		}
		log.Info("Shutting down data plane")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return errors.Wrap(server.Shutdown(shutdownCtx), "shutdown")
	})

	if cfg.PublishSampleChunk {
		g.Go(func() error {
			result, err := pub.Publish(ctx, publisher.SampleRequest(0))
			if err != nil {
				return errors.Wrap(err, "publish sample chunk")
			}
			log.WithField("url", result.URL).Info("Sample chunk ready")
			return nil
		})
	}

	log.WithFields(log.Fields{
		"addr":       server.Addr(),
		"advertise":  cfg.Network.AdvertiseAddress,
		"notify":     cfg.Notify.Address,
		"max_chunks": cfg.Cache.MaxChunks,
		"env":        cfg.Server.Environment,
	}).Info("scenecast server started")

	return g.Wait()
}

func newStore(cfg config.CacheConfig) (*chunkstore.Store, error) {
	if cfg.MaxChunks == 0 {
		return chunkstore.NewStore(), nil
	}
	store, err := chunkstore.NewBoundedStore(cfg.MaxChunks)
	if err != nil {
		return nil, errors.Wrap(err, "create chunk store")
	}
	return store, nil
}
