// Command sensor-deployment-manager serves the sensor, platform,
// deployment and context operations over NATS request/reply, backed by
// JetStream KV buckets, with an optional Prometheus endpoint.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/birminghamurbanobservatory/sensor-deployment-manager-sub000/api"
	"github.com/birminghamurbanobservatory/sensor-deployment-manager-sub000/config"
	"github.com/birminghamurbanobservatory/sensor-deployment-manager-sub000/deployment"
	"github.com/birminghamurbanobservatory/sensor-deployment-manager-sub000/enrich"
	"github.com/birminghamurbanobservatory/sensor-deployment-manager-sub000/health"
	"github.com/birminghamurbanobservatory/sensor-deployment-manager-sub000/metric"
	"github.com/birminghamurbanobservatory/sensor-deployment-manager-sub000/natsclient"
	"github.com/birminghamurbanobservatory/sensor-deployment-manager-sub000/platform"
	"github.com/birminghamurbanobservatory/sensor-deployment-manager-sub000/registration"
	"github.com/birminghamurbanobservatory/sensor-deployment-manager-sub000/schema"
	"github.com/birminghamurbanobservatory/sensor-deployment-manager-sub000/sensor"
	"github.com/birminghamurbanobservatory/sensor-deployment-manager-sub000/sensorcontext"
	"github.com/birminghamurbanobservatory/sensor-deployment-manager-sub000/store"
	"github.com/birminghamurbanobservatory/sensor-deployment-manager-sub000/vocabulary"
)

func main() {
	configPath := flag.String("config", "", "path to JSON config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := cfg.NewLogger()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	monitor := health.NewMonitor()
	registry := metric.NewRegistry()
	metrics := registry.Metrics

	client, err := natsclient.NewClient(strings.Join(cfg.NATS.URLs, ","),
		natsclient.WithName(cfg.Service.Name),
		natsclient.WithLogger(logger),
		natsclient.WithTimeout(cfg.NATS.Timeout),
		natsclient.WithReconnect(cfg.NATS.MaxReconnects, cfg.NATS.ReconnectWait),
		natsclient.WithCredentials(cfg.NATS.Username, cfg.NATS.Password, cfg.NATS.Token),
		natsclient.WithStatusCallback(func(s natsclient.ConnectionStatus) {
			connected := s == natsclient.StatusConnected
			metrics.RecordNATSStatus(connected)
			switch s {
			case natsclient.StatusConnected:
				monitor.Update(health.Healthy("nats", "connected"))
			case natsclient.StatusReconnecting:
				metrics.RecordNATSReconnect()
				monitor.Update(health.Degraded("nats", "reconnecting"))
			default:
				monitor.Update(health.Unhealthy("nats", s.String()))
			}
		}),
	)
	if err != nil {
		return err
	}
	if err := client.Connect(ctx); err != nil {
		return err
	}
	defer client.Close()

	history := uint8(cfg.Service.BucketHistory)
	open := func(name string) (store.Documents, error) {
		kv, err := client.EnsureBucket(ctx, name, history)
		if err != nil {
			return nil, err
		}
		return client.NewKVStore(kv), nil
	}

	buckets := make(map[string]store.Documents)
	for _, name := range []string{
		store.BucketSensors,
		store.BucketPlatforms,
		store.BucketContexts,
		store.BucketPermanentHosts,
		store.BucketDeployments,
		store.BucketVocabulary,
		store.BucketUnknownSensors,
	} {
		docs, err := open(name)
		if err != nil {
			return err
		}
		buckets[name] = docs
	}

	deployments := deployment.NewStore(buckets[store.BucketDeployments], logger)
	platforms := platform.NewStore(buckets[store.BucketPlatforms], logger)
	hierarchy := platform.NewHierarchy(platforms, deployments, logger)
	sensors := sensor.NewStore(buckets[store.BucketSensors], logger)
	contexts := sensorcontext.NewStore(buckets[store.BucketContexts], logger)
	hosts := registration.NewHostStore(buckets[store.BucketPermanentHosts], logger)
	controller := sensor.NewController(sensors, contexts, platforms, deployments, hosts, logger)
	workflow := registration.NewWorkflow(hosts, sensors, controller, hierarchy, logger)
	vocab := vocabulary.NewStore(buckets[store.BucketVocabulary], logger)
	unknown := enrich.NewUnknownStore(buckets[store.BucketUnknownSensors], logger)
	enricher := enrich.NewEnricher(contexts, platforms, unknown, metrics, logger)

	validator, err := schema.NewValidator()
	if err != nil {
		return err
	}

	a := api.New(api.Deps{
		Validator:   validator,
		Sensors:     controller,
		SensorStore: sensors,
		Hierarchy:   hierarchy,
		Platforms:   platforms,
		Deployments: deployments,
		Contexts:    contexts,
		Workflow:    workflow,
		Hosts:       hosts,
		Vocabulary:  vocab,
		Enricher:    enricher,
		Metrics:     metrics,
		Logger:      logger,
	})
	if err := a.Subscribe(client, api.DefaultPrefix); err != nil {
		return err
	}
	monitor.Update(health.Healthy("api", fmt.Sprintf("%d operations registered", len(a.Operations()))))

	g, gctx := errgroup.WithContext(ctx)
	if cfg.Metrics.Enabled {
		srv := metric.NewServer(cfg.Metrics.Port, cfg.Metrics.Path, registry)
		srv.HealthHandler = healthHandler(cfg.Service.Name, monitor)
		g.Go(srv.Start)
		g.Go(func() error {
			<-gctx.Done()
			return srv.Stop()
		})
	} else {
		g.Go(func() error {
			<-gctx.Done()
			return nil
		})
	}

	logger.Info("sensor-deployment-manager running",
		"operations", len(a.Operations()),
		"metrics", cfg.Metrics.Enabled,
	)
	return g.Wait()
}

// healthHandler reports the aggregated service health as JSON, 503
// when any part is unhealthy.
func healthHandler(service string, monitor *health.Monitor) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		status := monitor.Aggregate(service)
		code := http.StatusOK
		if !status.Healthy {
			code = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(status)
	})
}
