package main

import (
	"fmt"
	"log"
	"net/http"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/banshee-data/viewshed/internal/api"
	"github.com/banshee-data/viewshed/internal/config"
	"github.com/banshee-data/viewshed/internal/dem"
	"github.com/banshee-data/viewshed/internal/events"
	"github.com/banshee-data/viewshed/internal/fsutil"
	"github.com/banshee-data/viewshed/internal/httputil"
	"github.com/banshee-data/viewshed/internal/scenario"
)

// serviceName is reported by the gRPC health service alongside "".
const serviceName = "viewshed"

type services struct {
	handler   http.Handler
	store     *scenario.Store
	publisher events.Publisher
}

func (s *services) Close() {
	if err := s.publisher.Close(); err != nil {
		log.Printf("failed to close event publisher: %v", err)
	}
	if err := s.store.Close(); err != nil {
		log.Printf("failed to close scenario store: %v", err)
	}
}

func objectCacheOptions(cfg *config.Config) *dem.ObjectCacheOptions {
	oc := cfg.ObjectCache
	if oc == nil {
		return nil
	}
	return &dem.ObjectCacheOptions{
		Endpoint:        oc.Endpoint,
		Bucket:          oc.Bucket,
		AccessKeyID:     oc.AccessKeyID,
		SecretAccessKey: oc.SecretAccessKey,
		UseSSL:          oc.UseSSL,
		Region:          oc.Region,
	}
}

// newProvider returns synthetic terrain in dev mode, otherwise a Terrarium
// provider backed by the configured tile cache.
func newProvider(cfg *config.Config, dev bool) (dem.Provider, error) {
	if dev {
		return dem.SyntheticProvider{Seed: 42}, nil
	}
	cache, err := dem.OpenCache(cfg.GetDEMCacheDir(), objectCacheOptions(cfg))
	if err != nil {
		return nil, fmt.Errorf("open tile cache: %w", err)
	}
	client := httputil.NewStandardClient(cfg.GetRequestTimeout())
	return dem.NewTerrariumProvider(client, cache, cfg.GetTileURLTemplate()), nil
}

func buildServices(cfg *config.Config, dev bool) (*services, error) {
	provider, err := newProvider(cfg, dev)
	if err != nil {
		return nil, err
	}

	dbPath := cfg.GetScenarioDBPath()
	if err := fsutil.EnsureParentDir(fsutil.OSFileSystem{}, dbPath); err != nil {
		return nil, err
	}
	store, err := scenario.Open(dbPath, nil)
	if err != nil {
		return nil, fmt.Errorf("open scenario store: %w", err)
	}

	publisher := events.New(cfg.KafkaBrokers, cfg.GetKafkaTopic())

	srv, err := api.NewServer(api.Options{
		Config:    cfg,
		Provider:  provider,
		Store:     store,
		Publisher: publisher,
	})
	if err != nil {
		store.Close()
		return nil, err
	}
	handler, err := srv.Handler()
	if err != nil {
		store.Close()
		return nil, err
	}
	return &services{handler: handler, store: store, publisher: publisher}, nil
}

// newGRPCServer returns a gRPC server exposing only the standard health
// service, marked SERVING.
func newGRPCServer() (*grpc.Server, *health.Server) {
	s := grpc.NewServer()
	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(serviceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(s, hs)
	return s, hs
}
