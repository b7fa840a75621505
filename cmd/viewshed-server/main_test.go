package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"

	"github.com/banshee-data/viewshed/internal/config"
	"github.com/banshee-data/viewshed/internal/dem"
	"github.com/banshee-data/viewshed/internal/events"
	"github.com/banshee-data/viewshed/internal/testutil"
)

func TestLoadConfig_FlagOverrides(t *testing.T) {
	cfg, err := loadConfig("", ":9000", ":9001", "/tmp/x.db")
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.GetListen())
	assert.Equal(t, ":9001", cfg.GetGRPCListen())
	assert.Equal(t, "/tmp/x.db", cfg.GetScenarioDBPath())
}

func TestLoadConfig_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "viewshed.yaml")
	require.NoError(t, os.WriteFile(path, []byte("algorithm: baseline\nlisten: 0.0.0.0:8080\n"), 0o644))

	cfg, err := loadConfig(path, "", "", "")
	require.NoError(t, err)
	assert.Equal(t, "baseline", string(cfg.GetAlgorithm()))
	assert.Equal(t, "0.0.0.0:8080", cfg.GetListen())

	_, err = loadConfig(filepath.Join(t.TempDir(), "missing.json"), "", "", "")
	assert.Error(t, err)
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	db := filepath.Join(dir, "nested", "scenarios.db")
	cache := filepath.Join(dir, "dem")
	cfg := config.EmptyConfig()
	cfg.ScenarioDBPath = &db
	cfg.DEMCacheDir = &cache
	return cfg
}

func TestBuildServices_Dev(t *testing.T) {
	svc, err := buildServices(testConfig(t), true)
	require.NoError(t, err)
	defer svc.Close()
	assert.IsType(t, events.LogPublisher{}, svc.publisher)

	w := testutil.NewTestRecorder()
	svc.handler.ServeHTTP(w, testutil.NewTestRequest(http.MethodGet, "/health", ""))
	testutil.AssertStatusCode(t, w.Code, http.StatusOK)

	body := `{"observer":{"lat":40.6,"lon":-111.8},"maxRadiusKm":0.3,"resolutionM":30}`
	w = testutil.NewTestRecorder()
	svc.handler.ServeHTTP(w, testutil.NewTestRequest(http.MethodPost, "/viewshed", body))
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = testutil.NewTestRecorder()
	svc.handler.ServeHTTP(w, testutil.NewTestRequest(http.MethodGet, "/scenarios", ""))
	testutil.AssertStatusCode(t, w.Code, http.StatusOK)
}

func TestNewProvider(t *testing.T) {
	cfg := testConfig(t)

	p, err := newProvider(cfg, false)
	require.NoError(t, err)
	tp, ok := p.(*dem.TerrariumProvider)
	require.True(t, ok)
	assert.IsType(t, &dem.DiskCache{}, tp.Cache)
	assert.Equal(t, config.DefaultTileURLTemplate, tp.URLTemplate)

	cfg.ObjectCache = &config.ObjectCacheConfig{Endpoint: "127.0.0.1:9000", Bucket: "tiles"}
	p, err = newProvider(cfg, false)
	require.NoError(t, err)
	assert.IsType(t, &dem.ObjectCache{}, p.(*dem.TerrariumProvider).Cache)

	p, err = newProvider(cfg, true)
	require.NoError(t, err)
	assert.IsType(t, dem.SyntheticProvider{}, p)
}

func TestGRPCHealth(t *testing.T) {
	lis := bufconn.Listen(1 << 20)
	srv, hs := newGRPCServer()
	go func() { _ = srv.Serve(lis) }()
	defer srv.Stop()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	defer conn.Close()

	client := healthpb.NewHealthClient(conn)
	ctx := context.Background()
	for _, svc := range []string{"", serviceName} {
		resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: svc})
		require.NoError(t, err)
		assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
	}

	hs.Shutdown()
	resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: serviceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, resp.GetStatus())
}
