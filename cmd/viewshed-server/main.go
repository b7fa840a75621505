package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/viewshed/internal/config"
	"github.com/banshee-data/viewshed/internal/version"
)

var (
	configPath  = flag.String("config", "", "Path to a JSON or YAML config file (defaults to "+config.DefaultConfigPath+" when present)")
	listen      = flag.String("listen", "", "HTTP listen address (overrides config)")
	grpcListen  = flag.String("grpc-listen", "", "gRPC health listen address (overrides config; empty disables)")
	dbPath      = flag.String("db", "", "Scenario database path (overrides config)")
	devMode     = flag.Bool("dev", false, "Serve synthetic terrain instead of fetching tiles")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

// loadConfig reads path, or the defaults file when path is empty and the
// file exists, and applies flag overrides.
func loadConfig(path, listenAddr, grpcAddr, db string) (*config.Config, error) {
	cfg := config.EmptyConfig()
	if path == "" {
		if _, err := os.Stat(config.DefaultConfigPath); err == nil {
			path = config.DefaultConfigPath
		}
	}
	if path != "" {
		loaded, err := config.LoadConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if listenAddr != "" {
		cfg.Listen = &listenAddr
	}
	if grpcAddr != "" {
		cfg.GRPCListen = &grpcAddr
	}
	if db != "" {
		cfg.ScenarioDBPath = &db
	}
	return cfg, nil
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	cfg, err := loadConfig(*configPath, *listen, *grpcListen, *dbPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	svc, err := buildServices(cfg, *devMode)
	if err != nil {
		log.Fatalf("failed to start services: %v", err)
	}
	defer svc.Close()

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if addr := cfg.GetGRPCListen(); addr != "" {
		lis, err := net.Listen("tcp", addr)
		if err != nil {
			log.Fatalf("failed to listen on %s: %v", addr, err)
		}
		grpcServer, healthServer := newGRPCServer()

		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Printf("gRPC health listening on %s", addr)
			if err := grpcServer.Serve(lis); err != nil {
				log.Printf("gRPC server error: %v", err)
			}
		}()

		wg.Add(1)
		go func() {
			defer wg.Done()
			<-ctx.Done()
			healthServer.Shutdown()
			grpcServer.GracefulStop()
			log.Printf("gRPC server stopped")
		}()
	}

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		server := &http.Server{
			Addr:              cfg.GetListen(),
			Handler:           svc.handler,
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			log.Printf("viewshed %s listening on %s", version.Version, server.Addr)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
			if err := server.Close(); err != nil {
				log.Printf("HTTP server force close error: %v", err)
			}
		}

		log.Printf("HTTP server routine stopped")
	}()

	wg.Wait()
	log.Printf("Graceful shutdown complete")
}
