package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"ecstore/internal/config"
	"ecstore/internal/logging"
	"ecstore/internal/node"
	"ecstore/internal/resolve"
	"ecstore/internal/storage"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "ecstored: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags(args []string) (config.Config, error) {
	cfg := config.Default()
	fs := flag.NewFlagSet("ecstored", flag.ContinueOnError)

	peers := fs.String("peers", "", "Comma-separated peer list: id=host:port,id=host:port")
	digestPolicy := fs.String("digest-policy", cfg.DigestPolicy.String(), "Digest gate: require-match or always")
	fs.StringVar(&cfg.NodeID, "node-id", cfg.NodeID, "Node ID")
	fs.StringVar(&cfg.ListenAddr, "listen", cfg.ListenAddr, "gRPC listen address (host:port)")
	fs.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "Prometheus listen address; empty disables")
	fs.IntVar(&cfg.VNodes, "vnodes", cfg.VNodes, "Virtual nodes per ring member")
	fs.IntVar(&cfg.ReplicationFactor, "rf", cfg.ReplicationFactor, "Replication factor")
	fs.IntVar(&cfg.ReadQuorum, "r", cfg.ReadQuorum, "Read quorum")
	fs.IntVar(&cfg.WriteQuorum, "w", cfg.WriteQuorum, "Write-back quorum")
	fs.IntVar(&cfg.IntersectionQuorum, "k1", cfg.IntersectionQuorum, "Occurrences needed to certify a tag")
	fs.IntVar(&cfg.RecoveryThreshold, "k2", cfg.RecoveryThreshold, "Fragments needed to decode a value")
	fs.BoolVar(&cfg.WriteBack, "write-back", cfg.WriteBack, "Write the decode tag back after reads")
	fs.StringVar(&cfg.DataDir, "data-dir", cfg.DataDir, "bbolt data directory; empty keeps rows in memory")
	fs.StringVar(&cfg.Keyspace, "keyspace", cfg.Keyspace, "Keyspace name reported with results")
	fs.StringVar(&cfg.Table, "table", cfg.Table, "Table name reported with results")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug, info, warn, error")
	fs.BoolVar(&cfg.Development, "dev", cfg.Development, "Human-readable console logs")

	if err := fs.Parse(args); err != nil {
		return config.Config{}, err
	}

	var err error
	if cfg.Peers, err = config.ParsePeers(*peers); err != nil {
		return config.Config{}, err
	}
	if cfg.DigestPolicy, err = resolve.ParseDigestPolicy(*digestPolicy); err != nil {
		return config.Config{}, err
	}
	return cfg, cfg.Validate()
}

func openStore(cfg config.Config) (storage.Store, error) {
	if cfg.DataDir == "" {
		return storage.NewInMemoryStore(), nil
	}
	return storage.NewBoltStore(cfg.DataDir)
}

func run() error {
	cfg, err := parseFlags(os.Args[1:])
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.LogLevel, cfg.Development)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	store, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	n := node.NewNode(cfg, store, node.WithLogger(logger), node.WithRegisterer(reg))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The group context ends when a signal arrives or either server fails.
	eg, ctx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		if err := n.Start(); err != nil {
			return err
		}
		return ctx.Err()
	})

	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		metricsServer := &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

		eg.Go(func() error {
			if err := metricsServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		eg.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return metricsServer.Shutdown(shutdownCtx)
		})
	}

	eg.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		return n.Stop()
	})

	err = eg.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
