// Command rdr2netflow bridges Cisco SCE RDR session reports into NetFlow v5
// datagrams for a collector, optionally repeating the raw inbound stream to
// auxiliary peers and archiving decoded records to Postgres.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/cisco-sce/rdr2netflow/internal/bridge"
	"github.com/cisco-sce/rdr2netflow/internal/config"
	"github.com/cisco-sce/rdr2netflow/internal/telemetry"
	"github.com/cisco-sce/rdr2netflow/pkg/archive"
	"github.com/cisco-sce/rdr2netflow/pkg/ipfilter"
	"github.com/cisco-sce/rdr2netflow/pkg/repeater"
)

const version = "1.0.0"

// repeaterFlags collects repeated -R host/port values into a slice, the
// standard idiom for a flag that may appear more than once.
type repeaterFlags []string

func (r *repeaterFlags) String() string { return fmt.Sprint([]string(*r)) }

func (r *repeaterFlags) Set(value string) error {
	*r = append(*r, config.ParseRepeaterFlag(value))
	return nil
}

func main() {
	os.Exit(run())
}

func run() int {
	var (
		listenAddr   = flag.String("s", "", "listener bind address (overrides config)")
		listenPort   = flag.Int("p", 0, "listener port (overrides config)")
		collectorIP  = flag.String("d", "", "collector address (overrides config)")
		collectorPt  = flag.Int("P", 0, "collector port (overrides config)")
		filterSpec   = flag.String("F", "", "exclusion filter, net[/len][,net[/len]...]")
		bufSize      = flag.Int("b", 0, "socket send/recv buffer hint in bytes")
		verbosity    = flag.String("V", "", "log level (debug, info, warn, error)")
		configPath   = flag.String("config", "", "path to a rdr2netflow.yaml configuration file")
		showVersion  = flag.Bool("v", false, "print the version and exit")
		showVersion2 = flag.Bool("version", false, "print the version and exit")
	)
	var repeaters repeaterFlags
	flag.Var(&repeaters, "R", "repeater endpoint host/port, may repeat")
	flag.Parse()

	if *showVersion || *showVersion2 {
		fmt.Println("rdr2netflow " + version)
		return 0
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "rdr2netflow: %v\n", err)
		return 1
	}
	if *listenAddr != "" {
		cfg.Listener.Addr = *listenAddr
	}
	if *listenPort != 0 {
		cfg.Listener.Port = *listenPort
	}
	if *collectorIP != "" {
		cfg.Collector.Addr = *collectorIP
	}
	if *collectorPt != 0 {
		cfg.Collector.Port = *collectorPt
	}
	if *filterSpec != "" {
		cfg.Filter = *filterSpec
	}
	if *bufSize > 0 {
		cfg.SocketBufferSize = *bufSize
	}
	if *verbosity != "" {
		cfg.LogLevel = *verbosity
	}
	if len(repeaters) > 0 {
		cfg.Repeaters = repeaters
	}

	logger, err := telemetry.NewLogger(cfg.LogLevel, false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "rdr2netflow: %v\n", err)
		return 1
	}
	defer logger.Sync()

	filter, err := ipfilter.ParseList(cfg.Filter)
	if err != nil {
		logger.Error("invalid filter", zap.Error(err))
		return 1
	}

	repeaterSet := repeater.NewSet(cfg.Repeaters, logger)

	var arcBatcher *archive.Batcher
	var arcClient *archive.Client
	if cfg.Archive.Enabled {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		arcClient, err = archive.NewClient(ctx, archive.Config{
			Host:     cfg.Archive.Host,
			Port:     cfg.Archive.Port,
			Database: cfg.Archive.Database,
			User:     cfg.Archive.User,
			Password: cfg.Archive.Password,
			PoolSize: cfg.Archive.PoolSize,
		})
		cancel()
		if err != nil {
			logger.Error("archive connection failed", zap.Error(err))
			return 1
		}
		defer arcClient.Close()
		arcBatcher = archive.NewBatcher(arcClient, logger, 100, 5*time.Second)
	}

	lc := net.ListenConfig{}
	if cfg.SocketBufferSize > 0 {
		lc.Control = socketBufferControl(cfg.SocketBufferSize)
	}
	ln, err := lc.Listen(context.Background(), "tcp", cfg.ListenAddr())
	if err != nil {
		logger.Error("listen failed", zap.String("addr", cfg.ListenAddr()), zap.Error(err))
		return 1
	}

	b, err := bridge.New(logger, cfg.CollectorAddr(), filter, repeaterSet, arcBatcher)
	if err != nil {
		logger.Error("collector dial failed", zap.String("addr", cfg.CollectorAddr()), zap.Error(err))
		ln.Close()
		return 1
	}

	logger.Info("rdr2netflow starting",
		zap.String("listen", cfg.ListenAddr()),
		zap.String("collector", cfg.CollectorAddr()),
		zap.Strings("repeaters", cfg.Repeaters),
		zap.String("filter", cfg.Filter),
	)

	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)

	runDone := make(chan error, 1)
	go func() { runDone <- b.Run(ctx, ln) }()

	<-sigChan
	logger.Info("shutdown signal received")
	cancel()
	ln.Close()

	if err := <-runDone; err != nil {
		logger.Warn("bridge run returned an error during shutdown", zap.Error(err))
	}
	logger.Info("rdr2netflow stopped")
	return 0
}
