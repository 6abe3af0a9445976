package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/23skdu/longbow-bodkin/internal/config"
	"github.com/23skdu/longbow-bodkin/internal/device"
	"github.com/23skdu/longbow-bodkin/internal/flight"
	"github.com/23skdu/longbow-bodkin/internal/logger"
	"github.com/23skdu/longbow-bodkin/internal/monitoring"
	"github.com/23skdu/longbow-bodkin/internal/ops"
)

var (
	host        = flag.String("host", "localhost", "Flight server host")
	port        = flag.Int("port", flight.DefaultPort, "Flight server port")
	ticket      = flag.String("ticket", "", "Ticket of the input tensor")
	outPath     = flag.String("out", "", "Descriptor path for the result")
	kernelName  = flag.String("kernel", "Softmax", "Kernel to apply")
	threads     = flag.Int("threads", 0, "Worker threads (0 = all CPUs)")
	monitorAddr = flag.String("monitor", "", "Health/metrics listen address (empty = disabled)")
	logLevel    = flag.String("log-level", "info", "Log level")
	logFormat   = flag.String("log-format", "console", "Log format (console or json)")
)

func main() {
	flag.Parse()
	logger.Setup(*logLevel, *logFormat)

	if *ticket == "" || *outPath == "" {
		log.Fatalf("both -ticket and -out are required")
	}

	cfg := config.Default()
	if *threads > 0 {
		cfg.NumThreads = *threads
	}
	cfg.MonitorAddr = *monitorAddr
	if err := cfg.Validate(); err != nil {
		log.Fatalf("bad config: %v", err)
	}
	ops.Configure(cfg)

	dev := device.NewContext(cfg.NumThreads)
	defer dev.Free()

	var monitor *monitoring.Monitor
	if cfg.MonitorAddr != "" {
		monitor = monitoring.NewMonitor(cfg.NumThreads)
		go func() {
			if err := monitor.Start(cfg.MonitorAddr); err != nil {
				logger.Log.Err(err, "monitor stopped")
			}
		}()
	}

	ctx := context.Background()
	client := flight.NewClient(*host, *port)
	if err := client.Connect(ctx); err != nil {
		log.Fatalf("flight connect: %v", err)
	}
	defer client.Close()

	worker := flight.NewWorker(client, dev)
	if err := worker.Process(ctx, *kernelName, *ticket, *outPath); err != nil {
		log.Fatalf("process: %v", err)
	}

	if monitor != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := monitor.Stop(shutdownCtx); err != nil {
			logger.Log.Err(err, "monitor shutdown")
		}
	}

	stats := ops.CacheStats()
	logger.Log.Info("done",
		"kernel", *kernelName,
		"cache_hits", stats.Hits,
		"cache_misses", stats.Misses,
	)
}
