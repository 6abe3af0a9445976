package monitoring

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/23skdu/longbow-bodkin/internal/device"
	"github.com/23skdu/longbow-bodkin/internal/logger"
	"github.com/23skdu/longbow-bodkin/internal/metrics"
	"github.com/23skdu/longbow-bodkin/internal/ops"
	"github.com/23skdu/longbow-bodkin/internal/primitive"
	"github.com/23skdu/longbow-bodkin/internal/simd"
)

// HealthStatus is the payload of the /status endpoint.
type HealthStatus struct {
	Status    string          `json:"status"`
	Timestamp time.Time       `json:"timestamp"`
	Uptime    time.Duration   `json:"uptime"`
	System    SystemInfo      `json:"system"`
	Kernels   KernelInfo      `json:"kernels"`
	Cache     primitive.Stats `json:"primitive_cache"`
}

// SystemInfo contains process-level information
type SystemInfo struct {
	GoVersion    string `json:"go_version"`
	OS           string `json:"os"`
	Arch         string `json:"arch"`
	NumCPU       int    `json:"num_cpu"`
	MemoryMB     int    `json:"memory_mb"`
	MemoryUsedMB int    `json:"memory_used_mb"`
}

// KernelInfo contains kernel-layer information
type KernelInfo struct {
	Registered     []string `json:"registered"`
	TotalCalls     int64    `json:"total_calls"`
	PoolBytes      int64    `json:"pool_bytes"`
	Threads        int      `json:"threads"`
	CgoAccelerated bool     `json:"cgo_accelerated"`
}

// Monitor serves the health, status and metrics endpoints for the kernel
// runtime.
type Monitor struct {
	startTime time.Time
	threads   int
	server    *http.Server
	log       *logger.Logger
}

func NewMonitor(threads int) *Monitor {
	return &Monitor{
		startTime: time.Now(),
		threads:   threads,
		log:       logger.Log.With("monitor"),
	}
}

// Start begins serving on addr. Blocks until the server exits.
func (m *Monitor) Start(addr string) error {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", m.handleHealth)
	mux.HandleFunc("/healthz", m.handleHealth) // Kubernetes compatibility
	mux.HandleFunc("/status", m.handleStatus)
	mux.Handle("/metrics", promhttp.Handler())

	m.server = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	m.log.Info("health monitor starting", "addr", addr)
	return m.server.ListenAndServe()
}

// Stop shuts the server down.
func (m *Monitor) Stop(ctx context.Context) error {
	if m.server != nil {
		return m.server.Shutdown(ctx)
	}
	return nil
}

func (m *Monitor) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

func (m *Monitor) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(m.status())
}

func (m *Monitor) status() HealthStatus {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	return HealthStatus{
		Status:    "healthy",
		Timestamp: time.Now(),
		Uptime:    time.Since(m.startTime),
		System: SystemInfo{
			GoVersion:    runtime.Version(),
			OS:           runtime.GOOS,
			Arch:         runtime.GOARCH,
			NumCPU:       runtime.NumCPU(),
			MemoryMB:     int(ms.Sys / 1024 / 1024),
			MemoryUsedMB: int(ms.Alloc / 1024 / 1024),
		},
		Kernels: KernelInfo{
			Registered:     ops.Names(),
			TotalCalls:     metrics.TotalKernelCalls(),
			PoolBytes:      device.AllocatedBytes(),
			Threads:        m.threads,
			CgoAccelerated: simd.Accelerated(),
		},
		Cache: ops.CacheStats(),
	}
}
