package watcher

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"vxlancni/consts"
)

// RegisterMetrics exposes the watcher counters on reg.
func (w *PodLocationWatcher) RegisterMetrics(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "vxlancni",
			Subsystem: "watcher",
			Name:      "events_total",
			Help:      "Pod location watch events received.",
		}, func() float64 { return float64(w.events.Load()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "vxlancni",
			Subsystem: "watcher",
			Name:      "ignored_total",
			Help:      "Pod location entries ignored because they were malformed.",
		}, func() float64 { return float64(w.ignored.Load()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "vxlancni",
			Subsystem: "watcher",
			Name:      "synced",
			Help:      "1 once the initial pod location sync is done.",
		}, func() float64 {
			if w.synced.Load() {
				return 1
			}
			return 0
		}),
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return errors.Wrap(err, "register watcher metrics")
		}
	}
	return nil
}

// HealthHandler answers OK once the initial sync is done.
func (w *PodLocationWatcher) HealthHandler() http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "application/json")
		if !w.Synced() {
			rw.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(rw).Encode(w.Stats())
	})
}

// ServeHealth runs the health check and metrics endpoints of the sync
// process until ctx is done.
func ServeHealth(ctx context.Context, addr string, w *PodLocationWatcher, gatherer prometheus.Gatherer) error {
	mux := http.NewServeMux()
	mux.Handle(consts.DEFAULT_HEALTH_PATH, w.HealthHandler())
	mux.Handle(consts.DEFAULT_METRICS_PATH, promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(sctx)
	}()

	log.WithField("addr", addr).Info("开始启动健康检查的服务")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return errors.Wrap(err, "启动监听子进程失败")
	}
	return nil
}
