package monitor

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/robaho/go-twime/pkg/common"
)

var (
	connectorActive = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "twime",
		Name:      "connector_active",
		Help:      "1 while the connector reports an active session.",
	}, []string{"account"})

	statusChanges = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "twime",
		Name:      "connector_status_changes_total",
		Help:      "Connector status notifications.",
	}, []string{"account", "active"})
)

// Monitor sits between a connector and its callback. Order and fill events pass through unchanged, the
// connector status is published as the gRPC health of the service named after the account key, and as a
// Prometheus gauge.
type Monitor struct {
	name     string
	callback common.ConnectorCallback
	log      *zap.Logger
	health   *health.Server
	active   prometheus.Gauge

	mu      sync.Mutex
	status  bool
	changed time.Time
	servers []func()
	closed  bool
}

// New returns a monitor for the connector of the given account key. callback may be nil.
func New(name string, callback common.ConnectorCallback, log *zap.Logger) *Monitor {
	if log == nil {
		log = zap.NewNop()
	}
	m := &Monitor{
		name:     name,
		callback: callback,
		log:      log.With(zap.String("account", name)),
		health:   health.NewServer(),
		active:   connectorActive.WithLabelValues(name),
	}
	m.health.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	m.health.SetServingStatus(name, healthpb.HealthCheckResponse_NOT_SERVING)
	m.active.Set(0)
	return m
}

func (m *Monitor) OnOrderStatus(order *common.Order) {
	if m.callback != nil {
		m.callback.OnOrderStatus(order)
	}
}

func (m *Monitor) OnFill(fill *common.Fill) {
	if m.callback != nil {
		m.callback.OnFill(fill)
	}
}

func (m *Monitor) OnConnectorStatus(active bool, at time.Time) {
	m.mu.Lock()
	m.status = active
	m.changed = at
	m.mu.Unlock()

	status := healthpb.HealthCheckResponse_NOT_SERVING
	if active {
		status = healthpb.HealthCheckResponse_SERVING
		m.active.Set(1)
	} else {
		m.active.Set(0)
	}
	m.health.SetServingStatus("", status)
	m.health.SetServingStatus(m.name, status)
	statusChanges.WithLabelValues(m.name, strconv.FormatBool(active)).Inc()
	m.log.Info("connector status", zap.Bool("active", active), zap.Time("at", at))

	if m.callback != nil {
		m.callback.OnConnectorStatus(active, at)
	}
}

// Status returns the last reported connector status and when it was reported
func (m *Monitor) Status() (bool, time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status, m.changed
}

// Handler serves /metrics and a plain /healthz that answers 503 while the connector is inactive.
func (m *Monitor) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if active, _ := m.Status(); !active {
			http.Error(w, "inactive", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok\n"))
	})
	return mux
}

// ServeGRPC registers the health service on a new gRPC server and serves it on l until Close
func (m *Monitor) ServeGRPC(l net.Listener) error {
	s := grpc.NewServer()
	healthpb.RegisterHealthServer(s, m.health)
	if !m.track(func() { s.Stop() }) {
		l.Close()
		return errors.New("monitor closed")
	}
	go func() {
		if err := s.Serve(l); err != nil {
			m.log.Warn("grpc health server", zap.Error(err))
		}
	}()
	return nil
}

// ServeHTTP serves Handler on l until Close
func (m *Monitor) ServeHTTP(l net.Listener) error {
	s := &http.Server{Handler: m.Handler(), ReadHeaderTimeout: 5 * time.Second}
	if !m.track(func() { s.Close() }) {
		l.Close()
		return errors.New("monitor closed")
	}
	go func() {
		if err := s.Serve(l); err != nil && err != http.ErrServerClosed {
			m.log.Warn("metrics server", zap.Error(err))
		}
	}()
	return nil
}

// Listen starts the gRPC health server and the metrics server. An empty address skips that server.
func (m *Monitor) Listen(grpcAddr, httpAddr string) error {
	if grpcAddr != "" {
		l, err := net.Listen("tcp", grpcAddr)
		if err != nil {
			return errors.Wrapf(err, "grpc health listen %s", grpcAddr)
		}
		if err := m.ServeGRPC(l); err != nil {
			return err
		}
		m.log.Info("grpc health listening", zap.Stringer("addr", l.Addr()))
	}
	if httpAddr != "" {
		l, err := net.Listen("tcp", httpAddr)
		if err != nil {
			return errors.Wrapf(err, "metrics listen %s", httpAddr)
		}
		if err := m.ServeHTTP(l); err != nil {
			return err
		}
		m.log.Info("metrics listening", zap.Stringer("addr", l.Addr()))
	}
	return nil
}

func (m *Monitor) track(stop func()) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false
	}
	m.servers = append(m.servers, stop)
	return true
}

// Close stops the servers and marks every watched service as shut down
func (m *Monitor) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	servers := m.servers
	m.servers = nil
	m.mu.Unlock()

	m.health.Shutdown()
	for _, stop := range servers {
		stop()
	}
}
