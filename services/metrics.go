package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "pvp"

// Metrics is the set of battle service collectors. A nil *Metrics is valid
// and records nothing, which keeps tests free of registry setup.
type Metrics struct {
	ActiveBattles  prometheus.Gauge
	QueueSize      prometheus.Gauge
	OnlinePlayers  prometheus.Gauge
	BattlesStarted *prometheus.CounterVec
	BattlesEnded   *prometheus.CounterVec
	DroppedEvents  *prometheus.CounterVec
	Settlements    *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ActiveBattles: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "active_battles",
			Help:      "Battles currently in progress",
		}),
		QueueSize: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "queue_size",
			Help:      "Players waiting in the matchmaking queue",
		}),
		OnlinePlayers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "online_players",
			Help:      "Players with a bound connection",
		}),
		BattlesStarted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "battles_started_total",
			Help:      "Battles created, by mode",
		}, []string{"mode"}),
		BattlesEnded: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "battles_ended_total",
			Help:      "Battles ended, by mode and reason",
		}, []string{"mode", "reason"}),
		DroppedEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "dropped_events_total",
			Help:      "Inbound events dropped, by event and reason",
		}, []string{"event", "reason"}),
		Settlements: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "settlements_total",
			Help:      "Settlement attempts, by result",
		}, []string{"result"}),
	}
}

func (m *Metrics) battleStarted(mode string) {
	if m == nil {
		return
	}
	m.BattlesStarted.WithLabelValues(mode).Inc()
	m.ActiveBattles.Inc()
}

func (m *Metrics) battleEnded(mode, reason string) {
	if m == nil {
		return
	}
	m.BattlesEnded.WithLabelValues(mode, reason).Inc()
	m.ActiveBattles.Dec()
}

func (m *Metrics) dropped(event, reason string) {
	if m == nil {
		return
	}
	m.DroppedEvents.WithLabelValues(event, reason).Inc()
}

func (m *Metrics) queueSize(n int) {
	if m == nil {
		return
	}
	m.QueueSize.Set(float64(n))
}

func (m *Metrics) online(n int) {
	if m == nil {
		return
	}
	m.OnlinePlayers.Set(float64(n))
}

// SettlementResult counts one settlement attempt outcome: ok, retry, failed, dropped.
func (m *Metrics) SettlementResult(result string) {
	if m == nil {
		return
	}
	m.Settlements.WithLabelValues(result).Inc()
}
