package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ubms_requests_total",
			Help: "Service requests by lifecycle stage and action",
		},
		[]string{"action", "status"}, // connect|disconnect|modify , Pending|Approved|Rejected
	)

	IDsAllocated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ubms_ids_allocated_total",
			Help: "Committed sequential identifiers by entity",
		},
		[]string{"entity"},
	)

	ChargeUpdates = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ubms_charge_updates_total",
			Help: "Charge table batch updates by result",
		},
		[]string{"result"}, // ok|rejected|error
	)

	Provisioning = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ubms_provisioning_total",
			Help: "Meter provisioning outcomes of approved requests",
		},
		[]string{"result"}, // created|deactivated|deferred|failed
	)

	NotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ubms_notifications_total",
			Help: "Customer notifications by stage",
		},
		[]string{"stage"}, // sent|failed|skipped
	)

	OutboxRelayed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ubms_outbox_relayed_total",
			Help: "Outbox events relayed to Kafka by result",
		},
		[]string{"result"}, // ok|error
	)
)

var registerOnce sync.Once

// MustRegister registers all collectors once per process.
func MustRegister(r prometheus.Registerer) {
	registerOnce.Do(func() {
		r.MustRegister(
			RequestsTotal,
			IDsAllocated,
			ChargeUpdates,
			Provisioning,
			NotificationsTotal,
			OutboxRelayed,
		)
	})
}
