package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	StakesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stakegate_stakes_total",
		Help: "The total number of stake operations processed",
	}, []string{"status", "tier"})

	WithdrawalsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stakegate_withdrawals_total",
		Help: "The total number of withdrawal operations processed",
	}, []string{"status"})

	GuardRejects = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stakegate_guard_rejects_total",
		Help: "Total ledger guard rejections",
	}, []string{"reason"})

	TransferFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stakegate_transfer_failures_total",
		Help: "Total external asset transfer failures",
	}, []string{"direction"})

	LatencyBucket = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "stakegate_latency_bucket",
		Help:    "Request latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})
)
