package metrics

import (
	"math"
	"math/big"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type LockdropMetrics struct {
	operations     *prometheus.CounterVec
	events         *prometheus.CounterVec
	principal      *prometheus.GaugeVec
	weightedShare  prometheus.Gauge
	poolShares     prometheus.Gauge
	claimed        *prometheus.GaugeVec
	roundingDust   *prometheus.GaugeVec
	auction        *prometheus.GaugeVec
	phase          prometheus.Gauge
	downstreamFail *prometheus.CounterVec
}

var (
	lockdropOnce     sync.Once
	lockdropRegistry *LockdropMetrics
)

// Lockdrop returns the process-wide lockdrop metrics registry.
func Lockdrop() *LockdropMetrics {
	lockdropOnce.Do(func() {
		lockdropRegistry = &LockdropMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "lockdrop_operations_total",
				Help: "Count of lockdrop operations by name and outcome.",
			}, []string{"operation", "outcome"}),
			events: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "lockdrop_events_total",
				Help: "Count of committed events by type.",
			}, []string{"type"}),
			principal: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "lockdrop_principal",
				Help: "Principal totals in base units, split into deposited and migrated.",
			}, []string{"kind"}),
			weightedShare: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "lockdrop_weighted_share_total",
				Help: "Sum of principal multiplied by scaled duration weight.",
			}),
			poolShares: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "lockdrop_pool_shares_minted",
				Help: "Pool-share tokens minted at migration.",
			}),
			claimed: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "lockdrop_claimed_total",
				Help: "Claimed amounts by asset kind.",
			}, []string{"asset"}),
			roundingDust: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "lockdrop_rounding_dust",
				Help: "Undistributable remainder left by floor division, by asset kind.",
			}, []string{"asset"}),
			auction: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "lockdrop_auction_rewards",
				Help: "Rewards delegated to and returned by the auction contract.",
			}, []string{"direction"}),
			phase: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "lockdrop_phase",
				Help: "Current lockdrop phase ordinal.",
			}),
			downstreamFail: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "lockdrop_downstream_failures_total",
				Help: "Count of failed collaborator calls by operation.",
			}, []string{"operation"}),
		}
		prometheus.MustRegister(
			lockdropRegistry.operations,
			lockdropRegistry.events,
			lockdropRegistry.principal,
			lockdropRegistry.weightedShare,
			lockdropRegistry.poolShares,
			lockdropRegistry.claimed,
			lockdropRegistry.roundingDust,
			lockdropRegistry.auction,
			lockdropRegistry.phase,
			lockdropRegistry.downstreamFail,
		)
	})
	return lockdropRegistry
}

func (m *LockdropMetrics) ObserveOperation(operation string, err error) {
	if m == nil {
		return
	}
	if operation == "" {
		operation = "unknown"
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.operations.WithLabelValues(operation, outcome).Inc()
}

func (m *LockdropMetrics) IncEvent(eventType string) {
	if m == nil {
		return
	}
	if eventType == "" {
		eventType = "unknown"
	}
	m.events.WithLabelValues(eventType).Inc()
}

func (m *LockdropMetrics) IncDownstreamFailure(operation string) {
	if m == nil {
		return
	}
	m.downstreamFail.WithLabelValues(operation).Inc()
}

// Snapshot carries the aggregate figures published after each commit.
type Snapshot struct {
	Phase              int
	PrincipalDeposited *big.Int
	PrincipalMigrated  *big.Int
	WeightedShare      *big.Int
	PoolSharesMinted   *big.Int
	RewardsClaimed     *big.Int
	PoolSharesClaimed  *big.Int
	RewardsDelegated   *big.Int
	RewardsReturned    *big.Int
	RewardDust         *big.Int
	PoolShareDust      *big.Int
}

func (m *LockdropMetrics) Record(s Snapshot) {
	if m == nil {
		return
	}
	m.phase.Set(float64(s.Phase))
	m.principal.WithLabelValues("deposited").Set(BigToFloat(s.PrincipalDeposited))
	m.principal.WithLabelValues("migrated").Set(BigToFloat(s.PrincipalMigrated))
	m.weightedShare.Set(BigToFloat(s.WeightedShare))
	m.poolShares.Set(BigToFloat(s.PoolSharesMinted))
	m.claimed.WithLabelValues("reward").Set(BigToFloat(s.RewardsClaimed))
	m.claimed.WithLabelValues("pool_share").Set(BigToFloat(s.PoolSharesClaimed))
	m.auction.WithLabelValues("delegated").Set(BigToFloat(s.RewardsDelegated))
	m.auction.WithLabelValues("returned").Set(BigToFloat(s.RewardsReturned))
	m.roundingDust.WithLabelValues("reward").Set(BigToFloat(s.RewardDust))
	m.roundingDust.WithLabelValues("pool_share").Set(BigToFloat(s.PoolShareDust))
}

// BigToFloat converts a base-unit amount for gauge export. Precision loss above
// 2^53 is accepted.
func BigToFloat(value *big.Int) float64 {
	if value == nil {
		return 0
	}
	floatVal, acc := new(big.Float).SetInt(value).Float64()
	if acc != big.Exact {
		if math.IsNaN(floatVal) || math.IsInf(floatVal, 0) {
			return 0
		}
	}
	return floatVal
}
