package telemetry

import (
	"sync"

	"go.opentelemetry.io/otel/metric"
)

// Metric names
const (
	MetricRebalancesStartedTotal = "rebalancer_rebalances_started_total"
	MetricBidsExecutedTotal      = "rebalancer_bids_executed_total"
	MetricBidsRejectedTotal      = "rebalancer_bids_rejected_total"
	MetricTargetsRaisedTotal     = "rebalancer_targets_raised_total"
	MetricEarlyUnlocksTotal      = "rebalancer_early_unlocks_total"
	MetricBidVolumeQuote         = "rebalancer_bid_volume_quote_total"
	MetricProtocolFeesTotal      = "rebalancer_protocol_fees_total"
	MetricSettlementLatency      = "rebalancer_settlement_latency_seconds"
	MetricOpenRebalances         = "rebalancer_open_rebalances"
)

// MetricsHolder holds initialized instruments
type MetricsHolder struct {
	RebalancesStartedTotal metric.Int64Counter
	BidsExecutedTotal      metric.Int64Counter
	BidsRejectedTotal      metric.Int64Counter
	TargetsRaisedTotal     metric.Int64Counter
	EarlyUnlocksTotal      metric.Int64Counter
	BidVolumeQuote         metric.Float64Counter
	ProtocolFeesTotal      metric.Float64Counter
	SettlementLatency      metric.Float64Histogram
	OpenRebalances         metric.Int64UpDownCounter
}

var (
	globalMetrics *MetricsHolder
	initOnce      sync.Once
)

// GetGlobalMetrics returns the singleton metrics holder
func GetGlobalMetrics() *MetricsHolder {
	initOnce.Do(func() {
		globalMetrics = &MetricsHolder{}
	})
	return globalMetrics
}

// InitMetrics initializes instruments using the meter
func (m *MetricsHolder) InitMetrics(meter metric.Meter) error {
	var err error

	m.RebalancesStartedTotal, err = meter.Int64Counter(MetricRebalancesStartedTotal,
		metric.WithDescription("Total rebalances started"))
	if err != nil {
		return err
	}

	m.BidsExecutedTotal, err = meter.Int64Counter(MetricBidsExecutedTotal,
		metric.WithDescription("Total bids settled"))
	if err != nil {
		return err
	}

	m.BidsRejectedTotal, err = meter.Int64Counter(MetricBidsRejectedTotal,
		metric.WithDescription("Total bids rejected before settlement"))
	if err != nil {
		return err
	}

	m.TargetsRaisedTotal, err = meter.Int64Counter(MetricTargetsRaisedTotal,
		metric.WithDescription("Total successful raiseAssetTargets calls"))
	if err != nil {
		return err
	}

	m.EarlyUnlocksTotal, err = meter.Int64Counter(MetricEarlyUnlocksTotal,
		metric.WithDescription("Total locked rebalances ended early"))
	if err != nil {
		return err
	}

	m.BidVolumeQuote, err = meter.Float64Counter(MetricBidVolumeQuote,
		metric.WithDescription("Cumulative bid volume in quote asset terms"))
	if err != nil {
		return err
	}

	m.ProtocolFeesTotal, err = meter.Float64Counter(MetricProtocolFeesTotal,
		metric.WithDescription("Cumulative protocol fees collected"))
	if err != nil {
		return err
	}

	m.SettlementLatency, err = meter.Float64Histogram(MetricSettlementLatency,
		metric.WithDescription("Latency of bid settlement in seconds"))
	if err != nil {
		return err
	}

	m.OpenRebalances, err = meter.Int64UpDownCounter(MetricOpenRebalances,
		metric.WithDescription("Rebalances currently in progress"))
	if err != nil {
		return err
	}

	return nil
}
