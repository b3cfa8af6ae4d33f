// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// NodeMetrics is the set of prometheus collectors a running node exposes:
// consensus-round progress, vote/notarization traffic, RPC activity, and
// gossip traffic.
type NodeMetrics struct {
	Registry prometheus.Registerer

	CurrentRound     prometheus.Gauge
	FinalityHeight   prometheus.Gauge
	RoundTimeouts    prometheus.Counter
	ForkedSignatures prometheus.Counter
	RewindsApplied   prometheus.Counter

	VotesReceived       *prometheus.CounterVec
	NotarizedBlocksSeen *prometheus.CounterVec

	RPCRequestsTotal  *prometheus.CounterVec
	RPCRequestLatency *prometheus.HistogramVec

	GossipPushesSent *prometheus.CounterVec
	GossipPullsSent  *prometheus.CounterVec
}

// NewNodeMetrics constructs and registers every collector against reg.
// Registration errors are collected so one bad metric doesn't stop the rest
// from registering; the caller decides whether to treat Errs.Err as fatal.
func NewNodeMetrics(reg prometheus.Registerer) (*NodeMetrics, error) {
	m := &NodeMetrics{
		Registry: reg,
		CurrentRound: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "bfte",
			Name:      "current_round",
			Help:      "Current consensus round this node has reached.",
		}),
		FinalityHeight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "bfte",
			Name:      "finality_height",
			Help:      "Latest federation-wide derived finality height.",
		}),
		RoundTimeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bfte",
			Name:      "round_timeouts_total",
			Help:      "Number of self-timeouts that fired while waiting on a round.",
		}),
		ForkedSignatures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bfte",
			Name:      "forked_signatures_total",
			Help:      "Number of conflicting second signatures observed from a peer at one round.",
		}),
		RewindsApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bfte",
			Name:      "rewinds_applied_total",
			Help:      "Number of one-step fork rewinds applied to the notarized chain.",
		}),
		VotesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bfte",
			Name:      "votes_received_total",
			Help:      "Votes received, by kind (proposal, vote, dummy).",
		}, []string{"kind"}),
		NotarizedBlocksSeen: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bfte",
			Name:      "notarized_blocks_seen_total",
			Help:      "Notarized blocks accepted, by outcome (extend, duplicate, rewind).",
		}, []string{"outcome"}),
		RPCRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bfte",
			Name:      "rpc_requests_total",
			Help:      "RPC requests issued, by method and outcome.",
		}, []string{"method", "outcome"}),
		RPCRequestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "bfte",
			Name:      "rpc_request_latency_seconds",
			Help:      "RPC round-trip latency, by method.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		GossipPushesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bfte",
			Name:      "gossip_pushes_total",
			Help:      "Address-update pushes sent, by outcome.",
		}, []string{"outcome"}),
		GossipPullsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bfte",
			Name:      "gossip_pulls_total",
			Help:      "Address-update pulls sent, by outcome.",
		}, []string{"outcome"}),
	}

	var errs Errs
	for _, c := range []prometheus.Collector{
		m.CurrentRound, m.FinalityHeight, m.RoundTimeouts, m.ForkedSignatures,
		m.RewindsApplied, m.VotesReceived, m.NotarizedBlocksSeen,
		m.RPCRequestsTotal, m.RPCRequestLatency, m.GossipPushesSent, m.GossipPullsSent,
	} {
		errs.Add(reg.Register(c))
	}
	if errs.Err != nil {
		return nil, errs.Err
	}
	return m, nil
}

// Register registers an additional prometheus collector against the same
// registry, for callers (e.g. store or driver) that expose their own.
func (m *NodeMetrics) Register(collector prometheus.Collector) error {
	return m.Registry.Register(collector)
}
