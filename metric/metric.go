/*
 * Copyright 2018 The CovenantSQL Authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package metric exports the prometheus collectors of the chain and a
// lightweight expvar dashboard of recent activity.
package metric

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/version"
)

const namespace = "verichain"

var (
	// BlocksSealed counts sealed blocks.
	BlocksSealed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "blocks_sealed_total",
		Help:      "Number of sealed blocks.",
	})
	// ObjectsIndexed counts objects of sealed blocks.
	ObjectsIndexed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "objects_indexed_total",
		Help:      "Number of objects in sealed blocks.",
	})
	// SealDuration observes block seal latency in seconds.
	SealDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "seal_duration_seconds",
		Help:      "Time spent building and persisting one block.",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
	})
	// ChainHeight is the id of the sealed tip.
	ChainHeight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "chain_height",
		Help:      "Block id of the sealed tip.",
	})
	// Queries counts executed queries by outcome.
	Queries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "queries_total",
		Help:      "Number of executed queries.",
	}, []string{"outcome"})
	// QueryDuration observes query latency in seconds.
	QueryDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "query_duration_seconds",
		Help:      "Time spent answering one query.",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
	})
	// VOSize observes encoded verification object sizes in bytes.
	VOSize = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "vo_size_bytes",
		Help:      "Encoded size of verification objects.",
		Buckets:   prometheus.ExponentialBuckets(256, 4, 10),
	})
	// Verifications counts verifications by status.
	Verifications = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "verifications_total",
		Help:      "Number of verified responses.",
	}, []string{"status"})
	// VerifyDuration observes verification latency in seconds.
	VerifyDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "verify_duration_seconds",
		Help:      "Time spent verifying one response.",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
	})
)

func init() {
	prometheus.MustRegister(
		version.NewCollector(namespace),
		BlocksSealed,
		ObjectsIndexed,
		SealDuration,
		ChainHeight,
		Queries,
		QueryDuration,
		VOSize,
		Verifications,
		VerifyDuration,
	)
}
