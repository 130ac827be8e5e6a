// Copyright (C) 2025 sage-x-project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// SPDX-License-Identifier: LGPL-3.0-or-later

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PairingsProposed counts proposal records created via propose().
	PairingsProposed = promauto.With(Registry).NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "proposed_total",
		Help:      "Total number of pairing proposals generated.",
	})

	// PairingsSettled counts settlement outcomes, labeled by status.
	PairingsSettled = promauto.With(Registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "settled_total",
		Help:      "Total number of pairing settlements, by outcome.",
	}, []string{"status"})

	// PairingsDeleted counts deletions, labeled by reason.
	PairingsDeleted = promauto.With(Registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "deleted_total",
		Help:      "Total number of pairing deletions, by reason.",
	}, []string{"reason"})

	// PairingsUpdated counts accepted peer-metadata updates.
	PairingsUpdated = promauto.With(Registry).NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "updated_total",
		Help:      "Total number of accepted pairing metadata updates.",
	})

	// RouterDispatched counts inbound JSON-RPC requests routed to a
	// settled or pending topic, labeled by method.
	RouterDispatched = promauto.With(Registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "router_dispatched_total",
		Help:      "Total number of inbound requests dispatched by method.",
	}, []string{"method"})

	// RouterRejected counts inbound requests rejected for lacking
	// permission, labeled by method.
	RouterRejected = promauto.With(Registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "router_rejected_total",
		Help:      "Total number of inbound requests rejected as unauthorized, by method.",
	}, []string{"method"})

	// PublishDuration observes the latency of relay publish calls,
	// labeled by topic kind (pending/settled).
	PublishDuration = promauto.With(Registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "publish_duration_seconds",
		Help:      "Observed latency of relay publish calls.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"topic_kind"})

	// PublishFailures counts relay publish errors, labeled by topic kind.
	PublishFailures = promauto.With(Registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "publish_failures_total",
		Help:      "Total number of relay publish failures, by topic kind.",
	}, []string{"topic_kind"})

	// ActivePairings tracks the current number of settled pairings held
	// by the subscription store.
	ActivePairings = promauto.With(Registry).NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active",
		Help:      "Current number of settled pairings.",
	})
)
