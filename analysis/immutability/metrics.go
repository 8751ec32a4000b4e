// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package immutability

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the counters of the analysis. A nil *Metrics records nothing.
type Metrics struct {
	Runs          prometheus.Counter
	Discarded     prometheus.Counter
	Issues        *prometheus.CounterVec
	UnknownCalls  prometheus.Counter
	ClassesFailed prometheus.Counter
	MethodRun     prometheus.Histogram
}

// NewMetrics creates the metrics of the analysis and registers them on reg. If reg is nil, the metrics are not
// registered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Runs: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "immutability",
			Name:      "runs_total",
			Help:      "Number of method runs from an initial state",
		}),
		Discarded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "immutability",
			Name:      "states_discarded_total",
			Help:      "Number of final states discarded because a more general initial state was known",
		}),
		Issues: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "immutability",
			Name:      "issues_total",
			Help:      "Number of new issues, by kind",
		}, []string{"kind"}),
		UnknownCalls: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "immutability",
			Name:      "unknown_calls_total",
			Help:      "Number of calls handled as calls to an unknown function",
		}),
		ClassesFailed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "immutability",
			Name:      "classes_failed_total",
			Help:      "Number of classes whose analysis was aborted",
		}),
		MethodRun: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "immutability",
			Name:      "method_run_seconds",
			Help:      "Duration of the analysis of a method from one initial state",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 10),
		}),
	}
}

// issueKind returns the kind of an issue description: its first word
func issueKind(desc string) string {
	kind, _, _ := strings.Cut(desc, " ")
	return kind
}

func (m *Metrics) run(seconds float64) {
	if m == nil {
		return
	}
	m.Runs.Inc()
	m.MethodRun.Observe(seconds)
}

func (m *Metrics) discarded() {
	if m != nil {
		m.Discarded.Inc()
	}
}

func (m *Metrics) issue(desc string) {
	if m != nil {
		m.Issues.WithLabelValues(issueKind(desc)).Inc()
	}
}

func (m *Metrics) unknownCall() {
	if m != nil {
		m.UnknownCalls.Inc()
	}
}

func (m *Metrics) classFailed() {
	if m != nil {
		m.ClassesFailed.Inc()
	}
}
