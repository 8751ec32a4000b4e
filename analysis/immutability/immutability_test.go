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
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/awslabs/ar-immutability/analysis/config"
	"github.com/awslabs/ar-immutability/analysis/immutability/shape"
	"github.com/awslabs/ar-immutability/analysis/ir"
	"github.com/awslabs/ar-immutability/analysis/store"
	"github.com/awslabs/ar-immutability/internal/analysistest"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testdata = "testdata"

func loadAnalyzer(t *testing.T, name string, metrics *Metrics) (*ir.Module, *config.Config, *Analyzer) {
	t.Helper()
	m, cfg := analysistest.LoadTest(t, testdata, name)
	a := NewAnalyzer(Inputs{Module: m, Config: cfg, Logger: config.NewLogGroup(cfg), Metrics: metrics})
	return m, cfg, a
}

// analyzeAll analyzes every class of the module and returns the issues found per method symbol
func analyzeAll(t *testing.T, a *Analyzer) map[string]map[string]bool {
	t.Helper()
	found := map[string]map[string]bool{}
	for _, typ := range a.Catalog().Types() {
		res, err := a.AnalyzeClass(context.Background(), 0, typ.Name, a.Catalog().PublicConstMethods(typ))
		require.NoError(t, err, "class %s", typ.Name)
		assert.Positive(t, res.Runs)
		for _, issue := range res.Issues {
			if found[issue.Symbol] == nil {
				found[issue.Symbol] = map[string]bool{}
			}
			found[issue.Symbol][issue.Description] = true
		}
	}
	return found
}

func TestAnnotatedModules(t *testing.T) {
	for _, name := range []string{"escapes", "mutations", "calls", "loops"} {
		t.Run(name, func(t *testing.T) {
			_, _, a := loadAnalyzer(t, name, nil)
			expected := analysistest.GetExpectedIssues(t, filepath.Join(testdata, name+".yaml"))
			assert.Equal(t, expected, analyzeAll(t, a))
		})
	}
}

func TestAnalysisIsDeterministic(t *testing.T) {
	_, _, a := loadAnalyzer(t, "calls", nil)
	first := analyzeAll(t, a)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, analyzeAll(t, a))
	}
}

func TestSingleWorker(t *testing.T) {
	_, cfg, a := loadAnalyzer(t, "mutations", nil)
	cfg.Workers = 1
	expected := analysistest.GetExpectedIssues(t, filepath.Join(testdata, "mutations.yaml"))
	assert.Equal(t, expected, analyzeAll(t, a))
}

func TestIgnoredEdges(t *testing.T) {
	m, cfg, a := loadAnalyzer(t, "calls", nil)
	check := m.Function("_ZNK4Node5checkEv")
	c := newClassAnalysis(a, 0, "class.Node", []*ir.Function{check})

	edges := c.ignoredEdges(check)
	require.Len(t, edges, 2)
	exit := check.Blocks[len(check.Blocks)-1]
	assert.Same(t, exit, edges[0].to)
	assert.Same(t, exit, edges[1].to)
	assert.NotSame(t, edges[0].from, edges[1].from)

	// methods with several exits or a single path to the exit are run once
	assert.Empty(t, c.ignoredEdges(m.Function("_ZNK4Node4bumpEv")))
	assert.Empty(t, c.ignoredEdges(m.Function("_ZNK4Node5printEv")))

	cfg.IgnoredEdgeHeuristic = false
	assert.Empty(t, c.ignoredEdges(check))
}

func TestAnalyzeClassErrors(t *testing.T) {
	m, _, a := loadAnalyzer(t, "calls", nil)

	_, err := a.AnalyzeClass(context.Background(), 0, "class.Node", []*ir.Function{m.Function("_Z6renderi")})
	var ce *ClassError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "class.Node", ce.Class)

	// the first parameter of a method is a pointer to the receiver
	_, err = a.AnalyzeClass(context.Background(), 0, "class.Node", []*ir.Function{m.Function("_Z5FatalPKcz")})
	require.ErrorAs(t, err, &ce)
}

func TestAnalyzeWithStore(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	m, cfg, a := loadAnalyzer(t, "mutations", metrics)
	cfg.PackageID = 3

	s, err := store.OpenInMemory(nil)
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, s.Close()) })
	for _, e := range a.Catalog().Entries() {
		_, err := s.PutClass(cfg.PackageID, e)
		require.NoError(t, err)
	}

	sum, err := Analyze(context.Background(), Inputs{Module: m, Config: cfg, Store: s, Metrics: metrics})
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Classes)
	assert.Equal(t, 5, sum.Methods)
	assert.Equal(t, 3, sum.Issues)
	assert.Zero(t, sum.Failed)
	assert.Positive(t, sum.Runs)

	issues, err := s.Issues("")
	require.NoError(t, err)
	assert.Len(t, issues, 3)
	issues, err = s.Issues("_ZNK5Cache")
	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.Equal(t, "_ZNK5Cache5resetEv", issues[0].Symbol)
	assert.Equal(t, "MUTATEREAD @ _ZNK5Cache5resetEv", issues[0].Description)
	assert.Equal(t, s.RunID().String(), issues[0].RunID)

	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.Issues.WithLabelValues("MUTATEREAD")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Issues.WithLabelValues("ESCAPERET")))
	assert.Equal(t, float64(sum.Runs), testutil.ToFloat64(metrics.Runs))
	assert.Equal(t, float64(sum.Discarded), testutil.ToFloat64(metrics.Discarded))
	assert.Zero(t, testutil.ToFloat64(metrics.ClassesFailed))

	// a second analysis finds the same issues, which are not recorded again
	sum, err = Analyze(context.Background(), Inputs{Module: m, Config: cfg, Store: s, Metrics: metrics})
	require.NoError(t, err)
	assert.Equal(t, 3, sum.Issues)
	issues, err = s.Issues("")
	require.NoError(t, err)
	assert.Len(t, issues, 3)
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.Issues.WithLabelValues("MUTATEREAD")))
}

func TestAnalyzeSkipsClasses(t *testing.T) {
	m, cfg, a := loadAnalyzer(t, "escapes", nil)
	s, err := store.OpenInMemory(nil)
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, s.Close()) })
	for _, e := range a.Catalog().Entries() {
		_, err := s.PutClass(cfg.PackageID, e)
		require.NoError(t, err)
	}
	_, err = s.PutClass(cfg.PackageID, store.Entry{Name: "class.Missing", Methods: []store.MethodEntry{
		{Name: "Missing::get() const", MangledName: "_ZNK7Missing3getEv"},
	}})
	require.NoError(t, err)

	cfg.SkipClasses = []string{"class.Box", "class.Holder"}
	sum, err := Analyze(context.Background(), Inputs{Module: m, Config: cfg, Store: s})
	require.NoError(t, err)
	assert.Equal(t, 3, sum.Skipped)
	assert.Zero(t, sum.Classes)
	assert.Zero(t, sum.Issues)
}

func TestAnalyzeRequiresStore(t *testing.T) {
	m, cfg := analysistest.LoadTest(t, testdata, "escapes")
	_, err := Analyze(context.Background(), Inputs{Module: m, Config: cfg})
	assert.Error(t, err)
}

func TestAnalyzeCancelled(t *testing.T) {
	m, cfg, a := loadAnalyzer(t, "escapes", nil)
	s, err := store.OpenInMemory(nil)
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, s.Close()) })
	for _, e := range a.Catalog().Entries() {
		_, err := s.PutClass(cfg.PackageID, e)
		require.NoError(t, err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Analyze(ctx, Inputs{Module: m, Config: cfg, Store: s})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRecoverInvariant(t *testing.T) {
	run := func(f func()) (err error) {
		defer recoverInvariant(&err)
		f()
		return nil
	}
	err := run(func() { fatalf("no exit in %s", "f") })
	var ie *InvariantError
	require.True(t, errors.As(err, &ie))
	assert.Contains(t, ie.Error(), "no exit in f")

	assert.NoError(t, run(func() {}))
	assert.Panics(t, func() { _ = run(func() { panic("boom") }) })
}

func TestIssueKind(t *testing.T) {
	assert.Equal(t, "ESCAPEARG", issueKind("ESCAPEARG"))
	assert.Equal(t, "MUTATEREAD", issueKind("MUTATEREAD @ _ZNK1A3getEv"))

	// a nil metrics set records nothing
	var m *Metrics
	assert.NotPanics(t, func() {
		m.run(1)
		m.issue("ESCAPERET @ f")
		m.unknownCall()
	})
}

func TestFinalStatesAreDeduplicated(t *testing.T) {
	m, _, a := loadAnalyzer(t, "mutations", nil)
	typ := m.StructType("class.Cache")
	methods := a.Catalog().PublicConstMethods(typ)
	require.Len(t, methods, 3)
	c := newClassAnalysis(a, 0, typ.Name, methods)
	c.typ = typ

	final := shape.CreateEmptyExceptThis(c, methods[0].ThisArg(), typ)
	const workers = 8
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(s *shape.Graph) {
			defer wg.Done()
			c.handleFinalState(s)
		}(final.Clone())
	}
	wg.Wait()

	for _, f := range methods {
		require.Len(t, c.incomplete[f], 1, f.Name())
		assert.Same(t, f.ThisArg(), c.incomplete[f][0].Values()[0])
	}
	assert.Equal(t, (workers-1)*len(methods), c.discarded)
}
