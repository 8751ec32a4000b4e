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

// Package immutability checks that the public const methods of C++ classes do not modify the state of their
// receiver after another method has observed it, and do not let the caller reach the receiver state through their
// arguments or their returned pointer.
//
// The analysis of a class starts each method from a state where only the receiver is known. The state of the
// receiver at the exit of a method becomes an initial state of every method of the class, until the initial states
// of all the methods are covered by the states already analyzed. The abstract states are the graphs of package
// shape; the bodies of the callees are analyzed at each call site.
package immutability

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/awslabs/ar-immutability/analysis/catalog"
	"github.com/awslabs/ar-immutability/analysis/config"
	"github.com/awslabs/ar-immutability/analysis/demangle"
	"github.com/awslabs/ar-immutability/analysis/ir"
	"github.com/awslabs/ar-immutability/analysis/memquery"
	"github.com/awslabs/ar-immutability/analysis/store"
	"github.com/awslabs/ar-immutability/internal/funcutil"
	"github.com/puzpuzpuz/xsync/v4"
	"golang.org/x/exp/slices"
)

// Issue is a violation found in a method
type Issue struct {
	Symbol      string
	Description string
}

func (i Issue) String() string {
	return i.Symbol + ": " + i.Description
}

// ClassResult is the result of the analysis of one class
type ClassResult struct {
	Name      string
	Methods   int
	Runs      int
	Discarded int
	Issues    []Issue
}

// Summary counts what the analysis of a package did
type Summary struct {
	Classes   int
	Skipped   int
	Failed    int
	Methods   int
	Runs      int
	Discarded int
	Issues    int
}

// Inputs are the inputs of the analysis of a package
type Inputs struct {
	Module *ir.Module
	Config *config.Config
	Logger *config.LogGroup
	// Store holds the classes of the package and receives the issues
	Store *store.Store
	// Metrics is optional
	Metrics *Metrics
	// Catalog and Memory are computed from the module if nil
	Catalog *catalog.Catalog
	Memory  *memquery.Query
}

// Analyzer holds the facts of a module shared by the analyses of its classes. It is read-only once created, except
// for the cache of control-flow facts, which is safe for concurrent use.
type Analyzer struct {
	module  *ir.Module
	config  *config.Config
	logger  *config.LogGroup
	catalog *catalog.Catalog
	memory  *memquery.Query
	store   *store.Store
	metrics *Metrics
	cfgs    *xsync.Map[*ir.Function, *ir.CFG]
}

// NewAnalyzer returns the analyzer of the module of in. The store may be nil, in which case the issues are only
// returned in the class results.
func NewAnalyzer(in Inputs) *Analyzer {
	cfg := in.Config
	if cfg == nil {
		cfg = config.NewDefault()
	}
	logger := in.Logger
	if logger == nil {
		logger = config.NewLogGroup(cfg)
	}
	cat := in.Catalog
	if cat == nil {
		cat = catalog.Build(in.Module, demangle.New(), logger)
	}
	mem := in.Memory
	if mem == nil {
		mem = memquery.New(in.Module, cfg, logger)
	}
	return &Analyzer{
		module:  in.Module,
		config:  cfg,
		logger:  logger,
		catalog: cat,
		memory:  mem,
		store:   in.Store,
		metrics: in.Metrics,
		cfgs:    xsync.NewMap[*ir.Function, *ir.CFG](),
	}
}

// Catalog returns the class catalog of the module
func (a *Analyzer) Catalog() *catalog.Catalog { return a.catalog }

// cfg returns the control-flow facts of f
func (a *Analyzer) cfg(f *ir.Function) *ir.CFG {
	if c, ok := a.cfgs.Load(f); ok {
		return c
	}
	c, _ := a.cfgs.LoadOrStore(f, ir.NewCFG(f))
	return c
}

// AnalyzeClass analyzes the methods of the class name, whose identifier in the store is id. The methods must have
// a body and a receiver.
func (a *Analyzer) AnalyzeClass(ctx context.Context, id int64, name string, methods []*ir.Function) (*ClassResult,
	error) {
	for _, f := range methods {
		if f.Empty() {
			return nil, &ClassError{Class: name, Err: fmt.Errorf("method %s has no body", f.Name())}
		}
	}
	t, err := classType(a.module, methods)
	if err != nil {
		return nil, &ClassError{Class: name, Err: err}
	}
	c := newClassAnalysis(a, id, name, methods)
	c.typ = t
	c.logger.Infof("%d methods, receiver type %s\n", len(methods), t.Name)
	c.logger.Debugf("methods: %s\n", strings.Join(funcutil.Map(methods, (*ir.Function).Name), ", "))
	if err := c.run(ctx); err != nil {
		a.metrics.classFailed()
		return nil, &ClassError{Class: name, Err: err}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	slices.SortFunc(c.issues, func(x, y Issue) bool {
		return x.Symbol < y.Symbol || (x.Symbol == y.Symbol && x.Description < y.Description)
	})
	return &ClassResult{
		Name:      name,
		Methods:   len(methods),
		Runs:      c.runs,
		Discarded: c.discarded,
		Issues:    c.issues,
	}, nil
}

// methodsOf resolves the methods of the entry in the module. The second result is false if the class must be
// skipped.
func (a *Analyzer) methodsOf(e store.Entry) ([]*ir.Function, bool) {
	var methods []*ir.Function
	for _, me := range e.Methods {
		f := a.module.Function(me.MangledName)
		if f == nil || f.Empty() {
			a.logger.Warnf("class %s: method %s has no body, skipping the class\n", e.Name, me.MangledName)
			return nil, false
		}
		if a.isSkippedMethod(f) {
			a.logger.Debugf("class %s: skipping method %s\n", e.Name, f.Name())
			continue
		}
		methods = append(methods, f)
	}
	return methods, len(methods) > 0
}

func (a *Analyzer) isSkippedMethod(f *ir.Function) bool {
	return funcutil.Exists(a.config.SkipMethodSubstrings, func(s string) bool {
		return s != "" && strings.Contains(f.Name(), s)
	})
}

// Analyze analyzes the classes of the package Config.PackageID recorded in the store. A class whose analysis fails
// is logged and counted; the analysis continues with the next class.
func Analyze(ctx context.Context, in Inputs) (Summary, error) {
	var sum Summary
	failed := map[string]bool{}
	if in.Store == nil {
		return sum, errors.New("the analysis of a package requires a store")
	}
	a := NewAnalyzer(in)
	entries, err := a.store.PublicMethods(a.config.PackageID)
	if err != nil {
		return sum, err
	}
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		if a.config.IsSkippedClass(e.Name) {
			a.logger.Infof("skipping class %s\n", e.Name)
			sum.Skipped++
			continue
		}
		methods, ok := a.methodsOf(e)
		if !ok {
			sum.Skipped++
			continue
		}
		res, err := a.AnalyzeClass(ctx, e.ID, e.Name, methods)
		if err != nil {
			if ctx.Err() != nil {
				return sum, ctx.Err()
			}
			a.logger.Errorf("%v\n", err)
			failed[e.Name] = true
			sum.Failed++
			continue
		}
		sum.Classes++
		sum.Methods += res.Methods
		sum.Runs += res.Runs
		sum.Discarded += res.Discarded
		sum.Issues += len(res.Issues)
	}
	a.logger.Infof("analyzed %d classes (%d skipped, %d failed), %d issues\n", sum.Classes, sum.Skipped, sum.Failed,
		sum.Issues)
	if len(failed) > 0 {
		a.logger.Warnf("failed classes: %s\n", strings.Join(funcutil.SetToOrderedSlice(failed), ", "))
	}
	return sum, nil
}
