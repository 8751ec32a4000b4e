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
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/awslabs/ar-immutability/analysis/config"
	"github.com/awslabs/ar-immutability/analysis/immutability/shape"
	"github.com/awslabs/ar-immutability/analysis/ir"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// ClassAnalysis is the analysis of the public const methods of one class. The initial states of the methods are the
// states of the receiver at the exit of the methods; each method is analyzed from each of its initial states until
// no new initial state is found.
//
// The driver runs the analyses of the methods from different initial states concurrently. The maps of initial states
// and the recorded issues are guarded by mu.
type ClassAnalysis struct {
	*Analyzer
	id      int64
	name    string
	typ     *ir.StructType
	methods []*ir.Function
	logger  *config.LogGroup

	mu sync.Mutex
	// initial states not analyzed yet, and analyzed, per method
	incomplete map[*ir.Function][]*shape.Graph
	complete   map[*ir.Function][]*shape.Graph
	active     int
	iteration  int
	runs       int
	discarded  int
	issues     []Issue
	reported   map[Issue]bool
	storeErr   error
}

// job is the analysis of a method from one initial state
type job struct {
	method    *ir.Function
	state     *shape.Graph
	iteration int
}

func newClassAnalysis(a *Analyzer, id int64, name string, methods []*ir.Function) *ClassAnalysis {
	return &ClassAnalysis{
		Analyzer:   a,
		id:         id,
		name:       name,
		methods:    methods,
		logger:     a.logger.Sub(name),
		incomplete: map[*ir.Function][]*shape.Graph{},
		complete:   map[*ir.Function][]*shape.Graph{},
		reported:   map[Issue]bool{},
	}
}

// SupertypeIndices returns the path from t to its embedded supertype super
func (c *ClassAnalysis) SupertypeIndices(t, super *ir.StructType) ([]int, bool) {
	return c.catalog.SupertypeIndices(t, super)
}

// IsAlloc returns true if the bitcast converts a fresh allocation
func (c *ClassAnalysis) IsAlloc(x *ir.Cast) bool { return c.memory.IsAlloc(x) }

// IsZero returns true if the bitcast converts a buffer set to zero
func (c *ClassAnalysis) IsZero(x *ir.Cast) bool { return c.memory.IsZero(x) }

// IsAllOnes returns true if the bitcast converts a buffer whose bits are all set
func (c *ClassAnalysis) IsAllOnes(x *ir.Cast) bool { return c.memory.IsAllOnes(x) }

// ReportIssue records that method has the issue desc
func (c *ClassAnalysis) ReportIssue(method *ir.Function, desc string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	issue := Issue{Symbol: method.Name(), Description: desc}
	if c.reported[issue] {
		return
	}
	c.reported[issue] = true
	c.issues = append(c.issues, issue)
	if c.store != nil {
		inserted, err := c.store.AddIssue(c.id, issue.Symbol, issue.Description)
		if err != nil {
			if c.storeErr == nil {
				c.storeErr = err
			}
			return
		}
		if !inserted {
			c.logger.Debugf("%s: %s was already recorded\n", issue.Symbol, desc)
			return
		}
	}
	c.metrics.issue(desc)
	c.logger.Infof("%s: %s\n", issue.Symbol, desc)
}

func (c *ClassAnalysis) isIgnored(i ir.Instruction) bool {
	return c.catalog.IsIgnoredInstruction(i) || c.memory.IsIgnoredInstruction(i)
}

// subStructs returns the struct types embedded in t, directly or transitively. The layout of a base class stands
// for the class itself.
func subStructs(m *ir.Module, t *ir.StructType, res map[*ir.StructType]bool) {
	for _, ft := range t.Fields {
		st, ok := ft.(*ir.StructType)
		if !ok {
			continue
		}
		res[st] = true
		if ir.IsBaseType(st) {
			if k := strings.LastIndex(st.Name, ".base"); k > 0 {
				if full := m.StructType(st.Name[:k]); full != nil {
					res[full] = true
				}
			}
		}
		subStructs(m, st, res)
	}
}

// classType returns the type of the receiver of the methods. When the methods have different receiver types, the
// type that embeds the others is chosen.
func classType(m *ir.Module, methods []*ir.Function) (*ir.StructType, error) {
	var t *ir.StructType
	for _, f := range methods {
		this := f.ThisArg()
		if this == nil {
			return nil, fmt.Errorf("method %s has no receiver", f.Name())
		}
		st := ir.PointeeStruct(this.Type())
		if st == nil {
			return nil, fmt.Errorf("receiver of %s is not a pointer to a struct", f.Name())
		}
		if t == nil {
			t = st
			continue
		}
		if t != st {
			subs := map[*ir.StructType]bool{}
			subStructs(m, st, subs)
			if subs[t] {
				t = st
			}
		}
	}
	if t == nil {
		return nil, fmt.Errorf("no method")
	}
	return t, nil
}

// seed pushes the initial state of each method, in which only the receiver is known
func (c *ClassAnalysis) seed() (err error) {
	defer recoverInvariant(&err)
	for _, f := range c.methods {
		s := shape.CreateEmptyExceptThis(c, f.ThisArg(), c.typ)
		c.incomplete[f] = append(c.incomplete[f], s)
	}
	return nil
}

// pop moves the last initial state of the first method that has one from the incomplete to the complete states
func (c *ClassAnalysis) pop() (job, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, f := range c.methods {
		states := c.incomplete[f]
		if len(states) == 0 {
			continue
		}
		s := states[len(states)-1]
		c.incomplete[f] = states[:len(states)-1]
		c.complete[f] = append(c.complete[f], s.Clone())
		c.active++
		c.iteration++
		return job{method: f, state: s, iteration: c.iteration}, true
	}
	return job{}, false
}

func (c *ClassAnalysis) done() {
	c.mu.Lock()
	c.active--
	c.mu.Unlock()
}

// idle returns true if no method is being analyzed and there is no initial state left
func (c *ClassAnalysis) idle() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active > 0 {
		return false
	}
	for _, states := range c.incomplete {
		if len(states) > 0 {
			return false
		}
	}
	return true
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// run analyzes the methods until no new initial state is found. At most Workers method analyses run at the same
// time. The first invariant violation stops the analysis of the class.
func (c *ClassAnalysis) run(ctx context.Context) error {
	if err := c.seed(); err != nil {
		return err
	}
	sem := semaphore.NewWeighted(int64(c.config.Workers))
	g, gctx := errgroup.WithContext(ctx)
	for gctx.Err() == nil {
		if !sem.TryAcquire(1) {
			sleep(gctx, c.config.PollInterval)
			continue
		}
		j, ok := c.pop()
		if !ok {
			sem.Release(1)
			if c.idle() {
				break
			}
			sleep(gctx, c.config.PollInterval)
			continue
		}
		g.Go(func() (err error) {
			defer sem.Release(1)
			defer c.done()
			defer recoverInvariant(&err)
			c.iterate(j)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.storeErr
}

// ignoredEdges returns the incoming edges of the exit of f when f has a single exit block with two predecessors.
// The method is then analyzed once with each of the edges left out.
func (c *ClassAnalysis) ignoredEdges(f *ir.Function) []edge {
	if !c.config.IgnoredEdgeHeuristic {
		return nil
	}
	exits := c.cfg(f).Exits()
	if len(exits) != 1 || len(exits[0].Preds) != 2 {
		return nil
	}
	exit := exits[0]
	return []edge{{exit.Preds[0], exit}, {exit.Preds[1], exit}}
}

func (c *ClassAnalysis) iterate(j job) {
	edges := c.ignoredEdges(j.method)
	if len(edges) == 0 {
		c.runMethod(j, nil)
		return
	}
	for k := range edges {
		c.runMethod(j, &edges[k])
	}
}

// runMethod analyzes the method of j from its initial state, checks the escapes of the receiver state through the
// arguments and the returned value, and derives the initial states of all the methods from the final state.
func (c *ClassAnalysis) runMethod(j job, ignored *edge) {
	start := time.Now()
	c.logger.Debugf("%d %s\n", j.iteration, j.method.Name())
	this := j.method.ThisArg()
	fa := newFunctionAnalysis(c, j.method, j.state, j.method, ignored, nil)
	res := fa.getResult()
	c.metrics.run(time.Since(start).Seconds())
	c.mu.Lock()
	c.runs++
	c.mu.Unlock()
	if res.IsBottom() {
		return
	}
	for _, p := range j.method.Params {
		if p != this {
			c.checkArgument(j.method, res, p)
		}
	}
	if res.HasReturn() {
		c.checkReturn(j.method, res)
	}
	res.RemoveAllExcept(this)
	res.FixupThis(this)
	if !res.Mapping(this).IsThis() {
		fatalf("receiver of %s is not part of the receiver state", j.method.Name())
	}
	c.handleFinalState(res.Clone())
}

func moreSpecificThanAny(s *shape.Graph, states []*shape.Graph) bool {
	for _, o := range states {
		if shape.MoreSpecific(s, o) {
			return true
		}
	}
	return false
}

// handleFinalState adds the final state of a method as an initial state of every method, unless a more general
// initial state is already known
func (c *ClassAnalysis) handleFinalState(final *shape.Graph) {
	states := make([]*shape.Graph, len(c.methods))
	for k, f := range c.methods {
		states[k] = final.Clone()
		states[k].ChangeThis(f.ThisArg())
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, f := range c.methods {
		next := states[k]
		if len(c.complete[f]) > c.config.MaxStatesPerMethod {
			next.Widen()
		}
		if moreSpecificThanAny(next, c.complete[f]) || moreSpecificThanAny(next, c.incomplete[f]) {
			c.discarded++
			c.metrics.discarded()
			continue
		}
		if c.logger.LogsTrace() {
			c.logger.Tracef("new initial state of %s:\n%s", f.Name(), next)
		}
		c.incomplete[f] = append(c.incomplete[f], next)
	}
}
