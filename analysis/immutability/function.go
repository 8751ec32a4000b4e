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
	"github.com/awslabs/ar-immutability/analysis/config"
	"github.com/awslabs/ar-immutability/analysis/immutability/shape"
	"github.com/awslabs/ar-immutability/analysis/ir"
	"golang.org/x/tools/container/intsets"
)

// edge is a control-flow edge
type edge struct {
	from, to *ir.BasicBlock
}

// functionAnalysis computes the state at the exit of a function from its state on entry. The states are attached
// to the control-flow edges; a block is processed again when the state on one of its incoming edges changes.
type functionAnalysis struct {
	class     *ClassAnalysis
	function  *ir.Function
	cfg       *ir.CFG
	initial   *shape.Graph // the state on entry to the function. never mutated.
	ignored   *edge        // an edge left out of the merges, or nil
	first     *ir.Function // the method whose analysis started the call chain
	callStack []*ir.Function
	logger    *config.LogGroup

	states map[edge]*shape.Graph
	// the state at each exit block. Skipped successors ending in unreachable are exits with a bottom state.
	exits map[*ir.BasicBlock]*shape.Graph

	worklist []*ir.BasicBlock
	queued   intsets.Sparse // indices of the blocks in the worklist
	visits   map[*ir.BasicBlock]int

	// state is the state before the current instruction
	state *shape.Graph
}

func newFunctionAnalysis(c *ClassAnalysis, f *ir.Function, initial *shape.Graph, first *ir.Function, ignored *edge,
	callStack []*ir.Function) *functionAnalysis {
	return &functionAnalysis{
		class:     c,
		function:  f,
		cfg:       c.cfg(f),
		initial:   initial,
		ignored:   ignored,
		first:     first,
		callStack: callStack,
		logger:    c.logger,
		states:    map[edge]*shape.Graph{},
		exits:     map[*ir.BasicBlock]*shape.Graph{},
		visits:    map[*ir.BasicBlock]int{},
	}
}

// addToBlockWorklist adds the block to the worklist, if it is not already present.
func (fa *functionAnalysis) addToBlockWorklist(b *ir.BasicBlock) {
	if fa.queued.Insert(b.Index) {
		fa.worklist = append(fa.worklist, b)
	}
}

func (fa *functionAnalysis) popBlock() *ir.BasicBlock {
	b := fa.worklist[0]
	fa.worklist = fa.worklist[1:]
	fa.queued.Remove(b.Index)
	return b
}

func (fa *functionAnalysis) isIgnored(e edge) bool {
	return fa.ignored != nil && *fa.ignored == e
}

// predOrInitial returns the state of the edge e, or the initial state if e has not been reached yet
func (fa *functionAnalysis) predOrInitial(e edge) *shape.Graph {
	if s, ok := fa.states[e]; ok {
		return s
	}
	return fa.initial
}

// shouldWait returns true if some incoming edge of b has not been reached yet
func (fa *functionAnalysis) shouldWait(b *ir.BasicBlock) bool {
	for _, p := range fa.cfg.LivePreds(b) {
		e := edge{p, b}
		if fa.isIgnored(e) {
			continue
		}
		if _, ok := fa.states[e]; !ok {
			return true
		}
	}
	return false
}

// allBottomOrNull returns true if no incoming edge of b has a state other than bottom
func (fa *functionAnalysis) allBottomOrNull(b *ir.BasicBlock) bool {
	for _, p := range fa.cfg.LivePreds(b) {
		e := edge{p, b}
		if fa.isIgnored(e) {
			continue
		}
		if s, ok := fa.states[e]; ok && !s.IsBottom() {
			return false
		}
	}
	return true
}

// merge returns the join of the states of the incoming edges of b. Edges that have not been reached yet contribute
// the initial state.
func (fa *functionAnalysis) merge(b *ir.BasicBlock) *shape.Graph {
	if len(b.Preds) == 0 {
		return fa.initial.Clone()
	}
	var res *shape.Graph
	for _, p := range fa.cfg.LivePreds(b) {
		e := edge{p, b}
		if fa.isIgnored(e) {
			continue
		}
		s := fa.predOrInitial(e)
		if s.IsBottom() {
			continue
		}
		if res == nil {
			res = s.Clone()
		} else {
			res = shape.Merge(res, s)
		}
	}
	if res == nil {
		return shape.NewBottom(fa.class)
	}
	return res
}

// nextBlock pops the first block of the worklist whose incoming edges have all been reached. After as many tries
// as there were blocks in the worklist, the last block popped is returned and forced is true.
func (fa *functionAnalysis) nextBlock() (b *ir.BasicBlock, forced bool) {
	maxTries := len(fa.worklist)
	tries := 0
	b = fa.popBlock()
	for fa.shouldWait(b) {
		fa.addToBlockWorklist(b)
		b = fa.popBlock()
		tries++
		if tries == maxTries {
			break
		}
	}
	return b, tries == maxTries
}

// run computes the fixpoint of the states of the edges of the function
func (fa *functionAnalysis) run() {
	if fa.function.Empty() {
		fatalf("analysis of %s, which has no body", fa.function.Name())
	}
	fa.addToBlockWorklist(fa.function.Entry())
	for len(fa.worklist) > 0 {
		b, forced := fa.nextBlock()
		if forced && fa.allBottomOrNull(b) {
			fa.state = shape.NewBottom(fa.class)
		} else {
			fa.state = fa.merge(b)
		}
		fa.state.SetFirstMethod(fa.first)
		if fa.logger.LogsTrace() {
			fa.logger.Tracef("%s: block %s (forced: %v)\n", fa.function.Name(), b.Name, forced)
		}
		fa.processBlock(b)
	}
}

func (fa *functionAnalysis) processBlock(b *ir.BasicBlock) {
	term := b.Terminator()
	if term == nil {
		fatalf("block %s has no terminator", b)
	}
	for _, instr := range b.Instrs {
		if fa.state.IsBottom() {
			break
		}
		fa.transfer(instr)
	}
	fa.checkLimits(b)
	fa.handleTerminator(b, term)
}

// transfer applies the effect of one instruction to the current state
func (fa *functionAnalysis) transfer(instr ir.Instruction) {
	isVTable := fa.class.catalog.IsVTableInstruction(instr)
	switch i := instr.(type) {
	case ir.CallInstruction:
		if isVTable {
			fa.handleVirtualCall(i)
		} else if !fa.class.isIgnored(i) {
			fa.handleCallSite(i)
		}
	case *ir.Phi:
		if !isVTable {
			fa.handlePhi(i)
		}
	case ir.Terminator:
	default:
		if !isVTable && !fa.class.isIgnored(instr) {
			fa.state.Visit(instr)
		}
	}
}

// handlePhi maps the phi node to the union of its incoming values on the edges that may be taken
func (fa *functionAnalysis) handlePhi(phi *ir.Phi) {
	var nodes []*shape.Node
	for k, v := range phi.Edges {
		e := edge{phi.Preds[k], phi.Block()}
		if fa.isIgnored(e) || !fa.cfg.IsLive(e.from) || fa.predOrInitial(e).IsBottom() {
			continue
		}
		nodes = append(nodes, fa.state.Mapping(v))
	}
	if len(nodes) == 0 {
		fatalf("phi %%%s of %s has no incoming value", phi.Name(), fa.function.Name())
	}
	fa.state.SetMapping(phi, fa.state.UnionAll(nodes, phi.Type()))
}

// checkLimits degrades the current state when the block has been processed too many times, or when the state
// grows too large
func (fa *functionAnalysis) checkLimits(b *ir.BasicBlock) {
	if fa.state.IsBottom() {
		return
	}
	opts := fa.class.config.Options
	if fa.cfg.InLoop(b) {
		fa.visits[b]++
		switch n := fa.visits[b]; {
		case n > 2*opts.MaxBlockVisits:
			fa.logger.Debugf("%s: block %s processed %d times, dropping its states\n", fa.function.Name(), b.Name, n)
			fa.state.MarkBottom()
			return
		case n > opts.MaxBlockVisits:
			fa.state.Widen()
		}
	}
	if size := fa.state.Size(); size > opts.MaxGraphNodes {
		fa.logger.Debugf("%s: state of block %s too large (%d nodes)\n", fa.function.Name(), b.Name, size)
		fa.state.MarkBottom()
	}
}

// handleTerminator records the state of an exit block, or propagates the state to the successors of the block
func (fa *functionAnalysis) handleTerminator(b *ir.BasicBlock, term ir.Terminator) {
	succs := term.Successors()
	if len(succs) == 0 {
		fa.exits[b] = fa.state
		return
	}
	done := map[*ir.BasicBlock]bool{}
	for _, s := range succs {
		if done[s] {
			continue
		}
		done[s] = true
		if s.EndsInUnreachable() {
			if _, ok := fa.exits[s]; !ok {
				fa.exits[s] = shape.NewBottom(fa.class)
			}
			continue
		}
		e := edge{b, s}
		cur := fa.edgeState(term, s)
		if prev, ok := fa.states[e]; !ok || !fa.converged(prev, cur) {
			fa.addToBlockWorklist(s)
		}
		fa.states[e] = cur
	}
}

// edgeState returns the current state refined by the condition under which the terminator branches to succ
func (fa *functionAnalysis) edgeState(term ir.Terminator, succ *ir.BasicBlock) *shape.Graph {
	s := fa.state.Clone()
	switch t := term.(type) {
	case *ir.CondBr:
		if t.Then != t.Else {
			s.RefineBool(t.Cond, succ == t.Then)
		}
	case *ir.Switch:
		s.RefineSwitch(t, succ)
	}
	return s
}

// converged returns true if the new state of an edge adds nothing to its previous state
func (fa *functionAnalysis) converged(prev, cur *shape.Graph) bool {
	shape.Canonicalize(prev, cur)
	return shape.Equivalent(prev, cur, fa.function)
}

// getResult runs the analysis and returns the join of the exit states, with the returned value recorded in each.
func (fa *functionAnalysis) getResult() *shape.Graph {
	fa.run()
	if len(fa.exits) == 0 {
		fatalf("analysis of %s reaches no exit", fa.function.Name())
	}
	var res *shape.Graph
	for _, b := range fa.function.Blocks {
		s, ok := fa.exits[b]
		if !ok || s.IsBottom() {
			continue
		}
		var val ir.Value
		switch t := b.Terminator().(type) {
		case *ir.Ret:
			val = t.Val
		case *ir.Resume:
			val = t.Val
		default:
			continue
		}
		next := s.Clone()
		if !fa.function.ReturnsVoid() {
			if val == nil {
				fatalf("%s returns no value at %s", fa.function.Name(), b.Name)
			}
			next.AddReturn(val)
		}
		if res == nil {
			res = next
		} else {
			res = shape.Merge(res, next)
		}
	}
	if res == nil {
		return shape.NewBottom(fa.class)
	}
	res.SetFirstMethod(fa.first)
	return res
}
