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

package ir

import (
	"github.com/awslabs/ar-immutability/internal/graphutil"
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/traverse"
)

// CFG holds the control-flow facts of a function that the fixpoint computation queries repeatedly.
type CFG struct {
	live  map[*BasicBlock]bool
	loops map[*BasicBlock]bool
	exits []*BasicBlock
}

// NewCFG computes the control-flow facts of f. f must have been finalized.
func NewCFG(f *Function) *CFG {
	return &CFG{
		live:  LiveBlocks(f),
		loops: LoopBlocks(f),
		exits: Exits(f),
	}
}

// IsLive returns true if b is reachable from the entry block
func (c *CFG) IsLive(b *BasicBlock) bool { return c.live[b] }

// InLoop returns true if b is part of a cycle of the control-flow graph
func (c *CFG) InLoop(b *BasicBlock) bool { return c.loops[b] }

// Exits returns the blocks without successors
func (c *CFG) Exits() []*BasicBlock { return c.exits }

// LivePreds returns the predecessors of b that are reachable from the entry block
func (c *CFG) LivePreds(b *BasicBlock) []*BasicBlock {
	var preds []*BasicBlock
	for _, p := range b.Preds {
		if c.live[p] {
			preds = append(preds, p)
		}
	}
	return preds
}

// LiveBlocks returns the set of blocks of f reachable from its entry block
func LiveBlocks(f *Function) map[*BasicBlock]bool {
	live := map[*BasicBlock]bool{}
	if f.Empty() {
		return live
	}
	g := simple.NewDirectedGraph()
	for _, b := range f.Blocks {
		g.AddNode(simple.Node(b.Index))
	}
	for _, b := range f.Blocks {
		for _, s := range b.Succs {
			if s != b && !g.HasEdgeFromTo(int64(b.Index), int64(s.Index)) {
				g.SetEdge(g.NewEdge(simple.Node(b.Index), simple.Node(s.Index)))
			}
		}
	}
	bf := traverse.BreadthFirst{
		Visit: func(n graph.Node) { live[f.Blocks[n.ID()]] = true },
	}
	bf.Walk(g, simple.Node(f.Entry().Index), nil)
	return live
}

// LoopBlocks returns the set of blocks of f that lie on a cycle of the control-flow graph
func LoopBlocks(f *Function) map[*BasicBlock]bool {
	return graphutil.CyclicNodes(f.Blocks, func(b *BasicBlock) []*BasicBlock { return b.Succs })
}

// Exits returns the blocks of f without successors
func Exits(f *Function) []*BasicBlock {
	var exits []*BasicBlock
	for _, b := range f.Blocks {
		if len(b.Succs) == 0 {
			exits = append(exits, b)
		}
	}
	return exits
}
