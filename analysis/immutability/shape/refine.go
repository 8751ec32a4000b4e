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

package shape

import "github.com/awslabs/ar-immutability/analysis/ir"

// RefineBool refines the graph with the fact that the boolean v is b. The graph becomes bottom if v cannot be b.
//
//gocyclo:ignore
func (g *Graph) RefineBool(v ir.Value, b bool) {
	if g.bottom {
		return
	}
	n := g.Mapping(v)
	if n.kind != KindInt {
		return
	}
	g.RefineInt(v, BoolRange(b).convert(n.rng.Bits))
	if g.bottom {
		return
	}
	switch c := v.(type) {
	case *ir.ICmp:
		pred := c.Pred
		if !b {
			pred = pred.Inverse()
		}
		g.refineCompare(c.X, pred, c.Y)
		if !g.bottom {
			g.refineCompare(c.Y, pred.Swap(), c.X)
		}
	case *ir.BinOp:
		if bits(c.Type()) != 1 {
			return
		}
		switch {
		case c.Op == ir.And && b, c.Op == ir.Or && !b:
			g.RefineBool(c.X, b)
			g.RefineBool(c.Y, b)
		case c.Op == ir.Xor:
			if y, ok := ir.ConstIntValue(c.Y); ok {
				g.RefineBool(c.X, b != (y&1 == 1))
			} else if x, ok := ir.ConstIntValue(c.X); ok {
				g.RefineBool(c.Y, b != (x&1 == 1))
			}
		}
	case *ir.Cast:
		if c.Op == ir.ZExt && bits(c.X.Type()) == 1 {
			g.RefineBool(c.X, b)
		}
	}
}

func bits(t ir.Type) int {
	if it, ok := t.(*ir.IntType); ok {
		return it.Bits
	}
	return 0
}

// convert returns the boolean range r as a range of b bits
func (r IntRange) convert(b int) IntRange {
	if b == r.Bits {
		return r
	}
	return r.ZExt(b)
}

// refineCompare refines x with the fact that x pred y holds
func (g *Graph) refineCompare(x ir.Value, pred ir.Predicate, y ir.Value) {
	xn, yn := g.Mapping(x), g.Mapping(y)
	switch {
	case xn.kind == KindInt && yn.kind == KindInt:
		r := AllowedRegion(xn.rng.Bits, pred, yn.rng)
		if pred == ir.NE {
			if c, ok := yn.rng.Single(); ok {
				r = xn.rng.excludeBound(c)
			}
		}
		g.RefineInt(x, r)
	case xn.kind == KindPointer && yn.kind == KindPointer && yn.null == Null:
		switch pred {
		case ir.EQ:
			g.refineNull(xn, Null)
		case ir.NE:
			g.refineNull(xn, NotNull)
		}
	}
}

func (g *Graph) refineNull(n *Node, k NullKind) {
	switch {
	case n.null == k:
	case n.null == MaybeNull:
		n.null = k
		if k == Null {
			n.pointee = nil
		}
	case n.null == Bottom:
	default:
		g.MarkBottom()
	}
}

// RefineInt restricts the integer v to the range r. The graph becomes bottom if no value remains.
func (g *Graph) RefineInt(v ir.Value, r IntRange) {
	if g.bottom {
		return
	}
	n := g.Mapping(v)
	if n.kind != KindInt {
		return
	}
	res := n.rng.Refine(r)
	if res.IsEmpty() {
		g.MarkBottom()
		return
	}
	if _, ok := v.(ir.Constant); ok {
		return
	}
	n.rng = res
}

// RefineSwitch refines the scrutinee of a switch on the edge to target
func (g *Graph) RefineSwitch(sw *ir.Switch, target *ir.BasicBlock) {
	if g.bottom {
		return
	}
	n := g.Mapping(sw.X)
	if n.kind != KindInt {
		return
	}
	b := n.rng.Bits
	isCase := false
	r := EmptyRange(b)
	for _, c := range sw.Cases {
		if c.Target == target {
			isCase = true
			r = r.Union(SingleRange(b, c.Value))
		}
	}
	switch {
	case target == sw.Default && isCase:
		// the edge is taken for the default and for some cases
	case target == sw.Default:
		r = n.rng
		// excluding a bound may turn another case value into a bound
		for changed := true; changed; {
			changed = false
			for _, c := range sw.Cases {
				if next := r.excludeBound(normalize(b, c.Value)); !next.Equal(r) {
					r, changed = next, true
				}
			}
		}
		g.RefineInt(sw.X, r)
	default:
		g.RefineInt(sw.X, r)
	}
}
