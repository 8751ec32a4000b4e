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

import (
	"fmt"

	"github.com/awslabs/ar-immutability/analysis/ir"
)

// zeroedArrayLimit is the length above which the elements of a zeroed array are not materialized
const zeroedArrayLimit = 64

// Visit applies the transfer function of the instruction to the graph. Calls, phi nodes and terminators are handled
// by the caller, which knows the control flow and the callees.
//
//gocyclo:ignore
func (g *Graph) Visit(instr ir.Instruction) {
	if g.bottom {
		return
	}
	switch i := instr.(type) {
	case *ir.BinOp:
		g.visitBinOp(i)
	case *ir.ICmp:
		g.visitICmp(i)
	case *ir.FCmp:
		g.mapping[i] = NewInt(ir.I1, FullRange(1))
	case *ir.Alloca:
		p := NewTop(i.Elem)
		g.aliases.AddKnown(p)
		n := NewPointerTo(p)
		n.typ = i.Type()
		g.mapping[i] = n
	case *ir.Load:
		g.mapping[i] = g.CopyValue(g.deref(i.Addr, i.Type()))
	case *ir.Store:
		g.Update(g.deref(i.Addr, i.Val.Type()), g.Mapping(i.Val))
	case *ir.GEP:
		g.visitGEP(i)
	case *ir.Cast:
		g.visitCast(i)
	case *ir.Select:
		g.visitSelect(i)
	case *ir.ExtractValue:
		n := g.Mapping(i.Agg)
		for _, idx := range i.Indices {
			n = g.element(n, idx, false)
		}
		g.mapping[i] = n
	case *ir.InsertValue:
		g.mapping[i] = g.insertValue(g.Mapping(i.Agg), i.Indices, g.Mapping(i.Val))
	case *ir.LandingPad:
		g.MarkBottom()
	default:
		Fatalf("no transfer function for %s", instr)
	}
}

// deref returns the value of type t pointed to by addr. The pointer is not null after the access.
func (g *Graph) deref(addr ir.Value, t ir.Type) *Node {
	p := g.Mapping(addr)
	if p.kind != KindPointer {
		return NewTop(t)
	}
	p.null = NotNull
	return g.view(g.PointerElement(p), t)
}

func (g *Graph) visitBinOp(i *ir.BinOp) {
	t, ok := i.Type().(*ir.IntType)
	if !ok {
		g.mapping[i] = NewTop(i.Type())
		return
	}
	x, y := g.Mapping(i.X), g.Mapping(i.Y)
	if x.kind != KindInt || y.kind != KindInt {
		g.mapping[i] = NewTop(t)
		return
	}
	g.mapping[i] = NewInt(t, x.rng.BinaryOp(i.Op, y.rng))
}

func (g *Graph) visitICmp(i *ir.ICmp) {
	x, y := g.Mapping(i.X), g.Mapping(i.Y)
	res := FullRange(1)
	switch {
	case x.kind == KindInt && y.kind == KindInt:
		if b, ok := x.rng.Compare(i.Pred, y.rng); ok {
			res = BoolRange(b)
		}
	case x.kind == KindPointer && y.kind == KindPointer && (i.Pred == ir.EQ || i.Pred == ir.NE):
		if eq, ok := comparePointers(x, y); ok {
			res = BoolRange(eq == (i.Pred == ir.EQ))
		}
	}
	g.mapping[i] = NewInt(ir.I1, res)
}

// comparePointers decides if two pointers are equal from their nullness
func comparePointers(x, y *Node) (eq bool, decided bool) {
	switch {
	case x.null == Null && y.null == Null:
		return true, true
	case x.null == Null && y.null == NotNull, x.null == NotNull && y.null == Null:
		return false, true
	}
	return false, false
}

// visitGEP computes the address of an element. The first index moves between the elements of an array of objects:
// any other index than 0 gives a sibling of the object, that may be any object of the array. The following indices
// select a field of a struct or an element of an array.
//
//gocyclo:ignore
func (g *Graph) visitGEP(i *ir.GEP) {
	base := g.Mapping(i.Base)
	if base.kind != KindPointer {
		g.mapping[i] = NewTop(i.Type())
		return
	}
	base.null = NotNull
	cur := g.view(g.PointerElement(base), i.Source)
	for k, idx := range i.Indices {
		c, isConst := ir.ConstIntValue(idx)
		if k == 0 {
			if !isConst || c != 0 {
				cur = g.sibling(cur)
			}
			continue
		}
		switch cur.kind {
		case KindStruct:
			if !isConst {
				Fatalf("non-constant field index in %s", i)
			}
			cur = g.StructElement(cur, int(c))
		case KindSequential:
			switch {
			case len(cur.children) == 0:
				e := NewTop(cur.typ.(*ir.ArrayType).Elem)
				e.isThis = cur.isThis
				g.aliases.AddUnknown(e)
				cur = e
			case isConst && c >= 0 && int(c) < len(cur.children):
				cur = g.StructElement(cur, int(c))
			default:
				cur = g.smash(cur)
			}
		default:
			Fatalf("index into a %s node in %s", cur.kind, i)
		}
	}
	res := NewPointerTo(cur)
	res.typ = i.Type()
	g.mapping[i] = res
}

// sibling returns an object next to n in memory
func (g *Graph) sibling(n *Node) *Node {
	s := NewTop(n.typ)
	s.isThis = n.isThis
	AddWeakEdge(s, n)
	if k, ok := g.aliases.Kind(n); ok && (k == Known || k == KnownElement) {
		g.aliases.AddKnown(s)
	} else {
		g.aliases.AddUnknown(s)
	}
	return s
}

// smash materializes all the elements of the array n, links them weakly, and returns the first one
func (g *Graph) smash(n *Node) *Node {
	elems := make([]*Node, len(n.children))
	for k := range n.children {
		elems[k] = g.StructElement(n, k)
	}
	for a := range elems {
		for b := a + 1; b < len(elems); b++ {
			AddWeakEdge(elems[a], elems[b])
		}
	}
	return elems[0]
}

//gocyclo:ignore
func (g *Graph) visitCast(i *ir.Cast) {
	t := i.Type()
	x := g.Mapping(i.X)
	switch i.Op {
	case ir.Bitcast:
		g.mapping[i] = g.bitcast(i, x)
	case ir.Trunc, ir.ZExt, ir.SExt:
		it, ok := t.(*ir.IntType)
		if !ok || x.kind != KindInt {
			g.mapping[i] = NewTop(t)
			return
		}
		var r IntRange
		switch i.Op {
		case ir.Trunc:
			r = x.rng.Trunc(it.Bits)
		case ir.ZExt:
			r = x.rng.ZExt(it.Bits)
		default:
			r = x.rng.SExt(it.Bits)
		}
		g.mapping[i] = NewInt(it, r)
	case ir.SIToFP, ir.UIToFP, ir.FPExt, ir.FPTrunc:
		g.mapping[i] = newNode(KindFloat, t)
	default:
		g.mapping[i] = NewTop(t)
	}
}

// bitcast converts the pointer x to the type of the instruction
//
//gocyclo:ignore
func (g *Graph) bitcast(i *ir.Cast, x *Node) *Node {
	t := i.Type()
	kind := KindOf(t)
	switch {
	case g.oracle.IsAlloc(i):
		p := NewTop(ir.Elem(t))
		g.aliases.AddKnown(p)
		n := NewPointerTo(p)
		n.typ = t
		return n
	case g.oracle.IsZero(i), g.oracle.IsAllOnes(i):
		if x.kind == KindPointer {
			target := g.PointerElement(x)
			g.Update(target, g.filledValue(target.typ, g.oracle.IsZero(i)))
		}
		n := NewTop(t)
		n.null = NotNull
		return n
	case x.kind == KindFunction && kind == KindFunction:
		c := g.CopyValue(x)
		c.typ = t
		return c
	case x.kind != KindPointer || kind != KindPointer:
		return NewTop(t)
	case x.null == Null:
		return NewNull(t.(*ir.PointerType))
	}
	obj := g.PointerElement(x)
	var res *Node
	from, _ := obj.typ.(*ir.StructType)
	to := ir.PointeeStruct(t)
	switch {
	case ir.Identical(obj.typ, ir.Elem(t)):
		res = obj
	case obj.subStruct != nil && ir.Identical(obj.subStruct.typ, ir.Elem(t)):
		res = obj.subStruct
	case from != nil && to != nil:
		if indices, ok := g.oracle.SupertypeIndices(from, to); ok {
			res = obj
			for _, k := range indices {
				res = g.StructElement(res, k)
			}
			res.subStruct = obj
		}
	}
	if res == nil {
		res = g.reinterpret(obj, ir.Elem(t))
	}
	n := NewPointerTo(res)
	n.typ = t
	n.null = x.null
	for e := range x.this {
		n.AddThisEdge(e)
	}
	return n
}

// filledValue returns a value of type t whose bits are all zero, or all one
func (g *Graph) filledValue(t ir.Type, zero bool) *Node {
	n := NewTop(t)
	switch n.kind {
	case KindInt:
		if zero {
			n.rng = SingleRange(n.rng.Bits, 0)
		} else {
			n.rng = SingleRange(n.rng.Bits, -1)
		}
	case KindFunction:
		if zero {
			n.callees = map[*ir.Function]bool{}
		}
	case KindPointer:
		if zero {
			n.null = Null
		} else {
			n.null = NotNull
		}
	case KindStruct, KindSequential:
		if len(n.children) <= zeroedArrayLimit {
			for k := range n.children {
				n.children[k] = g.filledValue(ir.ElementType(t, k), zero)
			}
		}
	}
	return n
}

func (g *Graph) visitSelect(i *ir.Select) {
	c := g.Mapping(i.Cond)
	if c.kind == KindInt {
		switch {
		case c.rng.IsTrue():
			g.mapping[i] = g.Mapping(i.T)
			return
		case c.rng.IsFalse():
			g.mapping[i] = g.Mapping(i.F)
			return
		}
	}
	g.mapping[i] = g.UnionAll([]*Node{g.Mapping(i.T), g.Mapping(i.F)}, i.Type())
}

// insertValue returns a copy of the aggregate agg where the element at the path indices is val
func (g *Graph) insertValue(agg *Node, indices []int, val *Node) *Node {
	if len(indices) == 0 {
		return val
	}
	if agg.kind != KindStruct && agg.kind != KindSequential {
		Fatalf("insertvalue into a %s node", agg.kind)
	}
	res := copyData(agg)
	copy(res.children, agg.children)
	res.subStruct = agg.subStruct
	for t := range agg.this {
		res.this[t] = true
	}
	k := indices[0]
	res.children[k] = g.insertValue(g.element(agg, k, false), indices[1:], val)
	return res
}

// UnionAll returns a node of type t that holds the values of all the nodes. A pointer result points to a summary of
// the pointees, weakly linked to each of them.
//
//gocyclo:ignore
func (g *Graph) UnionAll(nodes []*Node, t ir.Type) *Node {
	var ns []*Node
	for _, n := range nodes {
		if n != nil {
			ns = append(ns, n)
		}
	}
	kind := KindOf(t)
	if len(ns) == 0 {
		return NewTop(t)
	}
	if len(ns) == 1 {
		return ns[0]
	}
	for _, n := range ns {
		if n.kind != kind {
			return NewTop(t)
		}
	}
	res := newNode(kind, t)
	res.isThis, res.isRead = true, true
	for _, n := range ns {
		res.isThis = res.isThis && n.isThis
		res.isRead = res.isRead && n.isRead
		for x := range n.this {
			res.AddThisEdge(x)
		}
		if n.isThis {
			res.AddThisEdge(n)
		}
	}
	switch kind {
	case KindInt:
		res.rng = ns[0].rng
		for _, n := range ns[1:] {
			res.rng = res.rng.Union(n.rng)
		}
	case KindFunction:
		res.callees = map[*ir.Function]bool{}
		for _, n := range ns {
			if n.callees == nil {
				res.callees = nil
				break
			}
			for f := range n.callees {
				res.callees[f] = true
			}
		}
	case KindPointer:
		res.null = Bottom
		pointees := map[*Node]bool{}
		missing := false
		for _, n := range ns {
			res.null = res.null.Join(n.null)
			if n.pointee != nil {
				pointees[n.pointee] = true
			} else if n.null != Null && n.null != Bottom {
				missing = true
			}
		}
		switch {
		case len(pointees) == 1 && !missing:
			for p := range pointees {
				res.pointee = p
			}
		case len(pointees) > 0:
			s := NewTop(ir.Elem(t))
			s.isThis = true
			for _, p := range sortedNodes(pointees) {
				s.isThis = s.isThis && p.isThis && !missing
				AddWeakEdge(s, p)
				if p.isThis {
					s.AddThisEdge(p)
				}
				for x := range p.this {
					s.AddThisEdge(x)
				}
			}
			g.aliases.AddUnknown(s)
			res.pointee = s
		}
	case KindStruct, KindSequential:
		res.children = make([]*Node, ir.NumElements(t))
		for k := range res.children {
			var cs []*Node
			for _, n := range ns {
				if k >= len(n.children) || n.children[k] == nil {
					cs = nil
					break
				}
				cs = append(cs, n.children[k])
			}
			if len(cs) == len(ns) {
				res.children[k] = g.UnionAll(cs, ir.ElementType(t, k))
			}
		}
	}
	return res
}

// Update stores the value src into the memory dst. The update is strong when dst is the only node that may be this
// memory, and weak otherwise. The copies of dst receive the same update, its weak aliases receive a weak update.
func (g *Graph) Update(dst, src *Node) {
	strong := g.Unique(dst)
	copies := copyClosure(dst)
	weak := g.WeakEdges(dst)
	g.checkMutation(append(append([]*Node{dst}, copies...), weak...))
	for _, n := range append([]*Node{dst}, copies...) {
		if strong {
			g.strongUpdate(n, src)
		} else {
			g.weakUpdate(n, src)
		}
	}
	for _, w := range weak {
		g.weakUpdate(w, src)
	}
}

// checkMutation reports the mutation of a part of the receiver state that has been observed
func (g *Graph) checkMutation(targets []*Node) {
	for _, n := range targets {
		if n.isThis && n.isRead {
			if g.first != nil {
				g.oracle.ReportIssue(g.first, fmt.Sprintf("MUTATEREAD @ %s", g.first.Name()))
			}
			return
		}
	}
}

// strongUpdate replaces the value of dst with the value of src
//
//gocyclo:ignore
func (g *Graph) strongUpdate(dst, src *Node) {
	if dst == src {
		return
	}
	if dst.kind != src.kind {
		havoc(dst)
		return
	}
	dst.this = map[*Node]bool{}
	for t := range src.this {
		dst.AddThisEdge(t)
	}
	if src.isThis {
		dst.AddThisEdge(src)
	}
	switch dst.kind {
	case KindInt:
		dst.rng = src.rng
	case KindFunction:
		dst.callees = nil
		if src.callees != nil {
			dst.callees = map[*ir.Function]bool{}
			for f := range src.callees {
				dst.callees[f] = true
			}
		}
	case KindPointer:
		dst.null = src.null
		dst.pointee = src.pointee
	case KindStruct, KindSequential:
		for k := range dst.children {
			var sc *Node
			if k < len(src.children) {
				sc = src.children[k]
			}
			switch dc := dst.children[k]; {
			case sc == nil && dc != nil:
				havoc(dc)
			case sc != nil && dc == nil:
				c := g.CopyValue(sc)
				c.isThis = dst.isThis
				dst.children[k] = c
				g.aliases.AddElement(dst, dst.typ, k, c)
			case sc != nil:
				g.strongUpdate(dc, sc)
			}
		}
	}
}

// weakUpdate joins the value of src into the value of dst
//
//gocyclo:ignore
func (g *Graph) weakUpdate(dst, src *Node) {
	if dst == src {
		return
	}
	if dst.kind != src.kind {
		havoc(dst)
		return
	}
	for t := range src.this {
		dst.AddThisEdge(t)
	}
	if src.isThis {
		dst.AddThisEdge(src)
	}
	switch dst.kind {
	case KindInt:
		dst.rng = dst.rng.Union(src.rng)
	case KindFunction:
		if dst.callees != nil && src.callees != nil {
			for f := range src.callees {
				dst.callees[f] = true
			}
		} else {
			dst.callees = nil
		}
	case KindPointer:
		wasNull := dst.null == Null || dst.null == Bottom
		dst.null = dst.null.Join(src.null)
		switch {
		case dst.pointee != nil && src.pointee != nil:
			AddWeakEdge(dst.pointee, src.pointee)
		case dst.pointee == nil && wasNull:
			dst.pointee = src.pointee
		}
	case KindStruct, KindSequential:
		for k, dc := range dst.children {
			if dc == nil {
				continue
			}
			if k < len(src.children) && src.children[k] != nil {
				g.weakUpdate(dc, src.children[k])
			} else {
				havoc(dc)
			}
		}
	}
}

// havoc forgets the value of n, keeping its flags and its pointee
func havoc(n *Node) {
	switch n.kind {
	case KindInt:
		n.rng = FullRange(n.rng.Bits)
	case KindFunction:
		n.callees = nil
	case KindPointer:
		n.null = MaybeNull
	case KindStruct, KindSequential:
		for _, c := range n.children {
			if c != nil {
				havoc(c)
			}
		}
	}
}
