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

// Package shape implements the abstract domain of the immutability analysis: a graph of nodes that describe the
// shape of the values of a function and of the memory they point to, with the transfer functions of the
// instructions.
//
// A node is the abstract value of one storage location. Pointers own their pointee, composites own their children,
// and a struct embedded as the base of a derived class links to the derived value with its sub-struct. Nodes that
// belong to the state of the receiver of the analyzed method are marked "this"; other nodes that may hold a value of
// the receiver state have "this edges" to the corresponding receiver nodes. Weak edges relate nodes that may be the
// same memory.
package shape

import (
	"fmt"
	"sort"
	"strings"

	"github.com/awslabs/ar-immutability/analysis/ir"
)

// Oracle gives the graph read-only access to the facts of the program that are not part of the abstract state
type Oracle interface {
	// SupertypeIndices returns the field indices leading from t to its embedded supertype super
	SupertypeIndices(t, super *ir.StructType) ([]int, bool)
	// IsAlloc returns true if the bitcast converts the result of an allocation
	IsAlloc(c *ir.Cast) bool
	// IsZero returns true if the bitcast converts a buffer set to zero
	IsZero(c *ir.Cast) bool
	// IsAllOnes returns true if the bitcast converts a buffer with all bits set
	IsAllOnes(c *ir.Cast) bool
	// ReportIssue records an issue found while analyzing method
	ReportIssue(method *ir.Function, desc string)
}

// Graph is the abstract state at one program point of the analysis of a method.
type Graph struct {
	oracle  Oracle
	first   *ir.Function
	bottom  bool
	mapping map[ir.Value]*Node
	ret     *Node
	aliases *MemoryAliases

	// pointers whose pointee is being materialized, to break cycles of this edges
	materializing map[*Node]bool
}

// NewGraph returns an empty graph
func NewGraph(oracle Oracle) *Graph {
	return &Graph{
		oracle:        oracle,
		mapping:       map[ir.Value]*Node{},
		aliases:       NewMemoryAliases(),
		materializing: map[*Node]bool{},
	}
}

// NewBottom returns the graph of an unreachable program point
func NewBottom(oracle Oracle) *Graph {
	g := NewGraph(oracle)
	g.bottom = true
	return g
}

// CreateEmptyExceptThis returns the initial state of a method whose receiver is arg, when the receiver is a value
// of the class t. If the receiver type of the method is a supertype of t, the receiver points to the embedded value
// of the supertype.
func CreateEmptyExceptThis(oracle Oracle, arg *ir.Argument, t *ir.StructType) *Graph {
	g := NewGraph(oracle)
	structArg := ir.PointeeStruct(arg.Type())
	if structArg == nil {
		Fatalf("receiver %s of %s is not a pointer to a struct", arg, arg.Parent().Name())
	}
	n := NewThis(t)
	if t != structArg {
		indices, ok := oracle.SupertypeIndices(t, structArg)
		if !ok {
			Fatalf("%s is not a supertype of %s", structArg, t)
		}
		sub := n
		for _, i := range indices {
			n = g.StructElement(n, i)
		}
		n.subStruct = sub
	}
	this := NewPointerTo(n)
	this.isThis = true
	this.typ = arg.Type()
	g.mapping[arg] = this
	return g
}

// SetFirstMethod sets the method whose analysis created the graph. Issues found by transfer functions are reported
// against it.
func (g *Graph) SetFirstMethod(f *ir.Function) { g.first = f }

// FirstMethod returns the method whose analysis created the graph
func (g *Graph) FirstMethod() *ir.Function { return g.first }

// Oracle returns the oracle of the graph
func (g *Graph) Oracle() Oracle { return g.oracle }

// IsBottom returns true if the program point is unreachable
func (g *Graph) IsBottom() bool { return g.bottom }

// MarkBottom marks the program point unreachable, and drops the state
func (g *Graph) MarkBottom() {
	g.bottom = true
	g.mapping = map[ir.Value]*Node{}
	g.ret = nil
	g.aliases.Clear()
}

// Aliases returns the memory alias index of the graph
func (g *Graph) Aliases() *MemoryAliases { return g.aliases }

// HasMapping returns true if the value is mapped to a node
func (g *Graph) HasMapping(v ir.Value) bool {
	_, ok := g.mapping[v]
	return ok
}

// SetMapping maps the value v to the node n
func (g *Graph) SetMapping(v ir.Value, n *Node) {
	g.mapping[v] = n
}

// Unmap removes the mapping of v
func (g *Graph) Unmap(v ir.Value) {
	delete(g.mapping, v)
}

// Values returns the mapped values, ordered by name
func (g *Graph) Values() []ir.Value {
	vs := make([]ir.Value, 0, len(g.mapping))
	for v := range g.mapping {
		vs = append(vs, v)
	}
	sort.Slice(vs, func(i, j int) bool {
		if vs[i].Name() != vs[j].Name() {
			return vs[i].Name() < vs[j].Name()
		}
		return vs[i].String() < vs[j].String()
	})
	return vs
}

// Mapping returns the node of the value v. Constants get a fresh node, except globals that are materialized once.
// A value that is not mapped yet is mapped to a top node.
func (g *Graph) Mapping(v ir.Value) *Node {
	if n, ok := g.mapping[v]; ok {
		return n
	}
	switch v := v.(type) {
	case *ir.ConstInt:
		return NewInt(v.Typ, ConstRange(v))
	case *ir.ConstNull:
		if KindOf(v.Typ) == KindPointer {
			return NewNull(v.Typ)
		}
		n := NewTop(v.Typ)
		if n.kind == KindFunction {
			n.callees = map[*ir.Function]bool{}
		}
		return n
	case *ir.Undef:
		return NewTop(v.Typ)
	case *ir.ConstFloat:
		return newNode(KindFloat, v.Typ)
	case *ir.Function:
		return NewFunction(v.Type(), v)
	case *ir.ConstCast:
		if f := ir.CalledFunction(v); f != nil && KindOf(v.Typ) == KindFunction {
			return NewFunction(v.Typ, f)
		}
		x := g.Mapping(v.X)
		if x.kind == KindOf(v.Typ) {
			c := g.CopyValue(x)
			c.typ = v.Typ
			return c
		}
		return NewTop(v.Typ)
	case *ir.Global:
		n := NewPointerTo(NewTop(v.Elem))
		n.typ = v.Type()
		g.aliases.AddUnknown(n.pointee)
		g.mapping[v] = n
		return n
	}
	n := NewTop(v.Type())
	g.mapping[v] = n
	return n
}

// HasReturn returns true if the graph holds the value returned by the analyzed function
func (g *Graph) HasReturn() bool { return g.ret != nil }

// Return returns the node of the value returned by the analyzed function, or nil
func (g *Graph) Return() *Node { return g.ret }

// AddReturn records the node of v as the returned value
func (g *Graph) AddReturn(v ir.Value) {
	if g.ret != nil {
		Fatalf("graph already has a return value")
	}
	g.ret = g.Mapping(v)
}

// RemoveReturn forgets the returned value
func (g *Graph) RemoveReturn() { g.ret = nil }

// RemoveAllExcept drops all the mappings except the one of arg, and the returned value
func (g *Graph) RemoveAllExcept(arg ir.Value) {
	n, ok := g.mapping[arg]
	if !ok {
		Fatalf("%s is not mapped", arg)
	}
	g.mapping = map[ir.Value]*Node{arg: n}
	g.ret = nil
}

// FixupThis marks all the nodes reachable from arg as part of the receiver state. The aliasing relations of the
// memory alias index become explicit weak edges, and the index is cleared.
func (g *Graph) FixupThis(arg ir.Value) {
	for _, n := range Reachable(g.Mapping(arg)) {
		n.isThis = true
		for _, o := range g.aliases.WeakEdges(n) {
			AddWeakEdge(n, o)
		}
	}
	g.aliases.Clear()
}

// ChangeThis maps the receiver of the graph to newThis, the receiver of another method of the class. The graph must
// have only one mapping. If the receiver type of the method is a supertype of the class, the receiver points to the
// embedded value of the supertype.
func (g *Graph) ChangeThis(newThis *ir.Argument) {
	if len(g.mapping) != 1 {
		Fatalf("changing the receiver of a graph with %d mappings", len(g.mapping))
	}
	var n *Node
	for _, m := range g.mapping {
		n = m
	}
	if n.kind != KindPointer {
		Fatalf("receiver %s is not a pointer", n)
	}
	structArg := ir.PointeeStruct(newThis.Type())
	if !ir.Identical(newThis.Type(), n.typ) {
		obj := g.PointerElement(n)
		if obj.subStruct != nil {
			obj = obj.subStruct
		}
		sub := obj
		if obj.typ != ir.Type(structArg) {
			st, ok := obj.typ.(*ir.StructType)
			if !ok || structArg == nil {
				Fatalf("cannot change receiver %s to %s", obj.typ, newThis.Type())
			}
			indices, ok := g.oracle.SupertypeIndices(st, structArg)
			if !ok {
				Fatalf("%s is not a supertype of %s", structArg, st)
			}
			for _, i := range indices {
				obj = g.StructElement(obj, i)
			}
			obj.subStruct = sub
		}
		n = NewPointerTo(obj)
		n.isThis = true
		n.typ = newThis.Type()
	}
	g.mapping = map[ir.Value]*Node{newThis: n}
}

// isRelevant returns true if v is an argument or an instruction of fn
func isRelevant(v ir.Value, fn *ir.Function) bool {
	if fn == nil {
		return true
	}
	switch v := v.(type) {
	case *ir.Argument:
		return v.Parent() == fn
	case ir.Instruction:
		return v.Block() != nil && v.Block().Parent() == fn
	}
	return false
}

// EraseRelevant drops the mappings of the arguments and instructions of fn
func (g *Graph) EraseRelevant(fn *ir.Function) {
	for v := range g.mapping {
		if _, ok := v.(*ir.Global); ok {
			continue
		}
		if isRelevant(v, fn) {
			delete(g.mapping, v)
		}
	}
}

// WeakEdges returns the nodes that may be the same memory as n: its weak edges, and the candidates of the memory
// alias index
func (g *Graph) WeakEdges(n *Node) []*Node {
	s := map[*Node]bool{}
	for w := range n.weak {
		s[w] = true
	}
	for _, w := range g.aliases.WeakEdges(n) {
		s[w] = true
	}
	return sortedNodes(s)
}

// Unique returns true if no other node may be the same memory as n
func (g *Graph) Unique(n *Node) bool {
	return len(n.weak) == 0 && len(g.aliases.WeakEdges(n)) == 0
}

// copyClosure returns the nodes related to n by copy edges, transitively, excluding n
func copyClosure(n *Node) []*Node {
	seen := map[*Node]bool{n: true}
	var res []*Node
	stack := []*Node{n}
	for len(stack) > 0 {
		m := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, c := range m.CopyEdges() {
			if !seen[c] {
				seen[c] = true
				res = append(res, c)
				stack = append(stack, c)
			}
		}
	}
	return res
}

// PointerElement returns the pointee of the pointer n, materializing it if needed.
//
// A materialized pointee inherits the isThis flag of the pointer, is shared with the copies of the pointer, and is
// weakly linked to the pointees of the weak aliases of the pointer. If the pointer holds a value of the receiver
// state, the pointee is the pointee of that receiver node.
func (g *Graph) PointerElement(n *Node) *Node {
	if n.kind != KindPointer {
		Fatalf("pointee of a %s node %s", n.kind, n.typ)
	}
	if n.pointee != nil {
		return n.pointee
	}
	var p *Node
	g.materializing[n] = true
	for _, t := range n.ThisEdges() {
		if t.kind == KindPointer && t.null != Null && ir.Identical(t.typ, n.typ) && !g.materializing[t] {
			p = g.PointerElement(t)
			break
		}
	}
	delete(g.materializing, n)
	if p == nil {
		p = NewTop(ir.Elem(n.typ))
		p.isThis = n.isThis
		g.aliases.AddUnknown(p)
	}
	n.pointee = p
	for _, c := range copyClosure(n) {
		if c.kind == KindPointer && c.pointee == nil {
			c.pointee = p
		}
	}
	for w := range n.weak {
		if w.kind == KindPointer && w.pointee != nil && w.pointee != p {
			AddWeakEdge(p, w.pointee)
		}
	}
	return p
}

// StructElement returns the child i of the composite n, materializing it if needed. Materialized children follow
// the same rules as materialized pointees.
func (g *Graph) StructElement(n *Node, i int) *Node {
	return g.element(n, i, true)
}

// element returns the child i of n. Children of values held in registers are not memory, and are not registered in
// the memory alias index.
func (g *Graph) element(n *Node, i int, memory bool) *Node {
	if n.kind != KindStruct && n.kind != KindSequential {
		Fatalf("element %d of a %s node %s", i, n.kind, n.typ)
	}
	if i < 0 || i >= len(n.children) {
		Fatalf("element %d of %s is out of range", i, n.typ)
	}
	if c := n.children[i]; c != nil {
		return c
	}
	var c *Node
	for _, t := range n.ThisEdges() {
		if t.kind == n.kind && ir.Identical(t.typ, n.typ) {
			c = g.CopyValue(g.StructElement(t, i))
			break
		}
	}
	if c == nil {
		c = NewTop(ir.ElementType(n.typ, i))
		c.isThis = n.isThis
	}
	n.children[i] = c
	for _, cp := range copyClosure(n) {
		if cp.kind == n.kind && i < len(cp.children) && cp.children[i] == nil {
			cp.children[i] = c
		}
	}
	for w := range n.weak {
		if w.kind == n.kind && i < len(w.children) && w.children[i] != nil && w.children[i] != c {
			AddWeakEdge(c, w.children[i])
		}
	}
	if memory {
		g.aliases.AddElement(n, n.typ, i, c)
	}
	return c
}

// view returns the value of type t stored where n is stored. The sub-struct link and the supertype paths resolve
// views of a class as one of its bases or as its derived class; other views reinterpret the memory.
func (g *Graph) view(n *Node, t ir.Type) *Node {
	if ir.Identical(n.typ, t) {
		return n
	}
	if n.subStruct != nil && ir.Identical(n.subStruct.typ, t) {
		return n.subStruct
	}
	st, ok1 := n.typ.(*ir.StructType)
	super, ok2 := t.(*ir.StructType)
	if ok1 && ok2 {
		if indices, ok := g.oracle.SupertypeIndices(st, super); ok {
			m := n
			for _, i := range indices {
				m = g.StructElement(m, i)
			}
			m.subStruct = n
			return m
		}
	}
	return g.reinterpret(n, t)
}

// reinterpret returns a node of type t for the memory of n
func (g *Graph) reinterpret(n *Node, t ir.Type) *Node {
	r := NewTop(t)
	r.isThis = n.isThis
	if n.isThis {
		r.AddThisEdge(n)
	}
	for x := range n.this {
		r.AddThisEdge(x)
	}
	AddWeakEdge(r, n)
	g.aliases.AddUnknown(r)
	return r
}

// CopyValue returns a copy of the value of n, as loaded in a register. Pointers share the pointee of n. The copy
// holds a value of the receiver state if n is part of it, or if n holds one.
func (g *Graph) CopyValue(n *Node) *Node {
	c := newNode(n.kind, n.typ)
	switch n.kind {
	case KindInt:
		c.rng = n.rng
	case KindFunction:
		if n.callees != nil {
			c.callees = map[*ir.Function]bool{}
			for f := range n.callees {
				c.callees[f] = true
			}
		}
	case KindPointer:
		c.null = n.null
		c.pointee = n.pointee
	case KindStruct, KindSequential:
		c.children = make([]*Node, len(n.children))
		for i, x := range n.children {
			if x != nil {
				c.children[i] = g.CopyValue(x)
			}
		}
	}
	if n.isThis {
		c.AddThisEdge(n)
	}
	for t := range n.this {
		c.AddThisEdge(t)
	}
	return c
}

// BindArgument maps the formal parameter of a callee to a copy of the actual argument. The copy and the argument are
// related by a copy edge. When the types differ, the copy points to the sub-struct or to the embedded supertype of
// the pointee of the argument.
func (g *Graph) BindArgument(formal *ir.Argument, actual ir.Value) {
	orig := g.Mapping(actual)
	n := orig.Copy()
	n.ClearWeakEdges()
	AddCopyEdge(orig, n)
	ft := formal.Type()
	if !ir.Identical(ft, n.typ) {
		want := ir.PointeeStruct(ft)
		switch {
		case n.kind == KindPointer && want != nil:
			obj := g.PointerElement(n)
			if obj.subStruct != nil && ir.Identical(obj.subStruct.typ, want) {
				obj = obj.subStruct
			} else if st, ok := obj.typ.(*ir.StructType); ok && st != want {
				if indices, ok := g.oracle.SupertypeIndices(st, want); ok {
					sub := obj
					for _, i := range indices {
						obj = g.StructElement(obj, i)
					}
					obj.subStruct = sub
				} else {
					obj = g.reinterpret(obj, want)
				}
			} else if !ok {
				obj = g.reinterpret(obj, want)
			}
			p := NewPointerTo(obj)
			p.null = orig.null
			p.typ = ft
			n = p
		case n.kind == KindOf(ft):
			n.typ = ft
		default:
			n = NewTop(ft)
		}
	}
	g.mapping[formal] = n
}

// BindResult maps the result of a call to a copy of the value returned by the callee
func (g *Graph) BindResult(call ir.Value, ret *Node) {
	r := ret.Copy()
	if KindOf(call.Type()) != r.kind {
		r = NewTop(call.Type())
	} else {
		r.typ = call.Type()
	}
	g.mapping[call] = r
}

// KnownCallee returns the function called through the function pointer value v, if there is exactly one
func (g *Graph) KnownCallee(v ir.Value) *ir.Function {
	n := g.Mapping(v)
	if n.kind != KindFunction {
		return nil
	}
	fs, ok := n.Callees()
	if !ok || len(fs) != 1 {
		return nil
	}
	return fs[0]
}

// roots returns the nodes mapped by the graph and its return node
func (g *Graph) roots() []*Node {
	var rs []*Node
	for _, v := range g.Values() {
		rs = append(rs, g.mapping[v])
	}
	if g.ret != nil {
		rs = append(rs, g.ret)
	}
	return rs
}

// Nodes returns the nodes of the graph: the nodes reachable from the mapping and the targets of their this edges
func (g *Graph) Nodes() []*Node {
	seen := map[*Node]bool{}
	var res []*Node
	stack := g.roots()
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[n] {
			continue
		}
		seen[n] = true
		res = append(res, n)
		n.forEachStructural(func(m *Node) { stack = append(stack, m) })
		for t := range n.this {
			stack = append(stack, t)
		}
	}
	return res
}

// Size returns the number of nodes of the graph
func (g *Graph) Size() int {
	return len(g.Nodes())
}

// Widen forgets the ranges of all the integers of the graph
func (g *Graph) Widen() {
	for _, n := range g.Nodes() {
		if n.kind == KindInt {
			n.rng = FullRange(n.rng.Bits)
		}
	}
}

func (g *Graph) String() string {
	if g.bottom {
		return "bottom"
	}
	var b strings.Builder
	for _, v := range g.Values() {
		fmt.Fprintf(&b, "%s: #%d\n", v.Name(), g.mapping[v].id)
	}
	if g.ret != nil {
		fmt.Fprintf(&b, "return: #%d\n", g.ret.id)
	}
	nodes := g.Nodes()
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].id < nodes[j].id })
	for _, n := range nodes {
		b.WriteString("  ")
		b.WriteString(n.String())
		if k, ok := g.aliases.Kind(n); ok {
			fmt.Fprintf(&b, " [%s]", k)
		}
		b.WriteString("\n")
	}
	return b.String()
}
