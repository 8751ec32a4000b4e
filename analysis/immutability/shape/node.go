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
	"strings"
	"sync/atomic"

	"github.com/awslabs/ar-immutability/analysis/ir"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
	"golang.org/x/tools/container/intsets"
)

// Kind is the kind of storage a node represents
type Kind int

const (
	KindInt        Kind = iota // An integer, with a range of values
	KindFloat                  // A floating point value, not tracked
	KindFunction               // A function pointer, with its possible callees
	KindPointer                // A data pointer, with its nullness and its pointee
	KindStruct                 // A struct, with one child per field
	KindSequential             // An array, with one child per element
)

var kindNames = [...]string{"int", "float", "function", "pointer", "struct", "sequential"}

func (k Kind) String() string { return kindNames[k] }

// NullKind is the nullness of a pointer. The lattice is Bottom ⊑ Null, NotNull ⊑ MaybeNull.
type NullKind int

const (
	Bottom NullKind = iota
	Null
	NotNull
	MaybeNull
)

var nullKindNames = [...]string{"bottom", "null", "not-null", "maybe-null"}

func (k NullKind) String() string { return nullKindNames[k] }

// Join returns the least upper bound of the two nullness values
func (k NullKind) Join(o NullKind) NullKind {
	switch {
	case k == o:
		return k
	case k == MaybeNull || o == MaybeNull:
		return MaybeNull
	case k == Bottom:
		return o
	case o == Bottom:
		return k
	}
	return MaybeNull
}

// LessEq returns true if k ⊑ o
func (k NullKind) LessEq(o NullKind) bool {
	return k.Join(o) == o
}

var lastNodeID atomic.Int64

// Node is the abstract value of one storage location.
//
// The structural edges of a node (its pointee, children and sub-struct) own the nodes they point to. The this edges
// also keep their targets in the graph. Copy and weak edges only relate nodes that are in the graph through other
// edges; they are symmetric.
type Node struct {
	id     int
	kind   Kind
	typ    ir.Type
	isThis bool
	isRead bool

	// KindInt
	rng IntRange
	// KindFunction; nil if any function may be called
	callees map[*ir.Function]bool
	// KindPointer
	null    NullKind
	pointee *Node
	// KindStruct and KindSequential; a nil child is not materialized yet, and holds any value
	children []*Node
	// subStruct is the value of the derived class when the node is the embedded value of a base class
	subStruct *Node

	copies map[*Node]bool
	this   map[*Node]bool
	weak   map[*Node]bool
}

func newNode(kind Kind, t ir.Type) *Node {
	return &Node{
		id:     int(lastNodeID.Add(1)),
		kind:   kind,
		typ:    t,
		copies: map[*Node]bool{},
		this:   map[*Node]bool{},
		weak:   map[*Node]bool{},
	}
}

// KindOf returns the kind of the nodes of type t
func KindOf(t ir.Type) Kind {
	switch t := t.(type) {
	case *ir.IntType:
		return KindInt
	case *ir.FloatType:
		return KindFloat
	case *ir.PointerType:
		if _, ok := t.Elem.(*ir.FunctionType); ok {
			return KindFunction
		}
		return KindPointer
	case *ir.StructType:
		return KindStruct
	case *ir.ArrayType:
		return KindSequential
	case *ir.FunctionType:
		return KindFunction
	}
	Fatalf("no abstract value for type %s", t)
	return 0
}

// NewTop returns a node of type t that holds any value
func NewTop(t ir.Type) *Node {
	n := newNode(KindOf(t), t)
	switch n.kind {
	case KindInt:
		n.rng = FullRange(t.(*ir.IntType).Bits)
	case KindPointer:
		n.null = MaybeNull
	case KindStruct, KindSequential:
		n.children = make([]*Node, ir.NumElements(t))
	}
	return n
}

// NewInt returns an integer node with the range r
func NewInt(t *ir.IntType, r IntRange) *Node {
	n := newNode(KindInt, t)
	n.rng = r
	return n
}

// NewFunction returns a function pointer node that points to f
func NewFunction(t ir.Type, f *ir.Function) *Node {
	n := newNode(KindFunction, t)
	n.callees = map[*ir.Function]bool{f: true}
	return n
}

// NewNull returns the null pointer of type t
func NewNull(t *ir.PointerType) *Node {
	n := newNode(KindPointer, t)
	n.null = Null
	return n
}

// NewPointerTo returns a non-null pointer to the node pointee
func NewPointerTo(pointee *Node) *Node {
	n := newNode(KindPointer, ir.PointerTo(pointee.typ))
	n.null = NotNull
	n.pointee = pointee
	return n
}

// NewThis returns the value of a receiver of type t, with all its fields not materialized yet
func NewThis(t *ir.StructType) *Node {
	n := NewTop(t)
	n.isThis = true
	return n
}

// ID returns the unique identifier of the node
func (n *Node) ID() int { return n.id }

// Kind returns the kind of the node
func (n *Node) Kind() Kind { return n.kind }

// Type returns the type of the node
func (n *Node) Type() ir.Type { return n.typ }

// SetType changes the type of the node. The new type must have the same kind.
func (n *Node) SetType(t ir.Type) {
	if KindOf(t) != n.kind {
		Fatalf("cannot change type of %s node %s to %s", n.kind, n.typ, t)
	}
	n.typ = t
}

// IsThis returns true if the node is part of the state of the receiver
func (n *Node) IsThis() bool { return n.isThis }

// IsRead returns true if the node is part of the state of the receiver and has been observed
func (n *Node) IsRead() bool { return n.isRead }

// SetThis marks the node as part of the receiver state
func (n *Node) SetThis() { n.isThis = true }

// SetRead marks the node as observed. It has no effect on nodes that are not part of the receiver state.
func (n *Node) SetRead() {
	if n.isThis {
		n.isRead = true
	}
}

// Range returns the range of an integer node
func (n *Node) Range() IntRange { return n.rng }

// SetRange sets the range of an integer node
func (n *Node) SetRange(r IntRange) { n.rng = r }

// Callees returns the possible callees of a function node, and false if any function may be called
func (n *Node) Callees() ([]*ir.Function, bool) {
	if n.callees == nil {
		return nil, false
	}
	fs := maps.Keys(n.callees)
	slices.SortFunc(fs, func(a, b *ir.Function) bool { return a.Name() < b.Name() })
	return fs, true
}

// NullKind returns the nullness of a pointer node
func (n *Node) NullKind() NullKind { return n.null }

// Pointee returns the pointee of a pointer node, or nil if it is not materialized
func (n *Node) Pointee() *Node { return n.pointee }

// NumChildren returns the number of fields or elements of a composite node
func (n *Node) NumChildren() int { return len(n.children) }

// Child returns the child i of a composite node, or nil if it is not materialized
func (n *Node) Child(i int) *Node {
	if i < 0 || i >= len(n.children) {
		return nil
	}
	return n.children[i]
}

// SubStruct returns the value of the derived class embedding the node, or nil
func (n *Node) SubStruct() *Node { return n.subStruct }

// SetSubStruct records that the node is embedded in the value sub of a derived class
func (n *Node) SetSubStruct(sub *Node) { n.subStruct = sub }

func sortedNodes(s map[*Node]bool) []*Node {
	ns := maps.Keys(s)
	slices.SortFunc(ns, func(a, b *Node) bool { return a.id < b.id })
	return ns
}

// ThisEdges returns the nodes of the receiver state that the node may alias, ordered by id
func (n *Node) ThisEdges() []*Node { return sortedNodes(n.this) }

// WeakEdges returns the nodes that may alias the node, ordered by id
func (n *Node) WeakEdges() []*Node { return sortedNodes(n.weak) }

// CopyEdges returns the nodes that must be kept synchronized with the node, ordered by id
func (n *Node) CopyEdges() []*Node { return sortedNodes(n.copies) }

// HasThisEdges returns true if the node may alias a part of the receiver state
func (n *Node) HasThisEdges() bool { return len(n.this) > 0 }

// AddThisEdge records that n may alias the receiver state node t
func (n *Node) AddThisEdge(t *Node) {
	if n != t {
		n.this[t] = true
	}
}

// AddCopyEdge records that a and b are copies of each other
func AddCopyEdge(a, b *Node) {
	if a == b {
		return
	}
	a.copies[b] = true
	b.copies[a] = true
}

// AddWeakEdge records that a and b may alias
func AddWeakEdge(a, b *Node) {
	if a == b {
		return
	}
	a.weak[b] = true
	b.weak[a] = true
}

// IsWeakEdge returns true if a and b are linked by a weak edge
func IsWeakEdge(a, b *Node) bool { return a.weak[b] }

// IsCopyEdge returns true if a and b are linked by a copy edge
func IsCopyEdge(a, b *Node) bool { return a.copies[b] }

// ClearWeakEdges removes the weak edges of the node
func (n *Node) ClearWeakEdges() {
	for w := range n.weak {
		delete(w.weak, n)
	}
	n.weak = map[*Node]bool{}
}

// clearEdges removes all the copy and weak edges of the node
func (n *Node) clearEdges() {
	n.ClearWeakEdges()
	for c := range n.copies {
		delete(c.copies, n)
	}
	n.copies = map[*Node]bool{}
}

// Copy returns a shallow copy of the node: the copy shares the pointee and children of n and has the same edges
func (n *Node) Copy() *Node {
	c := newNode(n.kind, n.typ)
	c.isThis, c.isRead = n.isThis, n.isRead
	c.rng, c.null, c.pointee, c.subStruct = n.rng, n.null, n.pointee, n.subStruct
	if n.callees != nil {
		c.callees = maps.Clone(n.callees)
	}
	if n.children != nil {
		c.children = slices.Clone(n.children)
	}
	for x := range n.copies {
		AddCopyEdge(c, x)
	}
	for x := range n.this {
		c.this[x] = true
	}
	for x := range n.weak {
		AddWeakEdge(c, x)
	}
	return c
}

// forEachStructural calls f on the pointee, the materialized children and the sub-struct of n
func (n *Node) forEachStructural(f func(*Node)) {
	if n.pointee != nil {
		f(n.pointee)
	}
	for _, c := range n.children {
		if c != nil {
			f(c)
		}
	}
	if n.subStruct != nil {
		f(n.subStruct)
	}
}

// Reachable returns the nodes reachable from the roots through structural edges, the roots included
func Reachable(roots ...*Node) []*Node {
	return reachable(roots, false)
}

// ReachableInclWeak returns the nodes reachable from the roots through structural and weak edges
func ReachableInclWeak(roots ...*Node) []*Node {
	return reachable(roots, true)
}

func reachable(roots []*Node, inclWeak bool) []*Node {
	var visited intsets.Sparse
	var res []*Node
	stack := make([]*Node, 0, len(roots))
	for _, r := range roots {
		if r != nil {
			stack = append(stack, r)
		}
	}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !visited.Insert(n.id) {
			continue
		}
		res = append(res, n)
		n.forEachStructural(func(m *Node) { stack = append(stack, m) })
		if inclWeak {
			for w := range n.weak {
				stack = append(stack, w)
			}
		}
	}
	return res
}

// IsTop returns true if the node holds any value of its type. A node whose flags or edges constrain it is not top.
func (n *Node) IsTop() bool {
	return n.isTopEquivalent(n.isThis)
}

// isTopEquivalent returns true if the node holds no more information than a child that is not materialized yet in
// a parent whose isThis flag is inheritedThis
func (n *Node) isTopEquivalent(inheritedThis bool) bool {
	if n.isThis != inheritedThis || n.isRead || len(n.this) > 0 || len(n.weak) > 0 || len(n.copies) > 0 ||
		n.subStruct != nil {
		return false
	}
	switch n.kind {
	case KindInt:
		return n.rng.IsFull()
	case KindFunction:
		return n.callees == nil
	case KindPointer:
		return n.null == MaybeNull && n.pointee == nil
	case KindStruct, KindSequential:
		for _, c := range n.children {
			if c != nil && !c.isTopEquivalent(n.isThis) {
				return false
			}
		}
	}
	return true
}

func (n *Node) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "#%d %s %s", n.id, n.kind, n.typ)
	switch n.kind {
	case KindInt:
		fmt.Fprintf(&b, " %s", n.rng)
	case KindFunction:
		if fs, ok := n.Callees(); ok {
			var names []string
			for _, f := range fs {
				names = append(names, f.Name())
			}
			fmt.Fprintf(&b, " {%s}", strings.Join(names, ", "))
		} else {
			b.WriteString(" unknown")
		}
	case KindPointer:
		fmt.Fprintf(&b, " %s", n.null)
		if n.pointee != nil {
			fmt.Fprintf(&b, " -> #%d", n.pointee.id)
		}
	case KindStruct, KindSequential:
		b.WriteString(" [")
		for i, c := range n.children {
			if i > 0 {
				b.WriteString(" ")
			}
			if c == nil {
				b.WriteString("_")
			} else {
				fmt.Fprintf(&b, "#%d", c.id)
			}
		}
		b.WriteString("]")
		if n.subStruct != nil {
			fmt.Fprintf(&b, " sub #%d", n.subStruct.id)
		}
	}
	if n.isThis {
		b.WriteString(" this")
	}
	if n.isRead {
		b.WriteString(" read")
	}
	for _, e := range []struct {
		name  string
		nodes map[*Node]bool
	}{{"this", n.this}, {"weak", n.weak}, {"copy", n.copies}} {
		if len(e.nodes) == 0 {
			continue
		}
		var ids []string
		for _, m := range sortedNodes(e.nodes) {
			ids = append(ids, fmt.Sprintf("#%d", m.id))
		}
		fmt.Fprintf(&b, " %s(%s)", e.name, strings.Join(ids, " "))
	}
	return b.String()
}
