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
	"github.com/awslabs/ar-immutability/analysis/ir"
)

// AliasKind is the origin of the memory a node represents
type AliasKind int

const (
	// Known memory is allocated by the analyzed code
	Known AliasKind = iota
	// Unknown memory was materialized from outside the analyzed code
	Unknown
	// KnownElement is an element of a composite value in known memory
	KnownElement
	// UnknownElement is an element of a composite value in unknown memory
	UnknownElement
)

var aliasKindNames = [...]string{"known", "unknown", "known-element", "unknown-element"}

func (k AliasKind) String() string { return aliasKindNames[k] }

// element identifies the position of an element node in its parent: the type of the parent and the index
type element struct {
	container string
	index     int
}

type aliasEntry struct {
	kind AliasKind
	elem element
	typ  string
}

// MemoryAliases indexes the nodes of a graph by the origin of their memory. Two nodes of unknown memory with the
// same type, or two elements of unknown memory at the same position of the same type of composite, may be the same
// memory.
type MemoryAliases struct {
	entries        map[*Node]aliasEntry
	unknownByType  map[string]map[*Node]bool
	unknownElemsAt map[element]map[*Node]bool
	unknownElemsOf map[string]map[*Node]bool
}

// NewMemoryAliases returns an empty index
func NewMemoryAliases() *MemoryAliases {
	a := &MemoryAliases{}
	a.Clear()
	return a
}

// Clear removes all the nodes from the index
func (a *MemoryAliases) Clear() {
	a.entries = map[*Node]aliasEntry{}
	a.unknownByType = map[string]map[*Node]bool{}
	a.unknownElemsAt = map[element]map[*Node]bool{}
	a.unknownElemsOf = map[string]map[*Node]bool{}
}

// Len returns the number of nodes in the index
func (a *MemoryAliases) Len() int { return len(a.entries) }

func addTo[K comparable](m map[K]map[*Node]bool, k K, n *Node) {
	s, ok := m[k]
	if !ok {
		s = map[*Node]bool{}
		m[k] = s
	}
	s[n] = true
}

// AddKnown registers n as known memory
func (a *MemoryAliases) AddKnown(n *Node) {
	a.Remove(n)
	a.entries[n] = aliasEntry{kind: Known}
}

// AddUnknown registers n as unknown memory
func (a *MemoryAliases) AddUnknown(n *Node) {
	a.Remove(n)
	a.entries[n] = aliasEntry{kind: Unknown, typ: n.typ.String()}
	addTo(a.unknownByType, n.typ.String(), n)
}

// AddElement registers n as the element index of a composite of type container. The kind of the element follows
// the kind of its parent.
func (a *MemoryAliases) AddElement(parent *Node, container ir.Type, index int, n *Node) {
	a.Remove(n)
	e := element{container: container.String(), index: index}
	if a.isUnknown(parent) {
		a.entries[n] = aliasEntry{kind: UnknownElement, elem: e, typ: n.typ.String()}
		addTo(a.unknownElemsAt, e, n)
		addTo(a.unknownElemsOf, n.typ.String(), n)
	} else {
		a.entries[n] = aliasEntry{kind: KnownElement, elem: e}
	}
}

func (a *MemoryAliases) isUnknown(n *Node) bool {
	e, ok := a.entries[n]
	// Memory that was never registered comes from outside the analyzed code
	return !ok || e.kind == Unknown || e.kind == UnknownElement
}

// Kind returns the kind of n, and false if n is not in the index
func (a *MemoryAliases) Kind(n *Node) (AliasKind, bool) {
	e, ok := a.entries[n]
	return e.kind, ok
}

// Remove removes n from the index
func (a *MemoryAliases) Remove(n *Node) {
	e, ok := a.entries[n]
	if !ok {
		return
	}
	delete(a.entries, n)
	switch e.kind {
	case Unknown:
		delete(a.unknownByType[e.typ], n)
	case UnknownElement:
		delete(a.unknownElemsAt[e.elem], n)
		delete(a.unknownElemsOf[e.typ], n)
	}
}

// WeakEdges returns the nodes that may be the same memory as n, ordered by id
func (a *MemoryAliases) WeakEdges(n *Node) []*Node {
	e, ok := a.entries[n]
	if !ok {
		return nil
	}
	res := map[*Node]bool{}
	add := func(s map[*Node]bool) {
		for m := range s {
			if m != n {
				res[m] = true
			}
		}
	}
	switch e.kind {
	case Unknown:
		add(a.unknownByType[e.typ])
		add(a.unknownElemsOf[e.typ])
	case UnknownElement:
		add(a.unknownElemsAt[e.elem])
		add(a.unknownByType[e.typ])
	}
	return sortedNodes(res)
}

// cloneInto copies the index into dst, translating the nodes with img. Nodes without an image are dropped.
func (a *MemoryAliases) cloneInto(dst *MemoryAliases, img func(*Node) *Node) {
	for n, e := range a.entries {
		if m := img(n); m != nil {
			dst.setEntry(m, e)
		}
	}
}

func (a *MemoryAliases) entry(n *Node) (aliasEntry, bool) {
	e, ok := a.entries[n]
	return e, ok
}

func (a *MemoryAliases) setEntry(n *Node, e aliasEntry) {
	a.Remove(n)
	a.entries[n] = e
	switch e.kind {
	case Unknown:
		addTo(a.unknownByType, e.typ, n)
	case UnknownElement:
		addTo(a.unknownElemsAt, e.elem, n)
		addTo(a.unknownElemsOf, e.typ, n)
	}
}

// sameEntry returns true if the two nodes are registered with the same kind and position in their indices
func sameEntry(a *MemoryAliases, x *Node, b *MemoryAliases, y *Node) bool {
	ex, okx := a.entries[x]
	ey, oky := b.entries[y]
	return okx == oky && ex == ey
}
