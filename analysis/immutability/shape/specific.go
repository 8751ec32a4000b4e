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

// specificity checks that the nodes of a hold less values than the nodes of b they are paired with
type specificity struct {
	visited map[nodePair]bool
	fwd     map[*Node]map[*Node]bool
	pairs   []nodePair
}

// acceptsMissing returns true if the child y of b, that is not materialized in a, holds any value
func acceptsMissing(y *Node, parentThis bool) bool {
	return y == nil || y.isTopEquivalent(parentThis)
}

// node returns true if x ⊑ y
//
//gocyclo:ignore
func (s *specificity) node(x, y *Node) bool {
	p := nodePair{x, y}
	if s.visited[p] {
		return true
	}
	s.visited[p] = true
	if x.kind != y.kind || !ir.Identical(x.typ, y.typ) {
		return y.IsTop()
	}
	if (x.isThis && !y.isThis) || (x.isRead && !y.isRead) {
		return false
	}
	if s.fwd[x] == nil {
		s.fwd[x] = map[*Node]bool{}
	}
	s.fwd[x][y] = true
	s.pairs = append(s.pairs, p)
	switch x.kind {
	case KindInt:
		if !y.rng.ContainsRange(x.rng) {
			return false
		}
	case KindFunction:
		if y.callees != nil {
			if x.callees == nil {
				return false
			}
			for f := range x.callees {
				if !y.callees[f] {
					return false
				}
			}
		}
	case KindPointer:
		if !x.null.LessEq(y.null) {
			return false
		}
		if !s.child(x.pointee, y.pointee, y.isThis) {
			return false
		}
	case KindStruct, KindSequential:
		for i := range x.children {
			if !s.child(x.children[i], y.children[i], y.isThis) {
				return false
			}
		}
		if !s.child(x.subStruct, y.subStruct, y.isThis) {
			return false
		}
	}
	return true
}

// coveredByMissing returns true if the flags of x and of its sub-objects are implied by a child that is not
// materialized in a parent whose isThis flag is inheritedThis
func coveredByMissing(x *Node, inheritedThis bool) bool {
	if x == nil {
		return true
	}
	if x.isRead || (x.isThis && !inheritedThis) {
		return false
	}
	for _, c := range x.children {
		if !coveredByMissing(c, x.isThis) {
			return false
		}
	}
	return coveredByMissing(x.subStruct, x.isThis)
}

func (s *specificity) child(x, y *Node, parentThis bool) bool {
	switch {
	case y == nil:
		return coveredByMissing(x, parentThis)
	case x == nil:
		return acceptsMissing(y, parentThis)
	}
	return s.node(x, y)
}

// edges returns true if the edges of a node of a map into the edges of its image in b. Targets without image are
// ignored.
func (s *specificity) edges(from, to map[*Node]bool) bool {
	for w := range from {
		imgs := s.fwd[w]
		if len(imgs) == 0 {
			continue
		}
		found := false
		for img := range imgs {
			if to[img] {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// MoreSpecific returns true if the graph a describes less states than the graph b: every value of b is mapped in a
// to a node that holds less values, with less aliasing.
func MoreSpecific(a, b *Graph) bool {
	if a.bottom {
		return true
	}
	if b.bottom {
		return false
	}
	s := &specificity{visited: map[nodePair]bool{}, fwd: map[*Node]map[*Node]bool{}}
	for _, v := range b.Values() {
		an, ok := a.mapping[v]
		if !ok || !s.node(an, b.mapping[v]) {
			return false
		}
	}
	if b.ret != nil && (a.ret == nil || !s.node(a.ret, b.ret)) {
		return false
	}
	for _, p := range s.pairs {
		if !s.edges(p.a.weak, p.b.weak) || !s.edges(p.a.this, p.b.this) {
			return false
		}
	}
	return true
}
