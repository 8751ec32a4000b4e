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

// accessible returns the nodes an unknown function may access through the roots: the nodes reachable through
// structural and weak edges, and the nodes reachable from the receiver nodes they may hold
func accessible(roots []*Node) []*Node {
	reach := ReachableInclWeak(roots...)
	var targets []*Node
	for _, n := range reach {
		targets = append(targets, n.ThisEdges()...)
	}
	if len(targets) == 0 {
		return reach
	}
	return ReachableInclWeak(append(roots, targets...)...)
}

// HandleUnknownCall applies the effect of a call to a function whose body is not analyzed. The callee may read the
// receiver state reachable from the arguments, may modify the other memory reachable from them, and may make any
// two reachable objects of the same type alias. A pointer result may point to the receiver state reachable from the
// arguments.
//
//gocyclo:ignore
func (g *Graph) HandleUnknownCall(call ir.CallInstruction) {
	if g.bottom {
		return
	}
	var roots []*Node
	args := map[*Node]bool{}
	for _, a := range call.Common().Args {
		n := g.Mapping(a)
		roots = append(roots, n)
		args[n] = true
	}
	reach := accessible(roots)
	byType := map[string][]*Node{}
	var thisNodes []*Node
	for _, n := range reach {
		if n.isThis {
			n.SetRead()
			thisNodes = append(thisNodes, n)
		} else if !args[n] {
			havoc(n)
		}
		if n.kind == KindPointer && n.pointee != nil {
			k := n.pointee.typ.String()
			byType[k] = append(byType[k], n.pointee)
		}
	}
	for _, ps := range byType {
		for i := range ps {
			for j := i + 1; j < len(ps); j++ {
				if ps[i] != ps[j] {
					AddWeakEdge(ps[i], ps[j])
				}
			}
		}
	}
	t := call.Type()
	if _, ok := t.(*ir.VoidType); ok {
		return
	}
	res := NewTop(t)
	if res.kind == KindPointer {
		elem := ir.Elem(t)
		var p *Node
		for _, n := range thisNodes {
			if ir.Identical(n.typ, t) {
				res.AddThisEdge(n)
			}
			if ir.Identical(n.typ, elem) {
				if p == nil {
					p = NewTop(elem)
					g.aliases.AddUnknown(p)
				}
				p.AddThisEdge(n)
				AddWeakEdge(p, n)
			}
		}
		res.pointee = p
	}
	g.mapping[call] = res
}

// HandleDefaultDeleteCall applies the effect of a call to a deleter, which only defines the result of the call
func (g *Graph) HandleDefaultDeleteCall(call ir.CallInstruction) {
	if g.bottom {
		return
	}
	if _, ok := call.Type().(*ir.VoidType); !ok {
		g.mapping[call] = NewTop(call.Type())
	}
}
