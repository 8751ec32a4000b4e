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
	"github.com/awslabs/ar-immutability/analysis/immutability/shape"
	"github.com/awslabs/ar-immutability/analysis/ir"
)

const (
	escapeArg = "ESCAPEARG"
	escapeRet = "ESCAPERET"
)

// allPointees returns the pointees of n, and the pointees of the fields of n when it is a struct
func allPointees(n *shape.Node) []*shape.Node {
	switch n.Kind() {
	case shape.KindPointer:
		if p := n.Pointee(); p != nil {
			return []*shape.Node{p}
		}
	case shape.KindStruct:
		var res []*shape.Node
		for i := 0; i < n.NumChildren(); i++ {
			if c := n.Child(i); c != nil {
				res = append(res, allPointees(c)...)
			}
		}
		return res
	}
	return nil
}

func markRead(n *shape.Node) {
	n.SetRead()
	for _, t := range n.ThisEdges() {
		t.SetRead()
	}
}

func holdsThis(n *shape.Node) bool {
	return n.IsThis() || n.HasThisEdges()
}

// checkArgument reports the method if a part of the receiver state is reachable from the memory the argument arg
// points to at the exit of the method. The receiver state reachable through the argument is marked read, up to the
// first receiver node found.
func (c *ClassAnalysis) checkArgument(method *ir.Function, res *shape.Graph, arg *ir.Argument) {
	for _, p := range allPointees(res.Mapping(arg)) {
		markRead(p)
		for _, r := range shape.Reachable(p) {
			if r.IsThis() {
				c.ReportIssue(method, escapeArg)
				break
			}
			if r.HasThisEdges() {
				c.ReportIssue(method, escapeArg)
			}
			markRead(r)
		}
	}
}

// checkReturn marks the receiver state reachable from the returned value read, and reports the method if a part of
// the receiver state is reachable from a returned pointer.
func (c *ClassAnalysis) checkReturn(method *ir.Function, res *shape.Graph) {
	ret := res.Return()
	reach := shape.Reachable(ret)
	for _, n := range reach {
		markRead(n)
	}
	if ret.Kind() != shape.KindPointer {
		return
	}
	for _, n := range reach {
		if holdsThis(n) {
			c.ReportIssue(method, escapeRet+" @ "+method.Name())
			return
		}
	}
}
