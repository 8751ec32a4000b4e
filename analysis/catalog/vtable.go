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

package catalog

import (
	"github.com/awslabs/ar-immutability/analysis/ir"
)

// findVTableInstructions finds the virtual call sequences of f. A sequence starts at an access tagged as a vtable
// pointer access:
//
//	%vp = bitcast %class.A* %this to i32 (%class.A*)***
//	%vtable = load i32 (%class.A*)**, i32 (%class.A*)*** %vp      ; !tbaa "vtable pointer"
//	%slot = getelementptr i32 (%class.A*)*, i32 (%class.A*)** %vtable, i64 2
//	%fn = load i32 (%class.A*)*, i32 (%class.A*)** %slot
//	%r = call i32 %fn(%class.A* %this)
//
// All the instructions of the sequence are mapped to the slot index. A store of the vtable pointer only happens in
// constructors; the store and its bitcast are ignored.
func (c *Catalog) findVTableInstructions(f *ir.Function) {
	for _, b := range f.Blocks {
		for k, i := range b.Instrs {
			if i.Meta().TBAA == ir.VTablePointerTBAA {
				c.handleVTablePointer(f, b.Instrs, k)
			}
		}
	}
}

//gocyclo:ignore
func (c *Catalog) handleVTablePointer(f *ir.Function, instrs []ir.Instruction, k int) {
	if k == 0 {
		c.logger.Debugf("vtable access at the start of a block in %s\n", f.Name())
		return
	}
	cast, ok := instrs[k-1].(*ir.Cast)
	if !ok || cast.Op != ir.Bitcast {
		c.logger.Debugf("vtable access without bitcast in %s: %s\n", f.Name(), instrs[k])
		return
	}
	switch i := instrs[k].(type) {
	case *ir.Store:
		c.ignoredInstrs[cast] = true
		c.ignoredInstrs[i] = true
		return
	case *ir.Load:
	default:
		c.logger.Debugf("unexpected vtable access in %s: %s\n", f.Name(), instrs[k])
		return
	}
	sequence := []ir.Instruction{cast, instrs[k]}
	j := k + 1
	if j >= len(instrs) {
		return
	}
	gep, ok := instrs[j].(*ir.GEP)
	if !ok || len(gep.Indices) != 1 {
		c.logger.Debugf("unexpected vtable slot computation in %s: %s\n", f.Name(), instrs[j])
		return
	}
	slot, ok := ir.ConstIntValue(gep.Indices[0])
	if !ok || slot < 0 {
		c.logger.Debugf("non-constant vtable slot in %s: %s\n", f.Name(), gep)
		return
	}
	sequence = append(sequence, gep)
	j++
	if j < len(instrs) {
		if bc, isCast := instrs[j].(*ir.Cast); isCast && bc.Op == ir.Bitcast {
			c.ignoredInstrs[bc] = true
			j++
		}
	}
	if j >= len(instrs) {
		return
	}
	entry, ok := instrs[j].(*ir.Load)
	if !ok {
		c.logger.Debugf("unexpected vtable entry load in %s: %s\n", f.Name(), instrs[j])
		return
	}
	sequence = append(sequence, entry)
	// the arguments of the call may be computed between the entry load and the call
	for j++; j < len(instrs); j++ {
		if _, isCall := instrs[j].(ir.CallInstruction); isCall {
			sequence = append(sequence, instrs[j])
			break
		}
	}
	for _, i := range sequence {
		c.vtableInstrs[i] = int(slot)
	}
}
