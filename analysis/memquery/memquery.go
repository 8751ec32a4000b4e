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

// Package memquery recognizes the memory manipulation patterns of compiled C++ code: the bitcast of the result of
// an allocation function, the bitcast of a buffer that is set to zero or to all ones by a memset, and the calls
// that have no effect on the shape of memory (copies, lifetime markers, debug intrinsics and assertion handlers).
package memquery

import (
	"github.com/awslabs/ar-immutability/analysis/config"
	"github.com/awslabs/ar-immutability/analysis/ir"
)

// Query holds the memory patterns of a module. It is read-only after New returns.
type Query struct {
	cfg     *config.Config
	logger  *config.LogGroup
	alloc   map[*ir.Cast]bool
	zero    map[*ir.Cast]bool
	allOnes map[*ir.Cast]bool
	ignored map[ir.Instruction]bool
}

// New computes the memory patterns of all the functions of m
func New(m *ir.Module, cfg *config.Config, logger *config.LogGroup) *Query {
	q := &Query{
		cfg:     cfg,
		logger:  logger,
		alloc:   map[*ir.Cast]bool{},
		zero:    map[*ir.Cast]bool{},
		allOnes: map[*ir.Cast]bool{},
		ignored: map[ir.Instruction]bool{},
	}
	for _, f := range m.Functions {
		uses := usesOf(f)
		for _, b := range f.Blocks {
			for _, i := range b.Instrs {
				switch i := i.(type) {
				case *ir.Cast:
					if i.Op == ir.Bitcast {
						q.populateAlloc(i, uses)
						q.populateMem(i, uses)
					}
				case *ir.Call:
					q.populateIgnoredCall(i)
				}
			}
		}
	}
	logger.Debugf("memory patterns: %d allocations, %d zero buffers, %d ignored instructions\n",
		len(q.alloc), len(q.zero), len(q.ignored))
	return q
}

// usesOf maps each value defined in f to the instructions using it
func usesOf(f *ir.Function) map[ir.Value][]ir.Instruction {
	uses := map[ir.Value][]ir.Instruction{}
	for _, b := range f.Blocks {
		for _, i := range b.Instrs {
			for _, op := range i.Operands() {
				uses[op] = append(uses[op], i)
			}
		}
	}
	return uses
}

func calleeName(c ir.CallInstruction) string {
	if f := c.Common().StaticCallee(); f != nil {
		return f.Name()
	}
	return ""
}

// populateAlloc marks the bitcast of an i8* returned by an allocation function, when the bitcast is the only use of
// the allocation
func (q *Query) populateAlloc(c *ir.Cast, uses map[ir.Value][]ir.Instruction) {
	if !ir.IsBytePointer(c.X.Type()) {
		return
	}
	call, ok := c.X.(*ir.Call)
	if !ok {
		return
	}
	callUses := uses[call]
	if len(callUses) != 1 || callUses[0] != ir.Instruction(c) {
		return
	}
	if name := calleeName(call); name != "" && q.cfg.AllocFunctions.Match(name) {
		q.ignored[call] = true
		q.alloc[c] = true
	}
}

// populateMem handles the bitcast to i8* whose only use is a call to a memory intrinsic
func (q *Query) populateMem(c *ir.Cast, uses map[ir.Value][]ir.Instruction) {
	if !ir.IsBytePointer(c.Type()) {
		return
	}
	castUses := uses[c]
	if len(castUses) != 1 {
		return
	}
	call, ok := castUses[0].(*ir.Call)
	if !ok {
		return
	}
	name := calleeName(call)
	switch {
	case name == "":
		return
	case q.cfg.LifetimeFunctions.Match(name), q.cfg.MemcpyFunctions.Match(name):
		q.ignored[c] = true
		q.ignored[call] = true
	case q.cfg.MemsetFunctions.Match(name):
		if len(call.Args) < 2 {
			return
		}
		v, ok := call.Args[1].(*ir.ConstInt)
		if !ok {
			return
		}
		switch {
		case v.Value == 0:
			q.zero[c] = true
			q.ignored[call] = true
		case isAllOnes(v):
			q.allOnes[c] = true
			q.ignored[call] = true
		default:
			q.logger.Debugf("memset with value %d in %s is not recognized\n", v.Value, call.Block().Parent().Name())
		}
	}
}

func isAllOnes(v *ir.ConstInt) bool {
	if v.Value == -1 {
		return true
	}
	bits := v.Typ.Bits
	return bits < 64 && v.Value == (int64(1)<<bits)-1
}

func (q *Query) populateIgnoredCall(c *ir.Call) {
	name := calleeName(c)
	if name == "" {
		return
	}
	if q.cfg.AssertFunctions.Match(name) || q.cfg.DebugFunctions.Match(name) {
		q.ignored[c] = true
	}
}

// IsAlloc returns true if the bitcast converts a fresh allocation
func (q *Query) IsAlloc(c *ir.Cast) bool {
	return q.alloc[c]
}

// IsZero returns true if the bitcast converts a buffer that is set to zero
func (q *Query) IsZero(c *ir.Cast) bool {
	return q.zero[c]
}

// IsAllOnes returns true if the bitcast converts a buffer whose bits are all set
func (q *Query) IsAllOnes(c *ir.Cast) bool {
	return q.allOnes[c]
}

// IsIgnoredInstruction returns true if the instruction has no effect on the analysis
func (q *Query) IsIgnoredInstruction(i ir.Instruction) bool {
	return q.ignored[i]
}
