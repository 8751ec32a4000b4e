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

// Package catalog computes the classes of a module from its debug information: the public const methods of each
// class (including inherited ones), the virtual tables, the supertype relation and the instructions that implement
// virtual dispatch.
//
// The catalog is built once with Build and is read-only afterwards; all its queries are safe for concurrent use.
package catalog

import (
	"fmt"
	"strings"

	"github.com/awslabs/ar-immutability/analysis/config"
	"github.com/awslabs/ar-immutability/analysis/demangle"
	"github.com/awslabs/ar-immutability/analysis/ir"
	"github.com/awslabs/ar-immutability/analysis/store"
	"github.com/awslabs/ar-immutability/internal/graphutil"
)

// Catalog is the class information of a module
type Catalog struct {
	module    *ir.Module
	demangler *demangle.Demangler
	logger    *config.LogGroup

	types   []*ir.StructType
	isType  map[*ir.StructType]bool
	ignored map[*ir.StructType]bool
	methods []*ir.Function

	// debugType maps a type with methods to the struct type declaring its debug information, and classOf maps
	// back the declaring type to the first type with methods found for it
	debugType map[*ir.StructType]*ir.StructType
	classOf   map[*ir.StructType]*ir.StructType

	directPublicConst map[*ir.StructType][]*ir.Function
	directVirtual     map[*ir.StructType][]*ir.Function

	supertypes  map[*ir.StructType][]*ir.StructType
	publicConst map[*ir.StructType][]*ir.Function
	vtables     map[*ir.StructType][]*ir.Function

	ignoredInstrs map[ir.Instruction]bool
	vtableInstrs  map[ir.Instruction]int

	embedding *graphutil.Indexed[*ir.StructType]
}

// Build computes the catalog of module m
func Build(m *ir.Module, d *demangle.Demangler, logger *config.LogGroup) *Catalog {
	c := &Catalog{
		module:            m,
		demangler:         d,
		logger:            logger,
		isType:            map[*ir.StructType]bool{},
		ignored:           map[*ir.StructType]bool{},
		debugType:         map[*ir.StructType]*ir.StructType{},
		classOf:           map[*ir.StructType]*ir.StructType{},
		directPublicConst: map[*ir.StructType][]*ir.Function{},
		directVirtual:     map[*ir.StructType][]*ir.Function{},
		supertypes:        map[*ir.StructType][]*ir.StructType{},
		publicConst:       map[*ir.StructType][]*ir.Function{},
		vtables:           map[*ir.StructType][]*ir.Function{},
		ignoredInstrs:     map[ir.Instruction]bool{},
		vtableInstrs:      map[ir.Instruction]int{},
		embedding:         graphutil.NewIndexed[*ir.StructType](),
	}
	c.buildEmbedding()
	c.populateDirect()
	for _, t := range c.types {
		c.populateInherited(t)
	}
	for _, f := range m.Functions {
		if !f.Empty() {
			c.findVTableInstructions(f)
		}
	}
	logger.Debugf("catalog of %s: %d classes, %d methods, %d vtable instructions\n",
		m.Name, len(c.types), len(c.methods), len(c.vtableInstrs))
	return c
}

// IsIgnoredType returns true for the types whose methods are not analyzed: types that are not classes or structs,
// library types and anonymous types.
func IsIgnoredType(t *ir.StructType) bool {
	name := t.Name
	var unqualified string
	switch {
	case strings.HasPrefix(name, "class."):
		unqualified = strings.TrimPrefix(name, "class.")
	case strings.HasPrefix(name, "struct."):
		unqualified = strings.TrimPrefix(name, "struct.")
	default:
		return true
	}
	for _, ns := range []string{"std::", "__gnu_cxx::", "google::", "anon."} {
		if strings.HasPrefix(unqualified, ns) {
			return true
		}
	}
	return unqualified == "anon"
}

// receiverType returns the struct pointed to by the first non-sret argument of f, or nil
func receiverType(f *ir.Function) *ir.StructType {
	this := f.ThisArg()
	if this == nil {
		return nil
	}
	return ir.PointeeStruct(this.Type())
}

func isPublic(sp *ir.Subprogram, t *ir.StructType) bool {
	switch sp.Access {
	case ir.AccessPublic:
		return true
	case ir.AccessUnspecified:
		// class members are private by default, struct members public
		return !strings.HasPrefix(t.Name, "class.")
	default:
		return false
	}
}

//gocyclo:ignore
func (c *Catalog) populateDirect() {
	for _, f := range c.module.Functions {
		if f.Empty() {
			continue
		}
		t := receiverType(f)
		if t == nil || f.Debug == nil || !f.Debug.IsMethod {
			continue
		}
		if info, err := c.demangler.Demangle(f.Name()); err != nil || info.CtorOrDtor {
			continue
		}
		debugTy := c.module.StructType(f.Debug.Class)
		if debugTy == nil {
			debugTy = t
		}
		if IsIgnoredType(t) {
			if !c.ignored[t] {
				c.ignored[t] = true
				c.registerDebugType(t, debugTy)
			}
			continue
		}
		c.methods = append(c.methods, f)
		if !c.isType[t] {
			c.isType[t] = true
			c.types = append(c.types, t)
			c.registerDebugType(t, debugTy)
		}
		if f.Debug.ConstThis && isPublic(f.Debug, t) {
			c.directPublicConst[t] = append(c.directPublicConst[t], f)
		}
		if idx := f.Debug.VirtualIndex; idx >= 0 {
			vt := c.directVirtual[t]
			for len(vt) <= idx {
				vt = append(vt, nil)
			}
			vt[idx] = f
			c.directVirtual[t] = vt
		}
	}
}

func (c *Catalog) registerDebugType(t, debugTy *ir.StructType) {
	c.debugType[t] = debugTy
	if _, ok := c.classOf[debugTy]; !ok {
		c.classOf[debugTy] = t
	}
}

// populateInherited computes the supertypes, the inherited public const methods and the virtual table of t with a
// breadth-first traversal of the inheritance relation.
func (c *Catalog) populateInherited(t *ir.StructType) {
	visited := map[*ir.StructType]bool{}
	queue := []*ir.StructType{c.debugType[t]}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		visited[current] = true
		for _, super := range current.Bases {
			if !visited[super] {
				if st, ok := c.classOf[super]; ok {
					c.supertypes[t] = appendNew(c.supertypes[t], st)
				}
				queue = append(queue, super)
			}
		}
		currentTy, ok := c.classOf[current]
		if !ok {
			continue
		}
		for _, f := range c.directPublicConst[currentTy] {
			if !c.hasSameSignature(c.publicConst[t], f) {
				c.publicConst[t] = append(c.publicConst[t], f)
			}
		}
		vt := c.vtables[t]
		for idx, f := range c.directVirtual[currentTy] {
			for len(vt) <= idx {
				vt = append(vt, nil)
			}
			if f != nil && vt[idx] == nil {
				vt[idx] = f
			}
		}
		c.vtables[t] = vt
	}
}

func appendNew[T comparable](a []T, x T) []T {
	for _, y := range a {
		if y == x {
			return a
		}
	}
	return append(a, x)
}

func (c *Catalog) hasSameSignature(methods []*ir.Function, f *ir.Function) bool {
	info, err := c.demangler.Demangle(f.Name())
	if err != nil {
		return false
	}
	for _, g := range methods {
		if other, err := c.demangler.Demangle(g.Name()); err == nil && demangle.SameSignature(info, other) {
			return true
		}
	}
	return false
}

// Types returns the classes with methods, in the order they are found in the module
func (c *Catalog) Types() []*ir.StructType {
	return c.types
}

// Methods returns all the methods of the classes of the catalog
func (c *Catalog) Methods() []*ir.Function {
	return c.methods
}

// PublicConstMethods returns the public const methods of t, declared or inherited
func (c *Catalog) PublicConstMethods(t *ir.StructType) []*ir.Function {
	return c.publicConst[t]
}

// Supertypes returns the classes with methods that t inherits from
func (c *Catalog) Supertypes(t *ir.StructType) []*ir.StructType {
	return c.supertypes[t]
}

// VirtualTable returns the virtual table of t. Slots without a known method are nil.
func (c *Catalog) VirtualTable(t *ir.StructType) []*ir.Function {
	return c.vtables[t]
}

// IsIgnoredInstruction returns true if the instruction has no effect on the analysis
func (c *Catalog) IsIgnoredInstruction(i ir.Instruction) bool {
	return c.ignoredInstrs[i]
}

// IsVTableInstruction returns true if the instruction is part of a virtual call sequence
func (c *Catalog) IsVTableInstruction(i ir.Instruction) bool {
	_, ok := c.vtableInstrs[i]
	return ok
}

// VirtualTableEntry returns the method called by the virtual call sequence instruction i when the dynamic type of
// the receiver is t. It returns nil when the slot is not known, in which case the call has no known target.
func (c *Catalog) VirtualTableEntry(i ir.Instruction, t *ir.StructType) *ir.Function {
	slot, ok := c.vtableInstrs[i]
	if !ok {
		return nil
	}
	vt := c.vtables[t]
	if slot >= len(vt) {
		return nil
	}
	return vt[slot]
}

// Entries returns the records of the classes and their public const methods for the store. Methods are named after
// their demangled qualified name.
func (c *Catalog) Entries() []store.Entry {
	var entries []store.Entry
	for _, t := range c.types {
		e := store.Entry{Name: t.Name}
		for _, f := range c.publicConst[t] {
			name := f.Name()
			if info, err := c.demangler.Demangle(f.Name()); err == nil {
				name = info.Qualified
			}
			e.Methods = append(e.Methods, store.MethodEntry{Name: name, MangledName: f.Name()})
		}
		entries = append(entries, e)
	}
	return entries
}

// String returns a description of the catalog
func (c *Catalog) String() string {
	var sb strings.Builder
	for _, t := range c.types {
		fmt.Fprintf(&sb, "# %s\n", t.Name)
		if supers := c.supertypes[t]; len(supers) > 0 {
			sb.WriteString("  - Supertypes\n")
			for _, s := range supers {
				fmt.Fprintf(&sb, "    - %s\n", s.Name)
			}
		}
		if vt := c.vtables[t]; len(vt) > 0 {
			sb.WriteString("  - Virtual Table\n")
			for idx, f := range vt {
				name := "[null]"
				if f != nil {
					name = f.Name()
				}
				fmt.Fprintf(&sb, "    - %d: %s\n", idx, name)
			}
		}
		fmt.Fprintf(&sb, "  - Public Const Methods: %d\n", len(c.publicConst[t]))
		for _, f := range c.publicConst[t] {
			fmt.Fprintf(&sb, "    - %s\n", f.Name())
		}
	}
	return sb.String()
}
