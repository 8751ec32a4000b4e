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

package ir

import (
	"fmt"
	"strings"
)

// BasicBlock is a sequence of instructions ending with a terminator.
type BasicBlock struct {
	Index  int
	Name   string
	Instrs []Instruction
	Preds  []*BasicBlock
	Succs  []*BasicBlock
	parent *Function
}

// Parent returns the function containing the block
func (b *BasicBlock) Parent() *Function { return b.parent }

// Terminator returns the last instruction of the block, or nil if the block is empty or not terminated
func (b *BasicBlock) Terminator() Terminator {
	if len(b.Instrs) == 0 {
		return nil
	}
	t, _ := b.Instrs[len(b.Instrs)-1].(Terminator)
	return t
}

// EndsInUnreachable returns true if the block is terminated by an unreachable instruction
func (b *BasicBlock) EndsInUnreachable() bool {
	_, ok := b.Terminator().(*Unreachable)
	return ok
}

// PredIndex returns the index of p in the predecessors of b, or -1
func (b *BasicBlock) PredIndex(p *BasicBlock) int {
	for i, pred := range b.Preds {
		if pred == p {
			return i
		}
	}
	return -1
}

func (b *BasicBlock) String() string {
	return b.parent.Name() + ":" + b.Name
}

// Access is the access specifier of a method
type Access int

const (
	AccessUnspecified Access = iota
	AccessPublic
	AccessProtected
	AccessPrivate
)

func (a Access) String() string {
	switch a {
	case AccessPublic:
		return "public"
	case AccessProtected:
		return "protected"
	case AccessPrivate:
		return "private"
	default:
		return "unspecified"
	}
}

// Subprogram is the debug information of a function.
type Subprogram struct {
	// Name is the source name of the function
	Name string
	// IsMethod is true for member functions
	IsMethod bool
	// ConstThis is true if the implicit object parameter is const
	ConstThis bool
	// Class is the name of the struct type of the class declaring the method
	Class string
	// Access is the access specifier of the method declaration
	Access Access
	// VirtualIndex is the slot of the method in the virtual table, or -1 if the method is not virtual
	VirtualIndex int
}

// Function is a function of the module. A function without blocks is only declared in the module.
type Function struct {
	name   string
	Sig    *FunctionType
	Params []*Argument
	Blocks []*BasicBlock
	Debug  *Subprogram
	module *Module
	temps  int
}

// NewFunction returns a function without body. Parameter names default to their index.
func NewFunction(name string, sig *FunctionType, paramNames ...string) *Function {
	f := &Function{name: name, Sig: sig}
	for i, t := range sig.Params {
		pname := fmt.Sprintf("%d", i)
		if i < len(paramNames) && paramNames[i] != "" {
			pname = paramNames[i]
		}
		f.Params = append(f.Params, &Argument{name: pname, typ: t, Index: i, parent: f})
	}
	return f
}

func (f *Function) Name() string     { return f.name }
func (f *Function) Type() Type       { return PointerTo(f.Sig) }
func (f *Function) String() string   { return "@" + f.name }
func (f *Function) Module() *Module  { return f.module }
func (f *Function) IsVariadic() bool { return f.Sig.Variadic }
func (f *Function) isConstant()      {}

// Empty returns true if the function has no body
func (f *Function) Empty() bool { return len(f.Blocks) == 0 }

// Entry returns the entry block of the function, or nil if it has no body
func (f *Function) Entry() *BasicBlock {
	if f.Empty() {
		return nil
	}
	return f.Blocks[0]
}

// ReturnsVoid returns true if the function does not return a value
func (f *Function) ReturnsVoid() bool {
	_, ok := f.Sig.Result.(*VoidType)
	return ok
}

// ThisArg returns the first argument that is not the struct return slot. For methods, it is the receiver.
func (f *Function) ThisArg() *Argument {
	for _, p := range f.Params {
		if !p.SRet {
			return p
		}
	}
	return nil
}

// NewBlock appends a new empty block to the function
func (f *Function) NewBlock(name string) *BasicBlock {
	b := &BasicBlock{Index: len(f.Blocks), Name: name, parent: f}
	if b.Name == "" {
		b.Name = fmt.Sprintf("bb%d", b.Index)
	}
	f.Blocks = append(f.Blocks, b)
	return b
}

// Finalize computes the predecessors and successors of the blocks from their terminators. It returns an error if
// some block is not terminated.
func (f *Function) Finalize() error {
	for _, b := range f.Blocks {
		b.Preds = nil
		b.Succs = nil
	}
	for _, b := range f.Blocks {
		t := b.Terminator()
		if t == nil {
			return fmt.Errorf("block %s of %s is not terminated", b.Name, f.name)
		}
		for _, s := range t.Successors() {
			b.Succs = append(b.Succs, s)
			s.Preds = append(s.Preds, b)
		}
	}
	return nil
}

// Instructions returns all the instructions of the function, in block order
func (f *Function) Instructions() []Instruction {
	var instrs []Instruction
	for _, b := range f.Blocks {
		instrs = append(instrs, b.Instrs...)
	}
	return instrs
}

// Uses returns the instructions of the function using v as an operand
func (f *Function) Uses(v Value) []Instruction {
	var uses []Instruction
	for _, b := range f.Blocks {
		for _, i := range b.Instrs {
			for _, op := range i.Operands() {
				if op == v {
					uses = append(uses, i)
					break
				}
			}
		}
	}
	return uses
}

// Dump returns a textual representation of the function
func (f *Function) Dump() string {
	var sb strings.Builder
	var params []string
	for _, p := range f.Params {
		params = append(params, fmt.Sprintf("%s %%%s", p.typ, p.name))
	}
	fmt.Fprintf(&sb, "define %s @%s(%s) {\n", f.Sig.Result, f.name, strings.Join(params, ", "))
	for _, b := range f.Blocks {
		fmt.Fprintf(&sb, "%s:\n", b.Name)
		for _, i := range b.Instrs {
			fmt.Fprintf(&sb, "  %s\n", i)
		}
	}
	sb.WriteString("}\n")
	return sb.String()
}

// Module is a set of struct types, globals and functions.
type Module struct {
	Name      string
	Types     []*StructType
	Globals   []*Global
	Functions []*Function
	funcs     map[string]*Function
	types     map[string]*StructType
}

// NewModule returns an empty module
func NewModule(name string) *Module {
	return &Module{Name: name, funcs: map[string]*Function{}, types: map[string]*StructType{}}
}

// AddType adds a named struct type to the module
func (m *Module) AddType(t *StructType) *StructType {
	m.Types = append(m.Types, t)
	m.types[t.Name] = t
	return t
}

// AddFunction adds a function to the module
func (m *Module) AddFunction(f *Function) *Function {
	f.module = m
	m.Functions = append(m.Functions, f)
	m.funcs[f.name] = f
	return f
}

// AddGlobal adds a global variable to the module
func (m *Module) AddGlobal(g *Global) *Global {
	m.Globals = append(m.Globals, g)
	return g
}

// Function returns the function named name, or nil
func (m *Module) Function(name string) *Function {
	return m.funcs[name]
}

// StructType returns the struct type named name, or nil
func (m *Module) StructType(name string) *StructType {
	return m.types[name]
}
