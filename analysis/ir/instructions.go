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

// VTablePointerTBAA is the TBAA tag of the loads and stores of virtual table pointers
const VTablePointerTBAA = "vtable pointer"

// Instruction is a statement of a basic block. Instructions that compute a value also implement Value.
type Instruction interface {
	// Block returns the basic block containing the instruction
	Block() *BasicBlock
	// Meta returns the metadata attached to the instruction
	Meta() *Metadata
	// Operands returns the values used by the instruction
	Operands() []Value
	String() string
	setBlock(b *BasicBlock)
}

// Terminator is the last instruction of a basic block.
type Terminator interface {
	Instruction
	Successors() []*BasicBlock
}

// CallInstruction is implemented by Call and Invoke.
type CallInstruction interface {
	Instruction
	Value
	Common() *CallCommon
}

// Metadata is the metadata attached to an instruction.
type Metadata struct {
	TBAA string
	Line int
	Col  int
}

type anInstruction struct {
	block *BasicBlock
	meta  Metadata
}

func (i *anInstruction) Block() *BasicBlock     { return i.block }
func (i *anInstruction) Meta() *Metadata        { return &i.meta }
func (i *anInstruction) setBlock(b *BasicBlock) { i.block = b }

type register struct {
	name string
	typ  Type
}

func (r *register) Name() string { return r.name }
func (r *register) Type() Type   { return r.typ }

// BinaryOp is the operator of a BinOp instruction
type BinaryOp int

const (
	Add BinaryOp = iota
	Sub
	Mul
	SDiv
	UDiv
	SRem
	URem
	And
	Or
	Xor
	Shl
	LShr
	AShr
	FAdd
	FSub
	FMul
	FDiv
)

var binaryOpNames = [...]string{"add", "sub", "mul", "sdiv", "udiv", "srem", "urem", "and", "or", "xor", "shl",
	"lshr", "ashr", "fadd", "fsub", "fmul", "fdiv"}

func (op BinaryOp) String() string { return binaryOpNames[op] }

// Predicate is the comparison of an ICmp instruction
type Predicate int

const (
	EQ Predicate = iota
	NE
	SLT
	SLE
	SGT
	SGE
	ULT
	ULE
	UGT
	UGE
)

var predicateNames = [...]string{"eq", "ne", "slt", "sle", "sgt", "sge", "ult", "ule", "ugt", "uge"}

func (p Predicate) String() string { return predicateNames[p] }

// Inverse returns the predicate that holds exactly when p does not
func (p Predicate) Inverse() Predicate {
	switch p {
	case EQ:
		return NE
	case NE:
		return EQ
	case SLT:
		return SGE
	case SLE:
		return SGT
	case SGT:
		return SLE
	case SGE:
		return SLT
	case ULT:
		return UGE
	case ULE:
		return UGT
	case UGT:
		return ULE
	default:
		return ULT
	}
}

// Swap returns the predicate p' such that x p y iff y p' x
func (p Predicate) Swap() Predicate {
	switch p {
	case SLT:
		return SGT
	case SLE:
		return SGE
	case SGT:
		return SLT
	case SGE:
		return SLE
	case ULT:
		return UGT
	case ULE:
		return UGE
	case UGT:
		return ULT
	case UGE:
		return ULE
	default:
		return p
	}
}

// CastOp is the conversion of a Cast instruction
type CastOp int

const (
	Bitcast CastOp = iota
	Trunc
	ZExt
	SExt
	PtrToInt
	IntToPtr
	FPToSI
	FPToUI
	SIToFP
	UIToFP
	FPExt
	FPTrunc
)

var castOpNames = [...]string{"bitcast", "trunc", "zext", "sext", "ptrtoint", "inttoptr", "fptosi", "fptoui",
	"sitofp", "uitofp", "fpext", "fptrunc"}

func (op CastOp) String() string { return castOpNames[op] }

// BinOp is a binary arithmetic or bitwise operation.
type BinOp struct {
	anInstruction
	register
	Op   BinaryOp
	X, Y Value
}

// ICmp compares two integers or two pointers.
type ICmp struct {
	anInstruction
	register
	Pred Predicate
	X, Y Value
}

// FCmp compares two floating point values.
type FCmp struct {
	anInstruction
	register
	X, Y Value
}

// Alloca allocates a stack slot for a value of type Elem.
type Alloca struct {
	anInstruction
	register
	Elem Type
}

// Load reads the value at Addr.
type Load struct {
	anInstruction
	register
	Addr Value
}

// Store writes Val at Addr.
type Store struct {
	anInstruction
	Val  Value
	Addr Value
}

// GEP computes the address of an element of the aggregate pointed to by Base. Source is the static type pointed to
// by Base.
type GEP struct {
	anInstruction
	register
	Base    Value
	Source  Type
	Indices []Value
}

// Cast converts X to the type of the instruction.
type Cast struct {
	anInstruction
	register
	Op CastOp
	X  Value
}

// Phi selects Edges[i] when control comes from Preds[i].
type Phi struct {
	anInstruction
	register
	Edges []Value
	Preds []*BasicBlock
}

// Select is Cond ? T : F.
type Select struct {
	anInstruction
	register
	Cond Value
	T, F Value
}

// ExtractValue reads an element of an aggregate value held in a register.
type ExtractValue struct {
	anInstruction
	register
	Agg     Value
	Indices []int
}

// InsertValue returns a copy of the aggregate Agg where the element at Indices is Val.
type InsertValue struct {
	anInstruction
	register
	Agg     Value
	Val     Value
	Indices []int
}

// CallCommon holds the callee and the arguments of a call.
type CallCommon struct {
	Callee Value
	Args   []Value
}

// Signature returns the function type of the callee
func (c *CallCommon) Signature() *FunctionType {
	if ft, ok := Elem(c.Callee.Type()).(*FunctionType); ok {
		return ft
	}
	if f := CalledFunction(c.Callee); f != nil {
		return f.Sig
	}
	return nil
}

// StaticCallee returns the function called, if the callee is a function or a constant cast of a function
func (c *CallCommon) StaticCallee() *Function {
	return CalledFunction(c.Callee)
}

// Call is a call that returns to the next instruction.
type Call struct {
	anInstruction
	register
	CallCommon
}

// Invoke is a call that transfers control to Normal on return and to Unwind when the callee throws.
type Invoke struct {
	anInstruction
	register
	CallCommon
	Normal *BasicBlock
	Unwind *BasicBlock
}

func (c *Call) Common() *CallCommon   { return &c.CallCommon }
func (c *Invoke) Common() *CallCommon { return &c.CallCommon }

// LandingPad is the first instruction of an exception handling block.
type LandingPad struct {
	anInstruction
	register
}

// Ret returns from the function, with Val if the function is not void.
type Ret struct {
	anInstruction
	Val Value
}

// Br is an unconditional branch.
type Br struct {
	anInstruction
	Target *BasicBlock
}

// CondBr branches to Then if Cond is true, and to Else otherwise.
type CondBr struct {
	anInstruction
	Cond Value
	Then *BasicBlock
	Else *BasicBlock
}

// SwitchCase is a case of a Switch.
type SwitchCase struct {
	Value  int64
	Target *BasicBlock
}

// Switch branches to the target of the case equal to X, or to Default.
type Switch struct {
	anInstruction
	X       Value
	Default *BasicBlock
	Cases   []SwitchCase
}

// Unreachable marks a point that control never reaches.
type Unreachable struct {
	anInstruction
}

// Resume continues the propagation of an exception.
type Resume struct {
	anInstruction
	Val Value
}

func (i *BinOp) Operands() []Value        { return []Value{i.X, i.Y} }
func (i *ICmp) Operands() []Value         { return []Value{i.X, i.Y} }
func (i *FCmp) Operands() []Value         { return []Value{i.X, i.Y} }
func (i *Alloca) Operands() []Value       { return nil }
func (i *Load) Operands() []Value         { return []Value{i.Addr} }
func (i *Store) Operands() []Value        { return []Value{i.Val, i.Addr} }
func (i *GEP) Operands() []Value          { return append([]Value{i.Base}, i.Indices...) }
func (i *Cast) Operands() []Value         { return []Value{i.X} }
func (i *Phi) Operands() []Value          { return i.Edges }
func (i *Select) Operands() []Value       { return []Value{i.Cond, i.T, i.F} }
func (i *ExtractValue) Operands() []Value { return []Value{i.Agg} }
func (i *InsertValue) Operands() []Value  { return []Value{i.Agg, i.Val} }
func (i *Call) Operands() []Value         { return append([]Value{i.Callee}, i.Args...) }
func (i *Invoke) Operands() []Value       { return append([]Value{i.Callee}, i.Args...) }
func (i *LandingPad) Operands() []Value   { return nil }
func (i *Br) Operands() []Value           { return nil }
func (i *CondBr) Operands() []Value       { return []Value{i.Cond} }
func (i *Switch) Operands() []Value       { return []Value{i.X} }
func (i *Unreachable) Operands() []Value  { return nil }

func (i *Ret) Operands() []Value {
	if i.Val == nil {
		return nil
	}
	return []Value{i.Val}
}

func (i *Resume) Operands() []Value {
	if i.Val == nil {
		return nil
	}
	return []Value{i.Val}
}

func (i *Ret) Successors() []*BasicBlock         { return nil }
func (i *Br) Successors() []*BasicBlock          { return []*BasicBlock{i.Target} }
func (i *CondBr) Successors() []*BasicBlock      { return []*BasicBlock{i.Then, i.Else} }
func (i *Unreachable) Successors() []*BasicBlock { return nil }
func (i *Resume) Successors() []*BasicBlock      { return nil }
func (i *Invoke) Successors() []*BasicBlock      { return []*BasicBlock{i.Normal, i.Unwind} }

func (i *Switch) Successors() []*BasicBlock {
	succs := []*BasicBlock{i.Default}
	for _, c := range i.Cases {
		succs = append(succs, c.Target)
	}
	return succs
}

// Operand returns the representation of v when it is used as an operand
func Operand(v Value) string {
	if v == nil {
		return "<nil>"
	}
	switch v := v.(type) {
	case Constant:
		return v.String()
	case *Function:
		return "@" + v.Name()
	default:
		return "%" + v.Name()
	}
}

func operands(vs []Value) string {
	var s []string
	for _, v := range vs {
		s = append(s, Operand(v))
	}
	return strings.Join(s, ", ")
}

func (i *BinOp) String() string {
	return fmt.Sprintf("%%%s = %s %s, %s", i.name, i.Op, Operand(i.X), Operand(i.Y))
}

func (i *ICmp) String() string {
	return fmt.Sprintf("%%%s = icmp %s %s, %s", i.name, i.Pred, Operand(i.X), Operand(i.Y))
}

func (i *FCmp) String() string {
	return fmt.Sprintf("%%%s = fcmp %s, %s", i.name, Operand(i.X), Operand(i.Y))
}

func (i *Alloca) String() string { return fmt.Sprintf("%%%s = alloca %s", i.name, i.Elem) }
func (i *Load) String() string   { return fmt.Sprintf("%%%s = load %s", i.name, Operand(i.Addr)) }

func (i *Store) String() string {
	return fmt.Sprintf("store %s, %s", Operand(i.Val), Operand(i.Addr))
}

func (i *GEP) String() string {
	return fmt.Sprintf("%%%s = getelementptr %s, %s, %s", i.name, i.Source, Operand(i.Base), operands(i.Indices))
}

func (i *Cast) String() string {
	return fmt.Sprintf("%%%s = %s %s to %s", i.name, i.Op, Operand(i.X), i.typ)
}

func (i *Phi) String() string {
	var edges []string
	for k, e := range i.Edges {
		edges = append(edges, fmt.Sprintf("[%s, %%%s]", Operand(e), i.Preds[k].Name))
	}
	return fmt.Sprintf("%%%s = phi %s %s", i.name, i.typ, strings.Join(edges, ", "))
}

func (i *Select) String() string {
	return fmt.Sprintf("%%%s = select %s, %s, %s", i.name, Operand(i.Cond), Operand(i.T), Operand(i.F))
}

func (i *ExtractValue) String() string {
	return fmt.Sprintf("%%%s = extractvalue %s, %v", i.name, Operand(i.Agg), i.Indices)
}

func (i *InsertValue) String() string {
	return fmt.Sprintf("%%%s = insertvalue %s, %s, %v", i.name, Operand(i.Agg), Operand(i.Val), i.Indices)
}

func (i *Call) String() string {
	call := fmt.Sprintf("call %s(%s)", Operand(i.Callee), operands(i.Args))
	if i.name == "" {
		return call
	}
	return fmt.Sprintf("%%%s = %s", i.name, call)
}

func (i *Invoke) String() string {
	call := fmt.Sprintf("invoke %s(%s) to %%%s unwind %%%s", Operand(i.Callee), operands(i.Args),
		i.Normal.Name, i.Unwind.Name)
	if i.name == "" {
		return call
	}
	return fmt.Sprintf("%%%s = %s", i.name, call)
}

func (i *LandingPad) String() string { return fmt.Sprintf("%%%s = landingpad", i.name) }
func (i *Br) String() string         { return "br %" + i.Target.Name }
func (i *Unreachable) String() string { return "unreachable" }

func (i *CondBr) String() string {
	return fmt.Sprintf("br %s, %%%s, %%%s", Operand(i.Cond), i.Then.Name, i.Else.Name)
}

func (i *Switch) String() string {
	var cases []string
	for _, c := range i.Cases {
		cases = append(cases, fmt.Sprintf("%d: %%%s", c.Value, c.Target.Name))
	}
	return fmt.Sprintf("switch %s, default %%%s [%s]", Operand(i.X), i.Default.Name, strings.Join(cases, ", "))
}

func (i *Ret) String() string {
	if i.Val == nil {
		return "ret void"
	}
	return "ret " + Operand(i.Val)
}

func (i *Resume) String() string { return "resume " + Operand(i.Val) }

// IsTerminator returns true if the instruction ends a basic block
func IsTerminator(i Instruction) bool {
	_, ok := i.(Terminator)
	return ok
}

// IsIntrinsicCall returns true if i is a call to a function whose name starts with prefix
func IsIntrinsicCall(i Instruction, prefix string) bool {
	c, ok := i.(CallInstruction)
	if !ok {
		return false
	}
	f := c.Common().StaticCallee()
	return f != nil && strings.HasPrefix(f.Name(), prefix)
}
