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
)

// Builder appends instructions at the end of a basic block.
//
// Value-producing instructions are named t0, t1, ... unless a name is set with Name before the instruction is
// created. Metadata set with Meta is attached to the next instruction only.
type Builder struct {
	block *BasicBlock
	name  string
	meta  Metadata
}

// NewBuilder returns a builder appending to block
func NewBuilder(block *BasicBlock) *Builder {
	return &Builder{block: block}
}

// SetBlock changes the block the builder appends to
func (b *Builder) SetBlock(block *BasicBlock) *Builder {
	b.block = block
	return b
}

// Block returns the current block of the builder
func (b *Builder) Block() *BasicBlock {
	return b.block
}

// Name sets the name of the next value-producing instruction
func (b *Builder) Name(name string) *Builder {
	b.name = name
	return b
}

// Meta sets the metadata of the next instruction
func (b *Builder) Meta(m Metadata) *Builder {
	b.meta = m
	return b
}

func (b *Builder) reg(t Type) register {
	name := b.name
	b.name = ""
	if name == "" {
		f := b.block.parent
		name = fmt.Sprintf("t%d", f.temps)
		f.temps++
	}
	return register{name: name, typ: t}
}

func (b *Builder) emit(i Instruction) {
	i.setBlock(b.block)
	*i.Meta() = b.meta
	b.meta = Metadata{}
	b.block.Instrs = append(b.block.Instrs, i)
}

// BinOp appends x op y
func (b *Builder) BinOp(op BinaryOp, x, y Value) *BinOp {
	i := &BinOp{register: b.reg(x.Type()), Op: op, X: x, Y: y}
	b.emit(i)
	return i
}

// ICmp appends the integer or pointer comparison x pred y
func (b *Builder) ICmp(pred Predicate, x, y Value) *ICmp {
	i := &ICmp{register: b.reg(I1), Pred: pred, X: x, Y: y}
	b.emit(i)
	return i
}

// FCmp appends a floating point comparison
func (b *Builder) FCmp(x, y Value) *FCmp {
	i := &FCmp{register: b.reg(I1), X: x, Y: y}
	b.emit(i)
	return i
}

// Alloca appends a stack allocation of a value of type elem
func (b *Builder) Alloca(elem Type) *Alloca {
	i := &Alloca{register: b.reg(PointerTo(elem)), Elem: elem}
	b.emit(i)
	return i
}

// Load appends a load from addr
func (b *Builder) Load(addr Value) *Load {
	i := &Load{register: b.reg(Elem(addr.Type())), Addr: addr}
	b.emit(i)
	return i
}

// Store appends a store of val at addr
func (b *Builder) Store(val, addr Value) *Store {
	i := &Store{Val: val, Addr: addr}
	b.emit(i)
	return i
}

// GEP appends an address computation. The first index offsets base, the following ones select elements of the
// aggregate. Struct fields must be selected by constant indices.
func (b *Builder) GEP(base Value, indices ...Value) *GEP {
	source := Elem(base.Type())
	t := source
	for _, idx := range indices[1:] {
		k, _ := ConstIntValue(idx)
		switch tt := t.(type) {
		case *StructType:
			t = tt.Fields[k]
		case *ArrayType:
			t = tt.Elem
		default:
			panic(fmt.Sprintf("getelementptr index into non-aggregate type %s", t))
		}
	}
	i := &GEP{register: b.reg(PointerTo(t)), Base: base, Source: source, Indices: indices}
	b.emit(i)
	return i
}

// FieldAddr appends the address computation of field k of the struct pointed to by base
func (b *Builder) FieldAddr(base Value, k int) *GEP {
	return b.GEP(base, Int(I32, 0), Int(I32, int64(k)))
}

// Cast appends a conversion of x to type to
func (b *Builder) Cast(op CastOp, x Value, to Type) *Cast {
	i := &Cast{register: b.reg(to), Op: op, X: x}
	b.emit(i)
	return i
}

// Phi appends a phi node. The predecessors are the blocks control comes from for each edge value.
func (b *Builder) Phi(t Type, edges []Value, preds []*BasicBlock) *Phi {
	i := &Phi{register: b.reg(t), Edges: edges, Preds: preds}
	b.emit(i)
	return i
}

// Select appends cond ? t : f
func (b *Builder) Select(cond, t, f Value) *Select {
	i := &Select{register: b.reg(t.Type()), Cond: cond, T: t, F: f}
	b.emit(i)
	return i
}

// ExtractValue appends the read of an element of the aggregate agg
func (b *Builder) ExtractValue(agg Value, indices ...int) *ExtractValue {
	t := agg.Type()
	for _, k := range indices {
		t = ElementType(t, k)
	}
	i := &ExtractValue{register: b.reg(t), Agg: agg, Indices: indices}
	b.emit(i)
	return i
}

// InsertValue appends the update of an element of the aggregate agg
func (b *Builder) InsertValue(agg, val Value, indices ...int) *InsertValue {
	i := &InsertValue{register: b.reg(agg.Type()), Agg: agg, Val: val, Indices: indices}
	b.emit(i)
	return i
}

func resultType(callee Value) Type {
	if ft, ok := Elem(callee.Type()).(*FunctionType); ok {
		return ft.Result
	}
	return Void
}

// Call appends a call of callee. Calls returning void are not named.
func (b *Builder) Call(callee Value, args ...Value) *Call {
	t := resultType(callee)
	var r register
	if _, void := t.(*VoidType); void {
		b.name = ""
		r = register{typ: t}
	} else {
		r = b.reg(t)
	}
	i := &Call{register: r, CallCommon: CallCommon{Callee: callee, Args: args}}
	b.emit(i)
	return i
}

// Invoke appends a call of callee that continues in normal, or in unwind if the callee throws
func (b *Builder) Invoke(callee Value, normal, unwind *BasicBlock, args ...Value) *Invoke {
	t := resultType(callee)
	var r register
	if _, void := t.(*VoidType); void {
		b.name = ""
		r = register{typ: t}
	} else {
		r = b.reg(t)
	}
	i := &Invoke{register: r, CallCommon: CallCommon{Callee: callee, Args: args}, Normal: normal, Unwind: unwind}
	b.emit(i)
	return i
}

// LandingPad appends a landing pad
func (b *Builder) LandingPad() *LandingPad {
	i := &LandingPad{register: b.reg(BytePtr)}
	b.emit(i)
	return i
}

// Ret appends a return of v. v is nil for void functions.
func (b *Builder) Ret(v Value) *Ret {
	i := &Ret{Val: v}
	b.emit(i)
	return i
}

// Br appends an unconditional branch
func (b *Builder) Br(target *BasicBlock) *Br {
	i := &Br{Target: target}
	b.emit(i)
	return i
}

// CondBr appends a conditional branch
func (b *Builder) CondBr(cond Value, then, els *BasicBlock) *CondBr {
	i := &CondBr{Cond: cond, Then: then, Else: els}
	b.emit(i)
	return i
}

// Switch appends a switch on x
func (b *Builder) Switch(x Value, def *BasicBlock, cases ...SwitchCase) *Switch {
	i := &Switch{X: x, Default: def, Cases: cases}
	b.emit(i)
	return i
}

// Unreachable appends an unreachable instruction
func (b *Builder) Unreachable() *Unreachable {
	i := &Unreachable{}
	b.emit(i)
	return i
}

// Resume appends the resumption of the exception v
func (b *Builder) Resume(v Value) *Resume {
	i := &Resume{Val: v}
	b.emit(i)
	return i
}
