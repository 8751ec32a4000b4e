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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// loopFunction builds
//
//	entry -> header; header -> body | exit; body -> header; dead -> exit
func loopFunction(t *testing.T) *Function {
	m := NewModule("loop")
	st := m.AddType(&StructType{Name: "class.A", Fields: []Type{I32, BytePtr}})
	f := m.AddFunction(NewFunction("_ZNK1A3sumEv", &FunctionType{Params: []Type{PointerTo(st)}, Result: I32}, "this"))
	entry, header, body, exit, dead := f.NewBlock("entry"), f.NewBlock("header"), f.NewBlock("body"),
		f.NewBlock("exit"), f.NewBlock("dead")

	b := NewBuilder(entry)
	addr := b.Name("addr").FieldAddr(f.Params[0], 0)
	n := b.Load(addr)
	b.Br(header)

	b.SetBlock(header)
	i := b.Name("i").Phi(I32, nil, nil)
	c := b.ICmp(SLT, i, n)
	b.CondBr(c, body, exit)

	b.SetBlock(body)
	next := b.BinOp(Add, i, Int(I32, 1))
	b.Br(header)
	i.Edges = []Value{Int(I32, 0), next}
	i.Preds = []*BasicBlock{entry, body}

	b.SetBlock(exit)
	b.Ret(i)

	b.SetBlock(dead)
	b.Br(exit)

	require.NoError(t, f.Finalize())
	return f
}

func TestBuilderNamesAndTypes(t *testing.T) {
	f := loopFunction(t)
	entry := f.Blocks[0]
	require.Len(t, entry.Instrs, 3)

	gep := entry.Instrs[0].(*GEP)
	assert.Equal(t, "addr", gep.Name())
	assert.True(t, Identical(PointerTo(I32), gep.Type()))
	assert.Same(t, entry, gep.Block())

	load := entry.Instrs[1].(*Load)
	assert.Equal(t, "t0", load.Name())
	assert.True(t, Identical(I32, load.Type()))

	assert.Equal(t, []Instruction{load}, f.Uses(gep))
	assert.Same(t, f.Params[0], f.ThisArg())
	assert.False(t, f.ReturnsVoid())
}

func TestFinalizeAndCFG(t *testing.T) {
	f := loopFunction(t)
	entry, header, body, exit, dead := f.Blocks[0], f.Blocks[1], f.Blocks[2], f.Blocks[3], f.Blocks[4]

	assert.Equal(t, []*BasicBlock{body, exit}, header.Succs)
	assert.ElementsMatch(t, []*BasicBlock{entry, body}, header.Preds)
	assert.ElementsMatch(t, []*BasicBlock{header, dead}, exit.Preds)

	cfg := NewCFG(f)
	for _, b := range []*BasicBlock{entry, header, body, exit} {
		assert.True(t, cfg.IsLive(b), b.Name)
	}
	assert.False(t, cfg.IsLive(dead))
	assert.Equal(t, []*BasicBlock{header}, cfg.LivePreds(exit))

	assert.True(t, cfg.InLoop(header))
	assert.True(t, cfg.InLoop(body))
	assert.False(t, cfg.InLoop(entry))
	assert.False(t, cfg.InLoop(exit))
	assert.Equal(t, []*BasicBlock{exit}, cfg.Exits())
}

func TestFinalizeUnterminated(t *testing.T) {
	f := NewFunction("f", &FunctionType{Result: Void})
	NewBuilder(f.NewBlock("entry")).Alloca(I32)
	assert.Error(t, f.Finalize())
}

func TestIdentical(t *testing.T) {
	a := &StructType{Name: "class.A"}
	a2 := &StructType{Name: "class.A"}
	assert.True(t, Identical(PointerTo(&IntType{Bits: 32}), PointerTo(I32)))
	assert.True(t, Identical(&ArrayType{Elem: a, Len: 2}, &ArrayType{Elem: a, Len: 2}))
	assert.False(t, Identical(a, a2))
	assert.False(t, Identical(&ArrayType{Elem: I8, Len: 2}, &ArrayType{Elem: I8, Len: 3}))
	assert.True(t, Identical(&FunctionType{Params: []Type{I32}, Result: Void},
		&FunctionType{Params: []Type{&IntType{Bits: 32}}, Result: &VoidType{}}))
	assert.False(t, Identical(&FunctionType{Result: Void, Variadic: true}, &FunctionType{Result: Void}))
}

func TestIsBaseType(t *testing.T) {
	assert.True(t, IsBaseType(&StructType{Name: "class.Foo.base"}))
	assert.True(t, IsBaseType(&StructType{Name: "class.Foo.base.12"}))
	assert.False(t, IsBaseType(&StructType{Name: "class.base"}))
	assert.False(t, IsBaseType(&StructType{Name: "struct.base"}))
	assert.False(t, IsBaseType(&StructType{Name: "class.Foo"}))
	assert.False(t, IsBaseType(nil))
}

func TestPredicates(t *testing.T) {
	for p := EQ; p <= UGE; p++ {
		assert.Equal(t, p, p.Inverse().Inverse())
		assert.Equal(t, p, p.Swap().Swap())
	}
	assert.Equal(t, SGT, SLT.Swap())
	assert.Equal(t, SGE, SLT.Inverse())
}

func TestCalledFunction(t *testing.T) {
	f := NewFunction("g", &FunctionType{Result: Void})
	assert.Same(t, f, CalledFunction(f))
	assert.Same(t, f, CalledFunction(&ConstCast{X: f, Typ: BytePtr}))
	assert.Nil(t, CalledFunction(Null(BytePtr)))
}
