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

package irfile

import (
	"path/filepath"
	"testing"

	"github.com/awslabs/ar-immutability/analysis/ir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadCounterModule(t *testing.T) {
	m, err := ReadFile(filepath.Join("testdata", "counter.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "counter", m.Name)

	counter := m.StructType("class.Counter")
	require.NotNil(t, counter)
	require.Len(t, counter.Fields, 4)
	assert.Same(t, m.StructType("class.Base"), counter.Fields[0])
	assert.Equal(t, &ir.ArrayType{Elem: ir.I8, Len: 4}, counter.Fields[2])
	assert.Same(t, counter, ir.PointeeStruct(counter.Fields[3]))
	assert.Equal(t, []*ir.StructType{m.StructType("class.Base")}, counter.Bases)

	vptr := m.StructType("class.Base").Fields[0]
	fn, ok := ir.Elem(ir.Elem(vptr)).(*ir.FunctionType)
	require.True(t, ok)
	assert.True(t, fn.Variadic)

	require.Len(t, m.Globals, 1)
	assert.Equal(t, ir.I64, m.Globals[0].Elem)

	get := m.Function("_ZNK7Counter3getEv")
	require.NotNil(t, get)
	require.NotNil(t, get.Debug)
	assert.True(t, get.Debug.ConstThis)
	assert.Equal(t, ir.AccessPublic, get.Debug.Access)
	assert.Equal(t, 2, get.Debug.VirtualIndex)
	assert.Equal(t, "this", get.ThisArg().Name())

	require.Len(t, get.Blocks, 3)
	entry, pos, join := get.Blocks[0], get.Blocks[1], get.Blocks[2]
	assert.Equal(t, []*ir.BasicBlock{pos, join}, entry.Succs)
	assert.ElementsMatch(t, []*ir.BasicBlock{entry, pos}, join.Preds)

	load, ok := entry.Instrs[1].(*ir.Load)
	require.True(t, ok)
	assert.Equal(t, 12, load.Meta().Line)
	assert.Equal(t, ir.I32, load.Type())

	call, ok := pos.Instrs[0].(*ir.Call)
	require.True(t, ok)
	assert.Same(t, m.Function("_Z6notifyi"), call.Common().StaticCallee())
	assert.True(t, m.Function("_Z6notifyi").Empty())

	phi, ok := join.Instrs[0].(*ir.Phi)
	require.True(t, ok)
	assert.Equal(t, "r", phi.Name())
	assert.Equal(t, []ir.Value{load, ir.Int(ir.I32, 0)}, phi.Edges)
	assert.Equal(t, []*ir.BasicBlock{pos, entry}, phi.Preds)
}

func TestReadErrors(t *testing.T) {
	_, err := ReadFile(filepath.Join("testdata", "bad-operand.yaml"))
	assert.ErrorContains(t, err, "undefined value %missing")

	_, err = ReadFile(filepath.Join("testdata", "does-not-exist.yaml"))
	assert.Error(t, err)

	_, err = Read([]byte("module: m\ntypes:\n  - {name: class.A, fields: [\"%class.B\"]}\n"))
	assert.ErrorContains(t, err, "undefined type %class.B")

	_, err = Read([]byte("module: m\nfunctions:\n  - name: f\n    blocks:\n      - name: entry\n" +
		"        instrs:\n          - {op: frobnicate}\n"))
	assert.ErrorContains(t, err, "unknown instruction")

	_, err = Read([]byte("module: m\nfunctions:\n  - name: f\n    blocks:\n      - name: entry\n" +
		"        instrs:\n          - {op: alloca, type: i32}\n"))
	assert.ErrorContains(t, err, "not terminated")
}

func TestParseTypesAndConstants(t *testing.T) {
	r := &reader{module: ir.NewModule("m"), globals: map[string]*ir.Global{}}
	r.module.AddType(&ir.StructType{Name: "struct.S"})

	for _, tc := range []struct {
		src  string
		want string
	}{
		{"i32", "i32"},
		{"i8**", "i8**"},
		{"[3 x %struct.S]", "[3 x %struct.S]"},
		{"void (%struct.S*, i64)*", "void (%struct.S*, i64)*"},
	} {
		typ, err := r.parseType(tc.src)
		require.NoError(t, err, tc.src)
		assert.Equal(t, tc.want, typ.String())
	}
	_, err := r.parseType("i65")
	assert.Error(t, err)
	_, err = r.parseType("i32 i32")
	assert.Error(t, err)

	v, err := r.parseOperand("i1 true", nil)
	require.NoError(t, err)
	assert.Equal(t, ir.Int(ir.I1, 1), v)

	v, err = r.parseOperand("i8* null", nil)
	require.NoError(t, err)
	assert.Equal(t, ir.Null(ir.BytePtr), v)

	v, err = r.parseOperand("double 2.5", nil)
	require.NoError(t, err)
	assert.Equal(t, &ir.ConstFloat{Typ: ir.Double, Value: 2.5}, v)

	f := r.module.AddFunction(ir.NewFunction("g", &ir.FunctionType{Result: ir.Void}))
	v, err = r.parseOperand("bitcast @g to i8*", nil)
	require.NoError(t, err)
	assert.Same(t, f, ir.CalledFunction(v))
}
