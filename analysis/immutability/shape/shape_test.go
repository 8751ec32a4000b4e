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
	"math"
	"testing"

	"github.com/awslabs/ar-immutability/analysis/ir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeOracle struct {
	supers map[[2]*ir.StructType][]int
	issues []string
}

func newFakeOracle() *fakeOracle {
	return &fakeOracle{supers: map[[2]*ir.StructType][]int{}}
}

func (o *fakeOracle) SupertypeIndices(t, super *ir.StructType) ([]int, bool) {
	idx, ok := o.supers[[2]*ir.StructType{t, super}]
	return idx, ok
}

func (o *fakeOracle) IsAlloc(*ir.Cast) bool   { return false }
func (o *fakeOracle) IsZero(*ir.Cast) bool    { return false }
func (o *fakeOracle) IsAllOnes(*ir.Cast) bool { return false }

func (o *fakeOracle) ReportIssue(method *ir.Function, desc string) {
	o.issues = append(o.issues, method.Name()+": "+desc)
}

// fixture is a const method of class.A { i32, i8* } with two extra pointer parameters
type fixture struct {
	st   *ir.StructType
	f    *ir.Function
	b    *ir.Builder
	this *ir.Argument
	p, q *ir.Argument
}

func newFixture() *fixture {
	m := ir.NewModule("shape")
	st := m.AddType(&ir.StructType{Name: "class.A", Fields: []ir.Type{ir.I32, ir.BytePtr}})
	sig := &ir.FunctionType{Params: []ir.Type{ir.PointerTo(st), ir.PointerTo(ir.I32), ir.PointerTo(ir.I32)},
		Result: ir.I32}
	f := m.AddFunction(ir.NewFunction("_ZNK1A3getEPiS0_", sig, "this", "p", "q"))
	return &fixture{st: st, f: f, b: ir.NewBuilder(f.NewBlock("entry")), this: f.Params[0], p: f.Params[1],
		q: f.Params[2]}
}

// receiverGraph returns the initial graph of the method, with the address of the first field computed
func (fx *fixture) receiverGraph(o Oracle) (*Graph, *ir.GEP) {
	g := CreateEmptyExceptThis(o, fx.this, fx.st)
	g.SetFirstMethod(fx.f)
	addr := fx.b.Name("addr").FieldAddr(fx.this, 0)
	g.Visit(addr)
	return g, addr
}

func single(t *testing.T, n *Node) int64 {
	v, ok := n.Range().Single()
	require.True(t, ok, "range %s is not a single value", n.Range())
	return v
}

func TestCreateEmptyExceptThis(t *testing.T) {
	fx := newFixture()
	g := CreateEmptyExceptThis(newFakeOracle(), fx.this, fx.st)
	this := g.Mapping(fx.this)
	assert.True(t, this.IsThis())
	assert.Equal(t, NotNull, this.NullKind())
	obj := this.Pointee()
	require.NotNil(t, obj)
	assert.True(t, obj.IsThis())
	assert.Equal(t, KindStruct, obj.Kind())
	assert.Nil(t, obj.Child(0))
	assert.Equal(t, 2, g.Size())
}

func TestStoreToReceiverReportsMutationAfterRead(t *testing.T) {
	fx := newFixture()
	o := newFakeOracle()
	g, addr := fx.receiverGraph(o)

	g.Visit(fx.b.Store(ir.Int(ir.I32, 5), addr))
	field := g.PointerElement(g.Mapping(addr))
	assert.Same(t, field, g.Mapping(fx.this).Pointee().Child(0))
	assert.True(t, field.IsThis())
	assert.Equal(t, int64(5), single(t, field))
	assert.Empty(t, o.issues)

	load := fx.b.Load(addr)
	g.Visit(load)
	assert.Equal(t, int64(5), single(t, g.Mapping(load)))
	assert.Equal(t, []*Node{field}, g.Mapping(load).ThisEdges())

	field.SetRead()
	g.Visit(fx.b.Store(ir.Int(ir.I32, 6), addr))
	assert.Equal(t, []string{"_ZNK1A3getEPiS0_: MUTATEREAD @ _ZNK1A3getEPiS0_"}, o.issues)
}

func TestStoreThroughMayAliasIsWeak(t *testing.T) {
	fx := newFixture()
	g := NewGraph(newFakeOracle())

	g.Visit(fx.b.Store(ir.Int(ir.I32, 1), fx.p))
	pv := g.Mapping(fx.p).Pointee()
	require.NotNil(t, pv)
	assert.Equal(t, NotNull, g.Mapping(fx.p).NullKind())
	assert.Equal(t, int64(1), single(t, pv))

	// p and q may point to the same integer
	g.Visit(fx.b.Store(ir.Int(ir.I32, 2), fx.q))
	qv := g.Mapping(fx.q).Pointee()
	assert.True(t, pv.Range().Equal(NewRange(32, 1, 2)))
	assert.True(t, qv.Range().IsFull())
	assert.Contains(t, g.WeakEdges(pv), qv)
}

func TestAllocaStoreIsStrong(t *testing.T) {
	fx := newFixture()
	g := NewGraph(newFakeOracle())
	a1 := fx.b.Alloca(ir.I32)
	a2 := fx.b.Alloca(ir.I32)
	g.Visit(a1)
	g.Visit(a2)
	g.Visit(fx.b.Store(ir.Int(ir.I32, 1), a1))
	g.Visit(fx.b.Store(ir.Int(ir.I32, 2), a2))
	g.Visit(fx.b.Store(ir.Int(ir.I32, 3), a1))
	assert.Equal(t, int64(3), single(t, g.Mapping(a1).Pointee()))
	assert.Equal(t, int64(2), single(t, g.Mapping(a2).Pointee()))
}

func TestBitcastToBaseClass(t *testing.T) {
	m := ir.NewModule("cast")
	base := m.AddType(&ir.StructType{Name: "class.Base", Fields: []ir.Type{ir.I32}})
	derived := m.AddType(&ir.StructType{Name: "class.Derived", Fields: []ir.Type{base, ir.I32}, Bases: []*ir.StructType{base}})
	f := m.AddFunction(ir.NewFunction("_ZNK7Derived1fEv",
		&ir.FunctionType{Params: []ir.Type{ir.PointerTo(derived)}, Result: ir.Void}, "this"))
	b := ir.NewBuilder(f.NewBlock("entry"))
	o := newFakeOracle()
	o.supers[[2]*ir.StructType{derived, base}] = []int{0}

	g := CreateEmptyExceptThis(o, f.Params[0], derived)
	cast := b.Cast(ir.Bitcast, f.Params[0], ir.PointerTo(base))
	g.Visit(cast)

	obj := g.Mapping(f.Params[0]).Pointee()
	up := g.Mapping(cast)
	require.NotNil(t, up.Pointee())
	assert.Same(t, obj.Child(0), up.Pointee())
	assert.Same(t, obj, up.Pointee().SubStruct())
	assert.True(t, up.Pointee().IsThis())
	assert.Equal(t, NotNull, up.NullKind())

	// the way back down finds the derived object
	down := b.Cast(ir.Bitcast, cast, ir.PointerTo(derived))
	g.Visit(down)
	assert.Same(t, obj, g.Mapping(down).Pointee())
}

func TestCreateEmptyExceptThisForBaseMethod(t *testing.T) {
	m := ir.NewModule("base")
	base := m.AddType(&ir.StructType{Name: "class.Base", Fields: []ir.Type{ir.I32}})
	derived := m.AddType(&ir.StructType{Name: "class.Derived", Fields: []ir.Type{ir.I32, base}, Bases: []*ir.StructType{base}})
	f := m.AddFunction(ir.NewFunction("_ZNK4Base1fEv",
		&ir.FunctionType{Params: []ir.Type{ir.PointerTo(base)}, Result: ir.Void}, "this"))
	o := newFakeOracle()
	o.supers[[2]*ir.StructType{derived, base}] = []int{1}

	g := CreateEmptyExceptThis(o, f.Params[0], derived)
	obj := g.Mapping(f.Params[0]).Pointee()
	assert.True(t, ir.Identical(base, obj.Type()))
	require.NotNil(t, obj.SubStruct())
	assert.Same(t, obj, obj.SubStruct().Child(1))
}

func TestRefineComparison(t *testing.T) {
	m := ir.NewModule("refine")
	f := m.AddFunction(ir.NewFunction("f", &ir.FunctionType{Params: []ir.Type{ir.I32}, Result: ir.Void}, "x"))
	b := ir.NewBuilder(f.NewBlock("entry"))
	x := f.Params[0]
	g := NewGraph(newFakeOracle())

	lt := b.ICmp(ir.SLT, x, ir.Int(ir.I32, 10))
	g.Visit(lt)
	assert.True(t, g.Mapping(lt).Range().IsFull())

	els := g.Clone()
	g.RefineBool(lt, true)
	require.False(t, g.IsBottom())
	assert.True(t, g.Mapping(lt).Range().IsTrue())
	assert.True(t, g.Mapping(x).Range().Equal(NewRange(32, math.MinInt32, 9)))

	els.RefineBool(lt, false)
	assert.True(t, els.Mapping(x).Range().Equal(NewRange(32, 10, math.MaxInt32)))

	// x > 20 cannot hold anymore
	gt := b.ICmp(ir.SGT, x, ir.Int(ir.I32, 20))
	g.Visit(gt)
	assert.True(t, g.Mapping(gt).Range().IsFalse())
	g.RefineBool(gt, true)
	assert.True(t, g.IsBottom())
}

func TestRefineNull(t *testing.T) {
	m := ir.NewModule("null")
	f := m.AddFunction(ir.NewFunction("f", &ir.FunctionType{Params: []ir.Type{ir.BytePtr}, Result: ir.Void}, "p"))
	b := ir.NewBuilder(f.NewBlock("entry"))
	p := f.Params[0]
	g := NewGraph(newFakeOracle())

	isNull := b.ICmp(ir.EQ, p, ir.Null(ir.BytePtr))
	g.Visit(isNull)
	nonNull := g.Clone()

	nonNull.RefineBool(isNull, false)
	assert.Equal(t, NotNull, nonNull.Mapping(p).NullKind())

	g.RefineBool(isNull, true)
	assert.Equal(t, Null, g.Mapping(p).NullKind())
	g.RefineBool(isNull, false)
	assert.True(t, g.IsBottom())
}

func TestNullConstants(t *testing.T) {
	g := NewGraph(newFakeOracle())

	n := g.Mapping(ir.Null(ir.BytePtr))
	assert.Equal(t, KindPointer, n.Kind())
	assert.Equal(t, Null, n.NullKind())
	assert.Nil(t, n.Pointee())

	// a null function pointer calls nothing
	fp := ir.PointerTo(&ir.FunctionType{Result: ir.Void})
	fn := g.Mapping(ir.Null(fp))
	assert.Equal(t, KindFunction, fn.Kind())
	callees, known := fn.Callees()
	assert.True(t, known)
	assert.Empty(t, callees)
}

func TestRefineSwitch(t *testing.T) {
	m := ir.NewModule("switch")
	f := m.AddFunction(ir.NewFunction("f", &ir.FunctionType{Params: []ir.Type{ir.I32}, Result: ir.Void}, "x"))
	entry, one, two, def := f.NewBlock("entry"), f.NewBlock("one"), f.NewBlock("two"), f.NewBlock("default")
	x := f.Params[0]
	sw := ir.NewBuilder(entry).Switch(x, def,
		ir.SwitchCase{Value: 0, Target: one}, ir.SwitchCase{Value: 1, Target: one}, ir.SwitchCase{Value: 2, Target: two})

	g := NewGraph(newFakeOracle())
	g.RefineInt(x, NewRange(32, 0, 3))

	toOne := g.Clone()
	toOne.RefineSwitch(sw, one)
	assert.True(t, toOne.Mapping(x).Range().Equal(NewRange(32, 0, 1)))

	toTwo := g.Clone()
	toTwo.RefineSwitch(sw, two)
	assert.Equal(t, int64(2), single(t, toTwo.Mapping(x)))

	toDefault := g.Clone()
	toDefault.RefineSwitch(sw, def)
	assert.Equal(t, int64(3), single(t, toDefault.Mapping(x)))

	g.RefineInt(x, NewRange(32, 5, 6))
	assert.True(t, g.IsBottom())
}

func TestCloneIsIndependent(t *testing.T) {
	fx := newFixture()
	g, addr := fx.receiverGraph(newFakeOracle())
	g.Visit(fx.b.Store(ir.Int(ir.I32, 1), addr))

	c := g.Clone()
	assert.True(t, Equivalent(g, c, nil))
	orig := map[*Node]bool{}
	for _, n := range g.Nodes() {
		orig[n] = true
	}
	for _, n := range c.Nodes() {
		assert.False(t, orig[n], "node %s is shared", n)
	}

	c.Visit(fx.b.Store(ir.Int(ir.I32, 3), addr))
	assert.Equal(t, int64(1), single(t, g.PointerElement(g.Mapping(addr))))
	assert.Equal(t, int64(3), single(t, c.PointerElement(c.Mapping(addr))))
	assert.False(t, Equivalent(g, c, nil))
}

func TestMerge(t *testing.T) {
	fx := newFixture()
	g, addr := fx.receiverGraph(newFakeOracle())
	a, b := g.Clone(), g.Clone()
	a.Visit(fx.b.Store(ir.Int(ir.I32, 1), addr))
	b.Visit(fx.b.Store(ir.Int(ir.I32, 2), addr))

	ab := Merge(a, b)
	ba := Merge(b, a)
	assert.True(t, Equivalent(ab, ba, nil))

	field := ab.PointerElement(ab.Mapping(addr))
	assert.True(t, field.Range().Equal(NewRange(32, 1, 2)))
	assert.True(t, field.IsThis())
	assert.Same(t, field, ab.Mapping(fx.this).Pointee().Child(0))

	// the inputs are left unchanged
	assert.Equal(t, int64(1), single(t, a.PointerElement(a.Mapping(addr))))

	assert.True(t, MoreSpecific(a, ab))
	assert.True(t, MoreSpecific(b, ab))
	assert.False(t, MoreSpecific(ab, a))
	assert.True(t, MoreSpecific(ab, ab.Clone()))
}

func TestMergeKeepsFlagsOfBothSides(t *testing.T) {
	fx := newFixture()
	g, addr := fx.receiverGraph(newFakeOracle())
	a, b := g.Clone(), g.Clone()
	a.PointerElement(a.Mapping(addr)).SetRead()

	ab := Merge(a, b)
	assert.False(t, ab.PointerElement(ab.Mapping(addr)).IsRead())
	assert.True(t, Equivalent(ab, Merge(b, a), nil))

	// a state that has observed the field is not covered by one that has not
	assert.False(t, MoreSpecific(a, b))
	assert.True(t, MoreSpecific(b, a))

	b.PointerElement(b.Mapping(addr)).SetRead()
	both := Merge(a, b)
	assert.True(t, both.PointerElement(both.Mapping(addr)).IsRead())
}

func TestMergeWithBottom(t *testing.T) {
	fx := newFixture()
	o := newFakeOracle()
	g, _ := fx.receiverGraph(o)

	assert.True(t, Equivalent(Merge(NewBottom(o), g), g, nil))
	assert.True(t, Equivalent(Merge(g, NewBottom(o)), g, nil))
	assert.True(t, Merge(NewBottom(o), NewBottom(o)).IsBottom())
	assert.True(t, MoreSpecific(NewBottom(o), g))
	assert.False(t, MoreSpecific(g, NewBottom(o)))
	assert.False(t, Equivalent(g, NewBottom(o), nil))
}

func TestMergeNullAndPointer(t *testing.T) {
	fx := newFixture()
	g := NewGraph(newFakeOracle())
	a, b := g.Clone(), g.Clone()
	a.SetMapping(fx.p, NewNull(ir.PointerTo(ir.I32)))
	b.Visit(fx.b.Store(ir.Int(ir.I32, 4), fx.p))

	m := Merge(a, b)
	p := m.Mapping(fx.p)
	assert.Equal(t, MaybeNull, p.NullKind())
	require.NotNil(t, p.Pointee())
	assert.Equal(t, int64(4), single(t, p.Pointee()))
}

func TestCanonicalize(t *testing.T) {
	fx := newFixture()
	g, _ := fx.receiverGraph(newFakeOracle())
	a, b := g.Clone(), g.Clone()

	// a looked at the second field without learning anything about it
	a.StructElement(a.Mapping(fx.this).Pointee(), 1)
	assert.False(t, Equivalent(a, b, nil))
	assert.Error(t, CheckCanonicalized(a, b))

	Canonicalize(a, b)
	assert.NoError(t, CheckCanonicalized(a, b))
	assert.True(t, Equivalent(a, b, nil))
	assert.Nil(t, a.Mapping(fx.this).Pointee().Child(1))
}

func TestCanonicalizeKeepsInformation(t *testing.T) {
	fx := newFixture()
	g, _ := fx.receiverGraph(newFakeOracle())
	a, b := g.Clone(), g.Clone()

	second := a.StructElement(a.Mapping(fx.this).Pointee(), 1)
	second.SetRead()
	Canonicalize(a, b)
	assert.Same(t, second, a.Mapping(fx.this).Pointee().Child(1))
	assert.False(t, Equivalent(a, b, nil))
}

func TestEquivalentComparesRelevantValues(t *testing.T) {
	fx := newFixture()
	other := ir.NewFunction("other", &ir.FunctionType{Params: []ir.Type{ir.I32}, Result: ir.Void}, "y")
	g, _ := fx.receiverGraph(newFakeOracle())
	a, b := g.Clone(), g.Clone()
	a.SetMapping(other.Params[0], NewInt(ir.I32, SingleRange(32, 1)))

	assert.True(t, Equivalent(a, b, fx.f))
	assert.False(t, Equivalent(a, b, nil))

	a.EraseRelevant(other)
	assert.True(t, Equivalent(a, b, nil))
}

func TestUnknownCall(t *testing.T) {
	fx := newFixture()
	o := newFakeOracle()
	g, addr := fx.receiverGraph(o)
	g.Visit(fx.b.Store(ir.Int(ir.I32, 5), addr))
	local := fx.b.Alloca(ir.I32)
	g.Visit(local)
	g.Visit(fx.b.Store(ir.Int(ir.I32, 7), local))
	assert.Equal(t, int64(7), single(t, g.Mapping(local).Pointee()))

	ext := ir.NewFunction("ext", &ir.FunctionType{
		Params: []ir.Type{ir.PointerTo(fx.st), ir.PointerTo(ir.I32)}, Result: ir.PointerTo(ir.I32)})
	call := fx.b.Call(ext, fx.this, local)
	g.HandleUnknownCall(call)

	field := g.PointerElement(g.Mapping(addr))
	assert.True(t, field.IsRead())
	assert.Equal(t, int64(5), single(t, field))
	assert.True(t, g.Mapping(local).Pointee().Range().IsFull())
	assert.Equal(t, NotNull, g.Mapping(local).NullKind())

	res := g.Mapping(call)
	assert.Equal(t, MaybeNull, res.NullKind())
	require.NotNil(t, res.Pointee())
	assert.Equal(t, []*Node{field}, res.Pointee().ThisEdges())
	assert.True(t, IsWeakEdge(res.Pointee(), field))

	assert.Empty(t, o.issues)
	g.Visit(fx.b.Store(ir.Int(ir.I32, 6), addr))
	assert.Len(t, o.issues, 1)
}

func TestUnknownPointerMayPointIntoReceiver(t *testing.T) {
	fx := newFixture()
	g, addr := fx.receiverGraph(newFakeOracle())
	g.Visit(fx.b.Store(ir.Int(ir.I32, 5), addr))
	g.Visit(fx.b.Store(ir.Int(ir.I32, 7), fx.p))

	field := g.PointerElement(g.Mapping(addr))
	assert.True(t, field.Range().Equal(NewRange(32, 5, 7)))
	assert.True(t, g.Mapping(fx.p).Pointee().Range().IsFull())
}

func TestUnionAllOfPointers(t *testing.T) {
	g := NewGraph(newFakeOracle())
	x, y := NewPointerTo(NewTop(ir.I32)), NewPointerTo(NewTop(ir.I32))
	x.Pointee().SetRange(SingleRange(32, 1))

	u := g.UnionAll([]*Node{x, y}, ir.PointerTo(ir.I32))
	assert.Equal(t, NotNull, u.NullKind())
	require.NotNil(t, u.Pointee())
	assert.True(t, IsWeakEdge(u.Pointee(), x.Pointee()))
	assert.True(t, IsWeakEdge(u.Pointee(), y.Pointee()))
	assert.False(t, u.Pointee().IsThis())

	assert.Same(t, x, g.UnionAll([]*Node{x, nil}, ir.PointerTo(ir.I32)))

	ints := g.UnionAll([]*Node{NewInt(ir.I32, SingleRange(32, 1)), NewInt(ir.I32, SingleRange(32, 4))}, ir.I32)
	assert.True(t, ints.Range().Equal(NewRange(32, 1, 4)))
}

func TestSelectWithKnownCondition(t *testing.T) {
	fx := newFixture()
	g := NewGraph(newFakeOracle())
	sel := fx.b.Select(ir.Bool(true), ir.Int(ir.I32, 1), ir.Int(ir.I32, 2))
	g.Visit(sel)
	assert.Equal(t, int64(1), single(t, g.Mapping(sel)))

	x := fx.b.Load(fx.p)
	g.Visit(x)
	c := fx.b.ICmp(ir.SLT, x, ir.Int(ir.I32, 0))
	g.Visit(c)
	sel2 := fx.b.Select(c, ir.Int(ir.I32, 1), ir.Int(ir.I32, 2))
	g.Visit(sel2)
	assert.True(t, g.Mapping(sel2).Range().Equal(NewRange(32, 1, 2)))
}

func TestChangeThis(t *testing.T) {
	fx := newFixture()
	g, addr := fx.receiverGraph(newFakeOracle())
	g.Visit(fx.b.Store(ir.Int(ir.I32, 5), addr))
	g.RemoveAllExcept(fx.this)
	g.FixupThis(fx.this)

	other := ir.NewFunction("_ZNK1A5otherEv",
		&ir.FunctionType{Params: []ir.Type{ir.PointerTo(fx.st)}, Result: ir.Void}, "this")
	g.ChangeThis(other.Params[0])
	assert.True(t, g.HasMapping(other.Params[0]))
	assert.False(t, g.HasMapping(fx.this))
	field := g.Mapping(other.Params[0]).Pointee().Child(0)
	require.NotNil(t, field)
	assert.Equal(t, int64(5), single(t, field))
	assert.Equal(t, 0, g.Aliases().Len())
}
