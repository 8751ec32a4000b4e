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

// Package irfile reads modules of the analysis IR from YAML files.
//
// A module file lists the named struct types, the globals and the functions of the module:
//
//	module: cache
//	types:
//	  - name: class.Cache
//	    fields: ["%class.Base", "i32", "i8*"]
//	    bases: [class.Base]
//	functions:
//	  - name: _ZNK5Cache4sizeEv
//	    result: i32
//	    params: [{name: this, type: "%class.Cache*"}]
//	    debug: {name: size, method: true, const: true, class: class.Cache, access: public}
//	    blocks:
//	      - name: entry
//	        instrs:
//	          - {op: gep, name: p, base: "%this", indices: ["i32 0", "i32 1"]}
//	          - {op: load, name: v, addr: "%p"}
//	          - {op: ret, val: "%v"}
//
// Operands are written %name for arguments and instruction results, @name for functions and globals, and
// "<type> <literal>" for constants (i32 5, i1 true, i8* null, i32 undef). A value must be defined before it is used,
// except in the edges of phi nodes.
package irfile

import (
	"fmt"
	"os"

	"github.com/awslabs/ar-immutability/analysis/ir"
	"gopkg.in/yaml.v3"
)

type moduleSpec struct {
	Module    string         `yaml:"module"`
	Types     []typeSpec     `yaml:"types"`
	Globals   []globalSpec   `yaml:"globals"`
	Functions []functionSpec `yaml:"functions"`
}

type typeSpec struct {
	Name   string   `yaml:"name"`
	Fields []string `yaml:"fields"`
	Bases  []string `yaml:"bases"`
}

type globalSpec struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

type paramSpec struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
	SRet bool   `yaml:"sret"`
}

type debugSpec struct {
	Name         string `yaml:"name"`
	Method       bool   `yaml:"method"`
	Const        bool   `yaml:"const"`
	Class        string `yaml:"class"`
	Access       string `yaml:"access"`
	VirtualIndex *int   `yaml:"virtual-index"`
}

type functionSpec struct {
	Name     string      `yaml:"name"`
	Result   string      `yaml:"result"`
	Params   []paramSpec `yaml:"params"`
	Variadic bool        `yaml:"variadic"`
	Debug    *debugSpec  `yaml:"debug"`
	Blocks   []blockSpec `yaml:"blocks"`
}

type blockSpec struct {
	Name   string      `yaml:"name"`
	Instrs []instrSpec `yaml:"instrs"`
}

type phiEdgeSpec struct {
	Value string `yaml:"value"`
	Block string `yaml:"block"`
}

type caseSpec struct {
	Value  int64  `yaml:"value"`
	Target string `yaml:"target"`
}

// instrSpec is the union of the fields of all instructions; op selects the instruction.
type instrSpec struct {
	Op      string        `yaml:"op"`
	Name    string        `yaml:"name"`
	Kind    string        `yaml:"kind"`
	Pred    string        `yaml:"pred"`
	X       string        `yaml:"x"`
	Y       string        `yaml:"y"`
	Type    string        `yaml:"type"`
	Addr    string        `yaml:"addr"`
	Val     string        `yaml:"val"`
	Base    string        `yaml:"base"`
	Indices []string      `yaml:"indices"`
	Fields  []int         `yaml:"fields"`
	Agg     string        `yaml:"agg"`
	Cond    string        `yaml:"cond"`
	T       string        `yaml:"t"`
	F       string        `yaml:"f"`
	Edges   []phiEdgeSpec `yaml:"edges"`
	Callee  string        `yaml:"callee"`
	Args    []string      `yaml:"args"`
	Normal  string        `yaml:"normal"`
	Unwind  string        `yaml:"unwind"`
	Target  string        `yaml:"target"`
	Then    string        `yaml:"then"`
	Else    string        `yaml:"else"`
	Default string        `yaml:"default"`
	Cases   []caseSpec    `yaml:"cases"`
	TBAA    string        `yaml:"tbaa"`
	Line    int           `yaml:"line"`
	Col     int           `yaml:"col"`
}

type reader struct {
	module  *ir.Module
	specs   map[string]*typeSpec
	globals map[string]*ir.Global
}

// ReadFile reads the module in the YAML file filename
func ReadFile(filename string) (*ir.Module, error) {
	b, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("could not read module file %s: %w", filename, err)
	}
	m, err := Read(b)
	if err != nil {
		return nil, fmt.Errorf("could not load module file %s: %w", filename, err)
	}
	return m, nil
}

// Read reads a module from its YAML representation
func Read(b []byte) (*ir.Module, error) {
	var spec moduleSpec
	if err := yaml.Unmarshal(b, &spec); err != nil {
		return nil, fmt.Errorf("could not unmarshal module: %w", err)
	}
	r := &reader{
		module:  ir.NewModule(spec.Module),
		specs:   map[string]*typeSpec{},
		globals: map[string]*ir.Global{},
	}
	for i := range spec.Types {
		ts := &spec.Types[i]
		if _, dup := r.specs[ts.Name]; dup {
			return nil, fmt.Errorf("type %s is defined twice", ts.Name)
		}
		r.specs[ts.Name] = ts
		r.module.AddType(&ir.StructType{Name: ts.Name})
	}
	if err := r.readTypes(spec.Types); err != nil {
		return nil, err
	}
	for _, gs := range spec.Globals {
		t, err := r.parseType(gs.Type)
		if err != nil {
			return nil, fmt.Errorf("global %s: %w", gs.Name, err)
		}
		r.globals[gs.Name] = r.module.AddGlobal(ir.NewGlobal(gs.Name, t))
	}
	// Declare all the functions before reading bodies, calls may refer to functions defined later
	for _, fs := range spec.Functions {
		f, err := r.declare(fs)
		if err != nil {
			return nil, fmt.Errorf("function %s: %w", fs.Name, err)
		}
		r.module.AddFunction(f)
	}
	for _, fs := range spec.Functions {
		if err := r.readBody(r.module.Function(fs.Name), fs); err != nil {
			return nil, fmt.Errorf("function %s: %w", fs.Name, err)
		}
	}
	return r.module, nil
}

func (r *reader) structType(name string) (*ir.StructType, error) {
	if t := r.module.StructType(name); t != nil {
		return t, nil
	}
	return nil, fmt.Errorf("undefined type %%%s", name)
}

func (r *reader) readTypes(specs []typeSpec) error {
	for _, ts := range specs {
		st := r.module.StructType(ts.Name)
		for _, fs := range ts.Fields {
			t, err := r.parseType(fs)
			if err != nil {
				return fmt.Errorf("type %s: %w", ts.Name, err)
			}
			st.Fields = append(st.Fields, t)
		}
		for _, bs := range ts.Bases {
			b, err := r.structType(bs)
			if err != nil {
				return fmt.Errorf("type %s: %w", ts.Name, err)
			}
			st.Bases = append(st.Bases, b)
		}
	}
	return nil
}

func (r *reader) declare(fs functionSpec) (*ir.Function, error) {
	if r.module.Function(fs.Name) != nil {
		return nil, fmt.Errorf("defined twice")
	}
	sig := &ir.FunctionType{Result: ir.Void, Variadic: fs.Variadic}
	if fs.Result != "" {
		t, err := r.parseType(fs.Result)
		if err != nil {
			return nil, err
		}
		sig.Result = t
	}
	var names []string
	for _, ps := range fs.Params {
		t, err := r.parseType(ps.Type)
		if err != nil {
			return nil, fmt.Errorf("parameter %s: %w", ps.Name, err)
		}
		sig.Params = append(sig.Params, t)
		names = append(names, ps.Name)
	}
	f := ir.NewFunction(fs.Name, sig, names...)
	for i, ps := range fs.Params {
		f.Params[i].SRet = ps.SRet
	}
	if fs.Debug != nil {
		sp, err := readDebug(fs.Debug)
		if err != nil {
			return nil, err
		}
		f.Debug = sp
	}
	return f, nil
}

func readDebug(ds *debugSpec) (*ir.Subprogram, error) {
	sp := &ir.Subprogram{
		Name:         ds.Name,
		IsMethod:     ds.Method,
		ConstThis:    ds.Const,
		Class:        ds.Class,
		VirtualIndex: -1,
	}
	if ds.VirtualIndex != nil {
		sp.VirtualIndex = *ds.VirtualIndex
	}
	if ds.Access != "" {
		found := false
		for a := ir.AccessUnspecified; a <= ir.AccessPrivate; a++ {
			if a.String() == ds.Access {
				sp.Access = a
				found = true
			}
		}
		if !found {
			return nil, fmt.Errorf("invalid access specifier %q", ds.Access)
		}
	}
	return sp, nil
}

// pendingPhi is a phi node whose edges are resolved once all the blocks have been read
type pendingPhi struct {
	phi  *ir.Phi
	spec instrSpec
}

func (r *reader) readBody(f *ir.Function, fs functionSpec) error {
	if len(fs.Blocks) == 0 {
		return nil
	}
	locals := map[string]ir.Value{}
	for _, p := range f.Params {
		locals[p.Name()] = p
	}
	blocks := map[string]*ir.BasicBlock{}
	for _, bs := range fs.Blocks {
		if _, dup := blocks[bs.Name]; dup && bs.Name != "" {
			return fmt.Errorf("block %s is defined twice", bs.Name)
		}
		b := f.NewBlock(bs.Name)
		blocks[b.Name] = b
	}
	var phis []pendingPhi
	for k, bs := range fs.Blocks {
		builder := ir.NewBuilder(f.Blocks[k])
		for _, is := range bs.Instrs {
			v, err := r.readInstr(builder, is, locals, blocks)
			if err != nil {
				return fmt.Errorf("block %s: %s: %w", f.Blocks[k].Name, is.Op, err)
			}
			if phi, ok := v.(*ir.Phi); ok {
				phis = append(phis, pendingPhi{phi, is})
			}
			if v != nil && v.Name() != "" {
				if _, dup := locals[v.Name()]; dup {
					return fmt.Errorf("value %%%s is defined twice", v.Name())
				}
				locals[v.Name()] = v
			}
		}
	}
	for _, p := range phis {
		for _, es := range p.spec.Edges {
			v, err := r.parseOperand(es.Value, locals)
			if err != nil {
				return fmt.Errorf("phi %%%s: %w", p.phi.Name(), err)
			}
			b, ok := blocks[es.Block]
			if !ok {
				return fmt.Errorf("phi %%%s: undefined block %s", p.phi.Name(), es.Block)
			}
			p.phi.Edges = append(p.phi.Edges, v)
			p.phi.Preds = append(p.phi.Preds, b)
		}
	}
	return f.Finalize()
}

type operands struct {
	r      *reader
	locals map[string]ir.Value
	blocks map[string]*ir.BasicBlock
	err    error
}

func (o *operands) value(s string) ir.Value {
	if o.err != nil {
		return nil
	}
	v, err := o.r.parseOperand(s, o.locals)
	if err != nil {
		o.err = err
	}
	return v
}

func (o *operands) values(ss []string) []ir.Value {
	var vs []ir.Value
	for _, s := range ss {
		vs = append(vs, o.value(s))
	}
	return vs
}

func (o *operands) typ(s string) ir.Type {
	if o.err != nil {
		return nil
	}
	t, err := o.r.parseType(s)
	if err != nil {
		o.err = err
	}
	return t
}

func (o *operands) block(name string) *ir.BasicBlock {
	if o.err != nil {
		return nil
	}
	b, ok := o.blocks[name]
	if !ok {
		o.err = fmt.Errorf("undefined block %s", name)
	}
	return b
}

// readInstr appends the instruction described by is and returns the value it defines, if any
//
//gocyclo:ignore
func (r *reader) readInstr(b *ir.Builder, is instrSpec, locals map[string]ir.Value,
	blocks map[string]*ir.BasicBlock) (ir.Value, error) {
	o := &operands{r: r, locals: locals, blocks: blocks}
	b.Name(is.Name).Meta(ir.Metadata{TBAA: is.TBAA, Line: is.Line, Col: is.Col})
	var v ir.Value
	switch is.Op {
	case "binop":
		op, ok := binaryOp(is.Kind)
		if !ok {
			return nil, fmt.Errorf("invalid binary operator %q", is.Kind)
		}
		x, y := o.value(is.X), o.value(is.Y)
		if o.err == nil {
			v = b.BinOp(op, x, y)
		}
	case "icmp":
		pred, ok := predicate(is.Pred)
		if !ok {
			return nil, fmt.Errorf("invalid predicate %q", is.Pred)
		}
		x, y := o.value(is.X), o.value(is.Y)
		if o.err == nil {
			v = b.ICmp(pred, x, y)
		}
	case "fcmp":
		x, y := o.value(is.X), o.value(is.Y)
		if o.err == nil {
			v = b.FCmp(x, y)
		}
	case "alloca":
		t := o.typ(is.Type)
		if o.err == nil {
			v = b.Alloca(t)
		}
	case "load":
		addr := o.value(is.Addr)
		if o.err == nil {
			if _, ok := addr.Type().(*ir.PointerType); !ok {
				return nil, fmt.Errorf("load from non-pointer %s", is.Addr)
			}
			v = b.Load(addr)
		}
	case "store":
		val, addr := o.value(is.Val), o.value(is.Addr)
		if o.err == nil {
			b.Store(val, addr)
		}
	case "gep":
		base := o.value(is.Base)
		indices := o.values(is.Indices)
		if o.err == nil {
			if len(indices) == 0 {
				return nil, fmt.Errorf("getelementptr without indices")
			}
			gep, err := safeGEP(b, base, indices)
			if err != nil {
				return nil, err
			}
			v = gep
		}
	case "cast":
		op, ok := castOp(is.Kind)
		if !ok {
			return nil, fmt.Errorf("invalid cast %q", is.Kind)
		}
		x, t := o.value(is.X), o.typ(is.Type)
		if o.err == nil {
			v = b.Cast(op, x, t)
		}
	case "phi":
		t := o.typ(is.Type)
		if o.err == nil {
			v = b.Phi(t, nil, nil)
		}
	case "select":
		c, t, f := o.value(is.Cond), o.value(is.T), o.value(is.F)
		if o.err == nil {
			v = b.Select(c, t, f)
		}
	case "extractvalue":
		agg := o.value(is.Agg)
		if o.err == nil {
			v = b.ExtractValue(agg, is.Fields...)
		}
	case "insertvalue":
		agg, val := o.value(is.Agg), o.value(is.Val)
		if o.err == nil {
			v = b.InsertValue(agg, val, is.Fields...)
		}
	case "call":
		callee, args := o.value(is.Callee), o.values(is.Args)
		if o.err == nil {
			v = b.Call(callee, args...)
		}
	case "invoke":
		callee, args := o.value(is.Callee), o.values(is.Args)
		normal, unwind := o.block(is.Normal), o.block(is.Unwind)
		if o.err == nil {
			v = b.Invoke(callee, normal, unwind, args...)
		}
	case "landingpad":
		v = b.LandingPad()
	case "ret":
		var val ir.Value
		if is.Val != "" {
			val = o.value(is.Val)
		}
		if o.err == nil {
			b.Ret(val)
		}
	case "br":
		target := o.block(is.Target)
		if o.err == nil {
			b.Br(target)
		}
	case "condbr":
		c, then, els := o.value(is.Cond), o.block(is.Then), o.block(is.Else)
		if o.err == nil {
			b.CondBr(c, then, els)
		}
	case "switch":
		x, def := o.value(is.X), o.block(is.Default)
		var cases []ir.SwitchCase
		for _, cs := range is.Cases {
			cases = append(cases, ir.SwitchCase{Value: cs.Value, Target: o.block(cs.Target)})
		}
		if o.err == nil {
			b.Switch(x, def, cases...)
		}
	case "unreachable":
		b.Unreachable()
	case "resume":
		val := o.value(is.Val)
		if o.err == nil {
			b.Resume(val)
		}
	default:
		return nil, fmt.Errorf("unknown instruction")
	}
	if o.err != nil {
		return nil, o.err
	}
	if v != nil {
		if _, void := v.Type().(*ir.VoidType); void {
			return nil, nil
		}
	}
	return v, nil
}

func safeGEP(b *ir.Builder, base ir.Value, indices []ir.Value) (gep *ir.GEP, err error) {
	if _, ok := base.Type().(*ir.PointerType); !ok {
		return nil, fmt.Errorf("getelementptr on non-pointer %s", base)
	}
	defer func() {
		if x := recover(); x != nil {
			err = fmt.Errorf("%v", x)
		}
	}()
	return b.GEP(base, indices...), nil
}

func binaryOp(s string) (ir.BinaryOp, bool) {
	for op := ir.Add; op <= ir.FDiv; op++ {
		if op.String() == s {
			return op, true
		}
	}
	return 0, false
}

func predicate(s string) (ir.Predicate, bool) {
	for p := ir.EQ; p <= ir.UGE; p++ {
		if p.String() == s {
			return p, true
		}
	}
	return 0, false
}

func castOp(s string) (ir.CastOp, bool) {
	for op := ir.Bitcast; op <= ir.FPTrunc; op++ {
		if op.String() == s {
			return op, true
		}
	}
	return 0, false
}
