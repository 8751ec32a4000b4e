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
	"strconv"
)

// Value is anything that can be the operand of an instruction: arguments, constants, functions, globals and the
// instructions that produce a value.
type Value interface {
	// Name returns the name of the value, without the % or @ sigil
	Name() string
	// Type returns the type of the value
	Type() Type
	// String returns the operand representation of the value
	String() string
}

// Constant is implemented by the values that are not computed by the function being analyzed.
type Constant interface {
	Value
	isConstant()
}

// Argument is a formal parameter of a function.
type Argument struct {
	name   string
	typ    Type
	Index  int
	SRet   bool // the argument is the struct return slot, not a receiver
	parent *Function
}

func (a *Argument) Name() string { return a.name }
func (a *Argument) Type() Type { return a.typ }
func (a *Argument) String() string { return "%" + a.name }
func (a *Argument) Parent() *Function { return a.parent }

// ConstInt is an integer constant.
type ConstInt struct {
	Typ   *IntType
	Value int64
}

func (c *ConstInt) Name() string { return strconv.FormatInt(c.Value, 10) }
func (c *ConstInt) Type() Type { return c.Typ }
func (c *ConstInt) String() string { return fmt.Sprintf("%s %d", c.Typ, c.Value) }
func (c *ConstInt) isConstant() {}

// ConstFloat is a floating point constant.
type ConstFloat struct {
	Typ   *FloatType
	Value float64
}

func (c *ConstFloat) Name() string { return strconv.FormatFloat(c.Value, 'g', -1, 64) }
func (c *ConstFloat) Type() Type { return c.Typ }
func (c *ConstFloat) String() string { return fmt.Sprintf("%s %s", c.Typ, c.Name()) }
func (c *ConstFloat) isConstant() {}

// ConstNull is the null pointer of a pointer type.
type ConstNull struct {
	Typ *PointerType
}

func (c *ConstNull) Name() string { return "null" }
func (c *ConstNull) Type() Type { return c.Typ }
func (c *ConstNull) String() string { return c.Typ.String() + " null" }
func (c *ConstNull) isConstant() {}

// Undef is an undefined value of some type.
type Undef struct {
	Typ Type
}

func (c *Undef) Name() string { return "undef" }
func (c *Undef) Type() Type { return c.Typ }
func (c *Undef) String() string { return c.Typ.String() + " undef" }
func (c *Undef) isConstant() {}

// ConstCast is a constant expression that bitcasts a constant (usually a function) to another type.
type ConstCast struct {
	X   Constant
	Typ Type
}

func (c *ConstCast) Name() string { return "bitcast(" + c.X.String() + ")" }
func (c *ConstCast) Type() Type { return c.Typ }
func (c *ConstCast) String() string { return fmt.Sprintf("bitcast (%s to %s)", c.X, c.Typ) }
func (c *ConstCast) isConstant() {}

// Global is a global variable. Its value is the address of the variable.
type Global struct {
	name string
	Elem Type
}

// NewGlobal returns a global variable named name holding a value of type elem
func NewGlobal(name string, elem Type) *Global {
	return &Global{name: name, Elem: elem}
}

func (g *Global) Name() string { return g.name }
func (g *Global) Type() Type { return PointerTo(g.Elem) }
func (g *Global) String() string { return "@" + g.name }
func (g *Global) isConstant() {}

// Int returns the integer constant v of type t
func Int(t *IntType, v int64) *ConstInt {
	return &ConstInt{Typ: t, Value: v}
}

// Bool returns the i1 constant for b
func Bool(b bool) *ConstInt {
	if b {
		return Int(I1, 1)
	}
	return Int(I1, 0)
}

// Null returns the null pointer of type t
func Null(t *PointerType) *ConstNull {
	return &ConstNull{Typ: t}
}

// CalledFunction returns the function v refers to, looking through constant bitcasts, and nil if v is not a
// function.
func CalledFunction(v Value) *Function {
	switch v := v.(type) {
	case *Function:
		return v
	case *ConstCast:
		return CalledFunction(v.X)
	}
	return nil
}

// ConstIntValue returns the value of an integer constant, and false if v is not an integer constant.
func ConstIntValue(v Value) (int64, bool) {
	if c, ok := v.(*ConstInt); ok {
		return c.Value, true
	}
	return 0, false
}
