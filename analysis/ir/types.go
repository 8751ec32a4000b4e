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
	"regexp"
	"strings"
)

// Type is the type of an IR value.
type Type interface {
	String() string
	isType()
}

// IntType is an integer type of Bits bits. i1 is the boolean type.
type IntType struct {
	Bits int
}

// FloatType is a floating point type of Bits bits.
type FloatType struct {
	Bits int
}

// VoidType is the result type of functions that do not return a value.
type VoidType struct{}

// PointerType is a pointer to a value of type Elem.
type PointerType struct {
	Elem Type
}

// ArrayType is a fixed-size sequence of Len values of type Elem.
type ArrayType struct {
	Elem Type
	Len  int
}

// StructType is a named aggregate type. Struct types are compared by identity.
//
// Bases holds the direct supertypes of the class, as recorded by the inheritance debug metadata. Base classes are
// also embedded in Fields, at the position chosen by the class layout.
type StructType struct {
	Name   string
	Fields []Type
	Bases  []*StructType
}

// FunctionType is the signature of a function.
type FunctionType struct {
	Params   []Type
	Result   Type
	Variadic bool
}

func (*IntType) isType()      {}
func (*FloatType) isType()    {}
func (*VoidType) isType()     {}
func (*PointerType) isType()  {}
func (*ArrayType) isType()    {}
func (*StructType) isType()   {}
func (*FunctionType) isType() {}

func (t *IntType) String() string { return fmt.Sprintf("i%d", t.Bits) }

func (t *FloatType) String() string {
	switch t.Bits {
	case 32:
		return "float"
	case 64:
		return "double"
	default:
		return fmt.Sprintf("f%d", t.Bits)
	}
}

func (t *VoidType) String() string { return "void" }
func (t *PointerType) String() string { return t.Elem.String() + "*" }
func (t *ArrayType) String() string { return fmt.Sprintf("[%d x %s]", t.Len, t.Elem) }
func (t *StructType) String() string { return "%" + t.Name }

func (t *FunctionType) String() string {
	var params []string
	for _, p := range t.Params {
		params = append(params, p.String())
	}
	if t.Variadic {
		params = append(params, "...")
	}
	return fmt.Sprintf("%s (%s)", t.Result, strings.Join(params, ", "))
}

var (
	// I1 is the boolean type
	I1 = &IntType{Bits: 1}
	// I8 is the byte type
	I8 = &IntType{Bits: 8}
	// I32 is the 32 bits integer type
	I32 = &IntType{Bits: 32}
	// I64 is the 64 bits integer type
	I64 = &IntType{Bits: 64}
	// Double is the 64 bits floating point type
	Double = &FloatType{Bits: 64}
	// Void is the void type
	Void = &VoidType{}
	// BytePtr is the i8* type used by memory intrinsics and allocation functions
	BytePtr = &PointerType{Elem: I8}
)

// PointerTo returns the type of pointers to t
func PointerTo(t Type) *PointerType {
	return &PointerType{Elem: t}
}

// Identical returns true if the two types are the same. Struct types are identical only if they are the same
// struct; all other types are compared structurally.
func Identical(a, b Type) bool {
	if a == b {
		return true
	}
	switch a := a.(type) {
	case *IntType:
		b, ok := b.(*IntType)
		return ok && a.Bits == b.Bits
	case *FloatType:
		b, ok := b.(*FloatType)
		return ok && a.Bits == b.Bits
	case *VoidType:
		_, ok := b.(*VoidType)
		return ok
	case *PointerType:
		b, ok := b.(*PointerType)
		return ok && Identical(a.Elem, b.Elem)
	case *ArrayType:
		b, ok := b.(*ArrayType)
		return ok && a.Len == b.Len && Identical(a.Elem, b.Elem)
	case *FunctionType:
		b, ok := b.(*FunctionType)
		if !ok || a.Variadic != b.Variadic || len(a.Params) != len(b.Params) || !Identical(a.Result, b.Result) {
			return false
		}
		for i := range a.Params {
			if !Identical(a.Params[i], b.Params[i]) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Elem returns the element type of a pointer type, and nil if t is not a pointer
func Elem(t Type) Type {
	if p, ok := t.(*PointerType); ok {
		return p.Elem
	}
	return nil
}

// PointeeStruct returns the struct type pointed to by t, or nil if t is not a pointer to a struct
func PointeeStruct(t Type) *StructType {
	st, _ := Elem(t).(*StructType)
	return st
}

// IsFunctionPointer returns true if t is a pointer to a function type
func IsFunctionPointer(t Type) bool {
	_, ok := Elem(t).(*FunctionType)
	return ok
}

// IsBytePointer returns true if t is i8*
func IsBytePointer(t Type) bool {
	return Identical(t, BytePtr)
}

// ElementType returns the type of the element at index i of the composite type t, and nil if t is not composite or
// the index is out of range.
func ElementType(t Type, i int) Type {
	switch t := t.(type) {
	case *StructType:
		if i >= 0 && i < len(t.Fields) {
			return t.Fields[i]
		}
	case *ArrayType:
		if i >= 0 && i < t.Len {
			return t.Elem
		}
	}
	return nil
}

// NumElements returns the number of elements of a composite type, and 0 for other types
func NumElements(t Type) int {
	switch t := t.(type) {
	case *StructType:
		return len(t.Fields)
	case *ArrayType:
		return t.Len
	}
	return 0
}

var baseTypeRegex = regexp.MustCompile(`\.base(\.[0-9]+)?$`)

// IsBaseType returns true if the struct type is the layout of a base class without its tail padding, which is
// named after the class with a ".base" suffix.
func IsBaseType(t *StructType) bool {
	if t == nil || t.Name == "class.base" || t.Name == "struct.base" {
		return false
	}
	return baseTypeRegex.MatchString(t.Name)
}
