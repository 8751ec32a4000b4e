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
	"fmt"
	"math"

	"github.com/awslabs/ar-immutability/analysis/ir"
)

// IntRange is an interval [Lo, Hi] of the values of an integer of Bits bits. Integers are interpreted as signed,
// except booleans (i1) whose values are 0 and 1.
//
// The zero value is not a valid range; use FullRange, EmptyRange, SingleRange or NewRange.
type IntRange struct {
	Bits  int
	Lo    int64
	Hi    int64
	empty bool
}

func minValue(b int) int64 {
	if b == 1 {
		return 0
	}
	if b >= 64 {
		return math.MinInt64
	}
	return -(int64(1) << (b - 1))
}

func maxValue(b int) int64 {
	if b == 1 {
		return 1
	}
	if b >= 64 {
		return math.MaxInt64
	}
	return int64(1)<<(b-1) - 1
}

// normalize returns the value of v once truncated to b bits
func normalize(b int, v int64) int64 {
	if b >= 64 {
		return v
	}
	if b == 1 {
		return v & 1
	}
	shift := 64 - b
	return (v << shift) >> shift
}

// FullRange returns the range of all the values of an integer of b bits
func FullRange(b int) IntRange {
	return IntRange{Bits: b, Lo: minValue(b), Hi: maxValue(b)}
}

// EmptyRange returns the range without values
func EmptyRange(b int) IntRange {
	return IntRange{Bits: b, empty: true}
}

// SingleRange returns the range {v}
func SingleRange(b int, v int64) IntRange {
	v = normalize(b, v)
	return IntRange{Bits: b, Lo: v, Hi: v}
}

// NewRange returns the range [lo, hi], clamped to the values of an integer of b bits
func NewRange(b int, lo, hi int64) IntRange {
	lo = max(lo, minValue(b))
	hi = min(hi, maxValue(b))
	if lo > hi {
		return EmptyRange(b)
	}
	return IntRange{Bits: b, Lo: lo, Hi: hi}
}

// BoolRange returns the range of a boolean that is always b
func BoolRange(b bool) IntRange {
	if b {
		return SingleRange(1, 1)
	}
	return SingleRange(1, 0)
}

// ConstRange returns the range of an integer constant
func ConstRange(c *ir.ConstInt) IntRange {
	return SingleRange(c.Typ.Bits, c.Value)
}

// IsEmpty returns true if the range has no values
func (r IntRange) IsEmpty() bool { return r.empty }

// IsFull returns true if the range contains all the values of its width
func (r IntRange) IsFull() bool {
	return !r.empty && r.Lo == minValue(r.Bits) && r.Hi == maxValue(r.Bits)
}

// Single returns the value of a range with exactly one value
func (r IntRange) Single() (int64, bool) {
	if r.empty || r.Lo != r.Hi {
		return 0, false
	}
	return r.Lo, true
}

// IsTrue returns true if the boolean range only contains true
func (r IntRange) IsTrue() bool {
	v, ok := r.Single()
	return ok && v != 0
}

// IsFalse returns true if the boolean range only contains false
func (r IntRange) IsFalse() bool {
	v, ok := r.Single()
	return ok && v == 0
}

// Contains returns true if v is in the range
func (r IntRange) Contains(v int64) bool {
	return !r.empty && r.Lo <= v && v <= r.Hi
}

// ContainsRange returns true if o is a subset of r
func (r IntRange) ContainsRange(o IntRange) bool {
	if o.empty {
		return true
	}
	return !r.empty && r.Lo <= o.Lo && o.Hi <= r.Hi
}

// Equal returns true if the two ranges have the same values
func (r IntRange) Equal(o IntRange) bool {
	if r.empty || o.empty {
		return r.empty == o.empty
	}
	return r.Lo == o.Lo && r.Hi == o.Hi
}

// Union returns the smallest range containing r and o
func (r IntRange) Union(o IntRange) IntRange {
	switch {
	case r.empty:
		return o
	case o.empty:
		return r
	}
	return IntRange{Bits: r.Bits, Lo: min(r.Lo, o.Lo), Hi: max(r.Hi, o.Hi)}
}

// Intersect returns the values in both r and o
func (r IntRange) Intersect(o IntRange) IntRange {
	if r.empty || o.empty {
		return EmptyRange(r.Bits)
	}
	return NewRange(r.Bits, max(r.Lo, o.Lo), min(r.Hi, o.Hi))
}

// Refine returns the range of a value of r that is known to be in cr. If r contains cr, the result is cr itself;
// otherwise it is the intersection, which is empty when the value cannot be in cr.
func (r IntRange) Refine(cr IntRange) IntRange {
	if r.ContainsRange(cr) {
		return cr
	}
	return r.Intersect(cr)
}

func (r IntRange) String() string {
	switch {
	case r.empty:
		return fmt.Sprintf("i%d empty", r.Bits)
	case r.IsFull():
		return fmt.Sprintf("i%d full", r.Bits)
	case r.Lo == r.Hi:
		return fmt.Sprintf("i%d {%d}", r.Bits, r.Lo)
	}
	return fmt.Sprintf("i%d [%d, %d]", r.Bits, r.Lo, r.Hi)
}

// checked returns the range [lo, hi], or the full range if the computation overflowed or the bounds do not fit the
// width
func checked(b int, lo, hi int64, overflow bool) IntRange {
	if overflow || lo < minValue(b) || hi > maxValue(b) || lo > hi {
		return FullRange(b)
	}
	return IntRange{Bits: b, Lo: lo, Hi: hi}
}

func addOverflows(x, y int64) (int64, bool) {
	s := x + y
	return s, (x > 0 && y > 0 && s < 0) || (x < 0 && y < 0 && s >= 0)
}

func subOverflows(x, y int64) (int64, bool) {
	d := x - y
	return d, (x >= 0 && y < 0 && d < 0) || (x < 0 && y > 0 && d >= 0)
}

func mulOverflows(x, y int64) (int64, bool) {
	if x == 0 || y == 0 {
		return 0, false
	}
	p := x * y
	if p/y != x || (x == -1 && y == math.MinInt64) || (y == -1 && x == math.MinInt64) {
		return p, true
	}
	return p, false
}

// Add returns the range of x + y, or the full range if the addition may wrap around
func (r IntRange) Add(o IntRange) IntRange {
	if r.empty || o.empty {
		return EmptyRange(r.Bits)
	}
	lo, of1 := addOverflows(r.Lo, o.Lo)
	hi, of2 := addOverflows(r.Hi, o.Hi)
	return checked(r.Bits, lo, hi, of1 || of2)
}

// Sub returns the range of x - y, or the full range if the subtraction may wrap around
func (r IntRange) Sub(o IntRange) IntRange {
	if r.empty || o.empty {
		return EmptyRange(r.Bits)
	}
	lo, of1 := subOverflows(r.Lo, o.Hi)
	hi, of2 := subOverflows(r.Hi, o.Lo)
	return checked(r.Bits, lo, hi, of1 || of2)
}

// Mul returns the range of x * y, or the full range if the multiplication may wrap around
func (r IntRange) Mul(o IntRange) IntRange {
	if r.empty || o.empty {
		return EmptyRange(r.Bits)
	}
	lo, hi := int64(math.MaxInt64), int64(math.MinInt64)
	for _, x := range [2]int64{r.Lo, r.Hi} {
		for _, y := range [2]int64{o.Lo, o.Hi} {
			p, of := mulOverflows(x, y)
			if of {
				return FullRange(r.Bits)
			}
			lo, hi = min(lo, p), max(hi, p)
		}
	}
	return checked(r.Bits, lo, hi, false)
}

// BinaryOp returns the range of the result of op applied to values of r and o. Operations other than the addition,
// subtraction and multiplication are only computed precisely when both operands are constant.
//
//gocyclo:ignore
func (r IntRange) BinaryOp(op ir.BinaryOp, o IntRange) IntRange {
	if r.empty || o.empty {
		return EmptyRange(r.Bits)
	}
	switch op {
	case ir.Add:
		return r.Add(o)
	case ir.Sub:
		return r.Sub(o)
	case ir.Mul:
		return r.Mul(o)
	}
	x, okx := r.Single()
	y, oky := o.Single()
	if !okx || !oky {
		if op == ir.And && r.Lo >= 0 && o.Lo >= 0 {
			return NewRange(r.Bits, 0, min(r.Hi, o.Hi))
		}
		return FullRange(r.Bits)
	}
	ux, uy := uint64(x)&mask(r.Bits), uint64(y)&mask(r.Bits)
	var v int64
	switch op {
	case ir.SDiv:
		if y == 0 || (x == minValue(r.Bits) && y == -1) {
			return FullRange(r.Bits)
		}
		v = x / y
	case ir.SRem:
		if y == 0 || (x == minValue(r.Bits) && y == -1) {
			return FullRange(r.Bits)
		}
		v = x % y
	case ir.UDiv:
		if uy == 0 {
			return FullRange(r.Bits)
		}
		v = int64(ux / uy)
	case ir.URem:
		if uy == 0 {
			return FullRange(r.Bits)
		}
		v = int64(ux % uy)
	case ir.And:
		v = x & y
	case ir.Or:
		v = x | y
	case ir.Xor:
		v = x ^ y
	case ir.Shl:
		if uy >= uint64(r.Bits) {
			return FullRange(r.Bits)
		}
		v = int64(ux << uy)
	case ir.LShr:
		if uy >= uint64(r.Bits) {
			return FullRange(r.Bits)
		}
		v = int64(ux >> uy)
	case ir.AShr:
		if uy >= uint64(r.Bits) {
			return FullRange(r.Bits)
		}
		v = x >> uy
	default:
		return FullRange(r.Bits)
	}
	return SingleRange(r.Bits, v)
}

func mask(b int) uint64 {
	if b >= 64 {
		return math.MaxUint64
	}
	return uint64(1)<<b - 1
}

// Trunc returns the range of the values of r truncated to b bits
func (r IntRange) Trunc(b int) IntRange {
	if r.empty {
		return EmptyRange(b)
	}
	if v, ok := r.Single(); ok {
		return SingleRange(b, v)
	}
	return checked(b, r.Lo, r.Hi, false)
}

// SExt returns the range of the values of r sign-extended to b bits
func (r IntRange) SExt(b int) IntRange {
	if r.empty {
		return EmptyRange(b)
	}
	if r.Bits == 1 {
		// true is all ones once extended
		return NewRange(b, -r.Hi, -r.Lo)
	}
	return NewRange(b, r.Lo, r.Hi)
}

// ZExt returns the range of the values of r zero-extended to b bits
func (r IntRange) ZExt(b int) IntRange {
	if r.empty {
		return EmptyRange(b)
	}
	if r.Lo >= 0 {
		return NewRange(b, r.Lo, r.Hi)
	}
	if r.Bits < 64 && r.Bits < b {
		return NewRange(b, 0, int64(mask(r.Bits)))
	}
	return FullRange(b)
}

// unsigned returns true if all the values of the range have the same signed and unsigned interpretation
func (r IntRange) unsigned() bool {
	return !r.empty && r.Lo >= 0
}

// Compare decides x pred y for all the values x of r and y of o. The second result is false if the comparison
// depends on the values.
//
//gocyclo:ignore
func (r IntRange) Compare(pred ir.Predicate, o IntRange) (result bool, decided bool) {
	if r.empty || o.empty {
		return false, false
	}
	switch pred {
	case ir.ULT, ir.ULE, ir.UGT, ir.UGE:
		if !r.unsigned() || !o.unsigned() {
			if x, ok := r.Single(); ok {
				if y, ok := o.Single(); ok {
					return compareUnsigned(pred, uint64(x)&mask(r.Bits), uint64(y)&mask(r.Bits)), true
				}
			}
			return false, false
		}
		pred = map[ir.Predicate]ir.Predicate{ir.ULT: ir.SLT, ir.ULE: ir.SLE, ir.UGT: ir.SGT, ir.UGE: ir.SGE}[pred]
	}
	switch pred {
	case ir.EQ:
		if x, ok := r.Single(); ok {
			if y, ok := o.Single(); ok && x == y {
				return true, true
			}
		}
		if r.Intersect(o).IsEmpty() {
			return false, true
		}
	case ir.NE:
		res, ok := r.Compare(ir.EQ, o)
		return !res, ok
	case ir.SLT:
		if r.Hi < o.Lo {
			return true, true
		}
		if r.Lo >= o.Hi {
			return false, true
		}
	case ir.SLE:
		if r.Hi <= o.Lo {
			return true, true
		}
		if r.Lo > o.Hi {
			return false, true
		}
	case ir.SGT:
		return o.Compare(ir.SLT, r)
	case ir.SGE:
		return o.Compare(ir.SLE, r)
	}
	return false, false
}

func compareUnsigned(pred ir.Predicate, x, y uint64) bool {
	switch pred {
	case ir.ULT:
		return x < y
	case ir.ULE:
		return x <= y
	case ir.UGT:
		return x > y
	default:
		return x >= y
	}
}

// AllowedRegion returns the range of the values x of width b such that x pred y holds for some value y of o. The
// result over-approximates the region when it cannot be represented as an interval.
//
//gocyclo:ignore
func AllowedRegion(b int, pred ir.Predicate, o IntRange) IntRange {
	if o.empty {
		return EmptyRange(b)
	}
	lo, hi := minValue(b), maxValue(b)
	switch pred {
	case ir.EQ:
		return NewRange(b, o.Lo, o.Hi)
	case ir.NE:
		return FullRange(b)
	case ir.SLT:
		if o.Hi == lo {
			return EmptyRange(b)
		}
		return NewRange(b, lo, o.Hi-1)
	case ir.SLE:
		return NewRange(b, lo, o.Hi)
	case ir.SGT:
		if o.Lo == hi {
			return EmptyRange(b)
		}
		return NewRange(b, o.Lo+1, hi)
	case ir.SGE:
		return NewRange(b, o.Lo, hi)
	case ir.ULT:
		if !o.unsigned() {
			return FullRange(b)
		}
		if o.Hi == 0 {
			return EmptyRange(b)
		}
		return NewRange(b, 0, o.Hi-1)
	case ir.ULE:
		if !o.unsigned() {
			return FullRange(b)
		}
		return NewRange(b, 0, o.Hi)
	}
	// x >u y admits the negative values, which are large unsigned values
	return FullRange(b)
}

// excludeBound removes v from r when v is one of its bounds, which is the only case where x != v can be represented
func (r IntRange) excludeBound(v int64) IntRange {
	switch {
	case r.empty:
		return r
	case r.Lo == v && r.Hi == v:
		return EmptyRange(r.Bits)
	case r.Lo == v:
		return IntRange{Bits: r.Bits, Lo: v + 1, Hi: r.Hi}
	case r.Hi == v:
		return IntRange{Bits: r.Bits, Lo: r.Lo, Hi: v - 1}
	}
	return r
}
