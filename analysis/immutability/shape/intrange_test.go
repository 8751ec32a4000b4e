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
)

func TestIntRangeBasics(t *testing.T) {
	full := FullRange(8)
	assert.True(t, full.IsFull())
	assert.Equal(t, int64(-128), full.Lo)
	assert.Equal(t, int64(127), full.Hi)

	assert.True(t, NewRange(8, 5, 2).IsEmpty())
	assert.True(t, NewRange(8, -1000, 1000).IsFull())
	assert.Equal(t, int64(-1), SingleRange(8, 255).Lo)

	assert.True(t, BoolRange(true).IsTrue())
	assert.True(t, BoolRange(false).IsFalse())
	assert.False(t, FullRange(1).IsTrue())

	r := NewRange(32, 0, 10)
	assert.True(t, r.Contains(10))
	assert.False(t, r.Contains(11))
	assert.True(t, r.ContainsRange(NewRange(32, 2, 3)))
	assert.True(t, r.ContainsRange(EmptyRange(32)))
	assert.False(t, EmptyRange(32).ContainsRange(r))
}

func TestIntRangeLattice(t *testing.T) {
	a, b := NewRange(32, 0, 3), NewRange(32, 10, 12)
	assert.True(t, a.Union(b).Equal(NewRange(32, 0, 12)))
	assert.True(t, a.Union(EmptyRange(32)).Equal(a))
	assert.True(t, a.Intersect(b).IsEmpty())
	assert.True(t, NewRange(32, 0, 10).Intersect(b).Equal(NewRange(32, 10, 10)))

	// refining with a sub-range gives the sub-range, otherwise the intersection
	assert.True(t, NewRange(32, 0, 10).Refine(a).Equal(a))
	assert.True(t, NewRange(32, 2, 10).Refine(a).Equal(NewRange(32, 2, 3)))
	assert.True(t, b.Refine(a).IsEmpty())
}

func TestIntRangeArithmetic(t *testing.T) {
	tests := []struct {
		name string
		op   ir.BinaryOp
		x, y IntRange
		want IntRange
	}{
		{"add", ir.Add, NewRange(8, 1, 3), NewRange(8, 10, 20), NewRange(8, 11, 23)},
		{"add wraps", ir.Add, NewRange(8, 100, 120), SingleRange(8, 10), FullRange(8)},
		{"sub", ir.Sub, NewRange(32, 10, 20), NewRange(32, 1, 2), NewRange(32, 8, 19)},
		{"mul", ir.Mul, NewRange(32, -2, 3), NewRange(32, 4, 5), NewRange(32, -10, 15)},
		{"mul wraps", ir.Mul, SingleRange(64, math.MaxInt64), SingleRange(64, 2), FullRange(64)},
		{"sdiv", ir.SDiv, SingleRange(32, 7), SingleRange(32, 2), SingleRange(32, 3)},
		{"sdiv by zero", ir.SDiv, SingleRange(32, 7), SingleRange(32, 0), FullRange(32)},
		{"urem", ir.URem, SingleRange(8, -1), SingleRange(8, 16), SingleRange(8, 15)},
		{"and", ir.And, NewRange(32, 0, 100), NewRange(32, 0, 7), NewRange(32, 0, 7)},
		{"xor", ir.Xor, SingleRange(1, 1), SingleRange(1, 1), SingleRange(1, 0)},
		{"shl", ir.Shl, SingleRange(8, 1), SingleRange(8, 7), SingleRange(8, -128)},
		{"shl too far", ir.Shl, SingleRange(8, 1), SingleRange(8, 8), FullRange(8)},
		{"or of ranges", ir.Or, NewRange(32, 0, 1), SingleRange(32, 2), FullRange(32)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.x.BinaryOp(tt.op, tt.y)
			assert.True(t, got.Equal(tt.want), "got %s, want %s", got, tt.want)
		})
	}
}

func TestIntRangeConversions(t *testing.T) {
	assert.True(t, SingleRange(32, 300).Trunc(8).Equal(SingleRange(8, 44)))
	assert.True(t, NewRange(32, 0, 300).Trunc(8).IsFull())
	assert.True(t, NewRange(8, -3, 4).SExt(32).Equal(NewRange(32, -3, 4)))
	assert.True(t, BoolRange(true).SExt(32).Equal(SingleRange(32, -1)))
	assert.True(t, BoolRange(true).ZExt(32).Equal(SingleRange(32, 1)))
	assert.True(t, NewRange(8, -1, 1).ZExt(32).Equal(NewRange(32, 0, 255)))
}

func TestIntRangeCompare(t *testing.T) {
	small, large := NewRange(32, 0, 5), NewRange(32, 10, 20)

	res, ok := small.Compare(ir.SLT, large)
	assert.True(t, ok)
	assert.True(t, res)

	res, ok = large.Compare(ir.SLE, small)
	assert.True(t, ok)
	assert.False(t, res)

	res, ok = small.Compare(ir.EQ, large)
	assert.True(t, ok)
	assert.False(t, res)

	res, ok = small.Compare(ir.NE, large)
	assert.True(t, ok)
	assert.True(t, res)

	_, ok = small.Compare(ir.SLT, NewRange(32, 3, 4))
	assert.False(t, ok)

	// -1 is the largest unsigned value
	res, ok = SingleRange(32, -1).Compare(ir.UGT, SingleRange(32, 1))
	assert.True(t, ok)
	assert.True(t, res)

	_, ok = NewRange(32, -1, 1).Compare(ir.ULT, SingleRange(32, 5))
	assert.False(t, ok)
}

func TestAllowedRegion(t *testing.T) {
	min32, max32 := int64(math.MinInt32), int64(math.MaxInt32)
	tests := []struct {
		name string
		pred ir.Predicate
		o    IntRange
		want IntRange
	}{
		{"eq", ir.EQ, NewRange(32, 1, 2), NewRange(32, 1, 2)},
		{"ne", ir.NE, SingleRange(32, 1), FullRange(32)},
		{"slt", ir.SLT, NewRange(32, 0, 10), NewRange(32, min32, 9)},
		{"slt min", ir.SLT, SingleRange(32, min32), EmptyRange(32)},
		{"sge", ir.SGE, NewRange(32, 3, 10), NewRange(32, 3, max32)},
		{"sgt max", ir.SGT, SingleRange(32, max32), EmptyRange(32)},
		{"ult", ir.ULT, NewRange(32, 0, 10), NewRange(32, 0, 9)},
		{"ult zero", ir.ULT, SingleRange(32, 0), EmptyRange(32)},
		{"ule negative", ir.ULE, SingleRange(32, -1), FullRange(32)},
		{"ugt", ir.UGT, SingleRange(32, 4), FullRange(32)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AllowedRegion(32, tt.pred, tt.o)
			assert.True(t, got.Equal(tt.want), "got %s, want %s", got, tt.want)
		})
	}
}

func TestExcludeBound(t *testing.T) {
	r := NewRange(32, 0, 3)
	assert.True(t, r.excludeBound(0).Equal(NewRange(32, 1, 3)))
	assert.True(t, r.excludeBound(3).Equal(NewRange(32, 0, 2)))
	assert.True(t, r.excludeBound(1).Equal(r))
	assert.True(t, SingleRange(32, 7).excludeBound(7).IsEmpty())
}
