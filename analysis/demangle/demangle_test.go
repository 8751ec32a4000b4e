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

package demangle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	for _, tc := range []struct {
		demangled string
		want      Info
	}{
		{
			"Counter::get() const",
			Info{Qualified: "Counter::get", Name: "get", Const: true},
		},
		{
			"ns::Map<int, char>::find(int const&) const",
			Info{Qualified: "ns::Map<int, char>::find", Name: "find", Params: "int const&", Const: true},
		},
		{
			"ns::Map<int, char>::Map(ns::Map<int, char> const&)",
			Info{Qualified: "ns::Map<int, char>::Map", Name: "Map", Params: "ns::Map<int, char> const&",
				CtorOrDtor: true},
		},
		{
			"Counter::~Counter()",
			Info{Qualified: "Counter::~Counter", Name: "~Counter", CtorOrDtor: true},
		},
		{
			"non-virtual thunk to Derived::size() const",
			Info{Qualified: "Derived::size", Name: "size", Const: true},
		},
		{
			"int Box::get<int>(void (*)(int)) const",
			Info{Qualified: "Box::get<int>", Name: "get<int>", Params: "void (*)(int)", Const: true},
		},
		{
			"Functor::operator()(int) const &",
			Info{Qualified: "Functor::operator()", Name: "operator()", Params: "int", Const: true},
		},
	} {
		info, err := Parse(tc.demangled)
		require.NoError(t, err, tc.demangled)
		info.Demangled = ""
		assert.Equal(t, tc.want, info, tc.demangled)
	}

	_, err := Parse("vtable for Counter")
	assert.Error(t, err)
}

func TestDemangler(t *testing.T) {
	d := New()

	get, err := d.Demangle("_ZNK7Counter3getEv")
	require.NoError(t, err)
	assert.Equal(t, "Counter::get() const", get.Demangled)
	assert.True(t, get.Const)
	assert.False(t, get.CtorOrDtor)

	assert.True(t, d.IsCtorOrDtor("_ZN7CounterC2Ev"))
	assert.True(t, d.IsCtorOrDtor("_ZN7CounterD0Ev"))
	assert.False(t, d.IsCtorOrDtor("_ZNK7Counter3getEv"))
	assert.False(t, d.IsCtorOrDtor("main"))

	_, err = d.Demangle("not_mangled")
	assert.Error(t, err)

	derived, err := d.Demangle("_ZNK7Derived3getEv")
	require.NoError(t, err)
	assert.True(t, SameSignature(get, derived))

	mutable, err := d.Demangle("_ZN7Counter3getEv")
	require.NoError(t, err)
	assert.False(t, SameSignature(get, mutable))

	withArg, err := d.Demangle("_ZNK7Counter3getEi")
	require.NoError(t, err)
	assert.Equal(t, "int", withArg.Params)
	assert.False(t, SameSignature(get, withArg))

	assert.Equal(t, 6, d.Size())
	_, _ = d.Demangle("_ZNK7Counter3getEv")
	assert.Equal(t, 6, d.Size())
}
