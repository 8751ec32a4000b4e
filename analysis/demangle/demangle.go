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

// Package demangle splits demangled Itanium C++ symbols into the parts the analysis compares methods with.
package demangle

import (
	"fmt"
	"strings"

	"github.com/ianlancetaylor/demangle"
	"github.com/puzpuzpuz/xsync/v4"
)

// Info is the decomposition of a demangled function symbol
type Info struct {
	// Demangled is the full demangled symbol, without thunk prefix
	Demangled string
	// Qualified is the qualified name of the function, e.g. ns::Class::method
	Qualified string
	// Name is the last component of the qualified name, e.g. method
	Name string
	// Params is the text of the parameter list, without the parentheses
	Params string
	// Const is true for methods with a const object parameter
	Const bool
	// CtorOrDtor is true for constructors and destructors
	CtorOrDtor bool
}

// SameSignature returns true if a and b have the same unqualified name, constness and parameters. A method
// overriding or hiding another one has the same signature.
func SameSignature(a, b Info) bool {
	return a.Name == b.Name && a.Const == b.Const && a.Params == b.Params
}

var thunkPrefixes = []string{
	"non-virtual thunk to ",
	"virtual thunk to ",
	"covariant return thunk to ",
}

// Demangler demangles symbols and memoizes the results. It is safe for concurrent use.
type Demangler struct {
	cache *xsync.Map[string, Info]
}

// New returns a demangler with an empty cache
func New() *Demangler {
	return &Demangler{cache: xsync.NewMap[string, Info]()}
}

// Demangle decomposes the mangled function symbol. It returns an error if symbol is not a mangled function name.
func (d *Demangler) Demangle(symbol string) (Info, error) {
	if info, ok := d.cache.Load(symbol); ok {
		return info, nil
	}
	s, err := demangle.ToString(symbol)
	if err != nil {
		return Info{}, fmt.Errorf("could not demangle %s: %w", symbol, err)
	}
	info, err := Parse(s)
	if err != nil {
		return Info{}, fmt.Errorf("could not decompose %s: %w", symbol, err)
	}
	info, _ = d.cache.LoadOrStore(symbol, info)
	return info, nil
}

// IsCtorOrDtor returns true if symbol demangles to a constructor or a destructor
func (d *Demangler) IsCtorOrDtor(symbol string) bool {
	info, err := d.Demangle(symbol)
	return err == nil && info.CtorOrDtor
}

// Size returns the number of memoized symbols
func (d *Demangler) Size() int {
	return d.cache.Size()
}

// Parse decomposes a demangled function signature such as "ns::A<int>::get(int) const".
func Parse(demangled string) (Info, error) {
	s := demangled
	for _, p := range thunkPrefixes {
		s = strings.TrimPrefix(s, p)
	}
	open, closing := outerParams(s)
	if open < 0 {
		return Info{}, fmt.Errorf("%q is not a function", demangled)
	}
	info := Info{
		Demangled: s,
		Params:    s[open+1 : closing],
	}
	for _, q := range strings.Fields(s[closing+1:]) {
		if q == "const" {
			info.Const = true
		}
	}
	qualified := s[:open]
	// Template functions are printed with their return type first
	if sp := lastTopLevel(qualified, ' '); sp >= 0 && !strings.HasSuffix(qualified[:sp], "operator") {
		qualified = qualified[sp+1:]
	}
	info.Qualified = qualified
	components := splitQualified(qualified)
	info.Name = components[len(components)-1]
	if len(components) >= 2 {
		class := stripTemplateArgs(components[len(components)-2])
		name := stripTemplateArgs(info.Name)
		info.CtorOrDtor = name == class || name == "~"+class
	}
	return info, nil
}

// outerParams returns the positions of the parentheses of the outermost trailing parenthesised group of s
func outerParams(s string) (int, int) {
	closing := strings.LastIndexByte(s, ')')
	if closing < 0 {
		return -1, -1
	}
	depth := 0
	for i := closing; i >= 0; i-- {
		switch s[i] {
		case ')':
			depth++
		case '(':
			depth--
			if depth == 0 {
				return i, closing
			}
		}
	}
	return -1, -1
}

// lastTopLevel returns the position of the last occurrence of c outside angle brackets and parentheses
func lastTopLevel(s string, c byte) int {
	depth := 0
	for i := len(s) - 1; i >= 0; i-- {
		switch s[i] {
		case '>', ')':
			depth++
		case '<', '(':
			if depth > 0 {
				depth--
			}
		case c:
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// splitQualified splits a qualified name on the :: separators outside template arguments
func splitQualified(s string) []string {
	var parts []string
	depth, start := 0, 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '<', '(':
			depth++
		case '>', ')':
			if depth > 0 {
				depth--
			}
		case ':':
			if depth == 0 && i+1 < len(s) && s[i+1] == ':' {
				parts = append(parts, s[start:i])
				start = i + 2
				i++
			}
		}
	}
	return append(parts, s[start:])
}

func stripTemplateArgs(s string) string {
	if strings.HasPrefix(s, "operator") {
		return s
	}
	if i := strings.IndexByte(s, '<'); i >= 0 {
		return s[:i]
	}
	return s
}
