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

// Package formatutil colours the output of the command-line tools.
package formatutil

import (
	"fmt"
	"os"
	"sync/atomic"

	"golang.org/x/term"
)

var enabled atomic.Bool

func init() {
	_, noColor := os.LookupEnv("NO_COLOR")
	enabled.Store(!noColor && term.IsTerminal(int(os.Stdout.Fd())))
}

// SetEnabled turns the colours on or off. Colours are on by default when the standard output is a terminal and
// NO_COLOR is not set.
func SetEnabled(on bool) { enabled.Store(on) }

var (
	Bold   = style("1")
	Faint  = style("2")
	Red    = style("1;31")
	Green  = style("1;32")
	Yellow = style("1;33")
)

// style returns a function that prints its arguments with the SGR attributes code
func style(code string) func(...any) string {
	return func(args ...any) string {
		s := fmt.Sprint(args...)
		if !enabled.Load() {
			return s
		}
		return "\033[" + code + "m" + s + "\033[0m"
	}
}

// Sanitize escapes the control characters of s, so that symbols read from a module cannot drive the terminal
func Sanitize(s string) string {
	r := fmt.Sprintf("%q", s)
	return r[1 : len(r)-1]
}
