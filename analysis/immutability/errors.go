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

package immutability

import (
	"fmt"

	"github.com/awslabs/ar-immutability/analysis/immutability/shape"
)

// InvariantError is the error of a class whose analysis was aborted because an assumption about the IR or the class
// layouts does not hold
type InvariantError = shape.InvariantError

// fatalf aborts the analysis of the current class
func fatalf(format string, args ...any) {
	shape.Fatalf(format, args...)
}

// recoverInvariant stores in err the invariant violation raised by the deferring function. Other panics are
// propagated.
func recoverInvariant(err *error) {
	x := recover()
	if x == nil {
		return
	}
	if ie, ok := x.(*InvariantError); ok {
		*err = ie
		return
	}
	panic(x)
}

// ClassError is the error returned when the analysis of a class fails
type ClassError struct {
	Class string
	Err   error
}

func (e *ClassError) Error() string {
	return fmt.Sprintf("analysis of %s failed: %v", e.Class, e.Err)
}

func (e *ClassError) Unwrap() error { return e.Err }
