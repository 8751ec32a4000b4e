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
	"strings"

	"github.com/awslabs/ar-immutability/analysis/ir"
	"golang.org/x/exp/slices"
)

// handleCallSite resolves the callee of a call that is not part of a virtual call sequence
func (fa *functionAnalysis) handleCallSite(call ir.CallInstruction) {
	switch c := call.Common().Callee.(type) {
	case *ir.Function:
		fa.handleCall(call, c)
	case *ir.ConstCast:
		// a constant cast of a function is a call through a different signature
		if f := ir.CalledFunction(c); f != nil && strings.Contains(f.Name(), "default_delete") {
			fa.state.HandleDefaultDeleteCall(call)
		} else {
			fa.handleUnknownCall(call, "call through a constant cast")
		}
	default:
		if f := fa.state.KnownCallee(c); f != nil {
			fa.handleCall(call, f)
		} else {
			fa.handleUnknownCall(call, "indirect call")
		}
	}
}

// handleVirtualCall resolves the call of a virtual call sequence with the dynamic type of the receiver
func (fa *functionAnalysis) handleVirtualCall(call ir.CallInstruction) {
	args := call.Common().Args
	if len(args) == 0 {
		fatalf("virtual call %s in %s has no receiver", call, fa.function.Name())
	}
	obj := fa.state.PointerElement(fa.state.Mapping(args[0]))
	if sub := obj.SubStruct(); sub != nil {
		obj = sub
	}
	t, ok := obj.Type().(*ir.StructType)
	if !ok {
		fatalf("receiver of virtual call %s in %s has type %s", call, fa.function.Name(), obj.Type())
	}
	if f := fa.class.catalog.VirtualTableEntry(call, t); f != nil {
		fa.handleCall(call, f)
		return
	}
	fa.handleUnknownCall(call, "virtual call without entry for "+t.Name)
}

func (fa *functionAnalysis) handleUnknownCall(call ir.CallInstruction, reason string) {
	fa.class.metrics.unknownCall()
	fa.logger.Debugf("%s: %s handled as unknown: %s\n", fa.function.Name(), call, reason)
	fa.state.HandleUnknownCall(call)
}

func (fa *functionAnalysis) isRecursive(f *ir.Function) bool {
	return f == fa.function || slices.Contains(fa.callStack, f)
}

// handleCall analyzes the body of the callee f from the current state, with the formal parameters bound to the
// arguments of the call, and continues from the resulting state.
//
//gocyclo:ignore
func (fa *functionAnalysis) handleCall(call ir.CallInstruction, f *ir.Function) {
	opts := fa.class.config
	switch {
	case fa.isRecursive(f):
		fa.handleUnknownCall(call, "recursive call to "+f.Name())
		return
	case opts.FatalFunctions.Match(f.Name()):
		return
	case opts.UnknownFunctions.Match(f.Name()):
		fa.handleUnknownCall(call, f.Name()+" is configured as unknown")
		return
	case f.Empty():
		fa.handleUnknownCall(call, f.Name()+" has no body")
		return
	case f.Entry().EndsInUnreachable():
		return
	}
	args := call.Common().Args
	if len(args) != len(f.Params) {
		if !f.IsVariadic() {
			fatalf("call to %s with %d arguments in %s, expected %d", f.Name(), len(args), fa.function.Name(),
				len(f.Params))
		}
		fa.handleUnknownCall(call, "variadic call to "+f.Name())
		return
	}
	for k, p := range f.Params {
		fa.state.BindArgument(p, args[k])
	}
	callStack := append(slices.Clip(fa.callStack), fa.function)
	callee := newFunctionAnalysis(fa.class, f, fa.state, fa.first, nil, callStack)
	res := callee.getResult()
	if res.IsBottom() {
		fa.state.MarkBottom()
		fa.state.EraseRelevant(f)
		return
	}
	if res.HasReturn() {
		ret := res.Return()
		res.RemoveReturn()
		res.BindResult(call, ret)
	}
	res.SetFirstMethod(fa.first)
	res.EraseRelevant(f)
	fa.state = res
}
