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

package config

import "time"

const (
	// DefaultWorkers is the default number of concurrent method iterations per class
	DefaultWorkers = 16
	// DefaultPollInterval is the default sleep of the class driver when no worker is available
	DefaultPollInterval = 100 * time.Millisecond
	// DefaultMaxBlockVisits is the default number of times a loop block is processed before widening
	DefaultMaxBlockVisits = 64
	// DefaultMaxGraphNodes is the default bound on the size of an intermediate state
	DefaultMaxGraphNodes = 10000
	// DefaultMaxStatesPerMethod is the default number of completed states of a method before widening
	DefaultMaxStatesPerMethod = 32
	// DefaultSkipMethodSubstring marks the debug printing methods, which are not analyzed
	DefaultSkipMethodSubstring = "DebugString"
)

var (
	// DefaultFatalFunctions are the functions that terminate the program or only print diagnostics
	DefaultFatalFunctions = []string{
		"_Z5FatalPKcz",
		"_Z7WarningPKcz",
		"_Z5ErrorPKcz",
		"_Z5debugiPKcz",
		"swprintf",
		"debug_thread_error",
		"_Z24exit_without_destructorsi",
		"_ZSt19__throw_logic_errorPKc",
	}

	// DefaultUnknownFunctions are the std::set copy constructors, whose bodies are too large to be inlined
	DefaultUnknownFunctions = []string{
		"_ZNSt3setIiSt4lessIiESaIiEEC2ERKS3_",
		"_ZNSt3setISsSt4lessISsESaISsEEC2ERKS3_",
		"_ZNSt3setIjSt4lessIjESaIjEEC2ERKS3_",
		"_ZNSt3setImSt4lessImESaImEEC2ERKS3_",
	}

	// DefaultAllocFunctions are the operator new variants and malloc
	DefaultAllocFunctions = []string{"_Znwm", "_Znam", "malloc"}

	// DefaultAssertFunctions are the assertion failure handlers
	DefaultAssertFunctions = []string{"_Z8__assertPKcS0_mi"}

	// DefaultMemsetFunctions are the memset intrinsics
	DefaultMemsetFunctions = []string{"^llvm\\.memset\\."}

	// DefaultMemcpyFunctions are the memcpy and memmove intrinsics
	DefaultMemcpyFunctions = []string{"^llvm\\.memcpy\\.", "^llvm\\.memmove\\."}

	// DefaultLifetimeFunctions are the lifetime markers
	DefaultLifetimeFunctions = []string{"^llvm\\.lifetime\\.(start|end)"}

	// DefaultDebugFunctions are the debug info intrinsics
	DefaultDebugFunctions = []string{"^llvm\\.dbg\\."}
)
