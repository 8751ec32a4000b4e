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

package memquery

import (
	"path/filepath"
	"testing"

	"github.com/awslabs/ar-immutability/analysis/config"
	"github.com/awslabs/ar-immutability/analysis/ir"
	"github.com/awslabs/ar-immutability/internal/analysistest"
	"github.com/stretchr/testify/assert"
)

func TestMemoryPatterns(t *testing.T) {
	m := analysistest.LoadModule(t, filepath.Join("testdata", "buffers.yaml"))
	cfg := config.NewDefault()
	q := New(m, cfg, config.NewLogGroup(cfg))

	named := map[string]ir.Instruction{}
	instrs := m.Function("_Z4makev").Entry().Instrs
	for _, i := range instrs {
		if v, ok := i.(ir.Value); ok && v.Name() != "" {
			named[v.Name()] = i
		}
	}
	cast := func(name string) *ir.Cast { return named[name].(*ir.Cast) }

	assert.True(t, q.IsAlloc(cast("buf")))
	assert.True(t, q.IsIgnoredInstruction(named["raw"]))
	// the second allocation is also used by a call, it is not a fresh object
	assert.False(t, q.IsAlloc(cast("sp")))
	assert.False(t, q.IsIgnoredInstruction(named["shared"]))

	assert.True(t, q.IsZero(cast("zp")))
	assert.False(t, q.IsIgnoredInstruction(cast("zp")))
	assert.True(t, q.IsIgnoredInstruction(instrs[4]))

	assert.True(t, q.IsAllOnes(cast("op")))
	assert.False(t, q.IsZero(cast("op")))
	assert.True(t, q.IsIgnoredInstruction(instrs[7]))

	assert.True(t, q.IsIgnoredInstruction(cast("cp")))
	assert.True(t, q.IsIgnoredInstruction(instrs[10]))

	assert.True(t, q.IsIgnoredInstruction(cast("lp")))
	assert.True(t, q.IsIgnoredInstruction(instrs[13]))

	assert.True(t, q.IsIgnoredInstruction(instrs[14]), "assert call")
	assert.False(t, q.IsIgnoredInstruction(instrs[17]), "call with a side effect")
}

func TestMemoryPatternsFollowConfig(t *testing.T) {
	m := analysistest.LoadModule(t, filepath.Join("testdata", "buffers.yaml"))
	cfg := config.NewDefault()
	cfg.AllocFunctions = config.NewSymbolList("malloc")
	cfg.AssertFunctions = config.NewSymbolList()
	q := New(m, cfg, config.NewLogGroup(cfg))

	instrs := m.Function("_Z4makev").Entry().Instrs
	assert.False(t, q.IsAlloc(instrs[1].(*ir.Cast)))
	assert.False(t, q.IsIgnoredInstruction(instrs[0]))
	assert.False(t, q.IsIgnoredInstruction(instrs[14]))
}
