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

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFullConfig(t *testing.T) {
	cfg, err := Load(filepath.Join("testdata", "full-config.yaml"))
	require.NoError(t, err)

	assert.Equal(t, int(DebugLevel), cfg.LogLevel)
	assert.Equal(t, 8, cfg.Workers)
	assert.Equal(t, 50*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, 10, cfg.MaxBlockVisits)
	assert.Equal(t, int64(42), cfg.PackageID)
	assert.False(t, cfg.IgnoredEdgeHeuristic)
	assert.Equal(t, filepath.Join("testdata", "immutability-db"), cfg.StoreDir)
	assert.True(t, cfg.Verbose())
	assert.True(t, cfg.IsSkippedClass("class.Skipped"))
	assert.False(t, cfg.IsSkippedClass("class.Other"))

	// The fatal functions list replaces the default one
	assert.True(t, cfg.FatalFunctions.Match("_Z5FatalPKcz"))
	assert.True(t, cfg.FatalFunctions.Match("_Z5abortv"))
	assert.False(t, cfg.FatalFunctions.Match("swprintf"))
	// Lists that are not set keep their default values
	assert.True(t, cfg.AllocFunctions.Match("_Znwm"))
}

func TestLoadPartialConfigSetsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join("testdata", "partial-config.yaml"))
	require.NoError(t, err)

	assert.Equal(t, int(InfoLevel), cfg.LogLevel)
	assert.Equal(t, DefaultWorkers, cfg.Workers)
	assert.Equal(t, DefaultPollInterval, cfg.PollInterval)
	assert.Equal(t, DefaultMaxGraphNodes, cfg.MaxGraphNodes)
	assert.Equal(t, DefaultMaxStatesPerMethod, cfg.MaxStatesPerMethod)
	assert.True(t, cfg.IgnoredEdgeHeuristic)
	assert.Equal(t, "", cfg.StoreDir)
	assert.Equal(t, len(DefaultFatalFunctions), cfg.FatalFunctions.Len())
	assert.Equal(t, []string{DefaultSkipMethodSubstring}, cfg.SkipMethodSubstrings)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join("testdata", "does-not-exist.yaml"))
	assert.ErrorContains(t, err, "could not read config file")

	_, err = Load(filepath.Join("testdata", "bad-config.yaml"))
	assert.ErrorContains(t, err, "could not unmarshal config file")
}

func TestSymbolListMatch(t *testing.T) {
	l := NewSymbolList("malloc", "^llvm\\.memset\\.", "bad(regex")
	tests := []struct {
		symbol string
		want   bool
	}{
		{"malloc", true},
		{"xmalloc", false},
		{"llvm.memset.p0i8.i64", true},
		{"my.llvm.memset.", false},
		{"bad(regex", true},
		{"bad", false},
	}
	for _, test := range tests {
		assert.Equal(t, test.want, l.Match(test.symbol), "symbol %q", test.symbol)
	}
}

func TestLogGroupLevels(t *testing.T) {
	cfg := NewDefault()
	cfg.LogLevel = int(WarnLevel)
	l := NewLogGroup(cfg)
	var buf bytes.Buffer
	l.SetAllOutput(&buf)
	l.SetAllFlags(0)

	l.Infof("hidden")
	l.Warnf("visible %d", 1)
	sub := l.Sub("class.A")
	sub.Errorf("failed")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "[WARN] visible 1")
	assert.Contains(t, out, "[ERROR] class.A failed")
	assert.Equal(t, 2, strings.Count(out, "\n"))

	l.SetLevel(TraceLevel)
	assert.True(t, l.LogsTrace())
}
