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

package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/awslabs/ar-immutability/internal/formatutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testdata = filepath.Join("..", "..", "analysis", "immutability", "testdata")

func execute(t *testing.T, args ...string) string {
	t.Helper()
	formatutil.SetEnabled(false)
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs(args)
	require.NoError(t, root.Execute())
	return out.String()
}

func TestCatalogAnalyzeIssues(t *testing.T) {
	dir := t.TempDir()
	module := filepath.Join(testdata, "mutations.yaml")
	cfg := filepath.Join(testdata, "config.yaml")

	out := execute(t, "catalog", "--config", cfg, "--store", dir, "--package-id", "4", module)
	assert.Contains(t, out, "class.Cache")
	assert.Contains(t, out, "_ZNK5Cache5resetEv")
	assert.Contains(t, out, "package 4: 2 classes, 5 methods recorded")

	out = execute(t, "analyze", "--config", cfg, "--store", dir, "--package-id", "4", module)
	assert.Contains(t, out, "analyzed 2 classes, 5 methods")
	assert.Contains(t, out, "3 issues")
	assert.Contains(t, out, "MUTATEREAD @ _ZNK5Cache5resetEv")
	assert.Contains(t, out, "ESCAPERET @ _ZNK1C3getEv")

	out = execute(t, "issues", "--store", dir, "--symbol", "_ZNK5Cache5reset")
	assert.Contains(t, out, "_ZNK5Cache5resetEv MUTATEREAD @ _ZNK5Cache5resetEv")

	out = execute(t, "issues", "--store", dir, "--symbol", "_ZNK5Cache3get")
	assert.Empty(t, out)
}

func TestAnalyzeInMemory(t *testing.T) {
	out := execute(t, "analyze", "--config", filepath.Join(testdata, "config.yaml"),
		filepath.Join(testdata, "loops.yaml"))
	assert.Contains(t, out, "analyzed 1 classes, 3 methods")
	assert.Contains(t, out, "no issue")
}

func TestIssuesRequireStore(t *testing.T) {
	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"issues"})
	assert.Error(t, root.Execute())
}

func TestMissingModule(t *testing.T) {
	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"analyze", filepath.Join(testdata, "missing.yaml")})
	assert.Error(t, root.Execute())
}
