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

// Package analysistest loads the IR modules and the expected results of the analysis tests.
package analysistest

import (
	"bufio"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/awslabs/ar-immutability/analysis/config"
	"github.com/awslabs/ar-immutability/analysis/ir"
	"github.com/awslabs/ar-immutability/analysis/ir/irfile"
)

// LoadModule loads the IR module in the YAML file filename
func LoadModule(t *testing.T, filename string) *ir.Module {
	t.Helper()
	m, err := irfile.ReadFile(filename)
	if err != nil {
		t.Fatalf("error loading module %s: %v", filename, err)
	}
	return m
}

// LoadTest loads the module in the file name.yaml of directory dir, with the configuration in dir/config.yaml if
// the file exists, or the default configuration otherwise.
func LoadTest(t *testing.T, dir string, name string) (*ir.Module, *config.Config) {
	t.Helper()
	m := LoadModule(t, filepath.Join(dir, name+".yaml"))
	configFile := filepath.Join(dir, "config.yaml")
	if _, err := os.Stat(configFile); err != nil {
		return m, config.NewDefault()
	}
	config.SetGlobalConfig(configFile)
	cfg, err := config.LoadGlobal()
	if err != nil {
		t.Fatalf("error loading config %s: %v", configFile, err)
	}
	return m, cfg
}

// IssueRegex matches annotations of the form "# @Issue(symbol: description)"
var IssueRegex = regexp.MustCompile(`#.*@Issue\(\s*([^\s:]+)\s*:\s*([^)]*?)\s*\)`)

// GetExpectedIssues reads the @Issue annotations in the comments of the module file filename, and returns the
// expected issue descriptions for each method symbol.
func GetExpectedIssues(t *testing.T, filename string) map[string]map[string]bool {
	t.Helper()
	f, err := os.Open(filename)
	if err != nil {
		t.Fatalf("error opening %s: %v", filename, err)
	}
	defer f.Close()
	expected := map[string]map[string]bool{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.Contains(line, "@Issue") {
			continue
		}
		for _, a := range IssueRegex.FindAllStringSubmatch(line, -1) {
			if expected[a[1]] == nil {
				expected[a[1]] = map[string]bool{}
			}
			expected[a[1]][a[2]] = true
		}
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("error reading %s: %v", filename, err)
	}
	return expected
}
