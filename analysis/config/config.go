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
	"fmt"
	"os"
	"path"
	"time"

	"gopkg.in/yaml.v3"
)

var (
	// The global config file
	configFile string
)

// SetGlobalConfig sets the global config filename
func SetGlobalConfig(filename string) {
	configFile = filename
}

// LoadGlobal loads the config file that has been set by SetGlobalConfig
func LoadGlobal() (*Config, error) {
	return Load(configFile)
}

// Config contains the options of the immutability analysis and the symbol lists that drive the call resolution
// and the memory pattern recognition.
// If some field is not defined in the config file, it will be set to its default value by Load.
// private fields are not populated from a yaml file, but computed after initialization
type Config struct {
	Options `yaml:"options"`

	sourceFile string

	// FatalFunctions are functions that abort the program; calls to them are ignored by the analysis
	FatalFunctions SymbolList `yaml:"fatal-functions"`

	// UnknownFunctions are functions whose calls are always handled as calls to an unknown function, even if their
	// body is available
	UnknownFunctions SymbolList `yaml:"unknown-functions"`

	// AllocFunctions are the heap allocation functions. A bitcast of their result is a fresh allocation.
	AllocFunctions SymbolList `yaml:"alloc-functions"`

	// AssertFunctions are the assertion failure handlers; calls to them are ignored
	AssertFunctions SymbolList `yaml:"assert-functions"`

	// MemsetFunctions are the memset intrinsics
	MemsetFunctions SymbolList `yaml:"memset-functions"`

	// MemcpyFunctions are the memcpy and memmove intrinsics
	MemcpyFunctions SymbolList `yaml:"memcpy-functions"`

	// LifetimeFunctions are the lifetime marker intrinsics
	LifetimeFunctions SymbolList `yaml:"lifetime-functions"`

	// DebugFunctions are debug intrinsics; calls to them are not call sites
	DebugFunctions SymbolList `yaml:"debug-functions"`

	// SkipMethodSubstrings lists substrings of method names that are never analyzed
	SkipMethodSubstrings []string `yaml:"skip-method-substrings"`

	// SkipClasses lists the names of classes that are never analyzed
	SkipClasses []string `yaml:"skip-classes"`
}

// Options holds the global options of the analysis
type Options struct {
	// Loglevel controls the verbosity of the tool
	LogLevel int `yaml:"log-level"`

	// Workers is the number of method iterations that can run concurrently for one class
	Workers int `yaml:"workers"`

	// PollInterval is the time the class driver sleeps when all workers are busy
	PollInterval time.Duration `yaml:"poll-interval"`

	// MaxBlockVisits bounds how many times a block inside a loop is processed before its outgoing states are
	// widened. Past twice that number, the outgoing states become bottom.
	MaxBlockVisits int `yaml:"max-block-visits"`

	// MaxGraphNodes bounds the number of nodes in an intermediate state. Larger states are treated as bottom.
	MaxGraphNodes int `yaml:"max-graph-nodes"`

	// MaxStatesPerMethod is the number of completed initial states of a method after which new initial states
	// are widened
	MaxStatesPerMethod int `yaml:"max-states-per-method"`

	// IgnoredEdgeHeuristic enables running methods with a single exit block that has two predecessors once per
	// predecessor edge
	IgnoredEdgeHeuristic bool `yaml:"ignored-edge-heuristic"`

	// StoreDir is the directory of the issue and class store. If empty, the store is kept in memory.
	StoreDir string `yaml:"store-dir"`

	// PackageID identifies the package whose classes are analyzed
	PackageID int64 `yaml:"package-id"`

	// MetricsAddr is the address on which the metrics are served. Metrics are not served if empty.
	MetricsAddr string `yaml:"metrics-addr"`

	// Suppress warnings
	SilenceWarn bool `yaml:"silence-warn"`
}

// NewDefault returns a default config.
func NewDefault() *Config {
	return &Config{
		sourceFile:           "",
		FatalFunctions:       NewSymbolList(DefaultFatalFunctions...),
		UnknownFunctions:     NewSymbolList(DefaultUnknownFunctions...),
		AllocFunctions:       NewSymbolList(DefaultAllocFunctions...),
		AssertFunctions:      NewSymbolList(DefaultAssertFunctions...),
		MemsetFunctions:      NewSymbolList(DefaultMemsetFunctions...),
		MemcpyFunctions:      NewSymbolList(DefaultMemcpyFunctions...),
		LifetimeFunctions:    NewSymbolList(DefaultLifetimeFunctions...),
		DebugFunctions:       NewSymbolList(DefaultDebugFunctions...),
		SkipMethodSubstrings: []string{DefaultSkipMethodSubstring},
		SkipClasses:          []string{},
		Options: Options{
			LogLevel:             int(InfoLevel),
			Workers:              DefaultWorkers,
			PollInterval:         DefaultPollInterval,
			MaxBlockVisits:       DefaultMaxBlockVisits,
			MaxGraphNodes:        DefaultMaxGraphNodes,
			MaxStatesPerMethod:   DefaultMaxStatesPerMethod,
			IgnoredEdgeHeuristic: true,
			StoreDir:             "",
			PackageID:            0,
			MetricsAddr:          "",
			SilenceWarn:          false,
		},
	}
}

// Load reads a configuration from a file
//
//gocyclo:ignore
func Load(filename string) (*Config, error) {
	cfg := NewDefault()
	b, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("could not read config file: %w", err)
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("could not unmarshal config file: %w", err)
	}

	cfg.sourceFile = filename

	// If logLevel has not been specified (i.e. it is 0) set the default to Info
	if cfg.LogLevel == 0 {
		cfg.LogLevel = int(InfoLevel)
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.MaxBlockVisits <= 0 {
		cfg.MaxBlockVisits = DefaultMaxBlockVisits
	}
	if cfg.MaxGraphNodes <= 0 {
		cfg.MaxGraphNodes = DefaultMaxGraphNodes
	}
	if cfg.MaxStatesPerMethod <= 0 {
		cfg.MaxStatesPerMethod = DefaultMaxStatesPerMethod
	}
	if cfg.StoreDir != "" && !path.IsAbs(cfg.StoreDir) {
		cfg.StoreDir = cfg.RelPath(cfg.StoreDir)
	}

	return cfg, nil
}

// RelPath returns filename path relative to the config source file
func (c Config) RelPath(filename string) string {
	return path.Join(path.Dir(c.sourceFile), filename)
}

// Verbose returns true if the configuration verbosity setting is larger than Info (i.e. Debug or Trace)
func (c Config) Verbose() bool {
	return c.LogLevel >= int(DebugLevel)
}

// IsSkippedClass returns true if the class named name should not be analyzed
func (c Config) IsSkippedClass(name string) bool {
	for _, s := range c.SkipClasses {
		if s == name {
			return true
		}
	}
	return false
}
