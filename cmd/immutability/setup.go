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
	"fmt"

	"github.com/awslabs/ar-immutability/analysis/config"
	"github.com/awslabs/ar-immutability/analysis/ir"
	"github.com/awslabs/ar-immutability/analysis/ir/irfile"
	"github.com/awslabs/ar-immutability/analysis/store"
)

// loadConfig reads the config file if one is given and applies the flags that override it
func (o *options) loadConfig() (*config.Config, error) {
	cfg := config.NewDefault()
	if o.configPath != "" {
		config.SetGlobalConfig(o.configPath)
		c, err := config.LoadGlobal()
		if err != nil {
			return nil, fmt.Errorf("could not load config %q: %w", o.configPath, err)
		}
		cfg = c
	}
	if o.storeDir != "" {
		cfg.StoreDir = o.storeDir
	}
	if o.packageID >= 0 {
		cfg.PackageID = o.packageID
	}
	if o.verbose && cfg.LogLevel < int(config.DebugLevel) {
		cfg.LogLevel = int(config.DebugLevel)
	}
	return cfg, nil
}

// openStore opens the store of the config. A config without store directory gets a store in memory, which only
// lives as long as the command.
func openStore(cfg *config.Config, logger *config.LogGroup) (*store.Store, error) {
	if cfg.StoreDir == "" {
		logger.Warnf("no store directory, the results are not kept\n")
		return store.OpenInMemory(logger)
	}
	return store.Open(cfg.StoreDir, logger)
}

func loadModule(filename string) (*ir.Module, error) {
	m, err := irfile.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("could not load module %s: %w", filename, err)
	}
	return m, nil
}
