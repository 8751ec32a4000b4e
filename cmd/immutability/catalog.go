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
	"io"

	"github.com/awslabs/ar-immutability/analysis/catalog"
	"github.com/awslabs/ar-immutability/analysis/config"
	"github.com/awslabs/ar-immutability/analysis/demangle"
	"github.com/awslabs/ar-immutability/analysis/store"
	"github.com/awslabs/ar-immutability/internal/formatutil"
	"github.com/spf13/cobra"
)

func newCatalogCmd(opts *options) *cobra.Command {
	var dump bool
	cmd := &cobra.Command{
		Use:   "catalog <module.yaml>",
		Short: "Record the classes of a module and their public const methods",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			logger := config.NewLogGroup(cfg)
			m, err := loadModule(args[0])
			if err != nil {
				return err
			}
			cat := catalog.Build(m, demangle.New(), logger)
			if dump {
				fmt.Fprint(cmd.OutOrStdout(), cat.String())
			}
			s, err := openStore(cfg, logger)
			if err != nil {
				return err
			}
			defer s.Close()
			entries, err := recordClasses(s, cfg.PackageID, cat)
			if err != nil {
				return err
			}
			printEntries(cmd.OutOrStdout(), cfg.PackageID, entries)
			return nil
		},
	}
	cmd.Flags().BoolVar(&dump, "dump", false, "print the catalog with the virtual tables")
	return cmd
}

// recordClasses writes the classes of the catalog in the store, under the package packageID
func recordClasses(s *store.Store, packageID int64, cat *catalog.Catalog) ([]store.Entry, error) {
	var entries []store.Entry
	for _, e := range cat.Entries() {
		rec, err := s.PutClass(packageID, e)
		if err != nil {
			return nil, err
		}
		entries = append(entries, rec)
	}
	return entries, nil
}

func printEntries(w io.Writer, packageID int64, entries []store.Entry) {
	methods := 0
	for _, e := range entries {
		fmt.Fprintf(w, "%s %s\n", formatutil.Faint(fmt.Sprintf("[%d]", e.ID)), formatutil.Bold(e.Name))
		for _, me := range e.Methods {
			fmt.Fprintf(w, "    %s %s\n", me.Name, formatutil.Faint(me.MangledName))
		}
		methods += len(e.Methods)
	}
	fmt.Fprintf(w, "package %d: %d classes, %d methods recorded\n", packageID, len(entries), methods)
}
