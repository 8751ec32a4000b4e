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

// Command immutability checks that the public const methods of the C++ classes of an IR module do not modify the
// receiver state observed by other methods, and do not let callers reach it.
//
// The classes of a module are first recorded in the store with the catalog command, then analyzed with the analyze
// command. The issues found are kept in the store and listed with the issues command.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

// options are the flags shared by all the commands
type options struct {
	configPath string
	storeDir   string
	packageID  int64
	verbose    bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:   "immutability",
		Short: "Immutability analysis of the const methods of C++ classes",
		Long: `Checks the public const methods of the classes of an IR module. A const method must not modify a part
of the object that another method has returned or exposed, and must not let its caller reach the object
state through its arguments or its returned pointer.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file path")
	root.PersistentFlags().StringVar(&opts.storeDir, "store", "", "store directory, overrides store-dir")
	root.PersistentFlags().Int64Var(&opts.packageID, "package-id", -1, "package identifier, overrides package-id")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "verbose logging")

	root.AddCommand(newCatalogCmd(opts))
	root.AddCommand(newAnalyzeCmd(opts))
	root.AddCommand(newIssuesCmd(opts))
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}
}
