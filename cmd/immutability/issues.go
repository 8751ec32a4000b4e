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
	"strings"

	"github.com/awslabs/ar-immutability/analysis/config"
	"github.com/awslabs/ar-immutability/analysis/store"
	"github.com/awslabs/ar-immutability/internal/formatutil"
	"github.com/spf13/cobra"
)

func newIssuesCmd(opts *options) *cobra.Command {
	var prefix string
	cmd := &cobra.Command{
		Use:   "issues",
		Short: "List the issues recorded in the store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if cfg.StoreDir == "" {
				return fmt.Errorf("listing the issues requires a store directory")
			}
			s, err := store.Open(cfg.StoreDir, config.NewLogGroup(cfg))
			if err != nil {
				return err
			}
			defer s.Close()
			issues, err := s.Issues(prefix)
			if err != nil {
				return err
			}
			printIssues(cmd.OutOrStdout(), issues)
			return nil
		},
	}
	cmd.Flags().StringVar(&prefix, "symbol", "", "only list the issues of the methods whose symbol starts with this")
	return cmd
}

func printIssues(w io.Writer, issues []store.Issue) {
	for _, issue := range issues {
		kind, rest, _ := strings.Cut(issue.Description, " ")
		fmt.Fprintf(w, "%s %s%s\n", formatutil.Bold(issue.Symbol), formatutil.Red(kind), formatutil.Sanitize(
			prefixed(rest)))
		fmt.Fprintf(w, "    %s\n", formatutil.Faint(fmt.Sprintf("class %d, run %s, %s", issue.ClassID, issue.RunID,
			issue.Time.Format("2006-01-02 15:04:05"))))
	}
}

func prefixed(s string) string {
	if s == "" {
		return ""
	}
	return " " + s
}
