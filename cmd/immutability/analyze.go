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
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/awslabs/ar-immutability/analysis/catalog"
	"github.com/awslabs/ar-immutability/analysis/config"
	"github.com/awslabs/ar-immutability/analysis/demangle"
	"github.com/awslabs/ar-immutability/analysis/immutability"
	"github.com/awslabs/ar-immutability/internal/formatutil"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

func newAnalyzeCmd(opts *options) *cobra.Command {
	var record bool
	cmd := &cobra.Command{
		Use:   "analyze <module.yaml>",
		Short: "Analyze the classes of a package recorded in the store",
		Long: `Analyzes the classes of the package recorded in the store by the catalog command. With --catalog, or
when the store is kept in memory, the classes of the module are recorded first.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return runAnalyze(ctx, cmd.OutOrStdout(), cfg, args[0], record || cfg.StoreDir == "")
		},
	}
	cmd.Flags().BoolVar(&record, "catalog", false, "record the classes of the module before the analysis")
	return cmd
}

func runAnalyze(ctx context.Context, w io.Writer, cfg *config.Config, filename string, record bool) error {
	logger := config.NewLogGroup(cfg)
	m, err := loadModule(filename)
	if err != nil {
		return err
	}
	s, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer s.Close()

	cat := catalog.Build(m, demangle.New(), logger)
	if record {
		if _, err := recordClasses(s, cfg.PackageID, cat); err != nil {
			return err
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	metrics := immutability.NewMetrics(reg)
	if cfg.MetricsAddr != "" {
		srv := serveMetrics(cfg.MetricsAddr, reg, logger)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	start := time.Now()
	sum, err := immutability.Analyze(ctx, immutability.Inputs{
		Module:  m,
		Config:  cfg,
		Logger:  logger,
		Store:   s,
		Metrics: metrics,
		Catalog: cat,
	})
	if err != nil {
		return err
	}
	printSummary(w, sum, time.Since(start))
	if sum.Issues > 0 {
		issues, err := s.Issues("")
		if err != nil {
			return err
		}
		printIssues(w, issues)
	}
	return nil
}

// serveMetrics serves the metrics of reg on addr until the returned server is shut down
func serveMetrics(addr string, reg *prometheus.Registry, logger *config.LogGroup) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		logger.Infof("serving metrics on %s/metrics\n", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("metrics server: %v\n", err)
		}
	}()
	return srv
}

func printSummary(w io.Writer, sum immutability.Summary, elapsed time.Duration) {
	fmt.Fprintf(w, "%s %d classes, %d methods in %.2fs\n", formatutil.Bold("analyzed"), sum.Classes, sum.Methods,
		elapsed.Seconds())
	fmt.Fprintf(w, "  %d method runs, %d states discarded\n", sum.Runs, sum.Discarded)
	if sum.Skipped > 0 {
		fmt.Fprintf(w, "  %s\n", formatutil.Yellow(fmt.Sprintf("%d classes skipped", sum.Skipped)))
	}
	if sum.Failed > 0 {
		fmt.Fprintf(w, "  %s\n", formatutil.Red(fmt.Sprintf("%d classes failed", sum.Failed)))
	}
	if sum.Issues == 0 {
		fmt.Fprintf(w, "  %s\n", formatutil.Green("no issue"))
		return
	}
	fmt.Fprintf(w, "  %s\n", formatutil.Red(fmt.Sprintf("%d issues", sum.Issues)))
}
