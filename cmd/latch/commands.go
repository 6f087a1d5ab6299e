// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"log"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/latch/telemetry"
)

// --- Global Command Variables ---
var (
	emitURL        string
	traceExporter  string
	metricExporter string
	configPath     string

	telemetryShutdown func(context.Context) error

	rootCmd = &cobra.Command{
		Use:   "latch",
		Short: "A cli for the latch task orchestration engine",
		Long: `Latch builds a dependency graph from declared paths and observed
				task calls, validates per-task constraints as edges are created,
				and executes tasks in dependency order.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cfg := telemetry.DefaultConfig()
			if traceExporter != "" {
				cfg.TraceExporter = traceExporter
			}
			if metricExporter != "" {
				cfg.MetricExporter = metricExporter
			}
			shutdown, err := telemetry.Init(cmd.Context(), cfg)
			if err != nil {
				log.Fatalf("Error initializing telemetry: %v", err)
			}
			telemetryShutdown = shutdown
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if telemetryShutdown == nil {
				return
			}
			if err := telemetryShutdown(context.Background()); err != nil {
				slog.Warn("telemetry shutdown", slog.Any("error", err))
			}
		},
	}

	// --- Demos ---
	demoCmd = &cobra.Command{
		Use:   "demo",
		Short: "Run example pipelines against the orchestration engine",
	}
	demoChainCmd = &cobra.Command{
		Use:   "chain",
		Short: "A three-stage ETL pipeline with explicit dependency paths",
		Run:   runDemoChain, // Defined in cmd_demo.go
	}
	demoOutdegreeCmd = &cobra.Command{
		Use:   "outdegree",
		Short: "A dispatcher that exceeds its max out-degree constraint",
		Run:   runDemoOutdegree, // Defined in cmd_demo.go
	}
	demoIncomingCmd = &cobra.Command{
		Use:   "incoming",
		Short: "A guarded sink that rejects an unauthorized caller",
		Run:   runDemoIncoming, // Defined in cmd_demo.go
	}
	demoMapreduceCmd = &cobra.Command{
		Use:   "mapreduce",
		Short: "A fan-out/fan-in pipeline with a bounded aggregator",
		Run:   runDemoMapreduce, // Defined in cmd_demo.go
	}

	// --- Visualizer ---
	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Start the execution-plan visualizer server",
		Run:   runServe, // Defined in cmd_serve.go
	}
)

// init runs when the Go program starts
func init() {
	rootCmd.PersistentFlags().StringVar(&traceExporter, "trace-exporter", "",
		"Trace exporter: stdout or none (default from OTEL_TRACES_EXPORTER)")
	rootCmd.PersistentFlags().StringVar(&metricExporter, "metric-exporter", "",
		"Metric exporter: stdout or none (default from OTEL_METRICS_EXPORTER)")

	demoCmd.PersistentFlags().StringVar(&emitURL, "emit-url", "",
		"Visualizer display endpoint; empty disables snapshot emission")
	demoCmd.AddCommand(demoChainCmd)
	demoCmd.AddCommand(demoOutdegreeCmd)
	demoCmd.AddCommand(demoIncomingCmd)
	demoCmd.AddCommand(demoMapreduceCmd)
	rootCmd.AddCommand(demoCmd)

	serveCmd.Flags().StringVar(&configPath, "config", "",
		"Path to a YAML config file for the visualizer")
	rootCmd.AddCommand(serveCmd)
}
