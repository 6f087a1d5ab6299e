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
	"errors"
	"fmt"
	"log"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/latch/emit"
	"github.com/AleutianAI/latch/orchestration"
)

// newDemoRegistry builds a registry, wiring the HTTP emitter when the
// --emit-url flag is set.
func newDemoRegistry() *orchestration.Registry {
	opts := []orchestration.RegistryOption{
		orchestration.WithLogger(slog.Default()),
	}
	if emitURL != "" {
		opts = append(opts, orchestration.WithEmitter(emit.NewHTTP(emitURL)))
	}
	return orchestration.NewRegistry(opts...)
}

// stage returns a task body that simulates a unit of pipeline work.
func stage(name string, d time.Duration) orchestration.Body {
	return func(ctx context.Context, args ...any) (any, error) {
		slog.Info("stage running", slog.String("stage", name))
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		return name + " done", nil
	}
}

func runScheduler(registry *orchestration.Registry) {
	scheduler, err := orchestration.NewScheduler(registry, slog.Default())
	if err != nil {
		log.Fatalf("Error creating scheduler: %v", err)
	}

	results, err := scheduler.Run(context.Background())
	if err != nil {
		slog.Error("run halted", slog.Any("error", err))
	}
	for task, result := range results {
		fmt.Printf("  %s => %v\n", task, result)
	}
	registry.DumpState()
}

// runDemoChain builds a three-stage ETL pipeline with explicit paths and
// executes it in dependency order.
func runDemoChain(cmd *cobra.Command, args []string) {
	registry := newDemoRegistry()

	extract, err := orchestration.NewTask(registry, stage("extract", 50*time.Millisecond),
		orchestration.WithName("extract"),
		orchestration.WithDescription("Pull rows from the source system"))
	if err != nil {
		log.Fatalf("Error creating task: %v", err)
	}
	transform, err := orchestration.NewTask(registry, stage("transform", 30*time.Millisecond),
		orchestration.WithName("transform"),
		orchestration.WithDescription("Normalize and enrich rows"))
	if err != nil {
		log.Fatalf("Error creating task: %v", err)
	}
	load, err := orchestration.NewTask(registry, stage("load", 20*time.Millisecond),
		orchestration.WithName("load"),
		orchestration.WithDescription("Write rows to the warehouse"))
	if err != nil {
		log.Fatalf("Error creating task: %v", err)
	}

	if _, err := extract.PathTo(transform); err != nil {
		log.Fatalf("Error declaring path: %v", err)
	}
	if _, err := transform.PathTo(load); err != nil {
		log.Fatalf("Error declaring path: %v", err)
	}

	runScheduler(registry)
}

// runDemoOutdegree shows a router limited to a single downstream target,
// with only named workers permitted. The second path is rejected.
func runDemoOutdegree(cmd *cobra.Command, args []string) {
	registry := newDemoRegistry()

	limit, err := orchestration.NewConstraints(
		orchestration.WithMaxOutDegree(1),
		orchestration.WithAllowedOutgoingTargets("worker_a", "worker_b"))
	if err != nil {
		log.Fatalf("Error building constraints: %v", err)
	}
	router, err := orchestration.NewTask(registry, stage("router", 10*time.Millisecond),
		orchestration.WithName("router"),
		orchestration.WithConstraints(limit))
	if err != nil {
		log.Fatalf("Error creating task: %v", err)
	}

	for _, name := range []string{"worker_a", "worker_b"} {
		worker, err := orchestration.NewTask(registry, stage(name, 10*time.Millisecond),
			orchestration.WithName(name))
		if err != nil {
			log.Fatalf("Error creating task: %v", err)
		}
		if _, err := router.PathTo(worker); err != nil {
			var violation *orchestration.ViolationError
			if errors.As(err, &violation) {
				slog.Warn("edge rejected", slog.String("worker", name), slog.Any("error", err))
				continue
			}
			log.Fatalf("Error declaring path: %v", err)
		}
	}

	runScheduler(registry)
}

// runDemoIncoming shows a guarded sink that only accepts edges from an
// authorized source.
func runDemoIncoming(cmd *cobra.Command, args []string) {
	registry := newDemoRegistry()

	guard, err := orchestration.NewConstraints(
		orchestration.WithAllowedIncomingSources("authorized"))
	if err != nil {
		log.Fatalf("Error building constraints: %v", err)
	}
	sink, err := orchestration.NewTask(registry, stage("sink", 10*time.Millisecond),
		orchestration.WithName("sink"),
		orchestration.WithConstraints(guard))
	if err != nil {
		log.Fatalf("Error creating task: %v", err)
	}
	authorized, err := orchestration.NewTask(registry, stage("authorized", 10*time.Millisecond),
		orchestration.WithName("authorized"))
	if err != nil {
		log.Fatalf("Error creating task: %v", err)
	}
	rogue, err := orchestration.NewTask(registry, stage("rogue", 10*time.Millisecond),
		orchestration.WithName("rogue"))
	if err != nil {
		log.Fatalf("Error creating task: %v", err)
	}

	if _, err := authorized.PathTo(sink); err != nil {
		log.Fatalf("Error declaring path: %v", err)
	}
	if _, err := rogue.PathTo(sink); err != nil {
		slog.Warn("edge rejected", slog.Any("error", err))
	}

	runScheduler(registry)
}

// runDemoMapreduce fans a splitter out to six mappers that all feed an
// aggregator bounded at five inputs. The sixth join edge is rejected.
func runDemoMapreduce(cmd *cobra.Command, args []string) {
	registry := newDemoRegistry()

	splitter, err := orchestration.NewTask(registry, stage("splitter", 20*time.Millisecond),
		orchestration.WithName("splitter"))
	if err != nil {
		log.Fatalf("Error creating task: %v", err)
	}

	bound, err := orchestration.NewConstraints(orchestration.WithMaxInDegree(5))
	if err != nil {
		log.Fatalf("Error building constraints: %v", err)
	}
	aggregator, err := orchestration.NewTask(registry, stage("aggregator", 20*time.Millisecond),
		orchestration.WithName("aggregator"),
		orchestration.WithConstraints(bound))
	if err != nil {
		log.Fatalf("Error creating task: %v", err)
	}

	for i := 0; i < 6; i++ {
		name := fmt.Sprintf("mapper_%d", i)
		mapper, err := orchestration.NewTask(registry, stage(name, 15*time.Millisecond),
			orchestration.WithName(name))
		if err != nil {
			log.Fatalf("Error creating task: %v", err)
		}
		if _, err := splitter.PathTo(mapper); err != nil {
			log.Fatalf("Error declaring path: %v", err)
		}
		if _, err := mapper.PathTo(aggregator); err != nil {
			var violation *orchestration.ViolationError
			if errors.As(err, &violation) {
				slog.Warn("join rejected", slog.String("mapper", name), slog.Any("error", err))
				continue
			}
			log.Fatalf("Error declaring path: %v", err)
		}
	}

	runScheduler(registry)
}
