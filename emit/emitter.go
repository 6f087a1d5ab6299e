// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package emit ships execution-plan snapshots to the external visualization
// collaborator. The transport is an implementation detail of this package;
// the engine only sees the orchestration.Emitter contract.
package emit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/AleutianAI/latch/dag"
)

// DefaultURL is the local visualizer's display endpoint.
const DefaultURL = "http://localhost:8001/api/display"

// DefaultTimeout bounds a single emission attempt.
const DefaultTimeout = 5 * time.Second

// HTTP posts snapshots as JSON to a visualizer endpoint.
//
// Thread Safety:
//
//	Safe for concurrent use.
type HTTP struct {
	url    string
	client *http.Client
	logger *slog.Logger
}

// HTTPOption configures an HTTP emitter.
type HTTPOption func(*HTTP)

// WithClient replaces the underlying HTTP client.
func WithClient(client *http.Client) HTTPOption {
	return func(e *HTTP) { e.client = client }
}

// WithLogger sets the emitter's logger. Nil means slog.Default().
func WithLogger(logger *slog.Logger) HTTPOption {
	return func(e *HTTP) { e.logger = logger }
}

// NewHTTP creates an emitter targeting the given URL.
//
// Inputs:
//
//	url - The display endpoint. Empty means DefaultURL.
func NewHTTP(url string, opts ...HTTPOption) *HTTP {
	if url == "" {
		url = DefaultURL
	}
	e := &HTTP{
		url:    url,
		client: &http.Client{Timeout: DefaultTimeout},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.client == nil {
		e.client = &http.Client{Timeout: DefaultTimeout}
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	return e
}

// Emit posts the snapshot to the visualizer.
//
// Outputs:
//
//	error - Non-nil on transport failure or a non-2xx response. The
//	        registry logs and swallows it; emission never affects the run.
func (e *HTTP) Emit(ctx context.Context, snapshot *dag.Snapshot) error {
	if snapshot == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("post snapshot: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("visualizer rejected snapshot: status %d: %s", resp.StatusCode, body)
	}

	e.logger.Debug("emitted snapshot",
		slog.String("url", e.url),
		slog.Int("nodes", snapshot.Metadata.TotalNodes),
	)
	return nil
}
