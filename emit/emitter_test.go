// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package emit

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/latch/dag"
)

func sampleSnapshot(t *testing.T) *dag.Snapshot {
	t.Helper()
	g := dag.NewGraph()
	g.AddNode("extract")
	g.AddNode("load")
	g.AddEdge("load", "extract")
	return g.Snapshot()
}

func TestEmitPostsSnapshotJSON(t *testing.T) {
	var got dag.Snapshot
	var contentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		contentType = r.Header.Get("Content-Type")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	e := NewHTTP(srv.URL)
	require.NoError(t, e.Emit(context.Background(), sampleSnapshot(t)))

	assert.Equal(t, "application/json", contentType)
	assert.Equal(t, 2, got.Metadata.TotalNodes)
	assert.Equal(t, 1, got.Metadata.TotalEdges)
	require.Len(t, got.Edges, 1)
	assert.Equal(t, "extract", got.Edges[0].Source)
	assert.Equal(t, "load", got.Edges[0].Target)
}

func TestEmitReportsNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no thanks", http.StatusBadGateway)
	}))
	defer srv.Close()

	e := NewHTTP(srv.URL)
	err := e.Emit(context.Background(), sampleSnapshot(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestEmitUnreachableEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	e := NewHTTP(srv.URL)
	assert.Error(t, e.Emit(context.Background(), sampleSnapshot(t)))
}

func TestEmitNilSnapshotIsNoop(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	e := NewHTTP(srv.URL)
	require.NoError(t, e.Emit(context.Background(), nil))
	assert.False(t, called)
}

func TestNewHTTPDefaults(t *testing.T) {
	e := NewHTTP("")
	assert.Equal(t, DefaultURL, e.url)
	require.NotNil(t, e.client)
	assert.Equal(t, DefaultTimeout, e.client.Timeout)
}
