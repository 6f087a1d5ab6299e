// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package visualizer

// indexHTML is the dashboard page. It connects to /ws and redraws the task
// list on each snapshot. Status colors: pending gray, running orange,
// completed green, failed red.
const indexHTML = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <title>Execution Plan</title>
  <style>
    body { font-family: system-ui, sans-serif; margin: 2rem; background: #fafafa; }
    h1 { font-size: 1.4rem; }
    #meta { color: #666; margin-bottom: 1rem; }
    .task { display: flex; align-items: center; gap: 0.6rem; padding: 0.4rem 0.6rem;
            border: 1px solid #ddd; border-radius: 6px; margin-bottom: 0.4rem; background: #fff; }
    .dot { width: 12px; height: 12px; border-radius: 50%; }
    .pending   .dot { background: #9e9e9e; }
    .running   .dot { background: #ff9800; }
    .completed .dot { background: #4caf50; }
    .failed    .dot { background: #f44336; }
    .label { font-weight: 600; }
    .deps { color: #888; font-size: 0.85rem; margin-left: auto; }
    .error { color: #c62828; font-size: 0.85rem; }
    #history { margin-top: 1.5rem; color: #555; font-size: 0.85rem; }
  </style>
</head>
<body>
  <h1 id="title">Execution Plan</h1>
  <div id="meta">waiting for snapshot...</div>
  <div id="tasks"></div>
  <div id="history"></div>
  <script>
    function render(snap) {
      document.getElementById('title').textContent = snap.title || 'Execution Plan';
      const meta = snap.metadata || {};
      document.getElementById('meta').textContent =
        (meta.total_nodes || 0) + ' tasks, ' + (meta.total_edges || 0) + ' dependencies';

      const tasks = document.getElementById('tasks');
      tasks.innerHTML = '';
      (snap.nodes || []).forEach(function(node) {
        if (meta.skip_isolated_nodes &&
            node.dependencies_count === 0 && node.dependents_count === 0) {
          return;
        }
        const status = node.status || 'pending';
        const row = document.createElement('div');
        row.className = 'task ' + status;
        row.innerHTML = '<span class="dot"></span>' +
          '<span class="label">' + (node.label || node.id) + '</span>' +
          (node.error ? '<span class="error">' + node.error + '</span>' : '') +
          '<span class="deps">deps: ' + (node.dependencies_count || 0) + '</span>';
        tasks.appendChild(row);
      });

      const history = document.getElementById('history');
      const events = (meta.execution_history || []).map(function(ev) {
        return ev.task + ' ' + ev.event;
      });
      history.textContent = events.length ? 'history: ' + events.join(' | ') : '';
    }

    function connect() {
      const ws = new WebSocket('ws://' + location.host + '/ws');
      ws.onmessage = function(msg) { render(JSON.parse(msg.data)); };
      ws.onclose = function() { setTimeout(connect, 2000); };
    }

    fetch('/api/state').then(function(r) { return r.json(); }).then(function(body) {
      if (body && body.snapshot) { render(body.snapshot); }
    });
    connect();
  </script>
</body>
</html>
`
