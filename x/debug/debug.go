// Copyright (c) 2020 Uber Technologies, Inc.
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

// Package debug serves an HTML page describing a running scheduler: the
// run queue of every CPU, the topology tree, the tunables and the decision
// counters. Add ?format=json for the same report as JSON.
package debug

import (
	"encoding/json"
	"html/template"
	"io"
	"net/http"
	"time"

	"go.uber.org/sched"
	"go.uber.org/sched/topology"
	"go.uber.org/zap"
)

var _defaultTmpl = template.Must(template.New("tmpl").Parse(`
<html>
	<head>
	<title>/debug/sched</title>
	{{if .Refresh}}<meta http-equiv="refresh" content="{{.Refresh}}">{{end}}
	<style type="text/css">
		body {
			font-family: "Courier New", Courier, monospace;
		}
		table {
			color:#333333;
			border-width: 1px;
			border-color: #3A3A3A;
			border-collapse: collapse;
		}
		table th {
			border-width: 1px;
			padding: 8px;
			border-style: solid;
			border-color: #3A3A3A;
			background-color: #B3B3B3;
		}
		table td {
			border-width: 1px;
			padding: 8px;
			border-style: solid;
			border-color: #3A3A3A;
			background-color: #ffffff;
		}
		pre {
			font-size: small;
		}
	</style>
	</head>
	<body>

<h1>/debug/sched</h1>
<div>ticks={{.Status.Ticks}} load={{.Status.Load}} running={{.Status.Running}}</div>

{{range .Status.CPUs}}
	<hr />
	<h2>CPU {{.ID}}</h2>
	<table>
		<tr>
			<th>Load</th>
			<th>Sysload</th>
			<th>Transferable</th>
			<th>Lowest Priority</th>
			<th>Switches</th>
			<th>Insert / Remove</th>
			<th>IPI Pending</th>
		</tr>
		<tr>
			<td>{{.Load}}</td>
			<td>{{.Sysload}}</td>
			<td>{{.Transferable}}</td>
			<td>{{.LowPriority}}</td>
			<td>{{.SwitchCount}} ({{.OldSwitchCount}})</td>
			<td>{{.InsertIndex}} / {{.RemoveIndex}}</td>
			<td>{{.IPIPending}}</td>
		</tr>
	</table>
	<h3>Threads</h3>
	<table>
		<tr>
			<th>Queue</th>
			<th>TID</th>
			<th>Name</th>
			<th>Class</th>
			<th>Priority</th>
			<th>Slot</th>
			<th>Score</th>
			<th>Slice</th>
		</tr>
		<tr>
			<td>running</td>
			<td>{{.Current.ID}}</td>
			<td>{{.Current.Name}}</td>
			<td>{{.Current.Class}}</td>
			<td>{{.Current.Priority}}</td>
			<td></td>
			<td>{{.Current.Score}}</td>
			<td>{{.Current.Slice}}</td>
		</tr>
		{{range .Queued}}
		<tr>
			<td>{{.Queue}}</td>
			<td>{{.ID}}</td>
			<td>{{.Name}}</td>
			<td>{{.Class}}</td>
			<td>{{.Priority}}</td>
			<td>{{.Slot}}</td>
			<td>{{.Score}}</td>
			<td>{{.Slice}}</td>
		</tr>
		{{end}}
	</table>
{{end}}

<hr />
<h2>Tunables</h2>
<table>
	{{range $name, $value := .Status.Tunables}}
	<tr>
		<td>{{$name}}</td>
		<td>{{$value}}</td>
	</tr>
	{{end}}
</table>

<h2>Topology</h2>
<pre>{{.TopologyXML}}</pre>
	</body>
</html>
`))

// NewHandler returns a http.HandlerFunc exposing the status of s.
func NewHandler(s *sched.Scheduler, opts ...Option) http.HandlerFunc {
	return newHandler(s, opts...).handle
}

type handler struct {
	s       *sched.Scheduler
	logger  *zap.Logger
	refresh int
	tmpl    templateIface
}

func newHandler(s *sched.Scheduler, opts ...Option) *handler {
	o := applyOptions(opts...)
	return &handler{
		s:       s,
		logger:  o.logger,
		refresh: int(o.refresh / time.Second),
		tmpl:    o.tmpl,
	}
}

func (h *handler) handle(w http.ResponseWriter, req *http.Request) {
	data := newTmplData(h.s)
	data.Refresh = h.refresh
	if req != nil && req.URL != nil && req.URL.Query().Get("format") == "json" {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(data.Status); err != nil {
			h.logger.Error("failed encoding scheduler status", zap.Error(err))
		}
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.tmpl.Execute(w, data); err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		h.logger.Error("failed executing template", zap.Error(err))
	}
}

type tmplData struct {
	Status      sched.Status
	TopologyXML string
	// Refresh is the page reload period in seconds, or zero.
	Refresh int
}

func newTmplData(s *sched.Scheduler) *tmplData {
	return &tmplData{
		Status:      s.Introspect(),
		TopologyXML: topology.XML(s.Topology()),
	}
}

// templateIface represents a template created from either the html/template
// or text/template packages.
type templateIface interface {
	Execute(io.Writer, interface{}) error
}
