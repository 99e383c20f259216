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

package debug

import (
	"encoding/json"
	"errors"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"text/template"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/sched"
	"go.uber.org/sched/priority"
	"go.uber.org/sched/topology"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

var (
	_jsonTestTmpl = template.Must(template.New("tmpl").Funcs(template.FuncMap{
		"jsonMarshal": func(v interface{}) (string, error) {
			data, err := json.Marshal(v)
			if err != nil {
				return "", err
			}
			return string(data), nil
		},
	}).Parse(`{{jsonMarshal .}}`))

	_errorTestTmpl = template.Must(template.New("tmpl").Funcs(template.FuncMap{
		"returnError": func(_ interface{}) (string, error) {
			return "", errors.New("great sadness")
		},
	}).Parse(`{{returnError .}}`))
)

func newTestScheduler(t *testing.T) *sched.Scheduler {
	s, err := sched.New(sched.Config{}, topology.OneLevel(2, topology.ShareL2, 0))
	require.NoError(t, err)
	require.NoError(t, s.Start())

	cpu := s.CPU(0)
	p := s.NewProcess("make", 0)
	cpu.Add(p.NewThread("cc", priority.ClassTimeshare, priority.PUSER), sched.AddBoring)
	cpu.Add(p.NewThread("ld", priority.ClassTimeshare, priority.PUSER), sched.AddBoring)
	return s
}

func TestHandler(t *testing.T) {
	s := newTestScheduler(t)

	expected, err := json.Marshal(newTmplData(s))
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	NewHandler(s, tmpl(_jsonTestTmpl))(rec, httptest.NewRequest("GET", "/debug/sched", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	data, err := ioutil.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, string(expected), string(data))
}

func TestHandlerDefaultTemplate(t *testing.T) {
	s := newTestScheduler(t)

	rec := httptest.NewRecorder()
	NewHandler(s)(rec, httptest.NewRequest("GET", "/debug/sched", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "<h2>CPU 0</h2>")
	assert.Contains(t, body, "<h2>CPU 1</h2>")
	assert.Contains(t, body, "preempt_thresh")
	assert.Contains(t, body, "&lt;groups&gt;", "topology XML is escaped")
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
}

func TestHandlerRefresh(t *testing.T) {
	s := newTestScheduler(t)

	rec := httptest.NewRecorder()
	NewHandler(s)(rec, httptest.NewRequest("GET", "/debug/sched", nil))
	assert.NotContains(t, rec.Body.String(), `http-equiv="refresh"`)

	rec = httptest.NewRecorder()
	NewHandler(s, Refresh(5*time.Second))(rec, httptest.NewRequest("GET", "/debug/sched", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `<meta http-equiv="refresh" content="5">`)
}

func TestHandlerJSON(t *testing.T) {
	s := newTestScheduler(t)

	rec := httptest.NewRecorder()
	NewHandler(s)(rec, httptest.NewRequest("GET", "/debug/sched?format=json", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var status sched.Status
	require.NoError(t, json.NewDecoder(strings.NewReader(rec.Body.String())).Decode(&status))
	require.Len(t, status.CPUs, 2)
	assert.Equal(t, 2, status.Load)
}

func TestHandlerError(t *testing.T) {
	s := newTestScheduler(t)
	core, logs := observer.New(zapcore.ErrorLevel)

	rec := httptest.NewRecorder()
	NewHandler(s, tmpl(_errorTestTmpl), Logger(zap.New(core)))(rec, httptest.NewRequest("GET", "/debug/sched", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, 1, logs.FilterMessage("failed executing template").Len())
}
