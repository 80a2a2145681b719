// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jllopis/kairos-legal/pkg/agentservice"
	"github.com/jllopis/kairos-legal/pkg/errors"
	"github.com/jllopis/kairos-legal/pkg/resilience"
)

type fakeAPI struct {
	t *testing.T

	mu          sync.Mutex
	lastAgent   map[string]any
	deleted     []string
	apiVersions []string
	authHeaders []string
	polls       atomic.Int32
	finalStatus string
	pollFailOn  int32
	cancelled   atomic.Bool
}

func (f *fakeAPI) handler() http.Handler {
	mux := http.NewServeMux()
	writeJSON := func(w http.ResponseWriter, status int, v any) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(v)
	}
	record := func(r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.apiVersions = append(f.apiVersions, r.URL.Query().Get("api-version"))
		f.authHeaders = append(f.authHeaders, r.Header.Get("api-key"))
	}

	mux.HandleFunc("POST /assistants", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		body, _ := io.ReadAll(r.Body)
		var req map[string]any
		assert.NoError(f.t, json.Unmarshal(body, &req))
		f.mu.Lock()
		f.lastAgent = req
		f.mu.Unlock()
		if req["model"] == "bad-model" {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": map[string]any{"message": "unknown model"}})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"id": "asst_" + req["name"].(string), "object": "assistant", "created_at": 1,
			"name": req["name"], "model": req["model"], "instructions": req["instructions"], "tools": []any{},
		})
	})
	mux.HandleFunc("DELETE /assistants/{id}", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		id := r.PathValue("id")
		if id == "asst_missing" {
			writeJSON(w, http.StatusNotFound, map[string]any{"error": map[string]any{"message": "no such assistant"}})
			return
		}
		f.mu.Lock()
		f.deleted = append(f.deleted, id)
		f.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{"id": id, "object": "assistant.deleted", "deleted": true})
	})
	mux.HandleFunc("POST /threads", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		writeJSON(w, http.StatusOK, map[string]any{"id": "thread_1", "object": "thread", "created_at": 1})
	})
	mux.HandleFunc("POST /threads/{tid}/messages", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		var req struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		}
		assert.NoError(f.t, json.NewDecoder(r.Body).Decode(&req))
		writeJSON(w, http.StatusOK, message("msg_1", req.Role, 1, req.Content))
	})
	mux.HandleFunc("GET /threads/{tid}/messages", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		assert.Equal(f.t, "asc", r.URL.Query().Get("order"))
		if r.URL.Query().Get("after") != "" {
			writeJSON(w, http.StatusOK, map[string]any{"object": "list", "data": []any{}, "has_more": false})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"object": "list",
			"data": []any{
				message("msg_1", "user", 1, "This agreement terminates on breach."),
				message("msg_2", "assistant", 2, "draft", "Risk Level: High"),
			},
			"first_id": "msg_1", "last_id": "msg_2", "has_more": false,
		})
	})
	mux.HandleFunc("POST /threads/{tid}/runs", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		writeJSON(w, http.StatusOK, run("run_1", "queued", nil))
	})
	mux.HandleFunc("GET /threads/{tid}/runs/{rid}", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		n := f.polls.Add(1)
		if f.pollFailOn == n {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"error": map[string]any{"message": "busy"}})
			return
		}
		if n < 2 || f.finalStatus == "" {
			writeJSON(w, http.StatusOK, run("run_1", "in_progress", nil))
			return
		}
		var lastErr map[string]any
		if f.finalStatus == "failed" {
			lastErr = map[string]any{"code": "server_error", "message": "tool call failed"}
		}
		writeJSON(w, http.StatusOK, run("run_1", f.finalStatus, lastErr))
	})
	mux.HandleFunc("POST /threads/{tid}/runs/{rid}/cancel", func(w http.ResponseWriter, r *http.Request) {
		f.cancelled.Store(true)
		writeJSON(w, http.StatusOK, run("run_1", "cancelling", nil))
	})
	return mux
}

func message(id, role string, createdAt int64, texts ...string) map[string]any {
	content := make([]any, 0, len(texts))
	for _, text := range texts {
		content = append(content, map[string]any{
			"type": "text",
			"text": map[string]any{"value": text, "annotations": []any{}},
		})
	}
	return map[string]any{
		"id": id, "object": "thread.message", "created_at": createdAt, "thread_id": "thread_1",
		"role": role, "content": content, "status": "completed",
	}
}

func run(id, status string, lastErr map[string]any) map[string]any {
	return map[string]any{
		"id": id, "object": "thread.run", "created_at": 1, "thread_id": "thread_1",
		"assistant_id": "asst_orchestrator", "status": status, "last_error": lastErr,
	}
}

func newTestService(t *testing.T, api *fakeAPI) *Service {
	t.Helper()
	api.t = t
	srv := httptest.NewServer(api.handler())
	t.Cleanup(srv.Close)
	svc, err := New(srv.URL,
		WithAPIKey("key-123"),
		WithAPIVersion("v1"),
		WithPollInterval(5*time.Millisecond),
		WithRetry(resilience.DefaultRetryConfig().WithInitialDelay(time.Millisecond)),
	)
	require.NoError(t, err)
	return svc
}

func TestNewRequiresEndpoint(t *testing.T) {
	_, err := New("  ")
	assert.True(t, errors.HasCode(err, errors.CodeConfig))
}

func TestCreateAgentSendsConnectedAgentTools(t *testing.T) {
	api := &fakeAPI{}
	svc := newTestService(t, api)

	agent, err := svc.CreateAgent(context.Background(), agentservice.AgentSpec{
		Name:         "orchestrator",
		Model:        "gpt-4o",
		Instructions: "Review the legal document.",
		Tools: []agentservice.ToolDescriptor{
			{AgentID: "asst_a", Name: "compliance_risk_agent", Description: "Evaluates compliance risk"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "asst_orchestrator", agent.ID)
	assert.Len(t, agent.Tools, 1)

	api.mu.Lock()
	defer api.mu.Unlock()
	tools, ok := api.lastAgent["tools"].([]any)
	require.True(t, ok, "tools missing from body: %v", api.lastAgent)
	require.Len(t, tools, 1)
	tool := tools[0].(map[string]any)
	assert.Equal(t, "connected_agent", tool["type"])
	assert.Equal(t, map[string]any{
		"id": "asst_a", "name": "compliance_risk_agent", "description": "Evaluates compliance risk",
	}, tool["connected_agent"])
	assert.Contains(t, api.apiVersions, "v1")
	assert.Contains(t, api.authHeaders, "key-123")
}

func TestCreateAgentRejected(t *testing.T) {
	svc := newTestService(t, &fakeAPI{})
	_, err := svc.CreateAgent(context.Background(), agentservice.AgentSpec{Name: "x", Model: "bad-model"})
	assert.True(t, errors.HasCode(err, errors.CodeService))
	assert.False(t, errors.IsRecoverable(err))
}

func TestDeleteAgentNotFound(t *testing.T) {
	api := &fakeAPI{}
	svc := newTestService(t, api)

	require.NoError(t, svc.DeleteAgent(context.Background(), "asst_a"))
	err := svc.DeleteAgent(context.Background(), "asst_missing")
	assert.True(t, errors.HasCode(err, errors.CodeNotFound))
	assert.Equal(t, []string{"asst_a"}, api.deleted)
}

func TestThreadMessagesRoundTrip(t *testing.T) {
	svc := newTestService(t, &fakeAPI{})
	ctx := context.Background()

	thread, err := svc.CreateThread(ctx)
	require.NoError(t, err)
	assert.Equal(t, "thread_1", thread.ID)

	posted, err := svc.PostMessage(ctx, thread.ID, agentservice.RoleUser, "This agreement terminates on breach.")
	require.NoError(t, err)
	assert.Equal(t, agentservice.RoleUser, posted.Role)
	assert.Equal(t, []string{"This agreement terminates on breach."}, posted.Text)

	msgs, err := svc.ListMessages(ctx, thread.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, agentservice.RoleUser, msgs[0].Role)
	assert.Equal(t, agentservice.RoleAgent, msgs[1].Role)
	assert.Equal(t, []string{"draft", "Risk Level: High"}, msgs[1].Text)
}

func TestCreateAndProcessRunCompletes(t *testing.T) {
	api := &fakeAPI{finalStatus: "completed", pollFailOn: 1}
	svc := newTestService(t, api)

	run, err := svc.CreateAndProcessRun(context.Background(), "thread_1", "asst_orchestrator")
	require.NoError(t, err)
	assert.Equal(t, agentservice.RunStatusCompleted, run.Status)
	assert.Nil(t, run.LastError)
	assert.Equal(t, int32(2), api.polls.Load(), "the 503 poll should have been retried once")
}

func TestCreateAndProcessRunFailedCarriesLastError(t *testing.T) {
	svc := newTestService(t, &fakeAPI{finalStatus: "failed"})

	run, err := svc.CreateAndProcessRun(context.Background(), "thread_1", "asst_orchestrator")
	require.NoError(t, err)
	assert.Equal(t, agentservice.RunStatusFailed, run.Status)
	require.NotNil(t, run.LastError)
	assert.Equal(t, "server_error", run.LastError.Code)
	assert.Equal(t, "tool call failed", run.LastError.Message)
}

func TestCreateAndProcessRunTimeoutCancelsRemotely(t *testing.T) {
	api := &fakeAPI{}
	svc := newTestService(t, api)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	run, err := svc.CreateAndProcessRun(ctx, "thread_1", "asst_orchestrator")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeTimeout), "got %v", err)
	require.NotNil(t, run)
	assert.Equal(t, "run_1", run.ID)
	assert.True(t, api.cancelled.Load())
}

func TestClassify(t *testing.T) {
	assert.Equal(t, errors.CodeTimeout, classify(context.DeadlineExceeded, "op").Code)
	assert.Equal(t, errors.CodeCanceled, classify(context.Canceled, "op").Code)
	generic := classify(io.ErrUnexpectedEOF, "op")
	assert.Equal(t, errors.CodeService, generic.Code)
	assert.True(t, generic.Recoverable)
}
