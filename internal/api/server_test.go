package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/kbchat/internal/config"
	"github.com/dgallion1/kbchat/internal/pipeline"
	"github.com/dgallion1/kbchat/internal/reply"
	"github.com/dgallion1/kbchat/internal/sidebar"
)

const testAdminKey = "s3cret"

type testEnv struct {
	srv *Server
	p   *pipeline.Pipeline
	dir string
}

func newTestEnv(t *testing.T, replyHandler http.HandlerFunc) *testEnv {
	t.Helper()
	if replyHandler == nil {
		replyHandler = func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"output":"ok"}`))
		}
	}
	upstream := httptest.NewServer(replyHandler)
	t.Cleanup(upstream.Close)

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	dir := filepath.Join(t.TempDir(), "knowledge_base")
	cfg := config.Config{
		KBDir:          dir,
		ManifestName:   "manifest.json",
		MaxPromptBytes: 64,
		AdminAPIKey:    testAdminKey,
	}
	p := pipeline.New(pipeline.Options{Dir: dir, ManifestName: cfg.ManifestName}, log)
	rc := reply.NewClient(upstream.URL, "user-demo-web", time.Second,
		reply.WithMaxRetries(1), reply.WithLogger(log))

	return &testEnv{srv: NewServer(p, rc, log, cfg), p: p, dir: dir}
}

func (e *testEnv) do(t *testing.T, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.srv.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) build(t *testing.T, files map[string]string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(e.dir, 0o755))
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(e.dir, name), []byte(content), 0o644))
	}
	_, err := e.p.Run(t.Context(), pipeline.TriggerBuild)
	require.NoError(t, err)
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func TestHealth(t *testing.T) {
	e := newTestEnv(t, nil)
	rec := e.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestListFiles(t *testing.T) {
	e := newTestEnv(t, nil)

	t.Run("no manifest yet", func(t *testing.T) {
		rec := e.do(t, http.MethodGet, "/api/kb/files", "", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var body struct {
			Files       []sidebar.File `json:"files"`
			Placeholder string         `json:"placeholder"`
		}
		decode(t, rec, &body)
		assert.Empty(t, body.Files)
		assert.Equal(t, sidebar.NoFilesText, body.Placeholder)
	})

	t.Run("after build", func(t *testing.T) {
		e.build(t, map[string]string{"guide.md": "# Guide\n\nHello there."})
		rec := e.do(t, http.MethodGet, "/api/kb/files", "", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var body struct {
			Files       []sidebar.File `json:"files"`
			Placeholder string         `json:"placeholder"`
		}
		decode(t, rec, &body)
		require.Len(t, body.Files, 1)
		assert.Equal(t, sidebar.File{Name: "guide.pdf", ActualName: "guide.txt", Path: "/knowledge_base/guide.txt"}, body.Files[0])
		assert.Empty(t, body.Placeholder)
	})
}

func TestKnowledgeBaseFiles(t *testing.T) {
	e := newTestEnv(t, nil)
	e.build(t, map[string]string{"guide.md": "Hello there."})
	require.NoError(t, os.WriteFile(filepath.Join(e.dir, ".guide.txt.123.tmp"), []byte("x"), 0o644))

	rec := e.do(t, http.MethodGet, "/knowledge_base/manifest.json?t=123", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "[\n  \"guide.txt\"\n]", rec.Body.String())

	rec = e.do(t, http.MethodGet, "/knowledge_base/guide.txt", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, "Hello there.", rec.Body.String())

	rec = e.do(t, http.MethodGet, "/knowledge_base/.guide.txt.123.tmp", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = e.do(t, http.MethodGet, "/knowledge_base/missing.txt", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetFile(t *testing.T) {
	e := newTestEnv(t, nil)
	e.build(t, map[string]string{"guide.md": "Hello there.", "blank.txt": ""})

	rec := e.do(t, http.MethodGet, "/api/kb/files/guide.txt", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	decode(t, rec, &body)
	assert.Equal(t, "guide.pdf", body["name"])
	assert.Equal(t, "Hello there.", body["content"])

	rec = e.do(t, http.MethodGet, "/api/kb/files/blank.txt", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &body)
	assert.Equal(t, sidebar.NoContentText, body["content"])

	rec = e.do(t, http.MethodGet, "/api/kb/files/missing.txt", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = e.do(t, http.MethodGet, "/api/kb/files/guide.md", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChat(t *testing.T) {
	var got map[string]string
	e := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"data":{"reply":"**Halo** [doc](https://kb.local/x?id=undefined)"}}`))
	})

	rec := e.do(t, http.MethodPost, "/api/chat", `{"prompt":"hai"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body chatResponse
	decode(t, rec, &body)
	assert.Equal(t, "**Halo** [doc](https://kb.local/x?id=undefined)", body.Reply)
	assert.Equal(t, reply.ShapeNested, body.Shape)
	assert.False(t, body.Fallback)
	assert.Contains(t, body.HTML, "<strong>Halo</strong>")
	assert.NotContains(t, body.HTML, "<a")
	assert.Equal(t, "hai", got["prompt"])
	assert.Equal(t, "user-demo-web", got["sessionId"])
}

func TestChatRejectsBadRequests(t *testing.T) {
	e := newTestEnv(t, nil)

	rec := e.do(t, http.MethodPost, "/api/chat", `{"prompt":"   "}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(t, http.MethodPost, "/api/chat", `not json`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(t, http.MethodPost, "/api/chat", `{"prompt":"`+strings.Repeat("x", 65)+`"}`, nil)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestChatFallbackOnUpstreamFailure(t *testing.T) {
	e := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	rec := e.do(t, http.MethodPost, "/api/chat", `{"prompt":"hai"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body chatResponse
	decode(t, rec, &body)
	assert.Equal(t, reply.FallbackUnreachable, body.Reply)
	assert.True(t, body.Fallback)
}

func TestRebuildRequiresAdminKey(t *testing.T) {
	e := newTestEnv(t, nil)

	rec := e.do(t, http.MethodPost, "/api/kb/rebuild", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = e.do(t, http.MethodPost, "/api/kb/rebuild", "", map[string]string{"Authorization": "Bearer nope"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = e.do(t, http.MethodPost, "/api/kb/rebuild", "", map[string]string{"Authorization": "Bearer " + testAdminKey})
	require.Equal(t, http.StatusOK, rec.Code)
	var snap pipeline.RunSnapshot
	decode(t, rec, &snap)
	assert.Equal(t, pipeline.TriggerAPI, snap.Trigger)
	assert.Equal(t, pipeline.StatusCompleted, snap.Status)
	assert.Empty(t, snap.Manifest)
}

func TestRebuildDisabledWithoutKey(t *testing.T) {
	e := newTestEnv(t, nil)
	e.srv.cfg.AdminAPIKey = ""
	e.srv.setupRoutes()

	rec := e.do(t, http.MethodPost, "/api/kb/rebuild", "", map[string]string{"Authorization": "Bearer "})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestStatusAndRuns(t *testing.T) {
	e := newTestEnv(t, nil)

	rec := e.do(t, http.MethodGet, "/api/kb/status", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	e.build(t, map[string]string{"a.md": "alpha", "empty.md": ""})

	rec = e.do(t, http.MethodGet, "/api/kb/status", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var snap pipeline.RunSnapshot
	decode(t, rec, &snap)
	assert.Equal(t, pipeline.StatusPartial, snap.Status)
	assert.Equal(t, 1, snap.Counts.Converted)
	assert.Equal(t, 1, snap.Counts.Skipped)
	assert.Equal(t, []string{"a.txt"}, snap.Manifest)

	rec = e.do(t, http.MethodGet, "/api/kb/runs/"+snap.ID, "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = e.do(t, http.MethodGet, "/api/kb/runs/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = e.do(t, http.MethodGet, "/api/kb/runs", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var runs struct {
		Runs []pipeline.RunSnapshot `json:"runs"`
	}
	decode(t, rec, &runs)
	require.Len(t, runs.Runs, 1)
	assert.Equal(t, snap.ID, runs.Runs[0].ID)
}

func TestReplyStats(t *testing.T) {
	e := newTestEnv(t, nil)
	e.do(t, http.MethodPost, "/api/chat", `{"prompt":"hai"}`, nil)

	rec := e.do(t, http.MethodGet, "/api/stats/reply", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Stats reply.StatsSnapshot `json:"stats"`
	}
	decode(t, rec, &body)
	assert.Equal(t, 1, body.Stats.Count)
	assert.Equal(t, 1, body.Stats.Shapes[reply.ShapeOutput])
}

func TestKnowledgeBaseHidesDirectories(t *testing.T) {
	e := newTestEnv(t, nil)
	e.build(t, nil)
	require.NoError(t, os.Mkdir(filepath.Join(e.dir, "archive"), 0o755))

	rec := e.do(t, http.MethodGet, "/knowledge_base/archive", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
