package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/easel/pkg/adapters/file"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serveRequest(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

const templateScript = `
state:
  rootElement: root
  elements:
    root: {type: page, parent: "", elements: []}
`

func TestNewServer_FileBackend(t *testing.T) {
	dir := t.TempDir()
	var logs bytes.Buffer
	h, closeFn, err := NewServer(ServeOptions{
		Template:       writeScript(t, templateScript),
		SessionsDir:    dir,
		AutoCheckpoint: true,
		LogLevel:       "debug",
		LogOutput:      &logs,
	})
	require.NoError(t, err)
	defer closeFn()

	w := serveRequest(t, h, http.MethodPost, "/sessions/doc/actions",
		`{"name":"CREATE_ELEMENT","args":{"id":"title","type":"heading"}}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = serveRequest(t, h, http.MethodGet, "/sessions/doc/tree", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"id":"title"`)

	// Auto-checkpoint wrote the session to disk.
	snap, err := file.New(dir).Load(context.Background(), "doc")
	require.NoError(t, err)
	assert.Equal(t, "title", snap.Slices.String("activeElement"))

	w = serveRequest(t, h, http.MethodGet, "/metrics", "")
	assert.Contains(t, w.Body.String(), "easel_actions_dispatched_total")
	assert.Contains(t, w.Body.String(), "go_goroutines")

	assert.Contains(t, logs.String(), "action_complete")
}

func TestNewServer_RedisBackend(t *testing.T) {
	mr := miniredis.RunT(t)
	h, closeFn, err := NewServer(ServeOptions{
		Template:  writeScript(t, templateScript),
		RedisAddr: mr.Addr(),
		LogLevel:  "error",
		LogOutput: &bytes.Buffer{},
	})
	require.NoError(t, err)
	defer closeFn()

	w := serveRequest(t, h, http.MethodPost, "/sessions/doc/actions", `{"name":"SELECT_ELEMENT","args":{"id":"root"}}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = serveRequest(t, h, http.MethodPost, "/sessions/doc/checkpoint", "")
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())
	assert.True(t, mr.Exists("easel:session:doc"))

	w = serveRequest(t, h, http.MethodGet, "/sessions", "")
	assert.Contains(t, w.Body.String(), "doc")
}

func TestNewServer_DefaultTemplate(t *testing.T) {
	h, closeFn, err := NewServer(ServeOptions{SessionsDir: t.TempDir(), LogOutput: &bytes.Buffer{}})
	require.NoError(t, err)
	defer closeFn()

	w := serveRequest(t, h, http.MethodGet, "/sessions/blank/tree", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"id":"root","type":"page"`)
}

func TestNewServer_ProtectedCheckpoints(t *testing.T) {
	dir := t.TempDir()
	h, closeFn, err := NewServer(ServeOptions{
		SessionsDir:   dir,
		EncryptionKey: strings.Repeat("ab", 32),
		MaskPatterns:  []string{"(?i)email"},
		LogOutput:     &bytes.Buffer{},
	})
	require.NoError(t, err)
	defer closeFn()

	w := serveRequest(t, h, http.MethodPost, "/sessions/doc/actions",
		`{"name":"CREATE_ELEMENT","args":{"id":"contact","type":"form","data":{"Email":"me@example.com"}}}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = serveRequest(t, h, http.MethodPost, "/sessions/doc/checkpoint", "")
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())

	raw, err := os.ReadFile(filepath.Join(dir, "doc.json"))
	require.NoError(t, err)
	assert.Contains(t, string(raw), "__encrypted__")
	assert.NotContains(t, string(raw), "contact")

	// The live editor keeps the real value.
	w = serveRequest(t, h, http.MethodGet, "/sessions/doc/state", "")
	assert.Contains(t, w.Body.String(), "me@example.com")
}

func TestNewServer_InvalidProtection(t *testing.T) {
	_, _, err := NewServer(ServeOptions{EncryptionKey: "abcd", SessionsDir: t.TempDir()})
	assert.ErrorContains(t, err, "need 32 bytes")

	_, _, err = NewServer(ServeOptions{MaskPatterns: []string{"("}, SessionsDir: t.TempDir()})
	assert.ErrorContains(t, err, "invalid mask pattern")
}

func TestNewServer_BadLevel(t *testing.T) {
	_, _, err := NewServer(ServeOptions{LogLevel: "loud"})
	assert.Error(t, err)
}

func TestNewMCPServer_SharesSessionStore(t *testing.T) {
	dir := t.TempDir()
	srv, closeFn, err := NewMCPServer(ServeOptions{
		SessionsDir:    dir,
		AutoCheckpoint: true,
		LogOutput:      io.Discard,
	})
	require.NoError(t, err)
	defer closeFn()

	req, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "tools/call",
		"params": map[string]any{
			"name": "trigger",
			"arguments": map[string]any{
				"session": "doc",
				"action":  "CREATE_ELEMENT",
				"args":    map[string]any{"id": "title", "type": "heading"},
			},
		},
	})
	require.NoError(t, err)
	raw, err := json.Marshal(srv.MCPServer().HandleMessage(context.Background(), req))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), `"isError":true`)

	// The HTTP server reads what the MCP session checkpointed.
	snap, err := file.New(dir).Load(context.Background(), "doc")
	require.NoError(t, err)
	assert.Equal(t, "title", snap.Slices.String("activeElement"))

	_, _, err = NewMCPServer(ServeOptions{LogLevel: "loud"})
	assert.Error(t, err)
}
