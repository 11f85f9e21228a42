package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/five82/kxapi/internal/login"
	"github.com/five82/kxapi/internal/session"
	"github.com/five82/kxapi/internal/ui"
)

func writeConfig(t *testing.T, baseURL string) (path, root string) {
	t.Helper()
	return writeConfigWith(t, baseURL, "")
}

// writeConfigWith adds extra top-level keys ahead of the [urls] table.
func writeConfigWith(t *testing.T, baseURL, extra string) (path, root string) {
	t.Helper()
	root = t.TempDir()
	path = filepath.Join(root, "config.toml")
	body := fmt.Sprintf("profile = \"production\"\nroot_dir = %q\nlog_level = \"debug\"\n%s\n[urls]\nproduction = %q\n", root, extra, baseURL)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path, root
}

func kerbalXStub(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/login", func(w http.ResponseWriter, r *http.Request) {
		if r.PostFormValue("password") != "boosters" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"token": "tok-1", "username": r.PostFormValue("username")})
	})
	mux.HandleFunc("POST /api/authenticate", func(w http.ResponseWriter, r *http.Request) {
		if r.PostFormValue("token") != "tok-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"username": "jeb"})
	})
	mux.HandleFunc("GET /api/test_connection", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `{"error":"boom"}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestNew_WiresRuntimeFromConfig(t *testing.T) {
	srv := kerbalXStub(t)
	path, root := writeConfig(t, srv.URL)

	rt, err := New(Options{ConfigPath: path, LogOutput: io.Discard})
	require.NoError(t, err)

	assert.Equal(t, srv.URL, rt.Session.BaseURL())
	assert.Equal(t, filepath.Join(root, "KerbalX.key"), rt.Tokens.Path())
	assert.Equal(t, ClientName, rt.Client.Identity().Name)
	assert.Equal(t, []string{ClientName}, rt.Registry.Names())
	assert.Equal(t, "debug", rt.Log.GetLevel().String())
}

func TestEnsureLoggedIn_PromptsThenUsesPersistedToken(t *testing.T) {
	srv := kerbalXStub(t)
	path, _ := writeConfig(t, srv.URL)

	prompts := 0
	prompter := login.PrompterFunc(func(context.Context, login.PromptRequest) (login.Credentials, error) {
		prompts++
		return login.Credentials{Username: "jeb", Password: "boosters"}, nil
	})
	rt, err := New(Options{ConfigPath: path, LogOutput: io.Discard, Prompter: prompter})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	ok, err := rt.EnsureLoggedIn(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1, prompts)

	// Second process: the saved token is enough.
	restarted, err := New(Options{ConfigPath: path, LogOutput: io.Discard, Prompter: prompter})
	require.NoError(t, err)
	ok, err = restarted.EnsureLoggedIn(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, prompts, "no second prompt")
	assert.Equal(t, "jeb", restarted.Client.Username())
}

func TestPendingError_RendersOnce(t *testing.T) {
	srv := kerbalXStub(t)
	path, _ := writeConfig(t, srv.URL)
	rt, err := New(Options{ConfigPath: path, LogOutput: io.Discard})
	require.NoError(t, err)

	resp, err := rt.Client.TestConnection(context.Background())
	require.NoError(t, err)
	require.Equal(t, http.StatusInternalServerError, resp.Status)

	msg := rt.PendingError()
	assert.Contains(t, msg, "boom")
	assert.Empty(t, rt.PendingError(), "errors are consumed on read")
}

func TestPendingError_UpgradeLinksClientPage(t *testing.T) {
	srv := kerbalXStub(t)
	path, _ := writeConfig(t, srv.URL)
	rt, err := New(Options{ConfigPath: path, LogOutput: io.Discard})
	require.NoError(t, err)

	rt.Session.SetError(session.UpgradeRequired("please upgrade"))
	assert.Contains(t, rt.PendingError(), srv.URL+"/KXAPI/"+ClientName)
}

func TestWriteMetrics_ReportsRequests(t *testing.T) {
	srv := kerbalXStub(t)
	path, _ := writeConfig(t, srv.URL)
	rt, err := New(Options{ConfigPath: path, LogOutput: io.Discard})
	require.NoError(t, err)

	_, err = rt.Client.TestConnection(context.Background())
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, rt.WriteMetrics(&buf))
	out := buf.String()
	assert.Contains(t, out, `kxapi_requests_total{method="GET",outcome="server_error"} 1`)
	assert.True(t, strings.Contains(out, "kxapi_session_errors_total"), out)
	assert.Contains(t, out, "# TYPE kxapi_requests_total counter")
	assert.Contains(t, out, `kxapi_request_duration_seconds_count{method="GET"} 1`)
}

func TestNew_RejectsBadLogLevel(t *testing.T) {
	srv := kerbalXStub(t)
	path, _ := writeConfig(t, srv.URL)

	_, err := New(Options{ConfigPath: path, LogLevel: "loud", LogOutput: io.Discard})
	require.Error(t, err)
}

func TestNew_WritesToConfiguredLogFile(t *testing.T) {
	srv := kerbalXStub(t)
	path, root := writeConfigWith(t, srv.URL, `log_file = "logs/kxapi.log"`)

	rt, err := New(Options{ConfigPath: path})
	require.NoError(t, err)
	rt.Log.Info("hello from test")
	require.NoError(t, rt.Close())

	logged, err := os.ReadFile(filepath.Join(root, "logs", "kxapi.log"))
	require.NoError(t, err)
	assert.Contains(t, string(logged), "hello from test")
	assert.Contains(t, string(logged), "runtime ready")
}

func TestNew_ThemeReachesPromptAndMessages(t *testing.T) {
	srv := kerbalXStub(t)
	path, _ := writeConfigWith(t, srv.URL, `theme = "slate"`)

	rt, err := New(Options{ConfigPath: path, LogOutput: io.Discard})
	require.NoError(t, err)

	assert.Equal(t, ui.TerminalPrompter{Theme: "slate"}, rt.Prompter)
	rt.Session.SetError(session.ServerError("boom"))
	want := ui.RenderError(session.ServerError("boom"), ui.MessageOptions{Theme: "Slate"})
	assert.Equal(t, want, rt.PendingError())
}

func TestNew_RejectsUnknownTheme(t *testing.T) {
	srv := kerbalXStub(t)
	path, _ := writeConfigWith(t, srv.URL, `theme = "neon"`)

	_, err := New(Options{ConfigPath: path, LogOutput: io.Discard})
	require.ErrorContains(t, err, `unknown theme "neon"`)
}
