package ghpr

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{Owner: "acme", Repo: "reports", Token: "tok", BaseURL: srv.URL})
}

func TestFindOpenPR(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/repos/acme/reports/pulls", r.URL.Path)
		assert.Equal(t, "open", r.URL.Query().Get("state"))
		assert.Equal(t, "acme:watch/report", r.URL.Query().Get("head"))
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`[{"number": 7, "body": "existing", "head": {"ref": "watch/report"}}]`))
	})
	pr, err := c.FindOpenPR(context.Background(), "watch/report")
	require.NoError(t, err)
	assert.Equal(t, 7, pr.Number)
	assert.Equal(t, "watch/report", pr.Head.Ref)
}

func TestFindOpenPRNone(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	})
	_, err := c.FindOpenPR(context.Background(), "watch/report")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestFindOpenPRMultipleIsHardError(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"number": 1}, {"number": 2}]`))
	})
	_, err := c.FindOpenPR(context.Background(), "watch/report")
	require.ErrorIs(t, err, ErrMultipleOpenPRs)
}

func TestGetFileDecodesBase64(t *testing.T) {
	content := base64.StdEncoding.EncodeToString([]byte(`{"lastSync":"x"}`))
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/repos/acme/reports/contents/.state/db.json", r.URL.Path)
		assert.Equal(t, "watch/report", r.URL.Query().Get("ref"))
		_ = json.NewEncoder(w).Encode(map[string]string{"content": content, "encoding": "base64"})
	})
	b, err := c.GetFile(context.Background(), "watch/report", ".state/db.json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"lastSync":"x"}`, string(b))
}

func TestGetFileMissing(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	_, err := c.GetFile(context.Background(), "watch/report", "nope.json")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestPutFileUpdatesWithSHA(t *testing.T) {
	var put map[string]string
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			_ = json.NewEncoder(w).Encode(map[string]string{"content": "", "encoding": "base64", "sha": "abc123"})
		case http.MethodPut:
			require.NoError(t, json.NewDecoder(r.Body).Decode(&put))
			_, _ = w.Write([]byte(`{}`))
		}
	})
	err := c.PutFile(context.Background(), "watch/report", "report.md", "update", []byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, "abc123", put["sha"])
	assert.Equal(t, "watch/report", put["branch"])
	decoded, err := base64.StdEncoding.DecodeString(put["content"])
	require.NoError(t, err)
	assert.Equal(t, "hello", string(decoded))
}

func TestPutFileCreatesWithoutSHA(t *testing.T) {
	var put map[string]string
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			w.WriteHeader(http.StatusNotFound)
		case http.MethodPut:
			require.NoError(t, json.NewDecoder(r.Body).Decode(&put))
			_, _ = w.Write([]byte(`{}`))
		}
	})
	require.NoError(t, c.PutFile(context.Background(), "watch/report", "report.md", "create", []byte("hi")))
	_, hasSHA := put["sha"]
	assert.False(t, hasSHA)
}

func TestEnsureBranchExisting(t *testing.T) {
	created := false
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			created = true
		}
		_, _ = w.Write([]byte(`{"object": {"sha": "headsha"}}`))
	})
	require.NoError(t, c.EnsureBranch(context.Background(), "watch/report", "main"))
	assert.False(t, created, "existing branch must not be recreated")
}

func TestEnsureBranchCreatesFromBase(t *testing.T) {
	var created map[string]string
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/repos/acme/reports/git/ref/heads/watch/report":
			w.WriteHeader(http.StatusNotFound)
		case r.Method == http.MethodGet && r.URL.Path == "/repos/acme/reports/git/ref/heads/main":
			_, _ = w.Write([]byte(`{"object": {"sha": "basesha"}}`))
		case r.Method == http.MethodPost:
			require.NoError(t, json.NewDecoder(r.Body).Decode(&created))
			_, _ = w.Write([]byte(`{}`))
		default:
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
	})
	require.NoError(t, c.EnsureBranch(context.Background(), "watch/report", "main"))
	assert.Equal(t, "refs/heads/watch/report", created["ref"])
	assert.Equal(t, "basesha", created["sha"])
}

func TestCreateAndUpdatePR(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "watch/report", body["head"])
			assert.Equal(t, "main", body["base"])
			_, _ = w.Write([]byte(`{"number": 12, "html_url": "https://example.com/pr/12"}`))
		case http.MethodPatch:
			require.Equal(t, "/repos/acme/reports/pulls/12", r.URL.Path)
			_, _ = w.Write([]byte(`{}`))
		}
	})
	pr, err := c.CreatePR(context.Background(), "watch/report", "main", "title", "body")
	require.NoError(t, err)
	assert.Equal(t, 12, pr.Number)
	require.NoError(t, c.UpdateBody(context.Background(), 12, "new body"))
}
