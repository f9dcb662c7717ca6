package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"ytblog/blog"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeServer answers like the blog API; status flips to completed after
// pollsUntilDone status requests.
type fakeServer struct {
	storeCode      int
	storeBody      string
	pollsUntilDone int32
	polls          atomic.Int32
	lastKey        atomic.Value
}

func (f *fakeServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.lastKey.Store(r.Header.Get("X-API-KEY"))
	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/api/youtube/store":
		var sub blog.Submission
		if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(f.storeCode)
		w.Write([]byte(f.storeBody))
	case r.Method == http.MethodGet && r.URL.Path == "/api/youtube/status/7":
		n := f.polls.Add(1)
		st := blog.Status{Status: blog.StateProcessing}
		if n >= f.pollsUntilDone {
			st.Status = blog.StateCompleted
		}
		json.NewEncoder(w).Encode(st)
	default:
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"status":"not_found"}`))
	}
}

func newSubmitter(t *testing.T, srv *httptest.Server) (*Submitter, *TaskStore) {
	t.Helper()
	s, _ := openTestStore(t)
	if srv != nil {
		s.SaveSettings(Settings{SiteURL: srv.URL, APIKey: "secret"})
	}
	return &Submitter{
		Store:       s,
		Connect:     func(st Settings) API { return NewClient(st) },
		Logger:      discardLogger(),
		Interval:    time.Millisecond,
		RemoveDelay: time.Hour,
	}, s
}

func submission(local bool) blog.Submission {
	return blog.Submission{Title: "Trip", VideoID: "abc123", CategoryIDs: []int64{1}, AddToAttachments: local}
}

func TestSubmit_PollsUntilCompleted(t *testing.T) {
	fake := &fakeServer{storeCode: http.StatusCreated, storeBody: `{"message":"ok","blog_id":7,"url":"u"}`, pollsUntilDone: 3}
	srv := httptest.NewServer(fake)
	defer srv.Close()
	sub, _ := newSubmitter(t, srv)

	task, err := sub.Submit(context.Background(), submission(true))
	require.NoError(t, err)
	assert.Equal(t, TaskSuccess, task.Status)
	assert.Equal(t, "Completed", task.Message)
	assert.Equal(t, int32(3), fake.polls.Load())
	assert.Equal(t, "secret", fake.lastKey.Load())
}

func TestSubmit_WithoutLocalCopy(t *testing.T) {
	fake := &fakeServer{storeCode: http.StatusCreated, storeBody: `{"message":"ok","blog_id":7}`}
	srv := httptest.NewServer(fake)
	defer srv.Close()
	sub, ts := newSubmitter(t, srv)

	task, err := sub.Submit(context.Background(), submission(false))
	require.NoError(t, err)
	assert.Equal(t, TaskSuccess, task.Status)
	assert.Equal(t, "Saved (no video)", task.Message)
	assert.NotZero(t, task.ExpiresAt)
	assert.Zero(t, fake.polls.Load())

	// the CLI closes the store right after Submit returns
	require.NoError(t, ts.Close())
	later := OpenTaskStore(ts.path, discardLogger())
	defer later.Close()
	later.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	assert.Empty(t, later.Snapshot())
}

func TestSubmit_ServerRejects(t *testing.T) {
	fake := &fakeServer{storeCode: http.StatusUnprocessableEntity, storeBody: `{"message":"This video is already saved as an article.","blog_id":3}`}
	srv := httptest.NewServer(fake)
	defer srv.Close()
	sub, _ := newSubmitter(t, srv)

	task, err := sub.Submit(context.Background(), submission(true))
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
	assert.Equal(t, TaskError, task.Status)
	assert.Equal(t, "This video is already saved as an article.", task.Message)
}

func TestSubmit_SettingsMissing(t *testing.T) {
	sub, s := newSubmitter(t, nil)

	task, err := sub.Submit(context.Background(), submission(true))
	assert.ErrorIs(t, err, ErrSettingsMissing)
	assert.Equal(t, TaskError, task.Status)
	assert.Equal(t, "Settings missing", task.Message)
	assert.Len(t, s.Snapshot(), 1)
}

func TestSubmit_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	sub, _ := newSubmitter(t, srv)
	srv.Close()

	task, err := sub.Submit(context.Background(), submission(true))
	require.Error(t, err)
	assert.Equal(t, TaskError, task.Status)
	assert.Equal(t, "Server error", task.Message)
}

func TestClient_Categories(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/custom/categories", r.URL.Path)
		w.Write([]byte(`[{"id":1,"title":"Travel","slug":"travel","parent_id":null,"children":[{"id":2,"title":"Asia","slug":"asia","parent_id":1}]}]`))
	}))
	defer srv.Close()

	c := NewClient(Settings{SiteURL: srv.URL + "/", APIKey: "k"}, WithPrefix("/custom"))
	tree, err := c.Categories(context.Background())
	require.NoError(t, err)
	require.Len(t, tree, 1)
	require.Len(t, tree[0].Children, 1)
	assert.Equal(t, "asia", tree[0].Children[0].Slug)
}
