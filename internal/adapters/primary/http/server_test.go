package http

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Shelq27/NMedia-DZ2/internal/auth"
	"github.com/Shelq27/NMedia-DZ2/internal/core/domain"
	"github.com/Shelq27/NMedia-DZ2/internal/core/ports"
)

// --- MOCKS ---

type MockFeedService struct {
	mock.Mock
}

func (m *MockFeedService) update(args mock.Arguments) (*domain.Update, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Update), args.Error(1)
}

func (m *MockFeedService) Load(ctx context.Context, viewerID string) (*domain.Update, error) {
	return m.update(m.Called(ctx, viewerID))
}

func (m *MockFeedService) Refresh(ctx context.Context, viewerID string) (*domain.Update, error) {
	return m.update(m.Called(ctx, viewerID))
}

func (m *MockFeedService) LoadOlder(ctx context.Context, viewerID string) (*domain.Update, error) {
	return m.update(m.Called(ctx, viewerID))
}

func (m *MockFeedService) ShowNewer(ctx context.Context, viewerID string) (*domain.Update, error) {
	return m.update(m.Called(ctx, viewerID))
}

func (m *MockFeedService) Current(ctx context.Context, viewerID string) (*ports.CurrentFeed, error) {
	args := m.Called(ctx, viewerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ports.CurrentFeed), args.Error(1)
}

func (m *MockFeedService) Save(ctx context.Context, cmd ports.SaveCmd) (*domain.Update, error) {
	return m.update(m.Called(ctx, cmd))
}

func (m *MockFeedService) Handle(ctx context.Context, req domain.ActionRequest) error {
	return m.Called(ctx, req).Error(0)
}

func (m *MockFeedService) NotifyPostCreated(ctx context.Context, postID int64) error {
	return m.Called(ctx, postID).Error(0)
}

func (m *MockFeedService) Subscribe(viewerID string, fn func(domain.Update)) string {
	args := m.Called(viewerID, fn)
	return args.String(0)
}

func (m *MockFeedService) Unsubscribe(token string) {
	m.Called(token)
}

type MockEmitter struct {
	mock.Mock
}

func (m *MockEmitter) Emit(req domain.ActionRequest) error {
	return m.Called(req).Error(0)
}

// --- HELPERS ---

var netology = auth.Viewer{ID: "user-1", Username: "Netology"}

// asViewer remplace le middleware JWT dans les tests
func asViewer(v auth.Viewer, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(auth.WithViewer(r.Context(), v)))
	})
}

func setup() (*MockFeedService, *MockEmitter, http.Handler) {
	svc := new(MockFeedService)
	em := new(MockEmitter)
	return svc, em, asViewer(netology, NewServer(svc, em).Routes())
}

func do(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// --- TESTS ---

func TestGetFeed(t *testing.T) {
	svc, _, h := setup()
	svc.On("Current", mock.Anything, "user-1").Return(&ports.CurrentFeed{
		Version: 4,
		Rows:    []domain.Row{{ID: 1, Author: "Netology", Likes: "1.2K", Reposts: "0"}},
		State:   domain.FeedState{NewerCount: 2},
	}, nil)

	rec := do(h, http.MethodGet, "/feed", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var got feedDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, int64(4), got.Version)
	assert.Equal(t, int64(2), got.State.NewerCount)
	require.Len(t, got.Rows, 1)
	assert.Equal(t, "1.2K", got.Rows[0].Likes)
}

func TestLoad_RendersOps(t *testing.T) {
	svc, _, h := setup()
	post := domain.Post{ID: 3, Author: "Netology", Content: "Привет", Likes: 2_560_000, Reposted: 999}
	svc.On("Load", mock.Anything, "user-1").Return(&domain.Update{
		ViewerID: "user-1",
		Version:  2,
		Ops:      []domain.Op{domain.RemoveOp(1), domain.MoveOp(2, 0), domain.InsertOp(0, post)},
	}, nil)

	rec := do(h, http.MethodPost, "/feed/load", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var got updateDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got.Ops, 3)
	assert.Equal(t, "remove", got.Ops[0].Kind)
	assert.Nil(t, got.Ops[0].Row)
	assert.Equal(t, opDTO{Kind: "move", From: 2, To: 0}, got.Ops[1])
	require.NotNil(t, got.Ops[2].Row)
	assert.Equal(t, "2.5M", got.Ops[2].Row.Likes)
	assert.Equal(t, "999", got.Ops[2].Row.Reposts)
}

func TestTransitionRoutes(t *testing.T) {
	routes := map[string]string{
		"/feed/refresh": "Refresh",
		"/feed/older":   "LoadOlder",
		"/feed/newer":   "ShowNewer",
	}
	for path, method := range routes {
		t.Run(method, func(t *testing.T) {
			svc, _, h := setup()
			svc.On(method, mock.Anything, "user-1").Return(&domain.Update{Version: 1}, nil)

			rec := do(h, http.MethodPost, path, "")

			assert.Equal(t, http.StatusOK, rec.Code)
			svc.AssertExpectations(t)
		})
	}
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{domain.ErrViewerRequired, http.StatusUnauthorized},
		{domain.ErrPostNotFound, http.StatusNotFound},
		{domain.ErrEmptyContent, http.StatusBadRequest},
		{domain.ErrQueueFull, http.StatusServiceUnavailable},
		{errors.New("pg: connection reset"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			svc, _, h := setup()
			svc.On("Refresh", mock.Anything, "user-1").Return(nil, tc.err)

			rec := do(h, http.MethodPost, "/feed/refresh", "")

			assert.Equal(t, tc.code, rec.Code)
		})
	}
}

func TestCreatePost(t *testing.T) {
	svc, _, h := setup()
	svc.On("Save", mock.Anything, ports.SaveCmd{ViewerID: "user-1", Author: "Netology", Content: "Привет"}).
		Return(&domain.Update{Version: 1}, nil)

	rec := do(h, http.MethodPost, "/posts", `{"content":"Привет"}`)

	assert.Equal(t, http.StatusCreated, rec.Code)
	svc.AssertExpectations(t)
}

func TestEditPost(t *testing.T) {
	svc, _, h := setup()
	svc.On("Save", mock.Anything, ports.SaveCmd{ViewerID: "user-1", Author: "Netology", PostID: 7, Content: "edited"}).
		Return(&domain.Update{Version: 2}, nil)

	rec := do(h, http.MethodPut, "/posts/7", `{"content":"edited"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSavePost_BadRequests(t *testing.T) {
	cases := map[string]struct{ method, path, body string }{
		"invalid json":    {http.MethodPost, "/posts", `{`},
		"missing content": {http.MethodPost, "/posts", `{}`},
		"too long":        {http.MethodPost, "/posts", `{"content":"` + strings.Repeat("a", 5001) + `"}`},
		"bad id":          {http.MethodPut, "/posts/abc", `{"content":"x"}`},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			svc, _, h := setup()

			rec := do(h, tc.method, tc.path, tc.body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			svc.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
		})
	}
}

func TestAction_Enqueued(t *testing.T) {
	_, em, h := setup()
	em.On("Emit", domain.ActionRequest{
		ViewerID: "user-1",
		Action:   domain.Action{Kind: domain.ActionOpenFullScreen, PostID: 5},
	}).Return(nil)

	rec := do(h, http.MethodPost, "/posts/5/actions/open_full_screen", "")

	assert.Equal(t, http.StatusAccepted, rec.Code)
	em.AssertExpectations(t)
}

func TestAction_Rejected(t *testing.T) {
	t.Run("unknown kind", func(t *testing.T) {
		_, em, h := setup()
		rec := do(h, http.MethodPost, "/posts/5/actions/share", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		em.AssertNotCalled(t, "Emit", mock.Anything)
	})

	t.Run("queue full", func(t *testing.T) {
		_, em, h := setup()
		em.On("Emit", mock.Anything).Return(domain.ErrQueueFull)
		rec := do(h, http.MethodPost, "/posts/5/actions/like", "")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}

func TestEvents_StreamsUpdates(t *testing.T) {
	svc, _, h := setup()
	svc.On("Subscribe", "user-1", mock.Anything).Run(func(args mock.Arguments) {
		fn := args.Get(1).(func(domain.Update))
		fn(domain.Update{ViewerID: "user-1", Version: 9, Ops: []domain.Op{domain.RemoveOp(0)}})
	}).Return("token-1")
	unsubscribed := make(chan struct{})
	svc.On("Unsubscribe", "token-1").Run(func(mock.Arguments) { close(unsubscribed) }).Return()

	srv := httptest.NewServer(h)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/feed/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	var data string
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		if line, ok := strings.CutPrefix(scanner.Text(), "data: "); ok {
			data = line
			break
		}
	}
	var got updateDTO
	require.NoError(t, json.Unmarshal([]byte(data), &got))
	assert.Equal(t, int64(9), got.Version)
	assert.Equal(t, "remove", got.Ops[0].Kind)

	cancel()
	<-unsubscribed
}

func TestEvents_RequiresViewer(t *testing.T) {
	svc := new(MockFeedService)
	h := NewServer(svc, new(MockEmitter)).Routes()

	rec := do(h, http.MethodGet, "/feed/events", "")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	svc.AssertNotCalled(t, "Subscribe", mock.Anything, mock.Anything)
}
