package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/require"

	"github.com/pribylovaa/go-discussions/internal/metrics"
	"github.com/pribylovaa/go-discussions/internal/models"
	"github.com/pribylovaa/go-discussions/internal/service"
	"github.com/pribylovaa/go-discussions/internal/thread"
	"github.com/pribylovaa/go-discussions/internal/transport/http/apierrors"
	"github.com/pribylovaa/go-discussions/internal/transport/http/handlers"
	"github.com/pribylovaa/go-discussions/internal/transport/http/middleware"
)

// Тесты роутера: маршруты, аутентификация, (де)сериализация DTO и маппинг ошибок
// поверх фейковых сервисов.

const secret = "router-secret"

var (
	t0       = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	testAuth = middleware.AuthConfig{Secret: secret, Issuer: "auth-service", Audience: []string{"discussions-service"}}
)

type fakeComments struct {
	create  func(in service.CreateCommentInput) (*models.Comment, error)
	byID    func(id uuid.UUID) (*models.Comment, error)
	thread  func() ([]*thread.Node, error)
	update  func(in service.UpdateCommentInput) (*models.Comment, error)
	del     func(id, requester uuid.UUID) (*models.Comment, error)
	restore func(id, requester uuid.UUID) (*models.Comment, error)
}

func (f *fakeComments) CreateComment(_ context.Context, in service.CreateCommentInput) (*models.Comment, error) {
	return f.create(in)
}

func (f *fakeComments) CommentByID(_ context.Context, id uuid.UUID) (*models.Comment, error) {
	return f.byID(id)
}

func (f *fakeComments) Thread(context.Context) ([]*thread.Node, error) { return f.thread() }

func (f *fakeComments) UpdateComment(_ context.Context, in service.UpdateCommentInput) (*models.Comment, error) {
	return f.update(in)
}

func (f *fakeComments) DeleteComment(_ context.Context, id, requester uuid.UUID) (*models.Comment, error) {
	return f.del(id, requester)
}

func (f *fakeComments) RestoreComment(_ context.Context, id, requester uuid.UUID) (*models.Comment, error) {
	return f.restore(id, requester)
}

func (f *fakeComments) Deadlines(c models.Comment) (time.Time, *time.Time) {
	var restore *time.Time
	if c.DeletedAt != nil {
		r := c.DeletedAt.Add(15 * time.Minute)
		restore = &r
	}
	return c.CreatedAt.Add(15 * time.Minute), restore
}

type fakeNotifications struct {
	list   func(user uuid.UUID) ([]models.NotificationView, error)
	unread func(user uuid.UUID) (int, error)
	mark   func(id, caller uuid.UUID, read bool) (*models.Notification, error)
}

func (f *fakeNotifications) ListForUser(_ context.Context, user uuid.UUID) ([]models.NotificationView, error) {
	return f.list(user)
}

func (f *fakeNotifications) UnreadCount(_ context.Context, user uuid.UUID) (int, error) {
	return f.unread(user)
}

func (f *fakeNotifications) MarkRead(_ context.Context, id, caller uuid.UUID) (*models.Notification, error) {
	return f.mark(id, caller, true)
}

func (f *fakeNotifications) MarkUnread(_ context.Context, id, caller uuid.UUID) (*models.Notification, error) {
	return f.mark(id, caller, false)
}

func newTestRouter(c *fakeComments, n *fakeNotifications, opts Options) http.Handler {
	opts.BasePath = "/api"
	opts.Auth = testAuth
	return NewRouter(handlers.New(c, n), opts)
}

func bearer(t *testing.T, uid uuid.UUID, name string) string {
	t.Helper()
	now := time.Now()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"uid":  uid.String(),
		"name": name,
		"sub":  uid.String(),
		"iss":  "auth-service",
		"aud":  []string{"discussions-service"},
		"iat":  now.Unix(),
		"exp":  now.Add(time.Minute).Unix(),
	}).SignedString([]byte(secret))
	require.NoError(t, err)
	return "Bearer " + tok
}

func do(t *testing.T, h http.Handler, method, target, auth, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func errCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var env apierrors.ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	require.NotEmpty(t, env.Error.RequestID)
	return env.Error.Code
}

func comment(author uuid.UUID, parent *uuid.UUID, content string) models.Comment {
	return models.Comment{
		ID: uuid.New(), ParentID: parent, AuthorID: author, AuthorName: "alice",
		Content: content, CreatedAt: t0, UpdatedAt: t0,
	}
}

func TestRouter_OperationalEndpoints(t *testing.T) {
	ready := false
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	h := newTestRouter(&fakeComments{}, &fakeNotifications{}, Options{
		Metrics:        m,
		Ready:          func() bool { return ready },
		MetricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	})

	rr := do(t, h, http.MethodGet, "/livez", "", "")
	require.Equal(t, http.StatusOK, rr.Code)

	rr = do(t, h, http.MethodGet, "/healthz", "", "")
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)

	ready = true
	rr = do(t, h, http.MethodGet, "/healthz", "", "")
	require.Equal(t, http.StatusOK, rr.Code)

	rr = do(t, h, http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), "discussions_http_requests_total")
}

func TestRouter_RequiresAuth(t *testing.T) {
	h := newTestRouter(&fakeComments{}, &fakeNotifications{}, Options{})

	for _, tc := range []struct{ method, target string }{
		{http.MethodGet, "/api/comments"},
		{http.MethodPost, "/api/comments"},
		{http.MethodGet, "/api/notifications"},
		{http.MethodPatch, "/api/notifications/" + uuid.NewString() + "/read"},
	} {
		rr := do(t, h, tc.method, tc.target, "", "")
		require.Equal(t, http.StatusUnauthorized, rr.Code, tc.target)
		require.Equal(t, "unauthenticated", errCode(t, rr))
	}
}

func TestRouter_CreateComment(t *testing.T) {
	alice := uuid.New()
	parent := uuid.New()

	var got service.CreateCommentInput
	c := &fakeComments{create: func(in service.CreateCommentInput) (*models.Comment, error) {
		got = in
		m := comment(in.AuthorID, in.ParentID, in.Content)
		return &m, nil
	}}
	h := newTestRouter(c, &fakeNotifications{}, Options{})

	rr := do(t, h, http.MethodPost, "/api/comments", bearer(t, alice, "alice"),
		`{"content":"hello","parent_id":"`+parent.String()+`"}`)
	require.Equal(t, http.StatusCreated, rr.Code)

	require.Equal(t, alice, got.AuthorID)
	require.Equal(t, "alice", got.AuthorName)
	require.Equal(t, "hello", got.Content)
	require.NotNil(t, got.ParentID)
	require.Equal(t, parent, *got.ParentID)

	var out handlers.Comment
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	require.Equal(t, "hello", out.Content)
	require.Equal(t, alice, out.AuthorID)
	require.Equal(t, t0.Add(15*time.Minute), out.EditDeadline)
	require.Nil(t, out.RestoreDeadline)
	require.Nil(t, out.DeletedAt)
}

func TestRouter_CreateComment_BadRequests(t *testing.T) {
	alice := uuid.New()
	c := &fakeComments{create: func(in service.CreateCommentInput) (*models.Comment, error) {
		return nil, service.ErrInvalidArgument
	}}
	h := newTestRouter(c, &fakeNotifications{}, Options{})
	auth := bearer(t, alice, "alice")

	for _, body := range []string{
		`{"content":`,
		`{"content":"x","author_id":"` + uuid.NewString() + `"}`, // автор берётся только из токена
		`{"content":"x","parent_id":"nope"}`,
		`{"content":"x"} {"content":"y"}`,
		`{"content":"   "}`,
	} {
		rr := do(t, h, http.MethodPost, "/api/comments", auth, body)
		require.Equal(t, http.StatusBadRequest, rr.Code, body)
		require.Equal(t, "invalid_argument", errCode(t, rr))
	}
}

func TestRouter_CreateComment_ParentNotFound(t *testing.T) {
	c := &fakeComments{create: func(service.CreateCommentInput) (*models.Comment, error) {
		return nil, service.ErrParentNotFound
	}}
	h := newTestRouter(c, &fakeNotifications{}, Options{})

	rr := do(t, h, http.MethodPost, "/api/comments", bearer(t, uuid.New(), "a"),
		`{"content":"x","parent_id":"`+uuid.NewString()+`"}`)
	require.Equal(t, http.StatusNotFound, rr.Code)
	require.Equal(t, "parent_not_found", errCode(t, rr))
}

func TestRouter_ListComments_Forest(t *testing.T) {
	alice := uuid.New()
	root := comment(alice, nil, "root")
	deletedAt := t0.Add(time.Minute)
	root.DeletedAt = &deletedAt
	reply := comment(uuid.New(), &root.ID, "reply")
	other := comment(alice, nil, "other")

	c := &fakeComments{thread: func() ([]*thread.Node, error) {
		return thread.Build([]models.Comment{root, reply, other}), nil
	}}
	h := newTestRouter(c, &fakeNotifications{}, Options{})

	rr := do(t, h, http.MethodGet, "/api/comments", bearer(t, alice, "alice"), "")
	require.Equal(t, http.StatusOK, rr.Code)

	var out handlers.CommentsResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	require.Equal(t, 3, out.Total)
	require.Len(t, out.Comments, 2)
	require.Equal(t, root.ID, out.Comments[0].ID)
	require.NotNil(t, out.Comments[0].RestoreDeadline)
	require.Equal(t, deletedAt.Add(15*time.Minute), *out.Comments[0].RestoreDeadline)
	require.Len(t, out.Comments[0].Replies, 1)
	require.Equal(t, reply.ID, out.Comments[0].Replies[0].ID)
	require.Empty(t, out.Comments[1].Replies)

	// replies — всегда массив, даже пустой.
	require.Contains(t, rr.Body.String(), `"replies":[]`)
}

func TestRouter_GetComment(t *testing.T) {
	existing := comment(uuid.New(), nil, "x")
	c := &fakeComments{byID: func(id uuid.UUID) (*models.Comment, error) {
		if id == existing.ID {
			return &existing, nil
		}
		return nil, service.ErrNotFound
	}}
	h := newTestRouter(c, &fakeNotifications{}, Options{})
	auth := bearer(t, uuid.New(), "bob")

	rr := do(t, h, http.MethodGet, "/api/comments/"+existing.ID.String(), auth, "")
	require.Equal(t, http.StatusOK, rr.Code)

	rr = do(t, h, http.MethodGet, "/api/comments/"+uuid.NewString(), auth, "")
	require.Equal(t, http.StatusNotFound, rr.Code)
	require.Equal(t, "not_found", errCode(t, rr))

	rr = do(t, h, http.MethodGet, "/api/comments/not-a-uuid", auth, "")
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRouter_UpdateComment_Errors(t *testing.T) {
	alice := uuid.New()
	id := uuid.New()

	var got service.UpdateCommentInput
	results := []error{nil, service.ErrEditWindowExpired, service.ErrForbidden}
	c := &fakeComments{update: func(in service.UpdateCommentInput) (*models.Comment, error) {
		got = in
		err := results[0]
		results = results[1:]
		if err != nil {
			return nil, err
		}
		m := comment(alice, nil, in.Content)
		m.ID = in.ID
		return &m, nil
	}}
	h := newTestRouter(c, &fakeNotifications{}, Options{})
	auth := bearer(t, alice, "alice")

	rr := do(t, h, http.MethodPatch, "/api/comments/"+id.String(), auth, `{"content":"v2"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, id, got.ID)
	require.Equal(t, alice, got.RequesterID)
	require.Equal(t, "v2", got.Content)

	rr = do(t, h, http.MethodPatch, "/api/comments/"+id.String(), auth, `{"content":"v3"}`)
	require.Equal(t, http.StatusForbidden, rr.Code)
	require.Equal(t, "edit_window_expired", errCode(t, rr))

	rr = do(t, h, http.MethodPatch, "/api/comments/"+id.String(), auth, `{"content":"v3"}`)
	require.Equal(t, http.StatusForbidden, rr.Code)
	require.Equal(t, "forbidden", errCode(t, rr))
}

func TestRouter_DeleteRestore(t *testing.T) {
	alice := uuid.New()
	stored := comment(alice, nil, "x")

	c := &fakeComments{
		del: func(id, requester uuid.UUID) (*models.Comment, error) {
			require.Equal(t, stored.ID, id)
			require.Equal(t, alice, requester)
			at := t0.Add(time.Minute)
			stored.DeletedAt = &at
			out := stored
			return &out, nil
		},
		restore: func(id, requester uuid.UUID) (*models.Comment, error) {
			return nil, service.ErrRestoreWindowExpired
		},
	}
	h := newTestRouter(c, &fakeNotifications{}, Options{})
	auth := bearer(t, alice, "alice")

	rr := do(t, h, http.MethodDelete, "/api/comments/"+stored.ID.String(), auth, "")
	require.Equal(t, http.StatusOK, rr.Code)

	var out handlers.Comment
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	require.NotNil(t, out.DeletedAt)
	require.NotNil(t, out.RestoreDeadline)
	require.Equal(t, t0.Add(16*time.Minute), *out.RestoreDeadline)

	rr = do(t, h, http.MethodPatch, "/api/comments/"+stored.ID.String()+"/restore", auth, "")
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, "restore_window_expired", errCode(t, rr))
}

func TestRouter_Notifications(t *testing.T) {
	alice, bob := uuid.New(), uuid.New()
	reply := comment(bob, nil, "reply")
	reply.AuthorName = "bob"
	nid := uuid.New()

	n := &fakeNotifications{
		list: func(user uuid.UUID) ([]models.NotificationView, error) {
			require.Equal(t, alice, user)
			return []models.NotificationView{{
				Notification: models.Notification{ID: nid, UserID: alice, CommentID: reply.ID, CreatedAt: t0},
				Comment:      reply,
			}}, nil
		},
		unread: func(user uuid.UUID) (int, error) { return 1, nil },
		mark: func(id, caller uuid.UUID, read bool) (*models.Notification, error) {
			if caller != alice {
				return nil, service.ErrForbidden
			}
			return &models.Notification{ID: id, UserID: alice, CommentID: reply.ID, IsRead: read, CreatedAt: t0}, nil
		},
	}
	h := newTestRouter(&fakeComments{}, n, Options{})
	auth := bearer(t, alice, "alice")

	rr := do(t, h, http.MethodGet, "/api/notifications", auth, "")
	require.Equal(t, http.StatusOK, rr.Code)
	var list handlers.NotificationsResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))
	require.Len(t, list.Notifications, 1)
	require.NotNil(t, list.Notifications[0].Comment)
	require.Equal(t, "bob", list.Notifications[0].Comment.Author.Name)
	require.Equal(t, bob, list.Notifications[0].Comment.Author.ID)
	require.False(t, list.Notifications[0].IsRead)

	rr = do(t, h, http.MethodGet, "/api/notifications/unread-count", auth, "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"count":1}`, rr.Body.String())

	rr = do(t, h, http.MethodPatch, "/api/notifications/"+nid.String()+"/read", auth, "")
	require.Equal(t, http.StatusOK, rr.Code)
	var marked handlers.Notification
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &marked))
	require.True(t, marked.IsRead)

	rr = do(t, h, http.MethodPatch, "/api/notifications/"+nid.String()+"/unread", auth, "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &marked))
	require.False(t, marked.IsRead)

	rr = do(t, h, http.MethodPatch, "/api/notifications/"+nid.String()+"/read", bearer(t, bob, "bob"), "")
	require.Equal(t, http.StatusForbidden, rr.Code)
	require.Equal(t, "forbidden", errCode(t, rr))
}
