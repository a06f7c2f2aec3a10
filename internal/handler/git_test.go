package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"graderservice/internal/access"
	"graderservice/internal/ctxdata"
	"graderservice/internal/errdefs"
	"graderservice/internal/gitproto"
	"graderservice/internal/lifecycle"
	"graderservice/internal/logging"
	"graderservice/internal/model"
)

// ── helpers ─────────────────────────────────────────────────────────

type fakeResolver struct {
	resolveErr error
	exists     bool
	ensureErr  error
	applied    []model.RefUpdate

	params  []model.RouteParams
	ensured int
}

func (f *fakeResolver) Resolve(_ context.Context, params model.RouteParams, kind model.RepoKind) (*model.RepoLocation, error) {
	f.params = append(f.params, params)
	if f.resolveErr != nil {
		return nil, f.resolveErr
	}
	return &model.RepoLocation{
		Lecture:    &model.Lecture{Id: uuid.New(), Code: params.LectureCode},
		Assignment: &model.Assignment{Id: uuid.New(), Name: params.AssignmentName, Status: model.AssignmentStatusReleased},
		Kind:       kind,
		Owner:      params.Username,
		Path:       "/nonexistent",
	}, nil
}

func (f *fakeResolver) Exists(*model.RepoLocation) bool { return f.exists }

func (f *fakeResolver) EnsureExists(context.Context, *model.RepoLocation) error {
	f.ensured++
	return f.ensureErr
}

func (f *fakeResolver) ReconcilePush(context.Context, *model.RepoLocation, []model.RefUpdate) ([]model.RefUpdate, error) {
	return f.applied, nil
}

func (f *fakeResolver) DefaultBranch() string { return "main" }

type fakeGate struct {
	err      error
	requests []access.Request
}

func (g *fakeGate) Authorize(_ context.Context, req access.Request) (*model.Role, error) {
	g.requests = append(g.requests, req)
	if g.err != nil {
		return nil, g.err
	}
	return &model.Role{Username: req.Principal.Username, Scope: model.ScopeInstructor}, nil
}

type recordingPushes struct {
	pushes []lifecycle.Push
	err    error
}

func (p *recordingPushes) OnPushAccepted(_ context.Context, push lifecycle.Push) error {
	p.pushes = append(p.pushes, push)
	return p.err
}

func newTestHandler(resolver *fakeResolver, gate *fakeGate, pushes *recordingPushes, logger *logging.Logger) http.Handler {
	h := NewGitHandler(resolver, gate,
		gitproto.NewSmartServer(gitproto.NewRunner("git", 0, 1, logger), logger),
		gitproto.NewDumbServer(logger),
		pushes, logger)
	auth := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := ctxdata.WithPrincipal(r.Context(), model.Principal{Username: "alice"})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
	r := chi.NewRouter()
	r.Route("/lectures/{lecture_code}/assignments/{assignment_name}", func(r chi.Router) {
		h.RegisterRoutes(r, auth)
	})
	return r
}

func serve(h http.Handler, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

// ── routing ─────────────────────────────────────────────────────────

func TestSplitRoute(t *testing.T) {
	tests := []struct {
		rest     string
		username string
		rel      string
	}{
		{"info/refs", "", "info/refs"},
		{"objects/ab/cdef", "", "objects/ab/cdef"},
		{"HEAD", "", "HEAD"},
		{"packed-refs", "", "packed-refs"},
		{"git-upload-pack", "", "git-upload-pack"},
		{"git-receive-pack", "", "git-receive-pack"},
		{"bob/info/refs", "bob", "info/refs"},
		{"bob/git-receive-pack", "bob", "git-receive-pack"},
		{"bob/objects/info/packs", "bob", "objects/info/packs"},
		{"bob", "bob", ""},
	}

	for _, tc := range tests {
		t.Run(tc.rest, func(t *testing.T) {
			rctx := chi.NewRouteContext()
			rctx.URLParams.Add("lecture_code", "iv21s")
			rctx.URLParams.Add("assignment_name", "assign_1")
			rctx.URLParams.Add("*", tc.rest)
			r := httptest.NewRequest("GET", "/", nil)
			r = r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))

			params, rel := splitRoute(r)
			assert.Equal(t, "iv21s", params.LectureCode)
			assert.Equal(t, "assign_1", params.AssignmentName)
			assert.Equal(t, tc.username, params.Username)
			assert.Equal(t, tc.rel, rel)
		})
	}
}

func TestPickRevision(t *testing.T) {
	const (
		a = "1111111111111111111111111111111111111111"
		b = "2222222222222222222222222222222222222222"
		c = "3333333333333333333333333333333333333333"
	)

	tests := []struct {
		name    string
		updates []model.RefUpdate
		want    string
		ok      bool
	}{
		{"empty", nil, "", false},
		{"only deletes", []model.RefUpdate{{Old: a, New: model.ZeroHash, Name: "refs/heads/main"}}, "", false},
		{"default branch wins", []model.RefUpdate{
			{Old: model.ZeroHash, New: a, Name: "refs/tags/v1"},
			{Old: model.ZeroHash, New: b, Name: "refs/heads/feature"},
			{Old: model.ZeroHash, New: c, Name: "refs/heads/main"},
		}, c, true},
		{"branch before tag", []model.RefUpdate{
			{Old: model.ZeroHash, New: a, Name: "refs/tags/v1"},
			{Old: model.ZeroHash, New: b, Name: "refs/heads/feature"},
		}, b, true},
		{"tag only", []model.RefUpdate{{Old: model.ZeroHash, New: a, Name: "refs/tags/v1"}}, a, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := pickRevision(tc.updates, "refs/heads/main")
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got.New)
		})
	}
}

func TestMapErr(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"NotFound", errdefs.ErrNotFound, http.StatusNotFound},
		{"PathEscape", errdefs.ErrPathEscape, http.StatusNotFound},
		{"PermissionDenied", errdefs.ErrPermissionDenied, http.StatusForbidden},
		{"Authentication", errdefs.ErrAuthentication, http.StatusUnauthorized},
		{"BadRequest", errdefs.ErrBadRequest, http.StatusBadRequest},
		{"Conflict", errdefs.ErrConflict, http.StatusConflict},
		{"Storage", errdefs.ErrStorage, http.StatusInternalServerError},
		{"Wrapped", errors.Join(errors.New("lecture"), errdefs.ErrNotFound), http.StatusNotFound},
		{"Unknown", errors.New("unknown"), http.StatusInternalServerError},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, mapErr(tc.err))
		})
	}
}

// ── GitHandler ──────────────────────────────────────────────────────

func TestGitHandler_Guard(t *testing.T) {
	const base = "/lectures/iv21s/assignments/assign_1"

	t.Run("unknown service", func(t *testing.T) {
		resolver := &fakeResolver{exists: true}
		rec := serve(newTestHandler(resolver, &fakeGate{}, nil, nil), "GET", base+"/info/refs?service=git-archive")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Empty(t, resolver.params)
	})

	t.Run("gate decision is passed through", func(t *testing.T) {
		for _, tc := range []struct {
			err  error
			code int
		}{
			{errdefs.ErrNotFound, http.StatusNotFound},
			{errdefs.ErrPermissionDenied, http.StatusForbidden},
		} {
			resolver := &fakeResolver{exists: true}
			rec := serve(newTestHandler(resolver, &fakeGate{err: tc.err}, nil, nil), "GET", base+"/info/refs?service=git-receive-pack")
			assert.Equal(t, tc.code, rec.Code)
			assert.Zero(t, resolver.ensured)
		}
	})

	t.Run("write advertisement on release", func(t *testing.T) {
		resolver := &fakeResolver{ensureErr: errdefs.ErrStorage}
		gate := &fakeGate{}
		rec := serve(newTestHandler(resolver, gate, nil, nil), "GET", base+"/info/refs?service=git-receive-pack")

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, 1, resolver.ensured)
		require.Len(t, gate.requests, 1)
		assert.True(t, gate.requests[0].Write)
		assert.Equal(t, model.RepoKindRelease, gate.requests[0].Kind)
		assert.Equal(t, "alice", gate.requests[0].Principal.Username)
	})

	t.Run("read of missing repository is not created", func(t *testing.T) {
		resolver := &fakeResolver{}
		gate := &fakeGate{}
		rec := serve(newTestHandler(resolver, gate, nil, nil), "GET", base+"/bob/info/refs?service=git-upload-pack")

		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Zero(t, resolver.ensured)
		require.Len(t, gate.requests, 1)
		assert.False(t, gate.requests[0].Write)
		assert.Equal(t, model.RepoKindSubmission, gate.requests[0].Kind)
		assert.Equal(t, "bob", gate.requests[0].Owner)
	})

	t.Run("rpc on missing repository", func(t *testing.T) {
		resolver := &fakeResolver{}
		rec := serve(newTestHandler(resolver, &fakeGate{}, nil, nil), "POST", base+"/bob/git-receive-pack")
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Zero(t, resolver.ensured)
	})

	t.Run("unknown post target", func(t *testing.T) {
		resolver := &fakeResolver{exists: true}
		rec := serve(newTestHandler(resolver, &fakeGate{}, nil, nil), "POST", base+"/bob/git-archive")
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Empty(t, resolver.params)
	})

	t.Run("non-git file", func(t *testing.T) {
		resolver := &fakeResolver{exists: true}
		rec := serve(newTestHandler(resolver, &fakeGate{}, nil, nil), "GET", base+"/config")
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Empty(t, resolver.params)
	})

	t.Run("path escape is logged", func(t *testing.T) {
		core, logs := observer.New(zap.WarnLevel)
		resolver := &fakeResolver{resolveErr: errors.Join(errors.New("resolve"), errdefs.ErrPathEscape)}
		rec := serve(newTestHandler(resolver, &fakeGate{}, nil, logging.New(zap.New(core))), "GET", base+"/evil/HEAD")

		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Len(t, logs.FilterMessage("path escape attempt").All(), 1)
	})
}

func TestPushListener(t *testing.T) {
	const rev = "1111111111111111111111111111111111111111"
	loc := &model.RepoLocation{Kind: model.RepoKindSubmission, Owner: "bob", Path: "/nonexistent"}
	role := &model.Role{Username: "alice", Scope: model.ScopeTutor}

	t.Run("forwards the pushed revision", func(t *testing.T) {
		pushes := &recordingPushes{}
		resolver := &fakeResolver{applied: []model.RefUpdate{{Old: model.ZeroHash, New: rev, Name: "refs/heads/main"}}}
		h := NewGitHandler(resolver, &fakeGate{}, nil, nil, pushes, nil)
		l := &pushListener{h: h, principal: model.Principal{Username: "alice"}, role: role}

		err := l.PushCompleted(context.Background(), loc, resolver.applied)
		require.NoError(t, err)
		require.Len(t, pushes.pushes, 1)
		assert.Equal(t, rev, pushes.pushes[0].Revision)
		assert.Equal(t, "refs/heads/main", pushes.pushes[0].Ref)
		assert.Equal(t, role, pushes.pushes[0].Role)
		assert.Same(t, loc, pushes.pushes[0].Location)
	})

	t.Run("rejected refs skip lifecycle", func(t *testing.T) {
		pushes := &recordingPushes{}
		h := NewGitHandler(&fakeResolver{}, &fakeGate{}, nil, nil, pushes, nil)
		l := &pushListener{h: h, role: role}

		err := l.PushCompleted(context.Background(), loc, []model.RefUpdate{{Old: model.ZeroHash, New: rev, Name: "refs/heads/main"}})
		require.NoError(t, err)
		assert.Empty(t, pushes.pushes)
	})

	t.Run("lifecycle failure is returned", func(t *testing.T) {
		pushes := &recordingPushes{err: errdefs.ErrStorage}
		resolver := &fakeResolver{applied: []model.RefUpdate{{Old: model.ZeroHash, New: rev, Name: "refs/heads/main"}}}
		h := NewGitHandler(resolver, &fakeGate{}, nil, nil, pushes, nil)
		l := &pushListener{h: h, role: role}

		err := l.PushCompleted(context.Background(), loc, resolver.applied)
		assert.ErrorIs(t, err, errdefs.ErrStorage)
	})
}
