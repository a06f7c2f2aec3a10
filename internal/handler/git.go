package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"graderservice/internal/access"
	"graderservice/internal/ctxdata"
	"graderservice/internal/errdefs"
	"graderservice/internal/gitproto"
	"graderservice/internal/lifecycle"
	"graderservice/internal/logging"
	"graderservice/internal/model"
)

type Resolver interface {
	Resolve(ctx context.Context, params model.RouteParams, kind model.RepoKind) (*model.RepoLocation, error)
	Exists(loc *model.RepoLocation) bool
	EnsureExists(ctx context.Context, loc *model.RepoLocation) error
	ReconcilePush(ctx context.Context, loc *model.RepoLocation, updates []model.RefUpdate) ([]model.RefUpdate, error)
	DefaultBranch() string
}

type Authorizer interface {
	Authorize(ctx context.Context, req access.Request) (*model.Role, error)
}

type PushHandler interface {
	OnPushAccepted(ctx context.Context, push lifecycle.Push) error
}

// First path segments after the assignment name that address the release
// repository itself rather than a student's submission repository.
var releaseSegments = map[string]struct{}{
	"info":             {},
	"objects":          {},
	"HEAD":             {},
	"packed-refs":      {},
	"git-upload-pack":  {},
	"git-receive-pack": {},
}

// GitHandler serves release and submission repositories over the smart and
// dumb HTTP protocols.
type GitHandler struct {
	resolver Resolver
	gate     Authorizer
	smart    *gitproto.SmartServer
	dumb     *gitproto.DumbServer
	pushes   PushHandler
	logger   *logging.Logger
}

func NewGitHandler(resolver Resolver, gate Authorizer, smart *gitproto.SmartServer, dumb *gitproto.DumbServer, pushes PushHandler, logger *logging.Logger) *GitHandler {
	if logger == nil {
		logger = logging.Nop()
	}
	return &GitHandler{
		resolver: resolver,
		gate:     gate,
		smart:    smart,
		dumb:     dumb,
		pushes:   pushes,
		logger:   logger,
	}
}

// RegisterRoutes expects to be mounted below
// /lectures/{lecture_code}/assignments/{assignment_name}.
func (h *GitHandler) RegisterRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler) {
	r.With(authMiddleware).Group(func(r chi.Router) {
		r.Get("/*", h.Get)
		r.Head("/*", h.Get)
		r.Post("/*", h.Post)
	})
}

// splitRoute applies the ambiguity rule: a reserved first segment selects
// the release repository, anything else is the owner of a submission.
func splitRoute(r *http.Request) (model.RouteParams, string) {
	params := model.RouteParams{
		LectureCode:    routeParam(r, "lecture_code"),
		AssignmentName: routeParam(r, "assignment_name"),
	}
	rest := routeParam(r, "*")
	first, tail, _ := strings.Cut(rest, "/")
	if _, ok := releaseSegments[first]; ok {
		return params, rest
	}
	params.Username = first
	return params, tail
}

func (h *GitHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	params, rel := splitRoute(r)

	if rel == "info/refs" && r.URL.Query().Has("service") {
		svc, err := gitproto.ParseService(r.URL.Query().Get("service"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		loc, _, err := h.guard(ctx, params, svc.IsWrite())
		if err != nil {
			h.deny(w, r, err)
			return
		}
		if svc.IsWrite() {
			if err := h.resolver.EnsureExists(ctx, loc); err != nil {
				h.deny(w, r, err)
				return
			}
		} else if !h.resolver.Exists(loc) {
			http.NotFound(w, r)
			return
		}
		h.smart.ServeInfoRefs(w, r, svc, loc)
		return
	}

	if rel != "info/packs" && !gitproto.IsDumbPath(rel) {
		http.NotFound(w, r)
		return
	}
	loc, _, err := h.guard(ctx, params, false)
	if err != nil {
		h.deny(w, r, err)
		return
	}
	if !h.resolver.Exists(loc) {
		http.NotFound(w, r)
		return
	}
	h.dumb.ServeFile(w, r, loc, rel)
}

func (h *GitHandler) Post(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	params, rel := splitRoute(r)

	svc, err := gitproto.ParseService(rel)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	loc, role, err := h.guard(ctx, params, svc.IsWrite())
	if err != nil {
		h.deny(w, r, err)
		return
	}
	if !h.resolver.Exists(loc) {
		http.NotFound(w, r)
		return
	}

	var listener gitproto.PushListener
	if svc == gitproto.ReceivePack {
		principal, _ := ctxdata.GetPrincipal(ctx)
		listener = &pushListener{h: h, principal: principal, role: role}
	}
	h.smart.ServeRPC(w, r, svc, loc, listener)
}

// guard resolves the repository and checks access. It never touches the
// filesystem beyond path resolution.
func (h *GitHandler) guard(ctx context.Context, params model.RouteParams, write bool) (*model.RepoLocation, *model.Role, error) {
	principal, ok := ctxdata.GetPrincipal(ctx)
	if !ok {
		return nil, nil, errdefs.ErrAuthentication
	}
	loc, err := h.resolver.Resolve(ctx, params, params.Kind())
	if err != nil {
		return nil, nil, err
	}
	role, err := h.gate.Authorize(ctx, access.Request{
		Principal:  principal,
		Lecture:    loc.Lecture,
		Assignment: loc.Assignment,
		Kind:       loc.Kind,
		Owner:      loc.Owner,
		Write:      write,
	})
	if err != nil {
		return nil, nil, err
	}
	return loc, role, nil
}

func (h *GitHandler) deny(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	status := mapErr(err)
	switch {
	case errors.Is(err, errdefs.ErrPathEscape):
		h.logger.Warn(ctx, "path escape attempt",
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	case status == http.StatusInternalServerError:
		h.logger.Error(ctx, "git request failed",
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	default:
		h.logger.Debug(ctx, "git request rejected",
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Error(err),
		)
	}
	http.Error(w, http.StatusText(status), status)
}

type pushListener struct {
	h         *GitHandler
	principal model.Principal
	role      *model.Role
}

// PushCompleted runs after receive-pack exited zero and before the client
// sees the end of the response.
func (l *pushListener) PushCompleted(ctx context.Context, loc *model.RepoLocation, commands []model.RefUpdate) error {
	if commands == nil {
		l.h.logger.Warn(ctx, "push commands unavailable, skipping bookkeeping", zap.String("repo", loc.Path))
		return nil
	}
	applied, err := l.h.resolver.ReconcilePush(ctx, loc, commands)
	if err != nil {
		return err
	}
	update, ok := pickRevision(applied, "refs/heads/"+l.h.resolver.DefaultBranch())
	if !ok {
		l.h.logger.Debug(ctx, "push created no revisions", zap.Int("commands", len(commands)))
		return nil
	}
	return l.h.pushes.OnPushAccepted(ctx, lifecycle.Push{
		Location:  loc,
		Principal: l.principal,
		Role:      l.role,
		Ref:       update.Name,
		Revision:  update.New,
	})
}

// pickRevision prefers the default branch, then any other branch, then
// whatever non-deleting update came first.
func pickRevision(updates []model.RefUpdate, defaultRef string) (model.RefUpdate, bool) {
	var branch, other *model.RefUpdate
	for i := range updates {
		u := &updates[i]
		if u.IsDelete() {
			continue
		}
		if u.Name == defaultRef {
			return *u, true
		}
		if branch == nil && strings.HasPrefix(u.Name, "refs/heads/") {
			branch = u
		}
		if other == nil {
			other = u
		}
	}
	if branch != nil {
		return *branch, true
	}
	if other != nil {
		return *other, true
	}
	return model.RefUpdate{}, false
}
