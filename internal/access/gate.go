package access

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"graderservice/internal/errdefs"
	"graderservice/internal/logging"
	"graderservice/internal/model"
)

type RoleGetter interface {
	GetRole(ctx context.Context, username string, lectureId uuid.UUID) (*model.Role, error)
}

// Request describes one attempted repository access.
type Request struct {
	Principal      model.Principal
	Lecture        *model.Lecture
	Assignment     *model.Assignment
	Kind           model.RepoKind
	Owner          string
	Write          bool
	RequiredScopes []model.Scope
}

// AllScopes admits any role holder; the per-kind rules still apply.
var AllScopes = []model.Scope{model.ScopeStudent, model.ScopeTutor, model.ScopeInstructor}

type Gate struct {
	roles  RoleGetter
	logger *logging.Logger
}

func NewGate(roles RoleGetter, logger *logging.Logger) *Gate {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Gate{roles: roles, logger: logger}
}

// Authorize returns the caller's role when access is allowed.
// A caller without any role in the lecture gets errdefs.ErrNotFound so the
// lecture's existence is not revealed. A known caller without the needed
// rights gets errdefs.ErrPermissionDenied.
func (g *Gate) Authorize(ctx context.Context, req Request) (*model.Role, error) {
	if req.Principal.IsZero() {
		return nil, errdefs.ErrAuthentication
	}
	if req.Lecture == nil || req.Assignment == nil {
		return nil, fmt.Errorf("%w: missing lecture or assignment", errdefs.ErrNotFound)
	}

	role, err := g.roles.GetRole(ctx, req.Principal.Username, req.Lecture.Id)
	if err != nil {
		if errors.Is(err, errdefs.ErrNotFound) {
			return nil, fmt.Errorf("%w: no role in lecture", errdefs.ErrNotFound)
		}
		return nil, err
	}

	if err := decide(role, req); err != nil {
		g.logger.Debug(ctx, "access denied",
			zap.String("lecture", req.Lecture.Code),
			zap.String("assignment", req.Assignment.Name),
			zap.String("kind", req.Kind.String()),
			zap.Bool("write", req.Write),
			zap.String("scope", role.Scope.String()),
			zap.Error(err),
		)
		return nil, err
	}
	return role, nil
}

func decide(role *model.Role, req Request) error {
	scopes := req.RequiredScopes
	if len(scopes) == 0 {
		scopes = AllScopes
	}
	if !slices.Contains(scopes, role.Scope) {
		return fmt.Errorf("%w: scope %s not permitted", errdefs.ErrPermissionDenied, role.Scope)
	}

	switch req.Kind {
	case model.RepoKindRelease:
		if req.Write {
			if role.Scope != model.ScopeInstructor {
				return fmt.Errorf("%w: release repository is instructor-writable", errdefs.ErrPermissionDenied)
			}
			return nil
		}
		if !req.Assignment.Status.IsReleased() {
			return fmt.Errorf("%w: assignment not released", errdefs.ErrPermissionDenied)
		}
		return nil

	case model.RepoKindSubmission:
		isOwner := req.Owner == role.Username
		if !isOwner && !role.Scope.IsStaff() {
			return fmt.Errorf("%w: not the repository owner", errdefs.ErrPermissionDenied)
		}
		if req.Write && !role.Scope.IsStaff() && isClosed(req) {
			return fmt.Errorf("%w: submissions are closed", errdefs.ErrPermissionDenied)
		}
		return nil

	default:
		return fmt.Errorf("%w: unknown repository kind", errdefs.ErrNotFound)
	}
}

func isClosed(req Request) bool {
	return req.Lecture.Complete || req.Assignment.Status == model.AssignmentStatusComplete
}
