package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"graderservice/internal/access"
	"graderservice/internal/ctxdata"
	"graderservice/internal/errdefs"
	"graderservice/internal/logging"
	"graderservice/internal/model"
)

type AssignmentLifecycle interface {
	AdvanceAssignment(ctx context.Context, assignment *model.Assignment, to model.AssignmentStatus, actor *model.Role, revert bool) error
}

type SubmissionLister interface {
	ListActiveSubmissions(ctx context.Context, assignmentId uuid.UUID) ([]*model.Submission, error)
}

// AssignmentHandler is the staff-facing JSON API next to the git routes.
type AssignmentHandler struct {
	resolver    Resolver
	gate        Authorizer
	lifecycle   AssignmentLifecycle
	submissions SubmissionLister
}

func NewAssignmentHandler(resolver Resolver, gate Authorizer, lifecycle AssignmentLifecycle, submissions SubmissionLister) *AssignmentHandler {
	return &AssignmentHandler{
		resolver:    resolver,
		gate:        gate,
		lifecycle:   lifecycle,
		submissions: submissions,
	}
}

// RegisterRoutes expects to be mounted below
// /api/lectures/{lecture_code}/assignments/{assignment_name}.
func (h *AssignmentHandler) RegisterRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler) {
	r.With(authMiddleware).Group(func(r chi.Router) {
		r.Post("/status", h.UpdateStatus)
		r.Get("/submissions", h.ListSubmissions)
	})
}

type updateStatusRequest struct {
	Status string `json:"status"`
	Revert bool   `json:"revert"`
}

type assignmentResponse struct {
	Id     uuid.UUID `json:"id"`
	Name   string    `json:"name"`
	Status string    `json:"status"`
}

func (h *AssignmentHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req updateStatusRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		if logger, ok := logging.GetFromContext(ctx); ok {
			logger.Error(ctx, "Failed to parse request body", zap.Error(err))
		}
		writeErrorJSON(w, http.StatusBadRequest, "invalid request body")
		return
	}

	loc, role, err := h.authorize(ctx, r, model.RepoKindRelease, true, []model.Scope{model.ScopeInstructor})
	if err != nil {
		h.fail(ctx, w, err)
		return
	}

	to := model.AssignmentStatus(req.Status)
	if err := h.lifecycle.AdvanceAssignment(ctx, loc.Assignment, to, role, req.Revert); err != nil {
		h.fail(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, assignmentResponse{
		Id:     loc.Assignment.Id,
		Name:   loc.Assignment.Name,
		Status: loc.Assignment.Status.String(),
	})
}

type submissionResponse struct {
	Id             uuid.UUID `json:"id"`
	Username       string    `json:"username"`
	CommitHash     string    `json:"commit_hash"`
	SubmittedAt    time.Time `json:"submitted_at"`
	Edited         bool      `json:"edited"`
	Score          *float64  `json:"score,omitempty"`
	ScoreScaling   float64   `json:"score_scaling"`
	FeedbackStatus string    `json:"feedback_status"`
}

func (h *AssignmentHandler) ListSubmissions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	loc, _, err := h.authorize(ctx, r, model.RepoKindSubmission, false, []model.Scope{model.ScopeTutor, model.ScopeInstructor})
	if err != nil {
		h.fail(ctx, w, err)
		return
	}

	subs, err := h.submissions.ListActiveSubmissions(ctx, loc.Assignment.Id)
	if err != nil {
		h.fail(ctx, w, err)
		return
	}
	resp := make([]submissionResponse, 0, len(subs))
	for _, s := range subs {
		resp = append(resp, submissionResponse{
			Id:             s.Id,
			Username:       s.Username,
			CommitHash:     s.CommitHash,
			SubmittedAt:    s.SubmittedAt,
			Edited:         s.Edited,
			Score:          s.Score,
			ScoreScaling:   s.ScoreScaling,
			FeedbackStatus: s.FeedbackStatus.String(),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"submissions": resp})
}

// authorize resolves the assignment through its release repository
// coordinates. For submission-kind checks no owner is set, so only staff
// pass.
func (h *AssignmentHandler) authorize(ctx context.Context, r *http.Request, kind model.RepoKind, write bool, scopes []model.Scope) (*model.RepoLocation, *model.Role, error) {
	principal, ok := ctxdata.GetPrincipal(ctx)
	if !ok {
		return nil, nil, errdefs.ErrAuthentication
	}
	loc, err := h.resolver.Resolve(ctx, model.RouteParams{
		LectureCode:    routeParam(r, "lecture_code"),
		AssignmentName: routeParam(r, "assignment_name"),
	}, model.RepoKindRelease)
	if err != nil {
		return nil, nil, err
	}
	role, err := h.gate.Authorize(ctx, access.Request{
		Principal:      principal,
		Lecture:        loc.Lecture,
		Assignment:     loc.Assignment,
		Kind:           kind,
		Write:          write,
		RequiredScopes: scopes,
	})
	if err != nil {
		return nil, nil, err
	}
	return loc, role, nil
}

func (h *AssignmentHandler) fail(ctx context.Context, w http.ResponseWriter, err error) {
	status := mapErr(err)
	if logger, ok := logging.GetFromContext(ctx); ok {
		if status == http.StatusInternalServerError {
			logger.Error(ctx, "assignment request failed", zap.Error(err))
		} else {
			logger.Info(ctx, "assignment request rejected", zap.Int("status", status), zap.Error(err))
		}
	}
	writeErrorJSON(w, status, http.StatusText(status))
}
