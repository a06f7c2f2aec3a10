package lifecycle

//go:generate mockgen -destination=mocks/mocks.go -package=mocks . AssignmentRepository,SubmissionRepository,SubmissionRepositoryTx,TaskQueue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"graderservice/internal/autograde"
	"graderservice/internal/errdefs"
	"graderservice/internal/logging"
	"graderservice/internal/model"
)

type AssignmentRepository interface {
	ReleaseAssignment(ctx context.Context, id uuid.UUID) (bool, error)
	AdvanceAssignmentStatus(ctx context.Context, id uuid.UUID, from, to model.AssignmentStatus) (bool, error)
}

type SubmissionRepository interface {
	NewSubmissionRepositoryTx(ctx context.Context) (SubmissionRepositoryTx, error)
	MarkFeedbackGenerating(ctx context.Context, id uuid.UUID, commitHash string) (bool, error)
	ResetFeedbackGenerating(ctx context.Context, id uuid.UUID, commitHash string) (bool, error)
	FinishFeedback(ctx context.Context, id uuid.UUID, commitHash string, status model.FeedbackStatus, score *float64) (bool, error)
}

type SubmissionRepositoryTx interface {
	GetActiveSubmissionForUpdate(ctx context.Context, assignmentId uuid.UUID, username string) (*model.Submission, error)
	CreateSubmission(ctx context.Context, input *model.SubmissionCreateInput) (*model.Submission, error)
	UpdateSubmissionOnPush(ctx context.Context, id uuid.UUID, commitHash string, submittedAt time.Time) (*model.Submission, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

type TaskQueue interface {
	Enqueue(ctx context.Context, key autograde.Key, payload autograde.Payload) (bool, error)
	RecordOutcome(ctx context.Context, key autograde.Key, result model.GradingResult) error
	Outcome(ctx context.Context, key autograde.Key) (*model.GradingResult, error)
}

// Push is a receive-pack run that landed Revision in Location.
type Push struct {
	Location  *model.RepoLocation
	Principal model.Principal
	Role      *model.Role
	Ref       string
	Revision  string
}

type Coordinator struct {
	assignments AssignmentRepository
	submissions SubmissionRepository
	tasks       TaskQueue
	logger      *logging.Logger
}

func NewCoordinator(assignments AssignmentRepository, submissions SubmissionRepository, tasks TaskQueue, logger *logging.Logger) *Coordinator {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Coordinator{
		assignments: assignments,
		submissions: submissions,
		tasks:       tasks,
		logger:      logger,
	}
}

func (c *Coordinator) OnPushAccepted(ctx context.Context, push Push) error {
	loc := push.Location
	if loc == nil || loc.Assignment == nil || push.Revision == "" {
		return fmt.Errorf("%w: incomplete push", errdefs.ErrBadRequest)
	}

	switch loc.Kind {
	case model.RepoKindRelease:
		return c.releaseAssignment(ctx, push)
	case model.RepoKindSubmission:
		sub, err := c.upsertSubmission(ctx, push)
		if err != nil {
			return err
		}
		return c.enqueueGrading(ctx, loc, sub)
	default:
		return fmt.Errorf("%w: unknown repository kind %q", errdefs.ErrBadRequest, loc.Kind)
	}
}

func (c *Coordinator) releaseAssignment(ctx context.Context, push Push) error {
	if push.Role == nil || push.Role.Scope != model.ScopeInstructor {
		return nil
	}
	assignment := push.Location.Assignment
	if assignment.Status != model.AssignmentStatusCreated {
		return nil
	}
	changed, err := c.assignments.ReleaseAssignment(ctx, assignment.Id)
	if err != nil {
		return fmt.Errorf("release assignment %s: %w", assignment.Name, err)
	}
	if changed {
		c.logger.Info(ctx, "assignment released",
			zap.String("assignment_id", assignment.Id.String()),
			zap.String("assignment", assignment.Name),
			zap.String("revision", push.Revision),
		)
	}
	return nil
}

// upsertSubmission records the push on the active submission of the
// repository owner, who is not necessarily the pusher.
func (c *Coordinator) upsertSubmission(ctx context.Context, push Push) (*model.Submission, error) {
	loc := push.Location
	repo, err := c.submissions.NewSubmissionRepositoryTx(ctx)
	if err != nil {
		return nil, err
	}
	defer func(repo SubmissionRepositoryTx, ctx context.Context) {
		if err := repo.Rollback(ctx); err != nil {
			logging.FromContext(ctx, c.logger).Error(ctx, "Failed to Rollback", zap.Error(err))
		}
	}(repo, ctx)

	now := time.Now()
	existing, err := repo.GetActiveSubmissionForUpdate(ctx, loc.Assignment.Id, loc.Owner)
	if errors.Is(err, errdefs.ErrNotFound) {
		id, err := uuid.NewV7()
		if err != nil {
			return nil, err
		}
		created, err := repo.CreateSubmission(ctx, &model.SubmissionCreateInput{
			Id:           id,
			AssignmentId: loc.Assignment.Id,
			Username:     loc.Owner,
			CommitHash:   push.Revision,
			SubmittedAt:  now,
		})
		if err == nil {
			if err := repo.Commit(ctx); err != nil {
				return nil, err
			}
			return created, nil
		}
		if !errors.Is(err, errdefs.ErrAlreadyExists) {
			return nil, err
		}
		// a concurrent first push inserted the row after our lookup
		existing, err = repo.GetActiveSubmissionForUpdate(ctx, loc.Assignment.Id, loc.Owner)
		if err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}

	updated, err := repo.UpdateSubmissionOnPush(ctx, existing.Id, push.Revision, now)
	if err != nil {
		return nil, err
	}
	if err := repo.Commit(ctx); err != nil {
		return nil, err
	}
	return updated, nil
}

func (c *Coordinator) enqueueGrading(ctx context.Context, loc *model.RepoLocation, sub *model.Submission) error {
	key := autograde.Key{SubmissionId: sub.Id, Revision: sub.CommitHash}
	payload := autograde.Payload{
		SubmissionId:   sub.Id,
		AssignmentId:   loc.Assignment.Id,
		AssignmentName: loc.Assignment.Name,
		Username:       sub.Username,
		Revision:       sub.CommitHash,
		Settings:       loc.Assignment.Settings,
	}
	if loc.Lecture != nil {
		payload.LectureId = loc.Lecture.Id
		payload.LectureCode = loc.Lecture.Code
	}

	// A worker may report before Enqueue returns, so the row has to be
	// generating first.
	marked, err := c.submissions.MarkFeedbackGenerating(ctx, sub.Id, sub.CommitHash)
	if err != nil {
		return fmt.Errorf("mark feedback generating: %w", err)
	}
	if !marked {
		c.logger.Warn(ctx, "submission changed before feedback generation started",
			zap.String("submission_id", sub.Id.String()),
			zap.String("revision", sub.CommitHash),
		)
		return nil
	}

	enqueued, err := c.tasks.Enqueue(ctx, key, payload)
	if err != nil {
		c.resetGenerating(ctx, sub)
		return fmt.Errorf("enqueue grading: %w", err)
	}
	if enqueued {
		return nil
	}

	// This revision was queued before. Reuse its result if it has one;
	// otherwise the pending result lands on this row.
	prior, err := c.tasks.Outcome(ctx, key)
	if err != nil {
		c.resetGenerating(ctx, sub)
		return fmt.Errorf("look up grading outcome: %w", err)
	}
	if prior == nil {
		c.logger.Info(ctx, "grading already in progress for revision",
			zap.String("submission_id", sub.Id.String()),
			zap.String("revision", sub.CommitHash),
		)
		return nil
	}
	return c.applyResult(ctx, *prior)
}

func (c *Coordinator) resetGenerating(ctx context.Context, sub *model.Submission) {
	if _, err := c.submissions.ResetFeedbackGenerating(context.WithoutCancel(ctx), sub.Id, sub.CommitHash); err != nil {
		c.logger.Error(ctx, "Failed to reset feedback status",
			zap.String("submission_id", sub.Id.String()),
			zap.Error(err),
		)
	}
}

// OnGradingFinished applies an autograder result. Results for a revision
// that has since been replaced do not touch the row but stay recorded for
// a later push of the same revision.
func (c *Coordinator) OnGradingFinished(ctx context.Context, result model.GradingResult) error {
	// Recorded before the row update: a concurrent push of this revision
	// either finds the outcome or has its row updated below.
	key := autograde.Key{SubmissionId: result.SubmissionId, Revision: result.Revision}
	if err := c.tasks.RecordOutcome(ctx, key, result); err != nil {
		c.logger.Warn(ctx, "Failed to record grading outcome", zap.String("key", key.String()), zap.Error(err))
	}
	return c.applyResult(ctx, result)
}

func (c *Coordinator) applyResult(ctx context.Context, result model.GradingResult) error {
	status := model.FeedbackStatusGenerationFailed
	var score *float64
	if result.Success {
		status = model.FeedbackStatusGenerated
		score = result.Score
	}

	applied, err := c.submissions.FinishFeedback(ctx, result.SubmissionId, result.Revision, status, score)
	if err != nil {
		return err
	}
	fields := []zap.Field{
		zap.String("submission_id", result.SubmissionId.String()),
		zap.String("revision", result.Revision),
		zap.String("feedback_status", status.String()),
	}
	if !applied {
		c.logger.Info(ctx, "stale grading result ignored", fields...)
		return nil
	}
	if result.Error != "" {
		fields = append(fields, zap.String("grading_error", result.Error))
	}
	c.logger.Info(ctx, "grading result recorded", fields...)
	return nil
}

// AdvanceAssignment moves an assignment along created, released, fetching,
// fetched, complete. Moving backwards needs revert and an instructor.
func (c *Coordinator) AdvanceAssignment(ctx context.Context, assignment *model.Assignment, to model.AssignmentStatus, actor *model.Role, revert bool) error {
	if !to.IsValid() {
		return fmt.Errorf("%w: invalid status %q", errdefs.ErrBadRequest, to)
	}
	from := assignment.Status
	if from == to {
		return nil
	}
	if to.Before(from) {
		if !revert {
			return fmt.Errorf("%w: %s cannot go back to %s", errdefs.ErrBadRequest, from, to)
		}
		if actor == nil || actor.Scope != model.ScopeInstructor {
			return fmt.Errorf("%w: only instructors may revert an assignment", errdefs.ErrPermissionDenied)
		}
	}

	changed, err := c.assignments.AdvanceAssignmentStatus(ctx, assignment.Id, from, to)
	if err != nil {
		return err
	}
	if !changed {
		return fmt.Errorf("%w: assignment %s is no longer %s", errdefs.ErrConflict, assignment.Name, from)
	}
	c.logger.Info(ctx, "assignment status changed",
		zap.String("assignment_id", assignment.Id.String()),
		zap.String("from", from.String()),
		zap.String("to", to.String()),
		zap.Bool("revert", revert),
	)
	assignment.Status = to
	return nil
}
