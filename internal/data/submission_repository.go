package data

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"graderservice/internal/errdefs"
	"graderservice/internal/lifecycle"
	"graderservice/internal/model"
)

const submissionColumns = `id, assignment_id, username, commit_hash, submitted_at, edited,
	score, score_scaling, feedback_status, delete_state, created_at, edited_at`

type SubmissionRepository struct {
	db TxQuerier
}

func NewSubmissionRepository(db TxQuerier) *SubmissionRepository {
	return &SubmissionRepository{db: db}
}

func (r *SubmissionRepository) NewSubmissionRepositoryTx(ctx context.Context) (lifecycle.SubmissionRepositoryTx, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &SubmissionRepositoryTx{tx: tx}, nil
}

// MarkFeedbackGenerating flips feedback_status to generating for the given
// revision. It is a no-op (false) unless the current status allows it.
func (r *SubmissionRepository) MarkFeedbackGenerating(ctx context.Context, id uuid.UUID, commitHash string) (bool, error) {
	query := `
UPDATE submissions
SET feedback_status = $1, edited_at = $2
WHERE id = $3 AND commit_hash = $4 AND delete_state = $5
  AND feedback_status IN ($6, $7)
`
	tag, err := r.db.Exec(ctx, query,
		model.FeedbackStatusGenerating,
		time.Now(),
		id,
		commitHash,
		model.DeleteStateActive,
		model.FeedbackStatusNotGenerated,
		model.FeedbackStatusGenerationFailed,
	)
	if err != nil {
		return false, handleError(err)
	}
	return tag.RowsAffected() == 1, nil
}

// ResetFeedbackGenerating undoes MarkFeedbackGenerating when the grading
// task could not be handed off.
func (r *SubmissionRepository) ResetFeedbackGenerating(ctx context.Context, id uuid.UUID, commitHash string) (bool, error) {
	query := `
UPDATE submissions
SET feedback_status = $1, edited_at = $2
WHERE id = $3 AND commit_hash = $4 AND feedback_status = $5
`
	tag, err := r.db.Exec(ctx, query,
		model.FeedbackStatusNotGenerated,
		time.Now(),
		id,
		commitHash,
		model.FeedbackStatusGenerating,
	)
	if err != nil {
		return false, handleError(err)
	}
	return tag.RowsAffected() == 1, nil
}

// FinishFeedback records a grading result. Results for a revision that is
// no longer current, or for a submission that is not generating, are ignored.
func (r *SubmissionRepository) FinishFeedback(ctx context.Context, id uuid.UUID, commitHash string, status model.FeedbackStatus, score *float64) (bool, error) {
	if status != model.FeedbackStatusGenerated && status != model.FeedbackStatusGenerationFailed {
		return false, fmt.Errorf("%w: cannot finish feedback with status %q", errdefs.ErrBadRequest, status)
	}
	query := `
UPDATE submissions
SET feedback_status = $1, score = $2, edited_at = $3
WHERE id = $4 AND commit_hash = $5 AND feedback_status = $6
`
	tag, err := r.db.Exec(ctx, query,
		status,
		score,
		time.Now(),
		id,
		commitHash,
		model.FeedbackStatusGenerating,
	)
	if err != nil {
		return false, handleError(err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *SubmissionRepository) ListActiveSubmissions(ctx context.Context, assignmentId uuid.UUID) ([]*model.Submission, error) {
	query := `SELECT ` + submissionColumns + `
FROM submissions
WHERE assignment_id = $1 AND delete_state = $2
ORDER BY username
`
	var subs []*model.Submission
	if err := pgxscan.Select(ctx, r.db, &subs, query, assignmentId, model.DeleteStateActive); err != nil {
		return nil, handleError(err)
	}
	return subs, nil
}

// SubmissionRepositoryTx runs submission statements inside one transaction.
type SubmissionRepositoryTx struct {
	tx   pgx.Tx
	done bool
}

// GetActiveSubmissionForUpdate locks the active submission row of username.
func (r *SubmissionRepositoryTx) GetActiveSubmissionForUpdate(ctx context.Context, assignmentId uuid.UUID, username string) (*model.Submission, error) {
	query := `SELECT ` + submissionColumns + `
FROM submissions
WHERE assignment_id = $1 AND username = $2 AND delete_state = $3
FOR UPDATE
`
	var s model.Submission
	if err := pgxscan.Get(ctx, r.tx, &s, query, assignmentId, username, model.DeleteStateActive); err != nil {
		return nil, handleError(err)
	}
	return &s, nil
}

// CreateSubmission returns errdefs.ErrAlreadyExists when a concurrent
// transaction inserted the active row first.
func (r *SubmissionRepositoryTx) CreateSubmission(ctx context.Context, input *model.SubmissionCreateInput) (*model.Submission, error) {
	query := `
INSERT INTO submissions (
	id, assignment_id, username, commit_hash, submitted_at,
	edited, score_scaling, feedback_status, delete_state, created_at, edited_at
)
VALUES ($1, $2, $3, $4, $5, FALSE, $6, $7, $8, $9, $9)
ON CONFLICT (assignment_id, username) WHERE delete_state = 'active' DO NOTHING
RETURNING ` + submissionColumns

	var s model.Submission
	err := pgxscan.Get(ctx, r.tx, &s, query,
		input.Id,
		input.AssignmentId,
		input.Username,
		input.CommitHash,
		input.SubmittedAt,
		model.DefaultScoreScaling,
		model.FeedbackStatusNotGenerated,
		model.DeleteStateActive,
		time.Now(),
	)
	if err != nil {
		if isNotFound(err) {
			return nil, errdefs.ErrAlreadyExists
		}
		return nil, handleError(err)
	}
	return &s, nil
}

// UpdateSubmissionOnPush records a new revision on an existing submission
// and resets its grading state.
func (r *SubmissionRepositoryTx) UpdateSubmissionOnPush(ctx context.Context, id uuid.UUID, commitHash string, submittedAt time.Time) (*model.Submission, error) {
	query := `
UPDATE submissions
SET commit_hash = $1, submitted_at = $2, edited = TRUE, score = NULL,
	feedback_status = $3, edited_at = $4
WHERE id = $5
RETURNING ` + submissionColumns

	var s model.Submission
	err := pgxscan.Get(ctx, r.tx, &s, query,
		commitHash,
		submittedAt,
		model.FeedbackStatusNotGenerated,
		time.Now(),
		id,
	)
	if err != nil {
		return nil, handleError(err)
	}
	return &s, nil
}

func (r *SubmissionRepositoryTx) Commit(ctx context.Context) error {
	if err := r.tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	r.done = true
	return nil
}

// Rollback is safe to defer; it does nothing after Commit.
func (r *SubmissionRepositoryTx) Rollback(ctx context.Context) error {
	if r.done {
		return nil
	}
	r.done = true
	if err := r.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("failed to rollback transaction: %w", err)
	}
	return nil
}
