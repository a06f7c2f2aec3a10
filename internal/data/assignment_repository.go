package data

import (
	"context"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"

	"graderservice/internal/model"
)

type AssignmentRepository struct {
	db Querier
}

func NewAssignmentRepository(db Querier) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

func (r *AssignmentRepository) GetAssignmentByName(ctx context.Context, lectureId uuid.UUID, name string) (*model.Assignment, error) {
	query := `
SELECT id, lecture_id, name, status, settings, created_at, edited_at
FROM assignments
WHERE lecture_id = $1 AND name = $2
`
	var a model.Assignment
	if err := pgxscan.Get(ctx, r.db, &a, query, lectureId, name); err != nil {
		return nil, handleError(err)
	}
	return &a, nil
}

// ReleaseAssignment moves a created assignment to released. It reports
// false when the assignment was already past created.
func (r *AssignmentRepository) ReleaseAssignment(ctx context.Context, id uuid.UUID) (bool, error) {
	return r.AdvanceAssignmentStatus(ctx, id, model.AssignmentStatusCreated, model.AssignmentStatusReleased)
}

// AdvanceAssignmentStatus is a compare-and-set on the status column.
func (r *AssignmentRepository) AdvanceAssignmentStatus(ctx context.Context, id uuid.UUID, from, to model.AssignmentStatus) (bool, error) {
	query := `UPDATE assignments SET status = $1, edited_at = $2 WHERE id = $3 AND status = $4`
	tag, err := r.db.Exec(ctx, query, to, time.Now(), id, from)
	if err != nil {
		return false, handleError(err)
	}
	return tag.RowsAffected() == 1, nil
}
