package data

import (
	"context"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"

	"graderservice/internal/model"
)

type LectureRepository struct {
	db Querier
}

func NewLectureRepository(db Querier) *LectureRepository {
	return &LectureRepository{db: db}
}

func (r *LectureRepository) GetLectureByCode(ctx context.Context, code string) (*model.Lecture, error) {
	query := `
SELECT id, code, semester, complete, created_at, edited_at
FROM lectures
WHERE code = $1
`
	var lecture model.Lecture
	if err := pgxscan.Get(ctx, r.db, &lecture, query, code); err != nil {
		return nil, handleError(err)
	}
	return &lecture, nil
}

type RoleRepository struct {
	db Querier
}

func NewRoleRepository(db Querier) *RoleRepository {
	return &RoleRepository{db: db}
}

// GetRole returns errdefs.ErrNotFound when the user has no role in the lecture.
func (r *RoleRepository) GetRole(ctx context.Context, username string, lectureId uuid.UUID) (*model.Role, error) {
	query := `
SELECT username, lecture_id, scope
FROM roles
WHERE username = $1 AND lecture_id = $2
`
	var role model.Role
	if err := pgxscan.Get(ctx, r.db, &role, query, username, lectureId); err != nil {
		return nil, handleError(err)
	}
	return &role, nil
}
