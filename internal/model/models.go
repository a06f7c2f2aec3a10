package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type Scope string

const (
	ScopeStudent    Scope = "student"
	ScopeTutor      Scope = "tutor"
	ScopeInstructor Scope = "instructor"
)

func (s Scope) String() string {
	return string(s)
}

func (s Scope) IsValid() bool {
	return s == ScopeStudent || s == ScopeTutor || s == ScopeInstructor
}

// IsStaff reports whether the scope may act on other users' submissions.
func (s Scope) IsStaff() bool {
	return s == ScopeTutor || s == ScopeInstructor
}

type AssignmentStatus string

const (
	AssignmentStatusCreated  AssignmentStatus = "created"
	AssignmentStatusReleased AssignmentStatus = "released"
	AssignmentStatusFetching AssignmentStatus = "fetching"
	AssignmentStatusFetched  AssignmentStatus = "fetched"
	AssignmentStatusComplete AssignmentStatus = "complete"
)

var assignmentStatusOrder = map[AssignmentStatus]int{
	AssignmentStatusCreated:  0,
	AssignmentStatusReleased: 1,
	AssignmentStatusFetching: 2,
	AssignmentStatusFetched:  3,
	AssignmentStatusComplete: 4,
}

func (s AssignmentStatus) String() string {
	return string(s)
}

func (s AssignmentStatus) IsValid() bool {
	_, ok := assignmentStatusOrder[s]
	return ok
}

// IsReleased is true for every status from released onwards.
func (s AssignmentStatus) IsReleased() bool {
	return s.IsValid() && assignmentStatusOrder[s] >= assignmentStatusOrder[AssignmentStatusReleased]
}

// Before reports whether s comes strictly earlier than other in the lifecycle.
func (s AssignmentStatus) Before(other AssignmentStatus) bool {
	return assignmentStatusOrder[s] < assignmentStatusOrder[other]
}

type FeedbackStatus string

const (
	FeedbackStatusNotGenerated     FeedbackStatus = "not_generated"
	FeedbackStatusGenerating       FeedbackStatus = "generating"
	FeedbackStatusGenerated        FeedbackStatus = "generated"
	FeedbackStatusGenerationFailed FeedbackStatus = "generation_failed"
)

func (f FeedbackStatus) String() string {
	return string(f)
}

func (f FeedbackStatus) IsValid() bool {
	switch f {
	case FeedbackStatusNotGenerated, FeedbackStatusGenerating,
		FeedbackStatusGenerated, FeedbackStatusGenerationFailed:
		return true
	default:
		return false
	}
}

// CanStartGenerating is the guard for the transition into generating.
func (f FeedbackStatus) CanStartGenerating() bool {
	return f == FeedbackStatusNotGenerated || f == FeedbackStatusGenerationFailed
}

type DeleteState string

const (
	DeleteStateActive  DeleteState = "active"
	DeleteStateDeleted DeleteState = "deleted"
)

func (d DeleteState) String() string {
	return string(d)
}

func (d DeleteState) IsValid() bool {
	return d == DeleteStateActive || d == DeleteStateDeleted
}

type Lecture struct {
	Id        uuid.UUID `db:"id" json:"id"`
	Code      string    `db:"code" json:"code"`
	Semester  string    `db:"semester" json:"semester"`
	Complete  bool      `db:"complete" json:"complete"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	EditedAt  time.Time `db:"edited_at" json:"edited_at"`
}

type Role struct {
	Username  string    `db:"username" json:"username"`
	LectureId uuid.UUID `db:"lecture_id" json:"lecture_id"`
	Scope     Scope     `db:"scope" json:"scope"`
}

type Assignment struct {
	Id        uuid.UUID        `db:"id"`
	LectureId uuid.UUID        `db:"lecture_id"`
	Name      string           `db:"name"`
	Status    AssignmentStatus `db:"status"`
	Settings  json.RawMessage  `db:"settings"`
	CreatedAt time.Time        `db:"created_at"`
	EditedAt  time.Time        `db:"edited_at"`
}

type Submission struct {
	Id             uuid.UUID      `db:"id"`
	AssignmentId   uuid.UUID      `db:"assignment_id"`
	Username       string         `db:"username"`
	CommitHash     string         `db:"commit_hash"`
	SubmittedAt    time.Time      `db:"submitted_at"`
	Edited         bool           `db:"edited"`
	Score          *float64       `db:"score"`
	ScoreScaling   float64        `db:"score_scaling"`
	FeedbackStatus FeedbackStatus `db:"feedback_status"`
	DeleteState    DeleteState    `db:"delete_state"`
	CreatedAt      time.Time      `db:"created_at"`
	EditedAt       time.Time      `db:"edited_at"`
}

const DefaultScoreScaling = 1.0

type SubmissionCreateInput struct {
	Id           uuid.UUID
	AssignmentId uuid.UUID
	Username     string
	CommitHash   string
	SubmittedAt  time.Time
}

// GradingResult is what the autograder reports back for one revision.
type GradingResult struct {
	SubmissionId uuid.UUID `json:"submission_id"`
	Revision     string    `json:"revision"`
	Success      bool      `json:"success"`
	Score        *float64  `json:"score,omitempty"`
	Error        string    `json:"error,omitempty"`
}
