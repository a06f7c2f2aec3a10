package autograde

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Key identifies one grading task. The same key is enqueued at most once.
type Key struct {
	SubmissionId uuid.UUID
	Revision     string
}

func (k Key) String() string {
	return fmt.Sprintf("autograde:%s:%s", k.SubmissionId, k.Revision)
}

func (k Key) outcomeKey() string {
	return k.String() + ":outcome"
}

// Payload is the message handed to the autograding worker.
type Payload struct {
	SubmissionId   uuid.UUID       `json:"submission_id"`
	AssignmentId   uuid.UUID       `json:"assignment_id"`
	LectureId      uuid.UUID       `json:"lecture_id"`
	LectureCode    string          `json:"lecture_code"`
	AssignmentName string          `json:"assignment_name"`
	Username       string          `json:"username"`
	Revision       string          `json:"revision"`
	Settings       json.RawMessage `json:"settings,omitempty"`
	EnqueuedAt     time.Time       `json:"enqueued_at"`
}
