package handler_test

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"graderservice/internal/autograde"
	"graderservice/internal/errdefs"
	"graderservice/internal/lifecycle"
	"graderservice/internal/model"
)

// memoryStore stands in for the postgres repositories. Transactions hold
// the store lock until they finish.
type memoryStore struct {
	mu          sync.Mutex
	lectures    map[string]*model.Lecture
	assignments map[uuid.UUID]*model.Assignment
	roles       map[string]*model.Role
	submissions map[uuid.UUID]*model.Submission
	created     []model.Submission
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		lectures:    map[string]*model.Lecture{},
		assignments: map[uuid.UUID]*model.Assignment{},
		roles:       map[string]*model.Role{},
		submissions: map[uuid.UUID]*model.Submission{},
	}
}

func (s *memoryStore) addLecture(code string) *model.Lecture {
	s.mu.Lock()
	defer s.mu.Unlock()
	l := &model.Lecture{Id: uuid.New(), Code: code, Semester: "WS21"}
	s.lectures[code] = l
	return l
}

func (s *memoryStore) addAssignment(lecture *model.Lecture, name string, status model.AssignmentStatus) *model.Assignment {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := &model.Assignment{Id: uuid.New(), LectureId: lecture.Id, Name: name, Status: status}
	s.assignments[a.Id] = a
	return a
}

func (s *memoryStore) addRole(lecture *model.Lecture, username string, scope model.Scope) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roles[username+"|"+lecture.Id.String()] = &model.Role{Username: username, LectureId: lecture.Id, Scope: scope}
}

func (s *memoryStore) assignment(id uuid.UUID) model.Assignment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.assignments[id]
}

func (s *memoryStore) activeSubmission(assignmentId uuid.UUID, username string) (model.Submission, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sub := range s.submissions {
		if sub.AssignmentId == assignmentId && sub.Username == username && sub.DeleteState == model.DeleteStateActive {
			return *sub, true
		}
	}
	return model.Submission{}, false
}

func (s *memoryStore) createdSubmissions() []model.Submission {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Submission(nil), s.created...)
}

func (s *memoryStore) GetLectureByCode(_ context.Context, code string) (*model.Lecture, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.lectures[code]
	if !ok {
		return nil, errdefs.ErrNotFound
	}
	cp := *l
	return &cp, nil
}

func (s *memoryStore) GetAssignmentByName(_ context.Context, lectureId uuid.UUID, name string) (*model.Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.assignments {
		if a.LectureId == lectureId && a.Name == name {
			cp := *a
			return &cp, nil
		}
	}
	return nil, errdefs.ErrNotFound
}

func (s *memoryStore) GetRole(_ context.Context, username string, lectureId uuid.UUID) (*model.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.roles[username+"|"+lectureId.String()]
	if !ok {
		return nil, errdefs.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *memoryStore) ReleaseAssignment(ctx context.Context, id uuid.UUID) (bool, error) {
	return s.AdvanceAssignmentStatus(ctx, id, model.AssignmentStatusCreated, model.AssignmentStatusReleased)
}

func (s *memoryStore) AdvanceAssignmentStatus(_ context.Context, id uuid.UUID, from, to model.AssignmentStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.assignments[id]
	if !ok || a.Status != from {
		return false, nil
	}
	a.Status = to
	return true, nil
}

func (s *memoryStore) NewSubmissionRepositoryTx(context.Context) (lifecycle.SubmissionRepositoryTx, error) {
	s.mu.Lock()
	return &memoryTx{s: s}, nil
}

func (s *memoryStore) MarkFeedbackGenerating(_ context.Context, id uuid.UUID, commitHash string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.submissions[id]
	if !ok || sub.CommitHash != commitHash || !sub.FeedbackStatus.CanStartGenerating() {
		return false, nil
	}
	sub.FeedbackStatus = model.FeedbackStatusGenerating
	return true, nil
}

func (s *memoryStore) ResetFeedbackGenerating(_ context.Context, id uuid.UUID, commitHash string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.submissions[id]
	if !ok || sub.CommitHash != commitHash || sub.FeedbackStatus != model.FeedbackStatusGenerating {
		return false, nil
	}
	sub.FeedbackStatus = model.FeedbackStatusNotGenerated
	return true, nil
}

func (s *memoryStore) FinishFeedback(_ context.Context, id uuid.UUID, commitHash string, status model.FeedbackStatus, score *float64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.submissions[id]
	if !ok || sub.CommitHash != commitHash || sub.FeedbackStatus != model.FeedbackStatusGenerating {
		return false, nil
	}
	sub.FeedbackStatus = status
	sub.Score = score
	return true, nil
}

func (s *memoryStore) ListActiveSubmissions(_ context.Context, assignmentId uuid.UUID) ([]*model.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.Submission
	for _, sub := range s.submissions {
		if sub.AssignmentId == assignmentId && sub.DeleteState == model.DeleteStateActive {
			cp := *sub
			out = append(out, &cp)
		}
	}
	return out, nil
}

type memoryTx struct {
	s    *memoryStore
	done bool
}

func (t *memoryTx) GetActiveSubmissionForUpdate(_ context.Context, assignmentId uuid.UUID, username string) (*model.Submission, error) {
	for _, sub := range t.s.submissions {
		if sub.AssignmentId == assignmentId && sub.Username == username && sub.DeleteState == model.DeleteStateActive {
			cp := *sub
			return &cp, nil
		}
	}
	return nil, errdefs.ErrNotFound
}

func (t *memoryTx) CreateSubmission(_ context.Context, in *model.SubmissionCreateInput) (*model.Submission, error) {
	now := time.Now()
	sub := &model.Submission{
		Id:             in.Id,
		AssignmentId:   in.AssignmentId,
		Username:       in.Username,
		CommitHash:     in.CommitHash,
		SubmittedAt:    in.SubmittedAt,
		ScoreScaling:   model.DefaultScoreScaling,
		FeedbackStatus: model.FeedbackStatusNotGenerated,
		DeleteState:    model.DeleteStateActive,
		CreatedAt:      now,
		EditedAt:       now,
	}
	t.s.submissions[sub.Id] = sub
	t.s.created = append(t.s.created, *sub)
	cp := *sub
	return &cp, nil
}

func (t *memoryTx) UpdateSubmissionOnPush(_ context.Context, id uuid.UUID, commitHash string, submittedAt time.Time) (*model.Submission, error) {
	sub, ok := t.s.submissions[id]
	if !ok {
		return nil, errdefs.ErrNotFound
	}
	sub.CommitHash = commitHash
	sub.SubmittedAt = submittedAt
	sub.Edited = true
	sub.Score = nil
	sub.FeedbackStatus = model.FeedbackStatusNotGenerated
	cp := *sub
	return &cp, nil
}

func (t *memoryTx) Commit(context.Context) error {
	t.finish()
	return nil
}

func (t *memoryTx) Rollback(context.Context) error {
	t.finish()
	return nil
}

func (t *memoryTx) finish() {
	if t.done {
		return
	}
	t.done = true
	t.s.mu.Unlock()
}

type memoryClaims struct {
	mu     sync.Mutex
	claims map[string]bool
	values map[string][]byte
}

func newMemoryClaims() *memoryClaims {
	return &memoryClaims{claims: map[string]bool{}, values: map[string][]byte{}}
}

func (m *memoryClaims) Claim(_ context.Context, key string, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.claims[key] {
		return false, nil
	}
	m.claims[key] = true
	return true, nil
}

func (m *memoryClaims) Release(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.claims, key)
	return nil
}

func (m *memoryClaims) Put(_ context.Context, key string, data []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = data
	return nil
}

func (m *memoryClaims) Lookup(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.values[key]
	return data, ok, nil
}

// recordingPublisher collects grading tasks. A responder, if set, runs
// before Send returns, like a worker that answers right away.
type recordingPublisher struct {
	mu        sync.Mutex
	tasks     []autograde.Payload
	responder func(ctx context.Context, task autograde.Payload)
}

func (p *recordingPublisher) Send(ctx context.Context, _, _ string, message interface{}) error {
	task := message.(autograde.Payload)
	p.mu.Lock()
	p.tasks = append(p.tasks, task)
	respond := p.responder
	p.mu.Unlock()
	if respond != nil {
		respond(ctx, task)
	}
	return nil
}

func (p *recordingPublisher) respondWith(f func(ctx context.Context, task autograde.Payload)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.responder = f
}

func (p *recordingPublisher) sent() []autograde.Payload {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]autograde.Payload(nil), p.tasks...)
}
