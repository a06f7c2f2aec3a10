package model

type RepoKind string

const (
	RepoKindRelease    RepoKind = "release"
	RepoKindSubmission RepoKind = "submission"
)

func (k RepoKind) String() string {
	return string(k)
}

func (k RepoKind) IsValid() bool {
	return k == RepoKindRelease || k == RepoKindSubmission
}

// RouteParams are the repository coordinates taken from the request path.
// Username is empty for the release repository.
type RouteParams struct {
	LectureCode    string
	AssignmentName string
	Username       string
}

func (p RouteParams) Kind() RepoKind {
	if p.Username == "" {
		return RepoKindRelease
	}
	return RepoKindSubmission
}

// RepoLocation is a resolved repository on disk. Path is absolute and
// contained in the git root.
type RepoLocation struct {
	Lecture    *Lecture
	Assignment *Assignment
	Kind       RepoKind
	Owner      string
	Path       string
}

type Principal struct {
	Username string
}

func (p Principal) IsZero() bool {
	return p.Username == ""
}

// ZeroHash is the object id git uses for "no object" in ref updates.
const ZeroHash = "0000000000000000000000000000000000000000"

// RefUpdate is one command of a push: move Name from Old to New.
type RefUpdate struct {
	Old  string
	New  string
	Name string
}

func (u RefUpdate) IsDelete() bool {
	return u.New == ZeroHash
}
