package gitrepo

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"graderservice/internal/errdefs"
	"graderservice/internal/logging"
	"graderservice/internal/model"
)

type LectureFinder interface {
	GetLectureByCode(ctx context.Context, code string) (*model.Lecture, error)
}

type AssignmentFinder interface {
	GetAssignmentByName(ctx context.Context, lectureId uuid.UUID, name string) (*model.Assignment, error)
}

// Resolver maps route parameters to repositories below a single git root.
type Resolver struct {
	root          string
	defaultBranch plumbing.ReferenceName
	lectures      LectureFinder
	assignments   AssignmentFinder
	logger        *logging.Logger
}

func NewResolver(gitRoot, defaultBranch string, lectures LectureFinder, assignments AssignmentFinder, logger *logging.Logger) (*Resolver, error) {
	if err := os.MkdirAll(gitRoot, 0o755); err != nil {
		return nil, fmt.Errorf("create git root: %w", err)
	}
	abs, err := filepath.Abs(gitRoot)
	if err != nil {
		return nil, fmt.Errorf("resolve git root: %w", err)
	}
	root, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("resolve git root: %w", err)
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &Resolver{
		root:          root,
		defaultBranch: plumbing.NewBranchReferenceName(defaultBranch),
		lectures:      lectures,
		assignments:   assignments,
		logger:        logger,
	}, nil
}

func (r *Resolver) Root() string {
	return r.root
}

// Resolve looks up the lecture and assignment named in params and computes
// the repository path. It creates nothing.
func (r *Resolver) Resolve(ctx context.Context, params model.RouteParams, kind model.RepoKind) (*model.RepoLocation, error) {
	if kind != params.Kind() {
		return nil, fmt.Errorf("%w: repository kind mismatch", errdefs.ErrNotFound)
	}
	if !ValidSegment(params.LectureCode) || !ValidSegment(params.AssignmentName) {
		return nil, fmt.Errorf("%w: invalid path segment", errdefs.ErrNotFound)
	}
	if kind == model.RepoKindSubmission && !validOwner(params.Username) {
		return nil, fmt.Errorf("%w: invalid username segment", errdefs.ErrNotFound)
	}

	lecture, err := r.lectures.GetLectureByCode(ctx, params.LectureCode)
	if err != nil {
		return nil, fmt.Errorf("lecture %q: %w", params.LectureCode, err)
	}
	assignment, err := r.assignments.GetAssignmentByName(ctx, lecture.Id, params.AssignmentName)
	if err != nil {
		return nil, fmt.Errorf("assignment %q: %w", params.AssignmentName, err)
	}

	parts := []string{r.root, params.LectureCode, params.AssignmentName}
	if kind == model.RepoKindSubmission {
		parts = append(parts, params.Username)
	}
	path, err := Within(r.root, filepath.Join(parts...))
	if err != nil {
		return nil, err
	}

	return &model.RepoLocation{
		Lecture:    lecture,
		Assignment: assignment,
		Kind:       kind,
		Owner:      params.Username,
		Path:       path,
	}, nil
}

// Exists reports whether loc holds an initialized repository.
func (r *Resolver) Exists(loc *model.RepoLocation) bool {
	info, err := os.Stat(filepath.Join(loc.Path, "HEAD"))
	return err == nil && info.Mode().IsRegular()
}

// EnsureExists creates an empty bare repository at loc unless one is there.
// The repository is built in a sibling directory and moved into place, so
// concurrent callers never observe a half-initialized repository.
func (r *Resolver) EnsureExists(ctx context.Context, loc *model.RepoLocation) error {
	if r.Exists(loc) {
		return nil
	}

	parent := filepath.Dir(loc.Path)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return fmt.Errorf("%w: %v", errdefs.ErrStorage, err)
	}
	if _, err := Within(r.root, loc.Path); err != nil {
		return err
	}

	tmp, err := os.MkdirTemp(parent, "."+filepath.Base(loc.Path)+".init-")
	if err != nil {
		return fmt.Errorf("%w: %v", errdefs.ErrStorage, err)
	}
	defer os.RemoveAll(tmp)

	if err := r.initBare(tmp); err != nil {
		return fmt.Errorf("%w: init %s: %v", errdefs.ErrStorage, loc.Path, err)
	}

	renameErr := os.Rename(tmp, loc.Path)
	if renameErr == nil {
		r.logger.Info(ctx, "repository created", zap.String("path", loc.Path))
		return nil
	}
	if r.Exists(loc) {
		return nil
	}

	// A release repository directory already holds submission repositories.
	info, err := os.Stat(loc.Path)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("%w: %v", errdefs.ErrStorage, renameErr)
	}
	if err := moveEntries(tmp, loc.Path); err != nil {
		if r.Exists(loc) {
			return nil
		}
		return fmt.Errorf("%w: %v", errdefs.ErrStorage, err)
	}
	r.logger.Info(ctx, "repository created in existing directory", zap.String("path", loc.Path))
	return nil
}

func (r *Resolver) initBare(path string) error {
	repo, err := git.PlainInitWithOptions(path, &git.PlainInitOptions{
		InitOptions: git.InitOptions{DefaultBranch: r.defaultBranch},
		Bare:        true,
	})
	if err != nil {
		return err
	}
	cfg, err := repo.Config()
	if err != nil {
		return err
	}
	cfg.Raw.Section("receive").SetOption("updateServerInfo", "true")
	return repo.SetConfig(cfg)
}

// moveEntries moves every entry of src into dst. HEAD goes last since it
// marks the repository as present.
func moveEntries(src, dst string) error {
	entries, err := os.ReadDir(src)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.Name() == "HEAD" {
			continue
		}
		if _, err := os.Lstat(filepath.Join(dst, e.Name())); err == nil {
			continue
		}
		if err := os.Rename(filepath.Join(src, e.Name()), filepath.Join(dst, e.Name())); err != nil {
			return err
		}
	}
	return os.Rename(filepath.Join(src, "HEAD"), filepath.Join(dst, "HEAD"))
}

// ReconcilePush returns the updates that actually landed in the repository.
// receive-pack exits zero even when it rejects single refs in-band, so the
// commands sent by the client are checked against the stored refs. If HEAD
// points at a branch that does not exist, it is moved to the first branch
// that was pushed.
func (r *Resolver) ReconcilePush(ctx context.Context, loc *model.RepoLocation, updates []model.RefUpdate) ([]model.RefUpdate, error) {
	repo, err := git.PlainOpen(loc.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", errdefs.ErrStorage, loc.Path, err)
	}

	var applied []model.RefUpdate
	var firstBranch plumbing.ReferenceName
	for _, u := range updates {
		name := plumbing.ReferenceName(u.Name)
		ref, err := repo.Storer.Reference(name)
		switch {
		case errors.Is(err, plumbing.ErrReferenceNotFound):
			if u.IsDelete() {
				applied = append(applied, u)
			}
		case err != nil:
			return nil, fmt.Errorf("%w: read %s: %v", errdefs.ErrStorage, u.Name, err)
		case !u.IsDelete() && ref.Hash().String() == u.New:
			applied = append(applied, u)
			if firstBranch == "" && name.IsBranch() {
				firstBranch = name
			}
		}
	}

	if firstBranch != "" {
		if err := r.repairHead(ctx, repo, firstBranch); err != nil {
			return nil, err
		}
	}
	return applied, nil
}

func (r *Resolver) repairHead(ctx context.Context, repo *git.Repository, branch plumbing.ReferenceName) error {
	head, err := repo.Storer.Reference(plumbing.HEAD)
	if err != nil {
		return fmt.Errorf("%w: read HEAD: %v", errdefs.ErrStorage, err)
	}
	if head.Type() != plumbing.SymbolicReference {
		return nil
	}
	if _, err := repo.Storer.Reference(head.Target()); !errors.Is(err, plumbing.ErrReferenceNotFound) {
		return nil
	}
	if err := repo.Storer.SetReference(plumbing.NewSymbolicReference(plumbing.HEAD, branch)); err != nil {
		return fmt.Errorf("%w: set HEAD: %v", errdefs.ErrStorage, err)
	}
	r.logger.Info(ctx, "HEAD moved to pushed branch",
		zap.String("from", head.Target().String()),
		zap.String("to", branch.String()),
	)
	return nil
}

// DefaultBranch is the short name new repositories start with.
func (r *Resolver) DefaultBranch() string {
	return strings.TrimPrefix(r.defaultBranch.String(), "refs/heads/")
}
