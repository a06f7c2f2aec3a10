package gitproto

import (
	"errors"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"regexp"

	"go.uber.org/zap"

	"graderservice/internal/errdefs"
	"graderservice/internal/gitrepo"
	"graderservice/internal/logging"
	"graderservice/internal/model"
)

type fileClass int

const (
	classText fileClass = iota
	classImmutable
)

type dumbRoute struct {
	pattern *regexp.Regexp
	class   fileClass
}

// Only the files a dumb client fetches are served; quarantine directories
// and pack .keep or .rev files stay private.
var dumbRoutes = []dumbRoute{
	{regexp.MustCompile(`^HEAD$`), classText},
	{regexp.MustCompile(`^packed-refs$`), classText},
	{regexp.MustCompile(`^info/refs$`), classText},
	{regexp.MustCompile(`^objects/info/(packs|alternates|http-alternates)$`), classText},
	{regexp.MustCompile(`^objects/[0-9a-f]{2}/[0-9a-f]{38}([0-9a-f]{24})?$`), classImmutable},
	{regexp.MustCompile(`^objects/pack/pack-[0-9a-f]{40}([0-9a-f]{24})?\.(pack|idx)$`), classImmutable},
}

const oneYear = "public, max-age=31536000, immutable"

// IsDumbPath reports whether rel names a file the dumb protocol serves.
func IsDumbPath(rel string) bool {
	_, ok := classify(rel)
	return ok
}

func classify(rel string) (fileClass, bool) {
	for _, route := range dumbRoutes {
		if route.pattern.MatchString(rel) {
			return route.class, true
		}
	}
	return 0, false
}

type DumbServer struct {
	logger *logging.Logger
}

func NewDumbServer(logger *logging.Logger) *DumbServer {
	if logger == nil {
		logger = logging.Nop()
	}
	return &DumbServer{logger: logger}
}

// ServeFile serves rel from the repository at loc. rel is relative to the
// repository root and uses forward slashes.
func (s *DumbServer) ServeFile(w http.ResponseWriter, r *http.Request, loc *model.RepoLocation, rel string) {
	ctx := r.Context()
	if rel == "info/packs" {
		rel = "objects/info/packs"
	}
	if rel == "" || path.Clean("/"+rel) != "/"+rel {
		http.NotFound(w, r)
		return
	}
	class, ok := classify(rel)
	if !ok {
		http.NotFound(w, r)
		return
	}

	full, err := gitrepo.Within(loc.Path, filepath.Join(loc.Path, filepath.FromSlash(rel)))
	if err != nil {
		if errors.Is(err, errdefs.ErrPathEscape) {
			s.logger.Warn(ctx, "path escape attempt on dumb protocol",
				zap.String("repo", loc.Path),
				zap.String("path", rel),
			)
		}
		http.NotFound(w, r)
		return
	}

	f, err := os.Open(full)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil || !info.Mode().IsRegular() {
		http.NotFound(w, r)
		return
	}

	h := w.Header()
	switch class {
	case classText:
		h.Set("Content-Type", "text/plain; charset=utf-8")
		setNoCache(h)
	case classImmutable:
		h.Set("Content-Type", "application/octet-stream")
		h.Set("Cache-Control", oneYear)
	}
	http.ServeContent(w, r, "", info.ModTime(), f)
}
