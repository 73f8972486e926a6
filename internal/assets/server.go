package assets

import (
	"log/slog"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ivlev/scrollframes/internal/config"
	"github.com/ivlev/scrollframes/internal/frames"
)

// Server serves a frame sequence from a directory under Frames.Base.
type Server struct {
	Dir    string
	Frames config.FramesConfig
	Logger *slog.Logger
}

// Handler builds the router. Only names that follow the frame naming
// convention are served; everything else under the mount is a 404.
func (s *Server) Handler() http.Handler {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	mount := "/" + strings.Trim(path.Clean("/"+s.Frames.Base), "/")

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Route(mount, func(r chi.Router) {
		r.Get("/{name}", func(w http.ResponseWriter, r *http.Request) {
			name := chi.URLParam(r, "name")
			if _, ok := frames.ParseName(s.Frames, name); !ok {
				http.NotFound(w, r)
				return
			}
			p := filepath.Join(s.Dir, name)
			if _, err := os.Stat(p); err != nil {
				logger.Debug("frame missing", "name", name, "error", err)
				http.NotFound(w, r)
				return
			}
			w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
			http.ServeFile(w, r, p)
		})
	})
	return r
}
