// Package remote serves a store over HTTP and implements a store client for
// such a server.
//
// References travel as query parameters in their canonical string form, so
// user, channel and revision survive unchanged. Artifacts are raw request
// and response bodies; the revision of a fetched artifact is returned in the
// X-Revision header.
//
//	GET    /v1/recipes/{name}            versions of a package
//	GET    /v1/recipe/exists?ref=        {"revision": "...", "found": true}
//	GET    /v1/recipe/revisions?ref=     ["rev", ...]
//	GET    /v1/recipe?ref=               artifact
//	PUT    /v1/recipe?ref=               {"revision": "..."}
//	GET    /v1/packages?ref=             ["pkgid", ...]
//	GET    /v1/package/exists?pref=
//	GET    /v1/package?pref=
//	PUT    /v1/package?pref=
//	DELETE /v1/package?pref=
package remote

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/matzehuels/stackforge/pkg/errors"
	"github.com/matzehuels/stackforge/pkg/observability"
	"github.com/matzehuels/stackforge/pkg/ref"
	"github.com/matzehuels/stackforge/pkg/store"
)

// HeaderRevision carries the revision of a fetched artifact.
const HeaderRevision = "X-Revision"

// HeaderRequestID carries the client's request ID.
var HeaderRequestID = middleware.RequestIDHeader

// maxArtifactSize bounds request bodies.
const maxArtifactSize = 512 << 20

// ServerOptions configures [NewServer].
type ServerOptions struct {
	Logger  *log.Logger
	Metrics http.Handler // served on /metrics when set
}

type server struct {
	st     store.Store
	logger *log.Logger
}

// NewServer returns a handler exposing st.
func NewServer(st store.Store, opts ServerOptions) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	s := &server{st: st, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.observe)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Get("/recipes/{name}", s.listRecipes)
		r.Get("/recipe/exists", s.recipeExists)
		r.Get("/recipe/revisions", s.recipeRevisions)
		r.Get("/recipe", s.fetchRecipe)
		r.Put("/recipe", s.putRecipe)
		r.Get("/packages", s.listPackages)
		r.Get("/package/exists", s.packageExists)
		r.Get("/package", s.fetchPackage)
		r.Put("/package", s.putPackage)
		r.Delete("/package", s.removePackage)
	})
	return r
}

// observe logs each request and reports it to the HTTP hooks under its
// route pattern.
func (s *server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		pattern := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			pattern = rc.RoutePattern()
		}
		d := time.Since(start)
		observability.HTTP().OnResponse(r.Context(), r.Method, r.Host, pattern, ww.Status(), d)
		s.logger.Debug("request",
			"id", middleware.GetReqID(r.Context()),
			"method", r.Method,
			"path", pattern,
			"status", ww.Status(),
			"duration", d)
	})
}

type existsResponse struct {
	Revision string `json:"revision,omitempty"`
	Found    bool   `json:"found"`
}

type putResponse struct {
	Revision string `json:"revision"`
}

type errorResponse struct {
	Code    errors.Code `json:"code"`
	Message string      `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *server) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := errors.GetCode(err)
	status := http.StatusInternalServerError
	switch code {
	case errors.ErrCodeNotFound:
		status = http.StatusNotFound
	case errors.ErrCodeInvalidReference, errors.ErrCodeInvalidInput:
		status = http.StatusBadRequest
	}
	if code == "" {
		code = errors.ErrCodeInternal
	}
	if status >= 500 {
		s.logger.Error("request failed", "path", r.URL.Path, "err", err)
	}
	writeJSON(w, status, errorResponse{Code: code, Message: errors.UserMessage(err)})
}

func queryRef(r *http.Request) (ref.Reference, error) {
	return ref.Parse(r.URL.Query().Get("ref"))
}

func queryPackage(r *http.Request) (ref.PackageReference, error) {
	return ref.ParsePackage(r.URL.Query().Get("pref"))
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxArtifactSize))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "read artifact")
	}
	return data, nil
}

func (s *server) listRecipes(w http.ResponseWriter, r *http.Request) {
	refs, err := s.st.List(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out := make([]string, len(refs))
	for i, rf := range refs {
		out[i] = rf.Repr()
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *server) recipeExists(w http.ResponseWriter, r *http.Request) {
	rf, err := queryRef(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	rev, ok, err := s.st.Exists(r.Context(), rf)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, existsResponse{Revision: rev, Found: ok})
}

func (s *server) recipeRevisions(w http.ResponseWriter, r *http.Request) {
	rf, err := queryRef(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	revs, err := s.st.ListRevisions(r.Context(), rf)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if revs == nil {
		revs = []string{}
	}
	writeJSON(w, http.StatusOK, revs)
}

func (s *server) fetchRecipe(w http.ResponseWriter, r *http.Request) {
	rf, err := queryRef(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	data, got, err := s.st.Fetch(r.Context(), rf)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set(HeaderRevision, got.Revision)
	w.Header().Set("Content-Type", "application/octet-stream")
	_, _ = w.Write(data)
}

func (s *server) putRecipe(w http.ResponseWriter, r *http.Request) {
	rf, err := queryRef(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	data, err := readBody(w, r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	rev, err := s.st.Put(r.Context(), rf, data)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.logger.Info("recipe uploaded", "ref", rf.WithRevision(rev).Repr())
	writeJSON(w, http.StatusCreated, putResponse{Revision: rev})
}

func (s *server) listPackages(w http.ResponseWriter, r *http.Request) {
	rf, err := queryRef(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ids, err := s.st.ListPackages(r.Context(), rf)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, ids)
}

func (s *server) packageExists(w http.ResponseWriter, r *http.Request) {
	p, err := queryPackage(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	prev, ok, err := s.st.ExistsPackage(r.Context(), p)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, existsResponse{Revision: prev, Found: ok})
}

func (s *server) fetchPackage(w http.ResponseWriter, r *http.Request) {
	p, err := queryPackage(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	data, got, err := s.st.FetchPackage(r.Context(), p)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set(HeaderRevision, got.Revision)
	w.Header().Set("Content-Type", "application/octet-stream")
	_, _ = w.Write(data)
}

func (s *server) putPackage(w http.ResponseWriter, r *http.Request) {
	p, err := queryPackage(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	data, err := readBody(w, r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	prev, err := s.st.PutPackage(r.Context(), p, data)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.logger.Info("package uploaded", "pref", p.WithRevision(prev).Repr())
	writeJSON(w, http.StatusCreated, putResponse{Revision: prev})
}

func (s *server) removePackage(w http.ResponseWriter, r *http.Request) {
	p, err := queryPackage(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.st.RemovePackage(r.Context(), p); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
