package server

import (
	"errors"
	"net/http"

	"nextcube/internal/storage"
)

// staticHandler serves GET /static/{path...}. Missing files, directories,
// unreadable files and names resolving outside the root are all answered
// with the not-found document. ServeContent streams the object and handles
// Range and conditional requests.
func (s *Server) staticHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		obj, info, err := s.static.Open(r.Context(), r.PathValue("path"))
		if err != nil {
			if errors.Is(err, storage.ErrOutsideRoot) {
				s.log.Warn().
					Str("rid", RequestIDFromContext(r.Context()).String()).
					Str("path", r.PathValue("path")).
					Msg("static_path_rejected")
			} else if !errors.Is(err, storage.ErrNotFound) {
				s.log.Debug().Err(err).
					Str("rid", RequestIDFromContext(r.Context()).String()).
					Msg("static_open_failed")
			}
			handleNotFound(w, r)
			return
		}
		defer func() { _ = obj.Close() }()

		http.ServeContent(w, r, info.Name, info.ModTime, obj)
	})
}
