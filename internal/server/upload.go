package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"nextcube/internal/accesslog"
	"nextcube/internal/db"
	"nextcube/internal/storage"
)

// errBodyTooLarge is returned when a body exceeds the configured cap,
// whether announced by Content-Length or discovered while streaming.
var errBodyTooLarge = errors.New("request body exceeds size cap")

// UploadRecorder persists one row per upload attempt.
type UploadRecorder interface {
	RecordUpload(ctx context.Context, u db.Upload) error
}

// limitBody returns the request body capped at the configured size. A
// declared Content-Length above the cap is rejected before any byte is
// consumed, so the destination is never opened.
func (s *Server) limitBody(w http.ResponseWriter, r *http.Request) (io.Reader, error) {
	if r.ContentLength > s.cfg.MaxBodyBytes {
		return nil, errBodyTooLarge
	}
	return http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes), nil
}

// bodyError folds *http.MaxBytesError into errBodyTooLarge.
func bodyError(err error) error {
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		return fmt.Errorf("%w: %v", errBodyTooLarge, err)
	}
	return err
}

// uploadHandler handles POST /upload/{path...}: the raw body is streamed
// into the upload store at path, replacing any existing object. Parent
// directories are created. Names resolving outside the root get the
// not-found document and touch nothing. Any I/O or size failure is a 500;
// a partially written file is left as is.
func (s *Server) uploadHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		rid := RequestIDFromContext(ctx)

		rel, err := storage.CleanPath(r.PathValue("path"))
		if err != nil {
			s.log.Warn().Str("rid", rid.String()).Str("path", r.PathValue("path")).Msg("upload_path_rejected")
			handleNotFound(w, r)
			return
		}

		start := time.Now()
		var n int64
		body, err := s.limitBody(w, r)
		if err == nil {
			n, err = s.upload.Put(ctx, rel, body, r.ContentLength)
			err = bodyError(err)
		}

		s.recordUpload(ctx, db.Upload{
			RequestID:  rid,
			Path:       rel,
			SizeBytes:  n,
			RemoteAddr: accesslog.FromRequest(r, start).RemoteAddr,
			OK:         err == nil,
			Error:      errString(err),
			CreatedAt:  start.UTC(),
		})

		if err != nil {
			if errors.Is(err, errBodyTooLarge) {
				s.metrics.rejections.WithLabelValues("upload").Inc()
			}
			s.log.Error().Err(err).
				Str("rid", rid.String()).
				Str("path", rel).
				Int64("bytes", n).
				Msg("upload_failed")
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		s.metrics.uploadBytes.Add(float64(n))
		s.log.Debug().
			Str("rid", rid.String()).
			Str("path", rel).
			Int64("bytes", n).
			Dur("took", time.Since(start)).
			Msg("upload_stored")
		w.WriteHeader(http.StatusOK)
	})
}

// dumpHandler handles POST / and POST /dump: the raw body is echoed to the
// shared stdout sink followed by a newline. The sink is held for the whole
// body, so access records and other dumps wait instead of splitting it.
func (s *Server) dumpHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var n int64
		body, err := s.limitBody(w, r)
		if err == nil {
			err = s.stdout.Hold(func(out io.Writer) error {
				var err error
				n, err = storage.CopyChunked(out, body)
				// A truncated body still ends its line.
				if _, werr := io.WriteString(out, "\n"); err == nil {
					err = werr
				}
				return bodyError(err)
			})
		}
		if err != nil {
			if errors.Is(err, errBodyTooLarge) {
				s.metrics.rejections.WithLabelValues("dump").Inc()
			}
			s.log.Error().Err(err).
				Str("rid", RequestIDFromContext(r.Context()).String()).
				Int64("bytes", n).
				Msg("dump_failed")
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		s.metrics.dumpBytes.Add(float64(n))
		w.WriteHeader(http.StatusOK)
	})
}

// recordUpload writes to the ledger when one is configured. Ledger errors
// are logged and never change the response.
func (s *Server) recordUpload(ctx context.Context, u db.Upload) {
	if s.ledger == nil {
		return
	}
	// The request context may already be cancelled by a client abort.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.ledger.RecordUpload(ctx, u); err != nil {
		s.log.Warn().Err(err).Str("rid", u.RequestID.String()).Msg("ledger_write_failed")
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
