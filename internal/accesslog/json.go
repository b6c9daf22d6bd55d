package accesslog

import (
	"bytes"
	"io"
	"sync"

	"github.com/rs/zerolog"
)

// JSONLogger writes one JSON object per record carrying the full header set.
// Each event is encoded into a pooled buffer and handed to the writer in a
// single call, so write failures reach the caller.
type JSONLogger struct {
	w    io.Writer
	zl   zerolog.Logger
	pool sync.Pool
}

// NewJSON returns a JSON logger writing to w.
func NewJSON(w io.Writer) *JSONLogger {
	return &JSONLogger{
		w:  w,
		zl: zerolog.New(io.Discard),
		pool: sync.Pool{New: func() any {
			return new(bytes.Buffer)
		}},
	}
}

// Log emits rec as
// {"timestamp":..,"remote_addr":..,"method":..,"uri":..,"headers":{..}}.
func (l *JSONLogger) Log(rec Record) error {
	buf := l.pool.Get().(*bytes.Buffer)
	buf.Reset()
	defer l.pool.Put(buf)

	headers := zerolog.Dict()
	for _, h := range rec.Headers {
		headers = headers.Str(h.Name, h.Value)
	}
	zl := l.zl.Output(buf)
	zl.Log().
		Str("timestamp", rec.Time.UTC().Format(TimeFormat)).
		Str("remote_addr", orPlaceholder(rec.RemoteAddr)).
		Str("method", rec.Method).
		Str("uri", rec.URI).
		Dict("headers", headers).
		Send()

	_, err := l.w.Write(buf.Bytes())
	return err
}
