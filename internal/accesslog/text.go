package accesslog

import (
	"bytes"
	"io"
	"sync"
)

// TextLogger writes one line per record:
//
//	<ts> <remote> <method> <uri> "<referrer>" "<user-agent>" "<cookies>"
//
// optionally followed by ` "<authorization>"`.
type TextLogger struct {
	w        io.Writer
	withAuth bool
	pool     sync.Pool
}

// NewText returns a text logger writing to w.
func NewText(w io.Writer, withAuth bool) *TextLogger {
	return &TextLogger{
		w:        w,
		withAuth: withAuth,
		pool: sync.Pool{New: func() any {
			return new(bytes.Buffer)
		}},
	}
}

// Log formats rec into a pooled buffer and emits it with one Write.
func (l *TextLogger) Log(rec Record) error {
	buf := l.pool.Get().(*bytes.Buffer)
	buf.Reset()
	defer l.pool.Put(buf)

	buf.WriteString(rec.Time.UTC().Format(TimeFormat))
	buf.WriteByte(' ')
	buf.WriteString(orPlaceholder(rec.RemoteAddr))
	buf.WriteByte(' ')
	buf.WriteString(rec.Method)
	buf.WriteByte(' ')
	buf.WriteString(rec.URI)
	quoted(buf, rec.Referrer)
	quoted(buf, rec.UserAgent)
	quoted(buf, rec.Cookies)
	if l.withAuth {
		quoted(buf, rec.Authorization)
	}
	buf.WriteByte('\n')

	_, err := l.w.Write(buf.Bytes())
	return err
}

func quoted(buf *bytes.Buffer, v string) {
	buf.WriteString(` "`)
	buf.WriteString(orPlaceholder(v))
	buf.WriteByte('"')
}
