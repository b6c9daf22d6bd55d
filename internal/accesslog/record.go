// Package accesslog renders one access record per HTTP request, either as
// a quoted text line or as a JSON object, onto a shared writer.
package accesslog

import (
	"fmt"
	"io"
	"net"
	"net/http"
	"sort"
	"strings"
	"time"
)

// TimeFormat is UTC with millisecond precision, e.g. 2024-01-02T03:04:05.678Z.
const TimeFormat = "2006-01-02T15:04:05.000Z"

// Placeholder is rendered for any absent or empty field.
const Placeholder = "-"

// Mode selects the record encoding.
type Mode string

const (
	ModeText Mode = "text"
	ModeJSON Mode = "json"
)

// Header is one request header. Records carry headers as an ordered slice
// so the encoding does not depend on map iteration order.
type Header struct {
	Name  string
	Value string
}

// Record is the data extracted from a request before its handler runs.
// It holds copies only; nothing references the live request.
type Record struct {
	Time          time.Time
	RemoteAddr    string
	Method        string
	URI           string
	Referrer      string
	UserAgent     string
	Cookies       string
	Authorization string
	Headers       []Header
}

// Logger consumes access records. Implementations must write each record
// with a single call to the underlying writer.
type Logger interface {
	Log(rec Record) error
}

// Options tunes the logger built by New.
type Options struct {
	// LogAuthorization appends the Authorization field to text records.
	LogAuthorization bool
}

// New returns the logger for mode writing to w. Concurrent callers should
// pass a *Sink so records from different requests never interleave.
func New(mode Mode, w io.Writer, opts Options) (Logger, error) {
	switch mode {
	case ModeText, "":
		return NewText(w, opts.LogAuthorization), nil
	case ModeJSON:
		return NewJSON(w), nil
	default:
		return nil, fmt.Errorf("unknown access log mode %q", mode)
	}
}


// FromRequest builds the record for r at instant now. Only header lookups
// are performed; the body is never touched.
func FromRequest(r *http.Request, now time.Time) Record {
	return Record{
		Time:          now.UTC(),
		RemoteAddr:    remoteIP(r.RemoteAddr),
		Method:        r.Method,
		URI:           r.RequestURI,
		Referrer:      orPlaceholder(r.Header.Get("Referer")),
		UserAgent:     orPlaceholder(r.Header.Get("User-Agent")),
		Cookies:       orPlaceholder(strings.Join(r.Header.Values("Cookie"), ",")),
		Authorization: orPlaceholder(r.Header.Get("Authorization")),
		Headers:       headerList(r),
	}
}

// remoteIP returns the textual IP of a "host:port" remote address, or the
// placeholder when the address is missing or not an IP.
func remoteIP(addr string) string {
	if addr == "" {
		return Placeholder
	}
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return Placeholder
	}
	return ip.String()
}

func orPlaceholder(v string) string {
	if v == "" {
		return Placeholder
	}
	return v
}

// headerList flattens the request headers sorted by canonical name. For a
// repeated name the last value wins. net/http moves Host out of the header
// map, so it is added back.
func headerList(r *http.Request) []Header {
	out := make([]Header, 0, len(r.Header)+1)
	hasHost := false
	for name, values := range r.Header {
		if len(values) == 0 {
			continue
		}
		if name == "Host" {
			hasHost = true
		}
		out = append(out, Header{Name: name, Value: values[len(values)-1]})
	}
	if !hasHost && r.Host != "" {
		out = append(out, Header{Name: "Host", Value: r.Host})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
