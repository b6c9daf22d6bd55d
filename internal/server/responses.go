package server

import (
	"io"
	"net/http"
)

const (
	// ServerHeader is the fixed Server response header value.
	ServerHeader = "NeXTcube"

	// AcceptCHValue lists the client hints advertised when Accept-CH is enabled.
	AcceptCHValue = "Sec-CH-UA, Sec-CH-UA-Arch, Sec-CH-UA-Bitness, Sec-CH-UA-Full-Version-List, " +
		"Sec-CH-UA-Mobile, Sec-CH-UA-Model, Sec-CH-UA-Platform, Sec-CH-UA-Platform-Version"

	pingBody   = "OK\r\n"
	robotsBody = "User-agent: *\r\nDisallow: /\r\n"

	notFoundBody = `<!DOCTYPE html>
<html>
<head>
    <meta charset="utf-8">
    <title>404 Not Found</title>
</head>
<body align="center">
    <div align="center">
        <h1>404: Not Found</h1>
        <p>The requested resource could not be found.</p>
    </div>
</body>
</html>`
)

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func handlePing(w http.ResponseWriter, r *http.Request) {
	writeText(w, http.StatusOK, pingBody)
}

func handleRobots(w http.ResponseWriter, r *http.Request) {
	writeText(w, http.StatusOK, robotsBody)
}

// handleNotFound serves the same document for every unmatched request.
func handleNotFound(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusNotFound)
	_, _ = io.WriteString(w, notFoundBody)
}
