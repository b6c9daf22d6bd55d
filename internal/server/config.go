package server

import (
	"net"
	"strconv"

	"nextcube/internal/accesslog"
	"nextcube/internal/storage"
)

const (
	// DefaultPort is used when no port is configured.
	DefaultPort = 8000
	// DefaultMaxBodyBytes caps upload and dump bodies.
	DefaultMaxBodyBytes int64 = 1 << 20
	// ListenHost binds every interface.
	ListenHost = "0.0.0.0"
)

// Config is built once at startup and never mutated afterwards.
type Config struct {
	Host string // defaults to ListenHost
	Port int

	// TLS is enabled only when both files are set.
	TLSCert string
	TLSKey  string

	StaticDir    string
	UploadDir    string
	MaxBodyBytes int64

	LogFormat        accesslog.Mode
	LogAuthorization bool
	LogLevel         string

	AcceptCH bool
	H2C      bool

	// MetricsPort serves Prometheus metrics on a separate listener; 0 disables it.
	MetricsPort int

	DatabaseURL string

	S3             storage.S3Config
	S3StaticPrefix string
	S3UploadPrefix string
}

// DefaultConfig mirrors the reference deployment.
func DefaultConfig() Config {
	return Config{
		Host:           ListenHost,
		Port:           DefaultPort,
		StaticDir:      "./static",
		UploadDir:      "./upload",
		MaxBodyBytes:   DefaultMaxBodyBytes,
		LogFormat:      accesslog.ModeText,
		LogLevel:       "info",
		S3StaticPrefix: "static/",
		S3UploadPrefix: "upload/",
	}
}

// Addr returns the host:port the public listener binds.
func (c Config) Addr() string {
	host := c.Host
	if host == "" {
		host = ListenHost
	}
	return net.JoinHostPort(host, strconv.Itoa(c.Port))
}

// MetricsAddr returns the metrics listener address, or "" when disabled.
func (c Config) MetricsAddr() string {
	if c.MetricsPort == 0 {
		return ""
	}
	host := c.Host
	if host == "" {
		host = ListenHost
	}
	return net.JoinHostPort(host, strconv.Itoa(c.MetricsPort))
}

// TLSEnabled reports whether a certificate and key were both supplied.
func (c Config) TLSEnabled() bool {
	return c.TLSCert != "" && c.TLSKey != ""
}
