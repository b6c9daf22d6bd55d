// Package server implements the nextcube HTTP server: a fixed route table
// (ping, robots, static files, raw upload, stdout dump), the request
// logging and response header middleware around it, and the lifecycle
// helpers used by tests and the production binary.
package server
