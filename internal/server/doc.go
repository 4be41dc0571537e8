// Package server implements the development assistant HTTP server. It
// accepts multipart audio uploads on /assistant, manages the voice
// registry under /voices and exposes health and Prometheus metrics
// endpoints.
package server
