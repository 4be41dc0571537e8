// Package assistant implements the HTTP client for the assistant endpoint.
// It submits one recorded session as a multipart audio upload, parses the
// JSON response and strictly decodes the hex-encoded synthesized reply.
package assistant
