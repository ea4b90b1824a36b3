// Package webhook stores received call-event callback payloads in a bounded
// in-memory buffer with substring search for inspection endpoints.
package webhook
