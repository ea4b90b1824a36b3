// Package server provides the HTTP and WebSocket surface of the relay:
// NCCO and callback endpoints, session monitoring, Prometheus metrics, and
// the websocket upgrade paths that hand established connections to the
// echo and playback session managers.
package server
