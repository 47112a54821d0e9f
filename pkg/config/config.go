// Package config holds process-wide defaults shared between the
// server and CLI entry points.
package config

import "time"

// Server defaults
const (
	DefaultHost     = "127.0.0.1"
	DefaultHTTPPort = "1990"
	DefaultTraceTTL = 1 * time.Hour
)

// WebSocket configuration, shared by the stream_traces upgrade handler.
const (
	WSReadBufferSize  = 1024
	WSWriteBufferSize = 1024
	WSBroadcastBuffer = 256
	WSChannelBuffer   = 10
	WSWriteDeadline   = 10 * time.Second
	WSReadDeadline    = 60 * time.Second
	WSPingInterval    = 30 * time.Second
)
