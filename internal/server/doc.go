// Package server implements the MCP (Model Context Protocol) server for the
// sheet and foot detector.
//
// # Protocol
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses on stdout
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Available Tools
//
// Basic Image Information:
//   - sheet_load: Load image and get metadata
//   - sheet_dimensions: Get width and height
//
// Detection:
//   - sheet_detect: The {a4_detected, foot_on_a4} verdict
//   - sheet_analyze: Every intermediate result of one run
//   - sheet_annotate: Pipeline state drawn over the photo
//   - sheet_edges: The Canny edge map
//
// Region Operations:
//   - sheet_crop: Crop a rectangle drawn on a scaled preview
//   - sheet_crop_region: Crop a rectangle in image coordinates
//
// The detection tools accept an optional strategy that overrides the
// configured one for a single call.
//
// # Image Caching
//
// Images are cached by path and reused across tool calls. The cache
// persists for the lifetime of the server process.
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with:
//   - code: -32000 (tool execution failure) or standard JSON-RPC codes
//   - message: Human-readable error description
//   - data: Additional error details (typically the Go error string)
//
// # Usage
//
//	d, err := detection.New(detection.DefaultParams())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := server.New(d).Run(); err != nil {
//	    log.Fatal(err)
//	}
package server
