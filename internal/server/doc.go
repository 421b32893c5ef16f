// Package server implements the MCP (Model Context Protocol) server for the rangefinder.
//
// This package provides a JSON-RPC 2.0 server that exposes pattern localization and
// distance estimation through the MCP protocol, so an MCP client can measure how far
// a known reference pattern is from the camera in a captured frame.
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
//   - image_load: Load image and get metadata
//   - image_dimensions: Get width and height
//
// Template Preparation:
//   - image_crop: Preview a template region
//   - image_edge_detect: Show the edge map used for matching
//
// Rangefinding:
//   - pattern_locate: Scale search trace and best match
//   - distance_estimate: Distance and bounding box
//   - frame_annotate: Frame with the box and distance drawn on it
//
// The rangefinding tools take a frame, an optional template (falling back to the
// configured one) and an optional device rotation. A frame that cannot be
// measured still succeeds; its status and reason are part of the result.
//
// # Image Caching
//
// The server maintains an in-memory cache of loaded images. Frames and templates
// are cached by path and reused across tool calls for the lifetime of the process.
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with:
//   - code: -32000 (tool execution failure), -32602 (invalid params) or -32601 (unknown method)
//   - message: Human-readable error description
//   - data: The Go error string
//
// # Usage
//
// The server is typically started by the rangefinder-mcp command:
//
//	srv, err := server.NewFromConfig(cfg)
//	if err != nil {
//	    return err
//	}
//	return srv.Run(ctx)
package server
