// Package server implements the MCP (Model Context Protocol) server for the
// OCR pipeline.
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
// Recognition:
//   - ocr_recognize: Text and boxes of a whole image, grouped or flat
//   - ocr_recognize_region: Text inside a rectangle
//
// Detection:
//   - ocr_detect_boxes: Text boxes without recognition
//   - ocr_deskew: Straightened image and skew angle
//   - ocr_annotate: Image with recognized boxes outlined
//
// Pipeline management:
//   - ocr_status: Pipeline and engine state
//   - ocr_change_detection_model: Swap the detection model
//   - ocr_change_recognition_model: Swap the recognition model
//   - ocr_change_dictionary: Swap the dictionary
//
// # Image Caching
//
// Image files are cached by path for the lifetime of the process. Recognition
// results are cached separately by the pipeline, keyed on image content.
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with:
//   - code: -32000 (tool execution failure) or standard JSON-RPC codes
//   - message: Human-readable error description
//   - data: error_code, message and details for pipeline errors; the Go
//     error string otherwise
//
// # Usage
//
//	srv := server.New(pipeline, version, logger)
//	if err := srv.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
package server
