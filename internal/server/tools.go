package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

func pathProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Absolute path to the image file",
	}
}

func fileProperty(what string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Absolute path to the " + what,
	}
}

func scaleProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "number",
		"description": "Optional scale factor for the returned image. Default 1.0",
		"default":     1.0,
	}
}

func coordinateProperties(props map[string]interface{}) map[string]interface{} {
	props["x1"] = map[string]interface{}{
		"type":        "integer",
		"description": "Left edge X coordinate (0-based)",
	}
	props["y1"] = map[string]interface{}{
		"type":        "integer",
		"description": "Top edge Y coordinate (0-based)",
	}
	props["x2"] = map[string]interface{}{
		"type":        "integer",
		"description": "Right edge X coordinate (exclusive)",
	}
	props["y2"] = map[string]interface{}{
		"type":        "integer",
		"description": "Bottom edge Y coordinate (exclusive)",
	}
	return props
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		// Recognition
		{
			Name:        "ocr_recognize",
			Description: "Detect and recognize all text in an image. Returns the full text plus every recognized box with its confidence, grouped into lines in reading order (or as a flat list when flatten is true).",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
					"flatten": map[string]interface{}{
						"type":        "boolean",
						"description": "Return a flat list of results instead of lines. Default false",
						"default":     false,
					},
					"auto_deskew": map[string]interface{}{
						"type":        "boolean",
						"description": "Straighten the image before detection. Defaults to the server setting; box coordinates then refer to the straightened image",
					},
					"no_cache": map[string]interface{}{
						"type":        "boolean",
						"description": "Bypass the result cache. Default false",
						"default":     false,
					},
					"dictionary_path": fileProperty("dictionary file to decode this call with (results are not cached)"),
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "ocr_recognize_region",
			Description: "Recognize text inside a rectangular region of an image. Box coordinates in the result are relative to the region.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": coordinateProperties(map[string]interface{}{
					"path": pathProperty(),
				}),
				"required": []string{"path", "x1", "y1", "x2", "y2"},
			},
		},

		// Detection
		{
			Name:        "ocr_detect_boxes",
			Description: "Find text boxes in an image without recognizing them.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "ocr_deskew",
			Description: "Estimate the text skew of an image and return the straightened image as base64-encoded PNG along with the angle in degrees (positive is clockwise).",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path":  pathProperty(),
					"scale": scaleProperty(),
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "ocr_annotate",
			Description: "Recognize an image and return a copy with every text box outlined, colored by line and labeled \"line,word\". Useful to check what the recognizer saw.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path":  pathProperty(),
					"scale": scaleProperty(),
					"thickness": map[string]interface{}{
						"type":        "integer",
						"description": "Outline width in pixels. Default 2",
						"default":     2,
					},
				},
				"required": []string{"path"},
			},
		},

		// Pipeline management
		{
			Name:        "ocr_status",
			Description: "Report the pipeline state, loaded models, dictionary size, engine and Tesseract availability.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},
		{
			Name:        "ocr_change_detection_model",
			Description: "Replace the text detection model. The current model stays in use if the new one fails to load.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": fileProperty("ONNX detection model"),
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "ocr_change_recognition_model",
			Description: "Replace the text recognition model. The current model stays in use if the new one fails to load.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": fileProperty("ONNX recognition model"),
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "ocr_change_dictionary",
			Description: "Replace the recognition dictionary with a newline-separated character list.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": fileProperty("dictionary file"),
				},
				"required": []string{"path"},
			},
		},
	}
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": GetToolDefinitions(),
		},
	}
}
