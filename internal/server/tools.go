package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

func pathProperty(description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": description,
	}
}

// frameProperties are the inputs shared by the rangefinding tools.
func frameProperties() map[string]interface{} {
	return map[string]interface{}{
		"frame_path": pathProperty("Absolute path to the camera frame"),
		"template_path": pathProperty(
			"Absolute path to the reference pattern image. Defaults to the configured template; " +
				"with neither, the measurement reports an invalid template and distance -1"),
		"region": map[string]interface{}{
			"type":        "object",
			"description": "Optional crop of the template image holding the pattern: x1,y1 inclusive, x2,y2 exclusive",
			"properties": map[string]interface{}{
				"x1": map[string]interface{}{"type": "integer"},
				"y1": map[string]interface{}{"type": "integer"},
				"x2": map[string]interface{}{"type": "integer"},
				"y2": map[string]interface{}{"type": "integer"},
			},
			"required": []string{"x1", "y1", "x2", "y2"},
		},
		"rotation": map[string]interface{}{
			"type":        "integer",
			"enum":        []int{0, 90, 180, 270},
			"description": "Device rotation when the frame was captured. Omit when the frame is already upright",
		},
	}
}

func withProperties(base map[string]interface{}, extra map[string]interface{}) map[string]interface{} {
	for k, v := range extra {
		base[k] = v
	}
	return base
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		// Basic Image Information
		{
			Name:        "image_load",
			Description: "Load an image file and return its dimensions and format. The image is cached for subsequent operations.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty("Absolute path to the image file"),
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "image_dimensions",
			Description: "Get the width and height of an image file.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty("Absolute path to the image file"),
				},
				"required": []string{"path"},
			},
		},

		// Template Preparation
		{
			Name:        "image_crop",
			Description: "Crop a rectangular region from an image and return it as base64-encoded PNG. Use this to preview a template region before measuring with it.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty("Absolute path to the image file"),
					"x1": map[string]interface{}{
						"type":        "integer",
						"description": "Left edge X coordinate (0-based)",
					},
					"y1": map[string]interface{}{
						"type":        "integer",
						"description": "Top edge Y coordinate (0-based)",
					},
					"x2": map[string]interface{}{
						"type":        "integer",
						"description": "Right edge X coordinate (exclusive)",
					},
					"y2": map[string]interface{}{
						"type":        "integer",
						"description": "Bottom edge Y coordinate (exclusive)",
					},
				},
				"required": []string{"path", "x1", "y1", "x2", "y2"},
			},
		},
		{
			Name:        "image_edge_detect",
			Description: "Return the binary edge map the pattern search matches on, as base64-encoded PNG.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty("Absolute path to the image file"),
					"threshold_low": map[string]interface{}{
						"type":        "integer",
						"description": "Low threshold for Canny edge detection (default from configuration, 50)",
						"default":     50,
					},
					"threshold_high": map[string]interface{}{
						"type":        "integer",
						"description": "High threshold for Canny edge detection (default from configuration, 200)",
						"default":     200,
					},
				},
				"required": []string{"path"},
			},
		},

		// Rangefinding
		{
			Name:        "pattern_locate",
			Description: "Search a frame for the reference pattern across ten template scales. Returns the cap size, every evaluated scale with its score and location, and the best match.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": frameProperties(),
				"required":   []string{"frame_path"},
			},
		},
		{
			Name:        "distance_estimate",
			Description: "Locate the reference pattern in a frame and estimate its distance from the camera as real_width * focal_length / perceived_width. Returns the distance, bounding box and status.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": withProperties(frameProperties(), map[string]interface{}{
					"real_width": map[string]interface{}{
						"type":        "number",
						"description": "Physical width of the pattern. Defaults to the configured calibration",
					},
					"focal_length": map[string]interface{}{
						"type":        "number",
						"description": "Camera focal length in pixels. Defaults to the configured calibration",
					},
				}),
				"required": []string{"frame_path"},
			},
		},
		{
			Name:        "frame_annotate",
			Description: "Measure a frame and draw the located pattern's bounding box and distance on it. Returns the annotated frame as base64-encoded PNG with the measurement.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": withProperties(frameProperties(), map[string]interface{}{
					"color": map[string]interface{}{
						"type":        "string",
						"description": "Box colour as #RRGGBB (default from configuration, #0000FF)",
					},
					"output_path": pathProperty("Optional path to also write the annotated frame to"),
				}),
				"required": []string{"frame_path"},
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
