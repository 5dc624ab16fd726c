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

func strategyProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"enum":        []string{"line-cluster", "quad"},
		"description": "Sheet search strategy. Defaults to the server's configured strategy",
	}
}

func formatProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"enum":        []string{"png", "webp"},
		"description": "Output image encoding. Default png",
		"default":     "png",
	}
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		// Basic Image Information
		{
			Name:        "sheet_load",
			Description: "Load an image file and return its dimensions and format. The decoded image is cached for subsequent calls.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "sheet_dimensions",
			Description: "Get the width and height of an image file.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
				},
				"required": []string{"path"},
			},
		},

		// Detection
		{
			Name:        "sheet_detect",
			Description: "Decide whether the photo shows an A4 sheet and whether a foot stands on it. Returns {a4_detected, foot_on_a4}.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path":     pathProperty(),
					"strategy": strategyProperty(),
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "sheet_analyze",
			Description: "Run the detection pipeline and return every intermediate result: line segments, corner clusters, the Otsu level and the foot candidate. Use this to see why a verdict came out the way it did.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path":     pathProperty(),
					"strategy": strategyProperty(),
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "sheet_annotate",
			Description: "Run the detection pipeline and draw its state over the photo: segments, corner clusters, the search mask and the foot contour. Returns a base64-encoded image and the verdict.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path":     pathProperty(),
					"strategy": strategyProperty(),
					"format":   formatProperty(),
					"style": map[string]interface{}{
						"type":        "object",
						"description": "Optional colors as #RRGGBB: mask_color, segment_color, noise_color, quad_color, contour_color; plus mask_opacity, line_width and point_size",
					},
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "sheet_edges",
			Description: "Run the Canny edge detector the pipeline uses and return the edge map as a base64-encoded image.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
					"threshold_low": map[string]interface{}{
						"type":        "integer",
						"description": "Low hysteresis threshold. Default 50",
						"default":     50,
					},
					"threshold_high": map[string]interface{}{
						"type":        "integer",
						"description": "High hysteresis threshold. Default 150",
						"default":     150,
					},
					"format": formatProperty(),
				},
				"required": []string{"path"},
			},
		},

		// Region Operations
		{
			Name:        "sheet_crop",
			Description: "Crop a rectangle drawn on a preview of the image. The rectangle is scaled from screen_width x screen_height to the image size and clamped to the image. Without crop parameters a 220x310 region at the origin is returned.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
					"crop_x": map[string]interface{}{
						"type":        "integer",
						"description": "Left edge on the preview",
					},
					"crop_y": map[string]interface{}{
						"type":        "integer",
						"description": "Top edge on the preview",
					},
					"crop_width": map[string]interface{}{
						"type":        "integer",
						"description": "Width on the preview. Default 220",
					},
					"crop_height": map[string]interface{}{
						"type":        "integer",
						"description": "Height on the preview. Default 310",
					},
					"screen_width": map[string]interface{}{
						"type":        "integer",
						"description": "Preview width. Omit when the preview has the image's size",
					},
					"screen_height": map[string]interface{}{
						"type":        "integer",
						"description": "Preview height. Omit when the preview has the image's size",
					},
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "sheet_crop_region",
			Description: "Crop a rectangular region given in image coordinates and return it as base64-encoded PNG.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
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
					"scale": map[string]interface{}{
						"type":        "number",
						"description": "Optional scale factor (e.g., 2.0 to double size). Default 1.0",
						"default":     1.0,
					},
				},
				"required": []string{"path", "x1", "y1", "x2", "y2"},
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
