package server

import (
	"encoding/json"
	"fmt"

	"github.com/ironsheep/sheet-detect/internal/detection"
	"github.com/ironsheep/sheet-detect/internal/imaging"
	"github.com/ironsheep/sheet-detect/internal/logging"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "sheet_detect", "sheet_crop").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Tool execution errors return a JSON-RPC error response with code -32000.
func (s *Server) handleToolsCall(req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	result, err := s.executeTool(params.Name, params.Arguments)
	if err != nil {
		logging.Warnf("tool %s failed: %v", params.Name, err)
		return s.errorResponse(req.ID, -32000, "Tool execution failed", err.Error())
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
func (s *Server) executeTool(name string, args json.RawMessage) (interface{}, error) {
	switch name {
	case "sheet_load":
		return s.handleSheetLoad(args)
	case "sheet_dimensions":
		return s.handleSheetDimensions(args)

	case "sheet_detect":
		return s.handleSheetDetect(args)
	case "sheet_analyze":
		return s.handleSheetAnalyze(args)
	case "sheet_annotate":
		return s.handleSheetAnnotate(args)
	case "sheet_edges":
		return s.handleSheetEdges(args)

	case "sheet_crop":
		return s.handleSheetCrop(args)
	case "sheet_crop_region":
		return s.handleSheetCropRegion(args)

	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// Panics are suppressed; on marshal failure, returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// detectorFor returns the server's detector, or a copy running strategy
// when the caller picked one.
func (s *Server) detectorFor(strategy string) (*detection.Detector, error) {
	if strategy == "" {
		return s.detector, nil
	}
	st, err := detection.ParseStrategy(strategy)
	if err != nil {
		return nil, err
	}
	p := s.detector.Params()
	if st == p.Strategy {
		return s.detector, nil
	}
	p.Strategy = st
	return detection.New(p)
}

// === Basic Image Information Handlers ===

type sheetLoadArgs struct {
	Path string `json:"path"`
}

func (s *Server) handleSheetLoad(args json.RawMessage) (interface{}, error) {
	var a sheetLoadArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	return imaging.LoadImageInfo(s.cache, a.Path)
}

func (s *Server) handleSheetDimensions(args json.RawMessage) (interface{}, error) {
	var a sheetLoadArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	return imaging.GetDimensions(s.cache, a.Path)
}

// === Detection Handlers ===

type sheetDetectArgs struct {
	Path     string `json:"path"`
	Strategy string `json:"strategy"`
}

func (s *Server) handleSheetDetect(args json.RawMessage) (interface{}, error) {
	var a sheetDetectArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	d, err := s.detectorFor(a.Strategy)
	if err != nil {
		return nil, err
	}
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}
	res, err := d.Detect(img)
	if err != nil {
		return nil, err
	}
	logging.Infof("%s: a4=%t foot=%t", a.Path, res.A4Detected, res.FootOnA4)
	return res, nil
}

func (s *Server) handleSheetAnalyze(args json.RawMessage) (interface{}, error) {
	var a sheetDetectArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	d, err := s.detectorFor(a.Strategy)
	if err != nil {
		return nil, err
	}
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}
	return d.Analyze(img), nil
}

type sheetAnnotateArgs struct {
	Path     string          `json:"path"`
	Strategy string          `json:"strategy"`
	Format   string          `json:"format"`
	Style    json.RawMessage `json:"style"`
}

// annotateResponse pairs the overlay with the verdict it illustrates.
type annotateResponse struct {
	detection.Result
	*imaging.AnnotateResult
	CornerCount int `json:"corner_count"`
}

func (s *Server) handleSheetAnnotate(args json.RawMessage) (interface{}, error) {
	var a sheetAnnotateArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	format, err := imaging.ParseFormat(a.Format)
	if err != nil {
		return nil, err
	}
	style := imaging.DefaultOverlayStyle()
	if len(a.Style) > 0 {
		if err := json.Unmarshal(a.Style, &style); err != nil {
			return nil, fmt.Errorf("invalid style: %w", err)
		}
	}
	d, err := s.detectorFor(a.Strategy)
	if err != nil {
		return nil, err
	}
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}

	analysis := d.Analyze(img)
	if analysis.Source == nil {
		return nil, fmt.Errorf("image %s is empty", a.Path)
	}
	out, err := imaging.AnnotateEncoded(analysis.Source, analysis.Overlay(), style, format)
	if err != nil {
		return nil, err
	}
	return &annotateResponse{
		Result:         analysis.Result,
		AnnotateResult: out,
		CornerCount:    analysis.CornerCount,
	}, nil
}

type sheetEdgesArgs struct {
	Path          string `json:"path"`
	ThresholdLow  int    `json:"threshold_low"`
	ThresholdHigh int    `json:"threshold_high"`
	Format        string `json:"format"`
}

func (s *Server) handleSheetEdges(args json.RawMessage) (interface{}, error) {
	var a sheetEdgesArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.ThresholdLow == 0 {
		a.ThresholdLow = 50
	}
	if a.ThresholdHigh == 0 {
		a.ThresholdHigh = 150
	}
	format, err := imaging.ParseFormat(a.Format)
	if err != nil {
		return nil, err
	}
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}
	return imaging.EdgeDetect(img, a.ThresholdLow, a.ThresholdHigh, format)
}

// === Region Handlers ===

type sheetCropArgs struct {
	Path string `json:"path"`
	imaging.ScreenRect
}

func (s *Server) handleSheetCrop(args json.RawMessage) (interface{}, error) {
	a := sheetCropArgs{ScreenRect: imaging.DefaultScreenRect()}
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}
	return imaging.ScreenCrop(img, a.ScreenRect)
}

type sheetCropRegionArgs struct {
	Path  string  `json:"path"`
	X1    int     `json:"x1"`
	Y1    int     `json:"y1"`
	X2    int     `json:"x2"`
	Y2    int     `json:"y2"`
	Scale float64 `json:"scale"`
}

func (s *Server) handleSheetCropRegion(args json.RawMessage) (interface{}, error) {
	var a sheetCropRegionArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Scale == 0 {
		a.Scale = 1.0
	}
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}
	return imaging.Crop(img, a.X1, a.Y1, a.X2, a.Y2, a.Scale)
}
