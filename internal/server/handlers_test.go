package server

import (
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ironsheep/sheet-detect/internal/detection"
	"github.com/ironsheep/sheet-detect/internal/imaging"
)

// writePNG encodes img into a temp file and returns its path
func writePNG(t *testing.T, img image.Image) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "handler-test.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	defer f.Close()

	if err := png.Encode(f, img); err != nil {
		t.Fatalf("failed to encode image: %v", err)
	}
	return path
}

// createTestImageFile creates a uniform test image file and returns its path
func createTestImageFile(t *testing.T, width, height int, c color.Color) string {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}
	return writePNG(t, img)
}

// createSheetImageFile writes a bright sheet on a dark floor, optionally
// with a dark foot-sized square on the sheet.
func createSheetImageFile(t *testing.T, foot bool) string {
	t.Helper()

	img := image.NewGray(image.Rect(0, 0, 800, 700))
	fill := func(r image.Rectangle, v uint8) {
		for y := r.Min.Y; y < r.Max.Y; y++ {
			for x := r.Min.X; x < r.Max.X; x++ {
				img.SetGray(x, y, color.Gray{Y: v})
			}
		}
	}
	fill(img.Bounds(), 40)
	fill(image.Rect(100, 100, 700, 600), 230)
	if foot {
		fill(image.Rect(288, 238, 512, 462), 60)
	}
	return writePNG(t, img)
}

// callTool runs a tools/call request and decodes the text content into out.
func callTool(t *testing.T, s *Server, name string, args map[string]interface{}, out interface{}) {
	t.Helper()

	params, _ := json.Marshal(map[string]interface{}{
		"name":      name,
		"arguments": args,
	})
	resp := s.handleRequest(&MCPRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "tools/call",
		Params:  params,
	})

	if resp == nil {
		t.Fatal("handleRequest returned nil")
	}
	if resp.Error != nil {
		t.Fatalf("Unexpected error: %+v", resp.Error)
	}

	result, ok := resp.Result.(map[string]interface{})
	if !ok {
		t.Fatal("Result should be a map")
	}
	content, ok := result["content"].([]map[string]interface{})
	if !ok || len(content) != 1 {
		t.Fatalf("content: got %#v", result["content"])
	}
	if content[0]["type"] != "text" {
		t.Errorf("content type: got %v, want text", content[0]["type"])
	}
	text, _ := content[0]["text"].(string)
	if err := json.Unmarshal([]byte(text), out); err != nil {
		t.Fatalf("failed to decode tool result %q: %v", text, err)
	}
}

func TestHandleToolsCall_SheetLoad(t *testing.T) {
	s := newTestServer(t)
	imgPath := createTestImageFile(t, 100, 80, color.RGBA{255, 0, 0, 255})

	var info imaging.ImageInfo
	callTool(t, s, "sheet_load", map[string]interface{}{"path": imgPath}, &info)

	if info.Width != 100 || info.Height != 80 {
		t.Errorf("dimensions: got %dx%d, want 100x80", info.Width, info.Height)
	}
	if info.Format != "png" {
		t.Errorf("format: got %s, want png", info.Format)
	}
	if s.cache.Len() != 1 {
		t.Errorf("cache should hold the loaded image, has %d entries", s.cache.Len())
	}
}

func TestHandleToolsCall_SheetDimensions(t *testing.T) {
	s := newTestServer(t)
	imgPath := createTestImageFile(t, 200, 150, color.RGBA{0, 255, 0, 255})

	var dims imaging.DimensionsResult
	callTool(t, s, "sheet_dimensions", map[string]interface{}{"path": imgPath}, &dims)

	if dims.Width != 200 || dims.Height != 150 {
		t.Errorf("dimensions: got %dx%d, want 200x150", dims.Width, dims.Height)
	}
}

func TestHandleToolsCall_SheetDetect(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name     string
		path     string
		strategy string
		want     detection.Result
	}{
		{"blank", createTestImageFile(t, 300, 200, color.RGBA{128, 128, 128, 255}), "", detection.Result{}},
		{"sheet", createSheetImageFile(t, false), "", detection.Result{A4Detected: true}},
		{"sheet with foot", createSheetImageFile(t, true), "", detection.Result{A4Detected: true, FootOnA4: true}},
		{"quad sheet with foot", createSheetImageFile(t, true), "quad", detection.Result{A4Detected: true, FootOnA4: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got detection.Result
			callTool(t, s, "sheet_detect", map[string]interface{}{"path": tt.path, "strategy": tt.strategy}, &got)
			if got != tt.want {
				t.Errorf("verdict: got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestHandleToolsCall_SheetDetect_Wire(t *testing.T) {
	s := newTestServer(t)
	imgPath := createSheetImageFile(t, true)

	args, _ := json.Marshal(map[string]string{"path": imgPath})
	result, err := s.executeTool("sheet_detect", args)
	if err != nil {
		t.Fatalf("executeTool failed: %v", err)
	}

	want := `{"a4_detected":true,"foot_on_a4":true}`
	data, _ := json.Marshal(result)
	if string(data) != want {
		t.Errorf("wire format: got %s, want %s", data, want)
	}
}

func TestHandleToolsCall_SheetAnalyze(t *testing.T) {
	s := newTestServer(t)
	imgPath := createSheetImageFile(t, true)

	var a struct {
		A4Detected  bool                `json:"a4_detected"`
		FootOnA4    bool                `json:"foot_on_a4"`
		Strategy    string              `json:"strategy"`
		Segments    []detection.Segment `json:"segments"`
		Labels      []int               `json:"labels"`
		CornerCount int                 `json:"corner_count"`
		Blob        *struct {
			Level uint8   `json:"level"`
			Area  float64 `json:"area"`
		} `json:"blob"`
	}
	callTool(t, s, "sheet_analyze", map[string]interface{}{"path": imgPath}, &a)

	if !a.A4Detected || !a.FootOnA4 {
		t.Errorf("verdict: got a4=%t foot=%t, want both true", a.A4Detected, a.FootOnA4)
	}
	if a.Strategy != "line-cluster" {
		t.Errorf("strategy: got %s, want line-cluster", a.Strategy)
	}
	if len(a.Segments) < 4 {
		t.Errorf("segments: got %d, want at least 4", len(a.Segments))
	}
	if len(a.Labels) != 2*len(a.Segments) {
		t.Errorf("labels: got %d, want one per end point (%d)", len(a.Labels), 2*len(a.Segments))
	}
	if a.CornerCount < 3 {
		t.Errorf("corner_count: got %d, want at least 3", a.CornerCount)
	}
	if a.Blob == nil || a.Blob.Area <= 5000 || a.Blob.Area >= 200000 {
		t.Errorf("blob: got %+v, want an area inside the foot band", a.Blob)
	}
}

func TestHandleToolsCall_SheetAnnotate(t *testing.T) {
	s := newTestServer(t)
	imgPath := createSheetImageFile(t, false)

	var out struct {
		A4Detected  bool   `json:"a4_detected"`
		Width       int    `json:"width"`
		Height      int    `json:"height"`
		ImageBase64 string `json:"image_base64"`
		MimeType    string `json:"mime_type"`
		Clusters    int    `json:"clusters"`
		CornerCount int    `json:"corner_count"`
	}
	callTool(t, s, "sheet_annotate", map[string]interface{}{
		"path":   imgPath,
		"format": "webp",
		"style":  map[string]interface{}{"segment_color": "#00ffff"},
	}, &out)

	if !out.A4Detected {
		t.Error("annotated run should report the sheet")
	}
	if out.Width != 800 || out.Height != 700 {
		t.Errorf("dimensions: got %dx%d, want 800x700", out.Width, out.Height)
	}
	if out.MimeType != "image/webp" {
		t.Errorf("MimeType: got %s, want image/webp", out.MimeType)
	}
	if out.ImageBase64 == "" {
		t.Error("overlay image should not be empty")
	}
	if out.Clusters != out.CornerCount {
		t.Errorf("clusters %d should match corner_count %d", out.Clusters, out.CornerCount)
	}
}

func TestHandleToolsCall_SheetAnnotate_BadStyle(t *testing.T) {
	s := newTestServer(t)
	imgPath := createSheetImageFile(t, false)

	args, _ := json.Marshal(map[string]interface{}{
		"path":  imgPath,
		"style": map[string]interface{}{"quad_color": "blue"},
	})
	if _, err := s.executeTool("sheet_annotate", args); err == nil {
		t.Error("invalid style color should fail")
	}
}

func TestHandleToolsCall_SheetEdges(t *testing.T) {
	s := newTestServer(t)
	imgPath := createSheetImageFile(t, false)

	var res imaging.EdgeDetectResult
	callTool(t, s, "sheet_edges", map[string]interface{}{"path": imgPath}, &res)

	if res.EdgePixels == 0 {
		t.Error("sheet outline should produce edge pixels")
	}
	if res.MimeType != "image/png" {
		t.Errorf("MimeType: got %s, want image/png", res.MimeType)
	}
}

func TestHandleToolsCall_SheetCrop(t *testing.T) {
	s := newTestServer(t)
	imgPath := createTestImageFile(t, 400, 600, color.RGBA{0, 0, 255, 255})

	tests := []struct {
		name         string
		args         map[string]interface{}
		wantX, wantY int
		wantW, wantH int
	}{
		{"defaults", map[string]interface{}{}, 0, 0, 220, 310},
		{"image coordinates", map[string]interface{}{"crop_x": 10, "crop_y": 20, "crop_width": 100, "crop_height": 50}, 10, 20, 100, 50},
		{"screen scaled", map[string]interface{}{"crop_x": 50, "crop_y": 50, "crop_width": 100, "crop_height": 100, "screen_width": 200, "screen_height": 300}, 100, 100, 200, 200},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.args["path"] = imgPath
			var res imaging.CropResult
			callTool(t, s, "sheet_crop", tt.args, &res)

			if res.X != tt.wantX || res.Y != tt.wantY {
				t.Errorf("origin: got (%d,%d), want (%d,%d)",
					res.X, res.Y, tt.wantX, tt.wantY)
			}
			if res.Width != tt.wantW || res.Height != tt.wantH {
				t.Errorf("size: got %dx%d, want %dx%d", res.Width, res.Height, tt.wantW, tt.wantH)
			}
		})
	}
}

func TestHandleToolsCall_SheetCropRegion(t *testing.T) {
	s := newTestServer(t)
	imgPath := createTestImageFile(t, 100, 100, color.RGBA{255, 255, 0, 255})

	var res imaging.CropResult
	callTool(t, s, "sheet_crop_region", map[string]interface{}{
		"path": imgPath, "x1": 10, "y1": 10, "x2": 40, "y2": 30, "scale": 2.0,
	}, &res)

	if res.Width != 60 || res.Height != 40 {
		t.Errorf("scaled size: got %dx%d, want 60x40", res.Width, res.Height)
	}
}

func TestHandleToolsCall_NonExistentFile(t *testing.T) {
	s := newTestServer(t)

	params, _ := json.Marshal(map[string]interface{}{
		"name":      "sheet_detect",
		"arguments": map[string]interface{}{"path": "/nonexistent/image.png"},
	})
	resp := s.handleToolsCall(&MCPRequest{JSONRPC: "2.0", ID: 7, Params: params})

	if resp.Error == nil {
		t.Fatal("missing file should fail")
	}
	if resp.Error.Code != -32000 {
		t.Errorf("Error code: got %d, want -32000", resp.Error.Code)
	}
	if data, _ := resp.Error.Data.(string); !strings.Contains(data, "nonexistent") {
		t.Errorf("error data should name the file: %v", resp.Error.Data)
	}
}

func TestHandleToolsCall_InvalidParams(t *testing.T) {
	s := newTestServer(t)
	resp := s.handleToolsCall(&MCPRequest{JSONRPC: "2.0", ID: 1, Params: json.RawMessage(`{invalid`)})

	if resp.Error == nil {
		t.Fatal("Expected error for invalid params")
	}
	if resp.Error.Code != -32602 {
		t.Errorf("Error code: got %d, want -32602", resp.Error.Code)
	}
}

func TestExecuteTool_AllTools(t *testing.T) {
	s := newTestServer(t)
	imgPath := createTestImageFile(t, 100, 100, color.RGBA{128, 128, 128, 255})

	// Test each tool to ensure executeTool correctly dispatches
	toolTests := []struct {
		name string
		args map[string]interface{}
	}{
		{"sheet_load", map[string]interface{}{"path": imgPath}},
		{"sheet_dimensions", map[string]interface{}{"path": imgPath}},
		{"sheet_detect", map[string]interface{}{"path": imgPath}},
		{"sheet_analyze", map[string]interface{}{"path": imgPath}},
		{"sheet_annotate", map[string]interface{}{"path": imgPath}},
		{"sheet_edges", map[string]interface{}{"path": imgPath}},
		{"sheet_crop", map[string]interface{}{"path": imgPath, "crop_width": 50, "crop_height": 50}},
		{"sheet_crop_region", map[string]interface{}{"path": imgPath, "x1": 0, "y1": 0, "x2": 50, "y2": 50}},
	}

	if len(toolTests) != len(GetToolDefinitions()) {
		t.Errorf("dispatch table covers %d tools, %d are defined", len(toolTests), len(GetToolDefinitions()))
	}

	for _, tt := range toolTests {
		t.Run(tt.name, func(t *testing.T) {
			argsJSON, _ := json.Marshal(tt.args)
			result, err := s.executeTool(tt.name, argsJSON)
			if err != nil {
				t.Fatalf("executeTool(%s) failed: %v", tt.name, err)
			}
			if result == nil {
				t.Errorf("executeTool(%s) returned nil result", tt.name)
			}
		})
	}
}

func TestExecuteTool_UnknownTool(t *testing.T) {
	s := newTestServer(t)

	_, err := s.executeTool("unknown_tool", json.RawMessage(`{}`))
	if err == nil {
		t.Error("executeTool should fail for unknown tool")
	}
}

func TestExecuteTool_InvalidJSON(t *testing.T) {
	s := newTestServer(t)

	_, err := s.executeTool("sheet_load", json.RawMessage(`{invalid`))
	if err == nil {
		t.Error("executeTool should fail for invalid JSON")
	}
}

func TestExecuteTool_InvalidOptions(t *testing.T) {
	s := newTestServer(t)
	imgPath := createTestImageFile(t, 50, 50, color.White)

	tests := []struct {
		tool string
		args string
	}{
		{"sheet_detect", `{"path":"` + imgPath + `","strategy":"hough"}`},
		{"sheet_edges", `{"path":"` + imgPath + `","format":"gif"}`},
		{"sheet_annotate", `{"path":"` + imgPath + `","format":"jpeg"}`},
		{"sheet_crop", `{"path":"` + imgPath + `","crop_width":-5}`},
	}

	for _, tt := range tests {
		t.Run(tt.tool, func(t *testing.T) {
			if _, err := s.executeTool(tt.tool, json.RawMessage(tt.args)); err == nil {
				t.Errorf("%s should reject %s", tt.tool, tt.args)
			}
		})
	}
}

func TestDetectorFor(t *testing.T) {
	s := newTestServer(t)

	d, err := s.detectorFor("")
	if err != nil || d != s.detector {
		t.Errorf("empty strategy should reuse the server detector")
	}
	d, err = s.detectorFor("line-cluster")
	if err != nil || d != s.detector {
		t.Errorf("configured strategy should reuse the server detector")
	}
	d, err = s.detectorFor("quad")
	if err != nil {
		t.Fatalf("detectorFor(quad): %v", err)
	}
	if d.Params().Strategy != detection.StrategyQuad {
		t.Errorf("strategy: got %s, want quad", d.Params().Strategy)
	}
	if s.detector.Params().Strategy != detection.StrategyLineCluster {
		t.Error("override must not change the server detector")
	}
}
