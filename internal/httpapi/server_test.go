package httpapi

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/sheet-detect/internal/config"
	"github.com/ironsheep/sheet-detect/internal/detection"
)

func newTestServer(t *testing.T, mutate func(*config.ServerConfig)) *Server {
	t.Helper()
	cfg := config.Default().Server
	if mutate != nil {
		mutate(&cfg)
	}
	d, err := detection.New(detection.DefaultParams())
	require.NoError(t, err)
	return New(d, cfg)
}

// sheetPNG encodes a bright sheet on a dark floor, optionally with a dark
// foot-sized square on it.
func sheetPNG(t *testing.T, foot bool) []byte {
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
	return encodePNG(t, img)
}

func solidPNG(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return encodePNG(t, img)
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// uploadRequest builds a multipart POST with the file under field and the
// given form values.
func uploadRequest(t *testing.T, path, field, filename string, data []byte, values map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if field != "" {
		fw, err := mw.CreateFormFile(field, filename)
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
	}
	for k, v := range values {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	return out
}

func TestPing(t *testing.T) {
	s := newTestServer(t, nil)

	rr := serve(s, httptest.NewRequest(http.MethodGet, "/ping", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
}

func TestCORS(t *testing.T) {
	s := newTestServer(t, nil)

	for _, path := range []string{"/ping", "/detect-sheet", "/crop-image"} {
		t.Run(path, func(t *testing.T) {
			rr := serve(s, httptest.NewRequest(http.MethodOptions, path, nil))

			assert.Equal(t, http.StatusOK, rr.Code)
			assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
			assert.Contains(t, rr.Header().Get("Access-Control-Allow-Methods"), "POST")
			assert.Empty(t, rr.Body.String())
		})
	}

	rr := serve(s, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestRequestID(t *testing.T) {
	s := newTestServer(t, nil)

	rr := serve(s, httptest.NewRequest(http.MethodGet, "/ping", nil))
	generated := rr.Header().Get(RequestIDHeader)
	assert.Len(t, generated, 36, "generated id should be a uuid")

	rr = serve(s, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.NotEqual(t, generated, rr.Header().Get(RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(RequestIDHeader, "client-42")
	rr = serve(s, req)
	assert.Equal(t, "client-42", rr.Header().Get(RequestIDHeader))
}

func TestMethodNotAllowed(t *testing.T) {
	s := newTestServer(t, nil)

	tests := []struct {
		method, path string
	}{
		{http.MethodGet, "/detect-sheet"},
		{http.MethodPut, "/crop-image"},
		{http.MethodPost, "/ping"},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rr := serve(s, httptest.NewRequest(tt.method, tt.path, nil))
			assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
			assert.Contains(t, decodeBody(t, rr), "error")
		})
	}
}

func TestDetectSheet(t *testing.T) {
	s := newTestServer(t, nil)

	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"blank", solidPNG(t, 300, 200, color.Gray{Y: 128}), `{"a4_detected":false,"foot_on_a4":false}`},
		{"sheet", sheetPNG(t, false), `{"a4_detected":true,"foot_on_a4":false}`},
		{"sheet with foot", sheetPNG(t, true), `{"a4_detected":true,"foot_on_a4":true}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := serve(s, uploadRequest(t, "/detect-sheet", "image", "photo.png", tt.data, nil))

			require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
			assert.JSONEq(t, tt.want, rr.Body.String())
		})
	}
}

func TestDetectSheet_BadRequests(t *testing.T) {
	s := newTestServer(t, nil)

	tests := []struct {
		name    string
		req     *http.Request
		wantMsg string
	}{
		{"missing field", uploadRequest(t, "/detect-sheet", "", "", nil, map[string]string{"x": "1"}), "No image provided"},
		{"wrong field", uploadRequest(t, "/detect-sheet", "file", "a.png", solidPNG(t, 4, 4, color.White), nil), "No image provided"},
		{"not an image", uploadRequest(t, "/detect-sheet", "image", "a.png", []byte("definitely not a png"), nil), ""},
		{"empty file", uploadRequest(t, "/detect-sheet", "image", "a.png", nil, nil), ""},
		{"not multipart", httptest.NewRequest(http.MethodPost, "/detect-sheet", bytes.NewReader([]byte("{}"))), "Failed to parse form"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := serve(s, tt.req)

			assert.Equal(t, http.StatusBadRequest, rr.Code)
			body := decodeBody(t, rr)
			require.Contains(t, body, "error")
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, body["error"])
			}
		})
	}
}

func TestDetectSheet_TooLarge(t *testing.T) {
	s := newTestServer(t, func(c *config.ServerConfig) { c.MaxUploadBytes = 1024 })

	rr := serve(s, uploadRequest(t, "/detect-sheet", "image", "big.png", make([]byte, 4096), nil))

	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
}

func TestDetectSheet_Busy(t *testing.T) {
	s := newTestServer(t, func(c *config.ServerConfig) {
		c.MaxConcurrent = 1
		c.DetectTimeout = config.Duration{Duration: 50 * time.Millisecond}
	})
	require.NoError(t, s.sem.Acquire(context.Background(), 1))
	defer s.sem.Release(1)

	rr := serve(s, uploadRequest(t, "/detect-sheet", "image", "a.png", solidPNG(t, 20, 20, color.White), nil))

	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestDetectSheet_Timeout(t *testing.T) {
	s := newTestServer(t, func(c *config.ServerConfig) {
		c.DetectTimeout = config.Duration{Duration: 50 * time.Millisecond}
	})
	release := make(chan struct{})
	finished := make(chan struct{})
	s.detect = func(image.Image) (detection.Result, error) {
		<-release
		close(finished)
		return detection.Result{}, nil
	}

	rr := serve(s, uploadRequest(t, "/detect-sheet", "image", "a.png", solidPNG(t, 20, 20, color.White), nil))
	assert.Equal(t, http.StatusGatewayTimeout, rr.Code)

	// the slot stays taken until the detection returns
	assert.False(t, s.sem.TryAcquire(int64(s.cfg.MaxConcurrent)), "overrun detection should hold its slot")
	close(release)
	<-finished
	require.Eventually(t, func() bool {
		if s.sem.TryAcquire(int64(s.cfg.MaxConcurrent)) {
			s.sem.Release(int64(s.cfg.MaxConcurrent))
			return true
		}
		return false
	}, time.Second, 5*time.Millisecond)
}

func TestDetectSheet_ClientGoneWhileWaiting(t *testing.T) {
	s := newTestServer(t, func(c *config.ServerConfig) {
		c.MaxConcurrent = 1
	})
	require.NoError(t, s.sem.Acquire(context.Background(), 1))
	defer s.sem.Release(1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := uploadRequest(t, "/detect-sheet", "image", "a.png", solidPNG(t, 20, 20, color.White), nil)

	rr := serve(s, req.WithContext(ctx))

	assert.Equal(t, statusClientClosedRequest, rr.Code)
	assert.Equal(t, "request canceled", decodeBody(t, rr)["error"])
}

func TestDetectSheet_ClientGoneDuringDetection(t *testing.T) {
	s := newTestServer(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	release := make(chan struct{})
	s.detect = func(image.Image) (detection.Result, error) {
		cancel()
		<-release
		return detection.Result{}, nil
	}
	defer close(release)
	req := uploadRequest(t, "/detect-sheet", "image", "a.png", solidPNG(t, 20, 20, color.White), nil)

	rr := serve(s, req.WithContext(ctx))

	assert.Equal(t, statusClientClosedRequest, rr.Code)
}

func TestCropImage(t *testing.T) {
	s := newTestServer(t, nil)
	data := solidPNG(t, 400, 600, color.RGBA{0, 0, 255, 255})

	tests := []struct {
		name                string
		values              map[string]string
		wantX, wantY        float64
		wantWidth, wantHigh float64
	}{
		{"defaults", nil, 0, 0, 220, 310},
		{"image coordinates", map[string]string{"crop_x": "10", "crop_y": "20", "crop_width": "100", "crop_height": "50"}, 10, 20, 100, 50},
		{"screen scaled", map[string]string{"crop_x": "50", "crop_y": "50", "crop_width": "100", "crop_height": "100", "screen_width": "200", "screen_height": "300"}, 100, 100, 200, 200},
		{"clamped", map[string]string{"crop_x": "350", "crop_y": "0", "crop_width": "100", "crop_height": "100"}, 350, 0, 50, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := serve(s, uploadRequest(t, "/crop-image", "image", "photo.png", data, tt.values))
			require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

			body := decodeBody(t, rr)
			assert.Equal(t, true, body["success"])
			assert.Equal(t, tt.wantX, body["x"])
			assert.Equal(t, tt.wantY, body["y"])
			assert.Equal(t, tt.wantWidth, body["width"])
			assert.Equal(t, tt.wantHigh, body["height"])
			assert.Equal(t, "image/png", body["mime_type"])

			raw, err := base64.StdEncoding.DecodeString(body["image_base64"].(string))
			require.NoError(t, err)
			cropped, err := png.Decode(bytes.NewReader(raw))
			require.NoError(t, err)
			assert.Equal(t, int(tt.wantWidth), cropped.Bounds().Dx())
		})
	}
}

func TestCropImage_BadRequests(t *testing.T) {
	s := newTestServer(t, nil)
	data := solidPNG(t, 40, 40, color.White)

	tests := []struct {
		name    string
		req     *http.Request
		wantMsg string
	}{
		{"missing field", uploadRequest(t, "/crop-image", "", "", nil, map[string]string{"crop_x": "1"}), "No image file provided"},
		// a part without a file name is a plain form value
		{"no file name", uploadRequest(t, "/crop-image", "image", "", data, nil), "No image file provided"},
		{"disallowed extension", uploadRequest(t, "/crop-image", "image", "photo.gif", data, nil), "Invalid file type"},
		{"non numeric", uploadRequest(t, "/crop-image", "image", "photo.png", data, map[string]string{"crop_x": "left"}), "Invalid crop parameters"},
		{"not an image", uploadRequest(t, "/crop-image", "image", "photo.jpg", []byte("nope"), nil), "Failed to read image"},
		{"empty after clamping", uploadRequest(t, "/crop-image", "image", "photo.png", data, map[string]string{"crop_width": "0"}), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := serve(s, tt.req)

			assert.Equal(t, http.StatusBadRequest, rr.Code)
			body := decodeBody(t, rr)
			require.Contains(t, body, "error")
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, body["error"])
			}
		})
	}
}

func TestServe_GracefulShutdown(t *testing.T) {
	s := newTestServer(t, func(c *config.ServerConfig) { c.MaxConnections = 2 })
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- s.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/ping")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
