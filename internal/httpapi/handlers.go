package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	"io"
	"net/http"
	"strconv"

	"github.com/ironsheep/sheet-detect/internal/detection"
	"github.com/ironsheep/sheet-detect/internal/imaging"
	"github.com/ironsheep/sheet-detect/internal/logging"
)

// statusClientClosedRequest is the nginx convention for a request the
// client abandoned before the response was written.
const statusClientClosedRequest = 499

var (
	errBusy     = errors.New("server busy, try again later")
	errTimeout  = errors.New("detection timed out")
	errCanceled = errors.New("request canceled")
)

// cropResponse is the body of a successful /crop-image call.
type cropResponse struct {
	Success bool `json:"success"`
	*imaging.CropResult
}

func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	respondJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
}

// handleDetectSheet handles POST /detect-sheet
func (s *Server) handleDetectSheet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	data, _, apiErr := s.readUpload(w, r, "No image provided")
	if apiErr != nil {
		respondError(w, apiErr.message, apiErr.status)
		return
	}

	img, err := imaging.DecodeBytes(data)
	if err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}

	result, err := s.runDetection(r.Context(), img)
	switch {
	case errors.Is(err, errBusy):
		respondError(w, err.Error(), http.StatusServiceUnavailable)
		return
	case errors.Is(err, errTimeout):
		respondError(w, err.Error(), http.StatusGatewayTimeout)
		return
	case errors.Is(err, errCanceled):
		logging.Debugf("detect-sheet: %v", err)
		respondError(w, err.Error(), statusClientClosedRequest)
		return
	case err != nil:
		respondError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	logging.Debugf("detect-sheet: a4=%t foot=%t", result.A4Detected, result.FootOnA4)
	respondJSON(w, result, http.StatusOK)
}

// handleCropImage handles POST /crop-image
func (s *Server) handleCropImage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	data, filename, apiErr := s.readUpload(w, r, "No image file provided")
	if apiErr != nil {
		respondError(w, apiErr.message, apiErr.status)
		return
	}
	if !imaging.AllowedExtension(filename, s.cfg.AllowedExtensions) {
		respondError(w, "Invalid file type", http.StatusBadRequest)
		return
	}

	rect, err := parseScreenRect(r)
	if err != nil {
		respondError(w, "Invalid crop parameters", http.StatusBadRequest)
		return
	}

	img, err := imaging.DecodeBytes(data)
	if err != nil {
		respondError(w, "Failed to read image", http.StatusBadRequest)
		return
	}

	res, err := imaging.ScreenCrop(img, rect)
	if err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}
	respondJSON(w, cropResponse{Success: true, CropResult: res}, http.StatusOK)
}

// uploadError is a failed upload and the status to reply with.
type uploadError struct {
	status  int
	message string
}

// readUpload parses the multipart body and returns the bytes and file name
// of the "image" field. missing is the message used when the field is absent.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request, missing string) ([]byte, string, *uploadError) {
	limit := s.cfg.MaxUploadBytes
	if r.ContentLength > limit {
		return nil, "", &uploadError{http.StatusRequestEntityTooLarge, "Upload too large"}
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	if err := r.ParseMultipartForm(limit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, "", &uploadError{http.StatusRequestEntityTooLarge, "Upload too large"}
		}
		return nil, "", &uploadError{http.StatusBadRequest, "Failed to parse form"}
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		return nil, "", &uploadError{http.StatusBadRequest, missing}
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, "", &uploadError{http.StatusBadRequest, "Failed to read file"}
	}
	return data, header.Filename, nil
}

// runDetection runs one detection under the concurrency limit and the
// per-request budget. A detection that overruns the budget keeps its
// semaphore slot until it finishes.
func (s *Server) runDetection(parent context.Context, img image.Image) (detection.Result, error) {
	ctx, cancel := context.WithTimeout(parent, s.cfg.DetectTimeout.Duration)
	defer cancel()

	if err := s.sem.Acquire(ctx, 1); err != nil {
		if parent.Err() != nil {
			return detection.Result{}, errCanceled
		}
		return detection.Result{}, errBusy
	}

	type outcome struct {
		res detection.Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		defer s.sem.Release(1)
		res, err := s.detect(img)
		done <- outcome{res, err}
	}()

	select {
	case o := <-done:
		return o.res, o.err
	case <-ctx.Done():
		if parent.Err() != nil {
			return detection.Result{}, errCanceled
		}
		return detection.Result{}, errTimeout
	}
}

// parseScreenRect reads the crop form fields. Missing fields take the
// defaults of imaging.DefaultScreenRect.
func parseScreenRect(r *http.Request) (imaging.ScreenRect, error) {
	rect := imaging.DefaultScreenRect()
	fields := []struct {
		name string
		dst  *int
	}{
		{"crop_x", &rect.X},
		{"crop_y", &rect.Y},
		{"crop_width", &rect.Width},
		{"crop_height", &rect.Height},
		{"screen_width", &rect.ScreenWidth},
		{"screen_height", &rect.ScreenHeight},
	}
	for _, f := range fields {
		v := r.FormValue(f.name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return rect, err
		}
		*f.dst = n
	}
	return rect, nil
}

func respondJSON(w http.ResponseWriter, data interface{}, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logging.Warnf("failed to write response: %v", err)
	}
}

func respondError(w http.ResponseWriter, message string, status int) {
	respondJSON(w, map[string]string{"error": message}, status)
}
