package main

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/vincent-vinf/go-jsend"

	"netcamera/pkg/camera"
	"netcamera/pkg/storage"
)

func TestCaptureErr(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"camera not open", camera.ErrCameraNotOpen, http.StatusConflict},
		{"capture in progress", camera.ErrCaptureInProgress, http.StatusConflict},
		{"focus failed", camera.ErrFocusFailed, http.StatusUnprocessableEntity},
		{"not mounted", storage.ErrNotMounted, http.StatusInsufficientStorage},
		{"wrapped not mounted", fmt.Errorf("persist: %w", storage.ErrNotMounted), http.StatusInsufficientStorage},
		{"wrapped focus failed", fmt.Errorf("capture 1: %w", camera.ErrFocusFailed), http.StatusUnprocessableEntity},
		{"other", errors.New("disk full"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			captureErr(c, tt.err)

			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
			var body jsend.Response
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatal(err)
			}
			if body.Status != jsend.StatusError || body.Message != tt.err.Error() {
				t.Errorf("body = %+v", body)
			}
		})
	}
}
