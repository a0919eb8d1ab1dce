package webdav

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestHandlerServesCaptures(t *testing.T) {
	dir := t.TempDir()
	name := "2024-01-02 03:04:05.JPG"
	if err := os.WriteFile(filepath.Join(dir, name), []byte("jpeg"), 0o600); err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(Handler(dir))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/2024-01-02%2003:04:05.JPG")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || string(body) != "jpeg" {
		t.Errorf("GET = %d %q", resp.StatusCode, body)
	}

	req, _ := http.NewRequest("PROPFIND", srv.URL+"/", nil)
	req.Header.Set("Depth", "1")
	resp2, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp2.Body.Close()
	if resp2.StatusCode != http.StatusMultiStatus {
		t.Errorf("PROPFIND status = %d", resp2.StatusCode)
	}
}

func TestStartStop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w := New(ctx, 0, t.TempDir())
	if w.Running() {
		t.Fatal("running before start")
	}
	w.Start()
	w.Start()
	if !w.Running() {
		t.Fatal("not running after start")
	}
	w.Stop()
	if w.Running() {
		t.Error("running after stop")
	}
}
