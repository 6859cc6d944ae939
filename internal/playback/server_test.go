package playback

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeMedia(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func serve(t *testing.T, req *http.Request, m Media) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s := NewServer(slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err := s.ServeMedia(rec, req, m); err != nil {
		t.Fatalf("ServeMedia() error = %v", err)
	}
	return rec
}

func TestServeMedia_Full(t *testing.T) {
	path := writeMedia(t, "ar_video_1.mp4", []byte("0123456789"))

	rec := serve(t, httptest.NewRequest(http.MethodGet, "/", nil), Media{Path: path, DownloadName: "ar_video_1.mp4"})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Body.String() != "0123456789" {
		t.Errorf("body = %q", rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "video/mp4" {
		t.Errorf("Content-Type = %q", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, `filename=ar_video_1.mp4`) {
		t.Errorf("Content-Disposition = %q", cd)
	}
}

func TestServeMedia_Partial(t *testing.T) {
	path := writeMedia(t, "clip.webm", []byte("0123456789"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Range", "bytes=2-5")
	rec := serve(t, req, Media{Path: path})

	if rec.Code != http.StatusPartialContent {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Body.String() != "2345" {
		t.Errorf("body = %q", rec.Body.String())
	}
	if cr := rec.Header().Get("Content-Range"); cr != "bytes 2-5/10" {
		t.Errorf("Content-Range = %q", cr)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "video/webm" {
		t.Errorf("Content-Type = %q", ct)
	}
}

func TestServeMedia_ContentTypeOverride(t *testing.T) {
	path := writeMedia(t, "original.webm", []byte("x"))
	rec := serve(t, httptest.NewRequest(http.MethodGet, "/", nil), Media{Path: path, ContentType: "video/webm;codecs=vp9"})
	if ct := rec.Header().Get("Content-Type"); ct != "video/webm;codecs=vp9" {
		t.Errorf("Content-Type = %q", ct)
	}
}

func TestServeMedia_Unsatisfiable(t *testing.T) {
	path := writeMedia(t, "clip.mp4", []byte("0123456789"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Range", "bytes=50-")
	rec := serve(t, req, Media{Path: path})

	if rec.Code != http.StatusRequestedRangeNotSatisfiable {
		t.Fatalf("status = %d", rec.Code)
	}
	if cr := rec.Header().Get("Content-Range"); cr != "bytes */10" {
		t.Errorf("Content-Range = %q", cr)
	}
}

func TestServeMedia_InvalidRangeServesWholeFile(t *testing.T) {
	path := writeMedia(t, "clip.mp4", []byte("abc"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Range", "frames=1-2")
	rec := serve(t, req, Media{Path: path})

	if rec.Code != http.StatusOK || rec.Body.String() != "abc" {
		t.Errorf("status = %d body = %q", rec.Code, rec.Body.String())
	}
}

func TestServeMedia_Head(t *testing.T) {
	path := writeMedia(t, "clip.mp4", []byte("0123456789"))

	rec := serve(t, httptest.NewRequest(http.MethodHead, "/", nil), Media{Path: path})

	if rec.Code != http.StatusOK || rec.Body.Len() != 0 {
		t.Errorf("status = %d body len = %d", rec.Code, rec.Body.Len())
	}
	if cl := rec.Header().Get("Content-Length"); cl != "10" {
		t.Errorf("Content-Length = %q", cl)
	}
}

func TestServeMedia_NotFound(t *testing.T) {
	rec := serve(t, httptest.NewRequest(http.MethodGet, "/", nil), Media{Path: filepath.Join(t.TempDir(), "missing.mp4")})
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}
