package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/reelfix/reelfix-agent/internal/catalog"
	"github.com/reelfix/reelfix-agent/internal/export"
)

func newExportRequest(t *testing.T, recordingID string, req export.Request) *http.Request {
	t.Helper()
	body, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	return httptest.NewRequest(http.MethodPost, "/recordings/"+recordingID+"/export", strings.NewReader(string(body)))
}

func decodeExportResponse(t *testing.T, rr *httptest.ResponseRecorder) export.Response {
	t.Helper()
	var resp export.Response
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode export response: %v", err)
	}
	return resp
}

func TestExport_Artifact(t *testing.T) {
	env := newTestEnv(t)
	sub := env.submit(t, "video/mp4", []byte("movie"))
	env.complete(t, sub, []byte("patched movie"))
	outDir := t.TempDir()

	rr := env.do(t, newExportRequest(t, sub.RecordingID, export.Request{OutputDir: outDir}))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rr.Code, rr.Body.String())
	}

	resp := decodeExportResponse(t, rr)
	if resp.Status != "ok" || resp.Fallback {
		t.Errorf("response = %+v", resp)
	}
	if resp.OutputPath != filepath.Join(outDir, "ar_video_1773500966000.mp4") {
		t.Errorf("OutputPath = %q", resp.OutputPath)
	}
	if data, _ := os.ReadFile(resp.OutputPath); string(data) != "patched movie" {
		t.Errorf("exported media = %q", data)
	}

	var sidecar export.Sidecar
	raw, err := os.ReadFile(resp.SidecarPath)
	if err != nil {
		t.Fatalf("sidecar missing: %v", err)
	}
	if err := json.Unmarshal(raw, &sidecar); err != nil {
		t.Fatal(err)
	}
	if sidecar.RecordingID != sub.RecordingID || sidecar.Metadata == nil || !sidecar.Metadata.FixedDuration {
		t.Errorf("sidecar = %+v", sidecar)
	}
	if sidecar.Compatibility == nil || !sidecar.Compatibility.Instagram {
		t.Errorf("sidecar compatibility = %+v", sidecar.Compatibility)
	}
}

func TestExport_CustomName(t *testing.T) {
	env := newTestEnv(t)
	sub := env.submit(t, "video/mp4", []byte("movie"))
	env.complete(t, sub, []byte("patched"))
	outDir := t.TempDir()

	rr := env.do(t, newExportRequest(t, sub.RecordingID, export.Request{OutputDir: outDir, Name: "beach day!"}))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rr.Code, rr.Body.String())
	}
	resp := decodeExportResponse(t, rr)
	if filepath.Base(resp.OutputPath) != "beach_day.mp4" || filepath.Base(resp.SidecarPath) != "beach_day.json" {
		t.Errorf("paths = %q, %q", resp.OutputPath, resp.SidecarPath)
	}

	rr = env.do(t, newExportRequest(t, sub.RecordingID, export.Request{OutputDir: outDir, Name: "***"}))
	if rr.Code != http.StatusBadRequest {
		t.Errorf("unusable name status = %d, want 400", rr.Code)
	}
}

func TestExport_FallbackToDefaultDir(t *testing.T) {
	env := newTestEnv(t)
	sub := env.submit(t, "video/webm", []byte("raw webm"))
	env.repo.UpdateJobStatus(context.Background(), sub.JobID, catalog.JobStatusFailed, "processing failed")

	rr := env.do(t, httptest.NewRequest(http.MethodPost, "/recordings/"+sub.RecordingID+"/export", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rr.Code, rr.Body.String())
	}
	resp := decodeExportResponse(t, rr)
	if !resp.Fallback || resp.Status != "fallback" {
		t.Errorf("response = %+v", resp)
	}
	if filepath.Dir(resp.OutputPath) != env.cfg.ExportDir {
		t.Errorf("exported to %q, want default %q", resp.OutputPath, env.cfg.ExportDir)
	}
	if !strings.HasSuffix(resp.OutputPath, "_original.webm") {
		t.Errorf("OutputPath = %q", resp.OutputPath)
	}

	raw, _ := os.ReadFile(resp.SidecarPath)
	var sidecar export.Sidecar
	json.Unmarshal(raw, &sidecar)
	if !sidecar.Fallback || sidecar.Reason != "processing failed" || sidecar.Metadata != nil {
		t.Errorf("sidecar = %+v", sidecar)
	}
}

func TestExport_Rejects(t *testing.T) {
	env := newTestEnv(t)
	sub := env.submit(t, "video/mp4", []byte("movie"))

	tests := []struct {
		name string
		req  *http.Request
		want int
	}{
		{"still processing", newExportRequest(t, sub.RecordingID, export.Request{OutputDir: t.TempDir()}), http.StatusConflict},
		{"relative dir", newExportRequest(t, sub.RecordingID, export.Request{OutputDir: "exports"}), http.StatusBadRequest},
		{"traversal", newExportRequest(t, sub.RecordingID, export.Request{OutputDir: "/tmp/../etc"}), http.StatusBadRequest},
		{"missing dir", newExportRequest(t, sub.RecordingID, export.Request{OutputDir: filepath.Join(t.TempDir(), "nope")}), http.StatusBadRequest},
		{"bad json", httptest.NewRequest(http.MethodPost, "/recordings/"+sub.RecordingID+"/export", strings.NewReader("{")), http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rr := env.do(t, tt.req); rr.Code != tt.want {
				t.Errorf("status = %d, want %d (%s)", rr.Code, tt.want, rr.Body.String())
			}
		})
	}
}
