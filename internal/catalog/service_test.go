package catalog

import (
	"bytes"
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/reelfix/reelfix-agent/internal/db"
	"github.com/reelfix/reelfix-agent/internal/processing"
)

func setupTestDB(t *testing.T) (*db.DB, Repository) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	database, err := db.New(dbPath, nil)
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	repo := NewRepository(database.Conn())
	return database, repo
}

func TestService_Submit(t *testing.T) {
	_, repo := setupTestDB(t)
	recDir := t.TempDir()
	svc := NewService(repo, recDir, nil)

	data := []byte("not really a movie")
	rec, job, err := svc.Submit(context.Background(), SubmitRequest{
		Data:      data,
		MIMEType:  "video/webm;codecs=vp9",
		Duration:  12.5,
		Telemetry: processing.Telemetry{ActualFrameRate: 29.5, IsConstantFramerate: true},
		IsAndroid: true,
	})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	if rec.Format != processing.FormatWebM {
		t.Errorf("Format = %q, want webm", rec.Format)
	}
	if rec.OriginalPath != filepath.Join(recDir, rec.ID, "original.webm") {
		t.Errorf("OriginalPath = %q", rec.OriginalPath)
	}
	onDisk, err := os.ReadFile(rec.OriginalPath)
	if err != nil || !bytes.Equal(onDisk, data) {
		t.Errorf("original on disk = %q, %v", onDisk, err)
	}

	if job.Type != JobTypeProcess || job.Status != JobStatusPending || job.RecordingID != rec.ID {
		t.Errorf("job = %+v", job)
	}

	got, err := svc.GetRecording(context.Background(), rec.ID)
	if err != nil || got == nil {
		t.Fatalf("GetRecording() = %v, %v", got, err)
	}
	if got.MIMEType != "video/webm;codecs=vp9" || got.Size != int64(len(data)) || got.Duration != 12.5 {
		t.Errorf("stored recording = %+v", got)
	}
	if !got.IsAndroid || !got.Telemetry.IsConstantFramerate || got.Telemetry.ActualFrameRate != 29.5 {
		t.Errorf("stored telemetry = %+v android=%v", got.Telemetry, got.IsAndroid)
	}

	latest, err := svc.GetLatestJob(context.Background(), rec.ID)
	if err != nil || latest == nil || latest.ID != job.ID {
		t.Errorf("GetLatestJob() = %v, %v", latest, err)
	}

	loaded, err := svc.LoadOriginal(context.Background(), got)
	if err != nil || !bytes.Equal(loaded, data) {
		t.Errorf("LoadOriginal() = %q, %v", loaded, err)
	}
}

func TestService_Submit_Invalid(t *testing.T) {
	_, repo := setupTestDB(t)
	svc := NewService(repo, t.TempDir(), nil)

	tests := []struct {
		name string
		req  SubmitRequest
	}{
		{"empty", SubmitRequest{MIMEType: "video/mp4", Duration: 5}},
		{"unsupported mime", SubmitRequest{Data: []byte{1}, MIMEType: "video/quicktime", Duration: 5}},
		{"zero duration", SubmitRequest{Data: []byte{1}, MIMEType: "video/mp4"}},
		{"negative duration", SubmitRequest{Data: []byte{1}, MIMEType: "video/mp4", Duration: -3}},
		{"nan duration", SubmitRequest{Data: []byte{1}, MIMEType: "video/mp4", Duration: math.NaN()}},
		{"infinite duration", SubmitRequest{Data: []byte{1}, MIMEType: "video/mp4", Duration: math.Inf(1)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := svc.Submit(context.Background(), tt.req)
			if !errors.Is(err, ErrInvalidRecording) {
				t.Errorf("Submit() error = %v, want ErrInvalidRecording", err)
			}
		})
	}

	n, _ := svc.CountRecordings(context.Background())
	if n != 0 {
		t.Errorf("CountRecordings() = %d after rejected submits", n)
	}
}

func TestService_ListingOrder(t *testing.T) {
	_, repo := setupTestDB(t)
	svc := NewService(repo, t.TempDir(), nil)

	var ids []string
	for i := 0; i < 3; i++ {
		rec, _, err := svc.Submit(context.Background(), SubmitRequest{Data: []byte{byte(i)}, MIMEType: "video/mp4", Duration: 4})
		if err != nil {
			t.Fatalf("Submit() error = %v", err)
		}
		ids = append(ids, rec.ID)
	}

	jobs, err := svc.GetJobs(context.Background(), 10)
	if err != nil {
		t.Fatalf("GetJobs() error = %v", err)
	}
	if len(jobs) != 3 {
		t.Fatalf("len(jobs) = %d, want 3", len(jobs))
	}
	if jobs[0].RecordingID != ids[2] {
		t.Errorf("newest job first: got recording %s, want %s", jobs[0].RecordingID, ids[2])
	}

	recs, err := svc.GetRecordings(context.Background(), 2)
	if err != nil || len(recs) != 2 {
		t.Fatalf("GetRecordings(2) = %d, %v", len(recs), err)
	}
}

func TestService_LoadOriginal_Missing(t *testing.T) {
	_, repo := setupTestDB(t)
	svc := NewService(repo, t.TempDir(), nil)

	_, err := svc.LoadOriginal(context.Background(), &Recording{ID: "x", OriginalPath: filepath.Join(t.TempDir(), "gone.mp4")})
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("LoadOriginal() error = %v, want ErrNotExist", err)
	}
}
