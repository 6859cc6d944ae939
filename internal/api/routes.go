package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/reelfix/reelfix-agent/internal/catalog"
	"github.com/reelfix/reelfix-agent/internal/playback"
)

// FallbackHeader marks responses that carry the original upload because
// processing did not complete.
const FallbackHeader = "X-Reelfix-Fallback"

func NewRouter(cfg ServerConfig) *chi.Mux {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = DefaultMaxUploadBytes
	}

	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(CORSAllowlist())

	r.Get("/health", healthHandler(cfg))

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.Repository, cfg.Logger))

		r.Get("/status", statusHandler(cfg))
		r.Post("/recordings", submitRecordingHandler(cfg))
		r.Get("/recordings", listRecordingsHandler(cfg))
		r.Get("/recordings/{id}", getRecordingHandler(cfg))
		r.Post("/recordings/{id}/export", exportHandler(cfg))
		r.Get("/jobs", listJobsHandler(cfg))
		r.Get("/jobs/{id}", getJobHandler(cfg))
		r.Post("/runner/pause", pauseRunnerHandler(cfg, true))
		r.Post("/runner/resume", pauseRunnerHandler(cfg, false))
	})

	r.Group(func(r chi.Router) {
		r.Use(LoopbackGuard())

		r.Get("/recordings/{id}/artifact", artifactHandler(cfg))
		r.Head("/recordings/{id}/artifact", artifactHandler(cfg))
		r.Get("/recordings/{id}/original", originalHandler(cfg))
		r.Head("/recordings/{id}/original", originalHandler(cfg))
	})

	return r
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uptime := int64(time.Since(cfg.StartTime).Seconds())
		WriteJSON(w, http.StatusOK, HealthResponse{
			Status:   "ok",
			Version:  cfg.Version,
			UptimeS:  uptime,
			DeviceID: cfg.DeviceID,
		})
	}
}

func statusHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		recordings, _ := cfg.CatalogService.CountRecordings(ctx)
		counts, _ := cfg.Repository.CountJobsByStatus(ctx)
		jobs, _ := cfg.Repository.ListJobs(ctx, 10)

		state := "idle"
		var activeJob *JobResponse
		lastError := ""

		if cfg.Runner != nil && cfg.Runner.IsPaused() {
			state = "paused"
		}

		for _, j := range jobs {
			if j.Status == catalog.JobStatusRunning && activeJob == nil {
				resp := JobToResponse(j)
				activeJob = &resp
				if state == "idle" {
					state = "processing"
				}
			}
			if j.Status == catalog.JobStatusFailed && lastError == "" {
				lastError = j.Error
			}
		}

		if lastError != "" && state == "idle" {
			state = "error"
		}

		resp := StatusResponse{
			State:           state,
			LastError:       lastError,
			RecordingsCount: recordings,
			JobsRunning:     counts[catalog.JobStatusRunning],
			JobsPending:     counts[catalog.JobStatusPending],
			JobsFailed:      counts[catalog.JobStatusFailed],
			ActiveJob:       activeJob,
		}

		if cfg.WebMProbe != nil {
			caps := cfg.WebMProbe.Get(ctx)
			webm := &WebMStatusResponse{
				Fixer:     caps.Fixer,
				Available: caps.Available,
				Path:      caps.Path,
				Error:     caps.Error,
			}
			if !caps.ProbedAt.IsZero() {
				webm.LastProbeAt = caps.ProbedAt.Format(time.RFC3339)
			}
			resp.WebM = webm
		}

		WriteJSON(w, http.StatusOK, resp)
	}
}

func submitRecordingHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := parseSubmitQuery(r.URL.Query())
		if err != nil {
			WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
			return
		}
		req.MIMEType = r.Header.Get("Content-Type")
		if req.MIMEType == "" {
			WriteError(w, http.StatusBadRequest, "Content-Type is required", "BAD_REQUEST")
			return
		}

		data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, cfg.MaxUploadBytes))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				WriteError(w, http.StatusRequestEntityTooLarge,
					fmt.Sprintf("recording exceeds %d bytes", tooLarge.Limit), "TOO_LARGE")
				return
			}
			WriteError(w, http.StatusBadRequest, "failed to read body", "BAD_REQUEST")
			return
		}
		req.Data = data

		rec, job, err := cfg.CatalogService.Submit(r.Context(), req)
		if errors.Is(err, catalog.ErrInvalidRecording) {
			WriteError(w, http.StatusBadRequest, err.Error(), "INVALID_RECORDING")
			return
		}
		if err != nil {
			cfg.Logger.Error("submit failed", "error", err)
			WriteError(w, http.StatusInternalServerError, "failed to store recording", "INTERNAL_ERROR")
			return
		}

		WriteJSON(w, http.StatusAccepted, SubmitResponse{JobID: job.ID, RecordingID: rec.ID})
	}
}

// parseSubmitQuery reads the recorder telemetry from the query string.
// duration is required; the rest are optional.
func parseSubmitQuery(q url.Values) (catalog.SubmitRequest, error) {
	var req catalog.SubmitRequest
	var err error

	if q.Get("duration") == "" {
		return req, fmt.Errorf("duration is required")
	}
	if req.Duration, err = floatParam(q, "duration"); err != nil {
		return req, err
	}
	if req.Telemetry.TargetFrameRate, err = floatParam(q, "target_fps"); err != nil {
		return req, err
	}
	if req.Telemetry.ActualFrameRate, err = floatParam(q, "actual_fps"); err != nil {
		return req, err
	}
	if req.Telemetry.IsConstantFramerate, err = boolParam(q, "constant"); err != nil {
		return req, err
	}
	if req.IsAndroid, err = boolParam(q, "android"); err != nil {
		return req, err
	}
	if v := q.Get("total_frames"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return req, fmt.Errorf("total_frames must be a non-negative integer")
		}
		req.Telemetry.TotalFrames = n
	}
	return req, nil
}

func floatParam(q url.Values, name string) (float64, error) {
	v := q.Get(name)
	if v == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number", name)
	}
	return f, nil
}

func boolParam(q url.Values, name string) (bool, error) {
	v := q.Get(name)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean", name)
	}
	return b, nil
}

func listRecordingsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		recs, err := cfg.CatalogService.GetRecordings(r.Context(), 50)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list recordings", "INTERNAL_ERROR")
			return
		}

		resp := RecordingsResponse{Recordings: make([]RecordingResponse, len(recs))}
		for i, rec := range recs {
			resp.Recordings[i] = RecordingToResponse(rec)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func getRecordingHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, ok := lookupRecording(w, r, cfg)
		if !ok {
			return
		}

		resp := RecordingToResponse(rec)
		if job, err := cfg.CatalogService.GetLatestJob(r.Context(), rec.ID); err == nil && job != nil {
			jr := JobToResponse(job)
			resp.Job = &jr
		}
		if art, err := cfg.CatalogService.GetArtifact(r.Context(), rec.ID); err == nil && art != nil {
			ar := ArtifactToResponse(art)
			resp.Artifact = &ar
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func lookupRecording(w http.ResponseWriter, r *http.Request, cfg ServerConfig) (*catalog.Recording, bool) {
	id := chi.URLParam(r, "id")
	if id == "" {
		WriteError(w, http.StatusBadRequest, "recording id required", "BAD_REQUEST")
		return nil, false
	}

	rec, err := cfg.CatalogService.GetRecording(r.Context(), id)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
		return nil, false
	}
	if rec == nil {
		WriteError(w, http.StatusNotFound, "recording not found", "NOT_FOUND")
		return nil, false
	}
	return rec, true
}

func listJobsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobs, err := cfg.CatalogService.GetJobs(r.Context(), 50)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list jobs", "INTERNAL_ERROR")
			return
		}

		resp := JobsResponse{Jobs: make([]JobResponse, len(jobs))}
		for i, j := range jobs {
			resp.Jobs[i] = JobToResponse(j)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func getJobHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if id == "" {
			WriteError(w, http.StatusBadRequest, "job id required", "BAD_REQUEST")
			return
		}

		job, err := cfg.CatalogService.GetJob(r.Context(), id)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		if job == nil {
			WriteError(w, http.StatusNotFound, "job not found", "NOT_FOUND")
			return
		}

		WriteJSON(w, http.StatusOK, JobToResponse(job))
	}
}

func pauseRunnerHandler(cfg ServerConfig, pause bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cfg.Runner == nil {
			WriteError(w, http.StatusServiceUnavailable, "job runner not configured", "UNAVAILABLE")
			return
		}
		if pause {
			cfg.Runner.Pause()
		} else {
			cfg.Runner.Resume()
		}
		if err := cfg.Repository.SetConfig(r.Context(), catalog.ConfigRunnerPaused, strconv.FormatBool(pause)); err != nil {
			cfg.Logger.Warn("failed to persist runner state", "error", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// media is what a recording resolves to for download or export.
type media struct {
	path     string
	mimeType string
	name     string
	fallback bool
	reason   string
	artifact *catalog.Artifact
}

type apiError struct {
	status  int
	message string
	code    string
}

// resolveMedia returns the artifact when processing succeeded and the
// original upload when it failed. Recordings still being processed have
// nothing to hand out yet.
func resolveMedia(r *http.Request, cfg ServerConfig, rec *catalog.Recording) (*media, *apiError) {
	ctx := r.Context()

	art, err := cfg.CatalogService.GetArtifact(ctx, rec.ID)
	if err != nil {
		return nil, &apiError{http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR"}
	}
	if art != nil {
		return &media{path: art.Path, mimeType: art.MIMEType, name: art.Filename, artifact: art}, nil
	}

	job, err := cfg.CatalogService.GetLatestJob(ctx, rec.ID)
	if err != nil {
		return nil, &apiError{http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR"}
	}
	if job != nil && !job.Done() {
		return nil, &apiError{http.StatusConflict, "recording is still being processed", "NOT_READY"}
	}

	reason := "optimization did not complete"
	if job != nil && job.Error != "" {
		reason = job.Error
	}
	return &media{
		path:     rec.OriginalPath,
		mimeType: rec.MIMEType,
		name:     originalName(rec),
		fallback: true,
		reason:   reason,
	}, nil
}

func originalName(rec *catalog.Recording) string {
	return fmt.Sprintf("%s_original.%s", rec.ID, rec.Format.Ext())
}

func artifactHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, ok := lookupRecording(w, r, cfg)
		if !ok {
			return
		}

		m, apiErr := resolveMedia(r, cfg, rec)
		if apiErr != nil {
			WriteError(w, apiErr.status, apiErr.message, apiErr.code)
			return
		}
		if m.fallback {
			w.Header().Set(FallbackHeader, "original")
		}

		serveMedia(w, r, cfg, playback.Media{Path: m.path, ContentType: m.mimeType, DownloadName: m.name})
	}
}

func originalHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, ok := lookupRecording(w, r, cfg)
		if !ok {
			return
		}
		serveMedia(w, r, cfg, playback.Media{Path: rec.OriginalPath, ContentType: rec.MIMEType, DownloadName: originalName(rec)})
	}
}

func serveMedia(w http.ResponseWriter, r *http.Request, cfg ServerConfig, m playback.Media) {
	if cfg.PlaybackServer == nil {
		WriteError(w, http.StatusServiceUnavailable, "playback not configured", "UNAVAILABLE")
		return
	}
	if err := cfg.PlaybackServer.ServeMedia(w, r, m); err != nil {
		cfg.Logger.Error("playback error", "error", err, "path", m.Path)
	}
}
