package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"time"

	"github.com/reelfix/reelfix-agent/internal/export"
)

func exportHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, ok := lookupRecording(w, r, cfg)
		if !ok {
			return
		}

		var req export.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		outputDir, create := req.OutputDir, false
		if outputDir == "" {
			outputDir, create = cfg.ExportDir, true
		}
		if err := export.PrepareOutputDir(outputDir, create); err != nil {
			WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
			return
		}

		m, apiErr := resolveMedia(r, cfg, rec)
		if apiErr != nil {
			WriteError(w, apiErr.status, apiErr.message, apiErr.code)
			return
		}

		name := m.name
		if req.Name != "" {
			stem := export.SanitizeName(req.Name, 120)
			if stem == "" {
				WriteError(w, http.StatusBadRequest, "name has no usable characters", "BAD_REQUEST")
				return
			}
			name = stem + filepath.Ext(m.name)
		}

		sidecar := export.Sidecar{
			RecordingID: rec.ID,
			MIMEType:    m.mimeType,
			Fallback:    m.fallback,
			Reason:      m.reason,
			ExportedAt:  time.Now().UTC(),
		}
		if m.artifact != nil {
			sidecar.Metadata = &m.artifact.Metadata
			sidecar.Compatibility = &m.artifact.Compatibility
		}

		res, err := export.Write(outputDir, export.Bundle{SourcePath: m.path, Name: name, Sidecar: sidecar})
		if err != nil {
			cfg.Logger.Error("export failed", "recording_id", rec.ID, "error", err)
			WriteError(w, http.StatusInternalServerError, "failed to write export", "INTERNAL_ERROR")
			return
		}

		cfg.Logger.Info("recording exported",
			"recording_id", rec.ID,
			"output_path", res.MediaPath,
			"fallback", m.fallback,
		)

		status := "ok"
		if m.fallback {
			status = "fallback"
		}
		WriteJSON(w, http.StatusOK, export.Response{
			Status:      status,
			OutputPath:  res.MediaPath,
			SidecarPath: res.SidecarPath,
			Size:        res.Size,
			Fallback:    m.fallback,
		})
	}
}
