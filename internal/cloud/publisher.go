package cloud

import (
	"context"
	"log/slog"
)

type Publisher interface {
	PublishArtifact(ctx context.Context, payload SharePayload) (*ShareResponse, error)
}

// StubPublisher is used when no share service is configured. It logs and
// reports success without a share URL.
type StubPublisher struct {
	logger *slog.Logger
}

func NewStubPublisher(logger *slog.Logger) *StubPublisher {
	return &StubPublisher{logger: logger}
}

func (s *StubPublisher) PublishArtifact(_ context.Context, payload SharePayload) (*ShareResponse, error) {
	s.logger.Info("cloud stub: publish requested",
		"recording_id", payload.RecordingID,
		"filename", payload.Filename,
		"instagram", payload.Metadata.InstagramCompatible,
	)
	return &ShareResponse{ShareID: payload.RecordingID}, nil
}
