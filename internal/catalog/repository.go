package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/reelfix/reelfix-agent/internal/processing"
)

type Repository interface {
	CreateRecording(ctx context.Context, rec *Recording) error
	GetRecording(ctx context.Context, id string) (*Recording, error)
	ListRecordings(ctx context.Context, limit int) ([]*Recording, error)
	CountRecordings(ctx context.Context) (int, error)

	SaveArtifact(ctx context.Context, a *Artifact) error
	GetArtifact(ctx context.Context, recordingID string) (*Artifact, error)
	MarkArtifactPublished(ctx context.Context, recordingID string, at time.Time) error

	CreateJob(ctx context.Context, job *Job) error
	GetJob(ctx context.Context, id string) (*Job, error)
	GetLatestJobForRecording(ctx context.Context, recordingID string) (*Job, error)
	ListJobs(ctx context.Context, limit int) ([]*Job, error)
	ListPendingJobs(ctx context.Context) ([]*Job, error)
	CountJobsByStatus(ctx context.Context) (map[string]int, error)
	UpdateJobStatus(ctx context.Context, id, status, errorMsg string) error
	UpdateJobProgress(ctx context.Context, id string, progress int, stage, message string) error

	GetConfig(ctx context.Context, key string) (string, error)
	SetConfig(ctx context.Context, key, value string) error
}

type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db, now: time.Now}
}

func (r *SQLiteRepository) timestamp() string {
	return formatTime(r.now())
}

const recordingColumns = `id, mime_type, format, size, duration, target_fps, actual_fps,
	constant_fps, total_frames, is_android, original_path, created_at`

func (r *SQLiteRepository) CreateRecording(ctx context.Context, rec *Recording) error {
	t := rec.Telemetry
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO recordings (`+recordingColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.MIMEType, string(rec.Format), rec.Size, rec.Duration,
		t.TargetFrameRate, t.ActualFrameRate, boolToInt(t.IsConstantFramerate), t.TotalFrames,
		boolToInt(rec.IsAndroid), rec.OriginalPath, formatTime(rec.CreatedAt))
	return err
}

func (r *SQLiteRepository) GetRecording(ctx context.Context, id string) (*Recording, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+recordingColumns+` FROM recordings WHERE id = ?`, id)
	rec, err := scanRecording(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return rec, err
}

func (r *SQLiteRepository) ListRecordings(ctx context.Context, limit int) ([]*Recording, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+recordingColumns+` FROM recordings ORDER BY created_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []*Recording
	for rows.Next() {
		rec, err := scanRecording(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

func (r *SQLiteRepository) CountRecordings(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM recordings").Scan(&count)
	return count, err
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecording(s rowScanner) (*Recording, error) {
	var rec Recording
	var format, createdAt string
	var constant, android int

	err := s.Scan(&rec.ID, &rec.MIMEType, &format, &rec.Size, &rec.Duration,
		&rec.Telemetry.TargetFrameRate, &rec.Telemetry.ActualFrameRate, &constant,
		&rec.Telemetry.TotalFrames, &android, &rec.OriginalPath, &createdAt)
	if err != nil {
		return nil, err
	}
	rec.Format = processing.Format(format)
	rec.Telemetry.IsConstantFramerate = constant == 1
	rec.IsAndroid = android == 1
	rec.CreatedAt = parseTime(createdAt)
	return &rec, nil
}

func (r *SQLiteRepository) SaveArtifact(ctx context.Context, a *Artifact) error {
	metadata, err := json.Marshal(a.Metadata)
	if err != nil {
		return fmt.Errorf("marshal artifact metadata: %w", err)
	}
	compat, err := json.Marshal(a.Compatibility)
	if err != nil {
		return fmt.Errorf("marshal compatibility: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO artifacts (recording_id, filename, path, mime_type, size, quality_score,
			instagram, patch_method, metadata, compatibility, published_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL, ?)
		ON CONFLICT(recording_id) DO UPDATE SET
			filename = excluded.filename,
			path = excluded.path,
			mime_type = excluded.mime_type,
			size = excluded.size,
			quality_score = excluded.quality_score,
			instagram = excluded.instagram,
			patch_method = excluded.patch_method,
			metadata = excluded.metadata,
			compatibility = excluded.compatibility,
			published_at = NULL,
			created_at = excluded.created_at
	`, a.RecordingID, a.Filename, a.Path, a.MIMEType, a.Size, a.QualityScore,
		boolToInt(a.Instagram), string(a.PatchMethod), string(metadata), string(compat),
		formatTime(a.CreatedAt))
	return err
}

func (r *SQLiteRepository) GetArtifact(ctx context.Context, recordingID string) (*Artifact, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT recording_id, filename, path, mime_type, size, quality_score, instagram,
			patch_method, metadata, compatibility, published_at, created_at
		FROM artifacts WHERE recording_id = ?
	`, recordingID)

	var a Artifact
	var instagram int
	var method, metadata, compat, createdAt string
	var publishedAt sql.NullString

	err := row.Scan(&a.RecordingID, &a.Filename, &a.Path, &a.MIMEType, &a.Size, &a.QualityScore,
		&instagram, &method, &metadata, &compat, &publishedAt, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(metadata), &a.Metadata); err != nil {
		return nil, fmt.Errorf("unmarshal artifact metadata: %w", err)
	}
	if err := json.Unmarshal([]byte(compat), &a.Compatibility); err != nil {
		return nil, fmt.Errorf("unmarshal compatibility: %w", err)
	}
	a.Instagram = instagram == 1
	a.PatchMethod = processing.PatchMethod(method)
	a.CreatedAt = parseTime(createdAt)
	if publishedAt.Valid {
		t := parseTime(publishedAt.String)
		a.PublishedAt = &t
	}
	return &a, nil
}

func (r *SQLiteRepository) MarkArtifactPublished(ctx context.Context, recordingID string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, "UPDATE artifacts SET published_at = ? WHERE recording_id = ?",
		formatTime(at), recordingID)
	return err
}

const jobColumns = `id, type, status, recording_id, progress, stage, message, error, created_at, updated_at`

func (r *SQLiteRepository) CreateJob(ctx context.Context, j *Job) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO jobs (`+jobColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, j.ID, j.Type, j.Status, nullString(j.RecordingID), j.Progress,
		nullString(j.Stage), nullString(j.Message), nullString(j.Error),
		formatTime(j.CreatedAt), formatTime(j.UpdatedAt))
	return err
}

func (r *SQLiteRepository) GetJob(ctx context.Context, id string) (*Job, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	j, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return j, err
}

func (r *SQLiteRepository) GetLatestJobForRecording(ctx context.Context, recordingID string) (*Job, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+jobColumns+` FROM jobs WHERE recording_id = ?
		ORDER BY created_at DESC, rowid DESC LIMIT 1
	`, recordingID)
	j, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return j, err
}

func scanJob(s rowScanner) (*Job, error) {
	var j Job
	var recordingID, stage, message, errMsg sql.NullString
	var createdAt, updatedAt string

	err := s.Scan(&j.ID, &j.Type, &j.Status, &recordingID, &j.Progress, &stage, &message, &errMsg, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	j.RecordingID = recordingID.String
	j.Stage = stage.String
	j.Message = message.String
	j.Error = errMsg.String
	j.CreatedAt = parseTime(createdAt)
	j.UpdatedAt = parseTime(updatedAt)
	return &j, nil
}

func (r *SQLiteRepository) ListJobs(ctx context.Context, limit int) ([]*Job, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+jobColumns+` FROM jobs ORDER BY created_at DESC, rowid DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanJobs(rows)
}

func (r *SQLiteRepository) ListPendingJobs(ctx context.Context) ([]*Job, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+jobColumns+` FROM jobs WHERE status = 'pending' ORDER BY created_at ASC, rowid ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanJobs(rows)
}

func scanJobs(rows *sql.Rows) ([]*Job, error) {
	var jobs []*Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

func (r *SQLiteRepository) CountJobsByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT status, COUNT(*) FROM jobs GROUP BY status")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

func (r *SQLiteRepository) UpdateJobStatus(ctx context.Context, id, status, errorMsg string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE jobs SET status = ?, error = ?, updated_at = ? WHERE id = ?
	`, status, nullString(errorMsg), r.timestamp(), id)
	return err
}

func (r *SQLiteRepository) UpdateJobProgress(ctx context.Context, id string, progress int, stage, message string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE jobs SET progress = ?, stage = ?, message = ?, updated_at = ? WHERE id = ?
	`, progress, nullString(stage), nullString(message), r.timestamp(), id)
	return err
}

func (r *SQLiteRepository) GetConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, "SELECT value FROM config WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

func (r *SQLiteRepository) SetConfig(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO config (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

// Timestamps are stored as RFC 3339 UTC text with millisecond precision so
// lexical order matches chronological order.
const timeLayout = "2006-01-02T15:04:05.000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
