// infrastructure/postgres_video_repository.go
package infrastructure

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/vitovidale/video-api-service/config"
	"github.com/vitovidale/video-api-service/domain"
)

const videosSchema = `
CREATE TABLE IF NOT EXISTS videos (
	id            TEXT PRIMARY KEY,
	created_at    TIMESTAMPTZ NOT NULL,
	updated_at    TIMESTAMPTZ NOT NULL,
	user_id       TEXT NOT NULL,
	name          TEXT NOT NULL,
	description   TEXT NOT NULL DEFAULT '',
	url           TEXT NOT NULL,
	snapshots_url TEXT NOT NULL DEFAULT '',
	status        TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_videos_user_id_created_at ON videos (user_id, created_at DESC);
`

const videoColumns = `id, created_at, updated_at, user_id, name, description, url, snapshots_url, status`

var (
	connectAttempts = 5
	connectDelay    = 5 * time.Second
)

// ConnectPostgres opens the pool, retrying while the database comes up.
func ConnectPostgres(ctx context.Context, cfg config.PostgresConfig, logger logrus.FieldLogger) (*sqlx.DB, error) {
	var err error
	for i := 1; i <= connectAttempts; i++ {
		var db *sqlx.DB
		db, err = sqlx.ConnectContext(ctx, "postgres", cfg.DSN())
		if err == nil {
			logger.WithField("dsn", cfg.SafeDSN()).Info("connected to postgres")
			return db, nil
		}
		logger.WithError(err).Warnf("postgres not reachable, retrying in %s (%d/%d)", connectDelay, i, connectAttempts)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(connectDelay):
		}
	}
	return nil, fmt.Errorf("failed to connect to postgres after %d attempts: %w", connectAttempts, err)
}

type videoRow struct {
	ID           string    `db:"id"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
	UserID       string    `db:"user_id"`
	Name         string    `db:"name"`
	Description  string    `db:"description"`
	URL          string    `db:"url"`
	SnapshotsURL string    `db:"snapshots_url"`
	Status       string    `db:"status"`
}

func toVideoRow(v domain.Video) videoRow {
	return videoRow{
		ID:           v.ID,
		CreatedAt:    v.CreatedAt,
		UpdatedAt:    v.UpdatedAt,
		UserID:       v.OwnerID,
		Name:         v.Name,
		Description:  v.Description,
		URL:          v.URL,
		SnapshotsURL: v.SnapshotsURL,
		Status:       string(v.Status),
	}
}

func (r videoRow) toDomain() domain.Video {
	return domain.Video{
		ID:           r.ID,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
		OwnerID:      r.UserID,
		Name:         r.Name,
		Description:  r.Description,
		URL:          r.URL,
		SnapshotsURL: r.SnapshotsURL,
		Status:       domain.ExtractionStatus(r.Status),
	}
}

type PostgresVideoRepository struct {
	DB    *sqlx.DB
	newID func() string
}

var _ domain.VideoStore = (*PostgresVideoRepository)(nil)

func NewPostgresVideoRepository(db *sqlx.DB) *PostgresVideoRepository {
	return &PostgresVideoRepository{DB: db, newID: uuid.NewString}
}

func (r *PostgresVideoRepository) Migrate(ctx context.Context) error {
	if _, err := r.DB.ExecContext(ctx, videosSchema); err != nil {
		return domain.StorageFailure("failed to create videos table", err)
	}
	return nil
}

func (r *PostgresVideoRepository) Ping(ctx context.Context) error {
	return r.DB.PingContext(ctx)
}

func (r *PostgresVideoRepository) ListByOwner(ctx context.Context, ownerID string) ([]domain.Video, error) {
	var rows []videoRow
	query := `SELECT ` + videoColumns + ` FROM videos WHERE user_id = $1 ORDER BY created_at DESC`
	if err := r.DB.SelectContext(ctx, &rows, query, ownerID); err != nil {
		return nil, domain.StorageFailure("failed to list videos", err)
	}

	videos := make([]domain.Video, 0, len(rows))
	for _, row := range rows {
		videos = append(videos, row.toDomain())
	}
	return videos, nil
}

func (r *PostgresVideoRepository) GetByIDAndOwner(ctx context.Context, id, ownerID string) (*domain.Video, error) {
	var row videoRow
	query := `SELECT ` + videoColumns + ` FROM videos WHERE id = $1 AND user_id = $2`
	if err := r.DB.GetContext(ctx, &row, query, id, ownerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, domain.StorageFailure("failed to find video", err)
	}
	v := row.toDomain()
	return &v, nil
}

func (r *PostgresVideoRepository) Insert(ctx context.Context, video domain.Video) (domain.Video, error) {
	video.ID = r.newID()
	query := `INSERT INTO videos (` + videoColumns + `)
		VALUES (:id, :created_at, :updated_at, :user_id, :name, :description, :url, :snapshots_url, :status)`
	if _, err := r.DB.NamedExecContext(ctx, query, toVideoRow(video)); err != nil {
		return domain.Video{}, domain.StorageFailure("failed to insert video", err)
	}
	return video, nil
}

func (r *PostgresVideoRepository) UpdateStatus(ctx context.Context, video domain.Video) error {
	query := `UPDATE videos SET status = $1, updated_at = $2 WHERE id = $3`
	if _, err := r.DB.ExecContext(ctx, query, string(video.Status), video.UpdatedAt, video.ID); err != nil {
		return domain.StorageFailure("failed to update video status", err)
	}
	return nil
}

func (r *PostgresVideoRepository) UpdateStatusAndSnapshotsURL(ctx context.Context, video domain.Video) error {
	query := `UPDATE videos SET status = $1, snapshots_url = $2, updated_at = $3 WHERE id = $4`
	if _, err := r.DB.ExecContext(ctx, query, string(video.Status), video.SnapshotsURL, video.UpdatedAt, video.ID); err != nil {
		return domain.StorageFailure("failed to update video status and snapshots url", err)
	}
	return nil
}

func (r *PostgresVideoRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.DB.ExecContext(ctx, `DELETE FROM videos WHERE id = $1`, id); err != nil {
		return domain.StorageFailure("failed to delete video", err)
	}
	return nil
}
