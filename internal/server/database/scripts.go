package database

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

var (
	ErrScriptNotFound = errors.New("script not found")
	ErrUserNotFound   = errors.New("user not found")
)

const scriptColumns = `id, title, description, image_url, json_url, json_data,
	uploader_id, uploader_name, upload_date, likes, downloads, status, tags,
	version, base_script_id, created_at`

// ScriptFilter narrows and orders List results. Zero values mean "no
// constraint". SortBy is "likes" or "downloads"; sorted results are ordered
// descending with ties broken by id descending (newest first).
type ScriptFilter struct {
	Status Status
	Query  string // case-insensitive substring of title or description
	Tag    string // exact tag membership
	SortBy string
}

// ScriptUpdate is a partial update: only non-nil fields are applied.
type ScriptUpdate struct {
	Status    *Status
	Likes     *int
	Downloads *int
}

// ScriptRepository provides CRUD operations for script records.
type ScriptRepository struct {
	db *DB
}

// NewScriptRepository creates a new ScriptRepository.
func NewScriptRepository(db *DB) *ScriptRepository {
	return &ScriptRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanScript(row rowScanner) (*Script, error) {
	s := &Script{}
	err := row.Scan(
		&s.ID,
		&s.Title,
		&s.Description,
		&s.ImageURL,
		&s.JSONURL,
		&s.JSONData,
		&s.UploaderID,
		&s.UploaderName,
		&s.UploadDate,
		&s.Likes,
		&s.Downloads,
		&s.Status,
		&s.Tags,
		&s.Version,
		&s.BaseScriptID,
		&s.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Create inserts a new script record. When uploaderID is non-empty the
// uploader's upload_count is incremented in the same transaction.
func (r *ScriptRepository) Create(ctx context.Context, s *Script, uploaderID string) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO scripts (
			id, title, description, image_url, json_url, json_data,
			uploader_id, uploader_name, upload_date, likes, downloads,
			status, tags, version, base_script_id, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`,
		s.ID, s.Title, s.Description, s.ImageURL, s.JSONURL, s.JSONData,
		s.UploaderID, s.UploaderName, s.UploadDate, s.Likes, s.Downloads,
		s.Status, s.Tags, s.Version, s.BaseScriptID, s.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create script: %w", err)
	}

	if uploaderID != "" {
		if _, err := tx.Exec(ctx,
			"UPDATE users SET upload_count = upload_count + 1 WHERE id = $1", uploaderID,
		); err != nil {
			return fmt.Errorf("failed to increment upload count: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit script create: %w", err)
	}
	return nil
}

// GetByID retrieves a script by its ID.
func (r *ScriptRepository) GetByID(ctx context.Context, id string) (*Script, error) {
	row := r.db.Pool.QueryRow(ctx,
		"SELECT "+scriptColumns+" FROM scripts WHERE id = $1", id)
	s, err := scanScript(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrScriptNotFound
		}
		return nil, fmt.Errorf("failed to get script: %w", err)
	}
	return s, nil
}

// List returns scripts matching the filter. An empty filter returns every
// record in newest-first order.
func (r *ScriptRepository) List(ctx context.Context, f ScriptFilter) ([]*Script, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.Status != "" {
		where = append(where, "status = "+arg(f.Status))
	}
	if f.Query != "" {
		p := arg("%" + f.Query + "%")
		where = append(where, fmt.Sprintf("(title ILIKE %s OR description ILIKE %s)", p, p))
	}
	if f.Tag != "" {
		where = append(where, arg(f.Tag)+" = ANY(tags)")
	}

	query := "SELECT " + scriptColumns + " FROM scripts"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	switch f.SortBy {
	case "likes":
		query += " ORDER BY likes DESC, id DESC"
	case "downloads":
		query += " ORDER BY downloads DESC, id DESC"
	default:
		query += " ORDER BY id DESC"
	}

	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list scripts: %w", err)
	}
	defer rows.Close()

	var scripts []*Script
	for rows.Next() {
		s, err := scanScript(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan script: %w", err)
		}
		scripts = append(scripts, s)
	}
	return scripts, rows.Err()
}

// ListSeries returns every script whose base_script_id matches baseID,
// oldest first.
func (r *ScriptRepository) ListSeries(ctx context.Context, baseID string) ([]*Script, error) {
	rows, err := r.db.Pool.Query(ctx,
		"SELECT "+scriptColumns+" FROM scripts WHERE base_script_id = $1 ORDER BY id", baseID)
	if err != nil {
		return nil, fmt.Errorf("failed to list series: %w", err)
	}
	defer rows.Close()

	var scripts []*Script
	for rows.Next() {
		s, err := scanScript(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan script: %w", err)
		}
		scripts = append(scripts, s)
	}
	return scripts, rows.Err()
}

// Update applies the non-nil fields of upd to the script and returns the
// updated record. Omitted fields are left untouched.
func (r *ScriptRepository) Update(ctx context.Context, id string, upd ScriptUpdate) (*Script, error) {
	var (
		set  []string
		args []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if upd.Status != nil {
		set = append(set, "status = "+arg(*upd.Status))
	}
	if upd.Likes != nil {
		set = append(set, "likes = "+arg(*upd.Likes))
	}
	if upd.Downloads != nil {
		set = append(set, "downloads = "+arg(*upd.Downloads))
	}
	if len(set) == 0 {
		return r.GetByID(ctx, id)
	}

	query := fmt.Sprintf(
		"UPDATE scripts SET %s WHERE id = %s RETURNING %s",
		strings.Join(set, ", "), arg(id), scriptColumns,
	)

	row := r.db.Pool.QueryRow(ctx, query, args...)
	s, err := scanScript(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrScriptNotFound
		}
		return nil, fmt.Errorf("failed to update script: %w", err)
	}
	return s, nil
}

// IncrementDownloads atomically increments the download counter.
func (r *ScriptRepository) IncrementDownloads(ctx context.Context, id string) error {
	tag, err := r.db.Pool.Exec(ctx,
		"UPDATE scripts SET downloads = downloads + 1 WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to increment downloads: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrScriptNotFound
	}
	return nil
}

// Delete removes a script record by ID.
func (r *ScriptRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Pool.Exec(ctx, "DELETE FROM scripts WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete script: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrScriptNotFound
	}
	return nil
}

// CountByUploader returns how many scripts the uploader currently has.
func (r *ScriptRepository) CountByUploader(ctx context.Context, uploaderID string) (int, error) {
	var n int
	err := r.db.Pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM scripts WHERE uploader_id = $1", uploaderID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count scripts by uploader: %w", err)
	}
	return n, nil
}

// CountUploadedOn returns how many scripts the uploader created on the given
// date (date-only string, matching Script.UploadDate).
func (r *ScriptRepository) CountUploadedOn(ctx context.Context, uploaderID, date string) (int, error) {
	var n int
	err := r.db.Pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM scripts WHERE uploader_id = $1 AND upload_date = $2",
		uploaderID, date).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count uploads on date: %w", err)
	}
	return n, nil
}

// GetStats returns aggregate platform statistics.
func (r *ScriptRepository) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	err := r.db.Pool.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'approved'),
			COUNT(*) FILTER (WHERE status = 'pending'),
			COALESCE(SUM(likes), 0),
			COALESCE(SUM(downloads), 0),
			(SELECT COUNT(*) FROM users)
		FROM scripts
	`).Scan(
		&stats.TotalScripts,
		&stats.ApprovedScripts,
		&stats.PendingScripts,
		&stats.TotalLikes,
		&stats.TotalDownloads,
		&stats.TotalUsers,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get stats: %w", err)
	}
	return stats, nil
}
