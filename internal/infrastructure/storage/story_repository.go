package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/skyyMo/skynet-ai/internal/config"
	"github.com/skyyMo/skynet-ai/internal/domain"
	"github.com/skyyMo/skynet-ai/internal/ports"
)

// Supported database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

const storiesTable = "stories"

var storyColumns = []string{
	"id",
	"source_document_id",
	"title",
	"confidence",
	"payload",
	"notification",
	"deployed_issue_key",
	"deployed_issue_url",
	"created_at",
}

// StoryRepository persists extracted stories in SQLite or Postgres. Narrative fields
// are kept as a JSON payload; notification and deployment state have their own columns.
type StoryRepository struct {
	db *sql.DB
	sb sq.StatementBuilderType
}

var _ ports.StoryRepository = (*StoryRepository)(nil)

// Open connects to the configured database and applies migrations.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*StoryRepository, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, fmt.Errorf("%w: database dsn is required", domain.ErrConfiguration)
	}

	var placeholder sq.PlaceholderFormat
	switch driver {
	case DriverSQLite:
		placeholder = sq.Question
		if !strings.HasPrefix(dsn, "file:") && dsn != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
				return nil, fmt.Errorf("create sqlite dir: %w", err)
			}
		}
	case DriverPostgres:
		placeholder = sq.Dollar
	default:
		return nil, fmt.Errorf("%w: unsupported database driver %q", domain.ErrConfiguration, cfg.Driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		// SQLite serializes writers; one connection avoids SQLITE_BUSY between pool members.
		db.SetMaxOpenConns(1)
	}

	repo := NewStoryRepository(db, placeholder)
	if err := repo.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// NewStoryRepository wires an already opened database.
func NewStoryRepository(db *sql.DB, placeholder sq.PlaceholderFormat) *StoryRepository {
	return &StoryRepository{
		db: db,
		sb: sq.StatementBuilder.PlaceholderFormat(placeholder),
	}
}

// Close closes the underlying database.
func (r *StoryRepository) Close() error {
	return r.db.Close()
}

func (r *StoryRepository) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS stories (
			id TEXT PRIMARY KEY,
			source_document_id TEXT NOT NULL,
			title TEXT NOT NULL DEFAULT '',
			confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
			payload TEXT NOT NULL,
			notification TEXT NOT NULL DEFAULT '',
			deployed_issue_key TEXT NOT NULL DEFAULT '',
			deployed_issue_url TEXT NOT NULL DEFAULT '',
			created_at BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_stories_document ON stories(source_document_id)`,
		`CREATE INDEX IF NOT EXISTS idx_stories_created ON stories(created_at)`,
	}
	for _, stmt := range stmts {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate stories: %w", err)
		}
	}
	return nil
}

// SaveStories upserts stories in one transaction. Rows that already carry an issue key
// are left untouched.
func (r *StoryRepository) SaveStories(ctx context.Context, stories []domain.Story) error {
	if len(stories) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, story := range stories {
		if story.ID == "" {
			return fmt.Errorf("%w: story without id", domain.ErrValidation)
		}
		payload, notification, err := encodeStory(story)
		if err != nil {
			return err
		}

		query, args, err := r.sb.Insert(storiesTable).
			Columns(storyColumns...).
			Values(
				story.ID,
				story.SourceDocumentID,
				story.Title,
				story.Confidence,
				payload,
				notification,
				story.DeployedIssueKey,
				story.DeployedIssueURL,
				createdAt(story),
			).
			Suffix(`ON CONFLICT (id) DO UPDATE SET
				title = EXCLUDED.title,
				confidence = EXCLUDED.confidence,
				payload = EXCLUDED.payload,
				notification = EXCLUDED.notification
				WHERE stories.deployed_issue_key = ''`).
			ToSql()
		if err != nil {
			return fmt.Errorf("build insert: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("upsert story %s: %w", story.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// GetStory loads one story by ID.
func (r *StoryRepository) GetStory(ctx context.Context, id string) (domain.Story, error) {
	query, args, err := r.sb.Select(storyColumns...).
		From(storiesTable).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return domain.Story{}, fmt.Errorf("build select: %w", err)
	}

	story, err := scanStory(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Story{}, fmt.Errorf("%w: story %s", domain.ErrNotFound, id)
	}
	if err != nil {
		return domain.Story{}, fmt.Errorf("get story %s: %w", id, err)
	}
	return story, nil
}

// ListStories returns the newest stories first.
func (r *StoryRepository) ListStories(ctx context.Context, limit int) ([]domain.Story, error) {
	if limit <= 0 {
		limit = 100
	}
	query, args, err := r.sb.Select(storyColumns...).
		From(storiesTable).
		OrderBy("created_at DESC", "id ASC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query stories: %w", err)
	}
	defer rows.Close()

	var stories []domain.Story
	for rows.Next() {
		story, err := scanStory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan story: %w", err)
		}
		stories = append(stories, story)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return stories, nil
}

// UpdateNotification records the latest delivery outcome for a story.
func (r *StoryRepository) UpdateNotification(ctx context.Context, id string, result domain.NotificationResult) error {
	encoded, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	query, args, err := r.sb.Update(storiesTable).
		Set("notification", string(encoded)).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update notification %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: story %s", domain.ErrNotFound, id)
	}
	return nil
}

// MarkDeployed stores the issue a story was deployed to. A story is deployed at most once.
func (r *StoryRepository) MarkDeployed(ctx context.Context, id, issueKey, issueURL string) error {
	query, args, err := r.sb.Update(storiesTable).
		Set("deployed_issue_key", issueKey).
		Set("deployed_issue_url", issueURL).
		Where(sq.Eq{"id": id, "deployed_issue_key": ""}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("mark deployed %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark deployed %s: %w", id, err)
	}
	if n > 0 {
		return nil
	}

	if _, err := r.GetStory(ctx, id); err != nil {
		return err
	}
	return fmt.Errorf("%w: story %s", domain.ErrAlreadyDeployed, id)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStory(row rowScanner) (domain.Story, error) {
	var (
		id, documentID, title string
		confidence            float64
		payload, notification string
		issueKey, issueURL    string
		created               int64
	)
	if err := row.Scan(&id, &documentID, &title, &confidence, &payload, &notification, &issueKey, &issueURL, &created); err != nil {
		return domain.Story{}, err
	}

	var story domain.Story
	if err := json.Unmarshal([]byte(payload), &story); err != nil {
		return domain.Story{}, fmt.Errorf("decode payload of %s: %w", id, err)
	}
	story.ID = id
	story.SourceDocumentID = documentID
	story.Title = title
	story.Confidence = confidence
	story.DeployedIssueKey = issueKey
	story.DeployedIssueURL = issueURL
	story.NotificationStatus = nil

	if notification != "" {
		var result domain.NotificationResult
		if err := json.Unmarshal([]byte(notification), &result); err != nil {
			return domain.Story{}, fmt.Errorf("decode notification of %s: %w", id, err)
		}
		story.NotificationStatus = &result
	}
	return story, nil
}

func encodeStory(story domain.Story) (payload, notification string, err error) {
	if story.NotificationStatus != nil {
		b, err := json.Marshal(story.NotificationStatus)
		if err != nil {
			return "", "", fmt.Errorf("marshal notification: %w", err)
		}
		notification = string(b)
	}

	story.NotificationStatus = nil
	story.DeployedIssueKey = ""
	story.DeployedIssueURL = ""
	b, err := json.Marshal(story)
	if err != nil {
		return "", "", fmt.Errorf("marshal story: %w", err)
	}
	return string(b), notification, nil
}

func createdAt(story domain.Story) int64 {
	if story.SourceTimestamp.IsZero() {
		return time.Now().UTC().UnixNano()
	}
	return story.SourceTimestamp.UTC().UnixNano()
}
