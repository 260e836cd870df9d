package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"linkrewards/internal/models"
	"linkrewards/internal/storage"
)

const uniqueViolation = "23505"

// Schema creates the tables the service expects. Hosted deployments usually
// manage it themselves; Migrate is provided for local databases.
const Schema = `
CREATE TABLE IF NOT EXISTS tasks (
	id BIGSERIAL PRIMARY KEY,
	title TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	image_url TEXT NOT NULL DEFAULT '',
	points BIGINT NOT NULL DEFAULT 0,
	link TEXT NOT NULL DEFAULT '',
	conditions TEXT[] NOT NULL DEFAULT '{}',
	section TEXT NOT NULL DEFAULT '',
	sort_order BIGINT NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS users (
	id UUID PRIMARY KEY,
	username TEXT NOT NULL UNIQUE,
	points BIGINT NOT NULL DEFAULT 0,
	completed_tasks BIGINT[] NOT NULL DEFAULT '{}'
);
CREATE TABLE IF NOT EXISTS credentials (
	user_id UUID PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
	password_hash TEXT NOT NULL
);`

// Store implements storage.Store on PostgreSQL.
type Store struct {
	db *sql.DB
}

var _ storage.Store = (*Store)(nil)

// New wraps an existing connection pool.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Open connects using a lib/pq DSN and verifies the connection.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return New(db), nil
}

// Migrate applies Schema.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ListTasks(ctx context.Context) ([]models.Task, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, title, description, image_url, points, link, conditions, section, sort_order FROM tasks ORDER BY sort_order ASC")
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	tasks := []models.Task{}
	for rows.Next() {
		var t models.Task
		if err := rows.Scan(&t.ID, &t.Title, &t.Description, &t.ImageURL, &t.Points, &t.Link,
			pq.Array(&t.Conditions), &t.Section, &t.SortOrder); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		if t.Conditions == nil {
			t.Conditions = []string{}
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (s *Store) UpsertTask(ctx context.Context, t models.Task) (models.Task, error) {
	if strings.TrimSpace(t.Title) == "" {
		return models.Task{}, fmt.Errorf("task title must not be empty")
	}
	if t.Conditions == nil {
		t.Conditions = []string{}
	}
	t.Title = strings.TrimSpace(t.Title)

	if t.ID == 0 {
		err := s.db.QueryRowContext(ctx, `
			INSERT INTO tasks (title, description, image_url, points, link, conditions, section, sort_order)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`,
			t.Title, t.Description, t.ImageURL, t.Points, t.Link, pq.Array(t.Conditions), t.Section, t.SortOrder).Scan(&t.ID)
		if err != nil {
			return models.Task{}, fmt.Errorf("insert task: %w", err)
		}
		return t, nil
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tasks (id, title, description, image_url, points, link, conditions, section, sort_order)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			image_url = EXCLUDED.image_url,
			points = EXCLUDED.points,
			link = EXCLUDED.link,
			conditions = EXCLUDED.conditions,
			section = EXCLUDED.section,
			sort_order = EXCLUDED.sort_order`,
		t.ID, t.Title, t.Description, t.ImageURL, t.Points, t.Link, pq.Array(t.Conditions), t.Section, t.SortOrder)
	if err != nil {
		return models.Task{}, fmt.Errorf("upsert task: %w", err)
	}
	return t, nil
}

func (s *Store) CreateUser(ctx context.Context, username, passwordHash string) (models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return models.User{}, fmt.Errorf("username must not be empty")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.User{}, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	u := models.User{ID: uuid.NewString(), Username: username, CompletedTasks: []int64{}}
	if _, err := tx.ExecContext(ctx, "INSERT INTO users (id, username) VALUES ($1, $2)", u.ID, u.Username); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return models.User{}, storage.ErrUsernameTaken
		}
		return models.User{}, fmt.Errorf("insert user: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO credentials (user_id, password_hash) VALUES ($1, $2)", u.ID, passwordHash); err != nil {
		return models.User{}, fmt.Errorf("insert credentials: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return models.User{}, fmt.Errorf("commit: %w", err)
	}
	return u, nil
}

func (s *Store) GetUser(ctx context.Context, id string) (models.User, error) {
	var u models.User
	err := s.db.QueryRowContext(ctx, "SELECT id, username, points, completed_tasks FROM users WHERE id = $1", id).
		Scan(&u.ID, &u.Username, &u.Points, pq.Array(&u.CompletedTasks))
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, storage.ErrUserNotFound
	}
	if err != nil {
		return models.User{}, fmt.Errorf("get user: %w", err)
	}
	if u.CompletedTasks == nil {
		u.CompletedTasks = []int64{}
	}
	return u, nil
}

func (s *Store) Credentials(ctx context.Context, username string) (string, string, error) {
	var id, hash string
	err := s.db.QueryRowContext(ctx,
		"SELECT u.id, c.password_hash FROM users u JOIN credentials c ON c.user_id = u.id WHERE u.username = $1",
		strings.TrimSpace(username)).Scan(&id, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", "", storage.ErrUserNotFound
	}
	if err != nil {
		return "", "", fmt.Errorf("get credentials: %w", err)
	}
	return id, hash, nil
}

// AwardTask is a single UPDATE so the increment and the append commit together.
func (s *Store) AwardTask(ctx context.Context, userID string, taskID, points int64) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE users SET points = points + $1, completed_tasks = array_append(completed_tasks, $2) WHERE id = $3",
		points, taskID, userID)
	if err != nil {
		return fmt.Errorf("award task: %w", err)
	}
	return expectOneRow(res, storage.ErrUserNotFound)
}

func (s *Store) SetPoints(ctx context.Context, userID string, points int64) error {
	res, err := s.db.ExecContext(ctx, "UPDATE users SET points = $1 WHERE id = $2", points, userID)
	if err != nil {
		return fmt.Errorf("set points: %w", err)
	}
	return expectOneRow(res, storage.ErrUserNotFound)
}

func (s *Store) SetPointsIfUnchanged(ctx context.Context, userID string, expected, points int64) error {
	res, err := s.db.ExecContext(ctx, "UPDATE users SET points = $1 WHERE id = $2 AND points = $3", points, userID, expected)
	if err != nil {
		return fmt.Errorf("set points: %w", err)
	}
	return expectOneRow(res, storage.ErrBalanceChanged)
}

func expectOneRow(res sql.Result, notFound error) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return notFound
	}
	return nil
}
