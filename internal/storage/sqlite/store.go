package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"linkrewards/internal/models"
	"linkrewards/internal/storage"
)

// Store wraps access to the SQLite database and exposes high level helpers.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ storage.Store = (*Store)(nil)

// Open initializes a new SQLite store and runs the required migrations.
func Open(dbPath string, logger *slog.Logger) (*Store, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("empty database path")
	}

	if logger == nil {
		logger = slog.Default()
	}

	if err := ensureDir(dbPath); err != nil {
		return nil, err
	}

	conn, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=ON", dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	conn.SetMaxOpenConns(1)
	conn.SetConnMaxLifetime(0)

	s := &Store{db: conn, logger: logger}
	if err := s.migrate(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return s, nil
}

// Close releases the database resources.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func ensureDir(dbPath string) error {
	dir := filepath.Dir(dbPath)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS tasks (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            title TEXT NOT NULL,
            description TEXT NOT NULL DEFAULT '',
            image_url TEXT NOT NULL DEFAULT '',
            points INTEGER NOT NULL DEFAULT 0,
            link TEXT NOT NULL DEFAULT '',
            conditions TEXT NOT NULL DEFAULT '[]',
            section TEXT NOT NULL DEFAULT '',
            sort_order INTEGER NOT NULL DEFAULT 0
        );`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_sort ON tasks(sort_order);`,
		`CREATE TABLE IF NOT EXISTS users (
            id TEXT PRIMARY KEY,
            username TEXT NOT NULL UNIQUE,
            points INTEGER NOT NULL DEFAULT 0,
            completed_tasks TEXT NOT NULL DEFAULT '[]',
            created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
            updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
        );`,
		`CREATE TABLE IF NOT EXISTS credentials (
            user_id TEXT PRIMARY KEY,
            password_hash TEXT NOT NULL,
            FOREIGN KEY(user_id) REFERENCES users(id) ON DELETE CASCADE
        );`,
		`CREATE TRIGGER IF NOT EXISTS trg_users_updated
            AFTER UPDATE OF points, completed_tasks ON users
            FOR EACH ROW BEGIN
                UPDATE users SET updated_at = CURRENT_TIMESTAMP WHERE id = OLD.id;
            END;`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// ListTasks returns the whole catalog ordered by sort_order.
func (s *Store) ListTasks(ctx context.Context) ([]models.Task, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, title, description, image_url, points, link, conditions, section, sort_order
        FROM tasks ORDER BY sort_order ASC`)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	tasks := []models.Task{}
	for rows.Next() {
		var (
			t          models.Task
			conditions string
		)
		if err := rows.Scan(&t.ID, &t.Title, &t.Description, &t.ImageURL, &t.Points, &t.Link, &conditions, &t.Section, &t.SortOrder); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		if err := json.Unmarshal([]byte(conditions), &t.Conditions); err != nil {
			return nil, fmt.Errorf("decode conditions of task %d: %w", t.ID, err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// UpsertTask inserts a task, replacing the row when the id already exists.
// A zero id lets the database assign one.
func (s *Store) UpsertTask(ctx context.Context, t models.Task) (models.Task, error) {
	if strings.TrimSpace(t.Title) == "" {
		return models.Task{}, fmt.Errorf("task title must not be empty")
	}
	if t.Conditions == nil {
		t.Conditions = []string{}
	}
	conditions, err := json.Marshal(t.Conditions)
	if err != nil {
		return models.Task{}, fmt.Errorf("encode conditions: %w", err)
	}

	var id any
	if t.ID != 0 {
		id = t.ID
	}
	res, err := s.db.ExecContext(ctx, `INSERT INTO tasks(id, title, description, image_url, points, link, conditions, section, sort_order)
        VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET title = excluded.title, description = excluded.description,
            image_url = excluded.image_url, points = excluded.points, link = excluded.link,
            conditions = excluded.conditions, section = excluded.section, sort_order = excluded.sort_order`,
		id, strings.TrimSpace(t.Title), t.Description, t.ImageURL, t.Points, t.Link, string(conditions), t.Section, t.SortOrder)
	if err != nil {
		return models.Task{}, fmt.Errorf("upsert task: %w", err)
	}
	if t.ID == 0 {
		if t.ID, err = res.LastInsertId(); err != nil {
			return models.Task{}, fmt.Errorf("task id: %w", err)
		}
	}
	return t, nil
}

// CreateUser registers a users row together with its password hash.
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
	if _, err := tx.ExecContext(ctx, `INSERT INTO users(id, username) VALUES(?, ?)`, u.ID, u.Username); err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return models.User{}, storage.ErrUsernameTaken
		}
		return models.User{}, fmt.Errorf("insert user: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO credentials(user_id, password_hash) VALUES(?, ?)`, u.ID, passwordHash); err != nil {
		return models.User{}, fmt.Errorf("insert credentials: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return models.User{}, fmt.Errorf("commit: %w", err)
	}
	return u, nil
}

// GetUser fetches a single user by id.
func (s *Store) GetUser(ctx context.Context, id string) (models.User, error) {
	var (
		u         models.User
		completed string
	)
	err := s.db.QueryRowContext(ctx, `SELECT id, username, points, completed_tasks FROM users WHERE id = ?`, id).
		Scan(&u.ID, &u.Username, &u.Points, &completed)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, storage.ErrUserNotFound
	}
	if err != nil {
		return models.User{}, fmt.Errorf("get user: %w", err)
	}
	if err := json.Unmarshal([]byte(completed), &u.CompletedTasks); err != nil {
		return models.User{}, fmt.Errorf("decode completed tasks: %w", err)
	}
	return u, nil
}

// Credentials returns the user id and password hash registered for username.
func (s *Store) Credentials(ctx context.Context, username string) (string, string, error) {
	var id, hash string
	err := s.db.QueryRowContext(ctx, `SELECT u.id, c.password_hash FROM users u
        JOIN credentials c ON c.user_id = u.id WHERE u.username = ?`, strings.TrimSpace(username)).Scan(&id, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", "", storage.ErrUserNotFound
	}
	if err != nil {
		return "", "", fmt.Errorf("get credentials: %w", err)
	}
	return id, hash, nil
}

// AwardTask credits points and records the task in one UPDATE.
func (s *Store) AwardTask(ctx context.Context, userID string, taskID, points int64) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET points = points + ?,
            completed_tasks = json_insert(completed_tasks, '$[#]', ?)
        WHERE id = ?`, points, taskID, userID)
	if err != nil {
		return fmt.Errorf("award task: %w", err)
	}
	return expectOneRow(res, storage.ErrUserNotFound)
}

// SetPoints overwrites the point balance.
func (s *Store) SetPoints(ctx context.Context, userID string, points int64) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET points = ? WHERE id = ?`, points, userID)
	if err != nil {
		return fmt.Errorf("set points: %w", err)
	}
	return expectOneRow(res, storage.ErrUserNotFound)
}

// SetPointsIfUnchanged overwrites the balance only when it still equals expected.
func (s *Store) SetPointsIfUnchanged(ctx context.Context, userID string, expected, points int64) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET points = ? WHERE id = ? AND points = ?`, points, userID, expected)
	if err != nil {
		return fmt.Errorf("set points: %w", err)
	}
	if err := expectOneRow(res, storage.ErrBalanceChanged); err != nil {
		if _, getErr := s.GetUser(ctx, userID); errors.Is(getErr, storage.ErrUserNotFound) {
			return storage.ErrUserNotFound
		}
		return err
	}
	return nil
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
