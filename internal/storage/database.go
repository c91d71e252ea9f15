package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/conorfennell/flashback/internal/domain"
	"github.com/conorfennell/flashback/internal/ordering"
	_ "github.com/mattn/go-sqlite3" // Registers the "sqlite3" (cgo) driver
	_ "modernc.org/sqlite"          // Registers the "sqlite" driver
)

// Supported database/sql driver names.
const (
	DriverModernc = "sqlite"
	DriverCgo     = "sqlite3"
)

// DB represents a wrapper around the SQL database connection.
type DB struct {
	conn *sql.DB
}

// Open creates a new database connection and ensures the schema is up to date.
func Open(driver, dsn string) (*DB, error) {
	if driver == "" {
		driver = DriverModernc
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite serializes writers anyway; one connection keeps pragmas applied.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	// Execute the schema to create tables if they don't exist.
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &DB{conn: db}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// SaveCategory inserts or updates a category and returns its ID.
func (db *DB) SaveCategory(ctx context.Context, c domain.Category) (int64, error) {
	if c.ID == 0 {
		res, err := db.conn.ExecContext(ctx, `
			INSERT INTO categories (name, active) VALUES (?, ?)
		`, c.Name, c.Active)
		if err != nil {
			return 0, fmt.Errorf("failed to insert category %s: %w", c.Name, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return 0, fmt.Errorf("failed to get last insert ID for category %s: %w", c.Name, err)
		}
		return id, nil
	}

	res, err := db.conn.ExecContext(ctx, `
		UPDATE categories SET name = ?, active = ? WHERE id = ?
	`, c.Name, c.Active, c.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to update category %d: %w", c.ID, err)
	}
	if err := expectRow(res, "category", c.ID); err != nil {
		return 0, err
	}
	return c.ID, nil
}

// ReadCategory retrieves a category by its ID.
func (db *DB) ReadCategory(ctx context.Context, id int64) (domain.Category, error) {
	var c domain.Category
	err := db.conn.QueryRowContext(ctx, `
		SELECT id, name, active FROM categories WHERE id = ?
	`, id).Scan(&c.ID, &c.Name, &c.Active)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c, fmt.Errorf("%w: category %d", domain.ErrNotFound, id)
		}
		return c, fmt.Errorf("failed to read category %d: %w", id, err)
	}
	return c, nil
}

// FindCategoryByName retrieves a category by its unique name.
func (db *DB) FindCategoryByName(ctx context.Context, name string) (domain.Category, error) {
	var c domain.Category
	err := db.conn.QueryRowContext(ctx, `
		SELECT id, name, active FROM categories WHERE name = ?
	`, name).Scan(&c.ID, &c.Name, &c.Active)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c, fmt.Errorf("%w: category %q", domain.ErrNotFound, name)
		}
		return c, fmt.Errorf("failed to find category %q: %w", name, err)
	}
	return c, nil
}

// ListCategories retrieves all categories ordered by name.
func (db *DB) ListCategories(ctx context.Context) ([]domain.Category, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, name, active FROM categories ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	var categories []domain.Category
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Active); err != nil {
			return nil, fmt.Errorf("failed to scan category row: %w", err)
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// SetCategoryActive toggles whether a category's questions are studied.
func (db *DB) SetCategoryActive(ctx context.Context, id int64, active bool) error {
	res, err := db.conn.ExecContext(ctx, `
		UPDATE categories SET active = ? WHERE id = ?
	`, active, id)
	if err != nil {
		return fmt.Errorf("failed to update category %d: %w", id, err)
	}
	return expectRow(res, "category", id)
}

const selectQuestion = `
	SELECT q.id, q.category_id, q.title, q.answer, q.hash, q.ord,
	       q.last_asked_on, q.next_due_on, q.previous_interval, q.interval,
	       q.ask_count, q.streak, q.response_quality, q.easiness_factor,
	       c.id, c.name, c.active
	FROM questions q JOIN categories c ON c.id = q.category_id
`

type scanner interface {
	Scan(dest ...any) error
}

func scanQuestion(s scanner) (domain.Question, error) {
	var (
		q         domain.Question
		hash      sql.NullString
		lastAsked sql.NullTime
		nextDue   sql.NullTime
	)
	err := s.Scan(
		&q.ID, &q.CategoryID, &q.Title, &q.Answer, &hash, &q.Order,
		&lastAsked, &nextDue, &q.PreviousInterval, &q.Interval,
		&q.AskCount, &q.Streak, &q.ResponseQuality, &q.EasinessFactor,
		&q.Category.ID, &q.Category.Name, &q.Category.Active,
	)
	if err != nil {
		return q, err
	}
	q.Hash = hash.String
	q.LastAskedOn = fromNullTime(lastAsked)
	q.NextDueOn = fromNullTime(nextDue)
	return q, nil
}

func queryQuestions(ctx context.Context, qr queryer, where string, args ...any) ([]domain.Question, error) {
	rows, err := qr.QueryContext(ctx, selectQuestion+where, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var questions []domain.Question
	for rows.Next() {
		question, err := scanQuestion(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan question row: %w", err)
		}
		questions = append(questions, question)
	}
	return questions, rows.Err()
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// SaveQuestion inserts a question when its ID is zero and updates it
// otherwise. It returns the question's ID.
func (db *DB) SaveQuestion(ctx context.Context, q domain.Question) (int64, error) {
	args := []any{
		q.CategoryID, q.Title, q.Answer, nullString(q.Hash), q.Order,
		toNullTime(q.LastAskedOn), toNullTime(q.NextDueOn), q.PreviousInterval, q.Interval,
		q.AskCount, q.Streak, int(q.ResponseQuality), q.EasinessFactor,
	}

	if q.ID == 0 {
		res, err := db.conn.ExecContext(ctx, `
			INSERT INTO questions (category_id, title, answer, hash, ord,
				last_asked_on, next_due_on, previous_interval, interval,
				ask_count, streak, response_quality, easiness_factor)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, args...)
		if err != nil {
			return 0, fmt.Errorf("failed to insert question %q: %w", q.Title, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return 0, fmt.Errorf("failed to get last insert ID for question %q: %w", q.Title, err)
		}
		return id, nil
	}

	res, err := db.conn.ExecContext(ctx, `
		UPDATE questions
		SET category_id = ?, title = ?, answer = ?, hash = ?, ord = ?,
			last_asked_on = ?, next_due_on = ?, previous_interval = ?, interval = ?,
			ask_count = ?, streak = ?, response_quality = ?, easiness_factor = ?
		WHERE id = ?
	`, append(args, q.ID)...)
	if err != nil {
		return 0, fmt.Errorf("failed to update question %d: %w", q.ID, err)
	}
	if err := expectRow(res, "question", q.ID); err != nil {
		return 0, err
	}
	return q.ID, nil
}

// SaveSchedule writes the scheduling columns of q and nothing else, so a
// review cannot overwrite a concurrent change to the question's order.
func (db *DB) SaveSchedule(ctx context.Context, q domain.Question) error {
	res, err := db.conn.ExecContext(ctx, `
		UPDATE questions
		SET last_asked_on = ?, next_due_on = ?, previous_interval = ?, interval = ?,
			ask_count = ?, streak = ?, response_quality = ?, easiness_factor = ?
		WHERE id = ?
	`, toNullTime(q.LastAskedOn), toNullTime(q.NextDueOn), q.PreviousInterval, q.Interval,
		q.AskCount, q.Streak, int(q.ResponseQuality), q.EasinessFactor, q.ID)
	if err != nil {
		return fmt.Errorf("failed to save schedule for question %d: %w", q.ID, err)
	}
	return expectRow(res, "question", q.ID)
}

// AppendQuestion inserts q after the last question of its category. The
// order is computed by the insert itself.
func (db *DB) AppendQuestion(ctx context.Context, q domain.Question) (domain.Question, error) {
	err := db.conn.QueryRowContext(ctx, `
		INSERT INTO questions (category_id, title, answer, hash, ord,
			last_asked_on, next_due_on, previous_interval, interval,
			ask_count, streak, response_quality, easiness_factor)
		VALUES (?, ?, ?, ?,
			(SELECT COALESCE(MAX(ord) + 1, 0) FROM questions WHERE category_id = ?),
			?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id, ord
	`, q.CategoryID, q.Title, q.Answer, nullString(q.Hash), q.CategoryID,
		toNullTime(q.LastAskedOn), toNullTime(q.NextDueOn), q.PreviousInterval, q.Interval,
		q.AskCount, q.Streak, int(q.ResponseQuality), q.EasinessFactor,
	).Scan(&q.ID, &q.Order)
	if err != nil {
		return q, fmt.Errorf("failed to append question %q: %w", q.Title, err)
	}
	return q, nil
}

// ReadQuestion retrieves a question by its ID.
func (db *DB) ReadQuestion(ctx context.Context, id int64) (domain.Question, error) {
	row := db.conn.QueryRowContext(ctx, selectQuestion+" WHERE q.id = ?", id)
	q, err := scanQuestion(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return q, fmt.Errorf("%w: question %d", domain.ErrNotFound, id)
		}
		return q, fmt.Errorf("failed to read question %d: %w", id, err)
	}
	return q, nil
}

// FindQuestionByHash retrieves an imported question by its content hash.
func (db *DB) FindQuestionByHash(ctx context.Context, hash string) (domain.Question, error) {
	row := db.conn.QueryRowContext(ctx, selectQuestion+" WHERE q.hash = ?", hash)
	q, err := scanQuestion(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return q, fmt.Errorf("%w: question with hash %s", domain.ErrNotFound, hash)
		}
		return q, fmt.Errorf("failed to find question by hash %s: %w", hash, err)
	}
	return q, nil
}

// ListQuestions retrieves every question.
func (db *DB) ListQuestions(ctx context.Context) ([]domain.Question, error) {
	qs, err := queryQuestions(ctx, db.conn, " ORDER BY q.category_id, q.ord, q.id")
	if err != nil {
		return nil, fmt.Errorf("failed to list questions: %w", err)
	}
	return qs, nil
}

// QuestionsForCategory retrieves a category's questions sorted by order.
func (db *DB) QuestionsForCategory(ctx context.Context, categoryID int64) ([]domain.Question, error) {
	qs, err := queryQuestions(ctx, db.conn, " WHERE q.category_id = ? ORDER BY q.ord, q.id", categoryID)
	if err != nil {
		return nil, fmt.Errorf("failed to get questions for category %d: %w", categoryID, err)
	}
	return qs, nil
}

// MoveQuestion moves q to newIndex within its category and renumbers the
// category's order in a single transaction.
func (db *DB) MoveQuestion(ctx context.Context, q domain.Question, newIndex int) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin move of question %d: %w", q.ID, err)
	}
	defer tx.Rollback()

	qs, err := queryQuestions(ctx, tx, " WHERE q.category_id = ? ORDER BY q.ord, q.id", q.CategoryID)
	if err != nil {
		return fmt.Errorf("failed to load category %d for move: %w", q.CategoryID, err)
	}

	seq := ordering.NewSequence(qs)
	from := seq.Index(q.ID)
	if from < 0 {
		return fmt.Errorf("%w: question %d in category %d", domain.ErrNotFound, q.ID, q.CategoryID)
	}
	if err := seq.Move(from, newIndex); err != nil {
		return err
	}

	if err := updateOrder(ctx, tx, seq.Changed()); err != nil {
		return err
	}
	return tx.Commit()
}

// SaveOrder writes the Order field of each question in one transaction.
func (db *DB) SaveOrder(ctx context.Context, qs []domain.Question) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin order update: %w", err)
	}
	defer tx.Rollback()

	if err := updateOrder(ctx, tx, qs); err != nil {
		return err
	}
	return tx.Commit()
}

func updateOrder(ctx context.Context, tx *sql.Tx, qs []domain.Question) error {
	for _, q := range qs {
		res, err := tx.ExecContext(ctx, `UPDATE questions SET ord = ? WHERE id = ?`, q.Order, q.ID)
		if err != nil {
			return fmt.Errorf("failed to update order for question %d: %w", q.ID, err)
		}
		if err := expectRow(res, "question", q.ID); err != nil {
			return err
		}
	}
	return nil
}

// DeleteQuestion removes a question from the database by its ID.
func (db *DB) DeleteQuestion(ctx context.Context, id int64) error {
	res, err := db.conn.ExecContext(ctx, `
		DELETE FROM questions
		WHERE id = ?
	`, id)
	if err != nil {
		return fmt.Errorf("failed to delete question %d: %w", id, err)
	}
	return expectRow(res, "question", id)
}

func expectRow(res sql.Result, kind string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for %s %d: %w", kind, id, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s %d", domain.ErrNotFound, kind, id)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// Zero times are the "never" sentinel and are stored as NULL.
func toNullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t.UTC(), Valid: !t.IsZero()}
}

func fromNullTime(nt sql.NullTime) time.Time {
	if !nt.Valid {
		return time.Time{}
	}
	return nt.Time
}
