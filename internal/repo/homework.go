package repo

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"slices"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/BuzzLyutic/homework-sync/internal/model"
	"github.com/BuzzLyutic/homework-sync/internal/store"
)

// ChangesChannel - канал NOTIFY, payload - namespace
const ChangesChannel = "homework_changes"

var ErrorConflict = errors.New("conflict")

//go:embed migrations/*.up.sql
var migrations embed.FS

// HomeworkRepo - общий бэкенд поверх PostgreSQL, реализует store.Backend
type HomeworkRepo struct {
	pool *pgxpool.Pool
}

func NewHomeworkRepo(pool *pgxpool.Pool) *HomeworkRepo { // Конструктор
	return &HomeworkRepo{
		pool: pool,
	}
}

// Migrate применяет встроенные миграции по порядку имен файлов
func (r *HomeworkRepo) Migrate(ctx context.Context) error {
	names, err := fs.Glob(migrations, "migrations/*.up.sql")
	if err != nil {
		return err
	}
	slices.Sort(names)

	for _, name := range names {
		sql, err := migrations.ReadFile(name)
		if err != nil {
			return err
		}
		if _, err := r.pool.Exec(ctx, string(sql)); err != nil {
			return fmt.Errorf("migration %s: %w", name, err)
		}
	}
	return nil
}

func (r *HomeworkRepo) Insert(ctx context.Context, namespace string, t model.Task) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO homework (id, namespace, text, due_date, completed)
		VALUES ($1, $2, $3, $4, $5)
	`, t.ID, namespace, t.Text, toPgDate(t.DueDate), t.Completed)
	return r.mapError(err)
}

func (r *HomeworkRepo) SetCompleted(ctx context.Context, namespace, id string, completed bool) error {
	cmd, err := r.pool.Exec(ctx, `
		UPDATE homework
		SET completed = $3, updated_at = now()
		WHERE namespace = $1 AND id = $2
	`, namespace, id, completed)
	if err != nil {
		return r.mapError(err)
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("homework %s: %w", id, store.ErrNotFound)
	}
	return nil
}

// Delete идемпотентен: отсутствие строки не ошибка
func (r *HomeworkRepo) Delete(ctx context.Context, namespace, id string) error {
	_, err := r.pool.Exec(ctx, "DELETE FROM homework WHERE namespace = $1 AND id = $2", namespace, id)
	if err = r.mapError(err); errors.Is(err, store.ErrNotFound) {
		return nil
	}
	return err
}

func (r *HomeworkRepo) List(ctx context.Context, namespace string) ([]model.Task, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, text, due_date, completed, seq
		FROM homework
		WHERE namespace = $1
		ORDER BY seq
	`, namespace)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tasks := make([]model.Task, 0)
	for rows.Next() {
		var (
			t   model.Task
			due pgtype.Date
		)
		if err := rows.Scan(&t.ID, &t.Text, &due, &t.Completed, &t.Seq); err != nil {
			return nil, err
		}
		t.DueDate = fromPgDate(due)
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// Listen держит отдельное соединение с LISTEN и вызывает changed на каждое
// уведомление своего namespace. Первый вызов changed - сразу после LISTEN,
// чтобы не потерять изменения, сделанные до подписки.
func (r *HomeworkRepo) Listen(ctx context.Context, namespace string, changed func()) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if !conn.Conn().IsClosed() {
			unlistenCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			conn.Exec(unlistenCtx, "UNLISTEN "+ChangesChannel)
			cancel()
		}
		conn.Release()
	}()

	if _, err := conn.Exec(ctx, "LISTEN "+ChangesChannel); err != nil {
		return err
	}
	changed()

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if n.Payload == namespace {
			changed()
		}
	}
}

func (r *HomeworkRepo) mapError(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return ErrorConflict
		case "23514": // check_violation
			return store.ErrValidation
		case "22P02": // битый uuid: такой записи быть не может
			return store.ErrNotFound
		}
	}
	return err
}

func toPgDate(d model.Date) pgtype.Date {
	if d.IsZero() {
		return pgtype.Date{}
	}
	return pgtype.Date{Time: d.Time(), Valid: true}
}

func fromPgDate(d pgtype.Date) model.Date {
	if !d.Valid {
		return model.Date{}
	}
	return model.DateOf(d.Time)
}
