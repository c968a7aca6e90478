package cookiestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"mealassist-backend/internal/components/assert"
)

// Storage holds the single durable record of a Store. Read returns ErrNotFound
// when no record exists, Delete does not fail on a missing record.
type Storage interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, data []byte) error
	Delete(ctx context.Context) error
}

// FileStorage keeps the record as a single file on disk.
type FileStorage struct {
	Path string
}

func NewFileStorage(stateDir string) FileStorage {
	return FileStorage{Path: filepath.Join(stateDir, "cookies.json")}
}

func (f FileStorage) Read(ctx context.Context) ([]byte, error) {
	data, err := os.ReadFile(f.Path)
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	return data, err
}

// Write replaces the file atomically through a rename.
func (f FileStorage) Write(ctx context.Context, data []byte) error {
	dir := filepath.Dir(f.Path)
	err := os.MkdirAll(dir, 0700)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".cookies-*.json")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	_, err = tmp.Write(data)
	if err != nil {
		tmp.Close()
		return err
	}
	err = tmp.Close()
	if err != nil {
		return err
	}
	return os.Rename(tmp.Name(), f.Path)
}

func (f FileStorage) Delete(ctx context.Context) error {
	err := os.Remove(f.Path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

const Schema = `
create table if not exists cookie_jar (
	id text primary key,
	contents blob not null,
	updated_at integer not null
);
`

// SQLStorage keeps the record as one row of the cookie_jar table, it works
// against both sqlite and libsql handles.
type SQLStorage struct {
	db *sql.DB
	id string
}

// NewSQLStorage creates the schema if needed. id selects the row, so one
// database may hold the records of several accounts.
func NewSQLStorage(ctx context.Context, db *sql.DB, id string) (SQLStorage, error) {
	assert.NotNil(db, "db")
	assert.NotEmptyStr(id, "storage id")

	_, err := db.ExecContext(ctx, Schema)
	if err != nil {
		return SQLStorage{}, fmt.Errorf("create cookie_jar schema: %w", err)
	}
	return SQLStorage{db: db, id: id}, nil
}

func (s SQLStorage) Read(ctx context.Context) ([]byte, error) {
	var contents []byte
	err := s.db.QueryRowContext(
		ctx,
		"select contents from cookie_jar where id = ?",
		s.id,
	).Scan(&contents)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return contents, err
}

func (s SQLStorage) Write(ctx context.Context, data []byte) error {
	_, err := s.db.ExecContext(
		ctx,
		`insert into cookie_jar (id, contents, updated_at) values (?, ?, ?)
		on conflict (id) do update set contents = excluded.contents, updated_at = excluded.updated_at`,
		s.id, data, time.Now().Unix(),
	)
	return err
}

func (s SQLStorage) Delete(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "delete from cookie_jar where id = ?", s.id)
	return err
}

type nopStorage struct{}

func (nopStorage) Read(context.Context) ([]byte, error) { return nil, ErrNotFound }
func (nopStorage) Write(context.Context, []byte) error  { return nil }
func (nopStorage) Delete(context.Context) error         { return nil }
