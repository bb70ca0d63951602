package database

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrDirtySchema は前回のマイグレーションが途中で失敗し、手動修復が必要な状態を示す。
var ErrDirtySchema = errors.New("database schema is dirty")

// MigrationStatus はusers/postsスキーマの適用状況。
type MigrationStatus struct {
	// Version は適用済みの最新バージョン。未適用なら0。
	Version uint
	// Latest はバイナリに埋め込まれた最新バージョン。
	Latest uint
	Dirty  bool
}

// Pending は未適用のマイグレーションが残っているかどうかを返す。
func (s MigrationStatus) Pending() bool {
	return s.Version < s.Latest
}

func newSource() (source.Driver, error) {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}
	return src, nil
}

// LatestVersion は埋め込みマイグレーションの最終バージョンを返す。DBには接続しない。
func LatestVersion() (uint, error) {
	src, err := newSource()
	if err != nil {
		return 0, err
	}
	defer src.Close()

	v, err := src.First()
	if err != nil {
		return 0, fmt.Errorf("no embedded migrations: %w", err)
	}
	for {
		next, err := src.Next(v)
		if errors.Is(err, fs.ErrNotExist) {
			return v, nil
		}
		if err != nil {
			return 0, fmt.Errorf("failed to walk embedded migrations: %w", err)
		}
		v = next
	}
}

// NewMigrator は埋め込みマイグレーションとdatabaseURLのPostgreSQLを結ぶmigrateインスタンスを生成する。
func NewMigrator(databaseURL string) (*migrate.Migrate, error) {
	src, err := newSource()
	if err != nil {
		return nil, err
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrator: %w", err)
	}
	return m, nil
}

func readStatus(m *migrate.Migrate) (MigrationStatus, error) {
	latest, err := LatestVersion()
	if err != nil {
		return MigrationStatus{}, err
	}

	v, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return MigrationStatus{Latest: latest}, nil
	}
	if err != nil {
		return MigrationStatus{}, fmt.Errorf("failed to read schema version: %w", err)
	}
	return MigrationStatus{Version: v, Latest: latest, Dirty: dirty}, nil
}

// Status は現在のスキーマバージョンを返す。スキーマは変更しない。
func Status(databaseURL string) (MigrationStatus, error) {
	m, err := NewMigrator(databaseURL)
	if err != nil {
		return MigrationStatus{}, err
	}
	defer m.Close()

	return readStatus(m)
}

// MigrateUp は未適用のマイグレーションをすべて適用し、適用前後の状態を返す。
// dirtyなスキーマには手を加えずErrDirtySchemaを返す。最新であればそのまま成功とする。
func MigrateUp(databaseURL string) (before, after MigrationStatus, err error) {
	m, err := NewMigrator(databaseURL)
	if err != nil {
		return before, after, err
	}
	defer m.Close()

	before, err = readStatus(m)
	if err != nil {
		return before, after, err
	}
	if before.Dirty {
		return before, before, fmt.Errorf("%w at version %d", ErrDirtySchema, before.Version)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return before, after, fmt.Errorf("failed to run migrations: %w", err)
	}

	after, err = readStatus(m)
	return before, after, err
}
