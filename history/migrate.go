package history

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratemysql "github.com/golang-migrate/migrate/v4/database/mysql"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"gorm.io/gorm"
)

//go:embed migrations/postgres/*.sql
var postgresFS embed.FS

//go:embed migrations/mysql/*.sql
var mysqlFS embed.FS

// applyMigrations 应用版本化 Schema 迁移。
// sqlite 走 AutoMigrate：migrate 的 sqlite 驱动与 glebarez
// 注册同名 database/sql 驱动，二者不能共存于一个二进制。
func applyMigrations(db *gorm.DB, driver string) error {
	if driver == "sqlite" {
		return db.AutoMigrate(&StrategyRecord{})
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("unwrap sql.DB: %w", err)
	}

	var (
		dbDriver database.Driver
		fsys     embed.FS
		path     string
	)
	switch driver {
	case "postgres":
		dbDriver, err = migratepg.WithInstance(sqlDB, &migratepg.Config{})
		fsys, path = postgresFS, "migrations/postgres"
	case "mysql":
		dbDriver, err = migratemysql.WithInstance(sqlDB, &migratemysql.Config{})
		fsys, path = mysqlFS, "migrations/mysql"
	default:
		return fmt.Errorf("unsupported migration driver %q", driver)
	}
	if err != nil {
		return fmt.Errorf("create database driver: %w", err)
	}

	sourceDriver, err := iofs.New(fsys, path)
	if err != nil {
		return fmt.Errorf("create source driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, driver, dbDriver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}
