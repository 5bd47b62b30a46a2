package database

import (
	"database/sql"
	"embed"
	"errors"

	"github.com/golang-migrate/migrate/v4"
	migratedb "github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jimlawless/whereami"

	"monitor-precos/pkg/e"
	"monitor-precos/pkg/logger"
)

//go:embed migrations/sqlite3/*.sql migrations/postgres/*.sql
var migrationsFS embed.FS

// runMigrations aplica as migrações pendentes do diretório do driver
func runMigrations(dir, driverName string, driver migratedb.Driver, log logger.Logger) error {
	src, err := iofs.New(migrationsFS, dir)
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	m, err := migrate.NewWithInstance("iofs", src, driverName, driver)
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Debugf("Nenhuma migração pendente (%s)", driverName)
			return nil
		}
		return e.Wrap(whereami.WhereAmI(), err)
	}

	log.Infof("Migrações aplicadas com sucesso (%s)", driverName)
	return nil
}

// migrateSQLite aplica o schema na conexão SQLite. A conexão não é fechada aqui.
func migrateSQLite(conn *sql.DB, log logger.Logger) error {
	driver, err := sqlite3.WithInstance(conn, &sqlite3.Config{})
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}
	return runMigrations("migrations/sqlite3", "sqlite3", driver, log)
}

// migratePostgres abre uma conexão database/sql via pgx só para as migrações
func migratePostgres(dsn string, log logger.Logger) error {
	conn, err := sql.Open("pgx", dsn)
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}
	defer conn.Close()

	driver, err := postgres.WithInstance(conn, &postgres.Config{})
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}
	return runMigrations("migrations/postgres", "postgres", driver, log)
}
