package database

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"monitor-precos/internal/models"
	"monitor-precos/pkg/logger"
)

const productColumns = `id, platform, product_id, product_url, title, target_price, currency,
	current_price, last_checked_at, alert_sent, notify_email, targets,
	last_error, consecutive_errors, disabled, created_at, updated_at`

// DB encapsula a conexão com o banco SQLite
type DB struct {
	conn *sql.DB
	log  logger.Logger
	now  func() time.Time
}

// New abre o banco SQLite e aplica as migrações
func New(ctx context.Context, dbPath string, log logger.Logger) (*DB, error) {
	dsn := dbPath
	if !strings.Contains(dsn, "?") {
		dsn += "?_busy_timeout=5000"
	}

	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, persistErr(err)
	}
	// Uma única conexão serializa as escritas
	conn.SetMaxOpenConns(1)

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, persistErr(err)
	}

	if err := migrateSQLite(conn, log); err != nil {
		conn.Close()
		return nil, persistErr(err)
	}

	log.Infof("Banco de dados inicializado com sucesso: %s", dbPath)
	return &DB{conn: conn, log: log, now: time.Now}, nil
}

// Close fecha a conexão com o banco de dados
func (db *DB) Close(_ context.Context) error {
	return db.conn.Close()
}

// Ping verifica a conexão
func (db *DB) Ping(ctx context.Context) error {
	if err := db.conn.PingContext(ctx); err != nil {
		return persistErr(err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteProduct(row rowScanner) (*models.TrackedProduct, error) {
	var (
		p                    models.TrackedProduct
		platform             string
		currentPrice         sql.NullString
		lastChecked          sql.NullString
		targets              string
		createdAt, updatedAt string
	)

	err := row.Scan(
		&p.ID, &platform, &p.ProductID, &p.ProductURL, &p.Title, &p.TargetPrice, &p.Currency,
		&currentPrice, &lastChecked, &p.AlertSent, &p.NotifyEmail, &targets,
		&p.LastError, &p.ConsecutiveErrors, &p.Disabled, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.Platform = models.Platform(platform)

	if currentPrice.Valid {
		d, err := decimal.NewFromString(currentPrice.String)
		if err != nil {
			return nil, err
		}
		p.CurrentPrice = decimal.NewNullDecimal(d)
	}
	if lastChecked.Valid {
		t, err := parseTime(lastChecked.String)
		if err != nil {
			return nil, err
		}
		p.LastCheckedAt = &t
	}
	if p.Targets, err = decodeTargets(targets); err != nil {
		return nil, err
	}
	if p.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if p.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

// ListProducts retorna todos os produtos, inclusive os desativados
func (db *DB) ListProducts(ctx context.Context) ([]models.TrackedProduct, error) {
	return db.listProducts(ctx, "SELECT "+productColumns+" FROM tracked_products ORDER BY id")
}

// ListActiveProducts retorna os produtos que entram no ciclo
func (db *DB) ListActiveProducts(ctx context.Context) ([]models.TrackedProduct, error) {
	return db.listProducts(ctx, "SELECT "+productColumns+" FROM tracked_products WHERE disabled = 0 ORDER BY id")
}

func (db *DB) listProducts(ctx context.Context, query string) ([]models.TrackedProduct, error) {
	rows, err := db.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, persistErr(err)
	}
	defer rows.Close()

	var products []models.TrackedProduct
	for rows.Next() {
		p, err := scanSQLiteProduct(rows)
		if err != nil {
			return nil, persistErr(err)
		}
		products = append(products, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr(err)
	}
	return products, nil
}

// GetProduct busca um produto pelo ID
func (db *DB) GetProduct(ctx context.Context, id int64) (*models.TrackedProduct, error) {
	row := db.conn.QueryRowContext(ctx, "SELECT "+productColumns+" FROM tracked_products WHERE id = ?", id)
	p, err := scanSQLiteProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, persistErr(err)
	}
	return p, nil
}

// CreateProduct insere um novo produto e devolve o registro gravado
func (db *DB) CreateProduct(ctx context.Context, p *models.TrackedProduct) (*models.TrackedProduct, error) {
	targets, err := encodeTargets(p.Targets)
	if err != nil {
		return nil, persistErr(err)
	}
	now := formatTime(db.now())

	res, err := db.conn.ExecContext(ctx, `
		INSERT INTO tracked_products (
			platform, product_id, product_url, title, target_price, currency,
			alert_sent, notify_email, targets, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, 0, ?, ?, ?, ?)`,
		string(p.Platform), p.ProductID, p.ProductURL, p.Title, p.TargetPrice.String(), p.Currency,
		p.NotifyEmail, targets, now, now,
	)
	if err != nil {
		return nil, persistErr(err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, persistErr(err)
	}
	return db.GetProduct(ctx, id)
}

// DeleteProduct remove o produto do monitoramento
func (db *DB) DeleteProduct(ctx context.Context, id int64) error {
	res, err := db.conn.ExecContext(ctx, "DELETE FROM tracked_products WHERE id = ?", id)
	if err != nil {
		return persistErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return persistErr(err)
	}
	if n == 0 {
		return notFound(id)
	}
	return nil
}

// UpdateTargetPrice altera o preço alvo. Com rearm, o alerta volta a ficar armado.
func (db *DB) UpdateTargetPrice(ctx context.Context, id int64, target decimal.Decimal, rearm bool) (*models.TrackedProduct, error) {
	query := "UPDATE tracked_products SET target_price = ?, updated_at = ? WHERE id = ?"
	if rearm {
		query = "UPDATE tracked_products SET target_price = ?, alert_sent = 0, updated_at = ? WHERE id = ?"
	}

	res, err := db.conn.ExecContext(ctx, query, target.String(), formatTime(db.now()), id)
	if err != nil {
		return nil, persistErr(err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, persistErr(err)
	} else if n == 0 {
		return nil, notFound(id)
	}
	return db.GetProduct(ctx, id)
}

// Rearm volta alert_sent para false, permitindo um novo alerta.
// Um produto desativado por falhas volta para os ciclos.
func (db *DB) Rearm(ctx context.Context, id int64) (*models.TrackedProduct, error) {
	res, err := db.conn.ExecContext(ctx,
		"UPDATE tracked_products SET alert_sent = 0, disabled = 0, consecutive_errors = 0, updated_at = ? WHERE id = ?",
		formatTime(db.now()), id,
	)
	if err != nil {
		return nil, persistErr(err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, persistErr(err)
	} else if n == 0 {
		return nil, notFound(id)
	}
	return db.GetProduct(ctx, id)
}

// UpdateCheckResult grava o resultado de uma verificação numa única transação.
// A escrita só é aplicada se não houver verificação mais recente gravada.
// Com ClaimAlert, marca alert_sent apenas se ainda estava false.
// Falhas incrementam consecutive_errors e podem desativar o produto;
// um sucesso zera o contador e reativa o produto.
func (db *DB) UpdateCheckResult(ctx context.Context, id int64, u models.CheckUpdate) (result models.UpdateResult, err error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return result, persistErr(err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	checked := formatTime(u.CheckedAt)
	now := formatTime(db.now())

	var price any
	if u.Price != nil {
		price = u.Price.String()
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE tracked_products
		SET current_price = COALESCE(?, current_price),
		    title = COALESCE(NULLIF(?, ''), title),
		    last_checked_at = ?,
		    last_error = ?,
		    consecutive_errors = CASE WHEN ? = '' THEN 0 ELSE consecutive_errors + 1 END,
		    disabled = CASE
		        WHEN ? = '' THEN 0
		        WHEN ? > 0 AND consecutive_errors + 1 >= ? THEN 1
		        ELSE disabled END,
		    updated_at = ?
		WHERE id = ? AND (last_checked_at IS NULL OR last_checked_at <= ?)`,
		price, u.Title, checked,
		u.Error, u.Error, u.Error, u.DisableAfter, u.DisableAfter,
		now, id, checked,
	)
	if err != nil {
		return result, persistErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return result, persistErr(err)
	}

	if n == 0 {
		var exists int
		err = tx.QueryRowContext(ctx, "SELECT 1 FROM tracked_products WHERE id = ?", id).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			err = notFound(id)
			return result, err
		}
		if err != nil {
			return result, persistErr(err)
		}
		// Existe uma verificação mais recente: nada a fazer
		if err = tx.Commit(); err != nil {
			return result, persistErr(err)
		}
		return result, nil
	}
	result.Applied = true

	if u.Error != "" && u.DisableAfter > 0 {
		var errs int
		err = tx.QueryRowContext(ctx, "SELECT consecutive_errors FROM tracked_products WHERE id = ?", id).Scan(&errs)
		if err != nil {
			return result, persistErr(err)
		}
		result.Disabled = errs == u.DisableAfter
	}

	if u.ClaimAlert {
		res, err = tx.ExecContext(ctx,
			"UPDATE tracked_products SET alert_sent = 1, updated_at = ? WHERE id = ? AND alert_sent = 0",
			now, id,
		)
		if err != nil {
			return result, persistErr(err)
		}
		claimed, err := res.RowsAffected()
		if err != nil {
			return result, persistErr(err)
		}
		result.AlertClaimed = claimed == 1
	}

	if err = tx.Commit(); err != nil {
		return models.UpdateResult{}, persistErr(err)
	}
	return result, nil
}
