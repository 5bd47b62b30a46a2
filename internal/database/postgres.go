package database

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"

	"monitor-precos/internal/models"
	"monitor-precos/pkg/logger"
)

const pgProductColumns = `id, platform, product_id, product_url, title, target_price::text, currency,
	current_price::text, last_checked_at, alert_sent, notify_email, targets::text,
	last_error, consecutive_errors, disabled, created_at, updated_at`

// PgDB implementa o mesmo gateway sobre PostgreSQL
type PgDB struct {
	pool *pgxpool.Pool
	log  logger.Logger
	now  func() time.Time
}

// NewPostgres conecta no PostgreSQL e aplica as migrações
func NewPostgres(ctx context.Context, dsn string, log logger.Logger) (*PgDB, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, persistErr(err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, persistErr(err)
	}

	if err := migratePostgres(dsn, log); err != nil {
		pool.Close()
		return nil, persistErr(err)
	}

	log.Infof("Conectado ao PostgreSQL")
	return &PgDB{pool: pool, log: log, now: time.Now}, nil
}

// Close fecha o pool de conexões
func (db *PgDB) Close(_ context.Context) error {
	db.pool.Close()
	return nil
}

// Ping verifica a conexão
func (db *PgDB) Ping(ctx context.Context) error {
	if err := db.pool.Ping(ctx); err != nil {
		return persistErr(err)
	}
	return nil
}

func scanPgProduct(row rowScanner) (*models.TrackedProduct, error) {
	var (
		p            models.TrackedProduct
		platform     string
		target       string
		currentPrice *string
		targets      string
	)

	err := row.Scan(
		&p.ID, &platform, &p.ProductID, &p.ProductURL, &p.Title, &target, &p.Currency,
		&currentPrice, &p.LastCheckedAt, &p.AlertSent, &p.NotifyEmail, &targets,
		&p.LastError, &p.ConsecutiveErrors, &p.Disabled, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.Platform = models.Platform(platform)

	if p.TargetPrice, err = decimal.NewFromString(target); err != nil {
		return nil, err
	}
	if currentPrice != nil {
		d, err := decimal.NewFromString(*currentPrice)
		if err != nil {
			return nil, err
		}
		p.CurrentPrice = decimal.NewNullDecimal(d)
	}
	if p.Targets, err = decodeTargets(targets); err != nil {
		return nil, err
	}
	return &p, nil
}

// ListProducts retorna todos os produtos, inclusive os desativados
func (db *PgDB) ListProducts(ctx context.Context) ([]models.TrackedProduct, error) {
	return db.listProducts(ctx, "SELECT "+pgProductColumns+" FROM tracked_products ORDER BY id")
}

// ListActiveProducts retorna os produtos que entram no ciclo
func (db *PgDB) ListActiveProducts(ctx context.Context) ([]models.TrackedProduct, error) {
	return db.listProducts(ctx, "SELECT "+pgProductColumns+" FROM tracked_products WHERE NOT disabled ORDER BY id")
}

func (db *PgDB) listProducts(ctx context.Context, query string) ([]models.TrackedProduct, error) {
	rows, err := db.pool.Query(ctx, query)
	if err != nil {
		return nil, persistErr(err)
	}
	defer rows.Close()

	var products []models.TrackedProduct
	for rows.Next() {
		p, err := scanPgProduct(rows)
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
func (db *PgDB) GetProduct(ctx context.Context, id int64) (*models.TrackedProduct, error) {
	row := db.pool.QueryRow(ctx, "SELECT "+pgProductColumns+" FROM tracked_products WHERE id = $1", id)
	p, err := scanPgProduct(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, persistErr(err)
	}
	return p, nil
}

// CreateProduct insere um novo produto e devolve o registro gravado
func (db *PgDB) CreateProduct(ctx context.Context, p *models.TrackedProduct) (*models.TrackedProduct, error) {
	targets, err := encodeTargets(p.Targets)
	if err != nil {
		return nil, persistErr(err)
	}

	row := db.pool.QueryRow(ctx, `
		INSERT INTO tracked_products (
			platform, product_id, product_url, title, target_price, currency,
			notify_email, targets, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5::numeric, $6, $7, $8::jsonb, $9, $9)
		RETURNING `+pgProductColumns,
		string(p.Platform), p.ProductID, p.ProductURL, p.Title, p.TargetPrice.String(), p.Currency,
		p.NotifyEmail, targets, db.now().UTC(),
	)
	created, err := scanPgProduct(row)
	if err != nil {
		return nil, persistErr(err)
	}
	return created, nil
}

// DeleteProduct remove o produto do monitoramento
func (db *PgDB) DeleteProduct(ctx context.Context, id int64) error {
	tag, err := db.pool.Exec(ctx, "DELETE FROM tracked_products WHERE id = $1", id)
	if err != nil {
		return persistErr(err)
	}
	if tag.RowsAffected() == 0 {
		return notFound(id)
	}
	return nil
}

// UpdateTargetPrice altera o preço alvo. Com rearm, o alerta volta a ficar armado.
func (db *PgDB) UpdateTargetPrice(ctx context.Context, id int64, target decimal.Decimal, rearm bool) (*models.TrackedProduct, error) {
	row := db.pool.QueryRow(ctx, `
		UPDATE tracked_products
		SET target_price = $1::numeric,
		    alert_sent = CASE WHEN $2 THEN FALSE ELSE alert_sent END,
		    updated_at = $3
		WHERE id = $4
		RETURNING `+pgProductColumns,
		target.String(), rearm, db.now().UTC(), id,
	)
	return db.scanReturning(row, id)
}

// Rearm volta alert_sent para false e reativa o produto
func (db *PgDB) Rearm(ctx context.Context, id int64) (*models.TrackedProduct, error) {
	row := db.pool.QueryRow(ctx,
		`UPDATE tracked_products
		SET alert_sent = FALSE, disabled = FALSE, consecutive_errors = 0, updated_at = $1
		WHERE id = $2 RETURNING `+pgProductColumns,
		db.now().UTC(), id,
	)
	return db.scanReturning(row, id)
}

func (db *PgDB) scanReturning(row pgx.Row, id int64) (*models.TrackedProduct, error) {
	p, err := scanPgProduct(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, persistErr(err)
	}
	return p, nil
}

// UpdateCheckResult grava o resultado de uma verificação numa única transação.
// Mesmas regras da versão SQLite: escrita monotônica e claim atômico do alerta.
func (db *PgDB) UpdateCheckResult(ctx context.Context, id int64, u models.CheckUpdate) (result models.UpdateResult, err error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return result, persistErr(err)
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	var price *string
	if u.Price != nil {
		s := u.Price.String()
		price = &s
	}
	now := db.now().UTC()

	var errs int
	err = tx.QueryRow(ctx, `
		UPDATE tracked_products
		SET current_price = COALESCE($1::numeric, current_price),
		    title = COALESCE(NULLIF($2, ''), title),
		    last_checked_at = $3,
		    last_error = $6,
		    consecutive_errors = CASE WHEN $6 = '' THEN 0 ELSE consecutive_errors + 1 END,
		    disabled = CASE
		        WHEN $6 = '' THEN FALSE
		        WHEN $7::int > 0 AND consecutive_errors + 1 >= $7::int THEN TRUE
		        ELSE disabled END,
		    updated_at = $4
		WHERE id = $5 AND (last_checked_at IS NULL OR last_checked_at <= $3)
		RETURNING consecutive_errors`,
		price, u.Title, u.CheckedAt.UTC(), now, id, u.Error, u.DisableAfter,
	).Scan(&errs)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return result, persistErr(err)
	}

	if errors.Is(err, pgx.ErrNoRows) {
		var exists bool
		err = tx.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM tracked_products WHERE id = $1)", id).Scan(&exists)
		if err != nil {
			return result, persistErr(err)
		}
		if !exists {
			err = notFound(id)
			return result, err
		}
		if err = tx.Commit(ctx); err != nil {
			return result, persistErr(err)
		}
		return result, nil
	}
	result.Applied = true
	result.Disabled = u.Error != "" && u.DisableAfter > 0 && errs == u.DisableAfter

	if u.ClaimAlert {
		tag, err := tx.Exec(ctx,
			"UPDATE tracked_products SET alert_sent = TRUE, updated_at = $1 WHERE id = $2 AND alert_sent = FALSE",
			now, id,
		)
		if err != nil {
			return result, persistErr(err)
		}
		result.AlertClaimed = tag.RowsAffected() == 1
	}

	if err = tx.Commit(ctx); err != nil {
		return models.UpdateResult{}, persistErr(err)
	}
	return result, nil
}
