package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ashureev/fleetscan/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Repository on a pgx connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgres opens a pool for connString and ensures the schema exists.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse db config: %w", err)
	}
	cfg.MaxConns = 10
	cfg.MinConns = 1
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	s := &PostgresStore{pool: pool}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	ddl := `
CREATE TABLE IF NOT EXISTS checklist_autos (
  numero_coche TEXT PRIMARY KEY,
  kilometraje BIGINT,
  estado_llantas TEXT,
  estado_rines TEXT,
  detalles_raspones TEXT,
  estado_faros TEXT,
  otros_detalles TEXT,
  ultima_actualizacion TEXT
);
CREATE TABLE IF NOT EXISTS registros_autos (
  id BIGSERIAL PRIMARY KEY,
  qr_code TEXT NOT NULL,
  nombre_tecnico TEXT,
  ultimo_mantenimiento TEXT,
  salida TEXT,
  regreso TEXT
);
CREATE INDEX IF NOT EXISTS idx_registros_qr ON registros_autos(qr_code);`
	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// GetRecordByQR retrieves the first record registered for a QR code.
func (s *PostgresStore) GetRecordByQR(ctx context.Context, qrCode string) (*domain.Record, error) {
	const query = `
SELECT id, qr_code, nombre_tecnico, ultimo_mantenimiento, salida, regreso
FROM registros_autos WHERE qr_code = $1 ORDER BY id LIMIT 1`

	rec, err := scanRecord(s.pool.QueryRow(ctx, query, qrCode))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan record row: %w", err)
	}
	return rec, nil
}

// RegisterMovement records a departure or return inside a transaction.
func (s *PostgresStore) RegisterMovement(ctx context.Context, m domain.Movement) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin movement: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			slog.Warn("failed to roll back movement", "qr_code", m.QRCode, "error", rbErr)
		}
	}()

	var id int64
	err = tx.QueryRow(ctx, `SELECT id FROM registros_autos WHERE qr_code = $1 LIMIT 1 FOR UPDATE`, m.QRCode).Scan(&id)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		if m.Action != domain.ActionDeparture {
			return ErrReturnWithoutDeparture
		}
		_, err = tx.Exec(ctx, `
INSERT INTO registros_autos (qr_code, nombre_tecnico, ultimo_mantenimiento, salida)
VALUES ($1, $2, $3, $4)`,
			m.QRCode, m.Technician, formatTimestamp(m.LastMaintenance), formatTimestamp(m.At))
		if err != nil {
			return fmt.Errorf("insert record: %w", err)
		}
	case err != nil:
		return fmt.Errorf("select record: %w", err)
	default:
		query := fmt.Sprintf(`
UPDATE registros_autos SET %s = $1, nombre_tecnico = $2, ultimo_mantenimiento = $3
WHERE qr_code = $4`, movementColumn(m.Action))
		_, err = tx.Exec(ctx, query,
			formatTimestamp(m.At), m.Technician, formatTimestamp(m.LastMaintenance), m.QRCode)
		if err != nil {
			return fmt.Errorf("update record: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit movement: %w", err)
	}
	return nil
}

// ListRecords returns at most limit records.
func (s *PostgresStore) ListRecords(ctx context.Context, limit int) ([]*domain.Record, error) {
	const query = `
SELECT id, qr_code, nombre_tecnico, ultimo_mantenimiento, salida, regreso
FROM registros_autos ORDER BY id LIMIT $1`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var records []*domain.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record row: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return records, nil
}

// GetChecklist retrieves the checklist for a car.
func (s *PostgresStore) GetChecklist(ctx context.Context, carNumber string) (*domain.Checklist, error) {
	const query = `
SELECT numero_coche, kilometraje, estado_llantas, estado_rines,
       detalles_raspones, estado_faros, otros_detalles, ultima_actualizacion
FROM checklist_autos WHERE numero_coche = $1`

	var c domain.Checklist
	var tires, rims, scratches, lights, notes, updated sql.NullString
	err := s.pool.QueryRow(ctx, query, carNumber).Scan(
		&c.CarNumber, &c.Mileage, &tires, &rims,
		&scratches, &lights, &notes, &updated,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan checklist row: %w", err)
	}

	c.TireCondition = tires.String
	c.RimCondition = rims.String
	c.ScratchDetails = scratches.String
	c.HeadlightCondition = lights.String
	c.OtherNotes = notes.String
	c.UpdatedAt = parseUpdatedAt(updated.String)
	return &c, nil
}

// UpsertChecklist creates or updates a checklist row.
func (s *PostgresStore) UpsertChecklist(ctx context.Context, c *domain.Checklist) error {
	const query = `
INSERT INTO checklist_autos (
  numero_coche, kilometraje, estado_llantas, estado_rines,
  detalles_raspones, estado_faros, otros_detalles, ultima_actualizacion
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (numero_coche) DO UPDATE SET
  kilometraje = EXCLUDED.kilometraje,
  estado_llantas = EXCLUDED.estado_llantas,
  estado_rines = EXCLUDED.estado_rines,
  detalles_raspones = EXCLUDED.detalles_raspones,
  estado_faros = EXCLUDED.estado_faros,
  otros_detalles = EXCLUDED.otros_detalles,
  ultima_actualizacion = EXCLUDED.ultima_actualizacion`

	_, err := s.pool.Exec(ctx, query,
		c.CarNumber, c.Mileage, c.TireCondition, c.RimCondition,
		c.ScratchDetails, c.HeadlightCondition, c.OtherNotes,
		c.UpdatedAt.UTC().Format(domain.UpdatedAtLayout),
	)
	if err != nil {
		return fmt.Errorf("upsert checklist: %w", err)
	}
	return nil
}

// ListCarNumbers returns all car numbers with a checklist.
func (s *PostgresStore) ListCarNumbers(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT numero_coche FROM checklist_autos ORDER BY numero_coche`)
	if err != nil {
		return nil, fmt.Errorf("query car numbers: %w", err)
	}
	cars, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("collect car numbers: %w", err)
	}
	return cars, nil
}
