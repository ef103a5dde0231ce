package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ashureev/fleetscan/internal/domain"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// WAL mode lets the lookup endpoints read while a registration writes.
	dsn := "file:" + dbPath + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS checklist_autos (
		numero_coche TEXT PRIMARY KEY,
		kilometraje INTEGER,
		estado_llantas TEXT,
		estado_rines TEXT,
		detalles_raspones TEXT,
		estado_faros TEXT,
		otros_detalles TEXT,
		ultima_actualizacion TEXT
	);

	CREATE TABLE IF NOT EXISTS registros_autos (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		qr_code TEXT NOT NULL,
		nombre_tecnico TEXT,
		ultimo_mantenimiento TEXT,
		salida TEXT,
		regreso TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_registros_qr ON registros_autos(qr_code);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// GetRecordByQR retrieves the first record registered for a QR code.
func (s *SQLiteStore) GetRecordByQR(ctx context.Context, qrCode string) (*domain.Record, error) {
	query := `
		SELECT id, qr_code, nombre_tecnico, ultimo_mantenimiento, salida, regreso
		FROM registros_autos WHERE qr_code = ? ORDER BY id LIMIT 1`

	rec, err := scanRecord(s.db.QueryRowContext(ctx, query, qrCode))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan record row: %w", err)
	}
	return rec, nil
}

// RegisterMovement records a departure or return inside a transaction.
func (s *SQLiteStore) RegisterMovement(ctx context.Context, m domain.Movement) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin movement: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			slog.Warn("failed to roll back movement", "qr_code", m.QRCode, "error", rbErr)
		}
	}()

	var id int64
	err = tx.QueryRowContext(ctx, `SELECT id FROM registros_autos WHERE qr_code = ? LIMIT 1`, m.QRCode).Scan(&id)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if m.Action != domain.ActionDeparture {
			return ErrReturnWithoutDeparture
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO registros_autos (qr_code, nombre_tecnico, ultimo_mantenimiento, salida)
			VALUES (?, ?, ?, ?)`,
			m.QRCode, m.Technician, formatTimestamp(m.LastMaintenance), formatTimestamp(m.At))
		if err != nil {
			return fmt.Errorf("insert record: %w", err)
		}
	case err != nil:
		return fmt.Errorf("select record: %w", err)
	default:
		query := fmt.Sprintf(`
			UPDATE registros_autos SET %s = ?, nombre_tecnico = ?, ultimo_mantenimiento = ?
			WHERE qr_code = ?`, movementColumn(m.Action))
		_, err = tx.ExecContext(ctx, query,
			formatTimestamp(m.At), m.Technician, formatTimestamp(m.LastMaintenance), m.QRCode)
		if err != nil {
			return fmt.Errorf("update record: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit movement: %w", err)
	}
	return nil
}

// ListRecords returns at most limit records.
func (s *SQLiteStore) ListRecords(ctx context.Context, limit int) ([]*domain.Record, error) {
	query := `
		SELECT id, qr_code, nombre_tecnico, ultimo_mantenimiento, salida, regreso
		FROM registros_autos ORDER BY id LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close record rows", "error", closeErr)
		}
	}()

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
func (s *SQLiteStore) GetChecklist(ctx context.Context, carNumber string) (*domain.Checklist, error) {
	query := `
		SELECT numero_coche, kilometraje, estado_llantas, estado_rines,
		       detalles_raspones, estado_faros, otros_detalles, ultima_actualizacion
		FROM checklist_autos WHERE numero_coche = ?`

	var c domain.Checklist
	var mileage sql.NullInt64
	var tires, rims, scratches, lights, notes, updated sql.NullString

	err := s.db.QueryRowContext(ctx, query, carNumber).Scan(
		&c.CarNumber, &mileage, &tires, &rims,
		&scratches, &lights, &notes, &updated,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan checklist row: %w", err)
	}

	if mileage.Valid {
		c.Mileage = &mileage.Int64
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
func (s *SQLiteStore) UpsertChecklist(ctx context.Context, c *domain.Checklist) error {
	query := `
	INSERT INTO checklist_autos (
		numero_coche, kilometraje, estado_llantas, estado_rines,
		detalles_raspones, estado_faros, otros_detalles, ultima_actualizacion
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(numero_coche) DO UPDATE SET
		kilometraje = excluded.kilometraje,
		estado_llantas = excluded.estado_llantas,
		estado_rines = excluded.estado_rines,
		detalles_raspones = excluded.detalles_raspones,
		estado_faros = excluded.estado_faros,
		otros_detalles = excluded.otros_detalles,
		ultima_actualizacion = excluded.ultima_actualizacion`

	var mileage interface{}
	if c.Mileage != nil {
		mileage = *c.Mileage
	}

	_, err := s.db.ExecContext(ctx, query,
		c.CarNumber, mileage, c.TireCondition, c.RimCondition,
		c.ScratchDetails, c.HeadlightCondition, c.OtherNotes,
		c.UpdatedAt.UTC().Format(domain.UpdatedAtLayout),
	)
	if err != nil {
		return fmt.Errorf("upsert checklist: %w", err)
	}
	return nil
}

// ListCarNumbers returns all car numbers with a checklist.
func (s *SQLiteStore) ListCarNumbers(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT numero_coche FROM checklist_autos ORDER BY numero_coche`)
	if err != nil {
		return nil, fmt.Errorf("query car numbers: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close car number rows", "error", closeErr)
		}
	}()

	var cars []string
	for rows.Next() {
		var car string
		if err := rows.Scan(&car); err != nil {
			return nil, fmt.Errorf("scan car number: %w", err)
		}
		cars = append(cars, car)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate car numbers: %w", err)
	}
	return cars, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*domain.Record, error) {
	var rec domain.Record
	var technician, maintenance, departed, returned sql.NullString
	if err := row.Scan(&rec.ID, &rec.QRCode, &technician, &maintenance, &departed, &returned); err != nil {
		return nil, err
	}
	rec.Technician = technician.String
	rec.LastMaintenance = maintenance.String
	rec.DepartedAt = parseTimestamp(departed.String)
	rec.ReturnedAt = parseTimestamp(returned.String)
	return &rec, nil
}
