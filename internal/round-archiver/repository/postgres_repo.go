package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/radieske/craps-oracle-table/pkg/contracts/events"
)

// PostgresRepo grava o histórico de eventos da mesa e o estado corrente
type PostgresRepo struct {
	DB *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{DB: db}
}

// InsertHistory grava o evento bruto. Lançamentos repetidos (mesma série e seq)
// são ignorados: o Kafka entrega pelo menos uma vez.
// Retorna false quando o evento já existia.
func (r *PostgresRepo) InsertHistory(ctx context.Context, e events.TableEvent) (bool, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return false, fmt.Errorf("marshal history payload: %w", err)
	}
	var seq sql.NullInt32
	if e.Roll != nil {
		seq = sql.NullInt32{Int32: int32(e.Roll.Seq), Valid: true}
	}

	const q = `
		INSERT INTO table_event_history
		  (table_id, series_id, kind, phase, point, roll_seq, payload, occurred_at)
		VALUES
		  ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT DO NOTHING
	`
	res, err := r.DB.ExecContext(ctx, q,
		e.TableID, e.SeriesID, e.Kind, e.Phase, e.Point, seq, payload, e.Ts,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// UpsertCurrent mantém uma linha por mesa com o último estado conhecido.
// Eventos mais antigos que o já gravado não sobrescrevem.
func (r *PostgresRepo) UpsertCurrent(ctx context.Context, e events.TableEvent) error {
	const q = `
		INSERT INTO table_state_current
		  (table_id, series_id, phase, point, last_kind, updated_at)
		VALUES
		  ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (table_id) DO UPDATE SET
		  series_id  = EXCLUDED.series_id,
		  phase      = EXCLUDED.phase,
		  point      = EXCLUDED.point,
		  last_kind  = EXCLUDED.last_kind,
		  updated_at = EXCLUDED.updated_at
		WHERE table_state_current.updated_at <= EXCLUDED.updated_at
	`
	_, err := r.DB.ExecContext(ctx, q,
		e.TableID, e.SeriesID, e.Phase, e.Point, e.Kind, e.Ts,
	)
	return err
}
