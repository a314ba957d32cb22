package repo

import (
	"context"
	"database/sql"
	"time"

	"github.com/radieske/craps-oracle-table/internal/game/phase"
	"github.com/radieske/craps-oracle-table/internal/table-service/dto"
)

// Postgres persiste séries e lançamentos da mesa (implementa scheduler.Recorder)
type Postgres struct{ db *sql.DB }

// NewPostgres retorna uma instância do repositório de séries
func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

// RecordSeries registra o início da série. Repetir o mesmo (mesa, id) não falha.
func (p *Postgres) RecordSeries(ctx context.Context, tableID string, seriesID int64, startedAt time.Time) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO craps_series (table_id, id, started_at)
		VALUES ($1,$2,$3)
		ON CONFLICT (table_id, id) DO NOTHING`,
		tableID, seriesID, startedAt,
	)
	return err
}

// RecordRoll grava o lançamento; (table_id, series_id, seq) é único
func (p *Postgres) RecordRoll(ctx context.Context, tableID string, r phase.Roll, outcome phase.Outcome) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO craps_rolls (table_id, series_id, seq, die1, die2, total, outcome, source_ref, substituted)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (table_id, series_id, seq) DO NOTHING`,
		tableID, r.SeriesID, r.Seq, r.Die1, r.Die2, r.Total, outcome.String(), r.SourceRef, r.Substituted,
	)
	return err
}

// EndSeries marca o fim (ou a anulação) da série
func (p *Postgres) EndSeries(ctx context.Context, tableID string, seriesID int64, voided bool, endedAt time.Time) error {
	_, err := p.db.ExecContext(ctx,
		`UPDATE craps_series SET ended_at=$1, voided=$2 WHERE table_id=$3 AND id=$4 AND ended_at IS NULL`,
		endedAt, voided, tableID, seriesID,
	)
	return err
}

// LastSeriesID devolve o maior id já usado pela mesa (0 se nenhum)
func (p *Postgres) LastSeriesID(ctx context.Context, tableID string) (int64, error) {
	var id int64
	err := p.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(id), 0) FROM craps_series WHERE table_id=$1`, tableID,
	).Scan(&id)
	return id, err
}

// RollsBySeries lista os lançamentos de uma série da mesa em ordem
func (p *Postgres) RollsBySeries(ctx context.Context, tableID string, seriesID int64) ([]dto.RollView, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT series_id, seq, die1, die2, total, outcome, source_ref, substituted, created_at
		FROM craps_rolls
		WHERE table_id = $1 AND series_id = $2
		ORDER BY seq`, tableID, seriesID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []dto.RollView{}
	for rows.Next() {
		var v dto.RollView
		if err := rows.Scan(&v.SeriesID, &v.Seq, &v.Die1, &v.Die2, &v.Total, &v.Outcome, &v.SourceRef, &v.Substituted, &v.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
