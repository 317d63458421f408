package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/wonny/quantengine/internal/domain/position"
)

// PositionRepository archives closed positions (implements position.Archive)
type PositionRepository struct {
	pool *pgxpool.Pool
}

// NewPositionRepository creates a new position repository
func NewPositionRepository(pool *pgxpool.Pool) *PositionRepository {
	return &PositionRepository{pool: pool}
}

// ArchivePosition upserts a closed position into trade.positions_archive
func (r *PositionRepository) ArchivePosition(ctx context.Context, p *position.Position) error {
	if p.Status != position.StatusClosed {
		return fmt.Errorf("%w: archive %s in status %s", position.ErrInvalidTransition, p.ID, p.Status)
	}

	query := `
		INSERT INTO trade.positions_archive (
			position_id, decision_id, symbol, side, qty,
			entry_price, exit_price, stop_loss, take_profit,
			realized_pl, commission, exit_reason,
			strength, confidence, risk_score,
			opened_ts, closed_ts
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17
		)
		ON CONFLICT (position_id) DO NOTHING
	`

	_, err := r.pool.Exec(ctx, query,
		p.ID,
		p.DecisionID,
		p.Symbol,
		p.Side,
		p.Quantity,
		p.EntryPrice,
		p.ExitPrice,
		p.StopLoss,
		p.TakeProfit,
		p.RealizedPL,
		p.Commission,
		p.ExitReason,
		p.Strength,
		p.Confidence,
		p.RiskScore,
		p.OpenedAt,
		p.ClosedAt,
	)
	if err != nil {
		return fmt.Errorf("archive position %s: %w", p.ID, err)
	}
	return nil
}

// GetArchived retrieves an archived position by ID
func (r *PositionRepository) GetArchived(ctx context.Context, id uuid.UUID) (*position.Position, error) {
	query := positionSelect + ` WHERE position_id = $1`

	p, err := scanPosition(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, position.ErrPositionNotFound
		}
		return nil, fmt.Errorf("query archived position: %w", err)
	}
	return p, nil
}

// ListArchived returns the most recently closed positions
func (r *PositionRepository) ListArchived(ctx context.Context, limit int) ([]*position.Position, error) {
	query := positionSelect + ` ORDER BY closed_ts DESC LIMIT $1`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query archived positions: %w", err)
	}
	defer rows.Close()

	var out []*position.Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("scan archived position: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return out, nil
}

const positionSelect = `
	SELECT
		position_id, decision_id, symbol, side, qty,
		entry_price::text, exit_price::text, stop_loss::text, take_profit::text,
		realized_pl::text, commission::text, exit_reason,
		strength, confidence, risk_score,
		opened_ts, closed_ts
	FROM trade.positions_archive`

// scanPosition numeric 컬럼은 text 로 읽어 decimal 로 변환
func scanPosition(row pgx.Row) (*position.Position, error) {
	var (
		p                                      position.Position
		entry, exit, stop, take, realized, fee string
	)

	err := row.Scan(
		&p.ID,
		&p.DecisionID,
		&p.Symbol,
		&p.Side,
		&p.Quantity,
		&entry,
		&exit,
		&stop,
		&take,
		&realized,
		&fee,
		&p.ExitReason,
		&p.Strength,
		&p.Confidence,
		&p.RiskScore,
		&p.OpenedAt,
		&p.ClosedAt,
	)
	if err != nil {
		return nil, err
	}

	values, err := parseDecimals(entry, exit, stop, take, realized, fee)
	if err != nil {
		return nil, err
	}
	p.EntryPrice, p.StopLoss, p.TakeProfit = values[0], values[2], values[3]
	p.RealizedPL, p.Commission = values[4], values[5]
	p.ExitPrice = &values[1]
	p.CurrentPrice = values[1]
	p.Status = position.StatusClosed
	if p.ClosedAt != nil {
		p.UpdatedAt = *p.ClosedAt
	}
	return &p, nil
}

func parseDecimals(in ...string) ([]decimal.Decimal, error) {
	out := make([]decimal.Decimal, len(in))
	for i, s := range in {
		d, err := decimal.NewFromString(s)
		if err != nil {
			return nil, fmt.Errorf("parse numeric %q: %w", s, err)
		}
		out[i] = d
	}
	return out, nil
}
