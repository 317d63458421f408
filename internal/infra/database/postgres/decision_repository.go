package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/quantengine/internal/domain/signals"
)

// DecisionRepository appends fused decisions to analytics.decisions (implements signals.DecisionSink)
type DecisionRepository struct {
	pool *pgxpool.Pool
}

// NewDecisionRepository creates a new decision repository
func NewDecisionRepository(pool *pgxpool.Pool) *DecisionRepository {
	return &DecisionRepository{pool: pool}
}

// PublishDecision stores the decision; strategy signals are kept as JSONB
func (r *DecisionRepository) PublishDecision(ctx context.Context, d *signals.FusedDecision) error {
	sigs, err := json.Marshal(d.Signals)
	if err != nil {
		return fmt.Errorf("marshal signals: %w", err)
	}
	recs, err := json.Marshal(d.Recommendations)
	if err != nil {
		return fmt.Errorf("marshal recommendations: %w", err)
	}

	query := `
		INSERT INTO analytics.decisions (
			decision_id, symbol, direction, strength, confidence,
			risk_level, risk_score, executable, is_fallback,
			fingerprint, reason, signals, recommendations, generated_ts
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14
		)
		ON CONFLICT (decision_id) DO NOTHING
	`

	_, err = r.pool.Exec(ctx, query,
		d.ID,
		d.Symbol,
		d.Direction,
		d.Strength,
		d.Confidence,
		d.RiskLevel,
		d.RiskScore,
		d.Executable,
		d.IsFallback,
		d.Fingerprint,
		d.Reason,
		sigs,
		recs,
		d.GeneratedAt,
	)
	if err != nil {
		return fmt.Errorf("insert decision %s: %w", d.ID, err)
	}
	return nil
}

// RecentDecisions returns the latest decisions for a symbol, newest first
func (r *DecisionRepository) RecentDecisions(ctx context.Context, symbol string, limit int) ([]*signals.FusedDecision, error) {
	query := `
		SELECT
			decision_id, symbol, direction, strength, confidence,
			risk_level, risk_score, executable, is_fallback,
			fingerprint, reason, signals, recommendations, generated_ts
		FROM analytics.decisions
		WHERE symbol = $1
		ORDER BY generated_ts DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("query decisions: %w", err)
	}
	defer rows.Close()

	var out []*signals.FusedDecision
	for rows.Next() {
		var (
			d          signals.FusedDecision
			sigs, recs []byte
		)
		err := rows.Scan(
			&d.ID,
			&d.Symbol,
			&d.Direction,
			&d.Strength,
			&d.Confidence,
			&d.RiskLevel,
			&d.RiskScore,
			&d.Executable,
			&d.IsFallback,
			&d.Fingerprint,
			&d.Reason,
			&sigs,
			&recs,
			&d.GeneratedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		if err := json.Unmarshal(sigs, &d.Signals); err != nil {
			return nil, fmt.Errorf("decode signals: %w", err)
		}
		if err := json.Unmarshal(recs, &d.Recommendations); err != nil {
			return nil, fmt.Errorf("decode recommendations: %w", err)
		}
		out = append(out, &d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return out, nil
}
