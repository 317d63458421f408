package fusion

import (
	"fmt"
	"strings"

	"github.com/wonny/quantengine/internal/domain/risk"
	"github.com/wonny/quantengine/internal/domain/signals"
	"github.com/wonny/quantengine/internal/pkg/config"
	"github.com/wonny/quantengine/internal/service/position"
)

// Gate 자동 실행 가능 여부와 차단 사유
// confidence ≥ gate, strength ≥ gate, 리스크 등급이 차단 등급 미만이어야 실행 가능
func Gate(cfg config.FusionConfig, d *signals.FusedDecision) (bool, []string) {
	blocked := d.GateBlockers(cfg.ConfidenceGate, cfg.StrengthGate, risk.Level(cfg.BlockingLevel))
	return len(blocked) == 0, blocked
}

// TradeRecommendations 방향/강도/리스크 기반 매매 권고 문구
func TradeRecommendations(pc config.PositionConfig, d *signals.FusedDecision) []string {
	if d.Direction == signals.DirectionNeutral {
		return []string{
			"wait for a better signal",
			"review the market on other timeframes",
		}
	}

	action := "BUY"
	if d.Direction == signals.DirectionShort {
		action = "SELL"
	}

	recs := []string{
		fmt.Sprintf("%s with %s confidence", action, confidenceLabel(d.Strength)),
		fmt.Sprintf("suggested position size: %.2f%% of account", position.SizeFraction(pc, d.Strength, d.RiskScore)*100),
	}

	sl, tp := position.ExitPercents(pc, d.Volatility, d.Strength)
	recs = append(recs,
		fmt.Sprintf("stop loss: %.1f%%", sl),
		fmt.Sprintf("take profit: %.1f%%", tp),
	)

	if d.RiskLevel.AtLeast(risk.LevelHigh) {
		recs = append(recs, "exit early if market conditions change")
	}
	return recs
}

func confidenceLabel(strength float64) string {
	switch {
	case strength > 0.7:
		return "high"
	case strength > 0.5:
		return "medium"
	default:
		return "low"
	}
}

func joinReasons(reasons []string) string {
	return strings.Join(reasons, "; ")
}
