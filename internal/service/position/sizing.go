package position

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"github.com/wonny/quantengine/internal/domain/position"
	"github.com/wonny/quantengine/internal/pkg/config"
)

// =============================================================================
// Sizing
// =============================================================================

// SizeFraction 계좌 대비 포지션 비율
// riskPerTrade × strength × (1 - riskScore), [MinPositionRatio, MaxPositionRatio] 로 제한
func SizeFraction(cfg config.PositionConfig, strength, riskScore float64) float64 {
	f := cfg.RiskPerTrade * clamp01(strength) * (1 - clamp01(riskScore))
	return math.Max(cfg.MinPositionRatio, math.Min(cfg.MaxPositionRatio, f))
}

// SizePosition 진입가 기준 수량 (1주/1계약 미만이면 ErrTradingLimit)
func SizePosition(cfg config.PositionConfig, strength, riskScore float64, entry decimal.Decimal) (int64, error) {
	if !entry.IsPositive() {
		return 0, fmt.Errorf("%w: entry %s", position.ErrInvalidPrice, entry)
	}

	notional := decimal.NewFromFloat(cfg.AccountSize * SizeFraction(cfg, strength, riskScore))
	qty := notional.Div(entry).Floor().IntPart()
	if qty < 1 {
		return 0, fmt.Errorf("%w: notional %s below one unit at %s", position.ErrTradingLimit, notional.StringFixed(2), entry)
	}
	return qty, nil
}

// =============================================================================
// Exit levels
// =============================================================================

// rewardRisk 신호 강도별 손익비
func rewardRisk(strength float64) float64 {
	if strength > 0.7 {
		return 2.0
	}
	return 1.5
}

// ExitPercents 손절/익절 퍼센트
// stopLoss = base + volatility × 100, takeProfit = stopLoss × (2.0 | 1.5)
func ExitPercents(cfg config.PositionConfig, volatility, strength float64) (stopLossPct, takeProfitPct float64) {
	stopLossPct = cfg.BaseStopLossPct + math.Max(0, volatility)*100
	takeProfitPct = stopLossPct * rewardRisk(strength)
	return stopLossPct, takeProfitPct
}

// ExitLevels 진입가와 퍼센트로 손절/익절 가격 계산 (SELL 은 반대 방향)
func ExitLevels(side position.Side, entry decimal.Decimal, stopLossPct, takeProfitPct float64) (stop, take decimal.Decimal) {
	hundred := decimal.NewFromInt(100)
	sl := decimal.NewFromFloat(stopLossPct).Div(hundred)
	tp := decimal.NewFromFloat(takeProfitPct).Div(hundred)
	one := decimal.NewFromInt(1)

	if side == position.SideSell {
		return entry.Mul(one.Add(sl)), entry.Mul(one.Sub(tp))
	}
	return entry.Mul(one.Sub(sl)), entry.Mul(one.Add(tp))
}

// =============================================================================
// P/L
// =============================================================================

// Commission 체결 금액 × 수수료율
func Commission(cfg config.PositionConfig, qty int64, price decimal.Decimal) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(qty)).Mul(decimal.NewFromFloat(cfg.CommissionRate))
}

// UnrealizedPL 평가 손익 (수수료 제외, 방향 보정)
func UnrealizedPL(p *position.Position, current decimal.Decimal) decimal.Decimal {
	change := current.Sub(p.EntryPrice).Mul(decimal.NewFromInt(p.Quantity))
	if p.Side == position.SideSell {
		return change.Neg()
	}
	return change
}

// RealizedPL (exitValue - entryValue) - 총 수수료, 방향 보정
func RealizedPL(p *position.Position, exit, exitCommission decimal.Decimal) decimal.Decimal {
	return UnrealizedPL(p, exit).Sub(p.Commission).Sub(exitCommission)
}

// PLPercent 진입가 대비 손익률 (%), 방향 보정
func PLPercent(side position.Side, entry, current decimal.Decimal) float64 {
	if entry.IsZero() {
		return 0
	}
	pct := current.Sub(entry).Div(entry).Mul(decimal.NewFromInt(100)).InexactFloat64()
	if side == position.SideSell {
		return -pct
	}
	return pct
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
