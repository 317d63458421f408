package fusion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/quantengine/internal/domain/market"
	"github.com/wonny/quantengine/internal/domain/risk"
	"github.com/wonny/quantengine/internal/domain/signals"
	"github.com/wonny/quantengine/internal/pkg/config"
)

var defaultWeights = map[signals.StrategyID]float64{
	signals.StrategyMeanReversion:     0.25,
	signals.StrategyTrendBreakout:     0.30,
	signals.StrategyCompositeMomentum: 0.25,
	signals.StrategyPriceAction:       0.20,
}

func sig(id signals.StrategyID, dir signals.Direction, strength, confidence float64) signals.Signal {
	return signals.Signal{StrategyID: id, Direction: dir, Strength: strength, Confidence: confidence}
}

func TestFuse(t *testing.T) {
	t.Run("weighted long consensus", func(t *testing.T) {
		sigs := map[signals.StrategyID]signals.Signal{
			signals.StrategyMeanReversion:     sig(signals.StrategyMeanReversion, signals.DirectionLong, 0.8, 0.9),
			signals.StrategyTrendBreakout:     sig(signals.StrategyTrendBreakout, signals.DirectionLong, 0.6, 0.7),
			signals.StrategyCompositeMomentum: signals.Neutral(signals.StrategyCompositeMomentum, "flat"),
			signals.StrategyPriceAction:       sig(signals.StrategyPriceAction, signals.DirectionShort, 0.5, 0.5),
		}

		f := Fuse(sigs, defaultWeights)

		long := 0.8*0.9*0.25 + 0.6*0.7*0.30
		short := 0.5 * 0.5 * 0.20
		assert.Equal(t, signals.DirectionLong, f.Direction)
		assert.InDelta(t, long, f.LongScore, 1e-12)
		assert.InDelta(t, short, f.ShortScore, 1e-12)
		assert.InDelta(t, long/0.75, f.Strength, 1e-12)
		assert.InDelta(t, (0.9+0.7+0.5)/3, f.Confidence, 1e-12)
		assert.Equal(t, []signals.StrategyID{
			signals.StrategyMeanReversion,
			signals.StrategyPriceAction,
			signals.StrategyTrendBreakout,
		}, f.Supporting)
		assert.Equal(t, "3 of 4 strategies support LONG", f.Reason)
	})

	t.Run("no contributing signal", func(t *testing.T) {
		sigs := map[signals.StrategyID]signals.Signal{
			signals.StrategyMeanReversion: signals.Neutral(signals.StrategyMeanReversion, ""),
			signals.StrategyTrendBreakout: signals.Fallback(signals.StrategyTrendBreakout, "timeout"),
		}

		f := Fuse(sigs, defaultWeights)
		assert.Equal(t, signals.DirectionNeutral, f.Direction)
		assert.Zero(t, f.Strength)
		assert.Zero(t, f.Confidence)
		assert.Equal(t, reasonNoSignal, f.Reason)
		assert.Empty(t, f.Supporting)
	})

	t.Run("fallback signals never contribute", func(t *testing.T) {
		fb := signals.Fallback(signals.StrategyTrendBreakout, "boom")
		fb.Direction = signals.DirectionShort
		fb.Strength, fb.Confidence = 1, 1

		f := Fuse(map[signals.StrategyID]signals.Signal{
			signals.StrategyTrendBreakout: fb,
			signals.StrategyPriceAction:   sig(signals.StrategyPriceAction, signals.DirectionLong, 0.5, 0.5),
		}, defaultWeights)
		assert.Equal(t, signals.DirectionLong, f.Direction)
		assert.InDelta(t, 0.25, f.Strength, 1e-12)
	})

	t.Run("tie is neutral", func(t *testing.T) {
		w := map[signals.StrategyID]float64{"a": 0.5, "b": 0.5}
		f := Fuse(map[signals.StrategyID]signals.Signal{
			"a": sig("a", signals.DirectionLong, 0.6, 0.8),
			"b": sig("b", signals.DirectionShort, 0.6, 0.8),
		}, w)
		assert.Equal(t, signals.DirectionNeutral, f.Direction)
		assert.Equal(t, reasonConflicting, f.Reason)
		assert.Zero(t, f.Strength)
	})

	t.Run("unweighted strategy is ignored", func(t *testing.T) {
		f := Fuse(map[signals.StrategyID]signals.Signal{
			"unknown": sig("unknown", signals.DirectionShort, 1, 1),
		}, defaultWeights)
		assert.Equal(t, signals.DirectionNeutral, f.Direction)
	})

	t.Run("strength never exceeds one", func(t *testing.T) {
		sigs := map[signals.StrategyID]signals.Signal{}
		for id := range defaultWeights {
			sigs[id] = sig(id, signals.DirectionShort, 1, 1)
		}
		f := Fuse(sigs, defaultWeights)
		assert.Equal(t, signals.DirectionShort, f.Direction)
		assert.InDelta(t, 1.0, f.Strength, 1e-12)
		assert.LessOrEqual(t, f.Strength, 1.0+1e-12)
	})
}

func TestGate(t *testing.T) {
	cfg := config.Default().Engine.Fusion

	base := signals.FusedDecision{
		Direction:  signals.DirectionLong,
		Strength:   0.7,
		Confidence: 0.8,
		RiskLevel:  risk.LevelLow,
	}

	tests := []struct {
		name    string
		mutate  func(d *signals.FusedDecision)
		want    bool
		reasons int
	}{
		{"passes", func(d *signals.FusedDecision) {}, true, 0},
		{"neutral", func(d *signals.FusedDecision) { d.Direction = signals.DirectionNeutral }, false, 1},
		{"low confidence", func(d *signals.FusedDecision) { d.Confidence = 0.59 }, false, 1},
		{"low strength", func(d *signals.FusedDecision) { d.Strength = 0.49 }, false, 1},
		{"confidence at gate", func(d *signals.FusedDecision) { d.Confidence = 0.6 }, true, 0},
		{"medium risk allowed", func(d *signals.FusedDecision) { d.RiskLevel = risk.LevelMedium }, true, 0},
		{"high risk blocks", func(d *signals.FusedDecision) { d.RiskLevel = risk.LevelHigh }, false, 1},
		{"extreme risk blocks", func(d *signals.FusedDecision) { d.RiskLevel = risk.LevelExtreme }, false, 1},
		{"everything wrong", func(d *signals.FusedDecision) {
			d.Confidence, d.Strength, d.RiskLevel = 0.1, 0.1, risk.LevelVeryHigh
		}, false, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := base
			tt.mutate(&d)
			ok, reasons := Gate(cfg, &d)
			assert.Equal(t, tt.want, ok)
			assert.Len(t, reasons, tt.reasons)
		})
	}
}

func TestTradeRecommendations(t *testing.T) {
	pc := config.Default().Engine.Position

	t.Run("neutral", func(t *testing.T) {
		recs := TradeRecommendations(pc, &signals.FusedDecision{Direction: signals.DirectionNeutral})
		assert.Equal(t, []string{"wait for a better signal", "review the market on other timeframes"}, recs)
	})

	t.Run("strong long with high risk", func(t *testing.T) {
		recs := TradeRecommendations(pc, &signals.FusedDecision{
			Direction:  signals.DirectionLong,
			Strength:   0.8,
			RiskScore:  0.7,
			Volatility: 0.02,
			RiskLevel:  risk.LevelHigh,
		})
		require.Len(t, recs, 5)
		assert.Equal(t, "BUY with high confidence", recs[0])
		assert.Contains(t, recs[1], "suggested position size")
		assert.Equal(t, "stop loss: 5.0%", recs[2])
		assert.Equal(t, "take profit: 10.0%", recs[3])
		assert.Equal(t, "exit early if market conditions change", recs[4])
	})

	t.Run("medium short", func(t *testing.T) {
		recs := TradeRecommendations(pc, &signals.FusedDecision{
			Direction: signals.DirectionShort,
			Strength:  0.6,
			RiskLevel: risk.LevelLow,
		})
		require.Len(t, recs, 4)
		assert.Equal(t, "SELL with medium confidence", recs[0])
		assert.Equal(t, "take profit: 4.5%", recs[3])
	})
}

func TestFingerprint(t *testing.T) {
	a := Fingerprint([]string{"ETHUSDT", "BTCUSDT"}, market.Timeframe1h, []string{"rsi", "macd"})
	b := Fingerprint([]string{"BTCUSDT", "ETHUSDT"}, market.Timeframe1h, []string{"macd", "rsi"})
	assert.Equal(t, a, b)
	assert.Len(t, a, 32)

	assert.NotEqual(t, a, Fingerprint([]string{"BTCUSDT", "ETHUSDT"}, market.Timeframe4h, []string{"macd", "rsi"}))
	assert.NotEqual(t, a, fingerprint("forecast", []string{"BTCUSDT", "ETHUSDT"}, market.Timeframe1h, []string{"macd", "rsi"}))
}

func TestEnsemble(t *testing.T) {
	weights := map[signals.ModelID]float64{
		signals.ModelPrice:      0.4,
		signals.ModelTrend:      0.3,
		signals.ModelVolatility: 0.2,
		signals.ModelSentiment:  0.1,
	}
	pred := func(id signals.ModelID, score, conf float64) signals.Prediction {
		return signals.Prediction{Model: id, Score: score, Confidence: conf}
	}

	t.Run("only confident models are weighted", func(t *testing.T) {
		f := Ensemble(map[signals.ModelID]signals.Prediction{
			signals.ModelPrice:      pred(signals.ModelPrice, 0.9, 0.9),
			signals.ModelTrend:      pred(signals.ModelTrend, 0.8, 0.85),
			signals.ModelVolatility: pred(signals.ModelVolatility, 0.2, 0.5),
			signals.ModelSentiment:  pred(signals.ModelSentiment, 0.1, 0.6),
		}, weights, 0.7, 0.6, 0.4)

		want := (0.9*0.4 + 0.8*0.3) / 0.7
		assert.InDelta(t, want, f.Score, 1e-12)
		assert.InDelta(t, (0.9+0.85+0.5+0.6)/4, f.Confidence, 1e-12)
		assert.Equal(t, signals.OutlookBullish, f.Outlook)
		assert.InDelta(t, (want-0.5)*2, f.Magnitude, 1e-12)
		// 평균 신뢰도 0.7125 는 0.8 미만
		assert.Equal(t, signals.ActionHold, f.Recommendation)
		assert.Equal(t, []signals.ModelID{signals.ModelPrice, signals.ModelTrend}, f.Contributing)
		assert.False(t, f.StopLossAdvised)
	})

	t.Run("buy needs high score and confidence", func(t *testing.T) {
		f := Ensemble(map[signals.ModelID]signals.Prediction{
			signals.ModelPrice: pred(signals.ModelPrice, 0.9, 0.9),
			signals.ModelTrend: pred(signals.ModelTrend, 0.8, 0.9),
		}, weights, 0.7, 0.6, 0.4)
		assert.Equal(t, signals.ActionBuy, f.Recommendation)
	})

	t.Run("sell and stop loss", func(t *testing.T) {
		f := Ensemble(map[signals.ModelID]signals.Prediction{
			signals.ModelPrice:      pred(signals.ModelPrice, 0.0, 0.9),
			signals.ModelVolatility: pred(signals.ModelVolatility, 0.85, 0.9),
		}, weights, 0.7, 0.6, 0.4)
		// 0.17 / 0.6 ≈ 0.283 < 0.3
		assert.InDelta(t, (0.85*0.2)/0.6, f.Score, 1e-12)
		assert.Equal(t, signals.OutlookBearish, f.Outlook)
		assert.Equal(t, signals.ActionSell, f.Recommendation)
		assert.True(t, f.StopLossAdvised)
	})

	t.Run("score at 0.35 holds", func(t *testing.T) {
		f := Ensemble(map[signals.ModelID]signals.Prediction{
			signals.ModelPrice:      pred(signals.ModelPrice, 0.1, 0.9),
			signals.ModelVolatility: pred(signals.ModelVolatility, 0.85, 0.9),
		}, weights, 0.7, 0.6, 0.4)
		assert.InDelta(t, 0.35, f.Score, 1e-12)
		assert.Equal(t, signals.OutlookBearish, f.Outlook)
		assert.Equal(t, signals.ActionHold, f.Recommendation)
	})

	t.Run("no confident model", func(t *testing.T) {
		f := Ensemble(map[signals.ModelID]signals.Prediction{
			signals.ModelPrice: pred(signals.ModelPrice, 0.9, 0.2),
		}, weights, 0.7, 0.6, 0.4)
		assert.Equal(t, 0.5, f.Score)
		assert.InDelta(t, 0.2, f.Confidence, 1e-12)
		assert.Equal(t, signals.OutlookNeutral, f.Outlook)
		assert.Zero(t, f.Magnitude)
		assert.Empty(t, f.Contributing)
	})

	t.Run("no prediction at all", func(t *testing.T) {
		f := Ensemble(map[signals.ModelID]signals.Prediction{}, weights, 0.7, 0.6, 0.4)
		assert.Equal(t, 0.5, f.Score)
		assert.Equal(t, 0.5, f.Confidence)
		assert.Equal(t, signals.ActionHold, f.Recommendation)
	})
}
