package fusion

import (
	"context"
	"errors"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/wonny/quantengine/internal/domain/market"
	"github.com/wonny/quantengine/internal/domain/signals"
	"github.com/wonny/quantengine/internal/pkg/metrics"
	"github.com/wonny/quantengine/internal/strategy/predictor"
)

// =============================================================================
// Prediction ensemble
// =============================================================================

// 앙상블 권고 임계값
const (
	buyScore          = 0.7
	sellScore         = 0.3
	actionConfidence  = 0.8
	stopLossVolScore  = 0.8
	fallbackScore     = 0.5
	fallbackConf      = 0.3
	noModelConfidence = 0.5
)

// Forecast 예측 모델 앙상블
//
// 모델별 실패는 {0.5, 0.1} fallback 예측으로 대체된다. 시세가 없으면
// 엔진 수준 fallback (NEUTRAL/HOLD, confidence 0.3) 을 반환한다.
func (e *Engine) Forecast(ctx context.Context, symbol string, series market.PriceSeries, ind *market.Indicators) *signals.Forecast {
	tf := series.Timeframe
	if tf == "" {
		tf = market.Timeframe1h
	}

	var keys []string
	if ind != nil {
		keys = ind.Keys()
	}
	key := fingerprint("forecast", []string{symbol}, tf, keys)

	f, _, err := e.forecasts.GetOrCompute(key, func() (*signals.Forecast, error) {
		s, err := e.resolveSeries(ctx, symbol, tf, series)
		if err != nil {
			return nil, err
		}
		if s.Len() == 0 {
			return nil, signals.ErrDataInsufficient
		}
		if ind == nil && e.provider != nil {
			if fetched, err := e.provider.GetIndicators(ctx, symbol); err == nil {
				ind = fetched
			}
		}
		f := e.forecast(ctx, symbol, s, ind)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return f, nil
	})
	if err != nil {
		log.Warn().Err(err).Str("symbol", symbol).Msg("forecast degraded to fallback")
		return e.fallbackForecast(symbol, err)
	}
	return f
}

func (e *Engine) forecast(ctx context.Context, symbol string, series market.PriceSeries, ind *market.Indicators) *signals.Forecast {
	start := time.Now()
	defer func() {
		metrics.AnalysisLatency.WithLabelValues("forecast").Observe(time.Since(start).Seconds())
	}()

	in := predictor.Input{Series: series, Indicators: ind}
	tasks := make([]Task[signals.Prediction], len(e.predictors))
	for i, p := range e.predictors {
		tasks[i] = Task[signals.Prediction]{
			Name: string(p.ID()),
			Run: func(ctx context.Context) (signals.Prediction, error) {
				return p.Predict(ctx, in)
			},
		}
	}
	results := RunAll(ctx, e.ensemble.ModelTimeout, tasks)

	predictions := make(map[signals.ModelID]signals.Prediction, len(results))
	var degraded []string
	for i, res := range results {
		id := e.predictors[i].ID()
		if res.Err != nil {
			reason := "error"
			if isTimeout(res.Err) {
				reason = "timeout"
			}
			metrics.EstimatorFailures.WithLabelValues(string(id), reason).Inc()
			log.Warn().Err(res.Err).Str("symbol", symbol).Str("model", string(id)).Msg("model replaced by fallback")
			predictions[id] = predictor.Fallback(id, res.Err)
			degraded = append(degraded, string(id))
			continue
		}
		p := res.Value
		p.Model = id
		predictions[id] = p
	}

	f := Ensemble(predictions, e.modelWeights, e.ensemble.ConfidenceThreshold, e.ensemble.BullishCutoff, e.ensemble.BearishCutoff)
	if len(degraded) > 0 {
		sort.Strings(degraded)
		f.IsFallback = true
		f.Reason = "models replaced by fallback: " + strings.Join(degraded, ", ")
	}
	f.Symbol = symbol
	f.GeneratedAt = e.clock.Now()
	return f
}

// Ensemble 신뢰도 임계값을 넘는 예측만 가중평균 (없으면 0.5)
// 앙상블 신뢰도는 모든 예측 신뢰도의 평균이다.
func Ensemble(predictions map[signals.ModelID]signals.Prediction, weights map[signals.ModelID]float64, threshold, bullish, bearish float64) *signals.Forecast {
	ids := make([]signals.ModelID, 0, len(predictions))
	for id := range predictions {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var weighted, totalWeight, confSum float64
	contributing := []signals.ModelID{}
	for _, id := range ids {
		p := predictions[id]
		confSum += p.Confidence
		w := weights[id]
		if p.Confidence > threshold && w > 0 {
			weighted += p.Score * w
			totalWeight += w
			contributing = append(contributing, id)
		}
	}

	score := fallbackScore
	if totalWeight > 0 {
		score = weighted / totalWeight
	}
	confidence := noModelConfidence
	if len(ids) > 0 {
		confidence = confSum / float64(len(ids))
	}

	f := &signals.Forecast{
		Score:        score,
		Confidence:   confidence,
		Outlook:      signals.OutlookNeutral,
		Magnitude:    math.Abs(score-0.5) * 2,
		Predictions:  predictions,
		Contributing: contributing,
	}

	switch {
	case score > bullish:
		f.Outlook = signals.OutlookBullish
	case score < bearish:
		f.Outlook = signals.OutlookBearish
	}

	switch {
	case score > buyScore && confidence > actionConfidence:
		f.Recommendation = signals.ActionBuy
	case score < sellScore && confidence > actionConfidence:
		f.Recommendation = signals.ActionSell
	default:
		f.Recommendation = signals.ActionHold
	}

	if v, ok := predictions[signals.ModelVolatility]; ok && v.Score > stopLossVolScore {
		f.StopLossAdvised = true
	}

	return f
}

func (e *Engine) fallbackForecast(symbol string, cause error) *signals.Forecast {
	return &signals.Forecast{
		Symbol:         symbol,
		Score:          fallbackScore,
		Confidence:     fallbackConf,
		Outlook:        signals.OutlookNeutral,
		Recommendation: signals.ActionHold,
		Predictions:    map[signals.ModelID]signals.Prediction{},
		Contributing:   []signals.ModelID{},
		IsFallback:     true,
		Reason:         cause.Error(),
		GeneratedAt:    e.clock.Now(),
	}
}

func isTimeout(err error) bool {
	return errors.Is(err, signals.ErrStrategyTimeout) || errors.Is(err, context.DeadlineExceeded)
}
