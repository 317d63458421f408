package market

import "time"

// Bar OHLCV 봉 하나
type Bar struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Timeframe 봉 주기 (1m, 15m, 1h, 1d ...)
type Timeframe string

const (
	Timeframe1m  Timeframe = "1m"
	Timeframe15m Timeframe = "15m"
	Timeframe1h  Timeframe = "1h"
	Timeframe4h  Timeframe = "4h"
	Timeframe1d  Timeframe = "1d"
)

// PriceSeries 시간순으로 정렬된 봉 시계열 (gap 없음 가정)
type PriceSeries struct {
	Symbol    string    `json:"symbol"`
	Timeframe Timeframe `json:"timeframe"`
	Bars      []Bar     `json:"bars"`
}

// Len returns the number of bars.
func (s PriceSeries) Len() int {
	return len(s.Bars)
}

// Last returns the most recent bar, or the zero Bar for an empty series.
func (s PriceSeries) Last() Bar {
	if len(s.Bars) == 0 {
		return Bar{}
	}
	return s.Bars[len(s.Bars)-1]
}

// Closes 종가 배열
func (s PriceSeries) Closes() []float64 {
	out := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = b.Close
	}
	return out
}

// Highs 고가 배열
func (s PriceSeries) Highs() []float64 {
	out := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = b.High
	}
	return out
}

// Lows 저가 배열
func (s PriceSeries) Lows() []float64 {
	out := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = b.Low
	}
	return out
}

// Volumes 거래량 배열
func (s PriceSeries) Volumes() []float64 {
	out := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = b.Volume
	}
	return out
}

// Indicators 외부에서 받은 지표 스냅샷
// nil 필드는 "알 수 없음"이며 에러가 아님
type Indicators struct {
	RSI          *float64           `json:"rsi,omitempty"`
	MACD         *float64           `json:"macd,omitempty"`
	MACDSignal   *float64           `json:"macd_signal,omitempty"`
	StochasticK  *float64           `json:"stochastic_k,omitempty"`
	StochasticD  *float64           `json:"stochastic_d,omitempty"`
	FearGreed    *float64           `json:"fear_greed,omitempty"`     // 0-100
	PutCallRatio *float64           `json:"put_call_ratio,omitempty"` // 옵션 put/call
	Extra        map[string]float64 `json:"extra,omitempty"`
}

// Keys returns the names of the indicators that are present.
func (ind *Indicators) Keys() []string {
	if ind == nil {
		return nil
	}
	var keys []string
	add := func(name string, v *float64) {
		if v != nil {
			keys = append(keys, name)
		}
	}
	add("rsi", ind.RSI)
	add("macd", ind.MACD)
	add("macd_signal", ind.MACDSignal)
	add("stochastic_k", ind.StochasticK)
	add("stochastic_d", ind.StochasticD)
	add("fear_greed", ind.FearGreed)
	add("put_call_ratio", ind.PutCallRatio)
	for k := range ind.Extra {
		keys = append(keys, k)
	}
	return keys
}

// Float returns a pointer to v, for building Indicators literals.
func Float(v float64) *float64 {
	return &v
}
