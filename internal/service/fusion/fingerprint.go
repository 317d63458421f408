package fusion

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"sort"

	"github.com/wonny/quantengine/internal/domain/market"
)

// fingerprintKey 캐시 키 구성 요소 (필드 순서 고정)
type fingerprintKey struct {
	Symbols    []string `json:"symbols"`
	Timeframe  string   `json:"timeframe"`
	Indicators []string `json:"indicators"`
	Kind       string   `json:"kind,omitempty"`
}

// Fingerprint (symbols, timeframe, indicator keys) 의 MD5
// 입력 순서와 무관하도록 정렬 후 해시한다.
func Fingerprint(symbols []string, timeframe market.Timeframe, indicatorKeys []string) string {
	return fingerprint("", symbols, timeframe, indicatorKeys)
}

func fingerprint(kind string, symbols []string, timeframe market.Timeframe, indicatorKeys []string) string {
	key := fingerprintKey{
		Symbols:    sortedStrings(symbols),
		Timeframe:  string(timeframe),
		Indicators: sortedStrings(indicatorKeys),
		Kind:       kind,
	}
	// 문자열 슬라이스 구조체라 Marshal 실패 없음
	b, _ := json.Marshal(key)
	sum := md5.Sum(b)
	return hex.EncodeToString(sum[:])
}

func sortedStrings(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	sort.Strings(out)
	return out
}
