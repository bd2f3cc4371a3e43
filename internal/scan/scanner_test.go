package scan

import (
	"context"
	"errors"
	"math"
	"testing"

	"quant_bot/internal/models"
	"quant_bot/internal/strategy"
)

// fakeSource кодирует символ в цене первой свечи, чтобы фейковая
// стратегия знала, чей ряд ей отдали.
type fakeSource struct {
	ids  map[string]float64
	errs map[string]error
}

func (f *fakeSource) GetCandles(_ context.Context, symbol, interval string, _ int) ([]models.Candle, error) {
	if err := f.errs[symbol+"/"+interval]; err != nil {
		return nil, err
	}
	return []models.Candle{{Close: f.ids[symbol]}}, nil
}

// fakeStrategy отдаёт сигналы по порядку таймфреймов для каждого символа.
type fakeStrategy struct {
	sigs  map[float64][]strategy.Signal
	calls map[float64]int
}

func (f *fakeStrategy) Name() string { return "fake" }

func (f *fakeStrategy) Evaluate(candles []models.Candle) (strategy.Signal, bool) {
	id := candles[0].Close
	i := f.calls[id]
	f.calls[id]++
	queue := f.sigs[id]
	if i >= len(queue) || queue[i].Side == models.SideNone {
		return strategy.Signal{}, false
	}
	return queue[i], true
}

var testTimeframes = []string{"15m", "5m"}
var testWeights = map[string]float64{"15m": 0.6, "5m": 0.4}

type scanFixture struct {
	scanner *Scanner
	symbols []string
}

func newFixture(bySymbol map[string][]strategy.Signal, errs map[string]error) *scanFixture {
	ids := map[string]float64{}
	sigs := map[float64][]strategy.Signal{}
	var symbols []string
	next := 1.0
	for _, sym := range []string{"BTCUSDT", "ETHUSDT", "SOLUSDT"} {
		q, ok := bySymbol[sym]
		if !ok {
			continue
		}
		ids[sym] = next
		sigs[next] = q
		symbols = append(symbols, sym)
		next++
	}
	src := &fakeSource{ids: ids, errs: errs}
	strat := &fakeStrategy{sigs: sigs, calls: map[float64]int{}}
	return &scanFixture{
		scanner: New(src, strat, testTimeframes, testWeights, 0.7, 200),
		symbols: symbols,
	}
}

func (f *scanFixture) scan(skip func(string) bool) (models.Candidate, bool) {
	return f.scanner.Scan(context.Background(), f.symbols, skip)
}

func long(conf, trigger float64) strategy.Signal {
	return strategy.Signal{Side: models.SideLong, Confidence: conf, Trigger: trigger, ATR: 1}
}

func short(conf, trigger float64) strategy.Signal {
	return strategy.Signal{Side: models.SideShort, Confidence: conf, Trigger: trigger, ATR: 1}
}

func TestCompositeWeightedScore(t *testing.T) {
	// 0.6*0.8 + 0.4*0.6 = 0.72
	cand, ok := newFixture(map[string][]strategy.Signal{
		"BTCUSDT": {long(0.8, 49500), long(0.6, 49800)},
	}, nil).scan(nil)
	if !ok {
		t.Fatal("expected a candidate")
	}
	if math.Abs(cand.Score-0.72) > 1e-9 {
		t.Fatalf("expected composite 0.72, got %v", cand.Score)
	}
	if cand.Trigger != 49500 {
		t.Fatalf("trigger must come from the higher timeframe, got %v", cand.Trigger)
	}
	if cand.Direction != models.SideLong {
		t.Fatalf("direction long expected, got %v", cand.Direction)
	}
}

func TestTimeframeDisagreementDropsSymbol(t *testing.T) {
	if _, ok := newFixture(map[string][]strategy.Signal{
		"BTCUSDT": {long(0.9, 1), short(0.9, 2)},
	}, nil).scan(nil); ok {
		t.Fatal("disagreeing timeframes must not produce a candidate")
	}
}

func TestMissingTimeframeSignalDropsSymbol(t *testing.T) {
	if _, ok := newFixture(map[string][]strategy.Signal{
		"BTCUSDT": {long(0.9, 1), {Side: models.SideNone}},
	}, nil).scan(nil); ok {
		t.Fatal("every timeframe must agree before a candidate is produced")
	}
}

func TestBelowThresholdDropped(t *testing.T) {
	// 0.6*0.7 + 0.4*0.6 = 0.66 < 0.7
	if _, ok := newFixture(map[string][]strategy.Signal{
		"BTCUSDT": {long(0.7, 1), long(0.6, 1)},
	}, nil).scan(nil); ok {
		t.Fatal("composite below threshold must be dropped")
	}
}

func TestBelowThresholdReportedAsRejected(t *testing.T) {
	// не прошедший порог сетап не теряется молча: он попадает в список
	// отсева, который Scan печатает одной строкой
	f := newFixture(map[string][]strategy.Signal{
		"BTCUSDT": {long(0.7, 1), long(0.6, 1)},   // 0.66 < 0.7
		"ETHUSDT": {long(0.9, 2), long(0.8, 2)},   // 0.86 — проходит
		"SOLUSDT": {short(0.8, 3), short(0.5, 3)}, // 0.68 < 0.7
	}, nil)
	best, found, rejected := f.scanner.scanAll(context.Background(), f.symbols, nil)
	if !found || best.Symbol != "ETHUSDT" {
		t.Fatalf("expected ETHUSDT to qualify, got %+v found=%v", best, found)
	}
	if len(rejected) != 2 {
		t.Fatalf("expected 2 sub-threshold rejects, got %+v", rejected)
	}
	if rejected[0].Symbol != "BTCUSDT" || math.Abs(rejected[0].Score-0.66) > 1e-9 {
		t.Fatalf("reject must carry symbol and score: %+v", rejected[0])
	}
	if rejected[1].Symbol != "SOLUSDT" || rejected[1].Direction != models.SideShort {
		t.Fatalf("reject must carry direction: %+v", rejected[1])
	}
	if got := formatRejected(rejected); got != "BTCUSDT LONG 0.66, SOLUSDT SHORT 0.68" {
		t.Fatalf("unexpected reject summary: %q", got)
	}
}

func TestBestCandidateWins(t *testing.T) {
	cand, ok := newFixture(map[string][]strategy.Signal{
		"BTCUSDT": {long(0.8, 1), long(0.6, 1)},   // 0.72
		"ETHUSDT": {long(0.9, 2), long(0.8, 2)},   // 0.86
		"SOLUSDT": {short(0.8, 3), short(0.5, 3)}, // 0.68 — ниже порога
	}, nil).scan(nil)
	if !ok || cand.Symbol != "ETHUSDT" {
		t.Fatalf("expected ETHUSDT to win, got %+v ok=%v", cand, ok)
	}
}

func TestTieBreakLexicographic(t *testing.T) {
	f := newFixture(map[string][]strategy.Signal{
		"BTCUSDT": {long(0.8, 2), long(0.8, 2)},
		"ETHUSDT": {long(0.8, 1), long(0.8, 1)},
	}, nil)
	// ETHUSDT сканируется первым — победить должен всё равно BTCUSDT
	cand, ok := f.scanner.Scan(context.Background(), []string{"ETHUSDT", "BTCUSDT"}, nil)
	if !ok || cand.Symbol != "BTCUSDT" {
		t.Fatalf("tie must go to the lexicographically smaller symbol, got %+v", cand)
	}
}

func TestDataUnavailableSkipsSymbolOnly(t *testing.T) {
	cand, ok := newFixture(map[string][]strategy.Signal{
		"BTCUSDT": {long(0.9, 1), long(0.9, 1)},
		"ETHUSDT": {long(0.8, 2), long(0.8, 2)},
	}, map[string]error{
		"BTCUSDT/15m": errors.New("exchange down"),
	}).scan(nil)
	if !ok || cand.Symbol != "ETHUSDT" {
		t.Fatalf("unavailable symbol must be skipped, others scanned: %+v ok=%v", cand, ok)
	}
}

func TestSkipPredicate(t *testing.T) {
	f := newFixture(map[string][]strategy.Signal{
		"BTCUSDT": {long(0.9, 1), long(0.9, 1)},
	}, nil)
	if _, ok := f.scan(func(sym string) bool { return sym == "BTCUSDT" }); ok {
		t.Fatal("skipped symbol must not be scanned")
	}
}
