package session

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/nvandessel/alliance/internal/decision"
	"github.com/nvandessel/alliance/internal/engine"
	"github.com/nvandessel/alliance/internal/models"
	"github.com/nvandessel/alliance/internal/payoff"
)

// testTable pays AM 5x and MC 4.5x the joint investment, so 10/10 resolves
// to 100/90/190.
func testTable(t *testing.T) *payoff.Table {
	t.Helper()
	am := make([][]float64, payoff.Size)
	mc := make([][]float64, payoff.Size)
	for a := range am {
		am[a] = make([]float64, payoff.Size)
		mc[a] = make([]float64, payoff.Size)
		for m := range am[a] {
			am[a][m] = 5 * float64(a+m)
			mc[a][m] = 4.5 * float64(a+m)
		}
	}
	table, err := payoff.New(am, mc)
	if err != nil {
		t.Fatal(err)
	}
	return table
}

func testConfig(rounds int) models.SimulationConfig {
	return models.SimulationConfig{
		NumRounds:       rounds,
		InformationMode: models.ModeAsymmetric,
		AMStrategy:      models.StrategyTitForTat,
		MCStrategy:      models.StrategyNeutral,
	}
}

func newTestSession(t *testing.T, rounds int) *Session {
	t.Helper()
	s, err := NewRegistry().Create(testConfig(rounds))
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func fixedEngine(t *testing.T, am, mc int) *engine.Engine {
	return engine.New(testTable(t), decision.Fixed{models.PartyAM: am, models.PartyMC: mc})
}

func TestAdvance_EndToEnd(t *testing.T) {
	s := newTestSession(t, 3)
	e := fixedEngine(t, 10, 10)
	ctx := context.Background()

	res, err := s.Advance(ctx, e)
	if err != nil {
		t.Fatalf("Advance() error = %v", err)
	}
	want := Outcome{AMPayoff: 100, MCPayoff: 90, TotalWelfare: 190, AMCumulative: 100, MCCumulative: 90}
	if res.Round != 1 || res.Outcomes != want {
		t.Errorf("round 1 = %d %+v, want 1 %+v", res.Round, res.Outcomes, want)
	}
	if res.Status != models.StatusInProgress {
		t.Errorf("status after round 1 = %s, want in_progress", res.Status)
	}

	for i := 2; i <= 3; i++ {
		if res, err = s.Advance(ctx, e); err != nil {
			t.Fatalf("round %d: %v", i, err)
		}
	}
	if res.Status != models.StatusComplete {
		t.Errorf("status after final round = %s, want complete", res.Status)
	}

	st := s.Status()
	if st.CurrentRound != 3 || st.AMCumulative != 300 || st.MCCumulative != 270 || st.Status != models.StatusComplete {
		t.Errorf("Status() = %+v", st)
	}

	_, err = s.Advance(ctx, e)
	if !errors.Is(err, models.ErrComplete) || models.KindOf(err) != models.KindConflict {
		t.Errorf("4th Advance() error = %v, want conflict ErrComplete", err)
	}
	if n := len(s.History()); n != 3 {
		t.Errorf("history length = %d after rejected advance, want 3", n)
	}
}

func TestAdvance_CounterIsContiguous(t *testing.T) {
	s := newTestSession(t, 5)
	e := fixedEngine(t, 7, 9)
	for i := 1; i <= 5; i++ {
		res, err := s.Advance(context.Background(), e)
		if err != nil {
			t.Fatal(err)
		}
		if res.Round != i || len(res.History) != i {
			t.Fatalf("advance %d returned round %d with %d records", i, res.Round, len(res.History))
		}
	}
	for i, r := range s.History() {
		if r.Round != i+1 {
			t.Errorf("history[%d].Round = %d", i, r.Round)
		}
	}
}

func TestAdvance_CumulativeMatchesHistory(t *testing.T) {
	s := newTestSession(t, 4)
	p := decision.Func(func(ctx context.Context, req decision.Request) (decision.Decision, error) {
		return decision.Decision{Investment: (req.Round*3 + len(req.Party)) % 26}, nil
	})
	e := engine.New(testTable(t), p)
	for i := 0; i < 4; i++ {
		if _, err := s.Advance(context.Background(), e); err != nil {
			t.Fatal(err)
		}
	}

	var am, mc float64
	for _, r := range s.History() {
		am = payoff.Round2(am + r.AMPayoff)
		mc = payoff.Round2(mc + r.MCPayoff)
		if r.TotalWelfare != r.AMPayoff+r.MCPayoff {
			t.Errorf("round %d welfare %v != %v + %v", r.Round, r.TotalWelfare, r.AMPayoff, r.MCPayoff)
		}
	}
	st := s.Status()
	if st.AMCumulative != am || st.MCCumulative != mc {
		t.Errorf("cumulative = %v/%v, history sums = %v/%v", st.AMCumulative, st.MCCumulative, am, mc)
	}
}

func TestStatus_Idempotent(t *testing.T) {
	s := newTestSession(t, 2)
	first := s.Status()
	if second := s.Status(); second != first {
		t.Errorf("Status() changed between calls: %+v vs %+v", first, second)
	}
	if first.Status != models.StatusInitialized || first.CurrentRound != 0 {
		t.Errorf("initial status = %+v", first)
	}

	if _, err := s.Advance(context.Background(), fixedEngine(t, 1, 2)); err != nil {
		t.Fatal(err)
	}
	a, b := s.Status(), s.Status()
	if a != b {
		t.Errorf("Status() changed between calls: %+v vs %+v", a, b)
	}
}

// gatedProvider blocks every decision until release is closed and signals
// entered the first time a decision starts.
type gatedProvider struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
	calls   atomic.Int32
}

func newGatedProvider() *gatedProvider {
	return &gatedProvider{entered: make(chan struct{}), release: make(chan struct{})}
}

func (g *gatedProvider) Decide(ctx context.Context, req decision.Request) (decision.Decision, error) {
	g.calls.Add(1)
	g.once.Do(func() { close(g.entered) })
	select {
	case <-g.release:
		return decision.Decision{Investment: 10}, nil
	case <-ctx.Done():
		return decision.Decision{}, ctx.Err()
	}
}

func TestAdvance_ConcurrentCallsRunOnce(t *testing.T) {
	s := newTestSession(t, 3)
	gate := newGatedProvider()
	e := engine.New(testTable(t), gate)

	first := make(chan error, 1)
	go func() {
		_, err := s.Advance(context.Background(), e)
		first <- err
	}()
	<-gate.entered

	const contenders = 8
	var wg sync.WaitGroup
	var busy atomic.Int32
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Advance(context.Background(), e)
			if errors.Is(err, models.ErrBusy) && models.KindOf(err) == models.KindConflict {
				busy.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := busy.Load(); got != contenders {
		t.Errorf("%d of %d concurrent advances rejected as busy", got, contenders)
	}
	if st := s.Status(); st.CurrentRound != 0 {
		t.Errorf("round committed before release: %+v", st)
	}

	close(gate.release)
	if err := <-first; err != nil {
		t.Fatalf("first Advance() error = %v", err)
	}
	if n := len(s.History()); n != 1 {
		t.Errorf("history length = %d, want 1", n)
	}
	if c := gate.calls.Load(); c != 2 {
		t.Errorf("provider called %d times, want 2", c)
	}

	if _, err := s.Advance(context.Background(), fixedEngine(t, 5, 5)); err != nil {
		t.Errorf("guard not released after success: %v", err)
	}
}

func TestAdvance_RollbackWhenOnePartyFails(t *testing.T) {
	s := newTestSession(t, 3)
	ctx := context.Background()
	if _, err := s.Advance(ctx, fixedEngine(t, 10, 10)); err != nil {
		t.Fatal(err)
	}
	before := s.Status()

	boom := errors.New("mc backend down")
	failing := engine.New(testTable(t), decision.Func(func(ctx context.Context, req decision.Request) (decision.Decision, error) {
		if req.Party == models.PartyMC {
			return decision.Decision{}, boom
		}
		return decision.Decision{Investment: 20}, nil
	}))

	_, err := s.Advance(ctx, failing)
	if !errors.Is(err, boom) || models.KindOf(err) != models.KindProvider || models.FieldOf(err) != "mc" {
		t.Fatalf("Advance() error = %v, want provider error for mc", err)
	}
	if after := s.Status(); after != before {
		t.Errorf("state changed after failed round: %+v -> %+v", before, after)
	}
	if n := len(s.History()); n != 1 {
		t.Errorf("history length = %d, want 1", n)
	}

	res, err := s.Advance(ctx, fixedEngine(t, 10, 10))
	if err != nil {
		t.Fatalf("guard not released after failure: %v", err)
	}
	if res.Round != 2 {
		t.Errorf("next round = %d, want 2", res.Round)
	}
}

func TestAdvance_CancelledContextLeavesStateUnchanged(t *testing.T) {
	s := newTestSession(t, 2)
	gate := newGatedProvider()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		_, err := s.Advance(ctx, engine.New(testTable(t), gate))
		done <- err
	}()
	<-gate.entered
	cancel()

	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Advance() error = %v, want context.Canceled", err)
	}
	if st := s.Status(); st.CurrentRound != 0 || st.Status != models.StatusInitialized {
		t.Errorf("state changed after cancellation: %+v", st)
	}
}

func TestHistory_ReturnsCopy(t *testing.T) {
	s := newTestSession(t, 2)
	if _, err := s.Advance(context.Background(), fixedEngine(t, 10, 10)); err != nil {
		t.Fatal(err)
	}
	h := s.History()
	h[0].AMPayoff = -1
	if s.History()[0].AMPayoff != 100 {
		t.Error("History() exposed internal state")
	}
}

func TestExport_Summary(t *testing.T) {
	s := newTestSession(t, 3)
	picks := map[int][2]int{1: {10, 10}, 2: {20, 10}, 3: {15, 12}}
	e := engine.New(testTable(t), decision.Func(func(ctx context.Context, req decision.Request) (decision.Decision, error) {
		pair := picks[req.Round]
		if req.Party == models.PartyAM {
			return decision.Decision{Investment: pair[0]}, nil
		}
		return decision.Decision{Investment: pair[1]}, nil
	}))
	for i := 0; i < 3; i++ {
		if _, err := s.Advance(context.Background(), e); err != nil {
			t.Fatal(err)
		}
	}

	got := s.Export().Summary
	want := Summary{
		TotalRounds:        3,
		AMTotalPayoff:      385,
		MCTotalPayoff:      346.5,
		TotalWelfare:       731.5,
		AvgWelfarePerRound: 243.83,
		AvgAMInvestment:    15,
		AvgMCInvestment:    10.67,
		CooperationIndex:   0.667,
		Status:             models.StatusComplete,
	}
	if got != want {
		t.Errorf("Summary = %+v\nwant      %+v", got, want)
	}
}

func TestExport_Empty(t *testing.T) {
	s := newTestSession(t, 2)
	exp := s.Export()
	if exp.Summary != (Summary{Status: models.StatusInitialized}) {
		t.Errorf("empty summary = %+v", exp.Summary)
	}
	if exp.Rounds == nil || len(exp.Rounds) != 0 {
		t.Errorf("Rounds = %v, want empty slice", exp.Rounds)
	}
	if exp.SimulationID != s.ID() {
		t.Errorf("SimulationID = %q", exp.SimulationID)
	}
}

type fakeChatter struct {
	reply string
	err   error
	got   decision.ChatRequest
}

func (f *fakeChatter) Chat(ctx context.Context, req decision.ChatRequest) (string, error) {
	f.got = req
	return f.reply, f.err
}

func TestChat(t *testing.T) {
	s := newTestSession(t, 3)
	ctx := context.Background()
	if _, err := s.Advance(ctx, fixedEngine(t, 10, 10)); err != nil {
		t.Fatal(err)
	}
	before := s.Status()

	c := &fakeChatter{reply: "We matched them."}
	reply, err := s.Chat(ctx, c, models.PartyMC, "why?")
	if err != nil {
		t.Fatal(err)
	}
	if reply.Agent != "MC" || reply.Response != "We matched them." || reply.Fallback {
		t.Errorf("reply = %+v", reply)
	}
	if c.got.MyCumulative != 90 || c.got.PartnerCumulative != 100 || c.got.CurrentRound != 1 {
		t.Errorf("chat request not from MC's perspective: %+v", c.got)
	}
	if c.got.Strategy != models.StrategyNeutral {
		t.Errorf("strategy = %s", c.got.Strategy)
	}

	reply, err = s.Chat(ctx, &fakeChatter{err: errors.New("down")}, models.PartyAM, "hello")
	if err != nil {
		t.Fatal(err)
	}
	if !reply.Fallback || reply.Response != decision.ChatFallback(models.PartyAM) {
		t.Errorf("expected fallback reply, got %+v", reply)
	}

	reply, _ = s.Chat(ctx, nil, models.PartyAM, "hello")
	if !reply.Fallback {
		t.Error("nil chatter should fall back")
	}

	if after := s.Status(); after != before {
		t.Error("Chat() changed session state")
	}
}

func TestChat_Validation(t *testing.T) {
	s := newTestSession(t, 1)
	if _, err := s.Chat(context.Background(), nil, "xx", "hi"); models.FieldOf(err) != "agent" {
		t.Errorf("invalid party error = %v", err)
	}
	if _, err := s.Chat(context.Background(), nil, models.PartyAM, "  "); models.FieldOf(err) != "message" {
		t.Errorf("empty message error = %v", err)
	}
}

func TestWriteExport(t *testing.T) {
	s := newTestSession(t, 1)
	if _, err := s.Advance(context.Background(), fixedEngine(t, 10, 10)); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "out", "export.json")
	if err := WriteExport(path, s.Export()); err != nil {
		t.Fatalf("WriteExport() error = %v", err)
	}

	got, err := ReadExport(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.SimulationID != s.ID() || len(got.Rounds) != 1 || got.Summary.TotalWelfare != 190 {
		t.Errorf("ReadExport() = %+v", got)
	}
}

func TestReadExport_Missing(t *testing.T) {
	if _, err := ReadExport(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Error("expected error for missing file")
	}
}
