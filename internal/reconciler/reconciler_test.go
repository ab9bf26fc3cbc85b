package reconciler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/rportela/live-bet-bot/internal/fixtures"
	"github.com/rportela/live-bet-bot/internal/ledger"
	"github.com/rportela/live-bet-bot/internal/strategy"
	"github.com/rportela/live-bet-bot/internal/tracker"
	"github.com/rportela/live-bet-bot/pkg/contracts/events"
)

// --- fakes ---

type fakeSource struct {
	snaps map[int]*fixtures.Snapshot
	errs  map[int]error
}

func (s *fakeSource) ByID(_ context.Context, fixtureID int) (*fixtures.Snapshot, error) {
	if err := s.errs[fixtureID]; err != nil {
		return nil, err
	}
	return s.snaps[fixtureID], nil
}

type resolvedEntry struct {
	fixtureID int
	betType   string
	outcome   string
	final     string
}

type fakeLedger struct {
	unresolved map[string]ledger.BetRecord
	resolved   []resolvedEntry
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{unresolved: map[string]ledger.BetRecord{}}
}

func betKey(fixtureID int, betType string) string {
	return fmt.Sprintf("%d/%s", fixtureID, betType)
}

func (l *fakeLedger) ListUnresolvedOlderThan(_ context.Context, cutoff time.Time, types ...string) ([]ledger.BetRecord, error) {
	var out []ledger.BetRecord
	for _, b := range l.unresolved {
		if !b.PlacedAt.Before(cutoff) {
			continue
		}
		if len(types) > 0 {
			match := false
			for _, t := range types {
				if t == b.Type {
					match = true
				}
			}
			if !match {
				continue
			}
		}
		out = append(out, b)
	}
	return out, nil
}

func (l *fakeLedger) ListUnresolvedByFixture(_ context.Context, fixtureID int) ([]ledger.BetRecord, error) {
	var out []ledger.BetRecord
	for _, b := range l.unresolved {
		if b.FixtureID == fixtureID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (l *fakeLedger) MoveToResolved(_ context.Context, fixtureID int, betType, outcome, finalScore string) (bool, error) {
	k := betKey(fixtureID, betType)
	if _, ok := l.unresolved[k]; !ok {
		return false, nil
	}
	delete(l.unresolved, k)
	l.resolved = append(l.resolved, resolvedEntry{fixtureID, betType, outcome, finalScore})
	return true, nil
}

func (l *fakeLedger) RemoveUnresolved(_ context.Context, fixtureID int, betType string) error {
	delete(l.unresolved, betKey(fixtureID, betType))
	return nil
}

type fakeStates struct {
	m       map[int]*tracker.MatchState
	deleted []int
}

func (s *fakeStates) Get(_ context.Context, fixtureID int) (*tracker.MatchState, error) {
	return s.m[fixtureID], nil
}

func (s *fakeStates) Delete(_ context.Context, fixtureID int) error {
	delete(s.m, fixtureID)
	s.deleted = append(s.deleted, fixtureID)
	return nil
}

type fakeNotifier struct {
	sent []string
	err  error
}

func (n *fakeNotifier) Send(_ context.Context, text string) error {
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, text)
	return nil
}

type fakePublisher struct {
	settled []events.BetSettled
}

func (p *fakePublisher) PublishBetPlaced(_ context.Context, _ events.BetPlaced) error { return nil }

func (p *fakePublisher) PublishBetSettled(_ context.Context, e events.BetSettled) error {
	p.settled = append(p.settled, e)
	return nil
}

// --- helpers ---

func newTestReconciler() (*Reconciler, *fakeSource, *fakeLedger, *fakeStates, *fakeNotifier, *fakePublisher) {
	source := &fakeSource{snaps: map[int]*fixtures.Snapshot{}, errs: map[int]error{}}
	bets := newFakeLedger()
	states := &fakeStates{m: map[int]*tracker.MatchState{}}
	notifier := &fakeNotifier{}
	pub := &fakePublisher{}
	r := &Reconciler{
		Log:      zap.NewNop(),
		Strategy: strategy.Default(),
		Source:   source,
		Bets:     bets,
		States:   states,
		Notifier: notifier,
		Events:   pub,
		Wait:     20 * time.Minute,
	}
	return r, source, bets, states, notifier, pub
}

func staleBet(fixtureID int, betType, refScore string) ledger.BetRecord {
	return ledger.BetRecord{
		FixtureID: fixtureID,
		Type:      betType,
		MatchName: "Flamengo vs Santos",
		RefScore:  refScore,
		PlacedAt:  time.Now().UTC().Add(-time.Hour),
	}
}

func finishedSnap(t *testing.T, fixtureID int, score string) *fixtures.Snapshot {
	t.Helper()
	s, err := fixtures.ParseScore(score)
	if err != nil {
		t.Fatal(err)
	}
	return &fixtures.Snapshot{
		FixtureID: fixtureID,
		MatchName: "Flamengo vs Santos",
		Status:    fixtures.StatusFinished,
		Score:     s,
	}
}

// --- tests ---

func TestSweepResolvesChaseWin(t *testing.T) {
	r, source, bets, states, notifier, pub := newTestReconciler()
	var resolvedTypes []string
	r.OnResolved = func(betType, outcome string) {
		resolvedTypes = append(resolvedTypes, betType+"/"+outcome)
	}

	bets.unresolved[betKey(300, "chase80")] = staleBet(300, "chase80", "2-1")
	source.snaps[300] = finishedSnap(t, 300, "2-1")
	states.m[300] = &tracker.MatchState{FixtureID: 300}

	r.Sweep(context.Background())

	if len(bets.unresolved) != 0 {
		t.Errorf("unresolved = %v, want empty", bets.unresolved)
	}
	if len(bets.resolved) != 1 || bets.resolved[0].outcome != "win" || bets.resolved[0].final != "2-1" {
		t.Fatalf("resolved = %+v", bets.resolved)
	}
	if len(states.deleted) != 1 || states.deleted[0] != 300 {
		t.Errorf("state deletions = %v, want [300]", states.deleted)
	}
	if len(notifier.sent) != 1 || !strings.Contains(notifier.sent[0], "FINAL RESULT") {
		t.Errorf("notifications = %v", notifier.sent)
	}
	if len(pub.settled) != 1 || pub.settled[0].Source != "sweep" {
		t.Errorf("settled events = %+v", pub.settled)
	}
	if len(resolvedTypes) != 1 || resolvedTypes[0] != "chase80/win" {
		t.Errorf("OnResolved calls = %v", resolvedTypes)
	}
}

func TestSweepResolvesLoss(t *testing.T) {
	r, source, bets, _, notifier, _ := newTestReconciler()

	bets.unresolved[betKey(300, "chase80")] = staleBet(300, "chase80", "2-1")
	source.snaps[300] = finishedSnap(t, 300, "3-1")

	r.Sweep(context.Background())

	if len(bets.resolved) != 1 || bets.resolved[0].outcome != "loss" {
		t.Fatalf("resolved = %+v", bets.resolved)
	}
	if len(notifier.sent) != 1 || !strings.Contains(notifier.sent[0], "LOST") {
		t.Errorf("notifications = %v", notifier.sent)
	}
}

func TestSweepOverUnderPush(t *testing.T) {
	r, source, bets, _, notifier, _ := newTestReconciler()
	r.Strategy = strategy.Strategy{Windows: []strategy.Window{{
		ID:         "over32",
		Kind:       strategy.KindOverUnder,
		Status:     fixtures.StatusFirstHalf,
		MinuteFrom: 31,
		MinuteTo:   33,
		OverLine:   2,
		ResolveAt:  fixtures.StatusFinished,
	}}}

	bet := staleBet(300, "over32", "1-0")
	bet.OverLine = 2
	bets.unresolved[betKey(300, "over32")] = bet
	source.snaps[300] = finishedSnap(t, 300, "1-1")

	r.Sweep(context.Background())

	if len(bets.resolved) != 1 || bets.resolved[0].outcome != "push" {
		t.Fatalf("resolved = %+v", bets.resolved)
	}
	if len(notifier.sent) != 1 || !strings.Contains(notifier.sent[0], "PUSH") {
		t.Errorf("notifications = %v", notifier.sent)
	}
}

func TestSweepSkipsFreshBets(t *testing.T) {
	r, source, bets, _, notifier, _ := newTestReconciler()

	fresh := staleBet(300, "chase80", "2-1")
	fresh.PlacedAt = time.Now().UTC()
	bets.unresolved[betKey(300, "chase80")] = fresh
	source.snaps[300] = finishedSnap(t, 300, "2-1")

	r.Sweep(context.Background())

	if len(bets.resolved) != 0 || len(notifier.sent) != 0 {
		t.Errorf("fresh bet was touched: resolved=%v sent=%v", bets.resolved, notifier.sent)
	}
}

func TestSweepKeepsBetWhenFixtureUnavailable(t *testing.T) {
	r, source, bets, _, notifier, _ := newTestReconciler()

	bets.unresolved[betKey(300, "chase80")] = staleBet(300, "chase80", "2-1")
	bets.unresolved[betKey(301, "chase80")] = staleBet(301, "chase80", "1-1")
	bets.unresolved[betKey(302, "chase80")] = staleBet(302, "chase80", "0-0")
	// 300: API error, 301: not found, 302: still in progress
	source.errs[300] = errors.New("api down")
	source.snaps[302] = &fixtures.Snapshot{
		FixtureID: 302,
		Status:    fixtures.StatusSecondHalf,
		Score:     fixtures.Score{},
	}

	r.Sweep(context.Background())

	if len(bets.unresolved) != 3 {
		t.Errorf("unresolved = %d, want all 3 kept", len(bets.unresolved))
	}
	if len(notifier.sent) != 0 {
		t.Errorf("notifications = %v, want none", notifier.sent)
	}
}

func TestSweepHalftimeBetUsesHalftimeScore(t *testing.T) {
	r, source, bets, _, _, _ := newTestReconciler()

	bets.unresolved[betKey(300, "primary36")] = staleBet(300, "primary36", "1-1")
	s := finishedSnap(t, 300, "2-1")
	s.HalftimeScore = fixtures.Score{Home: 1, Away: 1}
	s.HalftimeScoreKnown = true
	source.snaps[300] = s

	r.Sweep(context.Background())

	if len(bets.resolved) != 1 || bets.resolved[0].outcome != "win" || bets.resolved[0].final != "1-1" {
		t.Fatalf("resolved = %+v, want win on the halftime score", bets.resolved)
	}
}

func TestSweepKeepsHalftimeBetWithoutHalftimeScore(t *testing.T) {
	r, source, bets, _, notifier, _ := newTestReconciler()

	bets.unresolved[betKey(300, "primary36")] = staleBet(300, "primary36", "1-1")
	source.snaps[300] = finishedSnap(t, 300, "2-1") // no halftime score reported

	r.Sweep(context.Background())

	if len(bets.resolved) != 0 || len(notifier.sent) != 0 {
		t.Errorf("bet without settlement score was touched: resolved=%v sent=%v", bets.resolved, notifier.sent)
	}
	if _, ok := bets.unresolved[betKey(300, "primary36")]; !ok {
		t.Error("bet should stay pending")
	}
}

func TestSweepKeepsMalformedRefScore(t *testing.T) {
	r, source, bets, _, notifier, _ := newTestReconciler()

	bets.unresolved[betKey(300, "chase80")] = staleBet(300, "chase80", "junk")
	source.snaps[300] = finishedSnap(t, 300, "2-1")

	r.Sweep(context.Background())

	if len(bets.resolved) != 0 || len(notifier.sent) != 0 {
		t.Errorf("malformed bet was settled: resolved=%v sent=%v", bets.resolved, notifier.sent)
	}
	if _, ok := bets.unresolved[betKey(300, "chase80")]; !ok {
		t.Error("malformed bet must stay pending, never default to an outcome")
	}
}

func TestSweepSkipsUnknownBetType(t *testing.T) {
	r, source, bets, _, notifier, _ := newTestReconciler()

	bets.unresolved[betKey(300, "retired_window")] = staleBet(300, "retired_window", "1-1")
	source.snaps[300] = finishedSnap(t, 300, "1-1")

	r.Sweep(context.Background())

	if len(bets.resolved) != 0 || len(notifier.sent) != 0 {
		t.Errorf("unknown type was settled: resolved=%v sent=%v", bets.resolved, notifier.sent)
	}
}

func TestSweepNotifyFailureKeepsBet(t *testing.T) {
	r, source, bets, states, notifier, _ := newTestReconciler()
	notifier.err = errors.New("telegram down")

	bets.unresolved[betKey(300, "chase80")] = staleBet(300, "chase80", "2-1")
	source.snaps[300] = finishedSnap(t, 300, "2-1")
	states.m[300] = &tracker.MatchState{FixtureID: 300}

	r.Sweep(context.Background())

	if len(bets.resolved) != 0 {
		t.Errorf("resolved = %v, want none before delivery", bets.resolved)
	}
	if _, ok := bets.unresolved[betKey(300, "chase80")]; !ok {
		t.Error("bet must stay pending when the notification fails")
	}
	if len(states.deleted) != 0 {
		t.Errorf("state deletions = %v, want none", states.deleted)
	}
}

func TestSweepKeepsStateWhileOtherBetsPending(t *testing.T) {
	r, source, bets, states, notifier, _ := newTestReconciler()

	// over32 still pending, primary36 already settled live as a loss and
	// left behind as a chase linkage; both went stale together
	over := staleBet(300, "over32", "1-0")
	over.OverLine = 2.5
	over.PlacedAt = time.Now().UTC().Add(-2 * time.Hour)
	bets.unresolved[betKey(300, "over32")] = over
	bets.unresolved[betKey(300, "primary36")] = staleBet(300, "primary36", "0-1")

	s := finishedSnap(t, 300, "2-1")
	s.HalftimeScore = fixtures.Score{Home: 0, Away: 1}
	s.HalftimeScoreKnown = true
	source.snaps[300] = s

	st := &tracker.MatchState{FixtureID: 300}
	ws := st.Window("primary36")
	ws.Placed = true
	ws.BetMade = true
	ws.Checked = true
	states.m[300] = st

	r.Sweep(context.Background())

	if len(bets.resolved) != 1 || bets.resolved[0].betType != "over32" {
		t.Fatalf("resolved = %+v, want only the over bet", bets.resolved)
	}
	if len(notifier.sent) != 1 {
		t.Errorf("notifications = %d, want 1 (linkage must stay silent)", len(notifier.sent))
	}
	if len(bets.unresolved) != 0 {
		t.Errorf("unresolved = %v, want linkage row removed", bets.unresolved)
	}
	if _, ok := states.m[300]; ok {
		t.Error("state should be collected once nothing references the fixture")
	}
}

func TestSweepCleansCheckedLinkageSilently(t *testing.T) {
	r, source, bets, states, notifier, _ := newTestReconciler()

	bets.unresolved[betKey(300, "primary36")] = staleBet(300, "primary36", "1-1")
	s := finishedSnap(t, 300, "2-1")
	s.HalftimeScore = fixtures.Score{Home: 0, Away: 1}
	s.HalftimeScoreKnown = true
	source.snaps[300] = s

	// the live path already settled this window; the row is only a chase linkage
	st := &tracker.MatchState{FixtureID: 300}
	ws := st.Window("primary36")
	ws.Placed = true
	ws.BetMade = true
	ws.Checked = true
	states.m[300] = st

	r.Sweep(context.Background())

	if _, ok := bets.unresolved[betKey(300, "primary36")]; ok {
		t.Error("checked linkage row should be removed")
	}
	if len(bets.resolved) != 0 {
		t.Errorf("resolved = %v, want no duplicate settlement", bets.resolved)
	}
	if len(notifier.sent) != 0 {
		t.Errorf("notifications = %v, want no duplicate delivery", notifier.sent)
	}
}
