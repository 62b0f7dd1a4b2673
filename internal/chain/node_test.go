package chain

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"koumei/internal/config"
	"koumei/internal/db"
	"koumei/internal/ledger"
	"koumei/internal/lmsr"
	"koumei/internal/market"
	"koumei/internal/models"
	"koumei/internal/quorum"
	"koumei/internal/repository"
	gormrepository "koumei/internal/repository/gorm"
)

type testEnv struct {
	node  *Node
	repo  repository.Repository
	priv  []ed25519.PrivateKey
	set   quorum.Set
	clock *Clock
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	conn, err := db.Open(config.DBConfig{Driver: "sqlite", DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close(conn) })
	require.NoError(t, db.AutoMigrate(conn))
	repo := gormrepository.New(conn.Gorm)

	privs := make([]ed25519.PrivateKey, 3)
	keys := make([]string, 3)
	for i := range privs {
		pub, priv, err := ed25519.GenerateKey(rand.Reader)
		require.NoError(t, err)
		privs[i] = priv
		keys[i] = hex.EncodeToString(pub)
	}

	balances := &ledger.BalanceLedger{Repo: repo}
	logger := zap.NewNop()
	clock := NewClock(0)
	node := &Node{
		Repo: repo,
		Ledger: &market.Ledger{
			Repo:      repo,
			Balances:  balances,
			Pricing:   lmsr.New(8),
			Logger:    logger,
			MinMargin: decimal.NewFromInt(1000000),
		},
		States: &market.StateMachine{
			Repo:           repo,
			Logger:         logger,
			AnnouncePeriod: 5,
		},
		Settler: &market.Settler{
			Repo:     repo,
			Balances: balances,
			Logger:   logger,
		},
		Delegates: quorum.NewRegistry(keys),
		Clock:     clock,
		Logger:    logger,
	}

	require.NoError(t, balances.Deposit(context.Background(), "alice", "KMC", decimal.NewFromInt(5000000)))
	require.NoError(t, balances.Deposit(context.Background(), "bob", "KMC", decimal.NewFromInt(1000000)))

	return &testEnv{node: node, repo: repo, priv: privs, set: quorum.Set(keys), clock: clock}
}

func (e *testEnv) tickTo(height int64) {
	for e.clock.Height() < height {
		e.clock.Tick()
	}
}

func (e *testEnv) createMarket(t *testing.T) string {
	t.Helper()
	res, err := e.node.Submit(context.Background(), Event{
		Type:   EventCreateMarket,
		Sender: "alice",
		CreateMarket: &market.CreateMarketParams{
			Title:          "Will the bridge open before the festival?",
			Image:          "https://img.example.com/markets/bridge.png",
			Description:    strings.Repeat("Resolution source and criteria. ", 40),
			Outcomes:       []string{"Yes", "No"},
			Currency:       "KMC",
			Margin:         decimal.NewFromInt(1000000),
			LiquidityParam: 100,
			EndHeight:      10,
		},
	})
	require.NoError(t, err)
	require.NotEmpty(t, res.MarketID)
	require.NotEmpty(t, res.TxID)
	return res.MarketID
}

func (e *testEnv) signVerdict(marketID string, choice int32, n int) string {
	entries := make([]string, n)
	for i := 0; i < n; i++ {
		sig := ed25519.Sign(e.priv[i], quorum.Message(marketID, choice))
		entries[i] = e.set[i] + hex.EncodeToString(sig)
	}
	return strings.Join(entries, ",")
}

func TestSubmit_RequiresSender(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.node.Submit(context.Background(), Event{Type: EventSettle, Sender: "  ", Settle: &SettleParams{MarketID: "1"}})
	require.Error(t, err)
}

func TestSubmit_UnknownEventType(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.node.Submit(context.Background(), Event{Type: "mint", Sender: "alice"})
	require.Error(t, err)
}

func TestSubmit_MissingParams(t *testing.T) {
	env := newTestEnv(t)
	for _, typ := range []EventType{
		EventCreateMarket, EventTrade, EventReveal, EventVerdict,
		EventAdvanceState, EventSettle, EventAppeal, EventComment,
	} {
		_, err := env.node.Submit(context.Background(), Event{Type: typ, Sender: "alice"})
		require.Error(t, err, "type %s", typ)
	}
}

func TestSubmit_FullMarketLifecycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	marketID := env.createMarket(t)

	// Trade while ongoing.
	_, err := env.node.Submit(ctx, Event{
		Type:   EventTrade,
		Sender: "bob",
		Trade:  &TradeParams{MarketID: marketID, Choice: 0, ShareDelta: decimal.NewFromInt(10)},
	})
	require.NoError(t, err)

	// Comment and appeal are passthrough records.
	_, err = env.node.Submit(ctx, Event{
		Type:    EventComment,
		Sender:  "bob",
		Comment: &CommentParams{MarketID: marketID, Content: "looks mispriced"},
	})
	require.NoError(t, err)
	_, err = env.node.Submit(ctx, Event{
		Type:   EventAppeal,
		Sender: "bob",
		Appeal: &AppealParams{MarketID: marketID, Content: "resolution source is down", Amount: decimal.NewFromInt(100)},
	})
	require.NoError(t, err)

	// A delegate opens the reveal phase after the end height.
	env.tickTo(11)
	_, err = env.node.Submit(ctx, Event{
		Type:            EventAdvanceState,
		Sender:          "delegate0",
		SenderPublicKey: strings.ToUpper(string(env.set[0])),
		Advance:         &AdvanceParams{MarketID: marketID, Target: models.MarketStateRevealing},
	})
	require.NoError(t, err)

	// The initiator reveals.
	_, err = env.node.Submit(ctx, Event{
		Type:   EventReveal,
		Sender: "alice",
		Reveal: &RevealParams{MarketID: marketID, Choice: 0},
	})
	require.NoError(t, err)

	// Trading is closed from the reveal phase on.
	_, err = env.node.Submit(ctx, Event{
		Type:   EventTrade,
		Sender: "bob",
		Trade:  &TradeParams{MarketID: marketID, Choice: 0, ShareDelta: decimal.NewFromInt(1)},
	})
	require.ErrorIs(t, err, market.ErrTradeClosed)

	// Finish after the announce period.
	env.tickTo(17)
	_, err = env.node.Submit(ctx, Event{
		Type:            EventAdvanceState,
		Sender:          "delegate0",
		SenderPublicKey: string(env.set[0]),
		Advance:         &AdvanceParams{MarketID: marketID, Target: models.MarketStateFinished},
	})
	require.NoError(t, err)

	// Winner and initiator both settle.
	_, err = env.node.Submit(ctx, Event{
		Type:   EventSettle,
		Sender: "bob",
		Settle: &SettleParams{MarketID: marketID},
	})
	require.NoError(t, err)
	_, err = env.node.Submit(ctx, Event{
		Type:   EventSettle,
		Sender: "alice",
		Settle: &SettleParams{MarketID: marketID},
	})
	require.NoError(t, err)

	bob, err := env.repo.GetBalance(ctx, "bob", "KMC")
	require.NoError(t, err)
	require.True(t, bob.Equal(decimal.NewFromInt(1048751)), "bob=%s", bob)

	// Conservation: every unit debited somewhere is credited somewhere.
	alice, err := env.repo.GetBalance(ctx, "alice", "KMC")
	require.NoError(t, err)
	require.True(t, alice.Add(bob).Equal(decimal.NewFromInt(6000000)), "alice=%s bob=%s", alice, bob)

	settlements, err := env.repo.ListSettlements(ctx, repository.ListSettlementsParams{MarketID: &marketID})
	require.NoError(t, err)
	require.Len(t, settlements, 2)
}

func TestSubmit_VerdictOverridesAndSettles(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	marketID := env.createMarket(t)

	_, err := env.node.Submit(ctx, Event{
		Type:   EventTrade,
		Sender: "bob",
		Trade:  &TradeParams{MarketID: marketID, Choice: 1, ShareDelta: decimal.NewFromInt(10)},
	})
	require.NoError(t, err)

	// A 2/3 quorum finalizes outcome 1 straight from the ongoing state.
	_, err = env.node.Submit(ctx, Event{
		Type:    EventVerdict,
		Sender:  "delegate0",
		Verdict: &VerdictParams{MarketID: marketID, Choice: 1, SignatureSet: env.signVerdict(marketID, 1, 2)},
	})
	require.NoError(t, err)

	m, err := env.repo.GetMarket(ctx, marketID)
	require.NoError(t, err)
	require.Equal(t, models.MarketStateFinished, m.State)
	require.Equal(t, int32(1), m.CorrectChoice())

	_, err = env.node.Submit(ctx, Event{
		Type:   EventSettle,
		Sender: "bob",
		Settle: &SettleParams{MarketID: marketID},
	})
	require.NoError(t, err)

	bob, err := env.repo.GetBalance(ctx, "bob", "KMC")
	require.NoError(t, err)
	require.True(t, bob.Equal(decimal.NewFromInt(1048751)), "bob=%s", bob)
}

func TestSubmit_VerdictBelowQuorumRejected(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	marketID := env.createMarket(t)

	_, err := env.node.Submit(ctx, Event{
		Type:    EventVerdict,
		Sender:  "delegate0",
		Verdict: &VerdictParams{MarketID: marketID, Choice: 0, SignatureSet: env.signVerdict(marketID, 0, 1)},
	})
	require.ErrorIs(t, err, quorum.ErrQuorumNotMet)
}

func TestSubmit_AppealOnMissingMarket(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.node.Submit(context.Background(), Event{
		Type:   EventAppeal,
		Sender: "bob",
		Appeal: &AppealParams{MarketID: "404", Content: "x", Amount: decimal.Zero},
	})
	require.ErrorIs(t, err, market.ErrMarketNotFound)
}

func TestClock_Monotonic(t *testing.T) {
	c := NewClock(7)
	require.Equal(t, int64(7), c.Height())
	require.Equal(t, int64(8), c.Tick())
	require.Equal(t, int64(9), c.Tick())
	require.Equal(t, int64(9), c.Height())
}
