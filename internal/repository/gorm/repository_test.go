package gormrepository

import (
	"context"
	"strconv"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"koumei/internal/config"
	"koumei/internal/db"
	"koumei/internal/models"
	"koumei/internal/repository"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	conn, err := db.Open(config.DBConfig{Driver: "sqlite", DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close(conn) })
	require.NoError(t, db.AutoMigrate(conn))
	return New(conn.Gorm)
}

func insertMarket(t *testing.T, s *Store, m *models.Market) {
	t.Helper()
	err := s.InTx(context.Background(), func(tx *gorm.DB) error {
		return s.CreateMarketTx(context.Background(), tx, m)
	})
	require.NoError(t, err)
}

func testMarket(id string) *models.Market {
	n, _ := strconv.ParseInt(id, 10, 64)
	return &models.Market{
		ID:             id,
		TxID:           "tx-" + id,
		Initiator:      "alice",
		Timestamp:      1700000000 + n,
		Title:          "market " + id,
		Image:          "https://img.example.com/m.png",
		Description:    "d",
		OutcomeCount:   2,
		Currency:       "KMC",
		LiquidityParam: 100,
		Margin:         decimal.NewFromInt(1000000),
		TotalFunds:     decimal.NewFromInt(1000000),
		EndHeight:      100 + n,
		RevealedChoice: models.ChoiceUnset,
		VerdictChoice:  models.ChoiceUnset,
	}
}

func TestGetMarket_MissingIsNilNil(t *testing.T) {
	s := newTestStore(t)
	m, err := s.GetMarket(context.Background(), "404")
	require.NoError(t, err)
	require.Nil(t, m)
}

func TestListMarkets_FiltersAndPagination(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	for i := 1; i <= 5; i++ {
		m := testMarket(strconv.Itoa(i))
		if i%2 == 0 {
			m.Initiator = "bob"
			m.State = models.MarketStateFinished
		}
		insertMarket(t, s, m)
	}

	all, err := s.ListMarkets(ctx, repository.ListMarketsParams{})
	require.NoError(t, err)
	require.Len(t, all, 5)
	// Default ordering is by end height, newest first.
	require.Equal(t, "5", all[0].ID)

	bob := "bob"
	byInitiator, err := s.ListMarkets(ctx, repository.ListMarketsParams{Initiator: &bob})
	require.NoError(t, err)
	require.Len(t, byInitiator, 2)

	finished := models.MarketStateFinished
	byState, err := s.ListMarkets(ctx, repository.ListMarketsParams{State: &finished})
	require.NoError(t, err)
	require.Len(t, byState, 2)

	txid := "tx-3"
	byTx, err := s.ListMarkets(ctx, repository.ListMarketsParams{TxID: &txid})
	require.NoError(t, err)
	require.Len(t, byTx, 1)
	require.Equal(t, "3", byTx[0].ID)

	asc := true
	page, err := s.ListMarkets(ctx, repository.ListMarketsParams{Limit: 2, Offset: 2, Asc: &asc})
	require.NoError(t, err)
	require.Len(t, page, 2)
	require.Equal(t, "3", page[0].ID)

	total, err := s.CountMarkets(ctx, repository.ListMarketsParams{Initiator: &bob})
	require.NoError(t, err)
	require.Equal(t, int64(2), total)
}

func TestUpdateMarketTx(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	insertMarket(t, s, testMarket("1"))

	err := s.InTx(ctx, func(tx *gorm.DB) error {
		return s.UpdateMarketTx(ctx, tx, "1", map[string]any{
			"state":           models.MarketStateRevealing,
			"revealed_choice": int32(1),
		})
	})
	require.NoError(t, err)

	m, err := s.GetMarket(ctx, "1")
	require.NoError(t, err)
	require.Equal(t, models.MarketStateRevealing, m.State)
	require.Equal(t, int32(1), m.RevealedChoice)
}

func TestIncrementMarketTotalTx(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	insertMarket(t, s, testMarket("1"))

	err := s.InTx(ctx, func(tx *gorm.DB) error {
		if err := s.IncrementMarketTotalTx(ctx, tx, "1", decimal.NewFromInt(500)); err != nil {
			return err
		}
		return s.IncrementMarketTotalTx(ctx, tx, "1", decimal.NewFromInt(-200))
	})
	require.NoError(t, err)

	m, err := s.GetMarket(ctx, "1")
	require.NoError(t, err)
	require.True(t, m.TotalFunds.Equal(decimal.NewFromInt(1000300)))
}

func TestAddBalanceTx_CreateThenIncrement(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.InTx(ctx, func(tx *gorm.DB) error {
		if err := s.AddBalanceTx(ctx, tx, "alice", "KMC", decimal.NewFromInt(10)); err != nil {
			return err
		}
		return s.AddBalanceTx(ctx, tx, "alice", "KMC", decimal.NewFromInt(32))
	})
	require.NoError(t, err)

	amount, err := s.GetBalance(ctx, "alice", "KMC")
	require.NoError(t, err)
	require.True(t, amount.Equal(decimal.NewFromInt(42)))
}

func TestNextSequenceTx_Monotonic(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var got []int64
	err := s.InTx(ctx, func(tx *gorm.DB) error {
		for i := 0; i < 3; i++ {
			n, err := s.NextSequenceTx(ctx, tx, "market_max_id")
			if err != nil {
				return err
			}
			got = append(got, n)
		}
		// Sequences are independent by name.
		other, err := s.NextSequenceTx(ctx, tx, "other")
		if err != nil {
			return err
		}
		got = append(got, other)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, []int64{1, 2, 3, 1}, got)
}

func TestPositions_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	insertMarket(t, s, testMarket("1"))

	err := s.InTx(ctx, func(tx *gorm.DB) error {
		if err := s.CreatePositionTx(ctx, tx, &models.Position{
			MarketID: "1", Address: "bob", ChoiceIndex: 0, Share: decimal.Zero,
		}); err != nil {
			return err
		}
		if err := s.IncrementPositionShareTx(ctx, tx, "1", "bob", 0, decimal.NewFromInt(10)); err != nil {
			return err
		}
		pos, err := s.GetPositionTx(ctx, tx, "1", "bob", 0)
		if err != nil {
			return err
		}
		require.NotNil(t, pos)
		require.True(t, pos.Share.Equal(decimal.NewFromInt(10)))

		missing, err := s.GetPositionTx(ctx, tx, "1", "bob", 1)
		if err != nil {
			return err
		}
		require.Nil(t, missing)

		return s.SetPositionShareTx(ctx, tx, "1", "bob", 0, decimal.Zero)
	})
	require.NoError(t, err)

	addr := "bob"
	rows, err := s.ListPositions(ctx, repository.ListPositionsParams{Address: &addr})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.True(t, rows[0].Share.IsZero())
}

func TestListTrades_FilterByTrader(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	insertMarket(t, s, testMarket("1"))

	err := s.InTx(ctx, func(tx *gorm.DB) error {
		for i, trader := range []string{"bob", "carol", "bob"} {
			trade := &models.Trade{
				MarketID:    "1",
				TxID:        "trade-tx-" + strconv.Itoa(i),
				Trader:      trader,
				ChoiceIndex: 0,
				ShareDelta:  decimal.NewFromInt(1),
				Amount:      decimal.NewFromInt(10),
				Height:      int64(i),
				Timestamp:   int64(1000 + i),
			}
			if err := s.CreateTradeTx(ctx, tx, trade); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	bob := "bob"
	rows, err := s.ListTrades(ctx, repository.ListTradesParams{Trader: &bob})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	// Newest first by default.
	require.Equal(t, int64(1002), rows[0].Timestamp)

	total, err := s.CountTrades(ctx, repository.ListTradesParams{Trader: &bob})
	require.NoError(t, err)
	require.Equal(t, int64(2), total)
}

func TestNormalizeLimit(t *testing.T) {
	if got := normalizeLimit(0, 50); got != 50 {
		t.Fatalf("limit=%d want=50", got)
	}
	if got := normalizeLimit(-3, 50); got != 50 {
		t.Fatalf("limit=%d want=50", got)
	}
	if got := normalizeLimit(900, 50); got != 500 {
		t.Fatalf("limit=%d want=500", got)
	}
	if got := normalizeLimit(25, 50); got != 25 {
		t.Fatalf("limit=%d want=25", got)
	}
}
