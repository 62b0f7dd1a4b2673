package market

import (
	"context"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"koumei/internal/config"
	"koumei/internal/db"
	"koumei/internal/ledger"
	"koumei/internal/lmsr"
	"koumei/internal/models"
	"koumei/internal/repository"
	gormrepository "koumei/internal/repository/gorm"
)

func newTestRepo(t *testing.T) repository.Repository {
	t.Helper()
	conn, err := db.Open(config.DBConfig{Driver: "sqlite", DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close(conn) })
	require.NoError(t, db.AutoMigrate(conn))
	return gormrepository.New(conn.Gorm)
}

func newTestLedger(t *testing.T) (*Ledger, repository.Repository) {
	t.Helper()
	repo := newTestRepo(t)
	l := &Ledger{
		Repo:      repo,
		Balances:  &ledger.BalanceLedger{Repo: repo},
		Pricing:   lmsr.New(8),
		Logger:    zap.NewNop(),
		MinMargin: decimal.NewFromInt(1000000),
	}
	return l, repo
}

func fund(t *testing.T, repo repository.Repository, address, currency string, amount int64) {
	t.Helper()
	bl := &ledger.BalanceLedger{Repo: repo}
	require.NoError(t, bl.Deposit(context.Background(), address, currency, decimal.NewFromInt(amount)))
}

func balanceOf(t *testing.T, repo repository.Repository, address, currency string) decimal.Decimal {
	t.Helper()
	amount, err := repo.GetBalance(context.Background(), address, currency)
	require.NoError(t, err)
	return amount
}

func validCreateParams() CreateMarketParams {
	return CreateMarketParams{
		Title:          "Will it rain in the capital tomorrow?",
		Image:          "https://img.example.com/markets/rain.png",
		Description:    strings.Repeat("Resolution source and criteria. ", 40),
		Outcomes:       []string{"Yes", "No"},
		Currency:       "KMC",
		Margin:         decimal.NewFromInt(1000000),
		LiquidityParam: 100,
		EndHeight:      100,
	}
}

var txSeq atomic.Int64

func txAt(sender string, height int64) Tx {
	return Tx{
		ID:        "tx-" + strconv.FormatInt(txSeq.Add(1), 10),
		Sender:    sender,
		Height:    height,
		Timestamp: 1700000000,
	}
}

func setMarket(t *testing.T, repo repository.Repository, id string, updates map[string]any) {
	t.Helper()
	err := repo.InTx(context.Background(), func(dbtx *gorm.DB) error {
		return repo.UpdateMarketTx(context.Background(), dbtx, id, updates)
	})
	require.NoError(t, err)
}

func createOngoingMarket(t *testing.T, l *Ledger, initiator string) *models.Market {
	t.Helper()
	fund(t, l.Repo, initiator, "KMC", 10000000)
	created, err := l.CreateMarket(context.Background(), txAt(initiator, 1), validCreateParams())
	require.NoError(t, err)
	return created
}
