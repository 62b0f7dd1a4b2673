package repository

import (
	"context"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"koumei/internal/models"
)

// Repository is the record store consumed by the market engines and the query
// handlers. Mutating methods are Tx-suffixed and run against an explicit
// transaction handle so that one event applies atomically or not at all;
// read-only projection methods run against the base connection.
type Repository interface {
	InTx(ctx context.Context, fn func(tx *gorm.DB) error) error

	// Markets.
	CreateMarketTx(ctx context.Context, tx *gorm.DB, item *models.Market) error
	GetMarket(ctx context.Context, id string) (*models.Market, error)
	GetMarketTx(ctx context.Context, tx *gorm.DB, id string) (*models.Market, error)
	UpdateMarketTx(ctx context.Context, tx *gorm.DB, id string, updates map[string]any) error
	IncrementMarketTotalTx(ctx context.Context, tx *gorm.DB, id string, delta decimal.Decimal) error
	ListMarkets(ctx context.Context, params ListMarketsParams) ([]models.Market, error)
	CountMarkets(ctx context.Context, params ListMarketsParams) (int64, error)

	// Outcomes.
	CreateOutcomeTx(ctx context.Context, tx *gorm.DB, item *models.Outcome) error
	ListOutcomes(ctx context.Context, marketID string) ([]models.Outcome, error)
	ListOutcomesTx(ctx context.Context, tx *gorm.DB, marketID string) ([]models.Outcome, error)
	IncrementOutcomeShareTx(ctx context.Context, tx *gorm.DB, marketID string, choice int32, delta decimal.Decimal) error

	// Positions.
	GetPositionTx(ctx context.Context, tx *gorm.DB, marketID, address string, choice int32) (*models.Position, error)
	CreatePositionTx(ctx context.Context, tx *gorm.DB, item *models.Position) error
	IncrementPositionShareTx(ctx context.Context, tx *gorm.DB, marketID, address string, choice int32, delta decimal.Decimal) error
	SetPositionShareTx(ctx context.Context, tx *gorm.DB, marketID, address string, choice int32, value decimal.Decimal) error
	ListPositionsByMarketAddressTx(ctx context.Context, tx *gorm.DB, marketID, address string) ([]models.Position, error)
	ListPositions(ctx context.Context, params ListPositionsParams) ([]models.Position, error)
	CountPositions(ctx context.Context, params ListPositionsParams) (int64, error)

	// Trades.
	CreateTradeTx(ctx context.Context, tx *gorm.DB, item *models.Trade) error
	ListTrades(ctx context.Context, params ListTradesParams) ([]models.Trade, error)
	CountTrades(ctx context.Context, params ListTradesParams) (int64, error)

	// Settlements.
	GetSettlementTx(ctx context.Context, tx *gorm.DB, marketID, address string) (*models.Settlement, error)
	CreateSettlementTx(ctx context.Context, tx *gorm.DB, item *models.Settlement) error
	ListSettlements(ctx context.Context, params ListSettlementsParams) ([]models.Settlement, error)
	CountSettlements(ctx context.Context, params ListSettlementsParams) (int64, error)

	// Reveals and verdicts.
	CreateRevealTx(ctx context.Context, tx *gorm.DB, item *models.Reveal) error
	GetReveal(ctx context.Context, marketID string) (*models.Reveal, error)
	CreateVerdictTx(ctx context.Context, tx *gorm.DB, item *models.Verdict) error
	GetVerdict(ctx context.Context, marketID string) (*models.Verdict, error)

	// Appeals and comments.
	CreateAppealTx(ctx context.Context, tx *gorm.DB, item *models.Appeal) error
	ListAppeals(ctx context.Context, params ListAppealsParams) ([]models.Appeal, error)
	CountAppeals(ctx context.Context, params ListAppealsParams) (int64, error)
	CreateCommentTx(ctx context.Context, tx *gorm.DB, item *models.Comment) error
	ListComments(ctx context.Context, params ListCommentsParams) ([]models.Comment, error)
	CountComments(ctx context.Context, params ListCommentsParams) (int64, error)

	// Balances.
	GetBalance(ctx context.Context, address, currency string) (decimal.Decimal, error)
	GetBalanceTx(ctx context.Context, tx *gorm.DB, address, currency string) (decimal.Decimal, error)
	AddBalanceTx(ctx context.Context, tx *gorm.DB, address, currency string, delta decimal.Decimal) error
	ListBalances(ctx context.Context, address string) ([]models.Balance, error)

	// Sequences.
	NextSequenceTx(ctx context.Context, tx *gorm.DB, name string) (int64, error)
}

type ListMarketsParams struct {
	Limit     int
	Offset    int
	Currency  *string
	Initiator *string
	State     *int16
	TxID      *string
	OrderBy   string
	Asc       *bool
}

type ListPositionsParams struct {
	Limit    int
	Offset   int
	MarketID *string
	Address  *string
}

type ListTradesParams struct {
	Limit    int
	Offset   int
	MarketID *string
	Trader   *string
	OrderBy  string
	Asc      *bool
}

type ListSettlementsParams struct {
	Limit    int
	Offset   int
	MarketID *string
	Address  *string
}

type ListAppealsParams struct {
	Limit    int
	Offset   int
	MarketID *string
	Appealer *string
}

type ListCommentsParams struct {
	Limit    int
	Offset   int
	MarketID *string
	Author   *string
}
