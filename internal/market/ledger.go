package market

import (
	"context"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"koumei/internal/ledger"
	"koumei/internal/lmsr"
	"koumei/internal/models"
	"koumei/internal/repository"
)

// Creation input bounds. Fixed protocol constants, not configuration.
const (
	titleMinLen = 5
	titleMaxLen = 256
	imageMinLen = 15
	imageMaxLen = 256
	descMinLen  = 1000
	descMaxLen  = 4096

	outcomeMinCount = 2
	outcomeMaxCount = 32

	liquidityMax = 10000
)

const marketSequence = "market_max_id"

// Ledger owns per-market aggregate state and per-(market, account, outcome)
// positions, and applies creations and trades atomically. It is the only
// writer of Outcome.Share, Position.Share and Market.TotalFunds.
type Ledger struct {
	Repo     repository.Repository
	Balances *ledger.BalanceLedger
	Pricing  lmsr.Engine
	Logger   *zap.Logger

	// MinMargin is the smallest accepted initial reserve, in base units.
	MinMargin decimal.Decimal
}

type CreateMarketParams struct {
	Title          string
	Image          string
	Description    string
	Outcomes       []string
	Currency       string
	Margin         decimal.Decimal
	LiquidityParam int64
	EndHeight      int64
}

func (l *Ledger) CreateMarket(ctx context.Context, tx Tx, p CreateMarketParams) (*models.Market, error) {
	if err := l.validateCreate(p); err != nil {
		return nil, err
	}

	var created *models.Market
	err := l.Repo.InTx(ctx, func(dbtx *gorm.DB) error {
		balance, err := l.Balances.Get(ctx, dbtx, tx.Sender, p.Currency)
		if err != nil {
			return err
		}
		if balance.LessThan(p.Margin) {
			return ErrInsufficientBalance
		}

		seq, err := l.Repo.NextSequenceTx(ctx, dbtx, marketSequence)
		if err != nil {
			return err
		}
		item := &models.Market{
			ID:             decimal.NewFromInt(seq).String(),
			TxID:           tx.ID,
			Initiator:      tx.Sender,
			Timestamp:      tx.Timestamp,
			Title:          p.Title,
			Image:          p.Image,
			Description:    p.Description,
			OutcomeCount:   len(p.Outcomes),
			Currency:       p.Currency,
			LiquidityParam: p.LiquidityParam,
			Margin:         p.Margin,
			TotalFunds:     p.Margin,
			EndHeight:      p.EndHeight,
			RevealedChoice: models.ChoiceUnset,
			VerdictChoice:  models.ChoiceUnset,
			State:          models.MarketStateOngoing,
		}
		if err := l.Repo.CreateMarketTx(ctx, dbtx, item); err != nil {
			return err
		}
		for i, desc := range p.Outcomes {
			outcome := &models.Outcome{
				MarketID:    item.ID,
				ChoiceIndex: int32(i),
				Description: desc,
				Share:       decimal.Zero,
			}
			if err := l.Repo.CreateOutcomeTx(ctx, dbtx, outcome); err != nil {
				return err
			}
		}
		if err := l.Balances.Decrease(ctx, dbtx, tx.Sender, p.Currency, p.Margin); err != nil {
			return err
		}
		created = item
		return nil
	})
	if err != nil {
		return nil, err
	}
	if l.Logger != nil {
		l.Logger.Info("market created",
			zap.String("market_id", created.ID),
			zap.String("initiator", created.Initiator),
			zap.Int("outcomes", created.OutcomeCount),
			zap.String("margin", created.Margin.String()),
		)
	}
	return created, nil
}

func (l *Ledger) validateCreate(p CreateMarketParams) error {
	if n := len(p.Title); n < titleMinLen || n > titleMaxLen {
		return validationErrorf("title length must be in [%d,%d]", titleMinLen, titleMaxLen)
	}
	if n := len(p.Image); n < imageMinLen || n > imageMaxLen {
		return validationErrorf("image length must be in [%d,%d]", imageMinLen, imageMaxLen)
	}
	u, err := url.Parse(p.Image)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return validationErrorf("image must be a http or https url")
	}
	if n := len(p.Description); n < descMinLen || n > descMaxLen {
		return validationErrorf("description length must be in [%d,%d]", descMinLen, descMaxLen)
	}
	if strings.TrimSpace(p.Currency) == "" {
		return validationErrorf("currency is required")
	}
	if p.Margin.LessThan(l.MinMargin) {
		return validationErrorf("margin must be at least %s", l.MinMargin.String())
	}
	if p.LiquidityParam <= 0 || p.LiquidityParam > liquidityMax {
		return validationErrorf("liquidity parameter must be in (0,%d]", liquidityMax)
	}
	if n := len(p.Outcomes); n < outcomeMinCount || n > outcomeMaxCount {
		return validationErrorf("outcome count must be in [%d,%d]", outcomeMinCount, outcomeMaxCount)
	}
	seen := make(map[string]struct{}, len(p.Outcomes))
	for _, desc := range p.Outcomes {
		if desc == "" {
			return validationErrorf("outcome description must not be empty")
		}
		if _, ok := seen[desc]; ok {
			return validationErrorf("there are repetitive outcomes")
		}
		seen[desc] = struct{}{}
	}
	return nil
}

// Trade applies a signed share delta against one outcome at the LMSR price
// current as of this point in the event log. All checks precede all writes;
// the transaction either fully applies or leaves no trace.
func (l *Ledger) Trade(ctx context.Context, tx Tx, marketID string, choice int32, shareDelta decimal.Decimal) (*models.Trade, error) {
	var applied *models.Trade
	err := l.Repo.InTx(ctx, func(dbtx *gorm.DB) error {
		m, err := l.Repo.GetMarketTx(ctx, dbtx, marketID)
		if err != nil {
			return err
		}
		if m == nil {
			return ErrMarketNotFound
		}
		if m.State != models.MarketStateOngoing {
			return ErrTradeClosed
		}
		if choice < 0 || int(choice) >= m.OutcomeCount {
			return validationErrorf("choice %d out of range [0,%d)", choice, m.OutcomeCount)
		}
		if shareDelta.IsZero() {
			return validationErrorf("share delta must be non-zero")
		}

		position, err := l.Repo.GetPositionTx(ctx, dbtx, marketID, tx.Sender, choice)
		if err != nil {
			return err
		}
		if shareDelta.IsNegative() {
			if position == nil || position.Share.LessThan(shareDelta.Neg()) {
				return ErrInsufficientShare
			}
		}

		outcomes, err := l.Repo.ListOutcomesTx(ctx, dbtx, marketID)
		if err != nil {
			return err
		}
		shares := make([]decimal.Decimal, len(outcomes))
		for _, o := range outcomes {
			shares[o.ChoiceIndex] = o.Share
		}
		amount, err := l.Pricing.TradeCost(shares, int(choice), shareDelta, m.LiquidityParam, m.Margin)
		if err != nil {
			return err
		}

		if amount.IsPositive() {
			balance, err := l.Balances.Get(ctx, dbtx, tx.Sender, m.Currency)
			if err != nil {
				return err
			}
			if balance.LessThan(amount) {
				return ErrInsufficientBalance
			}
		}

		trade := &models.Trade{
			MarketID:    marketID,
			TxID:        tx.ID,
			Trader:      tx.Sender,
			ChoiceIndex: choice,
			ShareDelta:  shareDelta,
			Amount:      amount,
			Height:      tx.Height,
			Timestamp:   tx.Timestamp,
		}
		if err := l.Repo.CreateTradeTx(ctx, dbtx, trade); err != nil {
			return err
		}
		if err := l.Repo.IncrementOutcomeShareTx(ctx, dbtx, marketID, choice, shareDelta); err != nil {
			return err
		}
		if position == nil {
			blank := &models.Position{
				MarketID:    marketID,
				Address:     tx.Sender,
				ChoiceIndex: choice,
				Share:       decimal.Zero,
			}
			if err := l.Repo.CreatePositionTx(ctx, dbtx, blank); err != nil {
				return err
			}
		}
		if err := l.Repo.IncrementPositionShareTx(ctx, dbtx, marketID, tx.Sender, choice, shareDelta); err != nil {
			return err
		}
		if err := l.Repo.IncrementMarketTotalTx(ctx, dbtx, marketID, amount); err != nil {
			return err
		}
		if amount.IsPositive() {
			if err := l.Balances.Decrease(ctx, dbtx, tx.Sender, m.Currency, amount); err != nil {
				return err
			}
		} else if amount.IsNegative() {
			if err := l.Balances.Increase(ctx, dbtx, tx.Sender, m.Currency, amount.Abs()); err != nil {
				return err
			}
		}
		applied = trade
		return nil
	})
	if err != nil {
		return nil, err
	}
	if l.Logger != nil {
		l.Logger.Debug("trade applied",
			zap.String("market_id", marketID),
			zap.String("trader", tx.Sender),
			zap.Int32("choice", choice),
			zap.String("share_delta", shareDelta.String()),
			zap.String("amount", applied.Amount.String()),
		)
	}
	return applied, nil
}
