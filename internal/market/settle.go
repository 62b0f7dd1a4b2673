package market

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"koumei/internal/ledger"
	"koumei/internal/models"
	"koumei/internal/repository"
)

// payoutPrecision is the intermediate division precision before the final
// floor. Quotients here are rationals with denominator <= the liquidity
// bound, so this comfortably exceeds exactness requirements.
const payoutPrecision = 24

// Settler pays out final claims exactly once per (market, account). The
// existing Settlement row is the de-duplication record; the keyed lock keeps
// the check-then-create atomic for concurrent attempts on the same pair.
type Settler struct {
	Repo     repository.Repository
	Balances *ledger.BalanceLedger
	Logger   *zap.Logger

	locks keyedMutex
}

func (s *Settler) Settle(ctx context.Context, tx Tx, marketID string) (*models.Settlement, error) {
	unlock := s.locks.lock("settle@" + tx.Sender + "_" + marketID)
	defer unlock()

	var settled *models.Settlement
	err := s.Repo.InTx(ctx, func(dbtx *gorm.DB) error {
		m, err := s.Repo.GetMarketTx(ctx, dbtx, marketID)
		if err != nil {
			return err
		}
		if m == nil {
			return ErrMarketNotFound
		}
		if m.State != models.MarketStateFinished {
			return ErrMarketNotFinished
		}
		correct := m.CorrectChoice()
		if correct < 0 {
			// Unreachable through the state machine, checked anyway.
			return ErrNoValidOutcome
		}

		existing, err := s.Repo.GetSettlementTx(ctx, dbtx, marketID, tx.Sender)
		if err != nil {
			return err
		}
		if existing != nil {
			return ErrAlreadySettled
		}

		if tx.Sender != m.Initiator {
			settled, err = s.settleTrader(ctx, dbtx, tx, m, correct)
		} else {
			settled, err = s.settleInitiator(ctx, dbtx, tx, m, correct)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	if s.Logger != nil {
		s.Logger.Info("market settled",
			zap.String("market_id", marketID),
			zap.String("address", tx.Sender),
			zap.String("amount", settled.Amount.String()),
		)
	}
	return settled, nil
}

// settleTrader redeems the sender's winning position: floor(share * margin / b)
// credited, position zeroed. Only one outcome per market can be correct, so a
// single matching position is redeemed.
func (s *Settler) settleTrader(ctx context.Context, dbtx *gorm.DB, tx Tx, m *models.Market, correct int32) (*models.Settlement, error) {
	positions, err := s.Repo.ListPositionsByMarketAddressTx(ctx, dbtx, m.ID, tx.Sender)
	if err != nil {
		return nil, err
	}
	for _, pos := range positions {
		if pos.ChoiceIndex != correct || !pos.Share.IsPositive() {
			continue
		}
		amount := claimValue(pos.Share, m.Margin, m.LiquidityParam)
		if err := s.Repo.SetPositionShareTx(ctx, dbtx, m.ID, tx.Sender, pos.ChoiceIndex, decimal.Zero); err != nil {
			return nil, err
		}
		settlement := &models.Settlement{
			MarketID:  m.ID,
			Address:   tx.Sender,
			TxID:      tx.ID,
			Amount:    amount,
			Share:     pos.Share,
			Timestamp: tx.Timestamp,
		}
		if err := s.Repo.CreateSettlementTx(ctx, dbtx, settlement); err != nil {
			return nil, err
		}
		if err := s.Balances.Increase(ctx, dbtx, tx.Sender, m.Currency, amount); err != nil {
			return nil, err
		}
		return settlement, nil
	}
	return nil, ErrNoValidShares
}

// settleInitiator pays the reserve residual: totalFunds minus the provision
// for all claims on the winning outcome. The residual may be negative; that
// is liquidity-provider risk and is debited as-is.
func (s *Settler) settleInitiator(ctx context.Context, dbtx *gorm.DB, tx Tx, m *models.Market, correct int32) (*models.Settlement, error) {
	outcomes, err := s.Repo.ListOutcomesTx(ctx, dbtx, m.ID)
	if err != nil {
		return nil, err
	}
	winningShare := decimal.Zero
	for _, o := range outcomes {
		if o.ChoiceIndex == correct {
			winningShare = o.Share
			break
		}
	}
	earning := m.TotalFunds.Sub(claimValue(winningShare, m.Margin, m.LiquidityParam))
	settlement := &models.Settlement{
		MarketID:  m.ID,
		Address:   tx.Sender,
		TxID:      tx.ID,
		Amount:    earning,
		Share:     decimal.Zero,
		Timestamp: tx.Timestamp,
	}
	if err := s.Repo.CreateSettlementTx(ctx, dbtx, settlement); err != nil {
		return nil, err
	}
	if earning.IsNegative() {
		err = s.Balances.Decrease(ctx, dbtx, tx.Sender, m.Currency, earning.Abs())
	} else {
		err = s.Balances.Increase(ctx, dbtx, tx.Sender, m.Currency, earning)
	}
	if err != nil {
		return nil, err
	}
	return settlement, nil
}

// claimValue is floor(share * margin / b) in base units.
func claimValue(share, margin decimal.Decimal, liquidity int64) decimal.Decimal {
	b := decimal.NewFromInt(liquidity)
	return share.Mul(margin).DivRound(b, payoutPrecision).Floor()
}
