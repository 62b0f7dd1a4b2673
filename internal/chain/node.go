package chain

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"koumei/internal/market"
	"koumei/internal/models"
	"koumei/internal/quorum"
	"koumei/internal/repository"
)

// Node is the serialized event applier: many producers submit events, one
// applier runs them in order. Each event observes the fully-applied state
// left by the previous one; a failed event is rejected atomically with no
// side effects. Pricing is path-dependent, so no reordering or batching.
type Node struct {
	Repo      repository.Repository
	Ledger    *market.Ledger
	States    *market.StateMachine
	Settler   *market.Settler
	Delegates quorum.Provider
	Clock     *Clock
	Logger    *zap.Logger

	mu sync.Mutex
}

// Submit applies one event at the current point of the log and returns
// either the stamped transaction identity or the rejection reason.
func (n *Node) Submit(ctx context.Context, ev Event) (Result, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	tx := market.Tx{
		ID:              uuid.NewString(),
		Sender:          strings.TrimSpace(ev.Sender),
		SenderPublicKey: strings.ToLower(strings.TrimSpace(ev.SenderPublicKey)),
		Height:          n.Clock.Height(),
		Timestamp:       time.Now().Unix(),
	}
	if tx.Sender == "" {
		return Result{}, fmt.Errorf("sender is required")
	}

	result := Result{TxID: tx.ID, Height: tx.Height}
	var err error
	switch ev.Type {
	case EventCreateMarket:
		if ev.CreateMarket == nil {
			return Result{}, fmt.Errorf("missing create_market params")
		}
		var created *models.Market
		created, err = n.Ledger.CreateMarket(ctx, tx, *ev.CreateMarket)
		if err == nil {
			result.MarketID = created.ID
		}
	case EventTrade:
		if ev.Trade == nil {
			return Result{}, fmt.Errorf("missing trade params")
		}
		_, err = n.Ledger.Trade(ctx, tx, ev.Trade.MarketID, ev.Trade.Choice, ev.Trade.ShareDelta)
	case EventReveal:
		if ev.Reveal == nil {
			return Result{}, fmt.Errorf("missing reveal params")
		}
		err = n.States.Reveal(ctx, tx, ev.Reveal.MarketID, ev.Reveal.Choice)
	case EventVerdict:
		if ev.Verdict == nil {
			return Result{}, fmt.Errorf("missing verdict params")
		}
		_, err = n.States.Verdict(ctx, tx, ev.Verdict.MarketID, ev.Verdict.Choice, ev.Verdict.SignatureSet, n.Delegates.Current())
	case EventAdvanceState:
		if ev.Advance == nil {
			return Result{}, fmt.Errorf("missing advance_state params")
		}
		err = n.States.AdvanceState(ctx, tx, ev.Advance.MarketID, ev.Advance.Target, n.Delegates.Current())
	case EventSettle:
		if ev.Settle == nil {
			return Result{}, fmt.Errorf("missing settle params")
		}
		_, err = n.Settler.Settle(ctx, tx, ev.Settle.MarketID)
	case EventAppeal:
		if ev.Appeal == nil {
			return Result{}, fmt.Errorf("missing appeal params")
		}
		err = n.appendAppeal(ctx, tx, *ev.Appeal)
	case EventComment:
		if ev.Comment == nil {
			return Result{}, fmt.Errorf("missing comment params")
		}
		err = n.appendComment(ctx, tx, *ev.Comment)
	default:
		return Result{}, fmt.Errorf("unknown event type %q", ev.Type)
	}
	if err != nil {
		if n.Logger != nil {
			n.Logger.Debug("event rejected",
				zap.String("type", string(ev.Type)),
				zap.String("sender", tx.Sender),
				zap.Error(err),
			)
		}
		return Result{}, err
	}
	return result, nil
}

// appendAppeal and appendComment are passthrough records: the only check is
// that the market exists.

func (n *Node) appendAppeal(ctx context.Context, tx market.Tx, p AppealParams) error {
	return n.Repo.InTx(ctx, func(dbtx *gorm.DB) error {
		m, err := n.Repo.GetMarketTx(ctx, dbtx, p.MarketID)
		if err != nil {
			return err
		}
		if m == nil {
			return market.ErrMarketNotFound
		}
		return n.Repo.CreateAppealTx(ctx, dbtx, &models.Appeal{
			MarketID:  p.MarketID,
			TxID:      tx.ID,
			Appealer:  tx.Sender,
			Content:   p.Content,
			Amount:    p.Amount,
			Timestamp: tx.Timestamp,
		})
	})
}

func (n *Node) appendComment(ctx context.Context, tx market.Tx, p CommentParams) error {
	return n.Repo.InTx(ctx, func(dbtx *gorm.DB) error {
		m, err := n.Repo.GetMarketTx(ctx, dbtx, p.MarketID)
		if err != nil {
			return err
		}
		if m == nil {
			return market.ErrMarketNotFound
		}
		return n.Repo.CreateCommentTx(ctx, dbtx, &models.Comment{
			MarketID:  p.MarketID,
			TxID:      tx.ID,
			Author:    tx.Sender,
			Content:   p.Content,
			Timestamp: tx.Timestamp,
		})
	})
}
