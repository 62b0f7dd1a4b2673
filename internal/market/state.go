package market

import (
	"context"
	"encoding/json"
	"strings"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"koumei/internal/models"
	"koumei/internal/quorum"
	"koumei/internal/repository"
)

// StateMachine governs market lifecycle transitions:
//
//	Ongoing -> Revealing    delegate-triggered, height > endHeight
//	Revealing -> Announcing performed by the initiator's reveal
//	Announcing -> Finished  delegate-triggered, height > revealHeight + AnnouncePeriod
//
// The verdict path may force Finished from any earlier state; it is the
// dispute-resolution escape hatch and its choice overrides the reveal.
type StateMachine struct {
	Repo   repository.Repository
	Logger *zap.Logger

	// AnnouncePeriod is the number of blocks after the reveal during which
	// appeals may be filed before the market can be finished.
	AnnouncePeriod int64

	// RevealWindow bounds how long after endHeight a reveal stays valid.
	// Zero disables the staleness check.
	RevealWindow int64
}

// AdvanceState moves a market to the given target state. Only a current
// delegate may trigger it, and only along the timed forward edges.
func (s *StateMachine) AdvanceState(ctx context.Context, tx Tx, marketID string, target int16, delegates quorum.Set) error {
	if !delegates.Contains(tx.SenderPublicKey) {
		return ErrPermissionDenied
	}
	return s.Repo.InTx(ctx, func(dbtx *gorm.DB) error {
		m, err := s.Repo.GetMarketTx(ctx, dbtx, marketID)
		if err != nil {
			return err
		}
		if m == nil {
			return ErrMarketNotFound
		}
		switch target {
		case models.MarketStateRevealing:
			if m.State != models.MarketStateOngoing {
				return ErrIncorrectState
			}
			if tx.Height <= m.EndHeight {
				return ErrTimeNotArrived
			}
		case models.MarketStateFinished:
			if m.State != models.MarketStateAnnouncing {
				return ErrIncorrectState
			}
			if tx.Height <= m.RevealHeight+s.AnnouncePeriod {
				return ErrTimeNotArrived
			}
		default:
			return ErrInvalidState
		}
		if err := s.Repo.UpdateMarketTx(ctx, dbtx, marketID, map[string]any{"state": target}); err != nil {
			return err
		}
		if s.Logger != nil {
			s.Logger.Info("market state advanced",
				zap.String("market_id", marketID),
				zap.Int16("from", m.State),
				zap.Int16("to", target),
				zap.Int64("height", tx.Height),
			)
		}
		return nil
	})
}

// Reveal records the initiator's outcome and performs the
// Revealing -> Announcing transition.
func (s *StateMachine) Reveal(ctx context.Context, tx Tx, marketID string, choice int32) error {
	return s.Repo.InTx(ctx, func(dbtx *gorm.DB) error {
		m, err := s.Repo.GetMarketTx(ctx, dbtx, marketID)
		if err != nil {
			return err
		}
		if m == nil {
			return ErrMarketNotFound
		}
		if tx.Sender != m.Initiator {
			return ErrPermissionDenied
		}
		if tx.Height <= m.EndHeight {
			return ErrTimeNotArrived
		}
		if s.RevealWindow > 0 && tx.Height > m.EndHeight+s.RevealWindow {
			return ErrRevealOutOfDate
		}
		if m.State != models.MarketStateRevealing {
			return ErrIncorrectState
		}
		if choice < 0 || int(choice) >= m.OutcomeCount {
			return validationErrorf("choice %d out of range [0,%d)", choice, m.OutcomeCount)
		}

		reveal := &models.Reveal{
			MarketID:    marketID,
			TxID:        tx.ID,
			ChoiceIndex: choice,
			Height:      tx.Height,
		}
		if err := s.Repo.CreateRevealTx(ctx, dbtx, reveal); err != nil {
			return err
		}
		if err := s.Repo.UpdateMarketTx(ctx, dbtx, marketID, map[string]any{
			"state":           models.MarketStateAnnouncing,
			"reveal_height":   tx.Height,
			"revealed_choice": choice,
		}); err != nil {
			return err
		}
		if s.Logger != nil {
			s.Logger.Info("market revealed",
				zap.String("market_id", marketID),
				zap.Int32("choice", choice),
				zap.Int64("height", tx.Height),
			)
		}
		return nil
	})
}

// Verdict finalizes a market by quorum signature, overriding the announce
// gate and any prior reveal choice.
func (s *StateMachine) Verdict(ctx context.Context, tx Tx, marketID string, choice int32, signatureSet string, delegates quorum.Set) (*models.Verdict, error) {
	var recorded *models.Verdict
	err := s.Repo.InTx(ctx, func(dbtx *gorm.DB) error {
		m, err := s.Repo.GetMarketTx(ctx, dbtx, marketID)
		if err != nil {
			return err
		}
		if m == nil {
			return ErrMarketNotFound
		}
		if m.State == models.MarketStateFinished {
			return ErrMarketFinished
		}
		if choice < 0 || int(choice) >= m.OutcomeCount {
			return validationErrorf("choice %d out of range [0,%d)", choice, m.OutcomeCount)
		}
		if err := quorum.Validate(marketID, choice, signatureSet, delegates); err != nil {
			return err
		}

		sigJSON, err := signatureSetJSON(signatureSet)
		if err != nil {
			return err
		}
		verdict := &models.Verdict{
			MarketID:    marketID,
			TxID:        tx.ID,
			ChoiceIndex: choice,
			Signatures:  sigJSON,
		}
		if err := s.Repo.CreateVerdictTx(ctx, dbtx, verdict); err != nil {
			return err
		}
		if err := s.Repo.UpdateMarketTx(ctx, dbtx, marketID, map[string]any{
			"state":          models.MarketStateFinished,
			"verdict_choice": choice,
		}); err != nil {
			return err
		}
		recorded = verdict
		return nil
	})
	if err != nil {
		return nil, err
	}
	if s.Logger != nil {
		s.Logger.Info("market finalized by verdict",
			zap.String("market_id", marketID),
			zap.Int32("choice", choice),
		)
	}
	return recorded, nil
}

func signatureSetJSON(signatureSet string) (datatypes.JSON, error) {
	raw, err := json.Marshal(strings.Split(signatureSet, ","))
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}
