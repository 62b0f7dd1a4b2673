package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"koumei/internal/chain"
	"koumei/internal/market"
	"koumei/internal/quorum"
)

type TransactionHandler struct {
	Node   *chain.Node
	Logger *zap.Logger
}

func (h *TransactionHandler) Register(r *gin.Engine) {
	r.POST("/api/transactions", h.submit)
	r.GET("/api/status", h.status)
}

// @Summary Current chain height and delegate set size
// @Tags transaction
// @Success 200 {object} apiResponse
// @Router /api/status [get]
func (h *TransactionHandler) status(c *gin.Context) {
	if h.Node == nil || h.Node.Clock == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	delegates := 0
	if h.Node.Delegates != nil {
		delegates = len(h.Node.Delegates.Current())
	}
	Ok(c, gin.H{
		"height":    h.Node.Clock.Height(),
		"delegates": delegates,
	}, nil)
}

type createMarketRequest struct {
	Title          string          `json:"title"`
	Image          string          `json:"image"`
	Description    string          `json:"description"`
	Outcomes       []string        `json:"outcomes"`
	Currency       string          `json:"currency"`
	Margin         decimal.Decimal `json:"margin"`
	LiquidityParam int64           `json:"liquidity_param"`
	EndHeight      int64           `json:"end_height"`
}

type tradeRequest struct {
	MarketID   string          `json:"market_id"`
	Choice     int32           `json:"choice"`
	ShareDelta decimal.Decimal `json:"share"`
}

type revealRequest struct {
	MarketID string `json:"market_id"`
	Choice   int32  `json:"choice"`
}

type verdictRequest struct {
	MarketID     string `json:"market_id"`
	Choice       int32  `json:"choice"`
	SignatureSet string `json:"signature_set"`
}

type advanceRequest struct {
	MarketID string `json:"market_id"`
	Target   int16  `json:"target"`
}

type settleRequest struct {
	MarketID string `json:"market_id"`
}

type appealRequest struct {
	MarketID string          `json:"market_id"`
	Content  string          `json:"content"`
	Amount   decimal.Decimal `json:"amount"`
}

type commentRequest struct {
	MarketID string `json:"market_id"`
	Content  string `json:"content"`
}

type submitRequest struct {
	Type            string `json:"type" binding:"required"`
	Sender          string `json:"sender" binding:"required"`
	SenderPublicKey string `json:"sender_public_key"`

	CreateMarket *createMarketRequest `json:"create_market,omitempty"`
	Trade        *tradeRequest        `json:"trade,omitempty"`
	Reveal       *revealRequest       `json:"reveal,omitempty"`
	Verdict      *verdictRequest      `json:"verdict,omitempty"`
	Advance      *advanceRequest      `json:"advance_state,omitempty"`
	Settle       *settleRequest       `json:"settle,omitempty"`
	Appeal       *appealRequest       `json:"appeal,omitempty"`
	Comment      *commentRequest      `json:"comment,omitempty"`
}

// @Summary Submit a ledger transaction
// @Tags transaction
// @Param body body submitRequest true "transaction"
// @Success 200 {object} apiResponse
// @Router /api/transactions [post]
func (h *TransactionHandler) submit(c *gin.Context) {
	if h.Node == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}

	ev := chain.Event{
		Type:            chain.EventType(req.Type),
		Sender:          req.Sender,
		SenderPublicKey: req.SenderPublicKey,
	}
	if req.CreateMarket != nil {
		ev.CreateMarket = &market.CreateMarketParams{
			Title:          req.CreateMarket.Title,
			Image:          req.CreateMarket.Image,
			Description:    req.CreateMarket.Description,
			Outcomes:       req.CreateMarket.Outcomes,
			Currency:       req.CreateMarket.Currency,
			Margin:         req.CreateMarket.Margin,
			LiquidityParam: req.CreateMarket.LiquidityParam,
			EndHeight:      req.CreateMarket.EndHeight,
		}
	}
	if req.Trade != nil {
		ev.Trade = &chain.TradeParams{
			MarketID:   req.Trade.MarketID,
			Choice:     req.Trade.Choice,
			ShareDelta: req.Trade.ShareDelta,
		}
	}
	if req.Reveal != nil {
		ev.Reveal = &chain.RevealParams{MarketID: req.Reveal.MarketID, Choice: req.Reveal.Choice}
	}
	if req.Verdict != nil {
		ev.Verdict = &chain.VerdictParams{
			MarketID:     req.Verdict.MarketID,
			Choice:       req.Verdict.Choice,
			SignatureSet: req.Verdict.SignatureSet,
		}
	}
	if req.Advance != nil {
		ev.Advance = &chain.AdvanceParams{MarketID: req.Advance.MarketID, Target: req.Advance.Target}
	}
	if req.Settle != nil {
		ev.Settle = &chain.SettleParams{MarketID: req.Settle.MarketID}
	}
	if req.Appeal != nil {
		ev.Appeal = &chain.AppealParams{
			MarketID: req.Appeal.MarketID,
			Content:  req.Appeal.Content,
			Amount:   req.Appeal.Amount,
		}
	}
	if req.Comment != nil {
		ev.Comment = &chain.CommentParams{MarketID: req.Comment.MarketID, Content: req.Comment.Content}
	}

	result, err := h.Node.Submit(c.Request.Context(), ev)
	if err != nil {
		if h.Logger != nil {
			h.Logger.Debug("transaction rejected",
				zap.String("type", req.Type),
				zap.String("sender", req.Sender),
				zap.Error(err),
			)
		}
		Error(c, rejectionStatus(err), err.Error(), nil)
		return
	}
	Ok(c, result, nil)
}

func rejectionStatus(err error) int {
	switch {
	case errors.Is(err, market.ErrMarketNotFound):
		return http.StatusNotFound
	case errors.Is(err, market.ErrPermissionDenied),
		errors.Is(err, quorum.ErrQuorumNotMet):
		return http.StatusForbidden
	case errors.Is(err, market.ErrAlreadySettled):
		return http.StatusConflict
	default:
		var verr *market.ValidationError
		if errors.As(err, &verr) {
			return http.StatusBadRequest
		}
		return http.StatusUnprocessableEntity
	}
}
