package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"koumei/internal/lmsr"
	"koumei/internal/repository"
)

type MarketHandler struct {
	Repo    repository.Repository
	Pricing lmsr.Engine
	Logger  *zap.Logger
}

func (h *MarketHandler) Register(r *gin.Engine) {
	group := r.Group("/api")
	group.GET("/markets", h.listMarkets)
	group.GET("/markets/:id", h.getMarket)
	group.GET("/markets/:id/results", h.getResults)
	group.GET("/markets/:id/calc", h.calcTrade)
	group.GET("/markets/:id/trades", h.listTrades)
	group.GET("/markets/:id/settles", h.listSettlements)
	group.GET("/markets/:id/appeals", h.listAppeals)
	group.GET("/markets/:id/comments", h.listComments)
	group.GET("/markets/:id/reveal", h.getReveal)
	group.GET("/markets/:id/verdict", h.getVerdict)
	group.GET("/markets/:id/shares/:address", h.getMarketShares)
	group.GET("/shares/:address", h.listShares)
	group.GET("/balances/:address", h.listBalances)
}

// @Summary List markets
// @Tags market
// @Param limit query int false "limit"
// @Param offset query int false "offset"
// @Param currency query string false "currency"
// @Param initiator query string false "initiator address"
// @Param state query int false "market state"
// @Param tid query string false "creating transaction id"
// @Param order_by query string false "order by field"
// @Param ascending query bool false "ascending"
// @Success 200 {object} apiResponse
// @Router /api/markets [get]
func (h *MarketHandler) listMarkets(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	limit := intQuery(c, "limit", 50)
	offset := intQuery(c, "offset", 0)
	params := repository.ListMarketsParams{
		Limit:     limit,
		Offset:    offset,
		Currency:  strQueryPtr(c, "currency"),
		Initiator: strQueryPtr(c, "initiator"),
		State:     stateQueryPtr(c, "state"),
		TxID:      strQueryPtr(c, "tid"),
		OrderBy: parseOrder(c.Query("order_by"), map[string]string{
			"end_height": "end_height",
			"timestamp":  "timestamp",
			"total":      "total_funds",
		}),
		Asc: boolQueryPtr(c, "ascending"),
	}

	items, err := h.Repo.ListMarkets(c.Request.Context(), params)
	if err != nil {
		h.warn("list markets failed", err)
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	total, err := h.Repo.CountMarkets(c.Request.Context(), params)
	if err != nil {
		h.warn("count markets failed", err)
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	Ok(c, items, paginationMeta(limit, offset, total))
}

// @Summary Get one market with its outcomes
// @Tags market
// @Param id path string true "market id"
// @Success 200 {object} apiResponse
// @Router /api/markets/{id} [get]
func (h *MarketHandler) getMarket(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	id := strings.TrimSpace(c.Param("id"))
	market, err := h.Repo.GetMarket(c.Request.Context(), id)
	if err != nil {
		h.warn("get market failed", err)
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	if market == nil {
		Error(c, http.StatusNotFound, "market not found", nil)
		return
	}
	outcomes, err := h.Repo.ListOutcomes(c.Request.Context(), id)
	if err != nil {
		h.warn("list outcomes failed", err)
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	Ok(c, gin.H{"market": market, "outcomes": outcomes}, nil)
}

type outcomeResult struct {
	Choice      int32            `json:"choice"`
	Description string           `json:"description"`
	Share       decimal.Decimal  `json:"share"`
	Probability *decimal.Decimal `json:"probability,omitempty"`
}

// @Summary Current per-outcome shares and, optionally, implied probabilities
// @Tags market
// @Param id path string true "market id"
// @Param probability query bool false "include implied probabilities"
// @Success 200 {object} apiResponse
// @Router /api/markets/{id}/results [get]
func (h *MarketHandler) getResults(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	id := strings.TrimSpace(c.Param("id"))
	market, err := h.Repo.GetMarket(c.Request.Context(), id)
	if err != nil {
		h.warn("get market failed", err)
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	if market == nil {
		Error(c, http.StatusNotFound, "market not found", nil)
		return
	}
	outcomes, err := h.Repo.ListOutcomes(c.Request.Context(), id)
	if err != nil {
		h.warn("list outcomes failed", err)
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}

	results := make([]outcomeResult, 0, len(outcomes))
	for _, o := range outcomes {
		results = append(results, outcomeResult{
			Choice:      o.ChoiceIndex,
			Description: o.Description,
			Share:       o.Share,
		})
	}

	if boolQueryDefault(c, "probability", false) && len(outcomes) > 0 {
		shares := make([]decimal.Decimal, len(outcomes))
		for i, o := range outcomes {
			shares[i] = o.Share
		}
		probs, err := h.Pricing.Probabilities(shares, market.LiquidityParam)
		if err != nil {
			h.warn("probabilities failed", err)
			Error(c, http.StatusInternalServerError, err.Error(), nil)
			return
		}
		for i := range results {
			p := probs[i]
			results[i].Probability = &p
		}
	}

	meta := map[string]any{
		"state":           market.State,
		"revealed_choice": market.RevealedChoice,
		"verdict_choice":  market.VerdictChoice,
	}
	Ok(c, results, meta)
}

// @Summary Quote the cost of a hypothetical trade without applying it
// @Tags market
// @Param id path string true "market id"
// @Param choice query int true "outcome index"
// @Param share query string true "share delta, negative to sell"
// @Success 200 {object} apiResponse
// @Router /api/markets/{id}/calc [get]
func (h *MarketHandler) calcTrade(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	id := strings.TrimSpace(c.Param("id"))
	market, err := h.Repo.GetMarket(c.Request.Context(), id)
	if err != nil {
		h.warn("get market failed", err)
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	if market == nil {
		Error(c, http.StatusNotFound, "market not found", nil)
		return
	}

	choice := intQuery(c, "choice", -1)
	if choice < 0 || choice >= market.OutcomeCount {
		Error(c, http.StatusBadRequest, "invalid choice", nil)
		return
	}
	delta := decimalQueryPtr(c, "share")
	if delta == nil || delta.IsZero() {
		Error(c, http.StatusBadRequest, "share required", nil)
		return
	}

	outcomes, err := h.Repo.ListOutcomes(c.Request.Context(), id)
	if err != nil {
		h.warn("list outcomes failed", err)
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	shares := make([]decimal.Decimal, len(outcomes))
	for i, o := range outcomes {
		shares[i] = o.Share
	}
	cost, err := h.Pricing.TradeCost(shares, choice, *delta, market.LiquidityParam, market.Margin)
	if err != nil {
		h.warn("trade cost failed", err)
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	Ok(c, gin.H{
		"market_id": id,
		"choice":    choice,
		"share":     delta,
		"cost":      cost,
	}, nil)
}

// @Summary List trades of a market
// @Tags market
// @Param id path string true "market id"
// @Param trader query string false "trader address"
// @Success 200 {object} apiResponse
// @Router /api/markets/{id}/trades [get]
func (h *MarketHandler) listTrades(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	id := strings.TrimSpace(c.Param("id"))
	limit := intQuery(c, "limit", 50)
	offset := intQuery(c, "offset", 0)
	params := repository.ListTradesParams{
		Limit:    limit,
		Offset:   offset,
		MarketID: &id,
		Trader:   strQueryPtr(c, "trader"),
		Asc:      boolQueryPtr(c, "ascending"),
	}
	items, err := h.Repo.ListTrades(c.Request.Context(), params)
	if err != nil {
		h.warn("list trades failed", err)
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	total, err := h.Repo.CountTrades(c.Request.Context(), params)
	if err != nil {
		h.warn("count trades failed", err)
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	Ok(c, items, paginationMeta(limit, offset, total))
}

// @Summary List settlements of a market
// @Tags market
// @Param id path string true "market id"
// @Success 200 {object} apiResponse
// @Router /api/markets/{id}/settles [get]
func (h *MarketHandler) listSettlements(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	id := strings.TrimSpace(c.Param("id"))
	limit := intQuery(c, "limit", 50)
	offset := intQuery(c, "offset", 0)
	params := repository.ListSettlementsParams{
		Limit:    limit,
		Offset:   offset,
		MarketID: &id,
		Address:  strQueryPtr(c, "address"),
	}
	items, err := h.Repo.ListSettlements(c.Request.Context(), params)
	if err != nil {
		h.warn("list settlements failed", err)
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	total, err := h.Repo.CountSettlements(c.Request.Context(), params)
	if err != nil {
		h.warn("count settlements failed", err)
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	Ok(c, items, paginationMeta(limit, offset, total))
}

// @Summary List appeals of a market
// @Tags market
// @Param id path string true "market id"
// @Success 200 {object} apiResponse
// @Router /api/markets/{id}/appeals [get]
func (h *MarketHandler) listAppeals(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	id := strings.TrimSpace(c.Param("id"))
	limit := intQuery(c, "limit", 50)
	offset := intQuery(c, "offset", 0)
	params := repository.ListAppealsParams{
		Limit:    limit,
		Offset:   offset,
		MarketID: &id,
		Appealer: strQueryPtr(c, "appealer"),
	}
	items, err := h.Repo.ListAppeals(c.Request.Context(), params)
	if err != nil {
		h.warn("list appeals failed", err)
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	total, err := h.Repo.CountAppeals(c.Request.Context(), params)
	if err != nil {
		h.warn("count appeals failed", err)
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	Ok(c, items, paginationMeta(limit, offset, total))
}

// @Summary List comments of a market
// @Tags market
// @Param id path string true "market id"
// @Success 200 {object} apiResponse
// @Router /api/markets/{id}/comments [get]
func (h *MarketHandler) listComments(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	id := strings.TrimSpace(c.Param("id"))
	limit := intQuery(c, "limit", 50)
	offset := intQuery(c, "offset", 0)
	params := repository.ListCommentsParams{
		Limit:    limit,
		Offset:   offset,
		MarketID: &id,
		Author:   strQueryPtr(c, "author"),
	}
	items, err := h.Repo.ListComments(c.Request.Context(), params)
	if err != nil {
		h.warn("list comments failed", err)
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	total, err := h.Repo.CountComments(c.Request.Context(), params)
	if err != nil {
		h.warn("count comments failed", err)
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	Ok(c, items, paginationMeta(limit, offset, total))
}

// @Summary Get the initiator reveal of a market
// @Tags market
// @Param id path string true "market id"
// @Success 200 {object} apiResponse
// @Router /api/markets/{id}/reveal [get]
func (h *MarketHandler) getReveal(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	id := strings.TrimSpace(c.Param("id"))
	reveal, err := h.Repo.GetReveal(c.Request.Context(), id)
	if err != nil {
		h.warn("get reveal failed", err)
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	if reveal == nil {
		Error(c, http.StatusNotFound, "reveal not found", nil)
		return
	}
	Ok(c, reveal, nil)
}

// @Summary Get the delegate verdict of a market
// @Tags market
// @Param id path string true "market id"
// @Success 200 {object} apiResponse
// @Router /api/markets/{id}/verdict [get]
func (h *MarketHandler) getVerdict(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	id := strings.TrimSpace(c.Param("id"))
	verdict, err := h.Repo.GetVerdict(c.Request.Context(), id)
	if err != nil {
		h.warn("get verdict failed", err)
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	if verdict == nil {
		Error(c, http.StatusNotFound, "verdict not found", nil)
		return
	}
	Ok(c, verdict, nil)
}

// @Summary Positions held by an address in one market
// @Tags market
// @Param id path string true "market id"
// @Param address path string true "account address"
// @Success 200 {object} apiResponse
// @Router /api/markets/{id}/shares/{address} [get]
func (h *MarketHandler) getMarketShares(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	id := strings.TrimSpace(c.Param("id"))
	address := strings.TrimSpace(c.Param("address"))
	limit := intQuery(c, "limit", 100)
	offset := intQuery(c, "offset", 0)
	params := repository.ListPositionsParams{
		Limit:    limit,
		Offset:   offset,
		MarketID: &id,
		Address:  &address,
	}
	items, err := h.Repo.ListPositions(c.Request.Context(), params)
	if err != nil {
		h.warn("list positions failed", err)
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	Ok(c, items, nil)
}

// @Summary Positions held by an address across all markets
// @Tags market
// @Param address path string true "account address"
// @Success 200 {object} apiResponse
// @Router /api/shares/{address} [get]
func (h *MarketHandler) listShares(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	address := strings.TrimSpace(c.Param("address"))
	limit := intQuery(c, "limit", 100)
	offset := intQuery(c, "offset", 0)
	params := repository.ListPositionsParams{
		Limit:   limit,
		Offset:  offset,
		Address: &address,
	}
	items, err := h.Repo.ListPositions(c.Request.Context(), params)
	if err != nil {
		h.warn("list positions failed", err)
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	total, err := h.Repo.CountPositions(c.Request.Context(), params)
	if err != nil {
		h.warn("count positions failed", err)
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	Ok(c, items, paginationMeta(limit, offset, total))
}

// @Summary Balances of an address
// @Tags market
// @Param address path string true "account address"
// @Success 200 {object} apiResponse
// @Router /api/balances/{address} [get]
func (h *MarketHandler) listBalances(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	address := strings.TrimSpace(c.Param("address"))
	items, err := h.Repo.ListBalances(c.Request.Context(), address)
	if err != nil {
		h.warn("list balances failed", err)
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	Ok(c, items, nil)
}

func (h *MarketHandler) warn(msg string, err error) {
	if h.Logger != nil {
		h.Logger.Warn(msg, zap.Error(err))
	}
}

func intQuery(c *gin.Context, key string, def int) int {
	if val := c.Query(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return def
}

func boolQueryDefault(c *gin.Context, key string, def bool) bool {
	if val := c.Query(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return def
}

func boolQueryPtr(c *gin.Context, key string) *bool {
	if val := c.Query(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return &b
		}
	}
	return nil
}

func strQueryPtr(c *gin.Context, key string) *string {
	if val := strings.TrimSpace(c.Query(key)); val != "" {
		return &val
	}
	return nil
}

func stateQueryPtr(c *gin.Context, key string) *int16 {
	if val := c.Query(key); val != "" {
		if i, err := strconv.ParseInt(val, 10, 16); err == nil {
			v := int16(i)
			return &v
		}
	}
	return nil
}

func decimalQueryPtr(c *gin.Context, key string) *decimal.Decimal {
	if val := strings.TrimSpace(c.Query(key)); val != "" {
		if d, err := decimal.NewFromString(val); err == nil {
			return &d
		}
	}
	return nil
}

func parseOrder(value string, allow map[string]string) string {
	key := strings.TrimSpace(strings.ToLower(value))
	if key == "" {
		return ""
	}
	if mapped, ok := allow[key]; ok {
		return mapped
	}
	return ""
}

func paginationMeta(limit, offset int, total int64) map[string]any {
	if limit <= 0 {
		limit = 0
	}
	if offset < 0 {
		offset = 0
	}
	hasNext := int64(offset+limit) < total
	return map[string]any{
		"limit":    limit,
		"offset":   offset,
		"total":    total,
		"has_next": hasNext,
	}
}
