package gormrepository

import (
	"context"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"koumei/internal/models"
	"koumei/internal/repository"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(fn)
}

// --- Markets ----------------------------------------------------------------

func (s *Store) CreateMarketTx(ctx context.Context, tx *gorm.DB, item *models.Market) error {
	if tx == nil || item == nil {
		return nil
	}
	return tx.WithContext(ctx).Create(item).Error
}

func (s *Store) GetMarket(ctx context.Context, id string) (*models.Market, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	return getMarket(s.db.WithContext(ctx), id)
}

func (s *Store) GetMarketTx(ctx context.Context, tx *gorm.DB, id string) (*models.Market, error) {
	if tx == nil {
		return nil, nil
	}
	return getMarket(tx.WithContext(ctx), id)
}

func getMarket(db *gorm.DB, id string) (*models.Market, error) {
	var item models.Market
	err := db.Where("id = ?", id).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) UpdateMarketTx(ctx context.Context, tx *gorm.DB, id string, updates map[string]any) error {
	if tx == nil || len(updates) == 0 {
		return nil
	}
	return tx.WithContext(ctx).
		Model(&models.Market{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (s *Store) IncrementMarketTotalTx(ctx context.Context, tx *gorm.DB, id string, delta decimal.Decimal) error {
	if tx == nil {
		return nil
	}
	return tx.WithContext(ctx).
		Model(&models.Market{}).
		Where("id = ?", id).
		UpdateColumn("total_funds", gorm.Expr("total_funds + ?", delta)).Error
}

func (s *Store) ListMarkets(ctx context.Context, params repository.ListMarketsParams) ([]models.Market, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := applyMarketFilters(s.db.WithContext(ctx).Model(&models.Market{}), params)
	query = applyOrder(query, params.OrderBy, params.Asc, "end_height")
	limit := normalizeLimit(params.Limit, 50)
	offset := normalizeOffset(params.Offset)
	var items []models.Market
	if err := query.Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountMarkets(ctx context.Context, params repository.ListMarketsParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var count int64
	query := applyMarketFilters(s.db.WithContext(ctx).Model(&models.Market{}), params)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func applyMarketFilters(query *gorm.DB, params repository.ListMarketsParams) *gorm.DB {
	if params.Currency != nil && strings.TrimSpace(*params.Currency) != "" {
		query = query.Where("currency = ?", strings.TrimSpace(*params.Currency))
	}
	if params.Initiator != nil && strings.TrimSpace(*params.Initiator) != "" {
		query = query.Where("initiator = ?", strings.TrimSpace(*params.Initiator))
	}
	if params.State != nil {
		query = query.Where("state = ?", *params.State)
	}
	if params.TxID != nil && strings.TrimSpace(*params.TxID) != "" {
		query = query.Where("tx_id = ?", strings.TrimSpace(*params.TxID))
	}
	return query
}

// --- Outcomes ---------------------------------------------------------------

func (s *Store) CreateOutcomeTx(ctx context.Context, tx *gorm.DB, item *models.Outcome) error {
	if tx == nil || item == nil {
		return nil
	}
	return tx.WithContext(ctx).Create(item).Error
}

func (s *Store) ListOutcomes(ctx context.Context, marketID string) ([]models.Outcome, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	return listOutcomes(s.db.WithContext(ctx), marketID)
}

func (s *Store) ListOutcomesTx(ctx context.Context, tx *gorm.DB, marketID string) ([]models.Outcome, error) {
	if tx == nil {
		return nil, nil
	}
	return listOutcomes(tx.WithContext(ctx), marketID)
}

func listOutcomes(db *gorm.DB, marketID string) ([]models.Outcome, error) {
	var items []models.Outcome
	if err := db.
		Where("market_id = ?", marketID).
		Order("choice_index asc").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) IncrementOutcomeShareTx(ctx context.Context, tx *gorm.DB, marketID string, choice int32, delta decimal.Decimal) error {
	if tx == nil {
		return nil
	}
	return tx.WithContext(ctx).
		Model(&models.Outcome{}).
		Where("market_id = ? AND choice_index = ?", marketID, choice).
		UpdateColumn("share", gorm.Expr("share + ?", delta)).Error
}

// --- Positions --------------------------------------------------------------

func (s *Store) GetPositionTx(ctx context.Context, tx *gorm.DB, marketID, address string, choice int32) (*models.Position, error) {
	if tx == nil {
		return nil, nil
	}
	var item models.Position
	err := tx.WithContext(ctx).
		Where("market_id = ? AND address = ? AND choice_index = ?", marketID, address, choice).
		First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) CreatePositionTx(ctx context.Context, tx *gorm.DB, item *models.Position) error {
	if tx == nil || item == nil {
		return nil
	}
	return tx.WithContext(ctx).Create(item).Error
}

func (s *Store) IncrementPositionShareTx(ctx context.Context, tx *gorm.DB, marketID, address string, choice int32, delta decimal.Decimal) error {
	if tx == nil {
		return nil
	}
	return tx.WithContext(ctx).
		Model(&models.Position{}).
		Where("market_id = ? AND address = ? AND choice_index = ?", marketID, address, choice).
		UpdateColumn("share", gorm.Expr("share + ?", delta)).Error
}

func (s *Store) SetPositionShareTx(ctx context.Context, tx *gorm.DB, marketID, address string, choice int32, value decimal.Decimal) error {
	if tx == nil {
		return nil
	}
	return tx.WithContext(ctx).
		Model(&models.Position{}).
		Where("market_id = ? AND address = ? AND choice_index = ?", marketID, address, choice).
		UpdateColumn("share", value).Error
}

func (s *Store) ListPositionsByMarketAddressTx(ctx context.Context, tx *gorm.DB, marketID, address string) ([]models.Position, error) {
	if tx == nil {
		return nil, nil
	}
	var items []models.Position
	if err := tx.WithContext(ctx).
		Where("market_id = ? AND address = ?", marketID, address).
		Order("choice_index asc").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) ListPositions(ctx context.Context, params repository.ListPositionsParams) ([]models.Position, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := applyPositionFilters(s.db.WithContext(ctx).Model(&models.Position{}), params)
	limit := normalizeLimit(params.Limit, 200)
	offset := normalizeOffset(params.Offset)
	var items []models.Position
	if err := query.
		Order("market_id asc, choice_index asc").
		Limit(limit).Offset(offset).
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountPositions(ctx context.Context, params repository.ListPositionsParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var count int64
	query := applyPositionFilters(s.db.WithContext(ctx).Model(&models.Position{}), params)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func applyPositionFilters(query *gorm.DB, params repository.ListPositionsParams) *gorm.DB {
	if params.MarketID != nil && strings.TrimSpace(*params.MarketID) != "" {
		query = query.Where("market_id = ?", strings.TrimSpace(*params.MarketID))
	}
	if params.Address != nil && strings.TrimSpace(*params.Address) != "" {
		query = query.Where("address = ?", strings.TrimSpace(*params.Address))
	}
	return query
}

// --- Trades -----------------------------------------------------------------

func (s *Store) CreateTradeTx(ctx context.Context, tx *gorm.DB, item *models.Trade) error {
	if tx == nil || item == nil {
		return nil
	}
	return tx.WithContext(ctx).Create(item).Error
}

func (s *Store) ListTrades(ctx context.Context, params repository.ListTradesParams) ([]models.Trade, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := applyTradeFilters(s.db.WithContext(ctx).Model(&models.Trade{}), params)
	query = applyOrder(query, params.OrderBy, params.Asc, "timestamp")
	limit := normalizeLimit(params.Limit, 50)
	offset := normalizeOffset(params.Offset)
	var items []models.Trade
	if err := query.Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountTrades(ctx context.Context, params repository.ListTradesParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var count int64
	query := applyTradeFilters(s.db.WithContext(ctx).Model(&models.Trade{}), params)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func applyTradeFilters(query *gorm.DB, params repository.ListTradesParams) *gorm.DB {
	if params.MarketID != nil && strings.TrimSpace(*params.MarketID) != "" {
		query = query.Where("market_id = ?", strings.TrimSpace(*params.MarketID))
	}
	if params.Trader != nil && strings.TrimSpace(*params.Trader) != "" {
		query = query.Where("trader = ?", strings.TrimSpace(*params.Trader))
	}
	return query
}

// --- Settlements ------------------------------------------------------------

func (s *Store) GetSettlementTx(ctx context.Context, tx *gorm.DB, marketID, address string) (*models.Settlement, error) {
	if tx == nil {
		return nil, nil
	}
	var item models.Settlement
	err := tx.WithContext(ctx).
		Where("market_id = ? AND address = ?", marketID, address).
		First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) CreateSettlementTx(ctx context.Context, tx *gorm.DB, item *models.Settlement) error {
	if tx == nil || item == nil {
		return nil
	}
	return tx.WithContext(ctx).Create(item).Error
}

func (s *Store) ListSettlements(ctx context.Context, params repository.ListSettlementsParams) ([]models.Settlement, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := applySettlementFilters(s.db.WithContext(ctx).Model(&models.Settlement{}), params)
	limit := normalizeLimit(params.Limit, 50)
	offset := normalizeOffset(params.Offset)
	var items []models.Settlement
	if err := query.
		Order("timestamp desc").
		Limit(limit).Offset(offset).
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountSettlements(ctx context.Context, params repository.ListSettlementsParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var count int64
	query := applySettlementFilters(s.db.WithContext(ctx).Model(&models.Settlement{}), params)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func applySettlementFilters(query *gorm.DB, params repository.ListSettlementsParams) *gorm.DB {
	if params.MarketID != nil && strings.TrimSpace(*params.MarketID) != "" {
		query = query.Where("market_id = ?", strings.TrimSpace(*params.MarketID))
	}
	if params.Address != nil && strings.TrimSpace(*params.Address) != "" {
		query = query.Where("address = ?", strings.TrimSpace(*params.Address))
	}
	return query
}

// --- Reveals and verdicts ---------------------------------------------------

func (s *Store) CreateRevealTx(ctx context.Context, tx *gorm.DB, item *models.Reveal) error {
	if tx == nil || item == nil {
		return nil
	}
	return tx.WithContext(ctx).Create(item).Error
}

func (s *Store) GetReveal(ctx context.Context, marketID string) (*models.Reveal, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.Reveal
	err := s.db.WithContext(ctx).Where("market_id = ?", marketID).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) CreateVerdictTx(ctx context.Context, tx *gorm.DB, item *models.Verdict) error {
	if tx == nil || item == nil {
		return nil
	}
	return tx.WithContext(ctx).Create(item).Error
}

func (s *Store) GetVerdict(ctx context.Context, marketID string) (*models.Verdict, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.Verdict
	err := s.db.WithContext(ctx).Where("market_id = ?", marketID).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// --- Appeals and comments ---------------------------------------------------

func (s *Store) CreateAppealTx(ctx context.Context, tx *gorm.DB, item *models.Appeal) error {
	if tx == nil || item == nil {
		return nil
	}
	return tx.WithContext(ctx).Create(item).Error
}

func (s *Store) ListAppeals(ctx context.Context, params repository.ListAppealsParams) ([]models.Appeal, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := applyAppealFilters(s.db.WithContext(ctx).Model(&models.Appeal{}), params)
	limit := normalizeLimit(params.Limit, 50)
	offset := normalizeOffset(params.Offset)
	var items []models.Appeal
	if err := query.
		Order("timestamp desc").
		Limit(limit).Offset(offset).
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountAppeals(ctx context.Context, params repository.ListAppealsParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var count int64
	query := applyAppealFilters(s.db.WithContext(ctx).Model(&models.Appeal{}), params)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func applyAppealFilters(query *gorm.DB, params repository.ListAppealsParams) *gorm.DB {
	if params.MarketID != nil && strings.TrimSpace(*params.MarketID) != "" {
		query = query.Where("market_id = ?", strings.TrimSpace(*params.MarketID))
	}
	if params.Appealer != nil && strings.TrimSpace(*params.Appealer) != "" {
		query = query.Where("appealer = ?", strings.TrimSpace(*params.Appealer))
	}
	return query
}

func (s *Store) CreateCommentTx(ctx context.Context, tx *gorm.DB, item *models.Comment) error {
	if tx == nil || item == nil {
		return nil
	}
	return tx.WithContext(ctx).Create(item).Error
}

func (s *Store) ListComments(ctx context.Context, params repository.ListCommentsParams) ([]models.Comment, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := applyCommentFilters(s.db.WithContext(ctx).Model(&models.Comment{}), params)
	limit := normalizeLimit(params.Limit, 50)
	offset := normalizeOffset(params.Offset)
	var items []models.Comment
	if err := query.
		Order("timestamp desc").
		Limit(limit).Offset(offset).
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountComments(ctx context.Context, params repository.ListCommentsParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var count int64
	query := applyCommentFilters(s.db.WithContext(ctx).Model(&models.Comment{}), params)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func applyCommentFilters(query *gorm.DB, params repository.ListCommentsParams) *gorm.DB {
	if params.MarketID != nil && strings.TrimSpace(*params.MarketID) != "" {
		query = query.Where("market_id = ?", strings.TrimSpace(*params.MarketID))
	}
	if params.Author != nil && strings.TrimSpace(*params.Author) != "" {
		query = query.Where("author = ?", strings.TrimSpace(*params.Author))
	}
	return query
}

// --- Balances ---------------------------------------------------------------

func (s *Store) GetBalance(ctx context.Context, address, currency string) (decimal.Decimal, error) {
	if s == nil || s.db == nil {
		return decimal.Zero, nil
	}
	return getBalance(s.db.WithContext(ctx), address, currency)
}

func (s *Store) GetBalanceTx(ctx context.Context, tx *gorm.DB, address, currency string) (decimal.Decimal, error) {
	if tx == nil {
		return decimal.Zero, nil
	}
	return getBalance(tx.WithContext(ctx), address, currency)
}

func getBalance(db *gorm.DB, address, currency string) (decimal.Decimal, error) {
	var item models.Balance
	err := db.Where("address = ? AND currency = ?", address, currency).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, err
	}
	return item.Amount, nil
}

func (s *Store) AddBalanceTx(ctx context.Context, tx *gorm.DB, address, currency string, delta decimal.Decimal) error {
	if tx == nil {
		return nil
	}
	res := tx.WithContext(ctx).
		Model(&models.Balance{}).
		Where("address = ? AND currency = ?", address, currency).
		UpdateColumn("amount", gorm.Expr("amount + ?", delta))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}
	return tx.WithContext(ctx).Create(&models.Balance{
		Address:  address,
		Currency: currency,
		Amount:   delta,
	}).Error
}

func (s *Store) ListBalances(ctx context.Context, address string) ([]models.Balance, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.Balance
	if err := s.db.WithContext(ctx).
		Where("address = ?", address).
		Order("currency asc").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// --- Sequences --------------------------------------------------------------

func (s *Store) NextSequenceTx(ctx context.Context, tx *gorm.DB, name string) (int64, error) {
	if tx == nil {
		return 0, nil
	}
	res := tx.WithContext(ctx).
		Model(&models.Sequence{}).
		Where("name = ?", name).
		UpdateColumn("value", gorm.Expr("value + 1"))
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		if err := tx.WithContext(ctx).Create(&models.Sequence{Name: name, Value: 1}).Error; err != nil {
			return 0, err
		}
		return 1, nil
	}
	var item models.Sequence
	if err := tx.WithContext(ctx).Where("name = ?", name).First(&item).Error; err != nil {
		return 0, err
	}
	return item.Value, nil
}

// --- helpers ----------------------------------------------------------------

func applyOrder(query *gorm.DB, orderBy string, asc *bool, fallback string) *gorm.DB {
	column := strings.TrimSpace(orderBy)
	if column == "" {
		column = fallback
	}
	direction := "desc"
	if asc != nil && *asc {
		direction = "asc"
	}
	return query.Order(column + " " + direction)
}

func normalizeLimit(limit, fallback int) int {
	if limit <= 0 {
		return fallback
	}
	if limit > 500 {
		return 500
	}
	return limit
}

func normalizeOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}
