package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/tidwall/gjson"

	"kzz_crawler/config"
	"kzz_crawler/market"
	"kzz_crawler/models"
	"kzz_crawler/parser"
	"kzz_crawler/storage"
)

// BondStore is the persistence surface the ingest paths need.
// *storage.PostgresStore satisfies it.
type BondStore interface {
	UpsertSummary(ctx context.Context, rows []models.SummaryRecord) storage.UpsertStats
	UpsertDetail(ctx context.Context, key models.DetailKey, rec *models.DetailRecord) (int64, string, error)
	UpsertStrategy(ctx context.Context, rec *models.StrategyRecord) (int64, error)
	UpsertIndexMetrics(ctx context.Context, m *models.IndexMetrics) error
	UpsertIndexHistory(ctx context.Context, points []models.IndexHistoryPoint) (int, error)
	PruneMissing(ctx context.Context, ids []string) (int64, error)
	HistoryCandidates(ctx context.Context) ([]models.HistoryCandidate, error)
}

// BondService joins captured payloads, the parsers and the store.
type BondService struct {
	store    BondStore
	archiver storage.Archiver
	cfg      config.CrawlerConfig
	now      func() time.Time
}

func NewBondService(store BondStore, archiver storage.Archiver, cfg config.CrawlerConfig) *BondService {
	if archiver == nil {
		archiver = storage.NopArchiver{}
	}
	return &BondService{
		store:    store,
		archiver: archiver,
		cfg:      cfg,
		now:      time.Now,
	}
}

// DetailTarget is a bond whose detail page should be crawled. Index is its
// position in the list payload.
type DetailTarget struct {
	BondID string
	Index  int
}

// ListResult is the outcome of ingesting one list payload. Rows is the
// length of the data array, also for a rejected payload.
type ListResult struct {
	Accepted   bool
	Rows       int
	Stats      storage.UpsertStats
	IDs        []string
	Eligible   []DetailTarget
	ArchiveKey string
}

// IngestList upserts a list payload and works out which bonds get a detail
// crawl. A payload that fails the sanity guard is ignored.
func (s *BondService) IngestList(ctx context.Context, body []byte) (*ListResult, error) {
	rows, ok := parser.ParseListPayload(body, s.cfg.ListMinItems)
	if !ok {
		return &ListResult{Rows: int(gjson.GetBytes(body, "data.#").Int())}, nil
	}

	result := &ListResult{Accepted: true, Rows: len(rows)}
	result.Stats = s.store.UpsertSummary(ctx, rows)
	log.Printf("[bonds] list: %d rows, %d upserted, %d failed", len(rows), result.Stats.Upserted, result.Stats.Failed)

	key, err := s.archiver.Archive(ctx, "list", s.now(), body)
	if err != nil {
		log.Printf("[bonds] archive list payload: %v", err)
	}
	result.ArchiveKey = key

	result.IDs = parser.IDs(rows)
	result.Eligible = s.eligibleTargets(rows)
	return result, nil
}

func (s *BondService) eligibleTargets(rows []models.SummaryRecord) []DetailTarget {
	today := s.now().In(market.Location())

	var targets []DetailTarget
	for i := range rows {
		if s.cfg.MaxDetailItems > 0 && len(targets) >= s.cfg.MaxDetailItems {
			break
		}
		if !EligibleForDetail(&rows[i], today, s.cfg.PriceFloor, s.cfg.PriceCeiling) {
			continue
		}
		targets = append(targets, DetailTarget{BondID: rows[i].BondID, Index: i})
	}
	return targets
}

// EligibleForDetail filters out bonds whose detail data is not worth
// collecting: matured, third-board, exchangeable, pending forced redemption,
// or priced outside [floor, ceiling].
func EligibleForDetail(rec *models.SummaryRecord, today time.Time, floor, ceiling float64) bool {
	if rec.Matured(today) {
		return false
	}
	if v, _ := rec.MarketCd.Get(); v == "sb" {
		return false
	}
	if v, _ := rec.Btype.Get(); v == "E" {
		return false
	}
	if v, _ := rec.RedeemStatus.Get(); storage.RedeemPending(v) {
		return false
	}
	price, ok := rec.Price.Get()
	if !ok {
		return false
	}
	return price >= floor && price <= ceiling
}

// IngestHistory stores a bond's price history and its extremes. An empty
// history writes nothing.
func (s *BondService) IngestHistory(ctx context.Context, bondID string, body []byte) error {
	summary, err := parser.ParseHistory(body)
	if err != nil {
		return fmt.Errorf("parse history %s: %w", bondID, err)
	}
	if summary.Rows == 0 {
		log.Printf("[bonds] %s: empty history", bondID)
		return nil
	}

	rec := &models.DetailRecord{
		Info:            models.Some(summary.Info),
		MaxHistoryPrice: models.FromPtr(summary.MaxPrice),
		MinHistoryPrice: models.FromPtr(summary.MinPrice),
		MaxPriceDate:    models.Some(summary.MaxDate),
		MinPriceDate:    models.Some(summary.MinDate),
		UpdateTime:      models.Some(s.now()),
	}
	_, _, err = s.store.UpsertDetail(ctx, models.DetailKey{BondID: bondID}, rec)
	return err
}

// IngestAdjustLogs keeps the raw adjustment log and its parsed records.
func (s *BondService) IngestAdjustLogs(ctx context.Context, bondID string, encoded string) error {
	records := parser.ParseAdjustData(encoded)
	if records == nil {
		records = []models.AdjustmentRecord{}
	}
	data, err := json.Marshal(records)
	if err != nil {
		return err
	}

	rec := &models.DetailRecord{
		AdjLogs:    models.Some(encoded),
		AdjRecords: models.Some(models.JSONText(data)),
	}
	_, _, err = s.store.UpsertDetail(ctx, models.DetailKey{BondID: bondID}, rec)
	return err
}

// IngestDetailPage stores what the rendered detail page shows: industry,
// concept tags and the cash-flow block. Blank sections are left untouched.
func (s *BondService) IngestDetailPage(ctx context.Context, bondID string, html io.Reader, sel parser.DetailSelectors) error {
	page, err := parser.ParseDetailPage(html, sel)
	if err != nil {
		return fmt.Errorf("parse detail page %s: %w", bondID, err)
	}

	var rec models.DetailRecord
	if page.Industry != "" {
		rec.Industry = models.Some(page.Industry)
	}
	if len(page.Concepts) > 0 {
		data, err := json.Marshal(page.Concepts)
		if err != nil {
			return err
		}
		rec.Concept = models.Some(models.JSONText(data))
	}
	if page.CashFlowText != "" {
		rec.CashFlowData = models.Some(page.CashFlowText)
		if cf := parser.ParseCashFlow(page.CashFlowText); cf != nil {
			data, err := json.Marshal(cf)
			if err != nil {
				return err
			}
			rec.CashFlowSummary = models.Some(models.JSONText(data))
		}
	}

	cols, _ := models.DetailFields.Present(&rec)
	if len(cols) == 0 {
		return nil
	}
	_, _, err = s.store.UpsertDetail(ctx, models.DetailKey{BondID: bondID}, &rec)
	return err
}

func (s *BondService) IngestIndexHistory(ctx context.Context, body []byte) (int, error) {
	points := parser.ParseIndexHistory(body, market.Location())
	if len(points) == 0 {
		return 0, nil
	}
	return s.store.UpsertIndexHistory(ctx, points)
}

func (s *BondService) SaveIndexMetrics(ctx context.Context, m *models.IndexMetrics) error {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = s.now()
	}
	return s.store.UpsertIndexMetrics(ctx, m)
}

// SetStrategy merges an operator edit into the bond's strategy row.
func (s *BondService) SetStrategy(ctx context.Context, rec *models.StrategyRecord) error {
	if rec.BondID == "" {
		return storage.ErrNoBondID
	}
	if lvl, ok := rec.Level.Get(); ok && (lvl < 0 || lvl > 2) {
		return fmt.Errorf("level %d out of range 0..2", lvl)
	}
	_, err := s.store.UpsertStrategy(ctx, rec)
	return err
}

// Reconcile drops rows that disappeared from the latest full list and rolls
// stored histories forward. An empty id set is a no-op.
func (s *BondService) Reconcile(ctx context.Context, ids []string) (int64, RollStats, error) {
	if len(ids) == 0 {
		log.Printf("[bonds] reconcile skipped: no ids from this run")
		return 0, RollStats{}, nil
	}

	pruned, err := s.store.PruneMissing(ctx, ids)
	if err != nil {
		return 0, RollStats{}, fmt.Errorf("prune: %w", err)
	}
	log.Printf("[bonds] pruned %d rows", pruned)

	stats, err := s.RollHistory(ctx)
	if err != nil {
		return pruned, stats, fmt.Errorf("roll history: %w", err)
	}
	return pruned, stats, nil
}
