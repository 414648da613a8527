package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"gofreight/internal/models"
	"gofreight/internal/repositories/interfaces"
	"gofreight/internal/validators"
	"gofreight/pkg/logger"
)

// HeadlineRateEmpty is rendered when a record has no usable rate figure.
const HeadlineRateEmpty = "—"

// RateTab selects a variant family in list views.
type RateTab string

const (
	RateTabAll RateTab = "all"
	RateTabAir RateTab = "air"
	RateTabSea RateTab = "sea"
)

// RateRow is the compact list-view projection of a rate record.
type RateRow struct {
	ID           string              `json:"id"`
	FreightType  models.FreightType  `json:"freight_type"`
	Origin       string              `json:"origin"`
	Destination  string              `json:"destination"`
	Carrier      string              `json:"carrier"`
	Category     string              `json:"category"`
	Route        string              `json:"route"`
	HeadlineRate string              `json:"headline_rate"`
	ValidUntil   *time.Time          `json:"valid_until"`
	ExpiryStatus models.ExpiryStatus `json:"expiry_status"`
}

type RateService interface {
	// Collection views
	LoadAll(ctx context.Context) ([]*models.RateRecord, error)
	LoadByCategory(ctx context.Context, category string) ([]*models.RateRecord, error)

	// Record lifecycle
	GetRate(ctx context.Context, id primitive.ObjectID) (*models.RateRecord, error)
	UpdateRate(ctx context.Context, id primitive.ObjectID, in *models.RateRecordInput) (*models.RateRecord, error)
	DeleteRate(ctx context.Context, id primitive.ObjectID) error

	// Derived views
	Filter(records []*models.RateRecord, query string, tab RateTab) []*models.RateRecord
	Project(records []*models.RateRecord) []RateRow
}

type rateService struct {
	rateRepo interfaces.RateRepository
	logger   *logger.Logger
}

func NewRateService(rateRepo interfaces.RateRepository, log *logger.Logger) RateService {
	return &rateService{
		rateRepo: rateRepo,
		logger:   log,
	}
}

func (s *rateService) LoadAll(ctx context.Context) ([]*models.RateRecord, error) {
	records, err := s.rateRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load rates: %w", err)
	}
	return records, nil
}

func (s *rateService) LoadByCategory(ctx context.Context, category string) ([]*models.RateRecord, error) {
	records, err := s.rateRepo.ListByCategory(ctx, category)
	if err != nil {
		return nil, fmt.Errorf("failed to load rates for category %s: %w", category, err)
	}
	return records, nil
}

func (s *rateService) GetRate(ctx context.Context, id primitive.ObjectID) (*models.RateRecord, error) {
	return s.rateRepo.GetByID(ctx, id)
}

func (s *rateService) UpdateRate(ctx context.Context, id primitive.ObjectID, in *models.RateRecordInput) (*models.RateRecord, error) {
	if errs := validators.ValidateRateInput(in); len(errs) > 0 {
		return nil, errs
	}
	return s.rateRepo.Update(ctx, id, in)
}

func (s *rateService) DeleteRate(ctx context.Context, id primitive.ObjectID) error {
	return s.rateRepo.Delete(ctx, id)
}

// Filter applies the variant-family tab and the free-text query as
// independent axes; a record survives only if it matches both. Category
// tabs do not go through here, they show the server-returned set as-is.
func (s *rateService) Filter(records []*models.RateRecord, query string, tab RateTab) []*models.RateRecord {
	query = strings.ToLower(strings.TrimSpace(query))

	var filtered []*models.RateRecord
	for _, record := range records {
		if !matchesTab(record, tab) {
			continue
		}
		if query != "" && !matchesQuery(record, query) {
			continue
		}
		filtered = append(filtered, record)
	}
	return filtered
}

func matchesTab(record *models.RateRecord, tab RateTab) bool {
	switch tab {
	case RateTabAir, RateTabSea:
		return strings.Contains(string(record.FreightType), string(tab))
	default:
		return true
	}
}

func matchesQuery(record *models.RateRecord, query string) bool {
	for _, field := range []string{
		record.Origin,
		record.Destination,
		record.Carrier,
		record.Route,
	} {
		if strings.Contains(strings.ToLower(field), query) {
			return true
		}
	}
	return false
}

func (s *rateService) Project(records []*models.RateRecord) []RateRow {
	now := time.Now()
	rows := make([]RateRow, 0, len(records))
	for _, record := range records {
		rows = append(rows, RateRow{
			ID:           record.ID.Hex(),
			FreightType:  record.FreightType,
			Origin:       record.Origin,
			Destination:  record.Destination,
			Carrier:      record.Carrier,
			Category:     record.Category,
			Route:        record.Route,
			HeadlineRate: HeadlineRate(record),
			ValidUntil:   record.ValidUntil,
			ExpiryStatus: models.GetExpiryStatus(record.ValidUntil, now),
		})
	}
	return rows
}

// HeadlineRate derives the single representative price shown in compact
// list views, by variant-specific priority among the stored tiers.
func HeadlineRate(record *models.RateRecord) string {
	var candidates []*float64

	switch {
	case record.FreightType.IsAir():
		if air := record.Payload.Air; air != nil {
			candidates = []*float64{air.Over45, air.Under45Alt, air.Under45, air.Over100}
		}
	case record.FreightType.IsFCL():
		if fcl := record.Payload.FCL; fcl != nil {
			candidates = []*float64{fcl.Rate20ft, fcl.Rate40ft, fcl.Rate40ftHQ}
		}
	case record.FreightType.IsLCL():
		if lcl := record.Payload.LCL; lcl != nil {
			candidates = []*float64{lcl.LCLRate}
		}
	}

	for _, v := range candidates {
		if v != nil {
			return strconv.FormatFloat(*v, 'f', -1, 64)
		}
	}
	return HeadlineRateEmpty
}
