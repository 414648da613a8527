package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"gofreight/internal/models"
)

func rate(v float64) *float64 {
	return &v
}

// fakeRateRepo is an in-memory stand-in for the Mongo-backed store.
type fakeRateRepo struct {
	mu          sync.Mutex
	records     []*models.RateRecord
	createCalls int
	updateCalls int
	bulkInputs  []*models.RateRecordInput

	failCarrier string
	listErr     error
	bulkErr     error
}

func newFakeRateRepo() *fakeRateRepo {
	return &fakeRateRepo{}
}

func (f *fakeRateRepo) recordFrom(in *models.RateRecordInput) (*models.RateRecord, error) {
	blob, err := in.EncodePayload()
	if err != nil {
		return nil, err
	}
	payload, err := models.DecodePayload(in.FreightType, blob)
	if err != nil {
		payload = models.RatePayload{}
	}

	now := time.Now()
	return &models.RateRecord{
		ID:                primitive.NewObjectID(),
		FreightType:       in.FreightType,
		Origin:            in.Origin,
		Destination:       in.Destination,
		Carrier:           in.Carrier,
		Category:          in.Category,
		Route:             in.Route,
		RoutingType:       in.RoutingType,
		TransitTime:       in.TransitTime,
		TransshipmentTime: in.TransshipmentTime,
		Frequency:         in.Frequency,
		Surcharges:        in.Surcharges,
		Note:              in.Note,
		Remark:            in.Remark,
		ValidUntil:        in.ValidUntil,
		PayloadRaw:        blob,
		Payload:           payload,
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}

func (f *fakeRateRepo) List(ctx context.Context) ([]*models.RateRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]*models.RateRecord, len(f.records))
	copy(out, f.records)
	return out, nil
}

func (f *fakeRateRepo) ListByCategory(ctx context.Context, category string) ([]*models.RateRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []*models.RateRecord
	for _, r := range f.records {
		if r.Category == category {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeRateRepo) GetByID(ctx context.Context, id primitive.ObjectID) (*models.RateRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.records {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, fmt.Errorf("rate not found")
}

func (f *fakeRateRepo) Create(ctx context.Context, in *models.RateRecordInput) (*models.RateRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	if f.failCarrier != "" && in.Carrier == f.failCarrier {
		return nil, errors.New("insert failed")
	}
	record, err := f.recordFrom(in)
	if err != nil {
		return nil, err
	}
	f.records = append(f.records, record)
	return record, nil
}

func (f *fakeRateRepo) CreateBulk(ctx context.Context, ins []*models.RateRecordInput) ([]*models.RateRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bulkInputs = ins
	if f.bulkErr != nil {
		return nil, f.bulkErr
	}
	out := make([]*models.RateRecord, 0, len(ins))
	for _, in := range ins {
		record, err := f.recordFrom(in)
		if err != nil {
			return nil, err
		}
		f.records = append(f.records, record)
		out = append(out, record)
	}
	return out, nil
}

func (f *fakeRateRepo) Update(ctx context.Context, id primitive.ObjectID, in *models.RateRecordInput) (*models.RateRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updateCalls++
	for i, r := range f.records {
		if r.ID == id {
			record, err := f.recordFrom(in)
			if err != nil {
				return nil, err
			}
			record.ID = id
			record.CreatedAt = r.CreatedAt
			f.records[i] = record
			return record, nil
		}
	}
	return nil, fmt.Errorf("rate not found")
}

func (f *fakeRateRepo) Delete(ctx context.Context, id primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, r := range f.records {
		if r.ID == id {
			f.records = append(f.records[:i], f.records[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("rate not found")
}
