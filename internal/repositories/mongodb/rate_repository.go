package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"gofreight/internal/models"
	"gofreight/internal/repositories/interfaces"
	"gofreight/pkg/logger"
)

const (
	rateListCacheKey     = "rates:all"
	rateCategoryCacheKey = "rates:category:%s"
	rateCachePattern     = "rates:*"
	rateListCacheTTL     = 5 * time.Minute
)

// CacheService is the subset of cache operations the repository uses.
type CacheService interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Keys(ctx context.Context, pattern string) ([]string, error)
}

type rateRepository struct {
	collection *mongo.Collection
	cache      CacheService
	logger     *logger.Logger
}

func NewRateRepository(db *mongo.Database, cache CacheService, log *logger.Logger) interfaces.RateRepository {
	return &rateRepository{
		collection: db.Collection("freight_rates"),
		cache:      cache,
		logger:     log,
	}
}

func (r *rateRepository) List(ctx context.Context) ([]*models.RateRecord, error) {
	if records, ok := r.listFromCache(ctx, rateListCacheKey); ok {
		return records, nil
	}

	records, err := r.findRates(ctx, bson.M{})
	if err != nil {
		return nil, err
	}

	r.cacheList(ctx, rateListCacheKey, records)
	return records, nil
}

func (r *rateRepository) ListByCategory(ctx context.Context, category string) ([]*models.RateRecord, error) {
	cacheKey := fmt.Sprintf(rateCategoryCacheKey, category)
	if records, ok := r.listFromCache(ctx, cacheKey); ok {
		return records, nil
	}

	records, err := r.findRates(ctx, bson.M{"category": category})
	if err != nil {
		return nil, err
	}

	r.cacheList(ctx, cacheKey, records)
	return records, nil
}

func (r *rateRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.RateRecord, error) {
	var record models.RateRecord
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&record)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, fmt.Errorf("rate not found")
		}
		return nil, fmt.Errorf("failed to get rate: %w", err)
	}

	r.decodePayload(&record)
	return &record, nil
}

func (r *rateRepository) Create(ctx context.Context, in *models.RateRecordInput) (*models.RateRecord, error) {
	record, err := r.recordFromInput(in)
	if err != nil {
		return nil, err
	}
	record.ID = primitive.NewObjectID()
	record.CreatedAt = time.Now()
	record.UpdatedAt = record.CreatedAt

	if _, err := r.collection.InsertOne(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to create rate: %w", err)
	}

	r.invalidateCache(ctx)
	r.decodePayload(record)
	return record, nil
}

func (r *rateRepository) CreateBulk(ctx context.Context, ins []*models.RateRecordInput) ([]*models.RateRecord, error) {
	if len(ins) == 0 {
		return nil, nil
	}

	now := time.Now()
	records := make([]*models.RateRecord, 0, len(ins))
	docs := make([]interface{}, 0, len(ins))
	for _, in := range ins {
		record, err := r.recordFromInput(in)
		if err != nil {
			return nil, err
		}
		record.ID = primitive.NewObjectID()
		record.CreatedAt = now
		record.UpdatedAt = now
		records = append(records, record)
		docs = append(docs, record)
	}

	if _, err := r.collection.InsertMany(ctx, docs); err != nil {
		return nil, fmt.Errorf("failed to create rates in bulk: %w", err)
	}

	r.invalidateCache(ctx)
	for _, record := range records {
		r.decodePayload(record)
	}
	return records, nil
}

func (r *rateRepository) Update(ctx context.Context, id primitive.ObjectID, in *models.RateRecordInput) (*models.RateRecord, error) {
	record, err := r.recordFromInput(in)
	if err != nil {
		return nil, err
	}

	// Full-record replace; last write wins.
	updates := bson.M{
		"freight_type":       record.FreightType,
		"origin":             record.Origin,
		"destination":        record.Destination,
		"carrier":            record.Carrier,
		"category":           record.Category,
		"route":              record.Route,
		"routing_type":       record.RoutingType,
		"transit_time":       record.TransitTime,
		"transshipment_time": record.TransshipmentTime,
		"frequency":          record.Frequency,
		"surcharges":         record.Surcharges,
		"note":               record.Note,
		"remark":             record.Remark,
		"valid_until":        record.ValidUntil,
		"payload":            record.PayloadRaw,
		"updated_at":         time.Now(),
	}

	result := r.collection.FindOneAndUpdate(
		ctx,
		bson.M{"_id": id},
		bson.M{"$set": updates},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)

	var updated models.RateRecord
	if err := result.Decode(&updated); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, fmt.Errorf("rate not found")
		}
		return nil, fmt.Errorf("failed to update rate: %w", err)
	}

	r.invalidateCache(ctx)
	r.decodePayload(&updated)
	return &updated, nil
}

func (r *rateRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete rate: %w", err)
	}
	if result.DeletedCount == 0 {
		return fmt.Errorf("rate not found")
	}

	r.invalidateCache(ctx)
	return nil
}

// Helper methods

func (r *rateRepository) recordFromInput(in *models.RateRecordInput) (*models.RateRecord, error) {
	blob, err := in.EncodePayload()
	if err != nil {
		return nil, err
	}

	routingType := in.RoutingType
	if routingType == "" {
		routingType = models.RoutingTypeDirect
	}

	return &models.RateRecord{
		FreightType:       in.FreightType,
		Origin:            in.Origin,
		Destination:       in.Destination,
		Carrier:           in.Carrier,
		Category:          in.Category,
		Route:             in.Route,
		RoutingType:       routingType,
		TransitTime:       in.TransitTime,
		TransshipmentTime: in.TransshipmentTime,
		Frequency:         in.Frequency,
		Surcharges:        in.Surcharges,
		Note:              in.Note,
		Remark:            in.Remark,
		ValidUntil:        in.ValidUntil,
		PayloadRaw:        blob,
	}, nil
}

func (r *rateRepository) findRates(ctx context.Context, filter bson.M) ([]*models.RateRecord, error) {
	cursor, err := r.collection.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to find rates: %w", err)
	}
	defer cursor.Close(ctx)

	var records []*models.RateRecord
	for cursor.Next(ctx) {
		var record models.RateRecord
		if err := cursor.Decode(&record); err != nil {
			return nil, fmt.Errorf("failed to decode rate: %w", err)
		}
		r.decodePayload(&record)
		records = append(records, &record)
	}

	return records, nil
}

// decodePayload merges the stored blob onto the record. A malformed blob is
// logged and degrades to an empty payload so one corrupt record cannot
// block the whole list.
func (r *rateRepository) decodePayload(record *models.RateRecord) {
	payload, err := models.DecodePayload(record.FreightType, record.PayloadRaw)
	if err != nil {
		if r.logger != nil {
			r.logger.WithError(err).WithField("rate_id", record.ID.Hex()).Warn("Failed to decode rate payload")
		}
		payload = models.RatePayload{}
	}
	record.Payload = payload
}

// Cache operations

func (r *rateRepository) listFromCache(ctx context.Context, key string) ([]*models.RateRecord, bool) {
	if r.cache == nil {
		return nil, false
	}

	// Cached entries round-trip through JSON, which carries the decoded
	// payload view, so no re-decode is needed here.
	var records []*models.RateRecord
	if err := r.cache.Get(ctx, key, &records); err != nil {
		return nil, false
	}
	return records, true
}

func (r *rateRepository) cacheList(ctx context.Context, key string, records []*models.RateRecord) {
	if r.cache == nil {
		return
	}
	r.cache.Set(ctx, key, records, rateListCacheTTL)
}

func (r *rateRepository) invalidateCache(ctx context.Context) {
	if r.cache == nil {
		return
	}

	keys, err := r.cache.Keys(ctx, rateCachePattern)
	if err != nil || len(keys) == 0 {
		return
	}
	r.cache.Delete(ctx, keys...)
}
