package interfaces

import (
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"gofreight/internal/models"
)

// RateRepository is the generic rate store the freight subsystem runs on.
// Update is a full-record replace; there are no partial patch semantics.
type RateRepository interface {
	List(ctx context.Context) ([]*models.RateRecord, error)
	ListByCategory(ctx context.Context, category string) ([]*models.RateRecord, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.RateRecord, error)
	Create(ctx context.Context, in *models.RateRecordInput) (*models.RateRecord, error)
	CreateBulk(ctx context.Context, ins []*models.RateRecordInput) ([]*models.RateRecord, error)
	Update(ctx context.Context, id primitive.ObjectID, in *models.RateRecordInput) (*models.RateRecord, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
}
