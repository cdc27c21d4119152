package repositories

import (
	"context"

	"kyc-wallet.backend/internal/domain/entities"
)

// RewardCatalog lists the rewards redeemable for points
type RewardCatalog interface {
	List(ctx context.Context) ([]entities.Reward, error)
	GetByID(ctx context.Context, id string) (*entities.Reward, error)
}
