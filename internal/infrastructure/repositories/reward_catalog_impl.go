package repositories

import (
	"context"

	"kyc-wallet.backend/internal/domain/entities"
	domainerrors "kyc-wallet.backend/internal/domain/errors"
)

var defaultRewards = []entities.Reward{
	{
		ID:          "1",
		Title:       "Free Coffee",
		Description: "Enjoy a complimentary coffee at any partner cafe.",
		PointCost:   200,
		ImageRef:    "rewards/coffee.png",
	},
	{
		ID:          "2",
		Title:       "10% Store Discount",
		Description: "Get 10% off on your next in-store purchase.",
		PointCost:   500,
		ImageRef:    "rewards/discount.png",
	},
	{
		ID:          "3",
		Title:       "Premium Mug",
		Description: "A branded ceramic mug delivered to your address.",
		PointCost:   900,
		ImageRef:    "rewards/mug.png",
	},
}

// RewardCatalog serves a fixed reward list
type RewardCatalog struct {
	rewards []entities.Reward
}

// NewRewardCatalog creates a catalog over rewards, or the default list when none are given
func NewRewardCatalog(rewards ...entities.Reward) *RewardCatalog {
	if len(rewards) == 0 {
		rewards = defaultRewards
	}
	out := make([]entities.Reward, len(rewards))
	copy(out, rewards)
	return &RewardCatalog{rewards: out}
}

// List returns all rewards ordered by point cost as configured
func (c *RewardCatalog) List(ctx context.Context) ([]entities.Reward, error) {
	out := make([]entities.Reward, len(c.rewards))
	copy(out, c.rewards)
	return out, nil
}

// GetByID gets a reward by ID
func (c *RewardCatalog) GetByID(ctx context.Context, id string) (*entities.Reward, error) {
	for _, reward := range c.rewards {
		if reward.ID == id {
			r := reward
			return &r, nil
		}
	}
	return nil, domainerrors.ErrNotFound
}
