package entities

// Reward is a catalog entry redeemable for points
type Reward struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	PointCost   int64  `json:"pointCost"`
	ImageRef    string `json:"imageRef,omitempty"`
}

// RewardView decorates a reward with the advisory redeemability flag
type RewardView struct {
	Reward
	CanRedeem    bool  `json:"canRedeem"`
	PointsNeeded int64 `json:"pointsNeeded,omitempty"`
}

// Redemption records a successful reward redemption
type Redemption struct {
	Reward      Reward      `json:"reward"`
	Transaction Transaction `json:"transaction"`
	Balance     int64       `json:"balance"`
}
