package catalog

import (
	"context"

	"spinwin/internal/apperr"
	"spinwin/internal/models"
)

// Source returns the rewards the wheel is built from, in wheel order.
type Source interface {
	Fetch(ctx context.Context) ([]models.Reward, error)
}

// RewardsAPI is the remote reward service.
type RewardsAPI interface {
	FetchRewards(ctx context.Context) ([]models.Reward, error)
}

type Remote struct {
	api RewardsAPI
}

func NewRemote(api RewardsAPI) *Remote {
	return &Remote{api: api}
}

func (r *Remote) Fetch(ctx context.Context) ([]models.Reward, error) {
	rewards, err := r.api.FetchRewards(ctx)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeCatalogUnavailable, apperr.ErrCatalogUnavailable.Message)
	}
	return rewards, nil
}

type Static struct {
	rewards []models.Reward
}

func NewStatic(rewards []models.Reward) *Static {
	return &Static{rewards: rewards}
}

func (s *Static) Fetch(ctx context.Context) ([]models.Reward, error) {
	out := make([]models.Reward, len(s.rewards))
	copy(out, s.rewards)
	return out, nil
}

// DemoRewards is the eight-slot wheel used when no reward service is configured.
func DemoRewards() []models.Reward {
	discount := func(id, pct, code string) models.Reward {
		return models.Reward{
			ID:          id,
			Name:        pct + "% Discount",
			Description: "Get " + pct + "% off your next order",
			CouponCode:  code,
			ExpiryDays:  30,
		}
	}
	tryAgain := func(id string) models.Reward {
		return models.Reward{
			ID:          id,
			Name:        "Try again",
			Description: "Better luck next time",
			IsTryAgain:  true,
		}
	}
	return []models.Reward{
		discount("1", "10", "SPIN10"),
		discount("2", "20", "SPIN20"),
		discount("3", "30", "SPIN30"),
		tryAgain("4"),
		discount("5", "40", "SPIN40"),
		tryAgain("6"),
		discount("7", "50", "SPIN50"),
		tryAgain("8"),
	}
}
