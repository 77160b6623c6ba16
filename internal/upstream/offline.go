package upstream

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"spinwin/internal/apperr"
	"spinwin/internal/models"
)

// Offline accepts reviews locally when no reward service is configured. The
// wheel then draws its own prize.
type Offline struct{}

func (Offline) SubmitReview(ctx context.Context, review models.Review) (string, error) {
	if strings.TrimSpace(review.FullName) == "" {
		return "", apperr.New(apperr.CodeReviewSubmitFailed, "name is required")
	}
	return "demo-" + uuid.NewString(), nil
}
