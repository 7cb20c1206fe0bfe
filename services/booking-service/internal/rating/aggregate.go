// Package rating keeps provider ratings derived from reviews. The summary is
// always recomputed from scratch inside the review's transaction.
package rating

import (
	"context"
	"fmt"
	"time"

	"github.com/md-rashed-zaman/homebook/services/booking-service/internal/domain"
	"github.com/md-rashed-zaman/homebook/services/booking-service/internal/storage"
)

// Compute averages the reviews that carry a rating.
func Compute(reviews []domain.Review) domain.RatingSummary {
	var sum float64
	n := 0
	for _, r := range reviews {
		if r.Rating == nil {
			continue
		}
		sum += *r.Rating
		n++
	}
	if n == 0 {
		return domain.RatingSummary{}
	}
	return domain.RatingSummary{Rating: sum / float64(n), ReviewCount: n}
}

// Recompute rewrites the provider's rating from its reviews.
func Recompute(ctx context.Context, tx storage.Tx, providerID string, at time.Time) (domain.RatingSummary, error) {
	reviews, err := tx.Reviews().ListByProvider(ctx, providerID)
	if err != nil {
		return domain.RatingSummary{}, fmt.Errorf("list reviews: %w", err)
	}
	summary := Compute(reviews)
	if err := tx.Providers().UpdateRating(ctx, providerID, summary, at); err != nil {
		return domain.RatingSummary{}, err
	}
	return summary, nil
}
