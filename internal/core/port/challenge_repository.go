package port

import (
	"context"

	"github.com/yavuz-tech/helvino/internal/core/domain"
)

// ChallengeRepository stores step-up challenges.
type ChallengeRepository interface {
	Create(ctx context.Context, challenge domain.StepUpChallenge) error
	GetByID(ctx context.Context, challengeID string) (*domain.StepUpChallenge, error)
	// Update persists the attempts counter and status of an existing challenge.
	Update(ctx context.Context, challenge domain.StepUpChallenge) error
}
