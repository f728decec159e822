package services

import (
	"context"
	"fmt"
	"time"

	"coinfluence/internal/events"
	"coinfluence/internal/models"
	"coinfluence/internal/repository"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// PendingApproval is an influencer whose threshold is met and awaits an admin.
type PendingApproval struct {
	models.Influencer
	Progress     decimal.Decimal `json:"progress"`
	ETHProgress  decimal.Decimal `json:"ethProgress"`
	USDCProgress decimal.Decimal `json:"usdcProgress"`
}

// ApprovalService gates token deployment behind an admin decision.
type ApprovalService struct {
	repo      *repository.Repository
	publisher events.Publisher
	log       *logrus.Entry
}

func NewApprovalService(db *gorm.DB, publisher events.Publisher) *ApprovalService {
	if publisher == nil {
		publisher = events.Noop{}
	}
	return &ApprovalService{
		repo:      repository.NewRepository(db),
		publisher: publisher,
		log:       logrus.WithField("component", "approval_service"),
	}
}

// Approve marks an influencer approved. The eligibility check and the state
// change are one conditional UPDATE, so concurrent approvals produce exactly
// one approved event.
func (s *ApprovalService) Approve(ctx context.Context, influencerID uint, adminID uint) (*models.Influencer, error) {
	var (
		inf   *models.Influencer
		event models.PledgeEvent
	)
	now := time.Now()

	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		n, err := tx.ApproveInfluencer(ctx, influencerID, now)
		if err != nil {
			return fmt.Errorf("failed to approve influencer: %w", err)
		}

		inf, err = tx.GetInfluencerByID(ctx, influencerID)
		if err != nil {
			if repository.IsNotFound(err) {
				return ErrInfluencerNotFound
			}
			return fmt.Errorf("failed to load influencer: %w", err)
		}

		if n == 0 {
			switch {
			case inf.IsApproved:
				return ErrAlreadyApproved
			case inf.Status == models.InfluencerStatusLive:
				return ErrAlreadyLaunched
			case inf.Status == models.InfluencerStatusRejected:
				return ErrAlreadyRejected
			default:
				return ErrThresholdNotMet
			}
		}

		event = models.PledgeEvent{
			EventType:         models.EventApproved,
			InfluencerID:      &inf.ID,
			InfluencerAddress: derefString(inf.WalletAddress),
			UserAddress:       fmt.Sprintf("admin:%d", adminID),
			EventData: models.JSONB{
				"admin_id":           adminID,
				"influencer_name":    inf.Name,
				"total_pledged_eth":  inf.TotalPledgedETH.String(),
				"total_pledged_usdc": inf.TotalPledgedUSDC.String(),
				"pledge_count":       inf.PledgeCount,
			},
			CreatedAt: now,
		}
		return tx.AppendEvent(ctx, &event)
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{"influencer_id": influencerID, "admin_id": adminID}).Info("Influencer approved")
	publishEvents(ctx, s.publisher, s.log, event)
	return inf, nil
}

// Reject closes pledging for an influencer that has not launched.
func (s *ApprovalService) Reject(ctx context.Context, influencerID uint, adminID uint, reason string) (*models.Influencer, error) {
	var (
		inf   *models.Influencer
		event models.PledgeEvent
	)
	now := time.Now()

	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		n, err := tx.RejectInfluencer(ctx, influencerID, now)
		if err != nil {
			return fmt.Errorf("failed to reject influencer: %w", err)
		}

		inf, err = tx.GetInfluencerByID(ctx, influencerID)
		if err != nil {
			if repository.IsNotFound(err) {
				return ErrInfluencerNotFound
			}
			return fmt.Errorf("failed to load influencer: %w", err)
		}

		if n == 0 {
			if inf.Status == models.InfluencerStatusLive {
				return ErrAlreadyLaunched
			}
			return ErrAlreadyRejected
		}

		event = models.PledgeEvent{
			EventType:         models.EventRejected,
			InfluencerID:      &inf.ID,
			InfluencerAddress: derefString(inf.WalletAddress),
			UserAddress:       fmt.Sprintf("admin:%d", adminID),
			EventData:         models.JSONB{"admin_id": adminID, "influencer_name": inf.Name, "reason": reason},
			CreatedAt:         now,
		}
		return tx.AppendEvent(ctx, &event)
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{"influencer_id": influencerID, "admin_id": adminID, "reason": reason}).Info("Influencer rejected")
	publishEvents(ctx, s.publisher, s.log, event)
	return inf, nil
}

// PendingApprovals lists funded influencers still waiting for a decision.
func (s *ApprovalService) PendingApprovals(ctx context.Context) ([]PendingApproval, error) {
	rows, err := s.repo.PendingApprovals(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending approvals: %w", err)
	}

	hundred := decimal.NewFromInt(100)
	out := make([]PendingApproval, 0, len(rows))
	for _, inf := range rows {
		p := PendingApproval{Influencer: inf, Progress: inf.Progress()}
		if inf.PledgeThresholdETH.IsPositive() {
			p.ETHProgress = inf.TotalPledgedETH.Div(inf.PledgeThresholdETH).Mul(hundred).Round(2)
		}
		if inf.PledgeThresholdUSDC.IsPositive() {
			p.USDCProgress = inf.TotalPledgedUSDC.Div(inf.PledgeThresholdUSDC).Mul(hundred).Round(2)
		}
		out = append(out, p)
	}
	return out, nil
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
