package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"coinfluence/internal/events"
	"coinfluence/internal/metrics"
	"coinfluence/internal/models"
	"coinfluence/internal/repository"
	"coinfluence/internal/utils"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// PledgeInput is a pledge submission after transport decoding.
type PledgeInput struct {
	UserAddress       string
	InfluencerAddress string
	Amount            decimal.Decimal
	Currency          string
	TxHash            string
	IdempotencyKey    string
}

// PledgeResult is the outcome of Submit. Replayed is set when the response
// was served from a stored idempotency key.
type PledgeResult struct {
	Pledge   models.PledgeResponse `json:"pledge"`
	Replayed bool                  `json:"-"`
}

// UserPledge is a pledge joined with the influencer it backs.
type UserPledge struct {
	models.PledgeResponse
	InfluencerID     uint                    `json:"influencerId"`
	InfluencerName   string                  `json:"influencerName"`
	InfluencerHandle string                  `json:"influencerHandle"`
	InfluencerStatus models.InfluencerStatus `json:"influencerStatus"`
	TokenSymbol      *string                 `json:"tokenSymbol,omitempty"`
}

// InfluencerPledges is the public pledge summary for one influencer.
type InfluencerPledges struct {
	Influencer    models.Influencer       `json:"influencer"`
	ThresholdMet  bool                    `json:"thresholdMet"`
	Progress      decimal.Decimal         `json:"progress"`
	CardState     string                  `json:"cardState"`
	Pledges       []models.PledgeResponse `json:"pledges"`
	TotalPledgers int                     `json:"totalPledgers"`
}

// PledgeStats are platform-wide pledge totals.
type PledgeStats struct {
	TotalPledges   int64           `json:"totalPledges"`
	UniquePledgers int64           `json:"uniquePledgers"`
	TotalETH       decimal.Decimal `json:"totalEth"`
	TotalUSDC      decimal.Decimal `json:"totalUsdc"`
}

type PledgeService struct {
	repo      *repository.Repository
	publisher events.Publisher
	log       *logrus.Entry
}

func NewPledgeService(db *gorm.DB, publisher events.Publisher) *PledgeService {
	if publisher == nil {
		publisher = events.Noop{}
	}
	return &PledgeService{
		repo:      repository.NewRepository(db),
		publisher: publisher,
		log:       logrus.WithField("component", "pledge_service"),
	}
}

type normalizedPledge struct {
	UserAddress       string          `json:"user"`
	InfluencerAddress string          `json:"influencer"`
	Amount            decimal.Decimal `json:"amount"`
	Currency          models.Currency `json:"currency"`
	TxHash            string          `json:"tx_hash"`
}

func normalizePledge(in PledgeInput) (normalizedPledge, error) {
	var out normalizedPledge

	user, err := utils.NormalizeAddress(in.UserAddress)
	if err != nil {
		return out, fmt.Errorf("%w: invalid user address", ErrValidation)
	}
	influencer, err := utils.NormalizeAddress(in.InfluencerAddress)
	if err != nil {
		return out, fmt.Errorf("%w: invalid influencer address", ErrValidation)
	}
	if !in.Amount.IsPositive() {
		return out, fmt.Errorf("%w: amount must be greater than 0", ErrValidation)
	}

	currency := models.Currency(strings.ToUpper(strings.TrimSpace(in.Currency)))
	if currency != models.CurrencyETH && currency != models.CurrencyUSDC {
		return out, fmt.Errorf("%w: currency must be ETH or USDC", ErrValidation)
	}

	txHash := strings.TrimSpace(in.TxHash)
	if txHash != "" && !utils.IsTxHash(txHash) {
		return out, fmt.Errorf("%w: invalid transaction hash", ErrValidation)
	}

	out = normalizedPledge{
		UserAddress:       user,
		InfluencerAddress: influencer,
		Amount:            in.Amount,
		Currency:          currency,
		TxHash:            strings.ToLower(txHash),
	}
	return out, nil
}

// Submit records a pledge. Repeated pledges from the same user to the same
// influencer accumulate into one row; the influencer aggregates are updated in
// the same transaction.
func (s *PledgeService) Submit(ctx context.Context, in PledgeInput) (*PledgeResult, error) {
	key := strings.TrimSpace(in.IdempotencyKey)
	if key == "" {
		return nil, ErrIdempotencyKeyRequired
	}

	req, err := normalizePledge(in)
	if err != nil {
		return nil, err
	}
	hash, err := requestHash(req)
	if err != nil {
		return nil, err
	}

	pledge := models.Pledge{
		UserAddress:       req.UserAddress,
		InfluencerAddress: req.InfluencerAddress,
		TxHash:            req.TxHash,
	}
	if pledge.TxHash == "" {
		pledge.TxHash = utils.MockTxHash()
	}
	if req.Currency == models.CurrencyETH {
		pledge.ETHAmount = req.Amount
		pledge.USDCAmount = decimal.Zero
	} else {
		pledge.ETHAmount = decimal.Zero
		pledge.USDCAmount = req.Amount
	}

	var (
		result PledgeResult
		event  models.PledgeEvent
	)
	err = s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		replayed, err := replayIdempotent(ctx, tx, pledgeScope(req.UserAddress), key, hash, &result.Pledge)
		if err != nil {
			return err
		}
		if replayed {
			result.Replayed = true
			return nil
		}

		inf, err := tx.GetInfluencerByWallet(ctx, req.InfluencerAddress)
		if err != nil {
			if repository.IsNotFound(err) {
				return ErrInfluencerNotFound
			}
			return fmt.Errorf("failed to load influencer: %w", err)
		}
		if inf.Status == models.InfluencerStatusLive || inf.Status == models.InfluencerStatusRejected {
			return ErrPledgingClosed
		}

		inserted, err := tx.InsertPledgeIfAbsent(ctx, &pledge)
		if err != nil {
			return fmt.Errorf("failed to create pledge: %w", err)
		}

		var countDelta int64
		kind := "new"
		switch {
		case inserted:
			countDelta = 1
		default:
			reactivated, err := tx.ReactivatePledge(ctx, &pledge)
			if err != nil {
				return fmt.Errorf("failed to reactivate pledge: %w", err)
			}
			if reactivated {
				countDelta = 1
				kind = "reactivated"
				break
			}
			n, err := tx.AddToPledge(ctx, &pledge)
			if err != nil {
				return fmt.Errorf("failed to update pledge: %w", err)
			}
			if n == 0 {
				return ErrConcurrentUpdate
			}
			kind = "accumulated"
		}

		n, err := tx.AdjustPledgeAggregates(ctx, inf.ID, pledge.ETHAmount, pledge.USDCAmount, countDelta)
		if err != nil {
			return fmt.Errorf("failed to update influencer totals: %w", err)
		}
		if n == 0 {
			return ErrPledgingClosed
		}

		stored, err := tx.GetPledge(ctx, req.UserAddress, req.InfluencerAddress)
		if err != nil {
			return fmt.Errorf("failed to reload pledge: %w", err)
		}

		influencerID := inf.ID
		event = models.PledgeEvent{
			EventType:         models.EventPledgeCreated,
			InfluencerID:      &influencerID,
			InfluencerAddress: req.InfluencerAddress,
			UserAddress:       req.UserAddress,
			EventData: models.JSONB{
				"pledge_id": stored.ID,
				"amount":    req.Amount.String(),
				"currency":  string(req.Currency),
				"tx_hash":   pledge.TxHash,
				"kind":      kind,
			},
		}
		if err := tx.AppendEvent(ctx, &event); err != nil {
			return fmt.Errorf("failed to record pledge event: %w", err)
		}

		result.Pledge = stored.Response()
		return rememberIdempotent(ctx, tx, pledgeScope(req.UserAddress), key, hash, result.Pledge)
	})
	if err != nil {
		return nil, err
	}

	if !result.Replayed {
		amount, _ := req.Amount.Float64()
		metrics.RecordPledge(string(req.Currency), amount)
		publishEvents(ctx, s.publisher, s.log, event)
		s.log.WithFields(logrus.Fields{
			"user":       req.UserAddress,
			"influencer": req.InfluencerAddress,
			"amount":     req.Amount.String(),
			"currency":   req.Currency,
		}).Info("Pledge recorded")
	}
	return &result, nil
}

// Withdraw soft-deletes a user's active pledge and releases it from the
// influencer totals. Withdrawals close once the influencer is approved.
func (s *PledgeService) Withdraw(ctx context.Context, userAddress, influencerAddress string) (*models.PledgeResponse, error) {
	user, err := utils.NormalizeAddress(userAddress)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid user address", ErrValidation)
	}
	influencer, err := utils.NormalizeAddress(influencerAddress)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid influencer address", ErrValidation)
	}

	var (
		resp  models.PledgeResponse
		event models.PledgeEvent
	)
	err = s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		inf, err := tx.GetInfluencerByWallet(ctx, influencer)
		if err != nil {
			if repository.IsNotFound(err) {
				return ErrInfluencerNotFound
			}
			return fmt.Errorf("failed to load influencer: %w", err)
		}
		if inf.IsApproved || inf.Status == models.InfluencerStatusLive {
			return ErrWithdrawalClosed
		}

		pledge, err := tx.GetPledge(ctx, user, influencer)
		if err != nil {
			if repository.IsNotFound(err) {
				return ErrPledgeNotFound
			}
			return fmt.Errorf("failed to load pledge: %w", err)
		}
		if pledge.HasWithdrawn {
			return ErrPledgeNotFound
		}

		now := time.Now()
		n, err := tx.WithdrawPledge(ctx, pledge, now)
		if err != nil {
			return fmt.Errorf("failed to withdraw pledge: %w", err)
		}
		if n == 0 {
			return ErrConcurrentUpdate
		}

		n, err = tx.ReleasePledgeAggregates(ctx, inf.ID, pledge.ETHAmount, pledge.USDCAmount)
		if err != nil {
			return fmt.Errorf("failed to update influencer totals: %w", err)
		}
		if n == 0 {
			return ErrWithdrawalClosed
		}

		influencerID := inf.ID
		event = models.PledgeEvent{
			EventType:         models.EventPledgeWithdrawn,
			InfluencerID:      &influencerID,
			InfluencerAddress: influencer,
			UserAddress:       user,
			EventData: models.JSONB{
				"pledge_id":   pledge.ID,
				"eth_amount":  pledge.ETHAmount.String(),
				"usdc_amount": pledge.USDCAmount.String(),
			},
			CreatedAt: now,
		}
		if err := tx.AppendEvent(ctx, &event); err != nil {
			return fmt.Errorf("failed to record withdrawal event: %w", err)
		}

		pledge.HasWithdrawn = true
		pledge.WithdrawnAt = &now
		resp = pledge.Response()
		return nil
	})
	if err != nil {
		return nil, err
	}

	publishEvents(ctx, s.publisher, s.log, event)
	return &resp, nil
}

// ListByUser returns every pledge a wallet has made with the influencer it backs.
func (s *PledgeService) ListByUser(ctx context.Context, userAddress string) ([]UserPledge, error) {
	user, err := utils.NormalizeAddress(userAddress)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid user address", ErrValidation)
	}

	pledges, err := s.repo.ListPledgesByUser(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("failed to list pledges: %w", err)
	}

	wallets := make([]string, 0, len(pledges))
	for _, p := range pledges {
		wallets = append(wallets, p.InfluencerAddress)
	}
	influencers, err := s.repo.GetInfluencersByWallets(ctx, wallets)
	if err != nil {
		return nil, fmt.Errorf("failed to load influencers: %w", err)
	}

	out := make([]UserPledge, 0, len(pledges))
	for _, p := range pledges {
		row := UserPledge{PledgeResponse: p.Response()}
		if inf, ok := influencers[p.InfluencerAddress]; ok {
			row.InfluencerID = inf.ID
			row.InfluencerName = inf.Name
			row.InfluencerHandle = inf.Handle
			row.InfluencerStatus = inf.Status
			row.TokenSymbol = inf.TokenSymbol
		}
		out = append(out, row)
	}
	return out, nil
}

// ListByInfluencer returns the active pledges and funding progress of an influencer.
func (s *PledgeService) ListByInfluencer(ctx context.Context, influencerAddress string) (*InfluencerPledges, error) {
	wallet, err := utils.NormalizeAddress(influencerAddress)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid influencer address", ErrValidation)
	}

	inf, err := s.repo.GetInfluencerByWallet(ctx, wallet)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrInfluencerNotFound
		}
		return nil, fmt.Errorf("failed to load influencer: %w", err)
	}

	pledges, err := s.repo.ListPledgesByInfluencer(ctx, wallet)
	if err != nil {
		return nil, fmt.Errorf("failed to list pledges: %w", err)
	}

	out := &InfluencerPledges{
		Influencer:    *inf,
		ThresholdMet:  inf.ThresholdMet(),
		Progress:      inf.Progress(),
		CardState:     inf.CardState(),
		Pledges:       make([]models.PledgeResponse, 0, len(pledges)),
		TotalPledgers: len(pledges),
	}
	for i := range pledges {
		out.Pledges = append(out.Pledges, pledges[i].Response())
	}
	return out, nil
}

// Stats returns platform-wide active pledge totals.
func (s *PledgeService) Stats(ctx context.Context) (*PledgeStats, error) {
	totals, err := s.repo.SumActivePledges(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate pledges: %w", err)
	}
	return &PledgeStats{
		TotalPledges:   totals.PledgeCount,
		UniquePledgers: totals.UniquePledgers,
		TotalETH:       totals.TotalETH,
		TotalUSDC:      totals.TotalUSDC,
	}, nil
}
