package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"coinfluence/internal/events"
	"coinfluence/internal/models"
	"coinfluence/internal/networks"
	"coinfluence/internal/repository"
	"coinfluence/internal/utils"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// TokenCreationInput records a token the admin deployed on-chain.
type TokenCreationInput struct {
	InfluencerID   uint
	TokenAddress   string
	TxHash         string
	TokenName      string
	TokenSymbol    string
	TotalSupply    decimal.Decimal
	Network        string
	CreatedBy      string
	IdempotencyKey string
}

// TokenCreationResult is returned by Create and replayed for retried keys.
type TokenCreationResult struct {
	TokenID      uint              `json:"tokenId"`
	TokenAddress string            `json:"tokenAddress"`
	InitialPrice decimal.Decimal   `json:"initialPrice"`
	Network      string            `json:"network"`
	Influencer   models.Influencer `json:"influencer"`
	Replayed     bool              `json:"-"`
}

// TokenPlan is what the admin UI needs to deploy a token for an influencer.
type TokenPlan struct {
	InfluencerID     uint            `json:"influencerId"`
	InfluencerName   string          `json:"influencerName"`
	InfluencerWallet string          `json:"influencerWallet"`
	Name             string          `json:"name"`
	Symbol           string          `json:"symbol"`
	TotalSupply      decimal.Decimal `json:"totalSupply"`
	InitialPrice     decimal.Decimal `json:"initialPrice"`
	PledgedValueUSD  decimal.Decimal `json:"pledgedValueUsd"`
	Network          string          `json:"network"`
	ChainID          int64           `json:"chainId"`
}

type TokenService struct {
	repo       *repository.Repository
	networks   *networks.Registry
	ethUSDRate decimal.Decimal
	publisher  events.Publisher
	log        *logrus.Entry

	liquidity        *LiquidityService
	liquidityTimeout time.Duration

	// background liquidity runs, tracked so shutdown can wait for them
	bgMu     sync.Mutex
	bgClosed bool
	bgRuns   sync.WaitGroup
	bgCtx    context.Context
	bgCancel context.CancelFunc
}

func NewTokenService(db *gorm.DB, nets *networks.Registry, ethUSDRate decimal.Decimal, publisher events.Publisher) *TokenService {
	if publisher == nil {
		publisher = events.Noop{}
	}
	bgCtx, bgCancel := context.WithCancel(context.Background())
	return &TokenService{
		repo:       repository.NewRepository(db),
		networks:   nets,
		ethUSDRate: ethUSDRate,
		publisher:  publisher,
		log:        logrus.WithField("component", "token_service"),
		bgCtx:      bgCtx,
		bgCancel:   bgCancel,
	}
}

// EnableAutoLiquidity makes Create start liquidity automation in the
// background after a successful launch.
func (s *TokenService) EnableAutoLiquidity(l *LiquidityService, timeout time.Duration) {
	s.liquidity = l
	s.liquidityTimeout = timeout
}

// Shutdown stops new background liquidity runs and waits for running ones.
// When ctx expires first the runs are cancelled, their scripts killed, and
// ctx.Err() is returned once they have exited.
func (s *TokenService) Shutdown(ctx context.Context) error {
	s.bgMu.Lock()
	s.bgClosed = true
	s.bgMu.Unlock()

	done := make(chan struct{})
	go func() {
		s.bgRuns.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.bgCancel()
		return nil
	case <-ctx.Done():
		s.bgCancel()
		<-done
		return ctx.Err()
	}
}

// InitialPrice values the circulating 70% of supply at the pledged USD value,
// floored at minPrice.
func InitialPrice(inf *models.Influencer, supply, ethUSDRate, minPrice decimal.Decimal) decimal.Decimal {
	value := inf.TotalPledgedETH.Mul(ethUSDRate).Add(inf.TotalPledgedUSDC)
	circulating := supply.Mul(decimal.NewFromFloat(0.7))
	if !value.IsPositive() || !circulating.IsPositive() {
		return minPrice
	}
	price := value.DivRound(circulating, 18)
	if price.LessThan(minPrice) {
		return minPrice
	}
	return price
}

func (s *TokenService) defaultName(inf *models.Influencer) string {
	if inf.TokenName != nil && *inf.TokenName != "" {
		return *inf.TokenName
	}
	return inf.Name + " Token"
}

func (s *TokenService) defaultSymbol(inf *models.Influencer) string {
	if inf.TokenSymbol != nil && *inf.TokenSymbol != "" {
		return *inf.TokenSymbol
	}
	return utils.DefaultSymbol(inf.Name)
}

// Prepare computes the deployment parameters for an approved, funded
// influencer that has not launched yet.
func (s *TokenService) Prepare(ctx context.Context, influencerID uint) (*TokenPlan, error) {
	inf, err := s.repo.GetInfluencerByID(ctx, influencerID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrInfluencerNotFound
		}
		return nil, fmt.Errorf("failed to load influencer: %w", err)
	}
	if inf.Status == models.InfluencerStatusLive {
		return nil, ErrAlreadyLaunched
	}
	if !inf.IsApproved {
		return nil, ErrNotApproved
	}
	if !inf.ThresholdMet() {
		return nil, ErrThresholdNotMet
	}

	network := s.networks.Default()
	supply := decimal.NewFromInt(models.DefaultTokenSupply)
	return &TokenPlan{
		InfluencerID:     inf.ID,
		InfluencerName:   inf.Name,
		InfluencerWallet: derefString(inf.WalletAddress),
		Name:             s.defaultName(inf),
		Symbol:           s.defaultSymbol(inf),
		TotalSupply:      supply,
		InitialPrice:     InitialPrice(inf, supply, s.ethUSDRate, network.MinInitialPrice),
		PledgedValueUSD:  inf.TotalPledgedETH.Mul(s.ethUSDRate).Add(inf.TotalPledgedUSDC),
		Network:          network.ID,
		ChainID:          network.ChainID,
	}, nil
}

type normalizedTokenCreation struct {
	InfluencerID uint            `json:"influencer_id"`
	TokenAddress string          `json:"token_address"`
	TxHash       string          `json:"tx_hash"`
	TokenName    string          `json:"token_name"`
	TokenSymbol  string          `json:"token_symbol"`
	TotalSupply  decimal.Decimal `json:"total_supply"`
	Network      string          `json:"network"`
}

// Create records a deployed token: the influencer goes live, the token row is
// written, analytics are seeded and a token_deployed event is logged, all in
// one transaction. Analytics seeding runs in a savepoint and cannot fail the
// launch.
func (s *TokenService) Create(ctx context.Context, in TokenCreationInput) (*TokenCreationResult, error) {
	key := strings.TrimSpace(in.IdempotencyKey)
	if key == "" {
		return nil, ErrIdempotencyKeyRequired
	}

	tokenAddress, err := utils.NormalizeAddress(in.TokenAddress)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid token address", ErrValidation)
	}
	txHash := strings.TrimSpace(in.TxHash)
	if !utils.IsTxHash(txHash) {
		return nil, fmt.Errorf("%w: invalid transaction hash", ErrValidation)
	}
	if in.TotalSupply.IsNegative() {
		return nil, fmt.Errorf("%w: total supply must be positive", ErrValidation)
	}
	network, ok := s.networks.Resolve(in.Network)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedNetwork, in.Network)
	}

	req := normalizedTokenCreation{
		InfluencerID: in.InfluencerID,
		TokenAddress: tokenAddress,
		TxHash:       strings.ToLower(txHash),
		TokenName:    strings.TrimSpace(in.TokenName),
		TokenSymbol:  strings.ToUpper(strings.TrimSpace(in.TokenSymbol)),
		TotalSupply:  in.TotalSupply,
		Network:      network.ID,
	}
	hash, err := requestHash(req)
	if err != nil {
		return nil, err
	}

	var (
		result TokenCreationResult
		event  models.PledgeEvent
	)
	err = s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		replayed, err := replayIdempotent(ctx, tx, tokenCreationScope(req.InfluencerID), key, hash, &result)
		if err != nil {
			return err
		}
		if replayed {
			result.Replayed = true
			return nil
		}

		inf, err := tx.GetInfluencerByID(ctx, req.InfluencerID)
		if err != nil {
			if repository.IsNotFound(err) {
				return ErrInfluencerNotFound
			}
			return fmt.Errorf("failed to load influencer: %w", err)
		}
		if inf.Status == models.InfluencerStatusLive {
			return ErrAlreadyLaunched
		}
		if !inf.IsApproved {
			return ErrNotApproved
		}

		name := req.TokenName
		if name == "" {
			name = s.defaultName(inf)
		}
		symbol := req.TokenSymbol
		if symbol == "" {
			symbol = s.defaultSymbol(inf)
		}
		supply := req.TotalSupply
		if !supply.IsPositive() {
			supply = decimal.NewFromInt(models.DefaultTokenSupply)
		}
		price := InitialPrice(inf, supply, s.ethUSDRate, network.MinInitialPrice)
		now := time.Now()

		n, err := tx.MarkInfluencerLive(ctx, inf.ID, repository.LaunchUpdate{
			TokenAddress: req.TokenAddress,
			TokenName:    name,
			TokenSymbol:  symbol,
			TotalSupply:  supply,
			LaunchedAt:   now,
		})
		if err != nil {
			return fmt.Errorf("failed to mark influencer live: %w", err)
		}
		if n == 0 {
			return ErrAlreadyLaunched
		}

		token := models.Token{
			InfluencerID:    inf.ID,
			Name:            name,
			Ticker:          symbol,
			Status:          models.TokenStatusLive,
			ContractAddress: req.TokenAddress,
			DeployTxHash:    req.TxHash,
			Network:         network.ID,
			ChainID:         network.ChainID,
			TotalSupply:     supply,
			Decimals:        models.DefaultTokenDecimals,
			InitialPrice:    price,
		}
		if err := tx.UpsertToken(ctx, &token); err != nil {
			if repository.IsDuplicate(err) {
				return ErrTokenAddressInUse
			}
			return fmt.Errorf("failed to create token: %w", err)
		}
		if token.ID == 0 {
			stored, err := tx.GetTokenByInfluencer(ctx, inf.ID)
			if err != nil {
				return fmt.Errorf("failed to reload token: %w", err)
			}
			token = *stored
		}

		s.seedAnalytics(ctx, tx, token, inf, price, now)

		event = models.PledgeEvent{
			EventType:         models.EventTokenDeployed,
			InfluencerID:      &token.InfluencerID,
			InfluencerAddress: derefString(inf.WalletAddress),
			UserAddress:       in.CreatedBy,
			EventData: models.JSONB{
				"token_id":      token.ID,
				"token_address": req.TokenAddress,
				"token_name":    name,
				"token_symbol":  symbol,
				"total_supply":  supply.String(),
				"initial_price": price.String(),
				"tx_hash":       req.TxHash,
				"network":       network.ID,
				"created_by":    in.CreatedBy,
			},
			CreatedAt: now,
		}
		if err := tx.AppendEvent(ctx, &event); err != nil {
			return fmt.Errorf("failed to record launch event: %w", err)
		}

		launched, err := tx.GetInfluencerByID(ctx, inf.ID)
		if err != nil {
			return fmt.Errorf("failed to reload influencer: %w", err)
		}

		result = TokenCreationResult{
			TokenID:      token.ID,
			TokenAddress: req.TokenAddress,
			InitialPrice: price,
			Network:      network.ID,
			Influencer:   *launched,
		}
		return rememberIdempotent(ctx, tx, tokenCreationScope(req.InfluencerID), key, hash, result)
	})
	if err != nil {
		return nil, err
	}
	if result.Replayed {
		return &result, nil
	}

	s.log.WithFields(logrus.Fields{
		"influencer_id": result.Influencer.ID,
		"token_id":      result.TokenID,
		"token_address": result.TokenAddress,
		"network":       result.Network,
	}).Info("Token launched")
	publishEvents(ctx, s.publisher, s.log, event)

	if s.liquidity != nil {
		s.startAutoLiquidity(result.Influencer.ID, result.Network)
	}
	return &result, nil
}

// seedAnalytics writes the initial market data inside a savepoint. A failure
// rolls back only the savepoint; the launch itself proceeds.
func (s *TokenService) seedAnalytics(ctx context.Context, tx *repository.Repository, token models.Token, inf *models.Influencer, price decimal.Decimal, at time.Time) {
	description := inf.Description
	if description == "" {
		description = "Token for " + inf.Name
	}
	err := tx.DB().WithContext(ctx).Transaction(func(sp *gorm.DB) error {
		return repository.NewRepository(sp).SeedTokenAnalytics(ctx, repository.AnalyticsSeed{
			Token:          token,
			InfluencerName: inf.Name,
			Description:    description,
			Price:          price,
			At:             at,
		})
	})
	if err != nil {
		s.log.WithError(err).WithField("token_id", token.ID).Warn("Failed to seed token analytics")
	}
}

func (s *TokenService) startAutoLiquidity(influencerID uint, network string) {
	s.bgMu.Lock()
	defer s.bgMu.Unlock()
	if s.bgClosed {
		s.log.WithField("influencer_id", influencerID).Warn("Shutting down, skipping automatic liquidity creation")
		return
	}
	s.bgRuns.Add(1)
	go func() {
		defer s.bgRuns.Done()
		s.autoCreateLiquidity(influencerID, network)
	}()
}

func (s *TokenService) autoCreateLiquidity(influencerID uint, network string) {
	ctx, cancel := context.WithTimeout(s.bgCtx, s.liquidityTimeout+time.Minute)
	defer cancel()

	if _, err := s.liquidity.CreateLiquidity(ctx, LiquidityRequest{InfluencerID: influencerID, Network: network}); err != nil {
		s.log.WithError(err).WithField("influencer_id", influencerID).Error("Automatic liquidity creation failed")
	}
}
