package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"coinfluence/internal/models"
	"coinfluence/internal/repository"
	"coinfluence/internal/utils"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// fieldParser converts a JSON value into the column value stored for it.
type fieldParser func(v interface{}) (interface{}, error)

// updatableInfluencerFields is the allow-list for partial updates. Lifecycle
// and funding columns are only written by the pledge, approval and token
// services.
var updatableInfluencerFields = map[string]fieldParser{
	"name":                  parseNonEmptyString,
	"category":              parseString,
	"description":           parseString,
	"avatar_url":            parseString,
	"followers_count":       parseCount,
	"verified":              parseBool,
	"pledge_threshold_eth":  parseAmount,
	"pledge_threshold_usdc": parseAmount,
	"token_name":            parseNonEmptyString,
	"token_symbol":          parseSymbol,
	"email":                 parseNonEmptyString,
	"handle":                parseHandle,
}

func parseString(v interface{}) (interface{}, error) {
	s, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("expected string")
	}
	return strings.TrimSpace(s), nil
}

func parseNonEmptyString(v interface{}) (interface{}, error) {
	s, err := parseString(v)
	if err != nil {
		return nil, err
	}
	if s == "" {
		return nil, fmt.Errorf("must not be empty")
	}
	return s, nil
}

func parseHandle(v interface{}) (interface{}, error) {
	s, err := parseNonEmptyString(v)
	if err != nil {
		return nil, err
	}
	return utils.NormalizeHandle(s.(string)), nil
}

func parseSymbol(v interface{}) (interface{}, error) {
	s, err := parseNonEmptyString(v)
	if err != nil {
		return nil, err
	}
	return strings.ToUpper(s.(string)), nil
}

func parseBool(v interface{}) (interface{}, error) {
	b, ok := v.(bool)
	if !ok {
		return nil, fmt.Errorf("expected boolean")
	}
	return b, nil
}

func parseCount(v interface{}) (interface{}, error) {
	switch n := v.(type) {
	case float64:
		if n < 0 || n != float64(int64(n)) {
			return nil, fmt.Errorf("expected non-negative integer")
		}
		return int64(n), nil
	case int:
		if n < 0 {
			return nil, fmt.Errorf("expected non-negative integer")
		}
		return int64(n), nil
	case int64:
		if n < 0 {
			return nil, fmt.Errorf("expected non-negative integer")
		}
		return n, nil
	}
	return nil, fmt.Errorf("expected non-negative integer")
}

func parseAmount(v interface{}) (interface{}, error) {
	var (
		d   decimal.Decimal
		err error
	)
	switch n := v.(type) {
	case string:
		d, err = decimal.NewFromString(n)
	case float64:
		d = decimal.NewFromFloat(n)
	case int:
		d = decimal.NewFromInt(int64(n))
	default:
		return nil, fmt.Errorf("expected number")
	}
	if err != nil {
		return nil, fmt.Errorf("expected number")
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("must not be negative")
	}
	return d, nil
}

// InfluencerService manages the influencer directory
type InfluencerService struct {
	repo *repository.Repository
	log  *logrus.Entry
}

// NewInfluencerService creates a new InfluencerService
func NewInfluencerService(db *gorm.DB) *InfluencerService {
	return &InfluencerService{
		repo: repository.NewRepository(db),
		log:  logrus.WithField("component", "influencer_service"),
	}
}

// List returns a page of influencers with the total count
func (s *InfluencerService) List(ctx context.Context, f repository.InfluencerFilter) ([]models.Influencer, int64, error) {
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 20
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return s.repo.ListInfluencers(ctx, f)
}

// Get retrieves an influencer by ID
func (s *InfluencerService) Get(ctx context.Context, id uint) (*models.Influencer, error) {
	return s.lookup(s.repo.GetInfluencerByID(ctx, id))
}

// GetByHandle retrieves an influencer by handle, with or without the leading @
func (s *InfluencerService) GetByHandle(ctx context.Context, handle string) (*models.Influencer, error) {
	return s.lookup(s.repo.GetInfluencerByHandle(ctx, utils.NormalizeHandle(handle)))
}

// GetByAddress retrieves an influencer by wallet address
func (s *InfluencerService) GetByAddress(ctx context.Context, address string) (*models.Influencer, error) {
	wallet, err := utils.NormalizeAddress(address)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid address", ErrValidation)
	}
	return s.lookup(s.repo.GetInfluencerByWallet(ctx, wallet))
}

func (s *InfluencerService) lookup(inf *models.Influencer, err error) (*models.Influencer, error) {
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrInfluencerNotFound
		}
		return nil, fmt.Errorf("failed to load influencer: %w", err)
	}
	return inf, nil
}

// Create adds an influencer to the directory in pending state
func (s *InfluencerService) Create(ctx context.Context, req models.CreateInfluencerRequest) (*models.Influencer, error) {
	name := strings.TrimSpace(req.Name)
	email := strings.TrimSpace(req.Email)
	if name == "" || strings.TrimSpace(req.Handle) == "" || email == "" {
		return nil, fmt.Errorf("%w: name, handle and email are required", ErrValidation)
	}
	if req.PledgeThresholdETH.IsNegative() || req.PledgeThresholdUSDC.IsNegative() {
		return nil, fmt.Errorf("%w: thresholds must not be negative", ErrValidation)
	}

	inf := &models.Influencer{
		Name:                name,
		Handle:              utils.NormalizeHandle(req.Handle),
		Email:               &email,
		Category:            req.Category,
		Description:         req.Description,
		AvatarURL:           req.AvatarURL,
		FollowersCount:      req.FollowersCount,
		Verified:            req.Verified,
		PledgeThresholdETH:  req.PledgeThresholdETH,
		PledgeThresholdUSDC: req.PledgeThresholdUSDC,
		Status:              models.InfluencerStatusPending,
	}
	if req.WalletAddress != "" {
		wallet, err := utils.NormalizeAddress(req.WalletAddress)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid wallet address", ErrValidation)
		}
		inf.WalletAddress = &wallet
	}

	if err := s.repo.CreateInfluencer(ctx, inf); err != nil {
		if repository.IsDuplicate(err) {
			return nil, ErrDuplicateInfluencer
		}
		return nil, fmt.Errorf("failed to create influencer: %w", err)
	}

	s.log.WithFields(logrus.Fields{"influencer_id": inf.ID, "handle": inf.Handle}).Info("Influencer created")
	return inf, nil
}

// Update applies an allow-listed partial update. Unknown keys and values of
// the wrong type are rejected before anything is written.
func (s *InfluencerService) Update(ctx context.Context, id uint, changes map[string]interface{}) (*models.Influencer, error) {
	if len(changes) == 0 {
		return nil, fmt.Errorf("%w: no fields to update", ErrValidation)
	}

	fields := make(map[string]interface{}, len(changes)+1)
	for key, raw := range changes {
		parse, ok := updatableInfluencerFields[key]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownField, key)
		}
		value, err := parse(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidField, key, err)
		}
		fields[key] = value
	}
	fields["updated_at"] = time.Now()

	n, err := s.repo.UpdateInfluencerFields(ctx, id, fields)
	if err != nil {
		if repository.IsDuplicate(err) {
			return nil, ErrDuplicateInfluencer
		}
		return nil, fmt.Errorf("failed to update influencer: %w", err)
	}
	if n == 0 {
		return nil, ErrInfluencerNotFound
	}
	return s.Get(ctx, id)
}

// Delete removes an influencer that has not launched a token
func (s *InfluencerService) Delete(ctx context.Context, id uint) error {
	n, err := s.repo.DeleteInfluencer(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to delete influencer: %w", err)
	}
	if n == 1 {
		return nil
	}
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	return ErrInfluencerLive
}

// SetupPledging creates or refreshes the pledging configuration of the
// influencer owning a wallet and opens it for pledges.
func (s *InfluencerService) SetupPledging(ctx context.Context, req models.SetupPledgingRequest) (*models.Influencer, error) {
	wallet, err := utils.NormalizeAddress(req.InfluencerAddress)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid influencer address", ErrValidation)
	}
	if req.ETHThreshold.IsNegative() || req.USDCThreshold.IsNegative() {
		return nil, fmt.Errorf("%w: thresholds must not be negative", ErrValidation)
	}
	if !req.ETHThreshold.IsPositive() && !req.USDCThreshold.IsPositive() {
		return nil, fmt.Errorf("%w: at least one threshold must be greater than zero", ErrValidation)
	}
	name := strings.TrimSpace(req.InfluencerName)
	tokenName := strings.TrimSpace(req.TokenName)
	symbol := strings.ToUpper(strings.TrimSpace(req.Symbol))
	if name == "" || tokenName == "" || symbol == "" {
		return nil, fmt.Errorf("%w: influencerName, tokenName and symbol are required", ErrValidation)
	}

	existing, err := s.repo.GetInfluencerByWallet(ctx, wallet)
	switch {
	case err == nil:
		if existing.IsApproved || existing.Status == models.InfluencerStatusLive || existing.Status == models.InfluencerStatusApproved {
			return nil, ErrAlreadyApproved
		}
	case !repository.IsNotFound(err):
		return nil, fmt.Errorf("failed to load influencer: %w", err)
	}

	inf := &models.Influencer{
		Name:                name,
		Handle:              utils.HandleFromName(name, ""),
		WalletAddress:       &wallet,
		Category:            "General",
		PledgeThresholdETH:  req.ETHThreshold,
		PledgeThresholdUSDC: req.USDCThreshold,
		TokenName:           &tokenName,
		TokenSymbol:         &symbol,
		Status:              models.InfluencerStatusPledging,
	}
	if existing != nil {
		inf.Handle = existing.Handle
	}

	for attempt := 0; ; attempt++ {
		err = s.repo.UpsertInfluencerByWallet(ctx, inf)
		if err == nil || !repository.IsDuplicate(err) || attempt == 2 {
			break
		}
		// another influencer already owns the derived handle
		if inf.Handle, err = utils.WithRandomSuffix(utils.HandleFromName(name, "")); err != nil {
			return nil, err
		}
		inf.ID = 0
	}
	if err != nil {
		if repository.IsDuplicate(err) {
			return nil, ErrDuplicateInfluencer
		}
		return nil, fmt.Errorf("failed to set up influencer: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"wallet":         wallet,
		"eth_threshold":  req.ETHThreshold.String(),
		"usdc_threshold": req.USDCThreshold.String(),
	}).Info("Influencer pledging configured")
	return s.repo.GetInfluencerByWallet(ctx, wallet)
}
