package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"coinfluence/internal/models"
	"coinfluence/internal/repository"
	"coinfluence/internal/utils"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// StatusChange describes the outcome of SetStatus.
type StatusChange struct {
	User       *models.User       `json:"user"`
	OldStatus  models.UserStatus  `json:"oldStatus"`
	Changed    bool               `json:"changed"`
	Influencer *models.Influencer `json:"influencer,omitempty"`
}

// CurrentStatus is the dashboard view of the signed-in user.
type CurrentStatus struct {
	Status          models.UserStatus `json:"status"`
	Email           string            `json:"email"`
	WalletAddress   *string           `json:"wallet_address"`
	StatusUpdatedAt *time.Time        `json:"status_updated_at"`
	Permissions     []string          `json:"permissions"`
}

// UserService handles user status management
type UserService struct {
	repo *repository.Repository
	log  *logrus.Entry
}

// NewUserService creates a new UserService
func NewUserService(db *gorm.DB) *UserService {
	return &UserService{
		repo: repository.NewRepository(db),
		log:  logrus.WithField("component", "user_service"),
	}
}

// GetUserByID retrieves a user by ID
func (s *UserService) GetUserByID(ctx context.Context, userID uint) (*models.User, error) {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

// List returns a filtered page of users for the admin dashboard.
func (s *UserService) List(ctx context.Context, f repository.UserFilter) ([]models.User, int64, error) {
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 50
	}
	if f.Status != "" && !models.UserStatus(f.Status).Valid() {
		return nil, 0, fmt.Errorf("%w: %s", ErrInvalidStatus, f.Status)
	}
	return s.repo.ListUsers(ctx, f)
}

// SetStatus changes a user's authorization level by email. Promoting to
// influencer never demotes an admin and creates the influencer directory row
// when the user has none.
func (s *UserService) SetStatus(ctx context.Context, email string, status models.UserStatus, changedBy, reason string) (*StatusChange, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidStatus, status)
	}

	user, err := s.repo.GetUserByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return s.applyStatus(ctx, user, status, changedBy, reason)
}

// SetStatusByID is SetStatus for the admin API, which addresses users by ID.
func (s *UserService) SetStatusByID(ctx context.Context, userID uint, status models.UserStatus, changedBy, reason string) (*StatusChange, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidStatus, status)
	}
	user, err := s.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.applyStatus(ctx, user, status, changedBy, reason)
}

func (s *UserService) applyStatus(ctx context.Context, user *models.User, status models.UserStatus, changedBy, reason string) (*StatusChange, error) {
	change := &StatusChange{User: user, OldStatus: user.Status}

	if status == models.UserStatusInfluencer && user.Status == models.UserStatusAdmin {
		return nil, ErrCannotDemoteAdmin
	}
	if user.Status == status {
		return change, nil
	}

	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		if err := tx.UpdateUserStatus(ctx, user, status, changedBy, reason); err != nil {
			return fmt.Errorf("failed to update status: %w", err)
		}
		if status != models.UserStatusInfluencer {
			return nil
		}
		inf, err := ensureInfluencerProfile(ctx, tx, user, reason)
		if err != nil {
			return err
		}
		change.Influencer = inf
		return nil
	})
	if err != nil {
		return nil, err
	}

	change.Changed = true
	s.log.WithFields(logrus.Fields{
		"user":       user.Email,
		"old_status": change.OldStatus,
		"new_status": status,
		"changed_by": changedBy,
	}).Info("User status changed")
	return change, nil
}

// ensureInfluencerProfile links a newly promoted influencer user to a
// directory row, creating one when neither the email nor wallet is known.
func ensureInfluencerProfile(ctx context.Context, tx *repository.Repository, user *models.User, reason string) (*models.Influencer, error) {
	existing, err := tx.GetInfluencerByEmailOrWallet(ctx, user.Email, user.WalletAddress)
	if err == nil {
		return existing, nil
	}
	if !repository.IsNotFound(err) {
		return nil, fmt.Errorf("failed to look up influencer profile: %w", err)
	}

	name := user.DisplayName
	if name == "" {
		name, _, _ = strings.Cut(user.Email, "@")
	}
	description := reason
	if description == "" {
		description = "Promoted to influencer status"
	}
	email := user.Email

	inf := &models.Influencer{
		Name:        name,
		Handle:      utils.HandleFromName(user.DisplayName, user.Email),
		Email:       &email,
		Category:    "General",
		Description: description,
		AvatarURL:   user.AvatarURL,
		Status:      models.InfluencerStatusPending,
	}
	if user.WalletAddress != nil && *user.WalletAddress != "" {
		wallet := strings.ToLower(*user.WalletAddress)
		inf.WalletAddress = &wallet
	}

	for attempt := 0; attempt < 3; attempt++ {
		// savepoint, so a unique violation does not abort the outer transaction
		err = tx.Transaction(ctx, func(sp *repository.Repository) error {
			return sp.CreateInfluencer(ctx, inf)
		})
		if err == nil {
			return inf, nil
		}
		if !repository.IsDuplicate(err) {
			return nil, fmt.Errorf("failed to create influencer profile: %w", err)
		}
		// handle taken; retry with a random suffix
		base := utils.HandleFromName(user.DisplayName, user.Email)
		if inf.Handle, err = utils.WithRandomSuffix(base); err != nil {
			return nil, err
		}
		inf.ID = 0
	}
	return nil, ErrDuplicateInfluencer
}

// PromoteToInvestor upgrades a browser to investor once they have pledged.
func (s *UserService) PromoteToInvestor(ctx context.Context, user *models.User, walletAddress string) (*StatusChange, error) {
	if user.Status.Level() >= models.UserStatusInvestor.Level() {
		return &StatusChange{User: user, OldStatus: user.Status}, nil
	}

	wallet := walletAddress
	if wallet == "" && user.WalletAddress != nil {
		wallet = *user.WalletAddress
	}
	if wallet == "" {
		return nil, fmt.Errorf("%w: wallet address required", ErrValidation)
	}
	normalized, err := utils.NormalizeAddress(wallet)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid wallet address", ErrValidation)
	}

	pledges, err := s.repo.ListPledgesByUser(ctx, normalized)
	if err != nil {
		return nil, fmt.Errorf("failed to check pledges: %w", err)
	}
	if len(pledges) == 0 {
		return nil, ErrNoPledges
	}

	return s.applyStatus(ctx, user, models.UserStatusInvestor, "system", "first pledge")
}

// Current returns the status and permissions of the signed-in user.
func (s *UserService) Current(user *models.User) CurrentStatus {
	return CurrentStatus{
		Status:          user.Status,
		Email:           user.Email,
		WalletAddress:   user.WalletAddress,
		StatusUpdatedAt: user.StatusUpdatedAt,
		Permissions:     user.Status.Permissions(),
	}
}
