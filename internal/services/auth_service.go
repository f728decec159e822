package services

import (
	"context"
	"fmt"
	"strings"

	"coinfluence/internal/models"
	"coinfluence/internal/repository"
	"coinfluence/internal/utils"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Identity is the verified subject of a bearer token.
type Identity struct {
	Subject string
	Email   string
}

// SyncUserInput carries the profile fields the client reports at sign-in.
type SyncUserInput struct {
	Email         string `json:"email"`
	WalletAddress string `json:"wallet_address"`
	DisplayName   string `json:"display_name"`
	AvatarURL     string `json:"avatar_url"`
}

// AuthService maps authenticated identities onto users rows
type AuthService struct {
	repo *repository.Repository
	log  *logrus.Entry
}

// NewAuthService creates a new AuthService
func NewAuthService(db *gorm.DB) *AuthService {
	return &AuthService{
		repo: repository.NewRepository(db),
		log:  logrus.WithField("component", "auth_service"),
	}
}

// SyncUser finds the user for an identity, by external uid first and email
// second, and refreshes the profile fields that were supplied. Unknown
// identities are created at browser level.
func (s *AuthService) SyncUser(ctx context.Context, id Identity, in SyncUserInput) (*models.User, bool, error) {
	email := strings.TrimSpace(in.Email)
	if email == "" {
		email = id.Email
	}
	if id.Subject == "" && email == "" {
		return nil, false, fmt.Errorf("%w: identity has neither subject nor email", ErrValidation)
	}

	var wallet *string
	if in.WalletAddress != "" {
		normalized, err := utils.NormalizeAddress(in.WalletAddress)
		if err != nil {
			return nil, false, fmt.Errorf("%w: invalid wallet address", ErrValidation)
		}
		wallet = &normalized
	}

	var (
		user    *models.User
		created bool
	)
	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		existing, err := s.findIdentity(ctx, tx, id.Subject, email)
		if err != nil && !repository.IsNotFound(err) {
			return fmt.Errorf("failed to look up user: %w", err)
		}

		if existing == nil {
			if email == "" {
				return fmt.Errorf("%w: email required for new users", ErrValidation)
			}
			user = &models.User{
				Email:         email,
				WalletAddress: wallet,
				DisplayName:   in.DisplayName,
				AvatarURL:     in.AvatarURL,
				Status:        models.UserStatusBrowser,
			}
			if id.Subject != "" && !strings.HasPrefix(id.Subject, "0x") {
				uid := id.Subject
				user.FirebaseUID = &uid
			}
			if err := tx.CreateUser(ctx, user); err != nil {
				return fmt.Errorf("failed to create user: %w", err)
			}
			created = true
			return nil
		}

		fields := map[string]interface{}{}
		if wallet != nil {
			fields["wallet_address"] = *wallet
			existing.WalletAddress = wallet
		}
		if in.DisplayName != "" {
			fields["display_name"] = in.DisplayName
			existing.DisplayName = in.DisplayName
		}
		if in.AvatarURL != "" {
			fields["avatar_url"] = in.AvatarURL
			existing.AvatarURL = in.AvatarURL
		}
		if len(fields) > 0 {
			if err := tx.DB().WithContext(ctx).Model(existing).Updates(fields).Error; err != nil {
				return fmt.Errorf("failed to update user: %w", err)
			}
		}
		user = existing
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	if created {
		s.log.WithFields(logrus.Fields{"user_id": user.ID, "email": user.Email}).Info("New user created")
	}
	return user, created, nil
}

func (s *AuthService) findIdentity(ctx context.Context, tx *repository.Repository, subject, email string) (*models.User, error) {
	if subject != "" {
		user, err := tx.GetUserByIdentity(ctx, "", subject)
		if err == nil {
			return user, nil
		}
		if !repository.IsNotFound(err) {
			return nil, err
		}
	}
	if email == "" {
		return nil, gorm.ErrRecordNotFound
	}
	return tx.GetUserByEmail(ctx, email)
}

// ResolveUser loads the users row behind a verified token.
func (s *AuthService) ResolveUser(ctx context.Context, id Identity) (*models.User, error) {
	user, err := s.repo.GetUserByIdentity(ctx, id.Email, id.Subject)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}
