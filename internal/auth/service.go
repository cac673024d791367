// Package auth は管理パスワードの設定・照合と、ログイントークンの発行・検証を提供する。
package auth

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/hitoshi/slotkeeper/internal/model"
	"github.com/hitoshi/slotkeeper/internal/repository"
	"golang.org/x/crypto/bcrypt"
)

const (
	// MinPasswordLength はパスワードの最小文字数。
	MinPasswordLength = 4
	// MaxPasswordBytes はbcryptが扱えるパスワードの最大バイト数。
	MaxPasswordBytes = 72
)

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	Secret     []byte        // トークン署名用のHMACキー
	TokenTTL   time.Duration // トークン有効期間
	BcryptCost int           // 0の場合はbcrypt.DefaultCost
}

// Service は単一の管理パスワードによる認証を提供する。
type Service struct {
	repo   repository.SecurityRepository
	tokens *TokenIssuer
	cost   int
}

// NewService はServiceを生成する。
func NewService(repo repository.SecurityRepository, config ServiceConfig) *Service {
	cost := config.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &Service{
		repo:   repo,
		tokens: NewTokenIssuer(config.Secret, config.TokenTTL),
		cost:   cost,
	}
}

// Setup は管理パスワードを初回のみ設定する。
// 4文字未満はpassword_invalid、設定済みの場合はalready_configuredを返す。
func (s *Service) Setup(ctx context.Context, password string) error {
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return model.NewPasswordInvalidError(MinPasswordLength)
	}
	if len(password) > MaxPasswordBytes {
		return model.NewPasswordTooLongError(MaxPasswordBytes)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return fmt.Errorf("パスワードのハッシュ化に失敗しました: %w", err)
	}

	stored, err := s.repo.SetPasswordHashIfAbsent(ctx, string(hash))
	if err != nil {
		return fmt.Errorf("パスワードの保存に失敗しました: %w", err)
	}
	if !stored {
		return model.NewAlreadyConfiguredError()
	}
	return nil
}

// Login はパスワードを照合し、成功した場合は署名付きトークンを返す。
// 未設定の場合はnot_configured、不一致の場合はinvalid_credentialsを返す。
func (s *Service) Login(ctx context.Context, password string) (string, error) {
	hash, err := s.repo.GetPasswordHash(ctx)
	if err != nil {
		return "", fmt.Errorf("パスワードの取得に失敗しました: %w", err)
	}
	if hash == "" {
		return "", model.NewNotConfiguredError()
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return "", model.NewInvalidCredentialsError()
	}

	token, err := s.tokens.Issue()
	if err != nil {
		return "", err
	}
	return token, nil
}

// Status は管理パスワードが設定済みかを返す。
func (s *Service) Status(ctx context.Context) (bool, error) {
	hash, err := s.repo.GetPasswordHash(ctx)
	if err != nil {
		return false, fmt.Errorf("パスワードの取得に失敗しました: %w", err)
	}
	return hash != "", nil
}

// VerifyToken はログイントークンを検証する。無効な場合はinvalid_credentialsを返す。
func (s *Service) VerifyToken(token string) error {
	return s.tokens.Verify(token)
}
