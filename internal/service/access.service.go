package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"donation-gate/internal/domain"
	"donation-gate/internal/repo"
)

// maxTokenLength bounds what is sent to the store; minted tokens are far shorter.
const maxTokenLength = 128

type Grant struct {
	RedirectURL string
}

type AccessService interface {
	// Authorize returns a grant for the token of an approved intent. Every
	// other token fails with domain.ErrUnauthorized, whatever the reason.
	Authorize(ctx context.Context, token string) (*Grant, error)
}

type accessService struct {
	intentRepo repo.IntentRepo
	contentURL string
}

func NewAccessService(intentRepo repo.IntentRepo, contentURL string) AccessService {
	return &accessService{intentRepo: intentRepo, contentURL: contentURL}
}

func (s *accessService) Authorize(ctx context.Context, token string) (*Grant, error) {
	if !plausibleToken(token) {
		return nil, domain.ErrUnauthorized
	}

	intent, err := s.intentRepo.FindApprovedByToken(ctx, token)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrUnauthorized
	}
	if err != nil {
		return nil, fmt.Errorf("lookup access token: %w", err)
	}
	if !intent.IsApproved() || intent.AccessToken != token {
		return nil, domain.ErrUnauthorized
	}

	return &Grant{RedirectURL: s.contentURL}, nil
}

// plausibleToken filters input the store cannot hold as text. Postgres rejects
// NUL and invalid UTF-8 parameters outright.
func plausibleToken(token string) bool {
	return token != "" &&
		len(token) <= maxTokenLength &&
		utf8.ValidString(token) &&
		!strings.ContainsRune(token, 0)
}
