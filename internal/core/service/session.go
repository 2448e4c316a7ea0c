package service

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/rl1809/order-console/internal/core/domain"
	"github.com/rl1809/order-console/internal/port"
)

// Session owns the credential lifecycle: set at login, cleared at logout.
// The same CredentialStore is handed to the REST client as its TokenSource.
type Session struct {
	accounts    port.AccountService
	credentials port.CredentialStore
	log         logrus.FieldLogger
}

func NewSession(accounts port.AccountService, credentials port.CredentialStore, log logrus.FieldLogger) *Session {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Session{accounts: accounts, credentials: credentials, log: log}
}

func (s *Session) Login(ctx context.Context, email, password string) error {
	token, err := s.accounts.Login(ctx, domain.Credentials{Email: email, Password: password})
	if err != nil {
		s.log.WithField("email", email).WithError(err).Warn("login failed")
		return err
	}
	if err := s.credentials.SaveToken(ctx, token); err != nil {
		return fmt.Errorf("save credential: %w", err)
	}
	s.log.WithField("email", email).Info("signed in")
	return nil
}

func (s *Session) Logout(ctx context.Context) error {
	if err := s.credentials.ClearToken(ctx); err != nil {
		return fmt.Errorf("clear credential: %w", err)
	}
	s.log.Info("signed out")
	return nil
}

func (s *Session) SignedIn(ctx context.Context) (bool, error) {
	token, err := s.credentials.Token(ctx)
	if err != nil {
		return false, fmt.Errorf("load credential: %w", err)
	}
	return token != "", nil
}

func (s *Session) Register(ctx context.Context, reg domain.Registration) (*domain.Account, error) {
	account, err := s.accounts.Register(ctx, reg)
	if err != nil {
		return nil, err
	}
	s.log.WithField("email", account.Email).Info("account registered")
	return account, nil
}

func (s *Session) Account(ctx context.Context, accountID int64) (*domain.Account, error) {
	return s.accounts.GetAccount(ctx, accountID)
}

func (s *Session) UpdateAccount(ctx context.Context, accountID int64, update domain.AccountUpdate) (*domain.Account, error) {
	return s.accounts.UpdateAccount(ctx, accountID, update)
}
