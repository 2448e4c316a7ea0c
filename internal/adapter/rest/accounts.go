package rest

import (
	"context"
	"net/http"
	"strconv"

	"github.com/rl1809/order-console/internal/core/domain"
)

type loginResponse struct {
	Token string `json:"token"`
}

func (c *Client) Login(ctx context.Context, creds domain.Credentials) (string, error) {
	if creds.Email == "" || creds.Password == "" {
		return "", domain.NewValidationFailure("email and password are required")
	}
	var resp loginResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/auth/login", false, creds, &resp); err != nil {
		return "", err
	}
	if resp.Token == "" {
		return "", &domain.Failure{Kind: domain.FailureServer, Status: http.StatusOK, Message: "login returned no token"}
	}
	return resp.Token, nil
}

func (c *Client) Register(ctx context.Context, reg domain.Registration) (*domain.Account, error) {
	if err := reg.Validate(); err != nil {
		return nil, err
	}
	var account domain.Account
	if err := c.do(ctx, http.MethodPost, "/api/v1/accounts/register", false, reg, &account); err != nil {
		return nil, err
	}
	return &account, nil
}

func accountPath(accountID int64) string {
	return "/api/v1/accounts/" + strconv.FormatInt(accountID, 10)
}

func (c *Client) GetAccount(ctx context.Context, accountID int64) (*domain.Account, error) {
	var account domain.Account
	if err := c.do(ctx, http.MethodGet, accountPath(accountID), true, nil, &account); err != nil {
		return nil, err
	}
	return &account, nil
}

func (c *Client) UpdateAccount(ctx context.Context, accountID int64, update domain.AccountUpdate) (*domain.Account, error) {
	if update.Username == "" {
		return nil, domain.NewValidationFailure("username is required")
	}
	var account domain.Account
	if err := c.do(ctx, http.MethodPut, accountPath(accountID), true, update, &account); err != nil {
		return nil, err
	}
	return &account, nil
}
