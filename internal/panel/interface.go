package panel

import (
	"context"
	"errors"
)

// ErrAccountNotFound is returned by GetAccount when the panel has no
// account with the requested username.
var ErrAccountNotFound = errors.New("panel account not found")

// BytesPerGB converts the GB units used by pricing and invoices into the
// byte limits the panel API expects.
const BytesPerGB = int64(1) << 30

// Account represents a proxy account on the panel.
type Account struct {
	Username    string `json:"username"`
	Status      string `json:"status"`     // active, disabled, limited, expired
	DataLimit   int64  `json:"data_limit"` // bytes, 0 = unlimited
	UsedTraffic int64  `json:"used_traffic"`
	ExpireAt    int64  `json:"expire_at"` // unix seconds, 0 = never
	SubLink     string `json:"sub_link"`
}

// CreateAccountRequest contains params for provisioning a new account.
type CreateAccountRequest struct {
	Username   string `json:"username"`
	DataLimit  int64  `json:"data_limit"` // bytes, 0 = unlimited
	ExpireDays int    `json:"expire_days"`
	MaxIPs     int    `json:"max_ips,omitempty"`
	Note       string `json:"note,omitempty"`
}

// ModifyAccountRequest contains params for patching an existing account.
// Zero values leave the corresponding field untouched.
type ModifyAccountRequest struct {
	Status    string `json:"status,omitempty"`
	DataLimit int64  `json:"data_limit,omitempty"`
	ExpireAt  int64  `json:"expire_at,omitempty"`
}

// Client is the opaque provisioning capability the billing core dispatches
// against. The Marzban implementation is the only one shipped; fulfillment
// code must not depend on anything beyond this surface.
type Client interface {
	// Authenticate logs in and stores the auth token/session.
	Authenticate(ctx context.Context) error

	// GetAccount gets an account by username; ErrAccountNotFound when absent.
	GetAccount(ctx context.Context, username string) (*Account, error)

	// CreateAccount provisions a new account on the panel.
	CreateAccount(ctx context.Context, req CreateAccountRequest) (*Account, error)

	// ModifyAccount patches an existing account.
	ModifyAccount(ctx context.Context, username string, req ModifyAccountRequest) (*Account, error)

	// ResetTraffic zeroes the used-traffic counter for an account.
	ResetTraffic(ctx context.Context, username string) error

	// AddData raises the account's data limit by the given volume.
	AddData(ctx context.Context, username string, volumeGB int) error

	// SubscriptionLink returns the account's subscription URL.
	SubscriptionLink(ctx context.Context, username string) (string, error)

	// Ping checks panel reachability.
	Ping(ctx context.Context) error
}
