package panel

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"marzsell/internal/pkg/httpclient"
)

// MarzbanClient implements Client against a Marzban panel.
type MarzbanClient struct {
	baseURL   string
	username  string
	password  string
	token     string
	client    *httpclient.Client
	tokenTime time.Time
}

// NewMarzbanClient creates a new Marzban panel client.
func NewMarzbanClient(baseURL, username, password string) *MarzbanClient {
	return &MarzbanClient{
		baseURL:  strings.TrimRight(baseURL, "/"),
		username: username,
		password: password,
		client:   httpclient.New().WithTimeout(30 * time.Second).WithInsecureSkipVerify(),
	}
}

// Authenticate obtains a bearer token from the Marzban panel.
func (m *MarzbanClient) Authenticate(ctx context.Context) error {
	resp, err := m.client.PostForm(ctx, m.baseURL+"/api/admin/token", map[string]string{
		"username": m.username,
		"password": m.password,
	})
	if err != nil {
		return fmt.Errorf("marzban auth failed: %w", err)
	}

	var result map[string]interface{}
	if err := json.Unmarshal(resp, &result); err != nil {
		return fmt.Errorf("marzban auth parse error: %w", err)
	}

	token, ok := result["access_token"].(string)
	if !ok {
		return fmt.Errorf("marzban auth: no access_token in response")
	}

	m.token = token
	m.tokenTime = time.Now()
	m.client = m.client.WithBearerToken(token)
	return nil
}

// ensureAuth checks if the token is still valid and re-authenticates if needed.
func (m *MarzbanClient) ensureAuth(ctx context.Context) error {
	if m.token == "" || time.Since(m.tokenTime) > 50*time.Minute {
		return m.Authenticate(ctx)
	}
	return nil
}

func (m *MarzbanClient) GetAccount(ctx context.Context, username string) (*Account, error) {
	if err := m.ensureAuth(ctx); err != nil {
		return nil, err
	}

	resp, err := m.client.Get(ctx, m.baseURL+"/api/user/"+username)
	if err != nil {
		return nil, fmt.Errorf("marzban get user failed: %w", err)
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(resp, &raw); err != nil {
		return nil, fmt.Errorf("marzban parse error: %w", err)
	}

	if detail := strings.TrimSpace(getString(raw, "detail")); strings.EqualFold(detail, "User not found") {
		return nil, ErrAccountNotFound
	}

	return accountFromRaw(raw), nil
}

func (m *MarzbanClient) CreateAccount(ctx context.Context, req CreateAccountRequest) (*Account, error) {
	if err := m.ensureAuth(ctx); err != nil {
		return nil, err
	}

	var expireTime int64
	if req.ExpireDays > 0 {
		expireTime = time.Now().Add(time.Duration(req.ExpireDays) * 24 * time.Hour).Unix()
	}

	note := req.Note
	if req.MaxIPs > 0 {
		note = strings.TrimSpace(fmt.Sprintf("%s max_ips=%d", note, req.MaxIPs))
	}

	body := map[string]interface{}{
		"username":   req.Username,
		"status":     "active",
		"data_limit": req.DataLimit,
		"expire":     expireTime,
		"note":       note,
		"proxies":    map[string]interface{}{"vless": map[string]interface{}{}},
	}

	resp, err := m.client.Post(ctx, m.baseURL+"/api/user", body)
	if err != nil {
		return nil, fmt.Errorf("marzban create user failed: %w", err)
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(resp, &raw); err != nil {
		return nil, fmt.Errorf("marzban parse create response: %w", err)
	}

	if detail, ok := raw["detail"].(string); ok && detail != "" {
		return nil, fmt.Errorf("marzban create user error: %s", detail)
	}

	acct := accountFromRaw(raw)
	acct.DataLimit = req.DataLimit
	acct.ExpireAt = expireTime
	return acct, nil
}

func (m *MarzbanClient) ModifyAccount(ctx context.Context, username string, req ModifyAccountRequest) (*Account, error) {
	if err := m.ensureAuth(ctx); err != nil {
		return nil, err
	}

	body := map[string]interface{}{}
	if req.Status != "" {
		body["status"] = req.Status
	}
	if req.DataLimit > 0 {
		body["data_limit"] = req.DataLimit
	}
	if req.ExpireAt > 0 {
		body["expire"] = req.ExpireAt
	}

	resp, err := m.client.Put(ctx, m.baseURL+"/api/user/"+username, body)
	if err != nil {
		return nil, fmt.Errorf("marzban modify user failed: %w", err)
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(resp, &raw); err != nil {
		return nil, fmt.Errorf("marzban parse modify response: %w", err)
	}

	if detail := strings.TrimSpace(getString(raw, "detail")); strings.EqualFold(detail, "User not found") {
		return nil, ErrAccountNotFound
	}

	return accountFromRaw(raw), nil
}

func (m *MarzbanClient) ResetTraffic(ctx context.Context, username string) error {
	if err := m.ensureAuth(ctx); err != nil {
		return err
	}

	_, err := m.client.Post(ctx, m.baseURL+"/api/user/"+username+"/reset", nil)
	return err
}

// AddData raises the account's data limit by volumeGB. Marzban has no
// dedicated top-up endpoint, so this is a read-modify-write of data_limit.
func (m *MarzbanClient) AddData(ctx context.Context, username string, volumeGB int) error {
	acct, err := m.GetAccount(ctx, username)
	if err != nil {
		return err
	}

	newLimit := acct.DataLimit + int64(volumeGB)*BytesPerGB
	_, err = m.ModifyAccount(ctx, username, ModifyAccountRequest{DataLimit: newLimit})
	return err
}

func (m *MarzbanClient) SubscriptionLink(ctx context.Context, username string) (string, error) {
	acct, err := m.GetAccount(ctx, username)
	if err != nil {
		return "", err
	}
	return acct.SubLink, nil
}

// Ping hits the system stats endpoint to verify panel reachability.
func (m *MarzbanClient) Ping(ctx context.Context) error {
	if err := m.ensureAuth(ctx); err != nil {
		return err
	}

	resp, err := m.client.Get(ctx, m.baseURL+"/api/system")
	if err != nil {
		return err
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(resp, &raw); err != nil {
		return fmt.Errorf("marzban system stats parse error: %w", err)
	}
	return nil
}

func accountFromRaw(raw map[string]interface{}) *Account {
	acct := &Account{
		Username: getString(raw, "username"),
		Status:   getString(raw, "status"),
	}
	if v, ok := raw["data_limit"].(float64); ok {
		acct.DataLimit = int64(v)
	}
	if v, ok := raw["used_traffic"].(float64); ok {
		acct.UsedTraffic = int64(v)
	}
	if v, ok := raw["expire"].(float64); ok {
		acct.ExpireAt = int64(v)
	}
	if v, ok := raw["subscription_url"].(string); ok {
		acct.SubLink = v
	}
	return acct
}

// Helper to safely get string from map
func getString(m map[string]interface{}, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}
