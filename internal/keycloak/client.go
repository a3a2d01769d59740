package keycloak

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/deolexx/smart-home-secure/internal/logs"
)

var (
	// ErrInvalidCredentials — Keycloak отверг логин/пароль (это 401 клиенту,
	// не путать с недоступностью провайдера).
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserExists — username/email уже заняты.
	ErrUserExists = errors.New("username or email already exists")
	// ErrUpstream — провайдер недоступен или ответил неожиданно (5xx клиенту).
	ErrUpstream = errors.New("identity provider unavailable")
)

// Config — параметры подключения к Keycloak.
type Config struct {
	ServerURL    string
	Realm        string
	ClientID     string
	ClientSecret string

	AdminRealm    string
	AdminClientID string
	AdminUsername string
	AdminPassword string
}

// Client — исходящий HTTP-клиент Keycloak: парольный grant для логина и
// admin API для регистрации (создать пользователя, найти роль, назначить
// realm-маппинг). Внутренности провайдера нас не интересуют — только его
// HTTP-контракт.
type Client struct {
	cfg   Config
	httpc *http.Client
}

func NewClient(cfg Config) *Client {
	return &Client{
		cfg:   cfg,
		httpc: &http.Client{Timeout: 15 * time.Second},
	}
}

// TokenResponse — ответ token endpoint'а, отдаётся клиенту как есть.
type TokenResponse struct {
	AccessToken      string `json:"access_token"`
	RefreshToken     string `json:"refresh_token,omitempty"`
	TokenType        string `json:"token_type"`
	ExpiresIn        int    `json:"expires_in"`
	RefreshExpiresIn int    `json:"refresh_expires_in,omitempty"`
	Scope            string `json:"scope,omitempty"`
}

// Login выполняет password grant в realm'е хаба.
func (c *Client) Login(ctx context.Context, username, password string) (*TokenResponse, error) {
	form := url.Values{}
	form.Set("grant_type", "password")
	form.Set("client_id", c.cfg.ClientID)
	form.Set("username", username)
	form.Set("password", password)
	if c.cfg.ClientSecret != "" {
		form.Set("client_secret", c.cfg.ClientSecret)
	}
	return c.requestToken(ctx, c.cfg.Realm, form)
}

// adminToken получает сервисный токен админского realm'а.
func (c *Client) adminToken(ctx context.Context) (string, error) {
	form := url.Values{}
	form.Set("grant_type", "password")
	form.Set("client_id", c.cfg.AdminClientID)
	form.Set("username", c.cfg.AdminUsername)
	form.Set("password", c.cfg.AdminPassword)
	tok, err := c.requestToken(ctx, c.cfg.AdminRealm, form)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			// плохие админские креды — это проблема конфигурации, не клиента
			return "", fmt.Errorf("%w: admin token rejected", ErrUpstream)
		}
		return "", err
	}
	return tok.AccessToken, nil
}

func (c *Client) requestToken(ctx context.Context, realm string, form url.Values) (*TokenResponse, error) {
	tokenURL := fmt.Sprintf("%s/realms/%s/protocol/openid-connect/token", c.cfg.ServerURL, realm)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		// ok
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusBadRequest:
		return nil, ErrInvalidCredentials
	default:
		return nil, fmt.Errorf("%w: token endpoint returned %d", ErrUpstream, resp.StatusCode)
	}

	var tok TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return nil, fmt.Errorf("%w: decode token response: %v", ErrUpstream, err)
	}
	if tok.AccessToken == "" {
		return nil, fmt.Errorf("%w: token missing in response", ErrUpstream)
	}
	return &tok, nil
}

// RegisterUser создаёт пользователя в realm'е хаба и вешает на него
// realm-роль ADMIN либо USER.
func (c *Client) RegisterUser(ctx context.Context, username, email, password string, admin bool) error {
	token, err := c.adminToken(ctx)
	if err != nil {
		return err
	}
	userID, err := c.createUser(ctx, token, username, email, password)
	if err != nil {
		return err
	}
	roleName := "USER"
	if admin {
		roleName = "ADMIN"
	}
	return c.assignRealmRole(ctx, token, userID, roleName)
}

func (c *Client) createUser(ctx context.Context, token, username, email, password string) (string, error) {
	createURL := fmt.Sprintf("%s/admin/realms/%s/users", c.cfg.ServerURL, c.cfg.Realm)
	payload := map[string]any{
		"username":        username,
		"email":           email,
		"enabled":         true,
		"emailVerified":   true,
		"requiredActions": []string{},
		"credentials": []map[string]any{{
			"type":      "password",
			"value":     password,
			"temporary": false,
		}},
	}

	resp, err := c.doJSON(ctx, http.MethodPost, createURL, token, payload)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusCreated:
		// id пользователя — последний сегмент Location
		loc := resp.Header.Get("Location")
		if loc == "" {
			return "", fmt.Errorf("%w: no user location in response", ErrUpstream)
		}
		return loc[strings.LastIndex(loc, "/")+1:], nil
	case http.StatusConflict:
		return "", ErrUserExists
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		logs.With("keycloak").Errorf("user creation failed: status=%d body=%s", resp.StatusCode, body)
		return "", fmt.Errorf("%w: user creation returned %d", ErrUpstream, resp.StatusCode)
	}
}

func (c *Client) assignRealmRole(ctx context.Context, token, userID, roleName string) error {
	roleURL := fmt.Sprintf("%s/admin/realms/%s/roles/%s", c.cfg.ServerURL, c.cfg.Realm, roleName)
	resp, err := c.doJSON(ctx, http.MethodGet, roleURL, token, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: fetch role %s returned %d", ErrUpstream, roleName, resp.StatusCode)
	}

	var role struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&role); err != nil {
		return fmt.Errorf("%w: decode role %s: %v", ErrUpstream, roleName, err)
	}

	mappingURL := fmt.Sprintf("%s/admin/realms/%s/users/%s/role-mappings/realm", c.cfg.ServerURL, c.cfg.Realm, userID)
	mapResp, err := c.doJSON(ctx, http.MethodPost, mappingURL, token, []any{role})
	if err != nil {
		return err
	}
	defer mapResp.Body.Close()
	if mapResp.StatusCode < 200 || mapResp.StatusCode > 299 {
		return fmt.Errorf("%w: assign role %s returned %d", ErrUpstream, roleName, mapResp.StatusCode)
	}
	return nil
}

func (c *Client) doJSON(ctx context.Context, method, rawURL, token string, payload any) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	return resp, nil
}
