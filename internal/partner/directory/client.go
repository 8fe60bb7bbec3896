package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/npclabs/storefront/internal/config"
	"github.com/npclabs/storefront/internal/partner/domain"
	"go.uber.org/zap"
)

// Client talks to the partner product's auth admin API with a service key.
type Client struct {
	baseURL    string
	serviceKey string
	http       *http.Client
	log        *zap.Logger

	scanPageSize  int
	scanPageLimit int
}

func NewClient(cfg config.PartnerAuthConfig, log *zap.Logger) *Client {
	return &Client{
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		serviceKey:    cfg.ServiceKey,
		http:          &http.Client{Timeout: cfg.Timeout},
		log:           log.Named("partner.directory"),
		scanPageSize:  cfg.ScanPageSize,
		scanPageLimit: cfg.ScanPageLimit,
	}
}

type createUserRequest struct {
	Email        string `json:"email"`
	Password     string `json:"password"`
	EmailConfirm bool   `json:"email_confirm"`
}

type apiError struct {
	Message string `json:"msg"`
	Code    string `json:"error_code"`
}

func (c *Client) CreateUser(ctx context.Context, email, password string) (*domain.DirectoryUser, error) {
	if c.baseURL == "" || c.serviceKey == "" {
		return nil, domain.ErrUnavailable
	}

	body, err := json.Marshal(createUserRequest{Email: email, Password: password, EmailConfirm: true})
	if err != nil {
		return nil, err
	}

	resp, err := c.do(ctx, http.MethodPost, "/admin/users", body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
		var user domain.DirectoryUser
		if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
			return nil, fmt.Errorf("decode create user response: %w", err)
		}
		return &user, nil
	case resp.StatusCode == http.StatusUnprocessableEntity || resp.StatusCode == http.StatusConflict:
		return nil, domain.ErrEmailRegistered
	case resp.StatusCode == http.StatusBadRequest:
		var apiErr apiError
		raw, _ := io.ReadAll(resp.Body)
		if json.Unmarshal(raw, &apiErr) == nil &&
			(apiErr.Code == "email_exists" || strings.Contains(strings.ToLower(apiErr.Message), "already")) {
			return nil, domain.ErrEmailRegistered
		}
		return nil, fmt.Errorf("partner directory rejected create: %s", string(raw))
	default:
		return nil, fmt.Errorf("partner directory create user: unexpected status %d", resp.StatusCode)
	}
}

type listUsersResponse struct {
	Users []domain.DirectoryUser `json:"users"`
}

// FindUserByEmail pages through the directory until the email matches,
// capped at scanPageLimit pages. Hitting the cap without finding the user is
// ErrScanExhausted; an exhausted directory (short page) without a match is
// ErrUserNotFound.
func (c *Client) FindUserByEmail(ctx context.Context, email string) (*domain.DirectoryUser, error) {
	if c.baseURL == "" || c.serviceKey == "" {
		return nil, domain.ErrUnavailable
	}

	needle := strings.ToLower(strings.TrimSpace(email))
	pageSize := c.scanPageSize
	if pageSize <= 0 {
		pageSize = 50
	}
	pageLimit := c.scanPageLimit
	if pageLimit <= 0 {
		pageLimit = 20
	}

	for page := 1; page <= pageLimit; page++ {
		path := fmt.Sprintf("/admin/users?page=%d&per_page=%d", page, pageSize)
		resp, err := c.do(ctx, http.MethodGet, path, nil)
		if err != nil {
			return nil, err
		}

		var out listUsersResponse
		decodeErr := json.NewDecoder(resp.Body).Decode(&out)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("partner directory list users: unexpected status %d", resp.StatusCode)
		}
		if decodeErr != nil {
			return nil, fmt.Errorf("decode list users response: %w", decodeErr)
		}

		for i := range out.Users {
			if strings.ToLower(out.Users[i].Email) == needle {
				return &out.Users[i], nil
			}
		}
		if len(out.Users) < pageSize {
			return nil, domain.ErrUserNotFound
		}
	}

	c.log.Warn("directory scan cap reached without a match",
		zap.Int("page_limit", pageLimit),
		zap.Int("page_size", pageSize))
	return nil, domain.ErrScanExhausted
}

func (c *Client) UpdatePassword(ctx context.Context, userID, password string) error {
	if c.baseURL == "" || c.serviceKey == "" {
		return domain.ErrUnavailable
	}

	body, err := json.Marshal(map[string]string{"password": password})
	if err != nil {
		return err
	}

	resp, err := c.do(ctx, http.MethodPut, "/admin/users/"+url.PathEscape(userID), body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return domain.ErrUserNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("partner directory update password: unexpected status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.serviceKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	}
	return resp, nil
}
