package authadmin

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"bmai-api/internal/http/client"
	"bmai-api/internal/observability/logger"

	"go.uber.org/zap"
)

var (
	// ErrUserExists indicates the auth provider already has an identity for the email
	ErrUserExists = errors.New("user already registered")

	// ErrRejected indicates the auth provider refused the request as invalid
	ErrRejected = errors.New("auth provider rejected request")
)

// Client calls the admin API of the auth provider (GoTrue compatible) with
// the service role key.
type Client struct {
	httpClient *http.Client
	baseURL    string
	serviceKey string
}

// NewClient creates a client for baseURL (e.g. "https://<project>.supabase.co/auth/v1").
// A nil httpClient uses client.NewExternalHTTPClient.
func NewClient(baseURL, serviceKey string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = client.NewExternalHTTPClient(0)
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		serviceKey: serviceKey,
	}
}

// CreateUserParams describes a confirmed identity to create.
type CreateUserParams struct {
	Email    string
	Password string
	FullName string
}

// User is the identity returned by the admin API.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type createUserRequest struct {
	Email        string            `json:"email"`
	Password     string            `json:"password"`
	EmailConfirm bool              `json:"email_confirm"`
	UserMetadata map[string]string `json:"user_metadata"`
}

type apiError struct {
	Code             interface{} `json:"code"`
	ErrorCode        string      `json:"error_code"`
	Msg              string      `json:"msg"`
	Message          string      `json:"message"`
	ErrorDescription string      `json:"error_description"`
}

func (e apiError) text() string {
	for _, s := range []string{e.Msg, e.Message, e.ErrorDescription} {
		if s != "" {
			return s
		}
	}
	return "unknown error"
}

// CreateUser creates a confirmed identity with a temporary password.
func (c *Client) CreateUser(ctx context.Context, params CreateUserParams) (*User, error) {
	log := logger.GetLogger(ctx)

	body, err := json.Marshal(createUserRequest{
		Email:        params.Email,
		Password:     params.Password,
		EmailConfirm: true,
		UserMetadata: map[string]string{"full_name": params.FullName},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/admin/users", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	log.Debug(ctx, "creating identity",
		logger.Module("authadmin"),
		logger.Action("create_user"),
	)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Error(ctx, "auth admin request failed",
			logger.Module("authadmin"),
			logger.Action("create_user"),
			zap.Error(err),
		)
		return nil, fmt.Errorf("auth admin request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, c.statusError(ctx, resp, "create_user")
	}

	var user User
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if user.ID == "" {
		return nil, fmt.Errorf("auth admin response without user id")
	}

	log.Info(ctx, "identity created",
		logger.Module("authadmin"),
		logger.Action("create_user"),
		zap.String("user_id", user.ID),
	)
	return &user, nil
}

// DeleteUser removes an identity. Used to roll back a failed invitation.
func (c *Client) DeleteUser(ctx context.Context, userID string) error {
	req, err := c.newRequest(ctx, http.MethodDelete, "/admin/users/"+userID, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("auth admin request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return c.statusError(ctx, resp, "delete_user")
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.serviceKey)
	req.Header.Set("apikey", c.serviceKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (c *Client) statusError(ctx context.Context, resp *http.Response, action string) error {
	var apiErr apiError
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	_ = json.Unmarshal(raw, &apiErr)

	logger.GetLogger(ctx).Warn(ctx, "auth admin returned non-ok status",
		logger.Module("authadmin"),
		logger.Action(action),
		zap.Int("status", resp.StatusCode),
		zap.String("error_code", apiErr.ErrorCode),
	)

	switch {
	case resp.StatusCode == http.StatusConflict,
		apiErr.ErrorCode == "email_exists",
		apiErr.ErrorCode == "user_already_exists",
		resp.StatusCode == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(apiErr.text()), "already"):
		return ErrUserExists
	case resp.StatusCode == http.StatusBadRequest, resp.StatusCode == http.StatusUnprocessableEntity:
		return fmt.Errorf("%w: %s", ErrRejected, apiErr.text())
	default:
		return fmt.Errorf("unexpected status from auth admin: %d", resp.StatusCode)
	}
}
