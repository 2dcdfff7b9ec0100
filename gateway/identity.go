package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
)

// FlexSeconds decodes a lifetime the service returns either as a JSON
// number or as a quoted decimal string.
type FlexSeconds int64

func (s *FlexSeconds) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(b, `"`)
	n, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return fmt.Errorf("expiresIn: %w", err)
	}
	*s = FlexSeconds(n)
	return nil
}

// AuthResult is the identity service's response to a successful sign-up or
// sign-in.
type AuthResult struct {
	IDToken      string      `json:"idToken"`
	RefreshToken string      `json:"refreshToken"`
	LocalID      string      `json:"localId"`
	Email        string      `json:"email"`
	ExpiresIn    FlexSeconds `json:"expiresIn"`
}

// ServiceError is a failure reported by the identity service itself, e.g.
// EMAIL_EXISTS or INVALID_PASSWORD. Its message is shown to the user.
type ServiceError struct {
	Message string
}

func (e *ServiceError) Error() string {
	return e.Message
}

// IdentityClient talks to the external identity service. It never stores
// credentials; tokens are issued and owned by the service.
type IdentityClient struct {
	baseURL string
	apiKey  string
	client  *fasthttp.Client
	timeout time.Duration
}

// NewIdentityClient creates a client for the given service endpoint.
func NewIdentityClient(baseURL, apiKey string) *IdentityClient {
	return &IdentityClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &fasthttp.Client{},
		timeout: defaultTimeout,
	}
}

// SignUp creates a new account.
func (c *IdentityClient) SignUp(ctx context.Context, email, password string) (*AuthResult, error) {
	return c.call(ctx, "accounts:signUp", email, password)
}

// SignIn authenticates an existing account.
func (c *IdentityClient) SignIn(ctx context.Context, email, password string) (*AuthResult, error) {
	return c.call(ctx, "accounts:signInWithPassword", email, password)
}

func (c *IdentityClient) call(ctx context.Context, action, email, password string) (*AuthResult, error) {
	body, err := json.Marshal(map[string]interface{}{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	})
	if err != nil {
		return nil, err
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(fmt.Sprintf("%s/%s?key=%s", c.baseURL, action, url.QueryEscape(c.apiKey)))
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.SetBody(body)

	if err := do(ctx, c.client, req, resp, c.timeout); err != nil {
		return nil, fmt.Errorf("identity request: %w", err)
	}

	if resp.StatusCode() != fasthttp.StatusOK {
		var fail struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		if err := json.Unmarshal(resp.Body(), &fail); err == nil && fail.Error.Message != "" {
			return nil, &ServiceError{Message: fail.Error.Message}
		}
		return nil, fmt.Errorf("identity service returned status %d", resp.StatusCode())
	}

	var result AuthResult
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return nil, fmt.Errorf("decode auth response: %w", err)
	}
	return &result, nil
}
