// Package studio implements the calls made against the third-party studio
// management API: token generation, participant listing and per-participant
// class details.
package studio

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"go.uber.org/ratelimit"

	"github.com/stacklok/studio-roster/internal/config"
	"github.com/stacklok/studio-roster/internal/httpclient"
)

// Client is the studio API surface used by the refresh pipeline
//
//go:generate mockgen -destination=mocks/mock_client.go -package=mocks -source=client.go Client
type Client interface {
	// Authenticate obtains an attendance token. Tokens are valid for one refresh run.
	Authenticate(ctx context.Context) (string, error)

	// ListParticipants returns the participants scheduled on programDate, keyed by category
	ListParticipants(ctx context.Context, token, programDate string) (map[string][]Participant, error)

	// GetClassDetails returns the check-in events of a participant on selectedDate
	GetClassDetails(ctx context.Context, token string, participant Participant, selectedDate string) ([]CheckinEvent, error)
}

// Option configures the default client
type Option func(*defaultClient)

// WithRateLimiter overrides the limiter applied before every call
func WithRateLimiter(limiter ratelimit.Limiter) Option {
	return func(c *defaultClient) {
		c.limiter = limiter
	}
}

type defaultClient struct {
	httpClient httpclient.Client
	config     *config.Config
	limiter    ratelimit.Limiter
}

// NewClient creates a studio client for the account described by cfg
func NewClient(httpClient httpclient.Client, cfg *config.Config, opts ...Option) Client {
	c := &defaultClient{
		httpClient: httpClient,
		config:     cfg,
	}

	if cfg.Studio.RequestsPerSecond > 0 {
		c.limiter = ratelimit.New(cfg.Studio.RequestsPerSecond)
	} else {
		c.limiter = ratelimit.NewUnlimited()
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

func (c *defaultClient) Authenticate(ctx context.Context) (string, error) {
	req := generateTokenRequest{
		CompanyID: c.config.Studio.CompanyID,
		Email:     c.config.Studio.Email,
		FromPage:  originAttendance,
	}

	var resp generateTokenResponse
	if err := c.post(ctx, EndpointGenerateToken, req, &resp); err != nil {
		return "", err
	}
	if resp.Msg == nil {
		return "", &DecodeError{Endpoint: EndpointGenerateToken, Err: fmt.Errorf("missing required field %q", "msg")}
	}

	return *resp.Msg, nil
}

func (c *defaultClient) ListParticipants(ctx context.Context, token, programDate string) (map[string][]Participant, error) {
	req := allParticipantsRequest{
		CompanyID:   c.config.Studio.CompanyID,
		Email:       c.config.Studio.Email,
		From:        originAttendance,
		FromPage:    originAttendance,
		ProgramDate: programDate,
		Token:       token,
	}

	var resp allParticipantsResponse
	if err := c.post(ctx, EndpointAllParticipants, req, &resp); err != nil {
		return nil, err
	}
	if resp.StudentDetail == nil {
		return nil, &DecodeError{Endpoint: EndpointAllParticipants, Err: fmt.Errorf("missing required field %q", "student_detail")}
	}

	return resp.StudentDetail, nil
}

func (c *defaultClient) GetClassDetails(
	ctx context.Context,
	token string,
	participant Participant,
	selectedDate string,
) ([]CheckinEvent, error) {
	req := classDetailsRequest{
		CompanyID:     c.config.Studio.CompanyID,
		Token:         token,
		Email:         c.config.Studio.Email,
		UserLoginType: userLoginTypeNone,
		From:          originAttendance,
		FromPage:      originAttendance,
		ParticipantID: participant.ParticipantID,
		StudentID:     participant.StudentID,
		RegID:         participant.RegistrationID,
		RegIDType:     regIDTypeMember,
		SelectedDate:  selectedDate,
		StudentView:   studentViewYes,
		Type:          classTypeMember,
	}

	var resp classDetailsResponse
	if err := c.post(ctx, EndpointClassDetails, req, &resp); err != nil {
		return nil, err
	}
	if resp.ClassDetails == nil {
		return nil, &DecodeError{Endpoint: EndpointClassDetails, Err: fmt.Errorf("missing required field %q", "class_details")}
	}

	return resp.ClassDetails, nil
}

// post sends body to endpoint and decodes the response into out
func (c *defaultClient) post(ctx context.Context, endpoint string, body, out any) error {
	c.limiter.Take()

	url := c.config.GetEndpointURL(endpoint)
	slog.DebugContext(ctx, "Calling studio API", "endpoint", endpoint)

	data, err := c.httpClient.PostJSON(ctx, url, body)
	if err != nil {
		return &TransportError{Endpoint: endpoint, Err: err}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return &DecodeError{Endpoint: endpoint, Err: err}
	}

	return nil
}
