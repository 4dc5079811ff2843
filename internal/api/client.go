package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"warden/internal/community"
	"warden/internal/review"
)

// ErrUnavailable reports that no daemon answered at the configured address.
var ErrUnavailable = errors.New("warden API unavailable")

// Error is a non-2xx response decoded from an ErrorResponse body.
type Error struct {
	Status  int
	Message string
	Kind    string
}

func (e *Error) Error() string {
	if e.Kind != "" {
		return fmt.Sprintf("api %d (%s): %s", e.Status, e.Kind, e.Message)
	}
	return fmt.Sprintf("api %d: %s", e.Status, e.Message)
}

// Client talks to the daemon's HTTP API.
type Client struct {
	base  *url.URL
	token string
	http  *http.Client
}

// NewClient builds a client for bind, which may omit the scheme.
func NewClient(bind, token string) (*Client, error) {
	bind = strings.TrimSpace(bind)
	if bind == "" {
		return nil, fmt.Errorf("api address is required")
	}
	if !strings.Contains(bind, "://") {
		bind = "http://" + bind
	}
	base, err := url.Parse(bind)
	if err != nil {
		return nil, err
	}
	base.Path = ""
	base.RawQuery = ""
	base.Fragment = ""
	return &Client{
		base:  base,
		token: strings.TrimSpace(token),
		http:  &http.Client{Timeout: 45 * time.Second},
	}, nil
}

// Health pings /healthz.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/healthz", nil, nil, nil)
}

// Status fetches the daemon summary.
func (c *Client) Status(ctx context.Context) (Status, error) {
	var out Status
	err := c.do(ctx, http.MethodGet, "/api/status", nil, nil, &out)
	return out, err
}

// Queue fetches the queue snapshot.
func (c *Client) Queue(ctx context.Context) (QueueView, error) {
	var out QueueView
	err := c.do(ctx, http.MethodGet, "/api/queue", nil, nil, &out)
	return out, err
}

// Submit posts evidence. Refusals are returned as a response with Accepted
// false, not as an error.
func (c *Client) Submit(ctx context.Context, req SubmitRequest) (SubmitResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return SubmitResponse{}, err
	}
	httpReq, err := c.newRequest(ctx, http.MethodPost, "/api/submissions", nil, bytes.NewReader(body))
	if err != nil {
		return SubmitResponse{}, err
	}
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return SubmitResponse{}, wrapTransport(err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusAccepted, http.StatusConflict, http.StatusLocked, http.StatusPreconditionFailed:
		var out SubmitResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return SubmitResponse{}, err
		}
		if out.Accepted || out.Reason != "" {
			return out, nil
		}
		return SubmitResponse{}, &Error{Status: resp.StatusCode, Message: out.Message}
	default:
		return SubmitResponse{}, decodeError(resp)
	}
}

// Ledger fetches one member's ledger state.
func (c *Client) Ledger(ctx context.Context, communityID, userID string) (LedgerView, error) {
	var out LedgerView
	err := c.do(ctx, http.MethodGet, memberPath("/api/ledger", communityID, userID, ""), nil, nil, &out)
	return out, err
}

// Locked lists locked members of a community.
func (c *Client) Locked(ctx context.Context, communityID string) (LockedListResponse, error) {
	var out LockedListResponse
	err := c.do(ctx, http.MethodGet, "/api/ledger/"+url.PathEscape(communityID)+"/locked", nil, nil, &out)
	return out, err
}

// Unlock resets a locked member.
func (c *Client) Unlock(ctx context.Context, communityID, userID, actor string) (UnlockResponse, error) {
	var out UnlockResponse
	err := c.do(ctx, http.MethodPost, memberPath("/api/ledger", communityID, userID, "unlock"), nil, UnlockRequest{Actor: actor}, &out)
	return out, err
}

// MemberJoined reports a join event.
func (c *Client) MemberJoined(ctx context.Context, communityID, userID string) (MemberEventResponse, error) {
	var out MemberEventResponse
	err := c.do(ctx, http.MethodPost, memberPath("/api/members", communityID, userID, "join"), nil, nil, &out)
	return out, err
}

// MemberLeft reports a leave event.
func (c *Client) MemberLeft(ctx context.Context, communityID, userID string) (MemberEventResponse, error) {
	var out MemberEventResponse
	err := c.do(ctx, http.MethodPost, memberPath("/api/members", communityID, userID, "leave"), nil, nil, &out)
	return out, err
}

// Communities lists configured communities.
func (c *Client) Communities(ctx context.Context) ([]*community.Settings, error) {
	var out CommunityListResponse
	err := c.do(ctx, http.MethodGet, "/api/communities", nil, nil, &out)
	return out.Communities, err
}

// Community fetches one community's settings.
func (c *Client) Community(ctx context.Context, communityID string) (*community.Settings, error) {
	var out community.Settings
	if err := c.do(ctx, http.MethodGet, "/api/communities/"+url.PathEscape(communityID), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateCommunity applies a partial settings update.
func (c *Client) UpdateCommunity(ctx context.Context, communityID string, update community.Update) (*community.Settings, error) {
	var out community.Settings
	if err := c.do(ctx, http.MethodPut, "/api/communities/"+url.PathEscape(communityID), nil, update, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Reviews lists review cases.
func (c *Client) Reviews(ctx context.Context, filter review.Filter) ([]*review.Case, error) {
	values := url.Values{}
	if filter.CommunityID != "" {
		values.Set("community", filter.CommunityID)
	}
	if filter.UserID != "" {
		values.Set("user", filter.UserID)
	}
	if filter.IncludeResolved {
		values.Set("all", "1")
	}
	var out ReviewListResponse
	err := c.do(ctx, http.MethodGet, "/api/reviews", values, nil, &out)
	return out.Cases, err
}

// ResolveReview closes a review case.
func (c *Client) ResolveReview(ctx context.Context, id, actor, resolution string) (*review.Case, error) {
	var out review.Case
	req := ResolveRequest{Actor: actor, Resolution: resolution}
	if err := c.do(ctx, http.MethodPost, "/api/reviews/"+url.PathEscape(id)+"/resolve", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DirectoryLookup resolves an external id through the daemon's directory.
func (c *Client) DirectoryLookup(ctx context.Context, id string) (DirectoryLookupResponse, error) {
	var out DirectoryLookupResponse
	err := c.do(ctx, http.MethodGet, "/api/directory/"+url.PathEscape(id), nil, nil, &out)
	return out, err
}

func memberPath(prefix, communityID, userID, action string) string {
	path := prefix + "/" + url.PathEscape(communityID) + "/" + url.PathEscape(userID)
	if action != "" {
		path += "/" + action
	}
	return path
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body io.Reader) (*http.Request, error) {
	ref := &url.URL{Path: path}
	if len(query) > 0 {
		ref.RawQuery = query.Encode()
	}
	endpoint := c.base.ResolveReference(ref)
	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}
	req, err := c.newRequest(ctx, method, path, query, body)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return wrapTransport(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func decodeError(resp *http.Response) error {
	var payload ErrorResponse
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(data, &payload); err != nil || payload.Error == "" {
		payload.Error = strings.TrimSpace(string(data))
		if payload.Error == "" {
			payload.Error = http.StatusText(resp.StatusCode)
		}
	}
	return &Error{Status: resp.StatusCode, Message: payload.Error, Kind: payload.Kind}
}

func wrapTransport(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		var opErr *net.OpError
		if errors.As(urlErr.Err, &opErr) {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}
	return err
}

// IsUnavailable reports whether err means the daemon could not be reached.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}

// IsNotFound reports a 404 response.
func IsNotFound(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}
