package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"warden/internal/evidence"
	"warden/internal/services"
)

// WebhookPayload is the JSON body posted for every action.
type WebhookPayload struct {
	Action       Action `json:"action"`
	CommunityID  string `json:"community_id"`
	UserID       string `json:"user_id,omitempty"`
	SubmissionID string `json:"submission_id,omitempty"`
	PrivilegeID  string `json:"privilege_id,omitempty"`
	DisplayName  string `json:"display_name,omitempty"`
	ChannelID    string `json:"channel_id,omitempty"`
	Message      string `json:"message,omitempty"`
	ImageRef     string `json:"image_ref,omitempty"`
}

// WebhookGateway posts actions to a platform adapter.
type WebhookGateway struct {
	url    string
	token  string
	client *http.Client
}

func NewWebhook(url, token string, timeout time.Duration) *WebhookGateway {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookGateway{url: url, token: token, client: &http.Client{Timeout: timeout}}
}

func (g *WebhookGateway) GrantPrivilege(ctx context.Context, member evidence.Member, privilegeID string) error {
	return g.post(ctx, WebhookPayload{Action: ActionGrantPrivilege, CommunityID: member.CommunityID, UserID: member.UserID, PrivilegeID: privilegeID})
}

func (g *WebhookGateway) SetDisplayName(ctx context.Context, member evidence.Member, name string) error {
	return g.post(ctx, WebhookPayload{Action: ActionSetDisplayName, CommunityID: member.CommunityID, UserID: member.UserID, DisplayName: name})
}

func (g *WebhookGateway) Notify(ctx context.Context, member evidence.Member, text string) error {
	return g.post(ctx, WebhookPayload{Action: ActionNotify, CommunityID: member.CommunityID, UserID: member.UserID, Message: text})
}

func (g *WebhookGateway) Announce(ctx context.Context, communityID, channelID, text, imageRef string) error {
	return g.post(ctx, WebhookPayload{Action: ActionAnnounce, CommunityID: communityID, ChannelID: channelID, Message: text, ImageRef: imageRef})
}

func (g *WebhookGateway) post(ctx context.Context, payload WebhookPayload) error {
	if id, ok := services.SubmissionIDFromContext(ctx); ok {
		payload.SubmissionID = id
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode gateway payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build gateway request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if g.token != "" {
		req.Header.Set("Authorization", "Bearer "+g.token)
	}
	if id, ok := services.RequestIDFromContext(ctx); ok {
		req.Header.Set("X-Request-ID", id)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return services.Wrap(services.ErrTransient, "gateway", string(payload.Action), "request failed", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return services.Wrap(services.ErrTransient, "gateway", string(payload.Action),
			fmt.Sprintf("adapter returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet))), nil)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
