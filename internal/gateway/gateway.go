package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"warden/internal/config"
	"warden/internal/evidence"
	"warden/internal/logging"
)

// Action names one gateway call. It labels webhook payloads and metrics.
type Action string

const (
	ActionGrantPrivilege Action = "grant_privilege"
	ActionSetDisplayName Action = "set_display_name"
	ActionNotify         Action = "notify"
	ActionAnnounce       Action = "announce"
)

// MembershipGateway applies decisions on the chat platform. Implementations
// must be safe for use by a single worker; callers log failures and do not
// retry.
type MembershipGateway interface {
	GrantPrivilege(ctx context.Context, member evidence.Member, privilegeID string) error
	SetDisplayName(ctx context.Context, member evidence.Member, name string) error
	// Notify sends a direct message to the member.
	Notify(ctx context.Context, member evidence.Member, text string) error
	// Announce posts to the community's review channel.
	Announce(ctx context.Context, communityID, channelID, text, imageRef string) error
}

// New builds the gateway selected by cfg.Mode.
func New(cfg config.Gateway, logger *slog.Logger) (MembershipGateway, error) {
	switch cfg.Mode {
	case "", "log":
		return NewLog(logger), nil
	case "webhook":
		return NewWebhook(cfg.WebhookURL, cfg.Token, time.Duration(cfg.TimeoutSeconds)*time.Second), nil
	default:
		return nil, fmt.Errorf("gateway: unsupported mode %q", cfg.Mode)
	}
}

// LogGateway records every action in the log. It is the default for
// deployments where the platform adapter tails decisions instead.
type LogGateway struct {
	logger *slog.Logger
}

func NewLog(logger *slog.Logger) *LogGateway {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &LogGateway{logger: logging.NewComponentLogger(logger, "gateway")}
}

func (g *LogGateway) log(ctx context.Context, action Action, member evidence.Member, attrs ...logging.Attr) {
	base := append(logging.SubmissionAttrs(member.CommunityID, member.UserID),
		logging.String(logging.FieldEventType, "gateway_"+string(action)))
	logging.WithContext(ctx, g.logger).Info("gateway action", logging.Args(append(base, attrs...)...)...)
}

func (g *LogGateway) GrantPrivilege(ctx context.Context, member evidence.Member, privilegeID string) error {
	g.log(ctx, ActionGrantPrivilege, member, logging.String("privilege_id", privilegeID))
	return nil
}

func (g *LogGateway) SetDisplayName(ctx context.Context, member evidence.Member, name string) error {
	g.log(ctx, ActionSetDisplayName, member, logging.String("display_name", name))
	return nil
}

func (g *LogGateway) Notify(ctx context.Context, member evidence.Member, text string) error {
	g.log(ctx, ActionNotify, member, logging.String("message", text))
	return nil
}

func (g *LogGateway) Announce(ctx context.Context, communityID, channelID, text, imageRef string) error {
	g.log(ctx, ActionAnnounce, evidence.Member{CommunityID: communityID},
		logging.String("channel_id", channelID),
		logging.String("message", text),
		logging.String("image_ref", imageRef),
	)
	return nil
}
