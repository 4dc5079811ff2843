package services

import "context"

type contextKey string

const (
	submissionIDKey contextKey = "submission_id"
	communityIDKey  contextKey = "community_id"
	userIDKey       contextKey = "user_id"
	requestIDKey    contextKey = "request_id"
)

// WithSubmissionID annotates context with the evidence submission identifier.
func WithSubmissionID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, submissionIDKey, id)
}

// SubmissionIDFromContext extracts the submission identifier if present.
func SubmissionIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(submissionIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithMember annotates context with the community and user a request concerns.
func WithMember(ctx context.Context, communityID, userID string) context.Context {
	if communityID != "" {
		ctx = context.WithValue(ctx, communityIDKey, communityID)
	}
	if userID != "" {
		ctx = context.WithValue(ctx, userIDKey, userID)
	}
	return ctx
}

// CommunityIDFromContext returns the community identifier if present.
func CommunityIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(communityIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// UserIDFromContext returns the user identifier if present.
func UserIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(userIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
