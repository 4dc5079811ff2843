package evidence

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Member identifies a user within one community. Every ledger and queue key
// is a Member; nothing is shared across communities.
type Member struct {
	CommunityID string `json:"community_id"`
	UserID      string `json:"user_id"`
}

// String renders the member as community/user.
func (m Member) String() string {
	return m.CommunityID + "/" + m.UserID
}

// Validate reports whether both identifiers are present.
func (m Member) Validate() error {
	if strings.TrimSpace(m.CommunityID) == "" {
		return fmt.Errorf("community id is required")
	}
	if strings.TrimSpace(m.UserID) == "" {
		return fmt.Errorf("user id is required")
	}
	return nil
}

// Submission is one piece of evidence uploaded by a member. It is immutable
// once created.
type Submission struct {
	ID          string    `json:"id"`
	CommunityID string    `json:"community_id"`
	UserID      string    `json:"user_id"`
	ImageRef    string    `json:"image_ref"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// NewSubmission stamps a fresh submission with a random id.
func NewSubmission(member Member, imageRef string, now time.Time) (Submission, error) {
	if err := member.Validate(); err != nil {
		return Submission{}, err
	}
	ref := strings.TrimSpace(imageRef)
	if ref == "" {
		return Submission{}, fmt.Errorf("image ref is required")
	}
	return Submission{
		ID:          uuid.NewString(),
		CommunityID: strings.TrimSpace(member.CommunityID),
		UserID:      strings.TrimSpace(member.UserID),
		ImageRef:    ref,
		SubmittedAt: now.UTC(),
	}, nil
}

// Member returns the submitting member key.
func (s Submission) Member() Member {
	return Member{CommunityID: s.CommunityID, UserID: s.UserID}
}
