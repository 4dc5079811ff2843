package verification

import (
	"fmt"
	"strings"

	"warden/internal/ledger"
	"warden/internal/queue"
)

// User-facing texts. They use light markdown since most platforms render it.

func acceptedMessage(ticket queue.Ticket) string {
	return fmt.Sprintf("⏳ Please wait, I'm verifying your image.\nYou are **#%d** in queue. Estimated time: **~%d seconds**.",
		ticket.Position, ticket.ETASeconds())
}

func verifiedMessage(name string) string {
	return fmt.Sprintf("✅ You are now verified as **%s**", name)
}

func unreadableMessage(state ledger.State) string {
	return "❌ I couldn't read your identifier.\n" +
		"🆙 Upload a clearer full profile screenshot (no crop).\n" +
		attemptsLine(state)
}

func inauthenticMessage(state ledger.State) string {
	return "❌ This screenshot does **not** look like it was taken from **your own profile screen**.\n" +
		"⚠️ It may be cropped / edited.\n" +
		"🔁 Please take a fresh full screenshot.\n" +
		attemptsLine(state)
}

func strikeLockMessage(state ledger.State) string {
	return "❌ Stop uploading. " + contactLine(state.LockState) + "\n" + attemptsLine(state)
}

func mismatchMessage(state ledger.State) string {
	return "❌ Attempt to **impersonate or bypass** detected!\nYou are now locked. " + contactLine(state.LockState)
}

func transientMessage() string {
	return "⚠️ I couldn't process your screenshot right now. Please upload it again; this attempt was not counted."
}

func lockedMessage(lock ledger.LockState) string {
	return "🔒 Your verification is locked. " + contactLine(lock)
}

func notConfiguredMessage() string {
	return "⚙️ Verification is not set up in this community yet. An admin has been notified."
}

func alreadyQueuedMessage() string {
	return "⏳ Your previous screenshot is still being checked. Please wait for the result."
}

func contactLine(lock ledger.LockState) string {
	if lock == ledger.StateLockedUntilRejoin {
		return "Leave and rejoin the community to try again."
	}
	return "Please **contact an admin**."
}

func attemptsLine(state ledger.State) string {
	return fmt.Sprintf("Attempts: **%d/%d**", state.AttemptCount, state.MaxAttempts)
}

// RejectionMessage renders the user reply for a refused submission.
func RejectionMessage(rej *queue.Rejection, lock ledger.LockState) string {
	if rej == nil {
		return ""
	}
	switch rej.Reason {
	case queue.RejectAlreadyQueued:
		return alreadyQueuedMessage()
	case queue.RejectLocked:
		return lockedMessage(lock)
	case queue.RejectNotConfigured:
		return notConfiguredMessage()
	default:
		return strings.TrimSpace(rej.Error())
	}
}

// Review channel announcements.

func announceVerified(d Decision) string {
	return fmt.Sprintf("✅ Member %s verified as **%s** (id %s)", d.UserID, d.CanonicalName, d.Result.ExtractedID)
}

func announceMismatch(d Decision) string {
	return fmt.Sprintf("❌ Member %s attempted to impersonate or bypass with id %s. Review case %s", d.UserID, d.Result.ExtractedID, d.ReviewCaseID)
}

func announceStrikeLock(d Decision) string {
	return fmt.Sprintf("🔒 Member %s locked after %d failed attempts. Review case %s", d.UserID, d.State.MaxAttempts, d.ReviewCaseID)
}
