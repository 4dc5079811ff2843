package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"warden/internal/community"
	"warden/internal/directory"
	"warden/internal/evidence"
	"warden/internal/queue"
	"warden/internal/review"
	"warden/internal/services"
)

func (h *handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	var status Status
	if h.deps.Status != nil {
		status = h.deps.Status.Status(r.Context())
	}
	status.Queue = FromSnapshot(h.deps.Queue.Snapshot())
	status.Directory = FromDirectoryStats(h.deps.Directory.Stats())
	status.DepartedMembers = h.deps.Coordinator.Membership().Departed()
	writeJSON(w, http.StatusOK, status)
}

func (h *handler) handleQueue(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, FromSnapshot(h.deps.Queue.Snapshot()))
}

func (h *handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	member := evidence.Member{CommunityID: strings.TrimSpace(req.CommunityID), UserID: strings.TrimSpace(req.UserID)}
	receipt, err := h.deps.Coordinator.Submit(r.Context(), member, req.ImageRef)
	if err != nil {
		if rej, ok := queue.AsRejection(err); ok {
			writeJSON(w, rejectionStatus(rej.Reason), SubmitResponse{
				Reason:  string(rej.Reason),
				Message: receipt.Message,
			})
			return
		}
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, SubmitResponse{
		Accepted:     true,
		SubmissionID: receipt.Submission.ID,
		Position:     receipt.Ticket.Position,
		ETASeconds:   receipt.Ticket.ETASeconds(),
		Message:      receipt.Message,
	})
}

func rejectionStatus(reason queue.RejectReason) int {
	switch reason {
	case queue.RejectAlreadyQueued:
		return http.StatusConflict
	case queue.RejectLocked:
		return http.StatusLocked
	case queue.RejectNotConfigured:
		return http.StatusPreconditionFailed
	default:
		return http.StatusBadRequest
	}
}

func (h *handler) member(r *http.Request) (evidence.Member, error) {
	member := memberParam(r)
	if err := member.Validate(); err != nil {
		return member, services.Wrap(services.ErrValidation, "api", "member", "", err)
	}
	return member, nil
}

func (h *handler) handleLedger(w http.ResponseWriter, r *http.Request) {
	member, err := h.member(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	state, err := h.deps.Ledger.State(r.Context(), member)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	rec, err := h.deps.Ledger.Lookup(r.Context(), member)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, FromState(member, state, rec))
}

func (h *handler) handleLocked(w http.ResponseWriter, r *http.Request) {
	communityID := strings.TrimSpace(chi.URLParam(r, "community"))
	records, err := h.deps.Ledger.ListLocked(r.Context(), communityID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	policy := h.deps.Ledger.Policy()
	resp := LockedListResponse{CommunityID: communityID, Records: make([]LedgerView, 0, len(records))}
	for _, rec := range records {
		resp.Records = append(resp.Records, FromRecord(rec, policy))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handler) handleUnlock(w http.ResponseWriter, r *http.Request) {
	member, err := h.member(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req UnlockRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	result, err := h.deps.Coordinator.AdminUnlock(r.Context(), member, req.Actor)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	rec, err := h.deps.Ledger.Lookup(r.Context(), member)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, UnlockResponse{
		Previous:      result.Transition.From.String(),
		Ledger:        FromState(member, result.Transition.To, rec),
		ResolvedCases: result.ResolvedCases,
	})
}

func (h *handler) handleJoin(w http.ResponseWriter, r *http.Request) {
	member, err := h.member(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	tr, err := h.deps.Coordinator.MemberJoined(r.Context(), member)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	rec, err := h.deps.Ledger.Lookup(r.Context(), member)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MemberEventResponse{Active: true, Changed: tr.Changed, Ledger: FromState(member, tr.To, rec)})
}

func (h *handler) handleLeave(w http.ResponseWriter, r *http.Request) {
	member, err := h.member(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.deps.Coordinator.MemberLeft(r.Context(), member); err != nil {
		h.writeError(w, r, err)
		return
	}
	state, err := h.deps.Coordinator.CurrentState(r.Context(), member)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	rec, err := h.deps.Ledger.Lookup(r.Context(), member)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MemberEventResponse{Active: false, Ledger: FromState(member, state, rec)})
}

func (h *handler) handleCommunities(w http.ResponseWriter, r *http.Request) {
	list, err := h.deps.Communities.List(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if list == nil {
		list = []*community.Settings{}
	}
	writeJSON(w, http.StatusOK, CommunityListResponse{Communities: list})
}

func (h *handler) handleCommunity(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "community"))
	settings, err := h.deps.Communities.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if settings == nil {
		h.writeError(w, r, notFound("community "+id))
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (h *handler) handleUpdateCommunity(w http.ResponseWriter, r *http.Request) {
	var update community.Update
	if err := decodeJSON(w, r, &update); err != nil {
		h.writeError(w, r, err)
		return
	}
	settings, err := h.deps.Communities.Apply(r.Context(), strings.TrimSpace(chi.URLParam(r, "community")), update)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (h *handler) handleReviews(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	all := query.Get("all")
	cases, err := h.deps.Reviews.List(r.Context(), review.Filter{
		CommunityID:     strings.TrimSpace(query.Get("community")),
		UserID:          strings.TrimSpace(query.Get("user")),
		IncludeResolved: all == "1" || strings.EqualFold(all, "true"),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if cases == nil {
		cases = []*review.Case{}
	}
	writeJSON(w, http.StatusOK, ReviewListResponse{Cases: cases})
}

func (h *handler) handleResolve(w http.ResponseWriter, r *http.Request) {
	var req ResolveRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	resolved, err := h.deps.Reviews.Resolve(r.Context(), chi.URLParam(r, "id"), req.Actor, req.Resolution)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resolved)
}

func (h *handler) handleDirectoryLookup(w http.ResponseWriter, r *http.Request) {
	id, err := directory.ValidateID(chi.URLParam(r, "id"), h.minID, h.maxID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	entry, err := h.deps.Directory.Lookup(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, DirectoryLookupResponse{Entry: entry})
}
