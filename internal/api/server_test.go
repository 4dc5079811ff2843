package api_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"warden/internal/api"
	"warden/internal/community"
	"warden/internal/config"
	"warden/internal/directory"
	"warden/internal/evidence"
	"warden/internal/gateway"
	"warden/internal/ledger"
	"warden/internal/logging"
	"warden/internal/metrics"
	"warden/internal/queue"
	"warden/internal/review"
	"warden/internal/testsupport"
	"warden/internal/verification"
)

type unreadableAnalyzer struct{}

func (unreadableAnalyzer) Analyze(context.Context, []byte) evidence.AnalysisResult {
	return evidence.NoIdentifierFound("blank")
}

type echoFetcher struct{}

func (echoFetcher) Fetch(_ context.Context, ref string) ([]byte, error) {
	return []byte(ref), nil
}

type staticStatus struct{}

func (staticStatus) Status(context.Context) api.Status {
	return api.Status{Running: true, PID: 4242, LedgerBackend: "memory", GatewayMode: "log"}
}

type serverSuite struct {
	suite.Suite

	ctx         context.Context
	ledger      *ledger.Service
	queue       *queue.Queue
	communities *community.Store
	reviews     *review.Store
	coord       *verification.Coordinator
	server      *httptest.Server
	client      *api.Client
}

func TestServerSuite(t *testing.T) {
	suite.Run(t, new(serverSuite))
}

func (s *serverSuite) SetupTest() {
	t := s.T()
	s.ctx = context.Background()
	cfg := testsupport.NewConfig(t, testsupport.WithDirectory([2]string{"Ada Lovelace", "10010001"}))
	db := testsupport.MustOpenDB(t, cfg)

	var err error
	s.ledger, err = ledger.New(ledger.NewMemoryRepository())
	s.Require().NoError(err)
	s.queue = queue.New(queue.NewEstimator(config.Default().Queue))
	s.communities = community.NewStore(db)
	s.reviews = review.NewStore(db)
	_, err = s.communities.Put(s.ctx, community.Settings{CommunityID: "c1", PrivilegeID: "role-verified", Enabled: true})
	s.Require().NoError(err)

	dir := directory.NewCSV(cfg.Directory.Path, logging.NewNop())
	s.coord, err = verification.New(verification.Dependencies{
		Queue:     s.queue,
		Ledger:    s.ledger,
		Analyzer:  unreadableAnalyzer{},
		Fetcher:   echoFetcher{},
		Directory: dir,
		Gateway:   gateway.NewLog(logging.NewNop()),
		Settings:  s.communities,
		Reviews:   s.reviews,
	})
	s.Require().NoError(err)

	reg := prometheus.NewRegistry()
	metrics.New(reg)
	handler, err := api.NewHandler(api.Dependencies{
		Coordinator: s.coord,
		Queue:       s.queue,
		Ledger:      s.ledger,
		Communities: s.communities,
		Reviews:     s.reviews,
		Directory:   dir,
		Status:      staticStatus{},
		Gatherer:    reg,
	}, api.Options{Token: cfg.API.Token, Logger: logging.NewNop()})
	s.Require().NoError(err)

	s.server = httptest.NewServer(handler)
	t.Cleanup(s.server.Close)
	s.client, err = api.NewClient(s.server.URL, cfg.API.Token)
	s.Require().NoError(err)
}

func (s *serverSuite) strike(user string, times int) {
	for i := 0; i < times; i++ {
		_, err := s.ledger.Record(s.ctx, evidence.Member{CommunityID: "c1", UserID: user}, ledger.EventUnreadable)
		s.Require().NoError(err)
	}
}

func (s *serverSuite) TestHealthIsPublic() {
	resp, err := http.Get(s.server.URL + "/healthz")
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Equal(http.StatusOK, resp.StatusCode)
}

func (s *serverSuite) TestAPIRequiresToken() {
	resp, err := http.Get(s.server.URL + "/api/queue")
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Equal(http.StatusUnauthorized, resp.StatusCode)

	anonymous, err := api.NewClient(s.server.URL, "wrong")
	s.Require().NoError(err)
	_, err = anonymous.Queue(s.ctx)
	var apiErr *api.Error
	s.Require().ErrorAs(err, &apiErr)
	s.Equal(http.StatusUnauthorized, apiErr.Status)
}

func (s *serverSuite) TestSubmitAcceptsAndReportsPosition() {
	resp, err := s.client.Submit(s.ctx, api.SubmitRequest{CommunityID: "c1", UserID: "u1", ImageRef: "https://cdn.example/1.png"})
	s.Require().NoError(err)
	s.True(resp.Accepted)
	s.Equal(1, resp.Position)
	s.Equal(40, resp.ETASeconds)
	s.NotEmpty(resp.SubmissionID)
	s.Contains(resp.Message, "#1")

	view, err := s.client.Queue(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, view.Depth)
	s.Require().Len(view.Pending, 1)
	s.Equal("u1", view.Pending[0].UserID)
}

func (s *serverSuite) TestSubmitRejectsDuplicate() {
	req := api.SubmitRequest{CommunityID: "c1", UserID: "u1", ImageRef: "https://cdn.example/1.png"}
	_, err := s.client.Submit(s.ctx, req)
	s.Require().NoError(err)

	resp, err := s.client.Submit(s.ctx, req)
	s.Require().NoError(err)
	s.False(resp.Accepted)
	s.Equal(string(queue.RejectAlreadyQueued), resp.Reason)
	s.NotEmpty(resp.Message)
}

func (s *serverSuite) TestSubmitRejectsLockedMember() {
	s.strike("u2", 3)
	resp, err := s.client.Submit(s.ctx, api.SubmitRequest{CommunityID: "c1", UserID: "u2", ImageRef: "https://cdn.example/2.png"})
	s.Require().NoError(err)
	s.False(resp.Accepted)
	s.Equal(string(queue.RejectLocked), resp.Reason)
	s.Contains(resp.Message, "contact an admin")
	s.Equal(0, s.queue.Depth())
}

func (s *serverSuite) TestSubmitRejectsUnconfiguredCommunity() {
	resp, err := s.client.Submit(s.ctx, api.SubmitRequest{CommunityID: "c9", UserID: "u1", ImageRef: "https://cdn.example/1.png"})
	s.Require().NoError(err)
	s.False(resp.Accepted)
	s.Equal(string(queue.RejectNotConfigured), resp.Reason)
}

func (s *serverSuite) TestSubmitValidatesBody() {
	_, err := s.client.Submit(s.ctx, api.SubmitRequest{CommunityID: "c1"})
	var apiErr *api.Error
	s.Require().ErrorAs(err, &apiErr)
	s.Equal(http.StatusBadRequest, apiErr.Status)
}

func (s *serverSuite) TestLedgerAndUnlock() {
	s.strike("u3", 3)

	view, err := s.client.Ledger(s.ctx, "c1", "u3")
	s.Require().NoError(err)
	s.Equal("LockedAwaitingAdmin", view.State)
	s.Equal(3, view.AttemptCount)
	s.Equal(0, view.Remaining)

	locked, err := s.client.Locked(s.ctx, "c1")
	s.Require().NoError(err)
	s.Require().Len(locked.Records, 1)
	s.Equal("u3", locked.Records[0].UserID)

	unlocked, err := s.client.Unlock(s.ctx, "c1", "u3", "mod-1")
	s.Require().NoError(err)
	s.Equal("LockedAwaitingAdmin", unlocked.Previous)
	s.Equal("Open(0)", unlocked.Ledger.State)

	locked, err = s.client.Locked(s.ctx, "c1")
	s.Require().NoError(err)
	s.Empty(locked.Records)
}

func (s *serverSuite) TestLedgerForUnknownMemberIsOpen() {
	view, err := s.client.Ledger(s.ctx, "c1", "nobody")
	s.Require().NoError(err)
	s.Equal("Open(0)", view.State)
	s.Equal(3, view.Remaining)
	s.Empty(view.UpdatedAt)
}

func (s *serverSuite) TestMemberEvents() {
	left, err := s.client.MemberLeft(s.ctx, "c1", "u4")
	s.Require().NoError(err)
	s.False(left.Active)

	status, err := s.client.Status(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, status.DepartedMembers)
	s.Equal(4242, status.PID)

	joined, err := s.client.MemberJoined(s.ctx, "c1", "u4")
	s.Require().NoError(err)
	s.True(joined.Active)
	s.False(joined.Changed)
	s.Equal("Open(0)", joined.Ledger.State)
}

func (s *serverSuite) TestCommunities() {
	_, err := s.client.Community(s.ctx, "c2")
	s.True(api.IsNotFound(err), "expected 404, got %v", err)

	channel := "review-2"
	privilege := "role-2"
	updated, err := s.client.UpdateCommunity(s.ctx, "c2", community.Update{PrivilegeID: &privilege, ReviewChannelID: &channel})
	s.Require().NoError(err)
	s.Equal("role-2", updated.PrivilegeID)

	list, err := s.client.Communities(s.ctx)
	s.Require().NoError(err)
	s.Len(list, 2)
}

func (s *serverSuite) TestReviewsResolve() {
	opened, err := s.reviews.Open(s.ctx, review.NewCase{
		Member:   evidence.Member{CommunityID: "c1", UserID: "u5"},
		Reason:   "identity_mismatch",
		ImageRef: "https://cdn.example/5.png",
	})
	s.Require().NoError(err)

	cases, err := s.client.Reviews(s.ctx, review.Filter{CommunityID: "c1"})
	s.Require().NoError(err)
	s.Require().Len(cases, 1)

	resolved, err := s.client.ResolveReview(s.ctx, opened.ID, "mod-1", "verified manually")
	s.Require().NoError(err)
	s.True(resolved.Resolved())

	_, err = s.client.ResolveReview(s.ctx, opened.ID, "mod-1", "again")
	var apiErr *api.Error
	s.Require().ErrorAs(err, &apiErr)
	s.Equal(http.StatusConflict, apiErr.Status)

	cases, err = s.client.Reviews(s.ctx, review.Filter{CommunityID: "c1"})
	s.Require().NoError(err)
	s.Empty(cases)
}

func (s *serverSuite) TestDirectoryLookup() {
	found, err := s.client.DirectoryLookup(s.ctx, "10010001")
	s.Require().NoError(err)
	s.Equal("Ada Lovelace", found.Entry.CanonicalName)

	_, err = s.client.DirectoryLookup(s.ctx, "99999999")
	s.True(api.IsNotFound(err), "expected 404, got %v", err)
}

func (s *serverSuite) TestDirectoryLookupRejectsMalformedIDs() {
	for _, id := range []string{"1001", "abc12345", "123456789012345678901"} {
		_, err := s.client.DirectoryLookup(s.ctx, id)
		var apiErr *api.Error
		s.Require().ErrorAs(err, &apiErr, "id %s", id)
		s.Equal(http.StatusBadRequest, apiErr.Status, "id %s", id)
	}
}

func (s *serverSuite) TestMetricsArePublic() {
	resp, err := http.Get(s.server.URL + "/metrics")
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Equal(http.StatusOK, resp.StatusCode)
}

func TestNewHandlerRequiresDependencies(t *testing.T) {
	_, err := api.NewHandler(api.Dependencies{}, api.Options{})
	require.Error(t, err)
	require.True(t, strings.Contains(err.Error(), "coordinator"))
}

func TestClientReportsUnavailable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	addr := server.URL
	server.Close()

	client, err := api.NewClient(addr, "")
	require.NoError(t, err)
	_, err = client.Status(context.Background())
	require.True(t, api.IsUnavailable(err), "expected unavailable, got %v", err)
}
