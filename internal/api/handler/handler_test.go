package handler

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/p3root/StratisFullNode/internal/federation"
	"github.com/p3root/StratisFullNode/internal/peg"
	"github.com/p3root/StratisFullNode/internal/voting"
	"github.com/p3root/StratisFullNode/internal/whitelist"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testToken = "test-admin-token"

var (
	memberA = bytes.Repeat([]byte{0x01}, 32)
	memberB = bytes.Repeat([]byte{0x02}, 32)
	memberC = bytes.Repeat([]byte{0x03}, 32)
)

type apiFixture struct {
	handler     *Handler
	router      http.Handler
	engine      *voting.Engine
	whitelist   *whitelist.Memory
	conversions *peg.MemoryConversionStore
}

// newAPIFixture wires a handler over in-memory stores. localKey decides
// whether schedule requests are authorized by the engine.
func newAPIFixture(t *testing.T, localKey []byte) *apiFixture {
	t.Helper()
	roster := federation.NewRoster(memberA, memberB, memberC)
	wl := whitelist.NewMemory()
	conversions := peg.NewMemoryConversionStore()
	engine := voting.NewEngine(
		voting.NewMemoryPollStore(),
		roster,
		voting.NewResultExecutor(wl, roster),
		localKey,
		nil,
	)
	h := NewHandler(engine, wl, conversions, zap.NewNop(), testToken)
	return &apiFixture{
		handler:     h,
		router:      h.NewRouter(),
		engine:      engine,
		whitelist:   wl,
		conversions: conversions,
	}
}

func (fx *apiFixture) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	fx.router.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	fx := newAPIFixture(t, memberA)
	rec := fx.do(t, http.MethodGet, "/api/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestScheduleVoteRequiresToken(t *testing.T) {
	fx := newAPIFixture(t, memberA)
	body := ScheduleVoteRequest{VoteKey: "whitelist_hash", Hash: strings.Repeat("aa", 32)}

	rec := fx.do(t, http.MethodPost, "/api/votes/schedule", "", body)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = fx.do(t, http.MethodPost, "/api/votes/schedule", "wrong-token", body)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestScheduleVote(t *testing.T) {
	fx := newAPIFixture(t, memberA)
	hashHex := strings.Repeat("aa", 32)
	body := ScheduleVoteRequest{VoteKey: "whitelist_hash", Hash: hashHex}

	rec := fx.do(t, http.MethodPost, "/api/votes/schedule", testToken, body)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = fx.do(t, http.MethodGet, "/api/votes/scheduled", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var views []ScheduledVoteView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &views))
	require.Len(t, views, 1)
	require.Equal(t, "whitelist_hash", views[0].VoteKey)
	require.Equal(t, hashHex, views[0].Payload)
}

func TestScheduleVoteRejectsMembershipKeys(t *testing.T) {
	fx := newAPIFixture(t, memberA)
	body := ScheduleVoteRequest{VoteKey: "add_federation_member", Hash: strings.Repeat("aa", 32)}

	rec := fx.do(t, http.MethodPost, "/api/votes/schedule", testToken, body)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "bad vote key", resp["error"])
	require.NotEmpty(t, resp["detail"])
}

func TestScheduleVoteRejectsBadHash(t *testing.T) {
	fx := newAPIFixture(t, memberA)

	rec := fx.do(t, http.MethodPost, "/api/votes/schedule", testToken,
		ScheduleVoteRequest{VoteKey: "remove_hash", Hash: "abcd"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = fx.do(t, http.MethodPost, "/api/votes/schedule", testToken,
		ScheduleVoteRequest{VoteKey: "remove_hash", Hash: "not hex"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScheduleVoteForbiddenForNonMember(t *testing.T) {
	outsider := bytes.Repeat([]byte{0x99}, 32)
	fx := newAPIFixture(t, outsider)
	body := ScheduleVoteRequest{VoteKey: "whitelist_hash", Hash: strings.Repeat("aa", 32)}

	rec := fx.do(t, http.MethodPost, "/api/votes/schedule", testToken, body)
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestListPolls(t *testing.T) {
	ctx := context.Background()
	fx := newAPIFixture(t, memberA)

	pendingData := voting.VotingData{Key: voting.WhitelistHash, Payload: bytes.Repeat([]byte{0xaa}, 32)}
	require.NoError(t, fx.engine.ObserveVote(ctx, pendingData, memberA, 100))

	executedData := voting.VotingData{Key: voting.RemoveHash, Payload: bytes.Repeat([]byte{0xbb}, 32)}
	require.NoError(t, fx.engine.ObserveVote(ctx, executedData, memberA, 100))
	require.NoError(t, fx.engine.ObserveVote(ctx, executedData, memberB, 101))

	rec := fx.do(t, http.MethodGet, "/api/polls/pending", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var pending []PollView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pending))
	require.Len(t, pending, 1)
	require.Equal(t, "whitelist_hash", pending[0].VoteKey)
	require.Equal(t, uint64(100), pending[0].StartHeight)
	require.Len(t, pending[0].VotesInFavor, 1)
	require.Equal(t, hex.EncodeToString(memberA), pending[0].VotesInFavor[0].VoterPubKey)
	require.Nil(t, pending[0].ExecutedHeight)

	rec = fx.do(t, http.MethodGet, "/api/polls/executed", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var executed []PollView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &executed))
	require.Len(t, executed, 1)
	require.Equal(t, "remove_hash", executed[0].VoteKey)
	require.NotNil(t, executed[0].ExecutedHeight)
	require.Equal(t, uint64(101), *executed[0].ExecutedHeight)

	rec = fx.do(t, http.MethodGet, "/api/polls/approved", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `[]`, rec.Body.String())
}

func TestListPollsFilters(t *testing.T) {
	ctx := context.Background()
	fx := newAPIFixture(t, memberA)

	require.NoError(t, fx.engine.ObserveVote(ctx,
		voting.VotingData{Key: voting.WhitelistHash, Payload: bytes.Repeat([]byte{0xaa}, 32)}, memberA, 100))
	require.NoError(t, fx.engine.ObserveVote(ctx,
		voting.VotingData{Key: voting.RemoveHash, Payload: bytes.Repeat([]byte{0xbb}, 32)}, memberA, 100))

	rec := fx.do(t, http.MethodGet, "/api/polls/pending?voteKey=remove_hash", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var views []PollView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &views))
	require.Len(t, views, 1)
	require.Equal(t, "remove_hash", views[0].VoteKey)

	rec = fx.do(t, http.MethodGet, "/api/polls/pending?search=aaaa", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	views = nil
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &views))
	require.Len(t, views, 1)
	require.Equal(t, "whitelist_hash", views[0].VoteKey)

	rec = fx.do(t, http.MethodGet, "/api/polls/pending?voteKey=bogus", "", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWhitelistEndpoint(t *testing.T) {
	ctx := context.Background()
	fx := newAPIFixture(t, memberA)

	var h whitelist.Hash
	h[0] = 0xab
	require.NoError(t, fx.whitelist.Add(ctx, h))

	rec := fx.do(t, http.MethodGet, "/api/whitelist", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var hashes []string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &hashes))
	require.Equal(t, []string{h.Hex()}, hashes)
}

func TestConversionRequestsEndpoint(t *testing.T) {
	ctx := context.Background()
	fx := newAPIFixture(t, memberA)

	var id peg.DepositID
	id[0] = 0x0c
	require.NoError(t, fx.conversions.Save(ctx, &peg.ConversionRequest{
		RequestID:          id,
		RequestType:        peg.RequestMint,
		Status:             peg.StatusUnprocessed,
		Amount:             9_000,
		BlockHeight:        42,
		DestinationAddress: "CDest",
		DestinationChain:   "strax",
	}))

	rec := fx.do(t, http.MethodGet, "/api/conversions", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var views []ConversionRequestView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &views))
	require.Len(t, views, 1)
	require.Equal(t, id.Hex(), views[0].RequestID)
	require.Equal(t, "mint", views[0].RequestType)
	require.Equal(t, "unprocessed", views[0].Status)
	require.Equal(t, uint64(42), views[0].BlockHeight)
}
