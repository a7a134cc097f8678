package handler

import (
	"context"
	"encoding/hex"
	"net/http"

	"github.com/p3root/StratisFullNode/internal/voting"
	"go.uber.org/zap"
)

// VoteView is the JSON shape of one observed vote.
type VoteView struct {
	VoterPubKey string `json:"voterPubKey"`
	Height      uint64 `json:"height"`
}

// PollView is the JSON shape of a poll projection.
type PollView struct {
	VoteKey        string     `json:"voteKey"`
	Payload        string     `json:"payload"`
	VotesInFavor   []VoteView `json:"votesInFavor"`
	StartHeight    uint64     `json:"startHeight"`
	ExecutedHeight *uint64    `json:"executedHeight,omitempty"`
}

func pollView(p *voting.Poll) PollView {
	v := PollView{
		VoteKey:        p.Data.Key.String(),
		Payload:        hex.EncodeToString(p.Data.Payload),
		VotesInFavor:   make([]VoteView, len(p.Votes)),
		StartHeight:    p.StartHeight,
		ExecutedHeight: p.ExecutedHeight,
	}
	for i, vote := range p.Votes {
		v.VotesInFavor[i] = VoteView{
			VoterPubKey: hex.EncodeToString(vote.VoterPubKey),
			Height:      vote.Height,
		}
	}
	return v
}

// pollFilter builds a voting.Filter from the voteKey and search query
// params. An unknown voteKey is a client error.
func (h *Handler) pollFilter(r *http.Request) (voting.Filter, string, bool) {
	f := voting.Filter{Match: r.URL.Query().Get("search")}
	if v := r.URL.Query().Get("voteKey"); v != "" {
		key, err := voting.ParseVoteKey(v)
		if err != nil {
			return f, err.Error(), false
		}
		f.Key = &key
	}
	return f, "", true
}

// HandlePendingPolls lists polls that have not reached quorum
func (h *Handler) HandlePendingPolls(w http.ResponseWriter, r *http.Request) {
	h.handlePolls(w, r, h.Engine.PendingPolls)
}

// HandleApprovedPolls lists quorum-reached polls awaiting execution
func (h *Handler) HandleApprovedPolls(w http.ResponseWriter, r *http.Request) {
	h.handlePolls(w, r, h.Engine.ApprovedPolls)
}

// HandleExecutedPolls lists polls whose effect has been applied
func (h *Handler) HandleExecutedPolls(w http.ResponseWriter, r *http.Request) {
	h.handlePolls(w, r, h.Engine.ExecutedPolls)
}

func (h *Handler) handlePolls(w http.ResponseWriter, r *http.Request, list func(context.Context, voting.Filter) ([]*voting.Poll, error)) {
	filter, detail, ok := h.pollFilter(r)
	if !ok {
		h.writeError(w, http.StatusBadRequest, "bad vote key", detail)
		return
	}

	polls, err := list(r.Context(), filter)
	if err != nil {
		h.Logger.Error("failed to list polls", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "failed to list polls", err.Error())
		return
	}

	views := make([]PollView, 0, len(polls))
	for _, p := range polls {
		views = append(views, pollView(p))
	}
	h.writeJSON(w, http.StatusOK, views)
}
