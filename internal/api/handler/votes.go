package handler

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/p3root/StratisFullNode/internal/voting"
	"github.com/p3root/StratisFullNode/internal/whitelist"
	"go.uber.org/zap"
)

// ScheduleVoteRequest asks the node to queue a whitelist vote. Only the
// hash-governance keys may be scheduled through the API.
type ScheduleVoteRequest struct {
	VoteKey string `json:"voteKey"`
	Hash    string `json:"hash"`
}

// HandleScheduleVote queues a vote for this node's next produced block
func (h *Handler) HandleScheduleVote(w http.ResponseWriter, r *http.Request) {
	var req ScheduleVoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Logger.Warn("bad json in schedule vote request", zap.Error(err))
		h.writeError(w, http.StatusBadRequest, "bad json", err.Error())
		return
	}

	key, err := voting.ParseVoteKey(req.VoteKey)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "bad vote key", err.Error())
		return
	}
	if key != voting.WhitelistHash && key != voting.RemoveHash {
		h.writeError(w, http.StatusBadRequest, "bad vote key",
			fmt.Sprintf("only whitelist_hash and remove_hash may be scheduled, got %s", key))
		return
	}

	hash, err := whitelist.ParseHash(req.Hash)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "bad hash", err.Error())
		return
	}

	data := voting.VotingData{Key: key, Payload: hash[:]}
	if err := h.Engine.ScheduleVote(data); err != nil {
		if errors.Is(err, voting.ErrNotAuthorized) {
			h.writeError(w, http.StatusForbidden, "not authorized",
				"this node's key is not a current federation member")
			return
		}
		h.Logger.Error("failed to schedule vote", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "failed to schedule vote", err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"scheduled": data.Render()})
}

// ScheduledVoteView is the JSON shape of a queued vote.
type ScheduledVoteView struct {
	VoteKey string `json:"voteKey"`
	Payload string `json:"payload"`
}

// HandleScheduledVotes lists not-yet-embedded votes in FIFO order
func (h *Handler) HandleScheduledVotes(w http.ResponseWriter, r *http.Request) {
	votes := h.Engine.ScheduledVotes()
	views := make([]ScheduledVoteView, len(votes))
	for i, v := range votes {
		views[i] = ScheduledVoteView{
			VoteKey: v.Key.String(),
			Payload: hex.EncodeToString(v.Payload),
		}
	}
	h.writeJSON(w, http.StatusOK, views)
}
