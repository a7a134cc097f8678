package voting

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/p3root/StratisFullNode/internal/federation"
)

var (
	// ErrNotAuthorized is returned when a non-member tries to schedule a vote.
	ErrNotAuthorized = errors.New("not a federation member")

	// ErrExecutedPoll is returned when a reorg tries to retract a vote from a
	// poll whose effect has already been applied. Chain state and whitelist
	// state must not silently diverge, so callers treat this as fatal.
	ErrExecutedPoll = errors.New("cannot retract vote from an executed poll")
)

// Executor applies the effect of an approved poll exactly once.
type Executor interface {
	Execute(ctx context.Context, data VotingData) error
}

// ExecutedHandler is notified after a poll's effect has been committed.
type ExecutedHandler func(data VotingData, height uint64)

// Engine consumes voting payloads observed in connected blocks, mutates
// polls, evaluates quorum against the current roster, and triggers the
// executor. It is driven synchronously by the single-threaded block-connect
// pipeline; the query surface reads store snapshots.
type Engine struct {
	polls      PollStore
	roster     *federation.Roster
	executor   Executor
	scheduler  *Scheduler
	localKey   []byte
	onExecuted ExecutedHandler
}

// NewEngine creates a poll engine. localKey is this node's federation
// public key, used to authorize locally scheduled votes. onExecuted may be
// nil.
func NewEngine(polls PollStore, roster *federation.Roster, executor Executor, localKey []byte, onExecuted ExecutedHandler) *Engine {
	return &Engine{
		polls:      polls,
		roster:     roster,
		executor:   executor,
		scheduler:  NewScheduler(),
		localKey:   append([]byte(nil), localKey...),
		onExecuted: onExecuted,
	}
}

// ObserveVote records a vote for data by voter, seen at height. A first vote
// opens the poll. A duplicate (voter, data) observation is silently absorbed
// so re-processing the same block is always safe. When the vote brings the
// poll to quorum the executor runs synchronously; only after it succeeds is
// the poll marked executed.
func (e *Engine) ObserveVote(ctx context.Context, data VotingData, voterPubKey []byte, height uint64) error {
	poll, err := e.polls.Get(ctx, data)
	if err != nil {
		return fmt.Errorf("load poll: %w", err)
	}
	if poll == nil {
		poll = &Poll{Data: data, StartHeight: height}
	}
	if poll.HasVoter(voterPubKey) {
		slog.Debug("duplicate vote ignored",
			"data", data.Render(),
			"height", height,
		)
		return nil
	}
	poll.Votes = append(poll.Votes, Vote{VoterPubKey: append([]byte(nil), voterPubKey...), Height: height})
	if err := e.polls.Save(ctx, poll); err != nil {
		return fmt.Errorf("save poll: %w", err)
	}
	return e.maybeExecute(ctx, poll, height)
}

// RetractVote removes a previously observed vote, used when the block that
// carried it is disconnected. Retracting from an executed poll is refused:
// a reorg deeper than an execution is an unsupported condition.
func (e *Engine) RetractVote(ctx context.Context, data VotingData, voterPubKey []byte) error {
	poll, err := e.polls.Get(ctx, data)
	if err != nil {
		return fmt.Errorf("load poll: %w", err)
	}
	if poll == nil || !poll.HasVoter(voterPubKey) {
		return nil
	}
	if poll.IsExecuted() {
		return ErrExecutedPoll
	}
	for i, v := range poll.Votes {
		if bytes.Equal(v.VoterPubKey, voterPubKey) {
			poll.Votes = append(poll.Votes[:i], poll.Votes[i+1:]...)
			break
		}
	}
	if len(poll.Votes) == 0 {
		return e.polls.Delete(ctx, data)
	}
	return e.polls.Save(ctx, poll)
}

// ExecuteApproved drives polls that reached quorum but whose execution is
// still pending, e.g. after an executor failure surfaced on a previous
// block. height is recorded as the execution height.
func (e *Engine) ExecuteApproved(ctx context.Context, height uint64) error {
	polls, err := e.polls.List(ctx)
	if err != nil {
		return fmt.Errorf("list polls: %w", err)
	}
	for _, p := range polls {
		if p.IsExecuted() || len(p.Votes) < e.roster.Quorum() {
			continue
		}
		if err := e.maybeExecute(ctx, p, height); err != nil {
			return err
		}
	}
	return nil
}

// maybeExecute applies the poll effect if quorum is reached. The executor
// runs before the executed height is persisted so the two commit together.
func (e *Engine) maybeExecute(ctx context.Context, poll *Poll, height uint64) error {
	if poll.IsExecuted() || len(poll.Votes) < e.roster.Quorum() {
		return nil
	}
	if err := e.executor.Execute(ctx, poll.Data); err != nil {
		return fmt.Errorf("execute poll %s: %w", poll.Data.Render(), err)
	}
	h := height
	poll.ExecutedHeight = &h
	if err := e.polls.Save(ctx, poll); err != nil {
		return fmt.Errorf("save executed poll: %w", err)
	}
	slog.Info("poll executed",
		"data", poll.Data.Render(),
		"votes", len(poll.Votes),
		"height", height,
	)
	if e.onExecuted != nil {
		e.onExecuted(poll.Data, height)
	}
	return nil
}

// Filter narrows poll projections. Key filters by vote key when non-nil;
// Match keeps polls whose rendered payload contains the substring.
type Filter struct {
	Key   *VoteKey
	Match string
}

func (f Filter) accepts(p *Poll) bool {
	if f.Key != nil && p.Data.Key != *f.Key {
		return false
	}
	if f.Match != "" && !strings.Contains(p.Data.Render(), f.Match) {
		return false
	}
	return true
}

// PendingPolls lists polls that have not reached quorum.
func (e *Engine) PendingPolls(ctx context.Context, f Filter) ([]*Poll, error) {
	return e.listWhere(ctx, f, func(p *Poll) bool {
		return !p.IsExecuted() && len(p.Votes) < e.roster.Quorum()
	})
}

// ApprovedPolls lists polls that reached quorum but whose execution is still
// pending. With synchronous execution this is normally empty; it becomes
// observable when the executor failed on the triggering block.
func (e *Engine) ApprovedPolls(ctx context.Context, f Filter) ([]*Poll, error) {
	return e.listWhere(ctx, f, func(p *Poll) bool {
		return !p.IsExecuted() && len(p.Votes) >= e.roster.Quorum()
	})
}

// ExecutedPolls lists polls whose effect has been applied.
func (e *Engine) ExecutedPolls(ctx context.Context, f Filter) ([]*Poll, error) {
	return e.listWhere(ctx, f, (*Poll).IsExecuted)
}

func (e *Engine) listWhere(ctx context.Context, f Filter, keep func(*Poll) bool) ([]*Poll, error) {
	polls, err := e.polls.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list polls: %w", err)
	}
	out := make([]*Poll, 0, len(polls))
	for _, p := range polls {
		if keep(p) && f.accepts(p) {
			out = append(out, p)
		}
	}
	return out, nil
}

// ScheduleVote queues a vote this node intends to cast. Only a current
// federation member may schedule.
func (e *Engine) ScheduleVote(data VotingData) error {
	if !e.roster.IsMember(e.localKey) {
		return ErrNotAuthorized
	}
	e.scheduler.Add(data)
	slog.Info("vote scheduled", "data", data.Render(), "queued", e.scheduler.Len())
	return nil
}

// ScheduledVotes returns the not-yet-embedded votes in FIFO order.
func (e *Engine) ScheduledVotes() []VotingData {
	return e.scheduler.Snapshot()
}

// TakeScheduledVotes drains the scheduled-vote queue for the block-production
// collaborator.
func (e *Engine) TakeScheduledVotes() []VotingData {
	return e.scheduler.Take()
}
