package gov

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/p3root/StratisFullNode/internal/voting"
)

// initPolls creates the polls and poll_votes tables. seq preserves the
// first-seen order of polls and the arrival order of votes, which the
// engine's projections depend on.
func (db *DB) initPolls(ctx context.Context) error {
	pollsTable := db.SchemaTable("polls")
	votesTable := db.SchemaTable("poll_votes")
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			seq BIGSERIAL,
			vote_key SMALLINT NOT NULL,
			payload BYTEA NOT NULL,
			start_height BIGINT NOT NULL,
			executed_height BIGINT,
			PRIMARY KEY (vote_key, payload)
		);

		CREATE TABLE IF NOT EXISTS %s (
			seq BIGSERIAL,
			vote_key SMALLINT NOT NULL,
			payload BYTEA NOT NULL,
			voter BYTEA NOT NULL,
			height BIGINT NOT NULL,
			PRIMARY KEY (vote_key, payload, voter)
		);

		CREATE INDEX IF NOT EXISTS idx_poll_votes_poll ON %s(vote_key, payload, seq);
	`, pollsTable, votesTable, votesTable)

	return db.Exec(ctx, query)
}

// Get loads one poll with its votes in arrival order, or (nil, nil).
func (db *DB) Get(ctx context.Context, data voting.VotingData) (*voting.Poll, error) {
	poll := &voting.Poll{Data: voting.VotingData{Key: data.Key, Payload: append([]byte(nil), data.Payload...)}}
	query := fmt.Sprintf(`
		SELECT start_height, executed_height
		FROM %s
		WHERE vote_key = $1 AND payload = $2
	`, db.SchemaTable("polls"))

	err := db.QueryRow(ctx, query, int16(data.Key), data.Payload).Scan(&poll.StartHeight, &poll.ExecutedHeight)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query poll: %w", err)
	}

	votes, err := db.pollVotes(ctx, data)
	if err != nil {
		return nil, err
	}
	poll.Votes = votes
	return poll, nil
}

// Save upserts the poll and rewrites its vote rows in one transaction.
func (db *DB) Save(ctx context.Context, poll *voting.Poll) error {
	pollsTable := db.SchemaTable("polls")
	votesTable := db.SchemaTable("poll_votes")
	return db.BeginFunc(ctx, func(tx pgx.Tx) error {
		upsert := fmt.Sprintf(`
			INSERT INTO %s (vote_key, payload, start_height, executed_height)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (vote_key, payload) DO UPDATE SET
				start_height = EXCLUDED.start_height,
				executed_height = EXCLUDED.executed_height
		`, pollsTable)
		if _, err := tx.Exec(ctx, upsert, int16(poll.Data.Key), poll.Data.Payload, poll.StartHeight, poll.ExecutedHeight); err != nil {
			return fmt.Errorf("upsert poll: %w", err)
		}

		clear := fmt.Sprintf(`DELETE FROM %s WHERE vote_key = $1 AND payload = $2`, votesTable)
		if _, err := tx.Exec(ctx, clear, int16(poll.Data.Key), poll.Data.Payload); err != nil {
			return fmt.Errorf("clear poll votes: %w", err)
		}

		insert := fmt.Sprintf(`
			INSERT INTO %s (vote_key, payload, voter, height)
			VALUES ($1, $2, $3, $4)
		`, votesTable)
		for _, v := range poll.Votes {
			if _, err := tx.Exec(ctx, insert, int16(poll.Data.Key), poll.Data.Payload, v.VoterPubKey, v.Height); err != nil {
				return fmt.Errorf("insert poll vote: %w", err)
			}
		}
		return nil
	})
}

// Delete removes a poll and its votes.
func (db *DB) Delete(ctx context.Context, data voting.VotingData) error {
	pollsTable := db.SchemaTable("polls")
	votesTable := db.SchemaTable("poll_votes")
	return db.BeginFunc(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE vote_key = $1 AND payload = $2`, votesTable), int16(data.Key), data.Payload); err != nil {
			return fmt.Errorf("delete poll votes: %w", err)
		}
		if _, err := tx.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE vote_key = $1 AND payload = $2`, pollsTable), int16(data.Key), data.Payload); err != nil {
			return fmt.Errorf("delete poll: %w", err)
		}
		return nil
	})
}

// List returns all polls in first-seen order, votes in arrival order.
func (db *DB) List(ctx context.Context) ([]*voting.Poll, error) {
	query := fmt.Sprintf(`
		SELECT vote_key, payload, start_height, executed_height
		FROM %s
		ORDER BY seq
	`, db.SchemaTable("polls"))

	rows, err := db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query polls: %w", err)
	}
	defer rows.Close()

	var polls []*voting.Poll
	for rows.Next() {
		var key int16
		poll := &voting.Poll{}
		if err := rows.Scan(&key, &poll.Data.Payload, &poll.StartHeight, &poll.ExecutedHeight); err != nil {
			return nil, fmt.Errorf("scan poll: %w", err)
		}
		poll.Data.Key = voting.VoteKey(key)
		polls = append(polls, poll)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	for _, poll := range polls {
		votes, err := db.pollVotes(ctx, poll.Data)
		if err != nil {
			return nil, err
		}
		poll.Votes = votes
	}
	return polls, nil
}

func (db *DB) pollVotes(ctx context.Context, data voting.VotingData) ([]voting.Vote, error) {
	query := fmt.Sprintf(`
		SELECT voter, height
		FROM %s
		WHERE vote_key = $1 AND payload = $2
		ORDER BY seq
	`, db.SchemaTable("poll_votes"))

	rows, err := db.Query(ctx, query, int16(data.Key), data.Payload)
	if err != nil {
		return nil, fmt.Errorf("query poll votes: %w", err)
	}
	defer rows.Close()

	var votes []voting.Vote
	for rows.Next() {
		var v voting.Vote
		if err := rows.Scan(&v.VoterPubKey, &v.Height); err != nil {
			return nil, fmt.Errorf("scan poll vote: %w", err)
		}
		votes = append(votes, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return votes, nil
}
