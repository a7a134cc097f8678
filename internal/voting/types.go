package voting

import (
	"bytes"
	"encoding/hex"
	"fmt"
)

// VoteKey identifies the kind of administrative action a poll decides.
type VoteKey uint8

const (
	AddFederationMember VoteKey = iota + 1
	KickFederationMember
	WhitelistHash
	RemoveHash
)

// String returns the canonical name used in API payloads and logs.
func (k VoteKey) String() string {
	switch k {
	case AddFederationMember:
		return "add_federation_member"
	case KickFederationMember:
		return "kick_federation_member"
	case WhitelistHash:
		return "whitelist_hash"
	case RemoveHash:
		return "remove_hash"
	default:
		return fmt.Sprintf("vote_key_%d", uint8(k))
	}
}

// ParseVoteKey parses the canonical name back into a VoteKey.
func ParseVoteKey(s string) (VoteKey, error) {
	switch s {
	case "add_federation_member":
		return AddFederationMember, nil
	case "kick_federation_member":
		return KickFederationMember, nil
	case "whitelist_hash":
		return WhitelistHash, nil
	case "remove_hash":
		return RemoveHash, nil
	default:
		return 0, fmt.Errorf("unknown vote key %q", s)
	}
}

// VotingData is one atomic proposal. Two VotingData are the same proposal
// iff key and payload bytes match.
type VotingData struct {
	Key     VoteKey
	Payload []byte
}

// Equal reports structural equality.
func (d VotingData) Equal(o VotingData) bool {
	return d.Key == o.Key && bytes.Equal(d.Payload, o.Payload)
}

// Render returns the human-readable form used for substring search and
// event payloads: the key name plus the hex-encoded payload.
func (d VotingData) Render() string {
	return d.Key.String() + ":" + hex.EncodeToString(d.Payload)
}

// id is the map key form of a VotingData.
func (d VotingData) id() string {
	return string([]byte{byte(d.Key)}) + string(d.Payload)
}

// Vote is a single observed vote in favor.
type Vote struct {
	VoterPubKey []byte
	Height      uint64
}

// Poll is the voting record for one proposal. Votes keep arrival order and
// are unique per voter.
type Poll struct {
	Data           VotingData
	Votes          []Vote
	StartHeight    uint64
	ExecutedHeight *uint64
}

// HasVoter reports whether the voter already contributed to this poll.
func (p *Poll) HasVoter(pub []byte) bool {
	for _, v := range p.Votes {
		if bytes.Equal(v.VoterPubKey, pub) {
			return true
		}
	}
	return false
}

// IsExecuted reports whether the poll's effect has been applied.
func (p *Poll) IsExecuted() bool {
	return p.ExecutedHeight != nil
}

// Clone returns a deep copy so read projections never alias engine state.
func (p *Poll) Clone() *Poll {
	c := &Poll{
		Data:        VotingData{Key: p.Data.Key, Payload: append([]byte(nil), p.Data.Payload...)},
		Votes:       make([]Vote, len(p.Votes)),
		StartHeight: p.StartHeight,
	}
	for i, v := range p.Votes {
		c.Votes[i] = Vote{VoterPubKey: append([]byte(nil), v.VoterPubKey...), Height: v.Height}
	}
	if p.ExecutedHeight != nil {
		h := *p.ExecutedHeight
		c.ExecutedHeight = &h
	}
	return c
}
