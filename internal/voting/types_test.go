package voting

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVoteKeyRoundTrip(t *testing.T) {
	for _, key := range []VoteKey{AddFederationMember, KickFederationMember, WhitelistHash, RemoveHash} {
		parsed, err := ParseVoteKey(key.String())
		require.NoError(t, err)
		require.Equal(t, key, parsed)
	}

	_, err := ParseVoteKey("burn_everything")
	require.Error(t, err)
}

func TestVotingDataEqual(t *testing.T) {
	a := VotingData{Key: WhitelistHash, Payload: testHash(0xaa)}
	b := VotingData{Key: WhitelistHash, Payload: testHash(0xaa)}
	c := VotingData{Key: RemoveHash, Payload: testHash(0xaa)}
	d := VotingData{Key: WhitelistHash, Payload: testHash(0xbb)}

	require.True(t, a.Equal(b))
	require.False(t, a.Equal(c))
	require.False(t, a.Equal(d))
}

func TestPollCloneIsDeep(t *testing.T) {
	h := uint64(42)
	p := &Poll{
		Data:           VotingData{Key: WhitelistHash, Payload: testHash(0xaa)},
		Votes:          []Vote{{VoterPubKey: append([]byte(nil), member1...), Height: 10}},
		StartHeight:    10,
		ExecutedHeight: &h,
	}

	c := p.Clone()
	c.Data.Payload[0] = 0xff
	c.Votes[0].VoterPubKey[0] = 0xff
	*c.ExecutedHeight = 99

	require.Equal(t, testHash(0xaa), p.Data.Payload)
	require.Equal(t, member1, p.Votes[0].VoterPubKey)
	require.Equal(t, uint64(42), *p.ExecutedHeight)
}
