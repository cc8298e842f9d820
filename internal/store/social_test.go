package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fitsync/internal/model"
)

func TestFollows_InsertIsIdempotent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	createTestProfile(t, s, "alice")
	createTestProfile(t, s, "bob")

	created, err := s.InsertFollow(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = s.InsertFollow(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.False(t, created, "second insert of the same edge must be a no-op")

	n, err := s.CountFollowers(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	ok, err := s.IsFollowing(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestFollows_DeleteAbsentIsNoop(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	createTestProfile(t, s, "alice")
	createTestProfile(t, s, "bob")

	require.NoError(t, s.DeleteFollow(ctx, "alice", "bob"))

	_, err := s.InsertFollow(ctx, "alice", "bob")
	require.NoError(t, err)
	require.NoError(t, s.DeleteFollow(ctx, "alice", "bob"))
	require.NoError(t, s.DeleteFollow(ctx, "alice", "bob"))

	counts, err := s.FollowCounts(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, model.FollowCounts{}, counts)
}

func TestFollows_CountsAndList(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	for _, u := range []string{"alice", "bob", "carol"} {
		createTestProfile(t, s, u)
	}

	for _, edge := range [][2]string{{"alice", "bob"}, {"alice", "carol"}, {"carol", "bob"}} {
		_, err := s.InsertFollow(ctx, edge[0], edge[1])
		require.NoError(t, err)
	}

	counts, err := s.FollowCounts(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, model.FollowCounts{Followers: 2, Following: 0}, counts)

	counts, err = s.FollowCounts(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, model.FollowCounts{Followers: 0, Following: 2}, counts)

	ids, err := s.ListFollowingIDs(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"bob", "carol"}, ids)
}

func TestFollows_UnknownProfileRejected(t *testing.T) {
	s := createTestStore(t)
	createTestProfile(t, s, "alice")

	_, err := s.InsertFollow(context.Background(), "alice", "ghost")
	assert.Error(t, err, "foreign key must reject unknown target")
}

func TestLikes(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	createTestProfile(t, s, "alice")
	createTestProfile(t, s, "bob")
	s1 := createTestSession(t, s, "alice", "2024-03-01")
	s2 := createTestSession(t, s, "alice", "2024-03-02")

	for _, p := range []model.LikePair{
		{SessionID: s1.ID, UserID: "bob"},
		{SessionID: s1.ID, UserID: "alice"},
		{SessionID: s2.ID, UserID: "bob"},
	} {
		created, err := s.InsertLike(ctx, p.SessionID, p.UserID)
		require.NoError(t, err)
		assert.True(t, created)
	}

	created, err := s.InsertLike(ctx, s1.ID, "bob")
	require.NoError(t, err)
	assert.False(t, created)

	pairs, err := s.ListLikes(ctx, []string{s1.ID, s2.ID})
	require.NoError(t, err)
	assert.Len(t, pairs, 3)

	require.NoError(t, s.DeleteLike(ctx, s1.ID, "bob"))
	require.NoError(t, s.DeleteLike(ctx, s1.ID, "bob"))

	pairs, err = s.ListSessionLikes(ctx, s1.ID)
	require.NoError(t, err)
	assert.Equal(t, []model.LikePair{{SessionID: s1.ID, UserID: "alice"}}, pairs)

	pairs, err = s.ListLikes(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, pairs)
}
