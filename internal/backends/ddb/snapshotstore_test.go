package ddb

import (
	"testing"
	"time"

	"optcache/internal/types"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	ddbTypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/suite"
)

type SnapshotItemTestSuite struct {
	suite.Suite
}

func TestSnapshotItemTestSuite(t *testing.T) {
	suite.Run(t, new(SnapshotItemTestSuite))
}

func (s *SnapshotItemTestSuite) TestKeys() {
	s.Equal("SNAPSHOT#items", pkSnapshot(types.Items))
	s.Equal("PARENT#cat-1", skSnapshot("cat-1"))
	s.Equal("ROOT", skSnapshot(""))

	k, err := parseKey("SNAPSHOT#items", "PARENT#cat-1")
	s.NoError(err)
	s.Equal(types.NewKey(types.Items, "cat-1"), k)

	k, err = parseKey("SNAPSHOT#sizes", "ROOT")
	s.NoError(err)
	s.Equal(types.NewKey(types.Sizes, ""), k)

	_, err = parseKey("CLIENT#x", "ROOT")
	s.Error(err)
	_, err = parseKey("SNAPSHOT#widgets", "ROOT")
	s.ErrorIs(err, types.ErrUnknownEntity)
	_, err = parseKey("SNAPSHOT#items", "OTHER")
	s.Error(err)
}

func (s *SnapshotItemTestSuite) TestItemRoundTrip() {
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC).UnixMilli()
	snap := types.Snapshot{
		Entity:    types.Items,
		ParentID:  "cat-1",
		Data:      []types.Option{{Value: "i1", Label: "Pens", Metadata: map[string]any{"category_id": "cat-1"}}},
		Timestamp: ts,
	}
	it, err := newSnapshotItem(snap, 30*time.Minute)
	s.NoError(err)
	s.Equal(time.UnixMilli(ts).Add(30*time.Minute).Unix(), it.ExpiresAt)

	av, err := attributevalue.MarshalMap(it)
	s.NoError(err)
	s.Equal("SNAPSHOT#items", av["PK"].(*ddbTypes.AttributeValueMemberS).Value)
	s.Equal("PARENT#cat-1", av["SK"].(*ddbTypes.AttributeValueMemberS).Value)
	s.Equal("cat-1", av["parent_id"].(*ddbTypes.AttributeValueMemberS).Value)
	s.Contains(av, "ttl")
	s.NotContains(av, "Data")

	var back snapshotItem
	s.NoError(attributevalue.UnmarshalMap(av, &back))
	got, err := back.decode()
	s.NoError(err)
	s.Equal("Pens", got.Data[0].Label)
	s.Equal(ts, got.Timestamp)
	s.Equal("cat-1", got.Data[0].Metadata["category_id"])
}

func (s *SnapshotItemTestSuite) TestCorruptPayload() {
	it := snapshotItem{PK: "SNAPSHOT#clients", SK: "ROOT", Payload: []byte("nope")}
	_, err := it.decode()
	s.Error(err)
}
