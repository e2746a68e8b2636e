package api

import (
	"context"
	"testing"
	"time"

	"optcache/internal/backends/memory"
	"optcache/internal/types"

	"github.com/aws/aws-lambda-go/events"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/suite"
)

type RevalidationTestSuite struct {
	suite.Suite

	snaps   *memory.SnapshotStore
	handler *RevalidationHandler
}

func TestRevalidationTestSuite(t *testing.T) {
	suite.Run(t, new(RevalidationTestSuite))
}

func (s *RevalidationTestSuite) SetupTest() {
	s.snaps = memory.NewSnapshotStore()
	s.handler = &RevalidationHandler{Snaps: s.snaps}
	ctx := context.Background()
	for _, snap := range []types.Snapshot{
		{Entity: types.Clients, Data: []types.Option{{Value: "1", Label: "Acme"}}, Timestamp: 1},
		{Entity: types.Items, ParentID: "c1", Data: []types.Option{{Value: "2", Label: "Pen"}}, Timestamp: 1},
		{Entity: types.Items, ParentID: "c2", Data: []types.Option{{Value: "3", Label: "Ink"}}, Timestamp: 1},
	} {
		s.Require().NoError(s.snaps.Save(ctx, snap, time.Hour))
	}
}

func (s *RevalidationTestSuite) TestRawAndEnvelope() {
	raw, _ := json.Marshal(types.Revalidation{Entity: types.Clients, Value: "9", At: 1})
	inner, _ := json.Marshal(types.Revalidation{Entity: types.Items, ParentID: "c1", Value: "10", At: 1})
	env, _ := json.Marshal(events.SNSEntity{Type: "Notification", Message: string(inner)})

	resp, err := s.handler.HandleSQSEvent(context.Background(), events.SQSEvent{Records: []events.SQSMessage{
		{MessageId: "m1", Body: string(raw)},
		{MessageId: "m2", Body: string(env)},
	}})
	s.NoError(err)
	s.Empty(resp.BatchItemFailures)

	ctx := context.Background()
	snap, err := s.snaps.Load(ctx, types.NewKey(types.Clients, ""))
	s.NoError(err)
	s.Nil(snap)
	snap, err = s.snaps.Load(ctx, types.NewKey(types.Items, "c1"))
	s.NoError(err)
	s.Nil(snap)
	snap, err = s.snaps.Load(ctx, types.NewKey(types.Items, "c2"))
	s.NoError(err)
	s.NotNil(snap)
}

func (s *RevalidationTestSuite) TestSnapshotWithCreatedValueIsKept() {
	ctx := context.Background()
	known, _ := json.Marshal(types.Revalidation{Entity: types.Items, ParentID: "c1", Value: "2", At: 5})
	missing, _ := json.Marshal(types.Revalidation{Entity: types.Suppliers, Value: "4", At: 5})

	resp, err := s.handler.HandleSQSEvent(ctx, events.SQSEvent{Records: []events.SQSMessage{
		{MessageId: "m1", Body: string(known)},
		{MessageId: "m2", Body: string(missing)},
	}})
	s.NoError(err)
	s.Empty(resp.BatchItemFailures)

	snap, err := s.snaps.Load(ctx, types.NewKey(types.Items, "c1"))
	s.NoError(err)
	s.Require().NotNil(snap)
	s.Equal("Pen", snap.Data[0].Label)
}

func (s *RevalidationTestSuite) TestBadRecordsReported() {
	resp, err := s.handler.HandleSQSEvent(context.Background(), events.SQSEvent{Records: []events.SQSMessage{
		{MessageId: "bad-json", Body: "{"},
		{MessageId: "bad-entity", Body: `{"entity": "widgets"}`},
	}})
	s.NoError(err)
	s.Require().Len(resp.BatchItemFailures, 2)
	s.Equal("bad-json", resp.BatchItemFailures[0].ItemIdentifier)
	s.Equal("bad-entity", resp.BatchItemFailures[1].ItemIdentifier)
}
