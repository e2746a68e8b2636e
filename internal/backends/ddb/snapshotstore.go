package ddb

import (
	"context"
	"time"

	"optcache/internal/codec"
	"optcache/internal/types"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbTypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	log "github.com/sirupsen/logrus"
)

// SnapshotStore keeps one item per cache key: PK SNAPSHOT#<entity>, SK ROOT or PARENT#<id>.
// The options travel as a compressed payload, the rest as plain attributes.
type SnapshotStore struct {
	table string
	cli   *dynamodb.Client
}

type snapshotItem struct {
	PK string `dynamodbav:"PK"`
	SK string `dynamodbav:"SK"`
	types.Snapshot
	Payload   []byte `dynamodbav:"payload"`
	ExpiresAt int64  `dynamodbav:"ttl"`
}

func NewSnapshotStore(ctx context.Context, table string, cli *dynamodb.Client) (*SnapshotStore, error) {
	if err := createTableIfNotExists(ctx, cli, table); err != nil {
		return nil, err
	}
	return &SnapshotStore{table: table, cli: cli}, nil
}

func newSnapshotItem(snap types.Snapshot, ttl time.Duration) (snapshotItem, error) {
	payload, err := codec.EncodeSnapshot(snap)
	if err != nil {
		return snapshotItem{}, err
	}
	k := snap.Key()
	return snapshotItem{
		PK:        pkSnapshot(k.Entity),
		SK:        skSnapshot(k.ParentID),
		Snapshot:  types.Snapshot{Entity: k.Entity, ParentID: k.ParentID, Timestamp: snap.Timestamp},
		Payload:   payload,
		ExpiresAt: time.UnixMilli(snap.Timestamp).Add(ttl).Unix(),
	}, nil
}

func (it snapshotItem) decode() (types.Snapshot, error) {
	return codec.DecodeSnapshot(it.Payload)
}

func keyAttrs(k types.CacheKey) map[string]ddbTypes.AttributeValue {
	return map[string]ddbTypes.AttributeValue{
		"PK": &ddbTypes.AttributeValueMemberS{Value: pkSnapshot(k.Entity)},
		"SK": &ddbTypes.AttributeValueMemberS{Value: skSnapshot(k.ParentID)},
	}
}

func (s *SnapshotStore) Load(ctx context.Context, key types.CacheKey) (*types.Snapshot, error) {
	out, err := s.cli.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      &s.table,
		Key:            keyAttrs(key),
		ConsistentRead: awsBool(true),
	})
	if err != nil {
		return nil, types.Err(types.ErrDataStoreAccess, err, "")
	}
	if out.Item == nil {
		return nil, nil
	}
	var it snapshotItem
	if err := attributevalue.UnmarshalMap(out.Item, &it); err != nil {
		return nil, err
	}
	snap, err := it.decode()
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

// LoadAll queries each entity partition in turn.
func (s *SnapshotStore) LoadAll(ctx context.Context) ([]types.Snapshot, error) {
	var snaps []types.Snapshot
	for _, e := range types.AllEntityTypes {
		items, err := s.query(ctx, e)
		if err != nil {
			return nil, err
		}
		for _, it := range items {
			snap, err := it.decode()
			if err != nil {
				log.WithError(err).WithField("pk", it.PK).WithField("sk", it.SK).Warn("skipping corrupt snapshot")
				continue
			}
			snaps = append(snaps, snap)
		}
	}
	return snaps, nil
}

func (s *SnapshotStore) query(ctx context.Context, e types.EntityType) ([]snapshotItem, error) {
	p := dynamodb.NewQueryPaginator(s.cli, &dynamodb.QueryInput{
		TableName:              &s.table,
		KeyConditionExpression: awsString("PK = :pk"),
		ExpressionAttributeValues: map[string]ddbTypes.AttributeValue{
			":pk": &ddbTypes.AttributeValueMemberS{Value: pkSnapshot(e)},
		},
	})
	var items []snapshotItem
	for p.HasMorePages() {
		out, err := p.NextPage(ctx)
		if err != nil {
			return nil, types.Err(types.ErrDataStoreAccess, err, "query %s", e)
		}
		var page []snapshotItem
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, err
		}
		items = append(items, page...)
	}
	return items, nil
}

func (s *SnapshotStore) Save(ctx context.Context, snap types.Snapshot, ttl time.Duration) error {
	it, err := newSnapshotItem(snap, ttl)
	if err != nil {
		return err
	}
	av, err := attributevalue.MarshalMap(it)
	if err != nil {
		return err
	}
	_, err = s.cli.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: &s.table,
		Item:      av,
	})
	return err
}

func (s *SnapshotStore) Delete(ctx context.Context, key types.CacheKey) error {
	_, err := s.cli.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: &s.table,
		Key:       keyAttrs(key),
	})
	return err
}

func (s *SnapshotStore) ClearAll(ctx context.Context) error {
	for _, e := range types.AllEntityTypes {
		items, err := s.query(ctx, e)
		if err != nil {
			return err
		}
		for _, it := range items {
			k, err := parseKey(it.PK, it.SK)
			if err != nil {
				return err
			}
			if err := s.Delete(ctx, k); err != nil {
				return err
			}
		}
	}
	return nil
}
