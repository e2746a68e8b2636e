package ddb

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"optcache/internal/types"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbTypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	log "github.com/sirupsen/logrus"
)

const (
	SSnapshot = "SNAPSHOT"
	SParent   = "PARENT"
	SRoot     = "ROOT"

	ttlAttribute = "ttl"
)

func pkSnapshot(e types.EntityType) string { return fmt.Sprintf("%s#%s", SSnapshot, e) }

func skSnapshot(parentID string) string {
	if parentID == "" {
		return SRoot
	}
	return fmt.Sprintf("%s#%s", SParent, parentID)
}

// parseKey recovers the cache key from a PK/SK pair.
func parseKey(pk, sk string) (types.CacheKey, error) {
	name, ok := strings.CutPrefix(pk, SSnapshot+"#")
	if !ok {
		return types.CacheKey{}, fmt.Errorf("not a snapshot partition: %q", pk)
	}
	e, err := types.ParseEntityType(name)
	if err != nil {
		return types.CacheKey{}, err
	}
	if sk == SRoot {
		return types.NewKey(e, ""), nil
	}
	parent, ok := strings.CutPrefix(sk, SParent+"#")
	if !ok {
		return types.CacheKey{}, fmt.Errorf("not a snapshot sort key: %q", sk)
	}
	return types.NewKey(e, parent), nil
}

func createTableIfNotExists(ctx context.Context, client *dynamodb.Client, table string) error {
	_, err := client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: &table,
		AttributeDefinitions: []ddbTypes.AttributeDefinition{
			{AttributeName: awsString("PK"), AttributeType: ddbTypes.ScalarAttributeTypeS},
			{AttributeName: awsString("SK"), AttributeType: ddbTypes.ScalarAttributeTypeS},
		},
		KeySchema: []ddbTypes.KeySchemaElement{
			{AttributeName: awsString("PK"), KeyType: ddbTypes.KeyTypeHash},
			{AttributeName: awsString("SK"), KeyType: ddbTypes.KeyTypeRange},
		},
		BillingMode: ddbTypes.BillingModePayPerRequest,
	})
	var re *ddbTypes.ResourceInUseException
	if err != nil {
		if errors.As(err, &re) {
			return nil
		}
		return types.Err(types.ErrDataStoreAccess, err, "create table %s", table)
	}

	// Expiry is a cleanup nicety; Hydrate checks timestamps itself.
	_, err = client.UpdateTimeToLive(ctx, &dynamodb.UpdateTimeToLiveInput{
		TableName: &table,
		TimeToLiveSpecification: &ddbTypes.TimeToLiveSpecification{
			AttributeName: awsString(ttlAttribute),
			Enabled:       awsBool(true),
		},
	})
	if err != nil {
		log.WithError(err).WithField("table", table).Warn("could not enable ttl on snapshot table")
	}
	return nil
}

func awsString(s string) *string { return &s }
func awsBool(b bool) *bool       { return &b }
