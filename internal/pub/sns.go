package pub

import (
	"context"

	"optcache/internal/types"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snsTypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/goccy/go-json"
)

// snsPub announces revalidations on one topic.
type snsPub struct {
	cli   *sns.Client
	topic string
}

func NewSNS(c *sns.Client, topicARN string) *snsPub { return &snsPub{cli: c, topic: topicARN} }

// PublishRevalidation sends msg as JSON. The entity is also set as a message attribute
// so subscriptions can filter on it.
func (s *snsPub) PublishRevalidation(ctx context.Context, msg types.Revalidation) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return s.PublishRaw(ctx, s.topic, payload, map[string]string{"entity": string(msg.Entity)})
}

func (s *snsPub) PublishRaw(ctx context.Context, arn string, payload []byte, attrs map[string]string) error {
	ma := map[string]snsTypes.MessageAttributeValue{
		"content-type": {DataType: aws.String("String"), StringValue: aws.String("application/json")},
	}
	for k, v := range attrs {
		ma[k] = snsTypes.MessageAttributeValue{DataType: aws.String("String"), StringValue: aws.String(v)}
	}
	_, err := s.cli.Publish(ctx, &sns.PublishInput{
		TopicArn:          &arn,
		Message:           aws.String(string(payload)),
		MessageAttributes: ma,
	})
	return err
}
