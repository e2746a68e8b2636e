package api

import (
	"context"
	"fmt"

	"optcache/internal/ports"
	"optcache/internal/types"

	"github.com/aws/aws-lambda-go/events"
	"github.com/goccy/go-json"
	log "github.com/sirupsen/logrus"
)

// RevalidationHandler drops durable snapshots named by revalidation messages, so the next
// cold start refetches instead of hydrating data that misses a created option. A snapshot that
// already lists the created value is kept.
type RevalidationHandler struct {
	Snaps ports.SnapshotStore
}

// HandleSQSEvent processes a batch. Failed records are reported individually so SQS retries only those.
func (h *RevalidationHandler) HandleSQSEvent(ctx context.Context, sqsEvent events.SQSEvent) (events.SQSEventResponse, error) {
	log.Infof("Processing batch of %d messages", len(sqsEvent.Records))

	var batchItemFailures []events.SQSBatchItemFailure
	for _, record := range sqsEvent.Records {
		if err := h.processMessage(ctx, record); err != nil {
			log.WithError(err).Errorf("Failed to process message %s", record.MessageId)
			batchItemFailures = append(batchItemFailures, events.SQSBatchItemFailure{
				ItemIdentifier: record.MessageId,
			})
		}
	}
	return events.SQSEventResponse{
		BatchItemFailures: batchItemFailures,
	}, nil
}

func (h *RevalidationHandler) processMessage(ctx context.Context, record events.SQSMessage) error {
	msg, err := parseRevalidation(record.Body)
	if err != nil {
		return err
	}
	key := types.NewKey(msg.Entity, msg.ParentID)
	snap, err := h.Snaps.Load(ctx, key)
	switch {
	case err != nil:
		log.WithError(err).WithField("key", key.String()).Warn("Snapshot unreadable, dropping it")
	case snap == nil:
		log.WithField("key", key.String()).Debug("No snapshot stored")
		return nil
	case msg.Value != "" && types.ContainsValue(snap.Data, msg.Value):
		log.WithFields(log.Fields{"key": key.String(), "value": msg.Value}).Debug("Snapshot already has the option")
		return nil
	}
	if err := h.Snaps.Delete(ctx, key); err != nil {
		return fmt.Errorf("delete snapshot %s: %w", key, err)
	}
	log.WithFields(log.Fields{
		"key":       key.String(),
		"value":     msg.Value,
		"messageID": record.MessageId,
	}).Debug("Snapshot dropped")
	return nil
}

// parseRevalidation accepts both raw deliveries and SNS notification envelopes.
func parseRevalidation(body string) (types.Revalidation, error) {
	var envelope events.SNSEntity
	if err := json.Unmarshal([]byte(body), &envelope); err == nil && envelope.Type == "Notification" && envelope.Message != "" {
		body = envelope.Message
	}
	var msg types.Revalidation
	if err := json.Unmarshal([]byte(body), &msg); err != nil {
		return msg, types.Err(types.ErrValidation, err, "parse message body")
	}
	if !msg.Entity.Valid() {
		return msg, types.Err(types.ErrUnknownEntity, nil, "unknown entity type %q", msg.Entity)
	}
	return msg, nil
}
