package kafka

import (
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/dukex/insight/pkg/events"
)

// partitionKey keeps every message of one execution on the same partition, preserving event order.
func partitionKey(_ string, msg *message.Message) (string, error) {
	return msg.Metadata.Get(events.EventMetadataKey), nil
}
