package service

import (
	"context"
	"encoding/json"
	"log"

	"ai-research-be/internal/dto"
	"ai-research-be/pkg/vectorstore"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

type IConsumerService interface {
	Consume(ctx context.Context) error
}

type consumerService struct {
	pubSub      *gochannel.GoChannel
	topicName   string
	vectorStore *vectorstore.Store
}

func NewConsumerService(
	pubSub *gochannel.GoChannel,
	topicName string,
	vectorStore *vectorstore.Store,
) IConsumerService {
	return &consumerService{
		pubSub:      pubSub,
		topicName:   topicName,
		vectorStore: vectorStore,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.pubSub.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(ctx, msg)
		}
	}()

	return nil
}

func (cs *consumerService) processMessage(ctx context.Context, msg *message.Message) {
	var payload dto.LiveEntryMessage
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		log.Printf("[ERROR] Failed to unmarshal live entry message: %v", err)
		msg.Ack() // Ack invalid messages to prevent infinite retry
		return
	}

	if payload.SourceId == "" || payload.Payload == "" {
		log.Printf("[ERROR] Live entry message missing source id or payload")
		msg.Ack()
		return
	}

	entryId, err := cs.vectorStore.StoreLiveEntry(ctx, payload.SourceId, payload.Payload, payload.Metadata, payload.MaxEntries)
	if err != nil {
		log.Printf("[ERROR] Failed to store live entry for source %s: %v", payload.SourceId, err)
		msg.Nack() // Nack for retriable errors
		return
	}

	log.Printf("[INFO] Stored live entry %s for source %s", entryId, payload.SourceId)
	msg.Ack()
}
