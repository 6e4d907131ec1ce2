package consumer

import (
	"context"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"go.uber.org/zap"

	"github.com/BarkinBalci/learning-analytics-service/internal/config"
	"github.com/BarkinBalci/learning-analytics-service/internal/queue"
	"github.com/BarkinBalci/learning-analytics-service/internal/service"
)

// Consumer orchestrates a pipeline of stages to process SQS messages:
// receive → parse/validate → process through the engine.
type Consumer struct {
	receiver   *Receiver
	parser     *ParserStage
	processor  *ProcessorStage
	bufferSize int
}

// NewConsumer creates a new consumer with a pipeline architecture
func NewConsumer(cfg *config.Config, queueConsumer queue.QueueConsumer, processor EventProcessor,
	stats *service.StatsTracker, log *zap.Logger) *Consumer {
	receiver := NewReceiver(queueConsumer, ReceiverConfig{
		MaxMessages:     cfg.Consumer.MaxMessages,
		WaitTimeSeconds: cfg.Consumer.WaitTimeSeconds,
		BufferSize:      cfg.Consumer.BufferSize,
	}, log)

	parserStage := NewParserStage(queueConsumer, NewJSONEventParser(), stats, log)

	processorStage := NewProcessorStage(processor, log)

	return &Consumer{
		receiver:   receiver,
		parser:     parserStage,
		processor:  processorStage,
		bufferSize: cfg.Consumer.BufferSize,
	}
}

// Start begins the consumer pipeline
func (c *Consumer) Start(ctx context.Context) error {
	messageChan := make(chan types.Message, c.bufferSize)
	envelopeChan := make(chan *Envelope, c.bufferSize)

	var wg sync.WaitGroup

	// Start all pipeline stages
	wg.Add(3)

	// Stage 1: Receive messages from SQS
	go func() {
		defer wg.Done()
		c.receiver.Start(ctx, messageChan)
	}()

	// Stage 2: Parse and validate messages into envelopes
	go func() {
		defer wg.Done()
		c.parser.Start(ctx, messageChan, envelopeChan)
	}()

	// Stage 3: Feed envelopes through the ingestion engine
	go func() {
		defer wg.Done()
		c.processor.Start(ctx, envelopeChan)
	}()

	wg.Wait()
	return nil
}
