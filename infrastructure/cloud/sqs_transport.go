package cloud

import (
	"chat-presence/delivery"
	"chat-presence/errors"
	"context"
	goerrors "errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

const (
	attrMessageType  = "MessageType"
	attrUserID       = "UserId"
	attrEnqueuedAt   = "EnqueuedAt"
	attrReceiveCount = "ApproximateReceiveCount"

	maxBatchSize    = 10
	maxDelaySeconds = 900
	maxWaitSeconds  = 20
)

var _ delivery.Transport = (*SQSTransport)(nil)

// sqsAPI is the minimal SQS interface required by SQSTransport.
type sqsAPI interface {
	SendMessage(ctx context.Context, in *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	ReceiveMessage(ctx context.Context, in *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, in *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// SQSTransport carries envelopes on one queue. The envelope type and producer
// travel as message attributes, the payload is the message body.
type SQSTransport struct {
	api      sqsAPI
	queueURL string
}

func NewSQSTransport(api sqsAPI, queueURL string) (*SQSTransport, error) {
	if api == nil {
		return nil, goerrors.New("sqs transport: api must not be nil")
	}
	if strings.TrimSpace(queueURL) == "" {
		return nil, goerrors.New("sqs transport: queue url must not be empty")
	}
	return &SQSTransport{api: api, queueURL: queueURL}, nil
}

func (t *SQSTransport) Send(ctx context.Context, env delivery.Envelope) (string, error) {
	attributes := map[string]sqstypes.MessageAttributeValue{
		attrMessageType: stringAttribute(string(env.Type)),
		attrUserID:      stringAttribute(env.Attributes.ProducerParticipantID),
	}
	if !env.Attributes.EnqueuedAt.IsZero() {
		attributes[attrEnqueuedAt] = stringAttribute(env.Attributes.EnqueuedAt.UTC().Format(time.RFC3339Nano))
	}

	out, err := t.api.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:          aws.String(t.queueURL),
		MessageBody:       aws.String(string(env.Payload)),
		DelaySeconds:      delaySeconds(env.DeliveryDelay),
		MessageAttributes: attributes,
	})
	if err != nil {
		return "", fmt.Errorf("sqs transport: send %s: %w", env.Type, err)
	}
	return aws.ToString(out.MessageId), nil
}

func (t *SQSTransport) ReceiveBatch(ctx context.Context, max int, wait, visibility time.Duration) ([]delivery.Received, error) {
	out, err := t.api.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:              aws.String(t.queueURL),
		MaxNumberOfMessages:   int32(min(max, maxBatchSize)),
		WaitTimeSeconds:       int32(min(int(wait/time.Second), maxWaitSeconds)),
		VisibilityTimeout:     int32(visibility / time.Second),
		MessageAttributeNames: []string{"All"},
		AttributeNames:        []sqstypes.QueueAttributeName{attrReceiveCount},
	})
	if err != nil {
		return nil, fmt.Errorf("sqs transport: receive: %w", err)
	}

	received := make([]delivery.Received, 0, len(out.Messages))
	for _, m := range out.Messages {
		received = append(received, toReceived(m))
	}
	return received, nil
}

func (t *SQSTransport) Delete(ctx context.Context, receipt string) error {
	_, err := t.api.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(t.queueURL),
		ReceiptHandle: aws.String(receipt),
	})
	var invalid *sqstypes.ReceiptHandleIsInvalid
	if goerrors.As(err, &invalid) {
		return fmt.Errorf("sqs transport: delete: %w", errors.ErrReceiptExpired)
	}
	if err != nil {
		return fmt.Errorf("sqs transport: delete: %w", err)
	}
	return nil
}

func toReceived(m sqstypes.Message) delivery.Received {
	count, _ := strconv.Atoi(m.Attributes[attrReceiveCount])
	var enqueuedAt time.Time
	if v := messageAttribute(m, attrEnqueuedAt); v != "" {
		enqueuedAt, _ = time.Parse(time.RFC3339Nano, v)
	}
	return delivery.Received{
		Envelope: delivery.Envelope{
			Type:    delivery.Type(messageAttribute(m, attrMessageType)),
			Payload: []byte(aws.ToString(m.Body)),
			Attributes: delivery.Attributes{
				ProducerParticipantID: messageAttribute(m, attrUserID),
				EnqueuedAt:            enqueuedAt,
			},
		},
		MessageID:    aws.ToString(m.MessageId),
		Receipt:      aws.ToString(m.ReceiptHandle),
		ReceiveCount: count,
	}
}

func messageAttribute(m sqstypes.Message, name string) string {
	v, ok := m.MessageAttributes[name]
	if !ok {
		return ""
	}
	return aws.ToString(v.StringValue)
}

func stringAttribute(value string) sqstypes.MessageAttributeValue {
	return sqstypes.MessageAttributeValue{DataType: aws.String("String"), StringValue: aws.String(value)}
}

// delaySeconds rounds up to whole seconds within the SQS limit.
func delaySeconds(d time.Duration) int32 {
	if d <= 0 {
		return 0
	}
	seconds := int(math.Ceil(d.Seconds()))
	return int32(min(seconds, maxDelaySeconds))
}
