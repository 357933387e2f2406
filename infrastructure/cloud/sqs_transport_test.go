package cloud

import (
	"chat-presence/delivery"
	"chat-presence/errors"
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/stretchr/testify/require"
)

type fakeSQS struct {
	receiveOut  *sqs.ReceiveMessageOutput
	deleteErr   error
	lastSend    *sqs.SendMessageInput
	lastReceive *sqs.ReceiveMessageInput
	lastDelete  *sqs.DeleteMessageInput
}

func (f *fakeSQS) SendMessage(_ context.Context, in *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.lastSend = in
	return &sqs.SendMessageOutput{MessageId: aws.String("msg-1")}, nil
}

func (f *fakeSQS) ReceiveMessage(_ context.Context, in *sqs.ReceiveMessageInput, _ ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	f.lastReceive = in
	return f.receiveOut, nil
}

func (f *fakeSQS) DeleteMessage(_ context.Context, in *sqs.DeleteMessageInput, _ ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	f.lastDelete = in
	return &sqs.DeleteMessageOutput{}, f.deleteErr
}

func mustNewTransport(t *testing.T, api *fakeSQS) *SQSTransport {
	t.Helper()
	tr, err := NewSQSTransport(api, "https://sqs.local/queue")
	require.NoError(t, err)
	return tr
}

func TestSQSTransport_SendCarriesAttributes(t *testing.T) {
	req := require.New(t)
	api := &fakeSQS{}
	tr := mustNewTransport(t, api)

	id, err := tr.Send(context.Background(), delivery.Envelope{
		Type:          delivery.TypeChatMessage,
		Payload:       []byte(`{"text":"hi"}`),
		Attributes:    delivery.Attributes{ProducerParticipantID: "u1", EnqueuedAt: time.Unix(1700000000, 0)},
		DeliveryDelay: 1500 * time.Millisecond,
	})

	req.NoError(err)
	req.Equal("msg-1", id)
	in := api.lastSend
	req.Equal(`{"text":"hi"}`, aws.ToString(in.MessageBody))
	req.Equal(int32(2), in.DelaySeconds)
	req.Equal("chat_message", aws.ToString(in.MessageAttributes["MessageType"].StringValue))
	req.Equal("u1", aws.ToString(in.MessageAttributes["UserId"].StringValue))
}

func TestSQSTransport_ReceiveMapsMessages(t *testing.T) {
	req := require.New(t)
	api := &fakeSQS{receiveOut: &sqs.ReceiveMessageOutput{Messages: []sqstypes.Message{{
		MessageId:     aws.String("msg-1"),
		ReceiptHandle: aws.String("handle-1"),
		Body:          aws.String(`{"type":"status_change_notification"}`),
		Attributes:    map[string]string{"ApproximateReceiveCount": "3"},
		MessageAttributes: map[string]sqstypes.MessageAttributeValue{
			"MessageType": stringAttribute("status_notification"),
			"UserId":      stringAttribute("system"),
		},
	}}}}
	tr := mustNewTransport(t, api)

	received, err := tr.ReceiveBatch(context.Background(), 25, 20*time.Second, 30*time.Second)

	req.NoError(err)
	req.Len(received, 1)
	r := received[0]
	req.Equal(delivery.TypeStatusNotification, r.Type)
	req.Equal("system", r.Attributes.ProducerParticipantID)
	req.Equal("handle-1", r.Receipt)
	req.Equal(3, r.ReceiveCount)

	// Then the long poll parameters are capped to the SQS limits
	req.Equal(int32(10), api.lastReceive.MaxNumberOfMessages)
	req.Equal(int32(20), api.lastReceive.WaitTimeSeconds)
	req.Equal(int32(30), api.lastReceive.VisibilityTimeout)
}

func TestSQSTransport_DeleteInvalidReceipt(t *testing.T) {
	req := require.New(t)
	api := &fakeSQS{deleteErr: &sqstypes.ReceiptHandleIsInvalid{Message: aws.String("expired")}}
	tr := mustNewTransport(t, api)

	err := tr.Delete(context.Background(), "handle-1")
	req.ErrorIs(err, errors.ErrReceiptExpired)
	req.Equal("handle-1", aws.ToString(api.lastDelete.ReceiptHandle))
}

func TestDelaySeconds(t *testing.T) {
	req := require.New(t)
	req.Equal(int32(0), delaySeconds(-time.Second))
	req.Equal(int32(1), delaySeconds(time.Millisecond))
	req.Equal(int32(900), delaySeconds(time.Hour))
}
