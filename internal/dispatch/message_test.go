package dispatch

import (
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_SNSEnvelope(t *testing.T) {
	n, err := Decode(events.SQSMessage{
		MessageId: "sqs-1",
		Body: `{"Type":"Notification","MessageId":"sns-1","Subject":"Flash Sale Purchase Confirmation",
			"Message":"Your purchase of 2 items of Product ID: p1 has been successful!",
			"MessageAttributes":{"userId":{"Type":"String","Value":"u1"}}}`,
	})
	require.NoError(t, err)
	assert.Equal(t, Notification{
		Key:     "sns-1",
		UserID:  "u1",
		Subject: "Flash Sale Purchase Confirmation",
		Message: "Your purchase of 2 items of Product ID: p1 has been successful!",
	}, n)
}

func TestDecode_RawBodyUsesSQSMessageID(t *testing.T) {
	n, err := Decode(events.SQSMessage{MessageId: "sqs-2", Body: `{"userId":"u2","message":"hi"}`})
	require.NoError(t, err)
	assert.Equal(t, "sqs-2", n.Key)
	assert.Equal(t, "u2", n.UserID)
}

func TestDecode_Malformed(t *testing.T) {
	for name, body := range map[string]string{
		"not json":      `{{`,
		"no user":       `{"message":"hi"}`,
		"empty message": `{"userId":"u1","message":"  "}`,
		"sns no user":   `{"Type":"Notification","MessageId":"sns-3","Message":"hi"}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(events.SQSMessage{MessageId: "sqs-3", Body: body})
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}
