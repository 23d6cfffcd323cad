package dispatch

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-lambda-go/events"
)

// ErrMalformed marks a record that can never be delivered.
var ErrMalformed = errors.New("malformed notification")

// Notification is one decoded bus message.
type Notification struct {
	// Key deduplicates redeliveries: the SNS MessageId when the record is
	// an SNS envelope, the SQS message id otherwise.
	Key     string
	UserID  string
	Subject string
	Message string
}

type snsEnvelope struct {
	Type              string `json:"Type"`
	MessageID         string `json:"MessageId"`
	Subject           string `json:"Subject"`
	Message           string `json:"Message"`
	MessageAttributes map[string]struct {
		Type  string `json:"Type"`
		Value string `json:"Value"`
	} `json:"MessageAttributes"`
}

type rawBody struct {
	UserID  string `json:"userId"`
	Message string `json:"message"`
}

// Decode accepts an SNS-to-SQS envelope or a raw {userId, message} body.
func Decode(rec events.SQSMessage) (Notification, error) {
	var env snsEnvelope
	if err := json.Unmarshal([]byte(rec.Body), &env); err != nil {
		return Notification{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	n := Notification{Key: rec.MessageId}
	if env.Type == "Notification" && env.MessageID != "" {
		n.Key = env.MessageID
		n.Subject = env.Subject
		n.Message = env.Message
		if attr, ok := env.MessageAttributes["userId"]; ok {
			n.UserID = attr.Value
		}
	} else {
		var raw rawBody
		if err := json.Unmarshal([]byte(rec.Body), &raw); err != nil {
			return Notification{}, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		n.UserID = raw.UserID
		n.Message = raw.Message
	}

	switch {
	case n.Key == "":
		return Notification{}, fmt.Errorf("%w: no message id", ErrMalformed)
	case strings.TrimSpace(n.UserID) == "":
		return Notification{}, fmt.Errorf("%w: no userId", ErrMalformed)
	case strings.TrimSpace(n.Message) == "":
		return Notification{}, fmt.Errorf("%w: empty message", ErrMalformed)
	}
	return n, nil
}
