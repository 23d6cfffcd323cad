package downstream

import "context"

// Receipt is what the notification service answered.
type Receipt struct {
	StatusCode int
	Body       string
}

// NotificationClient calls the notification-delivery service.
type NotificationClient struct {
	caller
}

// NewNotificationClient creates a new NotificationClient.
func NewNotificationClient(baseURL string, opts Options) *NotificationClient {
	return &NotificationClient{caller: newCaller("notification", baseURL, opts)}
}

type sendRequest struct {
	UserID  string `json:"userId"`
	Message string `json:"message"`
}

// Send delivers message to userID.
func (c *NotificationClient) Send(ctx context.Context, userID, message string) (Receipt, error) {
	status, raw, err := c.postJSON(ctx, "/send", sendRequest{UserID: userID, Message: message})
	return Receipt{StatusCode: status, Body: string(raw)}, err
}
