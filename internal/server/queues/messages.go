// Package queues publishes notification and profile-sync messages to the
// broker. Publishing is fire-and-forget from the caller's point of view.
package queues

import (
	"context"
	"time"
)

const (
	EmailExchange   = "jobber-email-notification"
	EmailRoutingKey = "auth-email"

	BuyerExchange   = "jobber-buyer-update"
	BuyerRoutingKey = "user-buyer"
)

// Email templates understood by the notification service.
const (
	TemplateVerifyEmail          = "verifyEmail"
	TemplateForgotPassword       = "forgotPassword"
	TemplateResetPasswordSuccess = "resetPasswordSuccess"
)

// Publisher sends payload to exchange under routingKey. logLabel describes
// the message in logs.
type Publisher interface {
	Publish(ctx context.Context, exchange, routingKey string, payload []byte, logLabel string) error
}

type EmailMessage struct {
	ReceiverEmail string `json:"receiverEmail"`
	VerifyLink    string `json:"verifyLink,omitempty"`
	ResetLink     string `json:"resetLink,omitempty"`
	Username      string `json:"username,omitempty"`
	Template      string `json:"template"`
}

// BuyerMessage seeds the buyer profile of a newly registered user.
type BuyerMessage struct {
	Username       string    `json:"username"`
	Email          string    `json:"email"`
	ProfilePicture string    `json:"profilePicture"`
	Country        string    `json:"country"`
	CreatedAt      time.Time `json:"createdAt"`
	Type           string    `json:"type"`
}
