package domain

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

// Action names accepted from a connection.
type Action string

const (
	ActionRegister      Action = "register"
	ActionStatusChange  Action = "status_change"
	ActionActivity      Action = "activity"
	ActionSendMessage   Action = "send_message"
	ActionTerminateChat Action = "terminate_chat"
	ActionDisconnect    Action = "disconnect"
)

type RegisterCommand struct {
	DisplayName string `json:"displayName" validate:"required"`
}

type StatusChangeCommand struct {
	ParticipantID string `json:"participantId"`
	Status        Status `json:"status" validate:"required,oneof=ONLINE AWAY OFFLINE DO_NOT_DISTURB"`
}

type ActivityCommand struct {
	ParticipantID string `json:"participantId"`
}

type SendMessageCommand struct {
	Text string `json:"text" validate:"required"`
}

type TerminateChatCommand struct {
	Reason string `json:"reason"`
}

var validate = validator.New()

// Validate trims string fields before checking struct tags.
func (c *RegisterCommand) Validate() error {
	c.DisplayName = strings.TrimSpace(c.DisplayName)
	return validate.Struct(c)
}

func (c *SendMessageCommand) Validate() error {
	c.Text = strings.TrimSpace(c.Text)
	return validate.Struct(c)
}

func (c *StatusChangeCommand) Validate() error {
	return validate.Struct(c)
}

func (c *TerminateChatCommand) Validate() error {
	c.Reason = strings.TrimSpace(c.Reason)
	return nil
}
