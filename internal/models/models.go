// Package models defines the core data structures for NutriPipe.
//
// It includes inbound and outbound message shapes shared by the transports,
// the conversation flow and the profile store.
package models

import "time"

// InboundKind distinguishes typed text from keyboard button presses.
type InboundKind string

const (
	// InboundText is a message typed by the user.
	InboundText InboundKind = "text"
	// InboundButton is a keyboard button press; Text carries the button data.
	InboundButton InboundKind = "button"
)

// Inbound is a single message received from a user on any transport.
type Inbound struct {
	From string      `json:"from"`
	Text string      `json:"text"`
	Kind InboundKind `json:"kind"`
	Time time.Time   `json:"time"`
}

// IsCommand reports whether the message is a slash command.
func (m Inbound) IsCommand() bool {
	return len(m.Text) > 1 && m.Text[0] == '/'
}

// Choice is one button of a reply keyboard.
type Choice struct {
	Label string `json:"label"` // text shown on the button
	Data  string `json:"data"`  // text delivered back when pressed
}

// Image is a generated picture that has been downloaded locally.
type Image struct {
	URL  string `json:"url"`            // provider URL, short lived
	Path string `json:"path,omitempty"` // local copy
}

// APIStatus is the status field of every admin API response.
type APIStatus string

const (
	APIStatusOK    APIStatus = "ok"
	APIStatusError APIStatus = "error"
)

// APIResponse is the JSON envelope returned by the admin API.
type APIResponse struct {
	Status  APIStatus `json:"status"`
	Message string    `json:"message,omitempty"`
	Result  any       `json:"result,omitempty"`
}

// Success wraps result in an ok response.
func Success(result any) APIResponse {
	return APIResponse{Status: APIStatusOK, Result: result}
}

// SuccessWithMessage wraps result in an ok response with a message.
func SuccessWithMessage(message string, result any) APIResponse {
	return APIResponse{Status: APIStatusOK, Message: message, Result: result}
}

// Error builds an error response.
func Error(message string) APIResponse {
	return APIResponse{Status: APIStatusError, Message: message}
}
