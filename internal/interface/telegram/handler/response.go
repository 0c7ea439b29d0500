// Package handler contains Telegram command handlers.
// Handlers know nothing about the Bot API: they take a parsed request and
// return a Response that the router delivers.
package handler

import "github.com/wordle-club/wordle-bot/internal/interface/telegram/presenter"

// Response is what a command wants sent back to the chat.
type Response struct {
	// Messages are sent in order.
	Messages []presenter.MessageView

	// PhotoURL, when set, is sent as a photo with Caption.
	PhotoURL string
	Caption  string

	// DeleteTrigger removes the message that invoked the command.
	DeleteTrigger bool

	// IsError marks a user-facing failure notice.
	IsError bool
}

// Text builds a single plain-text response.
func Text(text string) *Response {
	return &Response{Messages: []presenter.MessageView{{Text: text}}}
}

// ErrorText builds a single plain-text failure notice.
func ErrorText(text string) *Response {
	r := Text(text)
	r.IsError = true
	return r
}
