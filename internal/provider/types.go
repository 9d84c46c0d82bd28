// Package provider holds the clients for the reply-generating backends: the
// hosted inference endpoints and the general-purpose chat model.
package provider

import (
	"context"
	"fmt"
)

// ID names a reply source.
type ID string

const (
	Command   ID = "command"
	Primary   ID = "primary"
	Secondary ID = "secondary"
	OpenAI    ID = "openai"
)

// Parse validates a provider id.
func Parse(s string) (ID, error) {
	switch id := ID(s); id {
	case Command, Primary, Secondary, OpenAI:
		return id, nil
	}
	return "", fmt.Errorf("unknown provider %q", s)
}

// Generator produces a reply from the general-purpose model.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, prompt string) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// hostedRequest is the body accepted by the hosted inference endpoints.
type hostedRequest struct {
	Message string `json:"message"`
	Lang    string `json:"lang"`
}

type hostedResponse struct {
	Reply *string `json:"reply"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}
