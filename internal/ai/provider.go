package ai

import "context"

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Provider interface {
	Chat(ctx context.Context, messages []Message) (string, error)
}

// Generator is the text-in, text-out boundary the summary pipeline calls. It
// makes no promise about the shape of the returned text.
type Generator interface {
	Generate(ctx context.Context, system, user string) (string, error)
}

// ChatGenerator sends the instruction as a system message followed by one
// user message.
type ChatGenerator struct {
	Provider Provider
}

func (g ChatGenerator) Generate(ctx context.Context, system, user string) (string, error) {
	msgs := make([]Message, 0, 2)
	if system != "" {
		msgs = append(msgs, Message{Role: "system", Content: system})
	}
	msgs = append(msgs, Message{Role: "user", Content: user})
	return g.Provider.Chat(ctx, msgs)
}

// GeneratorFunc adapts a plain function.
type GeneratorFunc func(ctx context.Context, system, user string) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, system, user string) (string, error) {
	return f(ctx, system, user)
}
