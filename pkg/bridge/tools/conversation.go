package tools

import "context"

type ctxKeyConversation struct{}

// WithConversation attaches a rendered transcript of the conversation so far
// to a tool execution. Tools that consult other models read it back with
// ConversationFrom; everything else ignores it.
func WithConversation(ctx context.Context, transcript string) context.Context {
	return context.WithValue(ctx, ctxKeyConversation{}, transcript)
}

// ConversationFrom returns the transcript attached by WithConversation.
func ConversationFrom(ctx context.Context) (string, bool) {
	transcript, ok := ctx.Value(ctxKeyConversation{}).(string)
	return transcript, ok && transcript != ""
}
