package llm

import "context"

// CompletionRequest is one prompt-in/JSON-out call.
type CompletionRequest struct {
	SystemPrompt string
	UserPrompt   string
	// SchemaHint, when set, is sent as an extra system message after the user turn.
	SchemaHint  string
	Temperature float32
	JSONMode    bool
}

// CompletionClient is the generative model collaborator. Implementations return the raw
// assistant text; they never interpret it. Failures should carry CodeCompletionFailed or
// CodeRateLimited.
type CompletionClient interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// ModelNamer is implemented by clients that can report the model they call.
type ModelNamer interface {
	ModelName() string
}

// CompletionFunc adapts a function to CompletionClient.
type CompletionFunc func(ctx context.Context, req CompletionRequest) (string, error)

func (f CompletionFunc) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	return f(ctx, req)
}
