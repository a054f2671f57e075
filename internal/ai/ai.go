package ai

import (
	"context"

	"github.com/spigell/resume-evaluator/internal/schema"
)

const (
	RoleSystem = "system"
	RoleUser   = "user"
)

type Message struct {
	Role    string
	Content string
}

// Request is a single call to a text generation service.
type Request struct {
	Model       string
	Temperature float32
	Messages    []Message
	// JSONObject asks the service for a single JSON object without prose or fencing.
	JSONObject bool
}

// Transport sends one request to a remote generation service and returns the raw text.
// Errors returned by a transport (auth, network, service failures) are never retried.
type Transport interface {
	Complete(ctx context.Context, req Request) (string, error)
	Provider() string
}

// Generator produces a value conforming to s and decodes it into out, which must be a pointer.
type Generator interface {
	Generate(ctx context.Context, s *schema.Schema, systemPrompt, userContent string, out any) error
}
