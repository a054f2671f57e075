package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/spigell/resume-evaluator/internal/logger"
	"github.com/spigell/resume-evaluator/internal/retry"
	"github.com/spigell/resume-evaluator/internal/schema"
)

const (
	defaultTemperature  = 0.2
	defaultMaxLogLength = 200

	malformedPayloadLimit = 500
	invalidPayloadLimit   = 1000
)

var errEmptyResponse = errors.New("empty response")

// ClientConfig tunes a structured generation Client.
type ClientConfig struct {
	Model       string
	Temperature *float32
	// RequestTimeout bounds every single transport call. Zero disables the bound.
	RequestTimeout time.Duration
	// RequestsPerMinute throttles transport calls across all users of the client. Zero means unlimited.
	RequestsPerMinute int
	MaxLogLength      int
	Retry             retry.Policy
}

// Client turns a raw Transport into a schema-enforcing Generator with bounded retries.
// It holds no per-call state and is safe for concurrent use.
type Client struct {
	transport   Transport
	model       string
	temperature float32
	timeout     time.Duration
	policy      retry.Policy
	limiter     *rate.Limiter
	logger      *zap.Logger
	maxLogLen   int
}

var _ Generator = (*Client)(nil)

func NewClient(transport Transport, cfg ClientConfig, log *zap.Logger) *Client {
	temperature := float32(defaultTemperature)
	if cfg.Temperature != nil {
		temperature = *cfg.Temperature
	}

	maxLogLen := cfg.MaxLogLength
	if maxLogLen <= 0 {
		maxLogLen = defaultMaxLogLength
	}

	policy := cfg.Retry
	if policy.MaxAttempts <= 0 {
		policy = retry.DefaultPolicy
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1)
	}

	return &Client{
		transport:   transport,
		model:       strings.TrimSpace(cfg.Model),
		temperature: temperature,
		timeout:     cfg.RequestTimeout,
		policy:      policy,
		limiter:     limiter,
		logger:      logger.WithCommonFields(log, transport.Provider(), cfg.Model),
		maxLogLen:   maxLogLen,
	}
}

// SystemPrompt appends the rendered schema to the stage instruction.
func SystemPrompt(instruction string, s *schema.Schema) string {
	return fmt.Sprintf(`%s

You must respond with a valid JSON object that matches this exact schema:
%s

Ensure all required fields are present and all values match the schema types and constraints.
Respond with the JSON object only: no prose, no markdown code fences.`, strings.TrimSpace(instruction), s.Render())
}

// Generate implements Generator.
func (c *Client) Generate(ctx context.Context, s *schema.Schema, systemPrompt, userContent string, out any) error {
	if s == nil {
		return errors.New("schema is required")
	}

	target := reflect.ValueOf(out)
	if !target.IsValid() || target.Kind() != reflect.Pointer || target.IsNil() {
		return fmt.Errorf("generate %s: output must be a non-nil pointer, got %T", s.Name(), out)
	}

	req := Request{
		Model:       c.model,
		Temperature: c.temperature,
		Messages: []Message{
			{Role: RoleSystem, Content: SystemPrompt(systemPrompt, s)},
			{Role: RoleUser, Content: userContent},
		},
		JSONObject: true,
	}

	log := c.logger.With(zap.String("schema", s.Name()))

	policy := c.policy.WithRetryable(IsRecoverable)
	policy.OnRetry = func(attempt int, wait time.Duration, err error) {
		log.Warn("generated output rejected, retrying",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", policy.MaxAttempts),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	}

	return retry.Do(ctx, policy, func(ctx context.Context, attempt int) error {
		return c.attempt(ctx, log.With(zap.Int("attempt", attempt)), s, req, target)
	})
}

func (c *Client) attempt(ctx context.Context, log *zap.Logger, s *schema.Schema, req Request, target reflect.Value) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("waiting for rate limiter: %w", err)
	}

	callCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	user := req.Messages[len(req.Messages)-1].Content
	log.Debug("generate request",
		zap.Int("user_content_length", utf8.RuneCountInString(user)),
		zap.String("user_content_preview", logger.TruncateForLog(user, c.maxLogLen)),
	)

	raw, err := c.transport.Complete(callCtx, req)
	if err != nil {
		return fmt.Errorf("%s generation: %w", c.transport.Provider(), err)
	}

	log.Debug("generate response",
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", logger.TruncateForLog(raw, c.maxLogLen)),
	)

	return decodeOutput(s, raw, target)
}

// decodeOutput parses raw as a JSON object, validates it against s and decodes it into target.
// target is only overwritten when every step succeeds.
func decodeOutput(s *schema.Schema, raw string, target reflect.Value) error {
	cleaned := extractJSON(raw)
	if cleaned == "" {
		return &OutputError{Kind: OutputMalformed, Schema: s.Name(), Err: errEmptyResponse}
	}

	var document any
	if err := json.Unmarshal([]byte(cleaned), &document); err != nil {
		return &OutputError{
			Kind:    OutputMalformed,
			Schema:  s.Name(),
			Payload: logger.TruncateForLog(cleaned, malformedPayloadLimit),
			Err:     fmt.Errorf("parse json: %w", err),
		}
	}

	if _, ok := document.(map[string]any); !ok {
		return &OutputError{
			Kind:    OutputMalformed,
			Schema:  s.Name(),
			Payload: logger.TruncateForLog(cleaned, malformedPayloadLimit),
			Err:     fmt.Errorf("expected a json object, got %T", document),
		}
	}

	if err := s.Validate(document); err != nil {
		var verr *schema.ValidationError
		if !errors.As(err, &verr) {
			return err
		}
		return &OutputError{
			Kind:     OutputInvalid,
			Schema:   s.Name(),
			Payload:  logger.TruncateForLog(cleaned, invalidPayloadLimit),
			Problems: verr.Problems,
			Err:      verr,
		}
	}

	fresh := reflect.New(target.Elem().Type())
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName: "json",
		Result:  fresh.Interface(),
	})
	if err != nil {
		return fmt.Errorf("build decoder for %s: %w", s.Name(), err)
	}

	if err := decoder.Decode(document); err != nil {
		return &OutputError{
			Kind:    OutputInvalid,
			Schema:  s.Name(),
			Payload: logger.TruncateForLog(cleaned, invalidPayloadLimit),
			Err:     fmt.Errorf("decode: %w", err),
		}
	}

	target.Elem().Set(fresh.Elem())
	return nil
}

// extractJSON strips surrounding whitespace and markdown fences some models add despite instructions.
func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}
