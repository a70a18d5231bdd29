// Package ai wraps the generative model behind a small text-in/text-out
// interface and provides helpers for decoding model output as JSON.
package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/aithera/therapy-server-go/internal/metrics"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

type Turn struct {
	Role Role
	Text string
}

type Request struct {
	// Operation names the call for logs and metrics.
	Operation string
	System    string
	History   []Turn
	Prompt    string
	// JSON asks the model for an application/json response.
	JSON bool
}

type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// ParseError reports model output that did not match the expected shape.
type ParseError struct {
	Raw    string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("unparseable model output: %s", e.Reason)
}

func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}

// StripCodeFences removes a surrounding ```json ... ``` block if present.
func StripCodeFences(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}

	firstNewline := strings.Index(trimmed, "\n")
	if firstNewline == -1 {
		return trimmed
	}
	lastFence := strings.LastIndex(trimmed, "```")
	if lastFence <= firstNewline {
		return strings.TrimSpace(trimmed[firstNewline+1:])
	}
	return strings.TrimSpace(trimmed[firstNewline+1 : lastFence])
}

// Validator is implemented by decoded model outputs that check their own
// invariants.
type Validator interface {
	Validate() error
}

// DecodeJSON strips fences, decodes raw into T and runs T's validation.
// Any failure is a *ParseError.
func DecodeJSON[T any](raw string) (*T, error) {
	body := StripCodeFences(raw)
	if body == "" {
		return nil, &ParseError{Raw: raw, Reason: "empty response"}
	}

	var out T
	if err := json.Unmarshal([]byte(body), &out); err != nil {
		return nil, &ParseError{Raw: raw, Reason: err.Error()}
	}

	if v, ok := any(&out).(Validator); ok {
		if err := v.Validate(); err != nil {
			return nil, &ParseError{Raw: raw, Reason: err.Error()}
		}
	}
	return &out, nil
}

type instrumented struct {
	next Generator
}

// Instrument records latency and outcome of every call made through g.
func Instrument(g Generator) Generator {
	return &instrumented{next: g}
}

func (i *instrumented) Generate(ctx context.Context, req Request) (string, error) {
	start := time.Now()
	text, err := i.next.Generate(ctx, req)
	elapsed := time.Since(start)

	metrics.AICallDuration.WithLabelValues(req.Operation).Observe(elapsed.Seconds())

	if err != nil {
		metrics.AICallsTotal.WithLabelValues(req.Operation, "error").Inc()
		log.Warn().Err(err).
			Str("operation", req.Operation).
			Dur("duration", elapsed).
			Msg("ai call failed")
		return "", err
	}

	metrics.AICallsTotal.WithLabelValues(req.Operation, "ok").Inc()
	log.Debug().
		Str("operation", req.Operation).
		Dur("duration", elapsed).
		Int("chars", len(text)).
		Msg("ai call completed")
	return text, nil
}
