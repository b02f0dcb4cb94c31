package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dshills/structsure/internal/schema"
)

// DefaultMaxRetries is the attempt budget used when Options.MaxRetries is not
// positive.
const DefaultMaxRetries = 3

// Options configures a Generate call.
type Options struct {
	// MaxRetries is the total number of backend round trips allowed.
	MaxRetries int
}

func (o Options) maxRetries() int {
	if o.MaxRetries <= 0 {
		return DefaultMaxRetries
	}
	return o.MaxRetries
}

// Generate asks the backend for a JSON object matching doc. Each reply is
// validated; on failure the invalid reply and a message listing every defect
// are appended to the conversation and the backend is called again, up to
// opts.MaxRetries calls in total.
//
// It returns the first validated value, a *BackendError as soon as the
// caller fails, or a *MaxRetriesExceededError once the budget is spent.
// Generate keeps no state between calls and is safe for concurrent use when
// the caller is.
func Generate(ctx context.Context, caller Caller, doc *schema.Document, prompt string, opts Options) (map[string]any, error) {
	return generate(ctx, caller, doc, prompt, opts, nil)
}

// generate runs the loop. When accept is set, a value that passes the schema
// must also pass accept; its error counts as one more validation defect.
func generate(ctx context.Context, caller Caller, doc *schema.Document, prompt string, opts Options, accept func(map[string]any) error) (map[string]any, error) {
	if caller == nil {
		return nil, errors.New("llm: generate: nil caller")
	}
	if doc == nil {
		return nil, errors.New("llm: generate: nil schema document")
	}
	if err := doc.Check(); err != nil {
		return nil, fmt.Errorf("llm: generate: %w", err)
	}

	sysPrompt, err := buildSystemPrompt(doc)
	if err != nil {
		return nil, fmt.Errorf("llm: generate: %w", err)
	}
	turns := []Turn{
		{Role: RoleSystem, Content: sysPrompt},
		{Role: RoleUser, Content: prompt},
	}

	validator := doc.Validator()
	maxRetries := opts.maxRetries()
	logger := zerolog.Ctx(ctx).With().
		Str("run_id", uuid.NewString()).
		Str("schema", doc.Title).
		Logger()

	for attempt := 0; attempt < maxRetries; attempt++ {
		logger.Debug().Int("attempt", attempt+1).Int("turns", len(turns)).Msg("calling backend")

		raw, err := caller.Call(ctx, cloneTurns(turns))
		if err != nil {
			logger.Error().Err(err).Int("attempt", attempt+1).Msg("backend call failed")
			return nil, asBackendError(err)
		}

		value, verr := validator.Validate(raw)
		if verr == nil && accept != nil {
			verr = accept(value)
		}
		if verr == nil {
			logger.Debug().Int("attempt", attempt+1).Msg("reply validated")
			return value, nil
		}

		logger.Warn().Err(verr).Int("attempt", attempt+1).Int("max_retries", maxRetries).Msg("reply failed validation")
		turns = append(turns,
			Turn{Role: RoleAssistant, Content: raw},
			Turn{Role: RoleUser, Content: buildCorrectionPrompt(verr)},
		)
	}

	return nil, &MaxRetriesExceededError{Attempts: maxRetries}
}

// GenerateInto builds the document for T and runs the loop, decoding each
// validated value into a new T. A value T cannot hold (300 for a uint8) is
// fed back to the model like any other defect.
func GenerateInto[T any](ctx context.Context, caller Caller, prompt string, opts Options) (*T, error) {
	doc, err := schema.For[T]()
	if err != nil {
		return nil, fmt.Errorf("llm: generate: %w", err)
	}
	var out *T
	_, err = generate(ctx, caller, doc, prompt, opts, func(value map[string]any) error {
		v := new(T)
		if err := schema.DecodeValue(value, v); err != nil {
			return err
		}
		out = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// buildSystemPrompt embeds the canonical JSON Schema of doc in the fixed
// instruction preamble.
func buildSystemPrompt(doc *schema.Document) (string, error) {
	js, err := doc.MarshalJSONSchema()
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	sb.WriteString("You generate structured JSON data. The user provides a prompt; respond with " +
		"exactly one JSON object that conforms to the JSON Schema below.\n")
	sb.WriteString("Output ONLY the JSON object. No commentary, no markdown code fences, no other text.\n\n")
	sb.WriteString("JSON Schema:\n")
	sb.Write(js)
	sb.WriteString("\n")
	return sb.String(), nil
}

// buildCorrectionPrompt describes every defect of the previous reply.
func buildCorrectionPrompt(verr error) string {
	var sb strings.Builder
	sb.WriteString("Your last reply failed validation with the following errors:\n")
	var vf *schema.ValidationFailure
	if errors.As(verr, &vf) {
		for _, p := range vf.Problems {
			fmt.Fprintf(&sb, "  - %s\n", p.Error())
		}
	} else {
		fmt.Fprintf(&sb, "  - %s\n", verr.Error())
	}
	sb.WriteString("\nCorrect these errors and reply with ONLY the corrected JSON object.")
	return sb.String()
}
