package continuation

import (
	"fmt"

	"github.com/flemzord/threadline/internal/model"
)

// Argument keys recognized by the coordinator. Everything else passes
// through untouched in Request.Extra.
const (
	KeyContinuationID = "continuation_id"
	KeyPrompt         = "prompt"
	KeyFiles          = "files"
	KeyModel          = "model"
	KeyTemperature    = "temperature"
	KeyThinkingMode   = "thinking_mode"
	KeyReservedTokens = "reserved_response_tokens"

	// KeyRemainingTokens, KeyModelContext, and KeyTurnCount are written
	// by the coordinator into the enlarged argument set. The underscore
	// prefix marks them as engine-provided rather than caller-provided.
	KeyRemainingTokens = "_remaining_tokens"
	KeyModelContext    = "_model_context"
	KeyTurnCount       = "_turn_count"
)

// Request is the typed form of a tool call's arguments, validated once
// at the boundary so the coordinator never probes a raw map.
type Request struct {
	// ContinuationID is the opaque handle of the thread to resume.
	ContinuationID string

	// Prompt is the new user input for this turn. May be empty, in which
	// case no user turn is appended.
	Prompt string

	// Files are the paths referenced by this turn.
	Files []string

	// Model overrides the configured default model when non-empty.
	Model string

	// Temperature is a sampling override; nil when not supplied.
	Temperature *float64

	// ThinkingMode is a reasoning-depth override; empty when not supplied.
	ThinkingMode string

	// ReservedTokens is the caller's response-token reservation.
	// model.DefaultReservation selects the default fraction.
	ReservedTokens int

	// Extra holds all unrecognized arguments, passed through to the tool.
	Extra map[string]any
}

// ParseRequest validates raw tool-call arguments into a Request.
func ParseRequest(args map[string]any) (Request, error) {
	r := Request{ReservedTokens: model.DefaultReservation}

	for key, value := range args {
		switch key {
		case KeyContinuationID:
			s, err := asString(key, value)
			if err != nil {
				return Request{}, err
			}
			r.ContinuationID = s
		case KeyPrompt:
			s, err := asString(key, value)
			if err != nil {
				return Request{}, err
			}
			r.Prompt = s
		case KeyFiles:
			files, err := asStringSlice(key, value)
			if err != nil {
				return Request{}, err
			}
			r.Files = files
		case KeyModel:
			s, err := asString(key, value)
			if err != nil {
				return Request{}, err
			}
			r.Model = s
		case KeyTemperature:
			f, err := asFloat(key, value)
			if err != nil {
				return Request{}, err
			}
			r.Temperature = &f
		case KeyThinkingMode:
			s, err := asString(key, value)
			if err != nil {
				return Request{}, err
			}
			r.ThinkingMode = s
		case KeyReservedTokens:
			f, err := asFloat(key, value)
			if err != nil {
				return Request{}, err
			}
			if f < 0 {
				return Request{}, fmt.Errorf("%w: %q must be >= 0, got %v", ErrInvalidArgument, key, f)
			}
			r.ReservedTokens = int(f)
		default:
			if r.Extra == nil {
				r.Extra = make(map[string]any)
			}
			r.Extra[key] = value
		}
	}

	return r, nil
}

// args reassembles the request into an argument map, the starting point
// for the enlarged set the coordinator returns.
func (r Request) args() map[string]any {
	out := make(map[string]any, len(r.Extra)+6)
	for k, v := range r.Extra {
		out[k] = v
	}
	out[KeyContinuationID] = r.ContinuationID
	out[KeyPrompt] = r.Prompt
	if r.Files != nil {
		out[KeyFiles] = r.Files
	}
	if r.Model != "" {
		out[KeyModel] = r.Model
	}
	if r.Temperature != nil {
		out[KeyTemperature] = *r.Temperature
	}
	if r.ThinkingMode != "" {
		out[KeyThinkingMode] = r.ThinkingMode
	}
	return out
}

func asString(key string, value any) (string, error) {
	s, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("%w: %q must be a string, got %T", ErrInvalidArgument, key, value)
	}
	return s, nil
}

func asFloat(key string, value any) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("%w: %q must be a number, got %T", ErrInvalidArgument, key, value)
	}
}

func asStringSlice(key string, value any) ([]string, error) {
	switch v := value.(type) {
	case []string:
		return append([]string(nil), v...), nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%w: %q must contain strings, got %T", ErrInvalidArgument, key, item)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %q must be a list of strings, got %T", ErrInvalidArgument, key, value)
	}
}
