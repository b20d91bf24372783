package optimizer

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/xeipuuv/gojsonschema"
)

// playbookSchema validates playbook documents before any step is
// registered from them.
const playbookSchema = `{
	"type": "object",
	"required": ["name", "steps"],
	"properties": {
		"name": {"type": "string", "minLength": 1},
		"description": {"type": "string"},
		"steps": {
			"type": "array",
			"minItems": 1,
			"items": {
				"type": "object",
				"required": ["name", "action"],
				"properties": {
					"name": {"type": "string", "minLength": 1},
					"action": {"type": "string", "enum": ["sleep", "log"]},
					"duration_ms": {"type": "integer", "minimum": 0},
					"message": {"type": "string"}
				}
			}
		}
	}
}`

// Playbook is an externally authored set of named optimization steps.
// Actions are deliberately side-effect free (sleep, log): real
// capabilities belong to host-registered steps, playbooks only shape
// sequencing and observability.
type Playbook struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Steps       []PlaybookStep `json:"steps"`
}

// PlaybookStep describes one step entry of a playbook document.
type PlaybookStep struct {
	Name       string `json:"name"`
	Action     string `json:"action"`
	DurationMs int    `json:"duration_ms,omitempty"`
	Message    string `json:"message,omitempty"`
}

// LoadPlaybook reads, schema-validates and parses a playbook file.
func LoadPlaybook(path string) (*Playbook, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read playbook: %w", err)
	}
	return ParsePlaybook(data)
}

// ParsePlaybook validates raw playbook JSON against the schema and
// decodes it.
func ParsePlaybook(data []byte) (*Playbook, error) {
	schemaLoader := gojsonschema.NewStringLoader(playbookSchema)
	documentLoader := gojsonschema.NewBytesLoader(data)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return nil, fmt.Errorf("playbook validation error: %w", err)
	}
	if !result.Valid() {
		var msgs []string
		for _, desc := range result.Errors() {
			msgs = append(msgs, desc.String())
		}
		return nil, fmt.Errorf("invalid playbook: %v", msgs)
	}

	var pb Playbook
	if err := json.Unmarshal(data, &pb); err != nil {
		return nil, fmt.Errorf("failed to parse playbook: %w", err)
	}
	return &pb, nil
}

// RegisterSteps binds every playbook step into the registry.
func (pb *Playbook) RegisterSteps(registry *Registry) {
	for _, ps := range pb.Steps {
		registry.Register(playbookStep{def: ps})
	}
	log.Info().Str("playbook", pb.Name).Int("steps", len(pb.Steps)).Msg("Playbook steps registered")
}

type playbookStep struct {
	def PlaybookStep
}

func (p playbookStep) Name() string { return p.def.Name }

func (p playbookStep) Run(ctx context.Context) error {
	switch p.def.Action {
	case "log":
		log.Info().Str("step", p.def.Name).Str("message", p.def.Message).Msg("Playbook step")
		return nil
	case "sleep":
		select {
		case <-time.After(time.Duration(p.def.DurationMs) * time.Millisecond):
			return nil
		case <-ctx.Done():
			return fmt.Errorf("playbook step %s cancelled: %w", p.def.Name, ctx.Err())
		}
	default:
		return fmt.Errorf("unknown playbook action %q", p.def.Action)
	}
}
