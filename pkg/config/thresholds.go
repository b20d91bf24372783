package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/xeipuuv/gojsonschema"

	"github.com/perfwatch/analyzer/pkg/analyzer"
)

// thresholdSchema validates externally supplied threshold override
// documents before they replace any shipped default.
const thresholdSchema = `{
	"type": "object",
	"additionalProperties": {
		"type": "object",
		"required": ["good", "acceptable", "poor"],
		"properties": {
			"good": {"type": "number"},
			"acceptable": {"type": "number"},
			"poor": {"type": "number"},
			"lower_is_better": {"type": "boolean"}
		}
	}
}`

// LoadThresholdOverrides reads a JSON document of per-metric threshold
// overrides, schema-validates it and merges it over the given set.
func LoadThresholdOverrides(path string, base map[string]analyzer.Thresholds) (map[string]analyzer.Thresholds, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read threshold overrides: %w", err)
	}

	schemaLoader := gojsonschema.NewStringLoader(thresholdSchema)
	documentLoader := gojsonschema.NewBytesLoader(data)
	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return nil, fmt.Errorf("threshold validation error: %w", err)
	}
	if !result.Valid() {
		var msgs []string
		for _, desc := range result.Errors() {
			msgs = append(msgs, desc.String())
		}
		return nil, fmt.Errorf("invalid threshold overrides: %v", msgs)
	}

	overrides := make(map[string]analyzer.Thresholds)
	if err := json.Unmarshal(data, &overrides); err != nil {
		return nil, fmt.Errorf("failed to parse threshold overrides: %w", err)
	}

	merged := make(map[string]analyzer.Thresholds, len(base)+len(overrides))
	for name, t := range base {
		merged[name] = t
	}
	for name, t := range overrides {
		merged[name] = t
	}
	return merged, nil
}

// ApplyThresholdOverrides merges the configured override document over
// the analysis thresholds and re-validates the result. No-op when no
// override path is configured.
func (c *Config) ApplyThresholdOverrides() error {
	if c.Analysis.ThresholdOverrides == "" {
		return nil
	}
	merged, err := LoadThresholdOverrides(c.Analysis.ThresholdOverrides, c.Analysis.Thresholds)
	if err != nil {
		return err
	}
	c.Analysis.Thresholds = merged
	if err := c.Validate(); err != nil {
		return fmt.Errorf("threshold overrides produce an invalid configuration: %w", err)
	}
	return nil
}
