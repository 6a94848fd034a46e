package config

import (
	"encoding/json"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// yamlNodeToJSON re-encodes a YAML mapping as JSON, the format strategy
// parameters travel in everywhere else.
func yamlNodeToJSON(node *yaml.Node) ([]byte, error) {
	var generic map[string]any
	if err := node.Decode(&generic); err != nil {
		return nil, errors.Wrap(err, "decode params mapping")
	}
	payload, err := json.Marshal(generic)
	if err != nil {
		return nil, errors.Wrap(err, "encode params")
	}
	return payload, nil
}
