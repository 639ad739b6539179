package http //nolint:revive // package name conflicts with stdlib but is acceptable in this context

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed openapi.yaml
var openAPIYAML []byte

// getOpenAPIJSON converts the embedded YAML document on first use.
var getOpenAPIJSON = sync.OnceValues(func() ([]byte, error) {
	return yamlToJSON(openAPIYAML)
})

func yamlToJSON(data []byte) ([]byte, error) {
	var doc interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse openapi document: %w", err)
	}
	doc, err := stringKeys(doc)
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(doc, "", "  ")
}

// stringKeys rewrites YAML mappings with non-string keys, which JSON
// cannot represent.
func stringKeys(v interface{}) (interface{}, error) {
	switch v := v.(type) {
	case map[string]interface{}:
		for key, value := range v {
			conv, err := stringKeys(value)
			if err != nil {
				return nil, err
			}
			v[key] = conv
		}
		return v, nil
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(v))
		for key, value := range v {
			conv, err := stringKeys(value)
			if err != nil {
				return nil, err
			}
			out[fmt.Sprint(key)] = conv
		}
		return out, nil
	case []interface{}:
		for i, value := range v {
			conv, err := stringKeys(value)
			if err != nil {
				return nil, err
			}
			v[i] = conv
		}
		return v, nil
	default:
		return v, nil
	}
}
