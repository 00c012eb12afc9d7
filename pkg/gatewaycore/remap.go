package gatewaycore

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/digitallysavvy/onlocal-gateway/pkg/chatapi"
)

// KeyRemapper rewrites model-emitted tool argument keys to the keys a
// tool's JSON schema actually declares. Built once per request from the
// request's tools[], and read-only for the remainder of the request.
type KeyRemapper struct {
	fixToolArgs bool
	// declared holds each tool's property names in schema-declaration
	// order; a per-tool lookup to keep suffix/heuristic matches scoped.
	declared map[string][]string
	// snakeToOriginal maps a tool's snake_case property forms back to the
	// schema-declared original, only where the two differ.
	snakeToOriginal map[string]map[string]string
}

// NewKeyRemapper builds the remapping tables from a request's tool
// schemas. fixToolArgs gates the heuristic fallback (server config
// fix-tool-args).
func NewKeyRemapper(tools []chatapi.ToolSchema, fixToolArgs bool) *KeyRemapper {
	r := &KeyRemapper{
		fixToolArgs:     fixToolArgs,
		declared:        make(map[string][]string),
		snakeToOriginal: make(map[string]map[string]string),
	}
	for _, tool := range tools {
		props := orderedProperties(tool.Function.Parameters)
		r.declared[tool.Function.Name] = props
		snaked := make(map[string]string)
		for _, name := range props {
			s := toSnakeCase(name)
			if s != name {
				snaked[s] = name
			}
		}
		r.snakeToOriginal[tool.Function.Name] = snaked
	}
	return r
}

// Remap rewrites key using toolName's schema, returning it unchanged if no
// mapping applies.
func (r *KeyRemapper) Remap(toolName, key string) string {
	if r == nil {
		return key
	}
	if original, ok := r.snakeToOriginal[toolName][key]; ok {
		return original
	}
	if !r.fixToolArgs {
		return key
	}
	return r.heuristicRemap(toolName, key)
}

// heuristicRemap attempts case-insensitive exact, snake<->camel in either
// direction, and suffix matches against toolName's declared properties, in
// that order, breaking ties by schema-declaration order.
func (r *KeyRemapper) heuristicRemap(toolName, key string) string {
	props := r.declared[toolName]
	if len(props) == 0 {
		return key
	}

	for _, p := range props {
		if strings.EqualFold(p, key) {
			return p
		}
	}
	for _, p := range props {
		if toSnakeCase(p) == toSnakeCase(key) {
			return p
		}
	}
	for _, p := range props {
		lowerP, lowerKey := strings.ToLower(p), strings.ToLower(key)
		if strings.HasSuffix(lowerP, lowerKey) || strings.HasSuffix(lowerKey, lowerP) {
			return p
		}
	}
	return key
}

// toSnakeCase inserts '_' before each interior uppercase letter and
// lowercases the result, e.g. "filePath" -> "file_path".
func toSnakeCase(s string) string {
	var b strings.Builder
	for i, r := range s {
		if i > 0 && r >= 'A' && r <= 'Z' {
			b.WriteByte('_')
		}
		if r >= 'A' && r <= 'Z' {
			b.WriteRune(r - 'A' + 'a')
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// orderedProperties walks a JSON-schema "parameters" object and returns the
// property names under "properties" in declaration order. Decoding into a
// map would lose that order, and schema-declaration order is the tie-break
// rule the heuristic remap relies on.
func orderedProperties(schema json.RawMessage) []string {
	if len(schema) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(schema))
	names, err := findPropertiesKeys(dec)
	if err != nil {
		return nil
	}
	return names
}

func findPropertiesKeys(dec *json.Decoder) ([]string, error) {
	depth := 0
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		if delim, ok := tok.(json.Delim); ok {
			switch delim {
			case '{', '[':
				depth++
			case '}', ']':
				depth--
				if depth == 0 {
					return nil, nil
				}
			}
			continue
		}
		if key, ok := tok.(string); ok && depth == 1 && key == "properties" {
			return readObjectKeys(dec)
		}
	}
}

// readObjectKeys assumes the decoder is positioned just before a JSON
// object and returns its top-level keys in encounter order, skipping over
// each value without caring about its shape.
func readObjectKeys(dec *json.Decoder) ([]string, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, nil
	}
	var names []string
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, _ := keyTok.(string)
		names = append(names, key)
		if err := skipValue(dec); err != nil {
			return nil, err
		}
	}
	// consume closing '}'
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return names, nil
}

func skipValue(dec *json.Decoder) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	delim, ok := tok.(json.Delim)
	if !ok {
		return nil
	}
	if delim == '{' || delim == '[' {
		depth := 1
		for depth > 0 {
			tok, err := dec.Token()
			if err != nil {
				return err
			}
			if d, ok := tok.(json.Delim); ok {
				switch d {
				case '{', '[':
					depth++
				case '}', ']':
					depth--
				}
			}
		}
	}
	return nil
}
