package eventreg

import (
	jsoniter "github.com/json-iterator/go"
	"gopkg.in/yaml.v3"
)

// Codec defines how typed event payloads are serialized and deserialized.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// JSONCodec is the default Codec.
type JSONCodec struct{}

func (JSONCodec) Marshal(v any) ([]byte, error)     { return jsonAPI.Marshal(v) }
func (JSONCodec) Unmarshal(data []byte, v any) error { return jsonAPI.Unmarshal(data, v) }

// YAMLCodec encodes payloads as YAML documents.
type YAMLCodec struct{}

func (YAMLCodec) Marshal(v any) ([]byte, error)     { return yaml.Marshal(v) }
func (YAMLCodec) Unmarshal(data []byte, v any) error { return yaml.Unmarshal(data, v) }
