package serial

import (
	"fmt"
	"strings"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
	"gopkg.in/yaml.v3"

	"github.com/GoSim-25-26J-441/casa-core/internal/casaerr"
)

// Format selects the on-disk encoding.
type Format string

const (
	// Binary encodes the document as a protobuf google.protobuf.Struct
	Binary Format = "bin"
	// Text encodes the document as YAML
	Text Format = "txt"
)

// DocumentVersion is the newest document layout this package writes and reads.
const DocumentVersion = 1

const magic = "casa-state"

// ParseFormat maps a file-type name to a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "bin", "binary", "pb":
		return Binary, nil
	case "txt", "text", "yaml", "yml":
		return Text, nil
	default:
		return "", casaerr.New(casaerr.ConfigError, "ParseFormat", "unknown state file type %q (must be bin or txt)", s)
	}
}

// Encode wraps body into a versioned document of the given kind and encodes it.
func Encode(format Format, kind string, body Object) ([]byte, error) {
	doc := map[string]any{
		"magic":   magic,
		"kind":    kind,
		"version": DocumentVersion,
		"body":    normalize(body),
	}

	switch format {
	case Binary:
		st, err := structpb.NewStruct(doc)
		if err != nil {
			return nil, casaerr.Wrap(casaerr.SerializationError, "Encode", err, "can not convert %s to protobuf", kind)
		}
		data, err := proto.Marshal(st)
		if err != nil {
			return nil, casaerr.Wrap(casaerr.SerializationError, "Encode", err, "can not marshal %s", kind)
		}
		return data, nil
	case Text:
		data, err := yaml.Marshal(doc)
		if err != nil {
			return nil, casaerr.Wrap(casaerr.SerializationError, "Encode", err, "can not marshal %s", kind)
		}
		return data, nil
	default:
		return nil, casaerr.New(casaerr.SerializationError, "Encode", "unsupported format %q", format)
	}
}

// Decode reverses Encode, checking the document kind and version.
func Decode(format Format, data []byte, kind string) (Object, error) {
	var doc map[string]any

	switch format {
	case Binary:
		st := &structpb.Struct{}
		if err := proto.Unmarshal(data, st); err != nil {
			return nil, casaerr.Wrap(casaerr.DeserializationError, "Decode", err, "can not unmarshal %s", kind)
		}
		doc = st.AsMap()
	case Text:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, casaerr.Wrap(casaerr.DeserializationError, "Decode", err, "can not unmarshal %s", kind)
		}
	default:
		return nil, casaerr.New(casaerr.DeserializationError, "Decode", "unsupported format %q", format)
	}

	o := Object(doc)
	if m, _ := o.String("magic"); m != magic {
		return nil, casaerr.New(casaerr.DeserializationError, "Decode", "not a scenario state document")
	}
	if k, _ := o.String("kind"); k != kind {
		return nil, casaerr.New(casaerr.DeserializationError, "Decode", "document holds %q, expected %q", k, kind)
	}
	if _, err := CheckVersion(o, "document", DocumentVersion); err != nil {
		return nil, err
	}
	return o.Object("body")
}

// normalize turns named map/list types into the plain forms structpb accepts.
func normalize(v any) any {
	switch t := v.(type) {
	case Object:
		return normalize(map[string]any(t))
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = normalize(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = normalize(e)
		}
		return out
	case []Object:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = normalize(e)
		}
		return out
	case []float64:
		return FloatList(t)
	case []int:
		return IntList(t)
	case []string:
		return StringList(t)
	case int64:
		return float64(t)
	case int:
		return float64(t)
	case nil, bool, string, float64:
		return t
	default:
		return fmt.Sprint(t)
	}
}
