package serialization

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"
)

// MapToStruct converts a loosely-typed payload map into a protobuf Struct so
// it can be protobuf-marshaled without generated message types. The JSON
// round trip coerces values structpb cannot take directly (typed slices,
// ints, nested structs).
func MapToStruct(m map[string]interface{}) (*structpb.Struct, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMarshalFailed, err)
	}

	var normalized map[string]interface{}
	if err := json.Unmarshal(data, &normalized); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMarshalFailed, err)
	}

	s, err := structpb.NewStruct(normalized)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMarshalFailed, err)
	}
	return s, nil
}

// StructToMap converts a protobuf Struct back to a plain map
func StructToMap(s *structpb.Struct) map[string]interface{} {
	if s == nil {
		return nil
	}
	return s.AsMap()
}
