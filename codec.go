package persist

import (
	"encoding/json"
)

type validator interface {
	Validate() error
}

// encode checks the content and serializes it to the stored text form.
func (c *Container[T]) encode(value T) (string, error) {
	if !c.cfg.skipValidation {
		if err := validateValue(value); err != nil {
			return "", &ValidationError{Key: c.key, Err: err}
		}
	}

	buffer, err := json.Marshal(value)
	if err != nil {
		return "", &SerializationError{Key: c.key, Err: err}
	}

	if len(c.guards) > 0 {
		generic, err := toGeneric(buffer)
		if err != nil {
			return "", &SerializationError{Key: c.key, Err: err}
		}
		if err := c.checkGuards(generic); err != nil {
			return "", err
		}
	}
	return string(buffer), nil
}

func validateValue[T any](value T) error {
	if v, ok := any(value).(validator); ok {
		return v.Validate()
	}
	if v, ok := any(&value).(validator); ok {
		return v.Validate()
	}
	return nil
}

// toGeneric decodes serialized content into map[string]any, []any, string,
// float64, bool or nil, the shape expression engines bind against.
func toGeneric(buffer []byte) (any, error) {
	var out any
	if err := json.Unmarshal(buffer, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func marshalGeneric[T any](value T) (any, error) {
	buffer, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	return toGeneric(buffer)
}
