package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

type capabilityShape uint8

const (
	shapeAbsent capabilityShape = iota
	shapeSingle
	shapeList
)

// Capabilities holds an extension's capability flags. The wire format is
// either a single number or a list of numbers; whichever shape was decoded
// is the shape that gets encoded again.
type Capabilities struct {
	shape  capabilityShape
	values []int
}

// SingleCapability returns a Capabilities encoded as a bare number.
func SingleCapability(v uint8) Capabilities {
	return Capabilities{shape: shapeSingle, values: []int{int(v)}}
}

// CapabilityList returns a Capabilities encoded as an array.
func CapabilityList(vs ...uint8) Capabilities {
	values := make([]int, len(vs))
	for i, v := range vs {
		values[i] = int(v)
	}
	return Capabilities{shape: shapeList, values: values}
}

// IsSet reports whether any capability value was present.
func (c Capabilities) IsSet() bool { return c.shape != shapeAbsent }

// IsList reports whether the capabilities use the array shape.
func (c Capabilities) IsList() bool { return c.shape == shapeList }

// Values returns the capability flags regardless of shape.
func (c Capabilities) Values() []uint8 {
	out := make([]uint8, len(c.values))
	for i, v := range c.values {
		out[i] = uint8(v)
	}
	return out
}

func (c Capabilities) MarshalJSON() ([]byte, error) {
	switch c.shape {
	case shapeSingle:
		if len(c.values) != 1 {
			return nil, fmt.Errorf("single capability holds %d values", len(c.values))
		}
		return json.Marshal(c.values[0])
	case shapeList:
		if c.values == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(c.values)
	default:
		return []byte("null"), nil
	}
}

func (c *Capabilities) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*c = Capabilities{}
		return nil
	}

	if data[0] == '[' {
		var values []int
		if err := json.Unmarshal(data, &values); err != nil {
			return fmt.Errorf("capabilities: %w", err)
		}
		for _, v := range values {
			if err := checkCapability(v); err != nil {
				return err
			}
		}
		if values == nil {
			values = []int{}
		}
		*c = Capabilities{shape: shapeList, values: values}
		return nil
	}

	var v int
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("capabilities must be a number or a list of numbers: %w", err)
	}
	if err := checkCapability(v); err != nil {
		return err
	}
	*c = Capabilities{shape: shapeSingle, values: []int{v}}
	return nil
}

// JSONSchema describes the number-or-list shape for schema generation.
func (Capabilities) JSONSchema() *jsonschema.Schema {
	flag := &jsonschema.Schema{Type: "integer", Minimum: json.Number("0"), Maximum: json.Number("255")}
	return &jsonschema.Schema{
		OneOf: []*jsonschema.Schema{
			{Type: "null"},
			flag,
			{Type: "array", Items: flag},
		},
	}
}

func (c Capabilities) clone() Capabilities {
	if c.values == nil {
		return c
	}
	out := c
	out.values = append([]int(nil), c.values...)
	return out
}

func checkCapability(v int) error {
	if v < 0 || v > 255 {
		return fmt.Errorf("capability flag %d out of range 0-255", v)
	}
	return nil
}
