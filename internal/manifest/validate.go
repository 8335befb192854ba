package manifest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ValidationError holds every structural problem found in a manifest.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: invalid manifest:\n  - %s", ErrDecode, strings.Join(e.Errors, "\n  - "))
}

// Is lets callers match a ValidationError against ErrDecode.
func (e *ValidationError) Is(target error) bool {
	return target == ErrDecode
}

// Validate checks m for missing required fields.
// Returns a list of validation error messages (empty if valid).
func Validate(m *Manifest) []string {
	err := validate.Struct(m)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{err.Error()}
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.TrimPrefix(fe.Namespace(), "Manifest.")
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s: is required", field))
		default:
			msgs = append(msgs, fmt.Sprintf("%s: failed '%s' check", field, fe.Tag()))
		}
	}
	return msgs
}

// Keys that must be present and non-null at each level of a manifest
// document. language, capabilities, website and github are optional.
var (
	manifestKeys   = []string{"buildTime", "builtWith", "repository", "sources"}
	builtWithKeys  = []string{"toolchain", "types"}
	repositoryKeys = []string{"name", "description"}
	extensionKeys  = []string{"id", "name", "description", "version", "icon", "contentRating", "badges", "developers"}
	badgeKeys      = []string{"label", "textColor", "backgroundColor"}
	developerKeys  = []string{"name"}
)

// CheckFields reports required keys that are missing or null in the raw
// JSON of a manifest. Holes in badges and developers are allowed; holes in
// sources are not. data must already decode into a Manifest.
func CheckFields(data []byte) []string {
	doc := object(data)
	errs := missingKeys(doc, "", manifestKeys)

	if raw, ok := present(doc, "builtWith"); ok {
		errs = append(errs, missingKeys(object(raw), "builtWith.", builtWithKeys)...)
	}
	if raw, ok := present(doc, "repository"); ok {
		errs = append(errs, missingKeys(object(raw), "repository.", repositoryKeys)...)
	}

	raw, ok := present(doc, "sources")
	if !ok {
		return errs
	}
	for i, item := range array(raw) {
		prefix := fmt.Sprintf("sources[%d]", i)
		if isNull(item) {
			errs = append(errs, prefix+": must not be null")
			continue
		}
		ext := object(item)
		errs = append(errs, missingKeys(ext, prefix+".", extensionKeys)...)
		errs = append(errs, holes(ext, "badges", prefix, badgeKeys)...)
		errs = append(errs, holes(ext, "developers", prefix, developerKeys)...)
	}
	return errs
}

// holes checks the non-null elements of a list that may contain nulls.
func holes(obj map[string]json.RawMessage, key, prefix string, keys []string) []string {
	raw, ok := present(obj, key)
	if !ok {
		return nil
	}
	var errs []string
	for i, item := range array(raw) {
		if isNull(item) {
			continue
		}
		errs = append(errs, missingKeys(object(item), fmt.Sprintf("%s.%s[%d].", prefix, key, i), keys)...)
	}
	return errs
}

func missingKeys(obj map[string]json.RawMessage, prefix string, keys []string) []string {
	var errs []string
	for _, k := range keys {
		raw, ok := obj[k]
		switch {
		case !ok:
			errs = append(errs, fmt.Sprintf("%s%s: is required", prefix, k))
		case isNull(raw):
			errs = append(errs, fmt.Sprintf("%s%s: must not be null", prefix, k))
		}
	}
	return errs
}

func present(obj map[string]json.RawMessage, key string) (json.RawMessage, bool) {
	raw, ok := obj[key]
	if !ok || isNull(raw) {
		return nil, false
	}
	return raw, true
}

// object and array ignore errors: the typed decode has already checked the
// shape of every value they are given.
func object(raw []byte) map[string]json.RawMessage {
	var m map[string]json.RawMessage
	_ = json.Unmarshal(raw, &m)
	return m
}

func array(raw []byte) []json.RawMessage {
	var a []json.RawMessage
	_ = json.Unmarshal(raw, &a)
	return a
}

func isNull(raw []byte) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
