// Package command holds the table mapping symbolic WebDriver commands to HTTP verbs and paths.
package command

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/uber/webdriver-bridge/src/webdriver-lib/errors"
)

// Name identifies a symbolic remote command.
type Name string

// Variant selects a protocol dialect.
type Variant string

const (
	// W3C is the standardized WebDriver protocol.
	W3C Variant = "w3c"
	// Legacy is the JSON Wire Protocol spoken by older drivers.
	Legacy Variant = "legacy"
	// Auto defers the choice until the driver answers the new session command.
	// Lookups made before that resolve against W3C.
	Auto Variant = "auto"
)

// ParseVariant returns the Variant for s, treating an empty string as Auto.
func ParseVariant(s string) (Variant, error) {
	switch v := Variant(strings.ToLower(strings.TrimSpace(s))); v {
	case W3C, Legacy, Auto:
		return v, nil
	case "":
		return Auto, nil
	case "oss", "jsonwire":
		return Legacy, nil
	default:
		return "", fmt.Errorf("unknown protocol variant %q", s)
	}
}

// Placeholder values resolved by the dispatcher rather than the caller.
const (
	SessionIDParam = "session_id"
)

// Spec is the HTTP verb and URL template of one command.
type Spec struct {
	Method string `yaml:"method"`
	Path   string `yaml:"path"`
}

// Placeholders returns the names of the ":name" segments in the path, in order.
func (s Spec) Placeholders() []string {
	var names []string
	for _, segment := range strings.Split(s.Path, "/") {
		if strings.HasPrefix(segment, ":") && len(segment) > 1 {
			names = append(names, segment[1:])
		}
	}
	return names
}

// HasBody reports whether leftover parameters are sent as a JSON body.
func (s Spec) HasBody() bool {
	return s.Method == http.MethodPost || s.Method == http.MethodPut
}

// Validate checks that the spec can be dispatched.
func (s Spec) Validate() error {
	switch s.Method {
	case http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodPut:
	default:
		return fmt.Errorf("invalid method %q", s.Method)
	}
	if !strings.HasPrefix(s.Path, "/") {
		return fmt.Errorf("path %q must start with /", s.Path)
	}
	return nil
}

func get(path string) Spec { return Spec{Method: http.MethodGet, Path: path} }

func post(path string) Spec { return Spec{Method: http.MethodPost, Path: path} }

func del(path string) Spec { return Spec{Method: http.MethodDelete, Path: path} }

// Resolve substitutes every placeholder in the path from params and returns the
// parameters left over for the request body. Values are path escaped.
// The session id must already be present in params under SessionIDParam.
func (s Spec) Resolve(params map[string]interface{}) (string, map[string]interface{}, error) {
	rest := make(map[string]interface{}, len(params))
	for k, v := range params {
		rest[k] = v
	}

	segments := strings.Split(s.Path, "/")
	for i, segment := range segments {
		if !strings.HasPrefix(segment, ":") || len(segment) == 1 {
			continue
		}
		key := segment[1:]
		value, ok := rest[key]
		if !ok || value == nil || fmt.Sprint(value) == "" {
			return "", nil, fmt.Errorf("%w %q for %s %s", errors.ErrMissingParameter, key, s.Method, s.Path)
		}
		segments[i] = url.PathEscape(fmt.Sprint(value))
		delete(rest, key)
	}
	return strings.Join(segments, "/"), rest, nil
}
