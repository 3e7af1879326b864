package udf

import (
	"fmt"
	"strings"

	"github.com/wippyai/wasm-udf/errors"
)

// Reference is a parsed module!method definition string.
type Reference struct {
	Module string
	Method string
}

// ParseReference splits a definition string at its single '!'.
func ParseReference(s string) (Reference, error) {
	parts := strings.Split(s, "!")
	if len(parts) != 2 {
		return Reference{}, errors.InvalidDefinition(
			fmt.Sprintf("bad module/method format %q: want module!method", s))
	}
	if parts[0] == "" {
		return Reference{}, errors.InvalidDefinition(fmt.Sprintf("missing module in %q", s))
	}
	if parts[1] == "" {
		return Reference{}, errors.InvalidDefinition(fmt.Sprintf("missing method in %q", s))
	}
	return Reference{Module: parts[0], Method: parts[1]}, nil
}

func (r Reference) String() string {
	return r.Module + "!" + r.Method
}
