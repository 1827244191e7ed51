package node

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsResponseFormatUnsupportedError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"response_format", fmt.Errorf("400: response_format is not supported by this model"), true},
		{"json_schema", fmt.Errorf("Invalid value for json_schema"), true},
		{"response_schema", fmt.Errorf("response_schema rejected"), true},
		{"unknown parameter", fmt.Errorf("unknown parameter: 'response_format'"), true},
		{"parse failure", fmt.Errorf("failed to parse structured output"), true},
		{"rate limit", fmt.Errorf("429: rate limit exceeded"), false},
		{"timeout", fmt.Errorf("context deadline exceeded"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsResponseFormatUnsupportedError(tc.err))
		})
	}
}
