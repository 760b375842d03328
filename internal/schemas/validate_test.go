package schemas

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateRegistry_Valid(t *testing.T) {
	data := []byte(`[
		{"domain": "jobs.example.com", "description": ["#desc"], "title": ["h1"], "listing_paths": ["/jobs/"]},
		{"domain": "careers.acme.io", "description": [".posting", ".body"]}
	]`)

	assert.NoError(t, ValidateRegistry(data))
}

func TestValidateRegistry_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not an array", `{"domain": "x.com", "description": ["#d"]}`},
		{"missing description", `[{"domain": "x.com"}]`},
		{"empty description list", `[{"domain": "x.com", "description": []}]`},
		{"unknown field", `[{"domain": "x.com", "description": ["#d"], "salary": ["#s"]}]`},
		{"bad domain", `[{"domain": "x com/", "description": ["#d"]}]`},
		{"wrong type", `[{"domain": "x.com", "description": "#d"}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRegistry([]byte(tt.data))
			require.Error(t, err)

			var validationErr *ValidationError
			require.True(t, errors.As(err, &validationErr), "error should be ValidationError type")
			assert.NotEmpty(t, validationErr.Errors)
		})
	}
}

func TestValidateRegistry_MalformedJSON(t *testing.T) {
	err := ValidateRegistry([]byte(`[{ invalid json }`))
	require.Error(t, err)

	var loadErr *SchemaLoadError
	assert.True(t, errors.As(err, &loadErr))
}

func TestValidateJSONString(t *testing.T) {
	schema := `{"type": "object", "required": ["name"], "properties": {"name": {"type": "string"}}}`

	assert.NoError(t, ValidateJSONString(schema, `{"name": "coverme"}`))

	err := ValidateJSONString(schema, `{"name": 3}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")
}
