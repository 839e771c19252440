// Package contract validates request payloads against JSON schemas before
// they reach the payment flow.
package contract

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// processPaymentSchema covers the card details submitted when processing a
// payment intent. Card numbers are digits only, PANs run 12 to 19 digits.
const processPaymentSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"title": "ProcessPaymentRequest",
	"type": "object",
	"properties": {
		"card_number": {
			"type": "string",
			"pattern": "^[0-9]{12,19}$"
		},
		"cvv": {
			"type": "string",
			"pattern": "^[0-9]{3,4}$"
		}
	},
	"required": ["card_number"],
	"additionalProperties": false
}`

// Validator checks request bodies against a compiled JSON schema.
type Validator struct {
	schema *gojsonschema.Schema
}

// NewProcessPaymentValidator builds the validator for the process-payment body.
func NewProcessPaymentValidator() (*Validator, error) {
	return newValidator(processPaymentSchema)
}

func newValidator(rawSchema string) (*Validator, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(rawSchema))
	if err != nil {
		return nil, fmt.Errorf("compiling schema: %w", err)
	}
	return &Validator{schema: schema}, nil
}

// Validate returns whether the body conforms to the schema, along with the
// individual violation messages when it does not.
func (v *Validator) Validate(body []byte) (bool, []string, error) {
	result, err := v.schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return false, nil, fmt.Errorf("validating request body: %w", err)
	}
	if result.Valid() {
		return true, nil, nil
	}
	var violations []string
	for _, desc := range result.Errors() {
		violations = append(violations, desc.String())
	}
	return false, violations, nil
}

// FormatErrors joins violation messages into a single client-facing string.
func FormatErrors(violations []string) string {
	if len(violations) == 0 {
		return ""
	}
	return "Validation errors: " + strings.Join(violations, "; ")
}
