package summary

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed results.schema.json
var resultsSchema string

var (
	compileOnce    sync.Once
	compiledSchema *jsonschema.Schema
	compileErr     error
)

// SchemaErrors is the list of problems found in a results file.
type SchemaErrors []error

// Error implements the error interface for SchemaErrors
func (se SchemaErrors) Error() string {
	if len(se) == 0 {
		return ""
	}

	var sb strings.Builder
	for i, err := range se {
		if i > 0 {
			sb.WriteString("; ")
		}
		sb.WriteString(err.Error())
	}
	return sb.String()
}

func schema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("results.schema.json", strings.NewReader(resultsSchema)); err != nil {
			compileErr = fmt.Errorf("invalid schema: %w", err)
			return
		}
		compiledSchema, compileErr = compiler.Compile("results.schema.json")
		if compileErr != nil {
			compileErr = fmt.Errorf("invalid schema: %w", compileErr)
		}
	})
	return compiledSchema, compileErr
}

// ValidateResults checks raw against the results schema. Schema violations
// are returned as SchemaErrors.
func ValidateResults(raw []byte) error {
	s, err := schema()
	if err != nil {
		return err
	}

	var doc interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}

	if err := s.Validate(doc); err != nil {
		var verr *jsonschema.ValidationError
		if errors.As(err, &verr) {
			return extractValidationErrors(verr)
		}
		return SchemaErrors{err}
	}
	return nil
}

// extractValidationErrors flattens a jsonschema.ValidationError tree
func extractValidationErrors(err *jsonschema.ValidationError) SchemaErrors {
	var errs SchemaErrors

	if err.Message != "" && len(err.Causes) == 0 {
		errs = append(errs, fmt.Errorf("%s: %s", location(err.InstanceLocation), err.Message))
	}
	for _, cause := range err.Causes {
		errs = append(errs, extractValidationErrors(cause)...)
	}
	if len(errs) == 0 {
		errs = append(errs, err)
	}
	return errs
}

func location(ptr string) string {
	if ptr == "" {
		return "/"
	}
	return ptr
}
