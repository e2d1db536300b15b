package validator

import (
	"context"
	_ "embed"
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"cooperative-ai/backend/pkg/errors"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/gorillamux"
	"github.com/gin-gonic/gin"
)

//go:embed schema.yaml
var defaultSchema []byte

// Violation is one failed constraint
type Violation struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// Outcome is the result of validating one request
type Outcome struct {
	Valid      bool
	Violations []Violation
}

// OpenAPIValidator validates requests against an OpenAPI document
type OpenAPIValidator struct {
	swagger    *openapi3.T
	router     routers.Router
	schemaPath string
	mutex      sync.RWMutex
}

// Default returns a validator for the built-in API schema
func Default() (*OpenAPIValidator, error) {
	return NewOpenAPIValidator(defaultSchema)
}

// NewOpenAPIValidator creates a validator from a YAML or JSON document
func NewOpenAPIValidator(schema []byte) (*OpenAPIValidator, error) {
	loader := openapi3.NewLoader()
	swagger, err := loader.LoadFromData(schema)
	if err != nil {
		return nil, fmt.Errorf("failed to load OpenAPI schema: %w", err)
	}
	return newValidator(swagger, "")
}

// NewOpenAPIValidatorFromFile creates a validator from a schema on disk. The
// file can be re-read with ReloadSchema.
func NewOpenAPIValidatorFromFile(schemaPath string) (*OpenAPIValidator, error) {
	swagger, err := loadOpenAPISchema(schemaPath)
	if err != nil {
		return nil, err
	}
	return newValidator(swagger, schemaPath)
}

func newValidator(swagger *openapi3.T, schemaPath string) (*OpenAPIValidator, error) {
	if err := swagger.Validate(context.Background()); err != nil {
		return nil, fmt.Errorf("invalid OpenAPI schema: %w", err)
	}

	router, err := gorillamux.NewRouter(swagger)
	if err != nil {
		return nil, fmt.Errorf("error creating OpenAPI router: %w", err)
	}

	return &OpenAPIValidator{
		swagger:    swagger,
		router:     router,
		schemaPath: schemaPath,
	}, nil
}

func loadOpenAPISchema(path string) (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	swagger, err := loader.LoadFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load OpenAPI schema from %s: %w", path, err)
	}
	return swagger, nil
}

// ReloadSchema reloads a file-based schema from disk
func (v *OpenAPIValidator) ReloadSchema() error {
	if v.schemaPath == "" {
		return stderrors.New("validator was not loaded from a file")
	}

	swagger, err := loadOpenAPISchema(v.schemaPath)
	if err != nil {
		return err
	}
	fresh, err := newValidator(swagger, v.schemaPath)
	if err != nil {
		return err
	}

	v.mutex.Lock()
	defer v.mutex.Unlock()

	v.swagger = fresh.swagger
	v.router = fresh.router
	return nil
}

// Validate checks req against the operation it maps to. Requests that match
// no documented operation are valid. The request body is left readable.
func (v *OpenAPIValidator) Validate(req *http.Request) Outcome {
	v.mutex.RLock()
	router := v.router
	v.mutex.RUnlock()

	route, pathParams, err := router.FindRoute(req)
	if err != nil {
		return Outcome{Valid: true}
	}

	input := &openapi3filter.RequestValidationInput{
		Request:    req,
		PathParams: pathParams,
		Route:      route,
		Options: &openapi3filter.Options{
			MultiError:         true,
			AuthenticationFunc: openapi3filter.NoopAuthenticationFunc,
		},
	}

	if err := openapi3filter.ValidateRequest(req.Context(), input); err != nil {
		violations := collectViolations(err, nil)
		if len(violations) == 0 {
			violations = []Violation{{Field: "request", Reason: err.Error()}}
		}
		return Outcome{Violations: violations}
	}
	return Outcome{Valid: true}
}

// Middleware rejects invalid requests with a 422 before later handlers run
func (v *OpenAPIValidator) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		outcome := v.Validate(c.Request)
		if !outcome.Valid {
			c.Error(errors.NewValidationError(outcome.Violations))
			c.Abort()
			return
		}
		c.Next()
	}
}

// collectViolations flattens the error tree returned by openapi3filter.
// MultiError implements As by matching any member, so the walk switches on
// concrete types instead of using errors.As.
func collectViolations(err error, out []Violation) []Violation {
	switch e := err.(type) {
	case openapi3.MultiError:
		for _, inner := range e {
			out = collectViolations(inner, out)
		}
	case *openapi3filter.RequestError:
		switch {
		case e.Parameter != nil:
			out = appendSchemaViolations(e.Err, e.Parameter.Name, e.Reason, out)
		case e.RequestBody != nil:
			out = appendSchemaViolations(e.Err, "body", e.Reason, out)
		default:
			out = append(out, Violation{Field: "request", Reason: e.Error()})
		}
	case *openapi3.SchemaError:
		out = append(out, schemaViolation(e, "body"))
	}
	return out
}

func appendSchemaViolations(err error, field, reason string, out []Violation) []Violation {
	switch e := err.(type) {
	case openapi3.MultiError:
		for _, inner := range e {
			out = appendSchemaViolations(inner, field, reason, out)
		}
		return out
	case *openapi3.SchemaError:
		return append(out, schemaViolation(e, field))
	}

	if err != nil {
		var schemaErr *openapi3.SchemaError
		if stderrors.As(err, &schemaErr) {
			return append(out, schemaViolation(schemaErr, field))
		}
		if reason == "" {
			reason = err.Error()
		}
	}
	return append(out, Violation{Field: field, Reason: reason})
}

func schemaViolation(err *openapi3.SchemaError, base string) Violation {
	field := base
	if ptr := err.JSONPointer(); len(ptr) > 0 {
		if base == "body" {
			field = strings.Join(ptr, ".")
		} else {
			field = base + "." + strings.Join(ptr, ".")
		}
	}
	return Violation{Field: field, Reason: err.Reason}
}
