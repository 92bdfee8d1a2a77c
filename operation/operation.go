package operation

import (
	"context"
	"fmt"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"
	"github.com/vektah/gqlparser/v2/validator"

	"github.com/graphgate/graphgate/cancellation"
	"github.com/graphgate/graphgate/job"
)

// Operation is a GraphQL request to plan: the raw query text and the
// operation name selecting one of possibly several operations in the
// document. An empty Name means the document's sole operation.
type Operation struct {
	Query string
	Name  string
}

// Parse parses the operation's query text into an AST document.
func Parse(op Operation) (*ast.QueryDocument, error) {
	doc, err := parser.ParseQuery(&ast.Source{Input: op.Query})
	if err != nil {
		return nil, fmt.Errorf("graphgate/operation: parse: %w", err)
	}
	return doc, nil
}

// Validate checks a parsed document against the schema.
func Validate(schema *ast.Schema, doc *ast.QueryDocument) error {
	if errs := validator.Validate(schema, doc); len(errs) > 0 {
		return fmt.Errorf("graphgate/operation: validate: %w", errs)
	}
	return nil
}

// ParseJob returns a job payload that parses op, checking for
// cancellation before starting.
func ParseJob(op Operation) job.Payload {
	return func(_ context.Context, tok *cancellation.Token) (any, error) {
		if err := tok.Check(); err != nil {
			return nil, err
		}
		return Parse(op)
	}
}

// ValidateJob returns a job payload that parses op and validates it
// against state's schema, with a cancellation checkpoint between the
// two phases.
func ValidateJob(op Operation, state *SchemaState) job.Payload {
	return func(_ context.Context, tok *cancellation.Token) (any, error) {
		if err := tok.Check(); err != nil {
			return nil, err
		}
		doc, err := Parse(op)
		if err != nil {
			return nil, err
		}
		if err := tok.Check(); err != nil {
			return nil, err
		}
		if err := Validate(state.Schema(), doc); err != nil {
			return nil, err
		}
		return doc, nil
	}
}
