package operation_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphgate/graphgate/cancellation"
	"github.com/graphgate/graphgate/operation"
)

const testSDL = `
type Query {
	user(id: ID!): User
	users: [User!]!
}

type User {
	id: ID!
	name: String!
	email: String
}
`

func testState(t *testing.T) *operation.SchemaState {
	t.Helper()
	state, err := operation.NewSchemaState(testSDL, "2.9")
	require.NoError(t, err)
	return state
}

func TestParse(t *testing.T) {
	doc, err := operation.Parse(operation.Operation{
		Query: `query GetUser($id: ID!) { user(id: $id) { id name } }`,
		Name:  "GetUser",
	})
	require.NoError(t, err)
	require.Len(t, doc.Operations, 1)
	assert.Equal(t, "GetUser", doc.Operations[0].Name)
}

func TestParseSyntaxError(t *testing.T) {
	_, err := operation.Parse(operation.Operation{Query: `query { user( }`})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "graphgate/operation: parse")
}

func TestValidate(t *testing.T) {
	state := testState(t)

	doc, err := operation.Parse(operation.Operation{Query: `{ users { id name } }`})
	require.NoError(t, err)
	require.NoError(t, operation.Validate(state.Schema(), doc))
}

func TestValidateUnknownField(t *testing.T) {
	state := testState(t)

	doc, err := operation.Parse(operation.Operation{Query: `{ users { id nickname } }`})
	require.NoError(t, err)

	err = operation.Validate(state.Schema(), doc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "graphgate/operation: validate")
}

func TestSchemaStateID(t *testing.T) {
	a, err := operation.NewSchemaState(testSDL, "2.9")
	require.NoError(t, err)
	b, err := operation.NewSchemaState(testSDL, "2.9")
	require.NoError(t, err)
	assert.Equal(t, a.ID(), b.ID(), "same inputs must produce the same ID")

	// A federation version bump changes the ID even with identical SDL.
	c, err := operation.NewSchemaState(testSDL, "2.10")
	require.NoError(t, err)
	assert.NotEqual(t, a.ID(), c.ID())
}

func TestSchemaStateInvalidSDL(t *testing.T) {
	_, err := operation.NewSchemaState(`type Query {`, "2.9")
	require.Error(t, err)
}

func TestPlannerConfigHash(t *testing.T) {
	base := operation.PlannerConfig{GenerateFragments: true}
	assert.Equal(t, base.Hash(), base.Hash())

	changed := operation.PlannerConfig{GenerateFragments: true, IncludeDefer: true}
	assert.NotEqual(t, base.Hash(), changed.Hash())

	// Map iteration order must not leak into the hash.
	v1 := operation.PlannerConfig{SubgraphVersions: map[string]string{"users": "1", "orders": "2"}}
	v2 := operation.PlannerConfig{SubgraphVersions: map[string]string{"orders": "2", "users": "1"}}
	assert.Equal(t, v1.Hash(), v2.Hash())
}

func TestParseJob(t *testing.T) {
	payload := operation.ParseJob(operation.Operation{Query: `{ users { id } }`})

	v, err := payload(context.Background(), cancellation.Background())
	require.NoError(t, err)
	assert.NotNil(t, v)
}

func TestParseJobCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	payload := operation.ParseJob(operation.Operation{Query: `{ users { id } }`})
	_, err := payload(ctx, cancellation.NewToken(ctx, cancellation.ModeEnforce))
	assert.ErrorIs(t, err, cancellation.ErrCancelled)
}

func TestValidateJob(t *testing.T) {
	state := testState(t)

	payload := operation.ValidateJob(operation.Operation{Query: `{ users { id } }`}, state)
	v, err := payload(context.Background(), cancellation.Background())
	require.NoError(t, err)
	assert.NotNil(t, v)
}

func TestValidateJobDeadlineEnforced(t *testing.T) {
	state := testState(t)
	tok := cancellation.NewToken(context.Background(), cancellation.ModeEnforce,
		cancellation.WithDeadline(time.Now().Add(-time.Second)))

	payload := operation.ValidateJob(operation.Operation{Query: `{ users { id } }`}, state)
	_, err := payload(context.Background(), tok)
	assert.ErrorIs(t, err, cancellation.ErrDeadlineExceeded)
}
