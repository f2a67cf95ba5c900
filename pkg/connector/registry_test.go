package connector_test

import (
	"context"
	"errors"
	"testing"

	"github.com/routinehq/routine/pkg/connector"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoAction(id string) (*connector.Action, connector.HandlerFunc) {
	action := &connector.Action{
		ID:   id,
		Name: "Echo",
		PayloadSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"value": map[string]any{"type": "string"},
			},
			"required": []string{"value"},
		},
	}

	handler := func(_ context.Context, payload map[string]any, userID string) (*connector.Result, error) {
		return &connector.Result{
			OK:      true,
			Summary: "echoed",
			Data:    map[string]any{"value": payload["value"], "user_id": userID},
		}, nil
	}

	return action, handler
}

func TestRegistry_Register(t *testing.T) {
	t.Parallel()

	registry := connector.NewRegistry()

	action, handler := echoAction("test.echo")
	require.NoError(t, registry.Register(action, handler))

	err := registry.Register(action, handler)
	require.ErrorIs(t, err, connector.ErrDuplicateAction)
}

func TestRegistry_RegisterRejectsIncompleteRegistrations(t *testing.T) {
	t.Parallel()

	registry := connector.NewRegistry()

	action, handler := echoAction("test.echo")

	require.Error(t, registry.Register(nil, handler))
	require.Error(t, registry.Register(&connector.Action{}, handler))
	require.Error(t, registry.Register(action, nil))
}

func TestRegistry_ActionsSortedByID(t *testing.T) {
	t.Parallel()

	registry := connector.NewRegistry()

	for _, id := range []string{"zeta.one", "alpha.two", "mid.three"} {
		action, handler := echoAction(id)
		require.NoError(t, registry.Register(action, handler))
	}

	actions := registry.Actions()
	require.Len(t, actions, 3)
	assert.Equal(t, "alpha.two", actions[0].ID)
	assert.Equal(t, "mid.three", actions[1].ID)
	assert.Equal(t, "zeta.one", actions[2].ID)
}

func TestRegistry_Lookup(t *testing.T) {
	t.Parallel()

	registry := connector.NewRegistry()

	action, handler := echoAction("test.echo")
	require.NoError(t, registry.Register(action, handler))

	found, exists := registry.Lookup("test.echo")
	require.True(t, exists)
	assert.Equal(t, "test.echo", found.ID)

	_, exists = registry.Lookup("test.missing")
	assert.False(t, exists)
}

func TestRegistry_Invoke(t *testing.T) {
	t.Parallel()

	registry := connector.NewRegistry()

	action, handler := echoAction("test.echo")
	require.NoError(t, registry.Register(action, handler))

	result, err := registry.Invoke(context.Background(), "test.echo", map[string]any{"value": "hello"}, "user-1")
	require.NoError(t, err)
	assert.True(t, result.OK)
	assert.Equal(t, "hello", result.Data["value"])
	assert.Equal(t, "user-1", result.Data["user_id"])
}

func TestRegistry_InvokeUnknownAction(t *testing.T) {
	t.Parallel()

	registry := connector.NewRegistry()

	_, err := registry.Invoke(context.Background(), "test.missing", map[string]any{}, "user-1")
	require.ErrorIs(t, err, connector.ErrUnknownAction)
}

func TestRegistry_InvokeValidatesPayload(t *testing.T) {
	t.Parallel()

	registry := connector.NewRegistry()

	action, handler := echoAction("test.echo")
	require.NoError(t, registry.Register(action, handler))

	_, err := registry.Invoke(context.Background(), "test.echo", map[string]any{}, "user-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JSON schema validation failed")

	_, err = registry.Invoke(context.Background(), "test.echo", map[string]any{"value": 42}, "user-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid payload for action test.echo")
}

func TestRegistry_InvokeSkipsValidationWithoutSchema(t *testing.T) {
	t.Parallel()

	registry := connector.NewRegistry()

	action := &connector.Action{ID: "test.free", Name: "Free Form"}
	handler := func(_ context.Context, _ map[string]any, _ string) (*connector.Result, error) {
		return &connector.Result{OK: true, Summary: "ran"}, nil
	}

	require.NoError(t, registry.Register(action, handler))

	result, err := registry.Invoke(context.Background(), "test.free", map[string]any{"anything": true}, "user-1")
	require.NoError(t, err)
	assert.True(t, result.OK)
}

func TestRegistry_InvokePropagatesHandlerError(t *testing.T) {
	t.Parallel()

	registry := connector.NewRegistry()

	handlerErr := errors.New("downstream unavailable")
	action := &connector.Action{ID: "test.broken", Name: "Broken"}
	handler := func(_ context.Context, _ map[string]any, _ string) (*connector.Result, error) {
		return nil, handlerErr
	}

	require.NoError(t, registry.Register(action, handler))

	_, err := registry.Invoke(context.Background(), "test.broken", nil, "user-1")
	require.ErrorIs(t, err, handlerErr)
}
