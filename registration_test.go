package eventreg

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister_DeliversUntilClosed(t *testing.T) {
	l := newTestLoop(t, WithManualDispatch())

	var c counter
	reg, err := Register(l, Key("A", 1), c.onEvent)
	require.NoError(t, err)
	assert.Equal(t, Key("A", 1), reg.Key())

	require.NoError(t, l.Post(context.Background(), Key("A", 1), []byte("x")))
	require.NoError(t, l.Post(context.Background(), Key("A", 2), nil))
	require.NoError(t, l.Run(context.Background(), 10*time.Millisecond))
	events, _ := c.counts()
	assert.Equal(t, 1, events)
	assert.Equal(t, []byte("x"), c.data[0])

	reg.Close()
	require.NoError(t, l.Post(context.Background(), Key("A", 1), nil))
	require.NoError(t, l.Run(context.Background(), 10*time.Millisecond))
	events, _ = c.counts()
	assert.Equal(t, 1, events)
}

func TestRegister_RejectsArguments(t *testing.T) {
	api := newFakeAPI()

	_, err := Register(api, Key("A", 1), nil)
	assert.ErrorIs(t, err, CodeInvalidArg)
	_, err = Register(nil, Key("A", 1), func(EventKey, []byte) {})
	assert.ErrorIs(t, err, CodeInvalidArg)
	assert.Zero(t, api.registered)
}

func TestRegister_ServiceFailure(t *testing.T) {
	api := newFakeAPI()
	api.registerErr = CodeNoMem

	reg, err := Register(api, Key("A", 1), func(EventKey, []byte) {})
	assert.Nil(t, reg)

	var regErr *RegisterError
	require.ErrorAs(t, err, &regErr)
	assert.Equal(t, Key("A", 1), regErr.Key)
	assert.Equal(t, CodeNoMem, regErr.Code)
	assert.ErrorIs(t, err, CodeNoMem)

	l := newTestLoop(t)
	_, err = Register(l, Key(AnyBase, 4), func(EventKey, []byte) {})
	assert.ErrorIs(t, err, CodeInvalidArg)
}

func TestRegistration_CloseIsIdempotent(t *testing.T) {
	api := newFakeAPI()
	reg, err := Register(api, Key("A", 1), func(EventKey, []byte) {})
	require.NoError(t, err)

	reg.Close()
	reg.Close()
	assert.Equal(t, 1, api.unregisterCalls())
	assert.Zero(t, api.active())

	var nilReg *Registration
	assert.NotPanics(t, nilReg.Close)
}

func TestRegistration_CloseFromCallback(t *testing.T) {
	api := newFakeAPI()

	var reg *Registration
	calls := 0
	reg, err := Register(api, Key("A", 1), func(EventKey, []byte) {
		calls++
		reg.Close()
	})
	require.NoError(t, err)

	api.deliver(Key("A", 1), nil)
	api.deliver(Key("A", 1), nil)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, api.unregisterCalls())
}

func TestRegistration_UnregisterFailureIsLogged(t *testing.T) {
	logger, buf := newTestLogger()
	api := newFakeAPI()
	reg, err := Register(api, Key("A", 1), func(EventKey, []byte) {}, WithRegistrationLogger(logger))
	require.NoError(t, err)

	api.unregisterErr = CodeInvalidState
	assert.NotPanics(t, reg.Close)

	out := buf.String()
	assert.Contains(t, out, `"msg":"teardown failed"`)
	assert.Contains(t, out, `"op":"unregister"`)
	assert.Contains(t, out, `"key":"A/1"`)
}
