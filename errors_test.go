package eventreg

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCode_String(t *testing.T) {
	assert.Equal(t, "invalid state", CodeInvalidState.String())
	assert.Equal(t, "eventreg: timeout", CodeTimeout.Error())
	assert.Equal(t, "code 0x999", Code(0x999).String())
}

func TestErrors_MatchCodes(t *testing.T) {
	assert.ErrorIs(t, ErrClosed, CodeInvalidState)

	argErr := &ArgumentError{Op: "register", Arg: "callback", Reason: "must not be nil"}
	assert.ErrorIs(t, argErr, CodeInvalidArg)
	assert.Equal(t, "eventreg: register: invalid argument callback: must not be nil", argErr.Error())

	regErr := &RegisterError{Op: "create timer", Key: Key("A", 1), Code: CodeNoMem}
	assert.ErrorIs(t, regErr, CodeNoMem)
	assert.Contains(t, regErr.Error(), "A/1")

	cause := errors.New("boom")
	tdErr := &TeardownError{Op: "unregister", Key: Key("A", 1), Err: cause}
	assert.ErrorIs(t, tdErr, cause)
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, CodeNotFound, codeOf(CodeNotFound))
	assert.Equal(t, CodeTimeout, codeOf(fmt.Errorf("wrapped: %w", CodeTimeout)))
	assert.Equal(t, CodeInvalidArg, codeOf(&ArgumentError{}))
	assert.Equal(t, CodeFail, codeOf(errors.New("opaque")))

	var regErr *RegisterError
	err := fmt.Errorf("outer: %w", &RegisterError{Op: "register", Code: CodeInvalidState})
	require.ErrorAs(t, err, &regErr)
	assert.Equal(t, CodeInvalidState, codeOf(err))
}
