package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStandardError_ErrorIncludesCauseWhenPresent(t *testing.T) {
	cause := errors.New("underlying")
	se := NewWithCause(ErrCodeConfiguration, "config", "load", "failed to load", cause)
	assert.Contains(t, se.Error(), "CONFIGURATION")
	assert.Contains(t, se.Error(), "failed to load")
	assert.Contains(t, se.Error(), "underlying")
}

func TestStandardError_IsMatchesByCode(t *testing.T) {
	a := New(ErrCodeBackupOperation, "backup", "run", "boom")
	b := New(ErrCodeBackupOperation, "backup", "other", "different message")
	assert.True(t, a.Is(b))

	c := New(ErrCodeSyncOperation, "sync", "run", "boom")
	assert.False(t, a.Is(c))
}

func TestStandardError_WithContextAccumulates(t *testing.T) {
	se := New(ErrCodeValidation, "config", "validate", "bad field").
		WithContext("field", "name").
		WithContext("value", "")
	assert.Equal(t, "name", se.Context["field"])
	assert.Equal(t, "", se.Context["value"])
}

func TestIsCodeAndGetCode(t *testing.T) {
	se := New(ErrCodeLockBusy, "lock", "acquire", "busy")
	assert.True(t, IsCode(se, ErrCodeLockBusy))
	assert.False(t, IsCode(se, ErrCodeLockUnavailable))
	assert.Equal(t, ErrCodeLockBusy, GetCode(se))
	assert.Equal(t, ErrCodeUnknown, GetCode(errors.New("plain")))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(New(ErrCodeSyncOperation, "sync", "sync", "timeout")))
	assert.False(t, IsRetryable(New(ErrCodeValidation, "config", "validate", "bad")))
}

func TestMultiError_AccumulatesWithoutShortCircuiting(t *testing.T) {
	me := NewMultiError("reporter", "report")
	assert.False(t, me.HasErrors())
	assert.Nil(t, me.ToError())

	me.Add(NewReporterError("webhook", "timed out", nil))
	me.Add(NewReporterError("prometheus", "connection refused", nil))

	assert.True(t, me.HasErrors())
	err := me.ToError()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
	assert.Contains(t, err.Error(), "connection refused")
}

func TestMultiError_AddNilIsNoOp(t *testing.T) {
	me := NewMultiError("reporter", "report")
	me.Add(nil)
	assert.False(t, me.HasErrors())
}
