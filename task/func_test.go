package task

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"
)

func TestFunc_InvokeAsync_Success(t *testing.T) {
	defer goleak.VerifyNone(t)

	f := NewFunc(func(context.Context) (int, error) { return 42, nil })

	ch, err := f.InvokeAsync(context.Background())
	assert.NoError(t, err)

	o := <-ch
	assert.NoError(t, o.Err)
	assert.Equal(t, 42, o.Value)
	assert.Equal(t, 42, f.Result())
}

func TestFunc_WithPrepare(t *testing.T) {
	defer goleak.VerifyNone(t)

	var prepared bool
	f := NewFunc(func(context.Context) (int, error) { return 1, nil }).
		WithPrepare(func(context.Context) error {
			prepared = true
			return nil
		})

	assert.NoError(t, f.Prepare(context.Background()))
	assert.True(t, prepared)
}

func TestFunc_Result_PanicsBeforeCompletion(t *testing.T) {
	f := NewFunc(func(context.Context) (int, error) { return 1, nil })
	assert.Panics(t, func() { f.Result() })
}

func TestFunc_InvokeAsync_Error(t *testing.T) {
	defer goleak.VerifyNone(t)

	wantErr := errors.New("boom")
	f := NewFunc(func(context.Context) (int, error) { return 0, wantErr })

	ch, err := f.InvokeAsync(context.Background())
	assert.NoError(t, err)

	o := <-ch
	assert.ErrorIs(t, o.Err, wantErr)
	assert.Panics(t, func() { f.Result() })
}

func TestHot_InvokeAsync_RelaysOutcome(t *testing.T) {
	defer goleak.VerifyNone(t)

	src := make(chan Outcome, 1)
	src <- Outcome{Value: "hello"}
	close(src)

	h := NewHot[string](src)
	assert.True(t, h.IsHot())

	ch, err := h.InvokeAsync(context.Background())
	assert.NoError(t, err)

	o := <-ch
	assert.NoError(t, o.Err)
	assert.Equal(t, "hello", o.Value)
	assert.Equal(t, "hello", h.Result())
}

func TestHot_InvokeAsync_ContextCanceled(t *testing.T) {
	defer goleak.VerifyNone(t)

	src := make(chan Outcome)
	h := NewHot[string](src)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ch, err := h.InvokeAsync(ctx)
	assert.NoError(t, err)

	o := <-ch
	assert.ErrorIs(t, o.Err, context.Canceled)
}

func TestAs(t *testing.T) {
	v, err := As[int](Outcome{Value: 7})
	assert.NoError(t, err)
	assert.Equal(t, 7, v)

	_, err = As[int](Outcome{Value: "not an int"})
	assert.Error(t, err)

	_, err = As[int](Outcome{Err: errors.New("boom")})
	assert.Error(t, err)
}
