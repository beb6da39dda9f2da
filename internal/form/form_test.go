package form

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoginSchema(t *testing.T) {
	s := LoginSchema()

	tests := []struct {
		name   string
		values Values
		want   map[Field]ErrorKind
	}{
		{
			name:   "empty",
			values: Values{},
			want:   map[Field]ErrorKind{FieldEmail: KindRequired, FieldPassword: KindRequired},
		},
		{
			name:   "bad email",
			values: Values{FieldEmail: "not-an-email", FieldPassword: "secret1"},
			want:   map[Field]ErrorKind{FieldEmail: KindFormat},
		},
		{
			name:   "short password",
			values: Values{FieldEmail: "a@b.com", FieldPassword: "12345"},
			want:   map[Field]ErrorKind{FieldPassword: KindMinLength},
		},
		{
			name:   "valid",
			values: Values{FieldEmail: "a@b.com", FieldPassword: "123456"},
			want:   map[Field]ErrorKind{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.Validate(tt.values)
			require.Len(t, got, len(tt.want))
			for f, kind := range tt.want {
				assert.Equal(t, kind, got[f].Kind, "field %s", f)
			}
		})
	}
}

func TestSignupSchemaMismatch(t *testing.T) {
	s := SignupSchema()

	errs := s.Validate(Values{
		FieldEmail:           "a@b.com",
		FieldPassword:        "abcdef",
		FieldConfirmPassword: "abcdeg",
	})
	require.Len(t, errs, 1)
	assert.Equal(t, KindMismatch, errs[FieldConfirmPassword].Kind)

	errs = s.Validate(Values{
		FieldEmail:           "a@b.com",
		FieldPassword:        "abcdef",
		FieldConfirmPassword: "abcdef",
	})
	assert.Empty(t, errs)
}

func TestMinLengthParam(t *testing.T) {
	fe := LoginSchema().ValidateField(Values{FieldPassword: "abc"}, FieldPassword)
	require.NotNil(t, fe)
	assert.Equal(t, KindMinLength, fe.Kind)
	assert.Equal(t, "6", fe.Param)
}

func TestDisplayNameSchemaTrims(t *testing.T) {
	s := DisplayNameSchema()
	fe := s.ValidateField(Values{FieldDisplayName: "   "}, FieldDisplayName)
	require.NotNil(t, fe)
	assert.Equal(t, KindRequired, fe.Kind)
	assert.Nil(t, s.ValidateField(Values{FieldDisplayName: "An"}, FieldDisplayName))
}

func TestUnknownFieldIsValid(t *testing.T) {
	assert.Nil(t, ForgotPasswordSchema().ValidateField(Values{}, FieldPassword))
	assert.False(t, ForgotPasswordSchema().Has(FieldPassword))
}

func TestStateErrorsHiddenUntilTouched(t *testing.T) {
	st := NewState(LoginSchema(), PolicyBlock)
	defer st.Close()

	st.Set(FieldEmail, "nope")
	_, visible := st.VisibleError(FieldEmail)
	assert.False(t, visible)
	fe, ok := st.Error(FieldEmail)
	require.True(t, ok)
	assert.Equal(t, KindFormat, fe.Kind)

	st.Blur(FieldEmail)
	fe, visible = st.VisibleError(FieldEmail)
	require.True(t, visible)
	assert.Equal(t, KindFormat, fe.Kind)

	st.Set(FieldEmail, "a@b.com")
	_, visible = st.VisibleError(FieldEmail)
	assert.False(t, visible)
}

func TestStateConfirmRevalidatesOnPasswordChange(t *testing.T) {
	st := NewState(SignupSchema(), PolicyBlock)
	defer st.Close()

	st.Set(FieldPassword, "abcdef")
	st.Set(FieldConfirmPassword, "abcdef")
	_, bad := st.Error(FieldConfirmPassword)
	assert.False(t, bad)

	st.Set(FieldPassword, "abcdefg")
	fe, bad := st.Error(FieldConfirmPassword)
	require.True(t, bad)
	assert.Equal(t, KindMismatch, fe.Kind)
}

func TestSubmitBlockedWhenInvalid(t *testing.T) {
	st := NewState(LoginSchema(), PolicyBlock)
	defer st.Close()
	st.Set(FieldEmail, "bad")

	called := false
	err := st.Submit(func(context.Context, Values) error {
		called = true
		return nil
	})
	require.ErrorIs(t, err, ErrInvalid)
	assert.False(t, called)
	assert.True(t, st.Touched(FieldEmail))
	assert.True(t, st.Touched(FieldPassword))
	assert.False(t, st.Submitting())
}

func TestSubmitAnywayDispatchesWithErrors(t *testing.T) {
	st := NewState(LoginSchema(), PolicySubmitAnyway)
	defer st.Close()
	st.Set(FieldEmail, "bad")

	var got Values
	err := st.Submit(func(_ context.Context, v Values) error {
		got = v
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "bad", got[FieldEmail])

	_, visible := st.VisibleError(FieldEmail)
	assert.True(t, visible)
}

func TestSubmitPassesActionError(t *testing.T) {
	st := NewState(ForgotPasswordSchema(), PolicyBlock)
	defer st.Close()
	st.Set(FieldEmail, "a@b.com")

	boom := errors.New("boom")
	err := st.Submit(func(context.Context, Values) error { return boom })
	require.ErrorIs(t, err, boom)
	assert.False(t, st.Submitting())
}

func TestSubmitSingleSlot(t *testing.T) {
	st := NewState(ForgotPasswordSchema(), PolicyBlock)
	defer st.Close()
	st.Set(FieldEmail, "a@b.com")

	release := make(chan struct{})
	started := make(chan struct{})
	var dispatched atomic.Int32

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = st.Submit(func(context.Context, Values) error {
			dispatched.Add(1)
			close(started)
			<-release
			return nil
		})
	}()

	<-started
	err := st.Submit(func(context.Context, Values) error {
		dispatched.Add(1)
		return nil
	})
	require.ErrorIs(t, err, ErrSubmitInFlight)

	close(release)
	wg.Wait()
	assert.Equal(t, int32(1), dispatched.Load())

	require.NoError(t, st.Submit(func(context.Context, Values) error { return nil }))
}

func TestCloseCancelsInFlight(t *testing.T) {
	st := NewState(ForgotPasswordSchema(), PolicyBlock)
	st.Set(FieldEmail, "a@b.com")

	ctx, err := st.Begin()
	require.NoError(t, err)

	st.Close()
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("context not canceled by Close")
	}

	assert.False(t, st.Finish(), "result after close must be dropped")

	_, err = st.Begin()
	require.ErrorIs(t, err, ErrClosed)
	st.Close()
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, PolicyBlock, p)

	p, err = ParsePolicy("submit-anyway")
	require.NoError(t, err)
	assert.Equal(t, PolicySubmitAnyway, p)

	_, err = ParsePolicy("sometimes")
	require.Error(t, err)
}
