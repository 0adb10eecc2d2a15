package registration

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func validForm() *Form {
	f := &Form{}
	f.SetID("alice")
	f.SetPassword("secret1")
	f.SetPasswordConfirm("secret1")
	f.SetNickname("Al")
	f.SetPhone("01012345678")
	f.setAgreed(true)
	return f
}

func TestForm_Trimming(t *testing.T) {
	f := &Form{}
	f.SetID("  alice ")
	f.SetNickname("\tAl\n")
	f.SetPhone(" 01012345678 ")
	f.SetCode(" 4821 ")
	f.SetPassword("  pad  ")
	f.SetPasswordConfirm(" pad")

	assert.Equal(t, "alice", f.ID())
	assert.Equal(t, "Al", f.Nickname())
	assert.Equal(t, "01012345678", f.Phone())
	assert.Equal(t, "4821", f.Code())
	assert.Equal(t, "  pad  ", f.Password(), "passwords keep padding")
	assert.Equal(t, " pad", f.PasswordConfirm())
}

func TestForm_Validate(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(f *Form)
		verified bool
		want     error
	}{
		{"valid", func(f *Form) {}, true, nil},
		{"short id", func(f *Form) { f.SetID("abc") }, true, ErrIDTooShort},
		{"short password", func(f *Form) { f.SetPassword("12345"); f.SetPasswordConfirm("12345") }, true, ErrPasswordTooShort},
		{"password mismatch", func(f *Form) { f.SetPasswordConfirm("secret2") }, true, ErrPasswordMismatch},
		{"confirm differs by padding", func(f *Form) { f.SetPasswordConfirm("secret1 ") }, true, ErrPasswordMismatch},
		{"short nickname", func(f *Form) { f.SetNickname("A") }, true, ErrNicknameTooShort},
		{"short phone", func(f *Form) { f.SetPhone("0101234567") }, true, ErrInvalidPhoneLength},
		{"long phone", func(f *Form) { f.SetPhone("010123456789") }, true, ErrInvalidPhoneLength},
		{"not verified", func(f *Form) {}, false, ErrPhoneNotVerified},
		{"not agreed", func(f *Form) { f.setAgreed(false) }, true, ErrPrivacyPolicyNotAgreed},
		{"multibyte nickname counts runes", func(f *Form) { f.SetNickname("김철") }, true, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := validForm()
			tt.mutate(f)
			assert.Equal(t, tt.want, f.Validate(tt.verified))
		})
	}
}

func TestForm_ValidateReportsOnlyFirstFailure(t *testing.T) {
	f := &Form{}
	f.SetID("ab")
	f.SetPassword("1")
	f.SetNickname("x")
	f.SetPhone("1")

	assert.Equal(t, ErrIDTooShort, f.Validate(false))

	f.SetID("alice")
	assert.Equal(t, ErrPasswordTooShort, f.Validate(false))

	f.SetPassword("secret1")
	assert.Equal(t, ErrPasswordMismatch, f.Validate(false))

	f.SetPasswordConfirm("secret1")
	assert.Equal(t, ErrNicknameTooShort, f.Validate(false))

	f.SetNickname("Al")
	assert.Equal(t, ErrInvalidPhoneLength, f.Validate(false))

	f.SetPhone("01012345678")
	assert.Equal(t, ErrPhoneNotVerified, f.Validate(false))
	assert.Equal(t, ErrPrivacyPolicyNotAgreed, f.Validate(true))
}

func TestEmailize(t *testing.T) {
	assert.Equal(t, "alice@emochat.com", Emailize("alice"))
	assert.Equal(t, "a.b+c@emochat.com", Emailize("a.b+c"), "no escaping")
}

func TestOutbox(t *testing.T) {
	var o Outbox

	_, ok := o.Take()
	assert.False(t, ok)

	o.Push(ShowMessage{Text: "first"})
	o.Push(HideKeyboard{})

	e, ok := o.Take()
	assert.True(t, ok)
	assert.Equal(t, HideKeyboard{}, e, "newer event replaces unread one")

	_, ok = o.Take()
	assert.False(t, ok, "taken events are not redelivered")
}

func TestMaskPhone(t *testing.T) {
	assert.Equal(t, "*******5678", MaskPhone("01012345678"))
	assert.Equal(t, "123", MaskPhone("123"))
}
