package registration

import (
	"errors"
	"strings"
	"unicode/utf8"
)

const (
	// MinIDLength is the shortest accepted registration id
	MinIDLength = 4
	// MinPasswordLength is the shortest accepted password
	MinPasswordLength = 6
	// MinNicknameLength is the shortest accepted nickname
	MinNicknameLength = 2
	// PhoneLength is the exact length of an accepted phone number
	PhoneLength = 11
)

// Submission errors. Their text is shown to the user as is.
var (
	ErrIDTooShort             = errors.New("id too short.")
	ErrPasswordTooShort       = errors.New("password too short.")
	ErrPasswordMismatch       = errors.New("passwords do not match.")
	ErrNicknameTooShort       = errors.New("nickname too short.")
	ErrInvalidPhoneLength     = errors.New("invalid phone length.")
	ErrPhoneNotVerified       = errors.New("phone not verified.")
	ErrPrivacyPolicyNotAgreed = errors.New("privacy policy not agreed.")
)

// Form holds the raw registration fields as the user edits them.
type Form struct {
	id              string
	password        string
	passwordConfirm string
	nickname        string
	phone           string
	code            string
	agreed          bool
}

// SetID stores the trimmed id.
func (f *Form) SetID(v string) { f.id = strings.TrimSpace(v) }

// SetPassword stores the password exactly as typed.
func (f *Form) SetPassword(v string) { f.password = v }

// SetPasswordConfirm stores the confirmation exactly as typed.
func (f *Form) SetPasswordConfirm(v string) { f.passwordConfirm = v }

// SetNickname stores the trimmed nickname.
func (f *Form) SetNickname(v string) { f.nickname = strings.TrimSpace(v) }

// SetPhone stores the trimmed phone number.
func (f *Form) SetPhone(v string) { f.phone = strings.TrimSpace(v) }

// SetCode stores the trimmed verification code input.
func (f *Form) SetCode(v string) { f.code = strings.TrimSpace(v) }

// ID returns the registration id.
func (f *Form) ID() string { return f.id }

// Password returns the password as typed.
func (f *Form) Password() string { return f.password }

// PasswordConfirm returns the confirmation as typed.
func (f *Form) PasswordConfirm() string { return f.passwordConfirm }

// Nickname returns the nickname.
func (f *Form) Nickname() string { return f.nickname }

// Phone returns the phone number.
func (f *Form) Phone() string { return f.phone }

// Code returns the entered verification code.
func (f *Form) Code() string { return f.code }

// AgreedToPrivacyPolicy reports whether the user accepted the privacy policy.
func (f *Form) AgreedToPrivacyPolicy() bool { return f.agreed }

func (f *Form) setAgreed(v bool) { f.agreed = v }

// rule is one submission check. Rules run in order and the first failure wins.
type rule struct {
	err   error
	fails func(f *Form, verified bool) bool
}

// submissionRules checks cheap field shapes before verification and policy
// agreement, so a typo is reported before the user is sent back to verify.
var submissionRules = []rule{
	{ErrIDTooShort, func(f *Form, _ bool) bool {
		return length(f.id) < MinIDLength
	}},
	{ErrPasswordTooShort, func(f *Form, _ bool) bool {
		return length(f.password) < MinPasswordLength
	}},
	{ErrPasswordMismatch, func(f *Form, _ bool) bool {
		return f.passwordConfirm != f.password
	}},
	{ErrNicknameTooShort, func(f *Form, _ bool) bool {
		return length(f.nickname) < MinNicknameLength
	}},
	{ErrInvalidPhoneLength, func(f *Form, _ bool) bool {
		return length(f.phone) != PhoneLength
	}},
	{ErrPhoneNotVerified, func(_ *Form, verified bool) bool {
		return !verified
	}},
	{ErrPrivacyPolicyNotAgreed, func(f *Form, _ bool) bool {
		return !f.agreed
	}},
}

// Validate runs the submission rules and returns the first failure, or nil.
func (f *Form) Validate(phoneVerified bool) error {
	for _, r := range submissionRules {
		if r.fails(f, phoneVerified) {
			return r.err
		}
	}
	return nil
}

func length(s string) int {
	return utf8.RuneCountInString(s)
}
