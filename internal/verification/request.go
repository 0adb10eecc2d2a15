// Package verification implements the phone verification state machine used by
// the registration flow. A code is issued for one phone number, stays valid for a
// fixed window, and is either confirmed, abandoned or left to expire.
package verification

import "time"

// Request is a verification code issued for a single phone number.
// It is immutable once created.
type Request struct {
	phone    string
	code     string
	issuedAt time.Time
}

// NewRequest records a code issued for phone at issuedAt.
func NewRequest(phone, code string, issuedAt time.Time) *Request {
	return &Request{
		phone:    phone,
		code:     code,
		issuedAt: issuedAt,
	}
}

// Phone returns the number the code was sent to.
func (r *Request) Phone() string { return r.phone }

// Code returns the issued code.
func (r *Request) Code() string { return r.code }

// IssuedAt returns the time the request was created.
func (r *Request) IssuedAt() time.Time { return r.issuedAt }

// Deadline returns the last instant at which the code is still accepted.
func (r *Request) Deadline() time.Time { return r.issuedAt.Add(Window) }
