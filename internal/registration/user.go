package registration

// EmailDomain is appended to a registration id to form the account login.
const EmailDomain = "emochat.com"

// User is the profile document created for a new account.
type User struct {
	UID      string `json:"uid"`
	ID       string `json:"id"`
	Nickname string `json:"nickname"`
	Phone    string `json:"phone"`
}

// Emailize maps a registration id to the email-like login used by the account
// backend. The id is used verbatim.
func Emailize(id string) string {
	return id + "@" + EmailDomain
}
