package registration

// Event is a one-shot instruction for the UI layer.
type Event interface {
	isEvent()
}

// ShowMessage asks the UI to display a short message.
type ShowMessage struct {
	Text string
}

// ShowPrivacyPolicyDialog asks the UI to present the privacy policy for agreement.
type ShowPrivacyPolicyDialog struct{}

// HideKeyboard asks the UI to dismiss the on-screen keyboard.
type HideKeyboard struct{}

// SendVerificationCode asks the host to deliver Code to Phone by SMS and report
// the outcome through CodeSent or CodeNotSent.
type SendVerificationCode struct {
	Phone string
	Code  string
}

// NavigateBackWithResult carries the credentials and profile of a newly created account.
type NavigateBackWithResult struct {
	ID       string
	Password string
	User     User
}

func (ShowMessage) isEvent()             {}
func (ShowPrivacyPolicyDialog) isEvent() {}
func (HideKeyboard) isEvent()            {}
func (SendVerificationCode) isEvent()    {}
func (NavigateBackWithResult) isEvent()  {}

// Outbox holds at most one undelivered event. A newer event replaces an
// unread older one, and taking an event empties the slot.
type Outbox struct {
	event Event
}

// Push stores e as the outstanding event.
func (o *Outbox) Push(e Event) {
	o.event = e
}

// Take removes and returns the outstanding event.
func (o *Outbox) Take() (Event, bool) {
	e := o.event
	o.event = nil
	return e, e != nil
}
