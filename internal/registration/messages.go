package registration

import "fmt"

// Messages shown to the user through ShowMessage events.
const (
	MsgInvalidPhone        = "enter a valid phone number."
	MsgPhoneRegistered     = "phone number already registered."
	MsgCheckNetwork        = "check your network connection."
	MsgCodeSent            = "verification code sent, enter the code."
	MsgCodeNotSent         = "verification code could not be sent."
	MsgVerificationExpired = "verification time expired."
	MsgEnterFourDigits     = "enter 4 digits."
	MsgVerified            = "phone verified."
	MsgWrongCode           = "wrong verification code."
	MsgRegistrationFailed  = "registration failed, try again."
)

// VerificationMessage is the SMS body that carries code.
func VerificationMessage(code string) string {
	return fmt.Sprintf("[EmoChat] Your verification code is '%s'", code)
}
