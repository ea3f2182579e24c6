package notify

import "fmt"

// PasswordResetEmail builds the reset message sent when a patient
// requests a new password. resetURL already carries the token.
func PasswordResetEmail(to, toName, resetURL string) EmailMessage {
	return EmailMessage{
		To:      to,
		ToName:  toName,
		Subject: "Reset your patient portal password",
		Body: fmt.Sprintf(
			"Hi %s,\n\nA password reset was requested for your patient portal account. "+
				"Open the link below to choose a new password. The link expires in one hour.\n\n%s\n\n"+
				"If you did not request this, you can ignore this email.",
			toName, resetURL,
		),
	}
}
