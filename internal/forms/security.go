package forms

// PasswordChange is the security settings password form.
type PasswordChange struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=8"`
	ConfirmPassword string `json:"confirmPassword" validate:"eqfield=NewPassword"`
}

func (p *PasswordChange) Validate() error {
	failed, err := fieldErrors(p)
	if err != nil {
		return err
	}
	errs := &Errors{}
	if failed["currentPassword"] == "required" {
		errs.Add("currentPassword", MsgRequired)
	}
	switch failed["newPassword"] {
	case "required":
		errs.Add("newPassword", MsgRequired)
	case "min":
		errs.Add("newPassword", MsgPasswordTooShort)
	}
	if failed["confirmPassword"] == "eqfield" {
		errs.Add("confirmPassword", MsgPasswordsMismatch)
	}
	return errs.errorOrNil()
}

// PasswordChangeSubmission is sent to the backend; the confirmation stays local.
type PasswordChangeSubmission struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

func (p PasswordChange) Submission() PasswordChangeSubmission {
	return PasswordChangeSubmission{
		CurrentPassword: p.CurrentPassword,
		NewPassword:     p.NewPassword,
	}
}
