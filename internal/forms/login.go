package forms

import "strings"

// Login is the backend email/password sign-in form.
type Login struct {
	Email    string `json:"email" validate:"required,mailbox,max=254"`
	Password string `json:"password" validate:"required,max=128"`
}

func (l *Login) Validate() error {
	l.Email = strings.TrimSpace(l.Email)

	failed, err := fieldErrors(l)
	if err != nil {
		return err
	}
	errs := &Errors{}
	switch failed["email"] {
	case "required":
		errs.Add("email", MsgRequired)
	case "mailbox", "max":
		errs.Add("email", MsgInvalidEmail)
	}
	switch failed["password"] {
	case "required":
		errs.Add("password", MsgRequired)
	case "max":
		errs.Add("password", "Password is too long.")
	}
	return errs.errorOrNil()
}
