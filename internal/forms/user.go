package forms

import "strings"

const (
	MsgRequired          = "This field is required."
	MsgPasswordsMismatch = "Passwords do not match."
	MsgPasswordTooShort  = "Password must be at least 8 characters long."
	MsgInvalidEmail      = "Please enter a valid email address."
	MsgCustomerAccount   = "Please provide a customer account ID for external users."
)

// MinPasswordLength applies to new users and to any password being changed.
const MinPasswordLength = 8

var (
	Roles     = []string{"super_admin", "cto", "growth_finance", "customer_support", "content_manager", "company_admin", "company_user"}
	Statuses  = []string{"active", "inactive", "pending", "suspended"}
	UserTypes = []string{"internal", "external"}
)

// UserInput is the create/edit user form.
type UserInput struct {
	Name              string   `json:"name" validate:"required"`
	Email             string   `json:"email" validate:"required,mailbox"`
	Role              string   `json:"role" validate:"required,oneof=super_admin cto growth_finance customer_support content_manager company_admin company_user"`
	Status            string   `json:"status" validate:"required,oneof=active inactive pending suspended"`
	UserType          string   `json:"userType" validate:"omitempty,oneof=internal external"`
	CustomerAccountID string   `json:"customerAccountId,omitempty" validate:"required_if=UserType external"`
	Permissions       []string `json:"permissions,omitempty"`
	Password          string   `json:"password,omitempty"`
	ConfirmPassword   string   `json:"confirmPassword,omitempty" validate:"eqfield=Password"`
}

// NewUserInput returns a form populated with the defaults of a new user.
func NewUserInput() UserInput {
	return UserInput{
		Role:     "company_user",
		Status:   "active",
		UserType: "internal",
	}
}

// Validate checks the form. Rules run in a fixed order and only the first
// failing rule is reported; a password is mandatory when creating.
func (u *UserInput) Validate(editing bool) error {
	u.Name = strings.TrimSpace(u.Name)
	u.Email = strings.TrimSpace(u.Email)
	if u.UserType == "" {
		u.UserType = "internal"
	}

	failed, err := fieldErrors(u)
	if err != nil {
		return err
	}
	errs := &Errors{}

	for _, field := range []string{"name", "email", "role", "status"} {
		if failed[field] == "required" {
			errs.Add(field, MsgRequired)
		}
	}
	if !errs.Empty() {
		return errs
	}

	if failed["confirmPassword"] == "eqfield" {
		errs.Add("confirmPassword", MsgPasswordsMismatch)
		return errs
	}

	if (!editing || u.Password != "") && len(u.Password) < MinPasswordLength {
		errs.Add("password", MsgPasswordTooShort)
		return errs
	}

	if failed["email"] == "mailbox" {
		errs.Add("email", MsgInvalidEmail)
		return errs
	}

	if failed["customerAccountId"] == "required_if" {
		errs.Add("customerAccountId", MsgCustomerAccount)
		return errs
	}

	if failed["role"] == "oneof" {
		errs.Add("role", "Must be one of: "+strings.Join(Roles, ", ")+".")
	}
	if failed["status"] == "oneof" {
		errs.Add("status", "Must be one of: "+strings.Join(Statuses, ", ")+".")
	}
	if failed["userType"] == "oneof" {
		errs.Add("userType", "Must be one of: "+strings.Join(UserTypes, ", ")+".")
	}
	return errs.errorOrNil()
}

// UserSubmission is the payload sent to the backend for a validated form.
type UserSubmission struct {
	Name              string   `json:"name"`
	Email             string   `json:"email"`
	Role              string   `json:"role"`
	Status            string   `json:"status"`
	UserType          string   `json:"userType"`
	CustomerAccountID string   `json:"customerAccountId,omitempty"`
	Permissions       []string `json:"permissions,omitempty"`
	Password          string   `json:"password,omitempty"`
}

// Submission drops the confirmation field. An empty password is omitted so
// edits leave the stored password unchanged.
func (u UserInput) Submission() UserSubmission {
	return UserSubmission{
		Name:              u.Name,
		Email:             u.Email,
		Role:              u.Role,
		Status:            u.Status,
		UserType:          u.UserType,
		CustomerAccountID: u.CustomerAccountID,
		Permissions:       u.Permissions,
		Password:          u.Password,
	}
}
