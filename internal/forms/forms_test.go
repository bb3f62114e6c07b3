package forms

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/jaqcquesndav/Wanzo-admin/internal/apiclient"
)

func validUser() UserInput {
	u := NewUserInput()
	u.Name = "Ada Lovelace"
	u.Email = "ada@wanzo.com"
	u.Password = "correct-horse"
	u.ConfirmPassword = "correct-horse"
	return u
}

func fieldsOf(t *testing.T, err error) map[string][]string {
	t.Helper()
	var errs *Errors
	if !errors.As(err, &errs) {
		t.Fatalf("expected *Errors, got %v", err)
	}
	return errs.Fields
}

func TestNewUserInput_Defaults(t *testing.T) {
	u := NewUserInput()
	if u.Role != "company_user" || u.Status != "active" || u.UserType != "internal" {
		t.Errorf("unexpected defaults: %+v", u)
	}
}

func TestUserInput_Valid(t *testing.T) {
	u := validUser()
	if err := u.Validate(false); err != nil {
		t.Fatalf("expected valid form, got %v", err)
	}
}

func TestUserInput_Rules(t *testing.T) {
	tests := []struct {
		name    string
		editing bool
		mutate  func(u *UserInput)
		field   string
		message string
	}{
		{"missing name", false, func(u *UserInput) { u.Name = "  " }, "name", MsgRequired},
		{"missing role", false, func(u *UserInput) { u.Role = "" }, "role", MsgRequired},
		{"missing status", false, func(u *UserInput) { u.Status = "" }, "status", MsgRequired},
		{"passwords differ", false, func(u *UserInput) { u.ConfirmPassword = "other-pass" }, "confirmPassword", MsgPasswordsMismatch},
		{"short password on create", false, func(u *UserInput) { u.Password, u.ConfirmPassword = "short", "short" }, "password", MsgPasswordTooShort},
		{"no password on create", false, func(u *UserInput) { u.Password, u.ConfirmPassword = "", "" }, "password", MsgPasswordTooShort},
		{"short password on edit", true, func(u *UserInput) { u.Password, u.ConfirmPassword = "short", "short" }, "password", MsgPasswordTooShort},
		{"bad email", false, func(u *UserInput) { u.Email = "ada@wanzo" }, "email", MsgInvalidEmail},
		{"email with space", false, func(u *UserInput) { u.Email = "ada lovelace@wanzo.com" }, "email", MsgInvalidEmail},
		{"external without account", false, func(u *UserInput) { u.UserType = "external" }, "customerAccountId", MsgCustomerAccount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := validUser()
			tt.mutate(&u)
			fields := fieldsOf(t, u.Validate(tt.editing))
			if got := fields[tt.field]; len(got) != 1 || got[0] != tt.message {
				t.Errorf("expected %s: %q, got %v", tt.field, tt.message, fields)
			}
		})
	}
}

func TestUserInput_FirstFailingRuleWins(t *testing.T) {
	u := validUser()
	u.ConfirmPassword = "mismatch"
	u.Email = "not-an-email"

	fields := fieldsOf(t, u.Validate(false))
	if len(fields) != 1 {
		t.Fatalf("expected only the first rule reported, got %v", fields)
	}
	if _, ok := fields["confirmPassword"]; !ok {
		t.Errorf("expected password mismatch before email format, got %v", fields)
	}
}

func TestUserInput_RequiredFieldsReportedTogether(t *testing.T) {
	u := UserInput{}
	fields := fieldsOf(t, u.Validate(false))
	for _, f := range []string{"name", "email", "role", "status"} {
		if _, ok := fields[f]; !ok {
			t.Errorf("expected %s in %v", f, fields)
		}
	}
}

func TestUserInput_EditWithoutPassword(t *testing.T) {
	u := validUser()
	u.Password, u.ConfirmPassword = "", ""
	if err := u.Validate(true); err != nil {
		t.Fatalf("editing without a password should pass, got %v", err)
	}

	data, _ := json.Marshal(u.Submission())
	if strings.Contains(string(data), "password") {
		t.Errorf("empty password should be dropped, got %s", data)
	}
}

func TestUserInput_ExternalWithAccount(t *testing.T) {
	u := validUser()
	u.UserType = "external"
	u.CustomerAccountID = "cust-1"
	if err := u.Validate(false); err != nil {
		t.Fatalf("expected valid form, got %v", err)
	}
}

func TestUserInput_UnknownRole(t *testing.T) {
	u := validUser()
	u.Role = "root"
	fields := fieldsOf(t, u.Validate(false))
	if _, ok := fields["role"]; !ok {
		t.Errorf("expected role error, got %v", fields)
	}
}

func TestUserInput_SubmissionDropsConfirmation(t *testing.T) {
	data, _ := json.Marshal(validUser().Submission())
	if strings.Contains(string(data), "confirmPassword") {
		t.Errorf("confirmPassword should not be submitted: %s", data)
	}
	if !strings.Contains(string(data), `"password":"correct-horse"`) {
		t.Errorf("password should be submitted when set: %s", data)
	}
}

func TestPasswordChange(t *testing.T) {
	tests := []struct {
		name  string
		in    PasswordChange
		field string
	}{
		{"valid", PasswordChange{"old-pass", "new-password", "new-password"}, ""},
		{"missing current", PasswordChange{"", "new-password", "new-password"}, "currentPassword"},
		{"short new", PasswordChange{"old-pass", "short", "short"}, "newPassword"},
		{"mismatch", PasswordChange{"old-pass", "new-password", "new-passw0rd"}, "confirmPassword"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.in.Validate()
			if tt.field == "" {
				if err != nil {
					t.Fatalf("expected valid, got %v", err)
				}
				return
			}
			if _, ok := fieldsOf(t, err)[tt.field]; !ok {
				t.Errorf("expected error on %s, got %v", tt.field, err)
			}
		})
	}
}

func TestErrors_RenderAsValidation(t *testing.T) {
	errs := &Errors{}
	errs.Add("email", MsgInvalidEmail)

	got := apiclient.HandleAPIError(errs.APIError())
	if got.Message != "Validation error" {
		t.Errorf("expected 'Validation error', got %q", got.Message)
	}
	if got.Errors["email"][0] != MsgInvalidEmail {
		t.Errorf("expected email message, got %v", got.Errors)
	}
}

func TestLogin(t *testing.T) {
	tests := []struct {
		name   string
		in     Login
		fields map[string]string
	}{
		{"valid", Login{Email: " cto@wanzo.com ", Password: "secret"}, nil},
		{"missing both", Login{}, map[string]string{"email": MsgRequired, "password": MsgRequired}},
		{"bad email", Login{Email: "cto", Password: "secret"}, map[string]string{"email": MsgInvalidEmail}},
		{"long password", Login{Email: "cto@wanzo.com", Password: strings.Repeat("x", 129)}, map[string]string{"password": "Password is too long."}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.in.Validate()
			if tt.fields == nil {
				if err != nil {
					t.Fatalf("expected valid login, got %v", err)
				}
				if tt.in.Email != "cto@wanzo.com" {
					t.Errorf("expected trimmed email, got %q", tt.in.Email)
				}
				return
			}
			got := fieldsOf(t, err)
			if len(got) != len(tt.fields) {
				t.Fatalf("expected fields %v, got %v", tt.fields, got)
			}
			for field, msg := range tt.fields {
				if len(got[field]) != 1 || got[field][0] != msg {
					t.Errorf("field %s: expected %q, got %v", field, msg, got[field])
				}
			}
		})
	}
}
