package account

import (
	"github.com/tienda-labs/tienda/internal/store"
	"github.com/tienda-labs/tienda/internal/validation"
)

// LoginData is rendered by the login page.
type LoginData struct {
	Email    string
	Redirect string
	Error    string
}

// RegisterData is rendered by the registration page.
type RegisterData struct {
	Form   validation.Registration
	Errors validation.FieldErrors
	Error  string
}

// AccountData is rendered by the account page. Profile and Address carry
// the values of a rejected form so it can be shown again.
type AccountData struct {
	Message   string
	Error     string
	Orders    []store.Order
	Addresses []store.Address
	Profile   validation.Profile
	Address   validation.Address
	Errors    validation.FieldErrors
}

// messages shown after a successful account update, keyed by the
// "updated" query value.
var messages = map[string]string{
	"profile":  "Your profile was updated.",
	"password": "Your password was changed.",
	"address":  "Address saved.",
}
