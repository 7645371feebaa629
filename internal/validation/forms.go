package validation

import (
	"strings"
)

// Registration is the sign-up form.
type Registration struct {
	FirstName       string `form:"first_name" validate:"required,min=2,max=100"`
	LastName        string `form:"last_name" validate:"required,min=2,max=100"`
	Email           string `form:"email" validate:"required,email,max=255"`
	Password        string `form:"password" validate:"required,password"`
	ConfirmPassword string `form:"confirm_password" validate:"required,eqfield=Password"`
	Phone           string `form:"phone" validate:"omitempty,phone"`
}

// RegistrationForm trims the text fields in place and validates them.
func RegistrationForm(f *Registration) error {
	f.FirstName = strings.TrimSpace(f.FirstName)
	f.LastName = strings.TrimSpace(f.LastName)
	f.Email = strings.TrimSpace(f.Email)
	f.Phone = strings.TrimSpace(f.Phone)
	return check(f).orNil()
}

// Product is the admin product form. Prices are in currency units.
type Product struct {
	Name        string   `form:"name" validate:"required,min=3,max=200"`
	Description string   `form:"description" validate:"max=1000"`
	Price       float64  `form:"price" validate:"gt=0,lte=999999.99"`
	SalePrice   *float64 `form:"sale_price" validate:"omitempty,gt=0,lte=999999.99"`
	CategoryID  int64    `form:"category_id" validate:"required,gt=0"`
	Gender      string   `form:"gender" validate:"required,oneof=men women unisex"`
	Stock       int      `form:"stock" validate:"gte=0,lte=999999"`
	Sizes       []string `form:"sizes" validate:"dive,max=20"`
	Colors      []string `form:"colors" validate:"dive,max=40"`
	Featured    bool     `form:"featured"`
	Active      bool     `form:"active"`
}

// ProductForm validates a product and checks that a sale price, when set,
// is below the regular price.
func ProductForm(f *Product) error {
	f.Name = strings.TrimSpace(f.Name)
	f.Description = strings.TrimSpace(f.Description)
	if g, ok := Gender(f.Gender); ok {
		f.Gender = g
	}

	fe := check(f)
	if f.SalePrice != nil && *f.SalePrice >= f.Price {
		fe.Add("sale_price", "must be lower than the regular price")
	}
	return fe.orNil()
}

// Category is the admin category form.
type Category struct {
	Name        string `form:"name" validate:"required,min=2,max=100"`
	Description string `form:"description" validate:"max=500"`
}

// CategoryForm validates a category.
func CategoryForm(f *Category) error {
	f.Name = strings.TrimSpace(f.Name)
	f.Description = strings.TrimSpace(f.Description)
	return check(f).orNil()
}

// Address is a shipping address form.
type Address struct {
	Label      string `form:"label" validate:"max=50"`
	Street     string `form:"street" validate:"required,min=5,max=200"`
	City       string `form:"city" validate:"required,min=2,max=100"`
	State      string `form:"state" validate:"max=100"`
	PostalCode string `form:"postal_code" validate:"required,postal_code"`
	Phone      string `form:"phone" validate:"omitempty,phone"`
}

// AddressForm validates an address.
func AddressForm(f *Address) error {
	f.Label = strings.TrimSpace(f.Label)
	f.Street = strings.TrimSpace(f.Street)
	f.City = strings.TrimSpace(f.City)
	f.State = strings.TrimSpace(f.State)
	f.PostalCode = strings.TrimSpace(f.PostalCode)
	f.Phone = strings.TrimSpace(f.Phone)
	return check(f).orNil()
}

// Profile holds the editable account fields.
type Profile struct {
	FirstName string `form:"first_name" validate:"required,min=2,max=100"`
	LastName  string `form:"last_name" validate:"required,min=2,max=100"`
	Phone     string `form:"phone" validate:"omitempty,phone"`
	BirthDate string `form:"birth_date" validate:"omitempty,datetime=2006-01-02"`
	Gender    string `form:"gender" validate:"omitempty,oneof=male female other"`
}

// ProfileForm validates a profile update.
func ProfileForm(f *Profile) error {
	f.FirstName = strings.TrimSpace(f.FirstName)
	f.LastName = strings.TrimSpace(f.LastName)
	f.Phone = strings.TrimSpace(f.Phone)
	f.BirthDate = strings.TrimSpace(f.BirthDate)
	return check(f).orNil()
}

// PasswordChange is the change-password form.
type PasswordChange struct {
	Current string `form:"current_password" validate:"required"`
	New     string `form:"new_password" validate:"required,password"`
	Confirm string `form:"confirm_password" validate:"required,eqfield=New"`
}

// PasswordChangeForm validates a password change. The new password must
// differ from the current one.
func PasswordChangeForm(f *PasswordChange) error {
	fe := check(f)
	if f.Current != "" && f.New == f.Current {
		fe.Add("new_password", "must differ from the current password")
	}
	return fe.orNil()
}
