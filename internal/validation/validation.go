// Package validation checks and normalizes user input for the storefront
// forms. Struct rules are declared with go-playground/validator tags; rules
// that span several fields are checked by hand afterwards.
package validation

import (
	"fmt"
	"html"
	"mime/multipart"
	"path/filepath"
	"reflect"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Limits shared with the client-side checks.
const (
	MinPasswordLength = 6
	MaxPasswordLength = 128
	MaxPrice          = 999999.99
	MaxStock          = 999999
	MaxQuantity       = 99
	MaxImageSize      = 5 << 20
	DefaultPageSize   = 12
	MaxPageSize       = 100
)

var (
	phoneRe      = regexp.MustCompile(`^[+]?[0-9\-\s()]+$`)
	postalCodeRe = regexp.MustCompile(`^\d{5}$`)
	slugSepRe    = regexp.MustCompile(`[^a-z0-9]+`)
)

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())

	// Report fields by their form name so errors map onto inputs.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})

	mustRegister("password", func(fl validator.FieldLevel) bool { return isPassword(fl.Field().String()) })
	mustRegister("phone", func(fl validator.FieldLevel) bool { return phoneRe.MatchString(fl.Field().String()) })
	mustRegister("postal_code", func(fl validator.FieldLevel) bool { return postalCodeRe.MatchString(fl.Field().String()) })
}

func mustRegister(tag string, fn validator.Func) {
	if err := validate.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("validation: register %q: %v", tag, err))
	}
}

func isPassword(s string) bool {
	n := len([]rune(s))
	if n < MinPasswordLength || n > MaxPasswordLength {
		return false
	}
	var lower, digit bool
	for _, r := range s {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	return lower && digit
}

// FieldErrors maps a form field name to a message. It is returned by every
// form check so handlers can re-render the form next to each input.
type FieldErrors map[string]string

// Error joins the messages in field order.
func (fe FieldErrors) Error() string {
	fields := make([]string, 0, len(fe))
	for f := range fe {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f+": "+fe[f])
	}
	return strings.Join(parts, "; ")
}

// Add records msg for field unless the field already has a message.
func (fe FieldErrors) Add(field, msg string) {
	if _, ok := fe[field]; !ok {
		fe[field] = msg
	}
}

// Messages returns the messages sorted by field, for flash-style display.
func (fe FieldErrors) Messages() []string {
	fields := make([]string, 0, len(fe))
	for f := range fe {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		out = append(out, fe[f])
	}
	return out
}

func (fe FieldErrors) orNil() error {
	if len(fe) == 0 {
		return nil
	}
	return fe
}

// check runs the struct tags and converts failures into FieldErrors.
func check(v any) FieldErrors {
	fe := FieldErrors{}
	if err := validate.Struct(v); err != nil {
		formatValidationError(err, fe)
	}
	return fe
}

// formatValidationError converts validator errors into user-friendly messages.
func formatValidationError(err error, fe FieldErrors) {
	validationErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		fe.Add("_", err.Error())
		return
	}
	for _, e := range validationErrs {
		fe.Add(e.Field(), message(e))
	}
}

func message(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return fmt.Sprintf("must be at least %s characters", e.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", e.Param())
	case "password":
		return fmt.Sprintf("must be %d-%d characters and contain a lowercase letter and a number",
			MinPasswordLength, MaxPasswordLength)
	case "phone":
		return "is not a valid phone number"
	case "postal_code":
		return "must be 5 digits"
	case "eqfield":
		return "does not match"
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(e.Param(), " ", ", ")
	case "gt", "gte", "lt", "lte":
		return "is out of range"
	case "datetime":
		return "must be a date (YYYY-MM-DD)"
	default:
		return fmt.Sprintf("failed on the %q rule", e.Tag())
	}
}

// Sanitize trims s and escapes HTML special characters.
func Sanitize(s string) string {
	return html.EscapeString(strings.TrimSpace(s))
}

// Page is a normalised pagination request.
type Page struct {
	Page   int
	Limit  int
	Offset int
}

// Pagination parses page and limit query values. Bad or missing values fall
// back to page 1 and DefaultPageSize; limit is capped at MaxPageSize.
func Pagination(page, limit string) Page {
	p, err := strconv.Atoi(strings.TrimSpace(page))
	if err != nil || p < 1 {
		p = 1
	}
	l, err := strconv.Atoi(strings.TrimSpace(limit))
	if err != nil || l < 1 {
		l = DefaultPageSize
	}
	if l > MaxPageSize {
		l = MaxPageSize
	}
	return Page{Page: p, Limit: l, Offset: (p - 1) * l}
}

// Email reports whether s is a valid address.
func Email(s string) error {
	if err := validate.Var(strings.TrimSpace(s), "required,email,max=255"); err != nil {
		return fmt.Errorf("invalid email address")
	}
	return nil
}

// Password checks length and character classes.
func Password(s string) error {
	if !isPassword(s) {
		return fmt.Errorf("password must be %d-%d characters and contain a lowercase letter and a number",
			MinPasswordLength, MaxPasswordLength)
	}
	return nil
}

// Phone accepts an empty value or digits with optional +, spaces, dashes
// and parentheses.
func Phone(s string) error {
	s = strings.TrimSpace(s)
	if s == "" || phoneRe.MatchString(s) {
		return nil
	}
	return fmt.Errorf("invalid phone number")
}

// Price checks 0 < p <= MaxPrice.
func Price(p float64) error {
	if p <= 0 || p > MaxPrice {
		return fmt.Errorf("price must be greater than 0 and at most %.2f", MaxPrice)
	}
	return nil
}

// Stock checks 0 <= n <= MaxStock.
func Stock(n int) error {
	if n < 0 || n > MaxStock {
		return fmt.Errorf("stock must be between 0 and %d", MaxStock)
	}
	return nil
}

// Quantity parses a cart quantity: a positive integer up to MaxQuantity.
func Quantity(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 || n > MaxQuantity {
		return 0, fmt.Errorf("quantity must be a whole number between 1 and %d", MaxQuantity)
	}
	return n, nil
}

var genderAliases = map[string]string{
	"men": "men", "hombre": "men",
	"women": "women", "mujer": "women",
	"unisex": "unisex",
}

// Gender maps a catalog gender filter, in English or Spanish, onto the stored
// value. The second result is false for unknown values.
func Gender(s string) (string, bool) {
	g, ok := genderAliases[strings.ToLower(strings.TrimSpace(s))]
	return g, ok
}

// Slug builds a URL-safe identifier: accents are stripped, letters are
// lowercased and runs of anything else collapse to a single dash.
func Slug(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	plain, _, err := transform.String(t, name)
	if err != nil {
		plain = name
	}
	return strings.Trim(slugSepRe.ReplaceAllString(strings.ToLower(plain), "-"), "-")
}

var imageTypes = map[string]bool{
	"image/jpeg": true,
	"image/jpg":  true,
	"image/png":  true,
	"image/webp": true,
}

var imageExts = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".webp": true,
}

// ImageFile checks an uploaded product image. A nil header is valid since
// the image is optional.
func ImageFile(h *multipart.FileHeader) error {
	if h == nil {
		return nil
	}
	ct := strings.ToLower(h.Header.Get("Content-Type"))
	ext := strings.ToLower(filepath.Ext(h.Filename))
	if !imageTypes[ct] || !imageExts[ext] {
		return fmt.Errorf("only JPEG, PNG and WebP images are allowed")
	}
	if h.Size > MaxImageSize {
		return fmt.Errorf("image must be at most 5MB")
	}
	return nil
}
