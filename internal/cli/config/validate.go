package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fieldMessage(fe))
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if c.Media.Driver == "s3" && (c.Media.S3.Bucket == "" || c.Media.S3.Region == "") {
		return errors.New("invalid configuration: media.s3.bucket and media.s3.region are required for the s3 media driver")
	}
	if c.Database.Driver == "postgres" && c.Database.DSN == "" && c.Database.Host == "" {
		return errors.New("invalid configuration: database.dsn or database.host is required for postgres")
	}
	return nil
}

// ValidateServe adds the checks that only matter when serving HTTP.
func (c *Config) ValidateServe() error {
	if c.Session.Secret == "" {
		return errors.New("invalid configuration: session.secret is required (set TIENDA_SESSION__SECRET or run with --dev)")
	}
	return nil
}

// fieldMessage renders a validation failure using the config key path.
func fieldMessage(fe validator.FieldError) string {
	key := keyPath(fe.StructNamespace())
	switch fe.Tag() {
	case "required":
		return key + " is required"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", key, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got %q", key, fe.Param(), fe.Value())
	default:
		return fmt.Sprintf("%s failed %q (%v)", key, fe.Tag(), fe.Value())
	}
}

// keyPath turns Config.Session.Secret into session.secret.
func keyPath(ns string) string {
	parts := strings.Split(ns, ".")
	if len(parts) > 0 && parts[0] == "Config" {
		parts = parts[1:]
	}
	for i, p := range parts {
		parts[i] = snake(p)
	}
	return strings.Join(parts, ".")
}

var keyAliases = map[string]string{
	"DSN":         "dsn",
	"DB":          "db",
	"CORSOrigins": "cors_origins",
	"SSLMode":     "sslmode",
	"URLPrefix":   "url_prefix",
	"AccessKeyID": "access_key_id",
	"PublicURL":   "public_url",
}

func snake(s string) string {
	if a, ok := keyAliases[s]; ok {
		return a
	}
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}
