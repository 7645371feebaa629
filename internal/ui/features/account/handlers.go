package account

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/tienda-labs/tienda/internal/ratelimit"
	"github.com/tienda-labs/tienda/internal/store"
	"github.com/tienda-labs/tienda/internal/ui/features/common"
	"github.com/tienda-labs/tienda/internal/ui/middleware"
	"github.com/tienda-labs/tienda/internal/validation"
)

// Handlers provides HTTP handlers for the account feature.
type Handlers struct {
	*common.Deps
	attempts ratelimit.Attempts
	clientIP ratelimit.KeyFunc
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(deps *common.Deps, attempts ratelimit.Attempts, keyFn ratelimit.KeyFunc) *Handlers {
	if attempts == nil {
		attempts = ratelimit.NewMemoryAttempts(ratelimit.DefaultMaxAttempts, ratelimit.DefaultLockout)
	}
	if keyFn == nil {
		keyFn = ratelimit.DefaultKeyFunc("", false)
	}
	return &Handlers{Deps: deps, attempts: attempts, clientIP: keyFn}
}

// RegisterPage renders an empty registration form.
func (h *Handlers) RegisterPage(w http.ResponseWriter, r *http.Request) {
	h.Render(w, r, http.StatusOK, "register", "Create an account", RegisterData{})
}

// Register creates a customer account and logs it in.
func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	form := validation.Registration{
		FirstName:       r.FormValue("first_name"),
		LastName:        r.FormValue("last_name"),
		Email:           r.FormValue("email"),
		Password:        r.FormValue("password"),
		ConfirmPassword: r.FormValue("confirm_password"),
		Phone:           r.FormValue("phone"),
	}
	render := func(status int, data RegisterData) {
		data.Form = form
		data.Form.Password, data.Form.ConfirmPassword = "", ""
		h.Render(w, r, status, "register", "Create an account", data)
	}

	if err := validation.RegistrationForm(&form); err != nil {
		var fe validation.FieldErrors
		if errors.As(err, &fe) {
			render(http.StatusBadRequest, RegisterData{Errors: fe})
			return
		}
		h.ServerError(w, r, err)
		return
	}

	user, err := h.Store.Users.Create(r.Context(), store.NewUser{
		FirstName: form.FirstName,
		LastName:  form.LastName,
		Email:     form.Email,
		Password:  form.Password,
		Phone:     form.Phone,
	})
	if errors.Is(err, store.ErrEmailTaken) {
		render(http.StatusBadRequest, RegisterData{
			Errors: validation.FieldErrors{"email": "This email is already registered"},
		})
		return
	}
	if err != nil {
		h.ServerError(w, r, err)
		return
	}

	if err := h.startSession(w, r, user); err != nil {
		h.ServerError(w, r, err)
		return
	}
	common.Redirect(w, r, "/")
}

// LoginPage renders the login form. The redirect query value is kept so the
// visitor lands back where they were sent from.
func (h *Handlers) LoginPage(w http.ResponseWriter, r *http.Request) {
	h.Render(w, r, http.StatusOK, "login", "Log in", LoginData{
		Redirect: middleware.SafeRedirect(r.URL.Query().Get("redirect")),
	})
}

// Login checks credentials. Clients that keep failing are locked out for a
// while; a successful login clears their failures.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	data := LoginData{
		Email:    r.FormValue("email"),
		Redirect: middleware.SafeRedirect(r.FormValue("redirect")),
	}
	key := h.clientIP(r)

	wait, err := h.attempts.Locked(ctx, key)
	if err != nil {
		h.Log().Error("failed to check login attempts", "error", err)
	}
	if wait > 0 {
		h.Metrics.LoginAttempt("locked")
		data.Error = lockedMessage(wait)
		h.loginFailed(w, r, http.StatusTooManyRequests, data)
		return
	}

	user, err := h.Store.Users.Authenticate(ctx, data.Email, r.FormValue("password"))
	if errors.Is(err, store.ErrInvalidCredentials) {
		if _, err := h.attempts.Fail(ctx, key); err != nil {
			h.Log().Error("failed to record login attempt", "error", err)
		}
		h.Metrics.LoginAttempt("invalid")
		data.Error = "Invalid email or password"
		h.loginFailed(w, r, http.StatusUnauthorized, data)
		return
	}
	if err != nil {
		h.ServerError(w, r, err)
		return
	}

	if err := h.attempts.Reset(ctx, key); err != nil {
		h.Log().Error("failed to reset login attempts", "error", err)
	}
	if err := h.startSession(w, r, user); err != nil {
		h.ServerError(w, r, err)
		return
	}
	h.Metrics.LoginAttempt("success")

	if middleware.WantsJSON(r) {
		common.JSON(w, http.StatusOK, map[string]any{"success": true, "redirect_to": data.Redirect})
		return
	}
	common.Redirect(w, r, data.Redirect)
}

func (h *Handlers) loginFailed(w http.ResponseWriter, r *http.Request, status int, data LoginData) {
	if middleware.WantsJSON(r) {
		common.JSON(w, status, map[string]any{"success": false, "error": data.Error})
		return
	}
	h.Render(w, r, status, "login", "Log in", data)
}

// startSession moves any anonymous cart onto the user and binds the session
// to them.
func (h *Handlers) startSession(w http.ResponseWriter, r *http.Request, user *store.User) error {
	ctx := r.Context()
	if sid := middleware.SessionIDFrom(ctx); sid != "" {
		anon, err := h.Store.Carts.Find(ctx, 0, sid)
		if err != nil {
			return err
		}
		if anon != nil {
			if _, err := h.Store.Carts.FindOrCreate(ctx, user.ID, sid); err != nil {
				return fmt.Errorf("failed to merge cart: %w", err)
			}
		}
	}

	if _, err := h.Sessions.Login(w, r, user); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	h.Notifier.Publish(middleware.CartTopic(middleware.WithUser(ctx, user)))
	return nil
}

// Logout ends the session.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.Sessions.Logout(w, r); err != nil {
		h.Log().Error("failed to clear session", "error", err)
	}
	common.Redirect(w, r, "/")
}

// AccountPage shows the user's orders, profile and addresses.
func (h *Handlers) AccountPage(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFrom(r.Context())
	data := AccountData{
		Message: messages[r.URL.Query().Get("updated")],
		Profile: profileOf(user),
	}
	h.renderAccount(w, r, http.StatusOK, data)
}

// UpdateProfile saves the editable profile fields.
func (h *Handlers) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFrom(r.Context())
	form := validation.Profile{
		FirstName: r.FormValue("first_name"),
		LastName:  r.FormValue("last_name"),
		Phone:     r.FormValue("phone"),
		BirthDate: r.FormValue("birth_date"),
		Gender:    r.FormValue("gender"),
	}

	if err := validation.ProfileForm(&form); err != nil {
		h.formError(w, r, err, AccountData{Profile: form})
		return
	}

	err := h.Store.Users.UpdateProfile(r.Context(), user.ID, store.ProfileUpdate{
		FirstName: form.FirstName,
		LastName:  form.LastName,
		Phone:     form.Phone,
		BirthDate: form.BirthDate,
		Gender:    form.Gender,
	})
	if err != nil {
		h.ServerError(w, r, err)
		return
	}
	common.Redirect(w, r, "/account?updated=profile")
}

// ChangePassword replaces the password after checking the current one.
func (h *Handlers) ChangePassword(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFrom(r.Context())
	form := validation.PasswordChange{
		Current: r.FormValue("current_password"),
		New:     r.FormValue("new_password"),
		Confirm: r.FormValue("confirm_password"),
	}

	if err := validation.PasswordChangeForm(&form); err != nil {
		h.formError(w, r, err, AccountData{Profile: profileOf(user)})
		return
	}

	err := h.Store.Users.ChangePassword(r.Context(), user.ID, form.Current, form.New)
	if errors.Is(err, store.ErrInvalidPassword) {
		h.renderAccount(w, r, http.StatusBadRequest, AccountData{
			Profile: profileOf(user),
			Errors:  validation.FieldErrors{"current_password": "Current password is incorrect"},
		})
		return
	}
	if err != nil {
		h.ServerError(w, r, err)
		return
	}

	h.Log().Info("password changed", "user_id", user.ID)
	common.Redirect(w, r, "/account?updated=password")
}

// AddAddress saves a shipping address, optionally as the default.
func (h *Handlers) AddAddress(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := middleware.UserFrom(ctx)
	form := validation.Address{
		Label:      r.FormValue("label"),
		Street:     r.FormValue("street"),
		City:       r.FormValue("city"),
		State:      r.FormValue("state"),
		PostalCode: r.FormValue("postal_code"),
		Phone:      r.FormValue("phone"),
	}

	if err := validation.AddressForm(&form); err != nil {
		h.formError(w, r, err, AccountData{Profile: profileOf(user), Address: form})
		return
	}

	id, err := h.Store.Addresses.Create(ctx, store.Address{
		UserID:     user.ID,
		Label:      form.Label,
		Street:     form.Street,
		City:       form.City,
		State:      form.State,
		PostalCode: form.PostalCode,
		Phone:      form.Phone,
	})
	if err != nil {
		h.ServerError(w, r, err)
		return
	}
	if r.FormValue("is_default") != "" {
		if err := h.Store.Addresses.SetDefault(ctx, user.ID, id); err != nil {
			h.ServerError(w, r, err)
			return
		}
	}

	common.Redirect(w, r, "/account?updated=address")
}

// formError re-renders the account page with field errors, or fails the
// request when err is not a validation error.
func (h *Handlers) formError(w http.ResponseWriter, r *http.Request, err error, data AccountData) {
	var fe validation.FieldErrors
	if !errors.As(err, &fe) {
		h.ServerError(w, r, err)
		return
	}
	data.Errors = fe
	h.renderAccount(w, r, http.StatusBadRequest, data)
}

func (h *Handlers) renderAccount(w http.ResponseWriter, r *http.Request, status int, data AccountData) {
	ctx := r.Context()
	user := middleware.UserFrom(ctx)

	var err error
	if data.Orders, err = h.Store.Orders.ListByUser(ctx, user.ID); err != nil {
		h.ServerError(w, r, err)
		return
	}
	if data.Addresses, err = h.Store.Addresses.ListByUser(ctx, user.ID); err != nil {
		h.ServerError(w, r, err)
		return
	}

	h.Render(w, r, status, "account", "My account", data)
}

func profileOf(u *store.User) validation.Profile {
	return validation.Profile{
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Phone:     u.Phone,
		BirthDate: u.BirthDate,
		Gender:    u.Gender,
	}
}

func lockedMessage(wait time.Duration) string {
	minutes := int(math.Ceil(wait.Minutes()))
	if minutes <= 1 {
		return "Too many failed attempts. Try again in a minute."
	}
	return fmt.Sprintf("Too many failed attempts. Try again in %d minutes.", minutes)
}
