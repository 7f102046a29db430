package controller

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/motorbill/crm/model"

	"github.com/gorilla/sessions"
	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

// CookieCfg controls how the session cookie is scoped and secured.
// NOTE: Options are applied centrally by SessionWriter.Save() via applySessionOptionsFromPersist.
// This file only sets the "persist" flag (remember me) where needed.
type CookieCfg struct {
	IsProd       bool
	ShareSubdoms bool
	ParentDomain string
}

// cookieOptions builds secure cookie options based on environment.
func cookieOptions(maxAge int, cfg CookieCfg) *sessions.Options {
	opts := &sessions.Options{
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	if cfg.IsProd {
		opts.Secure = true
		if cfg.ShareSubdoms && cfg.ParentDomain != "" {
			opts.Domain = "." + cfg.ParentDomain
		}
	} else {
		opts.Secure = false
	}
	return opts
}

// authMiddleware ensures a user is authenticated before accessing protected routes.
// It reads uid/ownerid from the session; on failure it redirects to /login.
func (ctrl *controller) authMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		sw, err := LoadSession(c)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, fmt.Errorf("cannot load session: %w", err))
		}

		// type assertions must match what is stored (here: uint)
		var ok bool
		var uid uint
		if v, exists := sw.Values()["uid"]; exists {
			uid, ok = v.(uint)
		}
		if !ok || uid == 0 {
			return c.Redirect(http.StatusSeeOther, "/login")
		}
		c.Set("uid", uid)

		if v, exists := sw.Values()["ownerid"]; exists {
			if ownerid, ok := v.(uint); ok && ownerid != 0 {
				c.Set("ownerid", ownerid)
			} else {
				return c.Redirect(http.StatusSeeOther, "/login")
			}
		} else {
			return c.Redirect(http.StatusSeeOther, "/login")
		}
		return next(c)
	}
}

// login handles GET (render form) and POST (authenticate).
// On successful POST, it stores uid/ownerid and the "persist" flag (remember me) in the session.
// The actual cookie MaxAge is applied automatically by SessionWriter.Save().
func (ctrl *controller) login(c echo.Context) error {
	if c.Request().Method == http.MethodGet {
		m := ctrl.defaultResponseMap(c, "Login")
		return c.Render(http.StatusOK, "login.html", m)
	}

	// POST
	email := model.NormalizeEmail(c.FormValue("email"))
	password := c.FormValue("password")
	remember := c.FormValue("rememberMe") != ""

	// do not leak whether the user exists
	user, err := ctrl.model.AuthenticateUser(email, password)
	if err != nil || user == nil {
		if err := AddFlash(c, "error", "Login failed. Please check your input."); err != nil {
			return ErrInvalid(err, "error while saving the session")
		}
		return c.Redirect(http.StatusSeeOther, "/login")
	}

	sw, err := LoadSession(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err)
	}

	sw.Values()["uid"] = user.ID
	sw.Values()["ownerid"] = func() uint {
		if user.OwnerID != 0 {
			return user.OwnerID
		}
		return user.ID // fallback for legacy data
	}()
	sw.Values()["persist"] = remember

	if err := sw.Save(); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err)
	}

	_ = ctrl.model.TouchLastLogin(user) // best-effort
	return c.Redirect(http.StatusSeeOther, "/")
}

// logout clears the session and deletes the cookie.
// We bypass SessionWriter here to force MaxAge = -1 (cookie deletion) regardless of "persist".
func (ctrl *controller) logout(c echo.Context) error {
	sess, err := session.Get("session", c)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err)
	}
	delete(sess.Values, "uid")
	delete(sess.Values, "ownerid")
	delete(sess.Values, "csrf")
	delete(sess.Values, "persist")

	// force-delete the cookie for all browsers (including Safari)
	if sess.Options == nil {
		sess.Options = &sessions.Options{Path: "/"}
	}
	sess.Options.MaxAge = -1

	if err := sess.Save(c.Request(), c.Response()); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err)
	}
	_ = AddFlash(c, "success", "You have been signed out.")
	return c.Redirect(http.StatusFound, "/login")
}

// register handles GET (render form) and POST (create account).
// On POST, duplicate emails are answered neutrally to avoid enumeration.
func (ctrl *controller) register(c echo.Context) error {
	if !ctrl.model.Config.RegistrationAllowed {
		return echo.NewHTTPError(http.StatusForbidden, "Registration is disabled")
	}
	if c.Request().Method == http.MethodGet {
		m := ctrl.defaultResponseMap(c, "Register")
		return c.Render(http.StatusOK, "register.html", m)
	}

	email := model.NormalizeEmail(c.FormValue("email"))
	password := c.FormValue("password")
	fullname := strings.TrimSpace(c.FormValue("fullname"))

	neutral := func() error {
		_ = AddFlash(c, "info", "If we can create an account for that email, you can sign in now.")
		return c.Redirect(http.StatusSeeOther, "/login")
	}
	if email == "" || password == "" {
		_ = AddFlash(c, "error", "Email and password are required.")
		return c.Redirect(http.StatusSeeOther, "/register")
	}

	existing, err := ctrl.model.GetUserByEMail(email)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return neutral()
	}
	if existing != nil {
		body := "Someone tried to sign up with your email. If this was you, sign in here or reset your password."
		_ = ctrl.sendEmail(email, "Sign in to motorbill", body)
		return neutral()
	}

	u := &model.User{Email: email, FullName: fullname, Verified: true}
	if err := ctrl.model.SetPassword(u, password); err != nil {
		return neutral()
	}
	if err := ctrl.model.CreateUser(u); err != nil {
		return neutral()
	}
	// solo account: the user owns their own data
	if u.OwnerID == 0 {
		u.OwnerID = u.ID
		_ = ctrl.model.UpdateUser(u) // best-effort
	}
	return neutral()
}

// generateRandomToken returns a URL-safe, base64 token and its sha256 hash.
func generateRandomToken() (token string, hash []byte, err error) {
	b := make([]byte, 32)
	if _, err = rand.Read(b); err != nil {
		return "", nil, err
	}
	token = base64.RawURLEncoding.EncodeToString(b)
	h := sha256.Sum256([]byte(token))
	return token, h[:], nil
}

// constantTimeMatchToken safely compares a provided plaintext token to a stored hash.
func constantTimeMatchToken(providedToken string, storedHash []byte) bool {
	sum := sha256.Sum256([]byte(providedToken))
	return len(storedHash) == len(sum[:]) && hmac.Equal(storedHash, sum[:])
}

// showPasswordResetRequest renders the "request password reset" form (GET).
func (ctrl *controller) showPasswordResetRequest(c echo.Context) error {
	m := ctrl.defaultResponseMap(c, "Password Reset")
	return c.Render(http.StatusOK, "passwordreset.html", m)
}

// handlePasswordResetRequest handles the reset request (POST) in an enumeration-safe way.
func (ctrl *controller) handlePasswordResetRequest(c echo.Context) error {
	logger := c.Get("logger").(*slog.Logger)
	email := model.NormalizeEmail(c.FormValue("email"))

	genericResponse := func() error {
		_ = AddFlash(c, "info", "If an account exists, we have sent you an email.")
		return c.Redirect(http.StatusSeeOther, "/login")
	}

	user, err := ctrl.model.GetUserByEMail(email)
	if err != nil || user == nil {
		return genericResponse()
	}

	token, tokenHash, err := generateRandomToken()
	if err != nil {
		logger.Error("cannot generate reset token", "error", err)
		return genericResponse()
	}

	user.PasswordResetToken = tokenHash
	user.PasswordResetExpiry = time.Now().UTC().Add(1 * time.Hour)
	if err := ctrl.model.UpdateUser(user); err != nil {
		logger.Error("cannot store reset token", "error", err)
		return genericResponse()
	}

	resetURL := fmt.Sprintf("%s://%s/passwordreset/%s", c.Scheme(), c.Request().Host, url.PathEscape(token))

	body := fmt.Sprintf(
		"Click the link to reset your password:\n\n%s\n\nThe link is valid for 60 minutes.",
		resetURL,
	)
	_ = ctrl.sendEmail(email, "Reset your password", body)

	return genericResponse()
}

// showPasswordResetForm validates the token and renders the "set new password" form.
// If anything fails (invalid/expired), it redirects with a neutral error message.
func (ctrl *controller) showPasswordResetForm(c echo.Context) error {
	token := c.Param("token")

	sum := sha256.Sum256([]byte(token))
	user, err := ctrl.model.GetUserByResetToken(sum[:])
	if err != nil || user == nil || user.PasswordResetExpiry.Before(time.Now().UTC()) ||
		!constantTimeMatchToken(token, user.PasswordResetToken) {
		_ = AddFlash(c, "error", "The link is invalid or has expired.")
		return c.Redirect(http.StatusSeeOther, "/login")
	}

	m := ctrl.defaultResponseMap(c, "Set a new password")
	m["token"] = token
	return c.Render(http.StatusOK, "passwordresettoken.html", m)
}

// handlePasswordResetSubmit sets the new password and clears the token.
// Always responds neutrally on failure to avoid leaks.
func (ctrl *controller) handlePasswordResetSubmit(c echo.Context) error {
	token := c.Param("token")
	pass := c.FormValue("newPassword")
	confirm := c.FormValue("confirmPassword")
	logger := c.Get("logger").(*slog.Logger)

	if pass == "" || pass != confirm {
		_ = AddFlash(c, "error", "Please check your input (passwords do not match).")
		return c.Redirect(http.StatusSeeOther, c.Request().RequestURI)
	}

	sum := sha256.Sum256([]byte(token))
	user, err := ctrl.model.GetUserByResetToken(sum[:])
	if err != nil || user == nil || user.PasswordResetExpiry.Before(time.Now().UTC()) ||
		!constantTimeMatchToken(token, user.PasswordResetToken) {
		_ = AddFlash(c, "error", "The link is invalid or has expired.")
		return c.Redirect(http.StatusSeeOther, "/login")
	}

	if err := ctrl.model.SetPassword(user, pass); err != nil {
		logger.Error("cannot set password", "error", err)
		_ = AddFlash(c, "error", "Internal error. Please try again later.")
		return c.Redirect(http.StatusSeeOther, "/login")
	}
	// clear the token (best-effort after password update)
	user.PasswordResetToken = nil
	user.PasswordResetExpiry = time.Time{}
	if err := ctrl.model.UpdateUser(user); err != nil {
		logger.Error("cannot clear reset token", "error", err)
	}

	_ = AddFlash(c, "success", "Your password has been updated. You can sign in now.")
	return c.Redirect(http.StatusSeeOther, "/login")
}
