package controllers

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sujit-baniya/flash"

	"github.com/gitwithuli/edgeofict/app/models"
	"github.com/gitwithuli/edgeofict/app/repository"
	"github.com/gitwithuli/edgeofict/internal/pkg/database"
	"github.com/gitwithuli/edgeofict/internal/pkg/env"
	"github.com/gitwithuli/edgeofict/internal/pkg/hcaptcha"
	"github.com/gitwithuli/edgeofict/internal/pkg/mail"
	"github.com/gitwithuli/edgeofict/internal/pkg/session"
	"github.com/gitwithuli/edgeofict/internal/pkg/usercontext"
)

// HandleAuthLogin authenticates an email/password pair and establishes the
// app session.
func HandleAuthLogin(c *fiber.Ctx) error {
	fm := fiber.Map{
		"type": "error",
	}

	// notice: in production you should not inform the user
	// with detailed messages about login failures
	userRepo := repository.GetGlobalRepositories().User
	user, err := userRepo.GetByEmail(c.FormValue("email"))
	if err != nil {
		fm["message"] = "There is a problem with the login process"

		return flash.WithError(c, fm).Redirect("/login")
	}

	if !user.CheckPassword(c.FormValue("password")) {
		fm["message"] = "There is a problem with the login process"

		return flash.WithError(c, fm).Redirect("/login")
	}

	if !user.IsActive() {
		fm["message"] = "Please confirm your email address first"

		return flash.WithError(c, fm).Redirect("/login")
	}

	if err := establishSession(c, user); err != nil {
		fm["message"] = fmt.Sprintf("something went wrong: %s", err)

		return flash.WithError(c, fm).Redirect("/login")
	}

	database.GetDB().Model(user).Update("last_login_at", time.Now())

	fm = fiber.Map{
		"type":    "success",
		"message": "Welcome back. Good trading!",
	}

	return flash.WithSuccess(c, fm).Redirect("/dashboard")
}

// HandleAuthLogout destroys the app session.
func HandleAuthLogout(c *fiber.Ctx) error {
	fm := fiber.Map{
		"type": "error",
	}

	sess, err := session.GetSessionStore().Get(c)
	if err != nil {
		fm["message"] = "logged out (no sess)"

		return flash.WithError(c, fm).Redirect("/login")
	}

	if err := sess.Destroy(); err != nil {
		fm["message"] = fmt.Sprintf("something went wrong: %s", err)

		return flash.WithError(c, fm).Redirect("/login")
	}

	fm = fiber.Map{
		"type":    "success",
		"message": "See you at the next session.",
	}

	c.Locals(usercontext.KeyFromProtected, false)

	return flash.WithSuccess(c, fm).Redirect("/login")
}

// HandleAuthRegister creates an inactive account and sends the activation
// link. Registration is captcha-gated.
func HandleAuthRegister(c *fiber.Ctx) error {
	hcaptchaToken := c.FormValue("h-captcha-response")
	valid, err := hcaptcha.Verify(hcaptchaToken)
	if err != nil || !valid {
		errorMsg := "Captcha validation failed. Please try again."
		if err != nil && env.IsDev() {
			errorMsg = fmt.Sprintf("Captcha validation failed: %v", err)
		}

		fm := fiber.Map{
			"type":    "error",
			"message": errorMsg,
		}
		return flash.WithError(c, fm).Redirect("/register")
	}

	user, err := models.CreateUser(c.FormValue("username"), c.FormValue("email"), c.FormValue("password"))
	if err != nil {
		fm := fiber.Map{
			"type":    "error",
			"message": fmt.Sprintf("something went wrong: %s", err),
		}

		return flash.WithError(c, fm).Redirect("/register")
	}

	if err := user.GenerateActivationToken(); err != nil {
		fm := fiber.Map{
			"type":    "error",
			"message": "could not prepare account activation",
		}

		return flash.WithError(c, fm).Redirect("/register")
	}

	if err := repository.GetGlobalRepositories().User.Create(user); err != nil {
		fm := fiber.Map{
			"type":    "error",
			"message": fmt.Sprintf("something went wrong: %s", err),
		}

		return flash.WithError(c, fm).Redirect("/register")
	}

	go sendActivationMail(user)

	fm := fiber.Map{
		"type":    "success",
		"message": "Registered! Check your inbox for the activation link.",
	}

	return flash.WithSuccess(c, fm).Redirect("/login")
}

// HandleAuthActivate flips an account to active when the token matches.
func HandleAuthActivate(c *fiber.Ctx) error {
	token := c.Params("token")
	if token == "" {
		return flash.WithError(c, fiber.Map{
			"type":    "error",
			"message": "missing activation token",
		}).Redirect("/login")
	}

	userRepo := repository.GetGlobalRepositories().User
	user, err := userRepo.GetByActivationToken(token)
	if err != nil {
		return flash.WithError(c, fiber.Map{
			"type":    "error",
			"message": "invalid or expired activation token",
		}).Redirect("/login")
	}

	user.Status = models.STATUS_ACTIVE
	user.ActivationToken = ""
	if err := userRepo.Update(user); err != nil {
		return flash.WithError(c, fiber.Map{
			"type":    "error",
			"message": "activation failed, please try again",
		}).Redirect("/login")
	}

	return flash.WithSuccess(c, fiber.Map{
		"type":    "success",
		"message": "Account activated. You can log in now.",
	}).Redirect("/login")
}

func establishSession(c *fiber.Ctx, user *models.User) error {
	sess, err := session.GetSessionStore().Get(c)
	if err != nil {
		return err
	}

	sess.Set(usercontext.AuthKey, true)
	sess.Set(usercontext.KeyUserID, user.ID)
	sess.Set(usercontext.KeyUsername, user.Name)
	sess.Set(usercontext.KeyIsAdmin, user.Role == models.ROLE_ADMIN)
	// Tier is resolved lazily by the user context middleware on the next
	// request; a stale value from a previous login must not leak through.
	sess.Delete(usercontext.KeyTier)
	sess.Delete(usercontext.KeyTierExpiry)

	return sess.Save()
}

func sendActivationMail(user *models.User) {
	appURL := env.GetEnv("APP_URL", "http://localhost:3000")
	link := fmt.Sprintf("%s/activate/%s", appURL, user.ActivationToken)
	body := fmt.Sprintf(
		"<p>Welcome to Edge of ICT, %s!</p><p><a href=\"%s\">Activate your account</a></p>",
		user.Name, link,
	)
	_ = mail.SendMail(user.Email, "Activate your Edge of ICT account", body)
}
