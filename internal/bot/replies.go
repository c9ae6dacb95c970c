package bot

import (
	"fmt"
	"html"
)

// Reply templates use the Bot API HTML subset (bold only). All user-supplied
// values are escaped before interpolation.

const (
	replyRegisterPrompt = "Welcome! You need to register first.\n\nEnter a username:"
	replyHandlePrompt   = "Enter your username:"
	replySecretPrompt   = "Enter your password:"
	replyOldSecret      = "Enter your current password:"
	replyNewSecret      = "Enter a new password:"
	replyMustLogin      = "You need to log in first with /login."
	replyBadCredentials = "Wrong username or password. Try again: /login"
	replyBadOldSecret   = "Wrong password. Try again: /password"
	replyHandleTaken    = "Sorry, that username is taken. Enter a different one:"
	replyTryAgain       = "Something went wrong. Please try again."
	replySecretChanged  = "Your password has been changed."
	replyLoggedIn       = "You are logged in.\n\n/password - Change password\n/profile - View profile"

	replyHelpMenu = "Available commands:\n\n/start - Account overview\n/login - Log in\n/password - Change password\n/profile - View profile"
)

func replyAccountMenu(firstName, handle string) string {
	return fmt.Sprintf(
		"Hello %s!\nUsername: <b>%s</b>\n\n<b>Menu:</b>\n/login - Log in\n/password - Change password\n/profile - View profile",
		html.EscapeString(firstName), html.EscapeString(handle),
	)
}

// The generated secret appears in this one reply because chat is the only
// channel that can deliver it to the user. No other reply carries a secret.
func replyRegistered(firstName, handle, secret string) string {
	return fmt.Sprintf(
		"Hello %s! Registration complete.\n\nUsername: <b>%s</b>\nPassword: <b>%s</b>\n\n/login - Log in\n/password - Change password",
		html.EscapeString(firstName), html.EscapeString(handle), html.EscapeString(secret),
	)
}

func replyProfile(handle, joined string) string {
	return fmt.Sprintf(
		"<b>Profile</b>\n\nUsername: <b>%s</b>\nJoined: %s",
		html.EscapeString(handle), joined,
	)
}
