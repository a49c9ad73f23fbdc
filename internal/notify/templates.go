package notify

import (
	"fmt"
	"strings"
)

// subjects maps template names to subject lines.
var subjects = map[string]string{
	TemplatePasswordReset:   "Reset your password",
	TemplatePasswordChanged: "Your password was changed",
	TemplateVerifyEmail:     "Verify your email address",
	TemplateNewSession:      "New sign-in to your account",
	TemplateInvite:          "You've been invited to a shared document",
	TemplateInviteRedeemed:  "Your invite was accepted",
	TemplateMemberAdded:     "You've been added to a share",
	TemplateShareDeleted:    "A share you were a member of was removed",
}

// RenderEmail produces the subject and plain-text body for a template.
func RenderEmail(template string, data map[string]any) (subject, body string, err error) {
	subject, ok := subjects[template]
	if !ok {
		return "", "", fmt.Errorf("unknown email template %q", template)
	}

	var b strings.Builder
	b.WriteString("Hello,\n\n")

	str := func(key string) string {
		v, _ := data[key].(string)
		return v
	}

	switch template {
	case TemplatePasswordReset:
		b.WriteString("You requested a password reset.\n\n")
		b.WriteString(fmt.Sprintf("Reset it here: %s\n\n", str("reset_url")))
		b.WriteString("The link expires shortly. If you did not request this, you can ignore this email.\n")

	case TemplatePasswordChanged:
		b.WriteString("The password for your account was just changed.\n\n")
		b.WriteString("If this was not you, reset your password immediately and contact your administrator.\n")

	case TemplateVerifyEmail:
		b.WriteString("Confirm this email address for your account.\n\n")
		b.WriteString(fmt.Sprintf("Verify here: %s\n", str("verify_url")))

	case TemplateNewSession:
		b.WriteString("A new session was started on your account.\n\n")
		if device := str("device_name"); device != "" {
			b.WriteString(fmt.Sprintf("Device: %s\n", device))
		}
		b.WriteString("If this was not you, revoke the session and change your password.\n")

	case TemplateInvite:
		b.WriteString(fmt.Sprintf("You've been invited as %s to %q.\n\n", str("role"), str("path")))
		b.WriteString(fmt.Sprintf("Accept the invite: %s\n", str("invite_url")))

	case TemplateInviteRedeemed:
		b.WriteString(fmt.Sprintf("%s accepted your invite to %q.\n", str("email"), str("path")))

	case TemplateMemberAdded:
		b.WriteString(fmt.Sprintf("You've been granted %s access to %q.\n", str("role"), str("path")))

	case TemplateShareDeleted:
		b.WriteString(fmt.Sprintf("The share %q was removed; you no longer have access through it.\n", str("path")))
	}

	return subject, b.String(), nil
}
