package i18n

import (
	"strconv"
	"strings"
)

type EmailContent struct {
	Subject string
	Text    string
	HTML    string
}

type emailStrings struct {
	VerificationSubject string
	VerificationText    string
	VerificationHTML    string

	PasswordResetSubject string
	PasswordResetText    string
	PasswordResetHTML    string

	OAuthNoticeSubject string
	OAuthNoticeText    string
	OAuthNoticeHTML    string

	SignInSubject string
	SignInText    string
	SignInHTML    string

	UnknownDevice string
}

var emailTranslations = map[string]emailStrings{
	"en": {
		VerificationSubject: "Confirm your email address",
		VerificationText: "Welcome to Kapee!\n\nYour confirmation code is {code}. " +
			"You can also confirm directly: {link}\n\n" +
			"The code and link expire in {minutes} minutes. " +
			"If you did not create an account, you can ignore this email.",
		VerificationHTML: "<p>Welcome to Kapee!</p>" +
			"<p>Enter the code below in the shop, or use the button to confirm directly.</p>" +
			"<p style=\"font-size:24px\"><strong>{code}</strong></p>" +
			"<p><a href=\"{link}\">Confirm email address</a></p>" +
			"<p>The code and link expire in {minutes} minutes.</p>" +
			"<p>If you did not create an account, you can ignore this email.</p>",

		PasswordResetSubject: "Reset your Kapee password",
		PasswordResetText: "A password reset was requested for your account.\n\n" +
			"Reset it here: {link}\n\nThe link expires in {minutes} minutes. " +
			"If you did not request this, ignore this email.",
		PasswordResetHTML: "<p>A password reset was requested for your account.</p>" +
			"<p><a href=\"{link}\">Choose a new password</a></p>" +
			"<p>The link expires in {minutes} minutes.</p>" +
			"<p>If you did not request this, ignore this email.</p>",

		OAuthNoticeSubject: "Your account signs in with Google",
		OAuthNoticeText: "A password reset was requested for your account, but this account " +
			"signs in through Google and has no password. Use the Google sign-in on the " +
			"login page instead.",
		OAuthNoticeHTML: "<p>A password reset was requested for your account, but this account " +
			"signs in through Google and has no password.</p>" +
			"<p>Use the Google sign-in on the login page instead.</p>",

		SignInSubject: "New sign-in to your Kapee account",
		SignInText: "Hi {email},\n\nYour account was signed in to on {time}.\n\n" +
			"IP: {ip}\nDevice: {device}\n\n" +
			"If this wasn't you, reset your password and sign out other devices.",
		SignInHTML: "<p>Hi {email},</p>" +
			"<p>Your account was signed in to on <strong>{time}</strong>.</p>" +
			"<ul><li><strong>IP:</strong> {ip}</li>" +
			"<li><strong>Device:</strong> {device}</li></ul>" +
			"<p>If this wasn't you, reset your password and sign out other devices.</p>",

		UnknownDevice: "Unknown device",
	},
	"de": {
		VerificationSubject: "Bestätigen Sie Ihre E-Mail-Adresse",
		VerificationText: "Willkommen bei Kapee!\n\nIhr Bestätigungscode ist {code}. " +
			"Sie können auch direkt bestätigen: {link}\n\n" +
			"Code und Link laufen in {minutes} Minuten ab. " +
			"Wenn Sie kein Konto erstellt haben, können Sie diese E-Mail ignorieren.",
		VerificationHTML: "<p>Willkommen bei Kapee!</p>" +
			"<p>Geben Sie den Code im Shop ein oder bestätigen Sie direkt über den Button.</p>" +
			"<p style=\"font-size:24px\"><strong>{code}</strong></p>" +
			"<p><a href=\"{link}\">E-Mail-Adresse bestätigen</a></p>" +
			"<p>Code und Link laufen in {minutes} Minuten ab.</p>" +
			"<p>Wenn Sie kein Konto erstellt haben, können Sie diese E-Mail ignorieren.</p>",

		PasswordResetSubject: "Kapee-Passwort zurücksetzen",
		PasswordResetText: "Für Ihr Konto wurde ein Passwort-Reset angefordert.\n\n" +
			"Hier zurücksetzen: {link}\n\nDer Link läuft in {minutes} Minuten ab. " +
			"Wenn Sie dies nicht angefordert haben, ignorieren Sie diese E-Mail.",
		PasswordResetHTML: "<p>Für Ihr Konto wurde ein Passwort-Reset angefordert.</p>" +
			"<p><a href=\"{link}\">Neues Passwort wählen</a></p>" +
			"<p>Der Link läuft in {minutes} Minuten ab.</p>" +
			"<p>Wenn Sie dies nicht angefordert haben, ignorieren Sie diese E-Mail.</p>",

		OAuthNoticeSubject: "Ihr Konto meldet sich über Google an",
		OAuthNoticeText: "Für Ihr Konto wurde ein Passwort-Reset angefordert, aber dieses Konto " +
			"meldet sich über Google an und hat kein Passwort. Verwenden Sie stattdessen die " +
			"Google-Anmeldung auf der Login-Seite.",
		OAuthNoticeHTML: "<p>Für Ihr Konto wurde ein Passwort-Reset angefordert, aber dieses Konto " +
			"meldet sich über Google an und hat kein Passwort.</p>" +
			"<p>Verwenden Sie stattdessen die Google-Anmeldung auf der Login-Seite.</p>",

		SignInSubject: "Neue Anmeldung in Ihrem Kapee-Konto",
		SignInText: "Hallo {email},\n\nIn Ihrem Konto erfolgte am {time} eine Anmeldung.\n\n" +
			"IP: {ip}\nGerät: {device}\n\n" +
			"Wenn Sie das nicht waren, setzen Sie Ihr Passwort zurück und melden Sie andere Geräte ab.",
		SignInHTML: "<p>Hallo {email},</p>" +
			"<p>In Ihrem Konto erfolgte am <strong>{time}</strong> eine Anmeldung.</p>" +
			"<ul><li><strong>IP:</strong> {ip}</li>" +
			"<li><strong>Gerät:</strong> {device}</li></ul>" +
			"<p>Wenn Sie das nicht waren, setzen Sie Ihr Passwort zurück und melden Sie andere Geräte ab.</p>",

		UnknownDevice: "Unbekanntes Gerät",
	},
}

func emailStringsForLocale(locale string) emailStrings {
	key := NormalizeLocale(locale)
	if val, ok := emailTranslations[key]; ok {
		return val
	}
	return emailTranslations[DefaultLocale]
}

func renderTemplate(tmpl string, values map[string]string) string {
	if tmpl == "" || len(values) == 0 {
		return tmpl
	}

	replacements := make([]string, 0, len(values)*2)
	for key, value := range values {
		replacements = append(replacements, "{"+key+"}", value)
	}
	return strings.NewReplacer(replacements...).Replace(tmpl)
}

// VerificationEmail carries both the six-digit code and the direct
// confirmation link so either path can complete verification.
func VerificationEmail(locale, code, link string, minutes int) EmailContent {
	templates := emailStringsForLocale(locale)
	values := map[string]string{
		"code":    code,
		"link":    link,
		"minutes": strconv.Itoa(minutes),
	}
	return EmailContent{
		Subject: templates.VerificationSubject,
		Text:    renderTemplate(templates.VerificationText, values),
		HTML:    renderTemplate(templates.VerificationHTML, values),
	}
}

func PasswordResetEmail(locale, link string, minutes int) EmailContent {
	templates := emailStringsForLocale(locale)
	values := map[string]string{
		"link":    link,
		"minutes": strconv.Itoa(minutes),
	}
	return EmailContent{
		Subject: templates.PasswordResetSubject,
		Text:    renderTemplate(templates.PasswordResetText, values),
		HTML:    renderTemplate(templates.PasswordResetHTML, values),
	}
}

func OAuthNoticeEmail(locale string) EmailContent {
	templates := emailStringsForLocale(locale)
	return EmailContent{
		Subject: templates.OAuthNoticeSubject,
		Text:    templates.OAuthNoticeText,
		HTML:    templates.OAuthNoticeHTML,
	}
}

func SignInAlertEmail(locale, email, loginTime, ip, device string) EmailContent {
	templates := emailStringsForLocale(locale)
	if strings.TrimSpace(device) == "" {
		device = templates.UnknownDevice
	}
	values := map[string]string{
		"email":  email,
		"time":   loginTime,
		"ip":     ip,
		"device": device,
	}
	return EmailContent{
		Subject: templates.SignInSubject,
		Text:    renderTemplate(templates.SignInText, values),
		HTML:    renderTemplate(templates.SignInHTML, values),
	}
}
