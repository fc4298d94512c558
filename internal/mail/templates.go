// Package mail builds and sends transactional mail.
package mail

import (
	"fmt"
	"strings"
)

// Section is one titled block of a mail body.
type Section struct {
	Title   string
	Content string
}

func buildHeader(title string) string {
	return fmt.Sprintf(`
<tr>
  <td bgcolor="#fff" style="padding: 10px 30px 0px 30px; border-bottom: 1px solid #000;">
    <table align="left" border="0" cellpadding="0" cellspacing="0" style="width: 100%%; max-width: 680px;">
      <tr>
        <td height="70" style="padding: 5px 0 0 0; color: #000; font-family: roboto; font-size: 32px; line-height: 38px; font-weight: bold;">
          %s
        </td>
      </tr>
    </table>
  </td>
</tr>
`, title)
}

func buildBody(sections []Section) string {
	var b strings.Builder
	for _, s := range sections {
		fmt.Fprintf(&b, `
<tr>
  <td style="padding: 30px; border-bottom: 1px solid #000;">
    <table width="100%%" border="0" cellspacing="0" cellpadding="0">
      <tr>
        <td style="color: #000; font-family: roboto; padding: 0 0 15px 0; font-size: 24px; line-height: 28px; font-weight: bold;">
          %s
        </td>
      </tr>
      <tr>
        <td style="color: #000; font-family: roboto; font-size: 16px; line-height: 22px;">
          %s
        </td>
      </tr>
    </table>
  </td>
</tr>
`, s.Title, s.Content)
	}
	return b.String()
}

func buildFooter() string {
	return `
<tr>
  <td bgcolor="#fff" style="padding: 20px 30px 15px 30px;">
    <table width="100%" border="0" cellspacing="0" cellpadding="0">
      <tr>
        <td align="center" style="font-family: roboto; font-size: 14px; color: #000;">
          Copyright(c) pacslink, Inc. All Rights Reserved.<br>
        </td>
      </tr>
    </table>
  </td>
</tr>
`
}

// BuildTemplate wraps sections into the shared mail layout.
func BuildTemplate(title string, sections []Section) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html xmlns="http://www.w3.org/1999/xhtml">
<head>
  <meta http-equiv="Content-Type" content="text/html; charset=utf-8">
  <title>%s</title>
</head>
<body bgcolor="#fff" style="margin: 0; padding: 0; min-width: 100%%;">
<table width="100%%" bgcolor="#fff" border="0" cellpadding="0" cellspacing="0">
  <tr>
    <td>
      <table bgcolor="#fff" align="center" cellpadding="0" cellspacing="0" border="0" style="width: 100%%; max-width: 750px;">
        %s
        %s
        %s
      </table>
    </td>
  </tr>
</table>
</body>
</html>
`, title, buildHeader(title), buildBody(sections), buildFooter())
}

// BuildSignupMail renders the signup walkthrough mail.
func BuildSignupMail(title string) string {
	return BuildTemplate(title, []Section{
		{
			Title:   "Thanks for signing up",
			Content: "Member registration is performed according to the following procedure.",
		},
		{
			Content: `
    <ol>
      <li style="font-weight: 700">Signup Request</li>
      <li>Manager Approval</li>
      <li>Password registration through new approval email link</li>
      <li>Login</li>
    </ol>
    `,
		},
	})
}

// BuildPasswordMail renders the password-change mail carrying the single-use link.
func BuildPasswordMail(title, subtitle, changePasswordURL string) string {
	return BuildTemplate(title, []Section{
		{
			Title: subtitle,
			Content: fmt.Sprintf(`
    Your password change request has been approved.
    <ul>
      <li>Register your password on the link page below</li>
      <li>The password registration link can only be used once within 7 days.</li>
    </ul>
    <div style="text-align: center;">
      <a target="_blank" href="%s">
        <button style="background: #000; color: #fff; padding: 12px 20px; font-family: roboto; border-radius: 4px; border: none; line-height: 20px; height: 44px">
          Update Password
        </button>
      </a>
    </div>
    `, changePasswordURL),
		},
	})
}
