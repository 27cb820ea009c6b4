package diagnose

import (
	"context"

	"github.com/probelab/webpilot/internal/page"
	"github.com/probelab/webpilot/internal/types"
)

// LoginDiagnoser analyzes the sign-in surface. CAPTCHA and MFA findings are
// fatal: they fail the narrative regardless of other positives.
type LoginDiagnoser struct{}

func (d *LoginDiagnoser) TestType() string { return "Login" }

func (d *LoginDiagnoser) Steps() []string {
	return []string{
		"Session initialization",
		"Credential field scan",
		"Blocker detection",
		"Submit control analysis",
		"Summary compilation",
	}
}

var loginProbes = []probe{
	{name: "Password fields", selector: `input[type="password"]`, can: true,
		reason: "password inputs accept scripted credentials"},
	{name: "Username or email field", selector: `input[type="email"], input[name*="user"], input[autocomplete="username"]`, can: true,
		reason: "identifier input accepts scripted text"},
	{name: "Login submit button", selector: `button[type="submit"], input[type="submit"]`, can: true,
		reason: "submit control can be clicked programmatically"},
	{name: "Remember-me option", selector: `input[type="checkbox"][name*="remember"]`, can: true,
		reason: "persistent-session toggle can be exercised"},
	{name: "CAPTCHA detected", selector: `.g-recaptcha, .h-captcha, iframe[src*="recaptcha"], iframe[src*="hcaptcha"], [class*="captcha"]`,
		can: false, blocker: BlockerCaptcha,
		reason: "CAPTCHA challenges cannot be solved by automation"},
	{name: "OAuth sign-in buttons", selector: `a[href*="oauth"], button[class*="oauth"], [class*="social-login"]`,
		can: false, blocker: BlockerOAuth,
		reason: "third-party identity providers leave the page under test"},
}

var mfaKeywords = []string{
	"verification code", "one-time password", "one-time code",
	"authenticator app", "two-factor", "2fa code",
}

func (d *LoginDiagnoser) Diagnose(ctx context.Context, p page.Page) (types.TestTypeDiagnosis, error) {
	can, cannot, err := runProbes(ctx, p, loginProbes)
	if err != nil {
		return types.TestTypeDiagnosis{}, err
	}
	hit, err := evalString(ctx, p, keywordScript("mfaKeywords", mfaKeywords))
	if err != nil {
		return types.TestTypeDiagnosis{}, err
	}
	if hit != "" {
		cannot = append(cannot, types.CheckItem{
			Name:         "MFA or OTP requirement",
			Reason:       "page text mentions " + hit + "; a second factor cannot be supplied by automation",
			BlockerClass: BlockerMFA,
		})
	}
	diag := types.TestTypeDiagnosis{CanTest: can, CannotTest: cannot}
	diag.Narrative = buildNarrative(d.TestType(), can, cannot, nil)
	return diag, nil
}
