package diagnose

import (
	"context"

	"github.com/probelab/webpilot/internal/page"
	"github.com/probelab/webpilot/internal/types"
)

// SignupDiagnoser analyzes account registration. CAPTCHA and out-of-band
// verification requirements are fatal.
type SignupDiagnoser struct{}

func (d *SignupDiagnoser) TestType() string { return "Signup" }

func (d *SignupDiagnoser) Steps() []string {
	return []string{
		"Session initialization",
		"Registration form scan",
		"Verification requirement check",
		"Blocker detection",
		"Summary compilation",
	}
}

var signupProbes = []probe{
	{name: "Registration form", selector: `form[id*="signup"], form[id*="register"], form[action*="register"], form[action*="signup"]`,
		can: true, reason: "registration form accepts scripted input"},
	{name: "New-password fields", selector: `input[autocomplete="new-password"]`, can: true,
		reason: "password creation accepts generated credentials"},
	{name: "Password confirmation", selector: `input[name*="confirm"], input[id*="confirm"]`, can: true,
		reason: "confirmation field can mirror the generated password"},
	{name: "Terms checkbox", selector: `input[type="checkbox"][name*="terms"], input[type="checkbox"][id*="terms"], input[type="checkbox"][name*="agree"]`,
		can: true, reason: "consent checkbox can be toggled programmatically"},
	{name: "CAPTCHA detected", selector: `.g-recaptcha, .h-captcha, iframe[src*="recaptcha"], iframe[src*="hcaptcha"], [class*="captcha"]`,
		can: false, blocker: BlockerCaptcha,
		reason: "CAPTCHA challenges cannot be solved by automation"},
}

var verificationKeywords = []string{
	"verify your email", "verification link", "confirmation email",
	"verify your phone", "sms code", "check your inbox",
}

func (d *SignupDiagnoser) Diagnose(ctx context.Context, p page.Page) (types.TestTypeDiagnosis, error) {
	can, cannot, err := runProbes(ctx, p, signupProbes)
	if err != nil {
		return types.TestTypeDiagnosis{}, err
	}
	hit, err := evalString(ctx, p, keywordScript("verificationKeywords", verificationKeywords))
	if err != nil {
		return types.TestTypeDiagnosis{}, err
	}
	if hit != "" {
		cannot = append(cannot, types.CheckItem{
			Name:         "Email or phone verification required",
			Reason:       "page text mentions " + hit + "; out-of-band verification needs a real inbox or phone",
			BlockerClass: BlockerVerification,
		})
	}
	diag := types.TestTypeDiagnosis{CanTest: can, CannotTest: cannot}
	diag.Narrative = buildNarrative(d.TestType(), can, cannot, nil)
	return diag, nil
}
