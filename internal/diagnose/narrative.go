package diagnose

import (
	"fmt"
	"strings"

	"github.com/probelab/webpilot/internal/types"
)

// narrativeIntro maps a test type to the what/how prose shown to
// non-technical viewers. Kept in one table so wording stays stable across
// runs of the same page.
var narrativeIntro = map[string][2]string{
	"Login":         {"Checked whether the login flow can be exercised automatically.", "Looked for credential fields, submit controls, and conditions that block automation such as CAPTCHA or multi-factor prompts."},
	"Signup":        {"Checked whether account registration can be exercised automatically.", "Looked for registration fields, confirmation inputs and terms checkboxes, and for verification requirements that need a real inbox or phone."},
	"Form":          {"Checked whether page forms can be filled and submitted automatically.", "Inventoried inputs, required fields, upload and date controls, and flagged payment surfaces that must never be automated."},
	"Navigation":    {"Checked whether site navigation can be explored automatically.", "Counted internal links, menus, search, breadcrumbs, pagination and tabs, and separated out destinations whose content cannot be verified."},
	"Visual":        {"Checked whether the page's rendering can be verified automatically.", "Inspected images, layout containers and metadata, and flagged canvas, video and cross-origin regions whose pixels cannot be asserted on."},
	"Accessibility": {"Checked whether accessibility properties can be audited automatically.", "Measured ARIA coverage, label association, alt text, heading structure, focus order and contrast capability."},
	"RageBait":      {"Checked which edge-case behaviors can be provoked automatically.", "Probed history handling, unload guards, storage, keyboard submission, input boundaries, modals and scroll behavior."},
}

// fatalClasses lists, per test type, the blocker classes that fail the
// narrative outright regardless of positive findings. A CAPTCHA or MFA hit
// always fails Login/Signup; a payment surface always fails Form.
var fatalClasses = map[string][]string{
	"Login":  {BlockerCaptcha, BlockerMFA},
	"Signup": {BlockerCaptcha, BlockerVerification},
	"Form":   {BlockerPayment},
}

// buildNarrative derives the pass/fail judgment and its plain-English text
// strictly from the findings. Precedence:
//
//  1. any cannotTest entry carrying a fatal blocker class for this test
//     type fails the narrative;
//  2. an analysis limitation with no positive findings fails it;
//  3. otherwise it passes when at least one canTest finding exists.
func buildNarrative(testType string, can, cannot []types.CheckItem, extraFatal []string) types.Narrative {
	intro := narrativeIntro[testType]
	fatal := append(append([]string{}, fatalClasses[testType]...), extraFatal...)

	var fatalHit *types.CheckItem
	limited := false
	for i := range cannot {
		if cannot[i].BlockerClass == BlockerAnalysisLimit {
			limited = true
		}
		for _, class := range fatal {
			if cannot[i].BlockerClass == class && fatalHit == nil {
				fatalHit = &cannot[i]
			}
		}
	}

	n := types.Narrative{What: intro[0], How: intro[1]}
	switch {
	case fatalHit != nil:
		n.Passed = false
		n.Why = fmt.Sprintf("%s: %s", fatalHit.Name, fatalHit.Reason)
		n.Result = fmt.Sprintf("Cannot automate %s testing: %s.", strings.ToLower(testType), fatalHit.Name)
	case len(can) == 0 && limited:
		n.Passed = false
		n.Why = cannot[0].Reason
		n.Result = fmt.Sprintf("%s analysis could not complete on this page.", testType)
	case len(can) == 0:
		n.Passed = false
		n.Why = "no automatable components were found for this concern"
		n.Result = fmt.Sprintf("Nothing to automate for %s testing on this page.", strings.ToLower(testType))
	default:
		n.Passed = true
		n.Why = fmt.Sprintf("%d automatable component(s) found, %d limitation(s) noted", len(can), len(cannot))
		n.Result = fmt.Sprintf("%s testing can proceed with %d component(s).", testType, len(can))
	}
	return n
}
