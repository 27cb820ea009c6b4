package diagnose

import (
	"context"

	"github.com/probelab/webpilot/internal/page"
	"github.com/probelab/webpilot/internal/types"
)

// FormDiagnoser inventories fillable forms. Payment surfaces are fatal and
// must never be automated.
type FormDiagnoser struct{}

func (d *FormDiagnoser) TestType() string { return "Form" }

func (d *FormDiagnoser) Steps() []string {
	return []string{
		"Session initialization",
		"Input inventory",
		"Upload and picker detection",
		"Payment surface detection",
		"Summary compilation",
	}
}

var formProbes = []probe{
	{name: "Form inputs", selector: `input:not([type="hidden"]), textarea, select`, can: true,
		reason: "standard inputs accept scripted values"},
	{name: "Required fields", selector: `[required]`, can: true,
		reason: "required-field validation can be asserted"},
	{name: "File upload", selector: `input[type="file"]`, can: true,
		reason: "file inputs accept generated fixtures"},
	{name: "Date pickers", selector: `input[type="date"], input[type="datetime-local"]`, can: true,
		reason: "native date inputs accept ISO values"},
	{name: "Submit buttons", selector: `button[type="submit"], input[type="submit"]`, can: true,
		reason: "submission can be triggered programmatically"},
	{name: "Payment iframe", selector: `iframe[src*="stripe"], iframe[src*="paypal"], iframe[src*="braintree"], iframe[name*="payment"]`,
		can: false, blocker: BlockerPayment,
		reason: "embedded payment frames must never receive automated input"},
	{name: "Credit card fields", selector: `input[autocomplete="cc-number"], input[name*="card-number"], input[name*="cardnumber"]`,
		can: false, blocker: BlockerPayment,
		reason: "card entry must never receive automated input"},
	{name: "Rich-text editors", selector: `[contenteditable="true"], .ql-editor, .ProseMirror, .tox-edit-area`,
		can: false,
		reason: "contenteditable surfaces do not expose a stable value contract"},
}

func (d *FormDiagnoser) Diagnose(ctx context.Context, p page.Page) (types.TestTypeDiagnosis, error) {
	can, cannot, err := runProbes(ctx, p, formProbes)
	if err != nil {
		return types.TestTypeDiagnosis{}, err
	}
	diag := types.TestTypeDiagnosis{CanTest: can, CannotTest: cannot}
	diag.Narrative = buildNarrative(d.TestType(), can, cannot, nil)
	return diag, nil
}
