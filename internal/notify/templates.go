package notify

import "github.com/leadloop/leadloop-go/internal/render"

// Outbound copy, one template per outcome tier. Rendered with the
// logic-template engine so conditional lines drop cleanly when their
// variable is absent.

const successTemplate = `Your schedule "{{schedule_name}}" ran on {{ran_at}}.

Sourced {{leads_inserted}} new leads ({{leads_found}} found, {{leads_deduped}} already in your campaign) with {{quality}} match quality in {{attempts}} attempt(s).
{{#if outreach_queued}}Outreach queued for {{outreach_queued}} leads.{{/if}}
{{#if action_url}}Review them here: {{action_url}}{{/if}}`

const lowResultsTemplate = `Your schedule "{{schedule_name}}" ran on {{ran_at}} but came up light.

Only {{leads_inserted}} new leads made it in ({{leads_found}} found, {{leads_deduped}} duplicates). Match quality was {{quality}}.
{{#if failure_mode}}The main issue looked like: {{failure_mode}}.{{/if}}
{{#if action_url}}You may want to widen the persona: {{action_url}}{{/if}}`

const actionNeededTemplate = `Your schedule "{{schedule_name}}" needs attention.

The run on {{ran_at}} could not find acceptable results after {{attempts}} attempt(s). Match quality was {{quality}}{{#if failure_mode}} and the main issue was {{failure_mode}}{{/if}}.

No automatic adjustment is likely to help. Please review the persona's targeting.
{{#if action_url}}Fix it here: {{action_url}}{{/if}}`

// RenderMessage produces the outbound text for an outcome tier.
func RenderMessage(outcome Outcome, vars map[string]any) string {
	switch outcome {
	case OutcomeActionNeeded:
		return render.Render(actionNeededTemplate, vars)
	case OutcomeLowResults:
		return render.Render(lowResultsTemplate, vars)
	default:
		return render.Render(successTemplate, vars)
	}
}

// Subject returns the e-mail subject line for an outcome tier.
func Subject(outcome Outcome, scheduleName string) string {
	switch outcome {
	case OutcomeActionNeeded:
		return "Action needed: " + scheduleName
	case OutcomeLowResults:
		return "Low results: " + scheduleName
	default:
		return "Run complete: " + scheduleName
	}
}
