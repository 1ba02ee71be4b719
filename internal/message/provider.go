// Package message builds the personalized outreach text filled into a
// meeting request. A Claude-backed provider writes the opening line; a
// deterministic template provider serves as both standalone mode and
// fallback when the model call fails.
package message

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/augustalabs/summit-outreach/internal/config"
	"github.com/augustalabs/summit-outreach/internal/entity"
)

// clientsByIndustry maps a vertical to reference clients worth name-dropping
// when the attendee works in that space.
var clientsByIndustry = map[string][]string{
	"automotive":          {"Volkswagen Group", "Tata Motors", "Volvo Group"},
	"energy":              {"Siemens", "Baker Hughes", "Halliburton", "Weatherford International", "John Wood Group"},
	"chemicals":           {"BASF SE", "Croda International", "Avantor"},
	"pharmaceutical":      {"AstraZeneca"},
	"logistics":           {"DB Schenker", "DSV", "Kuehne + Nagel", "DP World", "Hutchison Ports"},
	"water_environmental": {"Veolia", "ACCIONA"},
	"infrastructure":      {"Ferrovial", "ACCIONA"},
	"consulting":          {"McKinsey & Company", "Bain & Company", "The Boston Consulting Group"},
	"tech_industrial":     {"Siemens", "ABB"},
	"software":            {"Sage"},
	"general":             {"Volkswagen Group", "Siemens", "Veolia"},
}

// industryTriggers drives the matching: if any term appears in the profile's
// industry or bio, the vertical's clients become candidates.
var industryTriggers = []struct {
	vertical string
	terms    []string
}{
	{"automotive", []string{"automotive", "car", "vehicle", "auto"}},
	{"energy", []string{"energy", "oil", "gas", "petroleum", "renewable"}},
	{"chemicals", []string{"chemical", "pharma", "pharmaceutical"}},
	{"pharmaceutical", []string{"chemical", "pharma", "pharmaceutical"}},
	{"logistics", []string{"logistics", "supply chain", "shipping", "port"}},
	{"water_environmental", []string{"water", "waste", "environmental", "sustainability"}},
	{"infrastructure", []string{"infrastructure", "construction", "engineering"}},
	{"tech_industrial", []string{"industrial", "manufacturing", "tech"}},
	{"software", []string{"software", "saas", "tech"}},
}

var consultingTerms = []string{"consultant", "consulting", "advisory"}

// MatchClients returns up to three reference clients relevant to the
// attendee's industry, falling back to the general list when nothing matches.
func MatchClients(profile entity.Profile) []string {
	industry := strings.ToLower(profile.Industry)
	bio := strings.ToLower(profile.Bio)
	title := strings.ToLower(profile.Title)

	var matched []string
	seen := make(map[string]struct{})
	add := func(clients []string) {
		for _, c := range clients {
			if _, ok := seen[c]; ok {
				continue
			}
			seen[c] = struct{}{}
			matched = append(matched, c)
		}
	}

	for _, trigger := range industryTriggers {
		for _, term := range trigger.terms {
			if strings.Contains(industry, term) || strings.Contains(bio, term) {
				add(clientsByIndustry[trigger.vertical])
				break
			}
		}
	}
	for _, term := range consultingTerms {
		if strings.Contains(title, term) || strings.Contains(bio, term) {
			add(clientsByIndustry["consulting"])
			break
		}
	}

	if len(matched) == 0 {
		matched = append(matched, clientsByIndustry["general"]...)
	}
	if len(matched) > 3 {
		matched = matched[:3]
	}
	return matched
}

const bodyTemplate = `Dear {{Name}}

{{Second Line}}

I am a Machine Learning Engineer and past Solo Founder that is currently working at {{OurCompany}}, we are an applied AI lab from Europe working with Fortune 500 companies and governments (incl. Veolia, Sage, Millennium and Avantor), helping them embed AI into core operations to drive tangible performance and efficiency gains.

Would be great to connect while we're both at WebSummit.

Happy to chat via linkedin ({{LinkedIn}}) or WhatsApp ({{WhatsApp}}) if that's easier.

Best,

{{OurName}}

Engineer, {{OurCompany}}

https://augustalabs.ai`

// render assembles the full message around a second line.
func render(contact config.ContactConfig, name, secondLine string) string {
	r := strings.NewReplacer(
		"{{Name}}", name,
		"{{Second Line}}", secondLine,
		"{{OurName}}", contact.Name,
		"{{OurCompany}}", contact.Company,
		"{{LinkedIn}}", contact.LinkedIn,
		"{{WhatsApp}}", contact.WhatsApp,
	)
	return r.Replace(bodyTemplate)
}

// TemplateProvider composes messages without a model call. Its second line is
// deterministic, which also makes it the fallback for the Claude provider.
type TemplateProvider struct {
	contact config.ContactConfig
}

// NewTemplateProvider builds a deterministic provider.
func NewTemplateProvider(contact config.ContactConfig) *TemplateProvider {
	return &TemplateProvider{contact: contact}
}

// Compose renders the message with a generic, client-matched second line.
func (p *TemplateProvider) Compose(_ context.Context, profile entity.Profile) (string, error) {
	company := profile.Company
	if company == "" {
		company = "your company"
	}
	secondLine := fmt.Sprintf(
		"I noticed your work at %s - we've been helping similar companies like %s with their AI transformation.",
		company, MatchClients(profile)[0],
	)
	return render(p.contact, displayName(profile), secondLine), nil
}

func displayName(profile entity.Profile) string {
	if profile.Name == "" {
		return "there"
	}
	return profile.Name
}

// secondLineWriter is the model call behind the Claude provider, narrowed for
// testing.
type secondLineWriter interface {
	write(ctx context.Context, prompt string) (string, error)
}

type claudeWriter struct {
	client anthropic.Client
	model  string
}

func (w claudeWriter) write(ctx context.Context, prompt string) (string, error) {
	resp, err := w.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(w.model),
		MaxTokens: 1024,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("claude call: %w", err)
	}

	var out strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			out.WriteString(block.Text)
		}
	}
	if out.Len() == 0 {
		return "", fmt.Errorf("claude returned no text")
	}
	return strings.TrimSpace(out.String()), nil
}

// ClaudeProvider asks Claude for the opening line and falls back to the
// template provider when the call fails, so a model outage never blocks a
// run.
type ClaudeProvider struct {
	writer   secondLineWriter
	fallback *TemplateProvider
	contact  config.ContactConfig
}

// NewClaudeProvider builds a Claude-backed provider.
func NewClaudeProvider(apiKey, model string, contact config.ContactConfig) *ClaudeProvider {
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &ClaudeProvider{
		writer:   claudeWriter{client: client, model: model},
		fallback: NewTemplateProvider(contact),
		contact:  contact,
	}
}

// Compose generates a personalized second line and renders the full message.
func (p *ClaudeProvider) Compose(ctx context.Context, profile entity.Profile) (string, error) {
	secondLine, err := p.writer.write(ctx, buildPrompt(profile))
	if err != nil {
		log.Printf("message compose fell back to template: %v", err)
		return p.fallback.Compose(ctx, profile)
	}
	return render(p.contact, displayName(profile), secondLine), nil
}

// buildPrompt lays out the attendee profile, the matched reference clients
// and the four second-line templates the model must choose from.
func buildPrompt(profile entity.Profile) string {
	bio := profile.Bio
	if len(bio) > 500 {
		bio = bio[:500]
	}
	clients := strings.Join(MatchClients(profile), ", ")

	var b strings.Builder
	b.WriteString("<task>\nGenerate a personalized second line for a Web Summit meeting request message. This line should act as an icebreaker that creates a connection based on similarity.\n\n")
	fmt.Fprintf(&b, "<attendee_profile>\n- Name: %s\n- Role/Title: %s\n- Company: %s\n- Industry: %s\n- Badge Type: %s\n- Bio: %s\n</attendee_profile>\n\n",
		profile.Name, orNA(profile.Title), orNA(profile.Company), orNA(profile.Industry), profile.Badge, orNA(bio))
	fmt.Fprintf(&b, "<relevant_clients>\nAvailable clients to reference (choose 1-2 most relevant): %s\n</relevant_clients>\n\n", clients)
	b.WriteString(`<template_options>
You must choose ONE of these 4 templates based on the profile:

Template A (AI/Technology Role) - Use when they work in AI, tech, or have technology-focused roles:
"Saw you're [TITLE] at [COMPANY], the operational AI challenges you're likely facing are exactly what we've been solving for companies like [RELEVANT_CLIENT]."

Template B (Specific Focus) - Use when their profile mentions a specific area, project, or expertise:
"I see you're focused on [SPECIFIC_THING_FROM_PROFILE] - that's fascinating because we just wrapped a project doing exactly that for [RELEVANT_CLIENT]."

Template C (Industry Match) - Use when their industry/domain aligns well with our clients:
"Your work in [INDUSTRY/DOMAIN] at [COMPANY] caught my eye - we've been doing similar AI integration work with [RELEVANT_CLIENT]."

Template D (Browsing Fallback) - Use when profile information is sparse or generic:
"I was browsing the Web Summit attendees site and noticed your work at [COMPANY] - we've been helping similar companies like [RELEVANT_CLIENT] with their AI transformation."
</template_options>

<instructions>
1. Analyze the profile to determine which template is most effective
2. Fill in the placeholders with information from the profile and the client list
3. Make it feel natural, specific, and personal - not generic
4. Keep it concise (1-2 sentences maximum)
5. Only use information present in the profile - don't invent details
</instructions>

<output_format>
Return ONLY the completed second line text. No explanations, no quotes, no markdown formatting.
</output_format>`)
	return b.String()
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
