package service

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/nyaruka/phonenumbers"
	"golang.org/x/net/idna"

	"github.com/augustalabs/summit-outreach/internal/config"
)

var idnaProfile = idna.Lookup

const defaultPhoneRegion = "PT"

// ValidateContact normalizes and validates the sender identity embedded in
// outgoing messages. A typo here would be copied into every meeting request
// of a run, so it is rejected at startup rather than discovered in the
// output.
func ValidateContact(contact config.ContactConfig) (config.ContactConfig, error) {
	contact.Name = strings.TrimSpace(contact.Name)
	contact.Company = strings.TrimSpace(contact.Company)
	if contact.Name == "" || contact.Company == "" {
		return config.ContactConfig{}, fmt.Errorf("contact name and company are required")
	}

	linkedIn, err := normalizeProfileURL(contact.LinkedIn, "linkedin.com")
	if err != nil {
		return config.ContactConfig{}, fmt.Errorf("contact linkedin: %w", err)
	}
	contact.LinkedIn = linkedIn

	whatsApp, err := normalizePhone(contact.WhatsApp, defaultPhoneRegion)
	if err != nil {
		return config.ContactConfig{}, fmt.Errorf("contact whatsapp: %w", err)
	}
	contact.WhatsApp = whatsApp

	return contact, nil
}

// normalizeProfileURL checks the URL parses, uses https and belongs to the
// expected domain, punycoding the host first.
func normalizeProfileURL(raw, wantDomain string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("value is required")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", raw, err)
	}
	if parsed.Scheme != "https" {
		return "", fmt.Errorf("url %q must use https", raw)
	}

	host, err := idnaProfile.ToASCII(strings.ToLower(parsed.Hostname()))
	if err != nil || host == "" {
		return "", fmt.Errorf("invalid host in %q", raw)
	}
	if host != wantDomain && !strings.HasSuffix(host, "."+wantDomain) {
		return "", fmt.Errorf("url %q is not on %s", raw, wantDomain)
	}
	return parsed.String(), nil
}

// normalizePhone parses the number and returns its E.164 form.
func normalizePhone(raw, region string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("value is required")
	}
	number, err := phonenumbers.Parse(raw, region)
	if err != nil {
		return "", fmt.Errorf("invalid phone number %q: %w", raw, err)
	}
	if !phonenumbers.IsPossibleNumber(number) || !phonenumbers.IsValidNumber(number) {
		return "", fmt.Errorf("phone number %q failed validation", raw)
	}
	return phonenumbers.Format(number, phonenumbers.E164), nil
}
