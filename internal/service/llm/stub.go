package llm

import (
	"context"
	"encoding/json"
	"regexp"
)

var (
	stubTitleRe = regexp.MustCompile(`Title:\s*"([^"]*)"`)
	stubDescRe  = regexp.MustCompile(`Description:\s*"([^"]*)"`)
)

// StubProvider produces deterministic enhancements without any network call.
// It backstops the provider chain so the flow still completes when no API key
// is configured.
type StubProvider struct{}

func NewStubProvider() *StubProvider {
	return &StubProvider{}
}

func (s *StubProvider) Name() string {
	return "stub"
}

func (s *StubProvider) Generate(_ context.Context, prompt string) (string, error) {
	title := "My Activity"
	if m := stubTitleRe.FindStringSubmatch(prompt); m != nil && m[1] != "" {
		title = m[1]
	}
	description := ""
	if m := stubDescRe.FindStringSubmatch(prompt); m != nil {
		description = m[1]
	}

	enhanced := map[string]string{
		"title":       "✨ " + title + " - Epic Journey",
		"description": description + " What an amazing session! #fitness #training #goals",
	}

	payload, err := json.Marshal(enhanced)
	if err != nil {
		return "", err
	}
	return string(payload), nil
}

func (s *StubProvider) Ping(_ context.Context) bool {
	return true
}
