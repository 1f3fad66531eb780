package notification

import (
	"context"
	"fmt"
	"log"
	"strings"

	"cloud.google.com/go/translate"
	"golang.org/x/text/language"
)

// Translator localises citizen-facing text
type Translator interface {
	Translate(ctx context.Context, text, targetLanguage string) (string, error)
	Close() error
}

// GoogleTranslator wraps the Cloud Translation client. Credentials come
// from the environment (GOOGLE_APPLICATION_CREDENTIALS).
type GoogleTranslator struct {
	client *translate.Client
}

// NewGoogleTranslator creates a translator. Returns nil, nil when disabled.
func NewGoogleTranslator(ctx context.Context, enabled bool) (*GoogleTranslator, error) {
	if !enabled {
		log.Println("[NOTIFY] translation disabled, citizen messages are sent in English")
		return nil, nil
	}
	client, err := translate.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create translate client: %w", err)
	}
	return &GoogleTranslator{client: client}, nil
}

// Translate converts English text into targetLanguage (a BCP 47 tag)
func (t *GoogleTranslator) Translate(ctx context.Context, text, targetLanguage string) (string, error) {
	if t == nil || !NeedsTranslation(targetLanguage) {
		return text, nil
	}
	tag, err := language.Parse(targetLanguage)
	if err != nil {
		return "", fmt.Errorf("invalid language %q: %w", targetLanguage, err)
	}

	out, err := t.client.Translate(ctx, []string{text}, tag, &translate.Options{
		Source: language.English,
		Format: translate.Text,
	})
	if err != nil {
		return "", fmt.Errorf("failed to translate: %w", err)
	}
	if len(out) == 0 {
		return "", fmt.Errorf("failed to translate: empty response")
	}
	return out[0].Text, nil
}

// Close releases the client
func (t *GoogleTranslator) Close() error {
	if t == nil {
		return nil
	}
	return t.client.Close()
}

// NeedsTranslation reports whether lang is set and is not English
func NeedsTranslation(lang string) bool {
	lang = strings.TrimSpace(lang)
	if lang == "" {
		return false
	}
	tag, err := language.Parse(lang)
	if err != nil {
		return true
	}
	base, _ := tag.Base()
	english, _ := language.English.Base()
	return base != english
}
