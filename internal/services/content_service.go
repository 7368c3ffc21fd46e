package services

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"sitecraft/internal/caching"
	"sitecraft/internal/compiler"
	"sitecraft/internal/models"
)

const (
	aiRateLimit       = 10
	aiRateLimitWindow = time.Hour
)

// GeneratedContent is a document plus where it came from (ai or fallback).
type GeneratedContent struct {
	Document *models.Document
	Source   string
	Model    string
	// Reason is set when the fallback was used.
	Reason string
}

type ContentService interface {
	// Generate never fails on AI problems; it falls back to static content instead.
	Generate(ctx context.Context, site *models.Site) (*GeneratedContent, error)
}

type contentService struct {
	ai    AIClient
	cache caching.CacheService
}

func NewContentService(ai AIClient, cache caching.CacheService) ContentService {
	return &contentService{ai: ai, cache: cache}
}

const contentSystemPrompt = `You write marketing copy for small business websites.
Reply with a single JSON object and nothing else, shaped as:
{"pages":[{"slug":"home","title":"...","sections":[{"id":"...","heading":"...","blocks":[...]}]}]}
Block types:
  {"type":"text","text":"...","style":"paragraph"}
  {"type":"text","text":"...","style":"heading","level":3}
  {"type":"button","label":"...","href":"/contact/","variant":"primary"}
  {"type":"list","items":["...","..."],"ordered":false}
Rules: page slugs are lowercase letters, digits and dashes; include pages home, about and contact;
do not use image blocks; hrefs are relative paths, #anchors, mailto: or tel: links; no HTML in text.`

func (s *contentService) Generate(ctx context.Context, site *models.Site) (*GeneratedContent, error) {
	if site == nil {
		return nil, fmt.Errorf("site is required")
	}

	reason := s.precheck(ctx, site)
	if reason == "" {
		doc, model, err := s.generateWithAI(ctx, site)
		if err == nil {
			return &GeneratedContent{Document: doc, Source: models.VersionSourceAI, Model: model}, nil
		}
		reason = err.Error()
	}

	log.Printf("WARN: using fallback content for site %s: %s", site.ID, reason)
	return &GeneratedContent{
		Document: FallbackDocument(site),
		Source:   models.VersionSourceFallback,
		Reason:   reason,
	}, nil
}

// precheck returns a non-empty reason when the AI must not be called.
func (s *contentService) precheck(ctx context.Context, site *models.Site) string {
	if s.ai == nil || !s.ai.Enabled() {
		return ErrAIAPIKeyMissing.Error()
	}
	if s.cache == nil {
		return ""
	}
	limited, err := s.cache.IsRateLimited(ctx, "ai:"+site.TenantID.String(), aiRateLimit, aiRateLimitWindow)
	if err != nil {
		log.Printf("WARN: ai rate limit check failed for tenant %s: %v", site.TenantID, err)
		return ""
	}
	if limited {
		return "ai rate limit reached"
	}
	return ""
}

func (s *contentService) generateWithAI(ctx context.Context, site *models.Site) (*models.Document, string, error) {
	resp, err := s.ai.Complete(ctx, ChatRequest{
		SystemPrompt: contentSystemPrompt,
		UserPrompt:   buildContentPrompt(site),
		JSONMode:     true,
	})
	if err != nil {
		return nil, "", err
	}

	doc, err := compiler.ParseDocument([]byte(stripCodeFence(resp.Content)))
	if err != nil {
		return nil, "", fmt.Errorf("ai reply rejected: %w", err)
	}
	return doc, resp.Model, nil
}

func buildContentPrompt(site *models.Site) string {
	b := site.Business
	var sb strings.Builder
	fmt.Fprintf(&sb, "Business name: %s\n", site.Name)
	if b.Industry != "" {
		fmt.Fprintf(&sb, "Industry: %s\n", b.Industry)
	}
	if b.Description != "" {
		fmt.Fprintf(&sb, "About: %s\n", b.Description)
	}
	if b.Audience != "" {
		fmt.Fprintf(&sb, "Audience: %s\n", b.Audience)
	}
	if b.Tone != "" {
		fmt.Fprintf(&sb, "Tone: %s\n", b.Tone)
	}
	if len(b.Keywords) > 0 {
		fmt.Fprintf(&sb, "Keywords: %s\n", strings.Join(b.Keywords, ", "))
	}
	if b.ContactEmail != "" {
		fmt.Fprintf(&sb, "Contact email: %s\n", b.ContactEmail)
	}
	if b.ContactPhone != "" {
		fmt.Fprintf(&sb, "Contact phone: %s\n", b.ContactPhone)
	}
	sb.WriteString("Write the website.")
	return sb.String()
}

// stripCodeFence removes a ```json ... ``` wrapper some models add despite instructions.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// FallbackDocument builds static home, about and contact pages from the business profile.
func FallbackDocument(site *models.Site) *models.Document {
	b := site.Business
	name := strings.TrimSpace(site.Name)
	if name == "" {
		name = "Our business"
	}

	intro := strings.TrimSpace(b.Description)
	if intro == "" {
		intro = fmt.Sprintf("Welcome to %s.", name)
	}

	home := models.Page{
		Slug:  "home",
		Title: name,
		Sections: []models.Section{
			{
				ID:      "hero",
				Heading: name,
				Blocks: []models.Block{
					{Type: models.BlockText, Style: models.TextStyleParagraph, Text: intro},
					{Type: models.BlockButton, Label: "Get in touch", Href: "/contact/", Variant: models.ButtonPrimary},
				},
			},
		},
	}
	if items := nonEmpty(b.Keywords); len(items) > 0 {
		home.Sections = append(home.Sections, models.Section{
			ID:      "services",
			Heading: "What we offer",
			Blocks:  []models.Block{{Type: models.BlockList, Items: items}},
		})
	}

	about := fmt.Sprintf("%s is here to help.", name)
	if b.Industry != "" && b.Audience != "" {
		about = fmt.Sprintf("%s works in %s and serves %s.", name, b.Industry, b.Audience)
	} else if b.Industry != "" {
		about = fmt.Sprintf("%s works in %s.", name, b.Industry)
	} else if b.Audience != "" {
		about = fmt.Sprintf("%s serves %s.", name, b.Audience)
	}

	contactBlocks := []models.Block{
		{Type: models.BlockText, Style: models.TextStyleParagraph, Text: "We would love to hear from you."},
	}
	if email := strings.TrimSpace(b.ContactEmail); email != "" {
		contactBlocks = append(contactBlocks, models.Block{Type: models.BlockButton, Label: email, Href: "mailto:" + email, Variant: models.ButtonPrimary})
	}
	if phone := strings.TrimSpace(b.ContactPhone); phone != "" {
		contactBlocks = append(contactBlocks, models.Block{Type: models.BlockButton, Label: phone, Href: "tel:" + strings.ReplaceAll(phone, " ", ""), Variant: models.ButtonSecondary})
	}

	return &models.Document{Pages: []models.Page{
		home,
		{
			Slug:  "about",
			Title: "About",
			Sections: []models.Section{{
				ID:      "about",
				Heading: "About " + name,
				Blocks:  []models.Block{{Type: models.BlockText, Style: models.TextStyleParagraph, Text: about}},
			}},
		},
		{
			Slug:     "contact",
			Title:    "Contact",
			Sections: []models.Section{{ID: "contact", Heading: "Contact", Blocks: contactBlocks}},
		},
	}}
}

func nonEmpty(items []string) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		if it = strings.TrimSpace(it); it != "" {
			out = append(out, it)
		}
	}
	return out
}
