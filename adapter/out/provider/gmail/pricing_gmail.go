// Package gmail adapts the Gmail API to the mailbox provider port.
package gmail

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"golang.org/x/oauth2"
	gmailapi "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"pricing_server/core/domain"
	"pricing_server/core/port/out"
	"pricing_server/pkg/logger"
)

// Fleet implements out.MailboxProvider over a set of operator Gmail
// accounts, each authorized by its own OAuth token.
type Fleet struct {
	services map[string]*gmailapi.Service
	log      *logger.Logger
}

var _ out.MailboxProvider = (*Fleet)(nil)

// NewFleet builds one Gmail service per account token.
func NewFleet(ctx context.Context, cfg *oauth2.Config, tokens map[string]*oauth2.Token) (*Fleet, error) {
	if len(tokens) == 0 {
		return nil, fmt.Errorf("no mailbox tokens configured")
	}
	services := make(map[string]*gmailapi.Service, len(tokens))
	for account, token := range tokens {
		client := cfg.Client(ctx, token)
		svc, err := gmailapi.NewService(ctx, option.WithHTTPClient(client))
		if err != nil {
			return nil, fmt.Errorf("failed to create gmail service for %s: %w", account, err)
		}
		services[account] = svc
	}
	return &Fleet{
		services: services,
		log:      logger.WithField("component", "gmail"),
	}, nil
}

// Accounts returns the configured account addresses.
func (f *Fleet) Accounts() []string {
	out := make([]string, 0, len(f.services))
	for account := range f.services {
		out = append(out, account)
	}
	return out
}

func (f *Fleet) service(account string) (*gmailapi.Service, error) {
	svc, ok := f.services[account]
	if !ok {
		return nil, fmt.Errorf("no gmail service for account %s", account)
	}
	return svc, nil
}

// Search returns ids of messages mentioning the query text, newest first
// (Gmail list order). No match is an empty slice, never an error.
func (f *Fleet) Search(ctx context.Context, account, query string, max int) ([]string, error) {
	svc, err := f.service(account)
	if err != nil {
		return nil, err
	}

	// Quoted so "example.com" matches the literal domain, not tokenized words.
	req := svc.Users.Messages.List("me").Q(fmt.Sprintf("%q", query))
	if max > 0 {
		req = req.MaxResults(int64(max))
	}
	resp, err := req.Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("gmail search failed: %w", err)
	}

	ids := make([]string, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		ids = append(ids, m.Id)
	}
	return ids, nil
}

// Fetch retrieves one full message. Tabular attachment bodies are downloaded
// eagerly; other attachments stay metadata-only and are dropped.
func (f *Fleet) Fetch(ctx context.Context, account, id string) (*domain.CandidateEmail, error) {
	svc, err := f.service(account)
	if err != nil {
		return nil, err
	}

	msg, err := svc.Users.Messages.Get("me", id).Format("full").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("gmail fetch failed: %w", err)
	}

	email, refs := parseMessage(msg)
	email.Account = account
	f.loadTabularAttachments(ctx, svc, id, email, refs)
	return email, nil
}

// attachmentRef is attachment metadata pending a body download.
type attachmentRef struct {
	filename     string
	mimeType     string
	attachmentID string
}

func (f *Fleet) loadTabularAttachments(ctx context.Context, svc *gmailapi.Service, msgID string, email *domain.CandidateEmail, refs []attachmentRef) {
	for _, ref := range refs {
		probe := domain.EmailAttachment{Filename: ref.filename}
		if !probe.IsTabular() || ref.attachmentID == "" {
			continue
		}
		body, err := svc.Users.Messages.Attachments.Get("me", msgID, ref.attachmentID).Context(ctx).Do()
		if err != nil {
			f.log.WithError(err).Warn("attachment download failed: %s", ref.filename)
			continue
		}
		data, err := base64.URLEncoding.DecodeString(body.Data)
		if err != nil {
			f.log.WithError(err).Warn("attachment decode failed: %s", ref.filename)
			continue
		}
		email.Attachments = append(email.Attachments, domain.EmailAttachment{
			Filename: ref.filename,
			MimeType: ref.mimeType,
			Data:     data,
		})
	}
}

// Helper functions

func parseMessage(msg *gmailapi.Message) (*domain.CandidateEmail, []attachmentRef) {
	email := &domain.CandidateEmail{
		ID:   msg.Id,
		Date: time.Unix(msg.InternalDate/1000, 0).UTC(),
	}

	if msg.Payload != nil {
		for _, header := range msg.Payload.Headers {
			switch header.Name {
			case "From":
				email.From = header.Value
			case "Subject":
				email.Subject = header.Value
			}
		}
		html, text := parseBody(msg.Payload)
		if text != "" {
			email.Body = text
		} else {
			email.Body = html
		}
	}
	return email, collectAttachmentRefs(msg.Payload)
}

func parseBody(payload *gmailapi.MessagePart) (html, text string) {
	if payload == nil {
		return "", ""
	}

	if payload.MimeType == "text/html" && payload.Body != nil {
		data, _ := base64.URLEncoding.DecodeString(payload.Body.Data)
		html = string(data)
	}
	if payload.MimeType == "text/plain" && payload.Body != nil {
		data, _ := base64.URLEncoding.DecodeString(payload.Body.Data)
		text = string(data)
	}

	for _, part := range payload.Parts {
		h, t := parseBody(part)
		if html == "" && h != "" {
			html = h
		}
		if text == "" && t != "" {
			text = t
		}
	}
	return html, text
}

func collectAttachmentRefs(payload *gmailapi.MessagePart) []attachmentRef {
	if payload == nil {
		return nil
	}

	var refs []attachmentRef
	if payload.Filename != "" && payload.Body != nil {
		refs = append(refs, attachmentRef{
			filename:     payload.Filename,
			mimeType:     payload.MimeType,
			attachmentID: payload.Body.AttachmentId,
		})
	}
	for _, part := range payload.Parts {
		refs = append(refs, collectAttachmentRefs(part)...)
	}
	return refs
}
