package outlook

import (
	"fmt"
	"net/http"
	"net/mail"
	"strings"

	"github.com/prdeepak/ms365-access/internal/connectors/microsoft"
	"github.com/prdeepak/ms365-access/internal/core/domain"
)

// Body content types.
const (
	ContentTypeText = "Text"
	ContentTypeHTML = "HTML"
)

// SendInput is the simplified body of POST /mail/send.
type SendInput struct {
	To          []string `json:"to"`
	Cc          []string `json:"cc,omitempty"`
	Bcc         []string `json:"bcc,omitempty"`
	Subject     string   `json:"subject"`
	Body        string   `json:"body"`
	ContentType string   `json:"content_type,omitempty"`
	// SaveToSentItems defaults to true.
	SaveToSentItems *bool `json:"save_to_sent_items,omitempty"`
}

// EmailAddress is Graph's address shape.
type EmailAddress struct {
	Name    string `json:"name,omitempty"`
	Address string `json:"address"`
}

// Recipient wraps an address the way Graph expects it.
type Recipient struct {
	EmailAddress EmailAddress `json:"emailAddress"`
}

// MessageBody is the body of a message.
type MessageBody struct {
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

// Message is the subset of a Graph message used when sending.
type Message struct {
	Subject       string      `json:"subject"`
	Body          MessageBody `json:"body"`
	ToRecipients  []Recipient `json:"toRecipients"`
	CcRecipients  []Recipient `json:"ccRecipients,omitempty"`
	BccRecipients []Recipient `json:"bccRecipients,omitempty"`
}

// sendMailPayload is the body of POST /me/sendMail.
type sendMailPayload struct {
	Message         Message `json:"message"`
	SaveToSentItems bool    `json:"saveToSentItems"`
}

// Validate checks recipients and the content type.
func (in *SendInput) Validate() error {
	if len(in.To) == 0 {
		return fmt.Errorf("%w: at least one recipient is required", microsoft.ErrInvalidRequest)
	}
	for _, list := range [][]string{in.To, in.Cc, in.Bcc} {
		for _, addr := range list {
			if _, err := mail.ParseAddress(addr); err != nil {
				return fmt.Errorf("%w: invalid recipient address", microsoft.ErrInvalidRequest)
			}
		}
	}
	switch strings.ToLower(in.ContentType) {
	case "", "text", "html":
	default:
		return fmt.Errorf("%w: content_type must be text or html", microsoft.ErrInvalidRequest)
	}
	return nil
}

// RecipientCount is the number of addresses the message goes to.
func (in *SendInput) RecipientCount() int {
	return len(in.To) + len(in.Cc) + len(in.Bcc)
}

// Request returns the Graph sendMail call. Call Validate first.
func (in *SendInput) Request() microsoft.Request {
	contentType := ContentTypeText
	if strings.EqualFold(in.ContentType, "html") {
		contentType = ContentTypeHTML
	}
	save := true
	if in.SaveToSentItems != nil {
		save = *in.SaveToSentItems
	}

	return microsoft.Request{
		Resource: domain.ResourceMail,
		Method:   http.MethodPost,
		Path:     "/me/sendMail",
		Body: sendMailPayload{
			Message: Message{
				Subject:       in.Subject,
				Body:          MessageBody{ContentType: contentType, Content: in.Body},
				ToRecipients:  recipients(in.To),
				CcRecipients:  recipients(in.Cc),
				BccRecipients: recipients(in.Bcc),
			},
			SaveToSentItems: save,
		},
	}
}

func recipients(addrs []string) []Recipient {
	if len(addrs) == 0 {
		return nil
	}
	out := make([]Recipient, 0, len(addrs))
	for _, a := range addrs {
		parsed, err := mail.ParseAddress(a)
		if err != nil {
			out = append(out, Recipient{EmailAddress: EmailAddress{Address: strings.TrimSpace(a)}})
			continue
		}
		out = append(out, Recipient{EmailAddress: EmailAddress{Name: parsed.Name, Address: parsed.Address}})
	}
	return out
}
