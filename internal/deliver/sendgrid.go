package deliver

import (
	"encoding/base64"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// SendGridSender emails the artifact as an attachment.
type SendGridSender struct {
	client  *sendgrid.Client
	from    string
	subject string
}

func NewSendGridSender(apiKey, fromEmail string) *SendGridSender {
	return &SendGridSender{
		client:  sendgrid.NewSendClient(apiKey),
		from:    fromEmail,
		subject: "Results: document variable extraction",
	}
}

func (s *SendGridSender) Send(data []byte, recipient, filename, subjectSuffix string) error {
	from := mail.NewEmail("", s.from)
	to := mail.NewEmail("", recipient)
	m := mail.NewSingleEmail(from, s.subject+subjectSuffix, to,
		"Attached are the extraction results you requested.",
		"<p>Attached are the extraction results you requested.</p>")

	att := mail.NewAttachment()
	att.SetContent(base64.StdEncoding.EncodeToString(data))
	att.SetType(xlsxContentType)
	att.SetFilename(filename)
	att.SetDisposition("attachment")
	m.AddAttachment(att)

	resp, err := s.client.Send(m)
	if err != nil {
		return fmt.Errorf("sendgrid: %w", err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("sendgrid status %d: %s", resp.StatusCode, truncateBody(resp.Body))
	}
	return nil
}

func truncateBody(s string) string {
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}
