package mailer

import (
	"bytes"
	htmltemplate "html/template"
	texttemplate "text/template"
	"time"

	rsvp "github.com/cactusmakesperfect/rsvp"
	"github.com/microcosm-cc/bluemonday"
)

const defaultSubject = "Your RSVP login code"

var textBody = texttemplate.Must(texttemplate.New("text").Parse(
	`Hello {{.Name}},

Your login code is {{.Code}}.
Or open this link: {{.Link}}

The code expires at {{.Expires}}.
`))

var htmlBody = htmltemplate.Must(htmltemplate.New("html").Parse(
	`<p>Hello {{.Name}},</p>
<p>Your login code is <strong>{{.Code}}</strong>.</p>
<p><a href="{{.Link}}">Open your invitation</a></p>
<p>The code expires at {{.Expires}}.</p>
`))

var htmlPolicy = bluemonday.UGCPolicy()

// Message is a rendered login mail.
type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

type templateData struct {
	Name    string
	Code    string
	Link    string
	Expires string
}

// Render builds the text and HTML bodies for msg.
func Render(msg rsvp.LoginMessage) (Message, error) {
	data := templateData{
		Name:    msg.Name,
		Code:    msg.Code,
		Link:    msg.Link,
		Expires: msg.ExpiresAt.UTC().Format(time.RFC1123),
	}
	if data.Name == "" {
		data.Name = "there"
	}

	var text bytes.Buffer
	if err := textBody.Execute(&text, data); err != nil {
		return Message{}, err
	}
	var html bytes.Buffer
	if err := htmlBody.Execute(&html, data); err != nil {
		return Message{}, err
	}

	return Message{
		To:      msg.Email,
		Subject: defaultSubject,
		Text:    text.String(),
		HTML:    htmlPolicy.Sanitize(html.String()),
	}, nil
}
