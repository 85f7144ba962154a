package notifications

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"net/url"
	"strings"

	"github.com/angelmondragon/dumpsterpool-backend/internal/funding"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/enums"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/sendgrid"
)

var invitationHTML = template.Must(template.New("invitation").Parse(`<p>Hi {{.InviteeName}},</p>
<p>{{.CreatorName}} invited you to split a dumpster rental for <strong>{{.GroupName}}</strong> at {{.Address}}.</p>
{{if .Slots}}<p>Pick the weeks that work for you:</p><ul>{{range .Slots}}<li>{{.StartDate}} to {{.EndDate}}</li>{{end}}</ul>{{end}}
<p><a href="{{.JoinURL}}">Join the group</a></p>
<p>The group has room for {{.MaxParticipants}} people.</p>`))

var paymentHTML = template.Must(template.New("payment").Parse(`<p>Hi {{.PayerName}},</p>
<p>{{.CreatorName}} finalized the cost for <strong>{{.GroupName}}</strong>.</p>
<p>Your share is <strong>{{.Amount}} {{.Currency}}</strong> for {{.Description}}.</p>
<p>{{.Instructions}}</p>`))

type invitationView struct {
	payloads.InvitationCreatedEvent
	Slots   []payloads.SlotWindow
	JoinURL string
}

type paymentView struct {
	payloads.PaymentRequestCreatedEvent
	Amount       string
	Instructions string
}

// joinURL builds the invitee's link; the token is path-escaped.
func joinURL(baseURL, token string) string {
	return strings.TrimRight(baseURL, "/") + "/join/" + url.PathEscape(token)
}

func invitationMessage(evt payloads.InvitationCreatedEvent, baseURL string) (sendgrid.Message, error) {
	link := joinURL(baseURL, evt.JoinToken)
	view := invitationView{InvitationCreatedEvent: evt, Slots: evt.TimeSlots, JoinURL: link}
	var html bytes.Buffer
	if err := invitationHTML.Execute(&html, view); err != nil {
		return sendgrid.Message{}, fmt.Errorf("render invitation: %w", err)
	}

	var text strings.Builder
	fmt.Fprintf(&text, "Hi %s,\n\n%s invited you to split a dumpster rental for %s at %s.\n",
		evt.InviteeName, evt.CreatorName, evt.GroupName, evt.Address)
	if len(evt.TimeSlots) > 0 {
		text.WriteString("\nProposed weeks:\n")
		for _, s := range evt.TimeSlots {
			fmt.Fprintf(&text, "  - %s to %s\n", s.StartDate, s.EndDate)
		}
	}
	fmt.Fprintf(&text, "\nJoin here: %s\n", link)

	return sendgrid.Message{
		ToEmail:   evt.InviteeEmail,
		ToName:    evt.InviteeName,
		Subject:   fmt.Sprintf("%s invited you to share a dumpster", evt.CreatorName),
		PlainText: text.String(),
		HTML:      html.String(),
	}, nil
}

func paymentRequestMessage(evt payloads.PaymentRequestCreatedEvent) (sendgrid.Message, error) {
	view := paymentView{
		PaymentRequestCreatedEvent: evt,
		Amount:                     funding.FormatCents(evt.AmountCents),
		Instructions:               paymentInstructions(evt.Method, evt.MethodDetails, evt.CreatorName),
	}
	if strings.TrimSpace(view.Description) == "" {
		view.Description = "the dumpster rental"
	}
	var html bytes.Buffer
	if err := paymentHTML.Execute(&html, view); err != nil {
		return sendgrid.Message{}, fmt.Errorf("render payment request: %w", err)
	}
	text := fmt.Sprintf("Hi %s,\n\n%s finalized the cost for %s.\nYour share is %s %s for %s.\n\n%s\n",
		evt.PayerName, evt.CreatorName, evt.GroupName, view.Amount, evt.Currency, view.Description, view.Instructions)

	return sendgrid.Message{
		ToEmail:   evt.PayerEmail,
		ToName:    evt.PayerName,
		Subject:   fmt.Sprintf("Your share for %s: %s %s", evt.GroupName, view.Amount, evt.Currency),
		PlainText: text,
		HTML:      html.String(),
	}, nil
}

func paymentInstructions(method enums.PaymentMethodType, details json.RawMessage, creator string) string {
	var d struct {
		Email    string `json:"email"`
		Phone    string `json:"phone"`
		Username string `json:"username"`
	}
	if len(details) > 0 {
		_ = json.Unmarshal(details, &d)
	}
	switch method {
	case enums.PaymentMethodZelle:
		target := d.Email
		if target == "" {
			target = d.Phone
		}
		return fmt.Sprintf("Send it by Zelle to %s.", target)
	case enums.PaymentMethodVenmo:
		return fmt.Sprintf("Send it on Venmo to @%s.", d.Username)
	case enums.PaymentMethodCash:
		return fmt.Sprintf("Pay %s in cash.", creator)
	case enums.PaymentMethodCard:
		return "Pay with your saved card from the group page."
	}
	return fmt.Sprintf("Contact %s to arrange payment.", creator)
}
