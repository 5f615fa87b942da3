package notify

import (
	htmltemplate "html/template"
	"strings"
	"text/template"

	"vetcare/internal/domain/entity"
	"vetcare/internal/infra/notifier"
)

// message is the channel-neutral rendering of a notification.
type message struct {
	Subject string
	Text    string
	HTML    string
}

// contentTemplate describes how one meta type is rendered.
type contentTemplate struct {
	required []string
	subject  *template.Template
	text     *template.Template
	// chatParams lists the meta keys passed, in order, to the chat provider's
	// pre-approved template of the same name.
	chatParams []string
}

var contentTemplates = map[entity.MetaType]contentTemplate{
	entity.MetaVaccinationReminder: {
		required: []string{entity.MetaKeyPetName, entity.MetaKeyVaccineName, entity.MetaKeyDueDate},
		subject:  template.Must(template.New("vaccination_subject").Parse(`{{.pet_name}}: {{.vaccine_name}} vaccination {{.due_phrase}}`)),
		text: template.Must(template.New("vaccination_text").Parse(
			`{{.pet_name}}'s {{.vaccine_name}} vaccination {{.due_phrase}} ({{.due_date}}). Please book an appointment with your clinic.`)),
		chatParams: []string{entity.MetaKeyPetName, entity.MetaKeyVaccineName, entity.MetaKeyDueDate},
	},
	entity.MetaFoodDepletion: {
		required: []string{entity.MetaKeyPetName, entity.MetaKeyProductName, entity.MetaKeyDepletionDate},
		subject:  template.Must(template.New("food_subject").Parse(`{{.pet_name}}'s food is running low`)),
		text: template.Must(template.New("food_text").Parse(
			`{{.product_name}} for {{.pet_name}} is expected to run out on {{.depletion_date}}` +
				`{{if .days_left}} ({{.days_left}} days left){{end}}. Reorder now to avoid a gap.`)),
		chatParams: []string{entity.MetaKeyPetName, entity.MetaKeyProductName, entity.MetaKeyDepletionDate},
	},
	entity.MetaOrderUpdate: {
		required: []string{entity.MetaKeyOrderNumber, entity.MetaKeyOrderStatus},
		subject:  template.Must(template.New("order_subject").Parse(`Order {{.order_number}}: {{.order_status}}`)),
		text: template.Must(template.New("order_text").Parse(
			`Your order {{.order_number}} is now {{.order_status}}.`)),
		chatParams: []string{entity.MetaKeyOrderNumber, entity.MetaKeyOrderStatus},
	},
}

var emailHTML = htmltemplate.Must(htmltemplate.New("email").Parse(
	`<html><body><h2>{{.Subject}}</h2>{{range .Paragraphs}}<p>{{.}}</p>{{end}}</body></html>`))

// lookupTemplate returns the template for meta when its type is known and
// every required field is present.
func lookupTemplate(meta entity.Meta) (contentTemplate, bool) {
	tmpl, ok := contentTemplates[meta.Type]
	if !ok {
		return contentTemplate{}, false
	}
	for _, key := range tmpl.required {
		if strings.TrimSpace(meta.Get(key)) == "" {
			return contentTemplate{}, false
		}
	}
	return tmpl, true
}

// render shapes title/body for meta. Unknown or incomplete meta yields the
// title and body verbatim.
func render(title, body string, meta entity.Meta) message {
	msg := message{Subject: title, Text: body}
	if tmpl, ok := lookupTemplate(meta); ok {
		data := templateData(meta)
		subject, errS := execute(tmpl.subject, data)
		text, errT := execute(tmpl.text, data)
		if errS == nil && errT == nil {
			msg = message{Subject: subject, Text: text}
		}
	}
	msg.HTML = renderHTML(msg.Subject, msg.Text)
	return msg
}

// chatTemplate returns the provider template for meta, if it has one.
func chatTemplate(meta entity.Meta) (notifier.ChatTemplate, bool) {
	tmpl, ok := lookupTemplate(meta)
	if !ok {
		return notifier.ChatTemplate{}, false
	}
	params := make([]string, 0, len(tmpl.chatParams))
	for _, key := range tmpl.chatParams {
		params = append(params, meta.Get(key))
	}
	return notifier.ChatTemplate{Name: string(meta.Type), Parameters: params}, true
}

// chatText is the free-form chat rendering: bold subject, blank line, text.
func chatText(msg message) string {
	if msg.Text == "" {
		return "*" + msg.Subject + "*"
	}
	return "*" + msg.Subject + "*\n\n" + msg.Text
}

func templateData(meta entity.Meta) map[string]string {
	data := make(map[string]string, len(meta.Fields)+1)
	for k, v := range meta.Fields {
		data[k] = v
	}
	data["due_phrase"] = duePhrase(meta.Get(entity.MetaKeyMilestone))
	return data
}

func duePhrase(milestone string) string {
	switch milestone {
	case entity.MilestoneAdvance.String():
		return "is due in 7 days"
	case entity.MilestoneLastCall.String():
		return "is due tomorrow"
	case entity.MilestoneDue.String():
		return "is due today"
	case entity.MilestoneOverdue.String():
		return "is overdue"
	default:
		return "is due"
	}
}

func execute(t *template.Template, data map[string]string) (string, error) {
	var sb strings.Builder
	if err := t.Execute(&sb, data); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func renderHTML(subject, text string) string {
	var paragraphs []string
	for _, p := range strings.Split(text, "\n") {
		if p = strings.TrimSpace(p); p != "" {
			paragraphs = append(paragraphs, p)
		}
	}
	var sb strings.Builder
	err := emailHTML.Execute(&sb, struct {
		Subject    string
		Paragraphs []string
	}{subject, paragraphs})
	if err != nil {
		return ""
	}
	return sb.String()
}
