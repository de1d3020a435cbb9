package notify

import (
	"bytes"
	"fmt"
	"html/template"

	"procurement-service/internal/models"
)

var (
	newRequestTmpl = template.Must(template.New("new_request").Parse(
		`<p>A new {{.Type}} request #{{.RequestID}} was filed by branch {{.BranchID}}.</p>
<p>Item: {{.ItemRef}}<br>Quantity: {{.Quantity}}</p>`))

	statusChangedTmpl = template.Must(template.New("status_changed").Parse(
		`<p>Your request #{{.RequestID}} moved from <b>{{.OldStatus}}</b> to <b>{{.NewStatus}}</b>.</p>
{{if .Notes}}<p>Notes: {{.Notes}}</p>{{end}}`))

	followUpTmpl = template.Must(template.New("follow_up").Parse(
		`<p>A follow-up was added to request #{{.RequestID}} (status <b>{{.Status}}</b>).</p>
<p>{{.Notes}}</p>`))
)

// RequestCreatedMail renders the notice sent to procurement managers
func RequestCreatedMail(e *models.RequestCreatedEvent) (string, string, error) {
	body, err := render(newRequestTmpl, e)
	return fmt.Sprintf("New purchase request #%d", e.RequestID), body, err
}

// StatusChangedMail renders the notice sent to the requester
func StatusChangedMail(e *models.RequestStatusChangedEvent) (string, string, error) {
	body, err := render(statusChangedTmpl, e)
	return fmt.Sprintf("Request #%d is now %s", e.RequestID, e.NewStatus), body, err
}

// FollowUpMail renders the follow-up notice
func FollowUpMail(e *models.RequestFollowedUpEvent) (string, string, error) {
	body, err := render(followUpTmpl, e)
	return fmt.Sprintf("Follow-up on request #%d", e.RequestID), body, err
}

func render(t *template.Template, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render %s mail: %w", t.Name(), err)
	}
	return buf.String(), nil
}
