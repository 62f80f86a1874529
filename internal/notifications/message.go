package notifications

import (
	"bytes"
	"fmt"
	"html/template"
	"time"
)

const (
	overdueSubjectPrefix  = "⚠️ Überfällige Wartung"
	reminderSubjectPrefix = "🔔 Wartungserinnerung"
)

// Email is a rendered reminder.
type Email struct {
	Subject string
	HTML    string
}

var emailTemplate = template.Must(template.New("reminder").Parse(`<!DOCTYPE html>
<html lang="de">
<body style="font-family: Arial, sans-serif; color: #1f2937; max-width: 600px; margin: 0 auto;">
  <h2 style="color: {{if .IsOverdue}}#b91c1c{{else}}#1d4ed8{{end}};">{{.Headline}}</h2>
  <p>Hallo {{.UserName}},</p>
  <p>{{.Lead}}</p>
  <table style="border-collapse: collapse; width: 100%;">
    <tr><td style="padding: 4px 8px;"><strong>Komponente</strong></td><td style="padding: 4px 8px;">{{.ComponentName}}</td></tr>
    <tr><td style="padding: 4px 8px;"><strong>Immobilie</strong></td><td style="padding: 4px 8px;">{{.PropertyName}}</td></tr>
    {{- if .PropertyAddress}}
    <tr><td style="padding: 4px 8px;"><strong>Adresse</strong></td><td style="padding: 4px 8px;">{{.PropertyAddress}}</td></tr>
    {{- end}}
    <tr><td style="padding: 4px 8px;"><strong>Fällig am</strong></td><td style="padding: 4px 8px;">{{.DueDate}}</td></tr>
  </table>
  {{- if .DashboardURL}}
  <p><a href="{{.DashboardURL}}" style="background: #1d4ed8; color: #fff; padding: 10px 16px; text-decoration: none; border-radius: 4px;">Zum Dashboard</a></p>
  {{- end}}
  <p style="font-size: 12px; color: #6b7280;">Sie erhalten diese Nachricht, weil Sie Wartungserinnerungen bei ImmoWächter aktiviert haben.</p>
</body>
</html>`))

type emailView struct {
	Record
	Headline     string
	Lead         string
	DueDate      string
	DashboardURL string
}

// Render builds subject and HTML body for a reminder. appURL may be empty.
func Render(r Record, appURL string) (Email, error) {
	due := formatDueDate(r.DueDate)
	view := emailView{Record: r, DueDate: due}
	if appURL != "" {
		view.DashboardURL = appURL + "/dashboard"
	}

	var subject string
	switch {
	case r.IsOverdue:
		subject = fmt.Sprintf("%s: %s (%s)", overdueSubjectPrefix, r.ComponentName, r.PropertyName)
		view.Headline = "Wartung überfällig"
		view.Lead = fmt.Sprintf("die Wartung für %s ist seit %s überfällig. Bitte vereinbaren Sie zeitnah einen Termin.",
			r.ComponentName, dayCount(r.DaysUntil))
	case r.DaysUntil == 0:
		subject = fmt.Sprintf("%s: %s ist heute fällig", reminderSubjectPrefix, r.ComponentName)
		view.Headline = "Wartung heute fällig"
		view.Lead = fmt.Sprintf("die Wartung für %s ist heute fällig.", r.ComponentName)
	case r.DaysUntil == 1:
		subject = fmt.Sprintf("%s: %s ist morgen fällig", reminderSubjectPrefix, r.ComponentName)
		view.Headline = "Wartung morgen fällig"
		view.Lead = fmt.Sprintf("die Wartung für %s ist morgen fällig.", r.ComponentName)
	default:
		subject = fmt.Sprintf("%s: %s in %d Tagen fällig", reminderSubjectPrefix, r.ComponentName, r.DaysUntil)
		view.Headline = "Anstehende Wartung"
		view.Lead = fmt.Sprintf("die Wartung für %s ist in %s fällig.", r.ComponentName, dayCount(r.DaysUntil))
	}

	var buf bytes.Buffer
	if err := emailTemplate.Execute(&buf, view); err != nil {
		return Email{}, fmt.Errorf("render reminder: %w", err)
	}
	return Email{Subject: subject, HTML: buf.String()}, nil
}

func dayCount(n int) string {
	if n == 1 {
		return "1 Tag"
	}
	return fmt.Sprintf("%d Tagen", n)
}

// formatDueDate turns 2025-01-08 into 08.01.2025; other input passes through.
func formatDueDate(iso string) string {
	t, err := time.Parse(time.DateOnly, iso)
	if err != nil {
		return iso
	}
	return t.Format("02.01.2006")
}
