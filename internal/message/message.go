// Package message renders notification texts from named templates.
package message

import (
	"fmt"
	"html"
	"sort"
	"strings"
	"text/template"
	"time"

	tgbot "github.com/go-telegram/bot"

	"github.com/madmonkey48/kh-allert-radar/internal/config"
	"github.com/madmonkey48/kh-allert-radar/internal/domain"
)

// Template names accepted in notify.templates overrides.
const (
	TemplateStart      = "start"
	TemplateUpdate     = "update"
	TemplatePartialEnd = "partial_end"
	TemplateEnd        = "end"
	TemplateReminder   = "reminder"
	TemplateDaily      = "daily"
	TemplateRaid       = "raid"
)

// eventData is the view model for session lifecycle templates.
type eventData struct {
	Label     string
	Area      string
	Locations string
	Since     string
	Duration  time.Duration
}

// dailyData is the view model for the daily report template.
type dailyData struct {
	Day        string
	AlertCount int
	Total      time.Duration
	Average    time.Duration
	PerType    []typeCount
}

// typeCount is one per-category line of the daily report.
type typeCount struct {
	Label string
	Count int
}

// raidData is the view model for free-text raid report templates.
type raidData struct {
	Label     string
	District  string
	Direction string
	At        string
}

// Renderer renders notification bodies with parse-mode aware escaping.
// Params: compiled templates, parse mode, area name, and local day offset.
// Returns: ready-to-send message texts.
type Renderer struct {
	templates map[string]*template.Template
	parseMode string
	area      string
	offset    time.Duration
}

// NewRenderer compiles default templates plus config overrides.
// Params: notify holds parse mode and overrides; daily holds the day offset;
// area is the canonical area name.
// Returns: renderer or template compile error.
func NewRenderer(notify config.NotifyConfig, daily config.DailyConfig, area string) (*Renderer, error) {
	bodies := defaultBodies()
	for name, body := range notify.Templates {
		if _, ok := bodies[name]; !ok {
			return nil, fmt.Errorf("notify.templates: unknown template %q", name)
		}
		bodies[name] = body
	}

	templates := make(map[string]*template.Template, len(bodies))
	for name, body := range bodies {
		compiled, err := template.New(name).
			Funcs(FuncMap()).
			Option("missingkey=error").
			Parse(body)
		if err != nil {
			return nil, fmt.Errorf("parse template %q: %w", name, err)
		}
		templates[name] = compiled
	}

	return &Renderer{
		templates: templates,
		parseMode: notify.Telegram.ParseMode,
		area:      area,
		offset:    time.Duration(daily.UTCOffsetHours) * time.Hour,
	}, nil
}

// FuncMap returns shared notification template helpers.
// Params: none.
// Returns: deterministic helper map.
func FuncMap() template.FuncMap {
	return template.FuncMap{
		"fmtMinutes": FormatMinutes,
	}
}

// Event renders one session lifecycle event.
// Params: event is a tracker emission.
// Returns: message text or render error.
func (r *Renderer) Event(event domain.SessionEvent) (string, error) {
	name, ok := map[domain.EventKind]string{
		domain.EventStart:      TemplateStart,
		domain.EventUpdate:     TemplateUpdate,
		domain.EventPartialEnd: TemplatePartialEnd,
		domain.EventEnd:        TemplateEnd,
		domain.EventReminder:   TemplateReminder,
	}[event.Kind]
	if !ok {
		return "", fmt.Errorf("no template for event kind %q", event.Kind)
	}

	return r.render(name, eventData{
		Label:     r.escape(CategoryLabel(event.Category)),
		Area:      r.escape(r.area),
		Locations: r.escape(strings.Join(event.Locations, ", ")),
		Since:     r.clock(event.StartedAt),
		Duration:  event.Duration,
	})
}

// Daily renders the end-of-day summary, including the quiet-day variant.
// Params: report is a closed day aggregate.
// Returns: message text or render error.
func (r *Renderer) Daily(report domain.DailyReport) (string, error) {
	perType := make([]typeCount, 0, len(report.PerType))
	for category, count := range report.PerType {
		perType = append(perType, typeCount{
			Label: r.escape(CategoryLabel(category)),
			Count: count,
		})
	}
	sort.Slice(perType, func(i, j int) bool {
		if perType[i].Count == perType[j].Count {
			return perType[i].Label < perType[j].Label
		}
		return perType[i].Count > perType[j].Count
	})

	return r.render(TemplateDaily, dailyData{
		Day:        report.Day.Format("02.01.2006"),
		AlertCount: report.AlertCount,
		Total:      report.TotalDuration,
		Average:    report.AverageDuration,
		PerType:    perType,
	})
}

// Raid renders one free-text raid report.
// Params: report is a classified feed item.
// Returns: message text or render error.
func (r *Renderer) Raid(report domain.RaidReport) (string, error) {
	district := report.District
	if district == domain.AreaWide {
		district = ""
	}
	return r.render(TemplateRaid, raidData{
		Label:     r.escape(CategoryLabel(report.Category)),
		District:  r.escape(district),
		Direction: r.escape(report.Direction),
		At:        r.clock(report.At),
	})
}

// render executes one named template.
func (r *Renderer) render(name string, data any) (string, error) {
	var builder strings.Builder
	if err := r.templates[name].Execute(&builder, data); err != nil {
		return "", fmt.Errorf("render template %q: %w", name, err)
	}
	return builder.String(), nil
}

// clock formats an instant as local wall time at the configured offset.
func (r *Renderer) clock(at time.Time) string {
	if at.IsZero() {
		return ""
	}
	return at.UTC().Add(r.offset).Format("15:04")
}

// escape neutralizes parse-mode control characters in dynamic values.
// Params: value is untrusted text injected into a template.
// Returns: value safe for the configured parse mode.
func (r *Renderer) escape(value string) string {
	switch r.parseMode {
	case config.ParseModeMarkdownV2:
		return tgbot.EscapeMarkdown(value)
	case config.ParseModeHTML:
		return html.EscapeString(value)
	case config.ParseModeMarkdown:
		return strings.NewReplacer("_", "\\_", "*", "\\*", "`", "\\`", "[", "\\[").Replace(value)
	default:
		return value
	}
}

// CategoryLabel returns the human-readable label for a category.
// Params: category is a classified threat category.
// Returns: Ukrainian display label.
func CategoryLabel(category domain.ThreatCategory) string {
	switch category {
	case domain.CategoryMissile:
		return "Ракетна небезпека"
	case domain.CategoryAircraft:
		return "Загроза авіаудару"
	case domain.CategoryDrone:
		return "Загроза БПЛА"
	case domain.CategoryArtillery:
		return "Загроза обстрілу"
	case domain.CategoryExplosion:
		return "Вибухи"
	case domain.CategoryStreetFighting:
		return "Вуличні бої"
	case domain.CategoryAllClear:
		return "Відбій"
	default:
		return "Повітряна тривога"
	}
}

// FormatMinutes renders a duration in hours and minutes for message bodies.
// Params: duration is a session or aggregate length.
// Returns: compact Ukrainian duration string.
func FormatMinutes(duration time.Duration) string {
	if duration < 0 {
		duration = -duration
	}
	total := int(duration.Round(time.Minute) / time.Minute)
	if total < 1 {
		return "менше хвилини"
	}
	hours := total / 60
	minutes := total % 60
	switch {
	case hours > 0 && minutes > 0:
		return fmt.Sprintf("%d год %d хв", hours, minutes)
	case hours > 0:
		return fmt.Sprintf("%d год", hours)
	default:
		return fmt.Sprintf("%d хв", minutes)
	}
}

// defaultBodies returns built-in Ukrainian template bodies keyed by name.
// Params: none.
// Returns: fresh map safe to override.
func defaultBodies() map[string]string {
	return map[string]string{
		TemplateStart:      "🚨 {{ .Label }}! Тривога: {{ .Area }}{{ if .Locations }} ({{ .Locations }}){{ end }}. Початок о {{ .Since }}. Прямуйте в укриття!",
		TemplateUpdate:     "⚠️ {{ .Label }}. Загроза також у районах: {{ .Locations }}.",
		TemplatePartialEnd: "🟡 Загроза минула у районах: {{ .Locations }}. Тривога триває.",
		TemplateEnd:        "🟢 Відбій тривоги. Тривалість: {{ fmtMinutes .Duration }}.",
		TemplateReminder:   "⏰ Тривога триває вже {{ fmtMinutes .Duration }}. Залишайтесь в укритті.",
		TemplateDaily: "📊 Підсумок за {{ .Day }}:\n" +
			"{{ if eq .AlertCount 0 }}За добу тривог не було. Спокійної ночі!{{ else }}" +
			"Тривог: {{ .AlertCount }}\n" +
			"Загальна тривалість: {{ fmtMinutes .Total }}\n" +
			"Середня тривалість: {{ fmtMinutes .Average }}" +
			"{{ range .PerType }}\n• {{ .Label }}: {{ .Count }}{{ end }}{{ end }}",
		TemplateRaid: "❗ {{ .Label }}{{ if .District }} ({{ .District }}){{ end }}{{ if .Direction }}, {{ .Direction }}{{ end }}. {{ .At }}",
	}
}
