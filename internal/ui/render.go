package ui

import (
	"bytes"
	"fmt"
	"html/template"
	"math"
	"net/url"
	"strconv"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"

	"github.com/anatolykoptev/go_moments/internal/engine"
)

const embedBase = "https://www.youtube.com/embed/"

// EmbedURL returns the player URL for a moment. Start is floored and End is
// ceiled to whole seconds; End is omitted when it does not follow Start.
func EmbedURL(v engine.VideoData) string {
	start := wholeSeconds(v.Start, math.Floor)
	params := url.Values{}
	params.Set("start", strconv.Itoa(start))
	if end := wholeSeconds(v.End, math.Ceil); end > start {
		params.Set("end", strconv.Itoa(end))
	}
	return embedBase + url.PathEscape(v.VideoID) + "?" + params.Encode()
}

// WatchURL links to the moment on youtube.com.
func WatchURL(v engine.VideoData) string {
	start := wholeSeconds(v.Start, math.Floor)
	return "https://www.youtube.com/watch?v=" + url.QueryEscape(v.VideoID) + "&t=" + strconv.Itoa(start) + "s"
}

// maxSeconds caps model-supplied offsets before integer conversion.
const maxSeconds = math.MaxInt32

// wholeSeconds rounds sec and clamps it to [0, maxSeconds]; NaN gives 0.
func wholeSeconds(sec float64, round func(float64) float64) int {
	if math.IsNaN(sec) || sec <= 0 {
		return 0
	}
	sec = round(sec)
	if sec >= maxSeconds {
		return maxSeconds
	}
	return int(sec)
}

// FormatSeconds renders seconds as m:ss or h:mm:ss.
func FormatSeconds(sec float64) string {
	s := wholeSeconds(sec, math.Floor)
	h, m := s/3600, (s%3600)/60
	s %= 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

var funcs = template.FuncMap{
	"embed":   EmbedURL,
	"watch":   WatchURL,
	"clock":   FormatSeconds,
	"lines":   func(s string) []string { return strings.Split(s, "\n") },
	"isBlank": func(s string) bool { return strings.TrimSpace(s) == "" },
}

var fragmentTmpl = template.Must(template.New("fragment").Funcs(funcs).Parse(`
{{- define "spinner" -}}
<div class="message spinner" id="{{.ID}}"><span>Thinking...</span></div>
{{- end -}}
{{- define "user" -}}
<div class="message user" id="{{.ID}}"><p>{{.Text}}</p></div>
{{- end -}}
{{- define "text" -}}
<div class="message bot" id="{{.ID}}">{{range lines .Text}}{{if not (isBlank .)}}<p>{{.}}</p>{{end}}{{end}}
{{- if .Options}}<ul class="options">{{range .Options}}<li><button type="button" value="{{.}}">{{.}}</button></li>{{end}}</ul>{{end -}}
</div>
{{- end -}}
{{- define "card" -}}
<div class="message card" id="{{.ID}}"><p>{{.Text}}</p></div>
{{- end -}}
{{- define "videos" -}}
<div class="message videos" id="{{.ID}}">{{range .Videos}}
<figure class="moment"><iframe src="{{embed .}}" title="{{.Title}}" allowfullscreen></iframe>
<figcaption><a href="{{watch .}}"><img src="{{.ThumbnailURL}}" alt="{{.Title}}"></a> <strong>{{.Title}}</strong> <span>{{clock .Start}} - {{clock .End}}</span></figcaption></figure>
{{- end}}
</div>
{{- end -}}
`))

// RenderHTML renders one fragment. Text is escaped by html/template.
func RenderHTML(f Fragment) (string, error) {
	switch f.Kind {
	case KindSpinner, KindUser, KindText, KindCard, KindVideos:
	default:
		return "", fmt.Errorf("ui: unknown fragment kind %q", f.Kind)
	}
	var buf bytes.Buffer
	if err := fragmentTmpl.ExecuteTemplate(&buf, string(f.Kind), f); err != nil {
		return "", fmt.Errorf("ui: render %s: %w", f.Kind, err)
	}
	return buf.String(), nil
}

// RenderPage renders fragments in order, one after another.
func RenderPage(fragments []Fragment) (string, error) {
	var sb strings.Builder
	for _, f := range fragments {
		h, err := RenderHTML(f)
		if err != nil {
			return "", err
		}
		sb.WriteString(h)
		sb.WriteByte('\n')
	}
	return sb.String(), nil
}

// Markdown renders a fragment for text-only clients.
func Markdown(f Fragment) (string, error) {
	if f.Kind == KindVideos {
		return VideosMarkdown(f.Videos), nil
	}
	h, err := RenderHTML(f)
	if err != nil {
		return "", err
	}
	md, err := htmltomarkdown.ConvertString(h)
	if err != nil {
		return "", fmt.Errorf("ui: markdown: %w", err)
	}
	return strings.TrimSpace(md), nil
}

// VideosMarkdown lists moments as Markdown links with their time ranges.
func VideosMarkdown(videos []engine.VideoData) string {
	if len(videos) == 0 {
		return "No moments to show."
	}
	var sb strings.Builder
	for i, v := range videos {
		title := v.Title
		if title == "" {
			title = v.VideoID
		}
		fmt.Fprintf(&sb, "%d. [%s](%s) (%s - %s)\n", i+1, title, WatchURL(v), FormatSeconds(v.Start), FormatSeconds(v.End))
	}
	return strings.TrimRight(sb.String(), "\n")
}
