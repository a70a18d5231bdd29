// Package prompt renders the instructions sent to the generative model.
package prompt

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/aithera/therapy-server-go/internal/model"
)

var funcs = template.FuncMap{
	"join": strings.Join,
	"goals": func(l model.StringList) string {
		return strings.Join(l, "; ")
	},
}

var templates = template.Must(template.New("prompts").Funcs(funcs).Parse(`
{{define "planner"}}You are a clinical psychologist with decades of experience matching patients to psychotherapy methods.
Evaluate the user's information and GAD-7 anxiety result below, then choose the most suitable therapy type and number of sessions.

Allowed therapy types (use exactly these identifiers):
- CBT: moderate to severe anxiety, negative thought patterns, structured skill-building.
- ACT: mild to moderate anxiety, emotional avoidance, values-based action.
- Mindfulness: minimal or mild anxiety, stress management, rumination.
- EMDR: trauma, distressing memories, past abuse.
- DBT: emotional dysregulation, unstable relationships, impulse control problems.

Rules:
- Recommend two therapy types only if a single method is clearly insufficient. Never more than two.
- Do not default to CBT. Weigh age, gender, stress level, sleep, medication use and the GAD-7 score.
- For a GAD-7 score of 0-9 consider Mindfulness or ACT first.
- Recommend between 1 and {{.MaxSessions}} sessions.
- Give a brief clinical justification in "explanation".
- Provide one plan entry per session, numbered from 1, progressive, each with a clear topic and 2-3 concrete, measurable goals.

User information:
age: {{.Profile.Age}}
gender: {{.Profile.Gender}}
sleep pattern: {{.Profile.SleepPattern}}
stress level: {{.Profile.StressLevel}} (1-10)
has diagnosis: {{.Profile.HasDiagnosis}}
uses medication: {{.Profile.UsesMedication}}
dream recall level: {{.Profile.DreamRecallLevel}}
GAD-7 total score: {{.TotalScore}} (0-21, higher is worse)

Asked "What has been the most challenging or concerning issue for you lately?", the user answered:
"{{.Reflection}}"

Respond ONLY with a JSON object of this shape, without code fences:
{"therapy_types": ["..."], "session_count": 0, "explanation": "...", "session_plan": [{"session_number": 1, "session_topic": "...", "session_goals": ["...", "..."]}]}{{end}}

{{define "therapist"}}You are a warm, professional therapist running session {{.SessionNumber}} of a structured {{join .TherapyTypes " + "}} programme.
Session topic: {{.Topic}}
Session goals: {{goals .Goals}}
{{if .PreviousSummary}}Summary of the previous session: {{.PreviousSummary}}{{else}}Clinical rationale for this programme: {{.Explanation}}{{end}}

Stay on the session topic, work toward the goals, and keep replies concise (under 180 words). Do not diagnose or prescribe medication. If the user mentions self-harm, encourage them to contact local emergency services.{{end}}

{{define "welcome"}}Open session {{.SessionNumber}}. Greet the user, briefly introduce today's topic "{{.Topic}}"{{if .PreviousSummary}}, connect it to what was covered last time{{end}}, and end with one open question inviting them to share.{{end}}

{{define "closing"}}The user just wrote: "{{.Message}}"
This is the final exchange of the session. Respond to it, summarize one or two key insights from today, suggest a small practice before the next session, and close the session warmly.{{end}}

{{define "summary"}}Below is the full transcript of therapy session {{.SessionNumber}} (topic: {{.Topic}}; goals: {{goals .Goals}}).

{{range .Transcript}}{{.Sender}}: {{.Message}}
{{end}}
Summarize the session for the therapist's notes in 3-5 sentences, and rate the user's overall wellness at the end of the session from 0 (very poor) to 100 (excellent).
Respond ONLY with a JSON object, without code fences:
{"summary": "...", "wellness_score": 0}{{end}}
`))

type PlannerInput struct {
	Profile     model.Profile
	TotalScore  int
	Reflection  string
	MaxSessions int
}

type SessionInput struct {
	SessionNumber   int
	Topic           string
	Goals           model.StringList
	TherapyTypes    []string
	Explanation     string
	PreviousSummary string
}

type ClosingInput struct {
	Message string
}

type SummaryInput struct {
	SessionNumber int
	Topic         string
	Goals         model.StringList
	Transcript    []model.TherapyMessage
}

func Planner(in PlannerInput) (string, error) {
	return render("planner", in)
}

// Therapist is the system instruction for every chat turn of a session.
func Therapist(in SessionInput) (string, error) {
	return render("therapist", in)
}

func Welcome(in SessionInput) (string, error) {
	return render("welcome", in)
}

func Closing(in ClosingInput) (string, error) {
	return render("closing", in)
}

func Summary(in SummaryInput) (string, error) {
	return render("summary", in)
}

func render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s prompt: %w", name, err)
	}
	return strings.TrimSpace(buf.String()), nil
}
