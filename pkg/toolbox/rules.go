package toolbox

import "github.com/harunnryd/sapa/pkg/intent"

// Rules is the built-in keyword table, highest priority first. Reminders
// precede the clock so "remind me ... time" schedules instead of telling
// the time.
func Rules(defaultCity string) []intent.Rule {
	return []intent.Rule{
		{Triggers: []string{"hello", "hi"}, WholeWord: true, Tool: "greeting"},
		{Triggers: []string{"set a reminder", "remind me"}, Tool: "reminder", Extract: intent.Reminder()},
		{Triggers: []string{"generate an image", "generate image", "create an image", "draw"}, Tool: "image", Extract: intent.Remainder("prompt")},
		{Triggers: []string{"weather"}, Tool: "weather", Extract: intent.City("city", defaultCity)},
		{Triggers: []string{"news", "headlines"}, Tool: "news"},
		{Triggers: []string{"search for", "look up"}, Tool: "search", Extract: intent.Remainder("query")},
		{Triggers: []string{"open "}, Tool: "browser", Extract: intent.Remainder("site")},
		{Triggers: []string{"time"}, Tool: "clock", Extract: intent.Fixed(map[string]any{"format": "time"})},
		{Triggers: []string{"date", "what day"}, Tool: "clock", Extract: intent.Fixed(map[string]any{"format": "date"})},
		{Triggers: []string{"ask", "tell me about", "what is", "who is", "explain"}, WholeWord: true, Tool: "chat", Extract: intent.Utterance("message")},
	}
}
