package intent

import (
	"context"
	"regexp"
	"strings"
	"sync"
)

// Rule maps trigger phrases onto a tool. Rules are evaluated in the order
// they were added and the first rule with a matching trigger wins.
type Rule struct {
	Triggers []string
	// WholeWord requires the trigger to sit on word boundaries ("hi" must
	// not match "this").
	WholeWord bool
	Tool      string
	Extract   Extractor
}

// Match is the context handed to an Extractor.
type Match struct {
	Utterance string
	Lower     string
	Trigger   string
	// Rest is the utterance text following the trigger, original casing.
	Rest string
}

type compiledRule struct {
	Rule
	patterns []*regexp.Regexp
}

type KeywordRouter struct {
	mu    sync.RWMutex
	rules []compiledRule
}

func NewKeywordRouter(rules ...Rule) *KeywordRouter {
	r := &KeywordRouter{}
	for _, rule := range rules {
		r.Add(rule)
	}
	return r
}

// Add appends a rule at the lowest priority.
func (r *KeywordRouter) Add(rule Rule) {
	cr := compiledRule{Rule: rule}
	cr.Triggers = make([]string, len(rule.Triggers))
	for i, t := range rule.Triggers {
		t = strings.ToLower(t)
		cr.Triggers[i] = t
		if rule.WholeWord {
			cr.patterns = append(cr.patterns, regexp.MustCompile(`\b`+regexp.QuoteMeta(strings.TrimSpace(t))+`\b`))
		}
	}
	if cr.Extract == nil {
		cr.Extract = NoArgs
	}
	r.mu.Lock()
	r.rules = append(r.rules, cr)
	r.mu.Unlock()
}

// Rules returns the rule table in evaluation order.
func (r *KeywordRouter) Rules() []Rule {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Rule, 0, len(r.rules))
	for _, cr := range r.rules {
		out = append(out, cr.Rule)
	}
	return out
}

func (r *KeywordRouter) Route(ctx context.Context, utterance string) (Intent, error) {
	text := strings.TrimSpace(utterance)
	if text == "" {
		return Intent{}, nil
	}
	lower := strings.ToLower(text)
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, rule := range r.rules {
		trigger, idx := rule.find(lower)
		if idx < 0 {
			continue
		}
		m := Match{Utterance: text, Lower: lower, Trigger: trigger, Rest: rest(text, lower, idx+len(trigger))}
		args, err := rule.Extract(m)
		in := Intent{Tool: rule.Tool, Args: args, Trigger: trigger}
		if in.Args == nil {
			in.Args = map[string]any{}
		}
		return in, err
	}
	return Intent{}, nil
}

func (c compiledRule) find(lower string) (string, int) {
	for i, t := range c.Triggers {
		if c.WholeWord {
			if loc := c.patterns[i].FindStringIndex(lower); loc != nil {
				return lower[loc[0]:loc[1]], loc[0]
			}
			continue
		}
		if idx := strings.Index(lower, t); idx >= 0 {
			return t, idx
		}
	}
	return "", -1
}

// rest slices the original text after the trigger. Lower-casing can change
// byte lengths for some scripts; fall back to the lowered text then.
func rest(text, lower string, end int) string {
	src := text
	if len(text) != len(lower) {
		src = lower
	}
	if end > len(src) {
		return ""
	}
	return strings.TrimSpace(src[end:])
}
