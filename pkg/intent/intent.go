// Package intent maps free-form utterances onto tool selections.
package intent

import "context"

// Intent is a routing decision. An empty Tool means nothing matched.
type Intent struct {
	Tool    string
	Args    map[string]any
	Trigger string
}

func (i Intent) Selected() bool { return i.Tool != "" }

// Router decides which tool, if any, an utterance asks for. A non-nil
// error may come with a selected Intent when the tool was recognised but
// its arguments could not be extracted.
type Router interface {
	Route(ctx context.Context, utterance string) (Intent, error)
}

// RouterFunc adapts a function to Router.
type RouterFunc func(ctx context.Context, utterance string) (Intent, error)

func (f RouterFunc) Route(ctx context.Context, utterance string) (Intent, error) {
	return f(ctx, utterance)
}
