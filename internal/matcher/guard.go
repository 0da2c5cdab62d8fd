package matcher

import (
	"context"
	"errors"
	"fmt"

	"github.com/nao1215/brokerscan/internal/model"
)

// ErrorNotePrefix starts the notes of an errored result.
const ErrorNotePrefix = "Error during search: "

// errNoMatcher is reported when Guard is called without a matcher.
var errNoMatcher = errors.New("no matcher")

// Guard runs m.Search and always returns a normalized result. An error or a
// panic in the matcher yields Found=false, Status=errored and notes
// "Error during search: <cause>".
func Guard(ctx context.Context, m Matcher, q Query) (result *model.BrokerResult) {
	if m == nil {
		return erroredResult(q.Site.Name(), errNoMatcher)
	}
	name := resultName(m, q)

	defer func() {
		if r := recover(); r != nil {
			result = erroredResult(name, fmt.Errorf("%w: %v", ErrMatcherPanic, r))
		}
	}()

	res, err := m.Search(ctx, q)
	if err != nil {
		return erroredResult(name, err)
	}
	if res == nil {
		res = &model.BrokerResult{Broker: name}
	}
	if res.Broker == "" {
		res.Broker = name
	}
	res.Normalize()
	return res
}

// resultName is the matcher's name, or the site's display name for
// matchers bound to the site's domain.
func resultName(m Matcher, q Query) string {
	name := m.Name()
	if q.Site.Display != "" && name == q.Site.Domain {
		return q.Site.Display
	}
	return name
}

func erroredResult(broker string, err error) *model.BrokerResult {
	return &model.BrokerResult{
		Broker: broker,
		Found:  false,
		Notes:  ErrorNotePrefix + err.Error(),
		Status: model.StatusErrored,
	}
}
