package output

import (
	"fmt"

	"github.com/itchyny/gojq"
)

// applyQuery runs a jq expression over the decoded payload and collects
// every emitted value. Query errors (bad syntax, runtime errors like
// indexing a null) surface to the caller instead of printing partial output.
func applyQuery(query string, value any) ([]any, error) {
	parsed, err := gojq.Parse(query)
	if err != nil {
		return nil, fmt.Errorf("parsing query %q: %w", query, err)
	}
	code, err := gojq.Compile(parsed)
	if err != nil {
		return nil, fmt.Errorf("compiling query %q: %w", query, err)
	}

	var results []any
	iter := code.Run(value)
	for {
		v, ok := iter.Next()
		if !ok {
			break
		}
		if err, isErr := v.(error); isErr {
			return nil, fmt.Errorf("running query %q: %w", query, err)
		}
		results = append(results, v)
	}
	return results, nil
}
