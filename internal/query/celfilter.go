package query

import (
	"strings"
	"time"

	"github.com/google/cel-go/cel"

	"github.com/iammultiman/logvault/internal/record"
)

// celFilter wraps a compiled CEL program evaluated per candidate record,
// after all index-based and built-in filters. When disabled, Eval always
// returns true.
type celFilter struct {
	prog    cel.Program
	enabled bool
}

func newCELFilter(expr string) (celFilter, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return celFilter{enabled: false}, nil
	}
	env, err := cel.NewEnv(
		cel.Variable("ts_ms", cel.IntType),
		cel.Variable("level", cel.StringType),
		cel.Variable("domain", cel.StringType),
		cel.Variable("session", cel.StringType),
		cel.Variable("message", cel.StringType),
		cel.Variable("origin_url", cel.StringType),
		// -1 when the record has no tab
		cel.Variable("tab_id", cel.IntType),
		cel.Variable("metadata", cel.DynType),
		cel.Variable("now_ms", cel.IntType),
	)
	if err != nil {
		return celFilter{}, err
	}
	ast, iss := env.Parse(expr)
	if iss != nil && iss.Err() != nil {
		return celFilter{}, iss.Err()
	}
	checked, iss2 := env.Check(ast)
	if iss2 != nil && iss2.Err() != nil {
		return celFilter{}, iss2.Err()
	}
	prog, err := env.Program(checked)
	if err != nil {
		return celFilter{}, err
	}
	return celFilter{prog: prog, enabled: true}, nil
}

// Eval evaluates the compiled expression against a record. When disabled,
// returns true. Evaluation errors count as non-matches.
func (f celFilter) Eval(r *record.Record) bool {
	if !f.enabled {
		return true
	}
	tabID := int64(-1)
	if r.TabID != nil {
		tabID = *r.TabID
	}
	meta := r.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	out, _, err := f.prog.Eval(map[string]any{
		"ts_ms":      r.Timestamp,
		"level":      string(r.Level),
		"domain":     r.OriginDomain,
		"session":    r.SessionID,
		"message":    r.Message,
		"origin_url": r.OriginURL,
		"tab_id":     tabID,
		"metadata":   meta,
		"now_ms":     time.Now().UnixMilli(),
	})
	if err != nil {
		return false
	}
	b, ok := out.Value().(bool)
	return ok && b
}
