package surrealql

import (
	"fmt"
	"net/url"
	"reflect"
	"strconv"
	"strings"

	"github.com/Chooks22/surrealism/pkg/constants"
	"github.com/goccy/go-json"
)

// Template is query text split around interpolated values. Parts always has
// one more element than Args.
type Template struct {
	Parts []string
	Args  []any
}

type value struct {
	v any
}

// Value marks v as an interpolated value in Build, which is needed for
// strings since bare strings are query text.
func Value(v any) any {
	return value{v: v}
}

// Tag pairs pre-split query parts with their values.
func Tag(parts []string, args ...any) (Template, error) {
	if len(parts) != len(args)+1 {
		return Template{}, fmt.Errorf("%w: got %d parts and %d args", constants.ErrTemplateArity, len(parts), len(args))
	}
	return Template{Parts: parts, Args: args}, nil
}

// Raw is a template without values.
func Raw(sql string) Template {
	return Template{Parts: []string{sql}}
}

// Build assembles a template from fragments. Strings are query text and
// anything else, or anything wrapped with Value, is a value.
//
// Bare strings are inlined verbatim, so a string that comes from user input
// must be wrapped with Value (or passed to Tag as an arg) to be bound as a
// variable instead of becoming part of the query:
//
//	surrealql.Build("SELECT * FROM person WHERE name = ", surrealql.Value(name))
func Build(fragments ...any) Template {
	t := Template{Parts: []string{""}}
	for _, f := range fragments {
		switch frag := f.(type) {
		case string:
			t.Parts[len(t.Parts)-1] += frag
		case value:
			t.Args = append(t.Args, frag.v)
			t.Parts = append(t.Parts, "")
		default:
			t.Args = append(t.Args, frag)
			t.Parts = append(t.Parts, "")
		}
	}
	return t
}

// Render writes the query text with the i-th value replaced by "$"+name(i).
func (t Template) Render(name func(i int) string) string {
	var b strings.Builder
	for i, part := range t.Parts {
		b.WriteString(part)
		if i < len(t.Args) {
			b.WriteByte('$')
			b.WriteString(name(i))
		}
	}
	return b.String()
}

// Names returns the placeholder names used by Query.
func (t Template) Names() []string {
	names := make([]string, len(t.Args))
	for i := range t.Args {
		names[i] = IndexToName(i)
	}
	return names
}

// Query renders the template and returns the values keyed by placeholder
// name, for binding over the RPC channel.
func (t Template) Query() (string, map[string]any) {
	names := t.Names()
	vars := make(map[string]any, len(t.Args))
	for i, arg := range t.Args {
		vars[names[i]] = arg
	}
	return t.Render(IndexToName), vars
}

// QueryArgs renders the template and serializes the values as URL query
// parameters, for the HTTP /sql endpoint.
func (t Template) QueryArgs() (string, url.Values, error) {
	names := t.Names()
	args := make(url.Values, len(t.Args))
	for i, arg := range t.Args {
		s, err := Serialize(arg)
		if err != nil {
			return "", nil, fmt.Errorf("arg %s: %w", names[i], err)
		}
		args.Set(names[i], s)
	}
	return t.Render(IndexToName), args, nil
}

// Scoped renders the template with every placeholder prefixed, so that
// values bound as session variables do not collide across queries.
func (t Template) Scoped(prefix string) string {
	return t.Render(func(i int) string {
		return ScopedName(prefix, i)
	})
}

// ScopedName is the session variable name of the i-th value under prefix.
func ScopedName(prefix string, i int) string {
	return prefix + constants.LiveVarSeparator + IndexToName(i)
}

func (t Template) String() string {
	return t.Render(IndexToName)
}

// Serialize renders a value as a query parameter: scalars in their literal
// form, nil as null, and everything else as JSON.
func Serialize(v any) (string, error) {
	if v == nil {
		return "null", nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String:
		return rv.String(), nil
	case reflect.Bool:
		return strconv.FormatBool(rv.Bool()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10), nil
	case reflect.Float32, reflect.Float64:
		return strconv.FormatFloat(rv.Float(), 'g', -1, 64), nil
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return "null", nil
		}
	}

	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
