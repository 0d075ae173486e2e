package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// maxJSONBody bounds request bodies parsed as JSON parameters. Attachment
// uploads use multipart and are bounded separately by max_upload_size.
const maxJSONBody = 1 << 20

// Params holds the merged request parameters. Scalar conflicts resolve
// with the precedence form body > query string > JSON body.
type Params struct {
	form  url.Values
	query url.Values
	body  map[string]any
}

// ParseParams extracts parameters from the request. A JSON Content-Type
// with a malformed body is an error; everything else degrades to the form
// and query values the standard library parsed.
func ParseParams(r *http.Request) (*Params, error) {
	p := &Params{query: r.URL.Query()}

	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch ct {
	case "application/json":
		raw, err := io.ReadAll(io.LimitReader(r.Body, maxJSONBody))
		if err != nil {
			return nil, fmt.Errorf("failed to read request body: %w", err)
		}
		if len(strings.TrimSpace(string(raw))) > 0 {
			if err := json.Unmarshal(raw, &p.body); err != nil {
				return nil, fmt.Errorf("malformed JSON body: %w", err)
			}
		}
	default:
		if err := r.ParseForm(); err != nil {
			return nil, fmt.Errorf("malformed form body: %w", err)
		}
		p.form = r.PostForm
	}
	return p, nil
}

// Get returns the parameter value, or "" when absent. JSON scalars are
// stringified; JSON arrays and objects read as absent.
func (p *Params) Get(name string) string {
	if v := p.form.Get(name); v != "" {
		return v
	}
	if v := p.query.Get(name); v != "" {
		return v
	}
	if v, ok := p.body[name]; ok {
		switch t := v.(type) {
		case string:
			return t
		case bool:
			return strconv.FormatBool(t)
		case float64:
			// JSON numbers arrive as float64; render integers without a
			// fractional part so UUID-adjacent numeric IDs survive.
			if t == float64(int64(t)) {
				return strconv.FormatInt(int64(t), 10)
			}
			return strconv.FormatFloat(t, 'f', -1, 64)
		}
	}
	return ""
}

// Has reports whether the parameter was supplied at all.
func (p *Params) Has(name string) bool {
	if _, ok := p.form[name]; ok {
		return true
	}
	if _, ok := p.query[name]; ok {
		return true
	}
	_, ok := p.body[name]
	return ok
}

// Bool parses the parameter as a boolean; absent or unparseable is false.
func (p *Params) Bool(name string) bool {
	b, _ := strconv.ParseBool(p.Get(name))
	return b
}

// Int parses the parameter as an integer, falling back to def.
func (p *Params) Int(name string, def int) int {
	n, err := strconv.Atoi(p.Get(name))
	if err != nil {
		return def
	}
	return n
}

// Int64 parses the parameter as a 64-bit integer, falling back to def.
func (p *Params) Int64(name string, def int64) int64 {
	n, err := strconv.ParseInt(p.Get(name), 10, 64)
	if err != nil {
		return def
	}
	return n
}

// Pagination returns the limit and page parameters. Zero means "not
// supplied"; the services clamp to the configured maxima.
func (p *Params) Pagination() (limit, page int) {
	return p.Int("limit", 0), p.Int("page", 0)
}
