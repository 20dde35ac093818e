package handler

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/sakif/snippet-search/internal/apperror"
)

const (
	maxTitleLen     = 255
	maxCodeLen      = 10000
	maxLanguageLen  = 50
	maxQueryLen     = 100
	maxSourceURLLen = 2048

	// code_content plus JSON overhead
	maxBodyBytes = 64 << 10
)

// violations collects field problems so one response can report all of them.
type violations struct {
	field string
	msgs  []string
}

func (v *violations) add(field, msg string) {
	if v.field == "" {
		v.field = field
	}
	v.msgs = append(v.msgs, field+": "+msg)
}

func (v *violations) err() error {
	if len(v.msgs) == 0 {
		return nil
	}
	return apperror.ValidationFailed(v.field, "Validation Error: "+strings.Join(v.msgs, ", "))
}

// length checks min <= runes(s) <= max. label is the human name used in messages.
func (v *violations) length(field, label, s string, minLen, maxLen int) {
	n := utf8.RuneCountInString(s)
	switch {
	case minLen > 0 && n < minLen:
		v.add(field, label+" cannot be empty")
	case n > maxLen:
		v.add(field, fmt.Sprintf("%s cannot exceed %d characters", label, maxLen))
	}
}

func validateCreate(req createSnippetRequest) error {
	var v violations
	if req.Title == nil {
		v.add("title", "Title is required")
	} else {
		v.length("title", "Title", *req.Title, 1, maxTitleLen)
	}
	if req.CodeContent == nil {
		v.add("code_content", "Code content is required")
	} else {
		v.length("code_content", "Code content", *req.CodeContent, 1, maxCodeLen)
	}
	v.length("language", "Language", req.Language, 0, maxLanguageLen)
	v.length("source_url", "Source URL", req.SourceURL, 0, maxSourceURLLen)
	return v.err()
}

// validateSearch checks the already trimmed query text.
func validateSearch(q, language string, hasQ bool) error {
	var v violations
	if !hasQ {
		v.add("q", "Search query (q) is required")
	} else {
		v.length("q", "Search query", q, 1, maxQueryLen)
	}
	v.length("language", "Language", language, 0, maxLanguageLen)
	return v.err()
}

func validateEmail(email string) error {
	var v violations
	switch {
	case email == "":
		v.add("email", "Email is required")
	case !strings.Contains(email, "@"):
		v.add("email", "Email must be a valid address")
	default:
		v.length("email", "Email", email, 1, maxTitleLen)
	}
	return v.err()
}
