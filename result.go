package luql

import (
	"fmt"
)

// ParseError is a recoverable lexical or syntactic error with its source
// position. Line and Column are 1-based.
type ParseError struct {
	Message string
	Offset  int
	Length  int
	Line    int
	Column  int
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.Line, e.Column, e.Message)
}

// ParseResult holds the (possibly partial) document plus all accumulated
// lexical and syntactic errors. The source string is retained so the
// zero-copy slices held by the AST stay live for the result's lifetime.
type ParseResult struct {
	Document *Document
	Errors   []*ParseError

	// Source is the original query text the AST slices into.
	Source string
}

// IsSuccess reports whether parsing completed without lexical or syntactic
// errors. Semantic (validation) errors are tracked separately by the
// analysis package.
func (r *ParseResult) IsSuccess() bool {
	return len(r.Errors) == 0
}

// String renders the document back to its canonical query-string form.
func (r *ParseResult) String() string {
	return Format(r.Document)
}

// Parse parses a query string into a best-effort document. Recoverable
// errors are collected on the result, never raised; the document is always
// non-nil.
func Parse(input string, opts ...Option) *ParseResult {
	cfg := newConfig(opts)
	p := newParser(input, cfg)
	doc := p.parseDocument()

	return &ParseResult{
		Document: doc,
		Errors:   p.errs,
		Source:   input,
	}
}

// TryParse is Parse hardened against catastrophic internal failures: a
// panic is converted into a failure result instead of propagating.
func TryParse(input string, opts ...Option) (result *ParseResult) {
	defer func() {
		if r := recover(); r != nil {
			result = &ParseResult{
				Document: &Document{},
				Errors: []*ParseError{{
					Message: fmt.Sprintf("internal error: %v", r),
					Line:    1,
					Column:  1,
				}},
				Source: input,
			}
		}
	}()

	return Parse(input, opts...)
}
