// Package automation declares the browser capabilities the blaster relies on.
//
// Implementations must report UI wait timeouts as model.ErrElementNotFound and
// launch or connection failures as model.ErrSession (wrapped).
package automation

import (
	"context"
	"time"
)

// Driver opens one browser session rooted at a local profile directory.
type Driver interface {
	Open(ctx context.Context, profileDir string) (Session, error)
}

// Session is one authenticated browser profile.
// A Session is not safe for concurrent use.
type Session interface {
	Navigate(ctx context.Context, url string) error
	// WaitFor blocks until selector is in the page or timeout elapses.
	// Hidden elements such as file inputs match.
	// Selectors starting with "/" or "(" are XPath, anything else is CSS.
	WaitFor(ctx context.Context, selector string, timeout time.Duration) (Element, error)
	// Has checks for selector without waiting.
	Has(ctx context.Context, selector string) (bool, error)
	// PasteText places text into the focused element the way a user paste would.
	PasteText(ctx context.Context, text string) error
	Close() error
}

type Element interface {
	Click(ctx context.Context) error
	SetFiles(paths []string) error
}

// IsXPath reports whether selector should be resolved as XPath.
func IsXPath(selector string) bool {
	return len(selector) > 0 && (selector[0] == '/' || selector[0] == '(')
}
