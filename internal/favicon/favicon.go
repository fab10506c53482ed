// Package favicon keeps a page's icon reference in line with the colour
// scheme the user prefers.
//
// A [Toggler] reads the [Preference] once when attached, points the icon
// link of the [Document] at the matching asset, and re-applies on every
// preference change until it is detached. A document without an icon link
// is left alone.
package favicon

import (
	"log/slog"
	"sync"

	"github.com/hupe1980/sitepipe/internal/logging"
)

// Icon assets for each scheme. The dark scheme gets the light glyph.
const (
	DarkIcon  = "/images/favicon-white.svg"
	LightIcon = "/images/favicon-black.svg"
)

// IconFor returns the icon reference for the given preference.
func IconFor(dark bool) string {
	if dark {
		return DarkIcon
	}

	return LightIcon
}

// Element is an icon link element.
type Element interface {
	Href() string
	SetHref(href string)
}

// Document gives access to the page's icon link, if it has one.
type Document interface {
	Icon() (Element, bool)
}

// Subscription is a handle to a registered change listener.
type Subscription interface {
	Unsubscribe()
}

// Preference is the user's colour-scheme preference.
type Preference interface {
	Dark() bool
	Subscribe(fn func(dark bool)) Subscription
}

// Toggler binds a document to a preference.
type Toggler struct {
	doc    Document
	pref   Preference
	logger *slog.Logger

	mu  sync.Mutex
	sub Subscription
}

// Option configures a Toggler.
type Option func(*Toggler)

// WithLogger sets the logger scheme switches are reported to.
func WithLogger(l *slog.Logger) Option {
	return func(t *Toggler) {
		if l != nil {
			t.logger = l
		}
	}
}

// Attach applies the current preference to doc and subscribes to changes.
func Attach(doc Document, pref Preference, opts ...Option) *Toggler {
	t := &Toggler{doc: doc, pref: pref, logger: logging.Discard()}
	for _, o := range opts {
		o(t)
	}

	t.Apply(pref.Dark())

	sub := pref.Subscribe(t.Apply)

	t.mu.Lock()
	t.sub = sub
	t.mu.Unlock()

	return t
}

// Apply sets the icon reference for the given preference. Without an icon
// element it does nothing.
func (t *Toggler) Apply(dark bool) {
	icon, ok := t.doc.Icon()
	if !ok {
		return
	}

	href := IconFor(dark)
	t.logger.Debug("favicon", slog.Bool("dark", dark), slog.String("href", href))

	icon.SetHref(href)
}

// Detach stops listening for preference changes. It is safe to call twice.
func (t *Toggler) Detach() {
	t.mu.Lock()
	sub := t.sub
	t.sub = nil
	t.mu.Unlock()

	if sub != nil {
		sub.Unsubscribe()
	}
}
