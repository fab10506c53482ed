package favicon

import (
	"bytes"
	"fmt"
	"io"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// HTMLDocument is a Document over a parsed HTML tree.
type HTMLDocument struct {
	root *html.Node
}

// ParseHTML parses a complete HTML document.
func ParseHTML(r io.Reader) (*HTMLDocument, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parsing html: %w", err)
	}

	return &HTMLDocument{root: root}, nil
}

// Icon returns the first link element whose rel attribute is exactly "icon".
func (d *HTMLDocument) Icon() (Element, bool) {
	n := findIcon(d.root)
	if n == nil {
		return nil, false
	}

	return &linkElement{n: n}, true
}

// Render writes the document back out.
func (d *HTMLDocument) Render(w io.Writer) error {
	return html.Render(w, d.root)
}

func findIcon(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == atom.Link && attr(n, "rel") == "icon" {
		return n
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findIcon(c); found != nil {
			return found
		}
	}

	return nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val
		}
	}

	return ""
}

type linkElement struct {
	n *html.Node
}

func (l *linkElement) Href() string { return attr(l.n, "href") }

func (l *linkElement) SetHref(href string) {
	for i, a := range l.n.Attr {
		if a.Namespace == "" && a.Key == "href" {
			l.n.Attr[i].Val = href
			return
		}
	}

	l.n.Attr = append(l.n.Attr, html.Attribute{Key: "href", Val: href})
}

// Prerender points the icon link of page at the asset for the given scheme.
// Pages without an icon link are returned unchanged.
func Prerender(page []byte, dark bool, opts ...Option) ([]byte, error) {
	doc, err := ParseHTML(bytes.NewReader(page))
	if err != nil {
		return nil, err
	}

	if _, ok := doc.Icon(); !ok {
		return page, nil
	}

	t := Attach(doc, Static(dark), opts...)
	t.Detach()

	var buf bytes.Buffer
	if err := doc.Render(&buf); err != nil {
		return nil, fmt.Errorf("rendering html: %w", err)
	}

	return buf.Bytes(), nil
}
