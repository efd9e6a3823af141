package dom

import "golang.org/x/net/html"

// LoaderClass is the class of the pending-delivery indicator.
const LoaderClass = "connect-viz-loader"

// Loader shows a busy indicator under a target element while results are
// pending. It is not safe for concurrent use; owners serialize access.
type Loader struct {
	target *html.Node
	el     *html.Node
}

// NewLoader creates a hidden loader for target.
func NewLoader(target *html.Node) *Loader {
	return &Loader{target: target}
}

// Show attaches the indicator if it is not already attached.
func (l *Loader) Show() {
	if l.el == nil {
		l.el = CreateElement("div", LoaderClass)
		SetText(l.el, "Loading…")
	}
	if l.el.Parent == nil {
		l.target.AppendChild(l.el)
	}
}

// Hide detaches the indicator.
func (l *Loader) Hide() {
	if l.el != nil {
		Detach(l.el)
	}
}

// Visible reports whether the indicator is attached to the target.
func (l *Loader) Visible() bool {
	return l.el != nil && l.el.Parent == l.target
}
