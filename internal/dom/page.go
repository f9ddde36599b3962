package dom

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Page wraps one parsed HTML snapshot of a host page together with the command
// sink that forwards DOM writes back to the live page. Reads operate on the
// snapshot; writes mutate the snapshot and emit a command carrying the
// selector, value and notification events.
type Page struct {
	doc  *goquery.Document
	loc  Location
	sink CommandSink
}

func NewPage(loc Location, html string, sink CommandSink) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse page snapshot: %w", err)
	}
	return &Page{doc: doc, loc: loc, sink: sink}, nil
}

func (p *Page) Location() Location {
	return p.loc
}

func (p *Page) Sink() CommandSink {
	return p.sink
}

// Find exposes the underlying snapshot for adapter locators.
func (p *Page) Find(selector string) *goquery.Selection {
	return p.doc.Find(selector)
}

// DocumentTitle returns the page <title> text.
func (p *Page) DocumentTitle() string {
	return strings.TrimSpace(p.doc.Find("title").First().Text())
}

// InputValue reads the value of the first matching input/textarea. For inputs
// the value attribute holds the current value; textareas carry it as text.
func (p *Page) InputValue(selector string) (string, bool) {
	sel := p.doc.Find(selector).First()
	if sel.Length() == 0 {
		return "", false
	}
	if v, ok := sel.Attr("value"); ok {
		return v, true
	}
	if goquery.NodeName(sel) == "textarea" {
		return sel.Text(), true
	}
	return "", true
}

// Text reads the trimmed text content of the first matching element.
func (p *Page) Text(selector string) (string, bool) {
	sel := p.doc.Find(selector).First()
	if sel.Length() == 0 {
		return "", false
	}
	return strings.TrimSpace(sel.Text()), true
}

// SetInputValue writes an input/textarea value and dispatches the given
// notification events on the live page. Returns false when no element matches.
func (p *Page) SetInputValue(selector, value string, events ...string) bool {
	sel := p.doc.Find(selector).First()
	if sel.Length() == 0 {
		return false
	}
	if goquery.NodeName(sel) == "textarea" {
		sel.SetText(value)
	} else {
		sel.SetAttr("value", value)
	}
	p.emit(Command{
		Type:     CommandSetField,
		Selector: selector,
		Value:    value,
		Events:   events,
	})
	return true
}

// SetEditableText writes the text content of a contenteditable element and
// dispatches the given notification events.
func (p *Page) SetEditableText(selector, value string, events ...string) bool {
	sel := p.doc.Find(selector).First()
	if sel.Length() == 0 {
		return false
	}
	sel.SetText(value)
	p.emit(Command{
		Type:     CommandSetField,
		Selector: selector,
		Value:    value,
		Events:   events,
	})
	return true
}

// Has reports whether any element carries the given marker attribute. This is
// the idempotency check for injection.
func (p *Page) Has(markerAttr string) bool {
	return p.doc.Find(fmt.Sprintf("[%s]", markerAttr)).Length() > 0
}

// InjectButton inserts a marked button near the anchor and emits the inject
// command. When the anchor contains an <h1> the button lands right after it
// (header rows keep the native save control on the right); otherwise it is
// appended to the anchor. Callers must check Has(markerAttr) first.
func (p *Page) InjectButton(anchor *goquery.Selection, markerAttr, class, label string) bool {
	if anchor == nil || anchor.Length() == 0 {
		return false
	}

	buttonHTML := fmt.Sprintf(`<button type="button" class=%q %s="true">%s</button>`, class, markerAttr, label)
	if h1 := anchor.Find("h1").First(); h1.Length() > 0 {
		h1.AfterHtml(buttonHTML)
	} else {
		anchor.AppendHtml(buttonHTML)
	}

	p.emit(Command{
		Type:   CommandInjectButton,
		Marker: markerAttr,
		Class:  class,
		Label:  label,
	})
	return true
}

// ClickNative asks the live page to activate a native control, e.g. the site's
// own edit button.
func (p *Page) ClickNative(selector string) {
	p.emit(Command{Type: CommandClick, Selector: selector})
}

func (p *Page) emit(cmd Command) {
	if p.sink != nil {
		p.sink.Emit(cmd)
	}
}
