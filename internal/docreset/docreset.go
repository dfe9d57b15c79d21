// Package docreset implements the §5 shared-resource discipline: before
// evaluating an entry outside HMR, the host document is reset to the
// file set's HTML (or a default root element), and any DOM
// reconciliation library from the prior manifest gets its unmount hook
// invoked against the existing root container first. Grounded on
// golang.org/x/net/html, retrieved for this spec's HTML parsing needs
// and otherwise unused by the teacher repo.
package docreset

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// defaultRootID is the container id injected when no document HTML was
// supplied in the module set.
const defaultRootID = "root"

// UnmountFunc tears down whatever a previous evaluation mounted into the
// root container, analogous to calling a DOM reconciliation library's
// unmount(container) before handing the container to a new program.
type UnmountFunc func(rootID string)

// Resetter rebuilds the host document between compile requests.
type Resetter struct {
	rootID       string
	documentHTML string
	unmount      UnmountFunc
}

// NewResetter builds a Resetter. documentHTML, when non-empty, is used
// verbatim as the base document (the file set's own index.html); when
// empty a minimal document with a single root container is synthesized.
func NewResetter(documentHTML string, unmount UnmountFunc) *Resetter {
	return &Resetter{rootID: defaultRootID, documentHTML: documentHTML, unmount: unmount}
}

// SetDocumentHTML replaces the base document used on the next reset, for
// when the module set's own HTML file changes between requests.
func (r *Resetter) SetDocumentHTML(documentHTML string) {
	r.documentHTML = documentHTML
}

// ResetDocument rebuilds the document, injecting a <script>/<link> tag for
// each external resource, and returns the serialized HTML the host should
// render before the next evaluation runs. It calls the unmount hook
// first, per spec.md §5.
func (r *Resetter) ResetDocument(externalResources []string) (string, error) {
	if r.unmount != nil {
		r.unmount(r.rootID)
	}

	base := r.documentHTML
	if strings.TrimSpace(base) == "" {
		base = fmt.Sprintf(`<!doctype html><html><head></head><body><div id="%s"></div></body></html>`, r.rootID)
	}

	doc, err := html.Parse(strings.NewReader(base))
	if err != nil {
		return "", fmt.Errorf("docreset: parse document: %w", err)
	}

	head := findNode(doc, "head")
	if head != nil {
		for _, resource := range externalResources {
			head.AppendChild(resourceNode(resource))
		}
	}

	var buf bytes.Buffer
	if err := html.Render(&buf, doc); err != nil {
		return "", fmt.Errorf("docreset: render document: %w", err)
	}
	return buf.String(), nil
}

func resourceNode(resource string) *html.Node {
	if strings.HasSuffix(resource, ".css") {
		return &html.Node{
			Type: html.ElementNode,
			Data: "link",
			Attr: []html.Attribute{
				{Key: "rel", Val: "stylesheet"},
				{Key: "href", Val: resource},
			},
		}
	}
	return &html.Node{
		Type: html.ElementNode,
		Data: "script",
		Attr: []html.Attribute{
			{Key: "src", Val: resource},
		},
	}
}

func findNode(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if found := findNode(child, tag); found != nil {
			return found
		}
	}
	return nil
}
