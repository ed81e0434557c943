package rss

import (
	"bytes"
	"encoding/xml"
	"strings"

	"golang.org/x/net/html/charset"
)

// Document is the validated, in-memory form of an RSS payload.
type Document struct {
	Title       string `json:"title"`
	Link        string `json:"link"`
	Description string `json:"description"`
	Items       []Item `json:"items"`
}

// Item is a single channel entry. PubDate is kept verbatim; callers decide
// how to interpret it.
type Item struct {
	Title       string `json:"title"`
	Link        string `json:"link"`
	Description string `json:"description"`
	PubDate     string `json:"pub_date"`
}

// node is a generic XML element. Decoding into a tree instead of fixed
// structs lets the parser tell a missing field from an empty one and a text
// field from one that carries child elements.
type node struct {
	XMLName  xml.Name
	Text     string `xml:",chardata"`
	Children []node `xml:",any"`
}

// children returns the un-namespaced children of n with the given local name.
func (n *node) children(name string) []*node {
	var out []*node
	for i := range n.Children {
		c := &n.Children[i]
		if c.XMLName.Space == "" && c.XMLName.Local == name {
			out = append(out, c)
		}
	}
	return out
}

// clearNamespace drops space from n and its descendants, so elements in the
// document's default namespace match like un-namespaced ones.
func (n *node) clearNamespace(space string) {
	if n.XMLName.Space == space {
		n.XMLName.Space = ""
	}
	for i := range n.Children {
		n.Children[i].clearNamespace(space)
	}
}

// text returns the value of the named field when it is string-typed: present
// exactly once and without child elements.
func (n *node) text(name string) (string, bool) {
	matches := n.children(name)
	if len(matches) != 1 || len(matches[0].Children) > 0 {
		return "", false
	}
	return strings.TrimSpace(matches[0].Text), true
}

// Parse validates an RSS payload and normalizes it into a Document.
// Channel metadata must be complete; items that lack any of title, link,
// description or pubDate are dropped without failing the feed.
func Parse(data []byte) (*Document, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Strict = false
	dec.Entity = xml.HTMLEntity
	dec.CharsetReader = charset.NewReaderLabel

	var root node
	if err := dec.Decode(&root); err != nil {
		return nil, malformed("decode xml: %v", err)
	}
	if root.XMLName.Space != "" {
		root.clearNamespace(root.XMLName.Space)
	}
	if root.XMLName.Local != "rss" {
		return nil, malformed("unexpected root element <%s>", root.XMLName.Local)
	}

	channels := root.children("channel")
	if len(channels) != 1 {
		return nil, malformed("expected one channel, found %d", len(channels))
	}
	channel := channels[0]

	doc := &Document{}
	var ok [3]bool
	doc.Title, ok[0] = channel.text("title")
	doc.Link, ok[1] = channel.text("link")
	doc.Description, ok[2] = channel.text("description")
	if !ok[0] || !ok[1] || !ok[2] {
		return nil, malformed("missing channel metadata")
	}

	raw := channel.children("item")
	doc.Items = make([]Item, 0, len(raw))
	for _, n := range raw {
		if item, valid := parseItem(n); valid {
			doc.Items = append(doc.Items, item)
		}
	}

	return doc, nil
}

func parseItem(n *node) (Item, bool) {
	var item Item
	var ok [4]bool
	item.Title, ok[0] = n.text("title")
	item.Link, ok[1] = n.text("link")
	item.Description, ok[2] = n.text("description")
	item.PubDate, ok[3] = n.text("pubDate")
	return item, ok[0] && ok[1] && ok[2] && ok[3]
}
