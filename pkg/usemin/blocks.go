// Package usemin rewrites the build blocks of the entry page into references
// to minified, revisioned bundles.
package usemin

import (
	"bytes"
	"fmt"
	"regexp"

	"golang.org/x/net/html"
)

// Block types understood in <!-- build:<type> <dest> --> markers.
const (
	TypeCSS = "css"
	TypeJS  = "js"
)

var blockPattern = regexp.MustCompile(`(?s)([ \t]*)<!--\s*build:(\S+)\s+(\S+)\s*-->(.*?)<!--\s*endbuild\s*-->`)

// Block is one marked region of a page.
type Block struct {
	Type   string
	Dest   string   // Output path relative to the page, e.g. "js/app.min.js"
	Indent string   // Whitespace before the opening marker
	Refs   []string // Asset references in document order
	Start  int      // Offset of Indent in the page
	End    int      // Offset just past the closing marker
}

// ParseBlocks finds the build blocks of page in document order. A block
// with an unknown type is an error.
func ParseBlocks(page []byte) ([]Block, error) {
	var blocks []Block
	for _, m := range blockPattern.FindAllSubmatchIndex(page, -1) {
		b := Block{
			Indent: string(page[m[2]:m[3]]),
			Type:   string(page[m[4]:m[5]]),
			Dest:   string(page[m[6]:m[7]]),
			Start:  m[0],
			End:    m[1],
		}

		attr := ""
		switch b.Type {
		case TypeCSS:
			attr = "href"
		case TypeJS:
			attr = "src"
		default:
			return nil, fmt.Errorf("unknown build block type %q for %s", b.Type, b.Dest)
		}
		b.Refs = references(page[m[8]:m[9]], attr)
		blocks = append(blocks, b)
	}
	return blocks, nil
}

// references collects attr of every link and script element in body.
func references(body []byte, attr string) []string {
	var refs []string
	tokenizer := html.NewTokenizer(bytes.NewReader(body))
	for {
		tt := tokenizer.Next()
		if tt == html.ErrorToken {
			return refs
		}
		if tt != html.StartTagToken && tt != html.SelfClosingTagToken {
			continue
		}

		tagName, moreAttr := tokenizer.TagName()
		if string(tagName) != "link" && string(tagName) != "script" {
			continue
		}
		for moreAttr {
			var key, val []byte
			key, val, moreAttr = tokenizer.TagAttr()
			if string(key) == attr && len(val) > 0 {
				refs = append(refs, string(val))
			}
		}
	}
}

// tag renders the single element that replaces a block.
func tag(blockType, ref string) string {
	if blockType == TypeCSS {
		return fmt.Sprintf(`<link rel="stylesheet" href="%s">`, html.EscapeString(ref))
	}
	return fmt.Sprintf(`<script src="%s"></script>`, html.EscapeString(ref))
}
