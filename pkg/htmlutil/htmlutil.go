package htmlutil

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

func GetText(node *html.Node) string {
	var buffer bytes.Buffer
	getTextRecursive(node, &buffer)
	return buffer.String()
}

func getTextRecursive(node *html.Node, buffer *bytes.Buffer) {
	if node == nil {
		return
	}
	if node.Type == html.TextNode {
		buffer.WriteString(node.Data)
		return
	}
	child := node.FirstChild
	for child != nil {
		getTextRecursive(child, buffer)
		child = child.NextSibling
	}
}

var innerWhitespace = regexp.MustCompile(`\s\s+`)

// CleanText removes non-printable characters and collapses whitespace.
func CleanText(s string) string {
	newStr := strings.Builder{}
	for _, c := range s {
		if unicode.IsPrint(c) || unicode.IsSpace(c) {
			newStr.WriteRune(c)
		}
	}
	out := strings.Trim(newStr.String(), " \t\n")
	return innerWhitespace.ReplaceAllString(out, " ")
}

// PlainText renders an html page as cleaned text, the body is returned as-is
// when it cannot be parsed.
func PlainText(body []byte) string {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return string(body)
	}
	return CleanText(GetText(doc))
}

func ParseDocument(body []byte) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return doc, nil
}

// InputValue returns the value of the first <input> with the given name, or
// "" if there is none.
func InputValue(doc *goquery.Document, name string) string {
	selector := fmt.Sprintf(`input[name="%s"]`, name)
	return strings.TrimSpace(doc.Find(selector).First().AttrOr("value", ""))
}

// MetaContent returns the content of the first <meta> with the given name,
// or "" if there is none.
func MetaContent(doc *goquery.Document, name string) string {
	selector := fmt.Sprintf(`meta[name="%s"]`, name)
	return strings.TrimSpace(doc.Find(selector).First().AttrOr("content", ""))
}
