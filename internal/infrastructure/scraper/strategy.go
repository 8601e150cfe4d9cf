package scraper

import (
	"encoding/json"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Strategy pulls candidate image URLs out of a parsed page. Implementations
// must not touch the network or mutate the tree.
type Strategy interface {
	Name() string
	Extract(doc *html.Node) []string
}

// LazyAttrStrategy reads attributes used by lazy-loading scripts.
type LazyAttrStrategy struct {
	Attrs []string
}

func (LazyAttrStrategy) Name() string { return "lazy-attr" }

func (s LazyAttrStrategy) Extract(doc *html.Node) []string {
	var out []string
	walk(doc, func(n *html.Node) {
		for _, a := range n.Attr {
			for _, want := range s.Attrs {
				if a.Key == want {
					out = append(out, splitSrcset(a.Val)...)
				}
			}
		}
	})
	return out
}

// ImageTagStrategy reads src and srcset of img and picture sources.
type ImageTagStrategy struct{}

func (ImageTagStrategy) Name() string { return "img-tag" }

func (ImageTagStrategy) Extract(doc *html.Node) []string {
	var out []string
	walk(doc, func(n *html.Node) {
		if n.DataAtom != atom.Img && n.DataAtom != atom.Source {
			return
		}
		if v := attr(n, "src"); v != "" {
			out = append(out, v)
		}
		if v := attr(n, "srcset"); v != "" {
			out = append(out, splitSrcset(v)...)
		}
	})
	return out
}

// StructuredDataStrategy reads JSON-LD blocks and social preview meta tags.
type StructuredDataStrategy struct{}

func (StructuredDataStrategy) Name() string { return "structured-data" }

func (StructuredDataStrategy) Extract(doc *html.Node) []string {
	var out []string
	walk(doc, func(n *html.Node) {
		switch n.DataAtom {
		case atom.Meta:
			switch attr(n, "property") + attr(n, "name") {
			case "og:image", "og:image:url", "og:image:secure_url", "twitter:image":
				if v := attr(n, "content"); v != "" {
					out = append(out, v)
				}
			}
		case atom.Script:
			if !strings.EqualFold(attr(n, "type"), "application/ld+json") {
				return
			}
			var v any
			if err := json.Unmarshal([]byte(text(n)), &v); err != nil {
				return
			}
			out = append(out, jsonURLs(v)...)
		}
	})
	return out
}

// ScriptPatternStrategy matches URL literals inside inline scripts.
type ScriptPatternStrategy struct {
	Pattern *regexp.Regexp
}

func (ScriptPatternStrategy) Name() string { return "script-pattern" }

func (s ScriptPatternStrategy) Extract(doc *html.Node) []string {
	var out []string
	walk(doc, func(n *html.Node) {
		if n.DataAtom != atom.Script || attr(n, "src") != "" {
			return
		}
		body := strings.ReplaceAll(text(n), `\/`, "/")
		out = append(out, s.Pattern.FindAllString(body, -1)...)
	})
	return out
}

func walk(n *html.Node, fn func(*html.Node)) {
	if n == nil {
		return
	}
	if n.Type == html.ElementNode {
		fn(n)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func text(n *html.Node) string {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
	}
	return b.String()
}

// splitSrcset returns the URL of every "url [descriptor]" entry.
func splitSrcset(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		fields := strings.Fields(part)
		if len(fields) > 0 {
			out = append(out, fields[0])
		}
	}
	return out
}

func jsonURLs(v any) []string {
	var out []string
	switch t := v.(type) {
	case string:
		if strings.HasPrefix(t, "http://") || strings.HasPrefix(t, "https://") || strings.HasPrefix(t, "//") {
			out = append(out, t)
		}
	case []any:
		for _, e := range t {
			out = append(out, jsonURLs(e)...)
		}
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			out = append(out, jsonURLs(t[k])...)
		}
	}
	return out
}
