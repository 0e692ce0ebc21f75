// Package document assembles the final HTML document from a render result,
// the sealed state envelope and the build manifest.
//
// Assembly is deterministic: the same inputs always produce the same bytes.
// Stylesheets follow the discovery order of the splits that resolved on the
// server, and entry scripts follow manifest order.
package document

import (
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/vango-dev/splitrender/pkg/assets"
	"github.com/vango-dev/splitrender/pkg/render"
	"github.com/vango-dev/splitrender/pkg/ssr"
)

// DataScriptID is the id of the script element carrying split markup and
// the envelope.
const DataScriptID = "__SSR_DATA__"

// DefaultRootID is the id of the element the markup is rendered into.
const DefaultRootID = "root"

// DefaultEntryChunks are the chunks every page loads.
var DefaultEntryChunks = []string{"polyfill", "runtime", "main"}

// Page holds everything a single document is built from.
type Page struct {
	// Result is the render loop output. A nil Result assembles an empty root.
	Result *ssr.Result

	// Envelope is the sealed, base64-encoded state envelope.
	Envelope string

	// ExtraScripts are appended verbatim after the entry scripts.
	ExtraScripts []string

	// Nonce is added to every emitted script tag when set.
	Nonce string

	// Lang is the language attribute for the html element.
	// Defaults to "en" if not specified.
	Lang string
}

// Config configures an Assembler.
type Config struct {
	Resolver    *assets.Resolver
	EntryChunks []string
	RootID      string
	Logger      *slog.Logger
}

// Assembler builds documents. It is safe for concurrent use.
type Assembler struct {
	resolver    *assets.Resolver
	entryChunks map[string]bool
	entryOrder  []string
	rootID      string
	logger      *slog.Logger
}

// New creates an Assembler.
func New(config Config) *Assembler {
	if config.Resolver == nil {
		config.Resolver = assets.NewResolver(nil, "")
	}
	if config.EntryChunks == nil {
		config.EntryChunks = DefaultEntryChunks
	}
	if config.RootID == "" {
		config.RootID = DefaultRootID
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	entries := make(map[string]bool, len(config.EntryChunks))
	for _, c := range config.EntryChunks {
		entries[c] = true
	}
	return &Assembler{
		resolver:    config.Resolver,
		entryChunks: entries,
		entryOrder:  config.EntryChunks,
		rootID:      config.RootID,
		logger:      config.Logger,
	}
}

// ssrData is the payload of the data script.
type ssrData struct {
	Envelope string                       `json:"envelope"`
	Splits   map[string]ssr.ResolvedSplit `json:"splits"`
}

// Assemble builds the HTML document for p.
//
// Chunks missing from the manifest are logged and skipped.
func (a *Assembler) Assemble(p Page) string {
	res := p.Result
	if res == nil {
		res = &ssr.Result{}
	}
	lang := p.Lang
	if lang == "" {
		lang = "en"
	}

	entries := a.entries()

	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n")
	b.WriteString(`<html lang="` + render.EscapeAttr(lang) + `">` + "\n")

	b.WriteString("<head>\n")
	b.WriteString(`  <meta charset="utf-8">` + "\n")
	b.WriteString(`  <meta name="viewport" content="width=device-width, initial-scale=1">` + "\n")
	if res.Head.Title != "" {
		b.WriteString("  <title>" + render.EscapeHTML(res.Head.Title) + "</title>\n")
	}
	for _, meta := range res.Head.Meta {
		writeMeta(&b, meta)
	}
	for _, link := range res.Head.Links {
		writeLink(&b, link)
	}
	for _, href := range a.stylesheets(entries, res.ChunkNames) {
		writeLink(&b, ssr.LinkTag{Rel: "stylesheet", Href: href})
	}
	b.WriteString("</head>\n")

	b.WriteString("<body>\n")
	b.WriteString(`<div id="` + render.EscapeAttr(a.rootID) + `">` + res.Markup + "</div>\n")

	splits := res.Splits
	if splits == nil {
		splits = map[string]ssr.ResolvedSplit{}
	}
	// Marshal cannot fail for these types. Its default HTML escaping keeps
	// "</script>" out of the payload.
	data, _ := json.Marshal(ssrData{Envelope: p.Envelope, Splits: splits})
	b.WriteString(`<script type="application/json" id="` + DataScriptID + `">`)
	b.Write(data)
	b.WriteString("</script>\n")

	nonce := ""
	if p.Nonce != "" {
		nonce = ` nonce="` + render.EscapeAttr(p.Nonce) + `"`
	}
	for _, chunk := range entries {
		scripts, _ := a.resolver.Scripts(chunk)
		for _, src := range scripts {
			b.WriteString(`<script src="` + render.EscapeAttr(src) + `"` + nonce + "></script>\n")
		}
	}
	for _, script := range p.ExtraScripts {
		b.WriteString(script)
		b.WriteString("\n")
	}

	b.WriteString("</body>\n</html>\n")
	return b.String()
}

// entries returns the configured entry chunks present in the manifest, in
// manifest order.
func (a *Assembler) entries() []string {
	m := a.resolver.Manifest()
	var out []string
	for _, chunk := range m.Chunks() {
		if a.entryChunks[chunk] {
			out = append(out, chunk)
		}
	}
	for _, chunk := range a.entryOrder {
		if !m.Has(chunk) {
			a.logger.Warn("entry chunk missing from manifest", "chunk", chunk)
		}
	}
	return out
}

// stylesheets returns the stylesheet URLs of the entry chunks followed by
// those of chunks, without duplicates.
func (a *Assembler) stylesheets(entries, chunks []string) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(chunk string) {
		hrefs, err := a.resolver.Stylesheets(chunk)
		if err != nil {
			a.logger.Warn("skipping stylesheet", "chunk", chunk, "error", err)
			return
		}
		for _, href := range hrefs {
			if !seen[href] {
				seen[href] = true
				out = append(out, href)
			}
		}
	}
	for _, chunk := range entries {
		add(chunk)
	}
	for _, chunk := range chunks {
		if !a.entryChunks[chunk] {
			add(chunk)
		}
	}
	return out
}

func writeMeta(b *strings.Builder, meta ssr.MetaTag) {
	b.WriteString("  <meta")
	writeAttr(b, "charset", meta.Charset)
	writeAttr(b, "name", meta.Name)
	writeAttr(b, "property", meta.Property)
	writeAttr(b, "http-equiv", meta.HTTPEquiv)
	writeAttr(b, "content", meta.Content)
	b.WriteString(">\n")
}

func writeLink(b *strings.Builder, link ssr.LinkTag) {
	b.WriteString("  <link")
	writeAttr(b, "rel", link.Rel)
	writeAttr(b, "href", link.Href)
	writeAttr(b, "type", link.Type)
	writeAttr(b, "sizes", link.Sizes)
	writeAttr(b, "crossorigin", link.CrossOrigin)
	writeAttr(b, "media", link.Media)
	b.WriteString(">\n")
}

// writeAttr writes an attribute unless value is empty.
func writeAttr(b *strings.Builder, name, value string) {
	if value != "" {
		b.WriteString(" " + name + `="` + render.EscapeAttr(value) + `"`)
	}
}
