// ABOUTME: PDF rendering of a note title and markdown body
// ABOUTME: Walks the goldmark AST and lays out each block with fpdf

package export

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-pdf/fpdf"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/2389/notebox/internal/apperr"
	"github.com/2389/notebox/internal/store"
)

const (
	bodyFont     = "Helvetica"
	codeFont     = "Courier"
	titleSize    = 16
	bodySize     = 11
	lineHeight   = 5.5
	pageMargin   = 20
	listIndentMM = 6
)

// headingSizes maps heading levels 1..6 to point sizes.
var headingSizes = [...]float64{15, 14, 13, 12, 11, 11}

// NoteSource loads notes for export.
type NoteSource interface {
	Get(ctx context.Context, noteID int64) (*store.Note, error)
}

// Renderer produces PDF documents from notes.
type Renderer struct {
	md       goldmark.Markdown
	compress bool
}

// NewRenderer returns a renderer with stream compression enabled.
func NewRenderer() *Renderer {
	return &Renderer{md: goldmark.New(), compress: true}
}

// Render lays out title and markdown content as a single PDF.
func (r *Renderer) Render(title, content string) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetCompression(r.compress)
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetAutoPageBreak(true, pageMargin)
	pdf.SetTitle(title, true)
	pdf.SetCreator("notebox", true)
	pdf.AddPage()

	w := &writer{pdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor("")}

	pdf.SetFont(bodyFont, "B", titleSize)
	w.multi(title, 8)
	pdf.Ln(4)

	src := []byte(content)
	doc := r.md.Parser().Parse(text.NewReader(src))
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		w.block(n, src, 0)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("rendering pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// Filename returns the download name for a note's PDF.
func Filename(noteID int64) string {
	return fmt.Sprintf("note-%d.pdf", noteID)
}

// Exporter loads a note and renders it.
type Exporter struct {
	notes    NoteSource
	renderer *Renderer
	logger   *slog.Logger
}

// NewExporter creates an exporter reading notes from src.
func NewExporter(src NoteSource, renderer *Renderer, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	if renderer == nil {
		renderer = NewRenderer()
	}
	return &Exporter{
		notes:    src,
		renderer: renderer,
		logger:   logger.With("component", "export"),
	}
}

// Export renders the note with the given id.
func (e *Exporter) Export(ctx context.Context, noteID int64) ([]byte, error) {
	note, err := e.notes.Get(ctx, noteID)
	if err != nil {
		return nil, err
	}

	out, err := e.renderer.Render(note.Title, note.Content)
	if err != nil {
		e.logger.Error("pdf render failed", "note_id", noteID, "error", err)
		return nil, apperr.E(apperr.KindInternal, "rendering pdf", err)
	}

	e.logger.Debug("exported note", "note_id", noteID, "bytes", len(out))
	return out, nil
}

type writer struct {
	pdf *fpdf.Fpdf
	tr  func(string) string
}

func (w *writer) multi(s string, h float64) {
	w.pdf.MultiCell(0, h, w.tr(s), "", "L", false)
}

func (w *writer) block(n ast.Node, src []byte, depth int) {
	left, _, _, _ := w.pdf.GetMargins()
	indent := float64(depth) * listIndentMM

	switch n := n.(type) {
	case *ast.Heading:
		size := headingSizes[min(n.Level, len(headingSizes))-1]
		w.pdf.SetFont(bodyFont, "B", size)
		w.pdf.Ln(2)
		w.multi(inlineText(n, src), size*0.5)
		w.pdf.Ln(1)

	case *ast.Paragraph, *ast.TextBlock:
		w.pdf.SetFont(bodyFont, "", bodySize)
		w.pdf.SetX(left + indent)
		w.multi(inlineText(n, src), lineHeight)
		if _, ok := n.(*ast.Paragraph); ok {
			w.pdf.Ln(2)
		}

	case *ast.List:
		num := n.Start
		for item := n.FirstChild(); item != nil; item = item.NextSibling() {
			marker := "-"
			if n.IsOrdered() {
				marker = fmt.Sprintf("%d.", num)
				num++
			}
			w.listItem(item, src, depth, marker)
		}
		w.pdf.Ln(1)

	case *ast.FencedCodeBlock, *ast.CodeBlock:
		w.pdf.SetFont(codeFont, "", bodySize-1)
		lines := n.Lines()
		var b strings.Builder
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			b.Write(seg.Value(src))
		}
		w.pdf.SetX(left + indent)
		w.multi(strings.TrimRight(b.String(), "\n"), lineHeight-0.5)
		w.pdf.Ln(2)

	case *ast.Blockquote:
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			w.block(c, src, depth+1)
		}

	case *ast.ThematicBreak:
		pageW, _ := w.pdf.GetPageSize()
		y := w.pdf.GetY() + 2
		w.pdf.Line(left, y, pageW-left, y)
		w.pdf.Ln(5)

	default:
		if t := inlineText(n, src); t != "" {
			w.pdf.SetFont(bodyFont, "", bodySize)
			w.multi(t, lineHeight)
		}
	}
}

func (w *writer) listItem(item ast.Node, src []byte, depth int, marker string) {
	left, _, _, _ := w.pdf.GetMargins()
	indent := float64(depth) * listIndentMM

	first := true
	for c := item.FirstChild(); c != nil; c = c.NextSibling() {
		if _, nested := c.(*ast.List); nested {
			w.block(c, src, depth+1)
			continue
		}
		if first {
			w.pdf.SetFont(bodyFont, "", bodySize)
			w.pdf.SetX(left + indent)
			w.pdf.CellFormat(listIndentMM, lineHeight, w.tr(marker), "", 0, "L", false, 0, "")
			w.multi(inlineText(c, src), lineHeight)
			first = false
			continue
		}
		w.block(c, src, depth+1)
	}
}

// inlineText flattens the inline children of n to plain text.
func inlineText(n ast.Node, src []byte) string {
	var b strings.Builder
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch c := c.(type) {
		case *ast.Text:
			b.Write(c.Segment.Value(src))
			switch {
			case c.HardLineBreak():
				b.WriteByte('\n')
			case c.SoftLineBreak():
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(c.Value)
		case *ast.AutoLink:
			b.Write(c.URL(src))
			return ast.WalkSkipChildren, nil
		case *ast.RawHTML:
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(b.String())
}
