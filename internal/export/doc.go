// Package export renders notes as PDF documents.
//
// The title is set in bold 16pt. The body is read as markdown with goldmark
// and laid out block by block with fpdf: headings in bold, paragraphs and
// list items as wrapped text, code blocks in a monospace font. Inline
// markup is flattened to plain text. Text is drawn with the PDF core fonts,
// so characters outside Windows-1252 are not rendered faithfully.
package export
