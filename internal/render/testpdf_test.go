package render

import (
	"bytes"
	"fmt"
	"strings"
)

// minimalPDF builds a structurally valid PDF with n empty letter-size pages.
func minimalPDF(n int) []byte {
	return pdfWithMediaBox(n, "0 0 612 792", false)
}

// pdfWithMediaBox builds n empty pages sized by box. When inherited is set the
// box lives on the page tree node instead of the pages.
func pdfWithMediaBox(n int, box string, inherited bool) []byte {
	var buf bytes.Buffer
	var offsets []int
	obj := func(body string) {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", len(offsets), body)
	}

	buf.WriteString("%PDF-1.4\n")
	obj("<< /Type /Catalog /Pages 2 0 R >>")
	kids := make([]string, n)
	for i := range kids {
		kids[i] = fmt.Sprintf("%d 0 R", i+3)
	}
	pagesBox, pageBox := "", fmt.Sprintf(" /MediaBox [%s]", box)
	if inherited {
		pagesBox, pageBox = pageBox, ""
	}
	obj(fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d%s >>", strings.Join(kids, " "), n, pagesBox))
	for i := 0; i < n; i++ {
		obj(fmt.Sprintf("<< /Type /Page /Parent 2 0 R%s >>", pageBox))
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(offsets)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, xref)
	return buf.Bytes()
}
