package preprocess

import (
	"strings"
	"testing"
)

func TestCleanBasicCollapsesWhitespace(t *testing.T) {
	in := "refund   policy\t\tdetails\n\n\n\nmore"
	out := CleanBasic(in)
	if strings.Contains(out, "  ") {
		t.Errorf("spaces not collapsed: %q", out)
	}
	if strings.Contains(out, "\n\n\n") {
		t.Errorf("newlines not collapsed: %q", out)
	}
}

func TestHTMLToTextKeepsStructure(t *testing.T) {
	html := `<html><body>
		<h1>Refund Policy</h1>
		<p>Refunds are issued within 14 days.</p>
		<ul><li>Keep your receipt</li></ul>
	</body></html>`

	out, err := HTMLToText(html)
	if err != nil {
		t.Fatalf("HTMLToText error: %v", err)
	}
	if !strings.Contains(out, "# Refund Policy") {
		t.Errorf("heading missing: %q", out)
	}
	if !strings.Contains(out, "Refunds are issued within 14 days.") {
		t.Errorf("paragraph missing: %q", out)
	}
	if !strings.Contains(out, "- Keep your receipt") {
		t.Errorf("list item missing: %q", out)
	}
}

func TestRemoveDuplicateParagraphs(t *testing.T) {
	in := "same text\n\nsame text\n\nother text"
	out := RemoveDuplicateParagraphs(in)
	if strings.Count(out, "same text") != 1 {
		t.Errorf("duplicates not removed: %q", out)
	}
	if !strings.Contains(out, "other text") {
		t.Errorf("distinct paragraph dropped: %q", out)
	}
}
