package document

import "testing"

func TestTextFromContentStream(t *testing.T) {
	stream := []byte(`BT
/F1 12 Tf
72 720 Td
(Hello world) Tj
0 -14 Td
(second line) Tj
T*
(third) Tj
ET
`)
	got := textFromContentStream(stream)
	want := "Hello world second line\nthird"
	if got != want {
		t.Errorf("textFromContentStream = %q, want %q", got, want)
	}
}

func TestTextFromContentStream_TJArray(t *testing.T) {
	stream := []byte(`[(Inv) -20 (oice)] TJ`)
	if got := textFromContentStream(stream); got != "Invoice" {
		t.Errorf("TJ array = %q, want Invoice", got)
	}
}

func TestTextFromContentStream_NoText(t *testing.T) {
	stream := []byte("q\n1 0 0 1 0 0 cm\n/Im0 Do\nQ\n")
	if got := textFromContentStream(stream); got != "" {
		t.Errorf("image-only stream = %q, want empty", got)
	}
}

func TestDecodeLiteral(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`plain`, "plain"},
		{`with \( parens \)`, "with ( parens )"},
		{`tab\there`, "tab\there"},
		{`back\\slash`, `back\slash`},
		{`octal \101`, "octal A"},
	}
	for _, tt := range tests {
		if got := decodeLiteral([]byte(tt.in)); got != tt.want {
			t.Errorf("decodeLiteral(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCollapseWhitespace(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"a  b\t c", "a b c"},
		{"a\n\n\nb", "a\nb"},
		{"  leading and trailing  ", "leading and trailing"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := collapseWhitespace(tt.in); got != tt.want {
			t.Errorf("collapseWhitespace(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
