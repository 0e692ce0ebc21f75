package render

import "testing"

func TestEscapeHTML(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty string", "", ""},
		{"plain text", "Hello, World!", "Hello, World!"},
		{"ampersand", "Tom & Jerry", "Tom &amp; Jerry"},
		{"angle brackets", "a < b > c", "a &lt; b &gt; c"},
		{"quotes", `say "it's"`, "say &quot;it&#39;s&quot;"},
		{"script tag", "<script>alert('xss')</script>", "&lt;script&gt;alert(&#39;xss&#39;)&lt;/script&gt;"},
		{"unicode preserved", "Hello 世界 🌍", "Hello 世界 🌍"},
		{"whitespace kept", "a\nb", "a\nb"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EscapeHTML(tt.input); got != tt.want {
				t.Errorf("EscapeHTML(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestEscapeAttr(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty string", "", ""},
		{"plain text", "hello", "hello"},
		{"double quote", `value="test"`, "value=&quot;test&quot;"},
		{"mixed whitespace", "a\n\r\tb", "a&#10;&#13;&#9;b"},
		{"all special chars", `<>&"'` + "\n\r\t", "&lt;&gt;&amp;&quot;&#39;&#10;&#13;&#9;"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EscapeAttr(tt.input); got != tt.want {
				t.Errorf("EscapeAttr(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func BenchmarkEscapeHTML(b *testing.B) {
	s := `<script>alert("xss")</script> & more content here`
	for i := 0; i < b.N; i++ {
		EscapeHTML(s)
	}
}
