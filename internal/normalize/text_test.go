package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlugify(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"simple", "Ethiopia Light Roast", "ethiopia-light-roast"},
		{"diacritics folded", "Café Crème Brûlée", "cafe-creme-brulee"},
		{"punctuation dropped", "Monsooned Malabar (AA)", "monsooned-malabar-aa"},
		{"hyphen runs collapsed", "Washed -- Natural", "washed-natural"},
		{"leading trailing trimmed", " / Attikan Estate / ", "attikan-estate"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Slugify(tt.in))
		})
	}
}

func TestCleanHTML(t *testing.T) {
	t.Parallel()

	html := `<p>A <b>bright</b> washed coffee.</p><script>track()</script>`
	assert.Equal(t, "A bright washed coffee.", CleanHTML(html))
}

func TestCleanDescription(t *testing.T) {
	t.Parallel()

	in := `<p>Notes of chocolate.</p> Add to cart <span>Read more</span>`
	assert.Equal(t, "Notes of chocolate.", CleanDescription(in))

	assert.Empty(t, CleanDescription("JavaScript seems to be disabled in your browser."))
}

func TestExtractTitle(t *testing.T) {
	t.Parallel()

	body := []byte(`<html><head><title> Kalita Blend | Bean Atlas </title></head></html>`)
	assert.Equal(t, "Kalita Blend | Bean Atlas", ExtractTitle(body))
	assert.Empty(t, ExtractTitle([]byte("<html></html>")))
}

func TestPageText(t *testing.T) {
	t.Parallel()

	html := `<html><head><script>x()</script><style>.a{}</style></head>
<body><nav>Menu</nav><h1>Ribeira Grande</h1><p>Notes of caramel &amp; plum.</p><footer>Contact</footer></body></html>`

	text := PageText(html)
	assert.Contains(t, text, "Ribeira Grande")
	assert.Contains(t, text, "caramel & plum")
	assert.NotContains(t, text, "Menu")
	assert.NotContains(t, text, "Contact")
	assert.NotContains(t, text, "x()")
}
