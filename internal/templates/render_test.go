package templates

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRendersPopup(t *testing.T) {
	out, err := Default().Render("popup", map[string]any{
		"Sections": []map[string]any{{
			"Layer":     "facultades",
			"FeatureID": "facultades.1",
			"Rows": []map[string]string{
				{"Key": "nombre", "Value": "<b>FCI</b>"},
			},
		}},
	})
	require.NoError(t, err)
	assert.Contains(t, out, `data-layer="facultades"`)
	assert.Contains(t, out, "<th>nombre</th>")
	assert.Contains(t, out, "&lt;b&gt;FCI&lt;/b&gt;")
}

func TestDict(t *testing.T) {
	fsys := fstest.MapFS{
		"a.html": {Data: []byte(`{{define "a"}}{{template "b" dict "x" 1 "y" "two"}}{{end}}{{define "b"}}{{.x}}-{{.y}}{{end}}`)},
	}
	r, err := New(fsys, "*.html")
	require.NoError(t, err)
	assert.Equal(t, "1-two", r.MustRender("a", nil))
}

func TestUnknownTemplate(t *testing.T) {
	_, err := Default().Render("nope", nil)
	assert.Error(t, err)
}
