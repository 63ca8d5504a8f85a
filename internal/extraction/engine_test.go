package extraction

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var login = Feature{
	Name:        "user login",
	Description: "Let users sign in",
	Constraints: []string{"secure login"},
}

func TestExtract_Markup(t *testing.T) {
	e := NewEngine(Config{})

	tests := []struct {
		name   string
		text   string
		want   string
		source Source
	}{
		{
			name:   "html fence",
			text:   "Here you go:\n```html\n<div>hi</div>\n```\nEnjoy.",
			want:   "<div>hi</div>",
			source: SourceFence,
		},
		{
			name:   "fence tag is case-insensitive",
			text:   "```HTML\n<p>x</p>\n```",
			want:   "<p>x</p>",
			source: SourceFence,
		},
		{
			name:   "empty fence falls through to document",
			text:   "<!DOCTYPE html>\n```html\n\n```",
			want:   "<!DOCTYPE html>\n```html\n\n```",
			source: SourceDocument,
		},
		{
			name:   "doctype document",
			text:   "  <!doctype html>\n<html><body></body></html>\n",
			want:   "<!doctype html>\n<html><body></body></html>",
			source: SourceDocument,
		},
		{
			name:   "html root",
			text:   "<html lang=\"en\"></html>",
			want:   "<html lang=\"en\"></html>",
			source: SourceDocument,
		},
		{
			name:   "markup lines among prose",
			text:   "Sure! Use this:\n  <form>\nsome words\n<input name=\"q\">\n  </form>",
			want:   "<form>\n<input name=\"q\">\n</form>",
			source: SourceMarkupLines,
		},
		{
			name:   "python fence is ignored for markup",
			text:   "```python\nprint(1)\n```",
			source: SourcePlaceholder,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, src := e.ExtractWithSource(tt.text, KindMarkup, login)
			assert.Equal(t, tt.source, src)
			if tt.want != "" {
				assert.Equal(t, tt.want, got)
			}
			assert.NotEmpty(t, got)
		})
	}
}

func TestExtract_MarkupPlaceholderNamesFeature(t *testing.T) {
	e := NewEngine(Config{})

	got := e.Extract("I cannot help with that.", KindMarkup, Feature{Name: "profile page", Description: "Shows <profile>"})

	assert.Contains(t, got, "<title>profile page</title>")
	assert.Contains(t, got, "<h1 class=\"text-3xl font-bold mb-6\">profile page</h1>")
	assert.Contains(t, got, "Shows &lt;profile&gt;")
	assert.True(t, strings.HasPrefix(got, "<!DOCTYPE html>"))
}

func TestExtract_Code(t *testing.T) {
	e := NewEngine(Config{})

	tests := []struct {
		name   string
		text   string
		want   string
		source Source
	}{
		{
			name:   "python fence",
			text:   "```python\n@app.route('/')\ndef home():\n    return 'hi'\n```",
			want:   "@app.route('/')\ndef home():\n    return 'hi'",
			source: SourceFence,
		},
		{
			name: "block among prose",
			text: "Here is the route:\n" +
				"@app.route('/login', methods=['POST'])\n" +
				"def login():\n" +
				"    username = request.form['username']\n" +
				"\n" +
				"    if username:\n" +
				"        return redirect('/')\n" +
				"    return render_template('login.html')\n" +
				"\n" +
				"This handles the login.\n" +
				"def ignored():\n",
			want: "@app.route('/login', methods=['POST'])\n" +
				"def login():\n" +
				"    username = request.form['username']\n" +
				"\n" +
				"    if username:\n" +
				"        return redirect('/')\n" +
				"    return render_template('login.html')",
			source: SourceCodeBlock,
		},
		{
			name: "whitelisted assignment continues",
			text:   "import os\nsession['user_id'] = 1\ndb = SQLAlchemy(app)\nresult += 2\nother = 3",
			want:   "import os\nsession['user_id'] = 1\ndb = SQLAlchemy(app)\nresult += 2",
			source: SourceCodeBlock,
		},
		{
			name:   "assignment to prefixed identifier continues",
			text:   "def login():\nuser_id = request.form['id']\nsession_token = 'x'\nusers = []\nreturn 'ok'",
			want:   "def login():\nuser_id = request.form['id']\nsession_token = 'x'\nusers = []\nreturn 'ok'",
			source: SourceCodeBlock,
		},
		{
			name:   "comparison is not assignment",
			text:   "from flask import Flask\nuser == admin\n",
			want:   "from flask import Flask",
			source: SourceCodeBlock,
		},
		{
			name:   "indented block is dedented",
			text:   "Code:\n    def home():\n        return 'hi'\n",
			want:   "def home():\n    return 'hi'",
			source: SourceCodeBlock,
		},
		{
			name:   "control keywords continue",
			text:   "def f():\ntry:\nexcept ValueError:\nfinally:\nwith open(x) as fh:\nfor i in x:\nwhile True:\nelse:\nelif x:\n@login_required\nreturn 1\nThe end",
			want:   "def f():\ntry:\nexcept ValueError:\nfinally:\nwith open(x) as fh:\nfor i in x:\nwhile True:\nelse:\nelif x:\n@login_required\nreturn 1",
			source: SourceCodeBlock,
		},
		{
			name:   "no code",
			text:   "I would structure the route carefully.",
			source: SourcePlaceholder,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, src := e.ExtractWithSource(tt.text, KindCode, login)
			assert.Equal(t, tt.source, src)
			if tt.want != "" {
				assert.Equal(t, tt.want, got)
			}
			assert.NotEmpty(t, got)
		})
	}
}

func TestExtract_CodePlaceholder(t *testing.T) {
	e := NewEngine(Config{})

	t.Run("auth constraint adds login_required", func(t *testing.T) {
		got := e.Extract("", KindCode, login)
		assert.Equal(t,
			"@app.route('/user_login')\n@login_required\ndef user_login():\n    return render_template('user_login.html')",
			got)
	})

	for _, c := range []string{"must AUTHENTICATE", "uses auth tokens", "keep it Secure"} {
		t.Run(c, func(t *testing.T) {
			got := e.Extract("", KindCode, Feature{Name: "x", Constraints: []string{c}})
			assert.Contains(t, got, "@login_required")
		})
	}

	t.Run("no auth constraint", func(t *testing.T) {
		got := e.Extract("", KindCode, Feature{Name: "blog feed", Constraints: []string{"clean design"}})
		assert.NotContains(t, got, "@login_required")
		assert.Contains(t, got, "def blog_feed():")
	})
}

func TestExtract_NeverEmpty(t *testing.T) {
	e := NewEngine(Config{})
	inputs := []string{
		"", " ", "\n\n", "```html\n```", "```python\n   \n```", "<", "def", "prose only",
		"```\nuntagged\n```", "!!!", "from", "\t\t",
	}
	features := []Feature{{}, {Name: "  "}, {Name: "123"}, login}

	for _, in := range inputs {
		for _, f := range features {
			for _, k := range []Kind{KindMarkup, KindCode, Kind("other")} {
				assert.NotEmpty(t, strings.TrimSpace(e.Extract(in, k, f)), "input=%q kind=%s feature=%q", in, k, f.Name)
			}
		}
	}
}

func TestNewEngine_CustomConfig(t *testing.T) {
	e := NewEngine(Config{
		CodeFence:     "py",
		StartPrefixes: []string{"class "},
		AuthKeywords:  []string{"admin"},
	})

	got, src := e.ExtractWithSource("```py\nx = 1\n```", KindCode, Feature{Name: "a"})
	require.Equal(t, SourceFence, src)
	assert.Equal(t, "x = 1", got)

	got, src = e.ExtractWithSource("def f():\nclass A:\n    pass", KindCode, Feature{Name: "a"})
	require.Equal(t, SourceCodeBlock, src)
	assert.Equal(t, "class A:\n    pass", got)

	assert.Contains(t, e.Extract("", KindCode, Feature{Name: "a", Constraints: []string{"admin only"}}), "@login_required")
	assert.NotContains(t, e.Extract("", KindCode, Feature{Name: "a", Constraints: []string{"secure"}}), "@login_required")
}

func TestSlug(t *testing.T) {
	tests := map[string]string{
		"user login":     "user_login",
		"User Login!":    "user_login",
		"  cart -- page": "cart_page",
		"":               "feature",
		"!!!":            "feature",
		"2fa setup":      "feature_2fa_setup",
		"café menu":      "caf_menu",
	}
	for in, want := range tests {
		assert.Equal(t, want, Slug(in), in)
	}
}

func TestTemplateName(t *testing.T) {
	assert.Equal(t, "user_login.html", TemplateName("user login"))
	assert.Equal(t, "home.html", TemplateName("home"))
}

func TestKind_Valid(t *testing.T) {
	assert.True(t, KindMarkup.Valid())
	assert.True(t, KindCode.Valid())
	assert.False(t, Kind("binary").Valid())
}
