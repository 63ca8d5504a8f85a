package spec

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/owera/internal/logging"
)

type plannerFunc func(ctx context.Context, description string) (string, error)

func (f plannerFunc) Plan(ctx context.Context, description string) (string, error) {
	return f(ctx, description)
}

func staticPlanner(resp string, err error) Planner {
	return plannerFunc(func(context.Context, string) (string, error) { return resp, err })
}

const taskMaster = "Build an app called TaskMaster with a login page to authenticate users and a dashboard to show tasks and a clean, modern design"

func TestManualParse(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		wantName string
		features []FeatureDocument
	}{
		{
			name:     "features and a design constraint",
			text:     taskMaster,
			wantName: "TaskMaster",
			features: []FeatureDocument{
				{Name: "login page", Description: "authenticate users", Constraints: []string{"clean, modern design"}},
				{Name: "dashboard", Description: "show tasks", Constraints: []string{"clean, modern design"}},
			},
		},
		{
			name:     "phrase without purpose",
			text:     "Build a blog named Journal with a search bar and comments",
			wantName: "Journal",
			features: []FeatureDocument{
				{Name: "search bar", Description: "Implement search bar"},
				{Name: "comments", Description: "Implement comments"},
			},
		},
		{
			name:     "nothing recognizable",
			text:     "Build a website",
			wantName: DefaultName,
			features: []FeatureDocument{{Name: DefaultFeatureName, Description: DefaultFeatureDescription}},
		},
		{
			name:     "constraint only",
			text:     "An app called Vault and a secure login",
			wantName: "Vault",
			features: []FeatureDocument{{Name: DefaultFeatureName, Description: DefaultFeatureDescription, Constraints: []string{"secure login"}}},
		},
		{
			name:     "duplicate phrases collapse",
			text:     "with a chat and a chat",
			wantName: DefaultName,
			features: []FeatureDocument{{Name: "chat", Description: "Implement chat"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := ManualParse(tt.text)
			assert.Equal(t, tt.wantName, doc.Name)
			assert.Equal(t, DefaultTechnologies(), doc.Technologies)
			assert.Equal(t, tt.features, doc.Features)
			assert.NoError(t, doc.Validate())
		})
	}
}

func TestParser_ModelJSON(t *testing.T) {
	resp := "Here you go:\n```json\n" +
		`{"name": "Shop", "features": [{"name": "cart", "description": "hold {items}", "constraints": ["fast"]}]}` +
		"\n```"
	parser := NewParser(staticPlanner(resp, nil), nil)

	doc, src, err := parser.ParseDocument(context.Background(), "a shop")
	require.NoError(t, err)
	assert.Equal(t, SourceModel, src)
	assert.Equal(t, "Shop", doc.Name)
	assert.Equal(t, DefaultTechnologies(), doc.Technologies)
	require.Len(t, doc.Features, 1)
	assert.Equal(t, "hold {items}", doc.Features[0].Description)

	p, err := parser.Parse(context.Background(), "a shop")
	require.NoError(t, err)
	assert.Equal(t, "Shop", p.Name())
	f, ok := p.Feature("cart")
	require.True(t, ok)
	assert.Equal(t, []string{"fast"}, f.Constraints)
}

func TestParser_FallsBackToManual(t *testing.T) {
	tests := []struct {
		name    string
		planner Planner
	}{
		{"model error", staticPlanner("", errors.New("connection refused"))},
		{"prose", staticPlanner("I cannot produce JSON today", nil)},
		{"broken JSON", staticPlanner(`{"name": "X", "features": [}`, nil)},
		{"no features", staticPlanner(`{"name": "X", "features": []}`, nil)},
		{"blank feature name", staticPlanner(`{"name": "X", "features": [{"name": " ", "description": "d"}]}`, nil)},
		{"duplicate feature names", staticPlanner(`{"name": "Shop", "features": [{"name": "login", "description": "a"}, {"name": "login", "description": "b"}]}`, nil)},
		{"duplicate after trimming", staticPlanner(`{"name": "Shop", "features": [{"name": "login", "description": "a"}, {"name": " login ", "description": "b"}]}`, nil)},
		{"no planner", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tl := logging.NewTestLogger()
			parser := NewParser(tt.planner, tl.Logger)

			doc, src, err := parser.ParseDocument(context.Background(), taskMaster)
			require.NoError(t, err)
			assert.Equal(t, SourceManual, src)
			assert.Equal(t, "TaskMaster", doc.Name)
			assert.Len(t, doc.Features, 2)
			if tt.planner != nil {
				tl.AssertLogged(t, zapcore.WarnLevel, "falling back")
			}
		})
	}
}

func TestParser_Empty(t *testing.T) {
	parser := NewParser(nil, nil)
	_, err := parser.Parse(context.Background(), "   \n\t")
	assert.ErrorIs(t, err, ErrEmptySpec)
}

func TestDocument_Validate(t *testing.T) {
	err := (&Document{}).Validate()
	require.ErrorIs(t, err, ErrInvalidSpec)
	assert.Contains(t, err.Error(), "Document.Name")
	assert.Contains(t, err.Error(), "Document.Features")

	err = (&Document{Name: "A", Features: []FeatureDocument{{Name: "x"}}}).Validate()
	require.ErrorIs(t, err, ErrInvalidSpec)
	assert.Contains(t, err.Error(), "Description")
}

func TestDocument_BuildRejectsDuplicates(t *testing.T) {
	doc := Document{Name: "A", Features: []FeatureDocument{
		{Name: "x", Description: "one"},
		{Name: "x", Description: "two"},
	}}
	_, err := doc.Build()
	assert.ErrorIs(t, err, ErrInvalidSpec)

	doc.Features[1].Name = "  x\t"
	err = doc.Validate()
	require.ErrorIs(t, err, ErrInvalidSpec)
	assert.Contains(t, err.Error(), `duplicate feature name "x"`)
}

func TestMerge(t *testing.T) {
	base := Document{
		Name:         "Base",
		Technologies: []string{"Python/Flask"},
		Features: []FeatureDocument{
			{Name: "login", Description: "old", Constraints: []string{"secure"}},
			{Name: "home", Description: "welcome"},
		},
	}
	overlay := Document{
		Technologies: []string{"HTML/CSS", "Python/Flask"},
		Features: []FeatureDocument{
			{Name: "login", Description: "new", Constraints: []string{"secure", "fast"}},
			{Name: "about", Description: "about us"},
		},
	}

	got := Merge(base, overlay)
	assert.Equal(t, "Base", got.Name)
	assert.Equal(t, []string{"Python/Flask", "HTML/CSS"}, got.Technologies)
	require.Len(t, got.Features, 3)
	assert.Equal(t, FeatureDocument{Name: "login", Description: "new", Constraints: []string{"secure", "fast"}}, got.Features[0])
	assert.Equal(t, "home", got.Features[1].Name)
	assert.Equal(t, "about", got.Features[2].Name)

	got.Features[0].Constraints[0] = "mutated"
	assert.Equal(t, "secure", base.Features[0].Constraints[0])

	assert.Equal(t, "Other", Merge(base, Document{Name: "Other"}).Name)
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadFile(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"yaml", "app.yaml", "name: Shop\nfeatures:\n  - name: cart\n    description: hold items\n    constraints: [fast]\n"},
		{"yml", "app.yml", "name: Shop\nfeatures:\n  - name: cart\n    description: hold items\n    constraints: [fast]\n"},
		{"json", "app.json", `{"name":"Shop","features":[{"name":"cart","description":"hold items","constraints":["fast"]}]}`},
		{"toml", "app.toml", "name = \"Shop\"\n\n[[features]]\nname = \"cart\"\ndescription = \"hold items\"\nconstraints = [\"fast\"]\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := LoadFile(writeFile(t, tt.file, tt.content))
			require.NoError(t, err)
			assert.Equal(t, "Shop", doc.Name)
			assert.Equal(t, DefaultTechnologies(), doc.Technologies)
			assert.Equal(t, []FeatureDocument{{Name: "cart", Description: "hold items", Constraints: []string{"fast"}}}, doc.Features)
		})
	}
}

func TestLoadFile_Errors(t *testing.T) {
	_, err := LoadFile(writeFile(t, "app.txt", "hello"))
	assert.ErrorIs(t, err, ErrUnstructured)

	_, err = LoadFile(writeFile(t, "bad.json", "{"))
	assert.ErrorIs(t, err, ErrInvalidSpec)

	_, err = LoadFile(writeFile(t, "empty.yaml", "name: X\n"))
	assert.ErrorIs(t, err, ErrInvalidSpec)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	big := make([]byte, MaxFileSize+10)
	_, err = LoadFile(writeFile(t, "big.json", string(big)))
	assert.ErrorContains(t, err, "exceeds")
}

func TestParser_ParseFile(t *testing.T) {
	parser := NewParser(nil, nil)

	p, err := parser.ParseFile(context.Background(), writeFile(t, "app.json",
		`{"name":"Shop","features":[{"name":"cart","description":"hold items"}]}`))
	require.NoError(t, err)
	assert.Equal(t, "Shop", p.Name())

	p, err = parser.ParseFile(context.Background(), writeFile(t, "app.md", taskMaster))
	require.NoError(t, err)
	assert.Equal(t, "TaskMaster", p.Name())
	assert.Len(t, p.Features(), 2)
}

func TestParser_ParseFileOverlay(t *testing.T) {
	parser := NewParser(nil, nil)
	path := writeFile(t, "app.yaml", "name: Tasks\ntechnologies: [Go]\nfeatures:\n  - name: login page\n    description: sign in\n")

	p, err := parser.ParseFileOverlay(context.Background(), path,
		"with a login page to authenticate users and a dashboard to show tasks")
	require.NoError(t, err)
	assert.Equal(t, "Tasks", p.Name())
	assert.Equal(t, []string{"Go"}, p.Technologies())
	require.Len(t, p.Features(), 2)
	login, ok := p.Feature("login page")
	require.True(t, ok)
	assert.Equal(t, "authenticate users", login.Description)
	_, ok = p.Feature("dashboard")
	assert.True(t, ok)

	// Text that names nothing leaves the file untouched.
	p, err = parser.ParseFileOverlay(context.Background(), path, "Build a website")
	require.NoError(t, err)
	assert.Equal(t, "Tasks", p.Name())
	require.Len(t, p.Features(), 1)
	_, ok = p.Feature(DefaultFeatureName)
	assert.False(t, ok)

	_, err = parser.ParseFileOverlay(context.Background(), writeFile(t, "app.md", "x"), "a chat")
	assert.ErrorIs(t, err, ErrUnstructured)
}

func TestFirstObject(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{`x {"a": 1} y {"b": 2}`, `{"a": 1}`, true},
		{`{"a": "}"}`, `{"a": "}"}`, true},
		{`{"a": "\"}"}`, `{"a": "\"}"}`, true},
		{`{"a": {"b": {}}}`, `{"a": {"b": {}}}`, true},
		{`no braces`, "", false},
		{`{"open": 1`, "", false},
	}
	for _, tt := range tests {
		got, ok := firstObject(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}
