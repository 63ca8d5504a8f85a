package extraction

// Kind selects the artifact type being extracted.
type Kind string

const (
	KindMarkup Kind = "markup"
	KindCode   Kind = "code"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k == KindMarkup || k == KindCode
}

// Source names the step of the chain that produced an artifact.
type Source string

const (
	SourceFence       Source = "fence"
	SourceDocument    Source = "document"
	SourceMarkupLines Source = "markup_lines"
	SourceCodeBlock   Source = "code_block"
	SourcePlaceholder Source = "placeholder"
)

// Feature is the slice of a project feature the engine needs.
type Feature struct {
	Name        string
	Description string
	Constraints []string
}

// Config tunes the chain. Zero fields take the defaults below.
type Config struct {
	// MarkupFence and CodeFence are the fence language tags.
	MarkupFence string
	CodeFence   string

	// StartPrefixes begin a code block.
	StartPrefixes []string
	// ControlPrefixes continue a code block.
	ControlPrefixes []string
	// Assignables are identifier prefixes whose assignment continues a code block.
	Assignables []string
	// AuthKeywords in a constraint add @login_required to the code placeholder.
	AuthKeywords []string
}

func defaultStartPrefixes() []string {
	return []string{"@app.route", "def ", "from ", "import ", "if __name__"}
}

func defaultControlPrefixes() []string {
	return []string{
		"if ", "elif ", "else:", "for ", "while ", "try:", "except", "finally:", "with ",
		"return", "@",
	}
}

func defaultAssignables() []string {
	return []string{
		"user", "session", "db", "app", "form", "data", "result", "response", "password", "username",
	}
}

func defaultAuthKeywords() []string {
	return []string{"login", "auth", "authenticat", "secure"}
}

func (c Config) withDefaults() Config {
	if c.MarkupFence == "" {
		c.MarkupFence = "html"
	}
	if c.CodeFence == "" {
		c.CodeFence = "python"
	}
	if len(c.StartPrefixes) == 0 {
		c.StartPrefixes = defaultStartPrefixes()
	}
	if len(c.ControlPrefixes) == 0 {
		c.ControlPrefixes = defaultControlPrefixes()
	}
	if len(c.Assignables) == 0 {
		c.Assignables = defaultAssignables()
	}
	if len(c.AuthKeywords) == 0 {
		c.AuthKeywords = defaultAuthKeywords()
	}
	return c
}
