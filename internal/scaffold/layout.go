package scaffold

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/fyrsmithlabs/owera/internal/project"
)

const appSkeleton = `import os
from functools import wraps

from flask import Flask, render_template, request, redirect, url_for, session, jsonify
from flask_sqlalchemy import SQLAlchemy

app = Flask(__name__)
app.config['SECRET_KEY'] = os.environ.get('SECRET_KEY', 'change-me')
app.config['SQLALCHEMY_DATABASE_URI'] = os.environ.get('DATABASE_URL', 'sqlite:///database.db')
app.config['SQLALCHEMY_TRACK_MODIFICATIONS'] = False
db = SQLAlchemy(app)


def login_required(f):
    @wraps(f)
    def wrapped(*args, **kwargs):
        if 'user_id' not in session:
            return redirect(url_for('sign_in', next=request.path))
        return f(*args, **kwargs)
    return wrapped


@app.route('/sign-in', methods=['GET', 'POST'])
def sign_in():
    if request.method == 'POST' and request.form.get('username'):
        session['user_id'] = request.form['username']
        return redirect(request.args.get('next') or '/')
    return '<form method="post"><input name="username"><button>Sign in</button></form>'


@app.route('/sign-out')
def sign_out():
    session.pop('user_id', None)
    return redirect('/')

{{range .Features}}
# {{.Name}}: {{.Description}}
{{range .Fragments}}{{.}}

{{end}}{{end}}
with app.app_context():
    db.create_all()

if __name__ == "__main__":
    app.run(debug=True)
`

const readmeSkeleton = `# {{.Name}}

Generated by owera.

## Technologies

{{range .Technologies}}- {{.}}
{{end}}
## Features

| Feature | Stage | Description |
|---|---|---|
{{range .Features}}| {{.Name}} | {{.Stage}} | {{.Description}} |
{{end}}
## Running

` + "```" + `
pip install -r requirements.txt
python src/app.py
` + "```" + `
`

const gitignore = `__pycache__/
*.pyc
.venv/
*.db
logs/*.log
.env
`

const requirements = "flask\nflask-sqlalchemy\n"

var (
	appTemplate    = template.Must(template.New("app.py").Parse(appSkeleton))
	readmeTemplate = template.Must(template.New("README.md").Parse(readmeSkeleton))
)

type appFeature struct {
	Name        string
	Description string
	Stage       project.Stage
	Fragments   []string
}

type appData struct {
	Name         string
	Technologies []string
	Features     []appFeature
}

func newAppData(s project.Snapshot) appData {
	d := appData{Name: s.Name, Technologies: s.Technologies}
	for _, f := range s.Features {
		d.Features = append(d.Features, appFeature{
			Name:        f.Name,
			Description: f.Description,
			Stage:       f.Stage(),
			Fragments:   s.Artifacts[f.Name].Implementations,
		})
	}
	return d
}

func render(t *template.Template, data any) (string, error) {
	var b strings.Builder
	if err := t.Execute(&b, data); err != nil {
		return "", fmt.Errorf("render %s: %w", t.Name(), err)
	}
	return b.String(), nil
}

func designDoc(s project.Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s design\n", s.Name)
	for _, f := range s.Features {
		fmt.Fprintf(&b, "\n## %s\n\n", f.Name)
		if d := s.Artifacts[f.Name].Design; d != "" {
			fmt.Fprintf(&b, "```html\n%s\n```\n", d)
		} else {
			b.WriteString("No design recorded.\n")
		}
	}
	return b.String()
}

func issuesDoc(s project.Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s issues\n\n", s.Name)
	if len(s.Issues) == 0 {
		b.WriteString("No issues raised.\n")
		return b.String()
	}
	b.WriteString("| Feature | Issue | Resolved |\n|---|---|---|\n")
	for _, i := range s.Issues {
		desc := strings.ReplaceAll(strings.ReplaceAll(i.Description, "\n", " "), "|", `\|`)
		fmt.Fprintf(&b, "| %s | %s | %t |\n", i.Feature, desc, i.IsResolved)
	}
	return b.String()
}

// looksLikeMarkup reports whether a stored design can be written as a
// template as-is.
func looksLikeMarkup(s string) bool {
	t := strings.TrimSpace(s)
	return strings.HasPrefix(t, "<") && strings.HasSuffix(t, ">")
}
