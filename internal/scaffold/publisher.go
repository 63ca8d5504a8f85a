package scaffold

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/google/go-github/v57/github"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/fyrsmithlabs/owera/internal/config"
	"github.com/fyrsmithlabs/owera/internal/logging"
)

// ErrNoToken is returned when publishing without a GitHub token.
var ErrNoToken = errors.New("scaffold: GitHub token not set")

const remoteName = "origin"

// PublishOptions names the repository to create.
type PublishOptions struct {
	// Owner is an organization. Empty creates the repository under the
	// authenticated user.
	Owner       string
	Name        string
	Description string
	Private     bool
}

// Publisher creates GitHub repositories and pushes generated projects.
type Publisher struct {
	client *github.Client
	token  config.Secret
	logger *logging.Logger
}

// PublisherOption configures a Publisher.
type PublisherOption func(*publisherOptions)

type publisherOptions struct {
	baseURL string
	logger  *logging.Logger
}

// WithBaseURL points the client at a GitHub Enterprise or test API.
func WithBaseURL(url string) PublisherOption {
	return func(o *publisherOptions) { o.baseURL = url }
}

// WithLogger sets the publisher logger.
func WithLogger(l *logging.Logger) PublisherOption {
	return func(o *publisherOptions) { o.logger = l }
}

// NewPublisher creates a token-authenticated GitHub client.
func NewPublisher(ctx context.Context, token config.Secret, opts ...PublisherOption) (*Publisher, error) {
	if !token.IsSet() {
		return nil, ErrNoToken
	}
	o := publisherOptions{logger: logging.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token.Value()})
	client := github.NewClient(oauth2.NewClient(ctx, ts))
	if o.baseURL != "" {
		var err error
		client, err = client.WithEnterpriseURLs(o.baseURL, o.baseURL)
		if err != nil {
			return nil, fmt.Errorf("github base url: %w", err)
		}
	}
	return &Publisher{client: client, token: token, logger: o.logger.Named("publisher")}, nil
}

// Publish creates the repository, reusing it if it already exists, and
// pushes every local branch of the repository at dir. It returns the
// repository's web URL.
func (p *Publisher) Publish(ctx context.Context, dir string, opts PublishOptions) (string, error) {
	repo, err := p.ensureRepository(ctx, opts)
	if err != nil {
		return "", err
	}
	if err := p.push(ctx, dir, repo.GetCloneURL()); err != nil {
		return "", err
	}
	p.logger.Info(ctx, "project published",
		zap.String("repo", repo.GetFullName()),
		zap.String("url", repo.GetHTMLURL()))
	return repo.GetHTMLURL(), nil
}

func (p *Publisher) ensureRepository(ctx context.Context, opts PublishOptions) (*github.Repository, error) {
	repo, _, err := p.client.Repositories.Create(ctx, opts.Owner, &github.Repository{
		Name:        github.String(opts.Name),
		Description: github.String(opts.Description),
		Private:     github.Bool(opts.Private),
	})
	if err == nil {
		return repo, nil
	}

	var ghErr *github.ErrorResponse
	if !errors.As(err, &ghErr) || ghErr.Response == nil || ghErr.Response.StatusCode != http.StatusUnprocessableEntity {
		return nil, fmt.Errorf("create repository %s: %w", opts.Name, err)
	}

	owner := opts.Owner
	if owner == "" {
		user, _, uerr := p.client.Users.Get(ctx, "")
		if uerr != nil {
			return nil, fmt.Errorf("resolve authenticated user: %w", uerr)
		}
		owner = user.GetLogin()
	}
	repo, _, err = p.client.Repositories.Get(ctx, owner, opts.Name)
	if err != nil {
		return nil, fmt.Errorf("get repository %s/%s: %w", owner, opts.Name, err)
	}
	p.logger.Info(ctx, "repository exists, reusing", zap.String("repo", repo.GetFullName()))
	return repo, nil
}

func (p *Publisher) push(ctx context.Context, dir, url string) error {
	if url == "" {
		return fmt.Errorf("repository has no clone url")
	}
	repo, err := git.PlainOpen(dir)
	if err != nil {
		return fmt.Errorf("open repository %s: %w", dir, err)
	}

	remote, err := repo.Remote(remoteName)
	switch {
	case errors.Is(err, git.ErrRemoteNotFound):
		remote, err = repo.CreateRemote(&gitconfig.RemoteConfig{Name: remoteName, URLs: []string{url}})
		if err != nil {
			return fmt.Errorf("add remote: %w", err)
		}
	case err != nil:
		return fmt.Errorf("remote: %w", err)
	}

	err = remote.PushContext(ctx, &git.PushOptions{
		RemoteName: remoteName,
		RefSpecs:   []gitconfig.RefSpec{"refs/heads/*:refs/heads/*"},
		Auth:       &githttp.BasicAuth{Username: "x-access-token", Password: p.token.Value()},
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return fmt.Errorf("push: %w", err)
	}
	return nil
}
