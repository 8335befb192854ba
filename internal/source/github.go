package source

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
)

const (
	// DefaultAPIURL is the public GitHub REST API.
	DefaultAPIURL = "https://api.github.com"

	// DefaultUserAgent identifies the tool to the hosting API.
	DefaultUserAgent = "paperback-community/registry-manager"

	apiVersion    = "2022-11-28"
	maxErrorBody  = 512
	contentsLabel = "contents"
)

// GitHubClient implements ContentFetcher, TreeWriter and Committer against
// the GitHub REST API.
type GitHubClient struct {
	Client    HTTPClient
	BaseURL   string
	Token     string
	UserAgent string
	Timeout   time.Duration // per request (0 = no extra timeout beyond context)
	Logger    zerolog.Logger
}

var (
	_ ContentFetcher = (*GitHubClient)(nil)
	_ TreeWriter     = (*GitHubClient)(nil)
	_ Committer      = (*GitHubClient)(nil)
)

func (g *GitHubClient) GetFile(ctx context.Context, repo, path, ref string) (*File, error) {
	raw, err := g.getContents(ctx, repo, path, ref)
	if err != nil {
		return nil, err
	}
	if isJSONArray(raw) {
		return nil, &SourceError{Source: repo, Operation: "get file", Err: fmt.Errorf("%s is a directory, expected a single file", path)}
	}

	var f File
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, &SourceError{Source: repo, Operation: "get file", Err: fmt.Errorf("decoding %s: %w", path, err)}
	}
	if f.Type != "" && f.Type != TypeFile {
		return nil, &SourceError{Source: repo, Operation: "get file", Err: fmt.Errorf("%s has type '%s', expected '%s'", path, f.Type, TypeFile)}
	}
	return &f, nil
}

func (g *GitHubClient) ListDir(ctx context.Context, repo, path, ref string) ([]Entry, error) {
	raw, err := g.getContents(ctx, repo, path, ref)
	if err != nil {
		return nil, err
	}
	if !isJSONArray(raw) {
		return nil, &SourceError{Source: repo, Operation: "list directory", Err: fmt.Errorf("%s is a file, expected a directory", path)}
	}

	var entries []Entry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, &SourceError{Source: repo, Operation: "list directory", Err: fmt.Errorf("decoding %s: %w", path, err)}
	}
	return entries, nil
}

func (g *GitHubClient) GetTree(ctx context.Context, repo, ref string) (*Tree, error) {
	var tree Tree
	err := g.do(ctx, request{
		method:    http.MethodGet,
		elems:     []string{"repos", repo, "git", "trees", ref},
		want:      http.StatusOK,
		source:    repo,
		operation: "get tree",
	}, &tree)
	if err != nil {
		return nil, err
	}
	return &tree, nil
}

type createTreeBody struct {
	BaseTree string          `json:"base_tree"`
	Tree     []treeEntryBody `json:"tree"`
}

type treeEntryBody struct {
	Path    string  `json:"path"`
	Mode    string  `json:"mode"`
	Type    string  `json:"type"`
	Content *string `json:"content,omitempty"`
	SHA     *string `json:"sha,omitempty"`
}

// CreateTree creates a tree on top of baseTree. Text content is sent inline;
// content that is not valid UTF-8 is uploaded as a blob first and referenced
// by SHA.
func (g *GitHubClient) CreateTree(ctx context.Context, repo, baseTree string, entries []TreeEntry) (*Tree, error) {
	body := createTreeBody{BaseTree: baseTree, Tree: make([]treeEntryBody, 0, len(entries))}
	for _, e := range entries {
		te := treeEntryBody{Path: e.Path, Mode: e.Mode, Type: e.Type}
		if utf8.Valid(e.Content) {
			content := string(e.Content)
			te.Content = &content
		} else {
			sha, err := g.CreateBlob(ctx, repo, e.Content)
			if err != nil {
				return nil, err
			}
			te.SHA = &sha
		}
		body.Tree = append(body.Tree, te)
	}

	var tree Tree
	err := g.do(ctx, request{
		method:    http.MethodPost,
		elems:     []string{"repos", repo, "git", "trees"},
		body:      body,
		want:      http.StatusCreated,
		source:    repo,
		operation: "create tree",
	}, &tree)
	if err != nil {
		return nil, err
	}
	return &tree, nil
}

// CreateBlob uploads binary content and returns the blob SHA.
func (g *GitHubClient) CreateBlob(ctx context.Context, repo string, content []byte) (string, error) {
	body := map[string]string{
		"content":  base64.StdEncoding.EncodeToString(content),
		"encoding": "base64",
	}

	var out struct {
		SHA string `json:"sha"`
	}
	err := g.do(ctx, request{
		method:    http.MethodPost,
		elems:     []string{"repos", repo, "git", "blobs"},
		body:      body,
		want:      http.StatusCreated,
		source:    repo,
		operation: "create blob",
	}, &out)
	if err != nil {
		return "", err
	}
	return out.SHA, nil
}

func (g *GitHubClient) GetRef(ctx context.Context, repo, branch string) (string, error) {
	var out struct {
		Object struct {
			SHA string `json:"sha"`
		} `json:"object"`
	}
	err := g.do(ctx, request{
		method:    http.MethodGet,
		elems:     []string{"repos", repo, "git", "ref", "heads", branch},
		want:      http.StatusOK,
		source:    repo,
		operation: "get ref",
	}, &out)
	if err != nil {
		return "", err
	}
	return out.Object.SHA, nil
}

func (g *GitHubClient) CreateCommit(ctx context.Context, repo, message, tree string, parents []string) (string, error) {
	body := struct {
		Message string   `json:"message"`
		Tree    string   `json:"tree"`
		Parents []string `json:"parents"`
	}{Message: message, Tree: tree, Parents: parents}

	var out struct {
		SHA string `json:"sha"`
	}
	err := g.do(ctx, request{
		method:    http.MethodPost,
		elems:     []string{"repos", repo, "git", "commits"},
		body:      body,
		want:      http.StatusCreated,
		source:    repo,
		operation: "create commit",
	}, &out)
	if err != nil {
		return "", err
	}
	return out.SHA, nil
}

// UpdateRef fast-forwards a branch to sha. Non fast-forward updates are
// rejected by the API.
func (g *GitHubClient) UpdateRef(ctx context.Context, repo, branch, sha string) error {
	body := struct {
		SHA   string `json:"sha"`
		Force bool   `json:"force"`
	}{SHA: sha}

	return g.do(ctx, request{
		method:    http.MethodPatch,
		elems:     []string{"repos", repo, "git", "refs", "heads", branch},
		body:      body,
		want:      http.StatusOK,
		source:    repo,
		operation: "update ref",
	}, nil)
}

func (g *GitHubClient) getContents(ctx context.Context, repo, path, ref string) (json.RawMessage, error) {
	var raw json.RawMessage
	q := url.Values{}
	if ref != "" {
		q.Set("ref", ref)
	}
	err := g.do(ctx, request{
		method:    http.MethodGet,
		elems:     []string{"repos", repo, contentsLabel, path},
		query:     q,
		want:      http.StatusOK,
		source:    repo,
		operation: "get " + path,
	}, &raw)
	if err != nil {
		return nil, err
	}
	return raw, nil
}

type request struct {
	method    string
	elems     []string
	query     url.Values
	body      any
	want      int
	source    string
	operation string
}

func (g *GitHubClient) do(ctx context.Context, r request, out any) error {
	if g.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.Timeout)
		defer cancel()
	}

	base := g.BaseURL
	if base == "" {
		base = DefaultAPIURL
	}
	endpoint, err := url.JoinPath(base, r.elems...)
	if err != nil {
		return &SourceError{Source: r.source, Operation: r.operation, Err: fmt.Errorf("building URL: %w", err)}
	}
	if len(r.query) > 0 {
		endpoint += "?" + r.query.Encode()
	}

	var body io.Reader
	if r.body != nil {
		data, err := json.Marshal(r.body)
		if err != nil {
			return &SourceError{Source: r.source, Operation: r.operation, Err: fmt.Errorf("encoding request body: %w", err)}
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, endpoint, body)
	if err != nil {
		return &SourceError{Source: r.source, Operation: r.operation, Err: fmt.Errorf("creating request: %w", err)}
	}
	g.setHeaders(req)

	client := g.Client
	if client == nil {
		client = DefaultHTTPClient{}
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return &SourceError{Source: r.source, Operation: r.operation, Err: fmt.Errorf("%s %s: %w", r.method, endpoint, err), Hint: "check network connectivity and the API URL"}
	}
	defer resp.Body.Close()

	g.Logger.Debug().
		Str("method", r.method).
		Str("url", endpoint).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("hosting API request")

	if resp.StatusCode != r.want {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &SourceError{
			Source:    r.source,
			Operation: r.operation,
			Err:       fmt.Errorf("HTTP %d from %s %s: %s", resp.StatusCode, r.method, endpoint, bytes.TrimSpace(snippet)),
			Hint:      statusHint(resp.StatusCode),
		}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &SourceError{Source: r.source, Operation: r.operation, Err: fmt.Errorf("decoding response: %w", err)}
	}
	return nil
}

func (g *GitHubClient) setHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", apiVersion)
	if g.Token != "" {
		req.Header.Set("Authorization", "Bearer "+g.Token)
	}
	ua := g.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}
	req.Header.Set("User-Agent", ua)
	if req.Body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
}

func statusHint(status int) string {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return "check that the access token is valid and grants contents read/write on the repository"
	case http.StatusNotFound:
		return "check the repository name, path and ref"
	case http.StatusUnprocessableEntity, http.StatusConflict:
		return "the hosting API rejected the request; the base tree or ref may have moved"
	default:
		return ""
	}
}

func isJSONArray(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '['
}
