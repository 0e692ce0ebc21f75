// Package demo is a small blog application used by the splitrender CLI to
// exercise the render pipeline. Post pages load their comments, the
// comments' reactions and a related-posts panel as code splits.
package demo

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"github.com/vango-dev/splitrender"
	"github.com/vango-dev/splitrender/pkg/render"
	"github.com/vango-dev/splitrender/pkg/routepath"
	"github.com/vango-dev/splitrender/pkg/splits"
	"github.com/vango-dev/splitrender/pkg/ssr"
	. "github.com/vango-dev/splitrender/pkg/vdom"
)

// Split ids, which double as chunk names.
const (
	SplitComments  = "comments"
	SplitReactions = "reactions"
	SplitRelated   = "related"
)

// UserCookie names the cookie BeforeRender reads the visitor's name from.
const UserCookie = "user"

// Post is one blog post. Body is author-supplied HTML.
type Post struct {
	ID       string
	Title    string
	Body     string
	Comments []Comment
	Likes    int
}

// Comment is one reader comment.
type Comment struct {
	Author string
	Text   string
}

// Options configures the demo application.
type Options struct {
	// Latency delays every split load, simulating a network fetch.
	Latency time.Duration

	// MarkSplits makes the renderer emit split boundary comments.
	MarkSplits bool

	// Posts replaces the sample posts.
	Posts []Post
}

// App is the demo application.
type App struct {
	renderer *render.Renderer
	cache    *splits.Cache[ssr.Renderable]
	posts    map[string]Post
	latency  time.Duration
}

// New creates the demo application and defines its splits. Post bodies
// are sanitized once here with the user-generated-content policy.
func New(opts Options) *App {
	posts := opts.Posts
	if posts == nil {
		posts = samplePosts()
	}
	policy := bluemonday.UGCPolicy()

	a := &App{
		renderer: render.NewRenderer(render.RendererConfig{MarkSplits: opts.MarkSplits}),
		cache:    splits.New[ssr.Renderable](),
		posts:    make(map[string]Post, len(posts)),
		latency:  opts.Latency,
	}
	for _, p := range posts {
		p.Body = policy.Sanitize(p.Body)
		a.posts[p.ID] = p
	}
	a.cache.MustDefine(SplitComments, SplitComments, a.loader(a.renderer.Tree(a.comments)))
	a.cache.MustDefine(SplitReactions, SplitReactions, a.loader(a.renderer.Tree(a.reactions)))
	a.cache.MustDefine(SplitRelated, SplitRelated, a.loader(a.renderer.Tree(a.related)))
	return a
}

// Cache returns the module cache holding the demo's splits.
func (a *App) Cache() *splits.Cache[ssr.Renderable] { return a.cache }

// Application returns the root of the render tree.
func (a *App) Application() ssr.Renderable { return a.renderer.Tree(a.route) }

// Store is the initial client state.
type Store struct {
	User string `json:"user,omitempty"`
}

// Snapshot implements ssr.StateSource.
func (s *Store) Snapshot() (any, error) { return *s, nil }

// BeforeRender reads the visitor from the user cookie.
func (a *App) BeforeRender(r *http.Request, config splitrender.SanitizedConfig) (splitrender.Injection, error) {
	store := &Store{}
	if c, err := r.Cookie(UserCookie); err == nil {
		store.User = c.Value
	}
	return splitrender.Injection{Config: config, Store: store}, nil
}

func (a *App) loader(module ssr.Renderable) splits.Loader[ssr.Renderable] {
	return func(ctx context.Context) (ssr.Renderable, error) {
		if a.latency > 0 {
			t := time.NewTimer(a.latency)
			defer t.Stop()
			select {
			case <-t.C:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		return module, nil
	}
}

func (a *App) route(rc *ssr.RenderContext) *VNode {
	path, changed, err := routepath.Canonical(rc.Request().URL.Path)
	if err != nil {
		rc.SetStatus(http.StatusBadRequest)
		return a.layout(rc, "Bad request", P(Text("That address is not valid.")))
	}
	if changed {
		rc.Redirect(path, http.StatusMovedPermanently)
		return nil
	}

	if path == "/" {
		return a.home(rc)
	}
	if path == "/archive" {
		rc.Redirect("/", http.StatusPermanentRedirect)
		return nil
	}
	if params, ok := routepath.Match("/posts/:id", path); ok {
		if post, ok := a.posts[params.Get("id")]; ok {
			return a.post(rc, post)
		}
	}
	rc.SetStatus(http.StatusNotFound)
	return a.layout(rc, "Not found", P(Text("No such page.")))
}

func (a *App) layout(rc *ssr.RenderContext, title string, content ...any) *VNode {
	rc.SetTitle(title + " · Splitrender Blog")
	rc.AddMeta(ssr.MetaTag{Name: "description", Content: title})

	greeting := "Welcome"
	if s, ok := rc.Store().(*Store); ok && s.User != "" {
		greeting = "Welcome back, " + s.User
	}
	return Div(Class("app"),
		Header(Nav(A(Href("/"), Text("Splitrender Blog"))), Span(Class("greeting"), Text(greeting))),
		Main(content...),
		Footer(Small(Text("Rendered on the server"))),
	)
}

func (a *App) home(rc *ssr.RenderContext) *VNode {
	return a.layout(rc, "Posts",
		H1(Text("Posts")),
		Ul(Class("posts"), Range(a.sortedPosts(), func(p Post, _ int) *VNode {
			return Li(A(Href("/posts/"+p.ID), Text(p.Title)))
		})),
	)
}

func (a *App) post(rc *ssr.RenderContext, p Post) *VNode {
	return a.layout(rc, p.Title,
		Article(
			H1(Text(p.Title)),
			Div(Class("body"), Raw(p.Body)),
			Split(SplitComments, P(Class("loading"), AriaBusy(true), Text("Loading comments…"))),
		),
		Aside(Split(SplitRelated, P(Class("loading"), Text("Loading related posts…")))),
	)
}

// currentPost resolves the post of the page being rendered.
func (a *App) currentPost(rc *ssr.RenderContext) (Post, bool) {
	params, ok := routepath.Match("/posts/:id", rc.Request().URL.Path)
	if !ok {
		return Post{}, false
	}
	p, ok := a.posts[params.Get("id")]
	return p, ok
}

func (a *App) comments(rc *ssr.RenderContext) *VNode {
	p, _ := a.currentPost(rc)
	return Section(Class("comments"),
		H2(Textf("%d comments", len(p.Comments))),
		Ul(Range(p.Comments, func(c Comment, _ int) *VNode {
			return Li(Strong(Text(c.Author)), Text(": "+c.Text))
		})),
		Split(SplitReactions, Span(Class("loading"), Text("…"))),
	)
}

func (a *App) reactions(rc *ssr.RenderContext) *VNode {
	p, _ := a.currentPost(rc)
	return Div(Class("reactions"), Textf("♥ %d", p.Likes))
}

func (a *App) related(rc *ssr.RenderContext) *VNode {
	current, _ := a.currentPost(rc)
	var others []Post
	for _, p := range a.sortedPosts() {
		if p.ID != current.ID {
			others = append(others, p)
		}
	}
	return Nav(Class("related"),
		H3(Text("Related")),
		Ul(Range(others, func(p Post, _ int) *VNode {
			return Li(A(Href("/posts/"+p.ID), Text(p.Title)))
		})),
	)
}

func (a *App) sortedPosts() []Post {
	out := make([]Post, 0, len(a.posts))
	for _, p := range a.posts {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func samplePosts() []Post {
	return []Post{
		{
			ID:    "1",
			Title: "Rendering in rounds",
			Body:  "<p>Each round renders the <em>whole</em> tree and collects the splits it meets.</p>",
			Comments: []Comment{
				{Author: "ada", Text: "How many rounds does it take?"},
				{Author: "lin", Text: "As many as the nesting is deep."},
			},
			Likes: 12,
		},
		{
			ID:    "2",
			Title: "Sealing the initial state",
			Body:  "<p>Configuration and state travel to the client in an encrypted envelope.</p>",
			Likes: 3,
		},
	}
}
