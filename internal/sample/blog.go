package sample

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/prevalence/internal/repository"
)

// Blog command names.
const (
	AddPost    = "add-post"
	RemovePost = "remove-post"
)

// ErrInvalidPost is returned by add-post for a post without an ID.
var ErrInvalidPost = errors.New("post requires an id")

// Post is a blog entry.
type Post struct {
	ID      string `json:"id" yaml:"id"`
	Subject string `json:"subject" yaml:"subject"`
	Body    string `json:"body,omitempty" yaml:"body,omitempty"`
}

// Blog is the model: posts by ID.
type Blog struct {
	Posts map[string]Post `json:"posts"`
}

// NewBlog returns an empty blog.
func NewBlog() *Blog {
	return &Blog{Posts: make(map[string]Post)}
}

// RegisterBlog installs the blog commands on r.
func RegisterBlog(r *repository.Repository[*Blog]) *repository.Repository[*Blog] {
	return r.
		Register(AddPost, repository.Typed(addPost)).
		Register(RemovePost, repository.Typed(removePost))
}

func addPost(_ context.Context, b *Blog, p Post, _ repository.Invocation[*Blog]) (any, error) {
	if strings.TrimSpace(p.ID) == "" {
		return nil, ErrInvalidPost
	}
	b.Posts[p.ID] = p
	return p, nil
}

// removePost returns whether the post existed.
func removePost(_ context.Context, b *Blog, id string, _ repository.Invocation[*Blog]) (any, error) {
	if _, ok := b.Posts[id]; !ok {
		return false, nil
	}
	delete(b.Posts, id)
	return true, nil
}

// ListPosts returns every post ordered by ID.
func ListPosts(_ context.Context, b *Blog) ([]Post, error) {
	posts := make([]Post, 0, len(b.Posts))
	for _, p := range b.Posts {
		posts = append(posts, p)
	}
	slices.SortFunc(posts, func(a, b Post) int {
		return strings.Compare(a.ID, b.ID)
	})
	return posts, nil
}

// GetPost returns the post with the given ID.
func GetPost(id string) func(context.Context, *Blog) (Post, error) {
	return func(_ context.Context, b *Blog) (Post, error) {
		p, ok := b.Posts[id]
		if !ok {
			return Post{}, fmt.Errorf("post %q not found", id)
		}
		return p, nil
	}
}
