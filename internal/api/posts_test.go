package api

import (
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"
)

func createPost(t *testing.T, srv *Server, token string, body map[string]any) PostDetailsOut {
	t.Helper()
	rec := doJSON(t, srv, http.MethodPost, "/api/v1/posts", token, body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create post status = %d, want %d, body=%q", rec.Code, http.StatusCreated, rec.Body.String())
	}
	var post PostDetailsOut
	decodeInto(t, rec, &post)
	return post
}

func TestPostLifecycle(t *testing.T) {
	srv := openTestServer(t)
	alice := signup(t, srv, "alice")
	bob := signup(t, srv, "bob")

	post := createPost(t, srv, alice.AccessToken, map[string]any{
		"title":       "My First Post",
		"description": "<p>Hello</p><script>alert(1)</script>",
		"publish_now": true,
		"topics":      []string{"Go", "Testing"},
	})
	if post.Slug != "my-first-post" {
		t.Errorf("slug = %q, want my-first-post", post.Slug)
	}
	if strings.Contains(post.Description, "script") {
		t.Errorf("description not sanitized: %q", post.Description)
	}
	if !strings.Contains(post.Description, "<p>Hello</p>") {
		t.Errorf("description lost safe markup: %q", post.Description)
	}
	if len(post.Topics) != 2 {
		t.Fatalf("topics = %d, want 2", len(post.Topics))
	}

	// Published posts are readable anonymously.
	rec := doJSON(t, srv, http.MethodGet, "/api/v1/posts/"+post.Slug, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("anonymous GET status = %d, want %d, body=%q", rec.Code, http.StatusOK, rec.Body.String())
	}
	var details PostDetailsOut
	decodeInto(t, rec, &details)
	if details.Author == nil || details.Author.Username != "alice" {
		t.Errorf("author = %+v, want alice", details.Author)
	}

	rec = doJSON(t, srv, http.MethodGet, "/api/v1/posts", "", nil)
	var list struct {
		Count   int64         `json:"count"`
		Results []PostListOut `json:"results"`
	}
	decodeInto(t, rec, &list)
	if list.Count != 1 || len(list.Results) != 1 {
		t.Fatalf("list count = %d (%d results), want 1", list.Count, len(list.Results))
	}

	// Only the author may update or delete.
	rec = doJSON(t, srv, http.MethodPatch, "/api/v1/posts/"+post.Slug, bob.AccessToken, map[string]any{
		"title": "Hijacked",
	})
	if rec.Code != http.StatusForbidden {
		t.Errorf("stranger update status = %d, want %d", rec.Code, http.StatusForbidden)
	}

	rec = doJSON(t, srv, http.MethodPatch, "/api/v1/posts/"+post.Slug, alice.AccessToken, map[string]any{
		"title": "My First Post, Revised",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("owner update status = %d, want %d, body=%q", rec.Code, http.StatusOK, rec.Body.String())
	}

	rec = doJSON(t, srv, http.MethodGet, "/api/v1/posts/"+post.Slug, "", nil)
	decodeInto(t, rec, &details)
	if details.Title != "My First Post, Revised" {
		t.Errorf("title = %q, want updated title", details.Title)
	}
	if details.Slug != post.Slug {
		t.Errorf("slug changed on title update: %q", details.Slug)
	}

	rec = doJSON(t, srv, http.MethodDelete, "/api/v1/posts/"+post.Slug, bob.AccessToken, nil)
	if rec.Code != http.StatusForbidden {
		t.Errorf("stranger delete status = %d, want %d", rec.Code, http.StatusForbidden)
	}
	rec = doJSON(t, srv, http.MethodDelete, "/api/v1/posts/"+post.Slug, alice.AccessToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("owner delete status = %d, want %d, body=%q", rec.Code, http.StatusOK, rec.Body.String())
	}
	rec = doJSON(t, srv, http.MethodGet, "/api/v1/posts/"+post.Slug, "", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("deleted post GET status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestUnpublishedPostVisibility(t *testing.T) {
	srv := openTestServer(t)
	alice := signup(t, srv, "alice")
	bob := signup(t, srv, "bob")

	draft := createPost(t, srv, alice.AccessToken, map[string]any{
		"title":       "Unfinished Draft",
		"description": "work in progress",
	})

	// Existing but unpublished: forbidden, not hidden.
	rec := doJSON(t, srv, http.MethodGet, "/api/v1/posts/"+draft.Slug, "", nil)
	if rec.Code != http.StatusForbidden {
		t.Errorf("anonymous draft GET status = %d, want %d", rec.Code, http.StatusForbidden)
	}
	rec = doJSON(t, srv, http.MethodGet, "/api/v1/posts/"+draft.Slug, bob.AccessToken, nil)
	if rec.Code != http.StatusForbidden {
		t.Errorf("stranger draft GET status = %d, want %d", rec.Code, http.StatusForbidden)
	}
	rec = doJSON(t, srv, http.MethodGet, "/api/v1/posts/"+draft.Slug, alice.AccessToken, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("author draft GET status = %d, want %d, body=%q", rec.Code, http.StatusOK, rec.Body.String())
	}

	// A slug that never existed is a plain 404.
	rec = doJSON(t, srv, http.MethodGet, "/api/v1/posts/no-such-post", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing post GET status = %d, want %d", rec.Code, http.StatusNotFound)
	}

	// Drafts never show up in the listing, not even for the author.
	rec = doJSON(t, srv, http.MethodGet, "/api/v1/posts", alice.AccessToken, nil)
	var list struct {
		Count int64 `json:"count"`
	}
	decodeInto(t, rec, &list)
	if list.Count != 0 {
		t.Errorf("list count = %d, want 0", list.Count)
	}
}

func TestPostRejectsPastPublishDate(t *testing.T) {
	srv := openTestServer(t)
	alice := signup(t, srv, "alice")

	past := time.Now().UTC().Add(-time.Hour)
	rec := doJSON(t, srv, http.MethodPost, "/api/v1/posts", alice.AccessToken, map[string]any{
		"title":      "Backdated",
		"publish_at": past.Format(time.RFC3339),
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("past publish_at status = %d, want %d, body=%q", rec.Code, http.StatusBadRequest, rec.Body.String())
	}
	var resp ErrorResponse
	decodeInto(t, rec, &resp)
	if resp.Error.Field != "publish_at" {
		t.Errorf("error field = %q, want publish_at", resp.Error.Field)
	}
}

func TestDuplicateTitleGetsSuffixedSlug(t *testing.T) {
	srv := openTestServer(t)
	alice := signup(t, srv, "alice")

	first := createPost(t, srv, alice.AccessToken, map[string]any{
		"title":       "Same Title",
		"publish_now": true,
	})
	second := createPost(t, srv, alice.AccessToken, map[string]any{
		"title":       "Same Title",
		"publish_now": true,
	})

	if first.Slug != "same-title" {
		t.Errorf("first slug = %q, want same-title", first.Slug)
	}
	if second.Slug == first.Slug {
		t.Fatalf("second slug = %q, want distinct", second.Slug)
	}
	if !strings.HasPrefix(second.Slug, "same-title-") {
		t.Errorf("second slug = %q, want same-title- prefix", second.Slug)
	}
}

func TestShortDescriptionDerivedFromDescription(t *testing.T) {
	srv := openTestServer(t)
	alice := signup(t, srv, "alice")

	long := strings.Repeat("a", 300)
	post := createPost(t, srv, alice.AccessToken, map[string]any{
		"title":       "Long One",
		"description": long,
		"publish_now": true,
	})
	if len(post.ShortDescription) != shortDescriptionLen {
		t.Errorf("short_description length = %d, want %d", len(post.ShortDescription), shortDescriptionLen)
	}

	explicit := createPost(t, srv, alice.AccessToken, map[string]any{
		"title":             "Explicit One",
		"description":       long,
		"short_description": "my own summary",
		"publish_now":       true,
	})
	if explicit.ShortDescription != "my own summary" {
		t.Errorf("short_description = %q, want explicit value kept", explicit.ShortDescription)
	}
}

func TestTopics(t *testing.T) {
	srv := openTestServer(t)
	alice := signup(t, srv, "alice")

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/topics", alice.AccessToken, map[string]string{
		"name": "Distributed Systems",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create topic status = %d, want %d, body=%q", rec.Code, http.StatusCreated, rec.Body.String())
	}

	// Creating the same topic again returns the existing one.
	rec = doJSON(t, srv, http.MethodPost, "/api/v1/topics", alice.AccessToken, map[string]string{
		"name": "Distributed Systems",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("recreate topic status = %d, want %d, body=%q", rec.Code, http.StatusCreated, rec.Body.String())
	}

	rec = doJSON(t, srv, http.MethodGet, "/api/v1/topics?q=distributed", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list topics status = %d, want %d", rec.Code, http.StatusOK)
	}
	var list struct {
		Count int64 `json:"count"`
	}
	decodeInto(t, rec, &list)
	if list.Count != 1 {
		t.Errorf("topic count = %d, want 1", list.Count)
	}
}

func TestCommentsAndReplies(t *testing.T) {
	srv := openTestServer(t)
	alice := signup(t, srv, "alice")
	bob := signup(t, srv, "bob")

	post := createPost(t, srv, alice.AccessToken, map[string]any{
		"title":       "Commented Post",
		"publish_now": true,
	})
	postID := post.ID.Hex()
	commentsPath := fmt.Sprintf("/api/v1/posts/%s/comments", postID)

	rec := doJSON(t, srv, http.MethodPost, commentsPath, bob.AccessToken, map[string]string{
		"description": "Nice post!",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create comment status = %d, want %d, body=%q", rec.Code, http.StatusCreated, rec.Body.String())
	}
	var comment CommentOut
	decodeInto(t, rec, &comment)
	if comment.User == nil || comment.User.Username != "bob" {
		t.Errorf("comment user = %+v, want bob", comment.User)
	}

	rec = doJSON(t, srv, http.MethodGet, "/api/v1/posts/"+post.Slug, "", nil)
	var details PostDetailsOut
	decodeInto(t, rec, &details)
	if details.TotalComments != 1 {
		t.Errorf("total_comments = %d, want 1", details.TotalComments)
	}

	commentPath := fmt.Sprintf("%s/%s", commentsPath, comment.ID.Hex())

	// Only the comment author may edit it; the post author gets no special
	// rights here.
	rec = doJSON(t, srv, http.MethodPut, commentPath, alice.AccessToken, map[string]string{
		"description": "edited by someone else",
	})
	if rec.Code != http.StatusForbidden {
		t.Errorf("stranger comment update status = %d, want %d", rec.Code, http.StatusForbidden)
	}
	rec = doJSON(t, srv, http.MethodPut, commentPath, bob.AccessToken, map[string]string{
		"description": "Nice post! (edited)",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("owner comment update status = %d, want %d, body=%q", rec.Code, http.StatusOK, rec.Body.String())
	}

	repliesPath := commentPath + "/replies"
	rec = doJSON(t, srv, http.MethodPost, repliesPath, alice.AccessToken, map[string]string{
		"description": "Thanks!",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create reply status = %d, want %d, body=%q", rec.Code, http.StatusCreated, rec.Body.String())
	}
	var reply ReplyOut
	decodeInto(t, rec, &reply)

	replyPath := fmt.Sprintf("%s/%s", repliesPath, reply.ID.Hex())
	rec = doJSON(t, srv, http.MethodPut, replyPath, bob.AccessToken, map[string]string{
		"description": "not my reply",
	})
	if rec.Code != http.StatusForbidden {
		t.Errorf("stranger reply update status = %d, want %d", rec.Code, http.StatusForbidden)
	}
	rec = doJSON(t, srv, http.MethodPut, replyPath, alice.AccessToken, map[string]string{
		"description": "Thanks a lot!",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("owner reply update status = %d, want %d, body=%q", rec.Code, http.StatusOK, rec.Body.String())
	}

	rec = doJSON(t, srv, http.MethodGet, commentsPath, "", nil)
	var list struct {
		Count   int64        `json:"count"`
		Results []CommentOut `json:"results"`
	}
	decodeInto(t, rec, &list)
	if list.Count != 1 || len(list.Results) != 1 {
		t.Fatalf("comment list count = %d (%d results), want 1", list.Count, len(list.Results))
	}
	if got := list.Results[0].Description; got != "Nice post! (edited)" {
		t.Errorf("comment description = %q, want edited text", got)
	}
	if len(list.Results[0].Replies) != 1 {
		t.Fatalf("replies = %d, want 1", len(list.Results[0].Replies))
	}
	if got := list.Results[0].Replies[0].Description; got != "Thanks a lot!" {
		t.Errorf("reply description = %q, want updated text", got)
	}

	rec = doJSON(t, srv, http.MethodDelete, replyPath, bob.AccessToken, nil)
	if rec.Code != http.StatusForbidden {
		t.Errorf("stranger reply delete status = %d, want %d", rec.Code, http.StatusForbidden)
	}
	rec = doJSON(t, srv, http.MethodDelete, replyPath, alice.AccessToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("owner reply delete status = %d, want %d, body=%q", rec.Code, http.StatusOK, rec.Body.String())
	}

	rec = doJSON(t, srv, http.MethodDelete, commentPath, bob.AccessToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("comment delete status = %d, want %d, body=%q", rec.Code, http.StatusOK, rec.Body.String())
	}

	rec = doJSON(t, srv, http.MethodGet, "/api/v1/posts/"+post.Slug, "", nil)
	decodeInto(t, rec, &details)
	if details.TotalComments != 0 {
		t.Errorf("total_comments after delete = %d, want 0", details.TotalComments)
	}
}

func TestReplyCap(t *testing.T) {
	srv := openTestServer(t)
	alice := signup(t, srv, "alice")

	post := createPost(t, srv, alice.AccessToken, map[string]any{
		"title":       "Busy Thread",
		"publish_now": true,
	})
	commentsPath := fmt.Sprintf("/api/v1/posts/%s/comments", post.ID.Hex())

	rec := doJSON(t, srv, http.MethodPost, commentsPath, alice.AccessToken, map[string]string{
		"description": "root",
	})
	var comment CommentOut
	decodeInto(t, rec, &comment)
	repliesPath := fmt.Sprintf("%s/%s/replies", commentsPath, comment.ID.Hex())

	// The test server caps replies at 3.
	for i := 0; i < 3; i++ {
		rec = doJSON(t, srv, http.MethodPost, repliesPath, alice.AccessToken, map[string]string{
			"description": fmt.Sprintf("reply %d", i),
		})
		if rec.Code != http.StatusCreated {
			t.Fatalf("reply %d status = %d, want %d, body=%q", i, rec.Code, http.StatusCreated, rec.Body.String())
		}
	}

	rec = doJSON(t, srv, http.MethodPost, repliesPath, alice.AccessToken, map[string]string{
		"description": "one too many",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("over-cap reply status = %d, want %d, body=%q", rec.Code, http.StatusBadRequest, rec.Body.String())
	}
	if code := errorCode(t, rec); code != ErrCodeValidation {
		t.Errorf("over-cap reply code = %q, want %q", code, ErrCodeValidation)
	}
}

func TestReactions(t *testing.T) {
	srv := openTestServer(t)
	alice := signup(t, srv, "alice")
	bob := signup(t, srv, "bob")
	carol := signup(t, srv, "carol")

	post := createPost(t, srv, alice.AccessToken, map[string]any{
		"title":       "Reacted Post",
		"publish_now": true,
	})
	reactionsPath := fmt.Sprintf("/api/v1/posts/%s/reactions", post.ID.Hex())

	rec := doJSON(t, srv, http.MethodPost, reactionsPath, alice.AccessToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("first reaction status = %d, want %d, body=%q", rec.Code, http.StatusOK, rec.Body.String())
	}
	var resp map[string]string
	decodeInto(t, rec, &resp)
	if resp["message"] != "Reaction added" {
		t.Errorf("message = %q, want Reaction added", resp["message"])
	}

	// Reacting twice is idempotent, not an error.
	rec = doJSON(t, srv, http.MethodPost, reactionsPath, alice.AccessToken, nil)
	decodeInto(t, rec, &resp)
	if resp["message"] != "Already reacted" {
		t.Errorf("message = %q, want Already reacted", resp["message"])
	}

	rec = doJSON(t, srv, http.MethodGet, "/api/v1/posts/"+post.Slug, "", nil)
	var details PostDetailsOut
	decodeInto(t, rec, &details)
	if details.TotalReactions != 1 {
		t.Errorf("total_reactions = %d, want 1", details.TotalReactions)
	}

	// The test server caps reactions at 2 distinct users.
	rec = doJSON(t, srv, http.MethodPost, reactionsPath, bob.AccessToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("second user reaction status = %d, want %d, body=%q", rec.Code, http.StatusOK, rec.Body.String())
	}
	rec = doJSON(t, srv, http.MethodPost, reactionsPath, carol.AccessToken, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("over-cap reaction status = %d, want %d, body=%q", rec.Code, http.StatusBadRequest, rec.Body.String())
	}
	if code := errorCode(t, rec); code != ErrCodeValidation {
		t.Errorf("over-cap reaction code = %q, want %q", code, ErrCodeValidation)
	}

	rec = doJSON(t, srv, http.MethodDelete, reactionsPath, alice.AccessToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("remove reaction status = %d, want %d, body=%q", rec.Code, http.StatusOK, rec.Body.String())
	}

	rec = doJSON(t, srv, http.MethodGet, "/api/v1/posts/"+post.Slug, "", nil)
	decodeInto(t, rec, &details)
	if details.TotalReactions != 1 {
		t.Errorf("total_reactions after remove = %d, want 1", details.TotalReactions)
	}

	// Freed capacity is usable again.
	rec = doJSON(t, srv, http.MethodPost, reactionsPath, carol.AccessToken, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("reaction after free slot status = %d, want %d, body=%q", rec.Code, http.StatusOK, rec.Body.String())
	}
}
