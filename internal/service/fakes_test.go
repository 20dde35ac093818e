package service

import (
	"context"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sakif/snippet-search/internal/apperror"
	"github.com/sakif/snippet-search/internal/model"
	"github.com/sakif/snippet-search/internal/reconcile"
	"github.com/sakif/snippet-search/internal/search"
)

// =========================================================================
// FAKE PRIMARY STORE
// =========================================================================
//
// fakeRepo implements repository.SnippetRepository and repository.UserRepository in memory.
// The *Err fields simulate an unavailable store for one operation.

type fakeRepo struct {
	mu       sync.Mutex
	snippets []model.Snippet // insertion order; ListByUser reverses it
	users    map[string]model.User

	insertErr error
	deleteErr error
	listErr   error
	// deleteErrAfter lets the first N DeleteOwned calls through before deleteErr applies.
	deleteErrAfter int
	deleteCalls    int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{users: make(map[string]model.User)}
}

func (r *fakeRepo) Insert(_ context.Context, s *model.Snippet) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.insertErr != nil {
		return r.insertErr
	}
	if _, ok := r.users[s.UserID]; !ok {
		return apperror.IntegrityViolation("inserting snippet", nil)
	}
	s.ID = uuid.NewString()
	s.CreatedAt = time.Now().UTC()
	r.snippets = append(r.snippets, *s)
	return nil
}

func (r *fakeRepo) DeleteOwned(_ context.Context, id, userID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleteCalls++
	if r.deleteErr != nil && r.deleteCalls > r.deleteErrAfter {
		return false, r.deleteErr
	}
	for i, s := range r.snippets {
		if s.ID == id && s.UserID == userID {
			r.snippets = append(r.snippets[:i], r.snippets[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeRepo) ListByUser(_ context.Context, userID string) ([]model.SnippetSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	out := []model.SnippetSummary{}
	for i := len(r.snippets) - 1; i >= 0; i-- {
		s := r.snippets[i]
		if s.UserID == userID {
			out = append(out, model.SnippetSummary{ID: s.ID, Title: s.Title, Language: s.Language, CreatedAt: s.CreatedAt})
		}
	}
	return out, nil
}

func (r *fakeRepo) Ping(context.Context) error { return nil }

func (r *fakeRepo) CreateUser(_ context.Context, u *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Email == u.Email {
			return apperror.IntegrityViolation("inserting user", nil)
		}
	}
	u.ID = uuid.NewString()
	u.CreatedAt = time.Now().UTC()
	r.users[u.ID] = *u
	return nil
}

func (r *fakeRepo) GetUserByID(_ context.Context, id string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	return &u, nil
}

// addUser registers a user directly and returns its id.
func (r *fakeRepo) addUser(email string) string {
	u := &model.User{Email: email}
	_ = r.CreateUser(context.Background(), u)
	return u.ID
}

func (r *fakeRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.snippets)
}

// =========================================================================
// FAKE SEARCH INDEX
// =========================================================================
//
// fakeIndex evaluates a search.Query the way the engine would, minus fuzziness: every term
// filter must match exactly, and the score is the sum of field boosts over query words that
// appear in the field.

type fakeIndex struct {
	mu    sync.Mutex
	docs  map[string]search.Document
	waits []bool

	indexErr  error
	deleteErr error
	searchErr error
	// landThenFail stores the document before returning indexErr, like a write that was
	// applied but timed out waiting for the refresh.
	landThenFail bool
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{docs: make(map[string]search.Document)}
}

func (f *fakeIndex) IndexDocument(_ context.Context, doc search.Document, wait bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.waits = append(f.waits, wait)
	if f.indexErr != nil && !f.landThenFail {
		return f.indexErr
	}
	f.docs[doc.SnippetID] = doc
	return f.indexErr
}

func (f *fakeIndex) DeleteDocument(_ context.Context, id string, wait bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.waits = append(f.waits, wait)
	if f.deleteErr != nil {
		return f.deleteErr
	}
	if _, ok := f.docs[id]; !ok {
		return apperror.DocumentNotFound(id)
	}
	delete(f.docs, id)
	return nil
}

func (f *fakeIndex) Search(_ context.Context, q search.Query) (*search.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.searchErr != nil {
		return nil, f.searchErr
	}

	words := strings.Fields(strings.ToLower(q.Text))
	hits := []search.Hit{}
	for _, doc := range f.docs {
		if !matchesFilters(doc, q.Filters) {
			continue
		}
		var score float64
		for _, field := range q.Fields {
			value := strings.ToLower(fieldValue(doc, field.Name))
			boost := field.Boost
			if boost == 0 {
				boost = 1
			}
			for _, w := range words {
				if strings.Contains(value, w) {
					score += boost
				}
			}
		}
		if score > 0 {
			hits = append(hits, search.Hit{Score: score, Document: doc})
		}
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].SnippetID < hits[j].SnippetID
	})

	total := int64(len(hits))
	start := min(q.From, len(hits))
	end := min(start+q.Size, len(hits))
	return &search.Result{TotalFound: total, Results: hits[start:end]}, nil
}

func (f *fakeIndex) Health(context.Context) (string, error) { return "green", nil }

func (f *fakeIndex) EnsureIndex(context.Context) (bool, error) { return false, nil }

func (f *fakeIndex) has(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.docs[id]
	return ok
}

func matchesFilters(doc search.Document, filters []search.Term) bool {
	for _, t := range filters {
		if fieldValue(doc, t.Field) != t.Value {
			return false
		}
	}
	return true
}

func fieldValue(doc search.Document, name string) string {
	switch name {
	case "snippet_id":
		return doc.SnippetID
	case "user_id":
		return doc.UserID
	case "title":
		return doc.Title
	case "code_content":
		return doc.CodeContent
	case "language":
		return doc.Language
	}
	return ""
}

// =========================================================================
// FAKE QUEUE
// =========================================================================

type fakeQueue struct {
	mu         sync.Mutex
	items      []reconcile.WorkItem
	enqueueErr error
}

func (q *fakeQueue) Enqueue(_ context.Context, item reconcile.WorkItem) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.enqueueErr != nil {
		return q.enqueueErr
	}
	q.items = append(q.items, item)
	return nil
}

// The service only enqueues; the reconciler side is tested in internal/reconcile.
func (q *fakeQueue) Claim(context.Context, int) ([]reconcile.WorkItem, error) { return nil, nil }
func (q *fakeQueue) Ack(context.Context, reconcile.WorkItem) error { return nil }
func (q *fakeQueue) Retry(context.Context, reconcile.WorkItem, error, time.Duration) error {
	return nil
}
func (q *fakeQueue) DeadLetter(context.Context, reconcile.WorkItem, error) error { return nil }
func (q *fakeQueue) Reclaim(context.Context) (int, error) { return 0, nil }
func (q *fakeQueue) Pending(context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int64(len(q.items)), nil
}

func (q *fakeQueue) snapshot() []reconcile.WorkItem {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]reconcile.WorkItem(nil), q.items...)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError + 4}))
}
