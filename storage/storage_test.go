package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	azruntime "github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"

	"taskboard-api/domain"
)

type fakeRow struct {
	data []byte
	etag azcore.ETag
}

// fakeTable is an in-memory stand-in for an aztables client, honoring the
// subset of semantics the storage layer relies on: add conflicts, ETag
// preconditions and ascending row-key listing order.
type fakeTable struct {
	mu      sync.Mutex
	rows    map[string]fakeRow
	etagSeq int

	// updateHook, when set, can fail a specific update to exercise
	// compensation paths.
	updateHook func(pk, rk string) error
}

func newFakeTable() *fakeTable {
	return &fakeTable{rows: make(map[string]fakeRow)}
}

func rowKey(pk, rk string) string { return pk + "\x00" + rk }

func entityKeys(entity []byte) (string, string, error) {
	var ent aztables.Entity
	if err := json.Unmarshal(entity, &ent); err != nil {
		return "", "", err
	}
	return ent.PartitionKey, ent.RowKey, nil
}

func statusError(code int) error {
	return &azcore.ResponseError{StatusCode: code}
}

func (f *fakeTable) nextETag() azcore.ETag {
	f.etagSeq++
	return azcore.ETag(fmt.Sprintf("W/\"%d\"", f.etagSeq))
}

func (f *fakeTable) GetEntity(ctx context.Context, partitionKey, rk string, options *aztables.GetEntityOptions) (aztables.GetEntityResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[rowKey(partitionKey, rk)]
	if !ok {
		return aztables.GetEntityResponse{}, statusError(404)
	}
	return aztables.GetEntityResponse{Value: row.data, ETag: row.etag}, nil
}

func (f *fakeTable) AddEntity(ctx context.Context, entity []byte, options *aztables.AddEntityOptions) (aztables.AddEntityResponse, error) {
	pk, rk, err := entityKeys(entity)
	if err != nil {
		return aztables.AddEntityResponse{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	key := rowKey(pk, rk)
	if _, exists := f.rows[key]; exists {
		return aztables.AddEntityResponse{}, statusError(409)
	}
	f.rows[key] = fakeRow{data: entity, etag: f.nextETag()}
	return aztables.AddEntityResponse{}, nil
}

func (f *fakeTable) UpsertEntity(ctx context.Context, entity []byte, options *aztables.UpsertEntityOptions) (aztables.UpsertEntityResponse, error) {
	pk, rk, err := entityKeys(entity)
	if err != nil {
		return aztables.UpsertEntityResponse{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[rowKey(pk, rk)] = fakeRow{data: entity, etag: f.nextETag()}
	return aztables.UpsertEntityResponse{}, nil
}

func (f *fakeTable) UpdateEntity(ctx context.Context, entity []byte, options *aztables.UpdateEntityOptions) (aztables.UpdateEntityResponse, error) {
	pk, rk, err := entityKeys(entity)
	if err != nil {
		return aztables.UpdateEntityResponse{}, err
	}
	if f.updateHook != nil {
		if err := f.updateHook(pk, rk); err != nil {
			return aztables.UpdateEntityResponse{}, err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	key := rowKey(pk, rk)
	row, ok := f.rows[key]
	if !ok {
		return aztables.UpdateEntityResponse{}, statusError(404)
	}
	if options != nil && options.IfMatch != nil && *options.IfMatch != row.etag {
		return aztables.UpdateEntityResponse{}, statusError(412)
	}
	f.rows[key] = fakeRow{data: entity, etag: f.nextETag()}
	return aztables.UpdateEntityResponse{}, nil
}

func (f *fakeTable) DeleteEntity(ctx context.Context, partitionKey, rk string, options *aztables.DeleteEntityOptions) (aztables.DeleteEntityResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := rowKey(partitionKey, rk)
	if _, ok := f.rows[key]; !ok {
		return aztables.DeleteEntityResponse{}, statusError(404)
	}
	delete(f.rows, key)
	return aztables.DeleteEntityResponse{}, nil
}

func (f *fakeTable) NewListEntitiesPager(options *aztables.ListEntitiesOptions) *azruntime.Pager[aztables.ListEntitiesResponse] {
	var pk string
	if options != nil && options.Filter != nil {
		filter := *options.Filter
		filter = strings.TrimPrefix(filter, "PartitionKey eq '")
		pk = strings.ReplaceAll(strings.TrimSuffix(filter, "'"), "''", "'")
	}
	return azruntime.NewPager(azruntime.PagingHandler[aztables.ListEntitiesResponse]{
		More: func(aztables.ListEntitiesResponse) bool { return false },
		Fetcher: func(ctx context.Context, _ *aztables.ListEntitiesResponse) (aztables.ListEntitiesResponse, error) {
			f.mu.Lock()
			defer f.mu.Unlock()
			keys := make([]string, 0)
			for k := range f.rows {
				if pk == "" || strings.HasPrefix(k, pk+"\x00") {
					keys = append(keys, k)
				}
			}
			sort.Strings(keys)
			entities := make([][]byte, 0, len(keys))
			for _, k := range keys {
				entities = append(entities, f.rows[k].data)
			}
			return aztables.ListEntitiesResponse{Entities: entities}, nil
		},
	})
}

type fakeQueue struct {
	mu       sync.Mutex
	messages []string
	failFrom int // fail sends once this many messages were accepted; 0 disables
}

func (f *fakeQueue) EnqueueMessage(ctx context.Context, content string, o *azqueue.EnqueueMessageOptions) (azqueue.EnqueueMessagesResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFrom > 0 && len(f.messages) >= f.failFrom {
		return azqueue.EnqueueMessagesResponse{}, statusError(503)
	}
	f.messages = append(f.messages, content)
	return azqueue.EnqueueMessagesResponse{}, nil
}

func (f *fakeQueue) Messages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.messages))
	copy(out, f.messages)
	return out
}

type testStorage struct {
	*Storage
	users         *fakeTable
	boards        *fakeTable
	notifications *fakeTable
	queue         *fakeQueue
}

func newTestStorage() *testStorage {
	users := newFakeTable()
	boards := newFakeTable()
	notifications := newFakeTable()
	queue := &fakeQueue{}
	return &testStorage{
		Storage: &Storage{
			users:            users,
			boards:           boards,
			notifications:    notifications,
			eventQueue:       queue,
			queueConcurrency: 4,
		},
		users:         users,
		boards:        boards,
		notifications: notifications,
		queue:         queue,
	}
}

func mustEnsureUser(t *testing.T, s *testStorage, id, email, name string) domain.User {
	t.Helper()
	user, err := s.EnsureUser(context.Background(), domain.Identity{UserID: id, Email: email, Name: name})
	if err != nil {
		t.Fatalf("ensure user %s: %v", id, err)
	}
	return user
}

func TestEnsureUserProvisionsWorkspaceAndIndex(t *testing.T) {
	s := newTestStorage()
	ctx := context.Background()

	user := mustEnsureUser(t, s, "u1", "ana@example.com", "Ana")
	if user.DefaultWorkspace == "" {
		t.Fatal("expected default workspace to be provisioned")
	}

	ws, boards, err := s.FetchWorkspace(ctx, "u1")
	if err != nil {
		t.Fatalf("fetch workspace: %v", err)
	}
	if ws.Name != "Ana's Workspace" {
		t.Fatalf("unexpected workspace name: %q", ws.Name)
	}
	if len(boards) != 0 {
		t.Fatalf("expected no boards, got %d", len(boards))
	}

	byEmail, err := s.FetchUserByEmail(ctx, "ana@example.com")
	if err != nil {
		t.Fatalf("fetch by email: %v", err)
	}
	if byEmail.ID != "u1" {
		t.Fatalf("email index resolved to %q", byEmail.ID)
	}
}

func TestEnsureUserIdempotent(t *testing.T) {
	s := newTestStorage()

	first := mustEnsureUser(t, s, "u1", "ana@example.com", "Ana")
	second := mustEnsureUser(t, s, "u1", "ana@example.com", "Ana")
	if first.DefaultWorkspace != second.DefaultWorkspace {
		t.Fatalf("workspace must be stable across calls: %q vs %q", first.DefaultWorkspace, second.DefaultWorkspace)
	}
}

func TestEnsureUserRefreshesClaims(t *testing.T) {
	s := newTestStorage()

	mustEnsureUser(t, s, "u1", "ana@example.com", "Ana")
	updated := mustEnsureUser(t, s, "u1", "ana@example.com", "Ana García")
	if updated.Name != "Ana García" {
		t.Fatalf("expected refreshed name, got %q", updated.Name)
	}
}

func TestFetchUserByEmailMissing(t *testing.T) {
	s := newTestStorage()

	_, err := s.FetchUserByEmail(context.Background(), "nadie@example.com")
	nf, ok := err.(NotFoundError)
	if !ok {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
	if nf.Message != msgUserNotFound {
		t.Fatalf("unexpected message: %q", nf.Message)
	}
}

func TestEscapeFilterValue(t *testing.T) {
	if got := escapeFilterValue("o'brien@example.com"); got != "o''brien@example.com" {
		t.Fatalf("unexpected escaped value: %q", got)
	}
}

func TestQueueConcurrencyForCPU(t *testing.T) {
	tests := []struct {
		name string
		cpu  int
		want int
	}{
		{name: "zero", cpu: 0, want: defaultQueueConcurrency},
		{name: "negative", cpu: -1, want: defaultQueueConcurrency},
		{name: "small", cpu: 2, want: 20},
		{name: "capped", cpu: 32, want: maxQueueConcurrency},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := queueConcurrencyForCPU(tt.cpu); got != tt.want {
				t.Fatalf("queueConcurrencyForCPU(%d) = %d, want %d", tt.cpu, got, tt.want)
			}
		})
	}
}
