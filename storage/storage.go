package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	azruntime "github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
	"github.com/google/uuid"

	"taskboard-api/domain"
)

// Partition keys inside the users and boards tables. Azure key columns
// cannot contain '/', '\', '#' or '?', which emails never do.
const (
	userPartition      = "user"
	emailPartition     = "email"
	boardPartition     = "board"
	workspacePartition = "workspace"
	friendReqPrefix    = "freq:"
)

type tableClient interface {
	GetEntity(ctx context.Context, partitionKey, rowKey string, options *aztables.GetEntityOptions) (aztables.GetEntityResponse, error)
	AddEntity(ctx context.Context, entity []byte, options *aztables.AddEntityOptions) (aztables.AddEntityResponse, error)
	UpsertEntity(ctx context.Context, entity []byte, options *aztables.UpsertEntityOptions) (aztables.UpsertEntityResponse, error)
	UpdateEntity(ctx context.Context, entity []byte, options *aztables.UpdateEntityOptions) (aztables.UpdateEntityResponse, error)
	DeleteEntity(ctx context.Context, partitionKey, rowKey string, options *aztables.DeleteEntityOptions) (aztables.DeleteEntityResponse, error)
	NewListEntitiesPager(options *aztables.ListEntitiesOptions) *azruntime.Pager[aztables.ListEntitiesResponse]
}

type queueClient interface {
	EnqueueMessage(ctx context.Context, content string, o *azqueue.EnqueueMessageOptions) (azqueue.EnqueueMessagesResponse, error)
}

// Storage provides access to the underlying persistence mechanisms: the
// users, boards and notifications tables plus the downstream event queue.
type Storage struct {
	users            tableClient
	boards           tableClient
	notifications    tableClient
	eventQueue       queueClient
	queueConcurrency int
}

// New creates a Storage instance from the given connection string.
func New(connStr, usersTable, boardsTable, notificationsTable, eventsQueue string) (*Storage, error) {
	tablesClientOptions := aztables.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    3,
				TryTimeout:    time.Minute * 3,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 15,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, &tablesClientOptions)
	if err != nil {
		return nil, err
	}
	queueClientOptions := azqueue.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    5,
				TryTimeout:    time.Minute * 5,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 60,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	eq, err := azqueue.NewQueueClientFromConnectionString(connStr, eventsQueue, &queueClientOptions)
	if err != nil {
		return nil, err
	}
	return &Storage{
		users:            svc.NewClient(usersTable),
		boards:           svc.NewClient(boardsTable),
		notifications:    svc.NewClient(notificationsTable),
		eventQueue:       eq,
		queueConcurrency: queueConcurrencyForCPU(runtime.NumCPU()),
	}, nil
}

// dataEntity is the common table row shape: the document is serialized JSON
// in the Data property.
type dataEntity struct {
	aztables.Entity
	Data string `json:"Data"`
}

func encodeEntity(pk, rk string, doc any) ([]byte, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	return json.Marshal(map[string]any{
		"PartitionKey": pk,
		"RowKey":       rk,
		"Data":         string(data),
	})
}

func decodeEntity(value []byte, doc any) error {
	var ent dataEntity
	if err := json.Unmarshal(value, &ent); err != nil {
		return err
	}
	return json.Unmarshal([]byte(ent.Data), doc)
}

func escapeFilterValue(v string) string {
	return strings.ReplaceAll(v, "'", "''")
}

// emailIndex maps an email row back to the owning user ID.
type emailIndex struct {
	UserID string `json:"userId"`
}

// EnsureUser upserts the caller's profile document and lazily provisions the
// default workspace on first access. It also maintains the email index row
// used to resolve share grantees and friends.
func (s *Storage) EnsureUser(ctx context.Context, identity domain.Identity) (domain.User, error) {
	var user domain.User
	existing := true
	resp, err := s.users.GetEntity(ctx, userPartition, identity.UserID, nil)
	switch {
	case err == nil:
		if derr := decodeEntity(resp.Value, &user); derr != nil {
			return domain.User{}, derr
		}
	case isStatus(err, 404):
		existing = false
		user = domain.User{
			ID:        identity.UserID,
			Name:      identity.Name,
			Email:     identity.Email,
			CreatedAt: time.Now().UTC(),
		}
	default:
		return domain.User{}, err
	}

	dirty := !existing
	if identity.Name != "" && identity.Name != user.Name {
		user.Name = identity.Name
		dirty = true
	}
	if identity.Email != "" && identity.Email != user.Email {
		user.Email = identity.Email
		dirty = true
	}

	if user.DefaultWorkspace == "" {
		ws, err := s.createWorkspace(ctx, &user)
		if err != nil {
			return domain.User{}, err
		}
		user.DefaultWorkspace = ws.ID
		dirty = true
	}

	if dirty {
		if err := s.putUser(ctx, user); err != nil {
			return domain.User{}, err
		}
		if user.Email != "" {
			payload, err := encodeEntity(emailPartition, user.Email, emailIndex{UserID: user.ID})
			if err != nil {
				return domain.User{}, err
			}
			if _, err := s.users.UpsertEntity(ctx, payload, nil); err != nil {
				return domain.User{}, err
			}
		}
	}
	return user, nil
}

func (s *Storage) createWorkspace(ctx context.Context, user *domain.User) (domain.Workspace, error) {
	name := "Workspace"
	if user.Name != "" {
		name = fmt.Sprintf("%s's Workspace", user.Name)
	}
	ws := domain.Workspace{
		ID:        uuid.NewString(),
		Name:      name,
		Owner:     user.ID,
		Boards:    []string{},
		CreatedAt: time.Now().UTC(),
	}
	payload, err := encodeEntity(workspacePartition, ws.ID, ws)
	if err != nil {
		return domain.Workspace{}, err
	}
	if _, err := s.boards.AddEntity(ctx, payload, nil); err != nil {
		return domain.Workspace{}, err
	}
	return ws, nil
}

func (s *Storage) putUser(ctx context.Context, user domain.User) error {
	payload, err := encodeEntity(userPartition, user.ID, user)
	if err != nil {
		return err
	}
	_, err = s.users.UpsertEntity(ctx, payload, nil)
	return err
}

func (s *Storage) getUser(ctx context.Context, userID string) (domain.User, azcore.ETag, error) {
	resp, err := s.users.GetEntity(ctx, userPartition, userID, nil)
	if err != nil {
		if isStatus(err, 404) {
			return domain.User{}, "", NotFoundError{Message: msgUserNotFound}
		}
		return domain.User{}, "", err
	}
	var user domain.User
	if err := decodeEntity(resp.Value, &user); err != nil {
		return domain.User{}, "", err
	}
	return user, resp.ETag, nil
}

func (s *Storage) updateUser(ctx context.Context, user domain.User, etag azcore.ETag) error {
	payload, err := encodeEntity(userPartition, user.ID, user)
	if err != nil {
		return err
	}
	_, err = s.users.UpdateEntity(ctx, payload, &aztables.UpdateEntityOptions{
		IfMatch:    &etag,
		UpdateMode: aztables.UpdateModeReplace,
	})
	return err
}

// FetchUserByEmail resolves a user through the email index.
func (s *Storage) FetchUserByEmail(ctx context.Context, email string) (domain.User, error) {
	resp, err := s.users.GetEntity(ctx, emailPartition, email, nil)
	if err != nil {
		if isStatus(err, 404) {
			return domain.User{}, NotFoundError{Message: msgUserNotFound}
		}
		return domain.User{}, err
	}
	var idx emailIndex
	if err := decodeEntity(resp.Value, &idx); err != nil {
		return domain.User{}, err
	}
	user, _, err := s.getUser(ctx, idx.UserID)
	return user, err
}

// FetchUser retrieves a user document by ID.
func (s *Storage) FetchUser(ctx context.Context, userID string) (domain.User, error) {
	user, _, err := s.getUser(ctx, userID)
	return user, err
}

// FetchWorkspace returns the user's default workspace together with the
// summaries of the boards it owns.
func (s *Storage) FetchWorkspace(ctx context.Context, userID string) (domain.Workspace, []domain.BoardSummary, error) {
	user, _, err := s.getUser(ctx, userID)
	if err != nil {
		return domain.Workspace{}, nil, err
	}
	if user.DefaultWorkspace == "" {
		return domain.Workspace{}, nil, NotFoundError{Message: msgUserNotFound}
	}
	resp, err := s.boards.GetEntity(ctx, workspacePartition, user.DefaultWorkspace, nil)
	if err != nil {
		if isStatus(err, 404) {
			return domain.Workspace{}, nil, NotFoundError{Message: msgUserNotFound}
		}
		return domain.Workspace{}, nil, err
	}
	var ws domain.Workspace
	if err := decodeEntity(resp.Value, &ws); err != nil {
		return domain.Workspace{}, nil, err
	}

	summaries := make([]domain.BoardSummary, 0, len(ws.Boards))
	for _, boardID := range ws.Boards {
		board, _, err := s.getBoard(ctx, boardID)
		if err != nil {
			if _, ok := err.(NotFoundError); ok {
				continue
			}
			return domain.Workspace{}, nil, err
		}
		summaries = append(summaries, board.Summary())
	}
	return ws, summaries, nil
}

const (
	defaultQueueConcurrency = 10
	queuePerCPU             = 10
	maxQueueConcurrency     = 64
)

func queueConcurrencyForCPU(cpu int) int {
	if cpu <= 0 {
		return defaultQueueConcurrency
	}
	n := cpu * queuePerCPU
	if n > maxQueueConcurrency {
		return maxQueueConcurrency
	}
	return n
}
