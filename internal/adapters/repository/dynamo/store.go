// Package dynamo implements repository.Store on DynamoDB. Session updates
// are conditioned on the stored version and rating batches are a single
// TransactWriteItems call.
package dynamo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/elliotchance/pie/v2"

	"github.com/okian/courtside/internal/adapters/repository"
	"github.com/okian/courtside/internal/domain/model"
	"github.com/okian/courtside/pkg/metrics"
)

const backend = "dynamodb"

// maxTransactItems is DynamoDB's TransactWriteItems limit.
const maxTransactItems = 100

// Expressions used against the tables.
const (
	condNotExists   = "attribute_not_exists(id)"
	condVersion     = "version = :expected"
	condPending     = "version = :expected AND rating_pending = :true"
	condElo         = "elo = :old"
	updUpsertUser   = "SET display_name = :name, skill_level = :skill, updated_at = :now, elo = if_not_exists(elo, :elo), created_at = if_not_exists(created_at, :now)"
	updClearPending = "SET version = :next, rating_pending = :false, doc = :doc REMOVE pending"
	updElo          = "SET elo = :new, updated_at = :at"
	keyHistory      = "user_id = :user"
	keyPending      = "pending = :pending"
)

// pendingIndex is a sparse index over sessions awaiting a rating batch. Only
// items carrying the pending attribute appear in it.
const (
	pendingIndex = "pending_index"
	pendingMark  = "1"
)

// API is the subset of the DynamoDB client the store calls.
type API interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	Scan(ctx context.Context, in *dynamodb.ScanInput, opts ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, opts ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, opts ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
	CreateTable(ctx context.Context, in *dynamodb.CreateTableInput, opts ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
}

type sessionItem struct {
	ID            string `dynamodbav:"id"`
	Version       uint64 `dynamodbav:"version"`
	Type          string `dynamodbav:"type"`
	CreatorID     string `dynamodbav:"creator_id"`
	StartsAt      string `dynamodbav:"starts_at"`
	RatingPending bool   `dynamodbav:"rating_pending"`
	Pending       string `dynamodbav:"pending,omitempty"`
	Doc           string `dynamodbav:"doc"`
}

type userItem struct {
	ID          string    `dynamodbav:"id"`
	DisplayName string    `dynamodbav:"display_name"`
	SkillLevel  float64   `dynamodbav:"skill_level"`
	Elo         int       `dynamodbav:"elo"`
	CreatedAt   time.Time `dynamodbav:"created_at"`
	UpdatedAt   time.Time `dynamodbav:"updated_at"`
}

type historyItem struct {
	UserID    string    `dynamodbav:"user_id"`
	ID        string    `dynamodbav:"id"`
	SessionID string    `dynamodbav:"session_id"`
	Old       int       `dynamodbav:"old_elo"`
	New       int       `dynamodbav:"new_elo"`
	At        time.Time `dynamodbav:"at"`
}

// Store is a DynamoDB-backed repository.Store.
type Store struct {
	api      API
	sessions string
	users    string
	history  string
	now      func() time.Time
	closed   atomic.Bool
}

// Option configures the store.
type Option func(*Store)

// WithTablePrefix prefixes every table name.
func WithTablePrefix(prefix string) Option {
	return func(s *Store) {
		s.sessions = prefix + "sessions"
		s.users = prefix + "users"
		s.history = prefix + "rating_history"
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New wraps an existing client.
func New(api API, opts ...Option) *Store {
	s := &Store{api: api, now: time.Now}
	WithTablePrefix("courtside_")(s)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Connect builds a client from the default AWS credential chain. A non-empty
// endpoint points the client at a local DynamoDB.
func Connect(ctx context.Context, region, endpoint string, opts ...Option) (*Store, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
	return New(client, opts...), nil
}

// CreateTables creates the tables if they do not exist.
func (s *Store) CreateTables(ctx context.Context) error {
	defs := []*dynamodb.CreateTableInput{
		{
			TableName: aws.String(s.sessions),
			AttributeDefinitions: []types.AttributeDefinition{
				{AttributeName: aws.String("id"), AttributeType: types.ScalarAttributeTypeS},
				{AttributeName: aws.String("pending"), AttributeType: types.ScalarAttributeTypeS},
			},
			KeySchema: []types.KeySchemaElement{{AttributeName: aws.String("id"), KeyType: types.KeyTypeHash}},
			GlobalSecondaryIndexes: []types.GlobalSecondaryIndex{{
				IndexName:  aws.String(pendingIndex),
				KeySchema:  []types.KeySchemaElement{{AttributeName: aws.String("pending"), KeyType: types.KeyTypeHash}},
				Projection: &types.Projection{ProjectionType: types.ProjectionTypeAll},
			}},
			BillingMode: types.BillingModePayPerRequest,
		},
		{
			TableName:            aws.String(s.users),
			AttributeDefinitions: []types.AttributeDefinition{{AttributeName: aws.String("id"), AttributeType: types.ScalarAttributeTypeS}},
			KeySchema:            []types.KeySchemaElement{{AttributeName: aws.String("id"), KeyType: types.KeyTypeHash}},
			BillingMode:          types.BillingModePayPerRequest,
		},
		{
			TableName: aws.String(s.history),
			AttributeDefinitions: []types.AttributeDefinition{
				{AttributeName: aws.String("user_id"), AttributeType: types.ScalarAttributeTypeS},
				{AttributeName: aws.String("id"), AttributeType: types.ScalarAttributeTypeS},
			},
			KeySchema: []types.KeySchemaElement{
				{AttributeName: aws.String("user_id"), KeyType: types.KeyTypeHash},
				{AttributeName: aws.String("id"), KeyType: types.KeyTypeRange},
			},
			BillingMode: types.BillingModePayPerRequest,
		},
	}
	for _, in := range defs {
		_, err := s.api.CreateTable(ctx, in)
		var inUse *types.ResourceInUseException
		if err != nil && !errors.As(err, &inUse) {
			return fmt.Errorf("create table %s: %w", aws.ToString(in.TableName), mapError(err))
		}
	}
	return nil
}

func (s *Store) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.closed.Load() {
		return repository.ErrClosed
	}
	return nil
}

func observe(call string, start time.Time, err *error) {
	metrics.RecordStoreLatency(backend, call, float64(time.Since(start).Microseconds())/1000)
	if *err != nil {
		switch {
		case errors.Is(*err, repository.ErrConflict):
			metrics.RecordStoreError(backend, "conflict")
		case errors.Is(*err, repository.ErrUnavailable):
			metrics.RecordStoreError(backend, "unavailable")
		}
	}
}

func idKey(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{"id": &types.AttributeValueMemberS{Value: id}}
}

func num(n int64) types.AttributeValue {
	return &types.AttributeValueMemberN{Value: strconv.FormatInt(n, 10)}
}

func encodeSession(sess model.Session) (map[string]types.AttributeValue, error) {
	doc, err := json.Marshal(sess)
	if err != nil {
		return nil, fmt.Errorf("encode session: %w", err)
	}
	it := sessionItem{
		ID:            sess.ID,
		Version:       sess.Version,
		Type:          string(sess.Type),
		CreatorID:     sess.CreatorID,
		StartsAt:      sess.StartsAt.UTC().Format(time.RFC3339Nano),
		RatingPending: sess.RatingPending,
		Doc:           string(doc),
	}
	if sess.RatingPending {
		it.Pending = pendingMark
	}
	return attributevalue.MarshalMap(it)
}

func decodeSession(item map[string]types.AttributeValue) (model.Session, error) {
	var it sessionItem
	if err := attributevalue.UnmarshalMap(item, &it); err != nil {
		return model.Session{}, fmt.Errorf("decode session item: %w", err)
	}
	var sess model.Session
	if err := json.Unmarshal([]byte(it.Doc), &sess); err != nil {
		return model.Session{}, fmt.Errorf("decode session %s: %w", it.ID, err)
	}
	return sess, nil
}

func (s *Store) CreateSession(ctx context.Context, sess model.Session) (err error) {
	defer observe("create_session", time.Now(), &err)
	if err = s.ready(ctx); err != nil {
		return err
	}
	item, err := encodeSession(sess)
	if err != nil {
		return err
	}
	_, err = s.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.sessions),
		Item:                item,
		ConditionExpression: aws.String(condNotExists),
	})
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return repository.ErrDuplicate
	}
	return mapError(err)
}

func (s *Store) getSession(ctx context.Context, id string) (model.Session, error) {
	out, err := s.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.sessions),
		Key:            idKey(id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return model.Session{}, mapError(err)
	}
	if len(out.Item) == 0 {
		return model.Session{}, repository.ErrNotFound
	}
	return decodeSession(out.Item)
}

func (s *Store) GetSession(ctx context.Context, id string) (sess model.Session, err error) {
	defer observe("get_session", time.Now(), &err)
	if err = s.ready(ctx); err != nil {
		return model.Session{}, err
	}
	return s.getSession(ctx, id)
}

func (s *Store) CompareAndSwapSession(ctx context.Context, next model.Session, expected uint64) (err error) {
	defer observe("cas_session", time.Now(), &err)
	if err = s.ready(ctx); err != nil {
		return err
	}
	item, err := encodeSession(next)
	if err != nil {
		return err
	}
	_, err = s.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                           aws.String(s.sessions),
		Item:                                item,
		ConditionExpression:                 aws.String(condVersion),
		ExpressionAttributeValues:           map[string]types.AttributeValue{":expected": num(int64(expected))},
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	})
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		if len(ccf.Item) == 0 {
			return repository.ErrNotFound
		}
		return repository.ErrConflict
	}
	return mapError(err)
}

func (s *Store) scan(ctx context.Context, table string, fn func(map[string]types.AttributeValue) error) error {
	var start map[string]types.AttributeValue
	for {
		out, err := s.api.Scan(ctx, &dynamodb.ScanInput{
			TableName:         aws.String(table),
			ExclusiveStartKey: start,
		})
		if err != nil {
			return mapError(err)
		}
		for _, item := range out.Items {
			if err := fn(item); err != nil {
				return err
			}
		}
		if len(out.LastEvaluatedKey) == 0 {
			return nil
		}
		start = out.LastEvaluatedKey
	}
}

// queryPending walks the sparse pending index page by page. With count set
// only item counts are fetched and fn receives nil items.
func (s *Store) queryPending(ctx context.Context, count bool, fn func(item map[string]types.AttributeValue, n int32) error) error {
	var start map[string]types.AttributeValue
	for {
		in := &dynamodb.QueryInput{
			TableName:                 aws.String(s.sessions),
			IndexName:                 aws.String(pendingIndex),
			KeyConditionExpression:    aws.String(keyPending),
			ExpressionAttributeValues: map[string]types.AttributeValue{":pending": &types.AttributeValueMemberS{Value: pendingMark}},
			ExclusiveStartKey:         start,
		}
		if count {
			in.Select = types.SelectCount
		}
		out, err := s.api.Query(ctx, in)
		if err != nil {
			return mapError(err)
		}
		if count {
			if err := fn(nil, out.Count); err != nil {
				return err
			}
		}
		for _, item := range out.Items {
			if err := fn(item, 1); err != nil {
				return err
			}
		}
		if len(out.LastEvaluatedKey) == 0 {
			return nil
		}
		start = out.LastEvaluatedKey
	}
}

// CountRatingPending counts sessions awaiting a rating batch from the
// pending index without reading the sessions table.
func (s *Store) CountRatingPending(ctx context.Context) (n int, err error) {
	defer observe("count_rating_pending", time.Now(), &err)
	if err = s.ready(ctx); err != nil {
		return 0, err
	}
	err = s.queryPending(ctx, true, func(_ map[string]types.AttributeValue, c int32) error {
		n += int(c)
		return nil
	})
	return n, err
}

func (s *Store) ListSessions(ctx context.Context, f model.SessionFilter) (out []model.Session, err error) {
	defer observe("list_sessions", time.Now(), &err)
	if err = s.ready(ctx); err != nil {
		return nil, err
	}
	now := f.Now()
	out = make([]model.Session, 0)
	keep := func(item map[string]types.AttributeValue) error {
		sess, err := decodeSession(item)
		if err != nil {
			return err
		}
		if f.Match(sess, now) {
			out = append(out, sess)
		}
		return nil
	}
	if f.RatingPending {
		err = s.queryPending(ctx, false, func(item map[string]types.AttributeValue, _ int32) error { return keep(item) })
	} else {
		err = s.scan(ctx, s.sessions, keep)
	}
	if err != nil {
		return nil, err
	}
	out = model.SortSessions(out)
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *Store) getUser(ctx context.Context, id string) (userItem, error) {
	out, err := s.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.users),
		Key:            idKey(id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return userItem{}, mapError(err)
	}
	if len(out.Item) == 0 {
		return userItem{}, repository.ErrNotFound
	}
	var u userItem
	if err := attributevalue.UnmarshalMap(out.Item, &u); err != nil {
		return userItem{}, fmt.Errorf("decode user %s: %w", id, err)
	}
	return u, nil
}

func (u userItem) model() model.User {
	return model.User{
		ID:          u.ID,
		DisplayName: u.DisplayName,
		SkillLevel:  u.SkillLevel,
		Elo:         u.Elo,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}

func (s *Store) GetUser(ctx context.Context, id string) (u model.User, err error) {
	defer observe("get_user", time.Now(), &err)
	if err = s.ready(ctx); err != nil {
		return model.User{}, err
	}
	it, err := s.getUser(ctx, id)
	if err != nil {
		return model.User{}, err
	}
	return it.model(), nil
}

func (s *Store) UpsertUser(ctx context.Context, u model.User, defaultElo int) (out model.User, err error) {
	defer observe("upsert_user", time.Now(), &err)
	if u.ID == "" {
		return model.User{}, repository.ErrInvalidUser
	}
	if err = s.ready(ctx); err != nil {
		return model.User{}, err
	}
	values, err := attributevalue.MarshalMap(map[string]any{
		":name":  u.DisplayName,
		":skill": u.SkillLevel,
		":now":   s.now().UTC(),
		":elo":   defaultElo,
	})
	if err != nil {
		return model.User{}, fmt.Errorf("encode user: %w", err)
	}
	res, err := s.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.users),
		Key:                       idKey(u.ID),
		UpdateExpression:          aws.String(updUpsertUser),
		ExpressionAttributeValues: values,
		ReturnValues:              types.ReturnValueAllNew,
	})
	if err != nil {
		return model.User{}, mapError(err)
	}
	var it userItem
	if err := attributevalue.UnmarshalMap(res.Attributes, &it); err != nil {
		return model.User{}, fmt.Errorf("decode user %s: %w", u.ID, err)
	}
	return it.model(), nil
}

func (s *Store) GetUserRatings(ctx context.Context, ids []string) (out map[string]int, err error) {
	defer observe("get_ratings", time.Now(), &err)
	if err = s.ready(ctx); err != nil {
		return nil, err
	}
	out = make(map[string]int, len(ids))
	for _, id := range ids {
		u, err := s.getUser(ctx, id)
		if err != nil {
			return nil, err
		}
		out[id] = u.Elo
	}
	return out, nil
}

func (s *Store) BatchUpdateRatings(ctx context.Context, b model.RatingBatch) (err error) {
	defer observe("batch_ratings", time.Now(), &err)
	if err = s.ready(ctx); err != nil {
		return err
	}
	if n := 1 + 2*len(b.Changes); n > maxTransactItems {
		return model.Errorf("dynamo.batch_ratings", model.ErrValidation,
			"rating batch needs %d writes, a transaction allows %d", n, maxTransactItems)
	}
	sess, err := s.getSession(ctx, b.SessionID)
	if err != nil {
		return err
	}
	if !sess.RatingPending {
		return model.ErrRatingsApplied
	}

	expected := sess.Version
	sess.RatingPending = false
	sess.Version++
	sess.UpdatedAt = s.now().UTC()
	doc, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	items := make([]types.TransactWriteItem, 0, 1+2*len(b.Changes))
	items = append(items, types.TransactWriteItem{Update: &types.Update{
		TableName:           aws.String(s.sessions),
		Key:                 idKey(sess.ID),
		ConditionExpression: aws.String(condPending),
		UpdateExpression:    aws.String(updClearPending),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":expected": num(int64(expected)),
			":next":     num(int64(sess.Version)),
			":true":     &types.AttributeValueMemberBOOL{Value: true},
			":false":    &types.AttributeValueMemberBOOL{Value: false},
			":doc":      &types.AttributeValueMemberS{Value: string(doc)},
		},
	}})
	for _, c := range b.Changes {
		at, err := attributevalue.Marshal(c.At.UTC())
		if err != nil {
			return fmt.Errorf("encode rating change: %w", err)
		}
		items = append(items, types.TransactWriteItem{Update: &types.Update{
			TableName:           aws.String(s.users),
			Key:                 idKey(c.UserID),
			ConditionExpression: aws.String(condElo),
			UpdateExpression:    aws.String(updElo),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":old": num(int64(c.Old)),
				":new": num(int64(c.New)),
				":at":  at,
			},
		}})
		hist, err := attributevalue.MarshalMap(historyItem{
			UserID: c.UserID, ID: c.ID, SessionID: c.SessionID, Old: c.Old, New: c.New, At: c.At.UTC(),
		})
		if err != nil {
			return fmt.Errorf("encode rating change: %w", err)
		}
		items = append(items, types.TransactWriteItem{Put: &types.Put{
			TableName:           aws.String(s.history),
			Item:                hist,
			ConditionExpression: aws.String(condNotExists),
		}})
	}

	_, err = s.api.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items})
	var cancelled *types.TransactionCanceledException
	if errors.As(err, &cancelled) {
		if len(cancelled.CancellationReasons) > 0 && aws.ToString(cancelled.CancellationReasons[0].Code) == "ConditionalCheckFailed" {
			cur, getErr := s.getSession(ctx, b.SessionID)
			if getErr == nil && !cur.RatingPending {
				return model.ErrRatingsApplied
			}
		}
		return fmt.Errorf("%w: %s", repository.ErrConflict, cancelled.ErrorMessage())
	}
	return mapError(err)
}

func (s *Store) RatingHistory(ctx context.Context, userID string, limit int) (out []model.RatingChange, err error) {
	defer observe("rating_history", time.Now(), &err)
	if err = s.ready(ctx); err != nil {
		return nil, err
	}
	if _, err := s.getUser(ctx, userID); err != nil {
		return nil, err
	}
	in := &dynamodb.QueryInput{
		TableName:                 aws.String(s.history),
		KeyConditionExpression:    aws.String(keyHistory),
		ExpressionAttributeValues: map[string]types.AttributeValue{":user": &types.AttributeValueMemberS{Value: userID}},
		ScanIndexForward:          aws.Bool(false),
	}
	if limit > 0 {
		in.Limit = aws.Int32(int32(limit))
	}
	res, err := s.api.Query(ctx, in)
	if err != nil {
		return nil, mapError(err)
	}
	var items []historyItem
	if err := attributevalue.UnmarshalListOfMaps(res.Items, &items); err != nil {
		return nil, fmt.Errorf("decode rating history: %w", err)
	}
	return pie.Map(items, func(h historyItem) model.RatingChange {
		return model.RatingChange{ID: h.ID, UserID: h.UserID, SessionID: h.SessionID, Old: h.Old, New: h.New, At: h.At}
	}), nil
}

func (s *Store) TopRated(ctx context.Context, n int) (out []model.LeaderboardEntry, err error) {
	defer observe("top_rated", time.Now(), &err)
	if err = s.ready(ctx); err != nil {
		return nil, err
	}
	var users []userItem
	err = s.scan(ctx, s.users, func(item map[string]types.AttributeValue) error {
		var u userItem
		if err := attributevalue.UnmarshalMap(item, &u); err != nil {
			return fmt.Errorf("decode user: %w", err)
		}
		users = append(users, u)
		return nil
	})
	if err != nil {
		return nil, err
	}
	users = pie.SortUsing(users, func(a, b userItem) bool {
		if a.Elo != b.Elo {
			return a.Elo > b.Elo
		}
		return a.ID < b.ID
	})
	if n >= 0 && len(users) > n {
		users = users[:n]
	}
	out = pie.Map(users, func(u userItem) model.LeaderboardEntry {
		return model.LeaderboardEntry{UserID: u.ID, DisplayName: u.DisplayName, Elo: u.Elo}
	})
	repository.AssignRanks(out)
	return out, nil
}

// Rank counts users rated strictly higher. Like TopRated it reads the
// whole users table.
func (s *Store) Rank(ctx context.Context, userID string) (rank int, err error) {
	defer observe("rank", time.Now(), &err)
	if err = s.ready(ctx); err != nil {
		return 0, err
	}
	u, err := s.getUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	rank = 1
	err = s.scan(ctx, s.users, func(item map[string]types.AttributeValue) error {
		var o userItem
		if err := attributevalue.UnmarshalMap(item, &o); err != nil {
			return fmt.Errorf("decode user: %w", err)
		}
		if o.Elo > u.Elo {
			rank++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return rank, nil
}

// Backend names the storage engine.
func (s *Store) Backend() string { return backend }

// Close marks the store closed. The client holds no connections to release.
func (s *Store) Close() error {
	s.closed.Store(true)
	return nil
}

var _ repository.Store = (*Store)(nil)
