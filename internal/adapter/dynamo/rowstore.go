// Package dynamo stores synced rows in DynamoDB.
//
// Each scope has a head item pointing at the generation of rows that is
// currently visible. A replace writes the new generation under its own
// partition, swaps the head in a single PutItem and then prunes the old
// generation. A reader whose generation is pruned under it re-reads the head,
// so it sees either the old set or the new one.
package dynamo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sinergia/backend/internal/model"
)

const (
	// batchSize is the BatchWriteItem request limit.
	batchSize = 25

	// headRowNumber is the sort key of the head item; data rows start at 2.
	headRowNumber = 0

	writeConcurrency = 4
	maxBatchRetries  = 5
	maxReadAttempts  = 4
)

// Client is the subset of *dynamodb.Client methods used by RowStore.
type Client interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
}

// headItem points a scope at its visible generation.
type headItem struct {
	PK         string    `dynamodbav:"pk"`
	RowNumber  int       `dynamodbav:"row_number"`
	Generation string    `dynamodbav:"generation"`
	RowCount   int       `dynamodbav:"row_count"`
	SyncedAt   time.Time `dynamodbav:"synced_at"`
}

// rowItem is one spreadsheet row. Data is stored as a JSON string because
// header cells may be empty, which DynamoDB map keys cannot be.
type rowItem struct {
	PK        string    `dynamodbav:"pk"`
	RowNumber int       `dynamodbav:"row_number"`
	ID        string    `dynamodbav:"id"`
	SheetID   string    `dynamodbav:"sheet_id"`
	UserID    string    `dynamodbav:"user_id,omitempty"`
	Data      string    `dynamodbav:"data"`
	SyncedAt  time.Time `dynamodbav:"synced_at"`
}

// RowStore implements adapter.RowStore on a table keyed by pk (S) and
// row_number (N).
type RowStore struct {
	client        Client
	tableName     string
	logger        *zap.Logger
	newGeneration func() string
	newBackOff    func() backoff.BackOff
}

// NewRowStore creates a RowStore on tableName.
func NewRowStore(client Client, tableName string, logger *zap.Logger) *RowStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RowStore{
		client:        client,
		tableName:     tableName,
		logger:        logger,
		newGeneration: uuid.NewString,
		newBackOff:    func() backoff.BackOff { return backoff.NewExponentialBackOff() },
	}
}

func headKey(scope model.Scope) string {
	return "scope:" + scope.Key()
}

func generationKey(scope model.Scope, generation string) string {
	return "rows:" + scope.Key() + ":" + generation
}

func (s *RowStore) ReplaceScope(ctx context.Context, scope model.Scope, rows []model.SyncedRow) error {
	var (
		next    *headItem
		newHead map[string]types.AttributeValue
	)
	if len(rows) > 0 {
		generation := s.newGeneration()
		if err := s.writeGeneration(ctx, scope, generation, rows); err != nil {
			s.prune(context.WithoutCancel(ctx), scope, generation)
			return err
		}
		next = &headItem{
			PK:         headKey(scope),
			RowNumber:  headRowNumber,
			Generation: generation,
			RowCount:   len(rows),
			SyncedAt:   rows[0].SyncedAt,
		}
		item, err := attributevalue.MarshalMap(next)
		if err != nil {
			return fmt.Errorf("marshal head item: %w", err)
		}
		newHead = item
	}

	var old map[string]types.AttributeValue
	if next != nil {
		out, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
			TableName:    aws.String(s.tableName),
			Item:         newHead,
			ReturnValues: types.ReturnValueAllOld,
		})
		if err != nil {
			// The swap may have landed; the new generation is kept.
			return fmt.Errorf("swap head of %s: %w", scope.Key(), err)
		}
		old = out.Attributes
	} else {
		out, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
			TableName:    aws.String(s.tableName),
			Key:          s.key(headKey(scope), headRowNumber),
			ReturnValues: types.ReturnValueAllOld,
		})
		if err != nil {
			return fmt.Errorf("clear head of %s: %w", scope.Key(), err)
		}
		old = out.Attributes
	}

	if len(old) > 0 {
		var prev headItem
		if err := attributevalue.UnmarshalMap(old, &prev); err != nil {
			s.logger.Warn("unreadable previous head", zap.String("scope", scope.Key()), zap.Error(err))
			return nil
		}
		if prev.Generation != "" {
			s.prune(ctx, scope, prev.Generation)
		}
	}
	return nil
}

// ListRows returns the visible generation of scope. A query that comes back
// short of the head's row count raced a replace that pruned the generation,
// so the head is read again and the newer generation is listed instead.
func (s *RowStore) ListRows(ctx context.Context, scope model.Scope) ([]model.SyncedRow, error) {
	head, err := s.readHead(ctx, scope)
	if err != nil {
		return nil, err
	}

	for attempt := 1; ; attempt++ {
		if head == nil {
			return []model.SyncedRow{}, nil
		}

		items, err := s.queryGeneration(ctx, generationKey(scope, head.Generation))
		if err != nil {
			return nil, err
		}
		if len(items) == head.RowCount {
			return decodeRows(items)
		}

		current, err := s.readHead(ctx, scope)
		if err != nil {
			return nil, err
		}
		if current != nil && current.Generation == head.Generation {
			return nil, fmt.Errorf("generation %s of %s holds %d of %d rows", head.Generation, scope.Key(), len(items), head.RowCount)
		}
		if attempt >= maxReadAttempts {
			return nil, fmt.Errorf("list rows of %s: scope kept changing during read", scope.Key())
		}
		s.logger.Debug("scope replaced during read, retrying",
			zap.String("scope", scope.Key()),
			zap.String("generation", head.Generation),
			zap.Int("attempt", attempt))
		head = current
	}
}

// readHead returns the scope's head item, or nil when the scope is empty.
func (s *RowStore) readHead(ctx context.Context, scope model.Scope) (*headItem, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		Key:            s.key(headKey(scope), headRowNumber),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get head of %s: %w", scope.Key(), err)
	}
	if out.Item == nil {
		return nil, nil
	}

	var head headItem
	if err := attributevalue.UnmarshalMap(out.Item, &head); err != nil {
		return nil, fmt.Errorf("unmarshal head item: %w", err)
	}
	return &head, nil
}

func decodeRows(items []map[string]types.AttributeValue) ([]model.SyncedRow, error) {
	rows := make([]model.SyncedRow, 0, len(items))
	for _, it := range items {
		var ri rowItem
		if err := attributevalue.UnmarshalMap(it, &ri); err != nil {
			return nil, fmt.Errorf("unmarshal row item: %w", err)
		}
		data := map[string]string{}
		if err := json.Unmarshal([]byte(ri.Data), &data); err != nil {
			return nil, fmt.Errorf("decode row %d data: %w", ri.RowNumber, err)
		}
		rows = append(rows, model.SyncedRow{
			ID:        ri.ID,
			SheetID:   ri.SheetID,
			RowNumber: ri.RowNumber,
			Data:      data,
			UserID:    ri.UserID,
			SyncedAt:  ri.SyncedAt,
		})
	}
	return rows, nil
}

func (s *RowStore) key(pk string, rowNumber int) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"pk":         &types.AttributeValueMemberS{Value: pk},
		"row_number": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", rowNumber)},
	}
}

func (s *RowStore) writeGeneration(ctx context.Context, scope model.Scope, generation string, rows []model.SyncedRow) error {
	pk := generationKey(scope, generation)
	requests := make([]types.WriteRequest, 0, len(rows))
	for _, r := range rows {
		data, err := json.Marshal(r.Data)
		if err != nil {
			return fmt.Errorf("encode row %d data: %w", r.RowNumber, err)
		}
		item, err := attributevalue.MarshalMap(rowItem{
			PK:        pk,
			RowNumber: r.RowNumber,
			ID:        r.ID,
			SheetID:   r.SheetID,
			UserID:    r.UserID,
			Data:      string(data),
			SyncedAt:  r.SyncedAt,
		})
		if err != nil {
			return fmt.Errorf("marshal row %d: %w", r.RowNumber, err)
		}
		requests = append(requests, types.WriteRequest{PutRequest: &types.PutRequest{Item: item}})
	}
	return s.batchWrite(ctx, requests)
}

// prune deletes every row of a generation that is no longer visible.
// Failures leave unreachable items behind and are only logged.
func (s *RowStore) prune(ctx context.Context, scope model.Scope, generation string) {
	pk := generationKey(scope, generation)
	items, err := s.queryGeneration(ctx, pk)
	if err != nil {
		s.logger.Warn("prune query failed", zap.String("scope", scope.Key()), zap.String("generation", generation), zap.Error(err))
		return
	}

	requests := make([]types.WriteRequest, 0, len(items))
	for _, it := range items {
		requests = append(requests, types.WriteRequest{DeleteRequest: &types.DeleteRequest{
			Key: map[string]types.AttributeValue{"pk": it["pk"], "row_number": it["row_number"]},
		}})
	}
	if err := s.batchWrite(ctx, requests); err != nil {
		s.logger.Warn("prune failed", zap.String("scope", scope.Key()), zap.String("generation", generation), zap.Error(err))
	}
}

func (s *RowStore) queryGeneration(ctx context.Context, pk string) ([]map[string]types.AttributeValue, error) {
	var (
		items []map[string]types.AttributeValue
		start map[string]types.AttributeValue
	)
	for {
		out, err := s.client.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(s.tableName),
			KeyConditionExpression: aws.String("pk = :pk"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":pk": &types.AttributeValueMemberS{Value: pk},
			},
			ConsistentRead:    aws.Bool(true),
			ExclusiveStartKey: start,
		})
		if err != nil {
			return nil, fmt.Errorf("query %s: %w", pk, err)
		}
		items = append(items, out.Items...)
		if len(out.LastEvaluatedKey) == 0 {
			return items, nil
		}
		start = out.LastEvaluatedKey
	}
}

// batchWrite sends requests in chunks of 25, a few chunks at a time, and
// resubmits unprocessed items with backoff.
func (s *RowStore) batchWrite(ctx context.Context, requests []types.WriteRequest) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(writeConcurrency)

	for start := 0; start < len(requests); start += batchSize {
		end := min(start+batchSize, len(requests))
		chunk := requests[start:end]
		g.Go(func() error {
			return s.writeChunk(ctx, chunk)
		})
	}
	return g.Wait()
}

func (s *RowStore) writeChunk(ctx context.Context, chunk []types.WriteRequest) error {
	pending := chunk
	b := backoff.WithContext(backoff.WithMaxRetries(s.newBackOff(), maxBatchRetries), ctx)
	return backoff.Retry(func() error {
		out, err := s.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
			RequestItems: map[string][]types.WriteRequest{s.tableName: pending},
		})
		if err != nil {
			return backoff.Permanent(fmt.Errorf("batch write: %w", err))
		}
		pending = out.UnprocessedItems[s.tableName]
		if len(pending) > 0 {
			return fmt.Errorf("%d unprocessed items", len(pending))
		}
		return nil
	}, b)
}
