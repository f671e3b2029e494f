package synclock

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/sinergia/backend/internal/adapter"
	"github.com/sinergia/backend/internal/model"
)

// DynamoClient is the subset of *dynamodb.Client methods used by DynamoLocker.
type DynamoClient interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// DynamoLocker leases scopes with conditional writes on a table keyed by
// scope_key. Expired leases are taken over; the table's TTL attribute
// (expires_at) garbage-collects abandoned ones.
type DynamoLocker struct {
	client    DynamoClient
	tableName string
	ttl       time.Duration
	now       func() time.Time
}

// NewDynamoLocker creates a DynamoLocker on tableName.
func NewDynamoLocker(client DynamoClient, tableName string, opts ...Option) *DynamoLocker {
	return &DynamoLocker{
		client:    client,
		tableName: tableName,
		ttl:       applyOptions(opts).ttl,
		now:       time.Now,
	}
}

// Acquire succeeds if no lease exists, the lease has expired, or owner
// already holds it.
func (l *DynamoLocker) Acquire(ctx context.Context, scopeKey, owner string) (*model.SyncLock, error) {
	now := l.now().Unix()
	lock := model.SyncLock{
		ScopeKey:  scopeKey,
		Owner:     owner,
		ExpiresAt: now + int64(l.ttl.Seconds()),
	}

	item, err := attributevalue.MarshalMap(lock)
	if err != nil {
		return nil, fmt.Errorf("marshal sync lock: %w", err)
	}

	_, err = l.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(l.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(scope_key) OR expires_at < :now OR #owner = :owner"),
		ExpressionAttributeNames: map[string]string{
			"#owner": "owner",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":now":   &types.AttributeValueMemberN{Value: strconv.FormatInt(now, 10)},
			":owner": &types.AttributeValueMemberS{Value: owner},
		},
	})
	if err != nil {
		var condFailed *types.ConditionalCheckFailedException
		if errors.As(err, &condFailed) {
			return nil, adapter.ErrLocked
		}
		return nil, fmt.Errorf("acquire sync lock %s: %w", scopeKey, err)
	}

	return &lock, nil
}

// Release deletes the lease when owner holds it; a lease already taken over
// by someone else is left alone.
func (l *DynamoLocker) Release(ctx context.Context, scopeKey, owner string) error {
	_, err := l.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(l.tableName),
		Key: map[string]types.AttributeValue{
			"scope_key": &types.AttributeValueMemberS{Value: scopeKey},
		},
		ConditionExpression: aws.String("#owner = :owner"),
		ExpressionAttributeNames: map[string]string{
			"#owner": "owner",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":owner": &types.AttributeValueMemberS{Value: owner},
		},
	})
	if err != nil {
		var condFailed *types.ConditionalCheckFailedException
		if errors.As(err, &condFailed) {
			return nil
		}
		return fmt.Errorf("release sync lock %s: %w", scopeKey, err)
	}
	return nil
}
