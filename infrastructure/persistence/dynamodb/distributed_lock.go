// Package dynamodb holds the DynamoDB backed session lock used when several
// API instances share one diary store.
package dynamodb

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
	"github.com/google/uuid"
	"go.uber.org/zap"

	"diary-backend/application/ports"
)

// ErrLockHeld is returned when another owner holds an unexpired lease
var ErrLockHeld = errors.New("lock already held")

// ErrLockTimeout is returned when the wait budget ran out
var ErrLockTimeout = errors.New("timed out acquiring lock")

// Client is the subset of the DynamoDB API the lock needs
type Client interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// DistributedLock provides leases using DynamoDB conditional writes
type DistributedLock struct {
	client        Client
	tableName     string
	retryInterval time.Duration
	now           func() time.Time
	logger        *zap.Logger
}

var _ ports.SessionLocker = (*DistributedLock)(nil)

type lockRecord struct {
	PK         string `dynamodbav:"PK"`
	SK         string `dynamodbav:"SK"`
	LockID     string `dynamodbav:"LockID"`
	Owner      string `dynamodbav:"Owner"`
	AcquiredAt int64  `dynamodbav:"AcquiredAt"`
	ExpiresAt  int64  `dynamodbav:"ExpiresAt"`
	TTL        int64  `dynamodbav:"TTL"` // Unix seconds, DynamoDB TTL attribute
}

// NewDistributedLock creates a new distributed lock instance
func NewDistributedLock(client Client, tableName string, logger *zap.Logger) *DistributedLock {
	return &DistributedLock{
		client:        client,
		tableName:     tableName,
		retryInterval: 100 * time.Millisecond,
		now:           time.Now,
		logger:        logger,
	}
}

func lockKey(resource string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: "LOCK#" + resource},
		"SK": &types.AttributeValueMemberS{Value: "LOCK"},
	}
}

// AcquireLock makes a single attempt to take the lease on resource
func (dl *DistributedLock) AcquireLock(ctx context.Context, resource, owner string, lease time.Duration) (*Lock, error) {
	now := dl.now()
	expiresAt := now.Add(lease)
	record := lockRecord{
		PK:         "LOCK#" + resource,
		SK:         "LOCK",
		LockID:     uuid.NewString(),
		Owner:      owner,
		AcquiredAt: now.UnixMilli(),
		ExpiresAt:  expiresAt.UnixMilli(),
		TTL:        expiresAt.Add(time.Hour).Unix(),
	}

	item, err := attributevalue.MarshalMap(record)
	if err != nil {
		return nil, fmt.Errorf("marshal lock record: %w", err)
	}

	_, err = dl.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(dl.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(PK) OR ExpiresAt < :now"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":now": &types.AttributeValueMemberN{Value: strconv.FormatInt(now.UnixMilli(), 10)},
		},
	})
	if err != nil {
		var conditionFailed *types.ConditionalCheckFailedException
		if errors.As(err, &conditionFailed) {
			dl.logger.Debug("Lock already held",
				zap.String("resource", resource),
				zap.String("owner", owner),
			)
			return nil, ErrLockHeld
		}
		return nil, fmt.Errorf("failed to acquire lock: %w", err)
	}

	dl.logger.Debug("Lock acquired",
		zap.String("resource", resource),
		zap.String("lockID", record.LockID),
		zap.Duration("lease", lease),
	)

	return &Lock{
		dl:        dl,
		resource:  resource,
		lockID:    record.LockID,
		owner:     owner,
		expiresAt: expiresAt,
	}, nil
}

// TryAcquireLock retries AcquireLock with backoff until wait elapses
func (dl *DistributedLock) TryAcquireLock(ctx context.Context, resource, owner string, lease, wait time.Duration) (ports.Lock, error) {
	deadline := dl.now().Add(wait)
	interval := dl.retryInterval

	for {
		lock, err := dl.AcquireLock(ctx, resource, owner, lease)
		if err == nil {
			return lock, nil
		}
		if !errors.Is(err, ErrLockHeld) {
			return nil, err
		}
		if !dl.now().Before(deadline) {
			return nil, fmt.Errorf("%w: %s", ErrLockTimeout, resource)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(interval):
			if interval < time.Second {
				interval = time.Duration(float64(interval) * 1.5)
			}
		}
	}
}

// ReleaseLock deletes the lease if it is still owned by lockID
func (dl *DistributedLock) ReleaseLock(ctx context.Context, resource, lockID, owner string) error {
	_, err := dl.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:           aws.String(dl.tableName),
		Key:                 lockKey(resource),
		ConditionExpression: aws.String("LockID = :lockId AND #owner = :owner"),
		ExpressionAttributeNames: map[string]string{
			"#owner": "Owner",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":lockId": &types.AttributeValueMemberS{Value: lockID},
			":owner":  &types.AttributeValueMemberS{Value: owner},
		},
	})
	if err != nil {
		var conditionFailed *types.ConditionalCheckFailedException
		if errors.As(err, &conditionFailed) {
			// Expired and taken over by someone else; nothing left to release.
			dl.logger.Warn("Lock no longer owned at release",
				zap.String("resource", resource),
				zap.String("lockID", lockID),
			)
			return nil
		}
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}

// Lock is an acquired lease
type Lock struct {
	dl        *DistributedLock
	resource  string
	lockID    string
	owner     string
	expiresAt time.Time
}

// Release releases the lock
func (l *Lock) Release(ctx context.Context) error {
	return l.dl.ReleaseLock(ctx, l.resource, l.lockID, l.owner)
}

// ExpiresAt returns when the lease lapses
func (l *Lock) ExpiresAt() time.Time {
	return l.expiresAt
}
