// Package dynamo provides a DynamoDB-backed session store using a
// single-table layout: one META# item per session and one MSG#<seq> item per
// transcript entry, all under a SESSION#<uuid> partition.
package dynamo

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"gamemaster-agent/internal/domain"
	"gamemaster-agent/internal/storage"
)

const (
	skMeta      = "META#"
	skPrefixMsg = "MSG#"
	batchMax    = 25
)

// dynamodbAPI is the minimal DynamoDB interface required by Store.
// Defined here for testability.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, in *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	BatchWriteItem(ctx context.Context, in *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
}

// Store wraps a DynamoDB table for session and transcript state.
type Store struct {
	api       dynamodbAPI
	tableName string
}

// New creates a new Store.
func New(api dynamodbAPI, tableName string) (*Store, error) {
	if api == nil {
		return nil, errors.New("dynamo: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("dynamo: table name must not be empty")
	}
	return &Store{api: api, tableName: tableName}, nil
}

func sessionPK(sessionID string) string {
	return "SESSION#" + sessionID
}

// msgSK encodes the sequence number zero-padded so lexicographic sort key
// order equals numeric order.
func msgSK(seq int) string {
	return fmt.Sprintf("%s%010d", skPrefixMsg, seq)
}

// CreateSession writes a new META# item. The session UUID doubles as the
// surrogate key since DynamoDB has no auto-increment.
func (s *Store) CreateSession(ctx context.Context) (domain.Session, error) {
	sessionUUID := uuid.NewString()
	createdAt := time.Now().UTC()

	_, err := s.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item: map[string]types.AttributeValue{
			"PK":          &types.AttributeValueMemberS{Value: sessionPK(sessionUUID)},
			"SK":          &types.AttributeValueMemberS{Value: skMeta},
			"sessionUuid": &types.AttributeValueMemberS{Value: sessionUUID},
			"createdAt":   &types.AttributeValueMemberN{Value: strconv.FormatInt(createdAt.UnixMilli(), 10)},
			"seq":         &types.AttributeValueMemberN{Value: "0"},
		},
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	})
	if err != nil {
		return domain.Session{}, translate(fmt.Errorf("dynamo: CreateSession: %w", err))
	}
	return domain.Session{ID: sessionUUID, UUID: sessionUUID, CreatedAt: createdAt}, nil
}

// AppendMessage assigns the next sequence number and writes the message item.
// The counter bump and the item write go through one transaction, so a failed
// write leaves the counter unchanged and the sequence stays gap-free.
func (s *Store) AppendMessage(ctx context.Context, sessionID string, role domain.Role, content string) (domain.Message, error) {
	out, err := s.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: sessionPK(sessionID)},
			"SK": &types.AttributeValueMemberS{Value: skMeta},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return domain.Message{}, translate(fmt.Errorf("dynamo: AppendMessage read seq: %w", err))
	}
	if out == nil || len(out.Item) == 0 {
		return domain.Message{}, storage.ErrNotFound
	}
	cur, err := intAttr(out.Item, "seq")
	if err != nil {
		return domain.Message{}, fmt.Errorf("dynamo: AppendMessage decode seq: %w", err)
	}
	seq := cur + 1

	createdAt := time.Now().UTC()
	sk := msgSK(seq)
	_, err = s.api.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{
				Update: &types.Update{
					TableName: aws.String(s.tableName),
					Key: map[string]types.AttributeValue{
						"PK": &types.AttributeValueMemberS{Value: sessionPK(sessionID)},
						"SK": &types.AttributeValueMemberS{Value: skMeta},
					},
					UpdateExpression:    aws.String("SET #seq = :next"),
					ConditionExpression: aws.String("attribute_exists(PK) AND #seq = :cur"),
					ExpressionAttributeNames: map[string]string{
						"#seq": "seq",
					},
					ExpressionAttributeValues: map[string]types.AttributeValue{
						":cur":  &types.AttributeValueMemberN{Value: strconv.Itoa(cur)},
						":next": &types.AttributeValueMemberN{Value: strconv.Itoa(seq)},
					},
				},
			},
			{
				Put: &types.Put{
					TableName: aws.String(s.tableName),
					Item: map[string]types.AttributeValue{
						"PK":        &types.AttributeValueMemberS{Value: sessionPK(sessionID)},
						"SK":        &types.AttributeValueMemberS{Value: sk},
						"seq":       &types.AttributeValueMemberN{Value: strconv.Itoa(seq)},
						"role":      &types.AttributeValueMemberS{Value: string(role)},
						"content":   &types.AttributeValueMemberS{Value: content},
						"createdAt": &types.AttributeValueMemberN{Value: strconv.FormatInt(createdAt.UnixMilli(), 10)},
					},
					ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
				},
			},
		},
	})
	if err != nil {
		return domain.Message{}, translate(fmt.Errorf("dynamo: AppendMessage write: %w", err))
	}

	return domain.Message{
		ID:        sk,
		SessionID: sessionID,
		Seq:       seq,
		Role:      role,
		Content:   content,
		CreatedAt: createdAt,
	}, nil
}

// ListSessions scans META# items and returns sessions newest first.
func (s *Store) ListSessions(ctx context.Context) ([]domain.Session, error) {
	var sessions []domain.Session
	var startKey map[string]types.AttributeValue
	for {
		out, err := s.api.Scan(ctx, &dynamodb.ScanInput{
			TableName:        aws.String(s.tableName),
			FilterExpression: aws.String("SK = :meta"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":meta": &types.AttributeValueMemberS{Value: skMeta},
			},
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, translate(fmt.Errorf("dynamo: ListSessions scan: %w", err))
		}
		for _, item := range out.Items {
			sess, err := itemToSession(item)
			if err != nil {
				return nil, fmt.Errorf("dynamo: ListSessions decode: %w", err)
			}
			sessions = append(sessions, sess)
		}
		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		startKey = out.LastEvaluatedKey
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.After(sessions[j].CreatedAt)
	})
	return sessions, nil
}

// ListMessages queries all MSG# items for a session in sort key order.
func (s *Store) ListMessages(ctx context.Context, sessionID string) ([]domain.Message, error) {
	if err := s.ensureSession(ctx, sessionID); err != nil {
		return nil, err
	}

	var msgs []domain.Message
	var startKey map[string]types.AttributeValue
	for {
		out, err := s.api.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(s.tableName),
			KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":pk":     &types.AttributeValueMemberS{Value: sessionPK(sessionID)},
				":prefix": &types.AttributeValueMemberS{Value: skPrefixMsg},
			},
			ScanIndexForward:  aws.Bool(true),
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, translate(fmt.Errorf("dynamo: ListMessages query: %w", err))
		}
		for _, item := range out.Items {
			msg, err := itemToMessage(sessionID, item)
			if err != nil {
				return nil, fmt.Errorf("dynamo: ListMessages decode: %w", err)
			}
			msgs = append(msgs, msg)
		}
		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		startKey = out.LastEvaluatedKey
	}
	return msgs, nil
}

// DeleteSession removes the META# item and every MSG# item for the session.
// DynamoDB has no foreign keys, so the cascade is performed here with
// batched deletes; from the caller's perspective the result is the same.
func (s *Store) DeleteSession(ctx context.Context, sessionID string) error {
	if err := s.ensureSession(ctx, sessionID); err != nil {
		return err
	}

	msgs, err := s.ListMessages(ctx, sessionID)
	if err != nil {
		return err
	}

	keys := make([]map[string]types.AttributeValue, 0, len(msgs)+1)
	for _, msg := range msgs {
		keys = append(keys, map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: sessionPK(sessionID)},
			"SK": &types.AttributeValueMemberS{Value: msg.ID},
		})
	}
	keys = append(keys, map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: sessionPK(sessionID)},
		"SK": &types.AttributeValueMemberS{Value: skMeta},
	})

	for start := 0; start < len(keys); start += batchMax {
		end := start + batchMax
		if end > len(keys) {
			end = len(keys)
		}
		requests := make([]types.WriteRequest, 0, end-start)
		for _, key := range keys[start:end] {
			requests = append(requests, types.WriteRequest{
				DeleteRequest: &types.DeleteRequest{Key: key},
			})
		}
		_, err := s.api.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
			RequestItems: map[string][]types.WriteRequest{
				s.tableName: requests,
			},
		})
		if err != nil {
			return translate(fmt.Errorf("dynamo: DeleteSession batch: %w", err))
		}
	}
	return nil
}

func (s *Store) ensureSession(ctx context.Context, sessionID string) error {
	out, err := s.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: sessionPK(sessionID)},
			"SK": &types.AttributeValueMemberS{Value: skMeta},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return translate(fmt.Errorf("dynamo: get session: %w", err))
	}
	if out == nil || len(out.Item) == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func itemToSession(item map[string]types.AttributeValue) (domain.Session, error) {
	sessUUID, err := strAttr(item, "sessionUuid")
	if err != nil {
		return domain.Session{}, err
	}
	createdAt, err := intAttr(item, "createdAt")
	if err != nil {
		return domain.Session{}, err
	}
	return domain.Session{
		ID:        sessUUID,
		UUID:      sessUUID,
		CreatedAt: time.UnixMilli(int64(createdAt)).UTC(),
	}, nil
}

func itemToMessage(sessionID string, item map[string]types.AttributeValue) (domain.Message, error) {
	sk, err := strAttr(item, "SK")
	if err != nil {
		return domain.Message{}, err
	}
	role, err := strAttr(item, "role")
	if err != nil {
		return domain.Message{}, err
	}
	content, err := strAttr(item, "content")
	if err != nil {
		return domain.Message{}, err
	}
	seq, err := intAttr(item, "seq")
	if err != nil {
		return domain.Message{}, err
	}
	createdAt, err := intAttr(item, "createdAt")
	if err != nil {
		return domain.Message{}, err
	}
	return domain.Message{
		ID:        sk,
		SessionID: sessionID,
		Seq:       seq,
		Role:      domain.Role(role),
		Content:   content,
		CreatedAt: time.UnixMilli(int64(createdAt)).UTC(),
	}, nil
}

func strAttr(item map[string]types.AttributeValue, key string) (string, error) {
	v, ok := item[key]
	if !ok {
		return "", fmt.Errorf("dynamo: missing attribute %q", key)
	}
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("dynamo: attribute %q is not a string", key)
	}
	return s.Value, nil
}

func intAttr(item map[string]types.AttributeValue, key string) (int, error) {
	v, ok := item[key]
	if !ok {
		return 0, fmt.Errorf("dynamo: missing attribute %q", key)
	}
	n, ok := v.(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("dynamo: attribute %q is not a number", key)
	}
	parsed, err := strconv.Atoi(n.Value)
	if err != nil {
		return 0, fmt.Errorf("dynamo: parse attribute %q: %w", key, err)
	}
	return parsed, nil
}

// translate folds SDK failures into the storage taxonomy. Conditional check
// failures are precondition violations; everything else is transient.
func translate(err error) error {
	if err == nil {
		return nil
	}
	var condErr *types.ConditionalCheckFailedException
	if errors.As(err, &condErr) {
		return fmt.Errorf("%w: %v", storage.ErrConflict, err)
	}
	var txErr *types.TransactionCanceledException
	if errors.As(err, &txErr) {
		for _, reason := range txErr.CancellationReasons {
			if reason.Code != nil && *reason.Code == "ConditionalCheckFailed" {
				return fmt.Errorf("%w: %v", storage.ErrConflict, err)
			}
		}
	}
	return fmt.Errorf("%w: %v", storage.ErrUnavailable, err)
}
