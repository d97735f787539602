package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/rs/zerolog/log"
)

// DynamoDB key constants for the single-table design.
const (
	pkPrefix = "REQUEST#"
	skMeta   = "META"
)

// DynamoAPI is the subset of *dynamodb.Client used by DynamoStore.
type DynamoAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
}

// DynamoStore implements RequestStore on DynamoDB.
type DynamoStore struct {
	client    DynamoAPI
	tableName string
}

// Compile-time interface check.
var _ RequestStore = (*DynamoStore)(nil)

// NewDynamoStore creates a DynamoStore for the given table.
func NewDynamoStore(client DynamoAPI, tableName string) *DynamoStore {
	return &DynamoStore{client: client, tableName: tableName}
}

// TableName returns the table records are written to.
func (s *DynamoStore) TableName() string { return s.tableName }

func requestPK(id string) string {
	return pkPrefix + id
}

// expiresAt returns the Unix epoch timestamp for record expiration.
func expiresAt(now time.Time) int64 {
	return now.Add(RequestTTL).Unix()
}

// PutRequest writes the full record with PK, SK and TTL attributes.
func (s *DynamoStore) PutRequest(ctx context.Context, req *Request) error {
	if req == nil || req.ID == "" {
		return errors.New("request record without ID")
	}
	item, err := attributevalue.MarshalMap(req)
	if err != nil {
		return fmt.Errorf("marshal request %s: %w", req.ID, err)
	}
	pk := requestPK(req.ID)
	item["PK"] = &types.AttributeValueMemberS{Value: pk}
	item["SK"] = &types.AttributeValueMemberS{Value: skMeta}
	item["expiresAt"] = &types.AttributeValueMemberN{Value: strconv.FormatInt(expiresAt(time.Now()), 10)}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: &s.tableName,
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("PutItem PK=%s SK=%s: %w", pk, skMeta, err)
	}
	log.Debug().Str("requestId", req.ID).Str("status", req.Status).Msg("Request record saved")
	return nil
}

// GetRequest reads a record. Returns nil, nil if not found.
func (s *DynamoStore) GetRequest(ctx context.Context, id string) (*Request, error) {
	pk := requestPK(id)
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: pk},
			"SK": &types.AttributeValueMemberS{Value: skMeta},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("GetItem PK=%s SK=%s: %w", pk, skMeta, err)
	}
	if result.Item == nil {
		return nil, nil
	}

	// DynamoDB TTL deletion is lazy; treat expired items as gone.
	if av, ok := result.Item["expiresAt"].(*types.AttributeValueMemberN); ok {
		if exp, err := strconv.ParseInt(av.Value, 10, 64); err == nil && time.Now().Unix() > exp {
			return nil, nil
		}
	}

	var req Request
	if err := attributevalue.UnmarshalMap(result.Item, &req); err != nil {
		return nil, fmt.Errorf("unmarshal PK=%s SK=%s: %w", pk, skMeta, err)
	}
	if pkAttr, ok := result.Item["PK"].(*types.AttributeValueMemberS); ok {
		req.ID = strings.TrimPrefix(pkAttr.Value, pkPrefix)
	}
	return &req, nil
}
