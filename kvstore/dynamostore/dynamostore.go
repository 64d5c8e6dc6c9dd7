// Package dynamostore implements kvstore.Store on a DynamoDB table.
//
// The table needs a single string partition key named "k"; values are stored
// in a binary attribute "v". DynamoDB item limits (400KB) comfortably hold
// compressed embedding entries and index records.
package dynamostore

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/evidgo/evidgo/kvstore"
)

const (
	keyAttr   = "k"
	valueAttr = "v"
)

// Store implements kvstore.Store for DynamoDB.
type Store struct {
	client *dynamodb.Client
	table  string
}

// NewStore creates a DynamoDB-backed store over an existing table.
func NewStore(client *dynamodb.Client, table string) *Store {
	return &Store{client: client, table: table}
}

// Get returns the value for key, or kvstore.ErrNotFound.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table),
		Key: map[string]types.AttributeValue{
			keyAttr: &types.AttributeValueMemberS{Value: key},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("%w: %s", kvstore.ErrNotFound, key)
	}

	attr, ok := out.Item[valueAttr].(*types.AttributeValueMemberB)
	if !ok {
		return nil, fmt.Errorf("dynamostore: item %q has no binary value", key)
	}
	return attr.Value, nil
}

// Put stores value under key.
func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	_, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item: map[string]types.AttributeValue{
			keyAttr:   &types.AttributeValueMemberS{Value: key},
			valueAttr: &types.AttributeValueMemberB{Value: value},
		},
	})
	return err
}

// Delete removes key. DynamoDB deletes are idempotent.
func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.table),
		Key: map[string]types.AttributeValue{
			keyAttr: &types.AttributeValueMemberS{Value: key},
		},
	})
	return err
}

// List returns all keys with the given prefix.
//
// DynamoDB cannot range-scan a partition key, so this is a filtered table
// scan. The stores built on top only call List during construction.
func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string

	input := &dynamodb.ScanInput{
		TableName:            aws.String(s.table),
		ProjectionExpression: aws.String("#k"),
		ExpressionAttributeNames: map[string]string{
			"#k": keyAttr,
		},
	}
	if prefix != "" {
		input.FilterExpression = aws.String("begins_with(#k, :p)")
		input.ExpressionAttributeValues = map[string]types.AttributeValue{
			":p": &types.AttributeValueMemberS{Value: prefix},
		}
	}

	paginator := dynamodb.NewScanPaginator(s.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, item := range page.Items {
			if attr, ok := item[keyAttr].(*types.AttributeValueMemberS); ok {
				if strings.HasPrefix(attr.Value, prefix) {
					keys = append(keys, attr.Value)
				}
			}
		}
	}
	return keys, nil
}

// Close implements kvstore.Store.
func (s *Store) Close() error { return nil }
