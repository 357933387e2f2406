package cloud

import (
	"chat-presence/contract"
	"chat-presence/errors"
	"context"
	goerrors "errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

var _ contract.Store = (*DynamoStore)(nil)

// dynamodbAPI is the minimal DynamoDB interface required by DynamoStore.
type dynamodbAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, in *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// DynamoStore maps each logical table to a DynamoDB table keyed by "id".
// Secondary indexes are global secondary indexes named "{field}Index".
type DynamoStore struct {
	api    dynamodbAPI
	tables map[string]string
}

// NewDynamoStore takes the physical table name of every logical table.
func NewDynamoStore(api dynamodbAPI, tables map[string]string) (*DynamoStore, error) {
	if api == nil {
		return nil, goerrors.New("dynamo store: api must not be nil")
	}
	for logical := range contract.Indexes {
		if strings.TrimSpace(tables[logical]) == "" {
			return nil, fmt.Errorf("dynamo store: table name for %q must not be empty", logical)
		}
	}
	return &DynamoStore{api: api, tables: tables}, nil
}

func IndexName(field string) string {
	return field + "Index"
}

func (s *DynamoStore) Put(ctx context.Context, table, key string, record contract.Record) error {
	item := toItem(record)
	item["id"] = &types.AttributeValueMemberS{Value: key}
	_, err := s.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tables[table]),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("dynamo store: put %s/%s: %w", table, key, err)
	}
	return nil
}

// Update sets the patched attributes on an existing item.
func (s *DynamoStore) Update(ctx context.Context, table, key string, patch contract.Record) error {
	fields := make([]string, 0, len(patch))
	for field := range patch {
		if field != "id" {
			fields = append(fields, field)
		}
	}
	if len(fields) == 0 {
		return nil
	}
	sort.Strings(fields)

	names := map[string]string{"#id": "id"}
	values := make(map[string]types.AttributeValue, len(fields))
	assignments := make([]string, 0, len(fields))
	for i, field := range fields {
		name, value := fmt.Sprintf("#f%d", i), fmt.Sprintf(":v%d", i)
		names[name] = field
		values[value] = toAttribute(patch[field])
		assignments = append(assignments, name+" = "+value)
	}

	_, err := s.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.tables[table]),
		Key:                       map[string]types.AttributeValue{"id": &types.AttributeValueMemberS{Value: key}},
		UpdateExpression:          aws.String("SET " + strings.Join(assignments, ", ")),
		ConditionExpression:       aws.String("attribute_exists(#id)"),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
	})
	var conditionFailed *types.ConditionalCheckFailedException
	if goerrors.As(err, &conditionFailed) {
		return fmt.Errorf("dynamo store: update %s/%s: %w", table, key, errors.ErrRecordNotFound)
	}
	if err != nil {
		return fmt.Errorf("dynamo store: update %s/%s: %w", table, key, err)
	}
	return nil
}

func (s *DynamoStore) Delete(ctx context.Context, table, key string) error {
	_, err := s.api.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tables[table]),
		Key:       map[string]types.AttributeValue{"id": &types.AttributeValueMemberS{Value: key}},
	})
	if err != nil {
		return fmt.Errorf("dynamo store: delete %s/%s: %w", table, key, err)
	}
	return nil
}

// QueryByIndex follows pagination until the index is exhausted.
func (s *DynamoStore) QueryByIndex(ctx context.Context, table, index, value string) ([]contract.Record, error) {
	var records []contract.Record
	var startKey map[string]types.AttributeValue
	for {
		out, err := s.api.Query(ctx, &dynamodb.QueryInput{
			TableName:                 aws.String(s.tables[table]),
			IndexName:                 aws.String(IndexName(index)),
			KeyConditionExpression:    aws.String("#k = :v"),
			ExpressionAttributeNames:  map[string]string{"#k": index},
			ExpressionAttributeValues: map[string]types.AttributeValue{":v": &types.AttributeValueMemberS{Value: value}},
			ExclusiveStartKey:         startKey,
		})
		if err != nil {
			return nil, fmt.Errorf("dynamo store: query %s by %s: %w", table, index, err)
		}
		for _, item := range out.Items {
			records = append(records, fromItem(item))
		}
		if len(out.LastEvaluatedKey) == 0 {
			return records, nil
		}
		startKey = out.LastEvaluatedKey
	}
}

func (s *DynamoStore) Scan(ctx context.Context, table string) ([]contract.Record, error) {
	var records []contract.Record
	var startKey map[string]types.AttributeValue
	for {
		out, err := s.api.Scan(ctx, &dynamodb.ScanInput{
			TableName:         aws.String(s.tables[table]),
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, fmt.Errorf("dynamo store: scan %s: %w", table, err)
		}
		for _, item := range out.Items {
			records = append(records, fromItem(item))
		}
		if len(out.LastEvaluatedKey) == 0 {
			return records, nil
		}
		startKey = out.LastEvaluatedKey
	}
}

func toItem(record contract.Record) map[string]types.AttributeValue {
	item := make(map[string]types.AttributeValue, len(record)+1)
	for field, value := range record {
		item[field] = toAttribute(value)
	}
	return item
}

func toAttribute(value any) types.AttributeValue {
	switch v := value.(type) {
	case string:
		return &types.AttributeValueMemberS{Value: v}
	case bool:
		return &types.AttributeValueMemberBOOL{Value: v}
	case int:
		return &types.AttributeValueMemberN{Value: strconv.Itoa(v)}
	case int32:
		return &types.AttributeValueMemberN{Value: strconv.FormatInt(int64(v), 10)}
	case int64:
		return &types.AttributeValueMemberN{Value: strconv.FormatInt(v, 10)}
	case float64:
		return &types.AttributeValueMemberN{Value: strconv.FormatFloat(v, 'f', -1, 64)}
	case nil:
		return &types.AttributeValueMemberNULL{Value: true}
	default:
		return &types.AttributeValueMemberS{Value: fmt.Sprint(v)}
	}
}

func fromItem(item map[string]types.AttributeValue) contract.Record {
	record := make(contract.Record, len(item))
	for field, attr := range item {
		switch v := attr.(type) {
		case *types.AttributeValueMemberS:
			record[field] = v.Value
		case *types.AttributeValueMemberBOOL:
			record[field] = v.Value
		case *types.AttributeValueMemberN:
			if n, err := strconv.ParseInt(v.Value, 10, 64); err == nil {
				record[field] = n
			} else if f, err := strconv.ParseFloat(v.Value, 64); err == nil {
				record[field] = f
			}
		case *types.AttributeValueMemberNULL:
			record[field] = nil
		}
	}
	return record
}
