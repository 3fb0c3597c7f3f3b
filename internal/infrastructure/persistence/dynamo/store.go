// Package dynamo implements the catalog Store port against DynamoDB using
// the product id as the sole table key. Mutations surface on the table's
// change feed (DynamoDB Streams), which the stream consumer translates into
// domain events.
package dynamo

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/catalog/backend/internal/domain/catalog"
	"github.com/catalog/backend/internal/domain/shared"
	infraconfig "github.com/catalog/backend/internal/infrastructure/config"
	"github.com/catalog/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// Client is the subset of the DynamoDB API the store uses. Tests substitute
// a fake; production passes *dynamodb.Client.
type Client interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// Store is the DynamoDB-backed catalog.Store
type Store struct {
	client    Client
	tableName string
	logger    *zap.Logger
}

// NewStore creates a Store on an existing client
func NewStore(client Client, tableName string, logger *zap.Logger) *Store {
	return &Store{
		client:    client,
		tableName: tableName,
		logger:    logger,
	}
}

// NewStoreFromConfig builds the DynamoDB client from configuration.
// An endpoint override (DynamoDB Local, LocalStack) switches to static
// credentials so local runs need no AWS profile.
func NewStoreFromConfig(ctx context.Context, cfg *infraconfig.DynamoDBConfig, logger *zap.Logger) (*Store, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.Endpoint != "" && cfg.AccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, err
	}

	client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	return NewStore(client, cfg.Table, logger), nil
}

// List scans one page of the table. The cursor round-trips the engine's
// LastEvaluatedKey as the plain product id, which is safe because id is the
// only key attribute.
func (s *Store) List(ctx context.Context, cursor string, limit int) (*catalog.ProductPage, error) {
	ctx, span := telemetry.StartSpan(ctx, "dynamo.list")
	defer span.End()

	input := &dynamodb.ScanInput{
		TableName: aws.String(s.tableName),
	}
	if limit > 0 {
		input.Limit = aws.Int32(int32(limit))
	}
	if cursor != "" {
		input.ExclusiveStartKey = map[string]types.AttributeValue{
			attrID: &types.AttributeValueMemberS{Value: cursor},
		}
	}

	out, err := s.client.Scan(ctx, input)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, classify("scan", err)
	}

	page := &catalog.ProductPage{Products: make([]catalog.Product, 0, len(out.Items))}
	for _, item := range out.Items {
		product, err := productFromItem(item)
		if err != nil {
			// A row the codec cannot read means the table was written by
			// something other than this adapter; surface it, do not skip.
			telemetry.RecordError(span, err)
			return nil, err
		}
		page.Products = append(page.Products, *product)
	}
	if lek, ok := out.LastEvaluatedKey[attrID]; ok {
		if id, ok := lek.(*types.AttributeValueMemberS); ok {
			page.NextCursor = id.Value
		}
	}
	return page, nil
}

// Get reads a single product with a strongly-consistent read, so a Get
// immediately after Put by the same caller observes the write.
func (s *Store) Get(ctx context.Context, id string) (*catalog.Product, error) {
	ctx, span := telemetry.StartSpan(ctx, "dynamo.get",
		telemetry.WithAttribute("product.id", id))
	defer span.End()

	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		Key:            productKey(id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, classify("get", err)
	}
	if out.Item == nil {
		return nil, shared.ErrNotFound
	}
	return productFromItem(out.Item)
}

// Put validates and upserts the product. The write is an UpdateItem that
// increments a version attribute server-side; when the entity carries an
// expected Version the write is conditioned on it and a mismatch maps to
// ErrStorageConflict. With no expectation the put is unconditional, so a
// retried put after a timeout reaches the same end state.
func (s *Store) Put(ctx context.Context, product *catalog.Product) error {
	ctx, span := telemetry.StartSpan(ctx, "dynamo.put",
		telemetry.WithAttribute("product.id", product.ID))
	defer span.End()

	if err := product.Validate(); err != nil {
		return err
	}
	normalized := product.Clone()
	normalized.Normalize()

	input := &dynamodb.UpdateItemInput{
		TableName:        aws.String(s.tableName),
		Key:              productKey(normalized.ID),
		UpdateExpression: aws.String("SET #name = :name, #price = :price, #version = if_not_exists(#version, :zero) + :one"),
		ExpressionAttributeNames: map[string]string{
			"#name":    attrName,
			"#price":   attrPrice,
			"#version": attrVersion,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":name":  &types.AttributeValueMemberS{Value: normalized.Name},
			":price": &types.AttributeValueMemberN{Value: normalized.Price.String()},
			":zero":  &types.AttributeValueMemberN{Value: "0"},
			":one":   &types.AttributeValueMemberN{Value: "1"},
		},
	}
	if normalized.Version > 0 {
		input.ConditionExpression = aws.String("#version = :expected")
		input.ExpressionAttributeValues[":expected"] = &types.AttributeValueMemberN{
			Value: formatVersion(normalized.Version),
		}
	}

	if _, err := s.client.UpdateItem(ctx, input); err != nil {
		telemetry.RecordError(span, err)
		return classify("put", err)
	}
	return nil
}

// Delete removes the item unconditionally. DynamoDB treats deleting an
// absent key as success, which is exactly the port's idempotency contract.
func (s *Store) Delete(ctx context.Context, id string) error {
	ctx, span := telemetry.StartSpan(ctx, "dynamo.delete",
		telemetry.WithAttribute("product.id", id))
	defer span.End()

	if _, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key:       productKey(id),
	}); err != nil {
		telemetry.RecordError(span, err)
		return classify("delete", err)
	}
	return nil
}

// Ensure Store implements the port
var _ catalog.Store = (*Store)(nil)
