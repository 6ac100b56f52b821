package repo

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsmiddleware "github.com/aws/aws-sdk-go-v2/aws/middleware"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"

	"github.com/shaiso/Relay/internal/domain"
)

// DynamoAPI — часть клиента DynamoDB, нужная DynamoStore.
type DynamoAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// DynamoConfig — параметры подключения к DynamoDB.
type DynamoConfig struct {
	// Region — регион AWS. Пусто — из окружения (AWS_REGION).
	Region string

	// Endpoint — альтернативный endpoint (DynamoDB Local, LocalStack).
	Endpoint string
}

// DynamoStore — Record Store поверх DynamoDB PutItem.
//
// Partition key таблицы должен совпадать с key_field шага persist.
type DynamoStore struct {
	client DynamoAPI
}

// NewDynamoStore создаёт DynamoStore с клиентом из стандартной цепочки
// конфигурации AWS SDK.
func NewDynamoStore(ctx context.Context, cfg DynamoConfig) (*DynamoStore, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return NewDynamoStoreWithClient(client), nil
}

// NewDynamoStoreWithClient создаёт DynamoStore с готовым клиентом.
func NewDynamoStoreWithClient(client DynamoAPI) *DynamoStore {
	return &DynamoStore{client: client}
}

// Backend возвращает имя бэкенда.
func (s *DynamoStore) Backend() string {
	return BackendDynamoDB
}

// Put выполняет PutItem.
func (s *DynamoStore) Put(ctx context.Context, table, keyField string, record domain.Record) (domain.StoreStatus, error) {
	if err := checkTable(table); err != nil {
		return domain.StoreStatus{}, err
	}
	if _, err := ItemKey(record, keyField); err != nil {
		return domain.StoreStatus{}, err
	}

	item, err := attributevalue.MarshalMap(map[string]any(record))
	if err != nil {
		return domain.StoreStatus{}, fmt.Errorf("%w: marshal item: %v", ErrInvalidRecord, err)
	}

	out, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(table),
		Item:      item,
	})
	if err != nil {
		return domain.StoreStatus{}, classifyDynamoError(ctx, err)
	}

	return domain.StoreStatus{Backend: BackendDynamoDB, StatusCode: dynamoStatusCode(out)}, nil
}

// dynamoStatusCode достаёт HTTP статус из метаданных ответа.
func dynamoStatusCode(out *dynamodb.PutItemOutput) int {
	if out == nil {
		return http.StatusOK
	}
	if raw, ok := awsmiddleware.GetRawResponse(out.ResultMetadata).(*smithyhttp.Response); ok && raw != nil && raw.Response != nil {
		return raw.StatusCode
	}
	return http.StatusOK
}

func classifyDynamoError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	var throughput *types.ProvisionedThroughputExceededException
	var requestLimit *types.RequestLimitExceeded
	if errors.As(err, &throughput) || errors.As(err, &requestLimit) {
		return fmt.Errorf("%w: %v", ErrStoreThrottled, err)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorCode() == "ThrottlingException" {
		return fmt.Errorf("%w: %v", ErrStoreThrottled, err)
	}

	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}
