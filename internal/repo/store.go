package repo

import (
	"context"
	"fmt"

	"github.com/shaiso/Relay/internal/domain"
)

// Имена бэкендов.
const (
	BackendMemory   = "memory"
	BackendDynamoDB = "dynamodb"
	BackendPostgres = "postgres"
)

// RecordStore — хранилище записей с partition key.
//
// Put — upsert по keyField: повторная запись с тем же ключом заменяет предыдущую.
// Ошибки оборачивают ErrStoreUnavailable или ErrStoreThrottled.
// Если ctx завершён, возвращается ошибка ctx.
type RecordStore interface {
	Put(ctx context.Context, table, keyField string, record domain.Record) (domain.StoreStatus, error)
	Backend() string
}

// ItemKey — возвращает значение partition key записи.
func ItemKey(record domain.Record, keyField string) (string, error) {
	value, ok := record[keyField]
	if !ok {
		return "", fmt.Errorf("%w: missing key field %q", ErrInvalidRecord, keyField)
	}
	s, ok := value.(string)
	if !ok || s == "" {
		return "", fmt.Errorf("%w: key field %q must be a non-empty string", ErrInvalidRecord, keyField)
	}
	return s, nil
}

func checkTable(table string) error {
	if table == "" {
		return fmt.Errorf("%w: table is required", ErrInvalidRecord)
	}
	return nil
}
