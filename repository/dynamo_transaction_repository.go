package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/arrxxhh/Payment-gateway/models"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DynamoTransactionRepository stores records in a table keyed by `txn_id_hash`.
type DynamoTransactionRepository struct {
	client *dynamodb.Client
	table  string
}

func NewDynamoTransactionRepository(client *dynamodb.Client, table string) *DynamoTransactionRepository {
	return &DynamoTransactionRepository{client: client, table: table}
}

type ddbTransaction struct {
	TxnIDHash      string  `dynamodbav:"txn_id_hash"`
	TxnIDEnc       string  `dynamodbav:"txn_id_enc"`
	AmountEnc      string  `dynamodbav:"amount_enc"`
	UserIDEnc      string  `dynamodbav:"user_id_enc"`
	UserIDHash     string  `dynamodbav:"user_id_hash"`
	Method         string  `dynamodbav:"method"`
	Status         string  `dynamodbav:"status"`
	Timestamp      string  `dynamodbav:"timestamp"`
	SettlementDate *string `dynamodbav:"settlement_date,omitempty"`
	Sandbox        bool    `dynamodbav:"sandbox"`
	RiskFlag       bool    `dynamodbav:"risk_flag"`
	PaymentLink    string  `dynamodbav:"payment_link"`
	Version        int64   `dynamodbav:"version"`
	UpdatedAt      string  `dynamodbav:"updated_at"`
}

func toDDB(t *models.Transaction) ddbTransaction {
	d := ddbTransaction{
		TxnIDHash:   t.TxnIDHash,
		TxnIDEnc:    t.TxnIDEnc,
		AmountEnc:   t.AmountEnc,
		UserIDEnc:   t.UserIDEnc,
		UserIDHash:  t.UserIDHash,
		Method:      string(t.Method),
		Status:      string(t.Status),
		Timestamp:   t.Timestamp.UTC().Format(time.RFC3339Nano),
		Sandbox:     t.Sandbox,
		RiskFlag:    t.RiskFlag,
		PaymentLink: t.PaymentLink,
		Version:     t.Version,
		UpdatedAt:   t.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
	if t.SettlementDate != nil {
		s := t.SettlementDate.UTC().Format(time.RFC3339Nano)
		d.SettlementDate = &s
	}
	return d
}

func fromDDB(d ddbTransaction) models.Transaction {
	t := models.Transaction{
		TxnIDHash:   d.TxnIDHash,
		TxnIDEnc:    d.TxnIDEnc,
		AmountEnc:   d.AmountEnc,
		UserIDEnc:   d.UserIDEnc,
		UserIDHash:  d.UserIDHash,
		Method:      models.PaymentMethod(d.Method),
		Status:      models.TransactionStatus(d.Status),
		Sandbox:     d.Sandbox,
		RiskFlag:    d.RiskFlag,
		PaymentLink: d.PaymentLink,
		Version:     d.Version,
	}
	if ts, err := time.Parse(time.RFC3339Nano, d.Timestamp); err == nil {
		t.Timestamp = ts
	}
	if ts, err := time.Parse(time.RFC3339Nano, d.UpdatedAt); err == nil {
		t.UpdatedAt = ts
	}
	if d.SettlementDate != nil {
		if ts, err := time.Parse(time.RFC3339Nano, *d.SettlementDate); err == nil {
			t.SettlementDate = &ts
		}
	}
	return t
}

func (d *DynamoTransactionRepository) key(txnIDHash string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"txn_id_hash": &types.AttributeValueMemberS{Value: txnIDHash},
	}
}

func (d *DynamoTransactionRepository) Insert(ctx context.Context, txn *models.Transaction) error {
	item, err := attributevalue.MarshalMap(toDDB(txn))
	if err != nil {
		return fmt.Errorf("marshal transaction: %w", err)
	}
	_, err = d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           &d.table,
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(txn_id_hash)"),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("dynamodb PutItem failed: %w", err)
	}
	return nil
}

func (d *DynamoTransactionRepository) FindByHash(ctx context.Context, txnIDHash string) (*models.Transaction, error) {
	out, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      &d.table,
		Key:            d.key(txnIDHash),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("dynamodb GetItem failed: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, ErrNotFound
	}
	var dt ddbTransaction
	if err := attributevalue.UnmarshalMap(out.Item, &dt); err != nil {
		return nil, fmt.Errorf("unmarshal item: %w", err)
	}
	t := fromDDB(dt)
	return &t, nil
}

// FindManyByHashes batches lookups in groups of 100, the BatchGetItem limit.
func (d *DynamoTransactionRepository) FindManyByHashes(ctx context.Context, txnIDHashes []string, status *models.TransactionStatus) ([]models.Transaction, error) {
	unique := make([]string, 0, len(txnIDHashes))
	seen := make(map[string]bool, len(txnIDHashes))
	for _, h := range txnIDHashes {
		if !seen[h] {
			seen[h] = true
			unique = append(unique, h)
		}
	}

	var out []models.Transaction
	for i := 0; i < len(unique); i += 100 {
		end := i + 100
		if end > len(unique) {
			end = len(unique)
		}
		keys := make([]map[string]types.AttributeValue, 0, end-i)
		for _, h := range unique[i:end] {
			keys = append(keys, d.key(h))
		}

		request := map[string]types.KeysAndAttributes{d.table: {Keys: keys, ConsistentRead: aws.Bool(true)}}
		for len(request) > 0 {
			res, err := d.client.BatchGetItem(ctx, &dynamodb.BatchGetItemInput{RequestItems: request})
			if err != nil {
				return nil, fmt.Errorf("dynamodb BatchGetItem failed: %w", err)
			}
			for _, item := range res.Responses[d.table] {
				var dt ddbTransaction
				if err := attributevalue.UnmarshalMap(item, &dt); err != nil {
					return nil, fmt.Errorf("unmarshal item: %w", err)
				}
				t := fromDDB(dt)
				if status != nil && t.Status != *status {
					continue
				}
				out = append(out, t)
			}
			request = res.UnprocessedKeys
		}
	}
	return out, nil
}

// Scan reads the whole table and filters in process.
func (d *DynamoTransactionRepository) Scan(ctx context.Context, filter TransactionFilter) ([]models.Transaction, error) {
	var results []models.Transaction
	paginator := dynamodb.NewScanPaginator(d.client, &dynamodb.ScanInput{TableName: &d.table, ConsistentRead: aws.Bool(true)})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("scan page failed: %w", err)
		}
		for _, it := range page.Items {
			var dt ddbTransaction
			if err := attributevalue.UnmarshalMap(it, &dt); err != nil {
				return nil, fmt.Errorf("unmarshal item: %w", err)
			}
			t := fromDDB(dt)
			if filter.Matches(&t) {
				results = append(results, t)
			}
		}
	}
	sortNewestFirst(results)
	return results, nil
}

func (d *DynamoTransactionRepository) Count(ctx context.Context, filter TransactionFilter) (int64, error) {
	txns, err := d.Scan(ctx, filter)
	if err != nil {
		return 0, err
	}
	return int64(len(txns)), nil
}

// Update writes the item back only if its version is unchanged since it was read.
func (d *DynamoTransactionRepository) Update(ctx context.Context, txnIDHash string, mutate MutateFunc) (*models.Transaction, error) {
	for attempt := 0; attempt < maxCASAttempts; attempt++ {
		row, err := d.FindByHash(ctx, txnIDHash)
		if err != nil {
			return nil, err
		}
		prev := row.Version

		if err := mutate(row); err != nil {
			return nil, err
		}
		row.TxnIDHash = txnIDHash
		row.Version = prev + 1
		row.UpdatedAt = time.Now().UTC()

		item, err := attributevalue.MarshalMap(toDDB(row))
		if err != nil {
			return nil, fmt.Errorf("marshal transaction: %w", err)
		}
		cond := "#v = :v"
		if prev == 0 {
			cond = "attribute_not_exists(#v) OR #v = :v"
		}
		_, err = d.client.PutItem(ctx, &dynamodb.PutItemInput{
			TableName:                &d.table,
			Item:                     item,
			ConditionExpression:      aws.String(cond),
			ExpressionAttributeNames: map[string]string{"#v": "version"},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":v": &types.AttributeValueMemberN{Value: strconv.FormatInt(prev, 10)},
			},
		})
		if err == nil {
			return row, nil
		}
		var ccf *types.ConditionalCheckFailedException
		if !errors.As(err, &ccf) {
			return nil, fmt.Errorf("dynamodb PutItem failed: %w", err)
		}
	}
	return nil, ErrConcurrentUpdate
}
