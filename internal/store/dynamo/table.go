package dynamo

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/sakif/matchday-predictor/internal/store"
)

const tableReadyTimeout = 2 * time.Minute

// compile-time check
var _ store.Table = (*Table)(nil)

// Table maps store.Table calls onto one DynamoDB table.
type Table struct {
	client API
	schema store.Schema
}

// NewTable binds schema to a DynamoDB table of the same name.
func NewTable(client API, schema store.Schema) *Table {
	return &Table{client: client, schema: schema}
}

func (t *Table) Schema() store.Schema { return t.schema }

func (t *Table) Put(ctx context.Context, item store.Item) error {
	if _, err := t.schema.KeyOf(item); err != nil {
		return err
	}
	av, err := attributevalue.MarshalMap(map[string]any(item))
	if err != nil {
		return fmt.Errorf("dynamo: marshal %s item: %w", t.schema.Name, err)
	}
	_, err = t.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(t.schema.Name),
		Item:      av,
	})
	if err != nil {
		return fmt.Errorf("dynamo: put %s: %w", t.schema.Name, err)
	}
	return nil
}

// Insert is a PutItem guarded by attribute_not_exists(pk).
func (t *Table) Insert(ctx context.Context, item store.Item) error {
	if _, err := t.schema.KeyOf(item); err != nil {
		return err
	}
	av, err := attributevalue.MarshalMap(map[string]any(item))
	if err != nil {
		return fmt.Errorf("dynamo: marshal %s item: %w", t.schema.Name, err)
	}
	expr, err := expression.NewBuilder().
		WithCondition(expression.AttributeNotExists(expression.Name(t.schema.PartitionKey))).
		Build()
	if err != nil {
		return fmt.Errorf("dynamo: build insert for %s: %w", t.schema.Name, err)
	}

	_, err = t.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(t.schema.Name),
		Item:                     av,
		ConditionExpression:      expr.Condition(),
		ExpressionAttributeNames: expr.Names(),
	})
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return store.ErrConditionFailed
	}
	if err != nil {
		return fmt.Errorf("dynamo: insert %s: %w", t.schema.Name, err)
	}
	return nil
}

func (t *Table) Get(ctx context.Context, key store.Key) (store.Item, error) {
	av, err := t.keyAV(key)
	if err != nil {
		return nil, err
	}
	out, err := t.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(t.schema.Name),
		Key:            av,
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("dynamo: get %s: %w", t.schema.Name, err)
	}
	if len(out.Item) == 0 {
		return nil, store.ErrNotFound
	}
	return unmarshalItem(out.Item)
}

// Update writes set under attribute_exists(pk) AND cond. The old item is
// returned on a failed condition so a missing key can be told apart from a
// condition that did not hold.
func (t *Table) Update(ctx context.Context, key store.Key, set map[string]any, cond store.Filter) error {
	av, err := t.keyAV(key)
	if err != nil {
		return err
	}

	attrs := make([]string, 0, len(set))
	for attr := range set {
		if !t.schema.IsKeyAttr(attr) {
			attrs = append(attrs, attr)
		}
	}
	if len(attrs) == 0 {
		item, err := t.Get(ctx, key)
		if err != nil {
			return err
		}
		if !cond.Matches(item) {
			return store.ErrConditionFailed
		}
		return nil
	}
	sort.Strings(attrs)

	var update expression.UpdateBuilder
	for _, attr := range attrs {
		update = update.Set(expression.Name(attr), expression.Value(set[attr]))
	}
	expr, err := expression.NewBuilder().
		WithUpdate(update).
		WithCondition(t.existsAnd(cond)).
		Build()
	if err != nil {
		return fmt.Errorf("dynamo: build update for %s: %w", t.schema.Name, err)
	}

	_, err = t.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                           aws.String(t.schema.Name),
		Key:                                 av,
		UpdateExpression:                    expr.Update(),
		ConditionExpression:                 expr.Condition(),
		ExpressionAttributeNames:            expr.Names(),
		ExpressionAttributeValues:           expr.Values(),
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	})
	if err != nil {
		return t.mapConditionError("update", err)
	}
	return nil
}

// Increment uses ADD, which DynamoDB applies atomically and treats a
// missing attribute as zero.
func (t *Table) Increment(ctx context.Context, key store.Key, attr string, delta int) (int, error) {
	av, err := t.keyAV(key)
	if err != nil {
		return 0, err
	}
	expr, err := expression.NewBuilder().
		WithUpdate(expression.Add(expression.Name(attr), expression.Value(delta))).
		WithCondition(t.existsAnd(nil)).
		Build()
	if err != nil {
		return 0, fmt.Errorf("dynamo: build increment for %s: %w", t.schema.Name, err)
	}

	out, err := t.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(t.schema.Name),
		Key:                       av,
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ReturnValues:              types.ReturnValueUpdatedNew,
	})
	if err != nil {
		return 0, t.mapConditionError("increment", err)
	}

	n, ok := out.Attributes[attr].(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("dynamo: increment %s.%s: no numeric value returned", t.schema.Name, attr)
	}
	v, err := strconv.Atoi(n.Value)
	if err != nil {
		return 0, fmt.Errorf("dynamo: increment %s.%s: %w", t.schema.Name, attr, err)
	}
	return v, nil
}

func (t *Table) Scan(ctx context.Context, in store.ScanInput) (*store.ScanOutput, error) {
	input := &dynamodb.ScanInput{
		TableName: aws.String(t.schema.Name),
	}
	if in.Limit > 0 {
		input.Limit = aws.Int32(int32(in.Limit))
	}
	if in.StartKey != nil {
		start, err := t.keyAV(in.StartKey)
		if err != nil {
			return nil, err
		}
		input.ExclusiveStartKey = start
	}
	if cond, ok := conditionOf(in.Filter); ok {
		expr, err := expression.NewBuilder().WithFilter(cond).Build()
		if err != nil {
			return nil, fmt.Errorf("dynamo: build filter for %s: %w", t.schema.Name, err)
		}
		input.FilterExpression = expr.Filter()
		input.ExpressionAttributeNames = expr.Names()
		input.ExpressionAttributeValues = expr.Values()
	}

	out, err := t.client.Scan(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("dynamo: scan %s: %w", t.schema.Name, err)
	}

	result := &store.ScanOutput{Items: make([]store.Item, 0, len(out.Items))}
	for _, raw := range out.Items {
		item, err := unmarshalItem(raw)
		if err != nil {
			return nil, err
		}
		result.Items = append(result.Items, item)
	}
	if len(out.LastEvaluatedKey) > 0 {
		last := make(store.Key, len(out.LastEvaluatedKey))
		for attr, v := range out.LastEvaluatedKey {
			if s, ok := v.(*types.AttributeValueMemberS); ok {
				last[attr] = s.Value
			}
		}
		result.LastKey = last
	}
	return result, nil
}

// EnsureTable creates the table on first run (on-demand billing) and waits
// for it to become active. An existing table is left untouched.
func (t *Table) EnsureTable(ctx context.Context) error {
	_, err := t.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(t.schema.Name)})
	if err == nil {
		return nil
	}
	var notFound *types.ResourceNotFoundException
	if !errors.As(err, &notFound) {
		return fmt.Errorf("dynamo: describe %s: %w", t.schema.Name, err)
	}

	attrs := []types.AttributeDefinition{
		{AttributeName: aws.String(t.schema.PartitionKey), AttributeType: types.ScalarAttributeTypeS},
	}
	keys := []types.KeySchemaElement{
		{AttributeName: aws.String(t.schema.PartitionKey), KeyType: types.KeyTypeHash},
	}
	if t.schema.SortKey != "" {
		attrs = append(attrs, types.AttributeDefinition{AttributeName: aws.String(t.schema.SortKey), AttributeType: types.ScalarAttributeTypeS})
		keys = append(keys, types.KeySchemaElement{AttributeName: aws.String(t.schema.SortKey), KeyType: types.KeyTypeRange})
	}

	_, err = t.client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName:            aws.String(t.schema.Name),
		AttributeDefinitions: attrs,
		KeySchema:            keys,
		BillingMode:          types.BillingModePayPerRequest,
	})
	if err != nil {
		return fmt.Errorf("dynamo: create %s: %w", t.schema.Name, err)
	}

	waiter := dynamodb.NewTableExistsWaiter(t.client)
	if err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(t.schema.Name)}, tableReadyTimeout); err != nil {
		return fmt.Errorf("dynamo: waiting for %s: %w", t.schema.Name, err)
	}
	return nil
}

// Ping describes the table, reporting whether DynamoDB is reachable.
func (t *Table) Ping(ctx context.Context) error {
	_, err := t.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(t.schema.Name)})
	return err
}

func (t *Table) keyAV(key store.Key) (map[string]types.AttributeValue, error) {
	pk, sk, err := t.schema.Parts(key)
	if err != nil {
		return nil, err
	}
	av := map[string]types.AttributeValue{
		t.schema.PartitionKey: &types.AttributeValueMemberS{Value: pk},
	}
	if t.schema.SortKey != "" {
		av[t.schema.SortKey] = &types.AttributeValueMemberS{Value: sk}
	}
	return av, nil
}

func (t *Table) existsAnd(f store.Filter) expression.ConditionBuilder {
	exists := expression.AttributeExists(expression.Name(t.schema.PartitionKey))
	cond, ok := conditionOf(f)
	if !ok {
		return exists
	}
	return exists.And(cond)
}

func (t *Table) mapConditionError(op string, err error) error {
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		if len(ccf.Item) == 0 {
			return store.ErrNotFound
		}
		return store.ErrConditionFailed
	}
	return fmt.Errorf("dynamo: %s %s: %w", op, t.schema.Name, err)
}

func conditionOf(f store.Filter) (expression.ConditionBuilder, bool) {
	if len(f) == 0 {
		return expression.ConditionBuilder{}, false
	}
	conds := make([]expression.ConditionBuilder, len(f))
	for i, c := range f {
		conds[i] = expression.Name(c.Attr).Equal(expression.Value(c.Value))
	}
	if len(conds) == 1 {
		return conds[0], true
	}
	return expression.And(conds[0], conds[1], conds[2:]...), true
}

func unmarshalItem(av map[string]types.AttributeValue) (store.Item, error) {
	var item map[string]any
	if err := attributevalue.UnmarshalMap(av, &item); err != nil {
		return nil, fmt.Errorf("dynamo: unmarshal item: %w", err)
	}
	return store.Item(item), nil
}
