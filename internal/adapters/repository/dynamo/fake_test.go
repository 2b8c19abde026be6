package dynamo

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type item = map[string]types.AttributeValue

// fakeDynamo is an in-memory table set that understands exactly the
// expressions the store issues.
type fakeDynamo struct {
	mu       sync.Mutex
	tables   map[string]map[string]item
	failNext error
	queries  []string
	scans    int
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{tables: map[string]map[string]item{}}
}

func (f *fakeDynamo) takeFailure() error {
	err := f.failNext
	f.failNext = nil
	return err
}

func (f *fakeDynamo) table(name string) map[string]item {
	t, ok := f.tables[name]
	if !ok {
		t = map[string]item{}
		f.tables[name] = t
	}
	return t
}

func str(v types.AttributeValue) string {
	switch a := v.(type) {
	case *types.AttributeValueMemberS:
		return a.Value
	case *types.AttributeValueMemberN:
		return a.Value
	case *types.AttributeValueMemberBOOL:
		return fmt.Sprint(a.Value)
	}
	return ""
}

func pk(table string, it item) string {
	if strings.HasSuffix(table, "rating_history") {
		return str(it["user_id"]) + "#" + str(it["id"])
	}
	return str(it["id"])
}

func copyItem(it item) item {
	if it == nil {
		return nil
	}
	out := make(item, len(it))
	for k, v := range it {
		out[k] = v
	}
	return out
}

func (f *fakeDynamo) check(cond *string, cur item, values item) bool {
	switch aws.ToString(cond) {
	case "":
		return true
	case condNotExists:
		return cur == nil
	case condVersion:
		return cur != nil && str(cur["version"]) == str(values[":expected"])
	case condPending:
		return cur != nil && str(cur["version"]) == str(values[":expected"]) && str(cur["rating_pending"]) == "true"
	case condElo:
		return cur != nil && str(cur["elo"]) == str(values[":old"])
	}
	panic("unexpected condition " + aws.ToString(cond))
}

func (f *fakeDynamo) apply(expr string, cur item, key item, values item) item {
	next := copyItem(cur)
	if next == nil {
		next = copyItem(key)
	}
	switch expr {
	case updUpsertUser:
		next["display_name"] = values[":name"]
		next["skill_level"] = values[":skill"]
		next["updated_at"] = values[":now"]
		if _, ok := next["elo"]; !ok {
			next["elo"] = values[":elo"]
		}
		if _, ok := next["created_at"]; !ok {
			next["created_at"] = values[":now"]
		}
	case updClearPending:
		next["version"] = values[":next"]
		next["rating_pending"] = values[":false"]
		next["doc"] = values[":doc"]
		delete(next, "pending")
	case updElo:
		next["elo"] = values[":new"]
		next["updated_at"] = values[":at"]
	default:
		panic("unexpected update " + expr)
	}
	return next
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure(); err != nil {
		return nil, err
	}
	t := f.table(aws.ToString(in.TableName))
	return &dynamodb.GetItemOutput{Item: copyItem(t[pk(aws.ToString(in.TableName), in.Key)])}, nil
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure(); err != nil {
		return nil, err
	}
	name := aws.ToString(in.TableName)
	t := f.table(name)
	k := pk(name, in.Item)
	cur := t[k]
	if !f.check(in.ConditionExpression, cur, in.ExpressionAttributeValues) {
		ccf := &types.ConditionalCheckFailedException{Message: aws.String("The conditional request failed")}
		if in.ReturnValuesOnConditionCheckFailure == types.ReturnValuesOnConditionCheckFailureAllOld {
			ccf.Item = copyItem(cur)
		}
		return nil, ccf
	}
	t[k] = copyItem(in.Item)
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) UpdateItem(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure(); err != nil {
		return nil, err
	}
	name := aws.ToString(in.TableName)
	t := f.table(name)
	k := pk(name, in.Key)
	if !f.check(in.ConditionExpression, t[k], in.ExpressionAttributeValues) {
		return nil, &types.ConditionalCheckFailedException{Message: aws.String("The conditional request failed")}
	}
	t[k] = f.apply(aws.ToString(in.UpdateExpression), t[k], in.Key, in.ExpressionAttributeValues)
	return &dynamodb.UpdateItemOutput{Attributes: copyItem(t[k])}, nil
}

func (f *fakeDynamo) Scan(_ context.Context, in *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure(); err != nil {
		return nil, err
	}
	f.scans++
	out := &dynamodb.ScanOutput{}
	for _, it := range f.table(aws.ToString(in.TableName)) {
		out.Items = append(out.Items, copyItem(it))
	}
	return out, nil
}

func (f *fakeDynamo) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure(); err != nil {
		return nil, err
	}
	f.queries = append(f.queries, aws.ToString(in.TableName)+"/"+aws.ToString(in.IndexName))
	switch aws.ToString(in.KeyConditionExpression) {
	case keyHistory:
	case keyPending:
		return f.queryPending(in), nil
	default:
		panic("unexpected key condition " + aws.ToString(in.KeyConditionExpression))
	}
	user := str(in.ExpressionAttributeValues[":user"])
	var items []item
	for _, it := range f.table(aws.ToString(in.TableName)) {
		if str(it["user_id"]) == user {
			items = append(items, copyItem(it))
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if aws.ToBool(in.ScanIndexForward) {
			return str(items[i]["id"]) < str(items[j]["id"])
		}
		return str(items[i]["id"]) > str(items[j]["id"])
	})
	if in.Limit != nil && int(*in.Limit) < len(items) {
		items = items[:*in.Limit]
	}
	return &dynamodb.QueryOutput{Items: items}, nil
}

// queryPending serves the sparse index one item per page so callers must
// follow LastEvaluatedKey.
func (f *fakeDynamo) queryPending(in *dynamodb.QueryInput) *dynamodb.QueryOutput {
	want := str(in.ExpressionAttributeValues[":pending"])
	var ids []string
	for id, it := range f.table(aws.ToString(in.TableName)) {
		if v, ok := it["pending"]; ok && str(v) == want {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	after := ""
	if in.ExclusiveStartKey != nil {
		after = str(in.ExclusiveStartKey["id"])
	}
	for _, id := range ids {
		if id <= after {
			continue
		}
		out := &dynamodb.QueryOutput{Count: 1, LastEvaluatedKey: idItem(id)}
		if in.Select != types.SelectCount {
			out.Items = []item{copyItem(f.table(aws.ToString(in.TableName))[id])}
		}
		return out
	}
	return &dynamodb.QueryOutput{}
}

func idItem(id string) item {
	return item{"id": &types.AttributeValueMemberS{Value: id}}
}

func (f *fakeDynamo) TransactWriteItems(_ context.Context, in *dynamodb.TransactWriteItemsInput, _ ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure(); err != nil {
		return nil, err
	}
	reasons := make([]types.CancellationReason, len(in.TransactItems))
	failed := false
	for i, ti := range in.TransactItems {
		reasons[i].Code = aws.String("None")
		var ok bool
		switch {
		case ti.Update != nil:
			name := aws.ToString(ti.Update.TableName)
			ok = f.check(ti.Update.ConditionExpression, f.table(name)[pk(name, ti.Update.Key)], ti.Update.ExpressionAttributeValues)
		case ti.Put != nil:
			name := aws.ToString(ti.Put.TableName)
			ok = f.check(ti.Put.ConditionExpression, f.table(name)[pk(name, ti.Put.Item)], ti.Put.ExpressionAttributeValues)
		}
		if !ok {
			reasons[i].Code = aws.String("ConditionalCheckFailed")
			failed = true
		}
	}
	if failed {
		return nil, &types.TransactionCanceledException{
			Message:             aws.String("Transaction cancelled"),
			CancellationReasons: reasons,
		}
	}
	for _, ti := range in.TransactItems {
		switch {
		case ti.Update != nil:
			name := aws.ToString(ti.Update.TableName)
			t := f.table(name)
			k := pk(name, ti.Update.Key)
			t[k] = f.apply(aws.ToString(ti.Update.UpdateExpression), t[k], ti.Update.Key, ti.Update.ExpressionAttributeValues)
		case ti.Put != nil:
			name := aws.ToString(ti.Put.TableName)
			f.table(name)[pk(name, ti.Put.Item)] = copyItem(ti.Put.Item)
		}
	}
	return &dynamodb.TransactWriteItemsOutput{}, nil
}

func (f *fakeDynamo) CreateTable(_ context.Context, in *dynamodb.CreateTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	name := aws.ToString(in.TableName)
	if _, ok := f.tables[name]; ok {
		return nil, &types.ResourceInUseException{Message: aws.String("table exists")}
	}
	f.tables[name] = map[string]item{}
	return &dynamodb.CreateTableOutput{}, nil
}

var _ API = (*fakeDynamo)(nil)
