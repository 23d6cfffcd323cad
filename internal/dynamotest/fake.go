// Package dynamotest provides an in-memory DynamoDB used by the store and
// handler tests. It understands the subset of the expression language the
// stores emit: SET assignments with + / - and if_not_exists, and conditions
// built from comparisons, attribute_exists and attribute_not_exists joined
// by AND / OR.
package dynamotest

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type Item = map[string]types.AttributeValue

type table struct {
	hashKey  string
	rangeKey string
	items    map[string]Item
}

// Fake is a concurrency-safe in-memory DynamoDB. Every operation holds one
// lock, so conditional writes behave atomically the way the service does.
type Fake struct {
	mu     sync.Mutex
	tables map[string]*table
	fail   map[string][]error
	calls  map[string]int

	// AfterGetItem, when set, runs after every GetItem outside the lock.
	// Tests use it to line goroutines up between a read and a write.
	AfterGetItem func(table string)
}

// New returns an empty Fake.
func New() *Fake {
	return &Fake{
		tables: map[string]*table{},
		fail:   map[string][]error{},
		calls:  map[string]int{},
	}
}

// CreateTable registers a table. rangeKey may be empty.
func (f *Fake) CreateTable(name, hashKey, rangeKey string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tables[name] = &table{hashKey: hashKey, rangeKey: rangeKey, items: map[string]Item{}}
}

// FailNext makes the next call of op ("GetItem", "PutItem", "UpdateItem",
// "TransactWriteItems") against tableName return err. For transactions the
// table is ignored; use "*".
func (f *Fake) FailNext(op, tableName string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := op + "/" + tableName
	f.fail[k] = append(f.fail[k], err)
}

// Calls returns how many times op hit tableName ("*" for transactions).
func (f *Fake) Calls(op, tableName string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op+"/"+tableName]
}

// Seed marshals v with attributevalue and stores it unconditionally.
func (f *Fake) Seed(tableName string, v interface{}) error {
	item, err := attributevalue.MarshalMap(v)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	t, err := f.table(tableName)
	if err != nil {
		return err
	}
	k, err := t.keyOf(item)
	if err != nil {
		return err
	}
	t.items[k] = copyItem(item)
	return nil
}

// Get returns a copy of the stored item, or nil.
func (f *Fake) Get(tableName string, key ...string) Item {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tables[tableName]
	if !ok {
		return nil
	}
	item, ok := t.items[strings.Join(key, "|")]
	if !ok {
		return nil
	}
	return copyItem(item)
}

// Load unmarshals the stored item into out. It reports false when absent.
func (f *Fake) Load(tableName string, out interface{}, key ...string) (bool, error) {
	item := f.Get(tableName, key...)
	if item == nil {
		return false, nil
	}
	return true, attributevalue.UnmarshalMap(item, out)
}

// Len is the number of items in tableName.
func (f *Fake) Len(tableName string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t, ok := f.tables[tableName]; ok {
		return len(t.items)
	}
	return 0
}

func (f *Fake) enter(op, tableName string) error {
	k := op + "/" + tableName
	f.calls[k]++
	if errs := f.fail[k]; len(errs) > 0 {
		f.fail[k] = errs[1:]
		return errs[0]
	}
	return nil
}

func (f *Fake) table(name string) (*table, error) {
	t, ok := f.tables[name]
	if !ok {
		return nil, &types.ResourceNotFoundException{Message: sdkaws.String("table not found: " + name)}
	}
	return t, nil
}

func (t *table) keyOf(item Item) (string, error) {
	hv, err := keyPart(item, t.hashKey)
	if err != nil {
		return "", err
	}
	if t.rangeKey == "" {
		return hv, nil
	}
	rv, err := keyPart(item, t.rangeKey)
	if err != nil {
		return "", err
	}
	return hv + "|" + rv, nil
}

func keyPart(item Item, name string) (string, error) {
	switch v := item[name].(type) {
	case *types.AttributeValueMemberS:
		return v.Value, nil
	case *types.AttributeValueMemberN:
		return v.Value, nil
	default:
		return "", fmt.Errorf("missing key attribute %q", name)
	}
}

func (f *Fake) GetItem(ctx context.Context, in *dyn.GetItemInput, optFns ...func(*dyn.Options)) (*dyn.GetItemOutput, error) {
	name := sdkaws.ToString(in.TableName)
	out, err := func() (*dyn.GetItemOutput, error) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if err := f.enter("GetItem", name); err != nil {
			return nil, err
		}
		t, err := f.table(name)
		if err != nil {
			return nil, err
		}
		k, err := t.keyOf(in.Key)
		if err != nil {
			return nil, err
		}
		item, ok := t.items[k]
		if !ok {
			return &dyn.GetItemOutput{}, nil
		}
		return &dyn.GetItemOutput{Item: copyItem(item)}, nil
	}()
	if err == nil && f.AfterGetItem != nil {
		f.AfterGetItem(name)
	}
	return out, err
}

func (f *Fake) PutItem(ctx context.Context, in *dyn.PutItemInput, optFns ...func(*dyn.Options)) (*dyn.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	name := sdkaws.ToString(in.TableName)
	if err := f.enter("PutItem", name); err != nil {
		return nil, err
	}
	w, err := f.preparePut(name, in.Item, in.ConditionExpression, in.ExpressionAttributeNames, in.ExpressionAttributeValues)
	if err != nil {
		return nil, err
	}
	if !w.ok {
		return nil, conditionFailed()
	}
	w.apply()
	return &dyn.PutItemOutput{}, nil
}

func (f *Fake) UpdateItem(ctx context.Context, in *dyn.UpdateItemInput, optFns ...func(*dyn.Options)) (*dyn.UpdateItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	name := sdkaws.ToString(in.TableName)
	if err := f.enter("UpdateItem", name); err != nil {
		return nil, err
	}
	w, err := f.prepareUpdate(name, in.Key, in.UpdateExpression, in.ConditionExpression, in.ExpressionAttributeNames, in.ExpressionAttributeValues)
	if err != nil {
		return nil, err
	}
	if !w.ok {
		return nil, conditionFailed()
	}
	w.apply()
	return &dyn.UpdateItemOutput{Attributes: copyItem(w.next)}, nil
}

func (f *Fake) TransactWriteItems(ctx context.Context, in *dyn.TransactWriteItemsInput, optFns ...func(*dyn.Options)) (*dyn.TransactWriteItemsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("TransactWriteItems", "*"); err != nil {
		return nil, err
	}

	writes := make([]*write, 0, len(in.TransactItems))
	reasons := make([]types.CancellationReason, len(in.TransactItems))
	canceled := false
	for i, ti := range in.TransactItems {
		var (
			w   *write
			err error
		)
		switch {
		case ti.Put != nil:
			p := ti.Put
			w, err = f.preparePut(sdkaws.ToString(p.TableName), p.Item, p.ConditionExpression, p.ExpressionAttributeNames, p.ExpressionAttributeValues)
		case ti.Update != nil:
			u := ti.Update
			w, err = f.prepareUpdate(sdkaws.ToString(u.TableName), u.Key, u.UpdateExpression, u.ConditionExpression, u.ExpressionAttributeNames, u.ExpressionAttributeValues)
		case ti.ConditionCheck != nil:
			c := ti.ConditionCheck
			w, err = f.prepareCheck(sdkaws.ToString(c.TableName), c.Key, c.ConditionExpression, c.ExpressionAttributeNames, c.ExpressionAttributeValues)
		default:
			err = errors.New("unsupported transact item")
		}
		if err != nil {
			return nil, err
		}
		reasons[i] = types.CancellationReason{Code: sdkaws.String("None")}
		if !w.ok {
			canceled = true
			reasons[i] = types.CancellationReason{
				Code:    sdkaws.String("ConditionalCheckFailed"),
				Message: sdkaws.String("The conditional request failed"),
			}
		}
		writes = append(writes, w)
	}
	if canceled {
		return nil, &types.TransactionCanceledException{
			Message:             sdkaws.String("Transaction cancelled, please refer cancellation reasons for specific reasons"),
			CancellationReasons: reasons,
		}
	}
	for _, w := range writes {
		w.apply()
	}
	return &dyn.TransactWriteItemsOutput{}, nil
}

// write is a prepared mutation whose condition has already been evaluated.
type write struct {
	t    *table
	key  string
	next Item
	ok   bool
}

func (w *write) apply() {
	if w.next != nil {
		w.t.items[w.key] = w.next
	}
}

func (f *Fake) preparePut(name string, item Item, cond *string, names map[string]string, values Item) (*write, error) {
	t, err := f.table(name)
	if err != nil {
		return nil, err
	}
	k, err := t.keyOf(item)
	if err != nil {
		return nil, err
	}
	ok, err := evalCondition(sdkaws.ToString(cond), t.items[k], names, values)
	if err != nil {
		return nil, err
	}
	return &write{t: t, key: k, next: copyItem(item), ok: ok}, nil
}

func (f *Fake) prepareUpdate(name string, key Item, update, cond *string, names map[string]string, values Item) (*write, error) {
	t, err := f.table(name)
	if err != nil {
		return nil, err
	}
	k, err := t.keyOf(key)
	if err != nil {
		return nil, err
	}
	current := t.items[k]
	ok, err := evalCondition(sdkaws.ToString(cond), current, names, values)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &write{t: t, key: k, ok: false}, nil
	}

	next := copyItem(current)
	if next == nil {
		next = copyItem(key)
	}
	if err := applyUpdate(sdkaws.ToString(update), current, next, names, values); err != nil {
		return nil, err
	}
	return &write{t: t, key: k, next: next, ok: true}, nil
}

func (f *Fake) prepareCheck(name string, key Item, cond *string, names map[string]string, values Item) (*write, error) {
	t, err := f.table(name)
	if err != nil {
		return nil, err
	}
	k, err := t.keyOf(key)
	if err != nil {
		return nil, err
	}
	ok, err := evalCondition(sdkaws.ToString(cond), t.items[k], names, values)
	if err != nil {
		return nil, err
	}
	return &write{t: t, key: k, ok: ok}, nil
}

func conditionFailed() error {
	return &types.ConditionalCheckFailedException{Message: sdkaws.String("The conditional request failed")}
}

func copyItem(item Item) Item {
	if item == nil {
		return nil
	}
	out := make(Item, len(item))
	for k, v := range item {
		out[k] = v
	}
	return out
}

// --- expressions ---

func evalCondition(expr string, item Item, names map[string]string, values Item) (bool, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return true, nil
	}
	for _, disjunct := range strings.Split(expr, " OR ") {
		all := true
		for _, term := range strings.Split(disjunct, " AND ") {
			ok, err := evalTerm(strings.TrimSpace(term), item, names, values)
			if err != nil {
				return false, err
			}
			if !ok {
				all = false
				break
			}
		}
		if all {
			return true, nil
		}
	}
	return false, nil
}

func evalTerm(term string, item Item, names map[string]string, values Item) (bool, error) {
	if strings.HasPrefix(term, "(") && strings.HasSuffix(term, ")") {
		term = strings.TrimSpace(term[1 : len(term)-1])
	}
	if arg, ok := call(term, "attribute_exists"); ok {
		_, present := item[resolveName(arg, names)]
		return present, nil
	}
	if arg, ok := call(term, "attribute_not_exists"); ok {
		_, present := item[resolveName(arg, names)]
		return !present, nil
	}
	for _, op := range []string{">=", "<=", "<>", "=", "<", ">"} {
		if i := strings.Index(term, " "+op+" "); i >= 0 {
			left, err := operand(strings.TrimSpace(term[:i]), item, names, values)
			if err != nil {
				return false, err
			}
			right, err := operand(strings.TrimSpace(term[i+len(op)+2:]), item, names, values)
			if err != nil {
				return false, err
			}
			if left == nil || right == nil {
				return false, nil
			}
			return compare(left, right, op)
		}
	}
	return false, fmt.Errorf("unsupported condition term %q", term)
}

func applyUpdate(expr string, current, next Item, names map[string]string, values Item) error {
	expr = strings.TrimSpace(expr)
	if !strings.HasPrefix(expr, "SET ") {
		return fmt.Errorf("unsupported update expression %q", expr)
	}
	for _, assign := range splitTopLevel(strings.TrimPrefix(expr, "SET ")) {
		parts := strings.SplitN(assign, "=", 2)
		if len(parts) != 2 {
			return fmt.Errorf("bad assignment %q", assign)
		}
		target := resolveName(strings.TrimSpace(parts[0]), names)
		v, err := valueExpr(strings.TrimSpace(parts[1]), current, names, values)
		if err != nil {
			return err
		}
		next[target] = v
	}
	return nil
}

func valueExpr(expr string, item Item, names map[string]string, values Item) (types.AttributeValue, error) {
	for _, op := range []string{" + ", " - "} {
		if i := strings.LastIndex(expr, op); i >= 0 {
			left, err := operand(strings.TrimSpace(expr[:i]), item, names, values)
			if err != nil {
				return nil, err
			}
			right, err := operand(strings.TrimSpace(expr[i+len(op):]), item, names, values)
			if err != nil {
				return nil, err
			}
			a, errA := number(left)
			b, errB := number(right)
			if errA != nil || errB != nil {
				return nil, fmt.Errorf("arithmetic on non-numbers in %q", expr)
			}
			if op == " + " {
				return formatNumber(a + b), nil
			}
			return formatNumber(a - b), nil
		}
	}
	v, err := operand(expr, item, names, values)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, fmt.Errorf("operand %q is missing", expr)
	}
	return v, nil
}

func operand(token string, item Item, names map[string]string, values Item) (types.AttributeValue, error) {
	if args, ok := call(token, "if_not_exists"); ok {
		parts := splitTopLevel(args)
		if len(parts) != 2 {
			return nil, fmt.Errorf("bad if_not_exists %q", token)
		}
		if v, present := item[resolveName(parts[0], names)]; present {
			return v, nil
		}
		return operand(parts[1], item, names, values)
	}
	if strings.HasPrefix(token, ":") {
		v, ok := values[token]
		if !ok {
			return nil, fmt.Errorf("missing expression value %s", token)
		}
		return v, nil
	}
	return item[resolveName(token, names)], nil
}

func call(term, fn string) (string, bool) {
	if !strings.HasPrefix(term, fn+"(") || !strings.HasSuffix(term, ")") {
		return "", false
	}
	return strings.TrimSpace(term[len(fn)+1 : len(term)-1]), true
}

func resolveName(token string, names map[string]string) string {
	token = strings.TrimSpace(token)
	if strings.HasPrefix(token, "#") {
		if n, ok := names[token]; ok {
			return n
		}
	}
	return token
}

func splitTopLevel(s string) []string {
	var (
		out   []string
		depth int
		start int
	)
	for i, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				out = append(out, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	return append(out, strings.TrimSpace(s[start:]))
}

func compare(a, b types.AttributeValue, op string) (bool, error) {
	if x, err := number(a); err == nil {
		y, err := number(b)
		if err != nil {
			return false, nil
		}
		switch op {
		case ">=":
			return x >= y, nil
		case "<=":
			return x <= y, nil
		case "<":
			return x < y, nil
		case ">":
			return x > y, nil
		case "=":
			return x == y, nil
		default:
			return x != y, nil
		}
	}
	as, aok := a.(*types.AttributeValueMemberS)
	bs, bok := b.(*types.AttributeValueMemberS)
	if aok && bok {
		switch op {
		case "=":
			return as.Value == bs.Value, nil
		case "<>":
			return as.Value != bs.Value, nil
		case ">=":
			return as.Value >= bs.Value, nil
		case "<=":
			return as.Value <= bs.Value, nil
		case "<":
			return as.Value < bs.Value, nil
		default:
			return as.Value > bs.Value, nil
		}
	}
	ab, aok := a.(*types.AttributeValueMemberBOOL)
	bb, bok := b.(*types.AttributeValueMemberBOOL)
	if aok && bok {
		switch op {
		case "=":
			return ab.Value == bb.Value, nil
		case "<>":
			return ab.Value != bb.Value, nil
		}
	}
	return false, nil
}

func number(v types.AttributeValue) (float64, error) {
	n, ok := v.(*types.AttributeValueMemberN)
	if !ok {
		return 0, errors.New("not a number")
	}
	return strconv.ParseFloat(n.Value, 64)
}

func formatNumber(f float64) types.AttributeValue {
	return &types.AttributeValueMemberN{Value: strconv.FormatFloat(f, 'f', -1, 64)}
}
