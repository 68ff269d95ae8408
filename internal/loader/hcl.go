package loader

import (
	"math/big"
	"sort"

	"github.com/cockroachdb/errors"
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/vk/treeclimb/tree"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
)

// hclBuilder turns an HCL body into keyed containers. Object and tuple
// constructors are read syntactically so keys keep their source order; any
// other expression is evaluated and its cty value converted.
type hclBuilder struct {
	arena   *tree.Arena
	evalCtx *hcl.EvalContext
}

func decodeHCL(data []byte, filename string, o *options) (*tree.Tree, error) {
	file, diags := hclparse.NewParser().ParseHCL(data, filename)
	if diags.HasErrors() {
		return nil, errors.Wrapf(diags, "loader: parsing %s", filename)
	}
	body, ok := file.Body.(*hclsyntax.Body)
	if !ok {
		return nil, errors.Newf("loader: %s is not native HCL syntax", filename)
	}

	b := &hclBuilder{
		arena:   tree.NewArena(),
		evalCtx: &hcl.EvalContext{Variables: map[string]cty.Value{"env": envValue(o.env)}},
	}
	root := b.arena.NewKeyed()
	if err := b.body(root, body); err != nil {
		return nil, errors.Wrapf(err, "loader: decoding %s", filename)
	}
	return &tree.Tree{Arena: b.arena, Root: root}, nil
}

func envValue(env map[string]string) cty.Value {
	if len(env) == 0 {
		return cty.MapValEmpty(cty.String)
	}
	vals := make(map[string]cty.Value, len(env))
	for k, v := range env {
		vals[k] = cty.StringVal(v)
	}
	return cty.MapVal(vals)
}

// body fills obj with the attributes and blocks of body, in source order.
// Blocks nest under their type and then each label; blocks sharing a path
// merge into the same container.
func (b *hclBuilder) body(obj tree.Value, body *hclsyntax.Body) error {
	type item struct {
		offset int
		attr   *hclsyntax.Attribute
		block  *hclsyntax.Block
	}
	items := make([]item, 0, len(body.Attributes)+len(body.Blocks))
	for _, attr := range body.Attributes {
		items = append(items, item{offset: attr.SrcRange.Start.Byte, attr: attr})
	}
	for _, block := range body.Blocks {
		items = append(items, item{offset: block.TypeRange.Start.Byte, block: block})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].offset < items[j].offset })

	for _, it := range items {
		if it.attr != nil {
			v, err := b.expr(it.attr.Expr)
			if err != nil {
				return errors.Wrapf(err, "attribute %q", it.attr.Name)
			}
			b.arena.Set(obj, it.attr.Name, v)
			continue
		}

		target := obj
		for _, key := range append([]string{it.block.Type}, it.block.Labels...) {
			target = b.keyedChild(target, key)
		}
		if err := b.body(target, it.block.Body); err != nil {
			return err
		}
	}
	return nil
}

// keyedChild returns the keyed container stored under key, creating it when
// the key is missing or holds something else.
func (b *hclBuilder) keyedChild(obj tree.Value, key string) tree.Value {
	if existing, ok := b.arena.Get(obj, key); ok && existing.Kind() == tree.KindKeyed {
		return existing
	}
	child := b.arena.NewKeyed()
	b.arena.Set(obj, key, child)
	return child
}

func (b *hclBuilder) expr(e hclsyntax.Expression) (tree.Value, error) {
	switch e := e.(type) {
	case *hclsyntax.ObjectConsExpr:
		obj := b.arena.NewKeyed()
		for _, item := range e.Items {
			key, err := b.objectKey(item.KeyExpr)
			if err != nil {
				return tree.Value{}, err
			}
			v, err := b.expr(item.ValueExpr)
			if err != nil {
				return tree.Value{}, errors.Wrapf(err, "key %q", key)
			}
			b.arena.Set(obj, key, v)
		}
		return obj, nil

	case *hclsyntax.TupleConsExpr:
		arr := b.arena.NewIndexed()
		for _, elem := range e.Exprs {
			v, err := b.expr(elem)
			if err != nil {
				return tree.Value{}, err
			}
			b.arena.Append(arr, v)
		}
		return arr, nil

	case *hclsyntax.ParenthesesExpr:
		return b.expr(e.Expression)
	}

	val, diags := e.Value(b.evalCtx)
	if diags.HasErrors() {
		return tree.Value{}, diags
	}
	return b.fromCty(val)
}

func (b *hclBuilder) objectKey(e hclsyntax.Expression) (string, error) {
	val, diags := e.Value(b.evalCtx)
	if diags.HasErrors() {
		return "", diags
	}
	key, err := convert.Convert(val, cty.String)
	if err != nil {
		return "", errors.Wrap(err, "object key")
	}
	if key.IsNull() || !key.IsKnown() {
		return "", errors.New("object key must be a known string")
	}
	return key.AsString(), nil
}

// fromCty converts an evaluated value. Integral numbers become int64 and
// other numbers float64. Object and map keys come out in lexical order.
func (b *hclBuilder) fromCty(v cty.Value) (tree.Value, error) {
	v, _ = v.UnmarkDeep()
	if v.IsNull() {
		return tree.Leaf(nil), nil
	}
	if !v.IsWhollyKnown() {
		return tree.Value{}, errors.New("value is not known")
	}

	ty := v.Type()
	switch {
	case ty == cty.String:
		return tree.Leaf(v.AsString()), nil
	case ty == cty.Bool:
		return tree.Leaf(v.True()), nil
	case ty == cty.Number:
		return tree.Leaf(number(v.AsBigFloat())), nil
	case ty.IsObjectType() || ty.IsMapType():
		obj := b.arena.NewKeyed()
		for it := v.ElementIterator(); it.Next(); {
			k, ev := it.Element()
			child, err := b.fromCty(ev)
			if err != nil {
				return tree.Value{}, err
			}
			b.arena.Set(obj, k.AsString(), child)
		}
		return obj, nil
	case ty.IsListType() || ty.IsTupleType() || ty.IsSetType():
		arr := b.arena.NewIndexed()
		for it := v.ElementIterator(); it.Next(); {
			_, ev := it.Element()
			child, err := b.fromCty(ev)
			if err != nil {
				return tree.Value{}, err
			}
			b.arena.Append(arr, child)
		}
		return arr, nil
	default:
		return tree.Value{}, errors.Newf("unsupported value type %s", ty.FriendlyName())
	}
}

func number(f *big.Float) any {
	if f.IsInt() {
		if i, acc := f.Int64(); acc == big.Exact {
			return i
		}
	}
	n, _ := f.Float64()
	return n
}
