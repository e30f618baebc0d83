package admin

import "encoding/json"

// flagKind は管理者フラグとして受け入れる値の型。
type flagKind int

const (
	flagBool flagKind = iota
	flagInt
	flagString
)

// flagValue は「真」とみなす表現の1つ。
type flagValue struct {
	kind flagKind
	b    bool
	i    int64
	s    string
}

// truthyFlags は管理者フラグの真値として受け入れる表現の一覧。
// これ以外の値（"N"、0、false、"true"等）はすべて偽として扱う。
var truthyFlags = []flagValue{
	{kind: flagBool, b: true},
	{kind: flagInt, i: 1},
	{kind: flagString, s: "1"},
	{kind: flagString, s: "Y"},
	{kind: flagString, s: "y"},
}

// classify はユーザーレコードの値をflagValueに変換する。
// 対応しない型の場合はokがfalseになる。
func classify(v any) (flagValue, bool) {
	switch x := v.(type) {
	case bool:
		return flagValue{kind: flagBool, b: x}, true
	case string:
		return flagValue{kind: flagString, s: x}, true
	case int:
		return flagValue{kind: flagInt, i: int64(x)}, true
	case int8:
		return flagValue{kind: flagInt, i: int64(x)}, true
	case int16:
		return flagValue{kind: flagInt, i: int64(x)}, true
	case int32:
		return flagValue{kind: flagInt, i: int64(x)}, true
	case int64:
		return flagValue{kind: flagInt, i: x}, true
	case uint:
		return flagValue{kind: flagInt, i: int64(x)}, true
	case uint8:
		return flagValue{kind: flagInt, i: int64(x)}, true
	case uint16:
		return flagValue{kind: flagInt, i: int64(x)}, true
	case uint32:
		return flagValue{kind: flagInt, i: int64(x)}, true
	case uint64:
		if x > 1 {
			return flagValue{}, false
		}
		return flagValue{kind: flagInt, i: int64(x)}, true
	case float64:
		// JSONの数値はfloat64としてデコードされる
		if x != float64(int64(x)) {
			return flagValue{}, false
		}
		return flagValue{kind: flagInt, i: int64(x)}, true
	case json.Number:
		n, err := x.Int64()
		if err != nil {
			return flagValue{}, false
		}
		return flagValue{kind: flagInt, i: n}, true
	default:
		return flagValue{}, false
	}
}

// isTruthyFlag は値がtruthyFlagsのいずれかと一致するかを返す。
func isTruthyFlag(v any) bool {
	fv, ok := classify(v)
	if !ok {
		return false
	}
	for _, accepted := range truthyFlags {
		if accepted == fv {
			return true
		}
	}
	return false
}
