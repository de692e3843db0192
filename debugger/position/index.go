package position

import (
	"context"
	"fmt"

	"github.com/fansqz/lua-debugger/utils"
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/lua"
)

// Occurrence 变量在源码中的一次出现，行列从0开始
type Occurrence struct {
	Name      string
	Line      int
	Column    int
	EndColumn int
}

var luaKeywords = utils.List2set([]string{
	"and", "break", "do", "else", "elseif", "end", "false", "for", "function",
	"goto", "if", "in", "local", "nil", "not", "or", "repeat", "return", "then",
	"true", "until", "while", "self",
})

// functionTypes 具名函数语句和匿名函数，参数和函数体都是它们的直接子节点
var functionTypes = map[string]bool{
	"function_statement": true,
	"function":           true,
}

// scopeTypes 函数作用域内需要收集的子节点
var scopeTypes = map[string]bool{
	"parameter_list": true,
	"function_body":  true,
}

// memberSeparators 出现在这些符号之后的标识符是字段名或方法名
var memberSeparators = map[string]bool{
	".":               true,
	":":               true,
	"self_call_colon": true,
}

// Index 当前作用域内到暂停行为止的变量出现位置
type Index struct {
	line        int
	occurrences map[string][]Occurrence
	names       []string
}

// Build 解析lua源码，收集line所在的最内层函数（没有则整个文件）中
// 第line行及之前出现的标识符
func Build(ctx context.Context, content []byte, line int) (*Index, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(lua.GetLanguage())
	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, fmt.Errorf("parse lua source: %w", err)
	}
	defer tree.Close()

	index := &Index{
		line:        line,
		occurrences: make(map[string][]Occurrence),
	}
	root := tree.RootNode()
	scope := innermostFunction(root, line)
	if scope == nil {
		index.collect(root, content)
		return index, nil
	}
	for c := 0; c < int(scope.NamedChildCount()); c++ {
		if child := scope.NamedChild(c); scopeTypes[child.Type()] {
			index.collect(child, content)
		}
	}
	return index, nil
}

// innermostFunction 包含line的最深的函数节点
func innermostFunction(node *sitter.Node, line int) *sitter.Node {
	var answer *sitter.Node
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		if int(child.StartPoint().Row) > line || line > int(child.EndPoint().Row) {
			continue
		}
		if functionTypes[child.Type()] {
			answer = child
		}
		if inner := innermostFunction(child, line); inner != nil {
			answer = inner
		}
	}
	return answer
}

// collect 按源码顺序深度优先遍历
func (i *Index) collect(node *sitter.Node, content []byte) {
	if int(node.StartPoint().Row) > i.line {
		return
	}
	if node.Type() == "identifier" {
		name := node.Content(content)
		if !luaKeywords.Contains(name) && !isMemberName(node) {
			i.add(Occurrence{
				Name:      name,
				Line:      int(node.StartPoint().Row),
				Column:    int(node.StartPoint().Column),
				EndColumn: int(node.EndPoint().Column),
			})
		}
		return
	}
	for c := 0; c < int(node.NamedChildCount()); c++ {
		i.collect(node.NamedChild(c), content)
	}
}

// isMemberName a.b中的b、a:b()中的b、function a.b()中的b、{b = 1}中的b不是变量
func isMemberName(node *sitter.Node) bool {
	if prev := node.PrevSibling(); prev != nil && memberSeparators[prev.Type()] {
		return true
	}
	parent := node.Parent()
	if parent == nil || parent.Type() != "field" {
		return false
	}
	if name := parent.ChildByFieldName("name"); name != nil {
		return name.StartByte() == node.StartByte()
	}
	next := node.NextSibling()
	return next != nil && next.Type() == "="
}

func (i *Index) add(o Occurrence) {
	if _, ok := i.occurrences[o.Name]; !ok {
		i.names = append(i.names, o.Name)
	}
	i.occurrences[o.Name] = append(i.occurrences[o.Name], o)
}

// All 所有出现位置，按源码顺序
func (i *Index) All(name string) []Occurrence {
	return i.occurrences[name]
}

// Last 离暂停行最近的一次出现
func (i *Index) Last(name string) (Occurrence, bool) {
	list := i.occurrences[name]
	if len(list) == 0 {
		return Occurrence{}, false
	}
	return list[len(list)-1], true
}

// Names 按第一次出现的顺序
func (i *Index) Names() []string {
	return i.names
}
