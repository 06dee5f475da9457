package codescan

import (
	"context"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/java"
	"github.com/smacker/go-tree-sitter/python"

	"opstriage-agent/src/contracts"
)

// structuralPass parses the file with tree-sitter and applies language-level
// checks the line heuristics cannot express. Unsupported extensions are
// skipped; a file that fails to parse contributes a single LOW issue.
func structuralPass(ctx context.Context, f File) []contracts.CodeIssue {
	switch strings.ToLower(filepath.Ext(f.Path)) {
	case ".py":
		return pythonPass(ctx, f)
	case ".java":
		return javaPass(ctx, f)
	default:
		return nil
	}
}

func parseFile(ctx context.Context, lang *sitter.Language, f File) (*sitter.Tree, []byte, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(lang)
	content := []byte(f.Content)
	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, nil, err
	}
	return tree, content, nil
}

// walk visits every node in the tree depth-first.
func walk(node *sitter.Node, visit func(*sitter.Node)) {
	if node == nil {
		return
	}
	visit(node)
	for i := 0; i < int(node.ChildCount()); i++ {
		walk(node.Child(i), visit)
	}
}

// pythonPass flags functions with oversized parameter lists and bare except
// clauses.
func pythonPass(ctx context.Context, f File) []contracts.CodeIssue {
	tree, content, err := parseFile(ctx, python.GetLanguage(), f)
	if err != nil {
		return []contracts.CodeIssue{analysisErrorIssue(f.Path, err.Error())}
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		return []contracts.CodeIssue{analysisErrorIssue(f.Path, "source does not parse as Python")}
	}

	var issues []contracts.CodeIssue
	walk(root, func(node *sitter.Node) {
		switch node.Type() {
		case "function_definition":
			params := node.ChildByFieldName("parameters")
			if params != nil && int(params.NamedChildCount()) > 7 {
				name := "function"
				if n := node.ChildByFieldName("name"); n != nil {
					name = n.Content(content)
				}
				issues = append(issues, contracts.CodeIssue{
					File:        f.Path,
					Line:        int(node.StartPoint().Row) + 1,
					IssueType:   "TooManyParameters",
					Description: name + " takes more than 7 parameters",
					Severity:    contracts.SeverityMedium,
					Category:    contracts.CategorySmell,
				})
			}
		case "except_clause":
			// A bare except carries only its block as a named child.
			if int(node.NamedChildCount()) == 1 && node.NamedChild(0).Type() == "block" {
				issues = append(issues, contracts.CodeIssue{
					File:        f.Path,
					Line:        int(node.StartPoint().Row) + 1,
					IssueType:   "BareExcept",
					Description: "bare except swallows all exceptions",
					Severity:    contracts.SeverityMedium,
					Category:    contracts.CategoryGeneral,
				})
			}
		}
	})
	return issues
}

// Resource type fragments whose construction should be paired with cleanup.
var javaResourceTypes = []string{"Stream", "Connection", "Socket", "Reader", "Writer"}

// javaPass flags accessor invocations without a null guard in the enclosing
// statement and resource construction outside try-with-resources when the
// enclosing method never closes anything.
func javaPass(ctx context.Context, f File) []contracts.CodeIssue {
	tree, content, err := parseFile(ctx, java.GetLanguage(), f)
	if err != nil {
		return []contracts.CodeIssue{analysisErrorIssue(f.Path, err.Error())}
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		return []contracts.CodeIssue{analysisErrorIssue(f.Path, "source does not parse as Java")}
	}

	var issues []contracts.CodeIssue
	walk(root, func(node *sitter.Node) {
		switch node.Type() {
		case "method_invocation":
			name := node.ChildByFieldName("name")
			if name == nil {
				return
			}
			method := name.Content(content)
			if !strings.HasPrefix(method, "get") && !strings.HasPrefix(method, "fetch") && !strings.HasPrefix(method, "find") {
				return
			}
			stmt := enclosing(node, isStatementType)
			if stmt != nil && !strings.Contains(strings.ToLower(stmt.Content(content)), "null") {
				issues = append(issues, contracts.CodeIssue{
					File:        f.Path,
					Line:        int(node.StartPoint().Row) + 1,
					IssueType:   "UnguardedAccessor",
					Description: method + "() result used without null guard",
					Severity:    contracts.SeverityHigh,
					Category:    contracts.CategoryGeneral,
				})
			}
		case "object_creation_expression":
			typeNode := node.ChildByFieldName("type")
			if typeNode == nil {
				return
			}
			typeName := typeNode.Content(content)
			if !containsAny(typeName, javaResourceTypes...) {
				return
			}
			if enclosing(node, func(t string) bool { return t == "resource_specification" }) != nil {
				return
			}
			method := enclosing(node, func(t string) bool { return t == "method_declaration" || t == "constructor_declaration" })
			if method != nil && strings.Contains(method.Content(content), "close(") {
				return
			}
			issues = append(issues, contracts.CodeIssue{
				File:        f.Path,
				Line:        int(node.StartPoint().Row) + 1,
				IssueType:   "ResourceNotClosed",
				Description: "new " + typeName + " created outside try-with-resources and never closed",
				Severity:    contracts.SeverityMedium,
				Category:    contracts.CategoryGeneral,
			})
		}
	})
	return issues
}

// enclosing walks up the parent chain until match returns true for a node
// type, or returns nil at the root.
func enclosing(node *sitter.Node, match func(string) bool) *sitter.Node {
	for p := node.Parent(); p != nil; p = p.Parent() {
		if match(p.Type()) {
			return p
		}
	}
	return nil
}

func isStatementType(t string) bool {
	return strings.HasSuffix(t, "_statement") || t == "local_variable_declaration" || t == "field_declaration"
}
