package compiler

import (
	"sort"
	"strings"
)

// callGraph maps each function to the set of functions its body calls.
func callGraph(funcs []*FunctionDecl) map[string]map[string]bool {
	graph := make(map[string]map[string]bool, len(funcs))
	for _, f := range funcs {
		calls := make(map[string]bool)
		findCallsStmt(f.Body, calls)
		graph[f.Name] = calls
	}
	return graph
}

// checkRecursion rejects direct and mutual recursion, reporting each cycle
// once at the function that closes it.
func checkRecursion(funcs []*FunctionDecl) ErrorList {
	graph := callGraph(funcs)
	byName := make(map[string]*FunctionDecl, len(funcs))
	for _, f := range funcs {
		byName[f.Name] = f
	}

	const (
		unvisited = iota
		active
		done
	)
	state := make(map[string]int, len(funcs))
	var errs ErrorList
	var path []string

	var visit func(name string)
	visit = func(name string) {
		state[name] = active
		path = append(path, name)

		callees := make([]string, 0, len(graph[name]))
		for c := range graph[name] {
			callees = append(callees, c)
		}
		sort.Strings(callees)

		for _, c := range callees {
			if _, ok := byName[c]; !ok {
				// Undeclared; reported at the call site.
				continue
			}
			switch state[c] {
			case unvisited:
				visit(c)
			case active:
				start := 0
				for i, p := range path {
					if p == c {
						start = i
					}
				}
				cycle := append(append([]string(nil), path[start:]...), c)
				errs = append(errs, typeErr(byName[c].Pos, "call graph", "no recursion", strings.Join(cycle, " -> ")))
			}
		}

		path = path[:len(path)-1]
		state[name] = done
	}

	for _, f := range funcs {
		if state[f.Name] == unvisited {
			visit(f.Name)
		}
	}
	return errs
}

// findCallsExpr recursively extracts function call names from an expression.
func findCallsExpr(e Expr, calls map[string]bool) {
	if e == nil {
		return
	}
	switch n := e.(type) {
	case *FunctionCall:
		calls[n.Name] = true
		for _, arg := range n.Args {
			findCallsExpr(arg, calls)
		}
	case *ConstructorExpr:
		for _, arg := range n.Args {
			findCallsExpr(arg, calls)
		}
	case *InitializerList:
		for _, el := range n.Elements {
			findCallsExpr(el, calls)
		}
	case *BinaryExpr:
		findCallsExpr(n.Left, calls)
		findCallsExpr(n.Right, calls)
	case *LogicalExpr:
		findCallsExpr(n.Left, calls)
		findCallsExpr(n.Right, calls)
	case *AssignExpr:
		findCallsExpr(n.Left, calls)
		findCallsExpr(n.Value, calls)
	case *TernaryExpr:
		findCallsExpr(n.Cond, calls)
		findCallsExpr(n.Then, calls)
		findCallsExpr(n.Else, calls)
	case *UnaryExpr:
		findCallsExpr(n.Right, calls)
	case *PostfixExpr:
		findCallsExpr(n.Left, calls)
	case *IndexExpr:
		findCallsExpr(n.Left, calls)
		findCallsExpr(n.Index, calls)
	case *MemberExpr:
		findCallsExpr(n.Left, calls)
	}
}

// findCallsStmt recursively extracts function call names from a statement.
func findCallsStmt(s Stmt, calls map[string]bool) {
	if s == nil {
		return
	}
	switch n := s.(type) {
	case *VariableDecl:
		findCallsExpr(n.Init, calls)
	case *DeclGroup:
		for _, d := range n.Decls {
			findCallsExpr(d.Init, calls)
		}
	case *ReturnStmt:
		findCallsExpr(n.Expr, calls)
	case *BlockStmt:
		for _, child := range n.Stmts {
			findCallsStmt(child, calls)
		}
	case *IfStmt:
		findCallsExpr(n.Condition, calls)
		findCallsStmt(n.Body, calls)
		findCallsStmt(n.ElseBody, calls)
	case *WhileStmt:
		findCallsExpr(n.Condition, calls)
		findCallsStmt(n.Body, calls)
	case *ForStmt:
		findCallsStmt(n.Init, calls)
		findCallsExpr(n.Cond, calls)
		findCallsExpr(n.Post, calls)
		findCallsStmt(n.Body, calls)
	case *ExprStmt:
		findCallsExpr(n.Expr, calls)
	}
}
