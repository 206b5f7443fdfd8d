// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package detect

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"

	"github.com/AleutianAI/PolicyReview/services/review/policy"
)

// Python node types visited by the structural pass.
const (
	nodeFor         = "for_statement"
	nodeWhile       = "while_statement"
	nodeExcept      = "except_clause"
	nodeExceptGroup = "except_group_clause"
	nodeBlock       = "block"
	nodePass        = "pass_statement"
	nodeComment     = "comment"
)

// walkState is the accumulator for one structural traversal. It lives on
// the stack of a single Detect call and is never shared.
type walkState struct {
	loopDepth    int
	depthRules   []policy.Rule
	handlerRules []policy.Rule
	out          []Violation
}

// structuralRules splits the active rules by check. It returns false when
// no structural rule is active.
func structuralRules(rules []policy.Rule) (depth, handler []policy.Rule, any bool) {
	for _, r := range rules {
		switch {
		case r.IsStructural(policy.CheckNestedDepth):
			depth = append(depth, r)
		case r.IsStructural(policy.CheckEmptyHandler):
			handler = append(handler, r)
		}
	}
	return depth, handler, len(depth)+len(handler) > 0
}

// parseResult carries the structural pass outcome.
type parseResult struct {
	violations []Violation
	skipped    bool
}

// structuralPass parses source as Python and walks the tree. Source that
// does not parse cleanly skips the pass; that is not an error.
func structuralPass(ctx context.Context, source []byte, depth, handler []policy.Rule) (parseResult, error) {
	// New parser per call: tree-sitter parsers are not safe for concurrent use.
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(python.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, source)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return parseResult{}, ctxErr
		}
		return parseResult{skipped: true}, nil
	}
	defer tree.Close()

	root := tree.RootNode()
	if root == nil || root.HasError() {
		return parseResult{skipped: true}, nil
	}

	st := &walkState{
		depthRules:   depth,
		handlerRules: handler,
		out:          make([]Violation, 0),
	}
	if err := st.walk(ctx, root); err != nil {
		return parseResult{}, err
	}
	return parseResult{violations: st.out}, nil
}

// walk visits n and its named descendants depth-first in source order.
func (st *walkState) walk(ctx context.Context, n *sitter.Node) error {
	switch n.Type() {
	case nodeFor, nodeWhile:
		if err := ctx.Err(); err != nil {
			return err
		}
		st.loopDepth++
		line := int(n.StartPoint().Row) + 1
		for _, rule := range st.depthRules {
			if st.loopDepth > rule.MaxDepth {
				st.out = append(st.out, newViolation(rule, line, MessageNestedLoops))
			}
		}
		err := st.walkChildren(ctx, n)
		st.loopDepth--
		return err

	case nodeExcept, nodeExceptGroup:
		if len(st.handlerRules) > 0 && isPassOnly(n) {
			line := int(n.StartPoint().Row) + 1
			for _, rule := range st.handlerRules {
				st.out = append(st.out, newViolation(rule, line, MessageEmptyHandler))
			}
		}
	}
	return st.walkChildren(ctx, n)
}

func (st *walkState) walkChildren(ctx context.Context, n *sitter.Node) error {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		if child == nil {
			continue
		}
		if err := st.walk(ctx, child); err != nil {
			return err
		}
	}
	return nil
}

// isPassOnly reports whether the handler body is exactly one statement and
// that statement is pass. Comments are not statements.
func isPassOnly(handler *sitter.Node) bool {
	var body *sitter.Node
	for i := int(handler.NamedChildCount()) - 1; i >= 0; i-- {
		if c := handler.NamedChild(i); c != nil && c.Type() == nodeBlock {
			body = c
			break
		}
	}
	if body == nil {
		return false
	}

	var stmts []*sitter.Node
	for i := 0; i < int(body.NamedChildCount()); i++ {
		c := body.NamedChild(i)
		if c == nil || c.Type() == nodeComment {
			continue
		}
		stmts = append(stmts, c)
	}
	return len(stmts) == 1 && stmts[0].Type() == nodePass
}

// describeSkip is attached to spans and logs when the pass is skipped.
func describeSkip(size int) string {
	return fmt.Sprintf("structural pass skipped: %d bytes did not parse as Python", size)
}
