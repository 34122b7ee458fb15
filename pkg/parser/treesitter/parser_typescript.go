// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package treesitter

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
)

// =============================================================================
// TYPESCRIPT PARSER
// =============================================================================

// parseTypeScriptAST extracts functions and types from TypeScript source using
// Tree-sitter. TypeScript reuses the JavaScript extractors for anything the
// two grammars share (arrow functions, classes, method bodies) and adds its
// own walker for interface members and ambient declarations, which have no
// JavaScript equivalent.
func (p *TreeSitterParser) parseTypeScriptAST(parser *sitter.Parser, content []byte, filePath string) ([]FunctionEntity, []TypeEntity, []CallsEdge, error) {
	tree, err := parser.ParseCtx(context.Background(), nil, content)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("tree-sitter parse: %w", err)
	}
	defer tree.Close()

	rootNode := tree.RootNode()
	if rootNode.HasError() {
		if errorCount := countErrors(rootNode); errorCount > 0 {
			p.logger.Warn("parser.treesitter.typescript.syntax_errors",
				"path", filePath,
				"error_count", errorCount,
			)
		}
	}

	var functions []FunctionEntity
	funcNameToID := make(map[string]string)
	anonCounter := 0

	p.walkTSFunctions(rootNode, content, filePath, &functions, funcNameToID, &anonCounter)

	types := p.extractTSTypes(rootNode, content, filePath)

	var calls []CallsEdge
	for _, fn := range functions {
		calls = append(calls, p.extractJSCalls(rootNode, content, fn, funcNameToID)...)
	}

	return functions, types, calls, nil
}

// walkTSFunctions walks the TypeScript AST. It delegates to the JavaScript
// extractors for node types the two grammars share, and adds the two
// signature-only node types TypeScript introduces: method_signature
// (interface methods) and function_signature (ambient declarations), neither
// of which has a function body to extract.
func (p *TreeSitterParser) walkTSFunctions(node *sitter.Node, content []byte, filePath string, functions *[]FunctionEntity, funcNameToID map[string]string, anonCounter *int) {
	if node == nil {
		return
	}

	switch node.Type() {
	case "function_declaration":
		if fn := p.extractJSFunction(node, content, filePath); fn != nil {
			*functions = append(*functions, *fn)
			funcNameToID[fn.Name] = fn.ID
		}
	case "variable_declarator":
		nameNode := node.ChildByFieldName("name")
		valueNode := node.ChildByFieldName("value")
		if nameNode != nil && valueNode != nil {
			switch valueNode.Type() {
			case "arrow_function", "function_expression", "function":
				if fn := p.extractJSArrowOrExpressionFunction(nameNode, valueNode, content, filePath); fn != nil {
					*functions = append(*functions, *fn)
					funcNameToID[fn.Name] = fn.ID
				}
			}
		}
	case "method_definition":
		if fn := p.extractJSMethod(node, content, filePath); fn != nil {
			*functions = append(*functions, *fn)
			funcNameToID[fn.Name] = fn.ID
		}
	case "method_signature":
		if fn := p.extractTSSignatureEntity(node, content, filePath); fn != nil {
			*functions = append(*functions, *fn)
			funcNameToID[fn.Name] = fn.ID
		}
	case "function_signature":
		if fn := p.extractTSSignatureEntity(node, content, filePath); fn != nil {
			*functions = append(*functions, *fn)
			funcNameToID[fn.Name] = fn.ID
		}
	case "arrow_function":
		if parent := node.Parent(); parent == nil || parent.Type() != "variable_declarator" {
			*anonCounter++
			if fn := p.extractJSAnonymousArrow(node, content, filePath, *anonCounter); fn != nil {
				*functions = append(*functions, *fn)
			}
		}
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		p.walkTSFunctions(node.Child(i), content, filePath, functions, funcNameToID, anonCounter)
	}
}

// extractTSSignatureEntity extracts a body-less TypeScript signature: an
// interface method or an ambient function declaration. Both shapes carry a
// name field and nothing else worth distinguishing, so one extractor serves
// both node types.
func (p *TreeSitterParser) extractTSSignatureEntity(node *sitter.Node, content []byte, filePath string) *FunctionEntity {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}
	name := string(content[nameNode.StartByte():nameNode.EndByte()])
	signature := string(content[node.StartByte():node.EndByte()])

	startLine := int(node.StartPoint().Row) + 1
	endLine := int(node.EndPoint().Row) + 1
	startCol := int(node.StartPoint().Column) + 1
	endCol := int(node.EndPoint().Column) + 1

	codeText := p.truncateCodeText(signature)
	id := GenerateFunctionID(filePath, name, signature, startLine, endLine, startCol, endCol)

	return &FunctionEntity{
		ID:        id,
		Name:      name,
		Signature: signature,
		FilePath:  filePath,
		CodeText:  codeText,
		StartLine: startLine,
		EndLine:   endLine,
		StartCol:  startCol,
		EndCol:    endCol,
	}
}

// =============================================================================
// TYPESCRIPT TYPE EXTRACTION
// =============================================================================

// extractTSTypes extracts interface, class, and type-alias declarations.
func (p *TreeSitterParser) extractTSTypes(rootNode *sitter.Node, content []byte, filePath string) []TypeEntity {
	var types []TypeEntity
	if rootNode == nil {
		return types
	}
	p.walkTSTypesAST(rootNode, content, filePath, &types)
	return types
}

func (p *TreeSitterParser) walkTSTypesAST(node *sitter.Node, content []byte, filePath string, types *[]TypeEntity) {
	if node == nil {
		return
	}

	switch node.Type() {
	case "interface_declaration":
		if te := p.extractTSTypeDeclaration(node, content, filePath, "interface"); te != nil {
			*types = append(*types, *te)
		}
	case "class_declaration":
		if te := p.extractTSTypeDeclaration(node, content, filePath, "class"); te != nil {
			*types = append(*types, *te)
		}
	case "type_alias_declaration":
		if te := p.extractTSTypeDeclaration(node, content, filePath, "type_alias"); te != nil {
			*types = append(*types, *te)
		}
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		p.walkTSTypesAST(node.Child(i), content, filePath, types)
	}
}

// extractTSTypeDeclaration extracts the named-type declaration shape shared
// by interfaces, classes, and type aliases: a name field plus the full node
// span as the recorded body.
func (p *TreeSitterParser) extractTSTypeDeclaration(node *sitter.Node, content []byte, filePath, kind string) *TypeEntity {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}
	name := string(content[nameNode.StartByte():nameNode.EndByte()])

	startLine := int(node.StartPoint().Row) + 1
	endLine := int(node.EndPoint().Row) + 1
	startCol := int(node.StartPoint().Column) + 1
	endCol := int(node.EndPoint().Column) + 1

	codeText := p.truncateCodeText(string(content[node.StartByte():node.EndByte()]))
	id := GenerateTypeID(filePath, name, startLine, endLine)

	return &TypeEntity{
		ID:        id,
		Name:      name,
		Kind:      kind,
		FilePath:  filePath,
		CodeText:  codeText,
		StartLine: startLine,
		EndLine:   endLine,
		StartCol:  startCol,
		EndCol:    endCol,
	}
}
