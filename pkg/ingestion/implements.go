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

package ingestion

import (
	"regexp"
	"strings"

	"github.com/kraklabs/cie-graph/pkg/parser"
)

// interfaceMethodPattern matches method declarations inside an interface
// body, e.g. "Write(data []byte) error" or "Flush() error".
var interfaceMethodPattern = regexp.MustCompile(`(?m)^\s*([A-Z][a-zA-Z0-9_]*)\s*\(`)

// implementsEdge is a type → interface "implements" relationship, found by
// method-set matching rather than by any explicit language construct (Go
// interfaces are satisfied structurally, so this is the only way to find
// implementers without a full type checker).
type implementsEdge struct {
	TypeKey      string
	TypeName     string
	InterfaceKey string
}

// buildImplementsEdges finds every concrete type whose method set is a
// superset of some interface's method set, across every entity this
// ingestion run parsed. It is intentionally whole-repo scoped: a type in
// one package can implement an interface declared in another.
func buildImplementsEdges(entities []parser.Entity) []implementsEdge {
	interfaces := extractInterfaceMethods(entities)
	if len(interfaces) == 0 {
		return nil
	}
	typeMethods, typeKeyByName := buildTypeMethodSets(entities)
	interfaceKeyByName := make(map[string]string, len(interfaces))
	for _, iface := range interfaces {
		interfaceKeyByName[iface.name] = iface.key
	}

	var edges []implementsEdge
	for _, iface := range interfaces {
		if len(iface.methods) == 0 {
			continue
		}
		for typeName, methods := range typeMethods {
			if _, isInterface := interfaceKeyByName[typeName]; isInterface {
				continue // an interface never implements another interface here
			}
			if hasAllMethods(methods, iface.methods) {
				edges = append(edges, implementsEdge{
					TypeKey:      typeKeyByName[typeName],
					TypeName:     typeName,
					InterfaceKey: iface.key,
				})
			}
		}
	}
	return edges
}

type interfaceInfo struct {
	key     string
	name    string
	methods []string
}

func extractInterfaceMethods(entities []parser.Entity) []interfaceInfo {
	var result []interfaceInfo
	for _, e := range entities {
		if e.Candidate.EntityType != "interface" {
			continue
		}
		matches := interfaceMethodPattern.FindAllStringSubmatch(e.BodySnippet, -1)
		var methods []string
		for _, m := range matches {
			if len(m) > 1 {
				methods = append(methods, m[1])
			}
		}
		result = append(result, interfaceInfo{key: e.LocalID, name: e.Candidate.Name, methods: methods})
	}
	return result
}

// buildTypeMethodSets groups method entities ("Type.Method" naming
// convention, §5.2) by their receiver type name.
func buildTypeMethodSets(entities []parser.Entity) (map[string]map[string]bool, map[string]string) {
	typeMethods := make(map[string]map[string]bool)
	typeKeyByName := make(map[string]string)

	for _, e := range entities {
		if e.Candidate.EntityType == "struct" || e.Candidate.EntityType == "class" {
			typeKeyByName[e.Candidate.Name] = e.LocalID
			continue
		}
		if e.Candidate.EntityType != "method" || !strings.Contains(e.Candidate.Name, ".") {
			continue
		}
		parts := strings.SplitN(e.Candidate.Name, ".", 2)
		typeName, methodName := parts[0], parts[1]
		if typeMethods[typeName] == nil {
			typeMethods[typeName] = make(map[string]bool)
		}
		typeMethods[typeName][methodName] = true
	}
	return typeMethods, typeKeyByName
}

func hasAllMethods(methods map[string]bool, required []string) bool {
	for _, m := range required {
		if !methods[m] {
			return false
		}
	}
	return true
}
