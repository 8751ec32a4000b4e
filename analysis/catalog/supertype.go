// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package catalog

import (
	"github.com/awslabs/ar-immutability/analysis/ir"
)

// buildEmbedding builds the graph of the struct types of the module, with an edge labelled i from a struct to the
// type of its field i when that field is a struct.
func (c *Catalog) buildEmbedding() {
	for _, t := range c.module.Types {
		c.embedding.AddNode(t)
		for i, ft := range t.Fields {
			if st, ok := ft.(*ir.StructType); ok {
				c.embedding.AddEdge(t, st, int64(i))
			}
		}
	}
}

// embeds returns true if the struct type field is the layout of super, either because they are the same type or
// because field is a base layout whose fields are a prefix of the fields of super
func embeds(field, super *ir.StructType) bool {
	if field == super {
		return true
	}
	if !ir.IsBaseType(field) || len(field.Fields) > len(super.Fields) {
		return false
	}
	for i, ft := range field.Fields {
		if !ir.Identical(ft, super.Fields[i]) {
			return false
		}
	}
	return true
}

// SupertypeIndices returns the field indices to follow from a value of type t to reach its embedded super value of
// type super. The path is the shortest one, and the first found in field order among the shortest. The second
// result is false if t does not embed super or is not a type of the module.
func (c *Catalog) SupertypeIndices(t, super *ir.StructType) ([]int, bool) {
	labels, ok := c.embedding.ShortestLabelPath(t, func(field *ir.StructType) bool { return embeds(field, super) })
	if !ok {
		return nil, false
	}
	indices := make([]int, len(labels))
	for i, l := range labels {
		indices[i] = int(l)
	}
	return indices, true
}

// IsSupertype returns true if a value of type t embeds a value of type super
func (c *Catalog) IsSupertype(t, super *ir.StructType) bool {
	_, ok := c.SupertypeIndices(t, super)
	return ok
}
