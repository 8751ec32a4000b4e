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

// Package funcutil contains generic helpers over slices and sets.
package funcutil

import (
	"sort"

	"golang.org/x/exp/constraints"
)

// Map returns the slice of the images of the elements of a by f
func Map[T any, S any](a []T, f func(T) S) []S {
	res := make([]S, 0, len(a))
	for _, x := range a {
		res = append(res, f(x))
	}
	return res
}

// Exists returns true if some element of a satisfies f
func Exists[T any](a []T, f func(T) bool) bool {
	for _, x := range a {
		if f(x) {
			return true
		}
	}
	return false
}

// SetToOrderedSlice returns the elements of the set in increasing order
func SetToOrderedSlice[T constraints.Ordered](set map[T]bool) []T {
	res := make([]T, 0, len(set))
	for x, ok := range set {
		if ok {
			res = append(res, x)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i] < res[j] })
	return res
}
