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

package funcutil

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMap(t *testing.T) {
	assert.Equal(t, []string{"1", "2", "3"}, Map([]int{1, 2, 3}, strconv.Itoa))
	assert.Empty(t, Map([]int{}, strconv.Itoa))
}

func TestExists(t *testing.T) {
	even := func(x int) bool { return x%2 == 0 }
	assert.True(t, Exists([]int{1, 3, 4}, even))
	assert.False(t, Exists([]int{1, 3}, even))
	assert.False(t, Exists(nil, even))
}

func TestSetToOrderedSlice(t *testing.T) {
	set := map[string]bool{"class.B": true, "class.A": true, "class.C": false}
	assert.Equal(t, []string{"class.A", "class.B"}, SetToOrderedSlice(set))
}
