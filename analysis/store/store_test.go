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

package store

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	s, err := OpenInMemory(nil)
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, s.Close()) })
	return s
}

func TestPutClassAssignsIDs(t *testing.T) {
	s := openTestStore(t)

	a, err := s.PutClass(1, Entry{Name: "class.A", Methods: []MethodEntry{
		{Name: "get", MangledName: "_ZNK1A3getEv"},
		{Name: "size", MangledName: "_ZNK1A4sizeEv"},
	}})
	require.NoError(t, err)
	assert.Positive(t, a.ID)
	require.Len(t, a.Methods, 2)
	assert.Less(t, a.Methods[0].ID, a.Methods[1].ID)

	b, err := s.PutClass(1, Entry{Name: "class.B"})
	require.NoError(t, err)
	assert.Greater(t, b.ID, a.ID)

	_, err = s.PutClass(2, Entry{ID: 1000, Name: "class.C"})
	require.NoError(t, err)

	entries, err := s.PublicMethods(1)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, a, entries[0])
	assert.Equal(t, "class.B", entries[1].Name)

	entries, err = s.PublicMethods(2)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(1000), entries[0].ID)

	entries, err = s.PublicMethods(3)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestAddIssueIsIdempotent(t *testing.T) {
	s := openTestStore(t)

	inserted, err := s.AddIssue(1, "_ZNK1A3getEv", "ESCAPERET @ _ZNK1A3getEv")
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = s.AddIssue(1, "_ZNK1A3getEv", "ESCAPERET @ _ZNK1A3getEv")
	require.NoError(t, err)
	assert.False(t, inserted)

	inserted, err = s.AddIssue(1, "_ZNK1A3getEv", "ESCAPEARG")
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = s.AddIssue(2, "_ZNK1B3getEv", "ESCAPEARG")
	require.NoError(t, err)
	assert.True(t, inserted)

	issues, err := s.Issues("_ZNK1A")
	require.NoError(t, err)
	require.Len(t, issues, 2)
	assert.Equal(t, "ESCAPEARG", issues[0].Description)
	assert.Equal(t, "ESCAPERET @ _ZNK1A3getEv", issues[1].Description)
	assert.Equal(t, s.RunID().String(), issues[0].RunID)

	all, err := s.Issues("")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestAddIssueConcurrent(t *testing.T) {
	s := openTestStore(t)
	var wg sync.WaitGroup
	inserted := make([]bool, 16)
	for i := range inserted {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ok, err := s.AddIssue(1, "_ZNK1A3getEv", "ESCAPEARG")
			assert.NoError(t, err)
			inserted[i] = ok
		}(i)
	}
	wg.Wait()
	count := 0
	for _, ok := range inserted {
		if ok {
			count++
		}
	}
	assert.Equal(t, 1, count, fmt.Sprintf("inserted: %v", inserted))
}
