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

package formatutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStyles(t *testing.T) {
	SetEnabled(false)
	assert.Equal(t, "issue 3", Red("issue ", 3))

	SetEnabled(true)
	t.Cleanup(func() { SetEnabled(false) })
	assert.Equal(t, "\033[1;31missue\033[0m", Red("issue"))
	assert.Equal(t, "\033[2mfaint\033[0m", Faint("faint"))
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "_ZNK1A3getEv", Sanitize("_ZNK1A3getEv"))
	assert.Equal(t, `a\x1b[31m`, Sanitize("a\033[31m"))
	assert.Equal(t, "", Sanitize(""))
}
