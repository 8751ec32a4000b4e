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

package config

import (
	"fmt"
	"regexp"

	"gopkg.in/yaml.v3"
)

// SymbolList is a list of function symbols. An entry that contains regular expression metacharacters and compiles
// to a regex is matched as a regex, otherwise the entry must be equal to the symbol.
type SymbolList struct {
	names   []string
	exact   map[string]bool
	regexes []*regexp.Regexp
}

// NewSymbolList returns the symbol list of names
func NewSymbolList(names ...string) SymbolList {
	l := SymbolList{
		names: append([]string{}, names...),
		exact: make(map[string]bool, len(names)),
	}
	for _, name := range names {
		if regexp.QuoteMeta(name) != name {
			if r, err := regexp.Compile(name); err == nil {
				l.regexes = append(l.regexes, r)
				continue
			}
		}
		l.exact[name] = true
	}
	return l
}

// Match returns true if the symbol matches some entry of the list
func (l SymbolList) Match(symbol string) bool {
	if l.exact[symbol] {
		return true
	}
	for _, r := range l.regexes {
		if r.MatchString(symbol) {
			return true
		}
	}
	return false
}

// Names returns the entries of the list, as written in the config
func (l SymbolList) Names() []string {
	return l.names
}

// Len returns the number of entries in the list
func (l SymbolList) Len() int {
	return len(l.names)
}

// UnmarshalYAML decodes a symbol list from a yaml sequence of strings
func (l *SymbolList) UnmarshalYAML(value *yaml.Node) error {
	var names []string
	if err := value.Decode(&names); err != nil {
		return fmt.Errorf("symbol list should be a list of strings: %w", err)
	}
	*l = NewSymbolList(names...)
	return nil
}

// MarshalYAML encodes the list as the sequence of its entries
func (l SymbolList) MarshalYAML() (interface{}, error) {
	return l.names, nil
}
