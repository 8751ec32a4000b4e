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

// Package store persists the class catalog and the issues found by the immutability analysis.
//
// Records are stored in a badger key-value store and encoded with msgpack. Classes are keyed by package and class
// id, so that the methods of a package are listed in id order. Issues are keyed by symbol and description, which
// makes recording an issue idempotent.
package store

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/awslabs/ar-immutability/analysis/config"
	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	classPrefix  = "class/"
	issuePrefix  = "issue/"
	classSeqKey  = "seq/class"
	methodSeqKey = "seq/method"
	seqBandwidth = 64
)

// MethodEntry is a public const method of a class
type MethodEntry struct {
	ID          int64  `msgpack:"id"`
	Name        string `msgpack:"name"`
	MangledName string `msgpack:"mangled"`
}

// Entry is a class and its public const methods
type Entry struct {
	ID      int64         `msgpack:"id"`
	Name    string        `msgpack:"name"`
	Methods []MethodEntry `msgpack:"methods"`
}

// Issue is a violation of immutability found in a method
type Issue struct {
	ClassID     int64     `msgpack:"class"`
	Symbol      string    `msgpack:"symbol"`
	Description string    `msgpack:"description"`
	RunID       string    `msgpack:"run"`
	Time        time.Time `msgpack:"time"`
}

// Store is the persistence layer of the analysis. It is safe for concurrent use.
type Store struct {
	db        *badger.DB
	runID     uuid.UUID
	mu        sync.Mutex
	classSeq  *badger.Sequence
	methodSeq *badger.Sequence
}

// badgerLogger sends the messages of badger to a log group
type badgerLogger struct {
	logger *config.LogGroup
}

func (l badgerLogger) Errorf(format string, v ...interface{})   { l.logger.Errorf(format, v...) }
func (l badgerLogger) Warningf(format string, v ...interface{}) { l.logger.Warnf(format, v...) }
func (l badgerLogger) Infof(format string, v ...interface{})    { l.logger.Debugf(format, v...) }
func (l badgerLogger) Debugf(format string, v ...interface{})   { l.logger.Tracef(format, v...) }

// Open opens the store in directory dir, creating it if necessary. Each opened store has a fresh run id that is
// recorded with the issues it adds.
func Open(dir string, logger *config.LogGroup) (*Store, error) {
	return open(badger.DefaultOptions(dir), logger)
}

// OpenInMemory opens a store that is not persisted
func OpenInMemory(logger *config.LogGroup) (*Store, error) {
	return open(badger.DefaultOptions("").WithInMemory(true), logger)
}

func open(opts badger.Options, logger *config.LogGroup) (*Store, error) {
	if logger != nil {
		opts = opts.WithLogger(badgerLogger{logger.Sub("[store] ")})
	} else {
		opts = opts.WithLogger(nil)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("could not open store: %w", err)
	}
	s := &Store{db: db, runID: uuid.New()}
	if s.classSeq, err = db.GetSequence([]byte(classSeqKey), seqBandwidth); err != nil {
		db.Close()
		return nil, fmt.Errorf("could not get class sequence: %w", err)
	}
	if s.methodSeq, err = db.GetSequence([]byte(methodSeqKey), seqBandwidth); err != nil {
		s.classSeq.Release()
		db.Close()
		return nil, fmt.Errorf("could not get method sequence: %w", err)
	}
	return s, nil
}

// Close releases the sequences and closes the database
func (s *Store) Close() error {
	err := errors.Join(s.classSeq.Release(), s.methodSeq.Release())
	return errors.Join(err, s.db.Close())
}

// RunID returns the identifier of the current analysis run
func (s *Store) RunID() uuid.UUID {
	return s.runID
}

func classKey(packageID, classID int64) []byte {
	return []byte(fmt.Sprintf("%s%020d/%020d", classPrefix, packageID, classID))
}

func packagePrefix(packageID int64) []byte {
	return []byte(fmt.Sprintf("%s%020d/", classPrefix, packageID))
}

func issueKey(symbol, description string) []byte {
	return []byte(issuePrefix + symbol + "\x00" + description)
}

// next returns the next identifier of seq. Identifiers start at 1.
func next(seq *badger.Sequence) (int64, error) {
	for {
		n, err := seq.Next()
		if err != nil {
			return 0, err
		}
		if n > 0 {
			return int64(n), nil
		}
	}
}

// PutClass records the class e of package packageID. Class and method ids that are zero are assigned from the
// sequences of the store. The recorded entry is returned.
func (s *Store) PutClass(packageID int64, e Entry) (Entry, error) {
	var err error
	if e.ID == 0 {
		if e.ID, err = next(s.classSeq); err != nil {
			return e, fmt.Errorf("could not assign id to class %s: %w", e.Name, err)
		}
	}
	methods := make([]MethodEntry, len(e.Methods))
	copy(methods, e.Methods)
	for i := range methods {
		if methods[i].ID == 0 {
			if methods[i].ID, err = next(s.methodSeq); err != nil {
				return e, fmt.Errorf("could not assign id to method %s: %w", methods[i].MangledName, err)
			}
		}
	}
	sort.Slice(methods, func(i, j int) bool { return methods[i].ID < methods[j].ID })
	e.Methods = methods
	b, err := msgpack.Marshal(&e)
	if err != nil {
		return e, fmt.Errorf("could not encode class %s: %w", e.Name, err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(classKey(packageID, e.ID), b)
	})
	if err != nil {
		return e, fmt.Errorf("could not store class %s: %w", e.Name, err)
	}
	return e, nil
}

// PublicMethods returns the classes of package packageID with their public const methods, ordered by class id.
func (s *Store) PublicMethods(packageID int64) ([]Entry, error) {
	var entries []Entry
	prefix := packagePrefix(packageID)
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var e Entry
			err := it.Item().Value(func(val []byte) error {
				return msgpack.Unmarshal(val, &e)
			})
			if err != nil {
				return fmt.Errorf("could not decode %s: %w", it.Item().Key(), err)
			}
			entries = append(entries, e)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("could not list classes of package %d: %w", packageID, err)
	}
	return entries, nil
}

// AddIssue records that the method symbol of class classID has the issue description. It returns false without
// error if the same issue was already recorded for that symbol.
func (s *Store) AddIssue(classID int64, symbol, description string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := issueKey(symbol, description)
	inserted := false
	err := s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		if err == nil {
			return nil
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		b, err := msgpack.Marshal(&Issue{
			ClassID:     classID,
			Symbol:      symbol,
			Description: description,
			RunID:       s.runID.String(),
			Time:        time.Now().UTC(),
		})
		if err != nil {
			return err
		}
		inserted = true
		return txn.Set(key, b)
	})
	if err != nil {
		return false, fmt.Errorf("could not add issue %q for %s: %w", description, symbol, err)
	}
	return inserted, nil
}

// Issues returns the recorded issues of the methods whose symbol starts with symbolPrefix, ordered by symbol and
// description.
func (s *Store) Issues(symbolPrefix string) ([]Issue, error) {
	var issues []Issue
	prefix := []byte(issuePrefix + symbolPrefix)
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var issue Issue
			err := it.Item().Value(func(val []byte) error {
				return msgpack.Unmarshal(val, &issue)
			})
			if err != nil {
				return fmt.Errorf("could not decode issue %q: %w",
					strings.TrimPrefix(string(it.Item().Key()), issuePrefix), err)
			}
			issues = append(issues, issue)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("could not list issues: %w", err)
	}
	return issues, nil
}
